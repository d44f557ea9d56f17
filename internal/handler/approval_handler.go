package handler

import (
	"errors"
	"io"
	"net/http"

	"approvalflow/internal/middleware"
	"approvalflow/internal/model"
	"approvalflow/internal/service"
	"approvalflow/pkg/pagination"
	"approvalflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
	commentService  service.CommentService
}

func NewApprovalHandler(approvalService service.ApprovalService, commentService service.CommentService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, commentService: commentService}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/api/approvals")
	{
		approvals.POST("", middleware.RequirePermission(model.PermApprovalsCreate), h.CreateRequest)
		approvals.GET("", middleware.RequirePermission(model.PermApprovalsRead), h.ListRequests)
		approvals.GET("/:id", middleware.RequirePermission(model.PermApprovalsRead), h.GetRequest)

		approvals.POST("/:id/respond", middleware.RequirePermission(model.PermApprovalsDecide), h.Respond)
		approvals.POST("/:id/cancel-decision", middleware.RequirePermission(model.PermApprovalsDecide), h.CancelDecision)
		approvals.POST("/:id/request-revision", middleware.RequirePermission(model.PermApprovalsDecide), h.RequestRevision)

		approvals.POST("/:id/submit", middleware.RequirePermission(model.PermApprovalsCreate), h.Submit)
		approvals.POST("/:id/withdraw", middleware.RequirePermission(model.PermApprovalsCreate), h.Withdraw)
		approvals.POST("/:id/resubmit", middleware.RequirePermission(model.PermApprovalsCreate), h.Resubmit)
		approvals.POST("/:id/consume", middleware.RequirePermission(model.PermApprovalsConsume), h.Consume)

		approvals.GET("/:id/comments", middleware.RequirePermission(model.PermApprovalsRead), h.ListComments)
		approvals.POST("/:id/comments", middleware.RequirePermission(model.PermApprovalsRead), h.AddComment)
	}
}

type commentBody struct {
	Comment *string `json:"comment"`
}

// bindOptional binds a JSON body when one was sent
func bindOptional(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return false
	}
	return true
}

// CreateRequest opens a new approval request for the caller
// @Summary      Create approval request
// @Description  Creates a request with its ordered approver chain. Unless draft is set, level 1 becomes active immediately.
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateApprovalRequestDTO  true  "Request payload"
// @Success      201      {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/approvals [post]
func (h *ApprovalHandler) CreateRequest(c *gin.Context) {
	var req service.CreateApprovalRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.RequesterID = c.GetString(middleware.ContextUserID)

	created, err := h.approvalService.CreateRequest(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// ListRequests returns approval requests, optionally filtered
// @Summary      List approval requests
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        status        query     string  false  "Request status"
// @Param        type          query     string  false  "Request type"
// @Param        requester_id  query     string  false  "Requester id"
// @Param        approver_id   query     string  false  "Approver id"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Items per page (default 20)"
// @Success      200           {object}  response.Response{data=response.Page}
// @Router       /api/approvals [get]
func (h *ApprovalHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.ApprovalFilter{
		Status:      c.Query("status"),
		Type:        c.Query("type"),
		RequesterID: c.Query("requester_id"),
		ApproverID:  c.Query("approver_id"),
		Page:        p.Page,
		Limit:       p.Limit,
	}

	approvals, total, err := h.approvalService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, approvals, total, p.Page, p.Limit))
}

// GetRequest returns a request with its chain and comment log
// @Summary      Get approval request detail
// @Description  Internal comments are only included for callers allowed to decide.
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request id"
// @Success      200  {object}  response.Response{data=service.RequestDetailResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/approvals/{id} [get]
func (h *ApprovalHandler) GetRequest(c *gin.Context) {
	detail, err := h.approvalService.GetRequestDetail(c.Request.Context(), c.Param("id"), middleware.HasPermission(c, model.PermApprovalsDecide))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// Respond approves or rejects the caller's active level
// @Summary      Respond to approval request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Request id"
// @Param        payload  body      service.RespondDTO  true  "Decision"
// @Success      200      {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/approvals/{id}/respond [post]
func (h *ApprovalHandler) Respond(c *gin.Context) {
	var req service.RespondDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updated, err := h.approvalService.Respond(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// CancelDecision reverts the caller's own recent decision
// @Summary      Cancel a decision
// @Description  Allowed within the cancellation window and only while no later level has decided.
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true   "Request id"
// @Param        payload  body      service.ReasonDTO  false  "Optional reason"
// @Success      200      {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      403      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/approvals/{id}/cancel-decision [post]
func (h *ApprovalHandler) CancelDecision(c *gin.Context) {
	var req service.ReasonDTO
	if !bindOptional(c, &req) {
		return
	}

	updated, err := h.approvalService.CancelDecision(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID), req.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// RequestRevision sends the request back to its requester
// @Summary      Request revision
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true   "Request id"
// @Param        payload  body      object  false  "Optional comment"
// @Success      200      {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/approvals/{id}/request-revision [post]
func (h *ApprovalHandler) RequestRevision(c *gin.Context) {
	var req commentBody
	if !bindOptional(c, &req) {
		return
	}

	updated, err := h.approvalService.RequestRevision(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID), req.Comment)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// Submit moves a draft into review
// @Summary      Submit draft
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request id"
// @Success      200  {object}  response.Response{data=service.ApprovalRequestResponse}
// @Router       /api/approvals/{id}/submit [post]
func (h *ApprovalHandler) Submit(c *gin.Context) {
	updated, err := h.approvalService.SubmitRequest(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// Withdraw cancels the whole request on behalf of its requester
// @Summary      Withdraw request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true   "Request id"
// @Param        payload  body      service.ReasonDTO  false  "Optional reason"
// @Success      200      {object}  response.Response{data=service.ApprovalRequestResponse}
// @Router       /api/approvals/{id}/withdraw [post]
func (h *ApprovalHandler) Withdraw(c *gin.Context) {
	var req service.ReasonDTO
	if !bindOptional(c, &req) {
		return
	}

	updated, err := h.approvalService.WithdrawRequest(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID), req.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// Resubmit restarts the chain after a revision
// @Summary      Resubmit request
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request id"
// @Success      200  {object}  response.Response{data=service.ApprovalRequestResponse}
// @Router       /api/approvals/{id}/resubmit [post]
func (h *ApprovalHandler) Resubmit(c *gin.Context) {
	updated, err := h.approvalService.ResubmitRequest(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// Consume marks a final outcome as acted upon downstream
// @Summary      Mark outcome consumed
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request id"
// @Success      200  {object}  response.Response{data=service.ApprovalRequestResponse}
// @Router       /api/approvals/{id}/consume [post]
func (h *ApprovalHandler) Consume(c *gin.Context) {
	updated, err := h.approvalService.MarkConsumed(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// ListComments returns the discussion log oldest first
// @Summary      List comments
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request id"
// @Success      200  {object}  response.Response{data=[]service.CommentResponse}
// @Router       /api/approvals/{id}/comments [get]
func (h *ApprovalHandler) ListComments(c *gin.Context) {
	comments, err := h.commentService.ListComments(c.Request.Context(), c.Param("id"), middleware.HasPermission(c, model.PermApprovalsDecide))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, comments))
}

// AddComment appends to the discussion log
// @Summary      Add comment
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Request id"
// @Param        payload  body      service.AddCommentDTO  true  "Comment"
// @Success      201      {object}  response.Response{data=service.CommentResponse}
// @Router       /api/approvals/{id}/comments [post]
func (h *ApprovalHandler) AddComment(c *gin.Context) {
	var req service.AddCommentDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.AuthorID = c.GetString(middleware.ContextUserID)

	comment, err := h.commentService.AddComment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, comment))
}
