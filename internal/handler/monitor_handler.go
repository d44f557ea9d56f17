package handler

import (
	"net/http"
	"strconv"

	"approvalflow/internal/middleware"
	"approvalflow/internal/model"
	"approvalflow/internal/service"
	"approvalflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type MonitorHandler struct {
	monitorService service.MonitorService
}

func NewMonitorHandler(monitorService service.MonitorService) *MonitorHandler {
	return &MonitorHandler{monitorService: monitorService}
}

func (h *MonitorHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/approvals")
	group.Use(middleware.RequirePermission(model.PermApprovalsRead))
	{
		group.GET("/overdue", h.ListOverdue)
		group.GET("/bottlenecks", h.ListBottlenecks)
	}
}

// ListOverdue returns active assignments waiting longer than their timeout
// @Summary      List overdue assignments
// @Description  Read-only view. With include_waiting=true every active assignment is returned.
// @Tags         monitor
// @Security     BearerAuth
// @Produce      json
// @Param        level            query     int     false  "Approver level"
// @Param        approver_id      query     string  false  "Approver id"
// @Param        type             query     string  false  "Request type"
// @Param        priority         query     string  false  "Request priority"
// @Param        include_waiting  query     bool    false  "Include assignments that are not overdue yet"
// @Success      200              {object}  response.Response{data=[]model.OverdueItem}
// @Router       /api/approvals/overdue [get]
func (h *MonitorHandler) ListOverdue(c *gin.Context) {
	filter := service.OverdueFilter{
		ApproverID:  c.Query("approver_id"),
		RequestType: c.Query("type"),
		Priority:    c.Query("priority"),
	}
	if raw := c.Query("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil || level < 1 {
			c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "validation", "level must be a positive integer"))
			return
		}
		filter.Level = level
	}
	filter.IncludeWaiting, _ = strconv.ParseBool(c.DefaultQuery("include_waiting", "false"))

	items, err := h.monitorService.ListOverdue(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// ListBottlenecks aggregates overdue assignments per level
// @Summary      List bottlenecks
// @Tags         monitor
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.BottleneckStat}
// @Router       /api/approvals/bottlenecks [get]
func (h *MonitorHandler) ListBottlenecks(c *gin.Context) {
	stats, err := h.monitorService.ListBottlenecks(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
