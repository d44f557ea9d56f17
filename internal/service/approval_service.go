package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"approvalflow/internal/clock"
	"approvalflow/internal/directory"
	"approvalflow/internal/logger"
	"approvalflow/internal/metrics"
	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	"approvalflow/internal/tracing"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
)

// --- DTOs ---

type ApproverInput struct {
	ApproverID   string  `json:"approver_id" binding:"required"`
	Level        int     `json:"level" binding:"required,min=1"`
	TimeoutHours float64 `json:"timeout_hours" binding:"required,gt=0"`
}

type CreateApprovalRequestDTO struct {
	Title       string                 `json:"title" binding:"required"`
	Description string                 `json:"description"`
	Type        string                 `json:"type" binding:"required,oneof=code_component bug_fix architecture_change solution_deployment release_approval"`
	Priority    string                 `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time             `json:"due_date"`
	Metadata    map[string]interface{} `json:"metadata"`
	Approvers   []ApproverInput        `json:"approvers" binding:"required,min=1,dive"`
	Draft       bool                   `json:"draft"`
	RequesterID string                 `json:"-"` // Taken from the authenticated caller
}

type RespondDTO struct {
	Action  string  `json:"action" binding:"required,oneof=approve reject"`
	Comment *string `json:"comment"`
}

type ReasonDTO struct {
	Reason *string `json:"reason"`
}

type ApprovalFilter struct {
	Status      string
	Type        string
	RequesterID string
	ApproverID  string
	Page        int
	Limit       int
}

type AssignmentResponse struct {
	ID           string  `json:"id"`
	ApproverID   string  `json:"approver_id"`
	Level        int     `json:"level"`
	TimeoutHours float64 `json:"timeout_hours"`
	Status       string  `json:"status"`
	Active       bool    `json:"active"`
	AssignedAt   string  `json:"assigned_at"`
	ActivatedAt  *string `json:"activated_at"`
	RespondedAt  *string `json:"responded_at"`
	DecidedAt    *string `json:"decided_at"`
	Comment      *string `json:"comment"`
}

type ApprovalRequestResponse struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Priority    string                 `json:"priority"`
	Status      string                 `json:"status"`
	RequesterID string                 `json:"requester_id"`
	DueDate     *string                `json:"due_date"`
	Metadata    map[string]interface{} `json:"metadata"`
	Version     int64                  `json:"version"`
	ActiveLevel int                    `json:"active_level"`
	ConsumedAt  *string                `json:"consumed_at"`
	Assignments []AssignmentResponse   `json:"assignments,omitempty"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at"`
}

type RequestDetailResponse struct {
	Request     ApprovalRequestResponse `json:"request"`
	Assignments []AssignmentResponse    `json:"assignments"`
	Comments    []CommentResponse       `json:"comments"`
}

// --- Interface ---

type ApprovalService interface {
	CreateRequest(ctx context.Context, req CreateApprovalRequestDTO) (ApprovalRequestResponse, error)
	GetRequestDetail(ctx context.Context, id string, includeInternal bool) (RequestDetailResponse, error)
	ListRequests(ctx context.Context, filter ApprovalFilter) ([]ApprovalRequestResponse, int64, error)

	Respond(ctx context.Context, id, approverID string, req RespondDTO) (ApprovalRequestResponse, error)
	CancelDecision(ctx context.Context, id, approverID string, reason *string) (ApprovalRequestResponse, error)

	SubmitRequest(ctx context.Context, id, requesterID string) (ApprovalRequestResponse, error)
	WithdrawRequest(ctx context.Context, id, requesterID string, reason *string) (ApprovalRequestResponse, error)
	RequestRevision(ctx context.Context, id, approverID string, comment *string) (ApprovalRequestResponse, error)
	ResubmitRequest(ctx context.Context, id, requesterID string) (ApprovalRequestResponse, error)
	MarkConsumed(ctx context.Context, id, actorID string) (ApprovalRequestResponse, error)
}

// ApprovalDeps are the collaborators of the approval service. Log, Clock and
// Events default to no-op/wall-clock implementations when nil; CancelWindow
// defaults to workflow.DefaultCancelWindow.
type ApprovalDeps struct {
	Requests     repository.ApprovalRepository
	Comments     repository.CommentRepository
	Audit        repository.AuditRepository
	Tx           repository.TransactionManager
	Directory    directory.Directory
	Clock        clock.Clock
	Events       Publisher
	Log          *logger.Logger
	CancelWindow time.Duration
}

type approvalService struct {
	repo     repository.ApprovalRepository
	comments repository.CommentRepository
	audit    repository.AuditRepository
	tx       repository.TransactionManager
	dir      directory.Directory
	clock    clock.Clock
	events   Publisher
	log      *logger.Logger
	window   time.Duration
}

func NewApprovalService(deps ApprovalDeps) ApprovalService {
	s := &approvalService{
		repo:     deps.Requests,
		comments: deps.Comments,
		audit:    deps.Audit,
		tx:       deps.Tx,
		dir:      deps.Directory,
		clock:    deps.Clock,
		events:   deps.Events,
		log:      deps.Log,
		window:   deps.CancelWindow,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.Component("approval")
	if s.window <= 0 {
		s.window = workflow.DefaultCancelWindow
	}
	return s
}

// --- Implementation ---

func (s *approvalService) CreateRequest(ctx context.Context, req CreateApprovalRequestDTO) (ApprovalRequestResponse, error) {
	requesterID, err := parseID("requester_id", req.RequesterID)
	if err != nil {
		return ApprovalRequestResponse{}, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return ApprovalRequestResponse{}, fmt.Errorf("%w: title is required", workflow.ErrValidation)
	}
	if !validType(req.Type) {
		return ApprovalRequestResponse{}, fmt.Errorf("%w: unknown request type %q", workflow.ErrValidation, req.Type)
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !validPriority(priority) {
		return ApprovalRequestResponse{}, fmt.Errorf("%w: unknown priority %q", workflow.ErrValidation, priority)
	}

	now := s.clock.Now()
	chain, err := s.buildChain(ctx, req.Approvers, now)
	if err != nil {
		return ApprovalRequestResponse{}, err
	}

	approval := model.ApprovalRequest{
		ID:          uuid.New(),
		Type:        req.Type,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    priority,
		Status:      model.StatusDraft,
		RequesterID: requesterID,
		DueDate:     req.DueDate,
		Metadata:    req.Metadata,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := range chain {
		chain[i].RequestID = approval.ID
	}
	approval.Assignments = chain

	if !req.Draft {
		state, err := workflow.Apply(workflow.StateOf(&approval), workflow.Event{Type: workflow.EventSubmit, At: now})
		if err != nil {
			return ApprovalRequestResponse{}, err
		}
		approval.Status = state.Status
		approval.Assignments = state.Assignments
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.repo.Create(txCtx, &approval); createErr != nil {
			return fmt.Errorf("failed to create approval request: %w", createErr)
		}
		return s.writeAudit(txCtx, &requesterID, model.ActionCreateApprovalRequest, &approval, map[string]interface{}{
			"type":     approval.Type,
			"priority": approval.Priority,
			"levels":   len(approval.Assignments),
			"draft":    req.Draft,
		})
	})
	if err != nil {
		return ApprovalRequestResponse{}, err
	}

	s.log.LogTransition(approval.ID.String(), "create", workflow.ActiveLevel(approval.Status, approval.Assignments), approval.Status, approval.Version)
	resp := toApprovalResponse(approval)
	s.events.Publish(EventRequestCreated, resp)
	return resp, nil
}

// buildChain validates approver input against the directory and returns
// assignments sorted by level.
func (s *approvalService) buildChain(ctx context.Context, approvers []ApproverInput, now time.Time) ([]model.ApproverAssignment, error) {
	chain := make([]model.ApproverAssignment, 0, len(approvers))
	seen := make(map[uuid.UUID]bool, len(approvers))
	for _, in := range approvers {
		approverID, err := parseID("approver_id", in.ApproverID)
		if err != nil {
			return nil, err
		}
		if seen[approverID] {
			return nil, fmt.Errorf("%w: approver %s appears more than once in the chain", workflow.ErrValidation, approverID)
		}
		seen[approverID] = true

		if s.dir != nil {
			approver, err := s.dir.Resolve(ctx, approverID)
			if errors.Is(err, workflow.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown approver %s", workflow.ErrValidation, approverID)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to resolve approver %s: %w", approverID, err)
			}
			if !approver.Active || !approver.Can(model.PermApprovalsDecide) {
				return nil, fmt.Errorf("%w: user %s cannot approve requests", workflow.ErrValidation, approverID)
			}
		}

		chain = append(chain, model.ApproverAssignment{
			ID:           uuid.New(),
			ApproverID:   approverID,
			Level:        in.Level,
			TimeoutHours: in.TimeoutHours,
			Status:       model.AssignmentPending,
			AssignedAt:   now,
		})
	}
	if err := workflow.ValidateChain(chain); err != nil {
		return nil, err
	}
	workflow.SortByLevel(chain)
	return chain, nil
}

func (s *approvalService) GetRequestDetail(ctx context.Context, id string, includeInternal bool) (RequestDetailResponse, error) {
	requestID, err := parseID("request id", id)
	if err != nil {
		return RequestDetailResponse{}, err
	}

	approval, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return RequestDetailResponse{}, err
	}
	comments, err := s.comments.ListByRequest(ctx, requestID, includeInternal)
	if err != nil {
		return RequestDetailResponse{}, fmt.Errorf("failed to load comments: %w", err)
	}

	req := toApprovalResponse(*approval)
	detail := RequestDetailResponse{
		Request:     req,
		Assignments: req.Assignments,
		Comments:    make([]CommentResponse, 0, len(comments)),
	}
	detail.Request.Assignments = nil
	for _, c := range comments {
		detail.Comments = append(detail.Comments, toCommentResponse(c))
	}
	return detail, nil
}

func (s *approvalService) ListRequests(ctx context.Context, filter ApprovalFilter) ([]ApprovalRequestResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	repoFilter := repository.RequestFilter{
		Status: filter.Status,
		Type:   filter.Type,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.RequesterID != "" {
		id, err := parseID("requester_id", filter.RequesterID)
		if err != nil {
			return nil, 0, err
		}
		repoFilter.RequesterID = &id
	}
	if filter.ApproverID != "" {
		id, err := parseID("approver_id", filter.ApproverID)
		if err != nil {
			return nil, 0, err
		}
		repoFilter.ApproverID = &id
	}

	approvals, total, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch approval requests: %w", err)
	}

	result := make([]ApprovalRequestResponse, 0, len(approvals))
	for _, a := range approvals {
		result = append(result, toApprovalResponse(a))
	}
	return result, total, nil
}

// --- Mutation plumbing ---

// change is what a mutation wants committed on top of the loaded aggregate
type change struct {
	state   workflow.State
	action  string // audit action
	event   string // published event
	level   int
	details map[string]interface{}
	note    *model.Comment
}

// mutate loads the request inside one transaction, lets decide compute the
// change and commits it with a version check. Nothing is written when decide or
// any write fails.
func (s *approvalService) mutate(ctx context.Context, op, id, actorID string,
	decide func(req *model.ApprovalRequest, actor uuid.UUID, now time.Time) (change, error),
) (resp ApprovalRequestResponse, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "approval."+op, map[string]string{"request_id": id, "actor_id": actorID})
	defer func() {
		tracing.EndSpan(span, err)
		outcome := "ok"
		if err != nil {
			outcome = workflow.Kind(err)
		}
		metrics.RecordOperation(op, outcome, time.Since(started).Seconds())
	}()

	requestID, err := parseID("request id", id)
	if err != nil {
		return ApprovalRequestResponse{}, err
	}
	actor, err := parseID("user id", actorID)
	if err != nil {
		return ApprovalRequestResponse{}, err
	}

	var committed model.ApprovalRequest
	var c change
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		approval, findErr := s.repo.FindByID(txCtx, requestID)
		if findErr != nil {
			return findErr
		}

		now := s.clock.Now()
		var decideErr error
		c, decideErr = decide(approval, actor, now)
		if decideErr != nil {
			return decideErr
		}

		expected := approval.Version
		approval.Status = c.state.Status
		approval.Assignments = c.state.Assignments
		if c.state.Consumed && approval.ConsumedAt == nil {
			approval.ConsumedAt = &now
		}
		approval.UpdatedAt = now
		if updateErr := s.repo.Update(txCtx, approval, expected); updateErr != nil {
			return updateErr
		}

		if c.note != nil {
			c.note.ID = uuid.New()
			c.note.RequestID = approval.ID
			c.note.AuthorID = actor
			c.note.CreatedAt = now
			if noteErr := s.comments.Create(txCtx, c.note); noteErr != nil {
				return fmt.Errorf("failed to write comment: %w", noteErr)
			}
		}

		if c.details == nil {
			c.details = map[string]interface{}{}
		}
		c.details["level"] = c.level
		c.details["status"] = approval.Status
		c.details["version"] = approval.Version
		if auditErr := s.writeAudit(txCtx, &actor, c.action, approval, c.details); auditErr != nil {
			return auditErr
		}

		committed = *approval
		return nil
	})
	if err != nil {
		if workflow.Kind(err) == "internal" {
			s.log.Error().Err(err).Str("request_id", id).Str("action", op).Msg("workflow operation failed")
		} else {
			s.log.LogRejected(id, op, err)
		}
		return ApprovalRequestResponse{}, err
	}

	s.log.LogTransition(committed.ID.String(), op, c.level, committed.Status, committed.Version)
	resp = toApprovalResponse(committed)
	s.events.Publish(c.event, resp)
	return resp, nil
}

func (s *approvalService) writeAudit(ctx context.Context, userID *uuid.UUID, action string, approval *model.ApprovalRequest, details map[string]interface{}) error {
	return recordAudit(ctx, s.audit, s.clock.Now(), userID, action, approval, details)
}

// recordAudit appends one audit entry for approval; callers run it inside the
// transaction of the change it describes.
func recordAudit(ctx context.Context, repo repository.AuditRepository, at time.Time, userID *uuid.UUID, action string, approval *model.ApprovalRequest, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry := model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   approval.ID.String(),
		EntityName: approval.Title,
		Details:    string(payload),
		CreatedAt:  at,
	}
	if err := repo.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// slotFor picks the level an approver's action addresses: their active slot if
// they own it, else their first pending slot, else their last decided slot.
// workflow.Apply then reports the precise reason an action is not allowed.
func slotFor(assignments []model.ApproverAssignment, approverID uuid.UUID) (int, error) {
	active := workflow.ActiveIndex(assignments)
	pending, decided := 0, 0
	for i, a := range assignments {
		if a.ApproverID != approverID {
			continue
		}
		if i == active {
			return a.Level, nil
		}
		if a.Status == model.AssignmentPending && pending == 0 {
			pending = a.Level
		}
		if a.IsDecided() {
			decided = a.Level
		}
	}
	switch {
	case pending > 0:
		return pending, nil
	case decided > 0:
		return decided, nil
	default:
		return 0, fmt.Errorf("%w: approver %s is not assigned to this request", workflow.ErrNotActive, approverID)
	}
}

// --- Helpers ---

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s: %v", workflow.ErrValidation, field, err)
	}
	return id, nil
}

func validType(t string) bool {
	switch t {
	case model.RequestTypeCodeComponent, model.RequestTypeBugFix, model.RequestTypeArchitectureChange,
		model.RequestTypeSolutionDeployment, model.RequestTypeReleaseApproval:
		return true
	}
	return false
}

func validPriority(p string) bool {
	switch p {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent:
		return true
	}
	return false
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toApprovalResponse(a model.ApprovalRequest) ApprovalRequestResponse {
	activeLevel := workflow.ActiveLevel(a.Status, a.Assignments)
	resp := ApprovalRequestResponse{
		ID:          a.ID.String(),
		Type:        a.Type,
		Title:       a.Title,
		Description: a.Description,
		Priority:    a.Priority,
		Status:      a.Status,
		RequesterID: a.RequesterID.String(),
		DueDate:     formatTime(a.DueDate),
		Metadata:    a.Metadata,
		Version:     a.Version,
		ActiveLevel: activeLevel,
		ConsumedAt:  formatTime(a.ConsumedAt),
		Assignments: make([]AssignmentResponse, 0, len(a.Assignments)),
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   a.UpdatedAt.Format(time.RFC3339),
	}

	for _, as := range a.Assignments {
		resp.Assignments = append(resp.Assignments, AssignmentResponse{
			ID:           as.ID.String(),
			ApproverID:   as.ApproverID.String(),
			Level:        as.Level,
			TimeoutHours: as.TimeoutHours,
			Status:       as.Status,
			Active:       activeLevel != 0 && as.Level == activeLevel,
			AssignedAt:   as.AssignedAt.Format(time.RFC3339),
			ActivatedAt:  formatTime(as.ActivatedAt),
			RespondedAt:  formatTime(as.RespondedAt),
			DecidedAt:    formatTime(as.DecidedAt),
			Comment:      as.Comment,
		})
	}

	return resp
}
