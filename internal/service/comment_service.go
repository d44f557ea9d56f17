package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"approvalflow/internal/clock"
	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
)

type AddCommentDTO struct {
	Content    string `json:"content" binding:"required"`
	IsInternal bool   `json:"is_internal"`
	AuthorID   string `json:"-"`
}

type CommentResponse struct {
	ID         string `json:"id"`
	RequestID  string `json:"request_id"`
	AuthorID   string `json:"author_id"`
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
	CreatedAt  string `json:"created_at"`
}

// CommentService appends to and reads the discussion log of a request.
// Comments never affect decision state.
type CommentService interface {
	AddComment(ctx context.Context, requestID string, req AddCommentDTO) (CommentResponse, error)
	ListComments(ctx context.Context, requestID string, includeInternal bool) ([]CommentResponse, error)
}

type commentService struct {
	requests repository.ApprovalRepository
	comments repository.CommentRepository
	audit    repository.AuditRepository
	tx       repository.TransactionManager
	clock    clock.Clock
	events   Publisher
}

func NewCommentService(deps ApprovalDeps) CommentService {
	s := &commentService{
		requests: deps.Requests,
		comments: deps.Comments,
		audit:    deps.Audit,
		tx:       deps.Tx,
		clock:    deps.Clock,
		events:   deps.Events,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	return s
}

func (s *commentService) AddComment(ctx context.Context, requestID string, req AddCommentDTO) (CommentResponse, error) {
	id, err := parseID("request id", requestID)
	if err != nil {
		return CommentResponse{}, err
	}
	author, err := parseID("author id", req.AuthorID)
	if err != nil {
		return CommentResponse{}, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return CommentResponse{}, fmt.Errorf("%w: comment content is required", workflow.ErrValidation)
	}

	comment := model.Comment{
		ID:         uuid.New(),
		RequestID:  id,
		AuthorID:   author,
		Content:    content,
		IsInternal: req.IsInternal,
		CreatedAt:  s.clock.Now(),
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		approval, findErr := s.requests.FindByID(txCtx, id)
		if findErr != nil {
			return findErr
		}
		if createErr := s.comments.Create(txCtx, &comment); createErr != nil {
			return fmt.Errorf("failed to create comment: %w", createErr)
		}
		return recordAudit(txCtx, s.audit, comment.CreatedAt, &author, model.ActionAddComment, approval, map[string]interface{}{
			"comment_id":  comment.ID.String(),
			"is_internal": comment.IsInternal,
		})
	})
	if err != nil {
		return CommentResponse{}, err
	}

	resp := toCommentResponse(comment)
	s.events.Publish(EventCommentAdded, broadcastView(resp))
	return resp, nil
}

func (s *commentService) ListComments(ctx context.Context, requestID string, includeInternal bool) ([]CommentResponse, error) {
	id, err := parseID("request id", requestID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requests.FindByID(ctx, id); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByRequest(ctx, id, includeInternal)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}
	res := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		res = append(res, toCommentResponse(c))
	}
	return res, nil
}

// broadcastView is what subscribers see of a new comment. The hub does not
// check approvals.decide, so internal content stays out of the payload.
func broadcastView(c CommentResponse) CommentResponse {
	if c.IsInternal {
		c.Content = ""
	}
	return c
}

func toCommentResponse(c model.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID.String(),
		RequestID:  c.RequestID.String(),
		AuthorID:   c.AuthorID.String(),
		Content:    c.Content,
		IsInternal: c.IsInternal,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}
