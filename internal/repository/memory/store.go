// Package memory is a process-local implementation of the repository interfaces.
// Transactions serialize on a single lock and roll back by restoring a snapshot.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type txKey struct{}

// Store holds requests, comments and audit entries
type Store struct {
	mu       sync.Mutex
	requests map[uuid.UUID]model.ApprovalRequest
	comments []model.Comment
	audits   []model.AuditLog
}

func New() *Store {
	return &Store{requests: make(map[uuid.UUID]model.ApprovalRequest)}
}

// RunInTx implements repository.TransactionManager
func (s *Store) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requests := make(map[uuid.UUID]model.ApprovalRequest, len(s.requests))
	for id, r := range s.requests {
		requests[id] = r
	}
	comments, audits := len(s.comments), len(s.audits)

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.requests = requests
		s.comments = s.comments[:comments]
		s.audits = s.audits[:audits]
		return err
	}
	return nil
}

func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Approvals returns the request repository view of the store
func (s *Store) Approvals() repository.ApprovalRepository { return approvals{s} }

// Comments returns the comment repository view of the store
func (s *Store) Comments() repository.CommentRepository { return comments{s} }

// Audit returns the audit repository view of the store
func (s *Store) Audit() repository.AuditRepository { return audits{s} }

func cloneRequest(r model.ApprovalRequest) model.ApprovalRequest {
	out := r
	out.Comments = nil
	if r.Assignments != nil {
		out.Assignments = make([]model.ApproverAssignment, len(r.Assignments))
		copy(out.Assignments, r.Assignments)
	}
	if r.Metadata != nil {
		out.Metadata = make(datatypes.JSONMap, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

type approvals struct{ s *Store }

func (a approvals) Create(ctx context.Context, req *model.ApprovalRequest) error {
	defer a.s.lock(ctx)()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if _, exists := a.s.requests[req.ID]; exists {
		return fmt.Errorf("approval request %s already exists", req.ID)
	}
	if req.Version == 0 {
		req.Version = 1
	}
	for i := range req.Assignments {
		if req.Assignments[i].ID == uuid.Nil {
			req.Assignments[i].ID = uuid.New()
		}
		req.Assignments[i].RequestID = req.ID
	}
	a.s.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (a approvals) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error) {
	defer a.s.lock(ctx)()
	r, ok := a.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: approval request %s", workflow.ErrNotFound, id)
	}
	out := cloneRequest(r)
	workflow.SortByLevel(out.Assignments)
	return &out, nil
}

func (a approvals) List(ctx context.Context, filter repository.RequestFilter) ([]model.ApprovalRequest, int64, error) {
	defer a.s.lock(ctx)()
	var matched []model.ApprovalRequest
	for _, r := range a.s.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.RequesterID != nil && r.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.ApproverID != nil && !hasApprover(r, *filter.ApproverID) {
			continue
		}
		matched = append(matched, cloneRequest(r))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= len(matched) {
		return []model.ApprovalRequest{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (a approvals) ListActive(ctx context.Context) ([]model.ApprovalRequest, error) {
	defer a.s.lock(ctx)()
	var out []model.ApprovalRequest
	for _, r := range a.s.requests {
		if r.Status == model.StatusPending || r.Status == model.StatusInReview {
			c := cloneRequest(r)
			workflow.SortByLevel(c.Assignments)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (a approvals) Update(ctx context.Context, req *model.ApprovalRequest, expectedVersion int64) error {
	defer a.s.lock(ctx)()
	stored, ok := a.s.requests[req.ID]
	if !ok {
		return fmt.Errorf("%w: approval request %s", workflow.ErrNotFound, req.ID)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: approval request %s changed since version %d", workflow.ErrConflict, req.ID, expectedVersion)
	}
	req.Version = expectedVersion + 1
	a.s.requests[req.ID] = cloneRequest(*req)
	return nil
}

func hasApprover(r model.ApprovalRequest, approverID uuid.UUID) bool {
	for _, a := range r.Assignments {
		if a.ApproverID == approverID {
			return true
		}
	}
	return false
}

type comments struct{ s *Store }

func (c comments) Create(ctx context.Context, comment *model.Comment) error {
	defer c.s.lock(ctx)()
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	c.s.comments = append(c.s.comments, *comment)
	return nil
}

func (c comments) ListByRequest(ctx context.Context, requestID uuid.UUID, includeInternal bool) ([]model.Comment, error) {
	defer c.s.lock(ctx)()
	out := []model.Comment{}
	for _, cm := range c.s.comments {
		if cm.RequestID != requestID || (cm.IsInternal && !includeInternal) {
			continue
		}
		out = append(out, cm)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type audits struct{ s *Store }

func (a audits) Log(ctx context.Context, entry *model.AuditLog) error {
	defer a.s.lock(ctx)()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	a.s.audits = append(a.s.audits, *entry)
	return nil
}

func (a audits) List(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	defer a.s.lock(ctx)()
	var matched []model.AuditLog
	for i := len(a.s.audits) - 1; i >= 0; i-- {
		if entityID == "" || a.s.audits[i].EntityID == entityID {
			matched = append(matched, a.s.audits[i])
		}
	}
	total := int64(len(matched))
	start := (page - 1) * limit
	if start < 0 || start >= len(matched) {
		return []model.AuditLog{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
