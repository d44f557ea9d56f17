package service_test

import (
	"context"
	"errors"
	"testing"

	"approvalflow/internal/directory"
	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	"approvalflow/internal/service"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staleReads hands out a snapshot taken before a competing writer committed,
// the way a concurrent transaction sees the row it loaded earlier.
type staleReads struct {
	repository.ApprovalRepository
	snapshot *model.ApprovalRequest
}

func (r *staleReads) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error) {
	if r.snapshot != nil && r.snapshot.ID == id {
		out := *r.snapshot
		out.Assignments = append([]model.ApproverAssignment(nil), r.snapshot.Assignments...)
		r.snapshot = nil
		return &out, nil
	}
	return r.ApprovalRepository.FindByID(ctx, id)
}

func TestCancelLosingToRespondConflicts(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)
	requestID := uuid.MustParse(req.ID)

	_, err := h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	loaded, err := h.store.Approvals().FindByID(h.ctx, requestID)
	require.NoError(t, err)

	// bob commits while alice's cancel still holds the older version
	_, err = h.respond(req.ID, h.bob, "approve")
	require.NoError(t, err)

	_, auditsBefore, err := h.audit.GetAuditLogs(h.ctx, req.ID, 1, 1)
	require.NoError(t, err)

	deps := h.deps
	deps.Requests = &staleReads{ApprovalRepository: h.store.Approvals(), snapshot: loaded}
	racing := service.NewApprovalService(deps)

	_, err = racing.CancelDecision(h.ctx, req.ID, h.alice.String(), strPtr("wrong build"))
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrConflict)
	assert.True(t, workflow.Retryable(err))

	detail, err := h.approval.GetRequestDetail(h.ctx, req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.Request.Version)
	assert.Equal(t, model.StatusApproved, detail.Request.Status)
	assert.Equal(t, model.AssignmentApproved, detail.Assignments[0].Status)
	assert.Empty(t, detail.Comments)

	_, auditsAfter, err := h.audit.GetAuditLogs(h.ctx, req.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, auditsBefore, auditsAfter)
	assert.NotContains(t, h.events.names(), service.EventDecisionCancelled)
}

func TestRespondLosingToCancelConflicts(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)
	requestID := uuid.MustParse(req.ID)

	_, err := h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	loaded, err := h.store.Approvals().FindByID(h.ctx, requestID)
	require.NoError(t, err)

	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	require.NoError(t, err)

	deps := h.deps
	deps.Requests = &staleReads{ApprovalRepository: h.store.Approvals(), snapshot: loaded}
	racing := service.NewApprovalService(deps)

	_, err = racing.Respond(h.ctx, req.ID, h.bob.String(), service.RespondDTO{Action: "approve", Comment: strPtr("ship it")})
	assert.ErrorIs(t, err, workflow.ErrConflict)

	detail, err := h.approval.GetRequestDetail(h.ctx, req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.Request.Version)
	assert.Equal(t, model.StatusInReview, detail.Request.Status)
	assert.Equal(t, model.AssignmentPending, detail.Assignments[1].Status)
	assert.Nil(t, detail.Assignments[1].Comment)
}

type unreachableDirectory struct{}

func (unreachableDirectory) Resolve(context.Context, uuid.UUID) (*directory.Approver, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestCreateRequestDirectoryOutageIsInternal(t *testing.T) {
	h := newHarness(t)
	deps := h.deps
	deps.Directory = unreachableDirectory{}
	svc := service.NewApprovalService(deps)

	_, err := svc.CreateRequest(h.ctx, service.CreateApprovalRequestDTO{
		Title:       "Hotfix login timeout",
		Type:        model.RequestTypeBugFix,
		RequesterID: h.requester.String(),
		Approvers:   []service.ApproverInput{approver(h.alice, 1, 4)},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, workflow.ErrValidation)
	assert.Equal(t, "internal", workflow.Kind(err))
	assert.Contains(t, err.Error(), "connection refused")
}
