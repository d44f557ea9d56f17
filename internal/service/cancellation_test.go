package service_test

import (
	"testing"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/service"
	"approvalflow/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelDecisionInsideWindow(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	_, err := h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	h.clock.Advance(23*time.Hour + 59*time.Minute)
	got, err := h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), strPtr("approved the wrong build"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusInReview, got.Status)
	assert.Equal(t, 1, got.ActiveLevel)
	assert.Equal(t, model.AssignmentPending, got.Assignments[0].Status)
	assert.Nil(t, got.Assignments[0].DecidedAt)
	assert.Nil(t, got.Assignments[0].Comment)
	assert.Nil(t, got.Assignments[1].ActivatedAt)

	_, err = h.respond(req.ID, h.bob, "approve")
	assert.ErrorIs(t, err, workflow.ErrNotActive)

	detail, err := h.approval.GetRequestDetail(h.ctx, req.ID, false)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Contains(t, detail.Comments[0].Content, "approved the wrong build")

	logs, _, err := h.audit.GetAuditLogs(h.ctx, req.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ActionCancelDecision, logs[0].Action)
	assert.Contains(t, h.events.names(), service.EventDecisionCancelled)
}

func TestCancelDecisionWindowBoundary(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	_, err := h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	require.NoError(t, err, "exactly 24h is still inside the window")

	_, err = h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	h.clock.Advance(24*time.Hour + time.Minute)
	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrWindowExpired)

	detail, err := h.approval.GetRequestDetail(h.ctx, req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentApproved, detail.Assignments[0].Status)
}

func TestCancelDecisionOwnership(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	_, err := h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrNotOwner, "nothing decided yet")

	_, err = h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.carol.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrNotOwner)
	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.bob.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrNotOwner)
}

func TestCancelDecisionAfterDownstreamProgress(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	_, err := h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)
	_, err = h.respond(req.ID, h.bob, "approve")
	require.NoError(t, err)

	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrIrreversibleState)

	// The last decider can still reopen a final approval
	got, err := h.approval.CancelDecision(h.ctx, req.ID, h.bob.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInReview, got.Status)
	assert.Equal(t, 2, got.ActiveLevel)
}

func TestCancelRejectionReopensChain(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	_, err := h.respond(req.ID, h.alice, "reject")
	require.NoError(t, err)

	got, err := h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInReview, got.Status)
	assert.Equal(t, 1, got.ActiveLevel)
}

func TestConsumedOutcomeIsFinal(t *testing.T) {
	h := newHarness(t)
	req := h.create(t, approver(h.alice, 1, 8))

	_, err := h.approval.MarkConsumed(h.ctx, req.ID, h.requester.String())
	assert.ErrorIs(t, err, workflow.ErrInvalidState, "pending requests cannot be consumed")

	_, err = h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	got, err := h.approval.MarkConsumed(h.ctx, req.ID, h.requester.String())
	require.NoError(t, err)
	assert.NotNil(t, got.ConsumedAt)

	_, err = h.approval.MarkConsumed(h.ctx, req.ID, h.requester.String())
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrIrreversibleState)
}
