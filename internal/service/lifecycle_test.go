package service_test

import (
	"testing"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevisionCycle(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	_, err := h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	_, err = h.approval.RequestRevision(h.ctx, req.ID, h.alice.String(), nil)
	assert.Error(t, err, "alice no longer holds the active level")

	got, err := h.approval.RequestRevision(h.ctx, req.ID, h.bob.String(), strPtr("split the migration out"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsRevision, got.Status)
	assert.Equal(t, 0, got.ActiveLevel)

	_, err = h.respond(req.ID, h.bob, "approve")
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrIrreversibleState)

	_, err = h.approval.ResubmitRequest(h.ctx, req.ID, h.bob.String())
	assert.ErrorIs(t, err, workflow.ErrNotOwner)

	h.clock.Advance(48 * time.Hour)
	got, err = h.approval.ResubmitRequest(h.ctx, req.ID, h.requester.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, 1, got.ActiveLevel)
	for _, a := range got.Assignments {
		assert.Equal(t, model.AssignmentPending, a.Status)
		assert.Nil(t, a.DecidedAt)
	}

	detail, err := h.approval.GetRequestDetail(h.ctx, req.ID, false)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "split the migration out", detail.Comments[0].Content)
	assert.Equal(t, h.bob.String(), detail.Comments[0].AuthorID)
}

func TestWithdrawRequest(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	_, err := h.respond(req.ID, h.alice, "approve")
	require.NoError(t, err)

	_, err = h.approval.WithdrawRequest(h.ctx, req.ID, h.alice.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrNotOwner)

	got, err := h.approval.WithdrawRequest(h.ctx, req.ID, h.requester.String(), strPtr("superseded by #812"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	_, err = h.approval.WithdrawRequest(h.ctx, req.ID, h.requester.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
	_, err = h.respond(req.ID, h.bob, "approve")
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
	_, err = h.approval.CancelDecision(h.ctx, req.ID, h.alice.String(), nil)
	assert.ErrorIs(t, err, workflow.ErrIrreversibleState)
}
