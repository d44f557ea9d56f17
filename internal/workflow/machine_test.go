package workflow_test

import (
	"testing"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func chain(levels ...int) []model.ApproverAssignment {
	out := make([]model.ApproverAssignment, 0, len(levels))
	for _, l := range levels {
		out = append(out, model.ApproverAssignment{
			ID:           uuid.New(),
			ApproverID:   uuid.New(),
			Level:        l,
			TimeoutHours: 8,
			Status:       model.AssignmentPending,
			AssignedAt:   t0,
		})
	}
	return out
}

func pendingState(levels ...int) workflow.State {
	s, err := workflow.Apply(workflow.State{Status: model.StatusDraft, Assignments: chain(levels...)},
		workflow.Event{Type: workflow.EventSubmit, At: t0})
	if err != nil {
		panic(err)
	}
	return s
}

func TestValidateChain(t *testing.T) {
	tests := []struct {
		name    string
		chain   []model.ApproverAssignment
		wantErr bool
	}{
		{name: "single level", chain: chain(1)},
		{name: "unordered but contiguous", chain: chain(2, 1, 3)},
		{name: "empty", chain: nil, wantErr: true},
		{name: "gap", chain: chain(1, 3), wantErr: true},
		{name: "starts at two", chain: chain(2, 3), wantErr: true},
		{name: "duplicate", chain: chain(1, 1), wantErr: true},
		{name: "zero level", chain: chain(0, 1), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := workflow.ValidateChain(tc.chain)
			if tc.wantErr {
				assert.ErrorIs(t, err, workflow.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}

	bad := chain(1)
	bad[0].TimeoutHours = 0
	assert.ErrorIs(t, workflow.ValidateChain(bad), workflow.ErrValidation)
}

func TestSubmitActivatesFirstLevel(t *testing.T) {
	s := pendingState(1, 2)

	assert.Equal(t, model.StatusPending, s.Status)
	require.NotNil(t, s.Assignments[0].ActivatedAt)
	assert.Nil(t, s.Assignments[1].ActivatedAt)
	assert.Equal(t, 1, workflow.ActiveLevel(s.Status, s.Assignments))
}

func TestSequentialApproval(t *testing.T) {
	s := pendingState(1, 2)

	s, err := workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 1, At: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInReview, s.Status)
	assert.Equal(t, 2, workflow.ActiveLevel(s.Status, s.Assignments))
	require.NotNil(t, s.Assignments[1].ActivatedAt)
	assert.Equal(t, t0.Add(time.Hour), *s.Assignments[1].ActivatedAt)

	s, err = workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 2, At: t0.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, s.Status)
	assert.Equal(t, 0, workflow.ActiveLevel(s.Status, s.Assignments))
	for _, a := range s.Assignments {
		assert.NotNil(t, a.DecidedAt)
		assert.NotNil(t, a.RespondedAt)
	}
}

func TestRejectShortCircuits(t *testing.T) {
	s := pendingState(1, 2)
	reason := "missing tests"

	s, err := workflow.Apply(s, workflow.Event{Type: workflow.EventReject, Level: 1, At: t0, Comment: &reason})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, s.Status)
	assert.Equal(t, model.AssignmentRejected, s.Assignments[0].Status)
	assert.Equal(t, reason, *s.Assignments[0].Comment)
	assert.Equal(t, model.AssignmentPending, s.Assignments[1].Status)
	assert.Nil(t, s.Assignments[1].DecidedAt)
	assert.Nil(t, s.Assignments[1].ActivatedAt)

	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 2, At: t0})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestDecideErrors(t *testing.T) {
	s := pendingState(1, 2)

	_, err := workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 2, At: t0})
	assert.ErrorIs(t, err, workflow.ErrNotActive)

	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 7, At: t0})
	assert.ErrorIs(t, err, workflow.ErrNotActive)

	s, err = workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 1, At: t0})
	require.NoError(t, err)
	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 1, At: t0})
	assert.ErrorIs(t, err, workflow.ErrAlreadyDecided)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := pendingState(1, 2)
	before := s.Assignments[0]

	_, err := workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 1, At: t0})
	require.NoError(t, err)
	assert.Equal(t, before, s.Assignments[0])
	assert.Equal(t, model.StatusPending, s.Status)
}

func TestRevert(t *testing.T) {
	s := pendingState(1, 2, 3)
	s, err := workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 1, At: t0})
	require.NoError(t, err)

	reverted, err := workflow.Apply(s, workflow.Event{Type: workflow.EventRevert, Level: 1, At: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInReview, reverted.Status)
	assert.Equal(t, 1, workflow.ActiveLevel(reverted.Status, reverted.Assignments))
	assert.Equal(t, model.AssignmentPending, reverted.Assignments[0].Status)
	assert.Nil(t, reverted.Assignments[0].DecidedAt)
	assert.Nil(t, reverted.Assignments[0].RespondedAt)
	assert.Nil(t, reverted.Assignments[1].ActivatedAt)

	s, err = workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 2, At: t0})
	require.NoError(t, err)
	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventRevert, Level: 1, At: t0})
	assert.ErrorIs(t, err, workflow.ErrIrreversibleState)

	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventRevert, Level: 3, At: t0})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestRevertTerminalDecisions(t *testing.T) {
	s := pendingState(1)
	s, err := workflow.Apply(s, workflow.Event{Type: workflow.EventReject, Level: 1, At: t0})
	require.NoError(t, err)

	reopened, err := workflow.Apply(s, workflow.Event{Type: workflow.EventRevert, Level: 1, At: t0})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInReview, reopened.Status)

	s.Consumed = true
	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventRevert, Level: 1, At: t0})
	assert.ErrorIs(t, err, workflow.ErrIrreversibleState)
}

func TestRevisionCycle(t *testing.T) {
	s := pendingState(1, 2)
	s, err := workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 1, At: t0})
	require.NoError(t, err)

	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventRequestRevision, Level: 1, At: t0})
	assert.ErrorIs(t, err, workflow.ErrNotActive)

	s, err = workflow.Apply(s, workflow.Event{Type: workflow.EventRequestRevision, Level: 2, At: t0})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsRevision, s.Status)

	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: 2, At: t0})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventRevert, Level: 1, At: t0})
	assert.ErrorIs(t, err, workflow.ErrIrreversibleState)

	later := t0.Add(48 * time.Hour)
	s, err = workflow.Apply(s, workflow.Event{Type: workflow.EventResubmit, At: later})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, s.Status)
	assert.Equal(t, model.AssignmentPending, s.Assignments[0].Status)
	assert.Equal(t, later, *s.Assignments[0].ActivatedAt)
	assert.Nil(t, s.Assignments[1].ActivatedAt)
}

func TestWithdraw(t *testing.T) {
	s := pendingState(1, 2)
	s, err := workflow.Apply(s, workflow.Event{Type: workflow.EventWithdraw, At: t0})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, s.Status)

	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventWithdraw, At: t0})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
	_, err = workflow.Apply(s, workflow.Event{Type: workflow.EventRevert, Level: 1, At: t0})
	assert.ErrorIs(t, err, workflow.ErrIrreversibleState)
}

func TestSingleTerminalStatus(t *testing.T) {
	s := pendingState(1, 2, 3)
	var err error
	for level := 1; level <= 3; level++ {
		s, err = workflow.Apply(s, workflow.Event{Type: workflow.EventApprove, Level: level, At: t0})
		require.NoError(t, err)
	}
	assert.Equal(t, model.StatusApproved, s.Status)

	for _, ev := range []workflow.EventType{workflow.EventApprove, workflow.EventReject, workflow.EventWithdraw} {
		_, err = workflow.Apply(s, workflow.Event{Type: ev, Level: 3, At: t0})
		assert.Error(t, err, string(ev))
	}
}

func TestWithinWindow(t *testing.T) {
	assert.True(t, workflow.WithinWindow(t0, t0.Add(23*time.Hour+59*time.Minute), workflow.DefaultCancelWindow))
	assert.True(t, workflow.WithinWindow(t0, t0.Add(24*time.Hour), workflow.DefaultCancelWindow))
	assert.False(t, workflow.WithinWindow(t0, t0.Add(24*time.Hour+time.Minute), workflow.DefaultCancelWindow))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "conflict", workflow.Kind(workflow.ErrConflict))
	assert.Equal(t, "internal", workflow.Kind(assert.AnError))
	assert.True(t, workflow.Retryable(workflow.ErrConflict))
	assert.False(t, workflow.Retryable(workflow.ErrNotActive))
}
