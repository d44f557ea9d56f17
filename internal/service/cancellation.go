package service

import (
	"context"
	"fmt"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
)

// CancelDecision reverts the caller's own most recent decision while it is
// inside the cancellation window and no later level has acted on it. The chain
// reopens at that level and any level it had activated is deactivated again.
func (s *approvalService) CancelDecision(ctx context.Context, id, approverID string, reason *string) (ApprovalRequestResponse, error) {
	return s.mutate(ctx, "cancel", id, approverID, func(approval *model.ApprovalRequest, actor uuid.UUID, now time.Time) (change, error) {
		state := workflow.StateOf(approval)

		var decision *model.ApproverAssignment
		for i := range state.Assignments {
			a := &state.Assignments[i]
			if a.ApproverID == actor && a.IsDecided() {
				decision = a
			}
		}
		if decision == nil {
			return change{}, fmt.Errorf("%w: %s has no decision on this request", workflow.ErrNotOwner, actor)
		}
		if decision.DecidedAt == nil || !workflow.WithinWindow(*decision.DecidedAt, now, s.window) {
			return change{}, fmt.Errorf("%w: level %d was decided more than %s ago", workflow.ErrWindowExpired, decision.Level, s.window)
		}

		level, previous := decision.Level, decision.Status
		next, err := workflow.Apply(state, workflow.Event{Type: workflow.EventRevert, Level: level, At: now})
		if err != nil {
			return change{}, err
		}

		c := change{
			state:  next,
			action: model.ActionCancelDecision,
			event:  EventDecisionCancelled,
			level:  level,
			details: map[string]interface{}{
				"reverted_decision": previous,
				"previous_status":   approval.Status,
			},
		}
		if reason != nil && *reason != "" {
			c.details["reason"] = *reason
			c.note = &model.Comment{Content: fmt.Sprintf("Decision at level %d cancelled: %s", level, *reason)}
		}
		return c, nil
	})
}
