package service

import (
	"context"
	"fmt"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
)

// Respond records an approve or reject from the approver holding the active level.
func (s *approvalService) Respond(ctx context.Context, id, approverID string, req RespondDTO) (ApprovalRequestResponse, error) {
	var evType workflow.EventType
	var action string
	switch req.Action {
	case string(workflow.EventApprove):
		evType, action = workflow.EventApprove, model.ActionApproveRequest
	case string(workflow.EventReject):
		evType, action = workflow.EventReject, model.ActionRejectRequest
	default:
		return ApprovalRequestResponse{}, fmt.Errorf("%w: action must be approve or reject, got %q", workflow.ErrValidation, req.Action)
	}

	return s.mutate(ctx, "respond", id, approverID, func(approval *model.ApprovalRequest, actor uuid.UUID, now time.Time) (change, error) {
		state := workflow.StateOf(approval)
		level, err := slotFor(state.Assignments, actor)
		if err != nil {
			return change{}, err
		}

		next, err := workflow.Apply(state, workflow.Event{Type: evType, Level: level, At: now, Comment: req.Comment})
		if err != nil {
			return change{}, err
		}

		return change{
			state:  next,
			action: action,
			event:  EventRequestDecided,
			level:  level,
			details: map[string]interface{}{
				"decision":    req.Action,
				"approver_id": actor.String(),
			},
		}, nil
	})
}
