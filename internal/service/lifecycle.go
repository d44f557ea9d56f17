package service

import (
	"context"
	"fmt"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
)

func requireRequester(approval *model.ApprovalRequest, actor uuid.UUID) error {
	if approval.RequesterID != actor {
		return fmt.Errorf("%w: only the requester can do this", workflow.ErrNotOwner)
	}
	return nil
}

// SubmitRequest moves a draft into the chain and activates level 1.
func (s *approvalService) SubmitRequest(ctx context.Context, id, requesterID string) (ApprovalRequestResponse, error) {
	return s.mutate(ctx, "submit", id, requesterID, func(approval *model.ApprovalRequest, actor uuid.UUID, now time.Time) (change, error) {
		if err := requireRequester(approval, actor); err != nil {
			return change{}, err
		}
		next, err := workflow.Apply(workflow.StateOf(approval), workflow.Event{Type: workflow.EventSubmit, At: now})
		if err != nil {
			return change{}, err
		}
		return change{state: next, action: model.ActionSubmitRequest, event: EventRequestSubmitted, level: 1}, nil
	})
}

// WithdrawRequest is the requester's cancellation of the whole request.
func (s *approvalService) WithdrawRequest(ctx context.Context, id, requesterID string, reason *string) (ApprovalRequestResponse, error) {
	return s.mutate(ctx, "withdraw", id, requesterID, func(approval *model.ApprovalRequest, actor uuid.UUID, now time.Time) (change, error) {
		if err := requireRequester(approval, actor); err != nil {
			return change{}, err
		}
		state := workflow.StateOf(approval)
		level := workflow.ActiveLevel(state.Status, state.Assignments)
		next, err := workflow.Apply(state, workflow.Event{Type: workflow.EventWithdraw, At: now})
		if err != nil {
			return change{}, err
		}
		c := change{state: next, action: model.ActionWithdrawRequest, event: EventRequestWithdrawn, level: level,
			details: map[string]interface{}{"previous_status": approval.Status}}
		if reason != nil && *reason != "" {
			c.details["reason"] = *reason
			c.note = &model.Comment{Content: "Request withdrawn: " + *reason}
		}
		return c, nil
	})
}

// RequestRevision lets the active approver halt the chain and send the request back.
func (s *approvalService) RequestRevision(ctx context.Context, id, approverID string, comment *string) (ApprovalRequestResponse, error) {
	return s.mutate(ctx, "request_revision", id, approverID, func(approval *model.ApprovalRequest, actor uuid.UUID, now time.Time) (change, error) {
		state := workflow.StateOf(approval)
		level, err := slotFor(state.Assignments, actor)
		if err != nil {
			return change{}, err
		}
		next, err := workflow.Apply(state, workflow.Event{Type: workflow.EventRequestRevision, Level: level, At: now})
		if err != nil {
			return change{}, err
		}
		c := change{state: next, action: model.ActionRequestRevision, event: EventRevisionRequested, level: level}
		if comment != nil && *comment != "" {
			c.note = &model.Comment{Content: *comment}
		}
		return c, nil
	})
}

// ResubmitRequest restarts the chain from level 1 after a revision.
func (s *approvalService) ResubmitRequest(ctx context.Context, id, requesterID string) (ApprovalRequestResponse, error) {
	return s.mutate(ctx, "resubmit", id, requesterID, func(approval *model.ApprovalRequest, actor uuid.UUID, now time.Time) (change, error) {
		if err := requireRequester(approval, actor); err != nil {
			return change{}, err
		}
		next, err := workflow.Apply(workflow.StateOf(approval), workflow.Event{Type: workflow.EventResubmit, At: now})
		if err != nil {
			return change{}, err
		}
		return change{state: next, action: model.ActionResubmitRequest, event: EventRequestResubmitted, level: 1}, nil
	})
}

// MarkConsumed records that a downstream system acted on the final outcome.
// From then on no decision on the request can be cancelled.
func (s *approvalService) MarkConsumed(ctx context.Context, id, actorID string) (ApprovalRequestResponse, error) {
	return s.mutate(ctx, "consume", id, actorID, func(approval *model.ApprovalRequest, actor uuid.UUID, now time.Time) (change, error) {
		if approval.Status != model.StatusApproved && approval.Status != model.StatusRejected {
			return change{}, fmt.Errorf("%w: only approved or rejected requests can be consumed, request is %s", workflow.ErrInvalidState, approval.Status)
		}
		if approval.ConsumedAt != nil {
			return change{}, fmt.Errorf("%w: request was already consumed", workflow.ErrInvalidState)
		}
		state := workflow.StateOf(approval)
		state.Consumed = true
		return change{state: state, action: model.ActionConsumeRequest, event: EventRequestConsumed}, nil
	})
}
