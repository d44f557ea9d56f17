package workflow

import (
	"fmt"
	"time"

	"approvalflow/internal/model"
)

// EventType names a transition of the request state machine
type EventType string

const (
	EventSubmit          EventType = "submit"
	EventApprove         EventType = "approve"
	EventReject          EventType = "reject"
	EventRevert          EventType = "revert"
	EventRequestRevision EventType = "request_revision"
	EventResubmit        EventType = "resubmit"
	EventWithdraw        EventType = "withdraw"
)

// Event is one input to Apply. Level addresses the assignment the event acts on
// (approve, reject, revert, request_revision); it is ignored otherwise.
type Event struct {
	Type    EventType
	Level   int
	At      time.Time
	Comment *string
}

// State is the part of a request the machine reasons about.
type State struct {
	Status      string
	Consumed    bool
	Assignments []model.ApproverAssignment
}

// StateOf copies the workflow-relevant fields of req, assignments sorted by level.
func StateOf(req *model.ApprovalRequest) State {
	s := State{
		Status:      req.Status,
		Consumed:    req.ConsumedAt != nil,
		Assignments: cloneAssignments(req.Assignments),
	}
	SortByLevel(s.Assignments)
	return s
}

// Apply computes the next state for ev. It never mutates s; on error the
// returned state is the zero value and s is still authoritative.
func Apply(s State, ev Event) (State, error) {
	next := State{
		Status:      s.Status,
		Consumed:    s.Consumed,
		Assignments: cloneAssignments(s.Assignments),
	}
	SortByLevel(next.Assignments)

	var err error
	switch ev.Type {
	case EventSubmit:
		err = next.submit(ev)
	case EventApprove, EventReject:
		err = next.decide(ev)
	case EventRevert:
		err = next.revert(ev)
	case EventRequestRevision:
		err = next.requestRevision(ev)
	case EventResubmit:
		err = next.resubmit(ev)
	case EventWithdraw:
		err = next.withdraw()
	default:
		err = fmt.Errorf("%w: unknown event %q", ErrValidation, ev.Type)
	}
	if err != nil {
		return State{}, err
	}
	return next, nil
}

func (s *State) submit(ev Event) error {
	if s.Status != model.StatusDraft {
		return fmt.Errorf("%w: cannot submit a %s request", ErrInvalidState, s.Status)
	}
	s.resetChain(ev.At)
	s.Status = model.StatusPending
	return nil
}

func (s *State) decide(ev Event) error {
	idx := s.indexOf(ev.Level)
	if idx < 0 {
		return fmt.Errorf("%w: no assignment at level %d", ErrNotActive, ev.Level)
	}
	target := &s.Assignments[idx]
	if target.IsDecided() {
		return fmt.Errorf("%w: level %d is already %s", ErrAlreadyDecided, ev.Level, target.Status)
	}
	if s.Status != model.StatusPending && s.Status != model.StatusInReview {
		return fmt.Errorf("%w: request is %s", ErrInvalidState, s.Status)
	}
	if active := ActiveIndex(s.Assignments); active != idx {
		return fmt.Errorf("%w: level %d is not the active level", ErrNotActive, ev.Level)
	}

	at := ev.At
	target.RespondedAt = &at
	target.DecidedAt = &at
	target.Comment = ev.Comment

	if ev.Type == EventReject {
		target.Status = model.AssignmentRejected
		s.Status = model.StatusRejected
		return nil
	}

	target.Status = model.AssignmentApproved
	if idx+1 < len(s.Assignments) {
		s.Assignments[idx+1].ActivatedAt = &at
	}
	s.Status = Derive(s.Assignments)
	return nil
}

func (s *State) revert(ev Event) error {
	switch {
	case s.Status == model.StatusCancelled:
		return fmt.Errorf("%w: request was withdrawn", ErrIrreversibleState)
	case s.Status == model.StatusNeedsRevision:
		return fmt.Errorf("%w: request is awaiting revision", ErrIrreversibleState)
	case s.Status == model.StatusDraft:
		return fmt.Errorf("%w: request has not been submitted", ErrInvalidState)
	case s.Consumed:
		return fmt.Errorf("%w: outcome already consumed downstream", ErrIrreversibleState)
	}

	idx := s.indexOf(ev.Level)
	if idx < 0 || !s.Assignments[idx].IsDecided() {
		return fmt.Errorf("%w: level %d has no decision to revert", ErrInvalidState, ev.Level)
	}
	for i := idx + 1; i < len(s.Assignments); i++ {
		if s.Assignments[i].IsDecided() {
			return fmt.Errorf("%w: level %d has already decided", ErrIrreversibleState, s.Assignments[i].Level)
		}
	}

	at := ev.At
	target := &s.Assignments[idx]
	target.Status = model.AssignmentPending
	target.RespondedAt = nil
	target.DecidedAt = nil
	target.Comment = nil
	target.ActivatedAt = &at
	for i := idx + 1; i < len(s.Assignments); i++ {
		s.Assignments[i].ActivatedAt = nil
	}
	s.Status = model.StatusInReview
	return nil
}

func (s *State) requestRevision(ev Event) error {
	if s.Status != model.StatusPending && s.Status != model.StatusInReview {
		return fmt.Errorf("%w: request is %s", ErrInvalidState, s.Status)
	}
	active := ActiveIndex(s.Assignments)
	if active < 0 || s.Assignments[active].Level != ev.Level {
		return fmt.Errorf("%w: level %d is not the active level", ErrNotActive, ev.Level)
	}
	s.Status = model.StatusNeedsRevision
	return nil
}

func (s *State) resubmit(ev Event) error {
	if s.Status != model.StatusNeedsRevision {
		return fmt.Errorf("%w: only requests awaiting revision can be resubmitted, request is %s", ErrInvalidState, s.Status)
	}
	s.resetChain(ev.At)
	s.Status = model.StatusPending
	return nil
}

func (s *State) withdraw() error {
	if model.IsTerminalStatus(s.Status) {
		return fmt.Errorf("%w: request is already %s", ErrInvalidState, s.Status)
	}
	s.Status = model.StatusCancelled
	return nil
}

// resetChain returns every slot to its initial state with level 1 active.
func (s *State) resetChain(at time.Time) {
	for i := range s.Assignments {
		a := &s.Assignments[i]
		a.Status = model.AssignmentPending
		a.RespondedAt = nil
		a.DecidedAt = nil
		a.Comment = nil
		a.ActivatedAt = nil
	}
	if len(s.Assignments) > 0 {
		s.Assignments[0].ActivatedAt = &at
	}
}

func (s *State) indexOf(level int) int {
	for i := range s.Assignments {
		if s.Assignments[i].Level == level {
			return i
		}
	}
	return -1
}

func cloneAssignments(in []model.ApproverAssignment) []model.ApproverAssignment {
	if in == nil {
		return nil
	}
	out := make([]model.ApproverAssignment, len(in))
	copy(out, in)
	return out
}
