package workflow

import (
	"fmt"
	"sort"

	"approvalflow/internal/model"
)

// ValidateChain checks a freshly built approver chain: non-empty, positive
// timeouts, and levels forming exactly {1..N}.
func ValidateChain(chain []model.ApproverAssignment) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: approver chain is empty", ErrValidation)
	}

	seen := make(map[int]bool, len(chain))
	for _, a := range chain {
		if a.Level < 1 {
			return fmt.Errorf("%w: level %d must be positive", ErrValidation, a.Level)
		}
		if seen[a.Level] {
			return fmt.Errorf("%w: duplicate level %d", ErrValidation, a.Level)
		}
		seen[a.Level] = true
		if a.TimeoutHours <= 0 {
			return fmt.Errorf("%w: timeout_hours for level %d must be positive", ErrValidation, a.Level)
		}
	}
	for level := 1; level <= len(chain); level++ {
		if !seen[level] {
			return fmt.Errorf("%w: levels must be contiguous from 1, missing level %d", ErrValidation, level)
		}
	}
	return nil
}

// SortByLevel orders assignments in place by ascending level.
func SortByLevel(assignments []model.ApproverAssignment) {
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].Level < assignments[j].Level
	})
}

// ActiveIndex returns the index of the lowest-level pending assignment, or -1
// when every level has decided. The slice must be sorted by level.
func ActiveIndex(assignments []model.ApproverAssignment) int {
	for i := range assignments {
		if assignments[i].Status == model.AssignmentPending {
			return i
		}
	}
	return -1
}

// ActiveLevel returns the level currently eligible for a decision, 0 if none.
// Requests outside pending/in_review have no active level.
func ActiveLevel(status string, assignments []model.ApproverAssignment) int {
	if status != model.StatusPending && status != model.StatusInReview {
		return 0
	}
	idx := ActiveIndex(assignments)
	if idx < 0 {
		return 0
	}
	return assignments[idx].Level
}

// Derive computes the aggregate status implied by assignment states for a
// request that is inside the chain (pending or in_review).
func Derive(assignments []model.ApproverAssignment) string {
	decided := 0
	for _, a := range assignments {
		switch a.Status {
		case model.AssignmentRejected:
			return model.StatusRejected
		case model.AssignmentApproved:
			decided++
		}
	}
	switch {
	case decided == 0:
		return model.StatusPending
	case decided == len(assignments):
		return model.StatusApproved
	default:
		return model.StatusInReview
	}
}
