package workflow

import "errors"

// Error taxonomy of the approval engine. Callers wrap these with context using
// fmt.Errorf("%w: ...") and inspect them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrNotActive         = errors.New("assignment is not active")
	ErrAlreadyDecided    = errors.New("assignment already decided")
	ErrWindowExpired     = errors.New("cancellation window expired")
	ErrNotOwner          = errors.New("caller is not the owner")
	ErrIrreversibleState = errors.New("decision can no longer be reverted")
	ErrConflict          = errors.New("concurrent modification")
	ErrInvalidState      = errors.New("invalid request state")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrValidation, "validation"},
	{ErrNotFound, "not_found"},
	{ErrNotActive, "not_active"},
	{ErrAlreadyDecided, "already_decided"},
	{ErrWindowExpired, "window_expired"},
	{ErrNotOwner, "not_owner"},
	{ErrIrreversibleState, "irreversible_state"},
	{ErrConflict, "conflict"},
	{ErrInvalidState, "invalid_state"},
}

// Kind returns the stable machine-readable code for err, or "internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

// Retryable reports whether the caller may re-read and reapply. Only conflicts qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
