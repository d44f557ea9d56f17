package workflow

import "time"

// DefaultCancelWindow is how long a decider may revert their own decision.
const DefaultCancelWindow = 24 * time.Hour

// WithinWindow reports whether now is at most window after decidedAt. The
// boundary itself is inside the window.
func WithinWindow(decidedAt, now time.Time, window time.Duration) bool {
	return now.Sub(decidedAt) <= window
}
