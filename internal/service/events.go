package service

// Event names broadcast to dashboards
const (
	EventRequestCreated     = "request.created"
	EventRequestSubmitted   = "request.submitted"
	EventRequestDecided     = "request.decided"
	EventDecisionCancelled  = "decision.cancelled"
	EventRequestWithdrawn   = "request.withdrawn"
	EventRevisionRequested  = "request.revision_requested"
	EventRequestResubmitted = "request.resubmitted"
	EventRequestConsumed    = "request.consumed"
	EventCommentAdded       = "comment.added"
	EventMonitorOverdue     = "monitor.overdue"
)

// Publisher fans workflow events out to external listeners. Publishing happens
// after commit and must not block.
type Publisher interface {
	Publish(event string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}
