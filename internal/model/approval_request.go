package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ApprovalRequest type enum constants
const (
	RequestTypeCodeComponent      = "code_component"
	RequestTypeBugFix             = "bug_fix"
	RequestTypeArchitectureChange = "architecture_change"
	RequestTypeSolutionDeployment = "solution_deployment"
	RequestTypeReleaseApproval    = "release_approval"
)

// Priority enum constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Request status enum constants
const (
	StatusDraft         = "draft"
	StatusPending       = "pending"
	StatusInReview      = "in_review"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusNeedsRevision = "needs_revision"
	StatusCancelled     = "cancelled"
)

// Assignment status enum constants
const (
	AssignmentPending  = "pending"
	AssignmentApproved = "approved"
	AssignmentRejected = "rejected"
)

// ApprovalRequest is the aggregate root: one item awaiting sign-off with a fixed,
// ordered approver chain. Version is bumped on every committed mutation and guards
// concurrent writers.
type ApprovalRequest struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	Type        string               `gorm:"type:varchar(30);not null;index" json:"type"`
	Title       string               `gorm:"type:varchar(255);not null" json:"title"`
	Description string               `gorm:"type:text" json:"description"`
	Priority    string               `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Status      string               `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RequesterID uuid.UUID            `gorm:"type:uuid;not null;index" json:"requester_id"`
	DueDate     *time.Time           `json:"due_date"`
	Metadata    datatypes.JSONMap    `gorm:"type:jsonb" json:"metadata"` // Opaque to the engine
	Version     int64                `gorm:"not null;default:1" json:"version"`
	ConsumedAt  *time.Time           `json:"consumed_at"` // Set once an external collaborator acted on the outcome
	Assignments []ApproverAssignment `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"assignments,omitempty"`
	Comments    []Comment            `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// IsTerminal reports whether the request reached approved, rejected or cancelled.
func (r *ApprovalRequest) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}

func IsTerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected || status == StatusCancelled
}

// ApproverAssignment is one approver's slot at a level in a request's chain.
type ApproverAssignment struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_request_level" json:"request_id"`
	ApproverID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"approver_id"`
	Level        int        `gorm:"not null;uniqueIndex:idx_assignment_request_level" json:"level"`
	TimeoutHours float64    `gorm:"not null" json:"timeout_hours"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	AssignedAt   time.Time  `gorm:"not null" json:"assigned_at"`
	ActivatedAt  *time.Time `json:"activated_at"` // When the slot became the active level
	RespondedAt  *time.Time `json:"responded_at"`
	DecidedAt    *time.Time `json:"decided_at"`
	Comment      *string    `gorm:"type:text" json:"comment"`
}

// IsDecided reports whether the approver has recorded approve or reject.
func (a *ApproverAssignment) IsDecided() bool {
	return a.Status == AssignmentApproved || a.Status == AssignmentRejected
}

// Comment is an append-only discussion entry on a request.
type Comment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID `gorm:"type:uuid;not null;index:idx_comment_request_created" json:"request_id"`
	AuthorID   uuid.UUID `gorm:"type:uuid;not null" json:"author_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsInternal bool      `gorm:"not null;default:false" json:"is_internal"`
	CreatedAt  time.Time `gorm:"index:idx_comment_request_created" json:"created_at"`
}
