package model

import (
	"time"

	"github.com/google/uuid"
)

// OverdueItem is an active assignment whose wait exceeded its timeout.
// It is a reporting view only and never persisted.
type OverdueItem struct {
	RequestID    uuid.UUID `json:"request_id"`
	RequestTitle string    `json:"request_title"`
	RequestType  string    `json:"request_type"`
	Priority     string    `json:"priority"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	ApproverID   uuid.UUID `json:"approver_id"`
	Level        int       `json:"level"`
	TimeoutHours float64   `json:"timeout_hours"`
	WaitingHours float64   `json:"waiting_hours"`
	Overdue      bool      `json:"overdue"`
	WaitingSince time.Time `json:"waiting_since"`
}

// BottleneckStat aggregates overdue items per level for dashboards
type BottleneckStat struct {
	Level            int     `json:"level"`
	LevelName        string  `json:"level_name"`
	Count            int     `json:"count"`
	AverageWaitHours float64 `json:"average_wait_hours"`
}

// MonitorReport is the snapshot produced by one monitor sweep
type MonitorReport struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	ActiveRequests int              `json:"active_requests"`
	Overdue        []OverdueItem    `json:"overdue"`
	Bottlenecks    []BottleneckStat `json:"bottlenecks"`
}
