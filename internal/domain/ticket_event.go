package domain

import "time"

// ActionType captures what a timeline event records.
type ActionType string

const (
	ActionCreated      ActionType = "CREATED"
	ActionStatusChange ActionType = "STATUS_CHANGE"
	ActionPaused       ActionType = "PAUSED"
	ActionResumed      ActionType = "RESUMED"
	ActionComment      ActionType = "COMMENT_ADDED"
	ActionReclassified ActionType = "RECLASSIFIED"
	ActionAssigned     ActionType = "ASSIGNED"
	ActionSolution     ActionType = "SOLUTION_ADDED"
	ActionEvidence     ActionType = "EVIDENCE_ADDED"
	ActionSLABreached  ActionType = "SLA_BREACHED"
)

// TicketEvent is an immutable audit trail entry.
type TicketEvent struct {
	ID         int64
	TicketID   int64
	ActionType ActionType
	OldValue   *string
	NewValue   *string
	Comment    *string
	ActorID    *string // nil for system events
	CreatedAt  time.Time
}

// IsSystemEvent returns true if no agent performed the action.
func (e *TicketEvent) IsSystemEvent() bool {
	return e.ActorID == nil
}
