package dto

import (
	"time"

	"github.com/guregu/null/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Type        domain.TicketType `json:"type"`
	Category    string            `json:"category"`
	RequesterID null.String       `json:"requester_id"`
	Description string            `json:"description"`
}

// AssignRequest payload.
type AssignRequest struct {
	AgentID string `json:"agent_id"`
}

// ResolveRequest payload.
type ResolveRequest struct {
	Solution string `json:"solution"`
}

// CommentRequest carries an optional free-text comment.
type CommentRequest struct {
	Comment string `json:"comment"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Text string `json:"text"`
}

// ReclassifyRequest payload.
type ReclassifyRequest struct {
	Category string `json:"category"`
}

// PauseRequest takes a catalog id or description, or free text.
type PauseRequest struct {
	Reason string `json:"reason"`
}

// SLAResponse is the countdown derived at read time.
type SLAResponse struct {
	Status           domain.SLAStatus `json:"status"`
	Deadline         time.Time        `json:"deadline"`
	Breached         bool             `json:"breached"`
	Paused           bool             `json:"paused"`
	RemainingSeconds int64            `json:"remaining_seconds"`
	PausedSeconds    int64            `json:"paused_seconds"`
}

// TicketResponse is the full ticket row.
type TicketResponse struct {
	ID                 int64               `json:"id"`
	Code               null.String         `json:"code"`
	Type               domain.TicketType   `json:"type"`
	Category           string              `json:"category"`
	RequesterID        null.String         `json:"requester_id"`
	IsVIP              bool                `json:"is_vip"`
	Status             domain.TicketStatus `json:"status"`
	AssignedAgentID    null.String         `json:"assigned_agent_id"`
	SLAStatus          domain.SLAStatus    `json:"sla_status"`
	SLAStartAt         time.Time           `json:"sla_start_at"`
	SLAExpectedEndAt   time.Time           `json:"sla_expected_end_at"`
	SLAClockStoppedAt  null.Time           `json:"sla_clock_stopped_at"`
	SLALastPausedAt    null.Time           `json:"sla_last_paused_at"`
	SLAPauseReason     null.String         `json:"sla_pause_reason"`
	HoldReason         null.String         `json:"hold_reason"`
	SLATotalPausedSecs int64               `json:"sla_total_paused_seconds"`
	Description        null.String         `json:"description"`
	Solution           null.String         `json:"solution"`
	Version            int64               `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	SLA                *SLAResponse        `json:"sla,omitempty"`
}

// TicketListQuery captures query filters.
type TicketListQuery struct {
	Statuses        []domain.TicketStatus
	Type            *domain.TicketType
	Category        *string
	AssignedAgentID *string
	RequesterID     *string
	SLAStatus       *domain.SLAStatus
	Search          *string
	Page            int
	PageSize        int
}

// TimelineEntryResponse is one row of the merged history.
type TimelineEntryResponse struct {
	Kind         string    `json:"kind"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	Actor        string    `json:"actor"`
	Body         string    `json:"body"`
	Timestamp    null.Time `json:"timestamp"`
	RawTimestamp string    `json:"raw_timestamp,omitempty"`
	EventID      null.Int  `json:"event_id"`
}

// TimelineResponse wraps the ticket header with its history.
type TimelineResponse struct {
	TicketID int64                   `json:"ticket_id"`
	Version  int64                   `json:"version"`
	Entries  []TimelineEntryResponse `json:"entries"`
}

// EvidenceResponse returns the stored link.
type EvidenceResponse struct {
	URL    string         `json:"url"`
	Ticket TicketResponse `json:"ticket"`
}

// PauseReasonResponse is a catalog entry.
type PauseReasonResponse struct {
	ID              int64  `json:"id"`
	Description     string `json:"description"`
	RequiresFreezer bool   `json:"requires_freezer"`
}
