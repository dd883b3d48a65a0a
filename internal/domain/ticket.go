package domain

import "time"

// TicketType distinguishes incidents from service requests.
type TicketType string

const (
	TicketTypeIncident TicketType = "INC"
	TicketTypeRequest  TicketType = "REQ"
)

// Valid reports whether the type is one of the known values.
func (t TicketType) Valid() bool {
	return t == TicketTypeIncident || t == TicketTypeRequest
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDIENTE"
	TicketStatusInProgress TicketStatus = "EN_PROGRESO"
	// TicketStatusOnHold is the freezer: paused while waiting on parts, warranty or a vendor.
	TicketStatusOnHold   TicketStatus = "EN_ESPERA"
	TicketStatusResolved TicketStatus = "RESUELTO"
	TicketStatusClosed   TicketStatus = "CERRADO"
)

// Terminal reports whether no further pause/resume/assign is permitted.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Valid reports whether the status is one of the known values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusInProgress, TicketStatusOnHold, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// SLAStatus tracks the state of the SLA clock.
type SLAStatus string

const (
	SLAStatusRunning   SLAStatus = "running"
	SLAStatusPaused    SLAStatus = "paused"
	SLAStatusBreached  SLAStatus = "breached"
	SLAStatusCompleted SLAStatus = "completed"
)

// Valid reports whether s is a known clock state.
func (s SLAStatus) Valid() bool {
	switch s {
	case SLAStatusRunning, SLAStatusPaused, SLAStatusBreached, SLAStatusCompleted:
		return true
	}
	return false
}

// Ticket is the aggregate for help-desk incidents and requests.
type Ticket struct {
	ID          int64
	Code        *string
	Type        TicketType
	Category    string
	RequesterID *string
	IsVIP       bool

	Status          TicketStatus
	AssignedAgentID *string

	SLAStatus              SLAStatus
	SLAStartAt             time.Time
	SLAExpectedEndAt       time.Time
	SLAClockStoppedAt      *time.Time
	SLALastPausedAt        *time.Time
	SLAPauseReason         *string
	HoldReason             *string
	SLATotalPausedDuration time.Duration

	Description *string
	Solution    *string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPaused reports whether the SLA clock is stopped.
func (t *Ticket) IsPaused() bool {
	return t.SLAStatus == SLAStatusPaused
}

// DescriptionText returns the description or an empty string.
func (t *Ticket) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Code = cloneString(t.Code)
	c.RequesterID = cloneString(t.RequesterID)
	c.AssignedAgentID = cloneString(t.AssignedAgentID)
	c.SLAClockStoppedAt = cloneTime(t.SLAClockStoppedAt)
	c.SLALastPausedAt = cloneTime(t.SLALastPausedAt)
	c.SLAPauseReason = cloneString(t.SLAPauseReason)
	c.HoldReason = cloneString(t.HoldReason)
	c.Description = cloneString(t.Description)
	c.Solution = cloneString(t.Solution)
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
