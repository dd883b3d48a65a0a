package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// ApplyPause stops the clock. Callers check the ticket is pausable first.
// The resulting status comes from the classifier decision.
func ApplyPause(t *domain.Ticket, now time.Time, reason string, d Decision) {
	stopped := now
	last := now
	stored := reason
	hold := reason
	t.SLAClockStoppedAt = &stopped
	t.SLALastPausedAt = &last
	t.SLAPauseReason = &stored
	t.HoldReason = &hold
	t.SLAStatus = domain.SLAStatusPaused
	t.Status = d.ResultingStatus()
}

// ApplyResume restarts the clock and returns how long this pause lasted.
// The pause is added to the accumulated total; the deadline is left alone.
func ApplyResume(t *domain.Ticket, now time.Time) time.Duration {
	elapsed := closePause(t, now)
	t.SLAStatus = domain.SLAStatusRunning
	t.Status = domain.TicketStatusInProgress
	return elapsed
}

// MarkCompleted stops the clock for good on resolve or close.
func MarkCompleted(t *domain.Ticket, now time.Time) {
	closePause(t, now)
	t.SLAStatus = domain.SLAStatusCompleted
}

// MarkBreached records that the deadline passed while the clock was running.
func MarkBreached(t *domain.Ticket) {
	t.SLAStatus = domain.SLAStatusBreached
}

func closePause(t *domain.Ticket, now time.Time) time.Duration {
	var elapsed time.Duration
	if t.SLAClockStoppedAt != nil && now.After(*t.SLAClockStoppedAt) {
		elapsed = now.Sub(*t.SLAClockStoppedAt)
		t.SLATotalPausedDuration += elapsed
	}
	t.SLAClockStoppedAt = nil
	t.SLAPauseReason = nil
	t.HoldReason = nil
	return elapsed
}
