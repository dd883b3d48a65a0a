package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// Policy is the resolution target applied to a ticket category.
type Policy struct {
	StandardHours int
	VIPHours      int
}

// PolicyFor returns the category's policy, or fallback when the category is
// unknown or inactive. Zero hours on either side inherit the fallback value.
func PolicyFor(category *domain.SLACategory, fallback Policy) Policy {
	if category == nil || !category.Active {
		return fallback
	}
	p := Policy{StandardHours: category.StandardHours, VIPHours: category.VIPHours}
	if p.StandardHours <= 0 {
		p.StandardHours = fallback.StandardHours
	}
	if p.VIPHours <= 0 {
		p.VIPHours = fallback.VIPHours
	}
	return p
}

// Hours returns the target for the given VIP flag.
func (p Policy) Hours(isVIP bool) int {
	if isVIP {
		return p.VIPHours
	}
	return p.StandardHours
}

// ComputeDeadline returns createdAt plus the policy hours. It is computed once
// at creation and stored.
func ComputeDeadline(createdAt time.Time, policy Policy, isVIP bool) time.Time {
	return createdAt.Add(time.Duration(policy.Hours(isVIP)) * time.Hour)
}

// Options tune how breach state is derived.
type Options struct {
	ExcludePausedTime bool
}

// PausedFor returns the total paused duration as of now, including the
// current pause if the clock is stopped.
func PausedFor(t *domain.Ticket, now time.Time) time.Duration {
	total := t.SLATotalPausedDuration
	if t.SLAClockStoppedAt != nil && now.After(*t.SLAClockStoppedAt) {
		total += now.Sub(*t.SLAClockStoppedAt)
	}
	return total
}

// EffectiveDeadline is the stored deadline, shifted by paused time when
// paused time is excluded from the clock.
func EffectiveDeadline(t *domain.Ticket, now time.Time, opts Options) time.Time {
	if !opts.ExcludePausedTime {
		return t.SLAExpectedEndAt
	}
	return t.SLAExpectedEndAt.Add(PausedFor(t, now))
}

// IsBreached is a pure derived read: the clock has not completed and now is
// past the deadline. It never changes the stored sla status.
func IsBreached(t *domain.Ticket, now time.Time, opts Options) bool {
	if t.SLAStatus == domain.SLAStatusCompleted {
		return false
	}
	return now.After(EffectiveDeadline(t, now, opts))
}

// Snapshot is the countdown view shown alongside a ticket.
type Snapshot struct {
	Status    domain.SLAStatus
	Deadline  time.Time
	Breached  bool
	Paused    bool
	Remaining time.Duration
	PausedFor time.Duration
}

// Snap derives the countdown for display.
func Snap(t *domain.Ticket, now time.Time, opts Options) Snapshot {
	deadline := EffectiveDeadline(t, now, opts)
	s := Snapshot{
		Status:    t.SLAStatus,
		Deadline:  deadline,
		Breached:  IsBreached(t, now, opts),
		Paused:    t.IsPaused(),
		PausedFor: PausedFor(t, now),
	}
	if t.SLAStatus != domain.SLAStatusCompleted {
		s.Remaining = deadline.Sub(now)
	}
	return s
}
