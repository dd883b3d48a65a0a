package sla

import (
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

func runningTicket(now time.Time) *domain.Ticket {
	return &domain.Ticket{
		Status:           domain.TicketStatusInProgress,
		SLAStatus:        domain.SLAStatusRunning,
		SLAStartAt:       now,
		SLAExpectedEndAt: now.Add(24 * time.Hour),
	}
}

func TestApplyPauseAndResume(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		decision   Decision
		wantStatus domain.TicketStatus
	}{
		{"freezer", Decision{RequiresFreezer: true}, domain.TicketStatusOnHold},
		{"active", Decision{}, domain.TicketStatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := runningTicket(t0)
			ApplyPause(ticket, t0.Add(time.Hour), "motivo", tt.decision)

			if ticket.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, ticket.Status)
			}
			if ticket.SLAStatus != domain.SLAStatusPaused || ticket.SLAClockStoppedAt == nil {
				t.Fatal("expected paused with stopped-at set")
			}
			if *ticket.HoldReason != "motivo" || *ticket.SLAPauseReason != "motivo" {
				t.Error("expected both reasons set")
			}

			elapsed := ApplyResume(ticket, t0.Add(3*time.Hour))
			if elapsed != 2*time.Hour {
				t.Errorf("expected 2h pause, got %s", elapsed)
			}
			if ticket.Status != domain.TicketStatusInProgress || ticket.SLAStatus != domain.SLAStatusRunning {
				t.Errorf("expected EN_PROGRESO/running, got %s/%s", ticket.Status, ticket.SLAStatus)
			}
			if ticket.SLAClockStoppedAt != nil || ticket.HoldReason != nil || ticket.SLAPauseReason != nil {
				t.Error("expected pause fields cleared")
			}
			if ticket.SLALastPausedAt == nil {
				t.Error("expected last paused at kept")
			}
			if !ticket.SLAExpectedEndAt.Equal(t0.Add(24 * time.Hour)) {
				t.Error("expected deadline unchanged by resume")
			}
		})
	}
}

func TestMarkCompleted_ClosesOpenPause(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	ticket := runningTicket(t0)
	ApplyPause(ticket, t0, "x", Decision{})

	MarkCompleted(ticket, t0.Add(30*time.Minute))
	if ticket.SLAStatus != domain.SLAStatusCompleted {
		t.Errorf("expected completed, got %s", ticket.SLAStatus)
	}
	if ticket.SLAClockStoppedAt != nil {
		t.Error("expected clock stop cleared")
	}
	if ticket.SLATotalPausedDuration != 30*time.Minute {
		t.Errorf("expected 30m accumulated, got %s", ticket.SLATotalPausedDuration)
	}
}
