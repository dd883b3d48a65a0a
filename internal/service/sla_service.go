package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/guard"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// breachBatch bounds how many tickets one sweep marks.
const breachBatch = 200

// SLAService pauses and resumes the SLA clock and marks breaches.
type SLAService struct {
	*engine
}

// NewSLAService constructs the service.
func NewSLAService(deps Dependencies) *SLAService {
	return &SLAService{engine: newEngine(deps)}
}

// Classifier builds a classifier over the current catalog.
func (s *SLAService) Classifier(ctx context.Context) (*sla.Classifier, error) {
	reasons, err := s.store.PauseReasons().ListActive(ctx)
	if err != nil {
		return nil, guard.Classify(err)
	}
	return sla.NewClassifier(reasons, s.cfg.LegacyPatternFallback), nil
}

// PauseReasons lists the active catalog.
func (s *SLAService) PauseReasons(ctx context.Context) ([]domain.PauseReason, error) {
	reasons, err := s.store.PauseReasons().ListActive(ctx)
	if err != nil {
		return nil, guard.Classify(err)
	}
	return reasons, nil
}

// Pause stops the clock. Freezer reasons move the ticket to EN_ESPERA; any
// other reason keeps it EN_PROGRESO with the clock stopped.
func (s *SLAService) Pause(ctx context.Context, actor domain.Actor, ticketID int64, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, s.fail(OpPause, ticketID, apperrors.NewValidationError("pause reason is required", nil))
	}
	classifier, err := s.Classifier(ctx)
	if err != nil {
		return nil, s.fail(OpPause, ticketID, err)
	}
	decision := classifier.Classify(reason)
	canonical := decision.Canonical(reason)

	return s.mutate(ctx, actor, OpPause, ticketID, func(t *domain.Ticket, now time.Time) ([]domain.TicketEvent, error) {
		if t.IsPaused() {
			return nil, illegal(t.Status, OpPause, "the SLA clock is already paused")
		}
		if t.Status != domain.TicketStatusInProgress {
			return nil, illegal(t.Status, OpPause, "")
		}

		from := t.Status
		sla.ApplyPause(t, now, canonical, decision)

		evts := []domain.TicketEvent{{
			ActionType: domain.ActionPaused,
			OldValue:   statusPtr(from),
			NewValue:   statusPtr(t.Status),
			Comment:    strPtr(canonical + " (" + decision.Route() + ")"),
		}}
		if t.Status != from {
			evts = append(evts, statusChange(from, t.Status, ""))
		}
		return evts, nil
	})
}

// Resume restarts the clock from either paused sub-state.
func (s *SLAService) Resume(ctx context.Context, actor domain.Actor, ticketID int64) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, OpResume, ticketID, func(t *domain.Ticket, now time.Time) ([]domain.TicketEvent, error) {
		if !t.IsPaused() {
			return nil, illegal(t.Status, OpResume, "the SLA clock is not paused")
		}

		from := t.Status
		reason := ""
		if t.SLAPauseReason != nil {
			reason = *t.SLAPauseReason
		}
		elapsed := sla.ApplyResume(t, now)

		evts := []domain.TicketEvent{{
			ActionType: domain.ActionResumed,
			OldValue:   strPtr(reason),
			NewValue:   statusPtr(t.Status),
			Comment:    strPtr("paused for " + elapsed.Round(time.Second).String()),
		}}
		if t.Status != from {
			evts = append(evts, statusChange(from, t.Status, ""))
		}
		return evts, nil
	})
}

// IsBreached derives breach state without writing.
func (s *SLAService) IsBreached(t *domain.Ticket) bool {
	return sla.IsBreached(t, s.clock.Now(), s.slaOptions())
}

// SweepBreaches marks running tickets past their deadline as breached. Each
// ticket is its own guarded write; one failure does not stop the sweep.
func (s *SLAService) SweepBreaches(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.store.Tickets().ListBreachCandidates(ctx, now, breachBatch)
	if err != nil {
		return 0, apperrors.WithOperation(guard.Classify(err), 0, OpBreach)
	}

	opts := s.slaOptions()
	marked := 0
	var errs []error
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		candidate := &candidates[i]
		if !sla.IsBreached(candidate, now, opts) {
			continue
		}

		wrote := false
		_, err := s.mutate(ctx, domain.SystemActor, OpBreach, candidate.ID, func(t *domain.Ticket, now time.Time) ([]domain.TicketEvent, error) {
			if t.SLAStatus != domain.SLAStatusRunning || t.Status.Terminal() || !sla.IsBreached(t, now, opts) {
				return nil, errNoChange
			}
			sla.MarkBreached(t)
			wrote = true
			return []domain.TicketEvent{{
				ActionType: domain.ActionSLABreached,
				OldValue:   strPtr(string(domain.SLAStatusRunning)),
				NewValue:   strPtr(string(domain.SLAStatusBreached)),
				Comment:    strPtr("deadline " + t.SLAExpectedEndAt.UTC().Format(time.RFC3339) + " passed"),
			}}, nil
		})
		if err != nil {
			s.logger.Warn("breach not recorded", zap.Int64("ticket_id", candidate.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if wrote {
			marked++
		}
	}

	if s.metrics != nil {
		s.metrics.RecordBreaches(marked)
	}
	return marked, errors.Join(errs...)
}
