package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/guard"
	"github.com/spec-kit/helpdesk-sla/internal/timeline"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// TimelineService assembles the merged history of a ticket.
type TimelineService struct {
	*engine
}

// NewTimelineService constructs the service.
func NewTimelineService(deps Dependencies) *TimelineService {
	return &TimelineService{engine: newEngine(deps)}
}

// Timeline returns entries newest first. It only reads.
func (s *TimelineService) Timeline(ctx context.Context, ticketID int64) (*domain.Ticket, []timeline.Entry, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.WithOperation(err, ticketID, "timeline")
	}
	evts, err := s.store.Events().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.WithOperation(guard.Classify(err), ticketID, "timeline")
	}

	names, err := s.store.Agents().NamesByIDs(ctx, timeline.ActorIDs(evts))
	if err != nil {
		// attribution degrades to raw ids
		s.logger.Warn("agent names unavailable", zap.Int64("ticket_id", ticketID), zap.Error(err))
		names = nil
	}

	entries := timeline.Compose(ticket, evts, names, timeline.Options{Location: s.cfg.Location()})
	return ticket, entries, nil
}
