package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/guard"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// Operation names used in errors, metrics and change signals.
const (
	OpCreate         = "create"
	OpAssign         = "assign"
	OpResolve        = "resolve"
	OpReturnToQueue  = "return_to_queue"
	OpComment        = "comment"
	OpReclassify     = "reclassify"
	OpClose          = "close"
	OpAttachEvidence = "attach_evidence"
	OpPause          = "pause"
	OpResume         = "resume"
	OpBreach         = "sla_breach"
)

// OperationRecorder receives operation outcomes for metrics.
type OperationRecorder interface {
	RecordOperation(operation, result string)
	RecordBreaches(n int)
}

// Dependencies bundles collaborators shared by the ticket services.
type Dependencies struct {
	Store      repository.Store
	Guard      *guard.Guard
	Clock      sla.Clock
	Dispatcher events.Dispatcher
	Metrics    OperationRecorder
	Logger     *zap.Logger
	SLA        config.SLAConfig
}

// errNoChange marks an idempotent call that must not write.
var errNoChange = errors.New("no change")

// engine runs every mutation the same way: load, check, mutate, guarded
// conditional write, event append, then one change signal after commit.
type engine struct {
	store      repository.Store
	guard      *guard.Guard
	clock      sla.Clock
	dispatcher events.Dispatcher
	metrics    OperationRecorder
	logger     *zap.Logger
	cfg        config.SLAConfig
}

func newEngine(deps Dependencies) *engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := deps.Guard
	if g == nil {
		g = guard.New(deps.Store.Tickets(), logger, nil)
	}
	clock := deps.Clock
	if clock == nil {
		clock = sla.RealClock()
	}
	return &engine{
		store:      deps.Store,
		guard:      g,
		clock:      clock,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        deps.SLA.Resolved(),
	}
}

func (e *engine) slaOptions() sla.Options {
	return sla.Options{ExcludePausedTime: e.cfg.ExcludePausedTime}
}

// mutation changes the loaded ticket in place and returns the events to record.
type mutation func(t *domain.Ticket, now time.Time) ([]domain.TicketEvent, error)

// mutate applies fn to the ticket inside a unit of work.
func (e *engine) mutate(ctx context.Context, actor domain.Actor, op string, ticketID int64, fn mutation) (*domain.Ticket, error) {
	var (
		result  *domain.Ticket
		changed bool
	)
	now := e.clock.Now()

	err := e.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return guard.Classify(err)
		}

		expected := ticket.Version
		evts, err := fn(ticket, now)
		if errors.Is(err, errNoChange) {
			result = ticket
			return nil
		}
		if err != nil {
			return err
		}

		ticket.UpdatedAt = now
		if err := e.guard.Update(ctx, op, ticketID, expected, func(ctx context.Context) (int64, error) {
			return tx.Tickets().Update(ctx, ticket, expected)
		}); err != nil {
			return err
		}
		ticket.Version = expected + 1

		if err := e.appendEvents(ctx, tx, actor, op, ticketID, now, evts); err != nil {
			return err
		}
		result = ticket
		changed = true
		return nil
	})
	if err != nil {
		return nil, e.fail(op, ticketID, err)
	}

	e.record(op, "ok")
	if changed {
		e.signal(ctx, signalType(op), actor, op, result)
	}
	return result, nil
}

// signalType picks the single broadcast a committed mutation produces.
func signalType(op string) events.EventType {
	if op == OpBreach {
		return events.EventSLABreached
	}
	return events.EventTicketChanged
}

func (e *engine) appendEvents(ctx context.Context, tx repository.Store, actor domain.Actor, op string, ticketID int64, now time.Time, evts []domain.TicketEvent) error {
	for i := range evts {
		ev := evts[i]
		ev.TicketID = ticketID
		ev.ActorID = actor.IDPtr()
		ev.CreatedAt = now
		if err := e.guard.Insert(ctx, op, ticketID, func(ctx context.Context) error {
			return tx.Events().Append(ctx, &ev)
		}); err != nil {
			return err
		}
	}
	return nil
}

// fail attaches operation context, counts the failure and returns it.
func (e *engine) fail(op string, ticketID int64, err error) error {
	err = apperrors.WithOperation(err, ticketID, op)
	de := apperrors.ToDomainError(err)
	e.record(op, de.Code)
	if de.HTTPStatus >= 500 {
		e.logger.Error("ticket operation failed",
			zap.String("operation", op),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
	}
	return err
}

func (e *engine) record(op, result string) {
	if e.metrics != nil {
		e.metrics.RecordOperation(op, result)
	}
}

// signal publishes the change; delivery failures are logged, never returned.
func (e *engine) signal(ctx context.Context, typ events.EventType, actor domain.Actor, op string, t *domain.Ticket) {
	if e.dispatcher == nil || t == nil {
		return
	}
	evt := events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		TicketID:  t.ID,
		Operation: op,
		Version:   t.Version,
		ActorID:   actor.IDPtr(),
		Timestamp: e.clock.Now(),
	}
	if err := e.dispatcher.Publish(ctx, evt); err != nil {
		e.logger.Warn("change signal not delivered",
			zap.Int64("ticket_id", t.ID),
			zap.String("operation", op),
			zap.Error(err))
	}
}

func (e *engine) load(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := e.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, guard.Classify(err)
	}
	return ticket, nil
}

func illegal(from domain.TicketStatus, op, hint string) error {
	msg := "cannot " + strings.ReplaceAll(op, "_", " ") + " a ticket in status " + string(from)
	if hint != "" {
		msg += "; " + hint
	}
	return apperrors.NewIllegalTransition(msg, map[string]any{"status": from})
}

func strPtr(s string) *string {
	return &s
}

func statusPtr(s domain.TicketStatus) *string {
	return strPtr(string(s))
}
