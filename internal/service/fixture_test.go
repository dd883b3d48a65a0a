package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/evidence"
	"github.com/spec-kit/helpdesk-sla/internal/guard"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memory"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

var t0 = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

var (
	agentA     = domain.Actor{ID: "a-1", Role: domain.AgentRoleAgent}
	agentB     = domain.Actor{ID: "b-2", Role: domain.AgentRoleAgent}
	supervisor = domain.Actor{ID: "s-3", Role: domain.AgentRoleSupervisor}
)

type fixture struct {
	store     *memory.Store
	clock     *sla.FakeClock
	lifecycle *LifecycleService
	slaSvc    *SLAService
	timeline  *TimelineService
	evidence  *evidence.MemoryStore
	signals   []events.Event
}

func newFixture(t *testing.T, tweak ...func(*config.SLAConfig)) *fixture {
	t.Helper()
	cfg := config.SLAConfig{
		DefaultStandardHours: 24,
		DefaultVIPHours:      8,
		MinSolutionWords:     20,
		LegacyNoteLocation:   "UTC",
	}
	for _, fn := range tweak {
		fn(&cfg)
	}

	store := memory.NewSeeded()
	store.AddAgent(domain.Agent{ID: agentA.ID, Name: "Ana", Role: domain.AgentRoleAgent, Active: true})
	store.AddAgent(domain.Agent{ID: agentB.ID, Name: "Beto", Role: domain.AgentRoleAgent, Active: true})
	store.AddAgent(domain.Agent{ID: supervisor.ID, Name: "Sofía", Role: domain.AgentRoleSupervisor, Active: true})
	store.AddAgent(domain.Agent{ID: "x-9", Name: "Ex", Role: domain.AgentRoleAgent, Active: false})
	store.AddRequester(domain.Requester{ID: "r-vip", Name: "Gerencia", IsVIP: true})
	store.AddRequester(domain.Requester{ID: "r-std", Name: "Usuario"})

	f := &fixture{
		store:    store,
		clock:    sla.NewFakeClock(t0),
		evidence: evidence.NewMemoryStore(),
	}
	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		f.signals = append(f.signals, e)
		return nil
	}
	dispatcher.Subscribe(events.EventTicketChanged, record)
	dispatcher.Subscribe(events.EventSLABreached, record)

	deps := Dependencies{
		Store:      store,
		Guard:      guard.New(store.Tickets(), nil, nil),
		Clock:      f.clock,
		Dispatcher: dispatcher,
		SLA:        cfg,
	}
	f.lifecycle = NewLifecycleService(deps, f.evidence)
	f.slaSvc = NewSLAService(deps)
	f.timeline = NewTimelineService(deps)
	return f
}

func (f *fixture) create(t *testing.T, category string) *domain.Ticket {
	t.Helper()
	ticket, err := f.lifecycle.Create(context.Background(), agentA, CreateInput{
		Type:        domain.TicketTypeIncident,
		Category:    category,
		Description: "El equipo no enciende",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return ticket
}

// inProgress returns a ticket assigned to agent A.
func (f *fixture) inProgress(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := f.create(t, "Hardware")
	ticket, err := f.lifecycle.Assign(context.Background(), agentA, ticket.ID, agentA.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return ticket
}

func (f *fixture) reload(t *testing.T, id int64) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Tickets().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return ticket
}

func (f *fixture) eventTypes(t *testing.T, id int64) []domain.ActionType {
	t.Helper()
	evts, err := f.store.Events().ListByTicket(context.Background(), id)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	out := make([]domain.ActionType, len(evts))
	for i, ev := range evts {
		out[i] = ev.ActionType
	}
	return out
}

func codeOf(err error) string {
	if err == nil {
		return ""
	}
	return apperrors.ToDomainError(err).Code
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("cambio ", n))
}

// assertPauseInvariant checks paused status and stopped-at always agree.
func assertPauseInvariant(t *testing.T, ticket *domain.Ticket) {
	t.Helper()
	paused := ticket.SLAStatus == domain.SLAStatusPaused
	if paused != (ticket.SLAClockStoppedAt != nil) {
		t.Errorf("pause invariant broken: sla_status=%s stopped_at=%v", ticket.SLAStatus, ticket.SLAClockStoppedAt)
	}
	if ticket.Status == domain.TicketStatusOnHold && !paused {
		t.Errorf("EN_ESPERA without a paused clock")
	}
}
