// Package memory is an in-process Store used when no database is configured
// and in tests. It follows the same write contract as Postgres: updates are
// conditional on the version and report rows affected, and a deny rule makes
// writes on a ticket silently affect nothing, like a row-level policy.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

// Store keeps everything in maps guarded by a mutex.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	tickets    map[int64]*domain.Ticket
	events     []domain.TicketEvent
	nextTicket int64
	nextEvent  int64

	reasons    []domain.PauseReason
	categories map[string]domain.SLACategory
	agents     map[string]domain.Agent
	requesters map[string]domain.Requester

	denied  map[int64]bool
	failErr error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tickets:    make(map[int64]*domain.Ticket),
		categories: make(map[string]domain.SLACategory),
		agents:     make(map[string]domain.Agent),
		requesters: make(map[string]domain.Requester),
		denied:     make(map[int64]bool),
	}
}

// NewSeeded returns a store holding the default catalogs.
func NewSeeded() *Store {
	s := New()
	for _, r := range DefaultPauseReasons() {
		s.AddPauseReason(r)
	}
	for _, c := range DefaultCategories() {
		s.AddCategory(c)
	}
	return s
}

// DefaultPauseReasons mirrors the seeded catalog.
func DefaultPauseReasons() []domain.PauseReason {
	return []domain.PauseReason{
		{ID: 1, Description: "Esperando repuesto", Active: true, RequiresFreezer: true},
		{ID: 2, Description: "Garantía del fabricante", Active: true, RequiresFreezer: true},
		{ID: 3, Description: "Esperando proveedor", Active: true, RequiresFreezer: true},
		{ID: 4, Description: "Orden de compra en trámite", Active: true, RequiresFreezer: true},
		{ID: 5, Description: "Usuario no responde", Active: true},
		{ID: 6, Description: "Usuario no disponible", Active: true},
	}
}

// DefaultCategories mirrors the seeded SLA categories.
func DefaultCategories() []domain.SLACategory {
	return []domain.SLACategory{
		{Name: "Hardware", StandardHours: 24, VIPHours: 8, Active: true},
		{Name: "Software", StandardHours: 24, VIPHours: 8, Active: true},
		{Name: "Red", StandardHours: 12, VIPHours: 4, Active: true},
		{Name: "Accesos", StandardHours: 8, VIPHours: 4, Active: true},
	}
}

// AddPauseReason appends a catalog entry.
func (s *Store) AddPauseReason(r domain.PauseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, r)
}

// AddCategory registers an SLA category.
func (s *Store) AddCategory(c domain.SLACategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[strings.ToLower(c.Name)] = c
}

// AddAgent registers an agent.
func (s *Store) AddAgent(a domain.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
}

// EnrollAgent adds an active agent for actor unless one is already known.
func (s *Store) EnrollAgent(_ context.Context, actor domain.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[actor.ID]; ok {
		return nil
	}
	s.agents[actor.ID] = domain.Agent{ID: actor.ID, Name: actor.ID, Role: actor.Role, Active: true}
	return nil
}

// AddRequester registers a requester.
func (s *Store) AddRequester(r domain.Requester) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requesters[r.ID] = r
}

// Deny makes every later write on the ticket affect zero rows.
func (s *Store) Deny(ticketID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[ticketID] = true
}

// FailNextWrite makes the next write return err.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// takeFailure must be called with mu held.
func (s *Store) takeFailure() error {
	err := s.failErr
	s.failErr = nil
	return err
}

func (s *Store) Tickets() repository.TicketRepository           { return ticketRepo{s} }
func (s *Store) Events() repository.TicketEventRepository       { return eventRepo{s} }
func (s *Store) PauseReasons() repository.PauseReasonRepository { return catalogRepo{s} }
func (s *Store) Categories() repository.SLACategoryRepository   { return catalogRepo{s} }
func (s *Store) Agents() repository.AgentRepository             { return directoryRepo{s} }
func (s *Store) Requesters() repository.RequesterRepository     { return requesterView{s} }

// WithinTx serializes units of work and restores the previous state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tickets := make(map[int64]*domain.Ticket, len(s.tickets))
	for id, t := range s.tickets {
		tickets[id] = t.Clone()
	}
	events := append([]domain.TicketEvent(nil), s.events...)
	nextTicket, nextEvent := s.nextTicket, s.nextEvent
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.tickets, s.events = tickets, events
		s.nextTicket, s.nextEvent = nextTicket, nextEvent
		s.mu.Unlock()
		return err
	}
	return nil
}

// EventCount returns the number of stored events for a ticket.
func (s *Store) EventCount(ticketID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ev := range s.events {
		if ev.TicketID == ticketID {
			n++
		}
	}
	return n
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.nextTicket++
	ticket.ID = s.nextTicket
	ticket.Version = 1
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = ticket.CreatedAt
	}
	s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	var all []domain.Ticket
	for _, t := range r.s.tickets {
		if matches(t, filter) {
			all = append(all, *t.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})

	limit, offset := repository.NormalizePage(filter.Limit, filter.Offset)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func matches(t *domain.Ticket, f repository.TicketFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if t.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.Category != nil && t.Category != *f.Category {
		return false
	}
	if f.AssignedAgentID != nil && (t.AssignedAgentID == nil || *t.AssignedAgentID != *f.AssignedAgentID) {
		return false
	}
	if f.RequesterID != nil && (t.RequesterID == nil || *t.RequesterID != *f.RequesterID) {
		return false
	}
	if f.SLAStatus != nil && t.SLAStatus != *f.SLAStatus {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		code := ""
		if t.Code != nil {
			code = *t.Code
		}
		if term != "" && !strings.Contains(strings.ToLower(code), term) &&
			!strings.Contains(strings.ToLower(t.DescriptionText()), term) {
			return false
		}
	}
	return true
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket, expectedVersion int64) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	current, ok := s.tickets[ticket.ID]
	if !ok || s.denied[ticket.ID] || current.Version != expectedVersion {
		return 0, nil
	}
	stored := ticket.Clone()
	stored.Version = expectedVersion + 1
	s.tickets[ticket.ID] = stored
	return 1, nil
}

// CurrentVersion reports denied tickets as invisible, the way a row policy hides them.
func (r ticketRepo) CurrentVersion(_ context.Context, id int64) (int64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok || r.s.denied[id] {
		return 0, false, nil
	}
	return t.Version, true, nil
}

func (r ticketRepo) ListBreachCandidates(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if t.SLAStatus == domain.SLAStatusRunning && !t.Status.Terminal() && t.SLAExpectedEndAt.Before(now) {
			out = append(out, *t.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SLAExpectedEndAt.Before(out[j].SLAExpectedEndAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Append(_ context.Context, event *domain.TicketEvent) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if s.denied[event.TicketID] {
		return pgx.ErrNoRows
	}
	s.nextEvent++
	event.ID = s.nextEvent
	s.events = append(s.events, *event)
	return nil
}

func (r eventRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.TicketEvent
	for _, ev := range r.s.events {
		if ev.TicketID == ticketID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type catalogRepo struct{ s *Store }

func (r catalogRepo) ListActive(_ context.Context) ([]domain.PauseReason, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.PauseReason
	for _, reason := range r.s.reasons {
		if reason.Active {
			out = append(out, reason)
		}
	}
	return out, nil
}

func (r catalogRepo) GetByName(_ context.Context, name string) (*domain.SLACategory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.categories[strings.ToLower(name)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

type directoryRepo struct{ s *Store }

func (r directoryRepo) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.agents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r directoryRepo) NamesByIDs(_ context.Context, ids []string) (map[string]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if a, ok := r.s.agents[id]; ok {
			names[id] = a.Name
		}
	}
	return names, nil
}

type requesterView struct{ s *Store }

func (r requesterView) GetByID(_ context.Context, id string) (*domain.Requester, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	req, ok := r.s.requesters[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &req, nil
}
