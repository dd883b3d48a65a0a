package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/evidence"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/guard"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	"github.com/spec-kit/helpdesk-sla/internal/timeline"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// LifecycleService drives the ticket status state machine.
type LifecycleService struct {
	*engine
	evidence evidence.Store
}

// NewLifecycleService constructs the service. store may be nil when evidence
// uploads are not configured.
func NewLifecycleService(deps Dependencies, store evidence.Store) *LifecycleService {
	return &LifecycleService{engine: newEngine(deps), evidence: store}
}

// CreateInput describes a new ticket.
type CreateInput struct {
	Type        domain.TicketType
	Category    string
	RequesterID *string
	Description string
}

// TicketView is a ticket with its SLA countdown derived at read time.
type TicketView struct {
	Ticket *domain.Ticket
	SLA    sla.Snapshot
}

// Create opens a ticket in PENDIENTE with a running clock.
func (s *LifecycleService) Create(ctx context.Context, actor domain.Actor, input CreateInput) (*domain.Ticket, error) {
	category := strings.TrimSpace(input.Category)
	description := strings.TrimSpace(input.Description)
	switch {
	case !input.Type.Valid():
		return nil, s.fail(OpCreate, 0, apperrors.NewValidationError("type must be INC or REQ", map[string]any{"type": input.Type}))
	case category == "":
		return nil, s.fail(OpCreate, 0, apperrors.NewValidationError("category is required", nil))
	case description == "":
		return nil, s.fail(OpCreate, 0, apperrors.NewValidationError("description is required", nil))
	}

	isVIP := false
	if input.RequesterID != nil && *input.RequesterID != "" {
		requester, err := s.store.Requesters().GetByID(ctx, *input.RequesterID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, s.fail(OpCreate, 0, apperrors.NewValidationError("unknown requester", map[string]any{"requester_id": *input.RequesterID}))
			}
			return nil, s.fail(OpCreate, 0, guard.Classify(err))
		}
		isVIP = requester.IsVIP
	}

	policy, err := s.policyFor(ctx, category)
	if err != nil {
		return nil, s.fail(OpCreate, 0, err)
	}

	now := s.clock.Now()
	code := ticketCode(input.Type)
	ticket := &domain.Ticket{
		Code:             &code,
		Type:             input.Type,
		Category:         category,
		RequesterID:      input.RequesterID,
		IsVIP:            isVIP,
		Status:           domain.TicketStatusPending,
		SLAStatus:        domain.SLAStatusRunning,
		SLAStartAt:       now,
		SLAExpectedEndAt: sla.ComputeDeadline(now, policy, isVIP),
		Description:      &description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := s.guard.Insert(ctx, OpCreate, 0, func(ctx context.Context) error {
			return tx.Tickets().Create(ctx, ticket)
		}); err != nil {
			return err
		}
		created := domain.TicketEvent{ActionType: domain.ActionCreated, NewValue: statusPtr(ticket.Status)}
		return s.appendEvents(ctx, tx, actor, OpCreate, ticket.ID, now, []domain.TicketEvent{created})
	})
	if err != nil {
		return nil, s.fail(OpCreate, ticket.ID, err)
	}

	s.record(OpCreate, "ok")
	s.signal(ctx, events.EventTicketChanged, actor, OpCreate, ticket)
	return ticket, nil
}

func (s *LifecycleService) policyFor(ctx context.Context, category string) (sla.Policy, error) {
	fallback := sla.Policy{StandardHours: s.cfg.DefaultStandardHours, VIPHours: s.cfg.DefaultVIPHours}
	cat, err := s.store.Categories().GetByName(ctx, category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fallback, nil
		}
		return sla.Policy{}, guard.Classify(err)
	}
	return sla.PolicyFor(cat, fallback), nil
}

func ticketCode(t domain.TicketType) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s", t, raw[:8])
}

// Assign gives the ticket to an agent, starting work on a pending ticket.
func (s *LifecycleService) Assign(ctx context.Context, actor domain.Actor, ticketID int64, agentID string) (*domain.Ticket, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, s.fail(OpAssign, ticketID, apperrors.NewValidationError("agent_id is required", nil))
	}
	agent, err := s.store.Agents().GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.fail(OpAssign, ticketID, apperrors.NewValidationError("unknown agent", map[string]any{"agent_id": agentID}))
		}
		return nil, s.fail(OpAssign, ticketID, guard.Classify(err))
	}
	if !agent.Active {
		return nil, s.fail(OpAssign, ticketID, apperrors.NewValidationError("agent is inactive", map[string]any{"agent_id": agentID}))
	}

	return s.mutate(ctx, actor, OpAssign, ticketID, func(t *domain.Ticket, _ time.Time) ([]domain.TicketEvent, error) {
		if t.Status.Terminal() {
			return nil, illegal(t.Status, OpAssign, "")
		}
		sameAgent := t.AssignedAgentID != nil && *t.AssignedAgentID == agentID
		if sameAgent && t.Status != domain.TicketStatusPending {
			return nil, errNoChange
		}

		var evts []domain.TicketEvent
		if !sameAgent {
			evts = append(evts, domain.TicketEvent{
				ActionType: domain.ActionAssigned,
				OldValue:   t.AssignedAgentID,
				NewValue:   strPtr(agentID),
			})
			t.AssignedAgentID = strPtr(agentID)
		}
		if t.Status == domain.TicketStatusPending {
			evts = append(evts, statusChange(t.Status, domain.TicketStatusInProgress, ""))
			t.Status = domain.TicketStatusInProgress
		}
		return evts, nil
	})
}

// Resolve closes the work with a solution. The resolver becomes the owner.
func (s *LifecycleService) Resolve(ctx context.Context, actor domain.Actor, ticketID int64, solution string) (*domain.Ticket, error) {
	solution = strings.TrimSpace(solution)
	if words := len(strings.Fields(solution)); words < s.cfg.MinSolutionWords || solution == "" {
		return nil, s.fail(OpResolve, ticketID, apperrors.NewIncompleteSolution(words, s.cfg.MinSolutionWords))
	}
	if actor.IsSystem() {
		return nil, s.fail(OpResolve, ticketID, apperrors.NewValidationError("resolve requires an acting agent", nil))
	}

	return s.mutate(ctx, actor, OpResolve, ticketID, func(t *domain.Ticket, now time.Time) ([]domain.TicketEvent, error) {
		if t.IsPaused() {
			return nil, illegal(t.Status, OpResolve, "resume the SLA clock first")
		}
		if t.Status != domain.TicketStatusInProgress {
			return nil, illegal(t.Status, OpResolve, "")
		}

		evts := []domain.TicketEvent{statusChange(t.Status, domain.TicketStatusResolved, "")}
		if t.AssignedAgentID == nil || *t.AssignedAgentID != actor.ID {
			evts = append(evts, domain.TicketEvent{
				ActionType: domain.ActionAssigned,
				OldValue:   t.AssignedAgentID,
				NewValue:   strPtr(actor.ID),
			})
		}
		evts = append(evts, domain.TicketEvent{ActionType: domain.ActionSolution, Comment: strPtr(solution)})

		t.Status = domain.TicketStatusResolved
		t.AssignedAgentID = strPtr(actor.ID)
		t.Solution = strPtr(solution)
		sla.MarkCompleted(t, now)
		if s.cfg.LegacyDescriptionWrites {
			appendDescription(t, timeline.FormatSolution(now, solution, s.cfg.Location()))
		}
		return evts, nil
	})
}

// ReturnToQueue sends the ticket back to PENDIENTE and unassigns it. From
// RESUELTO it reopens the ticket and restarts the clock.
func (s *LifecycleService) ReturnToQueue(ctx context.Context, actor domain.Actor, ticketID int64, comment string) (*domain.Ticket, error) {
	comment = strings.TrimSpace(comment)
	return s.mutate(ctx, actor, OpReturnToQueue, ticketID, func(t *domain.Ticket, _ time.Time) ([]domain.TicketEvent, error) {
		switch t.Status {
		case domain.TicketStatusResolved:
			t.SLAStatus = domain.SLAStatusRunning
		case domain.TicketStatusInProgress:
			if t.IsPaused() {
				return nil, illegal(t.Status, OpReturnToQueue, "resume the SLA clock first")
			}
		default:
			return nil, illegal(t.Status, OpReturnToQueue, "")
		}

		evts := []domain.TicketEvent{statusChange(t.Status, domain.TicketStatusPending, comment)}
		if t.AssignedAgentID != nil {
			evts = append(evts, domain.TicketEvent{ActionType: domain.ActionAssigned, OldValue: t.AssignedAgentID})
		}
		t.Status = domain.TicketStatusPending
		t.AssignedAgentID = nil
		return evts, nil
	})
}

// AddComment records a follow-up note. Comments are allowed in every status.
func (s *LifecycleService) AddComment(ctx context.Context, actor domain.Actor, ticketID int64, text string) (*domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, s.fail(OpComment, ticketID, apperrors.NewValidationError("comment is required", nil))
	}
	return s.mutate(ctx, actor, OpComment, ticketID, func(t *domain.Ticket, now time.Time) ([]domain.TicketEvent, error) {
		if s.cfg.LegacyDescriptionWrites {
			appendDescription(t, timeline.FormatFollowUp(now, text, s.cfg.Location()))
		}
		return []domain.TicketEvent{{ActionType: domain.ActionComment, Comment: strPtr(text)}}, nil
	})
}

// Reclassify changes the category. The stored deadline is kept.
func (s *LifecycleService) Reclassify(ctx context.Context, actor domain.Actor, ticketID int64, category string) (*domain.Ticket, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, s.fail(OpReclassify, ticketID, apperrors.NewValidationError("category is required", nil))
	}
	return s.mutate(ctx, actor, OpReclassify, ticketID, func(t *domain.Ticket, _ time.Time) ([]domain.TicketEvent, error) {
		if t.Category == category {
			return nil, errNoChange
		}
		ev := domain.TicketEvent{
			ActionType: domain.ActionReclassified,
			OldValue:   strPtr(t.Category),
			NewValue:   strPtr(category),
		}
		t.Category = category
		return []domain.TicketEvent{ev}, nil
	})
}

// Close is the administrative shortcut to CERRADO from any non-terminal status.
func (s *LifecycleService) Close(ctx context.Context, actor domain.Actor, ticketID int64, comment string) (*domain.Ticket, error) {
	if !actor.CanAdminister() {
		return nil, s.fail(OpClose, ticketID, apperrors.NewPermissionDenied("closing requires a supervisor or admin", map[string]any{"role": actor.Role}))
	}
	comment = strings.TrimSpace(comment)
	return s.mutate(ctx, actor, OpClose, ticketID, func(t *domain.Ticket, now time.Time) ([]domain.TicketEvent, error) {
		if t.Status.Terminal() {
			return nil, illegal(t.Status, OpClose, "")
		}
		ev := statusChange(t.Status, domain.TicketStatusClosed, comment)
		t.Status = domain.TicketStatusClosed
		sla.MarkCompleted(t, now)
		return []domain.TicketEvent{ev}, nil
	})
}

// AttachEvidence uploads a file and records its link on the ticket.
func (s *LifecycleService) AttachEvidence(ctx context.Context, actor domain.Actor, ticketID int64, fileName, contentType string, body io.Reader, size int64) (*domain.Ticket, string, error) {
	if s.evidence == nil {
		return nil, "", s.fail(OpAttachEvidence, ticketID, apperrors.NewDomainError(apperrors.CodeTransient, "evidence storage not configured", http.StatusServiceUnavailable, nil))
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, "", s.fail(OpAttachEvidence, ticketID, apperrors.NewValidationError("file name is required", nil))
	}
	// upload only for tickets the caller can see
	if _, err := s.load(ctx, ticketID); err != nil {
		return nil, "", s.fail(OpAttachEvidence, ticketID, err)
	}

	url, err := s.evidence.Upload(ctx, ticketID, fileName, contentType, body, size)
	if err != nil {
		return nil, "", s.fail(OpAttachEvidence, ticketID, err)
	}

	ticket, err := s.mutate(ctx, actor, OpAttachEvidence, ticketID, func(t *domain.Ticket, _ time.Time) ([]domain.TicketEvent, error) {
		if s.cfg.LegacyDescriptionWrites {
			appendDescription(t, timeline.FormatEvidence(url))
		}
		return []domain.TicketEvent{{
			ActionType: domain.ActionEvidence,
			NewValue:   strPtr(url),
			Comment:    strPtr(fileName),
		}}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return ticket, url, nil
}

// Get returns the ticket with its SLA snapshot.
func (s *LifecycleService) Get(ctx context.Context, ticketID int64) (*TicketView, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, apperrors.WithOperation(err, ticketID, "get")
	}
	return &TicketView{Ticket: ticket, SLA: sla.Snap(ticket, s.clock.Now(), s.slaOptions())}, nil
}

// List returns tickets matching the filter, newest activity first.
func (s *LifecycleService) List(ctx context.Context, filter repository.TicketFilter) ([]TicketView, error) {
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, apperrors.WithOperation(guard.Classify(err), 0, "list")
	}
	now := s.clock.Now()
	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		t := &tickets[i]
		views = append(views, TicketView{Ticket: t, SLA: sla.Snap(t, now, s.slaOptions())})
	}
	return views, nil
}

func statusChange(from, to domain.TicketStatus, comment string) domain.TicketEvent {
	ev := domain.TicketEvent{
		ActionType: domain.ActionStatusChange,
		OldValue:   statusPtr(from),
		NewValue:   statusPtr(to),
	}
	if comment != "" {
		ev.Comment = strPtr(comment)
	}
	return ev
}

func appendDescription(t *domain.Ticket, block string) {
	t.Description = strPtr(t.DescriptionText() + block)
}
