package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketFilter captures list parameters.
type TicketFilter struct {
	Statuses        []domain.TicketStatus
	Type            *domain.TicketType
	Category        *string
	AssignedAgentID *string
	RequesterID     *string
	SLAStatus       *domain.SLAStatus
	SearchTerm      *string
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence. Update is a conditional
// write on the expected version and reports the rows it changed.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (int64, error)
	CurrentVersion(ctx context.Context, id int64) (int64, bool, error)
	ListBreachCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
}

// TicketEventRepository is the append-only audit trail.
type TicketEventRepository interface {
	Append(ctx context.Context, event *domain.TicketEvent) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketEvent, error)
}

// PauseReasonRepository reads the pause reason catalog.
type PauseReasonRepository interface {
	ListActive(ctx context.Context) ([]domain.PauseReason, error)
}

// SLACategoryRepository reads per-category resolution targets.
type SLACategoryRepository interface {
	GetByName(ctx context.Context, name string) (*domain.SLACategory, error)
}

// AgentRepository is the agent directory.
type AgentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// RequesterRepository is the requester directory.
type RequesterRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Requester, error)
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Tickets() TicketRepository
	Events() TicketEventRepository
	PauseReasons() PauseReasonRepository
	Categories() SLACategoryRepository
	Agents() AgentRepository
	Requesters() RequesterRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}
