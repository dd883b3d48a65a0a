package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx pool or an open transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	db     DBTX
	agents AgentRepository
}

// NewPostgresStore builds a store on the pool. agents overrides the agent
// directory, typically with the cached one; nil uses the table directly.
func NewPostgresStore(pool *pgxpool.Pool, agents AgentRepository) *PostgresStore {
	if agents == nil {
		agents = NewAgentRepository(pool)
	}
	return &PostgresStore{pool: pool, db: pool, agents: agents}
}

func (s *PostgresStore) Tickets() TicketRepository           { return NewTicketRepository(s.db) }
func (s *PostgresStore) Events() TicketEventRepository       { return NewTicketEventRepository(s.db) }
func (s *PostgresStore) PauseReasons() PauseReasonRepository { return NewPauseReasonRepository(s.db) }
func (s *PostgresStore) Categories() SLACategoryRepository   { return NewSLACategoryRepository(s.db) }
func (s *PostgresStore) Agents() AgentRepository             { return s.agents }
func (s *PostgresStore) Requesters() RequesterRepository     { return NewRequesterRepository(s.db) }

// WithinTx runs fn in a transaction, committing only when fn succeeds. Calls
// on a store that is already transactional run inline.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PostgresStore{db: tx, agents: s.agents}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
