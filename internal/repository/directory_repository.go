package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

type agentRepository struct {
	db DBTX
}

// NewAgentRepository creates repository.
func NewAgentRepository(db DBTX) AgentRepository {
	return &agentRepository{db: db}
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	const query = `SELECT id::text, name, email, role, active, created_at FROM agents WHERE id::text=$1`
	var agent domain.Agent
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Email,
		&agent.Role,
		&agent.Active,
		&agent.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}

// NamesByIDs resolves display names; unknown ids are simply absent.
func (r *agentRepository) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id::text, name FROM agents WHERE id::text = ANY($1::text[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

type requesterRepository struct {
	db DBTX
}

// NewRequesterRepository creates repository.
func NewRequesterRepository(db DBTX) RequesterRepository {
	return &requesterRepository{db: db}
}

func (r *requesterRepository) GetByID(ctx context.Context, id string) (*domain.Requester, error) {
	const query = `SELECT id::text, name, email, is_vip FROM requesters WHERE id::text=$1`
	var req domain.Requester
	if err := r.db.QueryRow(ctx, query, id).Scan(&req.ID, &req.Name, &req.Email, &req.IsVIP); err != nil {
		return nil, err
	}
	return &req, nil
}
