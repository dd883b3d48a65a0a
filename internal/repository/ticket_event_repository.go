package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

type ticketEventRepository struct {
	db DBTX
}

// NewTicketEventRepository creates repository.
func NewTicketEventRepository(db DBTX) TicketEventRepository {
	return &ticketEventRepository{db: db}
}

// Append inserts the event. A filtered insert returns no row and surfaces as pgx.ErrNoRows.
func (r *ticketEventRepository) Append(ctx context.Context, event *domain.TicketEvent) error {
	const query = `
        INSERT INTO ticket_events (ticket_id, action_type, old_value, new_value, comment, actor_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		event.TicketID,
		event.ActionType,
		event.OldValue,
		event.NewValue,
		event.Comment,
		event.ActorID,
		event.CreatedAt,
	).Scan(&event.ID)
}

func (r *ticketEventRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketEvent, error) {
	const query = `
        SELECT id, ticket_id, action_type, old_value, new_value, comment, actor_id, created_at
        FROM ticket_events WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketEvent
	for rows.Next() {
		var ev domain.TicketEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.TicketID,
			&ev.ActionType,
			&ev.OldValue,
			&ev.NewValue,
			&ev.Comment,
			&ev.ActorID,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}
