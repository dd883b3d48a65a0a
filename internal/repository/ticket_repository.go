package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

const ticketColumns = `id, code, type, category, requester_id, is_vip, status, assigned_agent_id,
       sla_status, sla_start_at, sla_expected_end_at, sla_clock_stopped_at, sla_last_paused_at,
       sla_pause_reason, hold_reason, sla_total_paused_ms, description, solution,
       version, created_at, updated_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (code, type, category, requester_id, is_vip, status, assigned_agent_id,
            sla_status, sla_start_at, sla_expected_end_at, description, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
        RETURNING id, version`
	return r.db.QueryRow(ctx, query,
		ticket.Code,
		ticket.Type,
		ticket.Category,
		ticket.RequesterID,
		ticket.IsVIP,
		ticket.Status,
		ticket.AssignedAgentID,
		ticket.SLAStatus,
		ticket.SLAStartAt,
		ticket.SLAExpectedEndAt,
		ticket.Description,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.Version)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (int64, error) {
	const query = `
        UPDATE tickets SET category=$1, status=$2, assigned_agent_id=$3, sla_status=$4,
            sla_clock_stopped_at=$5, sla_last_paused_at=$6, sla_pause_reason=$7, hold_reason=$8,
            sla_total_paused_ms=$9, description=$10, solution=$11, updated_at=$12, version=version+1
        WHERE id=$13 AND version=$14`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Category,
		ticket.Status,
		ticket.AssignedAgentID,
		ticket.SLAStatus,
		ticket.SLAClockStoppedAt,
		ticket.SLALastPausedAt,
		ticket.SLAPauseReason,
		ticket.HoldReason,
		ticket.SLATotalPausedDuration.Milliseconds(),
		ticket.Description,
		ticket.Solution,
		ticket.UpdatedAt,
		ticket.ID,
		expectedVersion,
	)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) CurrentVersion(ctx context.Context, id int64) (int64, bool, error) {
	var version int64
	err := r.db.QueryRow(ctx, `SELECT version FROM tickets WHERE id=$1`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, true, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.AssignedAgentID != nil {
		args = append(args, *filter.AssignedAgentID)
		clauses = append(clauses, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.SLAStatus != nil {
		args = append(args, *filter.SLAStatus)
		clauses = append(clauses, fmt.Sprintf("sla_status=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(code) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListBreachCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE sla_status='running' AND status NOT IN ('RESUELTO','CERRADO') AND sla_expected_end_at < $1
        ORDER BY sla_expected_end_at LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// NormalizePage clamps list paging to sane values.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		pausedMs int64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Code,
		&ticket.Type,
		&ticket.Category,
		&ticket.RequesterID,
		&ticket.IsVIP,
		&ticket.Status,
		&ticket.AssignedAgentID,
		&ticket.SLAStatus,
		&ticket.SLAStartAt,
		&ticket.SLAExpectedEndAt,
		&ticket.SLAClockStoppedAt,
		&ticket.SLALastPausedAt,
		&ticket.SLAPauseReason,
		&ticket.HoldReason,
		&pausedMs,
		&ticket.Description,
		&ticket.Solution,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.SLATotalPausedDuration = time.Duration(pausedMs) * time.Millisecond
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
