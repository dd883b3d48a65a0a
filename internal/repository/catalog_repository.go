package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
)

type pauseReasonRepository struct {
	db DBTX
}

// NewPauseReasonRepository creates repository.
func NewPauseReasonRepository(db DBTX) PauseReasonRepository {
	return &pauseReasonRepository{db: db}
}

// ListActive returns active reasons. Rows seeded without a freezer tag get
// one derived from their description.
func (r *pauseReasonRepository) ListActive(ctx context.Context) ([]domain.PauseReason, error) {
	rows, err := r.db.Query(ctx, `SELECT id, description, active, requires_freezer FROM pause_reasons WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PauseReason
	for rows.Next() {
		var (
			reason domain.PauseReason
			tag    *bool
		)
		if err := rows.Scan(&reason.ID, &reason.Description, &reason.Active, &tag); err != nil {
			return nil, err
		}
		if tag != nil {
			reason.RequiresFreezer = *tag
		} else {
			reason.RequiresFreezer = sla.MatchesFreezerPattern(reason.Description)
		}
		result = append(result, reason)
	}
	return result, rows.Err()
}

type slaCategoryRepository struct {
	db DBTX
}

// NewSLACategoryRepository creates repository.
func NewSLACategoryRepository(db DBTX) SLACategoryRepository {
	return &slaCategoryRepository{db: db}
}

func (r *slaCategoryRepository) GetByName(ctx context.Context, name string) (*domain.SLACategory, error) {
	const query = `SELECT name, standard_hours, vip_hours, active FROM sla_categories WHERE LOWER(name)=LOWER($1)`
	var cat domain.SLACategory
	if err := r.db.QueryRow(ctx, query, name).Scan(&cat.Name, &cat.StandardHours, &cat.VIPHours, &cat.Active); err != nil {
		return nil, err
	}
	return &cat, nil
}
