package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/xavierca1/leadpool/internal/entity"
)

// EnrollmentRepository reads enrollment applications. The table belongs to
// the admissions module; this side never writes to it.
type EnrollmentRepository struct {
	DB DBTX
}

func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// CountRegistered counts the leads visible under vis and filter whose
// application reached the registered state in [from, to). The lead
// population is a sub-select over the same WHERE clause as the list.
func (r *EnrollmentRepository) CountRegistered(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, from, to time.Time) (int64, error) {
	population := leadsFrom(sq.Select("l.id")).Where(leadWhere(vis, filter))

	query, args, err := psql.Select("COUNT(DISTINCT e.lead_id)").
		From("enrollment_applications e").
		Where(sq.Eq{"e.status": entity.EnrollmentRegistered}).
		Where(sq.GtOrEq{"e.registered_at": from}).
		Where(sq.Lt{"e.registered_at": to}).
		Where(sq.Expr("e.lead_id IN (?)", population)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build registered count: %w", err)
	}

	var n int64
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registered enrollments: %w", classify(err))
	}
	return n, nil
}
