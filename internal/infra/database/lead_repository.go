package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/xavierca1/leadpool/internal/entity"
)

type LeadRepository struct {
	DB DBTX
}

func NewLeadRepository(db DBTX) *LeadRepository {
	return &LeadRepository{DB: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	query := `
		INSERT INTO leads (name, phone, source, remark, created_at)
		VALUES ($1, $2, $3, $4, clock_timestamp())
		RETURNING id, created_at
	`
	err := r.DB.QueryRowContext(ctx, query,
		lead.Name,
		lead.Phone,
		lead.Source,
		lead.Remark,
	).Scan(&lead.ID, &lead.CreatedAt)
	if err != nil {
		return fmt.Errorf("create lead: %w", classify(err))
	}
	return nil
}

func (r *LeadRepository) FindByID(ctx context.Context, id int64) (*entity.Lead, error) {
	query := `
		SELECT id, name, phone, source, remark, created_at
		FROM leads
		WHERE id = $1 AND deleted_at IS NULL
	`
	var lead entity.Lead
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&lead.ID,
		&lead.Name,
		&lead.Phone,
		&lead.Source,
		&lead.Remark,
		&lead.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find lead %d: %w", id, classify(err))
	}
	return &lead, nil
}

// LockByIDs locks the live rows in id order so concurrent batches touching
// overlapping leads queue up instead of deadlocking.
func (r *LeadRepository) LockByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Lead, error) {
	query := `
		SELECT id, name, phone, source, remark, created_at
		FROM leads
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY id
		FOR UPDATE
	`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock leads: %w", classify(err))
	}
	defer rows.Close()

	leads := make(map[int64]*entity.Lead, len(ids))
	for rows.Next() {
		lead := &entity.Lead{}
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Source, &lead.Remark, &lead.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan locked lead: %w", err)
		}
		leads[lead.ID] = lead
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock leads: %w", classify(err))
	}
	return leads, nil
}

func (r *LeadRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE leads SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete lead %d: %w", id, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return entity.ErrLeadNotFound
	}
	return nil
}

func (r *LeadRepository) List(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, limit, offset int) ([]*entity.LeadSummary, int64, error) {
	where := leadWhere(vis, filter)

	countQuery, args, err := leadsFrom(psql.Select("COUNT(*)")).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build lead count: %w", err)
	}
	var total int64
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", classify(err))
	}
	if total == 0 {
		return []*entity.LeadSummary{}, 0, nil
	}

	query, args, err := leadsFrom(psql.Select(
		"l.id", "l.name", "l.phone", "l.source", "l.remark", "l.created_at",
		"COALESCE(cur.result, 'NEW')", "cur.author_id", "COALESCE(s.name, '')", "cur.created_at",
	)).
		LeftJoin("staff s ON s.id = cur.author_id").
		Where(where).
		OrderBy("l.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build lead list: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", classify(err))
	}
	defer rows.Close()

	items := []*entity.LeadSummary{}
	for rows.Next() {
		item := &entity.LeadSummary{}
		var status string
		var owner sql.NullInt64
		var last sql.NullTime
		err := rows.Scan(
			&item.ID, &item.Name, &item.Phone, &item.Source, &item.Remark, &item.CreatedAt,
			&status, &owner, &item.OwnerName, &last,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		item.Status = entity.Result(status)
		if owner.Valid {
			item.OwnerID = &owner.Int64
		}
		if last.Valid {
			item.LastFollowUpAt = &last.Time
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", classify(err))
	}

	return items, total, nil
}

func (r *LeadRepository) Stats(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, monthStart time.Time) (*entity.LeadStats, error) {
	query, args, err := leadsFrom(psql.Select("COUNT(*)")).
		Column(sq.Expr("COUNT(*) FILTER (WHERE l.created_at >= ?)", monthStart)).
		Column("COUNT(*) FILTER (WHERE cur.author_id IS NULL)").
		Where(leadWhere(vis, filter)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lead stats: %w", err)
	}

	var stats entity.LeadStats
	err = r.DB.QueryRowContext(ctx, query, args...).Scan(&stats.Total, &stats.NewThisMonth, &stats.Unassigned)
	if err != nil {
		return nil, fmt.Errorf("lead stats: %w", classify(err))
	}
	return &stats, nil
}
