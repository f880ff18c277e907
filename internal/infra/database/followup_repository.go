package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/leadpool/internal/entity"
)

const followUpColumns = `id, lead_id, author_id, kind, content, result, created_at`

// FollowUpRepository is the append-only follow-up ledger. Rows are only ever
// inserted or soft-deleted together with their lead.
//
// Ledger order is the id sequence. Writers hold the lead's row lock while
// appending, so a later id is always the later commit; created_at is for
// display and may disagree across clocks.
type FollowUpRepository struct {
	DB DBTX
}

func NewFollowUpRepository(db DBTX) *FollowUpRepository {
	return &FollowUpRepository{DB: db}
}

// Append inserts rec, refusing leads that are missing or soft-deleted. The
// database stamps created_at and rec is updated with it.
func (r *FollowUpRepository) Append(ctx context.Context, rec *entity.FollowUpRecord) (int64, error) {
	query := `
		INSERT INTO follow_up_records (lead_id, author_id, kind, content, result, created_at)
		SELECT $1::bigint, $2::bigint, $3::text, $4::text, $5::text, clock_timestamp()
		WHERE EXISTS (SELECT 1 FROM leads WHERE id = $1::bigint AND deleted_at IS NULL)
		RETURNING id, created_at
	`
	var author sql.NullInt64
	if rec.AuthorID != nil {
		author = sql.NullInt64{Int64: *rec.AuthorID, Valid: true}
	}

	var id int64
	var createdAt time.Time
	err := r.DB.QueryRowContext(ctx, query,
		rec.LeadID,
		author,
		string(rec.Kind),
		rec.Content,
		string(rec.Result),
	).Scan(&id, &createdAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, entity.ErrLeadNotFound
	case isForeignKeyViolation(err):
		return 0, entity.ErrStaffNotFound
	case err != nil:
		return 0, fmt.Errorf("append follow-up for lead %d: %w", rec.LeadID, classify(err))
	}

	rec.ID = id
	rec.CreatedAt = createdAt
	return id, nil
}

// Latest returns the newest live record of a lead, or nil when it has none.
func (r *FollowUpRepository) Latest(ctx context.Context, leadID int64) (*entity.FollowUpRecord, error) {
	query := `SELECT ` + followUpColumns + `
		FROM follow_up_records
		WHERE lead_id = $1 AND deleted_at IS NULL
		ORDER BY id DESC
		LIMIT 1`

	rec, err := scanFollowUp(r.DB.QueryRowContext(ctx, query, leadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest follow-up for lead %d: %w", leadID, classify(err))
	}
	return rec, nil
}

func (r *FollowUpRepository) LatestByLeadIDs(ctx context.Context, leadIDs []int64) (map[int64]*entity.FollowUpRecord, error) {
	query := `SELECT DISTINCT ON (lead_id) ` + followUpColumns + `
		FROM follow_up_records
		WHERE lead_id = ANY($1) AND deleted_at IS NULL
		ORDER BY lead_id, id DESC`

	rows, err := r.DB.QueryContext(ctx, query, pq.Array(leadIDs))
	if err != nil {
		return nil, fmt.Errorf("latest follow-ups: %w", classify(err))
	}
	defer rows.Close()

	latest := make(map[int64]*entity.FollowUpRecord, len(leadIDs))
	for rows.Next() {
		rec, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		latest[rec.LeadID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest follow-ups: %w", classify(err))
	}
	return latest, nil
}

// History returns every live record of a lead, newest first.
func (r *FollowUpRepository) History(ctx context.Context, leadID int64) ([]entity.FollowUpRecord, error) {
	query := `SELECT ` + followUpColumns + `
		FROM follow_up_records
		WHERE lead_id = $1 AND deleted_at IS NULL
		ORDER BY id DESC`

	rows, err := r.DB.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("history of lead %d: %w", leadID, classify(err))
	}
	defer rows.Close()

	history := []entity.FollowUpRecord{}
	for rows.Next() {
		rec, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		history = append(history, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history of lead %d: %w", leadID, classify(err))
	}
	return history, nil
}

func (r *FollowUpRepository) SoftDeleteAll(ctx context.Context, leadID int64) error {
	query := `UPDATE follow_up_records SET deleted_at = NOW() WHERE lead_id = $1 AND deleted_at IS NULL`
	if _, err := r.DB.ExecContext(ctx, query, leadID); err != nil {
		return fmt.Errorf("delete follow-ups of lead %d: %w", leadID, classify(err))
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFollowUp(s scanner) (*entity.FollowUpRecord, error) {
	rec := &entity.FollowUpRecord{}
	var author sql.NullInt64
	var kind, result string
	if err := s.Scan(&rec.ID, &rec.LeadID, &author, &kind, &rec.Content, &result, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if author.Valid {
		rec.AuthorID = &author.Int64
	}
	rec.Kind = entity.Kind(kind)
	rec.Result = entity.Result(result)
	return rec, nil
}
