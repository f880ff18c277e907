package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xavierca1/leadpool/internal/entity"
)

type StaffRepository struct {
	DB DBTX
}

func NewStaffRepository(db DBTX) *StaffRepository {
	return &StaffRepository{DB: db}
}

func (r *StaffRepository) FindByID(ctx context.Context, id int64) (*entity.Staff, error) {
	query := `SELECT id, name, role, can_view_all FROM staff WHERE id = $1 AND deleted_at IS NULL`

	var s entity.Staff
	var role string
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &role, &s.CanViewAll)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrStaffNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find staff %d: %w", id, classify(err))
	}
	s.Role = entity.Role(role)
	return &s, nil
}

// ResolveCaller loads the role and scope flag of the staff member behind a
// request. It is read on every request so scope changes apply immediately.
func (r *StaffRepository) ResolveCaller(ctx context.Context, staffID int64) (*entity.Caller, error) {
	s, err := r.FindByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	return s.AsCaller(), nil
}
