package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadpool/internal/entity"
)

func TestStaffRepository_ResolveCaller(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM staff WHERE id = \\$1 AND deleted_at IS NULL").WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "can_view_all"}).AddRow(11, "Ms. Li", "teacher", false))
	mock.ExpectQuery("FROM staff").WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "can_view_all"}))

	repo := NewStaffRepository(db)
	caller, err := repo.ResolveCaller(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, &entity.Caller{StaffID: 11, Role: entity.RoleTeacher}, caller)

	_, err = repo.ResolveCaller(context.Background(), 99)
	assert.ErrorIs(t, err, entity.ErrStaffNotFound)
}

// The conversion count selects its leads with the same scope and filter
// clause as the list, as a sub-select rather than a bound id array.
func TestEnrollmentRepository_CountRegistered(t *testing.T) {
	db, mock := newMock(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT e.lead_id\) FROM enrollment_applications e ` +
		`WHERE e.status = \$1 AND e.registered_at >= \$2 AND e.registered_at < \$3 ` +
		`AND e.lead_id IN \(SELECT l.id FROM leads l LEFT JOIN LATERAL .* cur ON TRUE ` +
		`WHERE \(l.deleted_at IS NULL AND cur.author_id = \$4 AND l.source = \$5\)\)$`).
		WithArgs("REGISTERED", from, to, int64(11), "WALK_IN").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := NewEnrollmentRepository(db).CountRegistered(context.Background(),
		entity.Visibility{OwnerID: 11}, entity.LeadFilter{Source: "WALK_IN"}, from, to)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
