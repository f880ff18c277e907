package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadpool/internal/entity"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var leadColumns = []string{"id", "name", "phone", "source", "remark", "created_at"}

func TestLeadRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	lead := &entity.Lead{Name: "Chen family", Phone: "13800000001", Source: "WALK_IN"}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO leads (name, phone, source, remark, created_at) VALUES ($1, $2, $3, $4, clock_timestamp()) RETURNING id, created_at")).
		WithArgs("Chen family", "13800000001", "WALK_IN", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, created))

	err := NewLeadRepository(db).Create(context.Background(), lead)

	require.NoError(t, err)
	assert.Equal(t, int64(42), lead.ID)
	assert.Equal(t, created, lead.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_FindByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM leads").WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(leadColumns))

	_, err := NewLeadRepository(db).FindByID(context.Background(), 9)

	assert.ErrorIs(t, err, entity.ErrLeadNotFound)
}

func TestLeadRepository_LockByIDs(t *testing.T) {
	db, mock := newMock(t)
	created := time.Now()
	mock.ExpectQuery(`WHERE id = ANY\(\$1\) AND deleted_at IS NULL ORDER BY id FOR UPDATE`).
		WithArgs(pq.Array([]int64{3, 1, 2})).
		WillReturnRows(sqlmock.NewRows(leadColumns).
			AddRow(1, "Chen family", "", "", "", created).
			AddRow(3, "Sun family", "", "", "", created))

	locked, err := NewLeadRepository(db).LockByIDs(context.Background(), []int64{3, 1, 2})

	require.NoError(t, err)
	assert.Len(t, locked, 2)
	assert.Equal(t, "Sun family", locked[3].Name)
	assert.NotContains(t, locked, int64(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_SoftDelete(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE leads SET deleted_at = NOW()").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE leads SET deleted_at = NOW()").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewLeadRepository(db)
	assert.NoError(t, repo.SoftDelete(context.Background(), 5))
	assert.ErrorIs(t, repo.SoftDelete(context.Background(), 5), entity.ErrLeadNotFound)
}

// List, its total and Stats must bind the same scope and filter values.
func TestLeadRepository_ListAndStatsShareWhereClause(t *testing.T) {
	db, mock := newMock(t)
	vis := entity.Visibility{OwnerID: 11}
	filter := entity.LeadFilter{Keyword: "138"}
	p := "%138%"
	created := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	monthStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM leads l LEFT JOIN LATERAL .* ORDER BY f.id DESC LIMIT 1 \) cur ON TRUE WHERE \(l.deleted_at IS NULL AND cur.author_id = \$1 AND \(l.name ILIKE \$2`).
		WithArgs(int64(11), p, p, p, p).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`LEFT JOIN staff s ON s.id = cur.author_id WHERE .* ORDER BY l.id DESC LIMIT 10 OFFSET 0$`).
		WithArgs(int64(11), p, p, p, p).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "source", "remark", "created_at", "status", "author_id", "owner_name", "last"}).
			AddRow(7, "Chen family", "13800000001", "WALK_IN", "", created, "CONTACTED", 11, "Ms. Li", created))
	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE l.created_at >= \$1\), COUNT\(\*\) FILTER \(WHERE cur.author_id IS NULL\) FROM leads l .* WHERE \(l.deleted_at IS NULL AND cur.author_id = \$2 AND \(l.name ILIKE \$3`).
		WithArgs(monthStart, int64(11), p, p, p, p).
		WillReturnRows(sqlmock.NewRows([]string{"total", "new", "unassigned"}).AddRow(1, 1, 0))

	repo := NewLeadRepository(db)
	items, total, err := repo.List(context.Background(), vis, filter, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, int64(7), items[0].ID)
	assert.Equal(t, entity.ResultContacted, items[0].Status)
	assert.Equal(t, int64(11), *items[0].OwnerID)
	assert.Equal(t, "Ms. Li", items[0].OwnerName)
	require.NotNil(t, items[0].LastFollowUpAt)

	stats, err := repo.Stats(context.Background(), vis, filter, monthStart)
	require.NoError(t, err)
	assert.Equal(t, total, stats.Total)
	assert.Equal(t, entity.LeadStats{Total: 1, NewThisMonth: 1}, *stats)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_List_EmptyTotalSkipsPageQuery(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := NewLeadRepository(db).List(context.Background(), entity.Visibility{All: true}, entity.LeadFilter{Keyword: "nobody"}, 10, 0)

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
