package usecase_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/leadpool/internal/entity"
	"github.com/xavierca1/leadpool/internal/usecase"
)

var errDiskFull = errors.New("disk full")

// memDB is an in-memory lead pool. WithinTransaction snapshots it and
// restores the snapshot when fn fails, which is enough to observe
// all-or-nothing behavior. Like the SQL ledger it orders records by id and
// stamps created_at itself.
type memDB struct {
	leads    map[int64]*entity.Lead
	records  []*entity.FollowUpRecord
	staff    map[int64]*entity.Staff
	nextLead int64
	nextRec  int64
	now      time.Time

	// Append fails for these lead ids
	failAppend map[int64]error
	// WithinTransaction fails before running fn
	txErr error
}

func newMemDB(staff ...*entity.Staff) *memDB {
	db := &memDB{
		leads:      map[int64]*entity.Lead{},
		staff:      map[int64]*entity.Staff{},
		failAppend: map[int64]error{},
		now:        clock,
	}
	for _, s := range staff {
		db.staff[s.ID] = s
	}
	return db
}

func (db *memDB) store() usecase.Store {
	return usecase.Store{Leads: memLeads{db}, Ledger: memLedger{db}, Staff: memStaff{db}}
}

func (db *memDB) WithinTransaction(ctx context.Context, fn func(ctx context.Context, s usecase.Store) error) error {
	if db.txErr != nil {
		return db.txErr
	}
	leads := make(map[int64]*entity.Lead, len(db.leads))
	for id, l := range db.leads {
		cp := *l
		leads[id] = &cp
	}
	records := make([]*entity.FollowUpRecord, len(db.records))
	for i, r := range db.records {
		cp := *r
		records[i] = &cp
	}
	nextLead, nextRec := db.nextLead, db.nextRec

	if err := fn(ctx, db.store()); err != nil {
		db.leads, db.records = leads, records
		db.nextLead, db.nextRec = nextLead, nextRec
		return err
	}
	return nil
}

// seedLead inserts a lead directly, bypassing the use cases.
func (db *memDB) seedLead(name, phone, source string, createdAt time.Time) int64 {
	db.nextLead++
	db.leads[db.nextLead] = &entity.Lead{ID: db.nextLead, Name: name, Phone: phone, Source: source, CreatedAt: createdAt}
	return db.nextLead
}

func (db *memDB) seedRecord(leadID, author int64, kind entity.Kind, content string, result entity.Result, at time.Time) {
	db.nextRec++
	rec := entity.NewFollowUpRecord(leadID, author, kind, content, result)
	rec.ID = db.nextRec
	rec.CreatedAt = at
	db.records = append(db.records, rec)
}

func (db *memDB) live(id int64) (*entity.Lead, bool) {
	l, ok := db.leads[id]
	if !ok || l.DeletedAt != nil {
		return nil, false
	}
	return l, true
}

func (db *memDB) latest(leadID int64) *entity.FollowUpRecord {
	var out *entity.FollowUpRecord
	for _, r := range db.records {
		if r.LeadID != leadID || r.DeletedAt != nil {
			continue
		}
		if out == nil || r.ID > out.ID {
			out = r
		}
	}
	return out
}

func (db *memDB) matches(l *entity.Lead, vis entity.Visibility, f entity.LeadFilter) bool {
	latest := db.latest(l.ID)
	owner := entity.OwnerOf(latest)
	if !vis.Allows(owner) {
		return false
	}
	if f.Source != "" && l.Source != f.Source {
		return false
	}
	if f.Status != "" && entity.StatusOf(latest) != f.Status {
		return false
	}
	if f.OwnerID != nil && (owner == nil || *owner != *f.OwnerID) {
		return false
	}
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		hit := strings.Contains(strings.ToLower(l.Name), kw) ||
			strings.Contains(strings.ToLower(l.Phone), kw) ||
			strings.Contains(strings.ToLower(l.Remark), kw)
		for _, r := range db.records {
			if r.LeadID == l.ID && r.DeletedAt == nil && strings.Contains(strings.ToLower(r.Content), kw) {
				hit = true
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func (db *memDB) visible(vis entity.Visibility, f entity.LeadFilter) []*entity.Lead {
	var out []*entity.Lead
	for _, l := range db.leads {
		if l.DeletedAt == nil && db.matches(l, vis, f) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

type memLeads struct{ db *memDB }

func (m memLeads) Create(ctx context.Context, lead *entity.Lead) error {
	m.db.nextLead++
	lead.ID = m.db.nextLead
	lead.CreatedAt = m.db.now
	cp := *lead
	m.db.leads[lead.ID] = &cp
	return nil
}

func (m memLeads) FindByID(ctx context.Context, id int64) (*entity.Lead, error) {
	l, ok := m.db.live(id)
	if !ok {
		return nil, entity.ErrLeadNotFound
	}
	cp := *l
	return &cp, nil
}

func (m memLeads) LockByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Lead, error) {
	out := map[int64]*entity.Lead{}
	for _, id := range ids {
		if l, ok := m.db.live(id); ok {
			out[id] = l
		}
	}
	return out, nil
}

func (m memLeads) SoftDelete(ctx context.Context, id int64) error {
	l, ok := m.db.live(id)
	if !ok {
		return entity.ErrLeadNotFound
	}
	now := time.Now()
	l.DeletedAt = &now
	return nil
}

func (m memLeads) List(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, limit, offset int) ([]*entity.LeadSummary, int64, error) {
	all := m.db.visible(vis, filter)
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*entity.LeadSummary, 0, len(all))
	for _, l := range all {
		latest := m.db.latest(l.ID)
		s := &entity.LeadSummary{Lead: *l, Status: entity.StatusOf(latest), OwnerID: entity.OwnerOf(latest)}
		if s.OwnerID != nil {
			if st, ok := m.db.staff[*s.OwnerID]; ok {
				s.OwnerName = st.Name
			}
		}
		out = append(out, s)
	}
	return out, total, nil
}

func (m memLeads) Stats(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, monthStart time.Time) (*entity.LeadStats, error) {
	stats := &entity.LeadStats{}
	for _, l := range m.db.visible(vis, filter) {
		stats.Total++
		if !l.CreatedAt.Before(monthStart) {
			stats.NewThisMonth++
		}
		if entity.OwnerOf(m.db.latest(l.ID)) == nil {
			stats.Unassigned++
		}
	}
	return stats, nil
}

type memLedger struct{ db *memDB }

func (m memLedger) Append(ctx context.Context, rec *entity.FollowUpRecord) (int64, error) {
	if err, ok := m.db.failAppend[rec.LeadID]; ok {
		return 0, err
	}
	if _, ok := m.db.live(rec.LeadID); !ok {
		return 0, entity.ErrLeadNotFound
	}
	m.db.nextRec++
	rec.ID = m.db.nextRec
	rec.CreatedAt = m.db.now
	cp := *rec
	m.db.records = append(m.db.records, &cp)
	return cp.ID, nil
}

func (m memLedger) Latest(ctx context.Context, leadID int64) (*entity.FollowUpRecord, error) {
	return m.db.latest(leadID), nil
}

func (m memLedger) LatestByLeadIDs(ctx context.Context, leadIDs []int64) (map[int64]*entity.FollowUpRecord, error) {
	out := map[int64]*entity.FollowUpRecord{}
	for _, id := range leadIDs {
		if r := m.db.latest(id); r != nil {
			out[id] = r
		}
	}
	return out, nil
}

func (m memLedger) History(ctx context.Context, leadID int64) ([]entity.FollowUpRecord, error) {
	var out []entity.FollowUpRecord
	for _, r := range m.db.records {
		if r.LeadID == leadID && r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memLedger) SoftDeleteAll(ctx context.Context, leadID int64) error {
	now := time.Now()
	for _, r := range m.db.records {
		if r.LeadID == leadID && r.DeletedAt == nil {
			r.DeletedAt = &now
		}
	}
	return nil
}

type memStaff struct{ db *memDB }

func (m memStaff) FindByID(ctx context.Context, id int64) (*entity.Staff, error) {
	s, ok := m.db.staff[id]
	if !ok {
		return nil, entity.ErrStaffNotFound
	}
	return s, nil
}

// MockEventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishLeadAssigned(ctx context.Context, event usecase.LeadAssignedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockMetrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordAssignment(mode, outcome string) {
	m.Called(mode, outcome)
}

func (m *MockMetrics) RecordFollowUp(kind string) {
	m.Called(kind)
}

func (m *MockMetrics) RecordBatchRollback() {
	m.Called()
}

// MockEnrollmentReader
type MockEnrollmentReader struct {
	mock.Mock
}

func (m *MockEnrollmentReader) CountRegistered(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, from, to time.Time) (int64, error) {
	args := m.Called(ctx, vis, filter, from, to)
	return args.Get(0).(int64), args.Error(1)
}

// MockStaffRepository
type MockStaffRepository struct {
	mock.Mock
}

func (m *MockStaffRepository) FindByID(ctx context.Context, id int64) (*entity.Staff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Staff), args.Error(1)
}

var (
	admin    = &entity.Staff{ID: 1, Name: "Principal Wang", Role: entity.RoleAdmin}
	teacher1 = &entity.Staff{ID: 11, Name: "Ms. Li", Role: entity.RoleTeacher}
	teacher2 = &entity.Staff{ID: 12, Name: "Mr. Zhao", Role: entity.RoleTeacher}

	clock = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
)

func ptr[T any](v T) *T { return &v }

func newAssigner(db *memDB, policy usecase.BatchPolicy) *usecase.AssignLeadUseCase {
	return usecase.NewAssignLeadUseCase(db, memStaff{db}, nil, nil, nil, policy)
}

func newQueries(db *memDB, enrollments usecase.EnrollmentReader) *usecase.QueryLeadsUseCase {
	uc := usecase.NewQueryLeadsUseCase(memLeads{db}, memLedger{db}, memStaff{db}, enrollments, nil, 100, time.UTC)
	uc.Now = func() time.Time { return clock }
	return uc
}

func newLifecycle(db *memDB) *usecase.LeadLifecycleUseCase {
	return usecase.NewLeadLifecycleUseCase(db, nil, nil)
}
