package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/leadpool/internal/entity"
)

type LeadRepositoryInterface interface {
	Create(ctx context.Context, lead *entity.Lead) error
	FindByID(ctx context.Context, id int64) (*entity.Lead, error)
	// LockByIDs takes row locks on the live leads among ids and returns them.
	// Missing or soft-deleted ids are simply absent from the result.
	LockByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Lead, error)
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, limit, offset int) ([]*entity.LeadSummary, int64, error)
	Stats(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, monthStart time.Time) (*entity.LeadStats, error)
}

// FollowUpLedger is the append-only interaction history of leads.
type FollowUpLedger interface {
	Append(ctx context.Context, rec *entity.FollowUpRecord) (int64, error)
	Latest(ctx context.Context, leadID int64) (*entity.FollowUpRecord, error)
	LatestByLeadIDs(ctx context.Context, leadIDs []int64) (map[int64]*entity.FollowUpRecord, error)
	History(ctx context.Context, leadID int64) ([]entity.FollowUpRecord, error)
	SoftDeleteAll(ctx context.Context, leadID int64) error
}

type StaffRepositoryInterface interface {
	FindByID(ctx context.Context, id int64) (*entity.Staff, error)
}

// EnrollmentReader reads the enrollment-application schema owned by the
// admissions module.
type EnrollmentReader interface {
	// CountRegistered counts leads of the population selected by vis and
	// filter whose application was registered in [from, to).
	CountRegistered(ctx context.Context, vis entity.Visibility, filter entity.LeadFilter, from, to time.Time) (int64, error)
}

// Store bundles the repositories bound to one connection or transaction.
type Store struct {
	Leads  LeadRepositoryInterface
	Ledger FollowUpLedger
	Staff  StaffRepositoryInterface
}

// Transactor runs fn inside a single database transaction, committing when
// fn returns nil and rolling back otherwise.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

type LeadAssignedEvent struct {
	LeadID          int64     `json:"lead_id"`
	OwnerID         int64     `json:"owner_id"`
	PreviousOwnerID *int64    `json:"previous_owner_id,omitempty"`
	AssignedBy      int64     `json:"assigned_by"`
	RecordID        int64     `json:"record_id"`
	AssignedAt      time.Time `json:"assigned_at"`
}

type EventPublisher interface {
	PublishLeadAssigned(ctx context.Context, event LeadAssignedEvent) error
}

// Metrics receives domain counters; implemented by the http middleware package.
type Metrics interface {
	RecordAssignment(mode, outcome string)
	RecordFollowUp(kind string)
	RecordBatchRollback()
}

type noopMetrics struct{}

func (noopMetrics) RecordAssignment(string, string) {}
func (noopMetrics) RecordFollowUp(string)           {}
func (noopMetrics) RecordBatchRollback()            {}
