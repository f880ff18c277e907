package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadpool/internal/entity"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

type QueryLeadsUseCase struct {
	LeadRepo    LeadRepositoryInterface
	Ledger      FollowUpLedger
	StaffRepo   StaffRepositoryInterface
	Enrollments EnrollmentReader
	Log         *zap.Logger
	MaxPageSize int
	Location    *time.Location
	Now         func() time.Time
}

func NewQueryLeadsUseCase(
	leadRepo LeadRepositoryInterface,
	ledger FollowUpLedger,
	staffRepo StaffRepositoryInterface,
	enrollments EnrollmentReader,
	log *zap.Logger,
	maxPageSize int,
	loc *time.Location,
) *QueryLeadsUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &QueryLeadsUseCase{
		LeadRepo:    leadRepo,
		Ledger:      ledger,
		StaffRepo:   staffRepo,
		Enrollments: enrollments,
		Log:         log,
		MaxPageSize: maxPageSize,
		Location:    loc,
		Now:         time.Now,
	}
}

// ListLeads returns one page of the leads visible to the caller, newest id
// first. Non-positive page values fall back to the defaults.
func (uc *QueryLeadsUseCase) ListLeads(ctx context.Context, caller *entity.Caller, filter entity.LeadFilter, page, pageSize int) (*LeadPage, error) {
	vis, err := ResolveVisibility(caller)
	if err != nil {
		return nil, err
	}
	filter, err = normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	page, pageSize = uc.clampPage(page, pageSize)

	items, total, err := uc.LeadRepo.List(ctx, vis, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		uc.Log.Error("list leads", zap.Int64("caller", caller.StaffID), zap.Error(err))
		return nil, readError(err, "list leads")
	}
	if items == nil {
		items = []*entity.LeadSummary{}
	}

	return &LeadPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetStats computes the four pool counters over exactly the population
// ListLeads would return for the same caller and filter.
func (uc *QueryLeadsUseCase) GetStats(ctx context.Context, caller *entity.Caller, filter entity.LeadFilter) (*entity.LeadStats, error) {
	vis, err := ResolveVisibility(caller)
	if err != nil {
		return nil, err
	}
	filter, err = normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	from := MonthStart(uc.Now(), uc.Location)
	to := from.AddDate(0, 1, 0)

	stats, err := uc.LeadRepo.Stats(ctx, vis, filter, from)
	if err != nil {
		uc.Log.Error("lead stats", zap.Int64("caller", caller.StaffID), zap.Error(err))
		return nil, readError(err, "lead stats")
	}

	if stats.Total > 0 && uc.Enrollments != nil {
		converted, err := uc.Enrollments.CountRegistered(ctx, vis, filter, from, to)
		if err != nil {
			uc.Log.Error("converted count", zap.Int64("caller", caller.StaffID), zap.Error(err))
			return nil, readError(err, "converted count")
		}
		stats.ConvertedThisMonth = converted
	}

	return stats, nil
}

func (uc *QueryLeadsUseCase) GetLeadDetail(ctx context.Context, caller *entity.Caller, leadID int64) (*entity.LeadDetail, error) {
	vis, err := ResolveVisibility(caller)
	if err != nil {
		return nil, err
	}
	if leadID <= 0 {
		return nil, invalidArgument("lead id is required")
	}

	lead, err := uc.LeadRepo.FindByID(ctx, leadID)
	if errors.Is(err, entity.ErrLeadNotFound) {
		return nil, notFound(err, "lead %d not found", leadID)
	}
	if err != nil {
		return nil, readError(err, "find lead")
	}

	history, err := uc.Ledger.History(ctx, leadID)
	if err != nil {
		return nil, readError(err, "lead history")
	}
	if history == nil {
		history = []entity.FollowUpRecord{}
	}

	var latest *entity.FollowUpRecord
	if len(history) > 0 {
		latest = &history[0]
	}
	owner := entity.OwnerOf(latest)
	if !vis.Allows(owner) {
		return nil, forbidden(leadID)
	}

	detail := &entity.LeadDetail{
		Lead:    *lead,
		Status:  entity.StatusOf(latest),
		History: history,
	}
	if owner != nil {
		staff, err := uc.StaffRepo.FindByID(ctx, *owner)
		switch {
		case err == nil:
			detail.CurrentOwner = staff
		case errors.Is(err, entity.ErrStaffNotFound):
			uc.Log.Warn("owner no longer exists", zap.Int64("lead_id", leadID), zap.Int64("owner_id", *owner))
		default:
			return nil, readError(err, "find owner")
		}
	}

	return detail, nil
}

func (uc *QueryLeadsUseCase) clampPage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if uc.MaxPageSize > 0 && pageSize > uc.MaxPageSize {
		pageSize = uc.MaxPageSize
	}
	return page, pageSize
}

func normalizeFilter(f entity.LeadFilter) (entity.LeadFilter, error) {
	f.Source = strings.ToUpper(strings.TrimSpace(f.Source))
	f.Keyword = strings.TrimSpace(f.Keyword)
	if f.Status != "" {
		status, ok := entity.ParseResult(string(f.Status))
		if !ok {
			return f, invalidArgument("unknown status %q", f.Status)
		}
		f.Status = status
	}
	if f.OwnerID != nil && *f.OwnerID <= 0 {
		return f, invalidArgument("owner_id must be positive")
	}
	return f, nil
}

// MonthStart returns midnight of the first day of t's month in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

func readError(err error, what string) error {
	if errors.Is(err, entity.ErrUnavailable) {
		return unavailable(err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
