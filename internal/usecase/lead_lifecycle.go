package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xavierca1/leadpool/internal/entity"
)

// LeadLifecycleUseCase covers intake, follow-ups and removal of leads.
type LeadLifecycleUseCase struct {
	Tx      Transactor
	Metrics Metrics
	Log     *zap.Logger
}

func NewLeadLifecycleUseCase(tx Transactor, metrics Metrics, log *zap.Logger) *LeadLifecycleUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LeadLifecycleUseCase{Tx: tx, Metrics: metrics, Log: log}
}

// CreateLead registers a new lead. A scope-limited caller always becomes the
// owner of the lead they enter, otherwise it would vanish from their view.
func (uc *LeadLifecycleUseCase) CreateLead(ctx context.Context, caller *entity.Caller, input CreateLeadInput) (*entity.LeadSummary, error) {
	vis, err := ResolveVisibility(caller)
	if err != nil {
		return nil, err
	}
	lead, err := entity.NewLead(input.Name, input.Phone, input.Source, input.Remark)
	if err != nil {
		return nil, invalidArgument("%s", err.Error())
	}

	summary := &entity.LeadSummary{Status: entity.ResultNew}
	claim := input.AssignToSelf || !vis.All

	err = uc.Tx.WithinTransaction(ctx, func(ctx context.Context, s Store) error {
		if err := s.Leads.Create(ctx, lead); err != nil {
			return err
		}
		if !claim {
			return nil
		}
		rec := entity.NewFollowUpRecord(lead.ID, caller.StaffID, entity.KindAssign, "created by owner", entity.ResultNew)
		if _, err := s.Ledger.Append(ctx, rec); err != nil {
			return err
		}
		summary.OwnerID = rec.AuthorID
		summary.LastFollowUpAt = &rec.CreatedAt
		return nil
	})
	if err != nil {
		uc.Log.Error("create lead", zap.Int64("caller", caller.StaffID), zap.Error(err))
		return nil, writeError(err)
	}

	summary.Lead = *lead
	uc.Log.Info("lead created", zap.Int64("lead_id", lead.ID), zap.String("source", lead.Source), zap.Bool("claimed", claim))
	return summary, nil
}

// AppendFollowUp logs an interaction authored by the caller. Any kind and
// result combination is accepted; an empty Result keeps the lead's current
// status.
func (uc *LeadLifecycleUseCase) AppendFollowUp(ctx context.Context, caller *entity.Caller, input AppendFollowUpInput) (*entity.FollowUpRecord, error) {
	vis, err := ResolveVisibility(caller)
	if err != nil {
		return nil, err
	}
	if input.LeadID <= 0 {
		return nil, invalidArgument("lead id is required")
	}
	kind, ok := entity.ParseKind(string(input.Kind))
	if !ok {
		return nil, invalidArgument("unknown follow-up kind %q", input.Kind)
	}
	var result entity.Result
	if input.Result != "" {
		if result, ok = entity.ParseResult(string(input.Result)); !ok {
			return nil, invalidArgument("unknown result %q", input.Result)
		}
	}

	var rec *entity.FollowUpRecord
	err = uc.Tx.WithinTransaction(ctx, func(ctx context.Context, s Store) error {
		locked, err := s.Leads.LockByIDs(ctx, []int64{input.LeadID})
		if err != nil {
			return err
		}
		if _, ok := locked[input.LeadID]; !ok {
			return notFound(entity.ErrLeadNotFound, "lead %d not found", input.LeadID)
		}
		latest, err := s.Ledger.Latest(ctx, input.LeadID)
		if err != nil {
			return err
		}
		if !vis.Allows(entity.OwnerOf(latest)) {
			return forbidden(input.LeadID)
		}

		status := result
		if status == "" {
			status = entity.StatusOf(latest)
		}
		rec = entity.NewFollowUpRecord(input.LeadID, caller.StaffID, kind, input.Content, status)
		rec.ID, err = s.Ledger.Append(ctx, rec)
		return err
	})
	if err != nil {
		return nil, writeError(err)
	}

	uc.Metrics.RecordFollowUp(string(kind))
	uc.Log.Info("follow-up appended",
		zap.Int64("lead_id", rec.LeadID),
		zap.String("kind", string(rec.Kind)),
		zap.String("result", string(rec.Result)),
		zap.Int64("author", caller.StaffID))
	return rec, nil
}

// SoftDeleteLead hides a lead and its history. Deleting a lead that is
// already gone succeeds.
func (uc *LeadLifecycleUseCase) SoftDeleteLead(ctx context.Context, caller *entity.Caller, leadID int64) error {
	vis, err := ResolveVisibility(caller)
	if err != nil {
		return err
	}
	if leadID <= 0 {
		return invalidArgument("lead id is required")
	}

	deleted := false
	err = uc.Tx.WithinTransaction(ctx, func(ctx context.Context, s Store) error {
		locked, err := s.Leads.LockByIDs(ctx, []int64{leadID})
		if err != nil {
			return err
		}
		if _, ok := locked[leadID]; !ok {
			return nil
		}
		latest, err := s.Ledger.Latest(ctx, leadID)
		if err != nil {
			return err
		}
		if !vis.Allows(entity.OwnerOf(latest)) {
			return forbidden(leadID)
		}
		if err := s.Ledger.SoftDeleteAll(ctx, leadID); err != nil {
			return err
		}
		if err := s.Leads.SoftDelete(ctx, leadID); err != nil && !errors.Is(err, entity.ErrLeadNotFound) {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return writeError(err)
	}

	if deleted {
		uc.Log.Info("lead deleted", zap.Int64("lead_id", leadID), zap.Int64("by", caller.StaffID))
	}
	return nil
}

func writeError(err error) error {
	if IsDomainError(err) || IsTechnicalError(err) {
		return err
	}
	if errors.Is(err, entity.ErrUnavailable) {
		return unavailable(err)
	}
	return aborted(err)
}
