package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/leadpool/internal/entity"
)

// BatchPolicy decides what a batch assignment does with lead ids that are
// missing or outside the caller's scope.
type BatchPolicy string

const (
	// BatchSkipMissing reports such ids as failures and commits the rest.
	BatchSkipMissing BatchPolicy = "skip"
	// BatchAbortOnMissing rolls the whole batch back.
	BatchAbortOnMissing BatchPolicy = "abort"
)

func ParseBatchPolicy(s string) (BatchPolicy, error) {
	switch BatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", BatchSkipMissing:
		return BatchSkipMissing, nil
	case BatchAbortOnMissing:
		return BatchAbortOnMissing, nil
	}
	return "", fmt.Errorf("unknown batch policy %q", s)
}

type AssignLeadUseCase struct {
	Tx        Transactor
	StaffRepo StaffRepositoryInterface
	Publisher EventPublisher
	Metrics   Metrics
	Log       *zap.Logger
	Policy    BatchPolicy
}

func NewAssignLeadUseCase(
	tx Transactor,
	staffRepo StaffRepositoryInterface,
	publisher EventPublisher,
	metrics Metrics,
	log *zap.Logger,
	policy BatchPolicy,
) *AssignLeadUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if policy == "" {
		policy = BatchSkipMissing
	}
	return &AssignLeadUseCase{
		Tx:        tx,
		StaffRepo: staffRepo,
		Publisher: publisher,
		Metrics:   metrics,
		Log:       log,
		Policy:    policy,
	}
}

// AssignOne makes staffID the current owner of a lead by appending an ASSIGN
// record. Re-assigning to the current owner succeeds with Changed=false.
func (uc *AssignLeadUseCase) AssignOne(ctx context.Context, caller *entity.Caller, input AssignInput) (*AssignmentResult, error) {
	vis, err := ResolveVisibility(caller)
	if err != nil {
		return nil, err
	}
	if input.LeadID <= 0 {
		return nil, invalidArgument("lead_id is required")
	}
	if input.StaffID <= 0 {
		return nil, invalidArgument("staff_id is required")
	}

	staff, err := uc.findStaff(ctx, input.StaffID)
	if err != nil {
		return nil, err
	}

	var result *AssignmentResult
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

		result, err = uc.appendAssignment(ctx, s, staff, input.LeadID, latest, input.Note)
		return err
	})
	if err != nil {
		err = writeError(err)
		uc.Metrics.RecordAssignment("single", outcomeOf(err))
		uc.Log.Warn("assignment failed",
			zap.Int64("lead_id", input.LeadID),
			zap.Int64("staff_id", input.StaffID),
			zap.Error(err))
		return nil, err
	}

	uc.Metrics.RecordAssignment("single", "ok")
	uc.Log.Info("lead assigned",
		zap.Int64("lead_id", result.LeadID),
		zap.Int64("owner_id", result.OwnerID),
		zap.Bool("changed", result.Changed),
		zap.Int64("by", caller.StaffID))
	uc.publish(ctx, caller.StaffID, []AssignmentResult{*result})
	return result, nil
}

// AssignBatch assigns every lead in LeadIDs to one staff member inside a
// single transaction. Leads are processed in input order after duplicates
// are dropped; either every planned append commits or none does.
func (uc *AssignLeadUseCase) AssignBatch(ctx context.Context, caller *entity.Caller, input BatchAssignInput) (*BatchResult, error) {
	vis, err := ResolveVisibility(caller)
	if err != nil {
		return nil, err
	}
	ids := uniqueIDs(input.LeadIDs)
	if len(ids) == 0 {
		return nil, invalidArgument("lead_ids must not be empty")
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, invalidArgument("lead_ids contains invalid id %d", id)
		}
	}
	if input.StaffID <= 0 {
		return nil, invalidArgument("staff_id is required")
	}

	staff, err := uc.findStaff(ctx, input.StaffID)
	if err != nil {
		return nil, err
	}

	var result *BatchResult
	err = uc.Tx.WithinTransaction(ctx, func(ctx context.Context, s Store) error {
		result = &BatchResult{Assigned: []AssignmentResult{}, Failures: []BatchFailure{}}

		locked, err := s.Leads.LockByIDs(ctx, ids)
		if err != nil {
			return err
		}
		latest, err := s.Ledger.LatestByLeadIDs(ctx, ids)
		if err != nil {
			return err
		}

		txn := NewTransaction()
		for _, id := range ids {
			if _, ok := locked[id]; !ok {
				if uc.Policy == BatchAbortOnMissing {
					return notFound(entity.ErrLeadNotFound, "lead %d not found", id)
				}
				result.Failures = append(result.Failures, BatchFailure{LeadID: id, Code: CodeNotFound, Reason: "lead not found"})
				continue
			}
			prev := latest[id]
			if !vis.Allows(entity.OwnerOf(prev)) {
				if uc.Policy == BatchAbortOnMissing {
					return forbidden(id)
				}
				result.Failures = append(result.Failures, BatchFailure{LeadID: id, Code: CodeForbidden, Reason: "lead is outside the caller's scope"})
				continue
			}

			txn.AddOperation(fmt.Sprintf("assign lead %d", id), func(ctx context.Context) error {
				res, err := uc.appendAssignment(ctx, s, staff, id, prev, input.Note)
				if err != nil {
					return err
				}
				result.Assigned = append(result.Assigned, *res)
				return nil
			})
		}

		if err := txn.Execute(ctx); err != nil {
			return err
		}
		result.AssignedCount = len(result.Assigned)
		return nil
	})
	if err != nil {
		err = writeError(err)
		if ErrorCode(err) == CodeTransactionAborted {
			uc.Metrics.RecordBatchRollback()
		}
		uc.Metrics.RecordAssignment("batch", outcomeOf(err))
		uc.Log.Warn("batch assignment rolled back",
			zap.Int("leads", len(ids)),
			zap.Int64("staff_id", input.StaffID),
			zap.String("policy", string(uc.Policy)),
			zap.Error(err))
		return nil, err
	}

	uc.Metrics.RecordAssignment("batch", "ok")
	uc.Log.Info("batch assigned",
		zap.Int("assigned", result.AssignedCount),
		zap.Int("failed", len(result.Failures)),
		zap.Int64("owner_id", staff.ID),
		zap.Int64("by", caller.StaffID))
	uc.publish(ctx, caller.StaffID, result.Assigned)
	return result, nil
}

func (uc *AssignLeadUseCase) appendAssignment(ctx context.Context, s Store, staff *entity.Staff, leadID int64, latest *entity.FollowUpRecord, note string) (*AssignmentResult, error) {
	content := strings.TrimSpace(note)
	if content == "" {
		content = "assigned to " + staff.Name
	}

	// the assignment keeps the lead's status; only ownership moves
	rec := entity.NewFollowUpRecord(leadID, staff.ID, entity.KindAssign, content, entity.StatusOf(latest))

	id, err := s.Ledger.Append(ctx, rec)
	if err != nil {
		return nil, err
	}

	prev := entity.OwnerOf(latest)
	return &AssignmentResult{
		LeadID:          leadID,
		OwnerID:         staff.ID,
		PreviousOwnerID: prev,
		RecordID:        id,
		AssignedAt:      rec.CreatedAt,
		Changed:         prev == nil || *prev != staff.ID,
	}, nil
}

func (uc *AssignLeadUseCase) findStaff(ctx context.Context, id int64) (*entity.Staff, error) {
	staff, err := uc.StaffRepo.FindByID(ctx, id)
	switch {
	case errors.Is(err, entity.ErrStaffNotFound):
		return nil, notFound(err, "staff %d not found", id)
	case errors.Is(err, entity.ErrUnavailable):
		return nil, unavailable(err)
	case err != nil:
		return nil, &TechnicalError{Code: CodeUnavailable, Message: "failed to load staff", Err: err}
	}
	return staff, nil
}

func (uc *AssignLeadUseCase) publish(ctx context.Context, by int64, results []AssignmentResult) {
	if uc.Publisher == nil {
		return
	}
	for _, r := range results {
		event := LeadAssignedEvent{
			LeadID:          r.LeadID,
			OwnerID:         r.OwnerID,
			PreviousOwnerID: r.PreviousOwnerID,
			AssignedBy:      by,
			RecordID:        r.RecordID,
			AssignedAt:      r.AssignedAt,
		}
		if err := uc.Publisher.PublishLeadAssigned(ctx, event); err != nil {
			// the assignment is committed; the event is best effort
			uc.Log.Error("publish lead assigned", zap.Int64("lead_id", r.LeadID), zap.Error(err))
		}
	}
}

func outcomeOf(err error) string {
	if code := ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}
	return "error"
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
