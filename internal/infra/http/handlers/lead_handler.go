package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/leadpool/internal/entity"
	"github.com/xavierca1/leadpool/internal/infra/http/middleware"
	"github.com/xavierca1/leadpool/internal/usecase"
)

type LeadQueries interface {
	ListLeads(ctx context.Context, caller *entity.Caller, filter entity.LeadFilter, page, pageSize int) (*usecase.LeadPage, error)
	GetStats(ctx context.Context, caller *entity.Caller, filter entity.LeadFilter) (*entity.LeadStats, error)
	GetLeadDetail(ctx context.Context, caller *entity.Caller, leadID int64) (*entity.LeadDetail, error)
}

type LeadAssigner interface {
	AssignOne(ctx context.Context, caller *entity.Caller, input usecase.AssignInput) (*usecase.AssignmentResult, error)
	AssignBatch(ctx context.Context, caller *entity.Caller, input usecase.BatchAssignInput) (*usecase.BatchResult, error)
}

type LeadLifecycle interface {
	CreateLead(ctx context.Context, caller *entity.Caller, input usecase.CreateLeadInput) (*entity.LeadSummary, error)
	AppendFollowUp(ctx context.Context, caller *entity.Caller, input usecase.AppendFollowUpInput) (*entity.FollowUpRecord, error)
	SoftDeleteLead(ctx context.Context, caller *entity.Caller, leadID int64) error
}

type LeadHandler struct {
	Queries   LeadQueries
	Assigner  LeadAssigner
	Lifecycle LeadLifecycle
	Log       *zap.Logger
}

func NewLeadHandler(queries LeadQueries, assigner LeadAssigner, lifecycle LeadLifecycle, log *zap.Logger) *LeadHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LeadHandler{Queries: queries, Assigner: assigner, Lifecycle: lifecycle, Log: log}
}

type CreateLeadRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	Source       string `json:"source" validate:"omitempty,max=50"`
	Remark       string `json:"remark" validate:"omitempty,max=2000"`
	AssignToSelf bool   `json:"assign_to_self"`
}

type AssignRequest struct {
	StaffID int64  `json:"staff_id" validate:"required,gt=0"`
	Note    string `json:"note" validate:"max=500"`
}

type BatchAssignRequest struct {
	LeadIDs []int64 `json:"lead_ids" validate:"required,min=1,max=500,dive,gt=0"`
	StaffID int64   `json:"staff_id" validate:"required,gt=0"`
	Note    string  `json:"note" validate:"max=500"`
}

type FollowUpRequest struct {
	Kind    string `json:"kind" validate:"required"`
	Content string `json:"content" validate:"max=2000"`
	Result  string `json:"result" validate:"omitempty"`
}

func (h *LeadHandler) Routes(r chi.Router) {
	r.Route("/leads", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/stats", h.Stats)
		r.Post("/assign", h.AssignBatch)
		r.Get("/{id}", h.Detail)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/assign", h.Assign)
		r.Post("/{id}/follow-ups", h.AppendFollowUp)
	})
}

// List handles GET /leads?source=&status=&owner_id=&keyword=&page=&page_size=
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	out, err := h.Queries.ListLeads(r.Context(), middleware.CallerFrom(r.Context()), filter, page, pageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	out, err := h.Queries.GetStats(r.Context(), middleware.CallerFrom(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	out, err := h.Queries.GetLeadDetail(r.Context(), middleware.CallerFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	out, err := h.Lifecycle.CreateLead(r.Context(), middleware.CallerFrom(r.Context()), usecase.CreateLeadInput{
		Name:         req.Name,
		Phone:        req.Phone,
		Source:       req.Source,
		Remark:       req.Remark,
		AssignToSelf: req.AssignToSelf,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// Delete is idempotent: deleting a lead that is already gone returns 204.
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	if err := h.Lifecycle.SoftDeleteLead(r.Context(), middleware.CallerFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LeadHandler) AppendFollowUp(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	var req FollowUpRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	out, err := h.Lifecycle.AppendFollowUp(r.Context(), middleware.CallerFrom(r.Context()), usecase.AppendFollowUpInput{
		LeadID:  id,
		Kind:    entity.Kind(req.Kind),
		Content: req.Content,
		Result:  entity.Result(req.Result),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *LeadHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	var req AssignRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	out, err := h.Assigner.AssignOne(r.Context(), middleware.CallerFrom(r.Context()), usecase.AssignInput{
		LeadID:  id,
		StaffID: req.StaffID,
		Note:    req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) AssignBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchAssignRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	out, err := h.Assigner.AssignBatch(r.Context(), middleware.CallerFrom(r.Context()), usecase.BatchAssignInput{
		LeadIDs: req.LeadIDs,
		StaffID: req.StaffID,
		Note:    req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if usecase.ErrorCode(err) == "" || usecase.IsTechnicalError(err) {
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, err)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (entity.LeadFilter, bool) {
	q := r.URL.Query()
	filter := entity.LeadFilter{
		Source:  q.Get("source"),
		Status:  entity.Result(strings.TrimSpace(q.Get("status"))),
		Keyword: q.Get("keyword"),
	}
	if raw := strings.TrimSpace(q.Get("owner_id")); raw != "" {
		owner, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, "owner_id must be an integer")
			return filter, false
		}
		filter.OwnerID = &owner
	}
	return filter, true
}

func leadID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "lead id must be a positive integer")
		return 0, false
	}
	return id, true
}
