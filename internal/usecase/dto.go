package usecase

import (
	"time"

	"github.com/xavierca1/leadpool/internal/entity"
)

type AssignInput struct {
	LeadID  int64
	StaffID int64
	Note    string
}

type BatchAssignInput struct {
	LeadIDs []int64
	StaffID int64
	Note    string
}

type AssignmentResult struct {
	LeadID          int64     `json:"lead_id"`
	OwnerID         int64     `json:"owner_id"`
	PreviousOwnerID *int64    `json:"previous_owner_id,omitempty"`
	RecordID        int64     `json:"record_id"`
	AssignedAt      time.Time `json:"assigned_at"`
	Changed         bool      `json:"changed"`
}

type BatchFailure struct {
	LeadID int64  `json:"lead_id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type BatchResult struct {
	AssignedCount int                `json:"assigned_count"`
	Assigned      []AssignmentResult `json:"assigned"`
	Failures      []BatchFailure     `json:"failures"`
}

type CreateLeadInput struct {
	Name         string
	Phone        string
	Source       string
	Remark       string
	AssignToSelf bool
}

type AppendFollowUpInput struct {
	LeadID  int64
	Kind    entity.Kind
	Content string
	Result  entity.Result // empty carries the current status forward
}

type LeadPage struct {
	Items    []*entity.LeadSummary `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}
