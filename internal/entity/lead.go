package entity

import (
	"errors"
	"strings"
	"time"
)

// Lead is a prospective family ("parent") in the customer pool.
type Lead struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Source    string     `json:"source,omitempty"` // intake channel: WALK_IN, REFERRAL, CONSULTATION...
	Remark    string     `json:"remark,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}

// LeadSummary is a list row: the lead plus the state derived from its ledger.
type LeadSummary struct {
	Lead
	Status         Result     `json:"status"`
	OwnerID        *int64     `json:"owner_id,omitempty"`
	OwnerName      string     `json:"owner_name,omitempty"`
	LastFollowUpAt *time.Time `json:"last_follow_up_at,omitempty"`
}

// LeadDetail is a lead together with its full history, newest first.
type LeadDetail struct {
	Lead         Lead             `json:"lead"`
	Status       Result           `json:"status"`
	CurrentOwner *Staff           `json:"current_owner,omitempty"`
	History      []FollowUpRecord `json:"history"`
}

// LeadFilter holds the optional caller-supplied list filters. Nil / empty
// fields are ignored.
type LeadFilter struct {
	Source  string
	Status  Result
	OwnerID *int64
	Keyword string
}

type LeadStats struct {
	Total              int64 `json:"total"`
	NewThisMonth       int64 `json:"new_this_month"`
	Unassigned         int64 `json:"unassigned"`
	ConvertedThisMonth int64 `json:"converted_this_month"`
}

func NewLead(name, phone, source, remark string) (*Lead, error) {
	lead := &Lead{
		Name:      strings.TrimSpace(name),
		Phone:     strings.TrimSpace(phone),
		Source:    strings.ToUpper(strings.TrimSpace(source)),
		Remark:    strings.TrimSpace(remark),
		CreatedAt: time.Now(),
	}

	if err := lead.Validate(); err != nil {
		return nil, err
	}
	return lead, nil
}

func (l *Lead) Validate() error {
	if l.Name == "" {
		return errors.New("name is required")
	}
	if len([]rune(l.Name)) > 100 {
		return errors.New("name must not exceed 100 characters")
	}
	if l.Phone != "" && !isPhone(l.Phone) {
		return errors.New("phone must contain 5 to 20 digits")
	}
	return nil
}

func isPhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 5 && digits <= 20
}
