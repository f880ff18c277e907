package entity

import (
	"strings"
	"time"
)

type Kind string

const (
	KindCall   Kind = "CALL"
	KindEmail  Kind = "EMAIL"
	KindVisit  Kind = "VISIT"
	KindAssign Kind = "ASSIGN"
	KindOther  Kind = "OTHER"
)

// Result is the lead status snapshot carried by a follow-up record.
type Result string

const (
	ResultNew         Result = "NEW"
	ResultContacted   Result = "CONTACTED"
	ResultQualified   Result = "QUALIFIED"
	ResultProposal    Result = "PROPOSAL"
	ResultNegotiation Result = "NEGOTIATION"
	ResultClosedWon   Result = "CLOSED_WON"
	ResultClosedLost  Result = "CLOSED_LOST"
)

var kinds = map[Kind]bool{
	KindCall: true, KindEmail: true, KindVisit: true, KindAssign: true, KindOther: true,
}

var results = map[Result]bool{
	ResultNew: true, ResultContacted: true, ResultQualified: true, ResultProposal: true,
	ResultNegotiation: true, ResultClosedWon: true, ResultClosedLost: true,
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	return k, kinds[k]
}

func ParseResult(s string) (Result, bool) {
	r := Result(strings.ToUpper(strings.TrimSpace(s)))
	return r, results[r]
}

// FollowUpRecord is one immutable ledger entry. AuthorID doubles as the
// staff member responsible for the lead from this point on.
type FollowUpRecord struct {
	ID        int64      `json:"id"`
	LeadID    int64      `json:"lead_id"`
	AuthorID  *int64     `json:"author_id,omitempty"`
	Kind      Kind       `json:"kind"`
	Content   string     `json:"content"`
	Result    Result     `json:"result"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}

func NewFollowUpRecord(leadID, authorID int64, kind Kind, content string, result Result) *FollowUpRecord {
	return &FollowUpRecord{
		LeadID:    leadID,
		AuthorID:  &authorID,
		Kind:      kind,
		Content:   strings.TrimSpace(content),
		Result:    result,
		CreatedAt: time.Now(),
	}
}

// StatusOf derives a lead's current status from its latest record.
func StatusOf(latest *FollowUpRecord) Result {
	if latest == nil || latest.Result == "" {
		return ResultNew
	}
	return latest.Result
}

// OwnerOf derives a lead's current owner from its latest record.
func OwnerOf(latest *FollowUpRecord) *int64 {
	if latest == nil {
		return nil
	}
	return latest.AuthorID
}
