package models

import (
	"fmt"
	"time"
)

// Kind discriminates the three request collections.
type Kind string

const (
	KindTopUp      Kind = "topup"
	KindWithdrawal Kind = "withdraw"
	KindWork       Kind = "work"
)

// Kinds lists every request kind.
var Kinds = []Kind{KindTopUp, KindWithdrawal, KindWork}

// ParseKind returns the kind named by s.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTopUp, KindWithdrawal, KindWork:
		return k, nil
	default:
		return "", fmt.Errorf("unknown request kind %q", s)
	}
}

// IDPrefix is prepended to generated ids so they read unambiguously in logs.
func (k Kind) IDPrefix() string {
	switch k {
	case KindTopUp:
		return "tp_"
	case KindWithdrawal:
		return "wd_"
	case KindWork:
		return "wk_"
	default:
		return "rq_"
	}
}

// ApprovedStatus is the terminal success status for the kind: top-ups are
// approved, withdrawals and work submissions are paid.
func (k Kind) ApprovedStatus() Status {
	if k == KindTopUp {
		return StatusApproved
	}
	return StatusPaid
}

// Status is a request's position in its lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Resolution is an operator decision on a pending request.
type Resolution string

const (
	ResolutionApprove Resolution = "approve"
	ResolutionReject  Resolution = "reject"
)

// ParseResolution returns the resolution named by s.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolutionApprove, ResolutionReject:
		return r, nil
	default:
		return "", fmt.Errorf("unknown resolution %q", s)
	}
}

// Request is the shared shape of top-up, withdrawal and work records.
type Request struct {
	ID           string     `json:"id"`
	Kind         Kind       `json:"kind"`
	UserID       string     `json:"user_id"`
	Username     string     `json:"username"`
	Amount       int64      `json:"amount"`
	Status       Status     `json:"status"`
	Details      Details    `json:"details"`
	CreatedAt    time.Time  `json:"created_at"`
	HandledBy    string     `json:"handled_by,omitempty"`
	HandledAt    *time.Time `json:"handled_at,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
}

// Details holds the kind-specific fields. Only the fields of the record's
// kind are set.
type Details struct {
	// top-up
	Code  string `json:"code,omitempty"`
	Phone string `json:"phone,omitempty"`

	// withdrawal
	Bank string `json:"bank,omitempty"`
	Card string `json:"card,omitempty"`
	Name string `json:"name,omitempty"`

	// work
	TaskID   string   `json:"task_id,omitempty"`
	Platform Platform `json:"platform,omitempty"`
	Text     string   `json:"text,omitempty"`
	Link     string   `json:"link,omitempty"`
}
