package models

import "time"

// User is an end user's ledger row. Balance is in minor currency units and
// never drops below zero.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Balance     int64     `json:"balance"`
	TasksDone   int64     `json:"tasks_done"`
	TotalEarned int64     `json:"total_earned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// LastSubmission is filled on profile reads from the cooldown store.
	LastSubmission map[Platform]time.Time `json:"last_submission,omitempty"`
}

// Operator is a roster member who receives notifications about new requests.
type Operator struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	AddedAt  time.Time `json:"added_at"`
}
