package models

import "time"

// Task status enums.
const (
	TaskStatusActive = "active"
	TaskStatusClosed = "closed"
)

// Task is a published review job that users complete for its budget.
type Task struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Type      Platform  `json:"type"`
	Budget    int64     `json:"budget"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the task accepts work submissions.
func (t *Task) Active() bool { return t.Status == TaskStatusActive }
