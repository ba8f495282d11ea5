// Package notify tells operators about new requests. Delivery is best
// effort: failures are logged and never reach the request lifecycle.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reviewcash/backend/internal/auth"
	"github.com/reviewcash/backend/internal/models"
)

// EventKind names what happened.
type EventKind string

const (
	EventTopUpSubmitted      EventKind = "topup_submitted"
	EventWithdrawalSubmitted EventKind = "withdraw_submitted"
	EventWorkSubmitted       EventKind = "work_submitted"
	EventTaskPublished       EventKind = "task_published"
	EventTopUpConfirmed      EventKind = "topup_confirmed"
)

// Event is the payload handed to a Dispatcher.
type Event struct {
	Kind      EventKind `json:"kind"`
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Amount    int64     `json:"amount"`
	Detail    string    `json:"detail,omitempty"`
}

// Text renders the operator-facing message.
func (e Event) Text() string {
	who := e.UserID
	if e.Username != "" {
		who = "@" + e.Username + " (" + e.UserID + ")"
	}
	var head string
	switch e.Kind {
	case EventTopUpSubmitted:
		head = "New top-up request"
	case EventWithdrawalSubmitted:
		head = "New withdrawal request"
	case EventWorkSubmitted:
		head = "New work submission"
	case EventTaskPublished:
		head = "New task published"
	case EventTopUpConfirmed:
		head = "User reports payment for top-up"
	default:
		head = string(e.Kind)
	}
	msg := fmt.Sprintf("%s %s\nfrom %s\namount: %d", head, e.RequestID, who, e.Amount)
	if e.Detail != "" {
		msg += "\n" + e.Detail
	}
	return msg
}

// Dispatcher is the boundary used by the request lifecycle.
type Dispatcher interface {
	Notify(ctx context.Context, ev Event) error
}

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// RosterSource lists the operators to notify. store.Roster satisfies it.
type RosterSource interface {
	List(ctx context.Context) ([]*models.Operator, error)
}

// Observer counts per-recipient delivery results.
type Observer interface {
	ObserveNotification(result string)
}

// Fanout delivers an event to every roster operator and primary admin.
type Fanout struct {
	roster   RosterSource
	admins   []string
	sender   Sender
	observer Observer
	logger   *slog.Logger
}

func NewFanout(roster RosterSource, primaryAdmins []string, sender Sender, observer Observer, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{roster: roster, admins: primaryAdmins, sender: sender, observer: observer, logger: logger}
}

// Deliver sends ev to each recipient once. Per-recipient failures are
// logged; only a roster read failure is returned.
func (f *Fanout) Deliver(ctx context.Context, ev Event) (int, error) {
	ops, err := f.roster.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load roster: %w", err)
	}
	seen := make(map[string]struct{})
	var recipients []string
	add := func(id string) {
		key := auth.Normalize(id)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		recipients = append(recipients, id)
	}
	for _, a := range f.admins {
		add(a)
	}
	for _, op := range ops {
		add(op.ID)
	}

	text := ev.Text()
	sent := 0
	for _, to := range recipients {
		if err := f.sender.Send(ctx, to, text); err != nil {
			f.logger.Warn("notification delivery failed",
				"recipient", to, "event", ev.Kind, "request_id", ev.RequestID, "error", err)
			f.observe("failed")
			continue
		}
		f.observe("sent")
		sent++
	}
	return sent, nil
}

func (f *Fanout) observe(result string) {
	if f.observer != nil {
		f.observer.ObserveNotification(result)
	}
}
