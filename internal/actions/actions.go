// Package actions decodes and validates the envelopes posted by the
// Telegram WebApp.
package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Action string

const (
	ActionPublishTask     Action = "publish_task"
	ActionSubmitWork      Action = "submit_work"
	ActionRequestTopUp    Action = "request_topup"
	ActionRequestWithdraw Action = "request_withdraw"
	ActionConfirmTopUp    Action = "confirm_topup"
)

var Actions = []Action{ActionPublishTask, ActionSubmitWork, ActionRequestTopUp, ActionRequestWithdraw, ActionConfirmTopUp}

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPublishTask, ActionSubmitWork, ActionRequestTopUp, ActionRequestWithdraw, ActionConfirmTopUp:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// UserRef is the WebApp user. Telegram sends numeric ids; both numbers and
// strings are accepted and kept as a decimal string.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

func (u *UserRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       any    `json:"id"`
		Username string `json:"username"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch id := raw.ID.(type) {
	case nil:
		u.ID = ""
	case string:
		u.ID = id
	case json.Number:
		if _, err := id.Int64(); err != nil {
			return fmt.Errorf("user id %s is not an integer", id)
		}
		u.ID = id.String()
	default:
		return fmt.Errorf("user id has type %T", raw.ID)
	}
	u.Username = raw.Username
	return nil
}

// Envelope is a validated inbound action. Body holds the full document for
// decoding into the action's payload type.
type Envelope struct {
	Action Action
	User   UserRef
	Body   json.RawMessage
}

// Decode unmarshals the envelope body into the payload for its action.
func (e *Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Action, err)
	}
	return nil
}

type PublishTask struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Type   string `json:"type"`
	Budget int64  `json:"budget"`
}

type SubmitWork struct {
	TaskID   string `json:"task_id"`
	Platform string `json:"platform"`
	Text     string `json:"text"`
	Link     string `json:"link"`
}

type RequestTopUp struct {
	Amount int64  `json:"amount"`
	Code   string `json:"code"`
	Phone  string `json:"phone"`
}

type RequestWithdraw struct {
	Amount int64  `json:"amount"`
	Bank   string `json:"bank"`
	Card   string `json:"card"`
	Name   string `json:"name"`
}

// ConfirmTopUp is the user's "I paid" for a pending top-up.
type ConfirmTopUp struct {
	TopUpID string `json:"topup_id"`
}
