package actions

import (
	"errors"
	"strings"
	"testing"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestParse_ValidEnvelopes(t *testing.T) {
	v := newValidator(t)
	cases := []struct {
		name   string
		body   string
		action Action
	}{
		{"publish", `{"action":"publish_task","user":{"id":42,"username":"bob"},"title":"Cafe","link":"https://x","type":"yandex","budget":50}`, ActionPublishTask},
		{"work with text", `{"action":"submit_work","user":{"id":"42"},"task_id":"task_1","text":"done"}`, ActionSubmitWork},
		{"work with link", `{"action":"submit_work","user":{"id":42},"task_id":"task_1","link":"https://g.page/1"}`, ActionSubmitWork},
		{"topup", `{"action":"request_topup","user":{"id":42},"amount":100}`, ActionRequestTopUp},
		{"withdraw", `{"action":"request_withdraw","user":{"id":42},"amount":250,"bank":"Сбер","card":"2202","name":"Bob"}`, ActionRequestWithdraw},
		{"confirm topup", `{"action":"confirm_topup","user":{"id":42},"topup_id":"tp_1"}`, ActionConfirmTopUp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := v.Parse([]byte(tc.body))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if env.Action != tc.action {
				t.Errorf("action = %q, want %q", env.Action, tc.action)
			}
			if env.User.ID != "42" {
				t.Errorf("user id = %q, want 42", env.User.ID)
			}
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	v := newValidator(t)
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"array", `[]`},
		{"unknown action", `{"action":"get_tasks","user":{"id":1}}`},
		{"missing user", `{"action":"request_topup","amount":100}`},
		{"string amount", `{"action":"request_topup","user":{"id":1},"amount":"100"}`},
		{"fractional amount", `{"action":"request_topup","user":{"id":1},"amount":100.5}`},
		{"unknown platform", `{"action":"publish_task","user":{"id":1},"title":"t","link":"l","type":"vk","budget":5}`},
		{"work without proof", `{"action":"submit_work","user":{"id":1},"task_id":"task_1"}`},
		{"amount above ceiling", `{"action":"request_topup","user":{"id":1},"amount":5000000000000000000}`},
		{"budget above ceiling", `{"action":"publish_task","user":{"id":1},"title":"t","link":"l","type":"google","budget":9223372036854775807}`},
		{"confirm without id", `{"action":"confirm_topup","user":{"id":1}}`},
		{"withdraw without card", `{"action":"request_withdraw","user":{"id":1},"amount":250,"bank":"Сбер","name":"B"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Parse([]byte(tc.body))
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestParse_ErrorNamesField(t *testing.T) {
	v := newValidator(t)
	_, err := v.Parse([]byte(`{"action":"request_withdraw","user":{"id":1},"amount":250,"bank":"","card":"1","name":"B"}`))
	if err == nil || !strings.Contains(err.Error(), "/bank") {
		t.Fatalf("err = %v, want mention of /bank", err)
	}
}

func TestEnvelopeDecode(t *testing.T) {
	v := newValidator(t)
	env, err := v.Parse([]byte(`{"action":"request_withdraw","user":{"id":7,"username":"eve"},"amount":300,"bank":"ВТБ","card":"5536","name":"Eve"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var p RequestWithdraw
	if err := env.Decode(&p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Amount != 300 || p.Bank != "ВТБ" || p.Card != "5536" || p.Name != "Eve" {
		t.Errorf("payload = %+v", p)
	}
	if env.User.Username != "eve" {
		t.Errorf("username = %q", env.User.Username)
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(string(a))
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %q, %v", a, got, err)
		}
	}
	if _, err := ParseAction("admin_get_all"); err == nil {
		t.Error("expected error for unknown action")
	}
}
