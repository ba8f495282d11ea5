package router

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewcash/backend/internal/actions"
	"github.com/reviewcash/backend/internal/auth"
	"github.com/reviewcash/backend/internal/handlers"
	"github.com/reviewcash/backend/internal/lifecycle"
	"github.com/reviewcash/backend/internal/metrics"
	"github.com/reviewcash/backend/internal/middleware"
	"github.com/reviewcash/backend/internal/ratelimit"
	"github.com/reviewcash/backend/internal/store/storetest"
)

type server struct {
	t     *testing.T
	h     http.Handler
	token string
	now   time.Time
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{t: t, now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return s.now }
	logger := slog.New(slog.DiscardHandler)

	st := storetest.Open(t)
	lc := lifecycle.New(lifecycle.Deps{
		Store:   st,
		Limiter: ratelimit.New(st.Cooldowns(), ratelimit.WithClock(clock)),
		Policy:  lifecycle.DefaultPolicy(),
		Logger:  logger,
		Now:     clock,
	})
	validator, err := actions.NewValidator()
	require.NoError(t, err)
	tokens, err := auth.NewService(auth.Config{
		Secret:        "router-test-secret-0123456789",
		TTL:           5 * time.Minute,
		PrimaryAdmins: []string{"@boss"},
		Now:           clock,
	})
	require.NoError(t, err)
	s.token, err = tokens.Issue("@boss")
	require.NoError(t, err)

	s.h = New(Config{
		Handler:     handlers.New(lc, validator, st.Roster(), logger),
		Tokens:      tokens,
		Metrics:     metrics.New(),
		RateLimit:   middleware.NewClientRateLimit(1000, 1000, logger),
		CORSOrigins: []string{"https://web.telegram.org"},
		Logger:      logger,
	})
	return s
}

func (s *server) do(method, path, body string, admin bool) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *server) list(path string) []map[string]any {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var out []map[string]any
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *server) balance(uid string) float64 {
	s.t.Helper()
	rec, body := s.do(http.MethodGet, "/api/profile_me?uid="+uid, "", false)
	require.Equal(s.t, http.StatusOK, rec.Code)
	return body["user"].(map[string]any)["balance"].(float64)
}

func TestWithdrawalFlowOverHTTP(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/webapp", `{"action":"request_withdraw","user":{"id":1001,"username":"alice"},"amount":250,"bank":"Сбер","card":"2202","name":"Alice"}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["ok"])
	id := body["request"].(map[string]any)["id"].(string)
	assert.Equal(t, float64(0), s.balance("1001"))

	pending := s.list("/api/withdraws?status=pending")
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0]["id"])

	rec, body = s.do(http.MethodPost, "/api/withdraws/"+id+"/reject", `{"reason":"card mismatch"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	req := body["request"].(map[string]any)
	assert.Equal(t, "rejected", req["status"])
	assert.Equal(t, "@boss", req["handled_by"])
	assert.Equal(t, "card mismatch", req["reject_reason"])
	assert.Equal(t, float64(250), s.balance("1001"))

	rec, body = s.do(http.MethodPost, "/api/withdraws/"+id+"/approve", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "already_handled", body["reason"])
	assert.Empty(t, s.list("/api/withdraws?status=pending"))
	assert.Len(t, s.list("/api/withdraws"), 1)
}

func TestTopUpFlowOverHTTP(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/webapp", `{"action":"request_topup","user":{"id":7},"amount":50}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", body["error"])
	assert.Empty(t, s.list("/api/topups"))

	rec, body = s.do(http.MethodPost, "/webapp", `{"action":"request_topup","user":{"id":7},"amount":500}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Regexp(t, `^RC-`, body["code"])
	id := body["request"].(map[string]any)["id"].(string)

	confirm := `{"action":"confirm_topup","user":{"id":7},"topup_id":"` + id + `"}`
	rec, _ = s.do(http.MethodPost, "/webapp", confirm, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = s.do(http.MethodPost, "/webapp", `{"action":"confirm_topup","user":{"id":8},"topup_id":"`+id+`"}`, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/topups/"+id+"/approve", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(500), s.balance("7"))

	rec, body = s.do(http.MethodPost, "/webapp", confirm, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "already_approved", body["reason"])

	rec, body = s.do(http.MethodPost, "/api/topups/"+id+"/approve", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "already_approved", body["reason"])
	assert.Equal(t, float64(500), s.balance("7"))

	rec, body = s.do(http.MethodPost, "/api/topups/tp_missing/approve", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["reason"])
}

func TestWorkFlowOverHTTP(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/webapp", `{"action":"publish_task","user":{"id":1},"title":"Bakery","link":"https://maps/1","type":"yandex","budget":60}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	taskID := body["task"].(map[string]any)["id"].(string)

	rec, body = s.do(http.MethodGet, "/api/tasks_public", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["tasks"], 1)

	work := `{"action":"submit_work","user":{"id":2},"task_id":"` + taskID + `","text":"posted"}`
	rec, body = s.do(http.MethodPost, "/webapp", work, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	workID := body["request"].(map[string]any)["id"].(string)

	rec, body = s.do(http.MethodPost, "/webapp", work, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", body["error"])
	assert.Equal(t, float64(72*3600), body["retry_after"])
	assert.Equal(t, "259200", rec.Header().Get("Retry-After"))

	rec, body = s.do(http.MethodPatch, "/api/tasks/"+taskID, `{"budget":90}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(90), body["task"].(map[string]any)["budget"])

	rec, _ = s.do(http.MethodPost, "/api/works/"+workID+"/approve", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, body = s.do(http.MethodGet, "/api/profile_me?uid=2", "", false)
	user := body["user"].(map[string]any)
	assert.Equal(t, float64(60), user["balance"])
	assert.Equal(t, float64(1), user["tasks_done"])
	assert.Equal(t, float64(60), user["total_earned"])

	rec, body = s.do(http.MethodPost, "/webapp", `{"action":"submit_work","user":{"id":2},"task_id":"task_nope","text":"x"}`, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])

	rec, _ = s.do(http.MethodDelete, "/api/tasks/"+taskID, "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, body = s.do(http.MethodDelete, "/api/tasks/"+taskID, "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "closed", body["task"].(map[string]any)["status"])
	_, body = s.do(http.MethodGet, "/api/tasks_public", "", false)
	assert.Empty(t, body["tasks"])
}

func TestAdminAuthOverHTTP(t *testing.T) {
	s := newServer(t)

	rec, _ := s.do(http.MethodGet, "/api/topups", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/topups?token=garbage", "", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/topups?token="+s.token, "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.now = s.now.Add(301 * time.Second)
	rec, _ = s.do(http.MethodGet, "/api/topups", "", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/mainadmin?token="+s.token, "", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConsoleAndRoster(t *testing.T) {
	s := newServer(t)

	rec, _ := s.do(http.MethodGet, "/mainadmin?token="+s.token, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec, _ = s.do(http.MethodPost, "/api/roster", `{"id":"555","username":"op"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, s.list("/api/roster"), 1)

	rec, _ = s.do(http.MethodDelete, "/api/roster/555", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.list("/api/roster"))

	rec, body := s.do(http.MethodDelete, "/api/roster/555", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["reason"])

	rec, _ = s.do(http.MethodPost, "/api/roster", `{"username":"noid"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newServer(t)
	rec, body := s.do(http.MethodGet, "/healthz", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	rec, _ = s.do(http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/healthz"`)
}
