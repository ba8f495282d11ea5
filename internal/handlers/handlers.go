// Package handlers serves the WebApp, public and admin HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/reviewcash/backend/internal/actions"
	"github.com/reviewcash/backend/internal/auth"
	"github.com/reviewcash/backend/internal/lifecycle"
	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

// Lifecycle is the request lifecycle as used over HTTP.
type Lifecycle interface {
	SubmitTopUp(ctx context.Context, in lifecycle.TopUpInput) (*models.Request, error)
	ConfirmTopUp(ctx context.Context, user lifecycle.Submitter, id string) (*models.Request, error)
	SubmitWithdrawal(ctx context.Context, in lifecycle.WithdrawalInput) (*models.Request, error)
	SubmitWork(ctx context.Context, in lifecycle.WorkInput) (*models.Request, error)
	PublishTask(ctx context.Context, in lifecycle.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, edit lifecycle.TaskEdit) (*models.Task, error)
	CloseTask(ctx context.Context, id, admin string) (*models.Task, error)
	Resolve(ctx context.Context, kind models.Kind, id string, res models.Resolution, admin, reason string) (*models.Request, error)
	ListRequests(ctx context.Context, kind models.Kind, activeOnly bool) ([]*models.Request, error)
	ListTasks(ctx context.Context, activeOnly bool) ([]*models.Task, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
}

var _ Lifecycle = (*lifecycle.Service)(nil)

// InitDataVerifier authenticates the Telegram WebApp user.
type InitDataVerifier interface {
	Verify(initData string) (auth.WebAppUser, error)
}

var _ InitDataVerifier = (*auth.InitDataVerifier)(nil)

// InitDataHeader carries Telegram.WebApp.initData on /webapp calls.
const InitDataHeader = "X-Telegram-Init-Data"

// Handler serves every JSON endpoint.
type Handler struct {
	Lifecycle Lifecycle
	Validator *actions.Validator
	Roster    store.Roster
	// InitData, when set, makes /webapp require signed init data whose
	// user matches the envelope.
	InitData InitDataVerifier
	Logger   *slog.Logger
}

func New(lc Lifecycle, validator *actions.Validator, roster store.Roster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Lifecycle: lc, Validator: validator, Roster: roster, Logger: logger}
}

type errorResponse struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

// writeError maps lifecycle and store errors to status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rateLimited *lifecycle.RateLimitedError
		handled     *store.AlreadyHandledError
	)
	switch {
	case errors.Is(err, lifecycle.ErrValidation), errors.Is(err, actions.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: err.Error()})
	case errors.As(err, &rateLimited):
		secs := int64(math.Ceil(rateLimited.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: err.Error(), RetryAfter: secs})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Reason: "not_found"})
	case errors.As(err, &handled):
		reason := "already_handled"
		if handled.Status == models.StatusApproved || handled.Status == models.StatusPaid {
			reason = "already_approved"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: reason, Reason: reason})
	case errors.Is(err, lifecycle.ErrUnsupportedTransition):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported", Message: err.Error()})
	default:
		h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Healthz handles GET /healthz.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
