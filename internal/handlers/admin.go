package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/reviewcash/backend/internal/lifecycle"
	"github.com/reviewcash/backend/internal/middleware"
	"github.com/reviewcash/backend/internal/models"
)

// ListRequests handles GET /api/{topups,withdraws,works}. A failed read is
// logged and served as an empty list.
func (h *Handler) ListRequests(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := r.URL.Query().Get("status") == string(models.StatusPending)
		list, err := h.Lifecycle.ListRequests(r.Context(), kind, activeOnly)
		if err != nil {
			h.Logger.Error("list requests", "kind", kind, "error", err)
		}
		if list == nil {
			list = []*models.Request{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ListTasks handles GET /api/tasks.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("status") == models.TaskStatusActive
	tasks, err := h.Lifecycle.ListTasks(r.Context(), activeOnly)
	if err != nil {
		h.Logger.Error("list tasks", "error", err)
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type resolveRequest struct {
	Reason string `json:"reason"`
}

// Resolve handles POST /api/{kind}/{id}/{approve,reject}.
func (h *Handler) Resolve(kind models.Kind, res models.Resolution) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var body resolveRequest
		if err := decodeOptional(r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
		admin := middleware.AdminFromCtx(r.Context())
		req, err := h.Lifecycle.Resolve(r.Context(), kind, id, res, admin, strings.TrimSpace(body.Reason))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "request": req})
	}
}

// ListRoster handles GET /api/roster.
func (h *Handler) ListRoster(w http.ResponseWriter, r *http.Request) {
	ops, err := h.Roster.List(r.Context())
	if err != nil {
		h.Logger.Error("list roster", "error", err)
	}
	if ops == nil {
		ops = []*models.Operator{}
	}
	writeJSON(w, http.StatusOK, ops)
}

type addOperatorRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AddOperator handles POST /api/roster.
func (h *Handler) AddOperator(w http.ResponseWriter, r *http.Request) {
	var body addOperatorRequest
	if err := decodeOptional(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	id := strings.TrimSpace(body.ID)
	if id == "" {
		h.writeError(w, r, &lifecycle.ValidationError{Field: "id", Message: "required"})
		return
	}
	op := &models.Operator{ID: id, Username: strings.TrimSpace(body.Username)}
	if err := h.Roster.Add(r.Context(), op); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Info("operator added", "operator_id", op.ID, "admin", middleware.AdminFromCtx(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "operator": op})
}

// RemoveOperator handles DELETE /api/roster/{id}.
func (h *Handler) RemoveOperator(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Roster.Remove(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Info("operator removed", "operator_id", id, "admin", middleware.AdminFromCtx(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type patchTaskRequest struct {
	Title  *string `json:"title"`
	Link   *string `json:"link"`
	Budget *int64  `json:"budget"`
}

// PatchTask handles PATCH /api/tasks/{id}.
func (h *Handler) PatchTask(w http.ResponseWriter, r *http.Request) {
	var body patchTaskRequest
	if err := decodeOptional(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	task, err := h.Lifecycle.UpdateTask(r.Context(), r.PathValue("id"), lifecycle.TaskEdit{
		Title:  body.Title,
		Link:   body.Link,
		Budget: body.Budget,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "task": task})
}

// CloseTask handles DELETE /api/tasks/{id}. The task is kept as closed so
// work already submitted against it can still be resolved.
func (h *Handler) CloseTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Lifecycle.CloseTask(r.Context(), r.PathValue("id"), middleware.AdminFromCtx(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "task": task})
}

// decodeOptional decodes a JSON body when one is present.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &lifecycle.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
}
