package handlers

import (
	"net/http"
	"strings"

	"github.com/reviewcash/backend/internal/models"
)

// TasksPublic handles GET /api/tasks_public.
func (h *Handler) TasksPublic(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Lifecycle.ListTasks(r.Context(), true)
	if err != nil {
		h.Logger.Error("list public tasks", "error", err)
		tasks = []*models.Task{}
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tasks": tasks})
}

// ProfileMe handles GET /api/profile_me?uid=.
func (h *Handler) ProfileMe(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	user, err := h.Lifecycle.Profile(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user})
}
