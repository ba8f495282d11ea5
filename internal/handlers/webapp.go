package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/reviewcash/backend/internal/actions"
	"github.com/reviewcash/backend/internal/lifecycle"
	"github.com/reviewcash/backend/internal/models"
)

// WebApp handles POST /webapp, the single entry point for WebApp actions.
// Envelope: {action, user:{id, username}, ...action fields}.
func (h *Handler) WebApp(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "failed to read body"})
		return
	}
	env, err := h.Validator.Parse(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user := lifecycle.Submitter{ID: env.User.ID, Username: env.User.Username}
	if h.InitData != nil {
		verified, err := h.InitData.Verify(r.Header.Get(InitDataHeader))
		if err != nil {
			h.Logger.Warn("webapp init data rejected", "user_id", user.ID, "error", err)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: err.Error()})
			return
		}
		if verified.ID != user.ID {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Message: "user does not match init data"})
			return
		}
		if verified.Username != "" {
			user.Username = verified.Username
		}
	}

	switch env.Action {
	case actions.ActionRequestTopUp:
		var p actions.RequestTopUp
		if err := env.Decode(&p); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", actions.ErrValidation, err))
			return
		}
		req, err := h.Lifecycle.SubmitTopUp(r.Context(), lifecycle.TopUpInput{User: user, Amount: p.Amount, Code: p.Code, Phone: p.Phone})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":       true,
			"request":  req,
			"code":     req.Details.Code,
			"pay_hint": fmt.Sprintf("Transfer %d and put %s in the payment comment", req.Amount, req.Details.Code),
		})

	case actions.ActionConfirmTopUp:
		var p actions.ConfirmTopUp
		if err := env.Decode(&p); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", actions.ErrValidation, err))
			return
		}
		req, err := h.Lifecycle.ConfirmTopUp(r.Context(), user, p.TopUpID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "request": req})

	case actions.ActionRequestWithdraw:
		var p actions.RequestWithdraw
		if err := env.Decode(&p); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", actions.ErrValidation, err))
			return
		}
		req, err := h.Lifecycle.SubmitWithdrawal(r.Context(), lifecycle.WithdrawalInput{User: user, Amount: p.Amount, Bank: p.Bank, Card: p.Card, Name: p.Name})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "request": req})

	case actions.ActionSubmitWork:
		var p actions.SubmitWork
		if err := env.Decode(&p); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", actions.ErrValidation, err))
			return
		}
		req, err := h.Lifecycle.SubmitWork(r.Context(), lifecycle.WorkInput{
			User:     user,
			TaskID:   p.TaskID,
			Platform: models.Platform(p.Platform),
			Text:     p.Text,
			Link:     p.Link,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "request": req})

	case actions.ActionPublishTask:
		var p actions.PublishTask
		if err := env.Decode(&p); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", actions.ErrValidation, err))
			return
		}
		task, err := h.Lifecycle.PublishTask(r.Context(), lifecycle.TaskInput{
			User:   user,
			Title:  p.Title,
			Link:   p.Link,
			Type:   models.Platform(p.Type),
			Budget: p.Budget,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "task": task})

	default:
		h.writeError(w, r, fmt.Errorf("%w: unhandled action %q", actions.ErrValidation, env.Action))
	}
}
