package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/reviewcash/backend/internal/ledger"
	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

// effect is the ledger side of a resolution. It runs in the same
// transaction as the status update.
type effect func(ctx context.Context, l ledger.Service, r *models.Request) error

func noEffect(context.Context, ledger.Service, *models.Request) error { return nil }

func credit(ctx context.Context, l ledger.Service, r *models.Request) error {
	_, err := l.Credit(ctx, r.UserID, r.Amount)
	return err
}

func recordCompletion(ctx context.Context, l ledger.Service, r *models.Request) error {
	_, err := l.RecordCompletion(ctx, r.UserID, r.Amount)
	return err
}

// transition returns the terminal status and ledger effect for a decision.
//
//	kind      approve                    reject
//	topup     approved, credit           rejected
//	withdraw  paid                       rejected, credit (undo hold)
//	work      paid, record completion    rejected (cooldown released)
func transition(kind models.Kind, res models.Resolution) (models.Status, effect, error) {
	switch res {
	case models.ResolutionApprove:
		switch kind {
		case models.KindTopUp:
			return models.StatusApproved, credit, nil
		case models.KindWithdrawal:
			return models.StatusPaid, noEffect, nil
		case models.KindWork:
			return models.StatusPaid, recordCompletion, nil
		}
	case models.ResolutionReject:
		switch kind {
		case models.KindTopUp:
			return models.StatusRejected, noEffect, nil
		case models.KindWithdrawal:
			return models.StatusRejected, credit, nil
		case models.KindWork:
			return models.StatusRejected, noEffect, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s %s", ErrUnsupportedTransition, res, kind)
}

// Resolve applies an operator decision to a pending request. The status
// claim and the ledger effect commit together; a request that is no longer
// pending yields *store.AlreadyHandledError and no ledger change.
func (s *Service) Resolve(ctx context.Context, kind models.Kind, id string, res models.Resolution, admin, reason string) (*models.Request, error) {
	status, apply, err := transition(kind, res)
	if err != nil {
		return nil, err
	}
	if res != models.ResolutionReject {
		reason = ""
	}

	var resolved *models.Request
	err = s.store.WithinTx(ctx, func(r store.Repos) error {
		req, err := r.Requests().UpdateStatus(ctx, kind, id, store.StatusUpdate{
			Status:    status,
			HandledBy: admin,
			HandledAt: s.now().UTC(),
			Reason:    reason,
		})
		if err != nil {
			return err
		}
		if err := apply(ctx, ledger.New(r.Users()), req); err != nil {
			return fmt.Errorf("apply %s %s: %w", res, kind, err)
		}
		resolved = req
		return nil
	})
	if err != nil {
		s.metrics.ObserveResolution(string(kind), string(res), outcome(err))
		if errors.Is(err, store.ErrBalanceOverflow) {
			return nil, invalid("amount", "credit exceeds the balance limit")
		}
		return nil, err
	}

	if kind == models.KindWork && res == models.ResolutionReject {
		if err := s.limiter.Release(ctx, resolved.UserID, resolved.Details.Platform, resolved.CreatedAt); err != nil {
			s.logger.Error("release cooldown after rejection", "request_id", id, "user_id", resolved.UserID, "error", err)
		}
	}

	s.metrics.ObserveResolution(string(kind), string(res), "ok")
	s.logger.Info("request resolved", "kind", kind, "request_id", id, "status", status, "admin", admin)
	return resolved, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrAlreadyHandled):
		return "already_handled"
	default:
		return "error"
	}
}

func (s *Service) ApproveTopUp(ctx context.Context, id, admin string) (*models.Request, error) {
	return s.Resolve(ctx, models.KindTopUp, id, models.ResolutionApprove, admin, "")
}

func (s *Service) RejectTopUp(ctx context.Context, id, admin, reason string) (*models.Request, error) {
	return s.Resolve(ctx, models.KindTopUp, id, models.ResolutionReject, admin, reason)
}

func (s *Service) ApproveWithdrawal(ctx context.Context, id, admin string) (*models.Request, error) {
	return s.Resolve(ctx, models.KindWithdrawal, id, models.ResolutionApprove, admin, "")
}

func (s *Service) RejectWithdrawal(ctx context.Context, id, admin, reason string) (*models.Request, error) {
	return s.Resolve(ctx, models.KindWithdrawal, id, models.ResolutionReject, admin, reason)
}

func (s *Service) ApproveWork(ctx context.Context, id, admin string) (*models.Request, error) {
	return s.Resolve(ctx, models.KindWork, id, models.ResolutionApprove, admin, "")
}

func (s *Service) RejectWork(ctx context.Context, id, admin, reason string) (*models.Request, error) {
	return s.Resolve(ctx, models.KindWork, id, models.ResolutionReject, admin, reason)
}
