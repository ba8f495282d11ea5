// Package ledger owns user balances and completion counters. Balances are
// clamped at zero: a debit larger than the balance empties it.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

var (
	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = errors.New("amount must not be negative")
	// ErrBalanceOverflow is returned when a credit would not fit the
	// balance. The user is left unchanged.
	ErrBalanceOverflow = store.ErrBalanceOverflow
)

type Service interface {
	Credit(ctx context.Context, userID string, amount int64) (*models.User, error)
	Debit(ctx context.Context, userID string, amount int64) (*models.User, error)
	// RecordCompletion credits amount and counts one finished task.
	RecordCompletion(ctx context.Context, userID string, amount int64) (*models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
}

type service struct {
	users store.Users
}

// New binds a ledger to a user collection. Inside a transaction pass the
// transaction's Users so ledger writes commit with it.
func New(users store.Users) Service {
	return &service{users: users}
}

var _ Service = (*service)(nil)

func (s *service) Credit(ctx context.Context, userID string, amount int64) (*models.User, error) {
	if amount < 0 {
		return nil, fmt.Errorf("credit %d: %w", amount, ErrInvalidAmount)
	}
	return s.users.AdjustBalance(ctx, userID, amount)
}

func (s *service) Debit(ctx context.Context, userID string, amount int64) (*models.User, error) {
	if amount < 0 {
		return nil, fmt.Errorf("debit %d: %w", amount, ErrInvalidAmount)
	}
	return s.users.AdjustBalance(ctx, userID, -amount)
}

func (s *service) RecordCompletion(ctx context.Context, userID string, amount int64) (*models.User, error) {
	if amount < 0 {
		return nil, fmt.Errorf("record completion %d: %w", amount, ErrInvalidAmount)
	}
	return s.users.RecordCompletion(ctx, userID, amount)
}

// Get returns the user, materializing it with zero defaults when unknown.
func (s *service) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.users.Ensure(ctx, userID, "")
}
