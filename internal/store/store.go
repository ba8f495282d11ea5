// Package store defines the durable collections behind the ledger: users,
// tasks, the three request collections, the operator roster and submission
// cooldowns. Backends live in the postgres and sqlite subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reviewcash/backend/internal/models"
)

var (
	// ErrNotFound is returned when a record id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyHandled matches *AlreadyHandledError.
	ErrAlreadyHandled = errors.New("already handled")
	// ErrBalanceOverflow is returned when a credit would exceed the int64
	// range of the balance or earnings counters. Nothing is written.
	ErrBalanceOverflow = errors.New("balance overflow")
)

// AlreadyHandledError reports a status update on a record that is no longer
// pending. Status is the record's current terminal status.
type AlreadyHandledError struct {
	Kind   models.Kind
	ID     string
	Status models.Status
}

func (e *AlreadyHandledError) Error() string {
	return fmt.Sprintf("%s %s already %s", e.Kind, e.ID, e.Status)
}

func (e *AlreadyHandledError) Is(target error) bool { return target == ErrAlreadyHandled }

// Users owns balances and completion counters. Every method is a single
// atomic statement and materializes unknown users with zero defaults.
type Users interface {
	// Ensure returns the user, creating it when unknown. A non-empty
	// username replaces the stored one.
	Ensure(ctx context.Context, id, username string) (*models.User, error)
	// AdjustBalance adds delta to the balance, clamping the result at zero.
	// It returns ErrBalanceOverflow instead of wrapping.
	AdjustBalance(ctx context.Context, id string, delta int64) (*models.User, error)
	// RecordCompletion credits amount and bumps tasks_done and total_earned.
	// It returns ErrBalanceOverflow instead of wrapping.
	RecordCompletion(ctx context.Context, id string, amount int64) (*models.User, error)
}

// Requests holds the top-up, withdrawal and work collections.
type Requests interface {
	// Append assigns ID, Status (pending) and CreatedAt and persists r.
	Append(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, kind models.Kind, id string) (*models.Request, error)
	// UpdateStatus moves a pending record to a terminal status in one
	// guarded statement. It returns ErrNotFound or *AlreadyHandledError when
	// the guard fails.
	UpdateStatus(ctx context.Context, kind models.Kind, id string, u StatusUpdate) (*models.Request, error)
	ListActive(ctx context.Context, kind models.Kind) ([]*models.Request, error)
	ListAll(ctx context.Context, kind models.Kind) ([]*models.Request, error)
}

// StatusUpdate carries the fields written by a resolution.
type StatusUpdate struct {
	Status    models.Status
	HandledBy string
	HandledAt time.Time
	Reason    string
}

// Tasks holds published tasks.
type Tasks interface {
	Create(ctx context.Context, t *models.Task) error
	Get(ctx context.Context, id string) (*models.Task, error)
	// Update rewrites title, link, budget and status.
	Update(ctx context.Context, t *models.Task) error
	ListActive(ctx context.Context) ([]*models.Task, error)
	ListAll(ctx context.Context) ([]*models.Task, error)
}

// Roster holds the operators notified about new requests.
type Roster interface {
	List(ctx context.Context) ([]*models.Operator, error)
	// Add inserts or renames an operator.
	Add(ctx context.Context, op *models.Operator) error
	Remove(ctx context.Context, id string) error
}

// Cooldowns records the last accepted submission per user and platform.
type Cooldowns interface {
	// Claim records now for (userID, platform) unless the stored timestamp
	// is later than now-window. When the claim is denied it returns the
	// stored timestamp.
	Claim(ctx context.Context, userID string, platform models.Platform, now time.Time, window time.Duration) (bool, time.Time, error)
	// Clear forgets the stored timestamp unless it is later than notAfter,
	// so releasing an old claim never drops a newer one.
	Clear(ctx context.Context, userID string, platform models.Platform, notAfter time.Time) error
	Last(ctx context.Context, userID string) (map[models.Platform]time.Time, error)
}

// Repos groups the collections. A Store's Repos and the Repos handed to a
// WithinTx callback implement the same contract.
type Repos interface {
	Users() Users
	Requests() Requests
	Tasks() Tasks
	Roster() Roster
	Cooldowns() Cooldowns
}

// Store is a durable backend.
type Store interface {
	Repos
	// WithinTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Repos) error) error
	Close() error
}

// NewID returns a time-ordered id with the given prefix.
func NewID(prefix string) string {
	return prefix + uuid.Must(uuid.NewV7()).String()
}

// TableFor maps a request kind to its collection.
func TableFor(kind models.Kind) (string, error) {
	switch kind {
	case models.KindTopUp:
		return "topups", nil
	case models.KindWithdrawal:
		return "withdrawals", nil
	case models.KindWork:
		return "works", nil
	default:
		return "", fmt.Errorf("unknown request kind %q", kind)
	}
}
