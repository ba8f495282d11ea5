// Package ratelimit enforces the per-platform spacing between accepted work
// submissions of one user.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

// Decision is the outcome of a cooldown check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	// At is the recorded submission time when Allowed.
	At time.Time
}

// Limiter checks and records submissions against a cooldown store. The
// store performs check and record as one atomic step.
type Limiter struct {
	store store.Cooldowns
	now   func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(st store.Cooldowns, opts ...Option) *Limiter {
	l := &Limiter{store: st, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndRecord allows the submission when no accepted submission on the
// platform falls inside its cooldown window, and records it as the latest.
func (l *Limiter) CheckAndRecord(ctx context.Context, userID string, platform models.Platform) (Decision, error) {
	now := l.now()
	window := platform.Cooldown()
	ok, last, err := l.store.Claim(ctx, userID, platform, now, window)
	if err != nil {
		return Decision{}, fmt.Errorf("cooldown %s/%s: %w", userID, platform, err)
	}
	if ok {
		return Decision{Allowed: true, At: now}, nil
	}
	retry := last.Add(window).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return Decision{RetryAfter: retry}, nil
}

// Release forgets the submission claimed at claimedAt so the user may
// resubmit at once. A newer claim on the platform is kept.
func (l *Limiter) Release(ctx context.Context, userID string, platform models.Platform, claimedAt time.Time) error {
	if err := l.store.Clear(ctx, userID, platform, claimedAt); err != nil {
		return fmt.Errorf("release cooldown %s/%s: %w", userID, platform, err)
	}
	return nil
}

// Last returns the recorded submission times per platform.
func (l *Limiter) Last(ctx context.Context, userID string) (map[models.Platform]time.Time, error) {
	return l.store.Last(ctx, userID)
}
