package ratelimit

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
	"github.com/reviewcash/backend/internal/store/storetest"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// runLimiterSuite exercises a cooldown backend through the Limiter.
func runLimiterSuite(t *testing.T, st store.Cooldowns) {
	ctx := context.Background()

	t.Run("denies inside window and allows after", func(t *testing.T) {
		clock := newClock()
		l := New(st, WithClock(clock.Now))
		user := uuid.NewString()

		d, err := l.CheckAndRecord(ctx, user, models.PlatformYandex)
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		clock.Advance(71 * time.Hour)
		d, err = l.CheckAndRecord(ctx, user, models.PlatformYandex)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, time.Hour, d.RetryAfter)

		clock.Advance(time.Hour)
		d, err = l.CheckAndRecord(ctx, user, models.PlatformYandex)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("platforms are independent", func(t *testing.T) {
		clock := newClock()
		l := New(st, WithClock(clock.Now))
		user := uuid.NewString()

		d, err := l.CheckAndRecord(ctx, user, models.PlatformYandex)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		d, err = l.CheckAndRecord(ctx, user, models.PlatformGoogle)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("unlimited platform always allowed", func(t *testing.T) {
		l := New(st, WithClock(newClock().Now))
		user := uuid.NewString()
		for i := 0; i < 3; i++ {
			d, err := l.CheckAndRecord(ctx, user, models.PlatformTelegram)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		}
	})

	t.Run("release allows immediate resubmission", func(t *testing.T) {
		clock := newClock()
		l := New(st, WithClock(clock.Now))
		user := uuid.NewString()

		d, err := l.CheckAndRecord(ctx, user, models.PlatformGoogle)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		assert.Equal(t, clock.Now(), d.At)
		require.NoError(t, l.Release(ctx, user, models.PlatformGoogle, d.At))

		clock.Advance(time.Minute)
		d, err = l.CheckAndRecord(ctx, user, models.PlatformGoogle)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("releasing an older claim keeps the newer one", func(t *testing.T) {
		clock := newClock()
		l := New(st, WithClock(clock.Now))
		user := uuid.NewString()

		first, err := l.CheckAndRecord(ctx, user, models.PlatformGoogle)
		require.NoError(t, err)
		require.True(t, first.Allowed)

		clock.Advance(25 * time.Hour)
		second, err := l.CheckAndRecord(ctx, user, models.PlatformGoogle)
		require.NoError(t, err)
		require.True(t, second.Allowed)

		require.NoError(t, l.Release(ctx, user, models.PlatformGoogle, first.At))
		clock.Advance(time.Hour)
		d, err := l.CheckAndRecord(ctx, user, models.PlatformGoogle)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 23*time.Hour, d.RetryAfter)
	})

	t.Run("concurrent checks admit one", func(t *testing.T) {
		l := New(st, WithClock(newClock().Now))
		user := uuid.NewString()

		var allowed atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := l.CheckAndRecord(ctx, user, models.PlatformYandex)
				if err != nil {
					t.Errorf("check: %v", err)
					return
				}
				if d.Allowed {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), allowed.Load())
	})
}

func TestLimiter_SQLite(t *testing.T) {
	runLimiterSuite(t, storetest.Open(t).Cooldowns())
}

func TestLimiter_Redis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	rdb, err := ConnectRedis(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	runLimiterSuite(t, NewRedisStore(rdb))
}
