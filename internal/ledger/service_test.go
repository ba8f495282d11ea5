package ledger

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewcash/backend/internal/store/storetest"
)

func TestLedger_DebitClampsAtZero(t *testing.T) {
	ctx := context.Background()
	l := New(storetest.Open(t).Users())

	u, err := l.Debit(ctx, "1", 250)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Balance)

	u, err = l.Credit(ctx, "1", 250)
	require.NoError(t, err)
	assert.Equal(t, int64(250), u.Balance)
}

func TestLedger_BalanceNeverNegative(t *testing.T) {
	ctx := context.Background()
	l := New(storetest.Open(t).Users())
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		amount := rng.Int63n(500)
		var err error
		if rng.Intn(2) == 0 {
			_, err = l.Credit(ctx, "u", amount)
		} else {
			_, err = l.Debit(ctx, "u", amount)
		}
		require.NoError(t, err)
		u, err := l.Get(ctx, "u")
		require.NoError(t, err)
		require.GreaterOrEqual(t, u.Balance, int64(0), "step %d", i)
	}
}

func TestLedger_RecordCompletion(t *testing.T) {
	ctx := context.Background()
	l := New(storetest.Open(t).Users())

	before, err := l.Get(ctx, "2")
	require.NoError(t, err)
	after, err := l.RecordCompletion(ctx, "2", 75)
	require.NoError(t, err)

	assert.Equal(t, before.TasksDone+1, after.TasksDone)
	assert.Equal(t, before.TotalEarned+75, after.TotalEarned)
	assert.Equal(t, before.Balance+75, after.Balance)
}

func TestLedger_RejectsNegativeAmounts(t *testing.T) {
	ctx := context.Background()
	l := New(storetest.Open(t).Users())

	_, err := l.Credit(ctx, "1", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Debit(ctx, "1", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.RecordCompletion(ctx, "1", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedger_CreditOverflowLeavesBalance(t *testing.T) {
	ctx := context.Background()
	l := New(storetest.Open(t).Users())

	_, err := l.Credit(ctx, "1", 5_000_000_000_000_000_000)
	require.NoError(t, err)
	_, err = l.Credit(ctx, "1", 5_000_000_000_000_000_000)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	_, err = l.RecordCompletion(ctx, "1", 5_000_000_000_000_000_000)
	require.ErrorIs(t, err, ErrBalanceOverflow)

	u, err := l.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000_000_000_000_000), u.Balance)
	assert.Equal(t, int64(0), u.TasksDone)

	u, err = l.Credit(ctx, "1", math.MaxInt64-u.Balance)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), u.Balance, "exact fit is allowed")
}

func TestLedger_ConcurrentWritesOnOneUser(t *testing.T) {
	ctx := context.Background()
	l := New(storetest.Open(t).Users())

	const (
		workers = 8
		rounds  = 25
	)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if _, err := l.Credit(ctx, "u", 3); err != nil {
					t.Errorf("credit: %v", err)
					return
				}
				if _, err := l.RecordCompletion(ctx, "u", 2); err != nil {
					t.Errorf("record completion: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	u, err := l.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*rounds*5), u.Balance)
	assert.Equal(t, int64(workers*rounds), u.TasksDone)
	assert.Equal(t, int64(workers*rounds*2), u.TotalEarned)

	// Debits summing to the balance never clamp, whatever the order.
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				u, err := l.Debit(ctx, "u", 5)
				if err != nil {
					t.Errorf("debit: %v", err)
					return
				}
				if u.Balance < 0 {
					t.Errorf("negative balance %d", u.Balance)
				}
			}
		}()
	}
	wg.Wait()

	u, err = l.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Balance)
	assert.Equal(t, int64(workers*rounds*2), u.TotalEarned)
}
