package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

// Opener returns an empty store that is closed when the test finishes.
type Opener func(t *testing.T) store.Store

// RunContract runs the behavior every store.Store backend must share. Each
// case gets a fresh store from open.
func RunContract(t *testing.T, open Opener) {
	cases := []struct {
		name string
		run  func(*testing.T, Opener)
	}{
		{"Users_AdjustBalanceClampsAtZero", testUsersAdjustBalanceClampsAtZero},
		{"Users_EnsureKeepsUsername", testUsersEnsureKeepsUsername},
		{"Users_OverflowIsRejected", testUsersOverflowIsRejected},
		{"Users_RecordCompletion", testUsersRecordCompletion},
		{"Requests_AppendAndFind", testRequestsAppendAndFind},
		{"Requests_UpdateStatusGuard", testRequestsUpdateStatusGuard},
		{"Requests_ConcurrentUpdateSingleWinner", testRequestsConcurrentUpdateSingleWinner},
		{"Requests_ListActive", testRequestsListActive},
		{"WithinTx_RollsBack", testWithinTxRollsBack},
		{"Tasks_CreateUpdateList", testTasksCreateUpdateList},
		{"Roster_AddRemove", testRosterAddRemove},
		{"Cooldowns_Claim", testCooldownsClaim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) { tc.run(t, open) })
	}
}

func testUsersAdjustBalanceClampsAtZero(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	u, err := st.Users().AdjustBalance(ctx, "42", -250)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Balance, "unknown user is created and clamped")

	u, err = st.Users().AdjustBalance(ctx, "42", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), u.Balance)

	u, err = st.Users().AdjustBalance(ctx, "42", -1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Balance)
}

func testUsersEnsureKeepsUsername(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	u, err := st.Users().Ensure(ctx, "7", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	u, err = st.Users().Ensure(ctx, "7", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, int64(0), u.Balance)
}

func testUsersOverflowIsRejected(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	_, err := st.Users().AdjustBalance(ctx, "8", 5_000_000_000_000_000_000)
	require.NoError(t, err)
	_, err = st.Users().AdjustBalance(ctx, "8", 5_000_000_000_000_000_000)
	require.ErrorIs(t, err, store.ErrBalanceOverflow)
	_, err = st.Users().RecordCompletion(ctx, "8", 5_000_000_000_000_000_000)
	require.ErrorIs(t, err, store.ErrBalanceOverflow)

	u, err := st.Users().Ensure(ctx, "8", "")
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000_000_000_000_000), u.Balance)
	assert.Equal(t, int64(0), u.TasksDone)
}

func testUsersRecordCompletion(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	_, err := st.Users().RecordCompletion(ctx, "1", 40)
	require.NoError(t, err)
	u, err := st.Users().RecordCompletion(ctx, "1", 60)
	require.NoError(t, err)

	assert.Equal(t, int64(100), u.Balance)
	assert.Equal(t, int64(2), u.TasksDone)
	assert.Equal(t, int64(100), u.TotalEarned)
}

func testRequestsAppendAndFind(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	req := &models.Request{
		Kind:    models.KindWithdrawal,
		UserID:  "9",
		Amount:  250,
		Details: models.Details{Bank: "Сбер", Card: "4276", Name: "Ivan"},
	}
	require.NoError(t, st.Requests().Append(ctx, req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.StatusPending, req.Status)

	got, err := st.Requests().FindByID(ctx, models.KindWithdrawal, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Details, got.Details)
	assert.Nil(t, got.HandledAt)

	_, err = st.Requests().FindByID(ctx, models.KindTopUp, req.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "collections are separate")
}

func testRequestsUpdateStatusGuard(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	req := &models.Request{Kind: models.KindTopUp, UserID: "1", Amount: 500}
	require.NoError(t, st.Requests().Append(ctx, req))

	at := time.Now()
	got, err := st.Requests().UpdateStatus(ctx, models.KindTopUp, req.ID, store.StatusUpdate{
		Status: models.StatusApproved, HandledBy: "admin", HandledAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.HandledAt)
	assert.Equal(t, "admin", got.HandledBy)

	_, err = st.Requests().UpdateStatus(ctx, models.KindTopUp, req.ID, store.StatusUpdate{Status: models.StatusRejected})
	require.ErrorIs(t, err, store.ErrAlreadyHandled)
	var handled *store.AlreadyHandledError
	require.True(t, errors.As(err, &handled))
	assert.Equal(t, models.StatusApproved, handled.Status)

	_, err = st.Requests().UpdateStatus(ctx, models.KindTopUp, "tp_missing", store.StatusUpdate{Status: models.StatusApproved})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRequestsConcurrentUpdateSingleWinner(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	req := &models.Request{Kind: models.KindWithdrawal, UserID: "1", Amount: 100}
	require.NoError(t, st.Requests().Append(ctx, req))

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		handled int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Requests().UpdateStatus(ctx, models.KindWithdrawal, req.ID, store.StatusUpdate{Status: models.StatusPaid})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, store.ErrAlreadyHandled):
				handled++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, handled)
}

func testRequestsListActive(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	a := &models.Request{Kind: models.KindWork, UserID: "1", Amount: 10}
	b := &models.Request{Kind: models.KindWork, UserID: "2", Amount: 20}
	require.NoError(t, st.Requests().Append(ctx, a))
	require.NoError(t, st.Requests().Append(ctx, b))
	_, err := st.Requests().UpdateStatus(ctx, models.KindWork, a.ID, store.StatusUpdate{Status: models.StatusRejected, Reason: "no proof"})
	require.NoError(t, err)

	active, err := st.Requests().ListActive(ctx, models.KindWork)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	all, err := st.Requests().ListAll(ctx, models.KindWork)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testWithinTxRollsBack(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	boom := errors.New("boom")
	err := st.WithinTx(ctx, func(r store.Repos) error {
		if _, err := r.Users().AdjustBalance(ctx, "5", 100); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := st.Users().Ensure(ctx, "5", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Balance)
}

func testTasksCreateUpdateList(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	task := &models.Task{OwnerID: "1", Title: "Review cafe", Link: "https://example.com", Type: models.PlatformYandex, Budget: 50}
	require.NoError(t, st.Tasks().Create(ctx, task))
	assert.Equal(t, models.TaskStatusActive, task.Status)

	task.Budget = 80
	require.NoError(t, st.Tasks().Update(ctx, task))
	got, err := st.Tasks().Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80), got.Budget)

	active, err := st.Tasks().ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	got.Status = models.TaskStatusClosed
	require.NoError(t, st.Tasks().Update(ctx, got))
	active, err = st.Tasks().ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := st.Tasks().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.TaskStatusClosed, all[0].Status)

	err = st.Tasks().Update(ctx, &models.Task{ID: "task_missing", Budget: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRosterAddRemove(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)

	require.NoError(t, st.Roster().Add(ctx, &models.Operator{ID: "100", Username: "op1"}))
	require.NoError(t, st.Roster().Add(ctx, &models.Operator{ID: "100", Username: "op1-renamed"}))
	require.NoError(t, st.Roster().Add(ctx, &models.Operator{ID: "200"}))

	ops, err := st.Roster().List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	require.NoError(t, st.Roster().Remove(ctx, "100"))
	assert.ErrorIs(t, st.Roster().Remove(ctx, "100"), store.ErrNotFound)
}

func testCooldownsClaim(t *testing.T, open Opener) {
	ctx := context.Background()
	st := open(t)
	c := st.Cooldowns()

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ok, _, err := c.Claim(ctx, "1", models.PlatformGoogle, t0, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, last, err := c.Claim(ctx, "1", models.PlatformGoogle, t0.Add(time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, last.Equal(t0))

	ok, _, err = c.Claim(ctx, "1", models.PlatformGoogle, t0.Add(24*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Clear(ctx, "1", models.PlatformGoogle, t0))
	last2, err := c.Last(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, last2, 1, "clearing an older claim keeps the newer one")

	require.NoError(t, c.Clear(ctx, "1", models.PlatformGoogle, t0.Add(24*time.Hour)))
	last2, err = c.Last(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, last2)
}
