package pgstore_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/reviewcash/backend/internal/store"
	"github.com/reviewcash/backend/internal/store/pgstore"
	"github.com/reviewcash/backend/internal/store/storetest"
)

// TestContract runs against a scratch database. Every table is truncated
// before each case, so never point TEST_DATABASE_URL at real data.
func TestContract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	st := pgstore.New(pool, slog.New(slog.DiscardHandler))
	require.NoError(t, st.Migrate(ctx))
	// Migrate is idempotent.
	require.NoError(t, st.Migrate(ctx))

	storetest.RunContract(t, func(t *testing.T) store.Store {
		_, err := pool.Exec(ctx, `TRUNCATE users, tasks, topups, withdrawals, works, operators, cooldowns`)
		require.NoError(t, err)
		return st
	})
}
