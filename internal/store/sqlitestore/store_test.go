package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
	"github.com/reviewcash/backend/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) store.Store { return storetest.Open(t) })
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	first := storetest.OpenAt(t, path)
	req := &models.Request{Kind: models.KindTopUp, UserID: "3", Amount: 150, Details: models.Details{Code: "RC-1"}}
	require.NoError(t, first.Requests().Append(ctx, req))
	_, err := first.Users().AdjustBalance(ctx, "3", 70)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := storetest.OpenAt(t, path)
	got, err := second.Requests().FindByID(ctx, models.KindTopUp, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "RC-1", got.Details.Code)
	u, err := second.Users().Ensure(ctx, "3", "")
	require.NoError(t, err)
	assert.Equal(t, int64(70), u.Balance)
}
