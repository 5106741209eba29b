package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-desk/internal/connections/database"
)

func TestJobLockIsExclusive(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := database.ConnectURL(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	locks := NewJobLockRepository(db)
	release, ok, err := locks.TryLock(ctx, "lock-test")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locks.TryLock(ctx, "lock-test")
	require.NoError(t, err)
	assert.False(t, ok, "second holder is refused")

	other, ok, err := locks.TryLock(ctx, "other-job")
	require.NoError(t, err)
	assert.True(t, ok)
	other()

	release()
	again, ok, err := locks.TryLock(ctx, "lock-test")
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}
