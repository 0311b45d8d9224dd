package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRepo_LastSyncNeverSet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStateRepo(db)

	got, err := repo.LastSync(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestStateRepo_SetAndGetLastSync(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStateRepo(db)
	ctx := context.Background()

	ts := time.Date(2026, 8, 23, 11, 30, 0, 0, time.UTC)
	require.NoError(t, repo.SetLastSync(ctx, ts))

	got, err := repo.LastSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ts, got.UTC())
}

func TestStateRepo_SetLastSyncOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStateRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.SetLastSync(ctx, time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)))

	later := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetLastSync(ctx, later))

	got, err := repo.LastSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, later, got.UTC())
}
