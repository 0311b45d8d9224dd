package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func makeRecord(date string) model.WellnessRecord {
	return model.WellnessRecord{
		Date: date,
		Wellness: &model.WellnessSummary{
			RestingHeartRate:   52,
			MinHeartRate:       48,
			MaxHeartRate:       141,
			BodyBatteryHighest: 92,
			BodyBatteryLowest:  21,
		},
		Activity: &model.ActivitySummary{
			Steps:          10432,
			DistanceMeters: 8120.5,
			ActiveCalories: 612,
			TotalCalories:  2480,
		},
		UpdatedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestWellnessRepo_SaveAndGetByDate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)
	ctx := context.Background()

	rec := makeRecord("2026-08-20")
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetByDate(ctx, "2026-08-20")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2026-08-20", got.Date)
	require.NotNil(t, got.Wellness)
	assert.Equal(t, 52, got.Wellness.RestingHeartRate)
	require.NotNil(t, got.Activity)
	assert.Equal(t, 10432, got.Activity.Steps)
	assert.Nil(t, got.Sleep)
	assert.Nil(t, got.HRV)
	assert.Nil(t, got.Stress)
}

func TestWellnessRepo_GetByDateMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)

	got, err := repo.GetByDate(context.Background(), "2026-01-01")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWellnessRepo_MergePreservesAbsentGroups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)
	ctx := context.Background()

	first := model.WellnessRecord{
		Date: "2026-08-20",
		Sleep: &model.SleepSummary{
			DurationMinutes: 452,
			DeepMinutes:     88,
			LightMinutes:    240,
			RemMinutes:      94,
			AwakeMinutes:    30,
			Score:           81,
		},
		UpdatedAt: time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, first))

	second := model.WellnessRecord{
		Date: "2026-08-20",
		Activity: &model.ActivitySummary{
			Steps: 12000,
		},
		UpdatedAt: time.Date(2026, 8, 20, 22, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.GetByDate(ctx, "2026-08-20")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NotNil(t, got.Sleep, "sleep group from the first save must survive the second")
	assert.Equal(t, 452, got.Sleep.DurationMinutes)
	require.NotNil(t, got.Activity)
	assert.Equal(t, 12000, got.Activity.Steps)
	assert.Equal(t, second.UpdatedAt, got.UpdatedAt.UTC())
}

func TestWellnessRepo_MergeReplacesGroupWholesale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.WellnessRecord{
		Date:      "2026-08-20",
		Activity:  &model.ActivitySummary{Steps: 5000, ActiveCalories: 300},
		UpdatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}))

	// The replacement group omits ActiveCalories; the old value must not leak through.
	require.NoError(t, repo.Save(ctx, model.WellnessRecord{
		Date:      "2026-08-20",
		Activity:  &model.ActivitySummary{Steps: 11000},
		UpdatedAt: time.Date(2026, 8, 20, 23, 0, 0, 0, time.UTC),
	}))

	got, err := repo.GetByDate(ctx, "2026-08-20")
	require.NoError(t, err)
	require.NotNil(t, got.Activity)
	assert.Equal(t, 11000, got.Activity.Steps)
	assert.Equal(t, 0, got.Activity.ActiveCalories)
}

func TestWellnessRepo_RetentionSweep(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	repo.clock = fixedClock(now)
	ctx := context.Background()

	oldest := now.AddDate(0, 0, -91).Format(model.DateLayout)   // beyond window
	boundary := now.AddDate(0, 0, -90).Format(model.DateLayout) // exactly at window edge
	recent := now.AddDate(0, 0, -1).Format(model.DateLayout)

	require.NoError(t, repo.Save(ctx, makeRecord(oldest)))
	require.NoError(t, repo.Save(ctx, makeRecord(boundary)))
	require.NoError(t, repo.Save(ctx, makeRecord(recent)))

	got, err := repo.GetByDate(ctx, oldest)
	require.NoError(t, err)
	assert.Nil(t, got, "record older than the retention window should be swept")

	got, err = repo.GetByDate(ctx, boundary)
	require.NoError(t, err)
	assert.NotNil(t, got, "record exactly retentionDays old should be kept")

	got, err = repo.GetByDate(ctx, recent)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestWellnessRepo_GetHistoryNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)
	ctx := context.Background()

	for _, date := range []string{"2026-08-18", "2026-08-20", "2026-08-19"} {
		require.NoError(t, repo.Save(ctx, makeRecord(date)))
	}

	records, err := repo.GetHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2026-08-20", records[0].Date)
	assert.Equal(t, "2026-08-19", records[1].Date)
}

func TestWellnessRepo_GetHistoryEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)

	records, err := repo.GetHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWellnessRepo_Stats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, makeRecord("2026-08-19")))
	require.NoError(t, repo.Save(ctx, model.WellnessRecord{
		Date:      "2026-08-20",
		Sleep:     &model.SleepSummary{DurationMinutes: 400},
		UpdatedAt: time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
	}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RecordCount)
	assert.Equal(t, 1, stats.WellnessCount)
	assert.Equal(t, 1, stats.SleepCount)
	assert.Equal(t, 0, stats.HRVCount)
	assert.Equal(t, 0, stats.StressCount)
	assert.Equal(t, 1, stats.ActivityCount)
	assert.Equal(t, "2026-08-19", stats.OldestDate)
	assert.Equal(t, "2026-08-20", stats.NewestDate)
}

func TestWellnessRepo_StatsEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RecordCount)
	assert.Equal(t, "", stats.OldestDate)
	assert.Equal(t, "", stats.NewestDate)
}

func TestWellnessRepo_Export(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	repo.clock = fixedClock(now)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, makeRecord("2026-08-20")))
	require.NoError(t, repo.Save(ctx, makeRecord("2026-08-18")))

	export, err := repo.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, now, export.Manifest.ExportedAt)
	assert.Equal(t, 1, export.Manifest.SchemaVersion)
	assert.Equal(t, 2, export.Manifest.RecordCount)
	require.Len(t, export.Records, 2)
	assert.Equal(t, "2026-08-18", export.Records[0].Date, "export is ordered oldest first")
	assert.Equal(t, "2026-08-20", export.Records[1].Date)
}

func TestWellnessRepo_ExportEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)

	export, err := repo.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, export.Manifest.RecordCount)
	assert.NotNil(t, export.Records)
	assert.Empty(t, export.Records)
}

func TestWellnessRepo_SaveEmptyDate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWellnessRepo(db, 90)

	err := repo.Save(context.Background(), model.WellnessRecord{})
	assert.Error(t, err)
}
