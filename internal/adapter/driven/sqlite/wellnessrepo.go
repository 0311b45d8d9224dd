package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WellnessStore = (*WellnessRepo)(nil)

// schemaVersion is stamped into export manifests. Bump together with
// migrations that change the wellness_records shape.
const schemaVersion = 1

const defaultRetentionDays = 90

// WellnessRepo is the SQLite implementation of the WellnessStore port.
// Field groups are stored as independent JSON columns so a merge-upsert can
// replace exactly the groups the incoming record supplies.
type WellnessRepo struct {
	db            *DB
	retentionDays int
	clock         func() time.Time
}

// NewWellnessRepo creates a WellnessRepo. retentionDays <= 0 selects the
// 90-day default.
func NewWellnessRepo(db *DB, retentionDays int) *WellnessRepo {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &WellnessRepo{db: db, retentionDays: retentionDays, clock: time.Now}
}

// Save merge-upserts the record for its date: incoming non-nil field groups
// replace stored ones wholesale, absent groups are preserved. Every write is
// followed by a retention sweep removing entries older than
// today - retentionDays, so storage stays bounded regardless of sync cadence.
//
// The pre-merge read uses the writer connection, so a read immediately
// following Save always observes the merged result.
func (r *WellnessRepo) Save(ctx context.Context, record model.WellnessRecord) error {
	if record.Date == "" {
		return errors.New("save wellness record: empty date")
	}

	existing, err := r.getByDate(ctx, r.db.Writer, record.Date)
	if err != nil {
		return fmt.Errorf("load existing record %s: %w", record.Date, err)
	}

	merged := record
	if existing != nil {
		merged = existing.Merge(record)
	}
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = r.clock().UTC()
	}

	wellness, err := groupJSON(merged.Wellness)
	if err != nil {
		return fmt.Errorf("marshal wellness group: %w", err)
	}
	sleep, err := groupJSON(merged.Sleep)
	if err != nil {
		return fmt.Errorf("marshal sleep group: %w", err)
	}
	hrv, err := groupJSON(merged.HRV)
	if err != nil {
		return fmt.Errorf("marshal hrv group: %w", err)
	}
	stress, err := groupJSON(merged.Stress)
	if err != nil {
		return fmt.Errorf("marshal stress group: %w", err)
	}
	activity, err := groupJSON(merged.Activity)
	if err != nil {
		return fmt.Errorf("marshal activity group: %w", err)
	}

	const query = `
		INSERT INTO wellness_records (date, wellness, sleep, hrv, stress, activity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			wellness = excluded.wellness,
			sleep = excluded.sleep,
			hrv = excluded.hrv,
			stress = excluded.stress,
			activity = excluded.activity,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Writer.ExecContext(ctx, query,
		merged.Date, wellness, sleep, hrv, stress, activity,
		merged.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert wellness record %s: %w", merged.Date, err)
	}

	return r.sweep(ctx)
}

// sweep removes records older than the retention window.
func (r *WellnessRepo) sweep(ctx context.Context) error {
	cutoff := r.clock().UTC().AddDate(0, 0, -r.retentionDays).Format(model.DateLayout)

	const query = `DELETE FROM wellness_records WHERE date < ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, cutoff); err != nil {
		return fmt.Errorf("retention sweep before %s: %w", cutoff, err)
	}
	return nil
}

// GetByDate retrieves the record for one date. Returns nil, nil when the
// date has never been synced.
func (r *WellnessRepo) GetByDate(ctx context.Context, date string) (*model.WellnessRecord, error) {
	return r.getByDate(ctx, r.db.Reader, date)
}

func (r *WellnessRepo) getByDate(ctx context.Context, conn *sql.DB, date string) (*model.WellnessRecord, error) {
	const query = `
		SELECT date, wellness, sleep, hrv, stress, activity, updated_at
		FROM wellness_records
		WHERE date = ?
	`

	rec, err := scanRecord(conn.QueryRowContext(ctx, query, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wellness record %s: %w", date, err)
	}
	return rec, nil
}

// GetHistory returns the n most recent dated records, newest first.
func (r *WellnessRepo) GetHistory(ctx context.Context, n int) ([]model.WellnessRecord, error) {
	const query = `
		SELECT date, wellness, sleep, hrv, stress, activity, updated_at
		FROM wellness_records
		ORDER BY date DESC
		LIMIT ?
	`

	return r.queryRecords(ctx, query, n)
}

// Stats returns aggregate counts over the store.
func (r *WellnessRepo) Stats(ctx context.Context) (model.WellnessStats, error) {
	const query = `
		SELECT COUNT(*), COUNT(wellness), COUNT(sleep), COUNT(hrv), COUNT(stress), COUNT(activity),
		       COALESCE(MIN(date), ''), COALESCE(MAX(date), '')
		FROM wellness_records
	`

	var stats model.WellnessStats
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(
		&stats.RecordCount, &stats.WellnessCount, &stats.SleepCount,
		&stats.HRVCount, &stats.StressCount, &stats.ActivityCount,
		&stats.OldestDate, &stats.NewestDate,
	)
	if err != nil {
		return model.WellnessStats{}, fmt.Errorf("query wellness stats: %w", err)
	}

	return stats, nil
}

// Export serializes the full store, oldest first, with a manifest.
func (r *WellnessRepo) Export(ctx context.Context) (model.Export, error) {
	const query = `
		SELECT date, wellness, sleep, hrv, stress, activity, updated_at
		FROM wellness_records
		ORDER BY date
	`

	records, err := r.queryRecords(ctx, query)
	if err != nil {
		return model.Export{}, err
	}
	if records == nil {
		records = []model.WellnessRecord{}
	}

	return model.Export{
		Manifest: model.ExportManifest{
			ExportedAt:    r.clock().UTC(),
			SchemaVersion: schemaVersion,
			RecordCount:   len(records),
		},
		Records: records,
	}, nil
}

func (r *WellnessRepo) queryRecords(ctx context.Context, query string, args ...any) ([]model.WellnessRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wellness records: %w", err)
	}
	defer rows.Close()

	var records []model.WellnessRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wellness record: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wellness records: %w", err)
	}

	return records, nil
}

func scanRecord(s scanner) (*model.WellnessRecord, error) {
	var rec model.WellnessRecord
	var wellness, sleep, hrv, stress, activity sql.NullString
	var updatedAt string

	err := s.Scan(&rec.Date, &wellness, &sleep, &hrv, &stress, &activity, &updatedAt)
	if err != nil {
		return nil, err
	}

	if rec.Wellness, err = groupFromJSON[model.WellnessSummary](wellness); err != nil {
		return nil, fmt.Errorf("unmarshal wellness group: %w", err)
	}
	if rec.Sleep, err = groupFromJSON[model.SleepSummary](sleep); err != nil {
		return nil, fmt.Errorf("unmarshal sleep group: %w", err)
	}
	if rec.HRV, err = groupFromJSON[model.HRVSummary](hrv); err != nil {
		return nil, fmt.Errorf("unmarshal hrv group: %w", err)
	}
	if rec.Stress, err = groupFromJSON[model.StressSummary](stress); err != nil {
		return nil, fmt.Errorf("unmarshal stress group: %w", err)
	}
	if rec.Activity, err = groupFromJSON[model.ActivitySummary](activity); err != nil {
		return nil, fmt.Errorf("unmarshal activity group: %w", err)
	}

	rec.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &rec, nil
}

// groupJSON marshals a field group to its JSON column value; a nil group
// stores as NULL.
func groupJSON[T any](g *T) (any, error) {
	if g == nil {
		return nil, nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// groupFromJSON reverses groupJSON; a NULL column yields a nil group.
func groupFromJSON[T any](col sql.NullString) (*T, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
