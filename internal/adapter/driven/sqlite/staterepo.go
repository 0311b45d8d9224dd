package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StateStore = (*StateRepo)(nil)

const lastSyncKey = "last_sync"

// StateRepo is the SQLite implementation of the StateStore port, a small
// key/value table for application state.
type StateRepo struct {
	db *DB
}

// NewStateRepo creates a StateRepo backed by the given DB.
func NewStateRepo(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

// SetLastSync records the completion time of the most recent sync.
func (r *StateRepo) SetLastSync(ctx context.Context, t time.Time) error {
	const query = `INSERT OR REPLACE INTO app_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.Writer.ExecContext(ctx, query, lastSyncKey, t.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("set last sync: %w", err)
	}
	return nil
}

// LastSync returns the recorded last-sync time, or the zero time when no
// sync has completed yet.
func (r *StateRepo) LastSync(ctx context.Context) (time.Time, error) {
	const query = `SELECT value FROM app_state WHERE key = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, lastSyncKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last sync: %w", err)
	}

	t, err := parseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last sync: %w", err)
	}
	return t, nil
}
