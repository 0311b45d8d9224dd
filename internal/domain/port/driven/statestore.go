package driven

import (
	"context"
	"time"
)

// StateStore defines the driven port for small application state values,
// currently the last successful sync timestamp. LastSync returns the zero
// time when no sync has completed yet.
type StateStore interface {
	SetLastSync(ctx context.Context, t time.Time) error
	LastSync(ctx context.Context) (time.Time, error)
}
