package model

// SyncProgress reports backfill progress after each day is attempted.
type SyncProgress struct {
	Processed int
	Total     int
}

// SyncResult summarizes one backfill run. Success stays true even when
// individual days failed, as long as the loop ran to completion; it is false
// only when authentication was unavailable before the loop started.
type SyncResult struct {
	Success       bool
	DaysProcessed int
	FailedDates   []string
	Err           error
}
