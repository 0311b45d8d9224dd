package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// ErrNotAuthenticated is returned when a sync is requested without a usable
// vendor session.
var ErrNotAuthenticated = errors.New("not authenticated with vendor")

// ProgressFunc receives backfill progress after each day is attempted. May
// be nil.
type ProgressFunc func(model.SyncProgress)

// syncRequest represents a manual sync trigger.
type syncRequest struct {
	days int
	done chan model.SyncResult
}

// SyncService orchestrates periodic multi-day wellness backfills from the
// vendor into the local store.
type SyncService struct {
	client   driven.VendorClient
	store    driven.WellnessStore
	state    driven.StateStore
	days     int
	interval time.Duration
	syncCh   chan syncRequest
	now      func() time.Time
}

// NewSyncService creates a new SyncService. days is the default backfill
// window; interval is the period of the background loop.
func NewSyncService(
	client driven.VendorClient,
	store driven.WellnessStore,
	state driven.StateStore,
	days int,
	interval time.Duration,
) *SyncService {
	return &SyncService{
		client:   client,
		store:    store,
		state:    state,
		days:     days,
		interval: interval,
		syncCh:   make(chan syncRequest),
		now:      time.Now,
	}
}

// Start begins the sync loop. It runs an immediate sync, then syncs on the
// configured interval, and listens for manual triggers in between. Start
// blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	if res := s.Sync(ctx, s.days, nil); !res.Success {
		slog.Error("initial sync failed", "error", res.Err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			if res := s.Sync(ctx, s.days, nil); !res.Success {
				slog.Error("sync cycle failed", "error", res.Err)
			}
		case req := <-s.syncCh:
			req.done <- s.Sync(ctx, req.days, nil)
		}
	}
}

// TriggerSync requests an immediate sync from the background loop, bypassing
// the interval. days <= 0 selects the configured default window. It blocks
// until the sync completes or the context is canceled.
func (s *SyncService) TriggerSync(ctx context.Context, days int) (model.SyncResult, error) {
	done := make(chan model.SyncResult, 1)
	req := syncRequest{days: days, done: done}

	select {
	case s.syncCh <- req:
	case <-ctx.Done():
		return model.SyncResult{}, ctx.Err()
	}

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return model.SyncResult{}, ctx.Err()
	}
}

// Sync backfills the last n calendar days, today first, one day at a time.
// A day whose fetches all succeed is merged into the store; a day with any
// fetch failure is recorded in FailedDates and skipped without a partial
// write. Days the vendor has no data for are counted as processed but not
// stored. The run aborts early only on context cancellation or when no
// session is held before the loop starts.
func (s *SyncService) Sync(ctx context.Context, days int, onProgress ProgressFunc) model.SyncResult {
	if days <= 0 {
		days = s.days
	}

	if !s.client.Authenticated() {
		return model.SyncResult{Success: false, Err: ErrNotAuthenticated}
	}

	start := s.now()
	today := start.UTC()
	result := model.SyncResult{Success: true}

	for i := 0; i < days; i++ {
		if ctx.Err() != nil {
			result.Success = false
			result.Err = ctx.Err()
			return result
		}

		date := today.AddDate(0, 0, -i).Format(model.DateLayout)
		if err := s.syncDay(ctx, date); err != nil {
			slog.Error("day sync failed", "date", date, "error", err)
			result.FailedDates = append(result.FailedDates, date)
		} else {
			result.DaysProcessed++
		}

		if onProgress != nil {
			onProgress(model.SyncProgress{Processed: i + 1, Total: days})
		}
	}

	if err := s.state.SetLastSync(ctx, s.now()); err != nil {
		slog.Error("record last sync failed", "error", err)
	}

	slog.Info("sync complete",
		"days", days,
		"processed", result.DaysProcessed,
		"failed", len(result.FailedDates),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return result
}

// syncDay fetches the five wellness resources for one date concurrently and
// merge-upserts the assembled record. Any fetch error fails the whole day so
// the store never receives a partially fetched record.
func (s *SyncService) syncDay(ctx context.Context, date string) error {
	var (
		record   = model.WellnessRecord{Date: date}
		fetchErr error

		mu sync.Mutex
		wg sync.WaitGroup
	)

	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if fetchErr == nil {
			fetchErr = err
		}
	}

	wg.Add(5)
	go func() {
		defer wg.Done()
		w, err := s.client.FetchWellness(ctx, date)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		record.Wellness = w
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		sl, err := s.client.FetchSleep(ctx, date)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		record.Sleep = sl
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		h, err := s.client.FetchHRV(ctx, date)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		record.HRV = h
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		st, err := s.client.FetchStress(ctx, date)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		record.Stress = st
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		a, err := s.client.FetchActivity(ctx, date)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		record.Activity = a
		mu.Unlock()
	}()
	wg.Wait()

	if fetchErr != nil {
		return fetchErr
	}

	if record.IsEmpty() {
		slog.Debug("no vendor data for date", "date", date)
		return nil
	}

	record.UpdatedAt = s.now().UTC()
	return s.store.Save(ctx, record)
}
