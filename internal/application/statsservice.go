package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// StatsService serves read queries over the local wellness store.
type StatsService struct {
	store driven.WellnessStore
	state driven.StateStore
}

// NewStatsService creates a new StatsService.
func NewStatsService(store driven.WellnessStore, state driven.StateStore) *StatsService {
	return &StatsService{store: store, state: state}
}

// GetByDate returns the record for one date, or nil when the date has never
// been synced.
func (s *StatsService) GetByDate(ctx context.Context, date string) (*model.WellnessRecord, error) {
	return s.store.GetByDate(ctx, date)
}

// GetHistory returns the n most recent records, newest first.
func (s *StatsService) GetHistory(ctx context.Context, n int) ([]model.WellnessRecord, error) {
	return s.store.GetHistory(ctx, n)
}

// Stats returns aggregate store counts annotated with the last sync time.
func (s *StatsService) Stats(ctx context.Context) (model.WellnessStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return model.WellnessStats{}, err
	}

	lastSync, err := s.state.LastSync(ctx)
	if err != nil {
		return model.WellnessStats{}, fmt.Errorf("load last sync: %w", err)
	}
	stats.LastSyncAt = lastSync

	return stats, nil
}

// Export returns the full serialized store with a manifest.
func (s *StatsService) Export(ctx context.Context) (model.Export, error) {
	return s.store.Export(ctx)
}
