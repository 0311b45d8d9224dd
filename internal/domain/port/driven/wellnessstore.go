package driven

import (
	"context"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
)

// WellnessStore defines the driven port for wellness record persistence.
//
// Save performs a field-group merge-upsert: groups present on the incoming
// record replace the stored ones, groups absent are preserved. Every Save is
// followed by a retention sweep so storage stays bounded regardless of sync
// cadence. Reads immediately following Save observe the merged result.
type WellnessStore interface {
	Save(ctx context.Context, record model.WellnessRecord) error
	GetByDate(ctx context.Context, date string) (*model.WellnessRecord, error)
	GetHistory(ctx context.Context, n int) ([]model.WellnessRecord, error)
	Stats(ctx context.Context) (model.WellnessStats, error)
	Export(ctx context.Context) (model.Export, error)
}
