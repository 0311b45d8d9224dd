package model

import "time"

// WellnessStats is an aggregate view of the local store, served by the stats
// endpoint and used by the dashboard's overview widgets.
type WellnessStats struct {
	RecordCount   int
	WellnessCount int
	SleepCount    int
	HRVCount      int
	StressCount   int
	ActivityCount int
	OldestDate    string
	NewestDate    string
	LastSyncAt    time.Time
}

// ExportManifest describes an export payload.
type ExportManifest struct {
	ExportedAt    time.Time `json:"exported_at"`
	SchemaVersion int       `json:"schema_version"`
	RecordCount   int       `json:"record_count"`
}

// Export is the full serialized store plus its manifest.
type Export struct {
	Manifest ExportManifest   `json:"manifest"`
	Records  []WellnessRecord `json:"records"`
}
