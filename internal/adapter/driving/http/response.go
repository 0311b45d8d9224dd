package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the credential payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthStatusResponse reports session state.
type AuthStatusResponse struct {
	Authenticated bool `json:"authenticated"`
}

// SyncResponse summarizes one backfill run.
type SyncResponse struct {
	DaysProcessed int      `json:"days_processed"`
	FailedDates   []string `json:"failed_dates"`
}

func toSyncResponse(res model.SyncResult) SyncResponse {
	failed := res.FailedDates
	if failed == nil {
		failed = []string{}
	}
	return SyncResponse{
		DaysProcessed: res.DaysProcessed,
		FailedDates:   failed,
	}
}

// StatsResponse is the JSON representation of store aggregates.
type StatsResponse struct {
	RecordCount   int    `json:"record_count"`
	WellnessCount int    `json:"wellness_count"`
	SleepCount    int    `json:"sleep_count"`
	HRVCount      int    `json:"hrv_count"`
	StressCount   int    `json:"stress_count"`
	ActivityCount int    `json:"activity_count"`
	OldestDate    string `json:"oldest_date,omitempty"`
	NewestDate    string `json:"newest_date,omitempty"`
	LastSyncAt    string `json:"last_sync_at,omitempty"`
}

func toStatsResponse(stats model.WellnessStats) StatsResponse {
	resp := StatsResponse{
		RecordCount:   stats.RecordCount,
		WellnessCount: stats.WellnessCount,
		SleepCount:    stats.SleepCount,
		HRVCount:      stats.HRVCount,
		StressCount:   stats.StressCount,
		ActivityCount: stats.ActivityCount,
		OldestDate:    stats.OldestDate,
		NewestDate:    stats.NewestDate,
	}
	if !stats.LastSyncAt.IsZero() {
		resp.LastSyncAt = stats.LastSyncAt.UTC().Format(time.RFC3339)
	}
	return resp
}
