// Package model contains the core domain types shared across ports and adapters.
package model

import "time"

// DateLayout is the calendar-date format used as the WellnessRecord key.
const DateLayout = "2006-01-02"

// WellnessSummary holds heart-rate and body-battery data for one day.
type WellnessSummary struct {
	RestingHeartRate   int `json:"resting_heart_rate"`
	MinHeartRate       int `json:"min_heart_rate"`
	MaxHeartRate       int `json:"max_heart_rate"`
	BodyBatteryHighest int `json:"body_battery_highest"`
	BodyBatteryLowest  int `json:"body_battery_lowest"`
}

// SleepSummary holds sleep stage durations and the vendor sleep score for one night.
type SleepSummary struct {
	DurationMinutes int `json:"duration_minutes"`
	DeepMinutes     int `json:"deep_minutes"`
	LightMinutes    int `json:"light_minutes"`
	RemMinutes      int `json:"rem_minutes"`
	AwakeMinutes    int `json:"awake_minutes"`
	Score           int `json:"score"`
}

// HRVSummary holds heart-rate variability data for one night.
type HRVSummary struct {
	LastNightAvg int    `json:"last_night_avg"`
	WeeklyAvg    int    `json:"weekly_avg"`
	Status       string `json:"status"`
}

// StressSummary holds all-day stress data for one day.
type StressSummary struct {
	AvgLevel    int `json:"avg_level"`
	MaxLevel    int `json:"max_level"`
	RestMinutes int `json:"rest_minutes"`
}

// ActivitySummary holds step and calorie totals for one day.
type ActivitySummary struct {
	Steps           int     `json:"steps"`
	DistanceMeters  float64 `json:"distance_meters"`
	ActiveCalories  int     `json:"active_calories"`
	TotalCalories   int     `json:"total_calories"`
	FloorsClimbed   int     `json:"floors_climbed"`
	ActiveMinutes   int     `json:"active_minutes"`
	ModerateMinutes int     `json:"moderate_minutes"`
}

// WellnessRecord is one day of synced wellness data, keyed uniquely by Date.
// Each field group is independently present (non-nil) or absent; a group is
// never partially populated.
type WellnessRecord struct {
	Date      string           `json:"date"`
	Wellness  *WellnessSummary `json:"wellness,omitempty"`
	Sleep     *SleepSummary    `json:"sleep,omitempty"`
	HRV       *HRVSummary      `json:"hrv,omitempty"`
	Stress    *StressSummary   `json:"stress,omitempty"`
	Activity  *ActivitySummary `json:"activity,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// IsEmpty reports whether the record carries no field groups at all.
func (r WellnessRecord) IsEmpty() bool {
	return r.Wellness == nil && r.Sleep == nil && r.HRV == nil &&
		r.Stress == nil && r.Activity == nil
}

// Merge returns a copy of r with every field group the incoming record
// supplies replaced wholesale. Groups absent from the incoming record are
// preserved, so syncing a fresh activity group never erases a previously
// stored sleep group for the same date.
func (r WellnessRecord) Merge(in WellnessRecord) WellnessRecord {
	out := r
	if in.Wellness != nil {
		out.Wellness = in.Wellness
	}
	if in.Sleep != nil {
		out.Sleep = in.Sleep
	}
	if in.HRV != nil {
		out.HRV = in.HRV
	}
	if in.Stress != nil {
		out.Stress = in.Stress
	}
	if in.Activity != nil {
		out.Activity = in.Activity
	}
	out.UpdatedAt = in.UpdatedAt
	return out
}
