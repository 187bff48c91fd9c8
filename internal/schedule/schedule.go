package schedule

import (
	"errors"
	"time"
)

// Horizon is the number of days in every schedule.
const Horizon = 7

// DateLayout is the MM/DD/YY form used in DayPlan.Date.
const DateLayout = "01/02/06"

var (
	// ErrNoSchedule is returned when a plot has never had a schedule generated.
	ErrNoSchedule = errors.New("no schedule found for plot")
	// ErrConflict is returned when a schedule changed between read and write.
	ErrConflict = errors.New("schedule was modified concurrently")
	// ErrInvalidArea is returned for plots whose area cannot carry a water volume.
	ErrInvalidArea = errors.New("plot area must be positive")
)

// DayPlan is one day of an irrigation schedule.
type DayPlan struct {
	Day          string  `json:"day"`
	Date         string  `json:"date"`
	Liters       float64 `json:"liters"`
	OptimalTime  string  `json:"optimal_time"`
	Explanation  string  `json:"explanation"`
	Note         string  `json:"note,omitempty"`
	ET0          float64 `json:"et0"`
	Kc           float64 `json:"kc"`
	ETc          float64 `json:"etc"`
	SoilMoisture float64 `json:"soil_moisture"`
}

// Schedule is the stored state of a plot's plan. Original is written once, at
// first generation, and never changes afterwards.
type Schedule struct {
	PlotID           string    `json:"plot_id"`
	Current          []DayPlan `json:"schedule"`
	Original         []DayPlan `json:"original_schedule,omitempty"`
	Summary          string    `json:"summary"`
	NarrativeSummary string    `json:"gem_summary,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Version          int64     `json:"version"`
}

// EditRecord is an append-only audit entry for one applied mutation.
type EditRecord struct {
	ID          string    `json:"id"`
	PlotID      string    `json:"plot_id"`
	Timestamp   time.Time `json:"timestamp"`
	OldSchedule []DayPlan `json:"old_schedule"`
	NewSchedule []DayPlan `json:"new_schedule"`
	Reason      string    `json:"reason"`
}

// WateringEvent is a past manual watering, used for context only.
type WateringEvent struct {
	WateredAt       time.Time `json:"watered_at"`
	DurationMinutes float64   `json:"duration_minutes"`
	Liters          float64   `json:"liters"`
}

// Clone returns a deep copy of days.
func Clone(days []DayPlan) []DayPlan {
	if days == nil {
		return nil
	}
	out := make([]DayPlan, len(days))
	copy(out, days)
	return out
}

// TotalLiters sums the liters across days.
func TotalLiters(days []DayPlan) float64 {
	var total float64
	for _, d := range days {
		total += d.Liters
	}
	return total
}

// IsStale reports whether a schedule last updated at updatedAt should be
// regenerated at now.
func IsStale(updatedAt, now time.Time, reuse time.Duration) bool {
	return updatedAt.IsZero() || now.Sub(updatedAt) >= reuse
}
