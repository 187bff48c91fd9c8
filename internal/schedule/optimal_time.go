package schedule

import (
	"fmt"

	"irrigation-planner/internal/agronomy"
)

// DefaultWateringTime is used when no forecast hour qualifies.
const DefaultWateringTime = "06:00 AM"

// OptimalTime picks the watering hour with the lowest evaporation score.
// Hours with rain likely (pop > 0.2) or near-freezing temperatures are skipped,
// and early morning hours (04-08) get a 20% bonus.
func OptimalTime(hours []agronomy.HourlySample) string {
	best := -1
	bestScore := 0.0
	for _, h := range hours {
		if h.PrecipProb > 0.2 || h.TempC < 2 {
			continue
		}
		score := h.TempC*0.4 + h.WindSpeed*0.3 + (100-h.CloudCover)*0.2
		hour := h.Time.Hour()
		if hour >= 4 && hour <= 8 {
			score *= 0.8
		}
		if best == -1 || score < bestScore {
			best, bestScore = hour, score
		}
	}
	if best == -1 {
		return DefaultWateringTime
	}
	return FormatHour(best, 0)
}

// FormatHour renders a 24-hour clock time as "HH:MM AM/PM".
func FormatHour(hour, minute int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%02d:%02d %s", h12, minute, suffix)
}
