package schedule

import (
	"fmt"
	"time"

	"irrigation-planner/internal/agronomy"
)

// State is the soil accumulator carried from one day to the next.
type State struct {
	Moisture float64
	AgeDays  float64
}

// Input is everything a schedule generation needs.
type Input struct {
	Plot          agronomy.PlotContext
	Forecast      []agronomy.DailyForecast
	StartMoisture float64
	Logs          []WateringEvent
	Now           time.Time
}

// Generator folds the agronomic model over a 7-day forecast.
type Generator struct {
	model *agronomy.Model
}

// NewGenerator creates a generator bound to a model.
func NewGenerator(model *agronomy.Model) *Generator {
	return &Generator{model: model}
}

// Generate returns exactly Horizon days, or an error and no days at all.
// Dates follow the forecast's own days so each day carries its weather.
// Forecast days past the end of in.Forecast fall back to default weather.
func (g *Generator) Generate(in Input) ([]DayPlan, error) {
	if !(in.Plot.AreaM2 > 0) {
		return nil, fmt.Errorf("cannot generate schedule: %w", ErrInvalidArea)
	}

	start := startDate(in.Forecast, in.Now)
	state := State{Moisture: in.StartMoisture, AgeDays: in.Plot.AgeDays}
	days := make([]DayPlan, 0, Horizon)
	for i := 0; i < Horizon; i++ {
		var f agronomy.DailyForecast
		if i < len(in.Forecast) {
			f = in.Forecast[i]
		}
		var day DayPlan
		day, state = g.Step(in.Plot, state, i, start.AddDate(0, 0, i), f)
		days = append(days, day)
	}

	if note := lastWateredNote(in.Logs, in.Now); note != "" {
		days[0].Explanation += " " + note
	}
	return days, nil
}

// startDate is the calendar day of the first forecast, in the plot's local
// zone. Without a dated forecast it falls back to the day of now.
func startDate(forecast []agronomy.DailyForecast, now time.Time) time.Time {
	if len(forecast) > 0 && !forecast[0].Date.IsZero() {
		d := forecast[0].Date
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// Step computes one day of the schedule from the incoming state and returns
// the state for the following day.
func (g *Generator) Step(plot agronomy.PlotContext, st State, index int, date time.Time, f agronomy.DailyForecast) (DayPlan, State) {
	pc := plot
	pc.AgeDays = st.AgeDays

	req := g.model.RequireIrrigation(pc, f.Weather, st.Moisture)
	irrigationMM := 0.0
	if pc.AreaM2 > 0 {
		irrigationMM = req.Liters * 1000 / pc.AreaM2
	}
	next := g.model.AdvanceMoisture(st.Moisture, f.Weather, pc, irrigationMM)

	day := DayPlan{
		Day:          fmt.Sprintf("Day %d", index+1),
		Date:         date.Format(DateLayout),
		Liters:       req.Liters,
		OptimalTime:  OptimalTime(f.Hourly),
		Explanation:  req.Reason,
		ET0:          req.ET0,
		Kc:           req.Kc,
		ETc:          req.ETc,
		SoilMoisture: next,
	}
	return day, State{Moisture: next, AgeDays: st.AgeDays + 1}
}

func lastWateredNote(logs []WateringEvent, now time.Time) string {
	var last time.Time
	for _, l := range logs {
		if l.WateredAt.After(last) && !l.WateredAt.After(now) {
			last = l.WateredAt
		}
	}
	if last.IsZero() {
		return ""
	}
	hours := now.Sub(last).Hours()
	if hours >= 48 {
		return ""
	}
	return fmt.Sprintf("(last watered %.0fh ago)", hours)
}
