// Package watering records manual "water now" events for a plot.
package watering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"irrigation-planner/internal/schedule"
)

// LitersPerMinute estimates flow when a log only carries a duration.
const LitersPerMinute = 2.5

// RecentLimit is how many logs feed schedule generation and chat context.
const RecentLimit = 7

// Log is one watering event.
type Log struct {
	ID              string    `json:"id"`
	PlotID          string    `json:"plot_id"`
	WateredAt       time.Time `json:"watered_at"`
	DurationMinutes float64   `json:"duration_minutes"`
	Liters          float64   `json:"liters"`
}

// NewLog builds a log, estimating liters from the duration when liters is zero.
func NewLog(plotID string, at time.Time, minutes, liters float64) (Log, error) {
	if minutes < 0 || liters < 0 {
		return Log{}, errors.New("duration and liters must not be negative")
	}
	if minutes == 0 && liters == 0 {
		return Log{}, errors.New("either duration or liters is required")
	}
	if liters == 0 {
		liters = minutes * LitersPerMinute
	}
	return Log{
		ID:              uuid.NewString(),
		PlotID:          plotID,
		WateredAt:       at.UTC(),
		DurationMinutes: minutes,
		Liters:          liters,
	}, nil
}

// Event converts the log to the shape the generator consumes.
func (l Log) Event() schedule.WateringEvent {
	return schedule.WateringEvent{WateredAt: l.WateredAt, DurationMinutes: l.DurationMinutes, Liters: l.Liters}
}

// Events converts logs for the generator.
func Events(logs []Log) []schedule.WateringEvent {
	out := make([]schedule.WateringEvent, len(logs))
	for i, l := range logs {
		out[i] = l.Event()
	}
	return out
}

// Repository is a database-backed store for watering logs.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Record saves a log.
func (r *Repository) Record(ctx context.Context, l Log) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watering_log (id, plot_id, watered_at, duration_minutes, liters) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.PlotID, l.WateredAt, l.DurationMinutes, l.Liters)
	if err != nil {
		return fmt.Errorf("failed to record watering for plot %s: %w", l.PlotID, err)
	}
	return nil
}

// Recent returns up to limit logs for a plot, newest first.
func (r *Repository) Recent(ctx context.Context, plotID string, limit int) ([]Log, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, plot_id, watered_at, duration_minutes, liters FROM watering_log
		WHERE plot_id = ? ORDER BY watered_at DESC LIMIT ?`, plotID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list watering logs: %w", err)
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.PlotID, &l.WateredAt, &l.DurationMinutes, &l.Liters); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
