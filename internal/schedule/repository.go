package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is a database-backed store for schedules and their edit history.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Get returns the plot's schedule, or nil if none has been generated yet.
func (r *Repository) Get(ctx context.Context, plotID string) (*Schedule, error) {
	var (
		s                 Schedule
		current, original sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT plot_id, schedule, og_schedule, summary, gem_summary,
		version, generated_at, updated_at FROM plot_schedules WHERE plot_id = ?`, plotID).
		Scan(&s.PlotID, &current, &original, &s.Summary, &s.NarrativeSummary, &s.Version, &s.GeneratedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule for plot %s: %w", plotID, err)
	}
	if s.Current, err = decodeDays(current); err != nil {
		return nil, fmt.Errorf("corrupt schedule for plot %s: %w", plotID, err)
	}
	if s.Original, err = decodeDays(original); err != nil {
		return nil, fmt.Errorf("corrupt original schedule for plot %s: %w", plotID, err)
	}
	return &s, nil
}

// SaveGenerated stores a freshly generated schedule. The original baseline is
// written only if the plot never had one, so regeneration keeps the first.
func (r *Repository) SaveGenerated(ctx context.Context, plotID string, days []DayPlan, summary, narrative string, now time.Time) (*Schedule, error) {
	data, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schedule: %w", err)
	}
	now = now.UTC()
	_, err = r.db.ExecContext(ctx, `INSERT INTO plot_schedules
		(plot_id, schedule, og_schedule, summary, gem_summary, version, generated_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(plot_id) DO UPDATE SET
			schedule = excluded.schedule,
			og_schedule = COALESCE(plot_schedules.og_schedule, excluded.og_schedule),
			summary = excluded.summary,
			gem_summary = excluded.gem_summary,
			version = plot_schedules.version + 1,
			generated_at = excluded.generated_at,
			updated_at = excluded.updated_at`,
		plotID, string(data), string(data), summary, narrative, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save schedule for plot %s: %w", plotID, err)
	}
	return r.Get(ctx, plotID)
}

// ApplyEdit replaces the current schedule and appends rec in one transaction.
// It fails with ErrConflict when the stored version is not expectedVersion.
// A nil rec updates the schedule without an audit entry (used by revert).
func (r *Repository) ApplyEdit(ctx context.Context, plotID string, expectedVersion int64, days []DayPlan, rec *EditRecord, now time.Time) (err error) {
	data, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now = now.UTC()
	res, err := tx.ExecContext(ctx, `UPDATE plot_schedules SET schedule = ?, version = version + 1, updated_at = ?
		WHERE plot_id = ? AND version = ?`, string(data), now, plotID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update schedule for plot %s: %w", plotID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("plot %s at version %d: %w", plotID, expectedVersion, ErrConflict)
	}

	if rec != nil {
		if err = insertEdit(ctx, tx, plotID, rec, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schedule edit: %w", err)
	}
	return nil
}

func insertEdit(ctx context.Context, tx *sql.Tx, plotID string, rec *EditRecord, now time.Time) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.PlotID = plotID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	oldData, err := json.Marshal(rec.OldSchedule)
	if err != nil {
		return fmt.Errorf("failed to marshal old schedule: %w", err)
	}
	newData, err := json.Marshal(rec.NewSchedule)
	if err != nil {
		return fmt.Errorf("failed to marshal new schedule: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO schedule_changes (id, plot_id, timestamp, old_schedule, new_schedule, reason)
		VALUES (?, ?, ?, ?, ?, ?)`, rec.ID, plotID, rec.Timestamp.UTC(), string(oldData), string(newData), rec.Reason)
	if err != nil {
		return fmt.Errorf("failed to record schedule edit: %w", err)
	}
	return nil
}

// ListEdits returns the plot's edit history, oldest first.
func (r *Repository) ListEdits(ctx context.Context, plotID string) ([]EditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, plot_id, timestamp, old_schedule, new_schedule, reason
		FROM schedule_changes WHERE plot_id = ? ORDER BY seq`, plotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edits for plot %s: %w", plotID, err)
	}
	defer rows.Close()

	var edits []EditRecord
	for rows.Next() {
		var (
			e                EditRecord
			oldData, newData sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.PlotID, &e.Timestamp, &oldData, &newData, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan edit: %w", err)
		}
		if e.OldSchedule, err = decodeDays(oldData); err != nil {
			return nil, fmt.Errorf("corrupt edit %s: %w", e.ID, err)
		}
		if e.NewSchedule, err = decodeDays(newData); err != nil {
			return nil, fmt.Errorf("corrupt edit %s: %w", e.ID, err)
		}
		edits = append(edits, e)
	}
	return edits, rows.Err()
}

func decodeDays(s sql.NullString) ([]DayPlan, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var days []DayPlan
	if err := json.Unmarshal([]byte(s.String), &days); err != nil {
		return nil, err
	}
	return days, nil
}
