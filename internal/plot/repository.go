package plot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is a database-backed store for plots.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

const plotColumns = `id, name, crop, area_m2, lat, lon, zip_code, soil_type, drainage,
	planting_date, age_at_entry_months, custom_constraints, soil_moisture, created_at, updated_at`

// Create validates and inserts p, assigning an id when it has none.
func (r *Repository) Create(ctx context.Context, p *Plot) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid plot: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO plots (`+plotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Crop, p.AreaM2, p.Lat, p.Lon, p.ZipCode, p.SoilType, p.Drainage,
		nullTime(p.PlantingDate), p.AgeAtEntryMonths, p.CustomConstraints, nullFloat(p.SoilMoisture),
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert plot: %w", err)
	}
	return nil
}

// Get returns the plot with the given id, or ErrPlotNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Plot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+plotColumns+` FROM plots WHERE id = ?`, id)
	p, err := scanPlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plot %s: %w", id, err)
	}
	return p, nil
}

// List returns every plot ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Plot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+plotColumns+` FROM plots ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plots: %w", err)
	}
	defer rows.Close()

	var plots []Plot
	for rows.Next() {
		p, err := scanPlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plot: %w", err)
		}
		plots = append(plots, *p)
	}
	return plots, rows.Err()
}

// Update overwrites the editable fields of an existing plot.
func (r *Repository) Update(ctx context.Context, p *Plot) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid plot: %w", err)
	}
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE plots SET name = ?, crop = ?, area_m2 = ?, lat = ?, lon = ?,
		zip_code = ?, soil_type = ?, drainage = ?, planting_date = ?, age_at_entry_months = ?,
		custom_constraints = ?, soil_moisture = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Crop, p.AreaM2, p.Lat, p.Lon, p.ZipCode, p.SoilType, p.Drainage,
		nullTime(p.PlantingDate), p.AgeAtEntryMonths, p.CustomConstraints, nullFloat(p.SoilMoisture),
		p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update plot %s: %w", p.ID, err)
	}
	return expectOne(res, p.ID)
}

// SetConstraints replaces the plot's custom constraint string.
func (r *Repository) SetConstraints(ctx context.Context, id, constraints string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE plots SET custom_constraints = ?, updated_at = ? WHERE id = ?`,
		constraints, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update constraints for plot %s: %w", id, err)
	}
	return expectOne(res, id)
}

// SetSoilMoisture stores the latest known moisture fraction.
func (r *Repository) SetSoilMoisture(ctx context.Context, id string, moisture float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE plots SET soil_moisture = ?, updated_at = ? WHERE id = ?`,
		moisture, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update soil moisture for plot %s: %w", id, err)
	}
	return expectOne(res, id)
}

// Delete removes a plot. Schedules, edit history and logs cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plot %s: %w", id, err)
	}
	return expectOne(res, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlot(s scanner) (*Plot, error) {
	var (
		p        Plot
		planted  sql.NullTime
		moisture sql.NullFloat64
	)
	err := s.Scan(&p.ID, &p.Name, &p.Crop, &p.AreaM2, &p.Lat, &p.Lon, &p.ZipCode, &p.SoilType, &p.Drainage,
		&planted, &p.AgeAtEntryMonths, &p.CustomConstraints, &moisture, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if planted.Valid {
		t := planted.Time
		p.PlantingDate = &t
	}
	if moisture.Valid {
		m := moisture.Float64
		p.SoilMoisture = &m
	}
	return &p, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("plot %s: %w", id, ErrPlotNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
