package plot

import (
	"errors"
	"strings"
	"time"

	"irrigation-planner/internal/agronomy"
)

// DaysPerMonth converts an age-at-entry given in months to days.
const DaysPerMonth = 30.44

// ErrPlotNotFound is returned when a plot id does not exist.
var ErrPlotNotFound = errors.New("plot not found")

// Plot is a registered farm plot.
type Plot struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Crop              string     `json:"crop"`
	AreaM2            float64    `json:"area_m2"`
	Lat               float64    `json:"lat"`
	Lon               float64    `json:"lon"`
	ZipCode           string     `json:"zip_code,omitempty"`
	SoilType          string     `json:"soil_type"`
	Drainage          string     `json:"drainage"`
	PlantingDate      *time.Time `json:"planting_date,omitempty"`
	AgeAtEntryMonths  float64    `json:"age_at_entry,omitempty"`
	CustomConstraints string     `json:"custom_constraints,omitempty"`
	// SoilMoisture is the last known moisture fraction, nil when never measured.
	SoilMoisture *float64  `json:"soil_moisture,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the fields a schedule cannot be computed without.
func (p *Plot) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(p.Crop) == "" {
		errs = append(errs, errors.New("crop is required"))
	}
	if !(p.AreaM2 > 0) {
		errs = append(errs, errors.New("area_m2 must be positive"))
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		errs = append(errs, errors.New("lat/lon out of range"))
	}
	if p.AgeAtEntryMonths < 0 {
		errs = append(errs, errors.New("age_at_entry must not be negative"))
	}
	return errors.Join(errs...)
}

// AgeDays returns the crop age at now: days since planting plus the age the
// crop already had when it was registered.
func (p *Plot) AgeDays(now time.Time) float64 {
	days := p.AgeAtEntryMonths * DaysPerMonth
	if p.PlantingDate != nil && now.After(*p.PlantingDate) {
		days += float64(int(now.Sub(*p.PlantingDate).Hours() / 24))
	}
	return days
}

// Context converts the plot to the form the agronomic models consume.
func (p *Plot) Context(now time.Time) agronomy.PlotContext {
	return agronomy.PlotContext{
		Crop:     agronomy.ParseCrop(p.Crop),
		AreaM2:   p.AreaM2,
		AgeDays:  p.AgeDays(now),
		Lat:      p.Lat,
		Lon:      p.Lon,
		Soil:     agronomy.ParseSoilType(p.SoilType),
		Drainage: agronomy.ParseDrainage(p.Drainage),
	}
}

// AppendConstraint joins a new constraint onto the existing list with "; ".
func AppendConstraint(existing, addition string) string {
	existing = strings.TrimSpace(existing)
	addition = strings.TrimSpace(addition)
	switch {
	case addition == "":
		return existing
	case existing == "":
		return addition
	default:
		return existing + "; " + addition
	}
}
