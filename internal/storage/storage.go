// Package storage writes file exports: versioned schedule snapshots and
// backtest reports.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"irrigation-planner/internal/backtest"
	"irrigation-planner/internal/schedule"
)

// versionLayout names a snapshot by the schedule's UpdatedAt.
const versionLayout = "20060102T150405Z"

// ExportStore provides file-based exports under one directory.
type ExportStore struct {
	basePath string
}

// NewExportStore creates a new ExportStore and ensures the base directory exists.
func NewExportStore(basePath string) (*ExportStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", basePath, err)
	}
	return &ExportStore{basePath: basePath}, nil
}

func version(t time.Time) string {
	return t.UTC().Format(versionLayout)
}

// schedulePath returns the file for a given plot and schedule version.
func (s *ExportStore) schedulePath(plotID string, updatedAt time.Time) string {
	filename := fmt.Sprintf("%s_%s.json", sanitize(plotID), version(updatedAt))
	return filepath.Join(s.basePath, filename)
}

// sanitize keeps ids safe for filenames.
func sanitize(id string) string {
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-", "_", "-").Replace(id)
}

// SaveSchedule writes a snapshot of sched, replacing older snapshots of the
// same plot. It returns the written path.
func (s *ExportStore) SaveSchedule(sched *schedule.Schedule) (string, error) {
	if sched == nil {
		return "", schedule.ErrNoSchedule
	}
	path := s.schedulePath(sched.PlotID, sched.UpdatedAt)
	if s.ScheduleExists(sched.PlotID, sched.UpdatedAt) {
		return path, nil
	}
	if err := s.RemoveStaleVersions(sched.PlotID); err != nil {
		return "", err
	}
	if err := writeJSON(path, sched); err != nil {
		return "", err
	}
	return path, nil
}

// LoadSchedule reads a specific snapshot.
func (s *ExportStore) LoadSchedule(plotID string, updatedAt time.Time) (*schedule.Schedule, error) {
	data, err := os.ReadFile(s.schedulePath(plotID, updatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule export: %w", err)
	}
	var sched schedule.Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule export: %w", err)
	}
	return &sched, nil
}

// ScheduleExists checks if a snapshot of this schedule version was written.
func (s *ExportStore) ScheduleExists(plotID string, updatedAt time.Time) bool {
	_, err := os.Stat(s.schedulePath(plotID, updatedAt))
	return !os.IsNotExist(err)
}

// RemoveStaleVersions removes every snapshot of plotID.
func (s *ExportStore) RemoveStaleVersions(plotID string) error {
	pattern := filepath.Join(s.basePath, fmt.Sprintf("%s_*.json", sanitize(plotID)))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to glob stale exports: %w", err)
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("failed to remove stale export %s: %w", match, err)
		}
	}
	return nil
}

// SaveBacktest writes the comparison as JSON next to its markdown report and
// returns both paths.
func (s *ExportStore) SaveBacktest(cmp backtest.Comparison, at time.Time) (string, string, error) {
	base := filepath.Join(s.basePath, "backtest_"+version(at))
	if err := writeJSON(base+".json", cmp); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(base+".md", []byte(cmp.Report()), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write backtest report: %w", err)
	}
	return base + ".json", base + ".md", nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
