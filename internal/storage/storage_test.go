package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"irrigation-planner/internal/backtest"
	"irrigation-planner/internal/schedule"
)

func TestScheduleExports(t *testing.T) {
	tempDir := t.TempDir()
	store, err := NewExportStore(filepath.Join(tempDir, "exports"))
	if err != nil {
		t.Fatalf("Failed to create ExportStore: %v", err)
	}

	first := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	sched := &schedule.Schedule{
		PlotID:    "plot-1",
		Current:   []schedule.DayPlan{{Day: "Day 1", Date: "10/17/26", Liters: 4.5}},
		UpdatedAt: first,
		Version:   1,
	}

	t.Run("Exists-False", func(t *testing.T) {
		if store.ScheduleExists("plot-1", first) {
			t.Error("Expected no export before saving")
		}
	})

	t.Run("Save", func(t *testing.T) {
		path, err := store.SaveSchedule(sched)
		if err != nil {
			t.Fatalf("Failed to save schedule: %v", err)
		}
		if filepath.Base(path) != "plot-1_20261017T060000Z.json" {
			t.Errorf("Unexpected export name %s", filepath.Base(path))
		}
		if !store.ScheduleExists("plot-1", first) {
			t.Error("Expected export to exist after saving")
		}
	})

	t.Run("Load", func(t *testing.T) {
		loaded, err := store.LoadSchedule("plot-1", first)
		if err != nil {
			t.Fatalf("Failed to load schedule: %v", err)
		}
		if len(loaded.Current) != 1 || loaded.Current[0].Liters != 4.5 {
			t.Errorf("Expected the saved day plan, got %+v", loaded.Current)
		}
	})

	t.Run("newer version replaces older", func(t *testing.T) {
		next := *sched
		next.UpdatedAt = first.Add(time.Hour)
		next.Version = 2
		if _, err := store.SaveSchedule(&next); err != nil {
			t.Fatal(err)
		}
		if store.ScheduleExists("plot-1", first) {
			t.Error("Expected the stale version to be removed")
		}
		matches, _ := filepath.Glob(filepath.Join(tempDir, "exports", "plot-1_*.json"))
		if len(matches) != 1 {
			t.Errorf("Expected 1 export, got %d", len(matches))
		}
	})

	t.Run("Load-NotFound", func(t *testing.T) {
		if _, err := store.LoadSchedule("missing", first); err == nil {
			t.Fatal("Expected an error for a missing export")
		}
	})

	t.Run("nil schedule", func(t *testing.T) {
		if _, err := store.SaveSchedule(nil); err != schedule.ErrNoSchedule {
			t.Errorf("Expected ErrNoSchedule, got %v", err)
		}
	})
}

func TestSaveBacktest(t *testing.T) {
	store, err := NewExportStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cmp := backtest.Comparison{
		Model:    backtest.Result{Predictor: "model", TotalPredictions: 3},
		Baseline: backtest.Result{Predictor: "threshold", TotalPredictions: 3},
	}

	jsonPath, mdPath, err := store.SaveBacktest(cmp, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SaveBacktest failed: %v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var got backtest.Comparison
	if err := json.Unmarshal(data, &got); err != nil || got.Model.TotalPredictions != 3 {
		t.Errorf("Expected comparison JSON, got %s", data)
	}

	report, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(report), "# Irrigation Backtest Report") {
		t.Errorf("Unexpected report %q", report)
	}
}
