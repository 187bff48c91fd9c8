package watering

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"irrigation-planner/internal/database"
	"irrigation-planner/internal/plot"
)

func TestNewLog(t *testing.T) {
	at := time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)

	t.Run("estimates liters from minutes", func(t *testing.T) {
		l, err := NewLog("p1", at, 4, 0)
		if err != nil {
			t.Fatal(err)
		}
		if l.Liters != 10 {
			t.Errorf("Expected 10 liters, got %v", l.Liters)
		}
		if l.ID == "" {
			t.Error("Expected an id")
		}
	})

	t.Run("keeps explicit liters", func(t *testing.T) {
		l, _ := NewLog("p1", at, 4, 3)
		if l.Liters != 3 {
			t.Errorf("Expected 3 liters, got %v", l.Liters)
		}
	})

	t.Run("rejects empty and negative", func(t *testing.T) {
		if _, err := NewLog("p1", at, 0, 0); err == nil {
			t.Error("Expected error for empty log")
		}
		if _, err := NewLog("p1", at, -1, 0); err == nil {
			t.Error("Expected error for negative duration")
		}
	})
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	p := &plot.Plot{Name: "Yard", Crop: "tomato", AreaM2: 10}
	if err := plot.NewRepository(db.SQL).Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	repo := NewRepository(db.SQL)
	base := time.Date(2026, 10, 10, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 9; i++ {
		l, _ := NewLog(p.ID, base.AddDate(0, 0, i), 2, 0)
		if err := repo.Record(ctx, l); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	logs, err := repo.Recent(ctx, p.ID, RecentLimit)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != RecentLimit {
		t.Fatalf("Expected %d logs, got %d", RecentLimit, len(logs))
	}
	if !logs[0].WateredAt.Equal(base.AddDate(0, 0, 8)) {
		t.Errorf("Expected newest first, got %v", logs[0].WateredAt)
	}
	if ev := Events(logs); len(ev) != RecentLimit || ev[0].Liters != 5 {
		t.Errorf("Unexpected events %+v", ev)
	}
}
