package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"irrigation-planner/internal/agronomy"
	"irrigation-planner/internal/assistant"
	"irrigation-planner/internal/chat"
	"irrigation-planner/internal/database"
	"irrigation-planner/internal/plot"
	"irrigation-planner/internal/schedule"
	"irrigation-planner/internal/watering"
)

const testSecret = "test-secret"

type stubWeather struct{}

func (stubWeather) Forecast(context.Context, float64, float64) ([]agronomy.DailyForecast, error) {
	days := make([]agronomy.DailyForecast, 7)
	for i := range days {
		days[i].Weather = agronomy.WeatherSample{TempC: agronomy.Float(28), SolarRadiation: agronomy.Float(22)}
	}
	return days, nil
}

func (stubWeather) Geocode(context.Context, string) (float64, float64, error) {
	return 1, 1, nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "api.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	model := agronomy.MustDefaultModel()
	plots := plot.NewRepository(db.SQL)
	svc := assistant.NewService(assistant.Deps{
		Plots:     plots,
		Schedules: schedule.NewRepository(db.SQL),
		Waterings: watering.NewRepository(db.SQL),
		Chats:     chat.NewRepository(db.SQL),
		Weather:   stubWeather{},
		Generator: schedule.NewGenerator(model),
	}, assistant.Options{})
	return New(NewHandler(svc, plots, model, dir), testSecret)
}

func do(t *testing.T, e *echo.Echo, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth {
		token, err := IssueToken(testSecret, "tester", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	e := newTestServer(t)

	if rec := do(t, e, http.MethodGet, "/health", "", false); rec.Code != http.StatusOK {
		t.Errorf("Expected health to be public, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/api/plots", "", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/api/plots", "", true); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", rec.Code)
	}

	t.Run("rejects foreign and expired tokens", func(t *testing.T) {
		other, _ := IssueToken("other-secret", "x", time.Hour)
		expired, _ := IssueToken(testSecret, "x", -time.Minute)
		for name, token := range map[string]string{"foreign": other, "expired": expired} {
			req := httptest.NewRequest(http.MethodGet, "/api/plots", nil)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("%s: expected 401, got %d", name, rec.Code)
			}
		}
	})

	if _, err := IssueToken("", "x", time.Hour); err == nil {
		t.Error("Expected an error for an empty secret")
	}
}

func TestPlotLifecycle(t *testing.T) {
	e := newTestServer(t)

	if rec := do(t, e, http.MethodPost, "/api/plots", `{"name":"","crop":"corn","area_m2":0}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid plot, got %d", rec.Code)
	}

	rec := do(t, e, http.MethodPost, "/api/plots", `{"name":"Yard","crop":"tomato","area_m2":10,"lat":38.5,"lon":-121.7,"soil_type":"loam"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p plot.Plot
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil || p.ID == "" {
		t.Fatalf("Expected created plot with id, got %s", rec.Body.String())
	}
	base := "/api/plots/" + p.ID

	t.Run("schedule", func(t *testing.T) {
		rec := do(t, e, http.MethodGet, base+"/schedule?force_refresh=true", "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var s schedule.Schedule
		json.Unmarshal(rec.Body.Bytes(), &s)
		if len(s.Current) != schedule.Horizon {
			t.Errorf("Expected %d days, got %d", schedule.Horizon, len(s.Current))
		}
	})

	t.Run("chat edits the schedule", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, base+"/chat", `{"prompt":"skip day 1"}`, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp assistant.ChatResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if !resp.ScheduleUpdated || !strings.HasPrefix(resp.Reply, "✅ Skipped Day 1") {
			t.Errorf("Unexpected chat response %+v", resp)
		}

		rec = do(t, e, http.MethodGet, base+"/edits", "", true)
		var edits []schedule.EditRecord
		json.Unmarshal(rec.Body.Bytes(), &edits)
		if len(edits) != 1 {
			t.Errorf("Expected 1 edit, got %d", len(edits))
		}

		if rec := do(t, e, http.MethodPost, base+"/chat", `{"prompt":""}`, true); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for empty prompt, got %d", rec.Code)
		}
	})

	t.Run("water", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, base+"/water", `{"duration_minutes":2}`, true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d", rec.Code)
		}
		var l watering.Log
		json.Unmarshal(rec.Body.Bytes(), &l)
		if l.Liters != 5 {
			t.Errorf("Expected 5 liters, got %v", l.Liters)
		}
		if rec := do(t, e, http.MethodPost, base+"/water", `{}`, true); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for empty watering, got %d", rec.Code)
		}
	})

	t.Run("update", func(t *testing.T) {
		rec := do(t, e, http.MethodPut, base, `{"name":"Front yard"}`, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var got plot.Plot
		json.Unmarshal(rec.Body.Bytes(), &got)
		if got.Name != "Front yard" || got.Crop != "tomato" {
			t.Errorf("Expected partial update, got %+v", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if rec := do(t, e, http.MethodDelete, base, "", true); rec.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", rec.Code)
		}
		if rec := do(t, e, http.MethodGet, base, "", true); rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 after delete, got %d", rec.Code)
		}
		if rec := do(t, e, http.MethodGet, base+"/schedule", "", true); rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 schedule for deleted plot, got %d", rec.Code)
		}
	})
}

func TestBacktestEndpoint(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/api/backtest", `{"crop":"corn","area_m2":20,"days":30,"seed":7}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Model struct {
			TotalPredictions int `json:"total_predictions"`
		} `json:"model"`
		Report string `json:"report"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Model.TotalPredictions != 30 || !strings.Contains(resp.Report, "# Irrigation Backtest Report") {
		t.Errorf("Unexpected backtest response %s", rec.Body.String())
	}

	if rec := do(t, e, http.MethodPost, "/api/backtest", `{"days":0}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero days, got %d", rec.Code)
	}
}
