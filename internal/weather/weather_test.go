package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"irrigation-planner/internal/agronomy"
)

const forecastFixture = `{
  "city": {"timezone": 0},
  "list": [
    {"dt": %d, "main": {"temp": 18, "temp_min": 16, "temp_max": 19, "pressure": 1010, "humidity": 60},
     "wind": {"speed": 2}, "clouds": {"all": 20}, "pop": 0.1, "rain": {"3h": 1.5}},
    {"dt": %d, "main": {"temp": 24, "temp_min": 22, "temp_max": 27, "pressure": 1014, "humidity": 40},
     "wind": {"speed": 4}, "clouds": {"all": 40}, "pop": 0.6},
    {"dt": %d, "main": {"temp": 10, "temp_min": 9, "temp_max": 11, "pressure": 1000, "humidity": 80},
     "wind": {"speed": 1}, "clouds": {"all": 90}, "pop": 0.9, "rain": {"3h": 4}}
  ]
}`

func TestClientForecast(t *testing.T) {
	now := time.Date(2026, 10, 17, 5, 0, 0, 0, time.UTC)
	day0a := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC).Unix()
	day0b := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC).Unix()
	day2 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC).Unix()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/forecast" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		fmt.Fprintf(w, forecastFixture, day0a, day0b, day2)
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, srv.URL)
	c.now = func() time.Time { return now }

	days, err := c.Forecast(context.Background(), 38.5, -121.7)
	if err != nil {
		t.Fatalf("Forecast returned error: %v", err)
	}
	if !strings.Contains(gotQuery, "appid=secret") || !strings.Contains(gotQuery, "units=metric") {
		t.Errorf("Unexpected query %q", gotQuery)
	}
	if len(days) != Days {
		t.Fatalf("Expected %d days, got %d", Days, len(days))
	}

	t.Run("aggregates the first day", func(t *testing.T) {
		w := days[0].Weather
		if *w.TempC != 21 || *w.Humidity != 50 || *w.WindSpeed != 3 {
			t.Errorf("Expected means 21/50/3, got %.1f/%.1f/%.1f", *w.TempC, *w.Humidity, *w.WindSpeed)
		}
		if *w.TempMinC != 16 || *w.TempMaxC != 27 {
			t.Errorf("Expected min/max 16/27, got %.1f/%.1f", *w.TempMinC, *w.TempMaxC)
		}
		if math.Abs(*w.PressureKPa-101.2) > 1e-9 {
			t.Errorf("Expected 101.2 kPa, got %.3f", *w.PressureKPa)
		}
		if *w.PrecipitationMM != 1.5 {
			t.Errorf("Expected 1.5mm rain, got %.2f", *w.PrecipitationMM)
		}
		if len(days[0].Hourly) != 2 || days[0].Hourly[1].PrecipProb != 0.6 {
			t.Errorf("Expected two hourly samples, got %+v", days[0].Hourly)
		}
	})

	t.Run("pads missing days", func(t *testing.T) {
		if days[1].Weather.TempC != nil || len(days[1].Hourly) != 0 {
			t.Errorf("Expected empty day 1, got %+v", days[1])
		}
		if days[2].Weather.TempC == nil || *days[2].Weather.TempC != 10 {
			t.Errorf("Expected day 2 temp 10, got %+v", days[2].Weather.TempC)
		}
		for i, d := range days {
			want := time.Date(2026, 10, 17+i, 0, 0, 0, 0, time.UTC)
			if !d.Date.Equal(want) {
				t.Errorf("day %d: expected %v, got %v", i, want, d.Date)
			}
		}
	})
}

func TestClientForecastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", srv.URL, srv.URL)
	if _, err := c.Forecast(context.Background(), 0, 0); err == nil {
		t.Fatal("Expected error for 401 response")
	}
}

func TestClientGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") == "nowhere" {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"results":[{"name":"Davis","latitude":38.54,"longitude":-121.74}]}`)
	}))
	defer srv.Close()

	c := NewClient("", srv.URL, srv.URL)

	lat, lon, err := c.Geocode(context.Background(), "95616")
	if err != nil {
		t.Fatalf("Geocode returned error: %v", err)
	}
	if lat != 38.54 || lon != -121.74 {
		t.Errorf("Expected 38.54,-121.74, got %v,%v", lat, lon)
	}

	if _, _, err := c.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("Expected ErrLocationNotFound, got %v", err)
	}
}

type countingProvider struct {
	forecasts atomic.Int32
	geocodes  atomic.Int32
}

func (p *countingProvider) Forecast(context.Context, float64, float64) ([]agronomy.DailyForecast, error) {
	p.forecasts.Add(1)
	return make([]agronomy.DailyForecast, Days), nil
}

func (p *countingProvider) Geocode(context.Context, string) (float64, float64, error) {
	p.geocodes.Add(1)
	return 1, 2, nil
}

func TestCachedProvider(t *testing.T) {
	real := &countingProvider{}
	c := NewCachedProvider(real, time.Hour)
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Forecast(ctx, 38.5, -121.7); err != nil {
			t.Fatal(err)
		}
	}
	if n := real.forecasts.Load(); n != 1 {
		t.Errorf("Expected 1 upstream call within TTL, got %d", n)
	}

	now = now.Add(61 * time.Minute)
	if _, err := c.Forecast(ctx, 38.5, -121.7); err != nil {
		t.Fatal(err)
	}
	if n := real.forecasts.Load(); n != 2 {
		t.Errorf("Expected refetch after TTL, got %d calls", n)
	}

	if _, err := c.Forecast(ctx, 10, 10); err != nil {
		t.Fatal(err)
	}
	if n := real.forecasts.Load(); n != 3 {
		t.Errorf("Expected separate entry per location, got %d calls", n)
	}

	c.Geocode(ctx, "Davis")
	c.Geocode(ctx, "Davis")
	if n := real.geocodes.Load(); n != 1 {
		t.Errorf("Expected geocode to be cached, got %d calls", n)
	}
}
