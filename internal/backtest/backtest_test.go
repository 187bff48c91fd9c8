package backtest

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"irrigation-planner/internal/agronomy"
)

type fixedPredictor struct {
	values []float64
	calls  int
	ages   []float64
}

func (f *fixedPredictor) Name() string { return "fixed" }

func (f *fixedPredictor) Predict(pc agronomy.PlotContext, _ agronomy.WeatherSample, _ float64) float64 {
	v := f.values[f.calls]
	f.calls++
	f.ages = append(f.ages, pc.AgeDays)
	return v
}

func TestRun(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	points := []DataPoint{
		{Date: start, ActualLiters: 10},
		{Date: start.AddDate(0, 0, 1), ActualLiters: 10},
		{Date: start.AddDate(0, 0, 2), ActualLiters: 5},
		{Date: start.AddDate(0, 0, 3), ActualLiters: 0},
	}
	p := &fixedPredictor{values: []float64{9, 7, 8, 0.01}}
	plot := agronomy.PlotContext{AreaM2: 10, AgeDays: 30}

	res := Run(p, plot, points)

	if res.TotalPredictions != 4 {
		t.Fatalf("Expected 4 predictions, got %d", res.TotalPredictions)
	}
	// 9 vs 10 is within 20%, 7 vs 10 and 8 vs 5 are not, 0.01 vs 0 is within the floor.
	wantCorrect := []bool{true, false, false, true}
	for i, m := range res.PerPoint {
		if m.Correct != wantCorrect[i] {
			t.Errorf("point %d: expected correct=%v, got %v", i, wantCorrect[i], m.Correct)
		}
	}
	if res.CorrectPredictions != 2 || res.Accuracy != 0.5 {
		t.Errorf("Expected 2 correct (0.5), got %d (%.2f)", res.CorrectPredictions, res.Accuracy)
	}
	// savings: 1 + 3 + 0 + 0
	if math.Abs(res.TotalWaterSavings-4) > 1e-9 || math.Abs(res.AvgWaterSavings-1) > 1e-9 {
		t.Errorf("Expected savings 4 (avg 1), got %.2f (%.2f)", res.TotalWaterSavings, res.AvgWaterSavings)
	}
	if !reflect.DeepEqual(p.ages, []float64{30, 31, 32, 33}) {
		t.Errorf("Expected plot to age one day per point, got %v", p.ages)
	}
}

func TestRunEmpty(t *testing.T) {
	res := Run(&fixedPredictor{}, agronomy.PlotContext{AreaM2: 1}, nil)
	if res.TotalPredictions != 0 || res.Accuracy != 0 || res.PerPoint != nil {
		t.Errorf("Expected empty result, got %+v", res)
	}
}

func TestSynthesize(t *testing.T) {
	plot := agronomy.PlotContext{Crop: agronomy.CropTomato, AreaM2: 10, AgeDays: 30, Soil: agronomy.SoilLoam}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := Synthesize(42, start, 90, plot)
	b := Synthesize(42, start, 90, plot)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Expected the same seed to produce the same history")
	}
	if c := Synthesize(7, start, 90, plot); reflect.DeepEqual(a, c) {
		t.Error("Expected different seeds to differ")
	}
	if len(a) != 90 {
		t.Fatalf("Expected 90 points, got %d", len(a))
	}
	for i, dp := range a {
		if dp.SoilMoisture < 0.1 || dp.SoilMoisture > 0.5 {
			t.Fatalf("point %d: moisture %.3f out of range", i, dp.SoilMoisture)
		}
		if h := *dp.Weather.Humidity; h < 20 || h > 90 {
			t.Fatalf("point %d: humidity %.1f out of range", i, h)
		}
		if dp.ActualLiters < 0 || *dp.Weather.PrecipitationMM < 0 {
			t.Fatalf("point %d: negative quantity", i)
		}
		if dp.SoilMoisture >= 0.25 && dp.ActualLiters != 0 {
			t.Fatalf("point %d: irrigated at moisture %.3f", i, dp.SoilMoisture)
		}
	}
}

func TestCompareReport(t *testing.T) {
	plot := agronomy.PlotContext{Crop: agronomy.CropCorn, AreaM2: 20, AgeDays: 40, Soil: agronomy.SoilLoam}
	points := Synthesize(1, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 30, plot)

	cmp := Compare(ModelPredictor{Model: agronomy.MustDefaultModel()}, DefaultThresholdPredictor(), plot, points)
	if cmp.Model.TotalPredictions != 30 || cmp.Baseline.TotalPredictions != 30 {
		t.Fatalf("Expected both runs over 30 days, got %d/%d", cmp.Model.TotalPredictions, cmp.Baseline.TotalPredictions)
	}
	if math.Abs(cmp.AccuracyImprovement-(cmp.Model.Accuracy-cmp.Baseline.Accuracy)) > 1e-12 {
		t.Error("Accuracy improvement does not match the two runs")
	}
	report := cmp.Report()
	for _, want := range []string{"# Irrigation Backtest Report", "## Model", "## Threshold", "Water savings improvement"} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected report to contain %q", want)
		}
	}
}

func TestThresholdPredictor(t *testing.T) {
	p := DefaultThresholdPredictor()
	pc := agronomy.PlotContext{Crop: agronomy.CropTomato, AreaM2: 10}
	temp := 25.0
	w := agronomy.WeatherSample{TempC: &temp}
	if got := p.Predict(pc, w, 0.3); got != 0 {
		t.Errorf("Expected no water above threshold, got %.2f", got)
	}

	t.Run("ScalesByKcAndET0", func(t *testing.T) {
		// (0.42-0.22)*300 = 60mm, 60*10*0.1 = 60 base liters
		et0 := 0.0023 * (temp + 17.8) * math.Sqrt(temp-10) * 0.408
		want := 60 * 1.05 * et0 / 0.15
		if got := p.Predict(pc, w, 0.22); math.Abs(got-want) > 1e-9 {
			t.Errorf("Expected %.4f, got %.4f", want, got)
		}
	})

	t.Run("ColdDayNeedsNothing", func(t *testing.T) {
		cold := 8.0
		if got := p.Predict(pc, agronomy.WeatherSample{TempC: &cold}, 0.22); got != 0 {
			t.Errorf("Expected 0 at or below 10C, got %.4f", got)
		}
	})

	t.Run("UnknownCropAndNoTemperature", func(t *testing.T) {
		grass := agronomy.PlotContext{Crop: agronomy.CropGrass, AreaM2: 10}
		if got := p.Predict(grass, agronomy.WeatherSample{}, 0.22); math.Abs(got-60) > 1e-9 {
			t.Errorf("Expected unscaled 60, got %.4f", got)
		}
	})
}

func TestCompareSynthetic(t *testing.T) {
	plot := agronomy.PlotContext{Crop: agronomy.CropCorn, AreaM2: 20, AgeDays: 40, Soil: agronomy.SoilLoam}
	model := agronomy.MustDefaultModel()
	end := time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

	a := CompareSynthetic(model, plot, 9, 14, end)
	b := CompareSynthetic(model, plot, 9, 14, end.Add(2*time.Hour))
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected the same seed and day to give the same comparison")
	}
	if len(a.Model.PerPoint) != 14 {
		t.Fatalf("Expected 14 points, got %d", len(a.Model.PerPoint))
	}
	if first := a.Model.PerPoint[0].Date; !first.Equal(time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected history to start on Oct 3, got %v", first)
	}
}
