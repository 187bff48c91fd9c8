// Package backtest replays historical (or synthetic) irrigation records
// through a predictor and scores it against what was actually applied.
package backtest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"irrigation-planner/internal/agronomy"
)

// CorrectTolerance is the relative error under which a prediction counts as correct.
const CorrectTolerance = 0.2

// minActual keeps the relative error finite on days nothing was applied.
const minActual = 0.1

// DataPoint is one day of history.
type DataPoint struct {
	Date         time.Time              `json:"date"`
	Weather      agronomy.WeatherSample `json:"weather"`
	SoilMoisture float64                `json:"soil_moisture"`
	ActualLiters float64                `json:"actual_liters"`
	CropYield    float64                `json:"crop_yield,omitempty"`
}

// Predictor estimates liters for one day.
type Predictor interface {
	Name() string
	Predict(pc agronomy.PlotContext, w agronomy.WeatherSample, moisture float64) float64
}

// PointMetric is the score of a single prediction.
type PointMetric struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
	Accuracy  float64   `json:"accuracy"`
	Correct   bool      `json:"correct"`
}

// Result aggregates a backtest run.
type Result struct {
	Predictor          string        `json:"predictor"`
	Accuracy           float64       `json:"accuracy"`
	AvgAccuracy        float64       `json:"avg_accuracy"`
	TotalPredictions   int           `json:"total_predictions"`
	CorrectPredictions int           `json:"correct_predictions"`
	TotalWaterSavings  float64       `json:"total_water_savings"`
	AvgWaterSavings    float64       `json:"avg_water_savings"`
	PredictedLiters    float64       `json:"predicted_liters"`
	ActualLiters       float64       `json:"actual_liters"`
	PerPoint           []PointMetric `json:"per_point"`
}

// Run scores p against points. The plot ages by one day per point.
func Run(p Predictor, plot agronomy.PlotContext, points []DataPoint) Result {
	res := Result{Predictor: p.Name(), TotalPredictions: len(points)}
	if len(points) == 0 {
		return res
	}

	var accSum float64
	for i, dp := range points {
		pc := plot
		pc.AgeDays = plot.AgeDays + float64(i)
		pred := p.Predict(pc, dp.Weather, dp.SoilMoisture)
		actual := dp.ActualLiters

		diff := math.Abs(pred - actual)
		correct := diff < CorrectTolerance*math.Max(actual, minActual)
		accuracy := 1 - diff/math.Max(actual, minActual)
		if correct {
			res.CorrectPredictions++
		}
		res.TotalWaterSavings += math.Max(0, actual-pred)
		res.PredictedLiters += pred
		res.ActualLiters += actual
		accSum += accuracy

		res.PerPoint = append(res.PerPoint, PointMetric{
			Date: dp.Date, Predicted: pred, Actual: actual, Accuracy: accuracy, Correct: correct,
		})
	}

	n := float64(len(points))
	res.Accuracy = float64(res.CorrectPredictions) / n
	res.AvgAccuracy = accSum / n
	res.AvgWaterSavings = res.TotalWaterSavings / n
	return res
}

// ModelPredictor predicts with the agronomic requirement calculator.
type ModelPredictor struct {
	Model *agronomy.Model
}

func (ModelPredictor) Name() string { return "model" }

func (m ModelPredictor) Predict(pc agronomy.PlotContext, w agronomy.WeatherSample, moisture float64) float64 {
	return m.Model.RequireIrrigation(pc, w, moisture).Liters
}

// ThresholdPredictor is the fixed-threshold rule the model is compared against:
// water back up to Target whenever moisture drops to Threshold or below, scaled
// by a flat per-crop Kc and a temperature-only ET0 relative to ReferenceET0.
type ThresholdPredictor struct {
	Threshold    float64
	Target       float64
	RootDepthMM  float64
	ReferenceET0 float64
	CropKc       map[agronomy.Crop]float64
}

// DefaultThresholdPredictor returns the baseline rule with its usual settings.
func DefaultThresholdPredictor() ThresholdPredictor {
	return ThresholdPredictor{
		Threshold:    0.28,
		Target:       0.42,
		RootDepthMM:  300,
		ReferenceET0: 0.15,
		CropKc: map[agronomy.Crop]float64{
			agronomy.CropTomato:  1.05,
			agronomy.CropCorn:    1.15,
			agronomy.CropWheat:   1.0,
			agronomy.CropLettuce: 0.85,
			agronomy.CropAlfalfa: 1.2,
			agronomy.CropAlmond:  1.05,
		},
	}
}

func (ThresholdPredictor) Name() string { return "threshold" }

func (t ThresholdPredictor) Predict(pc agronomy.PlotContext, w agronomy.WeatherSample, moisture float64) float64 {
	if moisture > t.Threshold {
		return 0
	}
	mm := math.Max(0, (t.Target-moisture)*t.RootDepthMM)
	liters := mm * pc.AreaM2 * 0.1
	kc, ok := t.CropKc[pc.Crop]
	if !ok {
		kc = 1
	}
	scale := 1.0
	if w.TempC != nil && t.ReferenceET0 > 0 {
		scale = baselineET0(*w.TempC) / t.ReferenceET0
	}
	return liters * kc * scale
}

// baselineET0 is the simplified Hargreaves estimate from mean temperature alone.
func baselineET0(tempC float64) float64 {
	return 0.0023 * (tempC + 17.8) * math.Sqrt(math.Max(0, tempC-10)) * 0.408
}

// Comparison contrasts the model against a baseline over the same history.
type Comparison struct {
	Model                   Result  `json:"model"`
	Baseline                Result  `json:"baseline"`
	AccuracyImprovement     float64 `json:"accuracy_improvement"`
	WaterSavingsImprovement float64 `json:"water_savings_improvement"`
}

// Compare runs both predictors over points.
func Compare(model, baseline Predictor, plot agronomy.PlotContext, points []DataPoint) Comparison {
	m := Run(model, plot, points)
	b := Run(baseline, plot, points)
	return Comparison{
		Model:                   m,
		Baseline:                b,
		AccuracyImprovement:     m.Accuracy - b.Accuracy,
		WaterSavingsImprovement: m.TotalWaterSavings - b.TotalWaterSavings,
	}
}

// Report renders a comparison as markdown.
func (c Comparison) Report() string {
	var sb strings.Builder
	sb.WriteString("# Irrigation Backtest Report\n\n")
	fmt.Fprintf(&sb, "Days evaluated: %d\n\n", c.Model.TotalPredictions)
	for _, r := range []Result{c.Model, c.Baseline} {
		fmt.Fprintf(&sb, "## %s\n", strings.ToUpper(r.Predictor[:1])+r.Predictor[1:])
		fmt.Fprintf(&sb, "- Accuracy: %.2f%% (%d/%d)\n", r.Accuracy*100, r.CorrectPredictions, r.TotalPredictions)
		fmt.Fprintf(&sb, "- Average accuracy score: %.3f\n", r.AvgAccuracy)
		fmt.Fprintf(&sb, "- Water saved: %.1fL (%.2fL/day)\n", r.TotalWaterSavings, r.AvgWaterSavings)
		fmt.Fprintf(&sb, "- Predicted vs actual: %.1fL / %.1fL\n\n", r.PredictedLiters, r.ActualLiters)
	}
	sb.WriteString("## Comparison\n")
	fmt.Fprintf(&sb, "- Accuracy improvement: %.2f%%\n", c.AccuracyImprovement*100)
	fmt.Fprintf(&sb, "- Water savings improvement: %.1fL\n", c.WaterSavingsImprovement)
	return sb.String()
}
