package backtest

import (
	"math"
	"math/rand/v2"
	"time"

	"irrigation-planner/internal/agronomy"
)

// Synthesize builds a seeded history with seasonal temperature, a monthly
// humidity cycle and winter-heavy rain. The "actual" irrigation follows a
// simple farmer habit: top up to 0.3 whenever moisture falls below 0.25.
// The same seed always yields the same history.
func Synthesize(seed uint64, start time.Time, days int, plot agronomy.PlotContext) []DataPoint {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	points := make([]DataPoint, 0, max(days, 0))
	moisture := 0.3

	for i := 0; i < days; i++ {
		fi := float64(i)
		season := math.Sin(2 * math.Pi * fi / 365)

		temp := 20 + 10*season + rng.NormFloat64()*3
		humidity := clamp(50+20*math.Sin(2*math.Pi*fi/30)+rng.NormFloat64()*10, 20, 90)
		wind := 2 + rng.ExpFloat64()
		rainProb := 0.1 + 0.3*math.Sin(2*math.Pi*fi/365+math.Pi)
		rain := 0.0
		if rng.Float64() < rainProb {
			rain = rng.ExpFloat64() * 5
		}
		pressure := 101.3 + rng.NormFloat64()*2
		solar := math.Max(5, 20+10*season+rng.NormFloat64()*3)

		age := plot.AgeDays + fi
		et0 := 0.0023 * (temp + 17.8) * math.Sqrt(math.Max(0, temp-10)) * 0.408
		kc := 0.6 + 0.4*math.Min(1, age/60)
		moisture = clamp(moisture+(rain-et0*kc)/100, 0.1, 0.5)

		actual := 0.0
		if moisture < 0.25 {
			actual = math.Max(0, 0.3-moisture) * 1000 * plot.AreaM2
		}
		yield := math.Min(1, moisture/0.3) * (1 - math.Abs(temp-25)/50) * plot.AreaM2 * 0.1

		points = append(points, DataPoint{
			Date: start.AddDate(0, 0, i),
			Weather: agronomy.WeatherSample{
				TempC:           agronomy.Float(temp),
				TempMinC:        agronomy.Float(temp - 5),
				TempMaxC:        agronomy.Float(temp + 5),
				Humidity:        agronomy.Float(humidity),
				WindSpeed:       agronomy.Float(wind),
				PressureKPa:     agronomy.Float(pressure),
				SolarRadiation:  agronomy.Float(solar),
				PrecipitationMM: agronomy.Float(rain),
			},
			SoilMoisture: moisture,
			ActualLiters: actual,
			CropYield:    yield,
		})
	}
	return points
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// CompareSynthetic synthesizes days of history ending the day before end and
// compares the model against the default threshold rule.
func CompareSynthetic(model *agronomy.Model, pc agronomy.PlotContext, seed uint64, days int, end time.Time) Comparison {
	start := end.UTC().Truncate(24*time.Hour).AddDate(0, 0, -days)
	points := Synthesize(seed, start, days, pc)
	return Compare(ModelPredictor{Model: model}, DefaultThresholdPredictor(), pc, points)
}
