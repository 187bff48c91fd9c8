package agronomy

import (
	"fmt"
	"math"
)

// ReasonSufficientMoisture is reported when rain and stored water cover demand.
const ReasonSufficientMoisture = "Sufficient soil moisture and rainfall"

// Requirement is the irrigation decision for one day.
type Requirement struct {
	Needed            bool    `json:"needed"`
	Liters            float64 `json:"liters"`
	Reason            string  `json:"reason"`
	ET0               float64 `json:"et0"`
	Kc                float64 `json:"kc"`
	ETc               float64 `json:"etc"`
	EffectiveRainfall float64 `json:"effective_rainfall"`
	MoistureDeficit   float64 `json:"moisture_deficit"`
}

// RequireIrrigation decides whether the plot needs water today and how much.
// Liters never increase as currentMoisture increases with weather held fixed.
func (m *Model) RequireIrrigation(pc PlotContext, w WeatherSample, currentMoisture float64) Requirement {
	th := m.params.Thresholds
	soil := m.Soil(pc.Soil)

	et0, kc, etc := m.CropET(pc, w)
	effRain := m.EffectiveRainfall(w)
	deficit := soil.FieldCapacity - currentMoisture

	req := Requirement{
		ET0:               et0,
		Kc:                kc,
		ETc:               round(etc, 3),
		EffectiveRainfall: round(effRain, 3),
		MoistureDeficit:   round(deficit, 3),
	}

	if currentMoisture > soil.WiltingPoint+th.SkipMargin && effRain > th.RainfallSufficiency*etc {
		req.Reason = ReasonSufficientMoisture
		return req
	}

	mm := math.Max(0, etc-effRain+deficit*th.DeficitScale)
	if math.IsNaN(mm) || math.IsInf(mm, 0) {
		mm = 0
	}
	liters := 0.0
	if pc.AreaM2 > 0 {
		liters = mm * pc.AreaM2 / 1000 * th.EfficiencySurcharge
		if th.ApplyDailyCap {
			if limit := m.crop(pc.Crop).MaxLitersPerM2 * pc.AreaM2; limit > 0 && liters > limit {
				liters = limit
			}
		}
	}

	req.Liters = round(math.Max(0, liters), 2)
	req.Needed = req.Liters > 0
	req.Reason = fmt.Sprintf("ETc: %.2fmm, Rainfall: %.2fmm", etc, effRain)
	return req
}
