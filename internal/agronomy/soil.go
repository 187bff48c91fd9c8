package agronomy

import "math"

// EffectiveRainfall is the fraction of precipitation that reaches the root zone.
func (m *Model) EffectiveRainfall(w WeatherSample) float64 {
	return w.resolve().rain * m.params.Thresholds.EffectiveRainFraction
}

// CropET returns ET0, Kc and their product for a plot on a given day.
func (m *Model) CropET(pc PlotContext, w WeatherSample) (et0, kc, etc float64) {
	et0 = m.ComputeET0(w)
	kc = m.ComputeKc(pc.Crop, pc.AgeDays, w, pc.Soil, pc.Drainage)
	return et0, kc, et0 * kc
}

// AdvanceMoisture moves the soil moisture fraction forward one day. The result
// stays within the soil's [WiltingPoint, FieldCapacity] for any input.
func (m *Model) AdvanceMoisture(current float64, w WeatherSample, pc PlotContext, irrigationMM float64) float64 {
	soil := m.Soil(pc.Soil)
	if math.IsNaN(current) || math.IsInf(current, 0) {
		current = soil.WiltingPoint
	}
	if math.IsNaN(irrigationMM) || irrigationMM < 0 {
		irrigationMM = 0
	}

	_, _, etc := m.CropET(pc, w)
	delta := (m.EffectiveRainfall(w) + irrigationMM - etc) / 100
	return round(clampFinite(current+delta, soil.WiltingPoint, soil.FieldCapacity), 3)
}
