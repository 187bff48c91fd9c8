package agronomy

// ComputeKc returns the crop coefficient for a crop at ageDays under the given
// weather and soil. The result is always within the configured [Min, Max].
func (m *Model) ComputeKc(crop Crop, ageDays float64, w WeatherSample, soil SoilType, drainage Drainage) float64 {
	cp := m.crop(crop)
	adj := m.params.Kc
	r := w.resolve()

	kc := stageKc(cp, ageDays)
	kc += cp.TempSensitivity * (r.temp - adj.ReferenceTemp)
	kc += cp.HumiditySensitivity * (r.humidity - adj.ReferenceHumidity)

	switch {
	case r.wind > adj.HighWind:
		kc += adj.HighWindDelta
	case r.wind < adj.LowWind:
		kc += adj.LowWindDelta
	}
	kc += adj.Soil[soil]
	kc += adj.Drainage[drainage]

	return round(clampFinite(kc, adj.Min, adj.Max), 3)
}

// stageKc interpolates linearly between stage end points. Ages before the
// first threshold take the first value, ages past the last take the last.
func stageKc(cp CropParams, age float64) float64 {
	kc, days := cp.BaseKc, cp.StageDays
	if age <= days[0] {
		return kc[0]
	}
	for i := 1; i < len(days); i++ {
		if age <= days[i] {
			span := days[i] - days[i-1]
			if span <= 0 {
				return kc[i]
			}
			frac := (age - days[i-1]) / span
			return kc[i-1] + frac*(kc[i]-kc[i-1])
		}
	}
	return kc[len(kc)-1]
}
