package agronomy

import "math"

const (
	albedo           = 0.23
	stefanBoltzmann  = 4.903e-9
	maxET0           = 15.0
	psychrometricMul = 0.665e-3
)

// ComputeET0 returns reference evapotranspiration in mm/day, always within [0, 15].
func (m *Model) ComputeET0(w WeatherSample) float64 {
	if HasEnergyBalanceInputs(w) {
		return round(clampFinite(penmanMonteith(w.resolve()), 0, maxET0), 3)
	}
	return round(clampFinite(m.hargreaves(w.resolve()), 0, maxET0), 3)
}

func penmanMonteith(w weather) float64 {
	t := w.temp
	es := 0.6108 * math.Exp(17.27*t/(t+237.3))
	ea := es * w.humidity / 100
	delta := 4098 * es / math.Pow(t+237.3, 2)
	gamma := psychrometricMul * w.pressure

	rns := w.solar * (1 - albedo)
	tk := t + 273.15
	rnl := stefanBoltzmann * math.Pow(tk, 4) * (0.34 - 0.14*math.Sqrt(math.Max(ea, 0)))
	rn := rns - rnl
	g := 0.1 * rn

	u := w.wind
	num := delta*(rn-g) + gamma*900/tk*u*(es-ea)
	den := delta + gamma*(1+0.34*u)
	return num / den
}

func (m *Model) hargreaves(w weather) float64 {
	spread := math.Max(w.tmax-w.tmin, 0)
	et0 := 0.0023 * (w.temp + 17.8) * math.Sqrt(spread) * w.solar * 0.408
	if math.IsNaN(et0) {
		et0 = 0
	}
	return math.Max(et0, m.params.Thresholds.HargreavesFloor)
}

// clampFinite clamps v to [lo, hi]; NaN and ±Inf map to lo.
func clampFinite(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
