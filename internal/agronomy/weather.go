package agronomy

import (
	"math"
	"time"
)

// Defaults substituted for missing weather inputs.
const (
	DefaultTempC          = 20.0
	DefaultHumidity       = 50.0
	DefaultWindSpeed      = 2.0
	DefaultSolarRadiation = 15.0
	DefaultPressureKPa    = 101.3
)

// WeatherSample is one day's weather. Every field is optional; nil means the
// provider did not report it.
type WeatherSample struct {
	TempC           *float64 `json:"temp_c,omitempty"`
	TempMinC        *float64 `json:"temp_min_c,omitempty"`
	TempMaxC        *float64 `json:"temp_max_c,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"`
	WindSpeed       *float64 `json:"wind_speed,omitempty"`
	PressureKPa     *float64 `json:"pressure_kpa,omitempty"`
	SolarRadiation  *float64 `json:"solar_radiation,omitempty"`
	CloudCover      *float64 `json:"cloud_cover,omitempty"`
	PrecipitationMM *float64 `json:"precipitation_mm,omitempty"`
}

// HourlySample is one forecast slot used to pick the watering time.
type HourlySample struct {
	Time       time.Time `json:"time"`
	TempC      float64   `json:"temp_c"`
	WindSpeed  float64   `json:"wind_speed"`
	CloudCover float64   `json:"cloud_cover"`
	PrecipProb float64   `json:"precip_prob"`
}

// DailyForecast pairs a day's aggregate weather with its hourly slots.
type DailyForecast struct {
	Date    time.Time      `json:"date"`
	Weather WeatherSample  `json:"weather"`
	Hourly  []HourlySample `json:"hourly,omitempty"`
}

// Float returns a pointer to v, for building samples.
func Float(v float64) *float64 { return &v }

// weather is a WeatherSample with every default applied.
type weather struct {
	temp, tmin, tmax float64
	humidity         float64
	wind             float64
	pressure         float64
	solar            float64
	rain             float64
}

func valueOr(p *float64, def float64) float64 {
	if p == nil || math.IsNaN(*p) {
		return def
	}
	return *p
}

// solarProxy estimates daily shortwave radiation from mean cloud cover.
func solarProxy(cloud float64) float64 {
	return math.Max(5, 20-cloud*0.2)
}

func (w WeatherSample) resolve() weather {
	r := weather{
		temp:     valueOr(w.TempC, DefaultTempC),
		humidity: valueOr(w.Humidity, DefaultHumidity),
		wind:     valueOr(w.WindSpeed, DefaultWindSpeed),
		pressure: valueOr(w.PressureKPa, DefaultPressureKPa),
		solar:    DefaultSolarRadiation,
		rain:     math.Max(0, valueOr(w.PrecipitationMM, 0)),
	}
	switch {
	case w.SolarRadiation != nil && !math.IsNaN(*w.SolarRadiation):
		r.solar = *w.SolarRadiation
	case w.CloudCover != nil && !math.IsNaN(*w.CloudCover):
		r.solar = solarProxy(*w.CloudCover)
	}
	r.tmin = valueOr(w.TempMinC, r.temp-5)
	r.tmax = valueOr(w.TempMaxC, r.temp+5)
	return r
}

// HasEnergyBalanceInputs reports whether w carries enough to run the
// Penman-Monteith estimator: a temperature and a radiation source. Pressure
// falls back to sea level and does not gate the choice.
func HasEnergyBalanceInputs(w WeatherSample) bool {
	if w.TempC == nil || math.IsNaN(*w.TempC) {
		return false
	}
	return (w.SolarRadiation != nil && !math.IsNaN(*w.SolarRadiation)) ||
		(w.CloudCover != nil && !math.IsNaN(*w.CloudCover))
}

// Rainfall returns the reported precipitation, 0 when missing.
func (w WeatherSample) Rainfall() float64 {
	return w.resolve().rain
}
