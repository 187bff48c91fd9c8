package agronomy

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// CropParams describes one crop's coefficient curve.
type CropParams struct {
	// BaseKc holds the Kc value at the end of each of the four growth stages.
	BaseKc []float64 `yaml:"base_kc"`
	// StageDays holds the age (days) at which each stage ends.
	StageDays           []float64 `yaml:"stage_days"`
	TempSensitivity     float64   `yaml:"sensitivity_temp"`
	HumiditySensitivity float64   `yaml:"sensitivity_humidity"`
	// MaxLitersPerM2 is the daily cap used when Thresholds.ApplyDailyCap is set.
	MaxLitersPerM2 float64 `yaml:"max_liters_per_m2"`
}

// SoilParams bounds the moisture fraction for a soil type.
type SoilParams struct {
	FieldCapacity float64 `yaml:"field_capacity"`
	WiltingPoint  float64 `yaml:"wilting_point"`
}

// Thresholds are the irrigation decision constants. They are heuristics and
// are expected to be tuned against backtest results.
type Thresholds struct {
	SkipMargin            float64 `yaml:"skip_margin"`
	RainfallSufficiency   float64 `yaml:"rainfall_sufficiency"`
	DeficitScale          float64 `yaml:"deficit_scale"`
	EfficiencySurcharge   float64 `yaml:"efficiency_surcharge"`
	EffectiveRainFraction float64 `yaml:"effective_rain_fraction"`
	HargreavesFloor       float64 `yaml:"hargreaves_floor"`
	ApplyDailyCap         bool    `yaml:"apply_daily_cap"`
}

// KcAdjustments are the additive corrections applied on top of the stage curve.
type KcAdjustments struct {
	ReferenceTemp     float64              `yaml:"reference_temp"`
	ReferenceHumidity float64              `yaml:"reference_humidity"`
	HighWind          float64              `yaml:"high_wind"`
	HighWindDelta     float64              `yaml:"high_wind_delta"`
	LowWind           float64              `yaml:"low_wind"`
	LowWindDelta      float64              `yaml:"low_wind_delta"`
	Soil              map[SoilType]float64 `yaml:"soil"`
	Drainage          map[Drainage]float64 `yaml:"drainage"`
	Min               float64              `yaml:"min"`
	Max               float64              `yaml:"max"`
}

// Params is the full parameter set for the agronomic models.
type Params struct {
	Crops      map[Crop]CropParams     `yaml:"crops"`
	Soils      map[SoilType]SoilParams `yaml:"soils"`
	Thresholds Thresholds              `yaml:"thresholds"`
	Kc         KcAdjustments           `yaml:"kc"`
}

// DefaultParams returns a fresh copy of the built-in tables.
func DefaultParams() Params {
	return Params{
		Crops: map[Crop]CropParams{
			CropTomato:  {BaseKc: []float64{0.6, 0.95, 1.15, 0.8}, StageDays: []float64{30, 60, 90, 120}, TempSensitivity: 0.02, HumiditySensitivity: 0.01, MaxLitersPerM2: 1.5},
			CropCorn:    {BaseKc: []float64{0.4, 0.9, 1.15, 0.75}, StageDays: []float64{25, 50, 75, 100}, TempSensitivity: 0.015, HumiditySensitivity: 0.008, MaxLitersPerM2: 2.0},
			CropWheat:   {BaseKc: []float64{0.3, 0.8, 1.0, 0.4}, StageDays: []float64{20, 40, 60, 80}, TempSensitivity: 0.025, HumiditySensitivity: 0.012, MaxLitersPerM2: 1.0},
			CropLettuce: {BaseKc: []float64{0.6, 0.85, 1.0, 0.8}, StageDays: []float64{15, 30, 45, 60}, TempSensitivity: 0.03, HumiditySensitivity: 0.015, MaxLitersPerM2: 1.2},
			CropAlfalfa: {BaseKc: []float64{0.7, 1.0, 1.2, 0.9}, StageDays: []float64{20, 40, 60, 80}, TempSensitivity: 0.018, HumiditySensitivity: 0.01, MaxLitersPerM2: 2.5},
			CropAlmond:  {BaseKc: []float64{0.4, 0.85, 1.05, 0.85}, StageDays: []float64{30, 60, 90, 120}, TempSensitivity: 0.02, HumiditySensitivity: 0.01, MaxLitersPerM2: 3.0},
			CropGrass:   {BaseKc: []float64{0.5, 0.95, 1.1, 0.8}, StageDays: []float64{20, 40, 60, 80}, TempSensitivity: 0.02, HumiditySensitivity: 0.01, MaxLitersPerM2: 1.5},
			CropDefault: {BaseKc: []float64{0.5, 0.85, 1.05, 0.8}, StageDays: []float64{30, 60, 90, 120}, TempSensitivity: 0.02, HumiditySensitivity: 0.01, MaxLitersPerM2: 1.5},
		},
		Soils: map[SoilType]SoilParams{
			SoilLoam:    {FieldCapacity: 0.35, WiltingPoint: 0.15},
			SoilClay:    {FieldCapacity: 0.45, WiltingPoint: 0.25},
			SoilSandy:   {FieldCapacity: 0.25, WiltingPoint: 0.10},
			SoilDefault: {FieldCapacity: 0.35, WiltingPoint: 0.15},
		},
		Thresholds: Thresholds{
			SkipMargin:            0.10,
			RainfallSufficiency:   0.5,
			DeficitScale:          10,
			EfficiencySurcharge:   1.1,
			EffectiveRainFraction: 0.8,
			HargreavesFloor:       0.15,
		},
		Kc: KcAdjustments{
			ReferenceTemp:     25,
			ReferenceHumidity: 60,
			HighWind:          5,
			HighWindDelta:     0.05,
			LowWind:           1,
			LowWindDelta:      -0.02,
			Soil:              map[SoilType]float64{SoilClay: -0.05, SoilSandy: 0.05},
			Drainage:          map[Drainage]float64{DrainagePoor: -0.03, DrainageGood: 0.03},
			Min:               0.1,
			Max:               1.5,
		},
	}
}

// LoadParams reads a YAML parameter file and overlays it on DefaultParams.
// Crops and soils present in the file replace the built-in entry wholesale.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read params file: %w", err)
	}

	var overlay Params
	overlay.Thresholds = p.Thresholds
	overlay.Kc = p.Kc
	overlay.Kc.Soil = nil
	overlay.Kc.Drainage = nil
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return p, fmt.Errorf("failed to parse params file: %w", err)
	}

	for name, c := range overlay.Crops {
		p.Crops[ParseCrop(string(name))] = c
	}
	for name, s := range overlay.Soils {
		p.Soils[ParseSoilType(string(name))] = s
	}
	p.Thresholds = overlay.Thresholds
	soilAdj, drainAdj := p.Kc.Soil, p.Kc.Drainage
	p.Kc = overlay.Kc
	if overlay.Kc.Soil == nil {
		p.Kc.Soil = soilAdj
	}
	if overlay.Kc.Drainage == nil {
		p.Kc.Drainage = drainAdj
	}

	return p, p.Validate()
}

// Validate checks that the tables can drive the models without producing
// nonsense: stage curves of the wrong length, inverted soil bounds, or
// thresholds that could turn a water volume negative.
func (p Params) Validate() error {
	var errs []error
	if _, ok := p.Crops[CropDefault]; !ok {
		errs = append(errs, errors.New("crop table has no default entry"))
	}
	for name, c := range p.Crops {
		if len(c.BaseKc) != 4 || len(c.StageDays) != 4 {
			errs = append(errs, fmt.Errorf("crop %s: base_kc and stage_days need 4 values", name))
			continue
		}
		for i := 1; i < 4; i++ {
			if c.StageDays[i] < c.StageDays[i-1] {
				errs = append(errs, fmt.Errorf("crop %s: stage_days must be non-decreasing", name))
				break
			}
		}
	}
	if _, ok := p.Soils[SoilDefault]; !ok {
		errs = append(errs, errors.New("soil table has no default entry"))
	}
	for name, s := range p.Soils {
		if s.WiltingPoint < 0 || s.FieldCapacity <= s.WiltingPoint {
			errs = append(errs, fmt.Errorf("soil %s: need 0 <= wilting_point < field_capacity", name))
		}
	}
	th := p.Thresholds
	for name, v := range map[string]float64{
		"skip_margin":             th.SkipMargin,
		"rainfall_sufficiency":    th.RainfallSufficiency,
		"deficit_scale":           th.DeficitScale,
		"efficiency_surcharge":    th.EfficiencySurcharge,
		"effective_rain_fraction": th.EffectiveRainFraction,
		"hargreaves_floor":        th.HargreavesFloor,
	} {
		if !nonNegative(v) {
			errs = append(errs, fmt.Errorf("threshold %s must be a finite non-negative number, got %v", name, v))
		}
	}
	if !nonNegative(p.Kc.Min) || !nonNegative(p.Kc.Max) {
		errs = append(errs, errors.New("kc bounds must be finite and non-negative"))
	} else if p.Kc.Min > p.Kc.Max {
		errs = append(errs, errors.New("kc min exceeds max"))
	}
	return errors.Join(errs...)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

func (p Params) clone() Params {
	out := p
	out.Crops = make(map[Crop]CropParams, len(p.Crops))
	for k, v := range p.Crops {
		v.BaseKc = append([]float64(nil), v.BaseKc...)
		v.StageDays = append([]float64(nil), v.StageDays...)
		out.Crops[k] = v
	}
	out.Soils = make(map[SoilType]SoilParams, len(p.Soils))
	for k, v := range p.Soils {
		out.Soils[k] = v
	}
	out.Kc.Soil = make(map[SoilType]float64, len(p.Kc.Soil))
	for k, v := range p.Kc.Soil {
		out.Kc.Soil[k] = v
	}
	out.Kc.Drainage = make(map[Drainage]float64, len(p.Kc.Drainage))
	for k, v := range p.Kc.Drainage {
		out.Kc.Drainage[k] = v
	}
	return out
}
