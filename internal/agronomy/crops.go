package agronomy

import "strings"

// Crop is one of the supported crop species. Unknown names map to CropDefault.
type Crop string

const (
	CropTomato  Crop = "tomato"
	CropCorn    Crop = "corn"
	CropWheat   Crop = "wheat"
	CropLettuce Crop = "lettuce"
	CropAlfalfa Crop = "alfalfa"
	CropAlmond  Crop = "almond"
	CropGrass   Crop = "grass"
	CropDefault Crop = "default"
)

// Crops lists every named crop, CropDefault last.
var Crops = []Crop{CropTomato, CropCorn, CropWheat, CropLettuce, CropAlfalfa, CropAlmond, CropGrass, CropDefault}

// ParseCrop normalizes a free-form crop name. It never fails: anything that is
// not a supported species resolves to CropDefault.
func ParseCrop(name string) Crop {
	c := Crop(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Crops {
		if c == known {
			return c
		}
	}
	return CropDefault
}

// SoilType selects field capacity and wilting point.
type SoilType string

const (
	SoilClay    SoilType = "clay"
	SoilLoam    SoilType = "loam"
	SoilSandy   SoilType = "sandy"
	SoilDefault SoilType = "default"
)

// ParseSoilType accepts a few common spellings ("sand", "sandy loam" is still sandy).
func ParseSoilType(name string) SoilType {
	s := strings.ToLower(strings.TrimSpace(name))
	switch {
	case s == "clay":
		return SoilClay
	case s == "loam":
		return SoilLoam
	case s == "sand" || strings.HasPrefix(s, "sandy"):
		return SoilSandy
	default:
		return SoilDefault
	}
}

// Drainage is the plot's drainage class.
type Drainage string

const (
	DrainagePoor     Drainage = "poor"
	DrainageModerate Drainage = "moderate"
	DrainageGood     Drainage = "good"
)

// ParseDrainage maps unknown values to DrainageModerate.
func ParseDrainage(name string) Drainage {
	switch d := Drainage(strings.ToLower(strings.TrimSpace(name))); d {
	case DrainagePoor, DrainageGood:
		return d
	default:
		return DrainageModerate
	}
}

// PlotContext is the agronomic identity of a plot as seen by the models.
type PlotContext struct {
	Crop     Crop     `json:"crop"`
	AreaM2   float64  `json:"area_m2"`
	AgeDays  float64  `json:"age_days"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Soil     SoilType `json:"soil_type"`
	Drainage Drainage `json:"drainage"`
}
