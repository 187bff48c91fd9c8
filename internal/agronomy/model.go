package agronomy

import "fmt"

// Model evaluates the agronomic formulas against a fixed parameter set.
// The parameters are copied at construction and never change afterwards, so a
// Model is safe for concurrent use.
type Model struct {
	params Params
}

// NewModel validates p and returns a Model holding a private copy of it.
func NewModel(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agronomy params: %w", err)
	}
	return &Model{params: p.clone()}, nil
}

// MustDefaultModel returns a Model over DefaultParams. It panics only if the
// built-in tables are broken.
func MustDefaultModel() *Model {
	m, err := NewModel(DefaultParams())
	if err != nil {
		panic(err)
	}
	return m
}

// Params returns a copy of the model's parameters.
func (m *Model) Params() Params {
	return m.params.clone()
}

func (m *Model) crop(c Crop) CropParams {
	if p, ok := m.params.Crops[c]; ok {
		return p
	}
	return m.params.Crops[CropDefault]
}

// Soil returns the moisture bounds for a soil type, the default entry for unknown types.
func (m *Model) Soil(s SoilType) SoilParams {
	if p, ok := m.params.Soils[s]; ok {
		return p
	}
	return m.params.Soils[SoilDefault]
}
