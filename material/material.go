// Package material is the read-mostly attenuation database: pure elements
// and alloys, their energy-indexed mass attenuation coefficients, log-log
// interpolation, and the alloy mixture rule. Loaded once at engine
// initialization and immutable thereafter (spec.md §9, "Global state").
package material

import "github.com/arnegrid/collimeng/color"

// Category distinguishes a pure element from a weighted alloy composition.
type Category string

const (
	PureElement Category = "pure_element"
	Alloy       Category = "alloy"
)

// Component is one (element, weight fraction) pair of an alloy composition.
type Component struct {
	Element        string  `toml:"element" json:"element"`
	WeightFraction float64 `toml:"weight_fraction" json:"weight_fraction"`
}

// AttenuationDataPoint is one row of a material's energy-indexed attenuation
// table. All coefficients are mass coefficients in cm^2/g.
type AttenuationDataPoint struct {
	EnergyKeV             float64 `toml:"energy_kev" json:"energy_kev"`
	TotalMassAttenuation  float64 `toml:"total_mass_attenuation" json:"total_mass_attenuation"`
	MassEnergyAbsorption  float64 `toml:"mass_energy_absorption" json:"mass_energy_absorption"`
	Photoelectric         float64 `toml:"photoelectric" json:"photoelectric"`
	Compton               float64 `toml:"compton" json:"compton"`
	Pair                  float64 `toml:"pair" json:"pair"`
}

// Material is a pure element or an alloy, with identity, physical
// properties, and its energy-indexed attenuation table.
type Material struct {
	ID            string                 `toml:"id" json:"id"`
	Name          string                 `toml:"name" json:"name"`
	Symbol        string                 `toml:"symbol" json:"symbol"`
	EffectiveZ    float64                `toml:"z_effective" json:"z_effective"`
	DensityGCm3   float64                `toml:"density_g_cm3" json:"density_g_cm3"`
	Color         color.Color            `toml:"color" json:"color"`
	Category      Category               `toml:"category" json:"category"`
	Composition   []Component            `toml:"composition" json:"composition,omitempty"`
	EdgeEnergyKeV []float64              `toml:"edges_kev" json:"edges_kev,omitempty"`
	Points        []AttenuationDataPoint `toml:"point" json:"points"`
}
