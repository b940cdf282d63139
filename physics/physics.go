// Package physics is the closed-form attenuation engine: linear attenuation
// coefficients, Beer-Lambert transmission with optional buildup, and the
// derived HVL/TVL/MFP quantities. Every function here is pure and
// side-effect-free so energy_sweep/thickness_sweep can call it in a tight
// loop without surprises.
package physics

import (
	"math"
	"sort"

	"github.com/arnegrid/collimeng/buildup"
	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/material"
	"github.com/arnegrid/collimeng/units"
)

// Layer is one homogeneous slab of material and thickness along the beam
// path, the unit the transmission calculation composes over. StageIndex
// groups layers belonging to the same collimator stage, so a caller wired
// to raytracer.Segment can carry stage boundaries through into per-stage
// buildup composition (spec.md §4.7 step 3); callers with no stage concept
// (energy/thickness sweeps) leave it at the zero value and every layer
// collapses into a single implicit stage.
type Layer struct {
	MaterialID string
	Thickness  units.Cm
	StageIndex int
}

// LinearMu returns the linear attenuation coefficient μ = (μ/ρ)·ρ [cm⁻¹].
func LinearMu(db *material.DB, id string, e units.KeV) (units.PerCm, error) {
	muOverRho, err := db.MuOverRho(id, e)
	if err != nil {
		return 0, err
	}
	m, err := db.Material(id)
	if err != nil {
		return 0, err
	}
	return units.PerCm(muOverRho * m.DensityGCm3), nil
}

// tauOverflow is the optical depth past which transmission is returned as
// exactly 0 (exp(-700) is already about 1e-304, near the bottom of the
// normal double range); spec.md §4.3 requires T=0 here without an
// overflow signal, so the exponential is never evaluated past this point.
const tauOverflow = 700.0

// Transmission computes Beer-Lambert transmission through an ordered list of
// layers at energy e, per spec.md §4.3, composing any buildup factor with
// the sequential (Kalos-like) per-stage product — the default composition
// per spec.md §4.7 step 3. Callers that need explicit control over the
// composition method (the conservative last-material fallback in
// particular) use TransmissionComposed directly.
func Transmission(mdb *material.DB, bdb *buildup.DB, layers []Layer, e units.KeV, includeBuildup bool, method buildup.FactorMethod) (float64, error) {
	return TransmissionComposed(mdb, bdb, layers, e, includeBuildup, method, buildup.Kalos)
}

// TransmissionComposed computes Beer-Lambert transmission exactly as
// Transmission does, but groups layers by Layer.StageIndex and combines
// each stage's own buildup factor — evaluated at that stage's own optical
// depth and its own dominant material — into one composite factor via
// composition (spec.md §4.7 step 3, §4.4 "multi-stage composition"). A
// layer list with a single implicit stage (StageIndex all zero, as every
// other caller in this module produces) reduces to the same result
// regardless of composition, since there is only one stage to compose.
func TransmissionComposed(mdb *material.DB, bdb *buildup.DB, layers []Layer, e units.KeV, includeBuildup bool, method buildup.FactorMethod, composition buildup.CompositionMethod) (float64, error) {
	if len(layers) == 0 {
		return 1, nil
	}

	type stageAccum struct {
		tau         float64
		dominantID  string
		dominantTau float64
	}
	byStage := make(map[int]*stageAccum)
	var stageOrder []int
	totalTau := 0.0

	for _, l := range layers {
		if l.Thickness == 0 {
			continue
		}
		mu, err := LinearMu(mdb, l.MaterialID, e)
		if err != nil {
			return 0, err
		}
		partial := float64(units.ToMfp(mu, l.Thickness))
		totalTau += partial

		acc, ok := byStage[l.StageIndex]
		if !ok {
			acc = &stageAccum{}
			byStage[l.StageIndex] = acc
			stageOrder = append(stageOrder, l.StageIndex)
		}
		acc.tau += partial
		if partial > acc.dominantTau {
			acc.dominantTau = partial
			acc.dominantID = l.MaterialID
		}
	}

	if totalTau > tauOverflow {
		return 0, nil
	}
	t0 := math.Exp(-totalTau)
	if !includeBuildup {
		return t0, nil
	}
	if len(stageOrder) == 0 {
		// Every layer had zero thickness: T=1 (falls out of tau=0 too), no
		// buildup lookup needed.
		return t0, nil
	}
	if bdb == nil {
		return 0, errs.New(errs.InvalidConfig, "include_buildup requested with no buildup database")
	}

	sort.Ints(stageOrder)
	stageFactors := make([]buildup.StageFactor, 0, len(stageOrder))
	for _, idx := range stageOrder {
		acc := byStage[idx]
		res, err := buildup.Factor(bdb, acc.dominantID, e, acc.tau, method)
		if err != nil {
			return 0, err
		}
		stageFactors = append(stageFactors, buildup.StageFactor{Tau: acc.tau, Result: res})
	}

	lastStage := byStage[stageOrder[len(stageOrder)-1]]
	lastAtTotalTau, err := buildup.Factor(bdb, lastStage.dominantID, e, totalTau, method)
	if err != nil {
		return 0, err
	}

	composed := buildup.ComposeStages(stageFactors, composition, lastAtTotalTau.Factor)
	return composed * t0, nil
}

// MaterialContribution is one material's aggregated optical depth and
// physical path length across a set of layers, regardless of which stage
// each occurrence came from — the per-material breakdown spec.md §3/§6
// requires in the energy-analysis table.
type MaterialContribution struct {
	MaterialID string
	Tau        float64
	PathCm     units.Cm
}

// PerMaterialTau groups layers by material id and returns each material's
// total optical depth and total path length at energy e, in first-seen
// order. Zero-thickness layers contribute nothing.
func PerMaterialTau(mdb *material.DB, layers []Layer, e units.KeV) ([]MaterialContribution, error) {
	byMaterial := make(map[string]*MaterialContribution)
	var order []string
	for _, l := range layers {
		if l.Thickness == 0 {
			continue
		}
		mu, err := LinearMu(mdb, l.MaterialID, e)
		if err != nil {
			return nil, err
		}
		partial := float64(units.ToMfp(mu, l.Thickness))
		mc, ok := byMaterial[l.MaterialID]
		if !ok {
			mc = &MaterialContribution{MaterialID: l.MaterialID}
			byMaterial[l.MaterialID] = mc
			order = append(order, l.MaterialID)
		}
		mc.Tau += partial
		mc.PathCm += l.Thickness
	}
	out := make([]MaterialContribution, len(order))
	for i, id := range order {
		out[i] = *byMaterial[id]
	}
	return out, nil
}

// HVL is the half-value layer: ln(2) / linear_mu, in cm.
func HVL(mu units.PerCm) (units.Cm, error) {
	if mu <= 0 {
		return 0, errs.New(errs.NumericalDegeneracy, "linear attenuation coefficient %g is non-positive", float64(mu))
	}
	return units.Cm(math.Ln2 / float64(mu)), nil
}

// TVL is the tenth-value layer: ln(10) / linear_mu, in cm.
func TVL(mu units.PerCm) (units.Cm, error) {
	if mu <= 0 {
		return 0, errs.New(errs.NumericalDegeneracy, "linear attenuation coefficient %g is non-positive", float64(mu))
	}
	return units.Cm(math.Log(10) / float64(mu)), nil
}

// MFP is the mean free path: 1 / linear_mu, in cm.
func MFP(mu units.PerCm) (units.Cm, error) {
	if mu <= 0 {
		return 0, errs.New(errs.NumericalDegeneracy, "linear attenuation coefficient %g is non-positive", float64(mu))
	}
	return units.Cm(1 / float64(mu)), nil
}

// EnergySweep evaluates Transmission at each energy in energies, holding
// layers fixed. Pure and side-effect-free; callers may parallelize over the
// returned index space themselves.
func EnergySweep(mdb *material.DB, bdb *buildup.DB, layers []Layer, energies []units.KeV, includeBuildup bool, method buildup.FactorMethod) ([]float64, error) {
	out := make([]float64, len(energies))
	for i, e := range energies {
		t, err := Transmission(mdb, bdb, layers, e, includeBuildup, method)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// ThicknessSweep evaluates Transmission through a single material of
// varying thickness at a fixed energy.
func ThicknessSweep(mdb *material.DB, bdb *buildup.DB, id string, e units.KeV, thicknesses []units.Cm, includeBuildup bool, method buildup.FactorMethod) ([]float64, error) {
	out := make([]float64, len(thicknesses))
	for i, x := range thicknesses {
		t, err := Transmission(mdb, bdb, []Layer{{MaterialID: id, Thickness: x}}, e, includeBuildup, method)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
