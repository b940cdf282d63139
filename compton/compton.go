// Package compton implements Compton-scatter kinematics, the Klein-Nishina
// differential and total cross-sections, and the Kahn rejection sampler
// used by the scatter tracer. Energies and angles use the module's strong
// unit aliases, per spec.md §4.1, so a caller cannot pass a raw radian
// where a degree (or vice versa) is expected without a visible conversion.
package compton

import (
	"math"

	"github.com/arnegrid/collimeng/units"
)

// ClassicalElectronRadius is r0 in cm.
const ClassicalElectronRadius = 2.8179403262e-13

// ThomsonCrossSection is (8π/3)·r0², the α→0 limit of the Klein-Nishina
// total cross-section, in cm².
const ThomsonCrossSection = 8 * math.Pi / 3 * ClassicalElectronRadius * ClassicalElectronRadius

// electronRestMassKeV is m_e·c² in keV.
const electronRestMassKeV = 511.0

// alpha is the dimensionless reduced photon energy E0/511 used throughout
// the closed forms below.
func alpha(e0KeV units.KeV) float64 { return float64(e0KeV) / electronRestMassKeV }

// ScatteredEnergy returns E'(E0, θ) = E0 / (1 + α(1 - cos θ)).
func ScatteredEnergy(e0KeV units.KeV, thetaRad units.Radian) units.KeV {
	a := alpha(e0KeV)
	return units.KeV(float64(e0KeV) / (1 + a*(1-math.Cos(float64(thetaRad)))))
}

// RecoilEnergy returns the electron kinetic energy T = E0 - E'.
func RecoilEnergy(e0KeV units.KeV, thetaRad units.Radian) units.KeV {
	return e0KeV - ScatteredEnergy(e0KeV, thetaRad)
}

// ComptonEdge returns the minimum scattered photon energy and maximum
// electron recoil energy, both reached at θ=π (full backscatter).
func ComptonEdge(e0KeV units.KeV) (ePrimeMin, tMax units.KeV) {
	a := alpha(e0KeV)
	ePrimeMin = units.KeV(float64(e0KeV) / (1 + 2*a))
	tMax = units.KeV(float64(e0KeV) * 2 * a / (1 + 2*a))
	return
}

// WavelengthShiftAngstrom returns Δλ = 0.02426·(1 - cos θ), in Angstrom.
func WavelengthShiftAngstrom(thetaRad units.Radian) float64 {
	return 0.02426 * (1 - math.Cos(float64(thetaRad)))
}

// DifferentialKN returns dσ/dΩ [cm²/sr/electron] at scattering angle θ.
func DifferentialKN(e0KeV units.KeV, thetaRad units.Radian) float64 {
	ePrime := ScatteredEnergy(e0KeV, thetaRad)
	ratio := float64(ePrime) / float64(e0KeV)
	sinTheta := math.Sin(float64(thetaRad))
	r0sq := ClassicalElectronRadius * ClassicalElectronRadius
	return (r0sq / 2) * ratio * ratio * (ratio + 1/ratio - sinTheta*sinTheta)
}

// TotalKN returns the total Klein-Nishina cross-section [cm²/electron],
// integrated in closed form over solid angle. Reproduces ThomsonCrossSection
// as α→0 (spec.md §8 requires agreement within 0.1%).
func TotalKN(e0KeV units.KeV) float64 {
	a := alpha(e0KeV)
	if a < 1e-3 {
		// The closed form below is a difference of near-equal large terms
		// as α→0; below this threshold the low-energy series
		// σ_T·(1 − 2α + 26α²/5) is used instead, whose truncation error
		// (of order 13α³) stays below 1e-7 relative.
		return ThomsonCrossSection * (1 - 2*a + 26*a*a/5)
	}
	one2a := 1 + 2*a
	term1 := (1 + a) / (a * a) * (2*(1+a)/one2a - math.Log(one2a)/a)
	term2 := math.Log(one2a) / (2 * a)
	term3 := (1 + 3*a) / (one2a * one2a)
	r0sq := ClassicalElectronRadius * ClassicalElectronRadius
	return 2 * math.Pi * r0sq * (term1 + term2 - term3)
}
