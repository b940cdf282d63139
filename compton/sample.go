package compton

import (
	"math"

	"github.com/arnegrid/collimeng/rng"
	"github.com/arnegrid/collimeng/units"
)

// Event is one sampled Compton scattering outcome.
type Event struct {
	ThetaRad  units.Radian // polar scattering angle
	PhiRad    units.Radian // independent uniform azimuth
	EnergyKeV units.KeV    // scattered photon energy E'
	RecoilKeV units.KeV    // electron recoil energy T = E0 - E'
}

// Sample draws one Compton event at incident energy e0KeV using the Kahn
// rejection algorithm (spec.md §4.5), consuming uniform variates from src.
// Energy conservation E'+T=E0 holds to floating-point precision by
// construction, since RecoilKeV is computed as e0KeV-EnergyKeV rather than
// independently.
func Sample(e0KeV units.KeV, src *rng.Source) Event {
	a := alpha(e0KeV)
	branchThreshold := (1 + 2*a) / (9 + 2*a)

	var xi float64
	for {
		r1 := src.Float64()
		r2 := src.Float64()
		r3 := src.Float64()
		if r1 <= branchThreshold {
			candidate := 1 + 2*a*r2
			if r3 <= 4*(1/candidate-1/(candidate*candidate)) {
				xi = candidate
				break
			}
		} else {
			candidate := (1 + 2*a) / (1 + 2*a*r2)
			cosTheta := 1 - (candidate-1)/a
			if r3 <= 0.5*(cosTheta*cosTheta+1/candidate) {
				xi = candidate
				break
			}
		}
	}

	cosTheta := 1 - (xi-1)/a
	if cosTheta > 1 {
		cosTheta = 1
	} else if cosTheta < -1 {
		cosTheta = -1
	}
	theta := math.Acos(cosTheta)
	ePrime := float64(e0KeV) / xi
	phi := 2 * math.Pi * src.Float64()

	return Event{
		ThetaRad:  units.Radian(theta),
		PhiRad:    units.Radian(phi),
		EnergyKeV: units.KeV(ePrime),
		RecoilKeV: e0KeV - units.KeV(ePrime),
	}
}
