package raytracer

import (
	"math"

	"github.com/go-hep/fmom"

	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/geometry"
	"github.com/arnegrid/collimeng/units"
)

// apertureMarginFactor widens the pencil/slit angular range beyond the
// aperture's own subtended angle so a few rays sample the penumbra and
// near-field leakage region rather than only the open beam.
const apertureMarginFactor = 1.5

// maxRayAngleRad caps the generated fan at just under the beam-axis-relative
// range spec.md §4.6 allows (θ ∈ [−π/2, π/2]); a wide aperture close to the
// source can otherwise push apertureAngle*apertureMarginFactor past π/2,
// where tan(θ) changes sign and the geometry stops making physical sense.
const maxRayAngleRad = 1.55334 // 89 degrees

// GenerateRays produces n rays with a deterministic, evenly-spaced angle
// grid at the given energy, per spec.md §4.6: fan beams span the full
// outer-geometry field of view; pencil/slit beams span just the aperture
// plus a margin. Ray count and geometry alone determine every angle, so two
// calls with identical inputs always produce identical rays.
func GenerateRays(geo geometry.CollimatorGeometry, n int, energyKeV units.KeV) ([]Ray, error) {
	if n <= 0 {
		return nil, errs.New(errs.InvalidConfig, "ray count %d must be positive", n)
	}
	if len(geo.Stages) == 0 {
		return nil, errs.New(errs.InvalidGeometry, "geometry %q has no stages", geo.ID)
	}

	var maxAngle float64
	switch geo.Type {
	case geometry.FanBeam:
		maxAngle = fullFieldAngle(geo)
	default: // PencilBeam, Slit
		maxAngle = apertureAngle(geo) * apertureMarginFactor
	}
	maxAngle = units.Clamp(maxAngle, 0, maxRayAngleRad)

	origin := fmom.Vec3{float64(units.MmToCm(units.Mm(geo.Source.PositionMm.X))), 0, 0}
	rays := make([]Ray, n)
	for i := 0; i < n; i++ {
		var angle float64
		if n == 1 {
			angle = 0
		} else {
			t := float64(i) / float64(n-1)
			angle = -maxAngle + t*2*maxAngle
		}
		rays[i] = Ray{
			Index:     i,
			Origin:    origin,
			AngleRad:  units.Radian(angle),
			EnergyKeV: energyKeV,
		}
	}
	return rays, nil
}

// fullFieldAngle returns the half-angle (rad) that reaches the far edge of
// the widest stage at the last stage's exit depth, so no ray misses every
// stage body outright.
func fullFieldAngle(geo geometry.CollimatorGeometry) float64 {
	last := geo.LastStage()
	maxHalfWidthMm := 0.0
	for _, s := range geo.Stages {
		if s.OuterWidthMm/2 > maxHalfWidthMm {
			maxHalfWidthMm = s.OuterWidthMm / 2
		}
	}
	dyMm := last.ExitZMm() - geo.Source.PositionMm.Y
	if dyMm < 1e-9 {
		dyMm = 1e-9
	}
	return math.Atan2(maxHalfWidthMm-math.Abs(geo.Source.PositionMm.X), dyMm)
}

// apertureAngle returns the half-angle (rad) subtended by the narrowest
// aperture opening across all stages, as seen from the source.
func apertureAngle(geo geometry.CollimatorGeometry) float64 {
	minAngle := math.Inf(1)
	for _, s := range geo.Stages {
		halfWidthMm := math.Min(s.Aperture.EntryWidthMm, s.Aperture.ExitWidthMm) / 2
		dyMm := s.ExitZMm() - geo.Source.PositionMm.Y
		if dyMm < 1e-9 {
			dyMm = 1e-9
		}
		a := math.Atan2(halfWidthMm, dyMm)
		if a < minAngle {
			minAngle = a
		}
	}
	if math.IsInf(minAngle, 1) {
		return 0
	}
	return minAngle
}
