// Package raytracer is the deterministic 2-D geometric ray tracer: given a
// validated geometry and a ray, it produces the ordered sequence of
// (material, path_length) segments the ray crosses on its way to the
// detector. Ray origins are carried in fmom.Vec3 (Z held at zero) and
// directions as a single angle from the beam axis, so the position type is
// ready for a future 3-D extension without a breaking signature change, per
// the vector convention in the pack's muon-transport code.
package raytracer

import (
	"math"

	"github.com/go-hep/fmom"

	"github.com/arnegrid/collimeng/geometry"
	"github.com/arnegrid/collimeng/units"
)

// Segment is one material crossing: a material id and the path length
// through it, in cm. StageIndex and the entry/exit Z bounds (cm, along the
// beam axis) let a caller re-derive the interaction point along the ray for
// a given fractional position within the segment — the scatter tracer's
// step walk needs this; plain transmission accumulation does not.
type Segment struct {
	MaterialID string
	PathLength units.Cm
	StageIndex int
	EntryZCm   units.Cm
	ExitZCm    units.Cm
}

// Ray is a single primary or secondary photon, described in the beam-axis
// plane (X = lateral, Y = depth along the beam axis, Z reserved).
type Ray struct {
	Index     int
	Origin    fmom.Vec3
	AngleRad  units.Radian // angle from the beam axis (Y); 0 = straight ahead
	EnergyKeV units.KeV
}

// TraceResult is the outcome of tracing one ray to the detector plane.
type TraceResult struct {
	Segments           []Segment
	DetectorX          units.Cm
	PassedAllApertures bool // true if the ray never touched shielding material
}

// xAt returns the ray's lateral X position at depth y (cm), given its
// origin and angle from the beam axis.
func xAt(origin fmom.Vec3, angleRad units.Radian, yCm float64) float64 {
	dy := yCm - float64(origin[1])
	return float64(origin[0]) + dy*math.Tan(float64(angleRad))
}

// PositionAt returns ray's lateral X position (cm) at beam-axis depth zCm,
// exported for the scatter tracer's step walk, which needs interaction
// points along a ray, not just its final detector crossing.
func PositionAt(ray Ray, zCm float64) units.Cm {
	return units.Cm(xAt(ray.Origin, ray.AngleRad, zCm))
}

// apertureHalfWidthCm linearly interpolates the aperture's half-width
// between its entry and exit values across the stage depth, per spec.md
// §4.6 ("linear interpolation of aperture silhouette through stage depth").
func apertureHalfWidthCm(ap geometry.Aperture, depthMm, yLocalMm float64) float64 {
	if depthMm <= 0 {
		return units.MmToCm(units.Mm(ap.EntryWidthMm / 2))
	}
	t := yLocalMm / depthMm
	widthMm := ap.EntryWidthMm + t*(ap.ExitWidthMm-ap.EntryWidthMm)
	return float64(units.MmToCm(units.Mm(widthMm / 2)))
}

// Trace traces one ray through the full stage sequence to the detector
// plane. Gaps between stages contribute nothing. A ray that is fully
// within the aperture's linearly-interpolated silhouette at both a stage's
// entry and exit face passes that stage with no attenuation; otherwise it
// is attributed one Segment per Z-layer of that stage, at full layer
// thickness (spec.md §4.6 — the tracer does not model partial lateral
// occlusion within a stage, only whole-stage aperture pass/fail at the two
// faces, which is exact for a linearly tapered aperture and a straight ray).
func Trace(geo geometry.CollimatorGeometry, ray Ray) TraceResult {
	result := TraceResult{PassedAllApertures: true}
	cosAngle := math.Cos(float64(ray.AngleRad))

	for stageIdx, stage := range geo.Stages {
		zEntryCm := float64(units.MmToCm(units.Mm(stage.ZPositionMm)))
		zExitCm := float64(units.MmToCm(units.Mm(stage.ExitZMm())))
		xEntry := xAt(ray.Origin, ray.AngleRad, zEntryCm)
		xExit := xAt(ray.Origin, ray.AngleRad, zExitCm)
		halfOuter := float64(units.MmToCm(units.Mm(stage.OuterWidthMm / 2)))

		if math.Abs(xEntry) > halfOuter && math.Abs(xExit) > halfOuter {
			// Ray misses the stage body entirely; contributes nothing but
			// is not "through the aperture" either — it never touched this
			// stage at all, so it doesn't affect PassedAllApertures.
			continue
		}

		apHalfEntry := apertureHalfWidthCm(stage.Aperture, stage.DepthMm, 0)
		apHalfExit := apertureHalfWidthCm(stage.Aperture, stage.DepthMm, stage.DepthMm)
		if math.Abs(xEntry) < apHalfEntry && math.Abs(xExit) < apHalfExit {
			continue
		}

		result.PassedAllApertures = false
		layerZ := zEntryCm
		for _, layer := range stage.Layers {
			if layer.ThicknessMm <= 0 {
				continue
			}
			thicknessCm := float64(units.MmToCm(units.Mm(layer.ThicknessMm)))
			pathLength := thicknessCm
			if math.Abs(cosAngle) > 1e-12 {
				pathLength = thicknessCm / math.Abs(cosAngle)
			}
			result.Segments = append(result.Segments, Segment{
				MaterialID: layer.MaterialID,
				PathLength: units.Cm(pathLength),
				StageIndex: stageIdx,
				EntryZCm:   units.Cm(layerZ),
				ExitZCm:    units.Cm(layerZ + thicknessCm),
			})
			layerZ += thicknessCm
		}
	}

	detZCm := float64(units.MmToCm(units.Mm(geo.Detector.DetectorZMm)))
	result.DetectorX = units.Cm(xAt(ray.Origin, ray.AngleRad, detZCm))
	return result
}
