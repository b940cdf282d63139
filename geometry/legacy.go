package geometry

// LegacyBody is the pre-multi-stage collimator description: a single body
// with one aperture and one layer stack, no gaps, no stage ordering. Kept
// for hosts that still load older single-body designs.
type LegacyBody struct {
	OuterWidthMm float64
	DepthMm      float64
	Aperture     Aperture
	Layers       []Layer
}

// MigrateLegacySingleBody wraps a LegacyBody into a one-stage
// CollimatorGeometry, placing the single stage's front face at Z=0 and the
// detector immediately at detectorZMm beyond it. Mirrors the reference
// tool's deprecated body/CollimatorBody alias, which is just the first (and
// only) stage of a single-stage design.
func MigrateLegacySingleBody(body LegacyBody, ctype CollimatorType, source Source, detectorZMm, detectorWidthMm float64) CollimatorGeometry {
	return CollimatorGeometry{
		Type:   ctype,
		Source: source,
		Stages: []Stage{{
			Name:         "body",
			ZPositionMm:  0,
			DepthMm:      body.DepthMm,
			OuterWidthMm: body.OuterWidthMm,
			Aperture:     body.Aperture,
			Layers:       body.Layers,
		}},
		Detector: Detector{DetectorZMm: detectorZMm, WidthMm: detectorWidthMm},
	}
}
