// Package scatter is the optional single/double Compton scatter tracer. It
// steps along each primary ray's in-material segments, probabilistically
// generates Compton events via the Kahn sampler, and launches secondary
// rays through the remaining geometry to see whether they reach the
// detector, per spec.md §4.8.
package scatter

import (
	"context"
	"math"

	"github.com/go-hep/fmom"

	"github.com/arnegrid/collimeng/beam"
	"github.com/arnegrid/collimeng/buildup"
	"github.com/arnegrid/collimeng/compton"
	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/geometry"
	"github.com/arnegrid/collimeng/material"
	"github.com/arnegrid/collimeng/physics"
	"github.com/arnegrid/collimeng/raytracer"
	"github.com/arnegrid/collimeng/rng"
	"github.com/arnegrid/collimeng/units"
)

// vecAt builds a fmom.Vec3 ray origin at (xCm, zCm), Z reserved at zero.
func vecAt(xCm, zCm float64) fmom.Vec3 {
	return fmom.Vec3{xCm, zCm, 0}
}

// State is a secondary ray's terminal classification. The tracer records
// every event as EscapedGeometry, DroppedBelowCutoff or ReachedDetector;
// Interacted is defined but never assigned, so an event whose secondary is
// walked again for a second-order scatter keeps the state of its own
// detector crossing (ReachedDetector or EscapedGeometry).
type State int

const (
	Interacted State = iota
	EscapedGeometry
	DroppedBelowCutoff
	ReachedDetector
)

func (s State) String() string {
	switch s {
	case Interacted:
		return "interacted"
	case EscapedGeometry:
		return "escaped_geometry"
	case DroppedBelowCutoff:
		return "dropped_below_cutoff"
	case ReachedDetector:
		return "reached_detector"
	default:
		return "unknown"
	}
}

// Event is one Compton scatter interaction recorded during the tracer walk.
type Event struct {
	XCm                units.Cm    `json:"xCm" bson:"xCm"`
	ZCm                units.Cm    `json:"zCm" bson:"zCm"`
	StageIndex         int         `json:"stageIndex" bson:"stageIndex"`
	Order              int         `json:"order" bson:"order"`
	MaterialID         string      `json:"materialId" bson:"materialId"`
	IncidentEnergyKeV  units.KeV   `json:"incidentEnergyKeV" bson:"incidentEnergyKeV"`
	ScatteredEnergyKeV units.KeV   `json:"scatteredEnergyKeV" bson:"scatteredEnergyKeV"`
	ThetaRad           units.Radian `json:"thetaRad" bson:"thetaRad"`
	State              State       `json:"state" bson:"state"`
	DetectorXCm        units.Cm    `json:"detectorXCm" bson:"detectorXCm"`
	Weight             float64     `json:"weight" bson:"weight"`
}

// Result is the outcome of a full scatter simulation pass.
type Result struct {
	Interactions           []Event   `json:"interactions" bson:"interactions"`
	ProfileMm              []float64 `json:"profileMm" bson:"profileMm"`
	Intensities            []float64 `json:"intensities" bson:"intensities"`
	SPRProfile             []float64 `json:"sprProfile" bson:"sprProfile"`
	SPRPositionsMm         []float64 `json:"sprPositionsMm" bson:"sprPositionsMm"`
	TotalScatterFraction   float64   `json:"totalScatterFraction" bson:"totalScatterFraction"`
	MeanScatteredEnergyKeV float64   `json:"meanScatteredEnergyKeV" bson:"meanScatteredEnergyKeV"`
	NumInteractions        int       `json:"numInteractions" bson:"numInteractions"`
	NumReachingDetector    int       `json:"numReachingDetector" bson:"numReachingDetector"`
	EscapedFraction        float64   `json:"escapedFraction" bson:"escapedFraction"`
}

const sprBinCount = 200

// Trace runs the scatter pass for the same ray fan a beam.Run at
// energyKeV/numRays would generate, using primary for its detector profile
// (needed to normalize SPR) — pass a nil primary to skip SPR computation
// and get only the scatter profile and interaction log.
func Trace(ctx context.Context, geo geometry.CollimatorGeometry, mdb *material.DB, cfg beam.ComptonConfig, energyKeV units.KeV, numRays int, primary *beam.Result, progress func(fraction float64)) (Result, error) {
	if !cfg.Enabled {
		return Result{}, errs.New(errs.InvalidConfig, "scatter tracer invoked with ComptonConfig.Enabled=false")
	}
	if cfg.MaxScatterOrder < 1 {
		return Result{}, errs.New(errs.InvalidConfig, "max scatter order %d must be >= 1", cfg.MaxScatterOrder)
	}
	stepSizeMm := cfg.StepSizeMm
	if stepSizeMm <= 0 {
		stepSizeMm = 1.0
	}
	stepSizeCm := float64(units.MmToCm(units.Mm(stepSizeMm)))

	rays, err := raytracer.GenerateRays(geo, numRays, energyKeV)
	if err != nil {
		return Result{}, err
	}
	root := rng.New(cfg.Seed)

	var (
		interactions  []Event
		scatterXCm    []float64
		scatterWeight []float64
		escaped       int
	)

	total := int64(len(rays))
	reportEvery := total / 100
	if reportEvery < 1 {
		reportEvery = 1
	}

	for i, ray := range rays {
		if ctx.Err() != nil {
			return Result{}, errs.New(errs.Cancelled, "scatter trace cancelled after %d/%d rays", i, total)
		}
		src := root.Stream(uint64(i))
		tr := raytracer.Trace(geo, ray)
		if tr.PassedAllApertures {
			continue
		}
		for _, seg := range tr.Segments {
			events, xs, ws, esc := walkSegment(geo, mdb, cfg, src, ray, seg, stepSizeCm, 1)
			interactions = append(interactions, events...)
			scatterXCm = append(scatterXCm, xs...)
			scatterWeight = append(scatterWeight, ws...)
			escaped += esc
		}
		if int64(i+1)%reportEvery == 0 && progress != nil {
			progress(float64(i+1) / float64(total))
		}
	}

	return buildResult(interactions, scatterXCm, scatterWeight, escaped, len(rays), primary), nil
}

// walkSegment steps through one material segment in stepSizeCm increments,
// probabilistically generating Compton events per spec.md §4.8 steps 1-3,
// and recurses into a second-order scatter (order+1) when the launched
// secondary itself interacts and cfg.MaxScatterOrder allows it.
func walkSegment(geo geometry.CollimatorGeometry, mdb *material.DB, cfg beam.ComptonConfig, src *rng.Source, ray raytracer.Ray, seg raytracer.Segment, stepSizeCm float64, order int) (events []Event, detectorXCm, weights []float64, escapedCount int) {
	muTotal, err := physics.LinearMu(mdb, seg.MaterialID, ray.EnergyKeV)
	if err != nil || muTotal <= 0 {
		return nil, nil, nil, 0
	}
	muCompton, err := comptonLinearMu(mdb, seg.MaterialID, ray.EnergyKeV)
	if err != nil {
		return nil, nil, nil, 0
	}

	pathLenCm := float64(seg.PathLength)
	nSteps := int(pathLenCm / stepSizeCm)
	if nSteps < 1 {
		nSteps = 1
	}
	actualStep := pathLenCm / float64(nSteps)
	pInt := 1 - math.Exp(-float64(muTotal)*actualStep)
	pCompton := 0.0
	if muTotal > 0 {
		pCompton = (float64(muCompton) / float64(muTotal)) * pInt
	}

	cosAngle := math.Cos(float64(ray.AngleRad))
	zSpan := float64(seg.ExitZCm - seg.EntryZCm)

	for step := 0; step < nSteps; step++ {
		if src.Float64() >= pCompton {
			continue
		}
		frac := (float64(step) + 0.5) / float64(nSteps)
		zCm := float64(seg.EntryZCm) + frac*zSpan
		xCm := raytracer.PositionAt(ray, zCm)

		ev := compton.Sample(ray.EnergyKeV, src)
		if ev.EnergyKeV < cfg.MinEnergyCutoffKeV {
			events = append(events, Event{
				XCm: xCm, ZCm: units.Cm(zCm), StageIndex: seg.StageIndex, Order: order,
				MaterialID: seg.MaterialID, IncidentEnergyKeV: ray.EnergyKeV,
				ScatteredEnergyKeV: ev.EnergyKeV, ThetaRad: ev.ThetaRad,
				State: DroppedBelowCutoff,
			})
			continue
		}

		scatterAngle := float64(ray.AngleRad) + float64(ev.ThetaRad)*math.Cos(float64(ev.PhiRad))
		if math.Abs(scatterAngle) > math.Pi/2 {
			events = append(events, Event{
				XCm: xCm, ZCm: units.Cm(zCm), StageIndex: seg.StageIndex, Order: order,
				MaterialID: seg.MaterialID, IncidentEnergyKeV: ray.EnergyKeV,
				ScatteredEnergyKeV: ev.EnergyKeV, ThetaRad: ev.ThetaRad,
				State: EscapedGeometry,
			})
			escapedCount++
			continue
		}

		secondary := raytracer.Ray{
			Index:     ray.Index,
			Origin:    vecAt(xCm, zCm),
			AngleRad:  units.Radian(scatterAngle),
			EnergyKeV: ev.EnergyKeV,
		}
		secTrace := raytracer.Trace(geo, secondary)
		secTransmission, err := physics.Transmission(mdb, nil, layersOf(secTrace.Segments), secondary.EnergyKeV, false, buildup.GP)
		if err != nil {
			secTransmission = 0
		}
		detHalfCm := float64(units.MmToCm(units.Mm(geo.Detector.WidthMm / 2)))
		landsOnDetector := math.Abs(float64(secTrace.DetectorX)) <= detHalfCm

		state := ReachedDetector
		weight := 0.0
		if landsOnDetector {
			weight = secTransmission
		} else {
			state = EscapedGeometry
			escapedCount++
		}

		events = append(events, Event{
			XCm: xCm, ZCm: units.Cm(zCm), StageIndex: seg.StageIndex, Order: order,
			MaterialID: seg.MaterialID, IncidentEnergyKeV: ray.EnergyKeV,
			ScatteredEnergyKeV: ev.EnergyKeV, ThetaRad: ev.ThetaRad,
			State: state, DetectorXCm: secTrace.DetectorX, Weight: weight,
		})
		if landsOnDetector {
			detectorXCm = append(detectorXCm, float64(secTrace.DetectorX))
			weights = append(weights, weight)
		}

		if order < cfg.MaxScatterOrder {
			for _, secSeg := range secTrace.Segments {
				nested, nxs, nws, nesc := walkSegment(geo, mdb, cfg, src, secondary, secSeg, stepSizeCm, order+1)
				events = append(events, nested...)
				detectorXCm = append(detectorXCm, nxs...)
				weights = append(weights, nws...)
				escapedCount += nesc
			}
		}
	}
	return events, detectorXCm, weights, escapedCount
}

func comptonLinearMu(mdb *material.DB, id string, e units.KeV) (units.PerCm, error) {
	fraction, err := mdb.ComptonFraction(id, e)
	if err != nil {
		return 0, err
	}
	mu, err := physics.LinearMu(mdb, id, e)
	if err != nil {
		return 0, err
	}
	return units.PerCm(float64(mu) * fraction), nil
}

func layersOf(segs []raytracer.Segment) []physics.Layer {
	out := make([]physics.Layer, len(segs))
	for i, s := range segs {
		out[i] = physics.Layer{MaterialID: s.MaterialID, Thickness: s.PathLength}
	}
	return out
}
