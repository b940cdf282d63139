// Package beam orchestrates the full primary-beam simulation: it fans a
// deterministic ray set out over the geometry, reduces per-ray Beer-Lambert
// transmission into a detector histogram, and derives the beam quality
// metrics (penumbra, flatness, leakage, collimation ratio).
package beam

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facette/natsort"
	"github.com/google/uuid"

	"github.com/arnegrid/collimeng/buildup"
	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/geometry"
	"github.com/arnegrid/collimeng/material"
	"github.com/arnegrid/collimeng/physics"
	"github.com/arnegrid/collimeng/raytracer"
	"github.com/arnegrid/collimeng/units"
)

// ComptonConfig gates the optional scatter tracer that runs alongside a
// beam simulation. Run reads it only to validate MaxScatterOrder and to
// pick the default buildup composition method (resolveCompositionMethod);
// scatter.Trace consumes the same value to actually run the scatter pass.
type ComptonConfig struct {
	Enabled           bool
	StepSizeMm        float64
	MinEnergyCutoffKeV units.KeV
	MaxScatterOrder   int
	Seed              uint64
}

// Config controls a single beam simulation run.
type Config struct {
	NumRays           int
	EnergyKeV         units.KeV
	IncludeBuildup    bool
	BuildupMethod     buildup.FactorMethod
	CompositionMethod buildup.CompositionMethod
	PenumbraLower     float64 // default 0.2
	PenumbraUpper     float64 // default 0.8
	Workers           int     // 0 = runtime.NumCPU()
	Compton           ComptonConfig
}

// DetectorBin is one accumulated sample of the detector intensity profile,
// sorted by PositionMm ascending.
type DetectorBin struct {
	PositionMm            float64 `json:"positionMm" bson:"positionMm"`
	Transmission          float64 `json:"transmission" bson:"transmission"` // primary transmission, clamped to 0..1; no scatter added
	TransmissionNoBuildup float64 `json:"transmissionNoBuildup" bson:"transmissionNoBuildup"`
	BuildupFactor         float64 `json:"buildupFactor" bson:"buildupFactor"`
	PrimaryComponent      float64 `json:"primaryComponent" bson:"primaryComponent"`
	ScatterComponent      float64 `json:"scatterComponent" bson:"scatterComponent"`
	PassedAperture        bool    `json:"passedAperture" bson:"passedAperture"`
}

// EnergyContribution aggregates the τ contributed by one material across
// every ray that traversed it, at the simulation's single energy.
type EnergyContribution struct {
	MaterialID   string   `json:"materialId" bson:"materialId"`
	TotalTau     float64  `json:"totalTau" bson:"totalTau"`
	TotalPathCm  units.Cm `json:"totalPathCm" bson:"totalPathCm"`
	RaysAffected int      `json:"raysAffected" bson:"raysAffected"`
}

// QualityMetrics summarizes the detector profile per spec.md §4.7.
type QualityMetrics struct {
	PenumbraLeftMm         float64 `json:"penumbraLeftMm" bson:"penumbraLeftMm"`
	PenumbraRightMm        float64 `json:"penumbraRightMm" bson:"penumbraRightMm"`
	PenumbraMaxMm          float64 `json:"penumbraMaxMm" bson:"penumbraMaxMm"`
	FlatnessPct            float64 `json:"flatnessPct" bson:"flatnessPct"`
	LeakageAvgPct          float64 `json:"leakageAvgPct" bson:"leakageAvgPct"`
	LeakageMaxPct          float64 `json:"leakageMaxPct" bson:"leakageMaxPct"`
	LeakageAvgPctNoBuildup float64 `json:"leakageAvgPctNoBuildup" bson:"leakageAvgPctNoBuildup"`
	LeakageMaxPctNoBuildup float64 `json:"leakageMaxPctNoBuildup" bson:"leakageMaxPctNoBuildup"`
	CollimationRatio       float64 `json:"collimationRatio" bson:"collimationRatio"`
	CollimationRatioDB     float64 `json:"collimationRatioDb" bson:"collimationRatioDb"`
	FWHMMm                 float64 `json:"fwhmMm" bson:"fwhmMm"`
}

// Result is the immutable outcome of one beam simulation.
type Result struct {
	ID             uuid.UUID            `json:"id" bson:"id"`
	Sequence       uint64               `json:"sequence" bson:"sequence"`
	TimestampUTC   time.Time            `json:"timestampUtc" bson:"timestampUtc"`
	EnergyKeV      units.KeV            `json:"energyKeV" bson:"energyKeV"`
	NumRays        int                  `json:"numRays" bson:"numRays"`
	Bins           []DetectorBin        `json:"bins" bson:"bins"`
	EnergyTable    []EnergyContribution `json:"energyTable" bson:"energyTable"`
	Quality        QualityMetrics       `json:"quality" bson:"quality"`
	Warnings       []string             `json:"warnings" bson:"warnings"`
	ElapsedSeconds float64              `json:"elapsedSeconds" bson:"elapsedSeconds"`
}

var sequenceCounter uint64

// nextSequence returns a monotonically increasing id, unique per process,
// used to order results within a run without depending on wall-clock time.
func nextSequence() uint64 {
	return atomic.AddUint64(&sequenceCounter, 1)
}

// ValidateConfig rejects a Config before any rays are traced.
func ValidateConfig(cfg Config) error {
	if cfg.NumRays < 100 || cfg.NumRays > 10000 {
		return errs.New(errs.InvalidConfig, "ray count %d out of range [100, 10000]", cfg.NumRays)
	}
	if !units.IsFiniteNonNegative(float64(cfg.EnergyKeV)) || cfg.EnergyKeV <= 0 {
		return errs.New(errs.InvalidConfig, "energy %.3f keV must be positive", float64(cfg.EnergyKeV))
	}
	if cfg.Compton.Enabled && cfg.Compton.MaxScatterOrder < 1 {
		return errs.New(errs.InvalidConfig, "max scatter order %d must be >= 1 when compton is enabled", cfg.Compton.MaxScatterOrder)
	}
	return nil
}

type rayOutcome struct {
	positionCm            float64
	transmission          float64
	noBuildupTransmission float64
	buildupFactor         float64
	passedAperture        bool
	materials             []physics.MaterialContribution
}

// resolveCompositionMethod picks the multi-stage buildup composition rule
// for a run: an explicit cfg.CompositionMethod always wins; absent that,
// spec.md §4.4 makes the conservative last-material fallback the default
// only when scatter tracking is limited to first order (max_scatter_order
// == 1) — every other case, including scatter disabled entirely, defaults
// to the sequential Kalos-like product spec.md §9 says "should always be
// selected unless the host requests otherwise."
func resolveCompositionMethod(cfg Config) buildup.CompositionMethod {
	if cfg.CompositionMethod != "" {
		return cfg.CompositionMethod
	}
	if cfg.Compton.Enabled && cfg.Compton.MaxScatterOrder == 1 {
		return buildup.LastMaterial
	}
	return buildup.Kalos
}

// Run traces cfg.NumRays rays through geo, reduces them into a detector
// histogram, and computes quality metrics. The worker pool partitions rays
// into contiguous, disjoint index ranges written directly into
// pre-allocated per-ray slots, so the primary channel is bit-reproducible
// regardless of how the runtime schedules goroutines — unlike a
// channel-fan-in reduction, there is no result ordering left to chance.
func Run(ctx context.Context, geo geometry.CollimatorGeometry, mdb *material.DB, bdb *buildup.DB, cfg Config, progress func(fraction float64)) (Result, error) {
	if err := ValidateConfig(cfg); err != nil {
		return Result{}, err
	}
	if cfg.IncludeBuildup && bdb == nil {
		return Result{}, errs.New(errs.InvalidConfig, "buildup requested but no buildup database supplied")
	}

	rays, err := raytracer.GenerateRays(geo, cfg.NumRays, cfg.EnergyKeV)
	if err != nil {
		return Result{}, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(rays) {
		workers = len(rays)
	}

	outcomes := make([]rayOutcome, len(rays))
	cancelled := int32(0)
	processed := int64(0)
	total := int64(len(rays))
	reportEvery := total / 100
	if reportEvery < 1 {
		reportEvery = 1
	}

	var wg sync.WaitGroup
	chunk := (len(rays) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= len(rays) {
			break
		}
		if end > len(rays) {
			end = len(rays)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if atomic.LoadInt32(&cancelled) != 0 {
					return
				}
				outcomes[i] = traceOne(geo, mdb, bdb, cfg, rays[i])
				n := atomic.AddInt64(&processed, 1)
				if n%reportEvery == 0 {
					if ctx.Err() != nil {
						atomic.StoreInt32(&cancelled, 1)
						return
					}
					if progress != nil {
						progress(float64(n) / float64(total))
					}
				}
			}
		}(start, end)
	}
	wg.Wait()

	if ctx.Err() != nil || atomic.LoadInt32(&cancelled) != 0 {
		return Result{}, errs.New(errs.Cancelled, "beam simulation cancelled after %d/%d rays", atomic.LoadInt64(&processed), total)
	}

	bins := make([]DetectorBin, len(outcomes))
	energyTable := aggregateEnergyTable(outcomes)
	for i, o := range outcomes {
		bins[i] = DetectorBin{
			PositionMm:            float64(units.CmToMm(units.Cm(o.positionCm))),
			Transmission:          units.Clamp(o.transmission, 0.0, 1.0),
			TransmissionNoBuildup: units.Clamp(o.noBuildupTransmission, 0.0, 1.0),
			BuildupFactor:         o.buildupFactor,
			PrimaryComponent:      units.Clamp(o.transmission, 0.0, 1.0),
			PassedAperture:        o.passedAperture,
		}
	}
	sort.SliceStable(bins, func(i, j int) bool { return bins[i].PositionMm < bins[j].PositionMm })

	quality, warnings := computeQualityMetrics(bins, geo.Type, cfg)

	return Result{
		ID:           uuid.New(),
		Sequence:     nextSequence(),
		TimestampUTC: time.Now().UTC(),
		EnergyKeV:    cfg.EnergyKeV,
		NumRays:      len(rays),
		Bins:         bins,
		EnergyTable:  energyTable,
		Quality:      quality,
		Warnings:     warnings,
	}, nil
}

// traceOne computes one ray's transmission and detector position. It never
// touches shared state: every field it reads is either immutable
// (geo, mdb, bdb, cfg) or local to the call (ray).
func traceOne(geo geometry.CollimatorGeometry, mdb *material.DB, bdb *buildup.DB, cfg Config, ray raytracer.Ray) rayOutcome {
	tr := raytracer.Trace(geo, ray)

	if len(tr.Segments) == 0 {
		return rayOutcome{
			positionCm:            float64(tr.DetectorX),
			transmission:          1.0,
			noBuildupTransmission: 1.0,
			buildupFactor:         1.0,
			passedAperture:        tr.PassedAllApertures,
		}
	}

	layers := make([]physics.Layer, len(tr.Segments))
	for i, seg := range tr.Segments {
		layers[i] = physics.Layer{MaterialID: seg.MaterialID, Thickness: seg.PathLength, StageIndex: seg.StageIndex}
	}

	composition := resolveCompositionMethod(cfg)
	t, err := physics.TransmissionComposed(mdb, bdb, layers, ray.EnergyKeV, cfg.IncludeBuildup, cfg.BuildupMethod, composition)
	if err != nil {
		return rayOutcome{positionCm: float64(tr.DetectorX), transmission: 0, buildupFactor: 1.0}
	}

	// t0 is the same ray's transmission with buildup excluded, needed both
	// to derive the buildup factor and to report leakage with and without
	// buildup side by side (spec.md §4.7).
	t0, err := physics.Transmission(mdb, bdb, layers, ray.EnergyKeV, false, cfg.BuildupMethod)
	if err != nil {
		t0 = t
	}

	buildupFactor := 1.0
	if cfg.IncludeBuildup && t0 > 0 {
		buildupFactor = t / t0
	}

	materials, err := physics.PerMaterialTau(mdb, layers, ray.EnergyKeV)
	if err != nil {
		materials = nil
	}

	return rayOutcome{
		positionCm:            float64(tr.DetectorX),
		transmission:          t,
		noBuildupTransmission: t0,
		buildupFactor:         buildupFactor,
		passedAperture:        tr.PassedAllApertures,
		materials:             materials,
	}
}

// aggregateEnergyTable sums each material's optical depth and path length
// across every ray that traversed it, per spec.md §3/§6's "per-energy
// totals + per-layer contributions" requirement. A ray contributes to a
// material's RaysAffected count at most once even if it crossed that
// material in more than one stage. Rows are natural-sorted by material id,
// matching material.DB.Materials()'s ordering convention.
func aggregateEnergyTable(outcomes []rayOutcome) []EnergyContribution {
	totals := make(map[string]*EnergyContribution)
	var order []string
	for _, o := range outcomes {
		for _, mc := range o.materials {
			row, ok := totals[mc.MaterialID]
			if !ok {
				row = &EnergyContribution{MaterialID: mc.MaterialID}
				totals[mc.MaterialID] = row
				order = append(order, mc.MaterialID)
			}
			row.TotalTau += mc.Tau
			row.TotalPathCm += mc.PathCm
			row.RaysAffected++
		}
	}
	if len(order) == 0 {
		return nil
	}
	sort.Slice(order, func(i, j int) bool { return natsort.Compare(order[i], order[j]) })
	out := make([]EnergyContribution, len(order))
	for i, id := range order {
		out[i] = *totals[id]
	}
	return out
}
