package scatter

import (
	"context"
	"testing"

	"github.com/arnegrid/collimeng/beam"
	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/geometry"
	"github.com/arnegrid/collimeng/material"
)

func fixtureDB(t *testing.T) *material.DB {
	t.Helper()
	db, err := material.NewDB([]material.Material{
		{ID: "Pb", DensityGCm3: 11.34, Category: material.PureElement, Points: []material.AttenuationDataPoint{
			{EnergyKeV: 100, TotalMassAttenuation: 5.549, Compton: 0.0390},
			{EnergyKeV: 1000, TotalMassAttenuation: 0.070907, Compton: 0.0505},
		}},
	})
	if err != nil {
		t.Fatalf("fixtureDB: %v", err)
	}
	return db
}

func shieldedGeometry() geometry.CollimatorGeometry {
	return geometry.CollimatorGeometry{
		Type: geometry.Slit,
		Stages: []geometry.Stage{{
			ZPositionMm:  0,
			DepthMm:      30,
			OuterWidthMm: 400,
			Aperture:     geometry.Aperture{Kind: geometry.ApertureSlit, EntryWidthMm: 0, ExitWidthMm: 0},
			Layers:       []geometry.Layer{{MaterialID: "Pb", ThicknessMm: 30}},
		}},
		Detector: geometry.Detector{DetectorZMm: 1000, WidthMm: 2000},
	}
}

func TestTraceRejectsDisabledConfig(t *testing.T) {
	geo := shieldedGeometry()
	mdb := fixtureDB(t)
	cfg := beam.ComptonConfig{Enabled: false}
	if _, err := Trace(context.Background(), geo, mdb, cfg, 1000, 100, nil, nil); !errs.Is(err, errs.InvalidConfig) {
		t.Fatalf("expected InvalidConfig, got %v", err)
	}
}

func TestTraceRejectsInvalidScatterOrder(t *testing.T) {
	geo := shieldedGeometry()
	mdb := fixtureDB(t)
	cfg := beam.ComptonConfig{Enabled: true, MaxScatterOrder: 0}
	if _, err := Trace(context.Background(), geo, mdb, cfg, 1000, 100, nil, nil); !errs.Is(err, errs.InvalidConfig) {
		t.Fatalf("expected InvalidConfig, got %v", err)
	}
}

func TestTraceProducesInteractionsThroughShielding(t *testing.T) {
	geo := shieldedGeometry()
	mdb := fixtureDB(t)
	cfg := beam.ComptonConfig{Enabled: true, StepSizeMm: 2, MinEnergyCutoffKeV: 5, MaxScatterOrder: 1, Seed: 42}
	res, err := Trace(context.Background(), geo, mdb, cfg, 1000, 300, nil, nil)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if res.NumInteractions == 0 {
		t.Fatalf("expected at least one scatter interaction through 30mm of Pb")
	}
	for _, ev := range res.Interactions {
		if ev.ScatteredEnergyKeV <= 0 || ev.ScatteredEnergyKeV > ev.IncidentEnergyKeV {
			t.Fatalf("scattered energy %v out of bounds for incident %v", ev.ScatteredEnergyKeV, ev.IncidentEnergyKeV)
		}
	}
}

func TestTraceDeterministicGivenSameSeed(t *testing.T) {
	geo := shieldedGeometry()
	mdb := fixtureDB(t)
	cfg := beam.ComptonConfig{Enabled: true, StepSizeMm: 2, MinEnergyCutoffKeV: 5, MaxScatterOrder: 1, Seed: 7}
	r1, err := Trace(context.Background(), geo, mdb, cfg, 1000, 300, nil, nil)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	r2, err := Trace(context.Background(), geo, mdb, cfg, 1000, 300, nil, nil)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if r1.NumInteractions != r2.NumInteractions {
		t.Fatalf("interaction count differs between identical runs: %d vs %d", r1.NumInteractions, r2.NumInteractions)
	}
	for i := range r1.Interactions {
		if r1.Interactions[i] != r2.Interactions[i] {
			t.Fatalf("interaction %d differs between identical runs", i)
		}
	}
}

func TestTraceDifferentSeedsDivergeEventually(t *testing.T) {
	geo := shieldedGeometry()
	mdb := fixtureDB(t)
	cfg1 := beam.ComptonConfig{Enabled: true, StepSizeMm: 2, MinEnergyCutoffKeV: 5, MaxScatterOrder: 1, Seed: 1}
	cfg2 := beam.ComptonConfig{Enabled: true, StepSizeMm: 2, MinEnergyCutoffKeV: 5, MaxScatterOrder: 1, Seed: 2}
	r1, err := Trace(context.Background(), geo, mdb, cfg1, 1000, 500, nil, nil)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	r2, err := Trace(context.Background(), geo, mdb, cfg2, 1000, 500, nil, nil)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if r1.NumInteractions == r2.NumInteractions {
		t.Skip("interaction counts happened to coincide; not a hard requirement")
	}
}

func TestTraceRespectsCancellation(t *testing.T) {
	geo := shieldedGeometry()
	mdb := fixtureDB(t)
	cfg := beam.ComptonConfig{Enabled: true, StepSizeMm: 2, MinEnergyCutoffKeV: 5, MaxScatterOrder: 1, Seed: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Trace(ctx, geo, mdb, cfg, 1000, 500, nil, nil); !errs.Is(err, errs.Cancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}
}

func TestTraceWithPrimaryPopulatesSPR(t *testing.T) {
	geo := shieldedGeometry()
	mdb := fixtureDB(t)
	scatterCfg := beam.ComptonConfig{Enabled: true, StepSizeMm: 2, MinEnergyCutoffKeV: 5, MaxScatterOrder: 1, Seed: 3}
	primaryCfg := beam.Config{NumRays: 300, EnergyKeV: 1000}
	primary, err := beam.Run(context.Background(), geo, mdb, nil, primaryCfg, nil)
	if err != nil {
		t.Fatalf("beam.Run: %v", err)
	}
	res, err := Trace(context.Background(), geo, mdb, scatterCfg, 1000, 300, &primary, nil)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if res.NumReachingDetector > 0 && len(res.SPRProfile) == 0 {
		t.Fatalf("expected an SPR profile once scatter reaches the detector")
	}
	for _, v := range res.SPRProfile {
		if v < 0 {
			t.Fatalf("SPR must be non-negative, got %v", v)
		}
	}
}
