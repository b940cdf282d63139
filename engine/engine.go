// Package engine is the top-level facade: load the material and build-up
// databases once, then run any number of beam/scatter simulations against
// them. It owns no per-simulation state, so one Engine is safe to share
// across concurrent RunSimulation calls.
package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/arnegrid/collimeng/beam"
	"github.com/arnegrid/collimeng/buildup"
	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/geometry"
	"github.com/arnegrid/collimeng/material"
	"github.com/arnegrid/collimeng/scatter"
	"github.com/arnegrid/collimeng/units"
)

// Engine holds the immutable, read-only databases every simulation reads
// from. Materials and build-up tables load once at construction and are
// never mutated afterward, per spec.md §3's lifecycle rule.
type Engine struct {
	Materials *material.DB
	Buildup   *buildup.DB
}

// Load builds an Engine from a material directory and an optional
// build-up table file (pass "" to skip build-up support entirely — a
// simulation that later requests IncludeBuildup will surface
// errs.InvalidConfig rather than panic).
func Load(materialsDir, buildupFile string) (*Engine, error) {
	mdb, err := material.LoadDir(materialsDir)
	if err != nil {
		return nil, err
	}
	log.WithField("materials", len(mdb.Materials())).Info("material database loaded")

	var bdb *buildup.DB
	if buildupFile != "" {
		bdb, err = buildup.LoadFile(buildupFile)
		if err != nil {
			return nil, err
		}
		log.Info("build-up factor table loaded")
	}

	return &Engine{Materials: mdb, Buildup: bdb}, nil
}

// RunSimulation validates geo against the loaded material database, then
// runs a beam simulation. Cancellation and progress reporting are the
// caller's ctx/progress, forwarded unchanged into beam.Run.
func (e *Engine) RunSimulation(ctx context.Context, geo geometry.CollimatorGeometry, cfg beam.Config, progress func(fraction float64)) (beam.Result, error) {
	if err := geo.Validate(e.Materials); err != nil {
		return beam.Result{}, err
	}
	log.WithFields(logrus.Fields{
		"geometry":   geo.ID,
		"num_rays":   cfg.NumRays,
		"energy_keV": float64(cfg.EnergyKeV),
	}).Info("beam simulation starting")

	result, err := beam.Run(ctx, geo, e.Materials, e.Buildup, cfg, progress)
	if err != nil {
		if errs.Is(err, errs.Cancelled) {
			log.Warn("beam simulation cancelled")
		} else {
			log.WithError(err).Error("beam simulation failed")
		}
		return beam.Result{}, err
	}
	log.WithField("sequence", result.Sequence).Info("beam simulation finished")
	return result, nil
}

// RunScatter runs the optional scatter tracer over the same geometry and
// energy as a prior beam simulation. primary supplies the detector
// profile used to normalize the SPR profile; pass nil to skip SPR.
func (e *Engine) RunScatter(ctx context.Context, geo geometry.CollimatorGeometry, cfg beam.ComptonConfig, energyKeV float64, numRays int, primary *beam.Result, progress func(fraction float64)) (scatter.Result, error) {
	if err := geo.Validate(e.Materials); err != nil {
		return scatter.Result{}, err
	}
	log.Info("scatter trace starting")
	result, err := scatter.Trace(ctx, geo, e.Materials, cfg, units.KeV(energyKeV), numRays, primary, progress)
	if err != nil {
		if errs.Is(err, errs.Cancelled) {
			log.Warn("scatter trace cancelled")
		} else {
			log.WithError(err).Error("scatter trace failed")
		}
		return scatter.Result{}, err
	}
	log.WithField("interactions", result.NumInteractions).Info("scatter trace finished")
	return result, nil
}
