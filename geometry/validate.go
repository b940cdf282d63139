package geometry

import (
	"math"

	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/material"
)

// Validate checks every invariant spec.md §3 requires before a geometry may
// be traced: a non-empty stage list, strictly increasing stage Z positions,
// aperture widths within the outer width, non-negative layer thicknesses
// summing to the stage depth within 1e-6mm, and every referenced material
// id resolvable in mdb.
func (g CollimatorGeometry) Validate(mdb *material.DB) error {
	if len(g.Stages) == 0 {
		return errs.New(errs.InvalidGeometry, "geometry %q has no stages", g.ID)
	}
	prevExitZ := math.Inf(-1)
	for i, s := range g.Stages {
		if s.ZPositionMm <= prevExitZ && i > 0 {
			return errs.New(errs.InvalidGeometry, "stage %d z_position_mm %g does not strictly follow previous stage", i, s.ZPositionMm).WithStage(i)
		}
		if s.DepthMm < 0 {
			return errs.New(errs.InvalidGeometry, "stage %d has negative depth %g mm", i, s.DepthMm).WithStage(i)
		}
		if s.Aperture.EntryWidthMm > s.OuterWidthMm || s.Aperture.ExitWidthMm > s.OuterWidthMm {
			return errs.New(errs.InvalidGeometry, "stage %d aperture width exceeds outer width %g mm", i, s.OuterWidthMm).WithStage(i)
		}
		sumThickness := 0.0
		for li, l := range s.Layers {
			if l.ThicknessMm < 0 {
				return errs.New(errs.InvalidGeometry, "stage %d layer %d has negative thickness", i, li).WithStage(i)
			}
			if _, err := mdb.Material(l.MaterialID); err != nil {
				return errs.New(errs.InvalidGeometry, "stage %d layer %d references unknown material %q", i, li, l.MaterialID).
					WithStage(i).WithMaterial(l.MaterialID)
			}
			sumThickness += l.ThicknessMm
		}
		if math.Abs(sumThickness-s.DepthMm) > 1e-6 {
			return errs.New(errs.InvalidGeometry, "stage %d layer thicknesses sum to %g mm, want depth %g mm", i, sumThickness, s.DepthMm).WithStage(i)
		}
		prevExitZ = s.ExitZMm()
	}
	if g.Detector.DetectorZMm <= prevExitZ {
		return errs.New(errs.InvalidGeometry, "detector z %g mm must exceed last stage exit z %g mm", g.Detector.DetectorZMm, prevExitZ)
	}
	return nil
}
