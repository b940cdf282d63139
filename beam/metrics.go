package beam

import (
	"math"

	"github.com/arnegrid/collimeng/geometry"
)

// findEdges returns the leftmost up-crossing and rightmost down-crossing of
// level in a position-sorted intensity profile, linearly interpolating
// between the bracketing samples. Falls back to the profile's own edges
// when no crossing exists.
func findEdges(pos, ints []float64, level float64) (left, right float64) {
	left = pos[0]
	for i := 1; i < len(pos); i++ {
		if ints[i] >= level && ints[i-1] < level {
			denom := ints[i] - ints[i-1]
			if math.Abs(denom) < 1e-30 {
				denom = 1e-30
			}
			frac := (level - ints[i-1]) / denom
			left = pos[i-1] + frac*(pos[i]-pos[i-1])
			break
		}
	}
	right = pos[len(pos)-1]
	for i := len(pos) - 1; i > 0; i-- {
		if ints[i-1] >= level && ints[i] < level {
			denom := ints[i-1] - ints[i]
			if math.Abs(denom) < 1e-30 {
				denom = 1e-30
			}
			frac := (level - ints[i]) / denom
			right = pos[i] + frac*(pos[i-1]-pos[i])
			break
		}
	}
	return left, right
}

// computeQualityMetrics derives penumbra, flatness, leakage and
// collimation-ratio metrics from a position-sorted detector profile, per
// spec.md §4.7. Warnings are appended for degenerate profiles (too few
// bins, or a beam with no measurable peak) rather than returned as errors,
// since a beam simulation can legitimately produce a fully-shielded, all-
// zero profile.
func computeQualityMetrics(bins []DetectorBin, _ geometry.CollimatorType, cfg Config) (QualityMetrics, []string) {
	var warnings []string
	if len(bins) < 3 {
		return QualityMetrics{}, append(warnings, "quality metrics require at least 3 detector bins")
	}

	pos := make([]float64, len(bins))
	ints := make([]float64, len(bins))
	intsNoBuildup := make([]float64, len(bins))
	iMax := 0.0
	for i, b := range bins {
		pos[i] = b.PositionMm
		ints[i] = b.Transmission
		intsNoBuildup[i] = b.TransmissionNoBuildup
		if b.Transmission > iMax {
			iMax = b.Transmission
		}
	}
	if iMax < 1e-12 {
		return QualityMetrics{}, append(warnings, "beam profile has no measurable peak intensity")
	}

	fwhmLeft, fwhmRight := findEdges(pos, ints, iMax/2)
	fwhmMm := fwhmRight - fwhmLeft

	lower := cfg.PenumbraLower
	upper := cfg.PenumbraUpper
	if lower <= 0 {
		lower = 0.2
	}
	if upper <= 0 || upper <= lower {
		upper = 0.8
	}
	levelLo := lower * iMax
	levelHi := upper * iMax

	leftLo, _ := findEdges(pos, ints, levelLo)
	leftHi, _ := findEdges(pos, ints, levelHi)
	_, rightHi := findEdges(pos, ints, levelHi)
	_, rightLo := findEdges(pos, ints, levelLo)

	penumbraLeft := math.Abs(leftHi - leftLo)
	penumbraRight := math.Abs(rightLo - rightHi)
	penumbraMax := math.Max(penumbraLeft, penumbraRight)

	trim := 0.1 * fwhmMm
	usefulLeft := fwhmLeft + trim
	usefulRight := fwhmRight - trim

	flatnessPct := 0.0
	iMinU, iMaxU := math.Inf(1), math.Inf(-1)
	haveUseful := false
	for i, p := range pos {
		if p >= usefulLeft && p <= usefulRight {
			haveUseful = true
			if ints[i] < iMinU {
				iMinU = ints[i]
			}
			if ints[i] > iMaxU {
				iMaxU = ints[i]
			}
		}
	}
	if haveUseful {
		denom := iMaxU + iMinU
		if denom > 0 {
			flatnessPct = 100.0 * (iMaxU - iMinU) / denom
		}
	}

	margin := penumbraMax
	leakageAvgPct, leakageMaxPct, cr, crDB := leakageAndCollimation(pos, ints, fwhmLeft, fwhmRight, margin)
	leakageAvgPctNoBuildup, leakageMaxPctNoBuildup, _, _ := leakageAndCollimation(pos, intsNoBuildup, fwhmLeft, fwhmRight, margin)

	return QualityMetrics{
		PenumbraLeftMm:         penumbraLeft,
		PenumbraRightMm:        penumbraRight,
		PenumbraMaxMm:          penumbraMax,
		FlatnessPct:            flatnessPct,
		LeakageAvgPct:          leakageAvgPct,
		LeakageMaxPct:          leakageMaxPct,
		LeakageAvgPctNoBuildup: leakageAvgPctNoBuildup,
		LeakageMaxPctNoBuildup: leakageMaxPctNoBuildup,
		CollimationRatio:       cr,
		CollimationRatioDB:     crDB,
		FWHMMm:                 fwhmMm,
	}, warnings
}

// leakageAndCollimation buckets a position-sorted intensity profile into
// leakage (beyond fwhmLeft/fwhmRight plus margin) and primary (within
// [fwhmLeft, fwhmRight]) regions, returning average/max leakage as a
// percentage of the mean primary signal and the resulting collimation
// ratio, in both linear and dB form. Shared between the build-up-included
// and build-up-free passes so both report leakage against the same
// geometric FWHM window (spec.md §4.7).
func leakageAndCollimation(pos, ints []float64, fwhmLeft, fwhmRight, margin float64) (leakageAvgPct, leakageMaxPct, cr, crDB float64) {
	leakSum, leakMax, leakN := 0.0, 0.0, 0
	primarySum, primaryN := 0.0, 0
	for i, p := range pos {
		switch {
		case p < fwhmLeft-margin || p > fwhmRight+margin:
			leakSum += ints[i]
			leakN++
			if ints[i] > leakMax {
				leakMax = ints[i]
			}
		case p >= fwhmLeft && p <= fwhmRight:
			primarySum += ints[i]
			primaryN++
		}
	}

	if leakN > 0 && primaryN > 0 {
		leakMean := leakSum / float64(leakN)
		primaryMean := primarySum / float64(primaryN)
		if primaryMean > 1e-12 {
			leakageAvgPct = 100.0 * leakMean / primaryMean
			leakageMaxPct = 100.0 * leakMax / primaryMean
			denom := leakMean
			if denom <= 0 {
				denom = 1e-30
			}
			cr = primaryMean / denom
			if cr > 0 {
				crDB = 10.0 * math.Log10(cr)
			}
		}
	} else {
		cr = 1e6
		crDB = 60.0
	}
	return leakageAvgPct, leakageMaxPct, cr, crDB
}
