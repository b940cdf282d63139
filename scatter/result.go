package scatter

import (
	"sort"

	"github.com/arnegrid/collimeng/beam"
)

// buildResult aggregates the interaction log into a detector scatter
// profile and, when primary is supplied, an SPR profile binned against the
// primary's own detector positions. Grounded on
// original_source/app/core/scatter_tracer.py's _build_result, minus its
// Gaussian smoothing pass (no ecosystem-idiomatic equivalent in the pack;
// see DESIGN.md).
func buildResult(interactions []Event, scatterXCm, weights []float64, escaped, numRays int, primary *beam.Result) Result {
	res := Result{
		Interactions:    interactions,
		NumInteractions: len(interactions),
	}
	if numRays > 0 {
		res.EscapedFraction = float64(escaped) / float64(numRays)
	}
	if len(scatterXCm) == 0 {
		return res
	}

	profileMm := make([]float64, len(scatterXCm))
	for i, x := range scatterXCm {
		profileMm[i] = x * 10.0
	}
	res.ProfileMm = profileMm
	res.Intensities = weights
	res.NumReachingDetector = len(scatterXCm)

	var energySum float64
	var energyN int
	for _, ev := range interactions {
		if ev.State == ReachedDetector {
			energySum += float64(ev.ScatteredEnergyKeV)
			energyN++
		}
	}
	if energyN > 0 {
		res.MeanScatteredEnergyKeV = energySum / float64(energyN)
	}

	if primary == nil || len(primary.Bins) < 2 {
		return res
	}

	posMin, posMax := primary.Bins[0].PositionMm, primary.Bins[0].PositionMm
	for _, b := range primary.Bins {
		if b.PositionMm < posMin {
			posMin = b.PositionMm
		}
		if b.PositionMm > posMax {
			posMax = b.PositionMm
		}
	}
	if posMax <= posMin {
		return res
	}

	binEdges := make([]float64, sprBinCount+1)
	binCenters := make([]float64, sprBinCount)
	width := (posMax - posMin) / float64(sprBinCount)
	for i := 0; i <= sprBinCount; i++ {
		binEdges[i] = posMin + float64(i)*width
	}
	for i := 0; i < sprBinCount; i++ {
		binCenters[i] = 0.5 * (binEdges[i] + binEdges[i+1])
	}

	scatterPerRay := make([]float64, sprBinCount)
	for i, x := range profileMm {
		bin := binIndex(binEdges, x)
		if bin >= 0 {
			scatterPerRay[bin] += weights[i] / float64(numRays)
		}
	}

	primaryAtCenter := make([]float64, sprBinCount)
	for i, c := range binCenters {
		primaryAtCenter[i] = interpolatePrimary(primary.Bins, c)
	}

	spr := make([]float64, sprBinCount)
	var totalScatter, totalPrimary float64
	for i := 0; i < sprBinCount; i++ {
		totalScatter += scatterPerRay[i]
		totalPrimary += primaryAtCenter[i]
		if primaryAtCenter[i] > 1e-12 {
			spr[i] = scatterPerRay[i] / primaryAtCenter[i]
		}
	}
	res.SPRProfile = spr
	res.SPRPositionsMm = binCenters
	if total := totalScatter + totalPrimary; total > 0 {
		res.TotalScatterFraction = totalScatter / total
	}
	return res
}

func binIndex(edges []float64, x float64) int {
	i := sort.SearchFloat64s(edges, x) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(edges)-1 {
		i = len(edges) - 2
	}
	return i
}

// interpolatePrimary linearly interpolates the primary intensity profile
// (assumed sorted by position) at x, clamping outside the profile's range.
func interpolatePrimary(bins []beam.DetectorBin, x float64) float64 {
	if x <= bins[0].PositionMm {
		return bins[0].Transmission
	}
	last := len(bins) - 1
	if x >= bins[last].PositionMm {
		return bins[last].Transmission
	}
	for i := 1; i <= last; i++ {
		if bins[i].PositionMm >= x {
			p0, p1 := bins[i-1].PositionMm, bins[i].PositionMm
			t0, t1 := bins[i-1].Transmission, bins[i].Transmission
			if p1 == p0 {
				return t0
			}
			frac := (x - p0) / (p1 - p0)
			return t0 + frac*(t1-t0)
		}
	}
	return bins[last].Transmission
}
