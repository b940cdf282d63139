// Package buildup implements the GP and Taylor parametric buildup-factor
// formulas and the multi-stage composition rules on top of them. Parameters
// are loaded once from a TOML table keyed by (material_id, energy_keV) and
// log-log interpolated on energy, mirroring the interpolation discipline in
// package material.
package buildup

import (
	"math"
	"sort"

	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/units"
)

// FactorMethod selects which closed-form buildup formula to evaluate.
type FactorMethod string

const (
	GP     FactorMethod = "gp"
	Taylor FactorMethod = "taylor"
)

// CompositionMethod selects how per-stage buildup factors combine into one
// composite factor across a multi-stage geometry.
type CompositionMethod string

const (
	// Kalos is the sequential product of per-stage factors, the default
	// once secondary scatter is tracked (max_scatter_order >= 2).
	Kalos CompositionMethod = "kalos"
	// LastMaterial evaluates a single factor for the last stage's dominant
	// material at the total optical depth — the conservative fallback used
	// when max_scatter_order == 1.
	LastMaterial CompositionMethod = "last_material"
)

// GPParams are the Geometric Progression formula's five fitted constants.
type GPParams struct {
	B  float64 `toml:"b" json:"b"`
	C  float64 `toml:"c" json:"c"`
	A  float64 `toml:"a" json:"a"`
	D  float64 `toml:"d" json:"d"`
	Xk float64 `toml:"xk" json:"xk"`
}

// TaylorParams are the two-exponential Taylor formula's three constants.
type TaylorParams struct {
	A1     float64 `toml:"a1" json:"a1"`
	Alpha1 float64 `toml:"alpha1" json:"alpha1"`
	Alpha2 float64 `toml:"alpha2" json:"alpha2"`
}

// Entry is one row of the buildup table: both formulas' parameters at a
// given material and energy, so GP and Taylor can be cross-checked without a
// second table lookup.
type Entry struct {
	MaterialID string       `toml:"material_id" json:"material_id"`
	EnergyKeV  float64      `toml:"energy_kev" json:"energy_kev"`
	GP         GPParams     `toml:"gp" json:"gp"`
	Taylor     TaylorParams `toml:"taylor" json:"taylor"`
}

// DB is the immutable, read-mostly buildup parameter table.
type DB struct {
	byMaterial map[string][]Entry // sorted by EnergyKeV
}

// NewDB indexes and validates a set of entries, sorting each material's rows
// by energy and rejecting duplicate energies.
func NewDB(entries []Entry) (*DB, error) {
	db := &DB{byMaterial: make(map[string][]Entry)}
	for _, e := range entries {
		db.byMaterial[e.MaterialID] = append(db.byMaterial[e.MaterialID], e)
	}
	for id, rows := range db.byMaterial {
		sort.Slice(rows, func(i, j int) bool { return rows[i].EnergyKeV < rows[j].EnergyKeV })
		for i := 1; i < len(rows); i++ {
			if rows[i].EnergyKeV == rows[i-1].EnergyKeV {
				return nil, errs.New(errs.InvalidGeometry, "duplicate buildup energy %g keV", rows[i].EnergyKeV).WithMaterial(id)
			}
		}
	}
	return db, nil
}

// paramsAt log-log interpolates every GP and Taylor constant independently
// onto the queried energy, using the same bracket for both formulas.
func (db *DB) paramsAt(materialID string, e units.KeV) (GPParams, TaylorParams, error) {
	rows, ok := db.byMaterial[materialID]
	if !ok || len(rows) == 0 {
		return GPParams{}, TaylorParams{}, errs.New(errs.NotFound, "no buildup data for material %q", materialID).WithMaterial(materialID)
	}
	ev := float64(e)
	lo, hi := rows[0].EnergyKeV, rows[len(rows)-1].EnergyKeV
	if len(rows) == 1 || ev == lo {
		return rows[0].GP, rows[0].Taylor, nil
	}
	if ev < lo || ev > hi {
		return GPParams{}, TaylorParams{}, errs.New(errs.OutOfRange,
			"energy %g keV outside buildup grid [%g, %g] keV for material %q", ev, lo, hi, materialID).
			WithMaterial(materialID).WithEnergy(ev)
	}
	i := sort.Search(len(rows), func(i int) bool { return rows[i].EnergyKeV >= ev })
	if rows[i].EnergyKeV == ev {
		return rows[i].GP, rows[i].Taylor, nil
	}
	r0, r1 := rows[i-1], rows[i]
	t := interpFrac(r0.EnergyKeV, r1.EnergyKeV, ev)
	gp := GPParams{
		B:  lerp(r0.GP.B, r1.GP.B, t),
		C:  lerp(r0.GP.C, r1.GP.C, t),
		A:  lerp(r0.GP.A, r1.GP.A, t),
		D:  lerp(r0.GP.D, r1.GP.D, t),
		Xk: lerp(r0.GP.Xk, r1.GP.Xk, t),
	}
	tay := TaylorParams{
		A1:     lerp(r0.Taylor.A1, r1.Taylor.A1, t),
		Alpha1: lerp(r0.Taylor.Alpha1, r1.Taylor.Alpha1, t),
		Alpha2: lerp(r0.Taylor.Alpha2, r1.Taylor.Alpha2, t),
	}
	return gp, tay, nil
}

// interpFrac returns the log-log interpolation fraction of x between x0,x1.
func interpFrac(x0, x1, x float64) float64 {
	if x0 <= 0 || x1 <= 0 || x <= 0 {
		return (x - x0) / (x1 - x0)
	}
	return (math.Log(x) - math.Log(x0)) / (math.Log(x1) - math.Log(x0))
}

// lerp interpolates y at log-energy fraction t between y0 and y1, in log
// space when both are positive (log-log overall); a parameter whose bracket
// values are not both positive (such as a negative d) is interpolated
// linearly in value instead.
func lerp(y0, y1, t float64) float64 {
	if y0 > 0 && y1 > 0 {
		return math.Exp(math.Log(y0) + t*(math.Log(y1)-math.Log(y0)))
	}
	return y0 + t*(y1-y0)
}

var tanhNeg2 = math.Tanh(-2)

// GPFactor evaluates the Geometric Progression buildup formula at optical
// depth τ (in mean free paths).
func GPFactor(tau float64, p GPParams) float64 {
	k := p.C*math.Pow(tau, p.A) + p.D*(math.Tanh(tau/p.Xk-2)-tanhNeg2)/(1-tanhNeg2)
	if k == 1 {
		return 1 + (p.B-1)*tau
	}
	return 1 + (p.B-1)*(math.Pow(k, tau)-1)/(k-1)
}

// TaylorFactor evaluates the two-exponential Taylor buildup formula.
func TaylorFactor(tau float64, p TaylorParams) float64 {
	return p.A1*math.Exp(-p.Alpha1*tau) + (1-p.A1)*math.Exp(-p.Alpha2*tau)
}

// Result is one buildup evaluation: the chosen formula's factor plus the
// cross-check against the other formula, so a caller can surface the
// disagreement warning without a second lookup.
type Result struct {
	Factor          float64
	CrossCheckDiff  float64 // |B_GP - B_Taylor| / B_GP
	CrossCheckWarn  bool    // true if CrossCheckDiff > 0.15
	ClampedAboveMax bool    // true if τ was clamped from above 40
}

// Factor evaluates the buildup factor for one material at one energy and
// optical depth, per spec.md §4.4: τ domain is [0, 40], negative τ is an
// error, τ above 40 is clamped and flagged, and GP/Taylor disagreement above
// 15% is surfaced rather than rejected.
func Factor(db *DB, materialID string, e units.KeV, tau float64, method FactorMethod) (Result, error) {
	if tau < 0 {
		return Result{}, errs.New(errs.OutOfRange, "optical depth %g is negative", tau).WithMaterial(materialID).WithEnergy(float64(e))
	}
	clamped := false
	if tau > 40 {
		tau = 40
		clamped = true
	}
	gp, tay, err := db.paramsAt(materialID, e)
	if err != nil {
		return Result{}, err
	}
	bGP := GPFactor(tau, gp)
	bTaylor := TaylorFactor(tau, tay)
	diff := 0.0
	if bGP != 0 {
		diff = math.Abs(bGP-bTaylor) / bGP
	}
	res := Result{CrossCheckDiff: diff, CrossCheckWarn: diff > 0.15, ClampedAboveMax: clamped}
	switch method {
	case Taylor:
		res.Factor = bTaylor
	default:
		res.Factor = bGP
	}
	return res, nil
}

// StageFactor is one stage's contribution to a composite buildup factor:
// its optical depth and its own evaluated Result at its dominant material.
type StageFactor struct {
	Tau    float64
	Result Result
}

// ComposeStages combines per-stage buildup factors into one composite value
// per the chosen composition method. Kalos is the sequential product of
// every stage's factor; LastMaterial ignores all but the final stage and
// evaluates it at the summed optical depth of every stage (already computed
// by the caller as lastStageFactorAtTotalTau).
func ComposeStages(stages []StageFactor, method CompositionMethod, lastStageFactorAtTotalTau float64) float64 {
	if method == LastMaterial {
		return lastStageFactorAtTotalTau
	}
	total := 1.0
	for _, s := range stages {
		total *= s.Result.Factor
	}
	return total
}
