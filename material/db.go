package material

import (
	"math"
	"sort"

	"github.com/facette/natsort"

	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/units"
)

// DB is the immutable, read-mostly material database. Construct once with
// NewDB; safe for concurrent reads from every ray-tracing worker with no
// locking, since nothing after NewDB mutates it.
type DB struct {
	byID  map[string]Material
	order []string // natural-sorted IDs, for deterministic listing
}

// NewDB validates and indexes a set of materials. Points are sorted by
// energy and checked for duplicates and negative values; alloy compositions
// are checked to sum to 1 within 1e-6.
func NewDB(materials []Material) (*DB, error) {
	db := &DB{byID: make(map[string]Material, len(materials))}
	for _, m := range materials {
		if _, dup := db.byID[m.ID]; dup {
			return nil, errs.New(errs.InvalidGeometry, "duplicate material id %q", m.ID).WithMaterial(m.ID)
		}
		pts := append([]AttenuationDataPoint(nil), m.Points...)
		sort.Slice(pts, func(i, j int) bool { return pts[i].EnergyKeV < pts[j].EnergyKeV })
		for i := 1; i < len(pts); i++ {
			if pts[i].EnergyKeV == pts[i-1].EnergyKeV {
				return nil, errs.New(errs.InvalidGeometry, "duplicate attenuation energy %g keV", pts[i].EnergyKeV).WithMaterial(m.ID)
			}
		}
		for _, p := range pts {
			if p.EnergyKeV < 0 || p.TotalMassAttenuation < 0 || p.MassEnergyAbsorption < 0 ||
				p.Photoelectric < 0 || p.Compton < 0 || p.Pair < 0 {
				return nil, errs.New(errs.InvalidUnit, "negative attenuation data at %g keV", p.EnergyKeV).WithMaterial(m.ID)
			}
		}
		m.Points = pts

		if m.Category == Alloy {
			sum := 0.0
			for _, c := range m.Composition {
				sum += c.WeightFraction
			}
			if math.Abs(sum-1) > 1e-6 {
				return nil, errs.New(errs.InvalidComposition, "alloy %q weight fractions sum to %g, want 1±1e-6", m.ID, sum).WithMaterial(m.ID)
			}
		}

		db.byID[m.ID] = m
		db.order = append(db.order, m.ID)
	}
	sort.Slice(db.order, func(i, j int) bool { return natsort.Compare(db.order[i], db.order[j]) })
	return db, nil
}

// Materials returns every known material, naturally sorted by ID.
func (db *DB) Materials() []Material {
	out := make([]Material, 0, len(db.order))
	for _, id := range db.order {
		out = append(out, db.byID[id])
	}
	return out
}

// Material looks up a material by id.
func (db *DB) Material(id string) (Material, error) {
	m, ok := db.byID[id]
	if !ok {
		return Material{}, errs.New(errs.NotFound, "unknown material id %q", id).WithMaterial(id)
	}
	return m, nil
}

// coefficient selects one of the five mass-attenuation channels of a point.
type coefficient func(AttenuationDataPoint) float64

var totalCoefficient coefficient = func(p AttenuationDataPoint) float64 { return p.TotalMassAttenuation }
var comptonCoefficient coefficient = func(p AttenuationDataPoint) float64 { return p.Compton }

// MuOverRho returns the total mass attenuation coefficient (cm^2/g) at
// energy E by log-log interpolation on the material's grid. Energies
// outside the grid are an OutOfRange error, never silent extrapolation,
// unless the query straddles nothing and lands exactly on an endpoint.
func (db *DB) MuOverRho(id string, e units.KeV) (float64, error) {
	return db.interpolate(id, e, totalCoefficient)
}

// ComptonMuOverRho returns the Compton (incoherent) mass attenuation
// coefficient (cm^2/g) at energy E.
func (db *DB) ComptonMuOverRho(id string, e units.KeV) (float64, error) {
	return db.interpolate(id, e, comptonCoefficient)
}

func (db *DB) interpolate(id string, e units.KeV, coef coefficient) (float64, error) {
	m, err := db.Material(id)
	if err != nil {
		return 0, err
	}
	if len(m.Points) == 0 {
		return 0, errs.New(errs.NumericalDegeneracy, "material %q has no attenuation points", id).WithMaterial(id)
	}
	ev := float64(e)
	lo, hi := m.Points[0].EnergyKeV, m.Points[len(m.Points)-1].EnergyKeV
	if ev < lo || ev > hi {
		return 0, errs.New(errs.OutOfRange, "energy %g keV outside material %q grid [%g, %g] keV", ev, id, lo, hi).
			WithMaterial(id).WithEnergy(ev)
	}

	i := sort.Search(len(m.Points), func(i int) bool { return m.Points[i].EnergyKeV >= ev })
	if i < len(m.Points) && m.Points[i].EnergyKeV == ev {
		return coef(m.Points[i]), nil
	}
	// i is the first point with energy > ev, so i-1..i brackets ev.
	if i == 0 || i == len(m.Points) {
		// Guarded by the range check above; unreachable in practice.
		return 0, errs.New(errs.OutOfRange, "energy %g keV outside material %q grid", ev, id).WithMaterial(id).WithEnergy(ev)
	}
	p0, p1 := m.Points[i-1], m.Points[i]
	if crossesEdge(m.EdgeEnergyKeV, p0.EnergyKeV, p1.EnergyKeV) {
		return 0, errs.New(errs.NumericalDegeneracy,
			"energy %g keV for material %q interpolates across a K-edge between %g and %g keV",
			ev, id, p0.EnergyKeV, p1.EnergyKeV).WithMaterial(id).WithEnergy(ev)
	}
	return loglogInterp(p0.EnergyKeV, coef(p0), p1.EnergyKeV, coef(p1), ev), nil
}

// MuOverRhoExtrapolateEdge queries a coefficient slightly outside the
// material's grid range, in the K-edge extrapolation mode: it is permitted
// only when the two nearest grid points used to extrapolate the trend both
// lie on the same side of the nearest declared edge (spec.md §4.2).
func (db *DB) MuOverRhoExtrapolateEdge(id string, e units.KeV) (float64, error) {
	m, err := db.Material(id)
	if err != nil {
		return 0, err
	}
	if len(m.Points) < 2 {
		return 0, errs.New(errs.NumericalDegeneracy, "material %q has fewer than 2 attenuation points", id).WithMaterial(id)
	}
	ev := float64(e)
	n := len(m.Points)
	lo, hi := m.Points[0].EnergyKeV, m.Points[n-1].EnergyKeV
	var p0, p1 AttenuationDataPoint
	switch {
	case ev < lo:
		p0, p1 = m.Points[0], m.Points[1]
	case ev > hi:
		p0, p1 = m.Points[n-2], m.Points[n-1]
	default:
		return db.MuOverRho(id, e)
	}
	if crossesEdge(m.EdgeEnergyKeV, math.Min(p0.EnergyKeV, ev), math.Max(p1.EnergyKeV, ev)) {
		return 0, errs.New(errs.NumericalDegeneracy,
			"edge extrapolation for material %q at %g keV would cross a K-edge", id, ev).
			WithMaterial(id).WithEnergy(ev)
	}
	return loglogInterp(p0.EnergyKeV, p0.TotalMassAttenuation, p1.EnergyKeV, p1.TotalMassAttenuation, ev), nil
}

func crossesEdge(edges []float64, lo, hi float64) bool {
	for _, edge := range edges {
		if lo < edge && edge < hi {
			return true
		}
	}
	return false
}

// loglogInterp interpolates y(x) linearly in log-log space between two
// known points (x0,y0) and (x1,y1).
func loglogInterp(x0, y0, x1, y1, x float64) float64 {
	if y0 <= 0 || y1 <= 0 || x0 <= 0 || x1 <= 0 {
		// Degenerate coefficients (e.g. exactly zero) fall back to linear
		// interpolation rather than taking log(0).
		t := (x - x0) / (x1 - x0)
		return y0 + t*(y1-y0)
	}
	lx0, ly0 := math.Log(x0), math.Log(y0)
	lx1, ly1 := math.Log(x1), math.Log(y1)
	t := (math.Log(x) - lx0) / (lx1 - lx0)
	return math.Exp(ly0 + t*(ly1-ly0))
}

// MuOverRhoAlloy computes the weighted-sum mixture rule:
// Σ wᵢ · mu_over_rho(elementᵢ, E). All component weights must already sum
// to 1 within 1e-6, as enforced by NewDB for stored alloys; this function
// additionally accepts an ad hoc composition (e.g. for a layer built from
// named elements not registered as its own alloy Material).
func (db *DB) MuOverRhoAlloy(components []Component, e units.KeV) (float64, error) {
	sum := 0.0
	for _, c := range components {
		sum += c.WeightFraction
	}
	if math.Abs(sum-1) > 1e-6 {
		return 0, errs.New(errs.InvalidComposition, "alloy weight fractions sum to %g, want 1±1e-6", sum)
	}
	total := 0.0
	for _, c := range components {
		mu, err := db.MuOverRho(c.Element, e)
		if err != nil {
			return 0, err
		}
		total += c.WeightFraction * mu
	}
	return total, nil
}

// ComptonFraction returns μ_Compton(E) / μ_total(E), the fraction of total
// attenuation attributable to Compton scattering — used by the scatter
// tracer to decide the Compton branch probability.
func (db *DB) ComptonFraction(id string, e units.KeV) (float64, error) {
	total, err := db.MuOverRho(id, e)
	if err != nil {
		return 0, err
	}
	compton, err := db.ComptonMuOverRho(id, e)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return compton / total, nil
}
