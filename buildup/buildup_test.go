package buildup

import (
	"math"
	"testing"

	"github.com/arnegrid/collimeng/errs"
	"github.com/arnegrid/collimeng/units"
)

func sampleEntry() Entry {
	return Entry{
		MaterialID: "Pb",
		EnergyKeV:  1000,
		GP:         GPParams{B: 3.0, C: 0.05, A: 0.3, D: -0.02, Xk: 15},
		Taylor:     TaylorParams{A1: 5.5, Alpha1: 0.09, Alpha2: 0.015},
	}
}

func TestFactorAtZeroTauIsOne(t *testing.T) {
	db, err := NewDB([]Entry{sampleEntry()})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	for _, method := range []FactorMethod{GP, Taylor} {
		res, err := Factor(db, "Pb", units.KeV(1000), 0, method)
		if err != nil {
			t.Fatalf("Factor(%s): %v", method, err)
		}
		if math.Abs(res.Factor-1) > 1e-9 {
			t.Fatalf("Factor(%s, tau=0) = %v, want 1", method, res.Factor)
		}
	}
}

func TestFactorNegativeTauIsError(t *testing.T) {
	db, _ := NewDB([]Entry{sampleEntry()})
	_, err := Factor(db, "Pb", units.KeV(1000), -1, GP)
	if !errs.Is(err, errs.OutOfRange) {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
}

func TestFactorAboveMaxTauIsClampedAndFlagged(t *testing.T) {
	db, _ := NewDB([]Entry{sampleEntry()})
	res, err := Factor(db, "Pb", units.KeV(1000), 60, GP)
	if err != nil {
		t.Fatalf("Factor: %v", err)
	}
	if !res.ClampedAboveMax {
		t.Fatalf("expected ClampedAboveMax for tau=60")
	}
	resAt40, _ := Factor(db, "Pb", units.KeV(1000), 40, GP)
	if res.Factor != resAt40.Factor {
		t.Fatalf("clamped factor %v should equal factor at tau=40 %v", res.Factor, resAt40.Factor)
	}
}

func TestCrossCheckWarnsOnLargeDisagreement(t *testing.T) {
	e := sampleEntry()
	e.Taylor = TaylorParams{A1: 0.1, Alpha1: 5, Alpha2: 5} // deliberately far from GP
	db, _ := NewDB([]Entry{e})
	res, err := Factor(db, "Pb", units.KeV(1000), 10, GP)
	if err != nil {
		t.Fatalf("Factor: %v", err)
	}
	if !res.CrossCheckWarn {
		t.Fatalf("expected CrossCheckWarn for divergent GP/Taylor factors, diff=%v", res.CrossCheckDiff)
	}
}

func TestParamInterpolationBetweenGridPoints(t *testing.T) {
	db, err := NewDB([]Entry{
		{MaterialID: "Pb", EnergyKeV: 500, GP: GPParams{B: 2, C: 0.1, A: 0.2, D: -0.01, Xk: 10}},
		{MaterialID: "Pb", EnergyKeV: 1500, GP: GPParams{B: 4, C: 0.1, A: 0.2, D: -0.01, Xk: 10}},
	})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	gp, _, err := db.paramsAt("Pb", units.KeV(1000))
	if err != nil {
		t.Fatalf("paramsAt: %v", err)
	}
	if gp.B <= 2 || gp.B >= 4 {
		t.Fatalf("interpolated B=%v not between grid endpoints", gp.B)
	}
}

func TestComposeStagesKalosIsSequentialProduct(t *testing.T) {
	stages := []StageFactor{
		{Tau: 1, Result: Result{Factor: 2}},
		{Tau: 2, Result: Result{Factor: 3}},
	}
	got := ComposeStages(stages, Kalos, 999)
	if got != 6 {
		t.Fatalf("got %v want 6", got)
	}
}

func TestComposeStagesLastMaterialUsesTotalTauFactor(t *testing.T) {
	stages := []StageFactor{
		{Tau: 1, Result: Result{Factor: 2}},
		{Tau: 2, Result: Result{Factor: 3}},
	}
	got := ComposeStages(stages, LastMaterial, 7)
	if got != 7 {
		t.Fatalf("got %v want 7", got)
	}
}

func TestUnknownMaterialIsNotFound(t *testing.T) {
	db, _ := NewDB(nil)
	_, err := Factor(db, "unobtainium", units.KeV(100), 1, GP)
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
