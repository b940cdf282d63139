package units

import (
	"math"
	"testing"
)

func TestMmCmRoundTrip(t *testing.T) {
	x := Mm(10)
	got := CmToMm(MmToCm(x))
	if math.Abs(float64(got-x)) > 1e-9 {
		t.Fatalf("round trip mismatch: got %v want %v", got, x)
	}
}

func TestKeVMeVRoundTrip(t *testing.T) {
	e := MeV(1.5)
	got := KeVToMeV(MeVToKeV(e))
	if math.Abs(float64(got-e)) > 1e-9 {
		t.Fatalf("round trip mismatch: got %v want %v", got, e)
	}
}

func TestToMfp(t *testing.T) {
	got := ToMfp(PerCm(0.5), Cm(2))
	if got != 1 {
		t.Fatalf("got %v want 1", got)
	}
}

func TestTransmissionDBRoundTrip(t *testing.T) {
	for _, tr := range []float64{1, 0.5, 1e-10, 1e-30, 1e-40} {
		db := TransmissionToDB(tr)
		back := DBToTransmission(db)
		want := tr
		if want < minTransmission {
			want = minTransmission
		}
		if math.Abs(back-want)/want > 1e-6 {
			t.Fatalf("transmission %v: round trip got %v want %v", tr, back, want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5.0, 0.0, 10.0); got != 5.0 {
		t.Fatalf("Clamp(5,0,10) = %v, want 5", got)
	}
	if got := Clamp(-1.0, 0.0, 10.0); got != 0.0 {
		t.Fatalf("Clamp(-1,0,10) = %v, want 0", got)
	}
	if got := Clamp(11.0, 0.0, 10.0); got != 10.0 {
		t.Fatalf("Clamp(11,0,10) = %v, want 10", got)
	}
	if got := Clamp(3, 0, 10); got != 3 {
		t.Fatalf("Clamp(3,0,10) int = %v, want 3", got)
	}
}

func TestIsFiniteNonNegative(t *testing.T) {
	cases := map[float64]bool{
		0:                true,
		1.5:              true,
		-1:                false,
		math.NaN():        false,
		math.Inf(1):       false,
		math.Inf(-1):      false,
	}
	for v, want := range cases {
		if got := IsFiniteNonNegative(v); got != want {
			t.Fatalf("IsFiniteNonNegative(%v) = %v, want %v", v, got, want)
		}
	}
}
