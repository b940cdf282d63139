package rng

import "testing"

func TestDeterministic(t *testing.T) {
	a := New(1234)
	b := New(1234)
	for i := 0; i < 100; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("draw %d diverged between same-seeded sources", i)
		}
	}
}

func TestFloat64Range(t *testing.T) {
	s := New(42)
	for i := 0; i < 10000; i++ {
		v := s.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64 out of [0,1): %v", v)
		}
	}
}

func TestStreamsIndependentButDeterministic(t *testing.T) {
	s := New(7)
	s1a := s.Stream(1)
	s2 := s.Stream(2)
	s1b := New(7).Stream(1)

	if s1a.Float64() == s2.Float64() {
		t.Fatalf("distinct stream indices produced identical first draw (statistically suspicious)")
	}
	// Re-derive stream 1 from a fresh same-seeded source: must match exactly.
	want := s1a
	_ = want
	got1 := s1b.Float64()
	s1c := New(7).Stream(1)
	got2 := s1c.Float64()
	if got1 != got2 {
		t.Fatalf("Stream(1) not deterministic across fresh sources")
	}
}
