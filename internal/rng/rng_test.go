package rng

import "testing"

func TestSeeded_Deterministic(t *testing.T) {
	a := Seeded(42)
	b := Seeded(42)
	for _, offset := range []float64{0, 1, 37, 73, 1000} {
		if a.Draw(offset) != b.Draw(offset) {
			t.Errorf("seeded draws differ for offset %v", offset)
		}
	}
}

func TestSeeded_Range(t *testing.T) {
	for seed := float64(0); seed < 500; seed += 0.7 {
		v := Seeded(seed).Draw(0)
		if v < 0 || v >= 1 {
			t.Fatalf("draw out of [0,1): seed=%v v=%v", seed, v)
		}
	}
}

func TestSeeded_DifferentSeedsDiffer(t *testing.T) {
	// Not a strict requirement of the formula, but adjacent asset seeds
	// must not collapse to the same backfill.
	if Seeded(100).Draw(0) == Seeded(101).Draw(0) {
		t.Error("adjacent seeds produced identical draws")
	}
}

func TestLive_Range(t *testing.T) {
	src := Live()
	for i := 0; i < 1000; i++ {
		v := src.Draw(0)
		if v < 0 || v >= 1 {
			t.Fatalf("live draw out of [0,1): %v", v)
		}
	}
}

func TestSeedFromLabel_OrderDependent(t *testing.T) {
	if SeedFromLabel("BTC") == SeedFromLabel("TCB") {
		t.Error("anagram labels should map to different seeds")
	}
}

func TestSeedFromLabel_Stable(t *testing.T) {
	tests := []struct {
		label string
		want  float64
	}{
		{"", 0},
		{"A", 65},
		{"AB", 65 + 66*2},
		{"BTC", 66 + 84*2 + 67*3},
	}
	for _, tt := range tests {
		if got := SeedFromLabel(tt.label); got != tt.want {
			t.Errorf("SeedFromLabel(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}
