package pricemodel

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coincademy/sim-engine/internal/rng"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestNext_NeverNegative(t *testing.T) {
	prices := []float64{0, 0.0001, 1, 100, 67000}
	drifts := []float64{-0.05, -0.013, 0, 0.013, 0.05}

	for _, p := range prices {
		for _, drift := range drifts {
			for seed := float64(0); seed < 200; seed += 13 {
				next := Next(d(p), drift, rng.Seeded(seed))
				if next.IsNegative() {
					t.Fatalf("negative price: p=%v drift=%v seed=%v -> %s", p, drift, seed, next)
				}
			}
		}
	}
}

func TestNext_ZeroIsFixedPoint(t *testing.T) {
	for seed := float64(0); seed < 100; seed += 7 {
		next := Next(decimal.Zero, 0.02, rng.Seeded(seed))
		if !next.IsZero() {
			t.Fatalf("zero price moved: seed=%v -> %s", seed, next)
		}
	}
}

func TestNext_DeterministicForSeed(t *testing.T) {
	a := Next(d(100), 0.01, rng.Seeded(55))
	b := Next(d(100), 0.01, rng.Seeded(55))
	if !a.Equal(b) {
		t.Errorf("same seed produced different prices: %s vs %s", a, b)
	}
}

func TestNext_BoundedWithoutDrift(t *testing.T) {
	// With zero drift no shock can fire, so a single update moves the
	// price by at most baseVolatility/2 = 3%.
	for seed := float64(0); seed < 300; seed += 1.3 {
		next := Next(d(100), 0, rng.Seeded(seed))
		f := next.InexactFloat64()
		if f < 97 || f > 103 {
			t.Fatalf("driftless update outside ±3%%: seed=%v -> %s", seed, next)
		}
	}
}

func TestNewsShock_MagnitudeWithinTier(t *testing.T) {
	tests := []struct {
		name     string
		drift    float64
		min, max float64
	}{
		{"major", 0.013, 0.20, 0.30},
		{"major boundary", 0.012, 0.20, 0.30},
		{"medium", 0.009, 0.05, 0.12},
		{"minor", 0.003, 0.02, 0.06},
	}

	for _, tt := range tests {
		fired := 0
		for seed := float64(0); seed < 2000; seed++ {
			shock := newsShock(tt.drift, rng.Seeded(seed))
			if shock == 0 {
				continue
			}
			fired++
			if shock < tt.min || shock > tt.max {
				t.Errorf("%s: shock %v outside [%v, %v]", tt.name, shock, tt.min, tt.max)
			}
		}
		if fired == 0 {
			t.Errorf("%s: shock never fired across 2000 seeds", tt.name)
		}
	}
}

func TestNewsShock_SignFollowsDrift(t *testing.T) {
	for seed := float64(0); seed < 2000; seed++ {
		if shock := newsShock(-0.013, rng.Seeded(seed)); shock > 0 {
			t.Fatalf("negative drift produced positive shock: seed=%v shock=%v", seed, shock)
		}
		if shock := newsShock(0.013, rng.Seeded(seed)); shock < 0 {
			t.Fatalf("positive drift produced negative shock: seed=%v shock=%v", seed, shock)
		}
	}
}

func TestNewsShock_ZeroDriftNeverFires(t *testing.T) {
	for seed := float64(0); seed < 2000; seed++ {
		if shock := newsShock(0, rng.Seeded(seed)); shock != 0 {
			t.Fatalf("zero drift fired a shock: seed=%v shock=%v", seed, shock)
		}
	}
}

func TestNewsShock_FireRateTracksTier(t *testing.T) {
	// The roll is uniform, so over many seeds the observed fire rate
	// should sit near the tier's chance.
	const samples = 5000
	tests := []struct {
		drift  float64
		chance float64
	}{
		{0.013, 0.45},
		{0.009, 0.35},
		{0.003, 0.25},
	}

	for _, tt := range tests {
		fired := 0
		for seed := float64(0); seed < samples; seed++ {
			if newsShock(tt.drift, rng.Seeded(seed)) != 0 {
				fired++
			}
		}
		rate := float64(fired) / samples
		if math.Abs(rate-tt.chance) > 0.05 {
			t.Errorf("drift %v: fire rate %.3f, expected ~%.2f", tt.drift, rate, tt.chance)
		}
	}
}

func TestNext_RoundedToPriceScale(t *testing.T) {
	next := Next(d(123.4567), 0, rng.Seeded(9))
	if next.Exponent() < -PriceScale {
		t.Errorf("price %s has more than %d decimal places", next, PriceScale)
	}
}

func TestNext_SubCentPriceKeepsResolution(t *testing.T) {
	// A price below one cent moves at most ~3% per driftless update;
	// at the ordinary scale every update would round it straight to
	// zero and strand it on the zero fixed point.
	price := d(0.000022)
	for seed := float64(0); seed < 50; seed++ {
		price = Next(price, 0, rng.Seeded(seed))
		if price.IsZero() {
			t.Fatalf("sub-cent price collapsed to zero at seed %v", seed)
		}
		if price.Exponent() < -SubCentScale {
			t.Fatalf("price %s has more than %d decimal places", price, SubCentScale)
		}
	}
}

func TestRoundPrice_ScaleByMagnitude(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{123.45678, 123.4568},
		{0.123456, 0.1235},
		{0.00002213, 0.00002213},
	}
	for _, tt := range tests {
		if got := RoundPrice(d(tt.in)); !got.Equal(d(tt.want)) {
			t.Errorf("RoundPrice(%v) = %s, want %v", tt.in, got, tt.want)
		}
	}

	// Below even the sub-cent resolution the value rounds to zero.
	if got := RoundPrice(d(0.000000004)); !got.IsZero() {
		t.Errorf("RoundPrice(4e-9) = %s, want 0", got)
	}
}
