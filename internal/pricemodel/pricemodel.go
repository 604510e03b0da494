// Package pricemodel implements the synthetic price update used for both
// historical backfill and live ticking.
//
// A single update combines three terms:
//
//	delta = (draw - 0.5) * baseVolatility + drift + newsShock
//	price' = max(0, price * (1 + delta))
//
// Drift is a directional bias sourced from news or scenario content
// (e.g. 0.01 = +1% per tick). The news shock is an additional
// probabilistic jump whose chance and size grow with |drift|.
//
// Prices use shopspring/decimal at the boundary — never float64 for
// money. Internal noise math runs in float64 and is converted back
// immediately, rounded via RoundPrice.
package pricemodel

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/coincademy/sim-engine/internal/rng"
)

const (
	// BaseVolatility scales the ordinary per-update noise term.
	BaseVolatility = 0.06

	// Draw offsets within one update. The base draw uses offset 0;
	// the shock roll and shock magnitude use independent offsets so a
	// single seed yields three uncorrelated values.
	shockRollOffset      = 37
	shockMagnitudeOffset = 73
)

// PriceScale is the number of decimal places prices are rounded to.
// Sub-cent assets round to SubCentScale instead: at 4 places a price
// like 0.000022 would collapse to zero, and zero is a fixed point.
var (
	PriceScale    int32 = 4
	SubCentScale  int32 = 8
	subCentBound        = 0.01
)

// RoundPrice rounds a price to its resolution: PriceScale places for
// ordinary prices, SubCentScale for prices below one cent.
func RoundPrice(price decimal.Decimal) decimal.Decimal {
	if price.InexactFloat64() < subCentBound {
		return price.Round(SubCentScale)
	}
	return price.Round(PriceScale)
}

// shockTier describes one drift-magnitude bucket: the probability that
// a news shock fires and the uniform range its magnitude is drawn from.
type shockTier struct {
	threshold float64 // minimum |drift| (inclusive) for this tier
	chance    float64
	min, max  float64
}

// Tiers are checked top-down; the first matching bucket wins.
// |drift| == 0 never shocks.
var shockTiers = []shockTier{
	{threshold: 0.012, chance: 0.45, min: 0.20, max: 0.30}, // major
	{threshold: 0.007, chance: 0.35, min: 0.05, max: 0.12}, // medium
	{threshold: 0, chance: 0.25, min: 0.02, max: 0.06},     // minor (any nonzero drift)
}

// newsShock rolls for an extra price jump based on the drift magnitude.
// Returns 0 when no shock fires. When one fires, its magnitude lies in
// the tier's [min, max] range and its sign follows the sign of drift.
func newsShock(drift float64, src rng.Source) float64 {
	mag := math.Abs(drift)
	if mag == 0 {
		return 0
	}

	var tier shockTier
	for _, t := range shockTiers {
		if mag >= t.threshold {
			tier = t
			break
		}
	}

	if src.Draw(shockRollOffset) >= tier.chance {
		return 0
	}

	size := tier.min + src.Draw(shockMagnitudeOffset)*(tier.max-tier.min)
	if drift < 0 {
		return -size
	}
	return size
}

// Next advances a price by one update. The source decides the regime:
// rng.Seeded for reproducible backfill, rng.Live for live ticks.
//
// Next never returns a negative price; zero is a stable fixed point
// (0 * (1 + delta) == 0), so a crashed asset stays at zero.
func Next(price decimal.Decimal, drift float64, src rng.Source) decimal.Decimal {
	centered := src.Draw(0) - 0.5
	delta := centered*BaseVolatility + drift + newsShock(drift, src)

	next := price.InexactFloat64() * (1 + delta)
	if next < 0 {
		next = 0
	}
	return RoundPrice(decimal.NewFromFloat(next))
}
