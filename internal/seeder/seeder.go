// Package seeder generates the synthetic historical series each asset
// starts with: a coarse ten-year backbone plus a dense final week.
//
// The series is a pure function of (anchor price, seed label): every
// draw comes from rng.Seeded, so the same asset always reboots with an
// identical chart.
package seeder

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coincademy/sim-engine/internal/model"
	"github.com/coincademy/sim-engine/internal/pricemodel"
	"github.com/coincademy/sim-engine/internal/rng"
)

const (
	// CoarsePoints spans the trailing ten years: the anchor-derived
	// starting value plus coarseSteps chained updates.
	coarseSteps  = 520
	CoarsePoints = coarseSteps + 1

	// DensePoints spans the trailing seven days, continuing from the
	// coarse tail. Its seeds are offset from the coarse phase so the
	// two phases draw from disjoint parts of the sequence.
	DensePoints     = 168
	denseSeedOffset = 1000

	coarseSpan = 10 * 365 * 24 * time.Hour
	denseSpan  = 7 * 24 * time.Hour
)

// anchorScale shifts the ten-year starting value below the anchor so
// the generated decade trends roughly toward today's price.
var anchorScale = decimal.NewFromFloat(0.65)

// Series generates the backfill for one asset and trims it to the tail
// model.HistoryLimit points.
//
// The trim keeps the TAIL: the full run produces CoarsePoints +
// DensePoints = 689 points against a 600-point cap, so the earliest
// ~89 coarse points are discarded and the dense week always survives
// intact.
func Series(anchor decimal.Decimal, label string, now time.Time) []model.PricePoint {
	base := rng.SeedFromLabel(label)
	points := make([]model.PricePoint, 0, CoarsePoints+DensePoints)

	// Coarse phase: from ten years back up to where the dense week
	// begins, starting at anchor * 0.65. Ending the coarse phase at the
	// dense boundary keeps the concatenated series chronological.
	coarseStep := (coarseSpan - denseSpan) / time.Duration(CoarsePoints-1)
	coarseStart := now.Add(-coarseSpan)

	value := pricemodel.RoundPrice(anchor.Mul(anchorScale))
	points = append(points, model.PricePoint{Timestamp: coarseStart, Value: value})
	for i := 1; i < CoarsePoints; i++ {
		value = pricemodel.Next(value, 0, rng.Seeded(base+float64(i)))
		points = append(points, model.PricePoint{
			Timestamp: coarseStart.Add(time.Duration(i) * coarseStep),
			Value:     value,
		})
	}

	// Dense phase: the final week, continuing from the coarse tail.
	denseStep := denseSpan / time.Duration(DensePoints)
	denseStart := now.Add(-denseSpan)

	for i := 0; i < DensePoints; i++ {
		value = pricemodel.Next(value, 0, rng.Seeded(base+denseSeedOffset+float64(i)))
		points = append(points, model.PricePoint{
			Timestamp: denseStart.Add(time.Duration(i+1) * denseStep),
			Value:     value,
		})
	}

	return model.TrimPricePoints(points)
}
