package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScriptedEvent biases specific assets at a specific tick of a
// scenario run. Drift feeds the price model; the headline is appended
// to the run's bulletin for the view layer.
type ScriptedEvent struct {
	Tick      int       `json:"tick"`
	Headline  string    `json:"headline"`
	Sentiment Sentiment `json:"sentiment"`
	Assets    []string  `json:"assets"`
	Drift     float64   `json:"drift"`
}

// Level defines one scenario run: its asset subset, tick budget,
// pacing, scripted events, and star-rating thresholds.
type Level struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	MaxTicks     int             `json:"max_ticks"`
	TickInterval time.Duration   `json:"-"`
	Speed        float64         `json:"speed"`
	StartBalance decimal.Decimal `json:"start_balance"`
	Assets       []string        `json:"assets"`
	Events       []ScriptedEvent `json:"events"`

	// StarReturns are the ending-value-to-start-balance ratios needed
	// for 1, 2, and 3 stars, in ascending order.
	StarReturns [3]float64 `json:"star_returns"`
}

// Stars converts an ending-value ratio into a 0–3 star rating.
func (l Level) Stars(ratio float64) int {
	stars := 0
	for _, threshold := range l.StarReturns {
		if ratio >= threshold {
			stars++
		}
	}
	return stars
}

var levels = []Level{
	{
		ID:           "first-rally",
		Name:         "First Rally",
		Description:  "A steady bull run. Buy early, take profit before the cooldown.",
		MaxTicks:     30,
		TickInterval: 2 * time.Second,
		Speed:        1,
		StartBalance: decimal.NewFromInt(10000),
		Assets:       []string{"BTC", "ETH", "SOL"},
		Events: []ScriptedEvent{
			{Tick: 5, Headline: "Institutional buyers accumulate bitcoin", Sentiment: SentimentBullish, Assets: []string{"BTC"}, Drift: 0.013},
			{Tick: 12, Headline: "Rally broadens into large-cap altcoins", Sentiment: SentimentBullish, Assets: []string{"ETH", "SOL"}, Drift: 0.009},
			{Tick: 22, Headline: "Momentum cools as traders take profit", Sentiment: SentimentBearish, Assets: []string{"BTC", "ETH", "SOL"}, Drift: -0.005},
		},
		StarReturns: [3]float64{1.0, 1.05, 1.12},
	},
	{
		ID:           "flash-crash",
		Name:         "Flash Crash",
		Description:  "Bad news hits mid-run. Protect your balance, then buy the dip.",
		MaxTicks:     40,
		TickInterval: 2 * time.Second,
		Speed:        1,
		StartBalance: decimal.NewFromInt(10000),
		Assets:       []string{"BTC", "ETH", "ADA", "DOGE"},
		Events: []ScriptedEvent{
			{Tick: 8, Headline: "Exchange insolvency rumors spread", Sentiment: SentimentBearish, Assets: []string{"BTC", "ETH"}, Drift: -0.014},
			{Tick: 14, Headline: "Panic selling spills into altcoins", Sentiment: SentimentBearish, Assets: []string{"ADA", "DOGE"}, Drift: -0.012},
			{Tick: 26, Headline: "Rumors denied; relief rally begins", Sentiment: SentimentBullish, Assets: []string{"BTC", "ETH", "ADA"}, Drift: 0.012},
		},
		StarReturns: [3]float64{0.95, 1.0, 1.08},
	},
	{
		ID:           "alt-season",
		Name:         "Alt Season",
		Description:  "Capital rotates out of bitcoin. Ride the rotation without overstaying.",
		MaxTicks:     50,
		TickInterval: 2 * time.Second,
		Speed:        1.5,
		StartBalance: decimal.NewFromInt(15000),
		Assets:       []string{"BTC", "ETH", "SOL", "AVAX", "LINK", "MATIC"},
		Events: []ScriptedEvent{
			{Tick: 6, Headline: "Bitcoin dominance starts to slip", Sentiment: SentimentBearish, Assets: []string{"BTC"}, Drift: -0.004},
			{Tick: 10, Headline: "Smart-contract platforms surge", Sentiment: SentimentBullish, Assets: []string{"ETH", "SOL", "AVAX"}, Drift: 0.013},
			{Tick: 24, Headline: "Mid-caps join the rotation", Sentiment: SentimentBullish, Assets: []string{"LINK", "MATIC"}, Drift: 0.01},
			{Tick: 38, Headline: "Froth warning: funding rates spike", Sentiment: SentimentBearish, Assets: []string{"SOL", "AVAX", "MATIC"}, Drift: -0.009},
		},
		StarReturns: [3]float64{1.0, 1.08, 1.2},
	},
}

// Levels returns the scenario level definitions in play order.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// LevelByID returns the level with the given ID, if any.
func LevelByID(id string) (Level, bool) {
	for _, l := range levels {
		if l.ID == id {
			return l, true
		}
	}
	return Level{}, false
}
