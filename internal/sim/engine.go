// Package sim owns the live market state for one mode (sandbox or lab):
// current prices, per-asset history, the portfolio account, and the
// periodic tick loop that advances them.
//
// Concurrency model: one goroutine owns the ticker; every state access
// (tick advance, trades, snapshots for handlers) goes through the
// engine mutex. Tick work is synchronous and fast relative to the
// interval. Subscriber notification happens outside the lock and is
// recover-guarded — a failing consumer never stops the loop.
package sim

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coincademy/sim-engine/internal/catalog"
	"github.com/coincademy/sim-engine/internal/metrics"
	"github.com/coincademy/sim-engine/internal/model"
	"github.com/coincademy/sim-engine/internal/portfolio"
	"github.com/coincademy/sim-engine/internal/pricemodel"
	"github.com/coincademy/sim-engine/internal/rng"
	"github.com/coincademy/sim-engine/internal/seeder"
)

// DefaultTickInterval paces the live loop when no override is configured.
const DefaultTickInterval = 7500 * time.Millisecond

// DefaultStartBalance is the cash a fresh sandbox account opens with.
var DefaultStartBalance = decimal.NewFromInt(10000)

// TickUpdate is the read-only snapshot handed to subscribers after each
// tick or trade.
type TickUpdate struct {
	Mode           string                     `json:"mode"`
	Prices         map[string]decimal.Decimal `json:"prices"`
	PortfolioValue decimal.Decimal            `json:"portfolio_value"`
	Timestamp      time.Time                  `json:"timestamp"`
}

// Snapshot is the full engine state served to the view layer.
type Snapshot struct {
	Mode           string                     `json:"mode"`
	Prices         map[string]decimal.Decimal `json:"prices"`
	Balance        decimal.Decimal            `json:"balance"`
	Holdings       map[string]decimal.Decimal `json:"holdings"`
	PortfolioValue decimal.Decimal            `json:"portfolio_value"`
	Trades         []model.TradeEvent         `json:"trades"`
	Bulletin       *catalog.BulletinItem      `json:"bulletin,omitempty"`
}

// Engine is the live simulation for one mode. Lab engines additionally
// carry an active bulletin whose drift biases affected assets.
type Engine struct {
	mode     string
	interval time.Duration

	mu       sync.Mutex
	assets   []catalog.Asset
	prices   map[string]decimal.Decimal
	history  map[string][]model.PricePoint
	account  *portfolio.Account
	bulletin *catalog.BulletinItem

	running bool
	stopc   chan struct{}
	onTick  func(TickUpdate)
}

// New creates an engine for the given asset universe, seeds every
// asset's backfill, and opens a portfolio account with startBalance.
// The engine does not tick until Start is called.
func New(mode string, assets []catalog.Asset, startBalance decimal.Decimal, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	e := &Engine{
		mode:     mode,
		interval: interval,
		assets:   assets,
		prices:   make(map[string]decimal.Decimal, len(assets)),
		history:  make(map[string][]model.PricePoint, len(assets)),
	}

	now := time.Now()
	symbols := make([]string, len(assets))
	for i, asset := range assets {
		symbols[i] = asset.Symbol
		series := seeder.Series(asset.AnchorPrice, asset.Symbol, now)
		e.history[asset.Symbol] = series
		e.prices[asset.Symbol] = series[len(series)-1].Value
	}
	e.account = portfolio.NewAccount(startBalance, symbols)
	e.account.Snapshot(e.prices, now)

	return e
}

// OnTick registers the subscriber notified after every tick and trade.
// Must be called before Start.
func (e *Engine) OnTick(fn func(TickUpdate)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// Start launches the tick loop. Calling Start on a running engine is a
// no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stopc = make(chan struct{})
	go e.loop(e.stopc)
	slog.Info("engine started", "mode", e.mode, "interval", e.interval)
}

// Stop cancels the tick loop. Idempotent: stopping a stopped engine is
// a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stopc)
	slog.Info("engine stopped", "mode", e.mode)
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) loop(stopc chan struct{}) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopc:
			return
		case now := <-ticker.C:
			e.Advance(now)
		}
	}
}

// Advance performs one tick: every asset price moves by one live
// (non-deterministic) price-model update, histories and the portfolio
// value are snapshotted, and subscribers are notified. Exposed so tests
// and the scenario scheduler can drive ticks without wall-clock timers.
func (e *Engine) Advance(now time.Time) {
	e.mu.Lock()
	for _, asset := range e.assets {
		drift := 0.0
		if e.bulletin != nil && e.bulletin.Affects(asset.Symbol) {
			drift = e.bulletin.Drift
		}
		next := pricemodel.Next(e.prices[asset.Symbol], drift, rng.Live())
		e.prices[asset.Symbol] = next
		e.history[asset.Symbol] = model.TrimPricePoints(append(e.history[asset.Symbol], model.PricePoint{
			Timestamp: now,
			Value:     next,
		}))
	}
	value := e.account.Snapshot(e.prices, now)
	update := TickUpdate{
		Mode:           e.mode,
		Prices:         e.copyPricesLocked(),
		PortfolioValue: value,
		Timestamp:      now,
	}
	notify := e.onTick
	e.mu.Unlock()

	metrics.TicksTotal.WithLabelValues(e.mode).Inc()
	e.notify(notify, update)
}

// notify delivers an update to the subscriber. A panicking subscriber
// is logged and ignored so the tick loop keeps running.
func (e *Engine) notify(fn func(TickUpdate), update TickUpdate) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tick subscriber panicked", "mode", e.mode, "panic", r)
		}
	}()
	fn(update)
}

// SetBulletin activates a news bulletin whose drift biases the affected
// assets on subsequent ticks (lab mode). Passing nil clears the bias.
func (e *Engine) SetBulletin(item *catalog.BulletinItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bulletin = item
}

// Buy executes a sandbox buy at the current live price and snapshots
// the portfolio value.
func (e *Engine) Buy(symbol string, amount decimal.Decimal) (model.TradeEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, ok := e.prices[symbol]
	if !ok {
		return model.TradeEvent{}, catalog.ErrUnknownSymbol
	}
	event, err := e.account.Buy(symbol, amount, price, time.Now())
	if err != nil {
		return model.TradeEvent{}, err
	}
	e.account.Snapshot(e.prices, event.Timestamp)
	return event, nil
}

// Sell executes a sandbox sell at the current live price and snapshots
// the portfolio value.
func (e *Engine) Sell(symbol string, units decimal.Decimal) (model.TradeEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, ok := e.prices[symbol]
	if !ok {
		return model.TradeEvent{}, catalog.ErrUnknownSymbol
	}
	event, err := e.account.Sell(symbol, units, price, time.Now())
	if err != nil {
		return model.TradeEvent{}, err
	}
	e.account.Snapshot(e.prices, event.Timestamp)
	return event, nil
}

// Snapshot returns a deep copy of the engine's view-facing state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	holdings := make(map[string]decimal.Decimal, len(e.account.Holdings))
	for symbol, units := range e.account.Holdings {
		holdings[symbol] = units
	}
	trades := make([]model.TradeEvent, len(e.account.Trades))
	copy(trades, e.account.Trades)

	return Snapshot{
		Mode:           e.mode,
		Prices:         e.copyPricesLocked(),
		Balance:        e.account.Balance,
		Holdings:       holdings,
		PortfolioValue: e.account.Value(e.prices),
		Trades:         trades,
		Bulletin:       e.bulletin,
	}
}

// PriceHistory returns a copy of one asset's price series.
func (e *Engine) PriceHistory(symbol string) ([]model.PricePoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	series, ok := e.history[symbol]
	if !ok {
		return nil, catalog.ErrUnknownSymbol
	}
	out := make([]model.PricePoint, len(series))
	copy(out, series)
	return out, nil
}

// PortfolioHistory returns a copy of the portfolio value series,
// optionally windowed to [from, to] (zero times mean unbounded).
func (e *Engine) PortfolioHistory(from, to time.Time) []model.PricePoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.PricePoint, 0, len(e.account.Values))
	for _, p := range e.account.Values {
		if !from.IsZero() && p.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && p.Timestamp.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Restore replaces the portfolio account from a persisted document,
// normalized to the engine's universe. Prices and histories are not
// part of the document; they remain the seeded/live series.
func (e *Engine) Restore(doc model.PortfolioDoc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, len(e.assets))
	for i, asset := range e.assets {
		symbols[i] = asset.Symbol
	}
	e.account = portfolio.Restore(doc, symbols)
	e.account.Snapshot(e.prices, time.Now())
}

// Doc returns the persisted document shape of the engine's portfolio.
func (e *Engine) Doc() model.PortfolioDoc {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Doc()
}

// Mode returns the engine's mode label ("sandbox" or "lab").
func (e *Engine) Mode() string {
	return e.mode
}

func (e *Engine) copyPricesLocked() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(e.prices))
	for symbol, price := range e.prices {
		out[symbol] = price
	}
	return out
}
