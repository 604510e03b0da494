// Package scenario implements the tick-bounded, scored game mode.
//
// A run is fully isolated from the live engines: it owns its own
// prices, histories, and portfolio account, so a scenario can play out
// while the sandbox and lab keep ticking in the background. State
// machine: NotStarted → Running → Finished; the run becomes terminal
// the moment its tick counter first reaches the level's tick budget,
// and the star rating is computed exactly once.
package scenario

import (
	"errors"
	"log/slog"
	"strconv"
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

// State is the lifecycle position of the scenario mode.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateFinished   State = "finished"
)

var (
	// ErrUnknownLevel is returned when starting a level that does not exist.
	ErrUnknownLevel = errors.New("scenario: unknown level")

	// ErrNotRunning is returned for trades outside a running scenario.
	ErrNotRunning = errors.New("scenario: no running scenario")
)

// Update is pushed to the subscriber after every scenario tick.
type Update struct {
	LevelID        string          `json:"level_id"`
	Tick           int             `json:"tick"`
	MaxTicks       int             `json:"max_ticks"`
	State          State           `json:"state"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Stars          int             `json:"stars"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Snapshot is the full run state served to the view layer.
type Snapshot struct {
	State          State                      `json:"state"`
	LevelID        string                     `json:"level_id,omitempty"`
	RunID          string                     `json:"run_id,omitempty"`
	Tick           int                        `json:"tick"`
	MaxTicks       int                        `json:"max_ticks"`
	StartBalance   decimal.Decimal            `json:"start_balance"`
	Balance        decimal.Decimal            `json:"balance"`
	PortfolioValue decimal.Decimal            `json:"portfolio_value"`
	Holdings       map[string]decimal.Decimal `json:"holdings"`
	Prices         map[string]decimal.Decimal `json:"prices"`
	Bulletin       []catalog.ScriptedEvent    `json:"bulletin"`
	Events         []string                   `json:"events"`
	Trades         []model.TradeEvent         `json:"trades"`
	Stars          int                        `json:"stars"`
}

// run is one isolated scenario playthrough.
type run struct {
	id      string
	level   catalog.Level
	state   State
	tick    int
	account *portfolio.Account
	prices  map[string]decimal.Decimal
	history map[string][]model.PricePoint

	bulletin []catalog.ScriptedEvent // scripted events fired so far
	events   []string                // human-readable run log

	stars    int
	starsSet bool

	stopc chan struct{}
}

// Manager owns at most one scenario run at a time.
type Manager struct {
	mu     sync.Mutex
	run    *run
	notify func(Update)
	newID  func() string
}

// NewManager creates a manager in the NotStarted state.
func NewManager(newID func() string) *Manager {
	return &Manager{newID: newID}
}

// OnUpdate registers the subscriber notified after every scenario tick.
func (m *Manager) OnUpdate(fn func(Update)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// Start begins a run of the given level with fresh isolated state.
// Any prior run (running or finished) is discarded first.
func (m *Manager) Start(levelID string) (Snapshot, error) {
	level, ok := catalog.LevelByID(levelID)
	if !ok {
		return Snapshot{}, ErrUnknownLevel
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.exitLocked()

	now := time.Now()
	r := &run{
		id:      m.newID(),
		level:   level,
		state:   StateRunning,
		prices:  make(map[string]decimal.Decimal, len(level.Assets)),
		history: make(map[string][]model.PricePoint, len(level.Assets)),
		stopc:   make(chan struct{}),
	}

	for _, symbol := range level.Assets {
		asset, err := catalog.Lookup(symbol)
		if err != nil {
			return Snapshot{}, err
		}
		series := seeder.Series(asset.AnchorPrice, symbol+":"+level.ID, now)
		r.history[symbol] = series
		r.prices[symbol] = series[len(series)-1].Value
	}

	r.account = portfolio.NewAccount(level.StartBalance, level.Assets)
	r.account.Snapshot(r.prices, now)
	r.events = append(r.events, "Level started: "+level.Name)

	m.run = r
	go m.loop(r)

	slog.Info("scenario started",
		"run_id", r.id,
		"level", level.ID,
		"max_ticks", level.MaxTicks,
		"start_balance", level.StartBalance.String(),
	)
	return m.snapshotLocked(), nil
}

// Exit stops any current run and resets to NotStarted. Idempotent.
func (m *Manager) Exit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exitLocked()
}

func (m *Manager) exitLocked() {
	if m.run == nil {
		return
	}
	if m.run.state == StateRunning {
		close(m.run.stopc)
	}
	m.run = nil
}

// cadence derives the scheduler interval from the level's base interval
// and speed multiplier.
func cadence(level catalog.Level) time.Duration {
	interval := level.TickInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if level.Speed > 0 {
		interval = time.Duration(float64(interval) / level.Speed)
	}
	return interval
}

func (m *Manager) loop(r *run) {
	ticker := time.NewTicker(cadence(r.level))
	defer ticker.Stop()

	for {
		select {
		case <-r.stopc:
			return
		case now := <-ticker.C:
			update, notify, done := m.step(r, now)
			if notify != nil {
				deliver(notify, update)
			}
			if done {
				return
			}
		}
	}
}

// Step advances the manager's current run by one tick. Exposed for
// deterministic tests; the timer loop goes through the same path.
func (m *Manager) Step(now time.Time) {
	m.mu.Lock()
	r := m.run
	m.mu.Unlock()
	if r == nil {
		return
	}
	update, notify, _ := m.step(r, now)
	if notify != nil {
		deliver(notify, update)
	}
}

// step performs one scenario tick: fire scripted events due at this
// tick, advance every level asset (biased by any firing event), and
// finish the run when the tick budget is spent.
func (m *Manager) step(r *run, now time.Time) (Update, func(Update), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The run may have been replaced or exited since the timer fired.
	if m.run != r || r.state != StateRunning {
		return Update{}, nil, true
	}

	r.tick++

	var fired []catalog.ScriptedEvent
	for _, ev := range r.level.Events {
		if ev.Tick == r.tick {
			fired = append(fired, ev)
			r.bulletin = append(r.bulletin, ev)
			r.events = append(r.events, ev.Headline)
		}
	}

	for _, symbol := range r.level.Assets {
		drift := 0.0
		for _, ev := range fired {
			for _, affected := range ev.Assets {
				if affected == symbol {
					drift += ev.Drift
				}
			}
		}
		next := pricemodel.Next(r.prices[symbol], drift, rng.Live())
		r.prices[symbol] = next
		r.history[symbol] = model.TrimPricePoints(append(r.history[symbol], model.PricePoint{
			Timestamp: now,
			Value:     next,
		}))
	}

	value := r.account.Snapshot(r.prices, now)
	metrics.TicksTotal.WithLabelValues("scenario").Inc()

	done := r.tick >= r.level.MaxTicks
	if done {
		r.finish(value)
	}

	update := Update{
		LevelID:        r.level.ID,
		Tick:           r.tick,
		MaxTicks:       r.level.MaxTicks,
		State:          r.state,
		PortfolioValue: value,
		Stars:          r.stars,
		Timestamp:      now,
	}
	return update, m.notify, done
}

// finish transitions the run to Finished and scores it. The guard
// ensures stars are assigned exactly once per run.
func (r *run) finish(endValue decimal.Decimal) {
	r.state = StateFinished
	if r.starsSet {
		return
	}
	r.starsSet = true

	ratio := 0.0
	if r.level.StartBalance.IsPositive() {
		ratio = endValue.Div(r.level.StartBalance).InexactFloat64()
	}
	r.stars = r.level.Stars(ratio)
	r.events = append(r.events, "Level complete: "+strconv.Itoa(r.stars)+" star(s)")

	metrics.ScenarioRuns.WithLabelValues(strconv.Itoa(r.stars)).Inc()
	slog.Info("scenario finished",
		"run_id", r.id,
		"level", r.level.ID,
		"end_value", endValue.String(),
		"stars", r.stars,
	)
}

// deliver pushes an update to the subscriber, swallowing panics so a
// broken consumer cannot kill the run's scheduler.
func deliver(fn func(Update), update Update) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("scenario subscriber panicked", "panic", rec)
		}
	}()
	fn(update)
}

// Buy spends scenario cash on a level asset at its current scenario
// price. Only valid while the run is Running.
func (m *Manager) Buy(symbol string, amount decimal.Decimal) (model.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.run
	if r == nil || r.state != StateRunning {
		return model.TradeEvent{}, ErrNotRunning
	}
	price, ok := r.prices[symbol]
	if !ok {
		return model.TradeEvent{}, catalog.ErrUnknownSymbol
	}
	event, err := r.account.Buy(symbol, amount, price, time.Now())
	if err != nil {
		return model.TradeEvent{}, err
	}
	r.account.Snapshot(r.prices, event.Timestamp)
	r.events = append(r.events, event.Detail)
	return event, nil
}

// Sell liquidates scenario holdings at the current scenario price.
// Only valid while the run is Running.
func (m *Manager) Sell(symbol string, units decimal.Decimal) (model.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.run
	if r == nil || r.state != StateRunning {
		return model.TradeEvent{}, ErrNotRunning
	}
	price, ok := r.prices[symbol]
	if !ok {
		return model.TradeEvent{}, catalog.ErrUnknownSymbol
	}
	event, err := r.account.Sell(symbol, units, price, time.Now())
	if err != nil {
		return model.TradeEvent{}, err
	}
	r.account.Snapshot(r.prices, event.Timestamp)
	r.events = append(r.events, event.Detail)
	return event, nil
}

// Snapshot returns the current run state; with no run it reports
// NotStarted.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	r := m.run
	if r == nil {
		return Snapshot{State: StateNotStarted}
	}

	holdings := make(map[string]decimal.Decimal, len(r.account.Holdings))
	for symbol, units := range r.account.Holdings {
		holdings[symbol] = units
	}
	prices := make(map[string]decimal.Decimal, len(r.prices))
	for symbol, price := range r.prices {
		prices[symbol] = price
	}
	bulletin := make([]catalog.ScriptedEvent, len(r.bulletin))
	copy(bulletin, r.bulletin)
	events := make([]string, len(r.events))
	copy(events, r.events)
	trades := make([]model.TradeEvent, len(r.account.Trades))
	copy(trades, r.account.Trades)

	return Snapshot{
		State:          r.state,
		LevelID:        r.level.ID,
		RunID:          r.id,
		Tick:           r.tick,
		MaxTicks:       r.level.MaxTicks,
		StartBalance:   r.level.StartBalance,
		Balance:        r.account.Balance,
		PortfolioValue: r.account.Value(r.prices),
		Holdings:       holdings,
		Prices:         prices,
		Bulletin:       bulletin,
		Events:         events,
		Trades:         trades,
		Stars:          r.stars,
	}
}

// PriceHistory returns a copy of one level asset's scenario series.
func (m *Manager) PriceHistory(symbol string) ([]model.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.run == nil {
		return nil, ErrNotRunning
	}
	series, ok := m.run.history[symbol]
	if !ok {
		return nil, catalog.ErrUnknownSymbol
	}
	out := make([]model.PricePoint, len(series))
	copy(out, series)
	return out, nil
}

// PortfolioHistory returns a copy of the run's value series, optionally
// windowed to [from, to] (zero times mean unbounded). With no run the
// series is empty.
func (m *Manager) PortfolioHistory(from, to time.Time) []model.PricePoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.run == nil {
		return nil
	}
	out := make([]model.PricePoint, 0, len(m.run.account.Values))
	for _, p := range m.run.account.Values {
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
