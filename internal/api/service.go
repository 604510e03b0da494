// Package api provides the HTTP handlers that expose the simulation to
// the view layer: asset and portfolio queries, trade execution, replay
// control, scenario control, and app-state persistence.
//
// The handlers hold no simulation state of their own; every request is
// dispatched to the owning component (sandbox engine, lab engine,
// replay controller, scenario manager, store).
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/coincademy/sim-engine/internal/catalog"
	"github.com/coincademy/sim-engine/internal/metrics"
	"github.com/coincademy/sim-engine/internal/model"
	"github.com/coincademy/sim-engine/internal/portfolio"
	"github.com/coincademy/sim-engine/internal/replay"
	"github.com/coincademy/sim-engine/internal/scenario"
	"github.com/coincademy/sim-engine/internal/sim"
	"github.com/coincademy/sim-engine/internal/store"
)

// Mode labels for the simulation surfaces.
const (
	ModeSandbox  = "sandbox"
	ModeLab      = "lab"
	ModeScenario = "scenario"
)

// Service routes view-layer intents into the simulation components.
type Service struct {
	sandbox   *sim.Engine
	lab       *sim.Engine
	replay    *replay.Controller
	scenarios *scenario.Manager
	store     store.Store
	hub       *WSHub
}

// NewService wires the simulation components behind the HTTP surface
// and subscribes the WebSocket hub to their update streams.
// Pass nil for hub if broadcasting is not needed.
func NewService(sandbox, lab *sim.Engine, rc *replay.Controller, sm *scenario.Manager, st store.Store, hub *WSHub) *Service {
	s := &Service{
		sandbox:   sandbox,
		lab:       lab,
		replay:    rc,
		scenarios: sm,
		store:     st,
		hub:       hub,
	}

	sandbox.OnTick(s.broadcastTick)
	lab.OnTick(s.broadcastTick)
	rc.OnFrame(s.broadcastFrame)
	sm.OnUpdate(s.broadcastScenario)

	return s
}

func (s *Service) broadcastTick(u sim.TickUpdate) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{
		Type:      "tick",
		Mode:      u.Mode,
		Value:     u.PortfolioValue.String(),
		Timestamp: u.Timestamp,
	})
}

func (s *Service) broadcastFrame(f replay.Frame) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{
		Type:      "replay_frame",
		Index:     f.Index,
		Total:     f.Total,
		Value:     f.Point.Value.String(),
		Timestamp: f.Point.Timestamp,
	})
}

func (s *Service) broadcastScenario(u scenario.Update) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{
		Type:      "scenario_tick",
		Mode:      ModeScenario,
		LevelID:   u.LevelID,
		Tick:      u.Tick,
		MaxTicks:  u.MaxTicks,
		State:     string(u.State),
		Value:     u.PortfolioValue.String(),
		Stars:     u.Stars,
		Timestamp: u.Timestamp,
	})
}

// engineFor maps a mode label to its live engine.
func (s *Service) engineFor(mode string) (*sim.Engine, bool) {
	switch mode {
	case "", ModeSandbox:
		return s.sandbox, true
	case ModeLab:
		return s.lab, true
	default:
		return nil, false
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /api/v1/trade.
// Buys spend Amount of cash; sells liquidate Units of holdings.
type TradeRequest struct {
	Mode   string          `json:"mode"` // sandbox (default), lab, scenario
	Symbol string          `json:"symbol"`
	Side   model.TradeSide `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	Units  decimal.Decimal `json:"units"`
}

// ReplayStartRequest optionally windows the replayed series.
type ReplayStartRequest struct {
	Mode string    `json:"mode"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ScenarioStartRequest selects the level to play.
type ScenarioStartRequest struct {
	LevelID string `json:"level_id"`
}

// AssetView is one row of GET /api/v1/assets.
type AssetView struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// --- HTTP Handlers ---

// ListAssets handles GET /api/v1/assets: the fixed universe with
// current sandbox prices.
func (s *Service) ListAssets(w http.ResponseWriter, r *http.Request) {
	snap := s.sandbox.Snapshot()

	views := make([]AssetView, 0, len(catalog.Assets()))
	for _, asset := range catalog.Assets() {
		views = append(views, AssetView{
			Symbol: asset.Symbol,
			Name:   asset.Name,
			Price:  snap.Prices[asset.Symbol],
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// GetAssetHistory handles GET /api/v1/assets/{symbol}/history.
// ?mode= selects sandbox (default), lab, or scenario series.
func (s *Service) GetAssetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	mode := r.URL.Query().Get("mode")

	var (
		series []model.PricePoint
		err    error
	)
	if mode == ModeScenario {
		series, err = s.scenarios.PriceHistory(symbol)
	} else {
		engine, ok := s.engineFor(mode)
		if !ok {
			writeError(w, "unknown mode: "+mode, http.StatusBadRequest)
			return
		}
		series, err = engine.PriceHistory(symbol)
	}
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// GetPortfolio handles GET /api/v1/portfolio (?mode=sandbox|lab).
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engineFor(r.URL.Query().Get("mode"))
	if !ok {
		writeError(w, "unknown mode", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, engine.Snapshot())
}

// GetPortfolioHistory handles GET /api/v1/portfolio/history
// (?mode= selects sandbox (default), lab, or scenario; ?from=, ?to= as
// RFC 3339).
func (s *Service) GetPortfolioHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == ModeScenario {
		writeJSON(w, http.StatusOK, s.scenarios.PortfolioHistory(from, to))
		return
	}
	engine, ok := s.engineFor(mode)
	if !ok {
		writeError(w, "unknown mode: "+mode, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, engine.PortfolioHistory(from, to))
}

// ExecuteTrade handles POST /api/v1/trade for all three modes.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		writeError(w, "side must be BUY or SELL", http.StatusBadRequest)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeSandbox
	}

	var (
		event model.TradeEvent
		err   error
	)
	switch {
	case mode == ModeScenario && req.Side == model.SideBuy:
		event, err = s.scenarios.Buy(req.Symbol, req.Amount)
	case mode == ModeScenario:
		event, err = s.scenarios.Sell(req.Symbol, req.Units)
	default:
		engine, ok := s.engineFor(mode)
		if !ok {
			writeError(w, "unknown mode: "+mode, http.StatusBadRequest)
			return
		}
		if req.Side == model.SideBuy {
			event, err = engine.Buy(req.Symbol, req.Amount)
		} else {
			event, err = engine.Sell(req.Symbol, req.Units)
		}
	}

	if err != nil {
		metrics.TradeRejections.WithLabelValues(mode).Inc()
		writeError(w, err.Error(), statusFor(err))
		return
	}

	metrics.TradesTotal.WithLabelValues(mode, string(event.Side)).Inc()
	slog.Info("trade executed",
		"trade_id", event.ID,
		"mode", mode,
		"symbol", event.Symbol,
		"side", event.Side,
		"units", event.Units.String(),
		"amount", event.Amount.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:      "trade",
			Mode:      mode,
			Symbol:    event.Symbol,
			Side:      string(event.Side),
			Value:     event.Amount.String(),
			Timestamp: event.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, event)
}

// StartReplay handles POST /api/v1/replay/start.
func (s *Service) StartReplay(w http.ResponseWriter, r *http.Request) {
	var req ReplayStartRequest
	if r.Body != nil {
		// An empty body replays the full sandbox series.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	engine, ok := s.engineFor(req.Mode)
	if !ok {
		writeError(w, "unknown mode: "+req.Mode, http.StatusBadRequest)
		return
	}

	series := engine.PortfolioHistory(req.From, req.To)
	if err := s.replay.Start(series); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, s.replay.Status())
}

// StopReplay handles POST /api/v1/replay/stop. Stopping an idle
// controller is a no-op and still returns 200.
func (s *Service) StopReplay(w http.ResponseWriter, r *http.Request) {
	s.replay.Stop()
	writeJSON(w, http.StatusOK, s.replay.Status())
}

// GetReplay handles GET /api/v1/replay.
func (s *Service) GetReplay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.replay.Status())
}

// ListLevels handles GET /api/v1/levels.
func (s *Service) ListLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Levels())
}

// StartScenario handles POST /api/v1/scenario/start.
func (s *Service) StartScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := s.scenarios.Start(req.LevelID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ExitScenario handles POST /api/v1/scenario/exit.
func (s *Service) ExitScenario(w http.ResponseWriter, r *http.Request) {
	s.scenarios.Exit()
	writeJSON(w, http.StatusOK, s.scenarios.Snapshot())
}

// GetScenario handles GET /api/v1/scenario.
func (s *Service) GetScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scenarios.Snapshot())
}

// ListBulletins handles GET /api/v1/bulletins.
func (s *Service) ListBulletins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Bulletins())
}

// SetLabBulletin handles PUT /api/v1/lab/bulletin: activates a bulletin
// whose drift biases the lab engine's ticks. An empty id clears it.
func (s *Service) SetLabBulletin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		s.lab.SetBulletin(nil)
		writeJSON(w, http.StatusOK, map[string]string{"bulletin": ""})
		return
	}

	item, ok := catalog.BulletinByID(req.ID)
	if !ok {
		writeError(w, "bulletin not found: "+req.ID, http.StatusNotFound)
		return
	}
	s.lab.SetBulletin(&item)
	writeJSON(w, http.StatusOK, item)
}

// GetState handles GET /api/v1/state/{userID}.
func (s *Service) GetState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	state, err := s.store.LoadState(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "state not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// PutState handles PUT /api/v1/state/{userID}. The engine overwrites
// the sandbox and lab slices with its live portfolios before saving so
// the persisted document always reflects executed trades.
func (s *Service) PutState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var state model.AppState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	state.Sandbox = s.sandbox.Doc()
	state.MarketLab = s.lab.Doc()

	if err := s.store.SaveState(r.Context(), userID, &state); err != nil {
		writeError(w, "failed to save state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Routes mounts all API handlers on the given router.
func (s *Service) Routes(r chi.Router) {
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Get("/assets", s.ListAssets)
	r.Get("/assets/{symbol}/history", s.GetAssetHistory)

	r.Get("/portfolio", s.GetPortfolio)
	r.Get("/portfolio/history", s.GetPortfolioHistory)
	r.Post("/trade", s.ExecuteTrade)

	r.Post("/replay/start", s.StartReplay)
	r.Post("/replay/stop", s.StopReplay)
	r.Get("/replay", s.GetReplay)

	r.Get("/levels", s.ListLevels)
	r.Post("/scenario/start", s.StartScenario)
	r.Post("/scenario/exit", s.ExitScenario)
	r.Get("/scenario", s.GetScenario)

	r.Get("/bulletins", s.ListBulletins)
	r.Put("/lab/bulletin", s.SetLabBulletin)

	r.Get("/state/{userID}", s.GetState)
	r.Put("/state/{userID}", s.PutState)
}

// statusFor maps sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownSymbol),
		errors.Is(err, scenario.ErrUnknownLevel):
		return http.StatusNotFound
	case errors.Is(err, portfolio.ErrInvalidAmount),
		errors.Is(err, portfolio.ErrInvalidUnits):
		return http.StatusBadRequest
	case errors.Is(err, portfolio.ErrInsufficientBalance),
		errors.Is(err, portfolio.ErrInsufficientUnits),
		errors.Is(err, portfolio.ErrPriceUnavailable),
		errors.Is(err, replay.ErrInsufficientHistory),
		errors.Is(err, scenario.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseWindow(r *http.Request) (from, to time.Time, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from timestamp")
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to timestamp")
		}
	}
	return from, to, nil
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
