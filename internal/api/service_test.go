package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/coincademy/sim-engine/internal/catalog"
	"github.com/coincademy/sim-engine/internal/model"
	"github.com/coincademy/sim-engine/internal/replay"
	"github.com/coincademy/sim-engine/internal/scenario"
	"github.com/coincademy/sim-engine/internal/sim"
	"github.com/coincademy/sim-engine/internal/store"
)

type testEnv struct {
	svc     *Service
	sandbox *sim.Engine
	lab     *sim.Engine
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	universe := make([]catalog.Asset, 0, 3)
	for _, symbol := range []string{"BTC", "ETH", "SOL"} {
		asset, err := catalog.Lookup(symbol)
		if err != nil {
			t.Fatalf("lookup %s: %v", symbol, err)
		}
		universe = append(universe, asset)
	}

	// Long intervals so background timers never fire during a test.
	sandbox := sim.New("sandbox", universe, decimal.NewFromInt(10000), time.Hour)
	lab := sim.New("lab", universe, decimal.NewFromInt(10000), time.Hour)
	rc := replay.New(time.Hour)
	sm := scenario.NewManager(func() string { return "run-test" })
	t.Cleanup(func() {
		rc.Stop()
		sm.Exit()
	})

	svc := NewService(sandbox, lab, rc, sm, store.NewMemoryStore(), nil)
	router := chi.NewRouter()
	router.Route("/api/v1", svc.Routes)

	return &testEnv{svc: svc, sandbox: sandbox, lab: lab, router: router}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
}

func TestListAssets(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/assets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var views []AssetView
	decodeJSON(t, rec, &views)
	if len(views) != len(catalog.Assets()) {
		t.Errorf("asset count = %d, want %d", len(views), len(catalog.Assets()))
	}
	for _, v := range views {
		if v.Symbol == "BTC" && !v.Price.IsPositive() {
			t.Errorf("BTC price = %s, want positive", v.Price)
		}
	}
}

func TestGetAssetHistory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/assets/BTC/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var series []model.PricePoint
	decodeJSON(t, rec, &series)
	if len(series) != model.HistoryLimit {
		t.Errorf("series length = %d, want %d", len(series), model.HistoryLimit)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/assets/NOPE/history", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown symbol status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/assets/BTC/history?mode=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d, want 400", rec.Code)
	}
}

func TestExecuteTrade_Buy(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/trade",
		`{"symbol":"BTC","side":"BUY","amount":500}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	var event model.TradeEvent
	decodeJSON(t, rec, &event)
	if event.Side != model.SideBuy || event.Symbol != "BTC" {
		t.Errorf("event = %+v", event)
	}
	if !event.Units.IsPositive() {
		t.Errorf("units = %s, want positive", event.Units)
	}

	snap := env.sandbox.Snapshot()
	if !snap.Balance.Equal(decimal.NewFromInt(9500)) {
		t.Errorf("balance = %s, want 9500", snap.Balance)
	}
}

func TestExecuteTrade_Rejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad side", `{"symbol":"BTC","side":"HOLD","amount":100}`, http.StatusBadRequest},
		{"negative amount", `{"symbol":"BTC","side":"BUY","amount":-5}`, http.StatusBadRequest},
		{"over balance", `{"symbol":"BTC","side":"BUY","amount":99999}`, http.StatusConflict},
		{"unknown symbol", `{"symbol":"NOPE","side":"BUY","amount":100}`, http.StatusNotFound},
		{"sell without holdings", `{"symbol":"ETH","side":"SELL","units":1}`, http.StatusConflict},
		{"unknown mode", `{"mode":"bogus","symbol":"BTC","side":"BUY","amount":100}`, http.StatusBadRequest},
		{"scenario not running", `{"mode":"scenario","symbol":"BTC","side":"BUY","amount":100}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodPost, "/api/v1/trade", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d\nbody: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	// None of the rejected trades may have touched the account.
	snap := env.sandbox.Snapshot()
	if !snap.Balance.Equal(decimal.NewFromInt(10000)) || len(snap.Trades) != 0 {
		t.Errorf("rejections mutated the account: balance=%s trades=%d", snap.Balance, len(snap.Trades))
	}
}

func TestGetPortfolio(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/portfolio?mode=lab", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap sim.Snapshot
	decodeJSON(t, rec, &snap)
	if snap.Mode != "lab" {
		t.Errorf("mode = %s, want lab", snap.Mode)
	}
	if !snap.Balance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("balance = %s, want 10000", snap.Balance)
	}
}

func TestGetPortfolioHistory_ScenarioMode(t *testing.T) {
	env := newTestEnv(t)

	// No run yet: the scenario series is empty, not an error.
	rec := env.do(t, http.MethodGet, "/api/v1/portfolio/history?mode=scenario", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var series []model.PricePoint
	decodeJSON(t, rec, &series)
	if len(series) != 0 {
		t.Errorf("series length = %d before any run, want 0", len(series))
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/scenario/start", `{"level_id":"first-rally"}`); rec.Code != http.StatusOK {
		t.Fatalf("scenario start failed: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/portfolio/history?mode=scenario", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	decodeJSON(t, rec, &series)
	if len(series) == 0 {
		t.Error("running scenario reported no portfolio-value points")
	}
}

func TestGetPortfolioHistory_BadWindow(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/portfolio/history?from=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReplay_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	// A fresh engine has a single portfolio-value point, too short to replay.
	rec := env.do(t, http.MethodPost, "/api/v1/replay/start", `{}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("short-series status = %d, want 409\nbody: %s", rec.Code, rec.Body.String())
	}

	now := time.Now()
	env.sandbox.Advance(now)
	env.sandbox.Advance(now.Add(time.Second))

	rec = env.do(t, http.MethodPost, "/api/v1/replay/start", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	var status replay.Status
	decodeJSON(t, rec, &status)
	if !status.Active || status.Total != 3 {
		t.Errorf("status after start = %+v", status)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/replay/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", rec.Code)
	}
	decodeJSON(t, rec, &status)
	if status.Active {
		t.Error("controller still active after stop")
	}

	// Stopping again is a safe no-op.
	if rec := env.do(t, http.MethodPost, "/api/v1/replay/stop", ""); rec.Code != http.StatusOK {
		t.Errorf("second stop status = %d, want 200", rec.Code)
	}
}

func TestScenario_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/scenario/start", `{"level_id":"no-such"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown level status = %d, want 404", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/scenario/start", `{"level_id":"first-rally"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	var snap scenario.Snapshot
	decodeJSON(t, rec, &snap)
	if snap.State != scenario.StateRunning || snap.LevelID != "first-rally" {
		t.Errorf("snapshot after start = %+v", snap)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/trade",
		`{"mode":"scenario","symbol":"BTC","side":"BUY","amount":1000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scenario trade status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/scenario", "")
	decodeJSON(t, rec, &snap)
	if !snap.Balance.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("scenario balance = %s, want 9000", snap.Balance)
	}

	// The live sandbox account is untouched by scenario trades.
	if bal := env.sandbox.Snapshot().Balance; !bal.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("sandbox balance = %s, want 10000", bal)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/scenario/exit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("exit status = %d, want 200", rec.Code)
	}
	decodeJSON(t, rec, &snap)
	if snap.State != scenario.StateNotStarted {
		t.Errorf("state after exit = %s, want not_started", snap.State)
	}
}

func TestListLevels(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/levels", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var levels []catalog.Level
	decodeJSON(t, rec, &levels)
	if len(levels) != len(catalog.Levels()) {
		t.Errorf("level count = %d, want %d", len(levels), len(catalog.Levels()))
	}
}

func TestLabBulletin(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPut, "/api/v1/lab/bulletin", `{"id":"no-such"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown bulletin status = %d, want 404", rec.Code)
	}

	items := catalog.Bulletins()
	rec := env.do(t, http.MethodPut, "/api/v1/lab/bulletin", `{"id":"`+items[0].ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	if snap := env.lab.Snapshot(); snap.Bulletin == nil || snap.Bulletin.ID != items[0].ID {
		t.Errorf("lab bulletin not applied: %+v", snap.Bulletin)
	}

	if rec := env.do(t, http.MethodPut, "/api/v1/lab/bulletin", `{"id":""}`); rec.Code != http.StatusOK {
		t.Errorf("clear status = %d, want 200", rec.Code)
	}
	if snap := env.lab.Snapshot(); snap.Bulletin != nil {
		t.Error("lab bulletin not cleared")
	}
}

func TestState_PutAndGet(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/v1/state/alice", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing state status = %d, want 404", rec.Code)
	}

	// Execute a trade first; the saved document must reflect it even
	// though the request body carries a stale sandbox slice.
	if rec := env.do(t, http.MethodPost, "/api/v1/trade",
		`{"symbol":"BTC","side":"BUY","amount":500}`); rec.Code != http.StatusOK {
		t.Fatalf("trade failed: %s", rec.Body.String())
	}

	body := `{"progress":{"intro":true},"sandbox":{"balance":"999999","holdings":{},"history":[]}}`
	rec := env.do(t, http.MethodPut, "/api/v1/state/alice", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/state/alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var state model.AppState
	decodeJSON(t, rec, &state)
	if !state.Progress["intro"] {
		t.Error("progress lost")
	}
	if !state.Sandbox.Balance.Equal(decimal.NewFromInt(9500)) {
		t.Errorf("persisted sandbox balance = %s, want 9500 from the live engine", state.Sandbox.Balance)
	}
	if len(state.Sandbox.History) != 1 {
		t.Errorf("persisted trade log length = %d, want 1", len(state.Sandbox.History))
	}
}

func TestStatusFor_UnmappedError(t *testing.T) {
	if got := statusFor(json.Unmarshal([]byte("{"), &struct{}{})); got != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", got)
	}
}
