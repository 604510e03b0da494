// Package replay plays back a captured portfolio-value series at a
// fixed cadence, independent of the live tick loop.
//
// State machine: Idle → Active → Idle. The controller owns a frozen
// copy of the series for the session's lifetime; the live engines keep
// mutating their own state in the background without affecting it.
package replay

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coincademy/sim-engine/internal/metrics"
	"github.com/coincademy/sim-engine/internal/model"
)

// DefaultCadence is the playback frame interval.
const DefaultCadence = 450 * time.Millisecond

// ErrInsufficientHistory is returned when a replay is started with
// fewer than two points in the filtered series.
var ErrInsufficientHistory = errors.New("replay: need at least 2 history points")

// Frame is one playback position handed to the render callback.
type Frame struct {
	Index  int                `json:"index"`
	Total  int                `json:"total"`
	Point  model.PricePoint   `json:"point"`
	Series []model.PricePoint `json:"-"`
	Done   bool               `json:"done"`
}

// Status is the controller state served to the view layer.
type Status struct {
	Active bool             `json:"active"`
	Index  int              `json:"index"`
	Total  int              `json:"total"`
	Point  model.PricePoint `json:"point,omitempty"`
}

// Controller runs at most one replay session at a time.
type Controller struct {
	cadence time.Duration

	mu     sync.Mutex
	active bool
	index  int
	series []model.PricePoint
	stopc  chan struct{}
	render func(Frame)
}

// New creates an idle controller. A non-positive cadence falls back to
// DefaultCadence.
func New(cadence time.Duration) *Controller {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Controller{cadence: cadence}
}

// OnFrame registers the render callback invoked at every playback step.
func (c *Controller) OnFrame(fn func(Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render = fn
}

// Start begins playback over a frozen copy of the given series.
// A series of fewer than two points fails with ErrInsufficientHistory
// and leaves the controller state unchanged. Starting while a session
// is active implicitly stops the prior session first.
func (c *Controller) Start(series []model.PricePoint) error {
	if len(series) < 2 {
		return ErrInsufficientHistory
	}

	c.Stop()

	c.mu.Lock()
	c.series = make([]model.PricePoint, len(series))
	copy(c.series, series)
	c.index = 0
	c.active = true
	c.stopc = make(chan struct{})
	stopc := c.stopc
	c.mu.Unlock()

	metrics.ReplaySessions.Inc()
	go c.loop(stopc)
	return nil
}

// Stop cancels playback and resets to Idle with an empty series.
// Idempotent: stopping an idle controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if !c.active {
		return
	}
	c.active = false
	close(c.stopc)
	c.series = nil
	c.index = 0
}

// Status returns the current playback position.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Active: c.active, Index: c.index, Total: len(c.series)}
	if c.active && c.index < len(c.series) {
		st.Point = c.series[c.index]
	}
	return st
}

func (c *Controller) loop(stopc chan struct{}) {
	ticker := time.NewTicker(c.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-stopc:
			return
		case <-ticker.C:
			frame, render, done := c.step(stopc)
			if render != nil {
				c.renderFrame(render, frame)
			}
			if done {
				return
			}
		}
	}
}

// step advances the playback index under the lock. The final frame
// (index == len-1) is still rendered, then the session transitions to
// Idle.
func (c *Controller) step(stopc chan struct{}) (Frame, func(Frame), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent Stop/Start may have retired this session.
	if !c.active || c.stopc != stopc {
		return Frame{}, nil, true
	}

	c.index++
	last := c.index >= len(c.series)-1
	if c.index > len(c.series)-1 {
		c.index = len(c.series) - 1
	}

	frame := Frame{
		Index:  c.index,
		Total:  len(c.series),
		Point:  c.series[c.index],
		Series: c.series,
		Done:   last,
	}

	if last {
		c.stopLocked()
	}
	return frame, c.render, last
}

// renderFrame invokes the render callback, swallowing panics so a
// broken consumer cannot kill playback mid-session.
func (c *Controller) renderFrame(render func(Frame), frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("replay render panicked", "panic", r)
		}
	}()
	render(frame)
}
