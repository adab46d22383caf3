// Package flip drives the page-turn animation: a drag-gated state machine
// over Idle, Dragging and Settling, whose completion commits the new spread
// into the shared store and extends the render lookahead.
package flip

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/wudi/flipbook/observability"
	"github.com/wudi/flipbook/render"
	"github.com/wudi/flipbook/state"
)

// State is the controller's animation state.
type State int

const (
	Idle State = iota
	Dragging
	Settling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Settling:
		return "settling"
	default:
		return "unknown"
	}
}

// DefaultSettleDuration is the fixed duration of the settle transition.
const DefaultSettleDuration = 400 * time.Millisecond

// Config controls a Controller.
type Config struct {
	Store    *state.Store
	Pipeline *render.Pipeline

	// SettleDuration is the fixed length of the settle transition.
	// Defaults to DefaultSettleDuration.
	SettleDuration time.Duration

	Logger observability.Logger
}

// Controller is the flip animation state machine. Progress runs in [-1, 1]:
// positive values turn forward to the next spread, negative values turn
// backward. A settle eases the progress to its nearest terminal; reaching a
// non-zero terminal commits the adjacent spread.
type Controller struct {
	store    *state.Store
	pipeline *render.Pipeline
	duration time.Duration
	logger   observability.Logger

	mu         sync.Mutex
	st         State
	width      float64
	originX    float64
	progress   float64
	settleFrom float64
	target     float64
	elapsed    time.Duration
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Store == nil || cfg.Pipeline == nil {
		return nil, errors.New("store and pipeline required")
	}
	if cfg.SettleDuration <= 0 {
		cfg.SettleDuration = DefaultSettleDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &Controller{
		store:    cfg.Store,
		pipeline: cfg.Pipeline,
		duration: cfg.SettleDuration,
		logger:   cfg.Logger,
	}, nil
}

// State returns the current animation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// Progress returns the current turn progress in [-1, 1].
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// BeginDrag starts a horizontal drag at position x over a page of the given
// width. It is refused while the view is zoomed in or no document is
// installed. Starting a drag cancels an in-flight settle and continues from
// its current progress.
func (c *Controller) BeginDrag(x, width float64) bool {
	if c.store.Zoomed() || c.store.Document() == nil || width <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.width = width
	if c.st == Settling {
		// Resume from the interrupted settle without a visual jump.
		c.originX = x + c.progress*width
	} else {
		c.originX = x
		c.progress = 0
	}
	c.st = Dragging
	return true
}

// Drag updates the turn progress from the pointer position. Dragging left
// turns forward.
func (c *Controller) Drag(x float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != Dragging {
		return
	}
	c.progress = clamp(-(x-c.originX)/c.width, -1, 1)
}

// EndDrag finishes the gesture and enters the settle transition toward the
// nearest terminal. Turns past the first or last spread settle back to 0.
func (c *Controller) EndDrag() {
	committed := c.store.CommittedSpread()
	spreads := c.store.SpreadCount()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != Dragging {
		return
	}

	target := 0.0
	if math.Abs(c.progress) >= 0.5 {
		target = math.Copysign(1, c.progress)
	}
	if target > 0 && committed >= spreads-1 {
		target = 0
	}
	if target < 0 && committed <= 0 {
		target = 0
	}

	c.st = Settling
	c.settleFrom = c.progress
	c.target = target
	c.elapsed = 0
}

// Advance steps an in-flight settle by dt. On reaching a turned terminal it
// commits the adjacent spread and invokes the render pipeline to extend the
// lookahead window; render errors surface to the caller independently of the
// animation, which still completes.
func (c *Controller) Advance(ctx context.Context, dt time.Duration) error {
	c.mu.Lock()
	if c.st != Settling {
		c.mu.Unlock()
		return nil
	}
	c.elapsed += dt
	t := float64(c.elapsed) / float64(c.duration)
	if t > 1 {
		t = 1
	}
	c.progress = c.settleFrom + (c.target-c.settleFrom)*easeOutCubic(t)
	if t < 1 {
		c.mu.Unlock()
		return nil
	}

	target := c.target
	c.st = Idle
	c.progress = 0
	c.mu.Unlock()

	if target == 0 {
		// Gesture reverted: no position or cache change.
		c.store.SetSettled(true)
		return nil
	}

	next := c.store.CommittedSpread()
	if target > 0 {
		next++
	} else {
		next--
	}
	c.store.CommitSpread(next)
	c.store.SetSettled(true)
	c.logger.Debug("page turned", observability.Int("spread", next))

	if err := c.pipeline.LoadPages(ctx, next, render.NoTarget); err != nil {
		return err
	}
	return nil
}

// Cancel aborts any drag or settle without committing a turn.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st = Idle
	c.progress = 0
}

func easeOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
