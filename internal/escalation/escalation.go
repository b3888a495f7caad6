// Package escalation verifies that the host produced a visible chart and
// retries with progressively more aggressive configurations when it did not.
//
//	Init -> Displayed -> VerifyVisible -> Done
//	                          |
//	                          +-> Escalate1 -> Displayed -> VerifyVisible -> Done
//	                                                             |
//	                                                             +-> Escalate2 -> Displayed -> VerifyVisible -> Done
//
// Each escalation tier runs at most once, so the machine always terminates.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/litescript/ls-skychart/internal/host"
	"github.com/litescript/ls-skychart/internal/logging"
)

// ErrRenderNotVisible is the degraded outcome once every tier is exhausted.
var ErrRenderNotVisible = errors.New("chart surface not visible after escalation")

// State is a controller state.
type State int

const (
	Init State = iota
	Displayed
	VerifyVisible
	Escalate1
	Escalate2
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Displayed:
		return "displayed"
	case VerifyVisible:
		return "verify-visible"
	case Escalate1:
		return "escalate-1"
	case Escalate2:
		return "escalate-2"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Defaults.
const (
	DefaultVerifyDelay = 300 * time.Millisecond
	DefaultMinWidth    = 640
)

// Plan is the configuration the controller escalates through.
type Plan struct {
	Base          host.Config // initial display
	AltProjection string      // tier 1 projection
	MinWidth      int         // tier 1 enforced width
	MirrorRoot    string      // tier 2 forced data root
	VerifyDelay   time.Duration
}

// Transition is one recorded state change.
type Transition struct {
	From, To State
	Note     string
}

// Outcome is the result of a run. Err is ErrRenderNotVisible when degraded or
// the context error when cancelled.
type Outcome struct {
	Visible bool
	Tier    State // the state whose display succeeded: Init, Escalate1 or Escalate2
	Config  host.Config
	Trace   []Transition
	Err     error
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Controller drives the state machine.
type Controller struct {
	host      host.Host
	container host.Container
	resync    func() error
	sleep     SleepFunc
	logger    *zap.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleep replaces the delay between display and verification.
func WithSleep(fn SleepFunc) Option {
	return func(c *Controller) {
		c.sleep = fn
	}
}

// WithResync sets the callback that pushes the current date and location
// back into the host after a tier-1 reinitialization.
func WithResync(fn func() error) Option {
	return func(c *Controller) {
		c.resync = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates a controller.
func New(h host.Host, container host.Container, opts ...Option) *Controller {
	c := &Controller{
		host:      h,
		container: container,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run executes the machine from Init until Done.
func (c *Controller) Run(ctx context.Context, plan Plan) Outcome {
	if plan.VerifyDelay <= 0 {
		plan.VerifyDelay = DefaultVerifyDelay
	}
	if plan.MinWidth <= 0 {
		plan.MinWidth = DefaultMinWidth
	}
	if plan.AltProjection == "" {
		plan.AltProjection = host.ProjectionEquirectangular
	}

	var (
		out     Outcome
		cfg     = plan.Base
		tier    = Init
		rebuilt bool
	)

	move := func(to State, note string) {
		c.mu.Lock()
		from := c.state
		c.state = to
		c.mu.Unlock()
		out.Trace = append(out.Trace, Transition{From: from, To: to, Note: note})
		c.logger.Debug("render state", zap.Stringer("from", from), zap.Stringer("to", to), zap.String("note", note))
	}

	c.mu.Lock()
	c.state = Init
	c.mu.Unlock()

	for c.State() != Done {
		switch c.State() {
		case Init:
			c.initialize(cfg)
			move(Displayed, "initial display")

		case Displayed:
			if err := c.sleep(ctx, plan.VerifyDelay); err != nil {
				out.Err = err
				move(Done, "cancelled")
				continue
			}
			move(VerifyVisible, "")

		case VerifyVisible:
			s := c.container.Surface()
			if s.Visible() {
				out.Visible = true
				out.Tier = tier
				move(Done, fmt.Sprintf("visible %dx%d", s.Width, s.Height))
				continue
			}

			switch tier {
			case Init:
				move(Escalate1, "not visible")
			case Escalate1:
				move(Escalate2, "still not visible")
			default:
				if s.Present && !rebuilt {
					// Surface exists but has no size: rebuild the container once.
					rebuilt = true
					c.container.Rebuild()
					c.initialize(cfg)
					move(Displayed, "rebuilt zero-size surface")
					continue
				}
				out.Err = ErrRenderNotVisible
				c.logger.Warn("chart not visible, continuing degraded",
					zap.Bool("surface", s.Present), zap.Int("width", s.Width), zap.Int("height", s.Height))
				move(Done, "exhausted")
			}

		case Escalate1:
			tier = Escalate1
			cfg.Projection = plan.AltProjection
			if cfg.Width < plan.MinWidth {
				cfg.Width = plan.MinWidth
			}
			c.initialize(cfg)
			if c.resync != nil {
				if err := c.resync(); err != nil {
					c.logger.Debug("viewpoint resync failed", zap.Error(err))
				}
			}
			move(Displayed, "alternate projection")

		case Escalate2:
			tier = Escalate2
			if plan.MirrorRoot != "" {
				cfg.DataPath = plan.MirrorRoot
			}
			c.initialize(cfg)
			move(Displayed, "forced mirror root")
		}
	}

	out.Config = cfg
	return out
}

func (c *Controller) initialize(cfg host.Config) {
	if err := c.host.Initialize(cfg); err != nil {
		c.logger.Debug("host initialize failed", zap.Error(err), zap.String("projection", cfg.Projection))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
