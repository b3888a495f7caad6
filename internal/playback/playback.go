// Package playback drives the chart's time-travel mode.
//
// While playing, a single ticker maps elapsed wall time onto simulated time:
//
//	simulated = simAnchor + (now - realAnchor) * speed
//
// and pushes the result into the host. Changing speed captures a fresh anchor
// pair so already elapsed simulated time is never rescaled.
package playback

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/litescript/ls-skychart/internal/clock"
	"github.com/litescript/ls-skychart/internal/host"
	"github.com/litescript/ls-skychart/internal/logging"
)

// DefaultInterval is the tick period.
const DefaultInterval = 250 * time.Millisecond

// Speed is the simulated seconds per real second.
type Speed int64

const (
	RealTime        Speed = 1
	MinutePerSecond Speed = 60
	HourPerSecond   Speed = 3600
	DayPerSecond    Speed = 86400
)

var speeds = []Speed{RealTime, MinutePerSecond, HourPerSecond, DayPerSecond}

// Speeds returns the selectable speeds, slowest first.
func Speeds() []Speed {
	out := make([]Speed, len(speeds))
	copy(out, speeds)
	return out
}

// Valid reports whether s is one of the selectable speeds.
func (s Speed) Valid() bool {
	for _, known := range speeds {
		if s == known {
			return true
		}
	}
	return false
}

// Next returns the following speed, wrapping around.
func (s Speed) Next() Speed {
	for i, known := range speeds {
		if s == known {
			return speeds[(i+1)%len(speeds)]
		}
	}
	return RealTime
}

func (s Speed) String() string {
	switch s {
	case RealTime:
		return "1x"
	case MinutePerSecond:
		return "1 min/s"
	case HourPerSecond:
		return "1 h/s"
	case DayPerSecond:
		return "1 d/s"
	default:
		return fmt.Sprintf("%dx", int64(s))
	}
}

// ParseSpeed accepts the String forms plus "realtime", "minute", "hour", "day".
func ParseSpeed(s string) (Speed, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1x", "1", "realtime":
		return RealTime, nil
	case "1 min/s", "60", "minute":
		return MinutePerSecond, nil
	case "1 h/s", "3600", "hour":
		return HourPerSecond, nil
	case "1 d/s", "86400", "day":
		return DayPerSecond, nil
	}
	return 0, fmt.Errorf("unknown playback speed %q", s)
}

// Location is the fixed observer pushed with every tick.
type Location struct {
	Lat             float64
	Lon             float64
	TimezoneMinutes int
}

// run is the live PlaybackState. It exists only while playing.
type run struct {
	realAnchor time.Time
	simAnchor  time.Time
	stop       chan struct{}
	done       chan struct{}
}

// Controller is the play/pause state machine.
type Controller struct {
	host     host.Host
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
	onTick   func(time.Time)

	mu      sync.Mutex
	speed   Speed
	loc     Location
	current time.Time
	active  *run
	pushes  int
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(p *Controller) {
		p.clock = c
	}
}

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(p *Controller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithOnTick registers an observer called after every push, from the ticker
// goroutine. It must not block on anything that calls Pause.
func WithOnTick(fn func(time.Time)) Option {
	return func(p *Controller) {
		p.onTick = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Controller) {
		p.logger = logger
	}
}

// New creates a stopped controller pushing into h.
func New(h host.Host, loc Location, opts ...Option) *Controller {
	p := &Controller{
		host:     h,
		clock:    clock.Real(),
		interval: DefaultInterval,
		speed:    RealTime,
		loc:      loc,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDiscard(p.logger)
	p.current = p.clock.Now()
	return p
}

// Play starts playback from the currently displayed date. It reports false
// when already playing.
func (p *Controller) Play(displayed time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil {
		return false
	}

	r := &run{
		realAnchor: p.clock.Now(),
		simAnchor:  displayed,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	p.active = r
	p.current = displayed

	ticker := p.clock.NewTicker(p.interval)
	go p.loop(r, ticker)

	p.logger.Debug("playback started", zap.Time("from", displayed), zap.Stringer("speed", p.speed))
	return true
}

// Pause stops playback. When Pause returns no further viewpoint push will
// happen. Pausing while stopped is a no-op.
func (p *Controller) Pause() {
	p.mu.Lock()
	r := p.active
	if r != nil {
		p.current = p.simulatedLocked(r, p.clock.Now())
	}
	p.active = nil
	p.mu.Unlock()

	if r == nil {
		return
	}
	close(r.stop)
	<-r.done

	p.logger.Debug("playback paused")
}

// Toggle plays from displayed or pauses.
func (p *Controller) Toggle(displayed time.Time) bool {
	if p.Playing() {
		p.Pause()
		return false
	}
	return p.Play(displayed)
}

// Close stops playback. Safe to call more than once.
func (p *Controller) Close() {
	p.Pause()
}

// Playing reports whether a run is active.
func (p *Controller) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// Speed returns the current multiplier.
func (p *Controller) Speed() Speed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// SetSpeed changes the multiplier. While playing, anchors are recaptured at
// the moment of change.
func (p *Controller) SetSpeed(s Speed) {
	if !s.Valid() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if r := p.active; r != nil {
		now := p.clock.Now()
		r.simAnchor = p.simulatedLocked(r, now)
		r.realAnchor = now
	}
	p.speed = s
}

// SetLocation changes the pushed observer.
func (p *Controller) SetLocation(loc Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loc = loc
}

// Current returns the simulated date currently displayed.
func (p *Controller) Current() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return p.simulatedLocked(p.active, p.clock.Now())
	}
	return p.current
}

// Pushes returns the number of viewpoint pushes so far.
func (p *Controller) Pushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes
}

func (p *Controller) simulatedLocked(r *run, now time.Time) time.Time {
	return advance(r.simAnchor, now.Sub(r.realAnchor), p.speed)
}

// advance returns anchor moved by elapsed real time at speed s. The scaled
// span can pass the ~292 year range of time.Duration, so whole seconds are
// carried as Unix seconds and only the sub-second part is scaled as a Duration.
func advance(anchor time.Time, elapsed time.Duration, s Speed) time.Time {
	secs := int64(elapsed/time.Second) * int64(s)
	frac := time.Duration(int64(elapsed%time.Second) * int64(s))
	return time.Unix(anchor.Unix()+secs, int64(anchor.Nanosecond())).Add(frac).In(anchor.Location())
}

func (p *Controller) loop(r *run, ticker clock.Ticker) {
	defer close(r.done)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C():
			p.tick(r)
		}
	}
}

func (p *Controller) tick(r *run) {
	p.mu.Lock()
	if p.active != r {
		p.mu.Unlock()
		return
	}
	sim := p.simulatedLocked(r, p.clock.Now())
	p.current = sim
	p.pushes++
	vp := host.Viewpoint{
		Date:            sim,
		Lat:             p.loc.Lat,
		Lon:             p.loc.Lon,
		TimezoneMinutes: p.loc.TimezoneMinutes,
	}
	p.mu.Unlock()

	if err := p.host.SetViewpoint(vp); err != nil {
		p.logger.Debug("viewpoint push failed", zap.Error(err))
	}
	if p.onTick != nil {
		p.onTick(sim)
	}
}
