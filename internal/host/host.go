// Package host defines the boundary to the charting library that builds the
// base chart. The engine only ever talks to it through these interfaces; the
// handle is injected, never looked up from a package global.
package host

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/logging"
)

// ErrNotReady is returned when no host handle appeared before polling gave up.
var ErrNotReady = errors.New("host library not ready")

// Projection modes understood by hosts.
const (
	ProjectionAiry            = "airy"
	ProjectionEquirectangular = "equirectangular"
)

// Config is the (re)initialization request for the host.
type Config struct {
	DataPath   string
	Lang       string
	Culture    catalog.Culture
	Width      int
	Projection string

	// What the host draws itself. Its own label layer stays off; overlay
	// labels are placed manually.
	ShowStars          bool
	ShowConstellations bool
	ShowMilkyWay       bool
	ShowPlanets        bool
	ShowLabels         bool
}

// Viewpoint is the instant and observer the host recomputes body positions for.
type Viewpoint struct {
	Date            time.Time
	Lat             float64
	Lon             float64
	TimezoneMinutes int
}

// Host is the charting library handle.
type Host interface {
	Initialize(cfg Config) error
	SetViewpoint(vp Viewpoint) error
}

// Projected is the host's placement of one point.
type Projected struct {
	X, Y    float64
	Visible bool // false when the point is projected but off the chart
}

// Projector is implemented by hosts that expose their own projection.
// ok is false only when the host cannot project at all (not initialized, no
// laid-out surface). A point below the chart edge is ok with Visible false.
type Projector interface {
	ProjectPoint(raDeg, decDeg float64) (p Projected, ok bool)
}

// Surface describes the rendering surface inside the container.
type Surface struct {
	Present bool
	Width   int
	Height  int
}

// Visible reports whether the surface exists with a non-trivial size.
func (s Surface) Visible() bool {
	return s.Present && s.Width > 1 && s.Height > 1
}

// Container is the display region the host renders into.
type Container interface {
	Surface() Surface
	Rebuild()
}

// Lookup returns the host handle, or false while it is not yet available.
type Lookup func() (Host, bool)

// Acquire polls lookup every interval until it yields a handle, attempts run
// out, or ctx is done. attempts <= 0 polls until ctx is done.
func Acquire(ctx context.Context, lookup Lookup, interval time.Duration, attempts int, logger *zap.Logger) (Host, error) {
	logger = logging.OrDiscard(logger)

	if h, ok := lookup(); ok {
		return h, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; attempts <= 0 || n < attempts; n++ {
		logger.Debug("host library not ready", zap.Int("attempt", n))
		select {
		case <-ctx.Done():
			return nil, ErrNotReady
		case <-ticker.C:
		}
		if h, ok := lookup(); ok {
			return h, nil
		}
	}
	return nil, ErrNotReady
}

// Static wraps an already available handle as a Lookup.
func Static(h Host) Lookup {
	return func() (Host, bool) {
		return h, h != nil
	}
}
