// Package projection maps celestial coordinates onto container pixels.
//
// The host's own projection is preferred whenever it yields finite output.
// Otherwise a local azimuthal approximation centred on the container is used:
//
//	S = 0.9 * min(W, H) / 2
//	x = W/2 - S cos(dec) sin(ra)
//	y = H/2 - S sin(dec)
//
// Points that land outside the container are not visible.
package projection

import (
	"math"
	"sync"

	"github.com/litescript/ls-skychart/internal/astro"
	"github.com/litescript/ls-skychart/internal/host"
)

// FillFactor is the share of the half-extent used by the fallback projection.
const FillFactor = 0.9

// Point is a container-relative pixel position.
type Point struct {
	X, Y float64
}

// Engine projects RA/Dec into the current container size.
type Engine struct {
	mu        sync.RWMutex
	projector host.Projector
	width     float64
	height    float64
}

// New creates an engine. projector may be nil.
func New(projector host.Projector, width, height int) *Engine {
	return &Engine{
		projector: projector,
		width:     float64(width),
		height:    float64(height),
	}
}

// SetSize updates the container size used by the fallback path.
func (e *Engine) SetSize(width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width = float64(width)
	e.height = float64(height)
}

// SetProjector swaps the host projector, e.g. after a reinitialization.
func (e *Engine) SetProjector(p host.Projector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.projector = p
}

// Size returns the container size.
func (e *Engine) Size() (float64, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.width, e.height
}

// Project converts ra/dec (degrees) into container pixels. ok is false when
// the point is not visible. The analytic fallback is used only when the host
// has no projection to offer; a host verdict of "off the chart" is final.
func (e *Engine) Project(raDeg, decDeg float64) (Point, bool) {
	e.mu.RLock()
	p, w, h := e.projector, e.width, e.height
	e.mu.RUnlock()

	if p != nil {
		if r, ok := p.ProjectPoint(raDeg, decDeg); ok {
			if !r.Visible {
				return Point{}, false
			}
			if finite(r.X) && finite(r.Y) {
				return Point{X: r.X, Y: r.Y}, true
			}
		}
	}
	return Fallback(raDeg, decDeg, w, h)
}

// Fallback is the local analytic projection.
func Fallback(raDeg, decDeg, width, height float64) (Point, bool) {
	if width <= 0 || height <= 0 || !finite(raDeg) || !finite(decDeg) {
		return Point{}, false
	}

	ra := raDeg * math.Pi / 180
	dec := decDeg * math.Pi / 180

	cx, cy := width/2, height/2
	s := FillFactor * math.Min(width, height) / 2

	pt := Point{
		X: cx - s*math.Cos(dec)*math.Sin(ra),
		Y: cy - s*math.Sin(dec),
	}
	if pt.X < 0 || pt.X > width || pt.Y < 0 || pt.Y > height {
		return Point{}, false
	}
	return pt, true
}

// ProjectEcliptic projects an ecliptic longitude on the ecliptic.
func (e *Engine) ProjectEcliptic(lonDeg float64) (Point, bool) {
	eq := astro.EclipticToEquatorial(lonDeg, 0)
	return e.Project(eq.RAdeg, eq.DecDeg)
}

// MansionCoords returns the 28 derived sector midpoints.
func (e *Engine) MansionCoords() []astro.MansionSector {
	return astro.Mansions()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
