// Package interaction implements hover tooltips, the click detail panel and
// search highlighting over the overlay markers.
package interaction

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/overlay"
	"github.com/litescript/ls-skychart/internal/projection"
)

// Defaults.
const (
	DefaultHitRadius = 6
	TooltipDX        = 10
	TooltipDY        = -10
)

// Index resolves pointer positions to markers and restyles them.
type Index interface {
	HitTest(x, y, radius float64) (overlay.Placed, bool)
	SetEmphasis(match func(catalog.CatalogEntry) bool)
}

// Path is a hover-only polyline, such as the ecliptic. It shows a tooltip
// but never opens the detail panel.
type Path struct {
	Entry  catalog.CatalogEntry
	Points []projection.Point
}

// near reports whether (x, y) lies within radius of any segment.
func (p Path) near(x, y, radius float64) bool {
	for i := 1; i < len(p.Points); i++ {
		if segmentDistance(x, y, p.Points[i-1], p.Points[i]) <= radius {
			return true
		}
	}
	return len(p.Points) == 1 && math.Hypot(x-p.Points[0].X, y-p.Points[0].Y) <= radius
}

func segmentDistance(x, y float64, a, b projection.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(x-a.X, y-a.Y)
	}
	t := min(max(((x-a.X)*dx+(y-a.Y)*dy)/l2, 0), 1)
	return math.Hypot(x-(a.X+t*dx), y-(a.Y+t*dy))
}

// target is whatever lies under the pointer.
type target struct {
	id, text string
	at       projection.Point
}

// Tooltip is the floating hover label.
type Tooltip struct {
	Visible bool
	ID      string
	X, Y    float64 // container-relative
	Text    string
}

// Detail is the fixed-position metadata panel.
type Detail struct {
	Open  bool
	ID    string
	Layer string
	Name  string
	Entry catalog.CatalogEntry
}

// Lines formats the panel body.
func (d Detail) Lines() []string {
	if !d.Open {
		return nil
	}
	e := d.Entry
	lines := []string{
		"ID: " + e.ID,
		"Name: " + d.Name,
	}
	if names := e.AllNames(); len(names) > 1 {
		lines = append(lines, "Also: "+strings.Join(names, ", "))
	}
	if e.HasMag() {
		lines = append(lines, fmt.Sprintf("Magnitude: %.2f", e.Mag))
	} else {
		lines = append(lines, "Magnitude: -")
	}
	if e.Coord != nil {
		lines = append(lines, fmt.Sprintf("RA %.3f°  Dec %+.3f°", e.Coord.RAdeg, e.Coord.DecDeg))
	}
	if e.Meaning != "" {
		lines = append(lines, "Meaning: "+e.Meaning)
	}
	if len(e.Tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(e.Tags, ", "))
	}
	if len(e.References) > 0 {
		lines = append(lines, "Sources: "+strings.Join(e.References, "; "))
	}
	return lines
}

// Layer holds the interaction state for one engine instance.
type Layer struct {
	index Index

	mu        sync.Mutex
	attached  bool
	culture   catalog.Culture
	hitRadius float64
	tipDX     float64
	tipDY     float64
	width     float64
	height    float64
	tooltip   Tooltip
	detail    Detail
	query     string
	paths     []Path
}

// New creates a detached layer over index.
func New(index Index, culture catalog.Culture) *Layer {
	return &Layer{
		index:     index,
		culture:   culture,
		hitRadius: DefaultHitRadius,
		tipDX:     TooltipDX,
		tipDY:     TooltipDY,
	}
}

// SetTooltipOffset moves the tooltip relative to its anchor.
func (l *Layer) SetTooltipOffset(dx, dy float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tipDX, l.tipDY = dx, dy
}

// SetHitRadius sets the pointer tolerance in pixels.
func (l *Layer) SetHitRadius(r float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r > 0 {
		l.hitRadius = r
	}
}

// SetBounds sets the container size tooltips are kept inside. Zero disables
// clamping.
func (l *Layer) SetBounds(width, height float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.width, l.height = width, height
}

// SetPaths replaces the hover-only polylines. Markers win over paths.
func (l *Layer) SetPaths(paths ...Path) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = paths
}

// SetCulture changes which name tooltips show.
func (l *Layer) SetCulture(c catalog.Culture) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.culture = c
}

// Attach starts handling events.
func (l *Layer) Attach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attached = true
}

// Detach stops handling events, hides the tooltip, closes the panel and
// clears search emphasis.
func (l *Layer) Detach() {
	l.mu.Lock()
	wasQuery := l.query != ""
	l.attached = false
	l.tooltip = Tooltip{}
	l.detail = Detail{}
	l.query = ""
	l.mu.Unlock()

	if wasQuery {
		l.index.SetEmphasis(nil)
	}
}

// Attached reports whether events are handled.
func (l *Layer) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attached
}

// Hover handles the pointer entering (x, y). A marker's tooltip is anchored
// to the marker's own position; a path's to the pointer.
func (l *Layer) Hover(x, y float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.attached {
		return false
	}

	tg, ok := l.hitLocked(x, y)
	if !ok {
		l.tooltip = Tooltip{}
		return false
	}
	l.tooltip = Tooltip{
		Visible: true,
		ID:      tg.id,
		Text:    tg.text,
	}
	l.tooltip.X, l.tooltip.Y = l.clamp(tg.at.X+l.tipDX, tg.at.Y+l.tipDY)
	return true
}

func (l *Layer) hitLocked(x, y float64) (target, bool) {
	if p, ok := l.index.HitTest(x, y, l.hitRadius); ok {
		return target{id: p.ID, text: p.Entry.BestName(l.culture), at: p.At}, true
	}
	for _, path := range l.paths {
		if path.near(x, y, l.hitRadius) {
			return target{
				id:   path.Entry.ID,
				text: path.Entry.BestName(l.culture),
				at:   projection.Point{X: x, Y: y},
			}, true
		}
	}
	return target{}, false
}

// Move repositions the tooltip with the pointer, switching target or hiding
// it when the pointer leaves the marker.
func (l *Layer) Move(x, y float64) bool {
	l.mu.Lock()
	if !l.attached {
		l.mu.Unlock()
		return false
	}
	tg, ok := l.hitLocked(x, y)
	if ok && l.tooltip.Visible && tg.id == l.tooltip.ID {
		l.tooltip.X, l.tooltip.Y = l.clamp(x+l.tipDX, y+l.tipDY)
		l.mu.Unlock()
		return true
	}
	l.mu.Unlock()

	if !ok {
		l.Leave()
		return false
	}
	return l.Hover(x, y)
}

// Leave hides the tooltip.
func (l *Layer) Leave() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tooltip = Tooltip{}
}

// Click opens the detail panel for the marker at (x, y).
func (l *Layer) Click(x, y float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.attached {
		return false
	}

	p, ok := l.index.HitTest(x, y, l.hitRadius)
	if !ok {
		return false
	}
	l.detail = Detail{
		Open:  true,
		ID:    p.ID,
		Layer: p.Layer,
		Name:  p.Entry.BestName(l.culture),
		Entry: p.Entry,
	}
	return true
}

// Close closes the detail panel.
func (l *Layer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detail = Detail{}
}

// Escape closes the panel if open, otherwise hides the tooltip.
func (l *Layer) Escape() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detail.Open {
		l.detail = Detail{}
		return
	}
	l.tooltip = Tooltip{}
}

// Search emphasizes markers whose identifier or any name contains q,
// case-insensitively, and dims the rest. An empty query restores all.
func (l *Layer) Search(q string) {
	q = strings.ToLower(strings.TrimSpace(q))

	l.mu.Lock()
	if !l.attached {
		l.mu.Unlock()
		return
	}
	l.query = q
	l.mu.Unlock()

	if q == "" {
		l.index.SetEmphasis(nil)
		return
	}
	l.index.SetEmphasis(func(e catalog.CatalogEntry) bool {
		return Matches(e, q)
	})
}

// Query returns the active search query.
func (l *Layer) Query() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Matches reports whether an entry's id or any name contains the lowercase
// query.
func Matches(e catalog.CatalogEntry, q string) bool {
	if strings.Contains(strings.ToLower(e.ID), q) {
		return true
	}
	for _, n := range e.Names {
		if strings.Contains(strings.ToLower(n), q) {
			return true
		}
	}
	return false
}

// Tooltip returns the tooltip state.
func (l *Layer) Tooltip() Tooltip {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tooltip
}

// Detail returns the panel state.
func (l *Layer) Detail() Detail {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.detail
}

func (l *Layer) clamp(x, y float64) (float64, float64) {
	if l.width > 0 {
		x = min(max(x, 0), l.width)
	}
	if l.height > 0 {
		y = min(max(y, 0), l.height)
	}
	return x, y
}
