// Package overlay draws the supplementary star and mansion layers on top of
// the host chart.
//
// Every Draw clears its own layer first, so repeated draws never accumulate
// markers. Labels are placed manually at a fixed pixel offset from their
// marker. The renderer keeps its own id -> entry index; hit tests never read
// anything back from the surface.
package overlay

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/litescript/ls-skychart/internal/astro"
	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/logging"
	"github.com/litescript/ls-skychart/internal/projection"
)

// Layer names.
const (
	LayerStars    = "overlay-stars"
	LayerMansions = "overlay-mansions"
)

// Default label offset from its marker, in pixels.
const (
	DefaultLabelDX = 6
	DefaultLabelDY = -4
)

// ErrNoCoordinates means an entry has no position and the base-catalog join
// found none either.
var ErrNoCoordinates = errors.New("entry has no coordinates")

// Projector maps RA/Dec onto the surface.
type Projector interface {
	Project(raDeg, decDeg float64) (projection.Point, bool)
}

// Options controls one Draw.
type Options struct {
	Culture catalog.Culture
	// MagLimit hides entries fainter than the limit. Zero disables it.
	MagLimit float64
	// HideLabels draws markers only.
	HideLabels bool
}

// Stats summarizes one Draw.
type Stats struct {
	Drawn      int
	Joined     int // positioned through the base catalog
	JoinMisses int
	Filtered   int // fainter than MagLimit
	Offscreen  int
}

// Placed is a drawn marker.
type Placed struct {
	ID    string
	Layer string
	At    projection.Point
	Name  string
	Entry catalog.CatalogEntry
}

type layerState struct {
	entries map[string]catalog.CatalogEntry
	placed  []Placed
	stats   Stats

	source []catalog.CatalogEntry
	opts   Options
}

// Renderer owns the overlay layers.
type Renderer struct {
	mu      sync.RWMutex
	surface Surface
	proj    Projector
	base    catalog.BaseIndex
	logger  *zap.Logger

	labelDX, labelDY float64

	layers   map[string]*layerState
	emphasis func(catalog.CatalogEntry) bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLabelOffset overrides the label pixel delta.
func WithLabelOffset(dx, dy float64) Option {
	return func(r *Renderer) {
		r.labelDX, r.labelDY = dx, dy
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// NewRenderer creates a renderer drawing onto surface.
func NewRenderer(surface Surface, proj Projector, opts ...Option) *Renderer {
	r := &Renderer{
		surface: surface,
		proj:    proj,
		labelDX: DefaultLabelDX,
		labelDY: DefaultLabelDY,
		layers:  make(map[string]*layerState),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// SetBaseIndex sets the base catalog used for the coordinate join.
func (r *Renderer) SetBaseIndex(idx catalog.BaseIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base = idx
}

// Draw clears layer and draws entries into it.
func (r *Renderer) Draw(layer string, entries []catalog.CatalogEntry, opts Options) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawLocked(layer, entries, opts)
}

func (r *Renderer) drawLocked(layer string, entries []catalog.CatalogEntry, opts Options) Stats {
	r.surface.ClearLayer(layer)

	ls := &layerState{
		entries: make(map[string]catalog.CatalogEntry, len(entries)),
		source:  entries,
		opts:    opts,
	}
	r.layers[layer] = ls

	for i, e := range entries {
		coord, joined, err := r.resolveCoord(e)
		if err != nil {
			ls.stats.JoinMisses++
			continue
		}
		if opts.MagLimit != 0 && e.HasMag() && e.Mag > opts.MagLimit {
			ls.stats.Filtered++
			continue
		}
		pt, ok := r.proj.Project(coord.RAdeg, coord.DecDeg)
		if !ok {
			ls.stats.Offscreen++
			continue
		}
		if joined {
			ls.stats.Joined++
			e.Coord = &catalog.Coord{RAdeg: coord.RAdeg, DecDeg: coord.DecDeg}
		}

		id := e.ID
		if _, dup := ls.entries[id]; dup || id == "" {
			id = fmt.Sprintf("%s#%d", e.ID, i)
		}
		name := e.BestName(opts.Culture)
		style := r.styleFor(e)

		r.surface.AddMarker(layer, Marker{ID: id, X: pt.X, Y: pt.Y, Mag: e.Mag, Style: style})
		if !opts.HideLabels {
			r.surface.AddLabel(layer, Label{
				ID:    id,
				X:     pt.X + r.labelDX,
				Y:     pt.Y + r.labelDY,
				Text:  name,
				Style: style,
			})
		}

		ls.entries[id] = e
		ls.placed = append(ls.placed, Placed{ID: id, Layer: layer, At: pt, Name: name, Entry: e})
		ls.stats.Drawn++
	}

	if ls.stats.JoinMisses > 0 {
		r.logger.Debug("overlay entries without coordinates skipped",
			zap.String("layer", layer), zap.Int("count", ls.stats.JoinMisses))
	}
	return ls.stats
}

// resolveCoord returns the entry's own coordinate or the base-catalog match
// for its numeric identifier.
func (r *Renderer) resolveCoord(e catalog.CatalogEntry) (catalog.Coord, bool, error) {
	if e.Coord != nil {
		return *e.Coord, false, nil
	}
	if c, ok := r.base.Lookup(e.NumericID); ok {
		return c, true, nil
	}
	return catalog.Coord{}, false, fmt.Errorf("%s: %w", e.ID, ErrNoCoordinates)
}

// DrawMansions draws the 28 sector midpoints into the mansion layer.
func (r *Renderer) DrawMansions(sectors []astro.MansionSector, culture catalog.Culture) Stats {
	entries := make([]catalog.CatalogEntry, 0, len(sectors))
	for _, s := range sectors {
		entries = append(entries, MansionEntry(s))
	}
	return r.Draw(LayerMansions, entries, Options{Culture: culture})
}

// MansionEntry converts a sector into an overlay entry positioned at its
// midpoint.
func MansionEntry(s astro.MansionSector) catalog.CatalogEntry {
	return catalog.CatalogEntry{
		ID: fmt.Sprintf("mansion-%02d", s.Index),
		Names: map[catalog.Culture]string{
			catalog.CultureChinese: s.Name,
			catalog.CultureHuangji: s.Name,
			catalog.CultureIAU:     s.Pinyin,
		},
		Coord:   &catalog.Coord{RAdeg: s.Mid.RAdeg, DecDeg: s.Mid.DecDeg},
		Mag:     math.NaN(),
		Meaning: fmt.Sprintf("ecliptic longitude %.3f°-%.3f°", s.StartLon, s.EndLon),
		Tags:    []string{"mansion"},
	}
}

// Clear empties layer and forgets its index.
func (r *Renderer) Clear(layer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface.ClearLayer(layer)
	delete(r.layers, layer)
}

// Redraw repeats the last draw of every layer, e.g. after a resize.
func (r *Renderer) Redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, ls := range r.layers {
		r.drawLocked(name, ls.source, ls.opts)
	}
}

// SetEmphasis restyles every marker: matches are emphasized, the rest dimmed.
// A nil match restores normal style everywhere.
func (r *Renderer) SetEmphasis(match func(catalog.CatalogEntry) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emphasis = match
	for name, ls := range r.layers {
		for _, p := range ls.placed {
			r.surface.StyleMarker(name, p.ID, r.styleFor(p.Entry))
		}
	}
}

func (r *Renderer) styleFor(e catalog.CatalogEntry) Style {
	switch {
	case r.emphasis == nil:
		return StyleNormal
	case r.emphasis(e):
		return StyleEmphasized
	default:
		return StyleDimmed
	}
}

// Entry returns the indexed entry for a marker id.
func (r *Renderer) Entry(id string) (catalog.CatalogEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ls := range r.layers {
		if e, ok := ls.entries[id]; ok {
			return e, true
		}
	}
	return catalog.CatalogEntry{}, false
}

// Placed returns the markers drawn in layer, in draw order.
func (r *Renderer) Placed(layer string) []Placed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ls, ok := r.layers[layer]
	if !ok {
		return nil
	}
	out := make([]Placed, len(ls.placed))
	copy(out, ls.placed)
	return out
}

// Stats returns the last draw summary for layer.
func (r *Renderer) Stats(layer string) Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ls, ok := r.layers[layer]; ok {
		return ls.stats
	}
	return Stats{}
}

// HitTest returns the marker nearest to (x, y) within radius pixels.
func (r *Renderer) HitTest(x, y, radius float64) (Placed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best  Placed
		found bool
		bestD = radius * radius
	)
	for _, ls := range r.layers {
		for _, p := range ls.placed {
			dx, dy := p.At.X-x, p.At.Y-y
			if d := dx*dx + dy*dy; d <= bestD {
				best, bestD, found = p, d, true
			}
		}
	}
	return best, found
}

// All returns every placed marker across layers.
func (r *Renderer) All() []Placed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Placed
	for _, ls := range r.layers {
		out = append(out, ls.placed...)
	}
	return out
}
