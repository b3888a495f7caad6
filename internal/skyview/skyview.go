// Package skyview is the terminal chart host: it builds the base chart from
// the resolved data root, projects coordinates onto a rune canvas, and
// renders the overlay layers drawn onto it.
package skyview

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/litescript/ls-skychart/internal/astro"
	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/host"
	"github.com/litescript/ls-skychart/internal/logging"
	"github.com/litescript/ls-skychart/internal/overlay"
)

// Minimum terminal area that counts as a laid-out surface.
const (
	MinCols = 20
	MinRows = 8
)

// cellAspect is the width/height ratio correction for terminal cells.
const cellAspect = 2.0

// SouthLimit is the declination at the rim of the polar chart. The chart is
// a fixed equatorial frame centred on the north celestial pole, so a point's
// place never depends on the date or observer.
const SouthLimit = -40.0

// Star is a base-catalog star kept by the host.
type Star struct {
	RAdeg, DecDeg, Mag float64
}

// Name is a constellation label anchored at its centre.
type Name struct {
	RAdeg, DecDeg float64
	Text          string
}

// View is the terminal host.
type View struct {
	*overlay.MemorySurface

	loader *catalog.Loader
	logger *zap.Logger

	mu          sync.RWMutex
	cfg         host.Config
	initialized bool
	inits       int
	termCols    int
	termRows    int
	cols, rows  int
	vp          host.Viewpoint
	stars       []Star
	starsRoot   string
	names       []catalog.CatalogEntry // constellation centres, named at render time
	namesRoot   string
}

var (
	_ host.Host       = (*View)(nil)
	_ host.Projector  = (*View)(nil)
	_ host.Container  = (*View)(nil)
	_ overlay.Surface = (*View)(nil)
)

// Option configures a View.
type Option func(*View)

// WithLoader sets the loader used to fetch the base star catalog.
func WithLoader(l *catalog.Loader) Option {
	return func(v *View) {
		v.loader = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *View) {
		v.logger = logger
	}
}

// New creates an uninitialized view.
func New(opts ...Option) *View {
	v := &View{
		MemorySurface: overlay.NewMemorySurface(),
		vp:            host.Viewpoint{Date: time.Now()},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = logging.OrDiscard(v.logger)
	if v.loader == nil {
		v.loader = catalog.NewLoader(catalog.WithLogger(v.logger))
	}
	return v
}

// Initialize (re)builds the chart. The base star catalog and constellation
// names are fetched from cfg.DataPath when the path changed; a failed fetch
// leaves that part of the sky empty.
func (v *View) Initialize(cfg host.Config) error {
	v.mu.RLock()
	needStars := cfg.ShowStars && cfg.DataPath != v.starsRoot
	needNames := cfg.ShowConstellations && cfg.DataPath != v.namesRoot
	v.mu.RUnlock()

	var (
		stars []Star
		names []catalog.CatalogEntry
	)
	if needStars {
		stars = StarsFrom(v.fetch(cfg.DataPath, catalog.FileStars))
	}
	if needNames {
		names = v.fetch(cfg.DataPath, catalog.FileConstNames)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if needStars {
		v.stars = stars
		v.starsRoot = cfg.DataPath
	}
	if needNames {
		v.names = names
		v.namesRoot = cfg.DataPath
	}
	if cfg.Projection == "" {
		cfg.Projection = host.ProjectionAiry
	}
	v.cfg = cfg
	v.initialized = true
	v.inits++
	v.layoutLocked()
	return nil
}

func (v *View) fetch(root, name string) []catalog.CatalogEntry {
	ctx, cancel := context.WithTimeout(context.Background(), catalog.DefaultTimeout)
	defer cancel()

	entries, err := v.loader.Load(ctx, root, name)
	if err != nil {
		v.logger.Warn("chart data unavailable", zap.String("root", root), zap.String("file", name), zap.Error(err))
		return nil
	}
	return entries
}

// StarsFrom keeps the positioned entries of a base catalog.
func StarsFrom(entries []catalog.CatalogEntry) []Star {
	stars := make([]Star, 0, len(entries))
	for _, e := range entries {
		if e.Coord == nil {
			continue
		}
		mag := e.Mag
		if !e.HasMag() {
			mag = 6
		}
		stars = append(stars, Star{RAdeg: e.Coord.RAdeg, DecDeg: e.Coord.DecDeg, Mag: mag})
	}
	return stars
}

// NamesFrom keeps the positioned, named entries of the constellation file.
func NamesFrom(entries []catalog.CatalogEntry, c catalog.Culture) []Name {
	var names []Name
	for _, e := range entries {
		text := e.BestName(c)
		if e.Coord == nil || text == "" {
			continue
		}
		names = append(names, Name{RAdeg: e.Coord.RAdeg, DecDeg: e.Coord.DecDeg, Text: text})
	}
	return names
}

// SetStars replaces the base star set directly.
func (v *View) SetStars(stars []Star, root string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stars = stars
	v.starsRoot = root
}

// SetViewpoint changes the instant and observer.
func (v *View) SetViewpoint(vp host.Viewpoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vp = vp
	return nil
}

// Viewpoint returns the current viewpoint.
func (v *View) Viewpoint() host.Viewpoint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.vp
}

// Config returns the last initialization config.
func (v *View) Config() host.Config {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cfg
}

// Inits is the number of Initialize calls.
func (v *View) Inits() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.inits
}

// SetTerminalSize records the space available for the canvas.
func (v *View) SetTerminalSize(cols, rows int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.termCols, v.termRows = cols, rows
	if v.initialized {
		v.layoutLocked()
	}
}

// layoutLocked sizes the canvas: the terminal width, capped by the
// configured width when one is set.
func (v *View) layoutLocked() {
	cols, rows := v.termCols, v.termRows
	if v.cfg.Width > 0 && v.cfg.Width < cols {
		cols = v.cfg.Width
	}
	if cols < MinCols || rows < MinRows {
		cols, rows = 0, 0
	}
	v.cols, v.rows = cols, rows
}

// Surface reports the canvas. It is present once initialized and sized.
func (v *View) Surface() host.Surface {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return host.Surface{Present: v.initialized, Width: v.cols, Height: v.rows}
}

// Rebuild clears every layer and lays the canvas out again.
func (v *View) Rebuild() {
	for _, name := range v.Layers() {
		v.ClearLayer(name)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.layoutLocked()
}

// ProjectPoint maps RA/Dec onto canvas cells using the active projection.
// ok is false until the view is initialized and sized; a point off the chart
// comes back ok with Visible false.
func (v *View) ProjectPoint(raDeg, decDeg float64) (host.Projected, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.initialized || v.cols == 0 {
		return host.Projected{}, false
	}
	x, y, visible := v.projectLocked(raDeg, decDeg)
	return host.Projected{X: x, Y: y, Visible: visible}, true
}

func (v *View) projectLocked(raDeg, decDeg float64) (float64, float64, bool) {
	w, h := float64(v.cols), float64(v.rows)

	var x, y float64
	switch v.cfg.Projection {
	case host.ProjectionEquirectangular:
		// RA increases to the left, as seen from inside the sphere.
		x = (1 - astro.NormalizeDegrees(raDeg)/360) * (w - 1)
		y = (90 - decDeg) / 180 * (h - 1)
	default:
		if decDeg < SouthLimit {
			return 0, 0, false
		}
		x, y = v.polarLocked(raDeg, decDeg)
	}

	if x < 0 || x > w-1 || y < 0 || y > h-1 {
		return 0, 0, false
	}
	return x, y, true
}

// polarLocked places RA/Dec on the pole-centred chart: the pole at the
// centre, declination falling linearly to SouthLimit at the rim, RA 0h
// straight down and increasing clockwise as seen looking up at the pole.
func (v *View) polarLocked(raDeg, decDeg float64) (float64, float64) {
	w, h := float64(v.cols), float64(v.rows)
	radius := math.Min((w-1)/cellAspect, h-1) / 2
	r := (90 - decDeg) / (90 - SouthLimit) * radius
	ra := raDeg * math.Pi / 180
	cx, cy := (w-1)/2, (h-1)/2
	return cx - r*math.Sin(ra)*cellAspect, cy + r*math.Cos(ra)
}

// Zenith returns the sky position overhead for the current viewpoint.
func (v *View) Zenith() astro.Equatorial {
	vp := v.Viewpoint()
	return astro.Equatorial{RAdeg: astro.LocalSiderealTime(vp.Date, vp.Lon), DecDeg: vp.Lat}
}

// Bodies returns the Sun, Moon and planets for the current viewpoint.
func (v *View) Bodies() []astro.Body {
	return astro.Bodies(v.Viewpoint().Date)
}
