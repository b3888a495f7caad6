package skyview

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-skychart/internal/astro"
	"github.com/litescript/ls-skychart/internal/overlay"
)

const (
	// Star glyphs by magnitude
	glyphStarBright  = '✶' // mag < 1.5
	glyphStarMedium  = '✸' // mag 1.5-3.0
	glyphStarDim     = '·' // mag 3.0+
	glyphSun         = '☉'
	glyphMoon        = '☾'
	glyphGrid        = '·'
	glyphEquator     = '-'
	glyphEcliptic    = '~'
	glyphZenith      = '+'
	glyphOverlayStar = '✦'
	glyphMansion     = '◇'

	colorBackground  = "236"
	colorStarBright  = "255"
	colorStarMedium  = "250"
	colorStarDim     = "244"
	colorStarVeryDim = "240"
	colorGrid        = "238"
	colorEquator     = "60"
	colorEcliptic    = "136"
	colorZenith      = "252"
	colorConstName   = "60"
	colorSun         = "220"
	colorMoon        = "253"
	colorPlanet      = "180"
	colorOverlay     = "#d0c8ff"
	colorMansion     = "#9D4EDD"
	colorEmphasis    = "229" // bright gold
	colorDimmed      = "238"
)

// Text is a free-standing string painted over the canvas, such as a tooltip.
type Text struct {
	X, Y  int
	S     string
	Color string
}

type canvas struct {
	w, h   int
	runes  [][]rune
	colors [][]lipgloss.Color
	bold   [][]bool
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h}
	c.runes = make([][]rune, h)
	c.colors = make([][]lipgloss.Color, h)
	c.bold = make([][]bool, h)
	for y := 0; y < h; y++ {
		c.runes[y] = make([]rune, w)
		c.colors[y] = make([]lipgloss.Color, w)
		c.bold[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			c.runes[y][x] = ' '
			c.colors[y][x] = colorBackground
		}
	}
	return c
}

func (c *canvas) set(x, y int, r rune, color lipgloss.Color, bold bool) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return
	}
	c.runes[y][x] = r
	c.colors[y][x] = color
	c.bold[y][x] = bold
}

func (c *canvas) text(x, y int, s string, color lipgloss.Color, bold bool) {
	for i, r := range []rune(s) {
		c.set(x+i, y, r, color, bold)
	}
}

func (c *canvas) String() string {
	var b strings.Builder
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			style := lipgloss.NewStyle().Foreground(c.colors[y][x]).Bold(c.bold[y][x])
			b.WriteString(style.Render(string(c.runes[y][x])))
		}
		if y < c.h-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// planetGlyphs are the symbols of the charted planets.
var planetGlyphs = map[string]rune{
	"Mercury": '☿',
	"Venus":   '♀',
	"Mars":    '♂',
	"Jupiter": '♃',
	"Saturn":  '♄',
}

// Render paints the chart: graticule, equator and ecliptic, base stars,
// constellation names, the zenith, solar-system bodies, then the overlay
// layers and finally extra text. It returns "" when there is no surface to
// paint.
func (v *View) Render(extra ...Text) string {
	v.mu.RLock()
	cols, rows, cfg := v.cols, v.rows, v.cfg
	initialized := v.initialized
	v.mu.RUnlock()
	if !initialized || cols == 0 {
		return ""
	}

	c := newCanvas(cols, rows)

	v.mu.RLock()
	v.drawGridLocked(c)
	v.mu.RUnlock()

	if cfg.ShowStars {
		v.mu.RLock()
		for _, s := range v.stars {
			x, y, ok := v.projectLocked(s.RAdeg, s.DecDeg)
			if !ok {
				continue
			}
			glyph, color := starGlyph(s.Mag)
			c.set(round(x), round(y), glyph, color, false)
		}
		v.mu.RUnlock()
	}

	if cfg.ShowConstellations {
		v.mu.RLock()
		for _, n := range NamesFrom(v.names, cfg.Culture) {
			x, y, ok := v.projectLocked(n.RAdeg, n.DecDeg)
			if !ok {
				continue
			}
			c.text(round(x), round(y), n.Text, colorConstName, false)
		}
		v.mu.RUnlock()
	}

	zenith := v.Zenith()
	bodies := v.Bodies()

	v.mu.RLock()
	if x, y, ok := v.projectLocked(zenith.RAdeg, zenith.DecDeg); ok {
		c.set(round(x), round(y), glyphZenith, colorZenith, true)
	}
	if cfg.ShowPlanets {
		for _, b := range bodies {
			x, y, ok := v.projectLocked(b.RAdeg, b.DecDeg)
			if !ok {
				continue
			}
			glyph, color := bodyGlyph(b.Name)
			c.set(round(x), round(y), glyph, color, true)
		}
	}
	v.mu.RUnlock()

	v.drawLayer(c, overlay.LayerMansions, glyphMansion, colorMansion)
	v.drawLayer(c, overlay.LayerStars, glyphOverlayStar, colorOverlay)

	for _, t := range extra {
		color := lipgloss.Color(t.Color)
		if t.Color == "" {
			color = colorEmphasis
		}
		c.text(t.X, t.Y, t.S, color, false)
	}

	return c.String()
}

func (v *View) drawLayer(c *canvas, name string, glyph rune, base lipgloss.Color) {
	l := v.Layer(name)
	for _, m := range l.Markers {
		color, bold := styleColor(m.Style, base)
		c.set(round(m.X), round(m.Y), glyph, color, bold)
	}
	for _, lb := range l.Labels {
		color, bold := styleColor(lb.Style, base)
		c.text(round(lb.X), round(lb.Y), lb.Text, color, bold)
	}
}

// drawGridLocked traces declination circles every 30 degrees, hour circles
// every 2h, then the equator and the ecliptic over them.
func (v *View) drawGridLocked(c *canvas) {
	for _, dec := range []float64{60, 30, -30} {
		for ra := 0.0; ra < 360; ra += 2 {
			v.plotLocked(c, ra, dec, glyphGrid, colorGrid)
		}
	}
	for ra := 0.0; ra < 360; ra += 30 {
		for dec := -88.0; dec <= 88; dec += 2 {
			v.plotLocked(c, ra, dec, glyphGrid, colorGrid)
		}
	}
	for ra := 0.0; ra < 360; ra += 1 {
		v.plotLocked(c, ra, 0, glyphEquator, colorEquator)
	}
	for lon := 0.0; lon < 360; lon += 1 {
		eq := astro.EclipticToEquatorial(lon, 0)
		v.plotLocked(c, eq.RAdeg, eq.DecDeg, glyphEcliptic, colorEcliptic)
	}
}

func (v *View) plotLocked(c *canvas, ra, dec float64, glyph rune, color lipgloss.Color) {
	if x, y, ok := v.projectLocked(ra, dec); ok {
		c.set(round(x), round(y), glyph, color, false)
	}
}

func bodyGlyph(name string) (rune, lipgloss.Color) {
	switch name {
	case "Sun":
		return glyphSun, colorSun
	case "Moon":
		return glyphMoon, colorMoon
	}
	if g, ok := planetGlyphs[name]; ok {
		return g, colorPlanet
	}
	return glyphStarMedium, colorPlanet
}

// starGlyph returns the glyph and color for a star based on its magnitude.
func starGlyph(mag float64) (rune, lipgloss.Color) {
	switch {
	case mag < 1.5:
		return glyphStarBright, colorStarBright
	case mag < 3.0:
		return glyphStarMedium, colorStarMedium
	case mag < 4.0:
		return glyphStarDim, colorStarDim
	default:
		return glyphStarDim, colorStarVeryDim
	}
}

// styleColor maps marker emphasis onto terminal attributes: low opacity dims
// the color, thick strokes become bold.
func styleColor(s overlay.Style, base lipgloss.Color) (lipgloss.Color, bool) {
	switch {
	case s.Opacity < 0.5:
		return colorDimmed, false
	case s.Thick:
		return colorEmphasis, true
	default:
		return base, false
	}
}

func round(f float64) int {
	return int(math.Round(f))
}
