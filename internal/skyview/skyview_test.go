package skyview

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litescript/ls-skychart/internal/astro"
	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/host"
	"github.com/litescript/ls-skychart/internal/overlay"
)

const starsBody = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":32349,"properties":{"name":"Sirius","mag":-1.46},"geometry":{"type":"Point","coordinates":[101.287,-16.716]}},
 {"type":"Feature","id":91262,"properties":{"mag":0.03},"geometry":{"type":"Point","coordinates":[-80.77,38.78]}}
]}`

func sized(t *testing.T, cfg host.Config, cols, rows int) *View {
	t.Helper()
	v := New()
	v.SetTerminalSize(cols, rows)
	require.NoError(t, v.Initialize(cfg))
	return v
}

func TestSurface_Lifecycle(t *testing.T) {
	v := New()
	assert.False(t, v.Surface().Present, "no surface before initialization")

	require.NoError(t, v.Initialize(host.Config{}))
	s := v.Surface()
	assert.True(t, s.Present)
	assert.False(t, s.Visible(), "terminal not sized yet")

	v.SetTerminalSize(80, 24)
	s = v.Surface()
	assert.True(t, s.Visible())
	assert.Equal(t, 80, s.Width)
	assert.Equal(t, 24, s.Height)
	assert.Equal(t, host.ProjectionAiry, v.Config().Projection)
}

func TestSurface_WidthCap(t *testing.T) {
	v := sized(t, host.Config{Width: 40}, 120, 30)
	assert.Equal(t, 40, v.Surface().Width)

	require.NoError(t, v.Initialize(host.Config{Width: 640}))
	assert.Equal(t, 120, v.Surface().Width, "configured width above terminal width is capped")

	v.SetTerminalSize(10, 30)
	assert.False(t, v.Surface().Visible(), "too narrow to lay out")
}

func TestProjectPoint_Equirectangular(t *testing.T) {
	v := sized(t, host.Config{Projection: host.ProjectionEquirectangular}, 81, 21)

	p, ok := v.ProjectPoint(0, 90)
	require.True(t, ok)
	require.True(t, p.Visible)
	assert.InDelta(t, 80, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)

	p, ok = v.ProjectPoint(180, 0)
	require.True(t, ok)
	require.True(t, p.Visible)
	assert.InDelta(t, 40, p.X, 1e-9)
	assert.InDelta(t, 10, p.Y, 1e-9)
}

func TestProjectPoint_Polar(t *testing.T) {
	v := sized(t, host.Config{}, 81, 41) // radius 20 around (40, 20)
	r0 := 90.0 / (90 - SouthLimit) * 20

	tests := []struct {
		name    string
		ra, dec float64
		x, y    float64
	}{
		{"pole at centre", 0, 90, 40, 20},
		{"0h straight down", 0, 0, 40, 20 + r0},
		{"6h to the left", 90, 0, 40 - r0*cellAspect, 20},
		{"12h straight up", 180, 0, 40, 20 - r0},
		{"rim", 0, SouthLimit, 40, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := v.ProjectPoint(tt.ra, tt.dec)
			require.True(t, ok)
			require.True(t, p.Visible)
			assert.InDelta(t, tt.x, p.X, 1e-9)
			assert.InDelta(t, tt.y, p.Y, 1e-9)
		})
	}

	p, ok := v.ProjectPoint(0, -80)
	assert.True(t, ok, "the host has a projection")
	assert.False(t, p.Visible, "south of the rim")
}

func TestProjectPoint_IndependentOfViewpoint(t *testing.T) {
	v := sized(t, host.Config{}, 80, 24)
	require.NoError(t, v.SetViewpoint(host.Viewpoint{Date: time.Date(1999, 8, 11, 11, 0, 0, 0, time.UTC), Lat: 40, Lon: 116}))
	before, _ := v.ProjectPoint(101.287, -16.716)

	require.NoError(t, v.SetViewpoint(host.Viewpoint{Date: time.Date(2026, 3, 20, 23, 0, 0, 0, time.UTC), Lat: -33, Lon: 151}))
	after, _ := v.ProjectPoint(101.287, -16.716)

	assert.Equal(t, before, after)
}

func TestProjectPoint_NoSurface(t *testing.T) {
	v := New()
	_, ok := v.ProjectPoint(10, 10)
	assert.False(t, ok)

	require.NoError(t, v.Initialize(host.Config{}))
	_, ok = v.ProjectPoint(10, 10)
	assert.False(t, ok, "initialized but not laid out")
}

func TestZenith(t *testing.T) {
	date := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	v := sized(t, host.Config{}, 81, 41)
	require.NoError(t, v.SetViewpoint(host.Viewpoint{Date: date, Lat: 40, Lon: 116}))

	z := v.Zenith()
	assert.InDelta(t, astro.LocalSiderealTime(date, 116), z.RAdeg, 1e-9)
	assert.Equal(t, 40.0, z.DecDeg)
}

func TestInitialize_LoadsStarsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, catalog.FileStars) {
			hits.Add(1)
			_, _ = w.Write([]byte(starsBody))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	v := New(WithLoader(catalog.NewLoader(catalog.WithHTTPClient(srv.Client()))))
	cfg := host.Config{DataPath: srv.URL + "/", ShowStars: true}
	require.NoError(t, v.Initialize(cfg))
	require.NoError(t, v.Initialize(cfg))

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 2, v.Inits())
	v.mu.RLock()
	assert.Len(t, v.stars, 2)
	v.mu.RUnlock()
}

func TestInitialize_MissingStarsLeavesEmptySky(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	v := New(WithLoader(catalog.NewLoader(catalog.WithHTTPClient(srv.Client()))))
	require.NoError(t, v.Initialize(host.Config{DataPath: srv.URL + "/", ShowStars: true}))
	assert.True(t, v.Surface().Present)
}

func TestRender(t *testing.T) {
	v := New()
	assert.Empty(t, v.Render(), "nothing to paint without a surface")

	v.SetTerminalSize(40, 10)
	require.NoError(t, v.Initialize(host.Config{Projection: host.ProjectionEquirectangular}))

	v.AddMarker(overlay.LayerStars, overlay.Marker{ID: "a", X: 3, Y: 2, Style: overlay.StyleNormal})
	v.AddLabel(overlay.LayerStars, overlay.Label{ID: "a", X: 5, Y: 2, Text: "Vega", Style: overlay.StyleNormal})
	v.AddMarker(overlay.LayerMansions, overlay.Marker{ID: "m", X: 10, Y: 5, Style: overlay.StyleNormal})

	out := v.Render(Text{X: 20, Y: 8, S: "tip"})
	assert.Contains(t, out, "✦")
	assert.Contains(t, out, "◇")
	assert.Contains(t, out, "Vega")
	assert.Contains(t, out, "tip")
	assert.Equal(t, 10, strings.Count(out, "\n")+1)
}

func TestRender_GridAndBodies(t *testing.T) {
	v := sized(t, host.Config{ShowPlanets: true}, 81, 41)
	require.NoError(t, v.SetViewpoint(host.Viewpoint{Date: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC), Lat: 40, Lon: 116}))

	out := v.Render()
	assert.Contains(t, out, string(glyphEcliptic))
	assert.Contains(t, out, string(glyphEquator))
	assert.Contains(t, out, string(glyphGrid))
	assert.Contains(t, out, "♄", "planets are drawn after the Sun and Moon")

	hidden := sized(t, host.Config{}, 81, 41)
	assert.NotContains(t, hidden.Render(), "♄")
}

func TestBodyGlyph(t *testing.T) {
	g, c := bodyGlyph("Sun")
	assert.Equal(t, glyphSun, g)
	assert.Equal(t, colorSun, string(c))

	g, _ = bodyGlyph("Jupiter")
	assert.Equal(t, '♃', g)

	_, c = bodyGlyph("Ceres")
	assert.Equal(t, colorPlanet, string(c))
}

func TestRebuild_ClearsLayers(t *testing.T) {
	v := sized(t, host.Config{}, 40, 10)
	v.AddMarker(overlay.LayerStars, overlay.Marker{ID: "a", X: 1, Y: 1})
	v.Rebuild()
	assert.Empty(t, v.Layer(overlay.LayerStars).Markers)
	assert.True(t, v.Surface().Visible())
}

func TestStyleColor(t *testing.T) {
	c, bold := styleColor(overlay.StyleDimmed, colorOverlay)
	assert.Equal(t, colorDimmed, string(c))
	assert.False(t, bold)

	c, bold = styleColor(overlay.StyleEmphasized, colorOverlay)
	assert.Equal(t, colorEmphasis, string(c))
	assert.True(t, bold)

	c, _ = styleColor(overlay.StyleNormal, colorOverlay)
	assert.Equal(t, colorOverlay, string(c))
}

func TestStarsFrom(t *testing.T) {
	entries, err := catalog.Decode([]byte(starsBody))
	require.NoError(t, err)
	stars := StarsFrom(entries)
	require.Len(t, stars, 2)
	assert.InDelta(t, 279.23, stars[1].RAdeg, 1e-9)
	assert.InDelta(t, -1.46, stars[0].Mag, 1e-9)
}

func TestNamesFrom(t *testing.T) {
	entries, err := catalog.Decode([]byte(`{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"Lyr","properties":{"name":"Lyra"},"geometry":{"type":"Point","coordinates":[-75,36]}},
 {"type":"Feature","id":"Ori","properties":{"name":"Orion"}}
]}`))
	require.NoError(t, err)

	names := NamesFrom(entries, catalog.CultureIAU)
	require.Len(t, names, 1, "entries without a position are skipped")
	assert.Equal(t, "Lyra", names[0].Text)
	assert.InDelta(t, 285, names[0].RAdeg, 1e-9)
}
