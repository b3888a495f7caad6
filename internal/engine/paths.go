package engine

import (
	"math"

	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/interaction"
	"github.com/litescript/ls-skychart/internal/projection"
)

// EclipticStep is the sampling interval along the ecliptic, in degrees.
const EclipticStep = 2.0

var eclipticEntry = catalog.CatalogEntry{
	ID: "ecliptic",
	Names: map[catalog.Culture]string{
		catalog.CultureChinese: "黄道",
		catalog.CultureHuangji: "黄道",
		catalog.CultureIAU:     "Ecliptic",
	},
}

// traceEcliptic hands the projected ecliptic to the interaction layer as a
// hover path. The line breaks where it leaves the chart or wraps across it.
func (e *Engine) traceEcliptic() {
	w, _ := e.proj.Size()

	var (
		paths []interaction.Path
		run   []projection.Point
	)
	flush := func() {
		if len(run) > 0 {
			paths = append(paths, interaction.Path{Entry: eclipticEntry, Points: run})
		}
		run = nil
	}
	for lon := 0.0; lon <= 360; lon += EclipticStep {
		pt, ok := e.proj.ProjectEcliptic(lon)
		if !ok {
			flush()
			continue
		}
		if n := len(run); n > 0 && math.Abs(pt.X-run[n-1].X) > w/2 {
			flush()
		}
		run = append(run, pt)
	}
	flush()

	e.interaction.SetPaths(paths...)
}
