package astro

import (
	"math"
	"time"
)

// Body is a solar-system object placed on the chart for an instant.
type Body struct {
	Name string
	Equatorial
}

// SunPosition returns the Sun's apparent equatorial coordinates.
// Low-precision almanac series, good to about 0.01 degrees.
func SunPosition(t time.Time) Equatorial {
	T := julianCenturies(t)

	L0 := NormalizeDegrees(280.46646 + 36000.76983*T + 0.0003032*T*T)
	M := degToRad(NormalizeDegrees(357.52911 + 35999.05029*T - 0.0001537*T*T))

	// Equation of center
	C := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(M) +
		(0.019993-0.000101*T)*math.Sin(2*M) +
		0.000289*math.Sin(3*M)

	// Aberration and nutation in longitude, plus the matching obliquity term.
	omega := degToRad(125.04 - 1934.136*T)
	lon := L0 + C - 0.00569 - 0.00478*math.Sin(omega)
	eps := 23.439291 - 0.0130042*T - 0.00000016*T*T + 0.000000504*T*T*T + 0.00256*math.Cos(omega)

	return rotateEcliptic(lon, 0, eps)
}

// MoonPosition returns the Moon's geocentric equatorial coordinates from the
// leading terms of the lunar series. Accurate to a few tenths of a degree,
// which is below a chart cell.
func MoonPosition(t time.Time) Equatorial {
	T := julianCenturies(t)

	// Mean longitude, mean anomalies (Moon, Sun), argument of latitude and
	// mean elongation.
	L := 218.316 + 481267.8813*T
	Mm := degToRad(134.963 + 477198.8676*T)
	Ms := degToRad(357.52911 + 35999.05029*T)
	F := degToRad(93.272 + 483202.0175*T)
	D := degToRad(297.850 + 445267.1115*T)

	lon := L +
		6.289*math.Sin(Mm) -
		1.274*math.Sin(Mm-2*D) +
		0.658*math.Sin(2*D) +
		0.214*math.Sin(2*Mm) -
		0.186*math.Sin(Ms)

	lat := 5.128*math.Sin(F) +
		0.280*math.Sin(Mm+F) +
		0.278*math.Sin(Mm-F) +
		0.173*math.Sin(F-2*D)

	return EclipticToEquatorial(NormalizeDegrees(lon), lat)
}

// Bodies returns the solar-system objects the chart draws at t.
// The Sun and Moon come first, then the planets innermost first.
func Bodies(t time.Time) []Body {
	bodies := []Body{
		{Name: "Sun", Equatorial: SunPosition(t)},
		{Name: "Moon", Equatorial: MoonPosition(t)},
	}
	T := julianCenturies(t)
	for _, p := range planets {
		bodies = append(bodies, Body{Name: p.name, Equatorial: planetPosition(p.orbit, T)})
	}
	return bodies
}

func julianCenturies(t time.Time) float64 {
	return (JulianDate(t) - 2451545.0) / 36525.0
}
