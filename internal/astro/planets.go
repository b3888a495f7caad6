package astro

import (
	"math"
	"time"
)

// orbit holds J2000 mean elements and their rates per Julian century:
// semi-major axis (AU), eccentricity, inclination, mean longitude, longitude
// of perihelion and longitude of the ascending node (degrees). Values are the
// JPL approximate elements for 1800-2050, good to well under a chart cell.
type orbit struct {
	a, e, i, l, peri, node                   float64
	aDot, eDot, iDot, lDot, periDot, nodeDot float64
}

var (
	orbitMercury = orbit{
		0.38709927, 0.20563593, 7.00497902, 252.25032350, 77.45779628, 48.33076593,
		0.00000037, 0.00001906, -0.00594749, 149472.67411175, 0.16047689, -0.12534081,
	}
	orbitVenus = orbit{
		0.72333566, 0.00677672, 3.39467605, 181.97909950, 131.60246718, 76.67984255,
		0.00000390, -0.00004107, -0.00078890, 58517.81538729, 0.00268329, -0.27769418,
	}
	orbitEarth = orbit{
		1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0,
		0.00000562, -0.00004392, -0.01294668, 35999.37244981, 0.32327364, 0,
	}
	orbitMars = orbit{
		1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891,
		0.00001847, 0.00007882, -0.00813131, 19140.30268499, 0.44441088, -0.29257343,
	}
	orbitJupiter = orbit{
		5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909,
		-0.00011607, -0.00013253, -0.00183714, 3034.74612775, 0.21252668, 0.20469106,
	}
	orbitSaturn = orbit{
		9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448,
		-0.00125060, -0.00050991, 0.00193609, 1222.49362201, -0.41897216, -0.28867794,
	}
)

// Planets in drawing order, innermost first.
var planets = []struct {
	name  string
	orbit orbit
}{
	{"Mercury", orbitMercury},
	{"Venus", orbitVenus},
	{"Mars", orbitMars},
	{"Jupiter", orbitJupiter},
	{"Saturn", orbitSaturn},
}

// heliocentric returns ecliptic rectangular coordinates (AU, J2000 frame) at
// T Julian centuries from J2000.
func (o orbit) heliocentric(T float64) (x, y, z float64) {
	a := o.a + o.aDot*T
	e := o.e + o.eDot*T
	inc := degToRad(o.i + o.iDot*T)
	l := o.l + o.lDot*T
	peri := o.peri + o.periDot*T
	node := o.node + o.nodeDot*T

	w := degToRad(peri - node)
	om := degToRad(node)
	m := degToRad(NormalizeDegrees(l - peri))

	E := keplerEccentric(m, e)
	xp := a * (math.Cos(E) - e)
	yp := a * math.Sqrt(1-e*e) * math.Sin(E)

	cw, sw := math.Cos(w), math.Sin(w)
	co, so := math.Cos(om), math.Sin(om)
	ci, si := math.Cos(inc), math.Sin(inc)

	x = (cw*co-sw*so*ci)*xp + (-sw*co-cw*so*ci)*yp
	y = (cw*so+sw*co*ci)*xp + (-sw*so+cw*co*ci)*yp
	z = sw*si*xp + cw*si*yp
	return x, y, z
}

// keplerEccentric solves E - e sin E = M by Newton iteration.
func keplerEccentric(m, e float64) float64 {
	E := m + e*math.Sin(m)
	for i := 0; i < 12; i++ {
		d := (E - e*math.Sin(E) - m) / (1 - e*math.Cos(E))
		E -= d
		if math.Abs(d) < 1e-10 {
			break
		}
	}
	return E
}

// PlanetPosition returns the geocentric equatorial coordinates of the named
// planet, Mercury through Saturn. ok is false for any other name.
func PlanetPosition(name string, t time.Time) (Equatorial, bool) {
	for _, p := range planets {
		if p.name == name {
			return planetPosition(p.orbit, julianCenturies(t)), true
		}
	}
	return Equatorial{}, false
}

func planetPosition(o orbit, T float64) Equatorial {
	px, py, pz := o.heliocentric(T)
	ex, ey, ez := orbitEarth.heliocentric(T)
	dx, dy, dz := px-ex, py-ey, pz-ez

	lon := radToDeg(math.Atan2(dy, dx))
	lat := radToDeg(math.Atan2(dz, math.Hypot(dx, dy)))
	return EclipticToEquatorial(NormalizeDegrees(lon), lat)
}
