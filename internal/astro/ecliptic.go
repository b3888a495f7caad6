package astro

import "math"

// Obliquity is the fixed tilt between the ecliptic and equatorial planes, in degrees.
const Obliquity = 23.439281

var (
	sinObliquity = math.Sin(degToRad(Obliquity))
	cosObliquity = math.Cos(degToRad(Obliquity))
)

// EclipticToEquatorial rotates ecliptic longitude/latitude (degrees) about the
// x-axis by the obliquity. RA is normalized into [0, 360).
func EclipticToEquatorial(lonDeg, latDeg float64) Equatorial {
	return rotateEcliptic(lonDeg, latDeg, Obliquity)
}

// EquatorialToEcliptic is the inverse rotation. Longitude is normalized into [0, 360).
func EquatorialToEcliptic(eq Equatorial) (lonDeg, latDeg float64) {
	ra := degToRad(eq.RAdeg)
	dec := degToRad(eq.DecDeg)

	lon := math.Atan2(math.Sin(ra)*cosObliquity+math.Tan(dec)*sinObliquity, math.Cos(ra))
	lat := math.Asin(clampUnit(math.Sin(dec)*cosObliquity - math.Cos(dec)*sinObliquity*math.Sin(ra)))

	return NormalizeDegrees(radToDeg(lon)), radToDeg(lat)
}

// rotateEcliptic rotates ecliptic coordinates by an explicit obliquity.
func rotateEcliptic(lonDeg, latDeg, epsDeg float64) Equatorial {
	lam := degToRad(lonDeg)
	beta := degToRad(latDeg)
	eps := degToRad(epsDeg)

	ra := math.Atan2(math.Sin(lam)*math.Cos(eps)-math.Tan(beta)*math.Sin(eps), math.Cos(lam))
	dec := math.Asin(clampUnit(math.Sin(beta)*math.Cos(eps) + math.Cos(beta)*math.Sin(eps)*math.Sin(lam)))

	return Equatorial{RAdeg: NormalizeDegrees(radToDeg(ra)), DecDeg: radToDeg(dec)}
}
