// Package astro provides the celestial coordinate math behind the sky chart:
// equatorial to horizontal conversion, sidereal time, the ecliptic rotation
// and the 28-mansion sector table.
package astro

import (
	"math"
	"time"
)

// Equatorial is a J2000 right ascension / declination pair in degrees.
type Equatorial struct {
	RAdeg  float64 // 0-360
	DecDeg float64 // -90..+90
}

// Horizontal is an observer-relative azimuth / altitude pair in degrees.
type Horizontal struct {
	AzDeg  float64 // 0=N, 90=E, 180=S, 270=W
	AltDeg float64 // 0=horizon, 90=zenith
}

// Observer is a ground location.
type Observer struct {
	LatDeg float64 // north positive
	LonDeg float64 // east positive
}

// ToHorizontal converts an equatorial position to azimuth/altitude for an
// observer at instant t.
func ToHorizontal(eq Equatorial, obs Observer, t time.Time) Horizontal {
	lat := degToRad(obs.LatDeg)
	dec := degToRad(eq.DecDeg)

	// Hour angle = LST - RA
	ha := degToRad(LocalSiderealTime(t, obs.LonDeg) - eq.RAdeg)

	sinAlt := math.Sin(dec)*math.Sin(lat) + math.Cos(dec)*math.Cos(lat)*math.Cos(ha)
	alt := math.Asin(clampUnit(sinAlt))

	cosAz := (math.Sin(dec) - math.Sin(alt)*math.Sin(lat)) / (math.Cos(alt) * math.Cos(lat))
	az := math.Acos(clampUnit(cosAz))

	// West of the meridian the azimuth is measured the long way round.
	if math.Sin(ha) > 0 {
		az = 2*math.Pi - az
	}

	return Horizontal{
		AzDeg:  NormalizeDegrees(radToDeg(az)),
		AltDeg: radToDeg(alt),
	}
}

// LocalSiderealTime returns LST in degrees for a UTC instant and east longitude.
func LocalSiderealTime(t time.Time, lonDeg float64) float64 {
	return NormalizeDegrees(GreenwichMeanSiderealTime(t) + lonDeg)
}

// GreenwichMeanSiderealTime returns GMST in degrees (IAU 1982).
func GreenwichMeanSiderealTime(t time.Time) float64 {
	jd := JulianDate(t)
	T := (jd - 2451545.0) / 36525.0

	gmst := 280.46061837 +
		360.98564736629*(jd-2451545.0) +
		0.000387933*T*T -
		T*T*T/38710000.0

	return NormalizeDegrees(gmst)
}

// JulianDate returns the Julian Date of t.
func JulianDate(t time.Time) float64 {
	t = t.UTC()

	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	dayFrac := (float64(t.Hour()) +
		float64(t.Minute())/60 +
		float64(t.Second())/3600 +
		float64(t.Nanosecond())/3600e9) / 24.0

	// January and February count as months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	// Gregorian correction
	A := math.Floor(y / 100)
	B := 2 - A + math.Floor(A/4)

	return math.Floor(365.25*(y+4716)) +
		math.Floor(30.6001*(m+1)) +
		d + dayFrac + B - 1524.5
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	// math.Mod(-1e-15, 360) + 360 rounds to exactly 360.
	if a >= 360 {
		a -= 360
	}
	return a
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
