package astro

import (
	"math"
	"testing"
	"time"
)

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{"J2000 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"Unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
		{"2024-01-01 00:00 UTC", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2460310.5},
		{"Non-UTC zone is converted", time.Date(2000, 1, 1, 20, 0, 0, 0, time.FixedZone("CST", 8*3600)), 2451545.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.time)
			if math.Abs(got-tt.expected) > 1e-4 {
				t.Errorf("JulianDate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGreenwichMeanSiderealTime_J2000(t *testing.T) {
	gmst := GreenwichMeanSiderealTime(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	if math.Abs(gmst-280.46) > 0.1 {
		t.Errorf("GMST at J2000 = %v, want ~280.46", gmst)
	}
}

func TestLocalSiderealTime_Range(t *testing.T) {
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	gmst := GreenwichMeanSiderealTime(ts)

	if got := LocalSiderealTime(ts, 0); math.Abs(got-gmst) > 1e-9 {
		t.Errorf("LST at lon=0 = %v, want GMST %v", got, gmst)
	}

	for lon := -180.0; lon <= 180; lon += 30 {
		lst := LocalSiderealTime(ts, lon)
		if lst < 0 || lst >= 360 {
			t.Errorf("LST at lon=%v out of range: %v", lon, lst)
		}
	}
}

func TestToHorizontal_Polaris(t *testing.T) {
	polaris := Equatorial{RAdeg: 37.95, DecDeg: 89.26}
	obs := Observer{LatDeg: 34.26, LonDeg: 108.94} // Xi'an

	for hour := 0; hour < 24; hour += 4 {
		h := ToHorizontal(polaris, obs, time.Date(2024, 6, 15, hour, 0, 0, 0, time.UTC))
		if math.Abs(h.AltDeg-obs.LatDeg) > 1.5 {
			t.Errorf("hour %d: Polaris altitude = %v, want ~%v", hour, h.AltDeg, obs.LatDeg)
		}
	}
}

func TestToHorizontal_Zenith(t *testing.T) {
	obs := Observer{LatDeg: 35, LonDeg: -117}
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	star := Equatorial{RAdeg: LocalSiderealTime(ts, obs.LonDeg), DecDeg: obs.LatDeg}
	h := ToHorizontal(star, obs, ts)

	if math.Abs(h.AltDeg-90) > 0.01 {
		t.Errorf("zenith altitude = %v, want 90", h.AltDeg)
	}
}

func TestToHorizontal_SouthernStarNeverRises(t *testing.T) {
	obs := Observer{LatDeg: 35, LonDeg: -117}
	star := Equatorial{RAdeg: 0, DecDeg: -60}

	for hour := 0; hour < 24; hour += 3 {
		h := ToHorizontal(star, obs, time.Date(2024, 6, 15, hour, 0, 0, 0, time.UTC))
		if h.AltDeg > 0 {
			t.Errorf("Dec=-60 visible from 35N at hour %d: alt=%v", hour, h.AltDeg)
		}
	}
}

func TestToHorizontal_AzimuthRange(t *testing.T) {
	obs := Observer{LatDeg: 35, LonDeg: -117}
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	for ra := 0.0; ra < 360; ra += 30 {
		for dec := -80.0; dec <= 80; dec += 20 {
			h := ToHorizontal(Equatorial{RAdeg: ra, DecDeg: dec}, obs, ts)
			if h.AzDeg < 0 || h.AzDeg >= 360 {
				t.Errorf("RA=%v Dec=%v: azimuth %v out of range", ra, dec, h.AzDeg)
			}
		}
	}
}

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{725, 5},
		{-1e-15, 0},
	}

	for _, tt := range tests {
		got := NormalizeDegrees(tt.in)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeDegrees(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
