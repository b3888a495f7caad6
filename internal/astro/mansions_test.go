package astro

import (
	"math"
	"testing"
	"time"
)

// closedForm evaluates the ecliptic-to-equatorial rotation directly for a
// point on the ecliptic, independent of the table code.
func closedForm(lamDeg float64) (ra, dec float64) {
	lam := lamDeg * math.Pi / 180
	eps := Obliquity * math.Pi / 180
	ra = math.Atan2(math.Sin(lam)*math.Cos(eps), math.Cos(lam)) * 180 / math.Pi
	if ra < 0 {
		ra += 360
	}
	dec = math.Asin(math.Sin(eps)*math.Sin(lam)) * 180 / math.Pi
	return ra, dec
}

func TestMansions_FirstSector(t *testing.T) {
	m := Mansions()[0]

	if m.Index != 1 {
		t.Fatalf("first sector index = %d, want 1", m.Index)
	}
	if m.StartLon != 0 || math.Abs(m.EndLon-12.857142857142858) > 1e-12 {
		t.Errorf("first sector span = [%v, %v), want [0, 12.857142...)", m.StartLon, m.EndLon)
	}
	if math.Abs(m.MidLon-6.428571428571429) > 1e-12 {
		t.Errorf("first sector midpoint = %v, want 6.428571...", m.MidLon)
	}

	// Independently computed from the closed form with eps = 23.439281.
	const wantRA, wantDec = 5.902010, 2.552620
	if math.Abs(m.Mid.RAdeg-wantRA) > 1e-4 {
		t.Errorf("first sector RA = %.6f, want %.6f", m.Mid.RAdeg, wantRA)
	}
	if math.Abs(m.Mid.DecDeg-wantDec) > 1e-4 {
		t.Errorf("first sector Dec = %.6f, want %.6f", m.Mid.DecDeg, wantDec)
	}
}

func TestMansions_AllSectorsMatchClosedForm(t *testing.T) {
	sectors := Mansions()
	if len(sectors) != MansionCount {
		t.Fatalf("got %d sectors, want %d", len(sectors), MansionCount)
	}

	total := 0.0
	for i, m := range sectors {
		total += m.EndLon - m.StartLon

		if m.Index != i+1 {
			t.Errorf("sector %d has index %d", i, m.Index)
		}
		if i > 0 && math.Abs(m.StartLon-sectors[i-1].EndLon) > 1e-9 {
			t.Errorf("sector %d does not start where %d ends", m.Index, sectors[i-1].Index)
		}

		ra, dec := closedForm(m.MidLon)
		if math.Abs(m.Mid.RAdeg-ra) > 1e-9 || math.Abs(m.Mid.DecDeg-dec) > 1e-9 {
			t.Errorf("sector %d: got (%v, %v), closed form (%v, %v)", m.Index, m.Mid.RAdeg, m.Mid.DecDeg, ra, dec)
		}
		if m.Mid.RAdeg < 0 || m.Mid.RAdeg >= 360 {
			t.Errorf("sector %d RA %v not in [0, 360)", m.Index, m.Mid.RAdeg)
		}
		if math.Abs(m.Mid.DecDeg) > Obliquity+1e-9 {
			t.Errorf("sector %d Dec %v exceeds obliquity", m.Index, m.Mid.DecDeg)
		}
		if m.Name == "" || m.Pinyin == "" {
			t.Errorf("sector %d missing name", m.Index)
		}
	}

	if math.Abs(total-360) > 1e-9 {
		t.Errorf("sum of spans = %v, want 360", total)
	}
}

func TestMansions_RoundTripToEcliptic(t *testing.T) {
	for _, m := range Mansions() {
		lon, lat := EquatorialToEcliptic(m.Mid)
		if math.Abs(lon-m.MidLon) > 1e-9 {
			t.Errorf("sector %d: round-trip longitude %v, want %v", m.Index, lon, m.MidLon)
		}
		if math.Abs(lat) > 1e-9 {
			t.Errorf("sector %d: round-trip latitude %v, want 0", m.Index, lat)
		}
	}
}

func TestMansions_ReturnsCopy(t *testing.T) {
	a := Mansions()
	a[0].Name = "x"

	if Mansions()[0].Name == "x" {
		t.Error("Mansions() exposed its shared table")
	}
}

func TestMansionAt(t *testing.T) {
	tests := []struct {
		lon  float64
		want int
	}{
		{0, 1},
		{12.85, 1},
		{12.86, 2},
		{359.99, 28},
		{360, 1},
		{-1, 28},
	}

	for _, tt := range tests {
		if got := MansionAt(tt.lon).Index; got != tt.want {
			t.Errorf("MansionAt(%v) = %d, want %d", tt.lon, got, tt.want)
		}
	}
}

func TestEclipticToEquatorial_Equinoxes(t *testing.T) {
	tests := []struct {
		lon, ra, dec float64
	}{
		{0, 0, 0},
		{90, 90, Obliquity},
		{180, 180, 0},
		{270, 270, -Obliquity},
	}

	for _, tt := range tests {
		eq := EclipticToEquatorial(tt.lon, 0)
		if math.Abs(eq.RAdeg-tt.ra) > 1e-9 || math.Abs(eq.DecDeg-tt.dec) > 1e-9 {
			t.Errorf("lon %v: got (%v, %v), want (%v, %v)", tt.lon, eq.RAdeg, eq.DecDeg, tt.ra, tt.dec)
		}
	}
}

func TestSunPosition_Solstice(t *testing.T) {
	// June solstice 2024 was 20:51 UTC on June 20.
	sun := SunPosition(time.Date(2024, 6, 20, 20, 51, 0, 0, time.UTC))

	if math.Abs(sun.DecDeg-23.44) > 0.05 {
		t.Errorf("solstice Sun Dec = %v, want ~23.44", sun.DecDeg)
	}
	if math.Abs(sun.RAdeg-90) > 0.1 {
		t.Errorf("solstice Sun RA = %v, want ~90", sun.RAdeg)
	}
}

func TestMoonPosition_NearEcliptic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 30; d++ {
		moon := MoonPosition(start.AddDate(0, 0, d))
		_, lat := EquatorialToEcliptic(moon)
		if math.Abs(lat) > 6 {
			t.Errorf("day %d: Moon ecliptic latitude %v exceeds orbital inclination", d, lat)
		}
	}
}

func TestBodies(t *testing.T) {
	bodies := Bodies(time.Date(2024, 3, 20, 3, 6, 0, 0, time.UTC))
	want := []string{"Sun", "Moon", "Mercury", "Venus", "Mars", "Jupiter", "Saturn"}
	if len(bodies) != len(want) {
		t.Fatalf("got %d bodies, want %d", len(bodies), len(want))
	}
	for i, name := range want {
		if bodies[i].Name != name {
			t.Errorf("bodies[%d] = %q, want %q", i, bodies[i].Name, name)
		}
	}

	// March equinox: the Sun sits on the celestial equator.
	if math.Abs(bodies[0].DecDeg) > 0.05 {
		t.Errorf("equinox Sun Dec = %v, want ~0", bodies[0].DecDeg)
	}
}
