package astro

import "sync"

// MansionCount is the number of lunar mansions along the ecliptic.
const MansionCount = 28

// MansionSpan is the ecliptic-longitude width of one mansion, in degrees.
const MansionSpan = 360.0 / MansionCount

// MansionSector is one of the 28 equal ecliptic divisions. Index runs 1..28;
// sector i spans [StartLon, StartLon+MansionSpan).
type MansionSector struct {
	Index    int
	Name     string // traditional name
	Pinyin   string
	StartLon float64 // degrees
	EndLon   float64 // degrees, exclusive
	MidLon   float64 // degrees
	Mid      Equatorial
}

// Contains reports whether an ecliptic longitude falls in the sector.
func (m MansionSector) Contains(lonDeg float64) bool {
	lon := NormalizeDegrees(lonDeg)
	return lon >= m.StartLon && lon < m.EndLon
}

var mansionNames = [MansionCount][2]string{
	{"角", "Jiao"}, {"亢", "Kang"}, {"氐", "Di"}, {"房", "Fang"},
	{"心", "Xin"}, {"尾", "Wei"}, {"箕", "Ji"},
	{"斗", "Dou"}, {"牛", "Niu"}, {"女", "Nü"}, {"虚", "Xu"},
	{"危", "Wei"}, {"室", "Shi"}, {"壁", "Bi"},
	{"奎", "Kui"}, {"娄", "Lou"}, {"胃", "Wei"}, {"昴", "Mao"},
	{"毕", "Bi"}, {"觜", "Zi"}, {"参", "Shen"},
	{"井", "Jing"}, {"鬼", "Gui"}, {"柳", "Liu"}, {"星", "Xing"},
	{"张", "Zhang"}, {"翼", "Yi"}, {"轸", "Zhen"},
}

var (
	mansionsOnce sync.Once
	mansionTable []MansionSector
)

// Mansions returns the 28 sectors with their midpoint equatorial coordinates.
// The table is derived from Obliquity once and shared; callers get a copy.
func Mansions() []MansionSector {
	mansionsOnce.Do(func() {
		mansionTable = make([]MansionSector, MansionCount)
		for i := range mansionTable {
			start := float64(i) * MansionSpan
			mid := start + MansionSpan/2
			mansionTable[i] = MansionSector{
				Index:    i + 1,
				Name:     mansionNames[i][0],
				Pinyin:   mansionNames[i][1],
				StartLon: start,
				EndLon:   start + MansionSpan,
				MidLon:   mid,
				Mid:      EclipticToEquatorial(mid, 0),
			}
		}
	})

	out := make([]MansionSector, len(mansionTable))
	copy(out, mansionTable)
	return out
}

// MansionAt returns the sector containing an ecliptic longitude.
func MansionAt(lonDeg float64) MansionSector {
	idx := int(NormalizeDegrees(lonDeg) / MansionSpan)
	if idx >= MansionCount {
		idx = MansionCount - 1
	}
	return Mansions()[idx]
}
