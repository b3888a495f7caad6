// Package catalog decodes the sky-chart data files: the base star catalog,
// the constellation and Milky-Way sets, and the per-culture overlay catalogs.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformed marks a data file that is not the expected structured document.
var ErrMalformed = errors.New("malformed catalog document")

// Culture selects which label set and overlay catalog is shown.
type Culture string

const (
	CultureIAU     Culture = "iau" // western constellations
	CultureChinese Culture = "cn"  // traditional Chinese asterisms
	CultureHuangji Culture = "hj"  // Huangji Jingshi star names
)

var cultures = []Culture{CultureIAU, CultureChinese, CultureHuangji}

// Cultures returns the closed set of cultures in display order.
func Cultures() []Culture {
	out := make([]Culture, len(cultures))
	copy(out, cultures)
	return out
}

// ParseCulture parses a culture identifier.
func ParseCulture(s string) (Culture, error) {
	c := Culture(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range cultures {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown culture %q", s)
}

// Next returns the following culture, wrapping around.
func (c Culture) Next() Culture {
	for i, known := range cultures {
		if c == known {
			return cultures[(i+1)%len(cultures)]
		}
	}
	return cultures[0]
}

// Label is the short display name for the culture selector.
func (c Culture) Label() string {
	switch c {
	case CultureIAU:
		return "IAU"
	case CultureChinese:
		return "中国"
	case CultureHuangji:
		return "皇极"
	default:
		return string(c)
	}
}

// Coord is a J2000 RA/Dec pair in degrees.
type Coord struct {
	RAdeg  float64
	DecDeg float64
}

// CatalogEntry is one decoded feature. Entries are immutable once decoded.
type CatalogEntry struct {
	ID         string
	NumericID  int // shared numeric identifier, 0 when absent
	Names      map[Culture]string
	Coord      *Coord // nil when the document carries no position
	Mag        float64
	Meaning    string
	Tags       []string
	References []string
}

// HasMag reports whether the entry carries a magnitude.
func (e CatalogEntry) HasMag() bool {
	return !math.IsNaN(e.Mag)
}

// BestName returns the entry name for the culture, falling back through the
// other cultures in order and finally to the identifier.
func (e CatalogEntry) BestName(c Culture) string {
	if n := e.Names[c]; n != "" {
		return n
	}
	for _, other := range cultures {
		if n := e.Names[other]; n != "" {
			return n
		}
	}
	if n := e.Names[""]; n != "" {
		return n
	}
	return e.ID
}

// AllNames returns every distinct display name, sorted.
func (e CatalogEntry) AllNames() []string {
	seen := make(map[string]bool, len(e.Names))
	var out []string
	for _, n := range e.Names {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// document is the GeoJSON-style FeatureCollection layout of every data file.
type document struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	ID         json.RawMessage `json:"id"`
	Properties properties      `json:"properties"`
	Geometry   *geometry       `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type properties struct {
	Name       string            `json:"name"`
	Names      map[string]string `json:"names"`
	Desig      string            `json:"desig"`
	HIP        json.RawMessage   `json:"hip"`
	Mag        *float64          `json:"mag"`
	Meaning    string            `json:"meaning"`
	Tags       []string          `json:"tags"`
	References []string          `json:"refs"`
}

// Validate checks that body is a parseable data file for name. The planet
// ephemeris is a plain JSON object; every other file is a FeatureCollection.
func Validate(name string, body []byte) error {
	if name == FilePlanets {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return fmt.Errorf("%s: %w: %v", name, ErrMalformed, err)
		}
		if len(obj) == 0 {
			return fmt.Errorf("%s: %w: empty object", name, ErrMalformed)
		}
		return nil
	}

	var doc struct {
		Type     string          `json:"type"`
		Features json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%s: %w: %v", name, ErrMalformed, err)
	}
	if doc.Type != "FeatureCollection" {
		return fmt.Errorf("%s: %w: type %q", name, ErrMalformed, doc.Type)
	}
	if len(doc.Features) == 0 || doc.Features[0] != '[' {
		return fmt.Errorf("%s: %w: features is not an array", name, ErrMalformed)
	}
	return nil
}

// Decode parses a FeatureCollection into catalog entries. Point features get
// coordinates; features with no geometry decode without one. Other geometry
// types (lines, polygons) are skipped.
func Decode(body []byte) ([]CatalogEntry, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: type %q", ErrMalformed, doc.Type)
	}

	entries := make([]CatalogEntry, 0, len(doc.Features))
	for _, f := range doc.Features {
		if f.Geometry != nil && f.Geometry.Type != "" && f.Geometry.Type != "Point" {
			continue
		}
		entries = append(entries, f.entry())
	}
	return entries, nil
}

func (f feature) entry() CatalogEntry {
	e := CatalogEntry{
		ID:         rawID(f.ID),
		Names:      make(map[Culture]string),
		Mag:        math.NaN(),
		Meaning:    f.Properties.Meaning,
		Tags:       f.Properties.Tags,
		References: f.Properties.References,
	}

	e.NumericID = numericID(f.Properties.HIP)
	if e.NumericID == 0 {
		e.NumericID, _ = strconv.Atoi(e.ID)
	}

	if f.Properties.Name != "" {
		e.Names[""] = f.Properties.Name
	}
	for k, v := range f.Properties.Names {
		e.Names[Culture(strings.ToLower(k))] = v
	}
	if f.Properties.Desig != "" && e.Names[CultureIAU] == "" {
		e.Names[CultureIAU] = f.Properties.Desig
	}

	if f.Properties.Mag != nil {
		e.Mag = *f.Properties.Mag
	}

	if f.Geometry != nil && f.Geometry.Type == "Point" {
		var lonlat []float64
		if err := json.Unmarshal(f.Geometry.Coordinates, &lonlat); err == nil && len(lonlat) >= 2 &&
			!math.IsNaN(lonlat[0]) && !math.IsNaN(lonlat[1]) {
			e.Coord = &Coord{RAdeg: LonToRA(lonlat[0]), DecDeg: lonlat[1]}
		}
	}

	return e
}

// LonToRA maps a chart longitude in [-180, 180] onto right ascension [0, 360).
func LonToRA(lon float64) float64 {
	ra := math.Mod(lon, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.Trim(string(raw), `"`)
}

func numericID(raw json.RawMessage) int {
	id := rawID(raw)
	if id == "" {
		return 0
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0
	}
	return n
}

// BaseIndex maps the shared numeric identifier onto base-catalog coordinates.
type BaseIndex map[int]Coord

// NewBaseIndex indexes every positioned entry that has a numeric identifier.
func NewBaseIndex(entries []CatalogEntry) BaseIndex {
	idx := make(BaseIndex, len(entries))
	for _, e := range entries {
		if e.NumericID == 0 || e.Coord == nil {
			continue
		}
		idx[e.NumericID] = *e.Coord
	}
	return idx
}

// Lookup returns the coordinate for a numeric identifier.
func (b BaseIndex) Lookup(id int) (Coord, bool) {
	if id == 0 {
		return Coord{}, false
	}
	c, ok := b[id]
	return c, ok
}
