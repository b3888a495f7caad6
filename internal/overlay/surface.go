package overlay

import (
	"sort"
	"sync"
)

// Style is the emphasis applied to a marker and its label.
type Style struct {
	Opacity float64 // 0..1
	Thick   bool
}

// Predefined styles.
var (
	StyleNormal     = Style{Opacity: 1}
	StyleEmphasized = Style{Opacity: 1, Thick: true}
	StyleDimmed     = Style{Opacity: 0.25}
)

// Marker is one placed overlay point.
type Marker struct {
	ID    string
	X, Y  float64
	Mag   float64 // NaN when unknown
	Style Style
}

// Label is the manually placed text paired with a marker.
type Label struct {
	ID    string // same as the marker it belongs to
	X, Y  float64
	Text  string
	Style Style
}

// Surface is the drawing target. Layers are independent; clearing one never
// touches another.
type Surface interface {
	ClearLayer(layer string)
	AddMarker(layer string, m Marker)
	AddLabel(layer string, l Label)
	StyleMarker(layer, id string, s Style)
}

// Layer is the content of one named layer.
type Layer struct {
	Markers []Marker
	Labels  []Label
}

// MemorySurface is a Surface that keeps layers in memory. Renderers on top of
// it read the layers back when painting.
type MemorySurface struct {
	mu     sync.Mutex
	layers map[string]*Layer
}

var _ Surface = (*MemorySurface)(nil)

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{layers: make(map[string]*Layer)}
}

// ClearLayer removes every marker and label in layer.
func (s *MemorySurface) ClearLayer(layer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers, layer)
}

// AddMarker appends a marker.
func (s *MemorySurface) AddMarker(layer string, m Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.layer(layer)
	l.Markers = append(l.Markers, m)
}

// AddLabel appends a label.
func (s *MemorySurface) AddLabel(layer string, lb Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.layer(layer)
	l.Labels = append(l.Labels, lb)
}

// StyleMarker restyles the marker and label with the given id.
func (s *MemorySurface) StyleMarker(layer, id string, st Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[layer]
	if !ok {
		return
	}
	for i := range l.Markers {
		if l.Markers[i].ID == id {
			l.Markers[i].Style = st
		}
	}
	for i := range l.Labels {
		if l.Labels[i].ID == id {
			l.Labels[i].Style = st
		}
	}
}

// Layer returns a copy of the named layer.
func (s *MemorySurface) Layer(name string) Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[name]
	if !ok {
		return Layer{}
	}
	out := Layer{
		Markers: make([]Marker, len(l.Markers)),
		Labels:  make([]Label, len(l.Labels)),
	}
	copy(out.Markers, l.Markers)
	copy(out.Labels, l.Labels)
	return out
}

// Layers returns the names of the non-empty layers, sorted.
func (s *MemorySurface) Layers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.layers))
	for name := range s.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MemorySurface) layer(name string) *Layer {
	l, ok := s.layers[name]
	if !ok {
		l = &Layer{}
		s.layers[name] = l
	}
	return l
}
