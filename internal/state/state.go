// Package state provides thread-safe render state for one engine instance.
package state

import (
	"sync"
	"time"

	"github.com/litescript/ls-skychart/internal/catalog"
)

// Overlay identifies a toggleable layer.
type Overlay string

const (
	OverlayStars          Overlay = "stars"    // culture star catalog overlay
	OverlayMansions       Overlay = "mansions" // 28 mansion markers
	OverlayConstellations Overlay = "constellations"
	OverlayMilkyWay       Overlay = "milkyway"
	OverlayPlanets        Overlay = "planets"
)

// Overlays returns every toggle in display order.
func Overlays() []Overlay {
	return []Overlay{OverlayStars, OverlayMansions, OverlayConstellations, OverlayMilkyWay, OverlayPlanets}
}

// EventType represents the type of state change event.
type EventType string

const (
	EventCulture     EventType = "CULTURE"
	EventToggle      EventType = "TOGGLE"
	EventRoot        EventType = "ROOT_RESOLVED"
	EventInitialized EventType = "INITIALIZED"
	EventRender      EventType = "RENDER"
)

// Event represents a state change.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// Manager owns the RenderState. Mutations go only through its methods.
type Manager struct {
	mu sync.RWMutex

	culture      catalog.Culture
	toggles      map[Overlay]bool
	root         string
	validated    bool
	initialized  bool
	renderStatus string
	lastChange   time.Time

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int

	now func() time.Time
}

// Config holds the initial render state.
type Config struct {
	Culture   catalog.Culture
	Toggles   map[Overlay]bool
	MaxEvents int
}

// DefaultConfig returns the state a fresh chart starts in.
func DefaultConfig() Config {
	return Config{
		Culture: catalog.CultureChinese,
		Toggles: map[Overlay]bool{
			OverlayStars:          true,
			OverlayMansions:       true,
			OverlayConstellations: true,
			OverlayMilkyWay:       true,
			OverlayPlanets:        true,
		},
		MaxEvents: 50,
	}
}

// NewManager creates a new state manager.
func NewManager(cfg Config) *Manager {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	culture := cfg.Culture
	if culture == "" {
		culture = catalog.CultureChinese
	}
	toggles := make(map[Overlay]bool, len(cfg.Toggles))
	for k, v := range cfg.Toggles {
		toggles[k] = v
	}
	return &Manager{
		culture:   culture,
		toggles:   toggles,
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		now:       time.Now,
	}
}

// SetCulture selects the culture. It reports whether anything changed.
func (m *Manager) SetCulture(c catalog.Culture) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.culture == c {
		return false
	}
	m.culture = c
	m.record(EventCulture, string(c))
	return true
}

// CycleCulture advances to the next culture and returns it.
func (m *Manager) CycleCulture() catalog.Culture {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.culture = m.culture.Next()
	m.record(EventCulture, string(m.culture))
	return m.culture
}

// Toggle flips an overlay and returns its new visibility.
func (m *Manager) Toggle(o Overlay) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles[o] = !m.toggles[o]
	m.record(EventToggle, toggleDetail(o, m.toggles[o]))
	return m.toggles[o]
}

// SetVisible sets an overlay's visibility.
func (m *Manager) SetVisible(o Overlay, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.toggles[o] == on {
		return
	}
	m.toggles[o] = on
	m.record(EventToggle, toggleDetail(o, on))
}

// SetRoot records the resolved data root.
func (m *Manager) SetRoot(root string, validated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = root
	m.validated = validated
	m.record(EventRoot, root)
}

// MarkInitialized records that the host has been told to build its view.
func (m *Manager) MarkInitialized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return
	}
	m.initialized = true
	m.record(EventInitialized, "")
}

// SetRenderStatus records the outcome of render verification.
func (m *Manager) SetRenderStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderStatus = status
	m.record(EventRender, status)
}

func toggleDetail(o Overlay, on bool) string {
	if on {
		return string(o) + " on"
	}
	return string(o) + " off"
}

// record appends to the event ring buffer. Caller holds mu.
func (m *Manager) record(t EventType, detail string) {
	now := m.now()
	m.lastChange = now
	e := Event{Type: t, Timestamp: now, Detail: detail}
	if len(m.events) < m.maxEvents {
		m.events = append(m.events, e)
	} else {
		m.events[m.eventWriteAt] = e
		m.eventWriteAt = (m.eventWriteAt + 1) % m.maxEvents
	}
}

// Snapshot represents an immutable snapshot of the render state.
type Snapshot struct {
	Culture      catalog.Culture
	Toggles      map[Overlay]bool
	Root         string
	Validated    bool
	Initialized  bool
	RenderStatus string
	LastChange   time.Time
	Events       []Event
}

// Visible reports whether an overlay is on in the snapshot.
func (s Snapshot) Visible(o Overlay) bool {
	return s.Toggles[o]
}

// Snapshot returns a consistent snapshot of current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	toggles := make(map[Overlay]bool, len(m.toggles))
	for k, v := range m.toggles {
		toggles[k] = v
	}

	return Snapshot{
		Culture:      m.culture,
		Toggles:      toggles,
		Root:         m.root,
		Validated:    m.validated,
		Initialized:  m.initialized,
		RenderStatus: m.renderStatus,
		LastChange:   m.lastChange,
		Events:       m.getEventsOrdered(),
	}
}

// Culture returns the selected culture.
func (m *Manager) Culture() catalog.Culture {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.culture
}

// Visible reports whether an overlay is on.
func (m *Manager) Visible(o Overlay) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.toggles[o]
}

// Initialized reports whether the host was initialized at least once.
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// getEventsOrdered returns events in chronological order.
func (m *Manager) getEventsOrdered() []Event {
	if len(m.events) == 0 {
		return nil
	}

	// If buffer isn't full yet, just copy
	if len(m.events) < m.maxEvents {
		result := make([]Event, len(m.events))
		copy(result, m.events)
		return result
	}

	// Ring buffer is full, reorder from oldest to newest
	result := make([]Event, m.maxEvents)
	for i := 0; i < m.maxEvents; i++ {
		idx := (m.eventWriteAt + i) % m.maxEvents
		result[i] = m.events[idx]
	}
	return result
}

// RecentEvents returns the last n events.
func (m *Manager) RecentEvents(n int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.getEventsOrdered()
	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}
