// Package clock abstracts wall time and tickers so time-driven loops can be
// tested without sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time and tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real returns the system clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Mock is a manually advanced clock. Tickers fire only from Advance.
type Mock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*mockTicker
}

// NewMock creates a mock clock starting at start.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

// Now returns the mocked time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set jumps to t without firing tickers.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// NewTicker creates a ticker driven by Advance.
func (m *Mock) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &mockTicker{
		period: d,
		next:   m.now.Add(d),
		c:      make(chan time.Time),
		stop:   make(chan struct{}),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Advance moves time forward by d. Every live ticker that came due fires
// once; Advance returns after each firing ticker's tick has been received or
// the ticker was stopped.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	var due []*mockTicker
	live := m.tickers[:0]
	for _, t := range m.tickers {
		if t.stopped() {
			continue
		}
		live = append(live, t)
		if !t.next.After(now) {
			due = append(due, t)
			for !t.next.After(now) {
				t.next = t.next.Add(t.period)
			}
		}
	}
	m.tickers = live
	m.mu.Unlock()

	for _, t := range due {
		select {
		case t.c <- now:
		case <-t.stop:
		}
	}
}

// Tickers returns the number of live tickers.
func (m *Mock) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

type mockTicker struct {
	period time.Duration
	next   time.Time
	c      chan time.Time

	once sync.Once
	stop chan struct{}
}

func (t *mockTicker) C() <-chan time.Time { return t.c }

func (t *mockTicker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

func (t *mockTicker) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}
