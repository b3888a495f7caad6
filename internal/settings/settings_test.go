package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type backend struct {
	srv *httptest.Server

	mu       sync.Mutex
	payloads []Payload
	status   int
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{status: http.StatusNoContent}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != Endpoint {
			http.NotFound(w, r)
			return
		}
		var p Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.payloads = append(b.payloads, p)
		status := b.status
		b.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) received() []Payload {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Payload, len(b.payloads))
	copy(out, b.payloads)
	return out
}

func TestSchedule_BurstCollapsesIntoOnePost(t *testing.T) {
	b := newBackend(t)
	c := New(b.srv.URL, "engine-1", WithHTTPClient(b.srv.Client()), WithDebounce(30*time.Millisecond))
	defer c.Close()

	m := state.NewManager(state.DefaultConfig())
	for i := 0; i < 5; i++ {
		m.Toggle(state.OverlayStars)
		c.Schedule(m.Snapshot())
	}

	require.Eventually(t, func() bool { return c.Commits() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	got := b.received()
	require.Len(t, got, 1)
	assert.Equal(t, "engine-1", got[0].Engine)
	assert.Equal(t, "cn", got[0].Culture)
	assert.False(t, got[0].Toggles["stars"], "last scheduled snapshot wins")
}

func TestFlush_CommitsImmediately(t *testing.T) {
	b := newBackend(t)
	c := New(b.srv.URL+"/", "engine-2", WithHTTPClient(b.srv.Client()), WithDebounce(time.Hour))
	defer c.Close()

	m := state.NewManager(state.DefaultConfig())
	m.SetCulture(catalog.CultureHuangji)
	c.Schedule(m.Snapshot())

	require.NoError(t, c.Flush(context.Background()))
	got := b.received()
	require.Len(t, got, 1)
	assert.Equal(t, "hj", got[0].Culture)

	// Nothing pending any more.
	require.NoError(t, c.Flush(context.Background()))
	assert.Len(t, b.received(), 1)
}

func TestFlush_ReportsBackendErrors(t *testing.T) {
	b := newBackend(t)
	b.status = http.StatusInternalServerError
	c := New(b.srv.URL, "e", WithHTTPClient(b.srv.Client()), WithDebounce(time.Hour))
	defer c.Close()

	c.Schedule(state.NewManager(state.DefaultConfig()).Snapshot())
	err := c.Flush(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, c.Commits())
}

func TestDisabledWithoutBackend(t *testing.T) {
	c := New("", "e")
	defer c.Close()

	assert.False(t, c.Enabled())
	c.Schedule(state.NewManager(state.DefaultConfig()).Snapshot())
	assert.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 0, c.Commits())
}

func TestClose_DropsPending(t *testing.T) {
	b := newBackend(t)
	c := New(b.srv.URL, "e", WithHTTPClient(b.srv.Client()), WithDebounce(20*time.Millisecond))

	c.Schedule(state.NewManager(state.DefaultConfig()).Snapshot())
	c.Close()
	c.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, b.received())

	c.Schedule(state.NewManager(state.DefaultConfig()).Snapshot())
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, b.received(), "closed committer ignores new work")
}

func TestPayloadFrom(t *testing.T) {
	m := state.NewManager(state.DefaultConfig())
	m.SetRoot("https://mirror/", true)
	m.SetVisible(state.OverlayMilkyWay, false)

	p := PayloadFrom("id", m.Snapshot())
	assert.Equal(t, "https://mirror/", p.Root)
	assert.False(t, p.Toggles["milkyway"])
	assert.True(t, p.Toggles["mansions"])
	assert.Equal(t, []string{"constellations", "mansions", "planets", "stars"}, enabled(p.Toggles))
}
