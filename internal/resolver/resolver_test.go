package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litescript/ls-skychart/internal/catalog"
)

const fc = `{"type":"FeatureCollection","features":[]}`

var testFiles = []string{catalog.FileStars, catalog.FileConstNames, catalog.FilePlanets}

// dataServer serves each test file under /<prefix>/ according to mode:
// "ok" serves valid bodies, "404" fails, "html" serves a malformed body.
type dataServer struct {
	srv  *httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newDataServer(t *testing.T, modes map[string]string) *dataServer {
	t.Helper()
	ds := &dataServer{hits: make(map[string]int)}
	ds.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
		prefix := parts[0]

		ds.mu.Lock()
		ds.hits[prefix]++
		ds.mu.Unlock()

		switch modes[prefix] {
		case "ok":
			if len(parts) == 2 && parts[1] == catalog.FilePlanets {
				_, _ = w.Write([]byte(`{"sol":{}}`))
				return
			}
			_, _ = w.Write([]byte(fc))
		case "html":
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		case "partial":
			if len(parts) == 2 && parts[1] == catalog.FileStars {
				_, _ = w.Write([]byte(fc))
				return
			}
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ds.srv.Close)
	return ds
}

func (ds *dataServer) root(prefix string) string {
	return ds.srv.URL + "/" + prefix + "/"
}

func (ds *dataServer) hitsFor(prefix string) int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.hits[prefix]
}

func TestResolve_FirstValidCandidateWins(t *testing.T) {
	ds := newDataServer(t, map[string]string{"a": "404", "b": "ok", "c": "ok"})

	r := New([]Candidate{
		{Name: "A", Root: ds.root("a")},
		{Name: "B", Root: ds.root("b")},
		{Name: "C", Root: ds.root("c")},
	}, WithHTTPClient(ds.srv.Client()), WithRequiredFiles(testFiles...))

	res := r.Resolve(context.Background())

	assert.Equal(t, "B", res.Candidate.Name)
	assert.Equal(t, 1, res.Index)
	assert.True(t, res.Validated)
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, ds.hitsFor("c"), "C must never be contacted")
	assert.Equal(t, len(testFiles), ds.hitsFor("b"))
	assert.Equal(t, 1, ds.hitsFor("a"), "A stops at its first failing file")
}

func TestResolve_MalformedBodyDisqualifies(t *testing.T) {
	ds := newDataServer(t, map[string]string{"a": "html", "b": "partial", "c": "ok"})

	r := New([]Candidate{
		{Name: "A", Root: ds.root("a")},
		{Name: "B", Root: ds.root("b")},
		{Name: "C", Root: ds.root("c")},
	}, WithHTTPClient(ds.srv.Client()), WithRequiredFiles(testFiles...))

	res := r.Resolve(context.Background())
	require.True(t, res.Validated)
	assert.Equal(t, "C", res.Candidate.Name)
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, catalog.FileStars, res.Attempts[0].Failed)
	assert.Equal(t, catalog.FileConstNames, res.Attempts[1].Failed, "B is missing its second file")
}

func TestResolve_Cached(t *testing.T) {
	ds := newDataServer(t, map[string]string{"a": "ok"})

	r := New([]Candidate{{Name: "A", Root: ds.root("a")}},
		WithHTTPClient(ds.srv.Client()), WithRequiredFiles(testFiles...))

	first := r.Resolve(context.Background())
	before := r.Requests()
	served := ds.hitsFor("a")

	second := r.Resolve(context.Background())

	assert.Equal(t, first.Root(), second.Root())
	assert.Equal(t, before, r.Requests(), "second call issues no requests")
	assert.Equal(t, served, ds.hitsFor("a"))
}

func TestResolve_AllFailFallsBackToFirst(t *testing.T) {
	ds := newDataServer(t, map[string]string{"a": "404", "b": "html"})

	r := New([]Candidate{
		{Name: "A", Root: ds.root("a")},
		{Name: "B", Root: ds.root("b")},
	}, WithHTTPClient(ds.srv.Client()), WithRequiredFiles(testFiles...))

	res := r.Resolve(context.Background())

	assert.Equal(t, "A", res.Candidate.Name)
	assert.False(t, res.Validated)
	assert.ErrorIs(t, res.Err, ErrAssetUnavailable)
	assert.Len(t, res.Attempts, 2)

	cached, ok := r.Resolved()
	require.True(t, ok)
	assert.Equal(t, res.Root(), cached.Root())
}

func TestResolve_NetworkErrorDisqualifies(t *testing.T) {
	ds := newDataServer(t, map[string]string{"b": "ok"})

	r := New([]Candidate{
		{Name: "dead", Root: "http://127.0.0.1:1/data/"},
		{Name: "B", Root: ds.root("b")},
	}, WithHTTPClient(ds.srv.Client()), WithRequiredFiles(testFiles...))

	res := r.Resolve(context.Background())
	assert.Equal(t, "B", res.Candidate.Name)
	assert.Error(t, res.Attempts[0].Err)
}

func TestResolve_ConcurrentCallsShareOnePass(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasSuffix(r.URL.Path, catalog.FilePlanets) {
			_, _ = w.Write([]byte(`{"sol":{}}`))
			return
		}
		_, _ = w.Write([]byte(fc))
	}))
	defer srv.Close()

	r := New([]Candidate{{Name: "A", Root: srv.URL + "/"}},
		WithHTTPClient(srv.Client()), WithRequiredFiles(testFiles...))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.Resolve(context.Background())
			assert.True(t, res.Validated)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(len(testFiles)), hits.Load())
}

func TestResolve_CancelledIsNotCached(t *testing.T) {
	ds := newDataServer(t, map[string]string{"a": "ok"})
	r := New([]Candidate{{Name: "A", Root: ds.root("a")}},
		WithHTTPClient(ds.srv.Client()), WithRequiredFiles(testFiles...))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Resolve(ctx)
	assert.False(t, res.Validated)
	_, ok := r.Resolved()
	assert.False(t, ok)

	res = r.Resolve(context.Background())
	assert.True(t, res.Validated)
}

func TestResolve_JoinerOutlivesCancelledLeader(t *testing.T) {
	var hits atomic.Int32
	inFlight := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(inFlight)
			<-r.Context().Done()
			return
		}
		if strings.HasSuffix(r.URL.Path, catalog.FilePlanets) {
			_, _ = w.Write([]byte(`{"sol":{}}`))
			return
		}
		_, _ = w.Write([]byte(fc))
	}))
	defer srv.Close()

	r := New([]Candidate{{Name: "A", Root: srv.URL + "/"}},
		WithHTTPClient(srv.Client()), WithRequiredFiles(testFiles...))

	ctx, cancel := context.WithCancel(context.Background())
	leader := make(chan Resolution, 1)
	go func() { leader <- r.Resolve(ctx) }()
	<-inFlight

	joiner := make(chan Resolution, 1)
	go func() { joiner <- r.Resolve(context.Background()) }()
	cancel()

	assert.False(t, (<-leader).Validated)
	res := <-joiner
	assert.True(t, res.Validated, "live caller must not inherit a cancelled pass")
	cached, ok := r.Resolved()
	require.True(t, ok)
	assert.Equal(t, res.Candidate, cached.Candidate)
}

func TestResolve_NoCandidates(t *testing.T) {
	r := New(nil)
	res := r.Resolve(context.Background())
	assert.False(t, res.Validated)
	assert.Equal(t, "", res.Root())
}

func TestBuildCandidates(t *testing.T) {
	got := BuildCandidates("http://127.0.0.1:8080", "/data", "/proxy/celestial", "https://example.org/sky", PublicMirrors)

	require.Len(t, got, 3+len(PublicMirrors))
	assert.Equal(t, Candidate{Name: "local", Root: "http://127.0.0.1:8080/data/"}, got[0])
	assert.Equal(t, Candidate{Name: "proxy", Root: "http://127.0.0.1:8080/proxy/celestial/"}, got[1])
	assert.Equal(t, Candidate{Name: "remote", Root: "https://example.org/sky/"}, got[2])
	assert.Equal(t, "mirror-1", got[3].Name)
}

func TestBuildCandidates_SkipsEmptyAndDuplicates(t *testing.T) {
	got := BuildCandidates("", "/data", "", PublicMirrors[0], PublicMirrors)

	require.Len(t, got, len(PublicMirrors))
	assert.Equal(t, "remote", got[0].Name)
	assert.Equal(t, "mirror-2", got[1].Name)
}
