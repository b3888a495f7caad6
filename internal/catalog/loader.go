package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/litescript/ls-skychart/internal/logging"
)

// Data file names, relative to a resolved root.
const (
	FileStars       = "stars.6.json"
	FileConstNames  = "constellations.json"
	FileConstLines  = "constellations.lines.json"
	FileConstBounds = "constellations.bounds.json"
	FileMilkyWay    = "mw.json"
	FilePlanets     = "planets.json"
)

// CultureFile is the named overlay catalog for a culture.
func CultureFile(c Culture) string {
	return "stars." + string(c) + ".json"
}

// RequiredFiles is the base set every candidate root must serve. Culture
// overlays are not part of it: the public d3-celestial mirrors do not carry
// stars.<culture>.json, so that file is loaded from the resolved root and
// omitted like any other failed overlay.
func RequiredFiles() []string {
	return []string{
		FileStars,
		FileConstNames,
		FileConstLines,
		FileConstBounds,
		FileMilkyWay,
		FilePlanets,
	}
}

// JoinURL joins a root and a file name with exactly one slash.
func JoinURL(root, name string) string {
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(name, "/")
}

// DefaultTimeout for a single data-file request.
const DefaultTimeout = 15 * time.Second

// Loader fetches and decodes data files from a resolved root.
type Loader struct {
	client *http.Client
	logger *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		l.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a data-file loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		l.client = &http.Client{Timeout: DefaultTimeout}
	}
	l.logger = logging.OrDiscard(l.logger)
	return l
}

// Fetch retrieves one file and returns its body.
func (l *Loader) Fetch(ctx context.Context, root, name string) ([]byte, error) {
	return FetchBody(ctx, l.client, JoinURL(root, name))
}

// Load fetches and decodes one file.
func (l *Loader) Load(ctx context.Context, root, name string) ([]CatalogEntry, error) {
	body, err := l.Fetch(ctx, root, name)
	if err != nil {
		return nil, err
	}
	entries, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return entries, nil
}

// Set is the outcome of loading several files. A file that failed to load
// is absent from Entries and present in Failed.
type Set struct {
	Entries map[string][]CatalogEntry
	Failed  map[string]error
}

// Has reports whether name loaded.
func (s Set) Has(name string) bool {
	_, ok := s.Entries[name]
	return ok
}

// LoadAll fetches the named files concurrently. Individual failures are
// recorded in the returned Set and logged; they never fail the whole load.
func (l *Loader) LoadAll(ctx context.Context, root string, names ...string) Set {
	set := Set{
		Entries: make(map[string][]CatalogEntry, len(names)),
		Failed:  make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, name := range names {
		name := name
		g.Go(func() error {
			entries, err := l.Load(gctx, root, name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				set.Failed[name] = err
				l.logger.Warn("overlay file unavailable, omitting",
					zap.String("root", root), zap.String("file", name), zap.Error(err))
				return nil
			}
			set.Entries[name] = entries
			return nil
		})
	}
	_ = g.Wait()

	return set
}

// FetchBody GETs url and returns the body of a 2xx response.
func FetchBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "ls-skychart/1.0 (sky chart data)")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status code: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
