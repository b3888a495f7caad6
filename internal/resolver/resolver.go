// Package resolver picks the data root the sky chart loads its catalogs from.
//
// Candidates are probed strictly in order. A candidate qualifies only when
// every required file answers with a success status and a well-formed body.
// The first qualifying candidate wins and later candidates are never
// contacted. When nothing qualifies the first candidate is used unvalidated.
// The outcome is cached for the life of the Resolver.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/logging"
)

// ErrAssetUnavailable is recorded when no candidate validated.
var ErrAssetUnavailable = errors.New("no candidate data root validated")

// DefaultTimeout bounds each file probe.
const DefaultTimeout = 10 * time.Second

// PublicMirrors are always-reachable copies of the chart data, tried last.
var PublicMirrors = []string{
	"https://cdn.jsdelivr.net/gh/ofrohn/d3-celestial@master/data/",
	"https://unpkg.com/d3-celestial/data/",
	"https://ofrohn.github.io/data/",
}

// Candidate is one data root to probe.
type Candidate struct {
	Name string // e.g. "local", "proxy", "remote", "mirror-1"
	Root string // absolute base URL
}

// Resolution is the cached resolver outcome.
type Resolution struct {
	Candidate Candidate
	Index     int  // position in the candidate list
	Validated bool // false when the best-effort fallback was used
	Attempts  []Attempt
	Err       error // ErrAssetUnavailable on fallback
}

// Root is the resolved base URL.
func (r Resolution) Root() string {
	return r.Candidate.Root
}

// Attempt records one candidate probe.
type Attempt struct {
	Candidate Candidate
	Failed    string // first failing file, empty on success
	Err       error
	Duration  time.Duration
}

// Resolver probes candidates and caches the winner.
type Resolver struct {
	client     *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	candidates []Candidate
	required   []string

	group singleflight.Group

	mu       sync.Mutex
	resolved *Resolution
	requests int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithTimeout sets the per-file request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithRequiredFiles overrides the file set each candidate must serve.
func WithRequiredFiles(files ...string) Option {
	return func(r *Resolver) {
		r.required = files
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a resolver over candidates in priority order.
func New(candidates []Candidate, opts ...Option) *Resolver {
	r := &Resolver{
		timeout:    DefaultTimeout,
		candidates: candidates,
		required:   catalog.RequiredFiles(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: r.timeout}
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// Candidates returns the probe order.
func (r *Resolver) Candidates() []Candidate {
	out := make([]Candidate, len(r.candidates))
	copy(out, r.candidates)
	return out
}

// Resolved returns the cached resolution, if any.
func (r *Resolver) Resolved() (Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved == nil {
		return Resolution{}, false
	}
	return *r.resolved, true
}

// Requests returns how many file requests the resolver has issued.
func (r *Resolver) Requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

// Resolve returns the data root. The first call probes; every later call
// returns the cached value. Concurrent first calls share a single probe pass.
// A cancelled context ends probing early; the fallback is then returned but
// not cached, so a later call can probe again. A caller that joined a shared
// pass cut short by another caller's cancellation probes again under its own
// context.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	for {
		if res, ok := r.Resolved(); ok {
			return res
		}

		v, _, _ := r.group.Do("resolve", func() (interface{}, error) {
			if res, ok := r.Resolved(); ok {
				return res, nil
			}

			res := r.probeAll(ctx)
			if ctx.Err() == nil {
				r.mu.Lock()
				r.resolved = &res
				r.mu.Unlock()
			}
			return res, nil
		})
		if _, ok := r.Resolved(); ok || ctx.Err() != nil {
			return v.(Resolution)
		}
	}
}

func (r *Resolver) probeAll(ctx context.Context) Resolution {
	var attempts []Attempt

	for i, c := range r.candidates {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		failed, err := r.probe(ctx, c)
		attempt := Attempt{Candidate: c, Failed: failed, Err: err, Duration: time.Since(start)}
		attempts = append(attempts, attempt)

		if err == nil {
			r.logger.Info("data root resolved",
				zap.String("candidate", c.Name), zap.String("root", c.Root), zap.Duration("took", attempt.Duration))
			return Resolution{Candidate: c, Index: i, Validated: true, Attempts: attempts}
		}

		r.logger.Debug("candidate rejected",
			zap.String("candidate", c.Name), zap.String("file", failed), zap.Error(err))
	}

	res := Resolution{Index: 0, Attempts: attempts, Err: ErrAssetUnavailable}
	if len(r.candidates) > 0 {
		res.Candidate = r.candidates[0]
	}
	r.logger.Warn("no data root validated, using first candidate",
		zap.String("root", res.Candidate.Root), zap.Int("tried", len(attempts)))
	return res
}

// probe fetches every required file from c, stopping at the first failure.
func (r *Resolver) probe(ctx context.Context, c Candidate) (string, error) {
	if strings.TrimSpace(c.Root) == "" {
		return "", fmt.Errorf("candidate %s: empty root", c.Name)
	}

	for _, name := range r.required {
		r.mu.Lock()
		r.requests++
		r.mu.Unlock()

		body, err := catalog.FetchBody(ctx, r.client, catalog.JoinURL(c.Root, name))
		if err != nil {
			return name, err
		}
		if err := catalog.Validate(name, body); err != nil {
			return name, err
		}
	}
	return "", nil
}

// BuildCandidates assembles the standard probe order: local static path,
// local proxy path, configured remote base, then the public mirrors.
// Relative paths are joined onto origin; empty entries are skipped.
func BuildCandidates(origin, localPath, proxyPath, remoteBase string, mirrors []string) []Candidate {
	var out []Candidate
	add := func(name, root string) {
		root = strings.TrimSpace(root)
		if root == "" {
			return
		}
		if !strings.Contains(root, "://") {
			if origin == "" {
				return
			}
			root = strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(root, "/")
		}
		if !strings.HasSuffix(root, "/") {
			root += "/"
		}
		for _, c := range out {
			if c.Root == root {
				return
			}
		}
		out = append(out, Candidate{Name: name, Root: root})
	}

	add("local", localPath)
	add("proxy", proxyPath)
	add("remote", remoteBase)
	for i, m := range mirrors {
		add(fmt.Sprintf("mirror-%d", i+1), m)
	}
	return out
}
