// Package settings persists chart toggles to the optional backend.
//
// Local toggles apply immediately; persistence is a separate, debounced
// commit so a burst of toggles produces one request.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/litescript/ls-skychart/internal/logging"
	"github.com/litescript/ls-skychart/internal/state"
)

// Defaults.
const (
	DefaultDebounce = 800 * time.Millisecond
	DefaultTimeout  = 5 * time.Second
	Endpoint        = "/api/settings"
)

// Payload is the committed document.
type Payload struct {
	Engine    string          `json:"engine"`
	Culture   string          `json:"culture"`
	Toggles   map[string]bool `json:"toggles"`
	Root      string          `json:"root,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PayloadFrom builds a payload from a render snapshot.
func PayloadFrom(engineID string, snap state.Snapshot) Payload {
	toggles := make(map[string]bool, len(snap.Toggles))
	for k, v := range snap.Toggles {
		toggles[string(k)] = v
	}
	return Payload{
		Engine:    engineID,
		Culture:   string(snap.Culture),
		Toggles:   toggles,
		Root:      snap.Root,
		UpdatedAt: snap.LastChange,
	}
}

// Committer debounces and posts settings.
type Committer struct {
	url      string
	engineID string
	client   *http.Client
	debounce time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	timer   *time.Timer
	pending *Payload
	closed  bool
	commits int
}

// Option configures a Committer.
type Option func(*Committer)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Committer) {
		s.client = c
	}
}

// WithDebounce sets the quiet period before a commit.
func WithDebounce(d time.Duration) Option {
	return func(s *Committer) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Committer) {
		s.logger = logger
	}
}

// New creates a committer for backendURL. An empty URL disables it.
func New(backendURL, engineID string, opts ...Option) *Committer {
	s := &Committer{
		engineID: engineID,
		debounce: DefaultDebounce,
	}
	if backendURL != "" {
		s.url = strings.TrimRight(backendURL, "/") + Endpoint
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: DefaultTimeout}
	}
	s.logger = logging.OrDiscard(s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Enabled reports whether a backend is configured.
func (s *Committer) Enabled() bool {
	return s.url != ""
}

// Schedule queues snap for commit, restarting the debounce window.
func (s *Committer) Schedule(snap state.Snapshot) {
	if !s.Enabled() {
		return
	}
	p := PayloadFrom(s.engineID, snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = &p

	if s.timer != nil && s.timer.Stop() {
		s.timer.Reset(s.debounce)
		return
	}
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

// Flush commits any pending settings now.
func (s *Committer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	return s.post(ctx, *p)
}

// Close drops pending settings, stops the timer and waits for an in-flight
// commit to finish or abort. Safe to call more than once.
func (s *Committer) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
	s.pending = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Commits returns the number of successful commits.
func (s *Committer) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Committer) fire() {
	defer s.wg.Done()

	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	if p == nil {
		return
	}
	if err := s.post(s.ctx, *p); err != nil {
		s.logger.Warn("settings commit failed", zap.Error(err))
	}
}

func (s *Committer) post(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Engine-ID", s.engineID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post settings: unexpected status code: %d", resp.StatusCode)
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()

	s.logger.Debug("settings committed", zap.String("culture", p.Culture), zap.Strings("on", enabled(p.Toggles)))
	return nil
}

func enabled(toggles map[string]bool) []string {
	var on []string
	for k, v := range toggles {
		if v {
			on = append(on, k)
		}
	}
	sort.Strings(on)
	return on
}
