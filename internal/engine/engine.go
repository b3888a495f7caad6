// Package engine owns one chart instance: asset resolution, host
// initialization with render escalation, overlays, playback, interaction and
// settings persistence.
//
// Instances share nothing. A comparison view runs a second Engine.
package engine

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/clock"
	"github.com/litescript/ls-skychart/internal/config"
	"github.com/litescript/ls-skychart/internal/escalation"
	"github.com/litescript/ls-skychart/internal/host"
	"github.com/litescript/ls-skychart/internal/interaction"
	"github.com/litescript/ls-skychart/internal/location"
	"github.com/litescript/ls-skychart/internal/logging"
	"github.com/litescript/ls-skychart/internal/overlay"
	"github.com/litescript/ls-skychart/internal/playback"
	"github.com/litescript/ls-skychart/internal/projection"
	"github.com/litescript/ls-skychart/internal/resolver"
	"github.com/litescript/ls-skychart/internal/settings"
	"github.com/litescript/ls-skychart/internal/state"
)

// Chart is the host handle the engine drives: it is initialized, reports its
// surface and accepts overlay drawing. It may also implement host.Projector.
type Chart interface {
	host.Host
	host.Container
	overlay.Surface
}

// Report summarizes a mount.
type Report struct {
	Resolution resolver.Resolution
	Outcome    escalation.Outcome
	HostErr    error // host.ErrNotReady when the host never became available
	Loaded     []string
	Failed     []string
	Stars      overlay.Stats
	Mansions   overlay.Stats
}

// Engine is one chart instance.
type Engine struct {
	id     string
	cfg    *config.Config
	chart  Chart
	logger *zap.Logger

	lookup     host.Lookup
	httpClient *http.Client
	clk        clock.Clock
	sleep      escalation.SleepFunc
	locator    location.Locator
	hitRadius  float64
	labelDX    float64
	labelDY    float64
	labelSet   bool
	tipDX      float64
	tipDY      float64
	tipSet     bool

	resolver    *resolver.Resolver
	loader      *catalog.Loader
	proj        *projection.Engine
	renderer    *overlay.Renderer
	playback    *playback.Controller
	interaction *interaction.Layer
	state       *state.Manager
	settings    *settings.Committer

	ctx    context.Context
	cancel context.CancelFunc

	mountOnce sync.Once
	report    Report
	closeOnce sync.Once

	mu       sync.Mutex
	mounted  bool
	root     string
	closed   bool
	hostCfg  host.Config
	loc      *playback.Location
	cultures map[catalog.Culture][]catalog.CatalogEntry
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHTTPClient sets the client used for probes, catalog fetches and
// settings commits.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = c
	}
}

// WithLookup replaces the host lookup. By default the chart is available
// immediately.
func WithLookup(l host.Lookup) Option {
	return func(e *Engine) {
		e.lookup = l
	}
}

// WithClock sets the playback clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clk = c
	}
}

// WithSleep sets the escalation verification wait.
func WithSleep(fn escalation.SleepFunc) Option {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// WithLocator overrides the locate action.
func WithLocator(l location.Locator) Option {
	return func(e *Engine) {
		e.locator = l
	}
}

// WithHitRadius sets the pointer tolerance in surface units.
func WithHitRadius(r float64) Option {
	return func(e *Engine) {
		e.hitRadius = r
	}
}

// WithLabelOffset sets the overlay label offset in surface units.
func WithLabelOffset(dx, dy float64) Option {
	return func(e *Engine) {
		e.labelDX, e.labelDY, e.labelSet = dx, dy, true
	}
}

// WithTooltipOffset sets where the hover tooltip sits relative to its marker.
func WithTooltipOffset(dx, dy float64) Option {
	return func(e *Engine) {
		e.tipDX, e.tipDY, e.tipSet = dx, dy, true
	}
}

// New creates an unmounted engine for chart.
func New(cfg *config.Config, chart Chart, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &Engine{
		id:       uuid.New().String(),
		cfg:      cfg,
		chart:    chart,
		cultures: make(map[catalog.Culture][]catalog.CatalogEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger).With(zap.String("engine", e.id[:8]))
	if e.httpClient == nil {
		e.httpClient = &http.Client{Timeout: cfg.GetDataTimeout()}
	}
	if e.lookup == nil {
		e.lookup = host.Static(chart)
	}
	if e.clk == nil {
		e.clk = clock.Real()
	}
	if e.locator == nil && cfg.IsLocateEnabled() {
		e.locator = location.HTTPLocator{URL: cfg.Observer.LocateURL, Client: e.httpClient}
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.resolver = resolver.New(cfg.Candidates(),
		resolver.WithHTTPClient(e.httpClient),
		resolver.WithTimeout(cfg.GetDataTimeout()),
		resolver.WithRequiredFiles(catalog.RequiredFiles()...),
		resolver.WithLogger(e.logger),
	)
	e.loader = catalog.NewLoader(catalog.WithHTTPClient(e.httpClient), catalog.WithLogger(e.logger))

	var projector host.Projector
	if p, ok := chart.(host.Projector); ok {
		projector = p
	}
	e.proj = projection.New(projector, 0, 0)

	renderOpts := []overlay.Option{overlay.WithLogger(e.logger)}
	if e.labelSet {
		renderOpts = append(renderOpts, overlay.WithLabelOffset(e.labelDX, e.labelDY))
	}
	e.renderer = overlay.NewRenderer(chart, e.proj, renderOpts...)

	e.state = state.NewManager(state.Config{
		Culture: cfg.Culture(),
		Toggles: state.DefaultConfig().Toggles,
	})
	e.interaction = interaction.New(e.renderer, cfg.Culture())
	if e.hitRadius > 0 {
		e.interaction.SetHitRadius(e.hitRadius)
	}
	if e.tipSet {
		e.interaction.SetTooltipOffset(e.tipDX, e.tipDY)
	}

	e.playback = playback.New(chart, cfg.Location(),
		playback.WithClock(e.clk),
		playback.WithInterval(cfg.GetPlaybackInterval()),
		playback.WithLogger(e.logger),
	)
	e.playback.SetSpeed(cfg.Speed())

	e.settings = settings.New(cfg.Backend.URL, e.id,
		settings.WithHTTPClient(e.httpClient),
		settings.WithDebounce(cfg.GetDebounce()),
		settings.WithLogger(e.logger),
	)
	return e
}

// ID is the instance identifier.
func (e *Engine) ID() string {
	return e.id
}

// Mount runs the startup sequence once: resolve the data root, wait for the
// host, display and verify the chart, load catalogs, draw overlays and attach
// interaction. Later calls return the first report.
func (e *Engine) Mount(ctx context.Context) Report {
	e.mountOnce.Do(func() {
		e.report = e.mount(ctx)
	})
	return e.report
}

func (e *Engine) mount(parent context.Context) Report {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	var rep Report

	rep.Resolution = e.resolver.Resolve(ctx)
	root := rep.Resolution.Root()
	e.state.SetRoot(root, rep.Resolution.Validated)

	h, err := host.Acquire(ctx, e.lookup, e.cfg.GetHostPoll(), e.cfg.Render.HostPollTries, e.logger)
	if err != nil {
		e.logger.Warn("chart host unavailable", zap.Error(err))
		e.state.SetRenderStatus("host unavailable")
		rep.HostErr = err
		return rep
	}

	escOpts := []escalation.Option{
		escalation.WithResync(e.syncViewpoint),
		escalation.WithLogger(e.logger),
	}
	if e.sleep != nil {
		escOpts = append(escOpts, escalation.WithSleep(e.sleep))
	}
	rep.Outcome = escalation.New(h, e.chart, escOpts...).Run(ctx, e.plan(root))
	e.state.MarkInitialized()
	e.state.SetRenderStatus(renderStatus(rep.Outcome))
	if rep.Outcome.Err != nil && ctx.Err() != nil {
		return rep
	}

	// Escalate2 may have forced the mirror root; overlays follow the host.
	if rep.Outcome.Config.DataPath != "" {
		root = rep.Outcome.Config.DataPath
	}
	if err := e.syncViewpoint(); err != nil {
		e.logger.Debug("initial viewpoint push failed", zap.Error(err))
	}

	culture := e.state.Culture()
	set := e.loader.LoadAll(ctx, root, catalog.FileStars, catalog.CultureFile(culture))
	for name := range set.Entries {
		rep.Loaded = append(rep.Loaded, name)
	}
	for name := range set.Failed {
		rep.Failed = append(rep.Failed, name)
	}
	sort.Strings(rep.Loaded)
	sort.Strings(rep.Failed)
	if ctx.Err() != nil {
		return rep
	}

	e.mu.Lock()
	e.root = root
	e.hostCfg = rep.Outcome.Config
	if entries, ok := set.Entries[catalog.CultureFile(culture)]; ok {
		e.cultures[culture] = entries
	}
	e.mu.Unlock()

	e.renderer.SetBaseIndex(catalog.NewBaseIndex(set.Entries[catalog.FileStars]))
	e.resizeFromSurface()
	rep.Stars, rep.Mansions = e.drawOverlays()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return rep
	}
	e.mounted = true
	e.interaction.Attach()
	e.mu.Unlock()

	e.logger.Info("chart mounted",
		zap.String("root", root),
		zap.Stringer("tier", rep.Outcome.Tier),
		zap.Bool("visible", rep.Outcome.Visible),
		zap.Int("stars", rep.Stars.Drawn),
		zap.Int("mansions", rep.Mansions.Drawn))
	return rep
}

func (e *Engine) plan(root string) escalation.Plan {
	snap := e.state.Snapshot()
	return escalation.Plan{
		Base: host.Config{
			DataPath:           root,
			Lang:               e.cfg.Chart.Lang,
			Culture:            snap.Culture,
			Width:              e.cfg.Chart.Width,
			Projection:         e.cfg.Chart.Projection,
			ShowStars:          true,
			ShowConstellations: snap.Visible(state.OverlayConstellations),
			ShowMilkyWay:       snap.Visible(state.OverlayMilkyWay),
			ShowPlanets:        snap.Visible(state.OverlayPlanets),
			ShowLabels:         false,
		},
		AltProjection: e.cfg.Render.AltProjection,
		MinWidth:      e.cfg.Render.MinWidth,
		MirrorRoot:    e.cfg.Render.MirrorRoot,
		VerifyDelay:   e.cfg.GetVerifyDelay(),
	}
}

func renderStatus(out escalation.Outcome) string {
	switch {
	case out.Visible:
		return "visible (" + out.Tier.String() + ")"
	case errors.Is(out.Err, escalation.ErrRenderNotVisible):
		return "degraded"
	default:
		return "cancelled"
	}
}

// syncViewpoint pushes the displayed date and observer into the host.
func (e *Engine) syncViewpoint() error {
	loc := e.Location()
	return e.chart.SetViewpoint(host.Viewpoint{
		Date:            e.playback.Current(),
		Lat:             loc.Lat,
		Lon:             loc.Lon,
		TimezoneMinutes: loc.TimezoneMinutes,
	})
}

func (e *Engine) resizeFromSurface() {
	s := e.chart.Surface()
	e.proj.SetSize(s.Width, s.Height)
	e.interaction.SetBounds(float64(s.Width), float64(s.Height))
	e.traceEcliptic()
}

// drawOverlays draws or clears both overlay layers according to the toggles.
func (e *Engine) drawOverlays() (stars, mansions overlay.Stats) {
	snap := e.state.Snapshot()

	if snap.Visible(state.OverlayStars) {
		e.mu.Lock()
		entries := e.cultures[snap.Culture]
		e.mu.Unlock()
		stars = e.renderer.Draw(overlay.LayerStars, entries, overlay.Options{
			Culture:  snap.Culture,
			MagLimit: e.cfg.Chart.MagLimit,
		})
	} else {
		e.renderer.Clear(overlay.LayerStars)
	}

	if snap.Visible(state.OverlayMansions) {
		mansions = e.renderer.DrawMansions(e.proj.MansionCoords(), snap.Culture)
	} else {
		e.renderer.Clear(overlay.LayerMansions)
	}
	return stars, mansions
}

// Mounted reports whether Mount completed.
func (e *Engine) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mounted
}

// Snapshot returns the render state.
func (e *Engine) Snapshot() state.Snapshot {
	return e.state.Snapshot()
}

// Events returns the last n render-state changes, oldest first.
func (e *Engine) Events(n int) []state.Event {
	return e.state.RecentEvents(n)
}

// Toggle flips an overlay, redraws immediately and schedules a settings
// commit.
func (e *Engine) Toggle(o state.Overlay) bool {
	on := e.state.Toggle(o)
	e.apply(o)
	e.settings.Schedule(e.state.Snapshot())
	return on
}

// SetVisible sets an overlay's visibility.
func (e *Engine) SetVisible(o state.Overlay, on bool) {
	if e.state.Visible(o) == on {
		return
	}
	e.state.SetVisible(o, on)
	e.apply(o)
	e.settings.Schedule(e.state.Snapshot())
}

func (e *Engine) apply(o state.Overlay) {
	if !e.Mounted() {
		return
	}
	switch o {
	case state.OverlayStars, state.OverlayMansions:
		e.drawOverlays()
	default:
		e.reinitHost()
	}
}

// reinitHost pushes the base-layer toggles into the host and redraws the
// overlays the rebuild cleared.
func (e *Engine) reinitHost() {
	snap := e.state.Snapshot()

	e.mu.Lock()
	cfg := e.hostCfg
	cfg.Culture = snap.Culture
	cfg.ShowConstellations = snap.Visible(state.OverlayConstellations)
	cfg.ShowMilkyWay = snap.Visible(state.OverlayMilkyWay)
	cfg.ShowPlanets = snap.Visible(state.OverlayPlanets)
	e.hostCfg = cfg
	e.mu.Unlock()

	if err := e.chart.Initialize(cfg); err != nil {
		e.logger.Debug("host reinitialize failed", zap.Error(err))
	}
	e.traceEcliptic()
	if err := e.syncViewpoint(); err != nil {
		e.logger.Debug("viewpoint push failed", zap.Error(err))
	}
	e.drawOverlays()
}

// SetCulture switches the naming culture, loading its overlay file on first
// use.
func (e *Engine) SetCulture(c catalog.Culture) bool {
	if !e.state.SetCulture(c) {
		return false
	}
	e.cultureChanged(c)
	return true
}

// CycleCulture advances to the next culture.
func (e *Engine) CycleCulture() catalog.Culture {
	c := e.state.CycleCulture()
	e.cultureChanged(c)
	return c
}

func (e *Engine) cultureChanged(c catalog.Culture) {
	e.interaction.SetCulture(c)
	if e.Mounted() {
		e.ensureCulture(c)
		// The host names its own layers in the active culture too.
		e.reinitHost()
	}
	e.settings.Schedule(e.state.Snapshot())
}

func (e *Engine) ensureCulture(c catalog.Culture) {
	e.mu.Lock()
	_, ok := e.cultures[c]
	root := e.root
	e.mu.Unlock()
	if ok {
		return
	}

	entries, err := e.loader.Load(e.ctx, root, catalog.CultureFile(c))
	if err != nil {
		e.logger.Warn("culture overlay unavailable", zap.String("culture", string(c)), zap.Error(err))
		return
	}
	e.mu.Lock()
	e.cultures[c] = entries
	e.mu.Unlock()
}

// Resize follows a container size change.
func (e *Engine) Resize() {
	e.resizeFromSurface()
	if e.Mounted() {
		e.renderer.Redraw()
	}
}

// Play starts playback from the displayed date.
func (e *Engine) Play() bool {
	return e.playback.Play(e.playback.Current())
}

// Pause stops playback.
func (e *Engine) Pause() {
	e.playback.Pause()
}

// TogglePlay plays or pauses and reports whether playback is running.
func (e *Engine) TogglePlay() bool {
	return e.playback.Toggle(e.playback.Current())
}

// Playing reports whether playback is running.
func (e *Engine) Playing() bool {
	return e.playback.Playing()
}

// SetSpeed changes the playback speed.
func (e *Engine) SetSpeed(s playback.Speed) {
	e.playback.SetSpeed(s)
}

// CycleSpeed advances to the next speed.
func (e *Engine) CycleSpeed() playback.Speed {
	s := e.playback.Speed().Next()
	e.playback.SetSpeed(s)
	return s
}

// Speed returns the playback speed.
func (e *Engine) Speed() playback.Speed {
	return e.playback.Speed()
}

// Date returns the displayed date.
func (e *Engine) Date() time.Time {
	return e.playback.Current()
}

// Location returns the observer.
func (e *Engine) Location() playback.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locationLocked()
}

func (e *Engine) locationLocked() playback.Location {
	if e.loc != nil {
		return *e.loc
	}
	return e.cfg.Location()
}

// Locate asks the locator for the observer position. On failure the current
// location is kept and false returned.
func (e *Engine) Locate(ctx context.Context) bool {
	loc, ok := location.Fallback(ctx, e.locator, e.Location())
	if !ok {
		e.logger.Info("location unavailable, keeping current observer")
		return false
	}

	e.mu.Lock()
	e.loc = &loc
	e.mu.Unlock()

	e.playback.SetLocation(loc)
	if err := e.syncViewpoint(); err != nil {
		e.logger.Debug("viewpoint push failed", zap.Error(err))
	}
	return true
}

// Search filters overlay markers by name or identifier.
func (e *Engine) Search(q string) {
	e.interaction.Search(q)
}

// Interaction returns the pointer and search layer.
func (e *Engine) Interaction() *interaction.Layer {
	return e.interaction
}

// Renderer returns the overlay renderer.
func (e *Engine) Renderer() *overlay.Renderer {
	return e.renderer
}

// Flush commits pending settings now.
func (e *Engine) Flush(ctx context.Context) error {
	return e.settings.Flush(ctx)
}

// Close tears the instance down: pending probes and delays are cancelled,
// playback stopped, interaction detached and the settings debounce dropped.
// Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		e.cancel()
		e.playback.Close()
		e.interaction.Detach()
		e.settings.Close()
		e.logger.Debug("engine closed")
	})
}
