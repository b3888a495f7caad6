// Package config loads the sky chart configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/playback"
	"github.com/litescript/ls-skychart/internal/resolver"
)

// Config holds all chart settings.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Backend  BackendConfig  `yaml:"backend"`
	Chart    ChartConfig    `yaml:"chart"`
	Observer ObserverConfig `yaml:"observer"`
	Playback PlaybackConfig `yaml:"playback"`
	Render   RenderConfig   `yaml:"render"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DataConfig lists the candidate data roots.
type DataConfig struct {
	Origin     string   `yaml:"origin"`      // base for relative local paths
	LocalPath  string   `yaml:"local_path"`  // static files served with the app
	ProxyPath  string   `yaml:"proxy_path"`  // same-origin proxy to a mirror
	RemoteBase string   `yaml:"remote_base"` // configured remote root
	Mirrors    []string `yaml:"mirrors"`
	Timeout    string   `yaml:"timeout"`
}

// BackendConfig configures the optional settings endpoint.
type BackendConfig struct {
	URL      string `yaml:"url"` // empty disables settings persistence
	Debounce string `yaml:"debounce"`
}

// ChartConfig is the initial chart look.
type ChartConfig struct {
	Culture    string  `yaml:"culture"`
	Lang       string  `yaml:"lang"`
	Projection string  `yaml:"projection"`
	Width      int     `yaml:"width"`
	MagLimit   float64 `yaml:"mag_limit"`
}

// ObserverConfig is the default observer location.
type ObserverConfig struct {
	Lat             float64 `yaml:"lat"`
	Lon             float64 `yaml:"lon"`
	TimezoneMinutes int     `yaml:"timezone_minutes"`
	LocateURL       string  `yaml:"locate_url"` // empty disables the locate action
}

// PlaybackConfig configures time travel.
type PlaybackConfig struct {
	Interval string `yaml:"interval"`
	Speed    string `yaml:"speed"`
}

// RenderConfig configures render verification and host polling.
type RenderConfig struct {
	VerifyDelay   string `yaml:"verify_delay"`
	MinWidth      int    `yaml:"min_width"`
	AltProjection string `yaml:"alt_projection"`
	MirrorRoot    string `yaml:"mirror_root"`
	HostPoll      string `yaml:"host_poll"`
	HostPollTries int    `yaml:"host_poll_tries"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Origin:    "http://127.0.0.1:8080",
			LocalPath: "/data/celestial/",
			ProxyPath: "/api/celestial/",
			Mirrors:   append([]string(nil), resolver.PublicMirrors...),
			Timeout:   "10s",
		},
		Backend: BackendConfig{
			Debounce: "800ms",
		},
		Chart: ChartConfig{
			Culture:    string(catalog.CultureChinese),
			Lang:       "zh",
			Projection: "airy",
			Width:      0,
			MagLimit:   5,
		},
		Observer: ObserverConfig{
			Lat:             39.9042,
			Lon:             116.4074,
			TimezoneMinutes: 480,
		},
		Playback: PlaybackConfig{
			Interval: "250ms",
			Speed:    "hour",
		},
		Render: RenderConfig{
			VerifyDelay:   "300ms",
			MinWidth:      640,
			AltProjection: "equirectangular",
			MirrorRoot:    resolver.PublicMirrors[0],
			HostPoll:      "100ms",
			HostPollTries: 50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SKYCHART_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("SKYCHART_REMOTE_BASE"); v != "" {
		c.Data.RemoteBase = v
	}
	if v := os.Getenv("SKYCHART_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SKYCHART_CULTURE"); v != "" {
		c.Chart.Culture = v
	}
	if v := os.Getenv("SKYCHART_LAT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Observer.Lat = f
		}
	}
	if v := os.Getenv("SKYCHART_LON"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Observer.Lon = f
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := catalog.ParseCulture(c.Chart.Culture); err != nil {
		return fmt.Errorf("chart.culture: %w", err)
	}
	if _, err := playback.ParseSpeed(c.Playback.Speed); err != nil {
		return fmt.Errorf("playback.speed: %w", err)
	}
	if c.Observer.Lat < -90 || c.Observer.Lat > 90 {
		return fmt.Errorf("observer.lat %v out of range", c.Observer.Lat)
	}
	if c.Observer.Lon < -180 || c.Observer.Lon > 180 {
		return fmt.Errorf("observer.lon %v out of range", c.Observer.Lon)
	}
	return nil
}

// Culture returns the configured culture, defaulting to cn.
func (c *Config) Culture() catalog.Culture {
	cu, err := catalog.ParseCulture(c.Chart.Culture)
	if err != nil {
		return catalog.CultureChinese
	}
	return cu
}

// Speed returns the configured initial playback speed.
func (c *Config) Speed() playback.Speed {
	s, err := playback.ParseSpeed(c.Playback.Speed)
	if err != nil {
		return playback.HourPerSecond
	}
	return s
}

// Candidates returns the resolver probe order.
func (c *Config) Candidates() []resolver.Candidate {
	return resolver.BuildCandidates(c.Data.Origin, c.Data.LocalPath, c.Data.ProxyPath, c.Data.RemoteBase, c.Data.Mirrors)
}

// Location returns the default observer.
func (c *Config) Location() playback.Location {
	return playback.Location{
		Lat:             c.Observer.Lat,
		Lon:             c.Observer.Lon,
		TimezoneMinutes: c.Observer.TimezoneMinutes,
	}
}

// GetDataTimeout returns the per-file request timeout.
func (c *Config) GetDataTimeout() time.Duration {
	return parseDuration(c.Data.Timeout, 10*time.Second)
}

// GetDebounce returns the settings commit debounce.
func (c *Config) GetDebounce() time.Duration {
	return parseDuration(c.Backend.Debounce, 800*time.Millisecond)
}

// GetPlaybackInterval returns the playback tick period.
func (c *Config) GetPlaybackInterval() time.Duration {
	return parseDuration(c.Playback.Interval, playback.DefaultInterval)
}

// GetVerifyDelay returns the render verification delay.
func (c *Config) GetVerifyDelay() time.Duration {
	return parseDuration(c.Render.VerifyDelay, 300*time.Millisecond)
}

// GetHostPoll returns the host-ready polling interval.
func (c *Config) GetHostPoll() time.Duration {
	return parseDuration(c.Render.HostPoll, 100*time.Millisecond)
}

// IsSettingsEnabled reports whether a backend is configured.
func (c *Config) IsSettingsEnabled() bool {
	return c.Backend.URL != ""
}

// IsLocateEnabled reports whether the locate action has an endpoint.
func (c *Config) IsLocateEnabled() bool {
	return c.Observer.LocateURL != ""
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
