// Package hosttest provides a recording host for tests.
package hosttest

import (
	"sync"

	"github.com/litescript/ls-skychart/internal/host"
)

// Fake records every call. The surface it reports is scripted: Surfaces[i]
// is returned after the i-th Initialize (1-based); past the end the last
// entry repeats. With no script the surface is always visible.
type Fake struct {
	mu sync.Mutex

	Inits      []host.Config
	Viewpoints []host.Viewpoint
	Rebuilds   int

	Surfaces      []host.Surface
	RebuildResult *host.Surface // surface from the first Rebuild on, if set

	InitErr error
	Project func(ra, dec float64) (host.Projected, bool)

	rebuilt bool
}

var (
	_ host.Host      = (*Fake)(nil)
	_ host.Container = (*Fake)(nil)
)

// Initialize records cfg.
func (f *Fake) Initialize(cfg host.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Inits = append(f.Inits, cfg)
	return f.InitErr
}

// SetViewpoint records vp.
func (f *Fake) SetViewpoint(vp host.Viewpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Viewpoints = append(f.Viewpoints, vp)
	return nil
}

// Surface returns the scripted surface for the current init count.
func (f *Fake) Surface() host.Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rebuilt && f.RebuildResult != nil {
		return *f.RebuildResult
	}
	if len(f.Surfaces) == 0 {
		return host.Surface{Present: true, Width: 80, Height: 24}
	}
	i := len(f.Inits) - 1
	if i < 0 {
		return host.Surface{}
	}
	if i >= len(f.Surfaces) {
		i = len(f.Surfaces) - 1
	}
	return f.Surfaces[i]
}

// Rebuild records a container rebuild.
func (f *Fake) Rebuild() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rebuilds++
	f.rebuilt = true
}

// ViewpointCount is the number of SetViewpoint calls so far.
func (f *Fake) ViewpointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Viewpoints)
}

// LastViewpoint returns the most recent viewpoint.
func (f *Fake) LastViewpoint() (host.Viewpoint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Viewpoints) == 0 {
		return host.Viewpoint{}, false
	}
	return f.Viewpoints[len(f.Viewpoints)-1], true
}

// InitCount is the number of Initialize calls so far.
func (f *Fake) InitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Inits)
}

// ProjectPoint delegates to Project when set.
func (f *Fake) ProjectPoint(ra, dec float64) (host.Projected, bool) {
	if f.Project == nil {
		return host.Projected{}, false
	}
	return f.Project(ra, dec)
}
