package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litescript/ls-skychart/internal/host"
	"github.com/litescript/ls-skychart/internal/host/hosttest"
)

var (
	visible = host.Surface{Present: true, Width: 800, Height: 600}
	absent  = host.Surface{}
	zero    = host.Surface{Present: true}
)

func testPlan() Plan {
	return Plan{
		Base: host.Config{
			DataPath:   "http://local/data/",
			Width:      320,
			Projection: host.ProjectionAiry,
		},
		AltProjection: host.ProjectionEquirectangular,
		MinWidth:      640,
		MirrorRoot:    "https://mirror/data/",
		VerifyDelay:   50 * time.Millisecond,
	}
}

func noSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func countState(trace []Transition, s State) int {
	n := 0
	for _, tr := range trace {
		if tr.To == s {
			n++
		}
	}
	return n
}

func TestRun_VisibleFirstTime(t *testing.T) {
	f := &hosttest.Fake{Surfaces: []host.Surface{visible}}
	var delays []time.Duration
	c := New(f, f, WithSleep(noSleep(&delays)))

	out := c.Run(context.Background(), testPlan())

	assert.True(t, out.Visible)
	assert.NoError(t, out.Err)
	assert.Equal(t, Init, out.Tier)
	assert.Equal(t, 1, f.InitCount())
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, delays)
	assert.Equal(t, Done, c.State())
	assert.Zero(t, countState(out.Trace, Escalate1))

	require.Len(t, f.Inits, 1)
	assert.Equal(t, "http://local/data/", f.Inits[0].DataPath)
}

func TestRun_Escalate1Succeeds(t *testing.T) {
	f := &hosttest.Fake{Surfaces: []host.Surface{absent, visible}}
	resyncs := 0
	var delays []time.Duration
	c := New(f, f, WithSleep(noSleep(&delays)), WithResync(func() error {
		resyncs++
		return nil
	}))

	out := c.Run(context.Background(), testPlan())

	assert.True(t, out.Visible)
	assert.Equal(t, Escalate1, out.Tier)
	assert.Equal(t, 1, resyncs)
	assert.Zero(t, countState(out.Trace, Escalate2))

	require.Len(t, f.Inits, 2)
	assert.Equal(t, host.ProjectionEquirectangular, f.Inits[1].Projection)
	assert.Equal(t, 640, f.Inits[1].Width)
	assert.Equal(t, "http://local/data/", f.Inits[1].DataPath)
}

func TestRun_Escalate2RunsOnceThenDone(t *testing.T) {
	f := &hosttest.Fake{Surfaces: []host.Surface{absent}}
	var delays []time.Duration
	c := New(f, f, WithSleep(noSleep(&delays)))

	out := c.Run(context.Background(), testPlan())

	assert.False(t, out.Visible)
	assert.True(t, errors.Is(out.Err, ErrRenderNotVisible))
	assert.Equal(t, Done, c.State())
	assert.Equal(t, 1, countState(out.Trace, Escalate1))
	assert.Equal(t, 1, countState(out.Trace, Escalate2))
	assert.Equal(t, 3, f.InitCount())
	assert.Equal(t, 0, f.Rebuilds, "absent surface is not rebuilt")
	assert.Equal(t, "https://mirror/data/", f.Inits[2].DataPath)
	assert.Equal(t, "https://mirror/data/", out.Config.DataPath)
	assert.Len(t, delays, 3)
}

func TestRun_ZeroSizeRebuildsOnce(t *testing.T) {
	f := &hosttest.Fake{Surfaces: []host.Surface{zero}}
	var delays []time.Duration
	c := New(f, f, WithSleep(noSleep(&delays)))

	out := c.Run(context.Background(), testPlan())

	assert.False(t, out.Visible)
	assert.ErrorIs(t, out.Err, ErrRenderNotVisible)
	assert.Equal(t, 1, f.Rebuilds)
	assert.Equal(t, 4, f.InitCount())
	assert.Equal(t, 1, countState(out.Trace, Escalate2))
}

func TestRun_RebuildRecovers(t *testing.T) {
	f := &hosttest.Fake{Surfaces: []host.Surface{zero}, RebuildResult: &visible}
	var delays []time.Duration
	c := New(f, f, WithSleep(noSleep(&delays)))

	out := c.Run(context.Background(), testPlan())

	assert.True(t, out.Visible)
	assert.Equal(t, Escalate2, out.Tier)
	assert.NoError(t, out.Err)
}

func TestRun_CancelledDuringDelay(t *testing.T) {
	f := &hosttest.Fake{Surfaces: []host.Surface{absent}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var delays []time.Duration
	c := New(f, f, WithSleep(noSleep(&delays)))

	out := c.Run(ctx, testPlan())
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, Done, c.State())
	assert.Equal(t, 1, f.InitCount())
}

func TestRun_DefaultSleepHonoursContext(t *testing.T) {
	f := &hosttest.Fake{Surfaces: []host.Surface{absent}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	plan := testPlan()
	plan.VerifyDelay = time.Hour

	out := New(f, f).Run(ctx, plan)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "verify-visible", VerifyVisible.String())
	assert.Equal(t, "state(42)", State(42).String())
}
