package timing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRate(t *testing.T) {
	assert.InDelta(t, 59.7275, FrameRate(), 0.001)
	assert.InDelta(t, 16.7427, float64(FrameDuration())/float64(time.Millisecond), 0.001)
}

func TestNoOp(t *testing.T) {
	l := NoOp()
	assert.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestTicker(t *testing.T) {
	l := NewTicker(time.Millisecond)
	defer l.Stop()

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewTicker(time.Hour)
	defer slow.Stop()
	assert.ErrorIs(t, slow.Wait(ctx), context.Canceled)
}

// fakeClock drives an Adaptive limiter without sleeping.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newTestAdaptive(period time.Duration) (*Adaptive, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	a := NewAdaptive(period)
	a.now = func() time.Time { return clock.now }
	a.sleep = func(_ context.Context, d time.Duration) error {
		clock.sleeps = append(clock.sleeps, d)
		clock.now = clock.now.Add(d)
		return nil
	}
	a.Reset()
	return a, clock
}

func TestAdaptiveSleepsRemainder(t *testing.T) {
	a, clock := newTestAdaptive(10 * time.Millisecond)
	ctx := context.Background()

	clock.now = clock.now.Add(3 * time.Millisecond) // frame took 3ms
	require.NoError(t, a.Wait(ctx))
	clock.now = clock.now.Add(4 * time.Millisecond)
	require.NoError(t, a.Wait(ctx))

	assert.Equal(t, []time.Duration{7 * time.Millisecond, 6 * time.Millisecond}, clock.sleeps)
}

func TestAdaptiveCatchesUpShortLag(t *testing.T) {
	a, clock := newTestAdaptive(10 * time.Millisecond)
	ctx := context.Background()

	clock.now = clock.now.Add(25 * time.Millisecond) // two and a half frames late
	require.NoError(t, a.Wait(ctx))
	require.NoError(t, a.Wait(ctx))
	assert.Empty(t, clock.sleeps, "late frames run back to back")

	require.NoError(t, a.Wait(ctx))
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, clock.sleeps)
}

func TestAdaptiveResyncsLongLag(t *testing.T) {
	a, clock := newTestAdaptive(10 * time.Millisecond)
	ctx := context.Background()

	clock.now = clock.now.Add(time.Second)
	require.NoError(t, a.Wait(ctx))
	assert.Empty(t, clock.sleeps)

	require.NoError(t, a.Wait(ctx))
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, clock.sleeps)
}
