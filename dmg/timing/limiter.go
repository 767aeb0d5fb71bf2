// Package timing paces the emulator to the DMG frame rate. Pacing happens
// between frames only; the core itself never sleeps.
package timing

import (
	"context"
	"time"
)

const (
	// DotsPerFrame is the length of one frame: 154 lines of 456 dots.
	DotsPerFrame = 70224
	// ClockHz is the DMG master clock, one dot per tick.
	ClockHz = 4194304
)

// FrameRate is the exact DMG refresh rate, about 59.73 Hz.
func FrameRate() float64 {
	return float64(ClockHz) / float64(DotsPerFrame)
}

// FrameDuration is the wall clock length of one frame.
func FrameDuration() time.Duration {
	return time.Duration(float64(time.Second) / FrameRate())
}

// Limiter blocks between frames to hold the target rate.
type Limiter interface {
	// Wait blocks until the next frame is due or ctx is done.
	Wait(ctx context.Context) error
	// Reset drops any accumulated schedule, e.g. after a pause.
	Reset()
}

// NoOp never waits. Used for headless runs and --fast.
func NoOp() Limiter { return noOp{} }

type noOp struct{}

func (noOp) Wait(ctx context.Context) error { return ctx.Err() }
func (noOp) Reset()                         {}

// Ticker paces frames with a time.Ticker. Late frames are not caught up:
// the ticker drops missed ticks.
type Ticker struct {
	period time.Duration
	ticker *time.Ticker
}

func NewTicker(period time.Duration) *Ticker {
	return &Ticker{period: period, ticker: time.NewTicker(period)}
}

func (t *Ticker) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ticker.C:
		return nil
	}
}

func (t *Ticker) Reset() { t.ticker.Reset(t.period) }

// Stop releases the ticker.
func (t *Ticker) Stop() { t.ticker.Stop() }

// Adaptive keeps an absolute schedule so that short sleeps do not accumulate
// drift. When it falls more than maxLag behind it resynchronizes instead of
// running frames back to back.
type Adaptive struct {
	period time.Duration
	next   time.Time
	maxLag time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAdaptive(period time.Duration) *Adaptive {
	a := &Adaptive{
		period: period,
		maxLag: 5 * period,
		now:    time.Now,
		sleep:  sleepContext,
	}
	a.Reset()
	return a
}

func (a *Adaptive) Wait(ctx context.Context) error {
	a.next = a.next.Add(a.period)
	delay := a.next.Sub(a.now())
	if delay < -a.maxLag {
		a.next = a.now()
		return ctx.Err()
	}
	if delay <= 0 {
		return ctx.Err()
	}
	return a.sleep(ctx, delay)
}

func (a *Adaptive) Reset() { a.next = a.now() }

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
