// Package backend connects a running machine to an output platform.
package backend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/valerio/go-dmg/dmg"
	"github.com/valerio/go-dmg/dmg/memory"
	"github.com/valerio/go-dmg/dmg/timing"
	"github.com/valerio/go-dmg/dmg/video"
)

// Backend renders frames and reports user input.
type Backend interface {
	// Init prepares the platform. It must be called before Update.
	Init(cfg Config) error
	// Update renders frame and returns the input gathered since the last call.
	Update(frame *video.FrameBuffer) (Input, error)
	Cleanup() error
}

// AudioSink is implemented by backends that consume audio.
type AudioSink interface {
	// PushSamples receives interleaved stereo samples at the given rate.
	PushSamples(samples []int16, rate int) error
}

type Action int

const (
	ActionQuit Action = iota
	ActionSaveState
	ActionLoadState
	// ActionSnapshot dumps the current frame and tile data for debugging.
	ActionSnapshot
)

func (a Action) String() string {
	switch a {
	case ActionQuit:
		return "quit"
	case ActionSaveState:
		return "save state"
	case ActionLoadState:
		return "load state"
	case ActionSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Input is what a backend collected during one frame.
type Input struct {
	// Buttons currently held.
	Buttons memory.Buttons
	// Actions triggered since the previous frame, in order.
	Actions []Action
}

type Config struct {
	Title string
}

// Machine is the part of dmg.DMG a backend needs.
type Machine interface {
	Run(ctx context.Context, limiter timing.Limiter, onFrame dmg.FrameFunc) error
	SetButtons(pressed memory.Buttons)
	AudioSamples() []int16
	SampleRate() int
}

// Handlers react to emulator actions. Nil handlers ignore the action.
type Handlers struct {
	SaveState func() error
	LoadState func() error
	Snapshot  func() error
}

// Run drives m, feeding every frame to b, until ctx is cancelled or the
// backend asks to quit. Quitting is not an error.
func Run(ctx context.Context, m Machine, b Backend, limiter timing.Limiter, h Handlers) error {
	sink, _ := b.(AudioSink)
	errQuit := errors.New("quit")

	err := m.Run(ctx, limiter, func(frame *video.FrameBuffer) error {
		samples := m.AudioSamples()
		if sink != nil && len(samples) > 0 {
			if err := sink.PushSamples(samples, m.SampleRate()); err != nil {
				return err
			}
		}

		in, err := b.Update(frame)
		if err != nil {
			return err
		}
		m.SetButtons(in.Buttons)
		for _, act := range in.Actions {
			if act == ActionQuit {
				return errQuit
			}
			if err := handle(act, h); err != nil {
				slog.Warn("action failed", "action", act.String(), "error", err)
			}
		}
		return nil
	})
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func handle(act Action, h Handlers) error {
	var fn func() error
	switch act {
	case ActionSaveState:
		fn = h.SaveState
	case ActionLoadState:
		fn = h.LoadState
	case ActionSnapshot:
		fn = h.Snapshot
	}
	if fn == nil {
		slog.Debug("action ignored", "action", act.String())
		return nil
	}
	return fn()
}
