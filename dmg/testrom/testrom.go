// Package testrom runs hardware test ROMs to completion and decodes the
// result they report.
//
// Three reporting conventions are understood:
//   - text on the serial port containing "Passed" or "Failed" (blargg);
//   - the signature DE B0 61 at $A001 with the status code at $A000, which
//     is 0x80 while the test is still running (blargg);
//   - the LD B,B breakpoint with B,C,D,E,H,L holding 3,5,8,13,21,34 on
//     success (mooneye).
package testrom

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/valerio/go-dmg/dmg"
)

type Status int

const (
	Timeout Status = iota
	Passed
	Failed
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "timeout"
	}
}

// Signal selects which result conventions Run watches.
type Signal uint8

const (
	SerialText Signal = 1 << iota
	MemorySignature
	Breakpoint

	AllSignals = SerialText | MemorySignature | Breakpoint
)

const (
	statusAddress    = 0xA000
	signatureAddress = 0xA001
	textAddress      = 0xA004
	statusRunning    = 0x80
	maxTextLength    = 4096

	opLDBB = 0x40
)

var (
	signature = [3]byte{0xDE, 0xB0, 0x61}
	fibonacci = [6]uint8{3, 5, 8, 13, 21, 34}
)

type Config struct {
	// MaxFrames bounds the run; reaching it yields Timeout.
	MaxFrames int
	// Signals defaults to AllSignals.
	Signals Signal
}

type Result struct {
	Status Status
	// Output is the serial text, or the text at $A004 for memory reports.
	Output string
	Frames uint64
	// Code is the $A000 status byte for memory reports.
	Code byte
}

// Run executes d until the ROM reports a result or cfg.MaxFrames frames
// have passed. CPU faults are returned as errors.
func Run(d *dmg.DMG, cfg Config) (Result, error) {
	signals := cfg.Signals
	if signals == 0 {
		signals = AllSignals
	}

	var breakpoint func() bool
	if signals&Breakpoint != 0 {
		breakpoint = func() bool { return d.Peek(d.Registers().PC) == opLDBB }
	}

	start := d.Frames()
	for int(d.Frames()-start) < cfg.MaxFrames {
		hit, err := d.RunUntil(breakpoint)
		if err != nil {
			return Result{Output: d.SerialOutput(), Frames: d.Frames() - start}, err
		}
		if hit {
			return finish(d, start, breakpointResult(d))
		}
		if signals&SerialText != 0 {
			if r, ok := serialResult(d); ok {
				return finish(d, start, r)
			}
		}
		if signals&MemorySignature != 0 {
			if r, ok := memoryResult(d); ok {
				return finish(d, start, r)
			}
		}
	}

	r := Result{Status: Timeout, Output: d.SerialOutput(), Frames: d.Frames() - start}
	slog.Debug("test ROM timed out", "frames", r.Frames)
	return r, nil
}

func finish(d *dmg.DMG, start uint64, r Result) (Result, error) {
	r.Frames = d.Frames() - start
	slog.Debug("test ROM finished", "status", r.Status.String(), "frames", r.Frames, "code", r.Code)
	return r, nil
}

func serialResult(d *dmg.DMG) (Result, bool) {
	out := d.SerialOutput()
	switch {
	case strings.Contains(out, "Passed"):
		return Result{Status: Passed, Output: out}, true
	case strings.Contains(out, "Failed"):
		return Result{Status: Failed, Output: out}, true
	}
	return Result{}, false
}

func memoryResult(d *dmg.DMG) (Result, bool) {
	for i, b := range signature {
		if d.Peek(signatureAddress+uint16(i)) != b {
			return Result{}, false
		}
	}
	code := d.Peek(statusAddress)
	if code == statusRunning {
		return Result{}, false
	}
	r := Result{Status: Passed, Code: code, Output: memoryText(d)}
	if code != 0 {
		r.Status = Failed
	}
	return r, true
}

func memoryText(d *dmg.DMG) string {
	var sb strings.Builder
	for i := uint16(0); i < maxTextLength; i++ {
		b := d.Peek(textAddress + i)
		if b == 0 {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

func breakpointResult(d *dmg.DMG) Result {
	r := d.Registers()
	got := [6]uint8{r.B, r.C, r.D, r.E, r.H, r.L}
	if got == fibonacci {
		return Result{Status: Passed, Output: d.SerialOutput()}
	}
	return Result{
		Status: Failed,
		Output: fmt.Sprintf("registers B=%d C=%d D=%d E=%d H=%d L=%d", r.B, r.C, r.D, r.E, r.H, r.L),
	}
}
