// Package dmg wires the CPU, memory bus and peripherals into a complete
// machine and drives it instruction by instruction.
package dmg

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/valerio/go-dmg/dmg/audio"
	"github.com/valerio/go-dmg/dmg/cpu"
	"github.com/valerio/go-dmg/dmg/memory"
	"github.com/valerio/go-dmg/dmg/serial"
	"github.com/valerio/go-dmg/dmg/timing"
	"github.com/valerio/go-dmg/dmg/video"
)

// serialCaptureLimit bounds how much serial output is kept for SerialOutput.
const serialCaptureLimit = 64 * 1024

// DMG is a complete Game Boy. It is not safe for concurrent use; a single
// goroutine owns it and calls Step or one of the Run methods.
type DMG struct {
	cpu  *cpu.CPU
	mmu  *memory.MMU
	cart *memory.Cartridge

	frames uint64
	serial *captureWriter
	trace  bool
	logger *slog.Logger
}

type config struct {
	bootROM    []byte
	clock      memory.Clock
	serialOut  io.Writer
	sampleRate int
	trace      bool
}

type Option func(*config)

// WithBootROM runs the given 256 byte boot ROM from 0x0000 instead of
// starting in the post boot state.
func WithBootROM(rom []byte) Option {
	return func(c *config) { c.bootROM = rom }
}

// WithClock sets the time source of cartridge real time clocks.
func WithClock(clock memory.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithSerialWriter copies every byte sent over the link port to w.
func WithSerialWriter(w io.Writer) Option {
	return func(c *config) { c.serialOut = w }
}

// WithSampleRate sets the audio output rate in Hz.
func WithSampleRate(rate int) Option {
	return func(c *config) { c.sampleRate = rate }
}

// WithTrace logs every executed instruction at debug level.
func WithTrace() Option {
	return func(c *config) { c.trace = true }
}

// New builds a machine with rom inserted. The cartridge header is validated
// here, so errors wrap memory.ErrUnsupportedCartridge.
func New(rom []byte, opts ...Option) (*DMG, error) {
	cfg := config{sampleRate: audio.DefaultSampleRate}
	for _, opt := range opts {
		opt(&cfg)
	}

	var cartOpts []memory.CartridgeOption
	if cfg.clock != nil {
		cartOpts = append(cartOpts, memory.WithClock(cfg.clock))
	}
	if cfg.bootROM != nil {
		// the boot ROM locks up on a bad header by itself
		cartOpts = append(cartOpts, memory.WithoutChecksum())
	}
	cart, err := memory.NewCartridge(rom, cartOpts...)
	if err != nil {
		return nil, err
	}

	capture := &captureWriter{limit: serialCaptureLimit}
	var out io.Writer = capture
	if cfg.serialOut != nil {
		out = io.MultiWriter(capture, cfg.serialOut)
	}

	mmuOpts := []memory.Option{
		memory.WithSerial(serial.New(serial.WithWriter(out), serial.WithLineLogging())),
		memory.WithAPU(audio.New(cfg.sampleRate)),
	}
	var cpuOpts []cpu.Option
	if cfg.bootROM != nil {
		mmuOpts = append(mmuOpts, memory.WithBootROM(cfg.bootROM))
		cpuOpts = append(cpuOpts, cpu.FromPowerOn())
	}
	mmu, err := memory.New(cart, mmuOpts...)
	if err != nil {
		return nil, err
	}

	header := cart.Header()
	slog.Debug("cartridge loaded",
		"title", header.Title,
		"type", fmt.Sprintf("0x%02X", header.Type),
		"controller", cart.Kind().String(),
		"rom_bytes", header.ROMSize,
		"ram_bytes", header.RAMSize,
		"battery", header.HasBattery)

	return &DMG{
		cpu:    cpu.New(mmu, cpuOpts...),
		mmu:    mmu,
		cart:   cart,
		serial: capture,
		trace:  cfg.trace,
		logger: slog.Default(),
	}, nil
}

// Step executes one instruction, interrupt dispatch or halted cycle and
// returns the machine cycles it took.
func (d *DMG) Step() (int, error) {
	if d.trace && d.logger.Enabled(context.Background(), slog.LevelDebug) {
		d.traceInstruction()
	}
	return d.cpu.Step()
}

func (d *DMG) traceInstruction() {
	r := d.cpu.Registers()
	text, _ := cpu.Disassemble(d.mmu, r.PC)
	d.logger.Debug("exec",
		"pc", fmt.Sprintf("0x%04X", r.PC),
		"op", text,
		"af", fmt.Sprintf("0x%02X%02X", r.A, r.F),
		"bc", fmt.Sprintf("0x%02X%02X", r.B, r.C),
		"de", fmt.Sprintf("0x%02X%02X", r.D, r.E),
		"hl", fmt.Sprintf("0x%02X%02X", r.H, r.L),
		"sp", fmt.Sprintf("0x%04X", r.SP))
}

// RunUntilFrame runs until the PPU completes a frame. With the LCD off a
// blank frame still completes every 70224 dots.
func (d *DMG) RunUntilFrame() error {
	_, err := d.RunUntil(nil)
	return err
}

// RunUntil is RunUntilFrame with an early exit: stop is checked before
// every instruction and the run ends when it returns true. The result
// reports whether stop ended the run.
func (d *DMG) RunUntil(stop func() bool) (bool, error) {
	for {
		if stop != nil && stop() {
			return true, nil
		}
		if _, err := d.Step(); err != nil {
			return false, fmt.Errorf("frame %d: %w", d.frames, err)
		}
		if d.mmu.PPU().ConsumeFrame() {
			d.frames++
			return false, nil
		}
	}
}

// RunFrames runs n complete frames.
func (d *DMG) RunFrames(n int) error {
	for i := 0; i < n; i++ {
		if err := d.RunUntilFrame(); err != nil {
			return err
		}
	}
	return nil
}

// FrameFunc receives every completed frame from Run. Returning an error
// stops the run with that error.
type FrameFunc func(frame *video.FrameBuffer) error

// Run emulates frames until ctx is cancelled, onFrame fails or the CPU
// faults. The limiter is consulted between frames.
func (d *DMG) Run(ctx context.Context, limiter timing.Limiter, onFrame FrameFunc) error {
	limiter.Reset()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.RunUntilFrame(); err != nil {
			return err
		}
		if onFrame != nil {
			if err := onFrame(d.Frame()); err != nil {
				return err
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
}

// Frame returns the last completed frame. It is overwritten by the next one.
func (d *DMG) Frame() *video.FrameBuffer {
	return d.mmu.PPU().Frame()
}

// SetButtons replaces the set of pressed buttons.
func (d *DMG) SetButtons(pressed memory.Buttons) {
	d.mmu.SetButtons(pressed)
}

// Buttons returns the pressed buttons.
func (d *DMG) Buttons() memory.Buttons {
	return d.mmu.Buttons()
}

// AudioSamples drains the interleaved stereo samples produced so far.
func (d *DMG) AudioSamples() []int16 {
	return d.mmu.APU().Samples()
}

// SampleRate is the audio output rate in Hz.
func (d *DMG) SampleRate() int {
	return d.mmu.APU().SampleRate()
}

// SerialOutput returns the text sent over the link port so far.
func (d *DMG) SerialOutput() string {
	return string(d.serial.buf)
}

// Peek reads memory without advancing time.
func (d *DMG) Peek(address uint16) byte {
	return d.mmu.Read(address)
}

// Registers returns a copy of the CPU registers.
func (d *DMG) Registers() cpu.Registers {
	return d.cpu.Registers()
}

// Cycles is the number of machine cycles executed.
func (d *DMG) Cycles() uint64 {
	return d.cpu.Cycles()
}

// Frames is the number of frames completed.
func (d *DMG) Frames() uint64 {
	return d.frames
}

// Cartridge returns the inserted cartridge.
func (d *DMG) Cartridge() *memory.Cartridge {
	return d.cart
}

// SaveBattery writes the cartridge battery RAM (and RTC) to w.
// Returns memory.ErrNoBattery for cartridges without a battery.
func (d *DMG) SaveBattery(w io.Writer) error {
	return d.cart.SaveRAM(w)
}

// LoadBattery restores battery RAM written by SaveBattery.
func (d *DMG) LoadBattery(r io.Reader) error {
	return d.cart.LoadRAM(r)
}

// captureWriter keeps the first limit bytes written to it.
type captureWriter struct {
	buf   []byte
	limit int
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if room := c.limit - len(c.buf); room > 0 {
		if len(p) > room {
			c.buf = append(c.buf, p[:room]...)
		} else {
			c.buf = append(c.buf, p...)
		}
	}
	return len(p), nil
}
