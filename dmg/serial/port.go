package serial

import (
	"io"
	"log/slog"

	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/bit"
)

// transferCycles is how long an internally clocked transfer takes to shift
// out against an empty link port.
const transferCycles = 8

// Port is a serial port with nothing plugged in. Outgoing bytes are copied
// to an optional writer and logged line by line, which is how test ROMs
// report results. Incoming bits are always 1 and no interrupt is raised.
type Port struct {
	sb, sc    byte
	active    bool
	countdown int

	out     io.Writer
	logLine bool
	line    []byte
	logger  *slog.Logger
}

type Option func(*Port)

// WithWriter copies every transmitted byte to w.
func WithWriter(w io.Writer) Option { return func(p *Port) { p.out = w } }

// WithLineLogging logs transmitted text at debug level, one record per line.
func WithLineLogging() Option { return func(p *Port) { p.logLine = true } }

// New creates a serial port with no peer.
func New(opts ...Option) *Port {
	p := &Port{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Port) Read(address uint16) byte {
	switch address {
	case addr.SB:
		return p.sb
	case addr.SC:
		// only bits 7 and 0 exist on DMG
		return p.sc | 0x7E
	}
	return 0xFF
}

func (p *Port) Write(address uint16, value byte) {
	switch address {
	case addr.SB:
		p.sb = value
	case addr.SC:
		p.sc = value & 0x81
		p.maybeStartTransfer()
	}
}

// Tick advances an active transfer by one machine cycle.
func (p *Port) Tick() {
	if !p.active {
		return
	}
	p.countdown--
	if p.countdown <= 0 {
		p.completeTransfer()
	}
}

func (p *Port) maybeStartTransfer() {
	if p.active {
		return
	}
	// a transfer starts when bit 7 (start) and bit 0 (internal clock) are set.
	// With an external clock and no peer nothing ever shifts.
	if !bit.IsSet(7, p.sc) || !bit.IsSet(0, p.sc) {
		return
	}

	p.emit(p.sb)
	p.active = true
	p.countdown = transferCycles
}

func (p *Port) emit(b byte) {
	if p.out != nil {
		// a failing sink must not stop the emulated program
		if _, err := p.out.Write([]byte{b}); err != nil {
			p.logger.Warn("serial output failed", "error", err)
			p.out = nil
		}
	}
	if !p.logLine {
		return
	}
	if b == 0 || b == '\n' || b == '\r' {
		p.flushLine()
		return
	}
	p.line = append(p.line, b)
}

func (p *Port) flushLine() {
	if len(p.line) > 0 {
		p.logger.Debug("serial", "line", string(p.line))
		p.line = p.line[:0]
	}
}

func (p *Port) completeTransfer() {
	// nothing on the other end, the line stays high
	p.sb = 0xFF
	p.sc = bit.Reset(7, p.sc)
	p.active = false
}

// PortState is the serializable state of the serial port.
type PortState struct {
	SB, SC    byte
	Active    bool
	Countdown int
}

func (p *Port) Snapshot() PortState {
	return PortState{SB: p.sb, SC: p.sc, Active: p.active, Countdown: p.countdown}
}

func (p *Port) Restore(s PortState) {
	p.sb, p.sc = s.SB, s.SC&0x81
	p.active = s.Active
	p.countdown = s.Countdown
}
