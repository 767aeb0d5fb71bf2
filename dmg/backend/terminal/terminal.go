// Package terminal renders the emulator in a terminal with tcell, two
// pixels per character cell using half blocks.
package terminal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/backend"
	"github.com/valerio/go-dmg/dmg/cpu"
	"github.com/valerio/go-dmg/dmg/memory"
	"github.com/valerio/go-dmg/dmg/video"
)

const (
	width  = video.FramebufferWidth
	height = video.FramebufferHeight

	registerHeight = 8
	disasmHeight   = 9
	logCapacity    = 200

	// tcell has no key release events, a key counts as held until it has
	// not repeated for this long.
	keyTimeout = 150 * time.Millisecond
)

// DebugProvider exposes machine state for the side panel.
type DebugProvider interface {
	Registers() cpu.Registers
	Peek(address uint16) byte
}

// Backend implements backend.Backend using tcell for terminal rendering
type Backend struct {
	screen    tcell.Screen
	config    backend.Config
	logBuffer *LogBuffer
	logLevel  slog.Level
	debug     DebugProvider
	now       func() time.Time

	keyStates map[memory.Buttons]time.Time // last time each button key was seen
	actions   []backend.Action
}

type Option func(*Backend)

// WithScreen uses screen instead of the real terminal.
func WithScreen(screen tcell.Screen) Option {
	return func(t *Backend) { t.screen = screen }
}

// WithDebug shows registers and disassembly from p next to the screen.
func WithDebug(p DebugProvider) Option {
	return func(t *Backend) { t.SetDebugProvider(p) }
}

// SetDebugProvider enables the debug panel, nil disables it.
func (t *Backend) SetDebugProvider(p DebugProvider) {
	t.debug = p
}

func New(opts ...Option) *Backend {
	t := &Backend{
		logBuffer: NewLogBuffer(logCapacity),
		logLevel:  slog.LevelInfo,
		now:       time.Now,
		keyStates: make(map[memory.Buttons]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LogHandler returns a slog handler feeding the log panel.
func (t *Backend) LogHandler() slog.Handler {
	return NewLogBufferHandler(t.logBuffer, slog.LevelDebug)
}

func (t *Backend) Init(config backend.Config) error {
	t.config = config

	if t.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
		t.screen = screen
	}
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()
	slog.Info("Terminal backend initialized", "title", config.Title)
	return nil
}

// Update renders a frame and processes events
func (t *Backend) Update(frame *video.FrameBuffer) (backend.Input, error) {
	now := t.now()
	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			t.processKeyEvent(ev, now)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	var pressed memory.Buttons
	for button, last := range t.keyStates {
		if now.Sub(last) < keyTimeout {
			pressed |= button
		} else {
			delete(t.keyStates, button)
		}
	}

	in := backend.Input{Buttons: pressed, Actions: t.actions}
	t.actions = nil

	t.render(frame)
	t.screen.Show()
	return in, nil
}

func (t *Backend) Cleanup() error {
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}

var keyButtons = map[tcell.Key]memory.Buttons{
	tcell.KeyUp:         memory.ButtonUp,
	tcell.KeyDown:       memory.ButtonDown,
	tcell.KeyLeft:       memory.ButtonLeft,
	tcell.KeyRight:      memory.ButtonRight,
	tcell.KeyEnter:      memory.ButtonStart,
	tcell.KeyBackspace:  memory.ButtonSelect,
	tcell.KeyBackspace2: memory.ButtonSelect,
}

var runeButtons = map[rune]memory.Buttons{
	'z': memory.ButtonA,
	'Z': memory.ButtonA,
	'x': memory.ButtonB,
	'X': memory.ButtonB,
}

var keyActions = map[tcell.Key]backend.Action{
	tcell.KeyEscape: backend.ActionQuit,
	tcell.KeyCtrlC:  backend.ActionQuit,
	tcell.KeyF2:     backend.ActionSaveState,
	tcell.KeyF4:     backend.ActionLoadState,
	tcell.KeyF12:    backend.ActionSnapshot,
}

const dpad = memory.ButtonUp | memory.ButtonDown | memory.ButtonLeft | memory.ButtonRight

func (t *Backend) processKeyEvent(ev *tcell.EventKey, now time.Time) {
	if act, ok := keyActions[ev.Key()]; ok {
		slog.Debug("Key action", "action", act.String())
		t.actions = append(t.actions, act)
		return
	}

	button, ok := keyButtons[ev.Key()]
	if !ok && ev.Key() == tcell.KeyRune {
		switch ev.Rune() {
		case '+', '=':
			t.changeLogLevel(-4)
			return
		case '-', '_':
			t.changeLogLevel(4)
			return
		}
		button, ok = runeButtons[ev.Rune()]
	}
	if !ok {
		return
	}

	// only one direction at a time, the last one wins
	if button&dpad != 0 {
		for b := range t.keyStates {
			if b&dpad != 0 {
				delete(t.keyStates, b)
			}
		}
	}
	t.keyStates[button] = now
}

// changeLogLevel moves the panel filter by delta, within Debug..Error.
func (t *Backend) changeLogLevel(delta slog.Level) {
	level := t.logLevel + delta
	if level < slog.LevelDebug || level > slog.LevelError {
		return
	}
	slog.Info("Log filter changed", "from", t.logLevel, "to", level)
	t.logLevel = level
}

var shadeColors = [4]tcell.Color{
	tcell.ColorWhite,
	tcell.ColorSilver,
	tcell.ColorGray,
	tcell.ColorBlack,
}

func (t *Backend) render(frame *video.FrameBuffer) {
	termWidth, termHeight := t.screen.Size()
	t.screen.Clear()

	dividerX := width + 1
	panelX := dividerX + 2
	panelWidth := termWidth - panelX

	t.drawGameBoy(frame)

	border := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for y := 0; y < termHeight; y++ {
		t.screen.SetContent(dividerX, y, '│', nil, border)
	}

	y := 0
	if t.debug != nil {
		y = t.drawRegisters(panelX, y, panelWidth)
		y = t.drawDisassembly(panelX, y+1, panelWidth)
		y++
	}
	t.drawLogs(panelX, y, panelWidth, termHeight-1)

	help := " arrows=d-pad Z=A X=B Enter=start Backspace=select F2=save F4=load F12=snapshot +/-=log filter Esc=quit "
	t.drawText(0, termHeight-1, termWidth, help, border)
}

func (t *Backend) drawGameBoy(frame *video.FrameBuffer) {
	shades := frame.Shades()
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			top := shadeColors[shades[y*width+x]]
			bottom := shadeColors[shades[(y+1)*width+x]]
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			t.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
}

func (t *Backend) drawRegisters(x, y, w int) int {
	r := t.debug.Registers()
	title := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	style := tcell.StyleDefault.Foreground(tcell.ColorBlue)

	lines := []string{
		fmt.Sprintf("A: 0x%02X  F: 0x%02X", r.A, r.F),
		fmt.Sprintf("B: 0x%02X  C: 0x%02X", r.B, r.C),
		fmt.Sprintf("D: 0x%02X  E: 0x%02X", r.D, r.E),
		fmt.Sprintf("H: 0x%02X  L: 0x%02X", r.H, r.L),
		fmt.Sprintf("SP: 0x%04X  PC: 0x%04X", r.SP, r.PC),
		fmt.Sprintf("IE: 0x%02X  IF: 0x%02X", t.debug.Peek(addr.IE), t.debug.Peek(addr.IF)),
		fmt.Sprintf("LY: %d  LCDC: 0x%02X", t.debug.Peek(addr.LY), t.debug.Peek(addr.LCDC)),
	}
	t.drawText(x, y, w, "CPU Registers", title)
	for i, line := range lines {
		t.drawText(x, y+1+i, w, line, style)
	}
	return y + registerHeight
}

// peeker adapts the debug provider to cpu.Reader.
type peeker struct{ p DebugProvider }

func (p peeker) Read(address uint16) byte { return p.p.Peek(address) }

func (t *Backend) drawDisassembly(x, y, w int) int {
	title := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	style := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	current := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)

	t.drawText(x, y, w, "Disassembly", title)
	pc := t.debug.Registers().PC
	for i := 0; i < disasmHeight-1; i++ {
		text, length := cpu.Disassemble(peeker{t.debug}, pc)
		s, marker := style, " "
		if i == 0 {
			s, marker = current, "→"
		}
		t.drawText(x, y+1+i, w, fmt.Sprintf("%s0x%04X: %s", marker, pc, text), s)
		pc += uint16(length)
	}
	return y + disasmHeight
}

func (t *Backend) drawLogs(x, y, w, bottom int) {
	title := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	t.drawText(x, y, w, fmt.Sprintf("Logs [%s]", t.logLevel), title)

	rows := bottom - y - 1
	if rows <= 0 {
		return
	}
	for i, entry := range t.logBuffer.GetRecent(rows, t.logLevel) {
		style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
		switch {
		case entry.Level >= slog.LevelError:
			style = style.Foreground(tcell.ColorRed)
		case entry.Level >= slog.LevelWarn:
			style = style.Foreground(tcell.ColorYellow)
		case entry.Level < slog.LevelInfo:
			style = style.Foreground(tcell.ColorGray)
		}
		t.drawText(x, y+1+i, w, FormatLogEntry(entry), style)
	}
}

func (t *Backend) drawText(x, y, w int, text string, style tcell.Style) {
	i := 0
	for _, ch := range text {
		if i >= w {
			return
		}
		t.screen.SetContent(x+i, y, ch, nil, style)
		i++
	}
}
