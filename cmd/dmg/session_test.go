package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-dmg/dmg"
	"github.com/valerio/go-dmg/dmg/debug"
	"github.com/valerio/go-dmg/dmg/memory"
	"github.com/valerio/go-dmg/dmg/savestate"
)

// writeROM stores a cartridge of the given type that counts in WRAM and,
// when there is any, cartridge RAM.
func writeROM(t *testing.T, dir string, kind byte) string {
	t.Helper()
	rom := make([]byte, 0x8000)
	copy(rom[0x134:], "SESSION")
	rom[0x147] = kind
	if kind != 0 {
		rom[0x149] = 0x02
	}
	copy(rom[0x100:], []byte{0x00, 0xC3, 0x50, 0x01})
	copy(rom[0x150:], []byte{
		0x3E, 0x0A, 0xEA, 0x00, 0x00, // enable RAM
		0x3C,             // loop: INC A
		0xEA, 0x00, 0xC0, // LD ($C000),A
		0xEA, 0x00, 0xA0, // LD ($A000),A
		0x18, 0xF7, // JR loop
	})
	rom[0x14D] = memory.HeaderChecksum(rom)

	path := filepath.Join(dir, "session.gb")
	require.NoError(t, os.WriteFile(path, rom, 0o644))
	return path
}

func newTestSession(t *testing.T, romPath string, codec savestate.Codec) *session {
	t.Helper()
	machine, _, err := newMachine(settings{ROM: romPath, SampleRate: 44100})
	require.NoError(t, err)
	return newSession(machine, romPath, codec)
}

func TestSessionPaths(t *testing.T) {
	s := newSession(nil, "/games/tetris.zip", savestate.YAML{})
	assert.Equal(t, "/games/tetris.sav.yaml", s.statePath())
	assert.Equal(t, "/games/tetris.sav", s.batteryPath())
}

func TestSessionStateRoundTrip(t *testing.T) {
	for _, name := range savestate.Names() {
		t.Run(name, func(t *testing.T) {
			codec, err := savestate.ByName(name)
			require.NoError(t, err)
			romPath := writeROM(t, t.TempDir(), 0x03)

			first := newTestSession(t, romPath, codec)
			require.NoError(t, first.machine.RunFrames(3))
			require.NoError(t, first.saveState())

			second := newTestSession(t, romPath, codec)
			require.NoError(t, second.loadState())
			assert.Equal(t, first.machine.Snapshot(), second.machine.Snapshot())

			entries, err := os.ReadDir(filepath.Dir(romPath))
			require.NoError(t, err)
			assert.Len(t, entries, 2, "no temporary files left behind")
		})
	}
}

func TestSessionMissingFiles(t *testing.T) {
	romPath := writeROM(t, t.TempDir(), 0x03)
	s := newTestSession(t, romPath, savestate.Binary{})
	before := s.machine.Snapshot()

	assert.NoError(t, s.loadState())
	assert.NoError(t, s.loadBattery())
	assert.Equal(t, before, s.machine.Snapshot())
}

func TestSessionRejectsCorruptState(t *testing.T) {
	romPath := writeROM(t, t.TempDir(), 0x03)
	s := newTestSession(t, romPath, savestate.JSON{})
	require.NoError(t, os.WriteFile(s.statePath(), []byte("{not json"), 0o644))

	err := s.loadState()
	assert.ErrorIs(t, err, savestate.ErrIncompatibleSave)
}

func TestSessionBattery(t *testing.T) {
	romPath := writeROM(t, t.TempDir(), 0x03)
	first := newTestSession(t, romPath, savestate.Binary{})
	require.NoError(t, first.machine.RunFrames(2))
	require.NoError(t, first.saveBattery())

	data, err := os.ReadFile(first.batteryPath())
	require.NoError(t, err)
	assert.Equal(t, cartridgeRAM(first.machine), data)
	assert.NotEqual(t, make([]byte, len(data)), data)

	second := newTestSession(t, romPath, savestate.Binary{})
	require.NoError(t, second.loadBattery())
	assert.Equal(t, data, cartridgeRAM(second.machine))
}

func cartridgeRAM(m *dmg.DMG) []byte {
	return m.Snapshot().Bus.Cartridge.RAM
}

func TestSessionBatteryWithoutBattery(t *testing.T) {
	romPath := writeROM(t, t.TempDir(), 0x00)
	s := newTestSession(t, romPath, savestate.Binary{})
	assert.NoError(t, s.saveBattery())
	_, err := os.Stat(s.batteryPath())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(s.batteryPath(), make([]byte, 0x2000), 0o644))
	assert.NoError(t, s.loadBattery(), "a stray battery file is ignored")
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	require.NoError(t, writeFileAtomic(path, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	err = writeFileAtomic(filepath.Join(t.TempDir(), "missing", "out.bin"), nil)
	assert.Error(t, err)
}

func TestSessionSnapshot(t *testing.T) {
	romPath := writeROM(t, t.TempDir(), 0x00)
	s := newTestSession(t, romPath, savestate.Binary{})
	require.NoError(t, s.machine.RunFrames(2))
	require.NoError(t, s.snapshot())

	decode := func(path string) (int, int) {
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		img, err := png.Decode(f)
		require.NoError(t, err)
		return img.Bounds().Dx(), img.Bounds().Dy()
	}

	w, h := decode(s.base + "_frame_2.png")
	assert.Equal(t, 160, w)
	assert.Equal(t, 144, h)

	w, h = decode(s.base + "_tiles.png")
	assert.Equal(t, debug.SheetWidth, w)
	assert.Equal(t, debug.SheetHeight, h)
}
