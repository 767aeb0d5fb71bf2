package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/valerio/go-dmg/dmg"
	"github.com/valerio/go-dmg/dmg/debug"
	"github.com/valerio/go-dmg/dmg/memory"
	"github.com/valerio/go-dmg/dmg/savestate"
)

// session ties a running machine to the files stored next to its ROM.
type session struct {
	machine *dmg.DMG
	codec   savestate.Codec
	// base is the ROM path without extension.
	base string
}

func newSession(machine *dmg.DMG, romPath string, codec savestate.Codec) *session {
	return &session{
		machine: machine,
		codec:   codec,
		base:    strings.TrimSuffix(romPath, filepath.Ext(romPath)),
	}
}

func (s *session) statePath() string   { return s.base + s.codec.Extension() }
func (s *session) batteryPath() string { return s.base + ".sav" }

func (s *session) saveState() error {
	var buf bytes.Buffer
	if err := s.machine.SaveState(&buf, s.codec); err != nil {
		return err
	}
	if err := writeFileAtomic(s.statePath(), buf.Bytes()); err != nil {
		return fmt.Errorf("writing save state: %w", err)
	}
	slog.Info("State saved", "path", s.statePath())
	return nil
}

// loadState restores the save state if there is one. A missing file is
// not an error.
func (s *session) loadState() error {
	f, err := os.Open(s.statePath())
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no save state", "path", s.statePath())
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.machine.LoadState(f, s.codec); err != nil {
		return fmt.Errorf("loading %s: %w", s.statePath(), err)
	}
	slog.Info("State loaded", "path", s.statePath())
	return nil
}

func (s *session) saveBattery() error {
	var buf bytes.Buffer
	err := s.machine.SaveBattery(&buf)
	if errors.Is(err, memory.ErrNoBattery) {
		slog.Debug("cartridge has no battery, nothing to save")
		return nil
	}
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.batteryPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("writing battery save: %w", err)
	}
	slog.Info("Battery saved", "path", s.batteryPath())
	return nil
}

func (s *session) loadBattery() error {
	data, err := os.ReadFile(s.batteryPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	err = s.machine.LoadBattery(bytes.NewReader(data))
	if errors.Is(err, memory.ErrNoBattery) {
		slog.Warn("ignoring battery save for a cartridge without battery", "path", s.batteryPath())
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", s.batteryPath(), err)
	}
	slog.Info("Battery loaded", "path", s.batteryPath())
	return nil
}

// snapshot writes the current frame and the VRAM tile sheet next to the ROM.
func (s *session) snapshot() error {
	var frame bytes.Buffer
	if err := s.machine.Frame().WritePNG(&frame); err != nil {
		return err
	}
	framePath := fmt.Sprintf("%s_frame_%d.png", s.base, s.machine.Frames())
	if err := writeFileAtomic(framePath, frame.Bytes()); err != nil {
		return fmt.Errorf("writing frame snapshot: %w", err)
	}

	tilesPath := s.base + "_tiles.png"
	if err := s.dumpVRAM(tilesPath); err != nil {
		return err
	}
	slog.Info("Snapshot saved", "frame", framePath, "tiles", tilesPath)
	return nil
}

// dumpVRAM writes the tile sheet of the current VRAM contents as PNG.
func (s *session) dumpVRAM(path string) error {
	ppu := s.machine.Snapshot().Bus.PPU
	var buf bytes.Buffer
	if err := debug.WriteTileSheet(&buf, ppu); err != nil {
		return err
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("writing tile sheet: %w", err)
	}
	slog.Debug("VRAM dumped", "path", path, "tilemaps", debug.Tilemaps(ppu).FormatSummary())
	if oam, err := debug.ExtractOAMData(ppu); err == nil {
		slog.Debug("OAM", "summary", oam.FormatSummary())
	}
	return nil
}

// writeFileAtomic replaces path with data, never leaving a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
