package dmg

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/valerio/go-dmg/dmg/savestate"
)

// Snapshot captures the whole machine. It must be called between
// instructions, which is always the case outside of Step.
func (d *DMG) Snapshot() *savestate.State {
	header := d.cart.Header()
	return &savestate.State{
		Version:        savestate.Version,
		Title:          header.Title,
		HeaderChecksum: header.HeaderChecksum,
		Frames:         d.frames,
		CPU:            d.cpu.Snapshot(),
		Bus:            d.mmu.Snapshot(),
	}
}

// Restore replaces the machine state with s. The state is fully validated
// first; on error the machine is left untouched and the error wraps
// savestate.ErrIncompatibleSave.
func (d *DMG) Restore(s *savestate.State) error {
	header := d.cart.Header()
	if err := s.Check(header.Title, header.HeaderChecksum); err != nil {
		return err
	}
	if err := d.mmu.Validate(s.Bus); err != nil {
		return fmt.Errorf("%w: %v", savestate.ErrIncompatibleSave, err)
	}
	d.mmu.Restore(s.Bus)
	d.cpu.Restore(s.CPU)
	d.frames = s.Frames
	return nil
}

// SaveState writes a snapshot of the machine to w in the codec's format.
func (d *DMG) SaveState(w io.Writer, codec savestate.Codec) error {
	if err := codec.Encode(w, d.Snapshot()); err != nil {
		return fmt.Errorf("encoding %s save state: %w", codec.Name(), err)
	}
	slog.Debug("state saved", "format", codec.Name(), "cycles", d.Cycles())
	return nil
}

// LoadState reads a snapshot written by SaveState and applies it.
func (d *DMG) LoadState(r io.Reader, codec savestate.Codec) error {
	s, err := codec.Decode(r)
	if err != nil {
		return err
	}
	if err := d.Restore(s); err != nil {
		return err
	}
	slog.Debug("state loaded", "format", codec.Name(), "cycles", d.Cycles())
	return nil
}
