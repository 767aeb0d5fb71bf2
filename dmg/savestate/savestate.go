// Package savestate defines the serialized form of a machine snapshot and the
// codecs that read and write it.
package savestate

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/valerio/go-dmg/dmg/cpu"
	"github.com/valerio/go-dmg/dmg/memory"
)

// Version is bumped whenever State changes shape.
const Version = 2

// ErrIncompatibleSave is returned when a save cannot be applied to the running
// machine: wrong version, different cartridge or inconsistent contents.
var ErrIncompatibleSave = errors.New("incompatible save state")

// ErrUnknownFormat is returned by ByName for an unregistered codec.
var ErrUnknownFormat = errors.New("unknown save state format")

// State is a full machine snapshot taken between instructions.
type State struct {
	Version        int
	Title          string
	HeaderChecksum uint8
	// Frames completed since power on.
	Frames         uint64

	CPU cpu.State
	Bus memory.State
}

// Check verifies the version and that the save belongs to the cartridge with
// the given identity.
func (s *State) Check(title string, headerChecksum uint8) error {
	if s.Version != Version {
		return fmt.Errorf("%w: version %d, expected %d", ErrIncompatibleSave, s.Version, Version)
	}
	if s.Title != title || s.HeaderChecksum != headerChecksum {
		return fmt.Errorf("%w: save is for %q (0x%02X), cartridge is %q (0x%02X)",
			ErrIncompatibleSave, s.Title, s.HeaderChecksum, title, headerChecksum)
	}
	return nil
}

// Codec encodes and decodes a State in one file format.
type Codec interface {
	Name() string
	// Extension is the file suffix, including the leading dot.
	Extension() string
	Encode(w io.Writer, s *State) error
	Decode(r io.Reader) (*State, error)
}

var codecs = map[string]Codec{}

func register(c Codec, aliases ...string) {
	codecs[c.Name()] = c
	for _, alias := range aliases {
		codecs[alias] = c
	}
}

func init() {
	register(Binary{}, "binary", "gob")
	register(JSON{})
	register(YAML{}, "yml")
}

// ByName returns the codec registered under name (case insensitive).
func ByName(name string) (Codec, error) {
	c, ok := codecs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q, available: %s", ErrUnknownFormat, name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists the primary codec names.
func Names() []string {
	seen := map[string]bool{}
	var names []string
	for _, c := range codecs {
		if !seen[c.Name()] {
			seen[c.Name()] = true
			names = append(names, c.Name())
		}
	}
	sort.Strings(names)
	return names
}

// decoded finishes a Decode: reports decoding failures and checks the version.
func decoded(format string, s *State, err error) (*State, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrIncompatibleSave, format, err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("%w: version %d, expected %d", ErrIncompatibleSave, s.Version, Version)
	}
	return s, nil
}
