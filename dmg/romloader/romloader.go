// Package romloader reads Game Boy ROM images from disk, either raw or packed
// inside a zip, 7z, rar, gzip or tar.gz archive.
package romloader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// MaxROMSize is the largest image accepted, well above the 2MB an MBC1 or
// MBC3 cartridge can address.
const MaxROMSize = 8 * 1024 * 1024

var (
	ErrNoROMFile         = errors.New("no ROM file found in archive")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file exceeds maximum ROM size")
)

// Extensions are the file names recognized as ROM images.
var Extensions = []string{".gb", ".sgb", ".dmg"}

// ROM is a loaded image and the file name it came from.
type ROM struct {
	Data []byte
	// Name is the base name of the ROM file, inside the archive if any.
	Name string
}

// visitFunc receives each candidate ROM entry of an archive and reports
// whether the walk can stop.
type visitFunc func(name string, r io.Reader) (bool, error)

type format struct {
	name  string
	magic []byte
	exts  []string
	walk  func(path string, visit visitFunc) error
}

var formats = []format{
	{name: "zip", magic: []byte("PK\x03\x04"), exts: []string{".zip"}, walk: walkZip},
	{name: "zip", magic: []byte("PK\x05\x06"), walk: walkZip},
	{name: "7z", magic: []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}, exts: []string{".7z"}, walk: walk7z},
	{name: "rar", magic: []byte("Rar!"), exts: []string{".rar"}, walk: walkRar},
	{name: "gzip", magic: []byte{0x1F, 0x8B}, exts: []string{".gz", ".tgz"}, walk: walkGzip},
}

// Load reads the ROM at path. Archives are detected by their magic bytes,
// then by extension, and the first entry with a ROM extension is returned.
func Load(path string) (ROM, error) {
	f, err := os.Open(path)
	if err != nil {
		return ROM{}, fmt.Errorf("opening ROM: %w", err)
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return ROM{}, fmt.Errorf("reading %s: %w", path, err)
	}

	archive, ok := detect(header[:n], path)
	if !ok {
		if !isROMName(path) {
			return ROM{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return ROM{}, err
		}
		data, err := readLimited(f)
		if err != nil {
			return ROM{}, fmt.Errorf("reading %s: %w", path, err)
		}
		return ROM{Data: data, Name: filepath.Base(path)}, nil
	}

	return loadFrom(archive, path)
}

func detect(header []byte, path string) (format, bool) {
	for _, f := range formats {
		if len(header) >= len(f.magic) && bytes.HasPrefix(header, f.magic) {
			return f, true
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats {
		for _, e := range f.exts {
			if ext == e {
				return f, true
			}
		}
	}
	return format{}, false
}

func loadFrom(archive format, path string) (ROM, error) {
	var rom ROM
	err := archive.walk(path, func(name string, r io.Reader) (bool, error) {
		data, err := readLimited(r)
		if err != nil {
			return true, fmt.Errorf("reading %s from %s archive: %w", name, archive.name, err)
		}
		rom = ROM{Data: data, Name: filepath.Base(name)}
		return true, nil
	})
	if err != nil {
		return ROM{}, err
	}
	if rom.Data == nil {
		return ROM{}, fmt.Errorf("%w: %s", ErrNoROMFile, path)
	}
	slog.Debug("extracted ROM", "archive", archive.name, "entry", rom.Name, "size", len(rom.Data))
	return rom, nil
}

func isROMName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxROMSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxROMSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
