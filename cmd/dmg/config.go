package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

// settings is the resolved configuration of one run. The yaml tags are the
// keys accepted in the --config file.
type settings struct {
	ROM         string `yaml:"rom"`
	BootROM     string `yaml:"boot_rom"`
	Format      string `yaml:"format"`
	SnapshotDir string `yaml:"snapshot_dir"`
	RecordAudio string `yaml:"record_audio"`
	DumpVRAM    string `yaml:"dump_vram"`

	Fast       bool `yaml:"fast"`
	ColdBoot   bool `yaml:"cold_boot"`
	SaveOnExit bool `yaml:"save_on_exit"`
	Headless   bool `yaml:"headless"`
	TestROM    bool `yaml:"test_rom"`
	Debug      bool `yaml:"debug"`
	Trace      bool `yaml:"trace"`

	Frames           int `yaml:"frames"`
	SnapshotInterval int `yaml:"snapshot_interval"`
	SampleRate       int `yaml:"sample_rate"`
}

func settingsFromFlags(c *cli.Context) settings {
	s := settings{
		ROM:              c.String("rom"),
		BootROM:          c.String("boot-rom"),
		Format:           c.String("format"),
		SnapshotDir:      c.String("snapshot-dir"),
		RecordAudio:      c.String("record-audio"),
		DumpVRAM:         c.String("dump-vram"),
		Fast:             c.Bool("fast"),
		ColdBoot:         c.Bool("cold-boot"),
		SaveOnExit:       c.Bool("save-on-exit"),
		Headless:         c.Bool("headless"),
		TestROM:          c.Bool("test-rom"),
		Debug:            c.Bool("debug"),
		Trace:            c.Bool("trace"),
		Frames:           c.Int("frames"),
		SnapshotInterval: c.Int("snapshot-interval"),
		SampleRate:       c.Int("sample-rate"),
	}
	if s.ROM == "" && c.NArg() > 0 {
		s.ROM = c.Args().First()
	}
	return s
}

// loadConfig reads a YAML settings file. Unknown keys are rejected.
func loadConfig(path string) (settings, error) {
	var s settings
	f, err := os.Open(path)
	if err != nil {
		return s, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return s, nil
}

// merge fills in values from file for every flag not given on the command
// line.
func (s *settings) merge(file settings, isSet func(flag string) bool) {
	str := func(dst *string, src, flag string) {
		if !isSet(flag) && src != "" {
			*dst = src
		}
	}
	boolean := func(dst *bool, src bool, flag string) {
		if !isSet(flag) && src {
			*dst = true
		}
	}
	integer := func(dst *int, src int, flag string) {
		if !isSet(flag) && src != 0 {
			*dst = src
		}
	}

	if s.ROM == "" {
		s.ROM = file.ROM
	}
	str(&s.BootROM, file.BootROM, "boot-rom")
	str(&s.Format, file.Format, "format")
	str(&s.SnapshotDir, file.SnapshotDir, "snapshot-dir")
	str(&s.RecordAudio, file.RecordAudio, "record-audio")
	str(&s.DumpVRAM, file.DumpVRAM, "dump-vram")
	boolean(&s.Fast, file.Fast, "fast")
	boolean(&s.ColdBoot, file.ColdBoot, "cold-boot")
	boolean(&s.SaveOnExit, file.SaveOnExit, "save-on-exit")
	boolean(&s.Headless, file.Headless, "headless")
	boolean(&s.TestROM, file.TestROM, "test-rom")
	boolean(&s.Debug, file.Debug, "debug")
	boolean(&s.Trace, file.Trace, "trace")
	integer(&s.Frames, file.Frames, "frames")
	integer(&s.SnapshotInterval, file.SnapshotInterval, "snapshot-interval")
	integer(&s.SampleRate, file.SampleRate, "sample-rate")
}

func (s settings) validate() error {
	switch {
	case s.ROM == "":
		return errors.New("no ROM path provided")
	case (s.Headless || s.TestROM) && s.Frames <= 0:
		return errors.New("headless and test ROM modes require --frames with a positive value")
	case s.SnapshotInterval < 0:
		return errors.New("--snapshot-interval must not be negative")
	case s.SampleRate <= 0:
		return errors.New("--sample-rate must be positive")
	}
	return nil
}
