package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"github.com/valerio/go-dmg/dmg"
	"github.com/valerio/go-dmg/dmg/audio"
	"github.com/valerio/go-dmg/dmg/backend"
	"github.com/valerio/go-dmg/dmg/backend/headless"
	"github.com/valerio/go-dmg/dmg/backend/terminal"
	"github.com/valerio/go-dmg/dmg/romloader"
	"github.com/valerio/go-dmg/dmg/savestate"
	"github.com/valerio/go-dmg/dmg/testrom"
	"github.com/valerio/go-dmg/dmg/timing"
)

func main() {
	app := cli.NewApp()
	app.Name = "dmg"
	app.Description = "A cycle accurate Game Boy (DMG) emulator"
	app.Usage = "dmg [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file, optionally inside a .zip, .7z, .rar or .gz archive",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML file with default settings, command line flags take precedence",
		},
		cli.StringFlag{
			Name:  "boot-rom",
			Usage: "Run this 256 byte boot ROM before the cartridge",
		},
		cli.BoolFlag{
			Name:  "fast",
			Usage: "Run as fast as possible instead of at 59.73 frames per second",
		},
		cli.BoolFlag{
			Name:  "cold-boot",
			Usage: "Ignore the save state next to the ROM",
		},
		cli.BoolFlag{
			Name:  "save-on-exit",
			Usage: "Write the save state and battery RAM next to the ROM on exit",
		},
		cli.StringFlag{
			Name:  "format",
			Usage: fmt.Sprintf("Save state format, one of %v", savestate.Names()),
			Value: savestate.Binary{}.Name(),
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the emulator without a display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless and test ROM modes",
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save a PNG snapshot every N frames in headless mode (0 = disabled)",
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save frame snapshots (default: temp directory)",
		},
		cli.StringFlag{
			Name:  "record-audio",
			Usage: "Record audio to this WAV file in headless mode",
		},
		cli.StringFlag{
			Name:  "dump-vram",
			Usage: "Write the VRAM tile sheet to this PNG file on exit",
		},
		cli.IntFlag{
			Name:  "sample-rate",
			Usage: "Audio sample rate in Hz",
			Value: audio.DefaultSampleRate,
		},
		cli.BoolFlag{
			Name:  "test-rom",
			Usage: "Run a hardware test ROM and report its result, failing on a failed test",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging and the register panel",
		},
		cli.BoolFlag{
			Name:  "trace",
			Usage: "Log every executed instruction (implies --debug)",
		},
	}
	app.Action = runEmulator

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	s := settingsFromFlags(c)
	if path := c.String("config"); path != "" {
		file, err := loadConfig(path)
		if err != nil {
			return err
		}
		s.merge(file, c.IsSet)
	}
	if s.Trace {
		s.Debug = true
	}
	if err := s.validate(); err != nil {
		cli.ShowAppHelp(c)
		return err
	}

	codec, err := savestate.ByName(s.Format)
	if err != nil {
		return err
	}

	var term *terminal.Backend
	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}
	if s.Headless || s.TestROM {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	} else {
		term = terminal.New()
		// the log panel goes away with the screen, errors after that go to stderr
		defer slog.SetDefault(slog.Default())
		slog.SetDefault(slog.New(term.LogHandler()))
	}

	machine, rom, err := newMachine(s)
	if err != nil {
		return err
	}

	if s.TestROM {
		return runTestROM(machine, s.Frames)
	}

	sess := newSession(machine, s.ROM, codec)
	if err := sess.loadBattery(); err != nil {
		return err
	}
	if !s.ColdBoot {
		if err := sess.loadState(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var b backend.Backend
	var limiter timing.Limiter = timing.NoOp()
	if s.Headless {
		snapshots, err := headless.CreateSnapshotConfig(s.SnapshotInterval, s.SnapshotDir, rom.Name)
		if err != nil {
			return err
		}
		var opts []headless.Option
		if s.RecordAudio != "" {
			opts = append(opts, headless.WithAudioRecording(s.RecordAudio))
		}
		b = headless.New(s.Frames, snapshots, opts...)
	} else {
		if s.Debug {
			term.SetDebugProvider(machine)
		}
		b = term
		if !s.Fast {
			limiter = timing.NewAdaptive(timing.FrameDuration())
		}
	}

	if err := b.Init(backend.Config{Title: machine.Cartridge().Header().Title}); err != nil {
		return err
	}
	runErr := backend.Run(ctx, machine, b, limiter, backend.Handlers{
		SaveState: sess.saveState,
		LoadState: sess.loadState,
		Snapshot:  sess.snapshot,
	})
	cleanupErr := b.Cleanup()

	if s.DumpVRAM != "" {
		if err := sess.dumpVRAM(s.DumpVRAM); err != nil {
			return errors.Join(runErr, cleanupErr, err)
		}
	}
	if s.SaveOnExit {
		if err := sess.saveState(); err != nil {
			return errors.Join(runErr, cleanupErr, err)
		}
		if err := sess.saveBattery(); err != nil {
			return errors.Join(runErr, cleanupErr, err)
		}
	}
	return errors.Join(runErr, cleanupErr)
}

func newMachine(s settings) (*dmg.DMG, romloader.ROM, error) {
	rom, err := romloader.Load(s.ROM)
	if err != nil {
		return nil, rom, err
	}

	opts := []dmg.Option{dmg.WithSampleRate(s.SampleRate)}
	if s.BootROM != "" {
		boot, err := os.ReadFile(s.BootROM)
		if err != nil {
			return nil, rom, fmt.Errorf("reading boot ROM: %w", err)
		}
		opts = append(opts, dmg.WithBootROM(boot))
	}
	if s.TestROM {
		opts = append(opts, dmg.WithSerialWriter(os.Stdout))
	}
	if s.Trace {
		opts = append(opts, dmg.WithTrace())
	}

	machine, err := dmg.New(rom.Data, opts...)
	if err != nil {
		return nil, rom, fmt.Errorf("loading %s: %w", rom.Name, err)
	}
	return machine, rom, nil
}

func runTestROM(machine *dmg.DMG, frames int) error {
	result, err := testrom.Run(machine, testrom.Config{MaxFrames: frames})
	if err != nil {
		return err
	}
	slog.Info("Test ROM finished", "status", result.Status.String(), "frames", result.Frames, "code", result.Code)
	if result.Status != testrom.Passed {
		return fmt.Errorf("test ROM %s: %s", result.Status, result.Output)
	}
	return nil
}
