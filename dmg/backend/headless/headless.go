// Package headless runs the emulator without any display, for automated
// testing and batch processing.
package headless

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/valerio/go-dmg/dmg/backend"
	"github.com/valerio/go-dmg/dmg/video"
)

const (
	wavBitDepth = 16
	wavChannels = 2
	wavPCM      = 1
)

// Backend implements backend.Backend and backend.AudioSink.
type Backend struct {
	frameCount     int
	maxFrames      int
	snapshotConfig SnapshotConfig
	audioPath      string

	audioFile *os.File
	encoder   *wav.Encoder
	samples   audio.IntBuffer
}

// SnapshotConfig holds configuration for frame snapshots
type SnapshotConfig struct {
	Enabled   bool
	Interval  int    // Save snapshot every N frames
	Directory string // Directory to save snapshots
	ROMName   string // ROM name for snapshot filenames
}

type Option func(*Backend)

// WithAudioRecording writes all audio to a WAV file at path.
func WithAudioRecording(path string) Option {
	return func(b *Backend) { b.audioPath = path }
}

// New returns a backend that quits after maxFrames frames.
func New(maxFrames int, snapshotConfig SnapshotConfig, opts ...Option) *Backend {
	b := &Backend{
		maxFrames:      maxFrames,
		snapshotConfig: snapshotConfig,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (h *Backend) Init(config backend.Config) error {
	slog.Info("Running headless mode",
		"title", config.Title,
		"frames", h.maxFrames,
		"snapshot_interval", h.snapshotConfig.Interval,
		"snapshot_dir", h.snapshotConfig.Directory)

	if h.audioPath != "" {
		f, err := os.Create(h.audioPath)
		if err != nil {
			return fmt.Errorf("failed to create audio recording: %w", err)
		}
		h.audioFile = f
	}
	return nil
}

// Update processes a frame and handles snapshots
func (h *Backend) Update(frame *video.FrameBuffer) (backend.Input, error) {
	h.frameCount++

	if h.snapshotConfig.Enabled && h.frameCount%h.snapshotConfig.Interval == 0 {
		h.saveSnapshot(frame)
	}

	if h.frameCount%60 == 0 {
		slog.Debug("Frame progress", "completed", h.frameCount, "total", h.maxFrames)
	}

	if h.frameCount < h.maxFrames {
		return backend.Input{}, nil
	}

	// final frame, unless the interval just covered it
	if h.snapshotConfig.Enabled && h.frameCount%h.snapshotConfig.Interval != 0 {
		h.saveSnapshot(frame)
	}
	if h.snapshotConfig.Enabled {
		slog.Info("Headless execution completed", "frames", h.frameCount, "png_snapshots_saved_to", h.snapshotConfig.Directory)
	} else {
		slog.Info("Headless execution completed", "frames", h.frameCount)
	}
	return backend.Input{Actions: []backend.Action{backend.ActionQuit}}, nil
}

// PushSamples appends interleaved stereo samples to the WAV recording.
func (h *Backend) PushSamples(samples []int16, rate int) error {
	if h.audioFile == nil {
		return nil
	}
	if h.encoder == nil {
		h.encoder = wav.NewEncoder(h.audioFile, rate, wavBitDepth, wavChannels, wavPCM)
		h.samples = audio.IntBuffer{
			Format:         &audio.Format{NumChannels: wavChannels, SampleRate: rate},
			SourceBitDepth: wavBitDepth,
		}
	}

	h.samples.Data = h.samples.Data[:0]
	for _, s := range samples {
		h.samples.Data = append(h.samples.Data, int(s))
	}
	if err := h.encoder.Write(&h.samples); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	return nil
}

// Frames returns the number of frames processed.
func (h *Backend) Frames() int {
	return h.frameCount
}

// Cleanup finalizes the WAV header, if recording.
func (h *Backend) Cleanup() error {
	if h.audioFile == nil {
		return nil
	}
	defer func() { h.audioFile = nil }()

	if h.encoder == nil {
		// no samples arrived, still leave a valid empty file
		h.encoder = wav.NewEncoder(h.audioFile, 44100, wavBitDepth, wavChannels, wavPCM)
	}
	if err := h.encoder.Close(); err != nil {
		h.audioFile.Close()
		return fmt.Errorf("failed to finalize audio: %w", err)
	}
	slog.Info("Audio recording saved", "path", h.audioPath)
	return h.audioFile.Close()
}

// CreateSnapshotConfig creates a snapshot configuration from CLI parameters
func CreateSnapshotConfig(interval int, directory, romPath string) (SnapshotConfig, error) {
	config := SnapshotConfig{
		Enabled:  interval > 0,
		Interval: interval,
	}

	if !config.Enabled {
		return config, nil
	}

	if directory == "" {
		tempDir, err := os.MkdirTemp("", "dmg-snapshots-*")
		if err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = tempDir
	} else {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = directory
	}

	config.ROMName = filepath.Base(romPath)
	config.ROMName = strings.TrimSuffix(config.ROMName, filepath.Ext(config.ROMName))

	return config, nil
}

// SnapshotPath is where the snapshot of a frame number is written.
func (c SnapshotConfig) SnapshotPath(frame int) string {
	return filepath.Join(c.Directory, fmt.Sprintf("%s_frame_%d.png", c.ROMName, frame))
}

func (h *Backend) saveSnapshot(frame *video.FrameBuffer) {
	path := h.snapshotConfig.SnapshotPath(h.frameCount)
	if err := writePNG(frame, path); err != nil {
		slog.Error("Failed to save PNG snapshot", "frame", h.frameCount, "error", err)
	}
}

func writePNG(frame *video.FrameBuffer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := frame.WritePNG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
