package terminal

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func messages(entries []LogEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func TestLogBufferWraps(t *testing.T) {
	lb := NewLogBuffer(3)
	for _, m := range []string{"a", "b", "c", "d"} {
		lb.Add(LogEntry{Level: slog.LevelInfo, Message: m})
	}

	assert.Equal(t, []string{"d", "c", "b"}, messages(lb.GetRecent(0, slog.LevelDebug)))
	assert.Equal(t, []string{"d", "c"}, messages(lb.GetRecent(2, slog.LevelDebug)))

	lb.Clear()
	assert.Empty(t, lb.GetRecent(0, slog.LevelDebug))
}

func TestLogBufferFiltersLevel(t *testing.T) {
	lb := NewLogBuffer(10)
	lb.Add(LogEntry{Level: slog.LevelDebug, Message: "debug"})
	lb.Add(LogEntry{Level: slog.LevelWarn, Message: "warn"})
	lb.Add(LogEntry{Level: slog.LevelInfo, Message: "info"})

	assert.Equal(t, []string{"info", "warn"}, messages(lb.GetRecent(0, slog.LevelInfo)))
	assert.Equal(t, []string{"warn"}, messages(lb.GetRecent(1, slog.LevelWarn)))
}

func TestLogBufferHandler(t *testing.T) {
	lb := NewLogBuffer(10)
	logger := slog.New(NewLogBufferHandler(lb, slog.LevelInfo))

	logger.Debug("dropped")
	logger.With("component", "mmu").WithGroup("dma").Info("started", "source", "0xC000")

	entries := lb.GetRecent(0, slog.LevelDebug)
	assert.Equal(t, []string{"started component=mmu dma.source=0xC000"}, messages(entries))
}

func TestFormatLogEntry(t *testing.T) {
	ts := time.Date(2024, 1, 2, 13, 14, 15, 0, time.UTC)
	testCases := []struct {
		desc  string
		level slog.Level
		want  string
	}{
		{desc: "debug", level: slog.LevelDebug, want: "13:14:15 [DBG] hello"},
		{desc: "info", level: slog.LevelInfo, want: "13:14:15 [INF] hello"},
		{desc: "warn", level: slog.LevelWarn, want: "13:14:15 [WRN] hello"},
		{desc: "error", level: slog.LevelError, want: "13:14:15 [ERR] hello"},
		{desc: "custom", level: slog.Level(2), want: "13:14:15 [???] hello"},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.want, FormatLogEntry(LogEntry{Time: ts, Level: tC.level, Message: "hello"}))
		})
	}
}
