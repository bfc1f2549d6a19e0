package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, levelName string) *bytes.Buffer {
	t.Helper()
	color.NoColor = true
	buf := &bytes.Buffer{}
	SetOutput(buf)
	level.Set(ParseLevel(levelName))
	t.Cleanup(func() { level.Set(slog.LevelInfo) })
	return buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"TRACE", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.name))
		})
	}
}

func TestColorTextHandlerFormatsAttributes(t *testing.T) {
	buf := captureOutput(t, "info")

	Info("row finished", "row", 3, "ok", true, "name", "two words")

	line := buf.String()
	assert.Contains(t, line, "INFO row finished")
	assert.Contains(t, line, "row=3")
	assert.Contains(t, line, "ok=true")
	assert.Contains(t, line, `name="two words"`)
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	buf := captureOutput(t, "info")

	Debug("hidden")
	assert.Empty(t, buf.String(), "debug records should be dropped at info level")

	level.Set(slog.LevelDebug)
	Debug("visible")
	assert.Contains(t, buf.String(), "DEBUG visible")
}

func TestContextualLoggerCarriesComponent(t *testing.T) {
	buf := captureOutput(t, "debug")

	log := NewContextualLogger("engine", "run", "abc").With("row", 1)
	log.Warn("step failed", "err", errors.New("boom"))

	line := buf.String()
	assert.Contains(t, line, "WARN step failed")
	assert.Contains(t, line, "component=engine")
	assert.Contains(t, line, "run=abc")
	assert.Contains(t, line, "row=1")
	assert.Contains(t, line, `err="boom"`)
}

func TestTemplateFormat(t *testing.T) {
	assert.Equal(t, "🔍 Searching for: name", SearchTemplate.Format("name"))
	assert.Equal(t, "✅ typed", StepOKTemplate.Format("typed"))
	assert.Equal(t, "📝 [DRY-RUN] Would type: Kim", DryRunTypeTemplate.Format("Kim"))
}

func TestWithGroupPrefixesKeys(t *testing.T) {
	color.NoColor = true
	buf := &bytes.Buffer{}
	logger := slog.New(NewColorTextHandler(buf).WithGroup("match"))

	logger.Info("hit", "score", 0.5)

	assert.Contains(t, buf.String(), "match.score=0.500")
}
