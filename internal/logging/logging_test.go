package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	l := ComponentLogger(NewWriterLogger(&buf, Config{Level: "info", Format: FormatJSON}), "batch")
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "batch", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNewLoggerWithPath(t *testing.T) {
	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "guildsweep.log")
		result := NewLoggerWithPath(Config{Level: "info", Output: OutputFile, File: path})
		defer func() { _ = result.Close() }()

		require.True(t, result.UsingFile)
		assert.False(t, result.FallbackUsed)
		result.Logger.Info().Msg("written")
		require.NoError(t, result.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "written")
	})

	t.Run("unwritable file falls back to stderr", func(t *testing.T) {
		result := NewLoggerWithPath(Config{Output: OutputFile, File: ""})
		assert.False(t, result.UsingFile)
		assert.True(t, result.FallbackUsed)
		assert.NotEmpty(t, result.FallbackReason)
		assert.NoError(t, result.Close())
	})

	t.Run("level is applied", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWriterLogger(&buf, Config{Level: "warn"})
		l.Info().Msg("dropped")
		assert.Empty(t, buf.String())
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TraceIDFromContext(ctx))

	generated := GetOrGenerateTraceID(ctx)
	assert.Len(t, generated, 26)

	ctx = ContextWithTraceID(ctx, "abc")
	assert.Equal(t, "abc", GetOrGenerateTraceID(ctx))

	var buf bytes.Buffer
	base := NewWriterLogger(&buf, Config{})
	ctx = base.WithContext(ctx)
	FromContext(ctx).Info().Msg("traced")
	assert.Contains(t, buf.String(), `"trace_id":"abc"`)
}
