package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestNewLoggerHonoursAtomicLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, level, err := NewLogger(Options{Level: "warn", Stdout: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	require.NoError(t, logger.Sync())
	assert.Empty(t, buf.String())

	level.SetLevel(zapcore.InfoLevel)
	logger.Info("visible", zap.String("operation", "test"))
	require.NoError(t, logger.Sync())
	assert.Contains(t, buf.String(), `"msg":"visible"`)
	assert.Contains(t, buf.String(), `"operation":"test"`)
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "sortie.log")
	logger, _, err := NewLogger(Options{
		Format: "console",
		Stdout: &buf,
		File:   FileOptions{Path: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	logger.Info("to file")
	require.NoError(t, logger.Sync())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "to file")
	assert.Contains(t, buf.String(), "to file")
}

func TestNewLoggerRejectsUnknownFormat(t *testing.T) {
	_, _, err := NewLogger(Options{Format: "xml"})
	require.Error(t, err)
}
