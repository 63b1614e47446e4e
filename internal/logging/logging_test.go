package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	lvl, err = ParseLevel(" warn ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestDefaultConfigReadsEnv(t *testing.T) {
	t.Setenv(LevelEnv, "error")
	assert.Equal(t, zapcore.ErrorLevel, NewDefaultConfig().Level)

	t.Setenv(LevelEnv, "bogus")
	assert.Equal(t, zapcore.InfoLevel, NewDefaultConfig().Level)
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestFileLogger(t *testing.T) {
	t.Setenv(LevelEnv, "")
	dir := t.TempDir()
	cfg := FileConfig(dir)

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("reconciled", zap.String("path", "Journaling/a.md"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "logs", "fieldmark.log"))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, `"msg":"reconciled"`)
	assert.Contains(t, line, `"path":"Journaling/a.md"`)
}

func TestNewObserved(t *testing.T) {
	logger, logs := NewObserved(zapcore.DebugLevel)
	logger.Debug("skipped", zap.String("reason", "outside target directory"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "skipped", entry.Message)
	assert.Equal(t, "outside target directory", entry.ContextMap()["reason"])
}
