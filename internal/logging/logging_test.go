package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Shunseii/bahar-sub001/internal/config"
)

func TestBuildTeesToFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "bahar.log")

	logger, err := build(config.LogConfig{
		Level:     "info",
		Format:    "json",
		File:      file,
		MaxSizeMB: 1,
	}, zapcore.AddSync(&console))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Named("queue").Info("operation failed", zap.String("entry_id", "e1"))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(console.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "operation failed", rec["msg"])
	assert.Equal(t, "queue", rec["logger"])
	assert.Equal(t, "e1", rec["entry_id"])

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entry_id":"e1"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestBuildRejectsBadLevel(t *testing.T) {
	_, err := build(config.LogConfig{Level: "loud", Format: "json"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)

	_, err = build(config.LogConfig{Level: "info", Format: "xml"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)
}
