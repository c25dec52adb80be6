package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useLogFile(t *testing.T, opts LogOptions) string {
	t.Helper()
	prev := Log
	t.Cleanup(func() { Log = prev })
	path := filepath.Join(t.TempDir(), "client.log")
	require.NoError(t, InitLogger(path, opts))
	return path
}

func TestInitLogger_ConsoleFormat(t *testing.T) {
	path := useLogFile(t, LogOptions{Level: "info"})
	Log.Debugf("hidden %d", 1)
	Log.Infof("connected to %s", "ws://x")
	SyncLogger()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "connected to ws://x")
	assert.Contains(t, out, "logger_test.go", "带调用位置")
	assert.NotContains(t, out, "hidden")
}

func TestInitLogger_JSONFormat(t *testing.T) {
	path := useLogFile(t, LogOptions{Format: "json"})
	Log.Warnf("dial %s failed", "ws://x")
	SyncLogger()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "dial ws://x failed", line["msg"])
	assert.Contains(t, line, "ts")
}

func TestInitLogger_BadLevel(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()
	assert.Error(t, InitLogger(filepath.Join(t.TempDir(), "x.log"), LogOptions{Level: "loud"}))
}
