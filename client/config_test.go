package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REALM_CONFIG", "")
	t.Setenv("REALM_SERVER_URL", "")
	t.Setenv("REALM_AUTH_URL", "")
	t.Setenv("REALM_TOKEN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, ReconnectDelay, cfg.ReconnectDelay())
	assert.Equal(t, MoveInterval, cfg.MoveInterval())
	assert.Equal(t, NearbyPollInterval, cfg.PollInterval())
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("REALM_SERVER_URL", "ws://ignored:1/ws")
	path := writeFile(t, "client.yaml", `
server_url: wss://realm.example.com/ws
token: abc
debug_addr: ":6060"
viewport:
  width: 1600
  height: 900
reconnect:
  delay_ms: 1500
  max_attempts: 3
proximity:
  poll_interval_ms: 500
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://realm.example.com/ws", cfg.ServerURL, "文件中的值优先于环境变量")
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, ":6060", cfg.DebugAddr)
	assert.Equal(t, ViewportConfig{Width: 1600, Height: 900}, cfg.Viewport)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReconnectDelay())
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	// 未出现的字段保留默认值
	assert.Equal(t, 8.0, cfg.Movement.StepSpeed)
}

func TestLoad_EnvFallback(t *testing.T) {
	t.Setenv("REALM_SERVER_URL", "ws://game.local:9000/ws")
	t.Setenv("REALM_TOKEN", "from-env")
	t.Setenv("REALM_CONFIG", writeFile(t, "c.yaml", "log_level: info\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ws://game.local:9000/ws", cfg.ServerURL)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileDefaultValueBeatsEnv(t *testing.T) {
	t.Setenv("REALM_SERVER_URL", "ws://game.local:9000/ws")
	t.Setenv("REALM_AUTH_URL", "http://auth.local/verify")
	def := DefaultConfig()
	path := writeFile(t, "client.yaml", "server_url: "+def.ServerURL+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, def.ServerURL, cfg.ServerURL, "文件显式写出的默认值同样优先")
	assert.Equal(t, "http://auth.local/verify", cfg.AuthURL, "文件未设置时用环境变量")
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"http scheme":    "server_url: http://localhost/ws\n",
		"tiny viewport":  "viewport: {width: 40, height: 40}\n",
		"zero poll":      "proximity: {poll_interval_ms: 0}\n",
		"negative retry": "reconnect: {max_attempts: -1}\n",
		"broken yaml":    "viewport: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_ResolveToken(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.ResolveToken()
	assert.ErrorIs(t, err, ErrMissingToken)

	cfg.TokenFile = filepath.Join(t.TempDir(), "none")
	_, err = cfg.ResolveToken()
	assert.ErrorIs(t, err, ErrMissingToken)

	cfg.TokenFile = writeFile(t, "token", "  secret-token\n")
	token, err := cfg.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)

	cfg.Token = "inline"
	token, err = cfg.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "inline", token)
}
