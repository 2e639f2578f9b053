package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeEnvToml(t *testing.T, home, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".env.toml"), []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv(EnvFailpointHomeDir, home)
	t.Setenv(EnvFailpointPresets, "")

	var cfg EnvConfig
	require.NoError(t, cfg.Load())

	require.DirExists(t, home)
	require.Equal(t, home, cfg.Dirs().Home())
	require.Equal(t, DefaultListenAddr, cfg.Daemon.Listen)
	require.Equal(t, DefaultListenAddr, cfg.Client.Endpoint)
	require.Equal(t, filepath.Join(home, "store"), cfg.Daemon.Store)
	require.True(t, cfg.Daemon.Persist)
	require.True(t, cfg.Daemon.Metrics)
	require.True(t, cfg.Daemon.AutoRegister)
	require.Equal(t, time.Minute, cfg.Sync.WaitInterval.Std())
	require.Equal(t, 50*time.Millisecond, cfg.Sync.QuiescencePoll.Std())
	require.Empty(t, cfg.FailPoints)
}

func TestLoadEnvToml(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvFailpointHomeDir, home)
	t.Setenv(EnvFailpointPresets, `{"hang": {"mode": "off"}, "drop": {"mode": {"times": 2}}}`)

	writeEnvToml(t, home, `
[daemon]
listen = "127.0.0.1:9000"
persist = false

[sync]
wait_interval = "5s"
quiescence_poll = "1ms"

[failpoints.hang]
mode = "alwaysOn"
data = { errorCode = 6 }

[failpoints.slow.mode]
activationProbability = 0.25
`)

	var cfg EnvConfig
	require.NoError(t, cfg.Load())

	require.Equal(t, "127.0.0.1:9000", cfg.Daemon.Listen)
	require.False(t, cfg.Daemon.Persist)
	require.True(t, cfg.Daemon.Metrics)
	require.Equal(t, 5*time.Second, cfg.Sync.WaitInterval.Std())
	require.Equal(t, time.Millisecond, cfg.Sync.QuiescencePoll.Std())

	require.Len(t, cfg.FailPoints, 3)
	// the env var overrides the file.
	require.Equal(t, "off", cfg.FailPoints["hang"]["mode"])
	require.NotContains(t, cfg.FailPoints["hang"], "data")
	require.Equal(t, json.Number("2"), cfg.FailPoints["drop"]["mode"].(map[string]interface{})["times"])
	require.Equal(t, 0.25, cfg.FailPoints["slow"]["mode"].(map[string]interface{})["activationProbability"])
}

func TestLoadRejectsInvalid(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvFailpointHomeDir, home)
	t.Setenv(EnvFailpointPresets, "")

	writeEnvToml(t, home, "[sync]\nwait_interval = \"soon\"\n")
	var cfg EnvConfig
	require.Error(t, cfg.Load())

	writeEnvToml(t, home, "[daemon]\nlisten = \"not an address\"\n")
	cfg = EnvConfig{}
	require.Error(t, cfg.Load())

	writeEnvToml(t, home, "")
	t.Setenv(EnvFailpointPresets, "[1, 2]")
	cfg = EnvConfig{}
	require.Error(t, cfg.Load())
}
