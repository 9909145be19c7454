package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T, yaml string) {
	t.Helper()
	dir := t.TempDir()
	if yaml != "" {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))
	}
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")
}

func TestDefaults(t *testing.T) {
	inTempDir(t, "")
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 54*time.Second, cfg.Server.PingPeriod)
	assert.Equal(t, 256, cfg.Server.MailboxSize)
	assert.Equal(t, "client", cfg.Peer.Role)
	assert.Equal(t, "ws://localhost:8080/api/ws", cfg.Peer.URL)
}

func TestFileEnvAndFlags(t *testing.T) {
	inTempDir(t, "server:\n  port: 9000\n  join_limit: 2\npeer:\n  room: den\n")
	t.Setenv("ROOMLINK_SERVER_PORT", "9100")

	fs := pflag.NewFlagSet("peer", pflag.ContinueOnError)
	PeerFlags(fs)
	require.NoError(t, fs.Parse([]string{"--role", "host", "--name", "ada"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Server.JoinLimit)
	assert.Equal(t, "den", cfg.Peer.Room)
	assert.Equal(t, "host", cfg.Peer.Role)
	assert.Equal(t, "ada", cfg.Peer.Name)
}

func TestValidation(t *testing.T) {
	inTempDir(t, "peer:\n  role: spectator\n")
	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Role")

	inTempDir(t, "server:\n  port: 0\n")
	_, err = Load(nil)
	assert.Error(t, err)
}
