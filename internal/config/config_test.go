package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, int64(32768), cfg.ReadLimit)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, []string{"*"}, cfg.Origins)
	assert.Equal(t, 50, cfg.Room.MaxUsers)
	assert.Equal(t, 10*time.Minute, cfg.Room.CleanupInterval)
	assert.Equal(t, 30*time.Minute, cfg.Room.OfflineTimeout)
	assert.Equal(t, time.Hour, cfg.Room.IdleTimeout)
	assert.True(t, cfg.Room.ReaperEnabled)
	assert.Equal(t, []string{"admin"}, cfg.Room.AdminIDs)
	assert.Equal(t, 5, cfg.Rate.CreateLimit)
	assert.Equal(t, time.Minute, cfg.Rate.CreateInterval)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := `
mode: debug
port: 9000
log_level: warn
room:
  max_users: 8
  offline_timeout: 5m
  reaper_enabled: false
  admin_ids: [ops, root]
rate:
  create_limit: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("LOBBY_PORT", "9100")
	t.Setenv("LOBBY_ROOM_IDLE_TIMEOUT", "2h")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9100, cfg.Port, "env wins over the file")
	assert.Equal(t, zerolog.WarnLevel, cfg.Level())
	assert.Equal(t, 8, cfg.Room.MaxUsers)
	assert.Equal(t, 5*time.Minute, cfg.Room.OfflineTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Room.IdleTimeout)
	assert.False(t, cfg.Room.ReaperEnabled)
	assert.Equal(t, []string{"ops", "root"}, cfg.Room.AdminIDs)
	assert.Equal(t, 2, cfg.Rate.CreateLimit)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 70000\nroom:\n  max_users: 0\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 70000 out of range")
	assert.Contains(t, err.Error(), "room.max_users must be positive")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port: 8443, LogLevel: "info", ReadLimit: 1024, PingPeriod: time.Second, SendBuffer: 4, Origins: []string{"*"},
			Room: RoomConfig{MaxUsers: 2, CleanupInterval: time.Minute, OfflineTimeout: time.Minute, IdleTimeout: time.Minute},
			Rate: RateConfig{CreateLimit: 1, CreateInterval: time.Second},
		}
	}

	tcases := []struct {
		name   string
		mutate func(*Config)
		err    bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, err: true},
		{name: "no origins", mutate: func(c *Config) { c.Origins = nil }, err: true},
		{name: "zero buffer", mutate: func(c *Config) { c.SendBuffer = 0 }, err: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Room.IdleTimeout = 0 }, err: true},
		{name: "zero rate", mutate: func(c *Config) { c.Rate.CreateLimit = 0 }, err: true},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			if tc.err {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, (&Config{LogLevel: "nonsense"}).Level())
	assert.Equal(t, zerolog.InfoLevel, (&Config{LogLevel: ""}).Level())
	assert.Equal(t, zerolog.DebugLevel, (&Config{LogLevel: "debug"}).Level())
}
