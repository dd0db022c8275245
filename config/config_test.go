package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 12, cfg.Session.DefaultCapacity)
	assert.Equal(t, 10*time.Second, cfg.WS.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.WS.PingInterval)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "werewolf.yaml")
	body := `
server:
  addr: ":9000"
store:
  driver: sqlite
  dsn: /tmp/sessions.db
session:
  default_capacity: 8
ws:
  ping_interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("WEREWOLF_SERVER_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/sessions.db", cfg.Store.DSN)
	assert.Equal(t, 8, cfg.Session.DefaultCapacity)
	assert.Equal(t, 5*time.Second, cfg.WS.PingInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("WEREWOLF_STORE_DRIVER", "postgres")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("capacity", func(t *testing.T) {
		t.Setenv("WEREWOLF_SESSION_DEFAULT_CAPACITY", "30")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
