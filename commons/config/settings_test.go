package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv(settingsFileEnv, "")

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, settings.Orchestrator.MfaTimeout)
	assert.Equal(t, "events", settings.Redis.EventsChannel)
	assert.Equal(t, "dynamodb", settings.Store.Driver)
	assert.Equal(t, uint64(5), settings.Orchestrator.ActivityRetry.MaxAttempts)
}

func TestLoadSettingsFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rcmos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: staging
store:
  driver: postgres
orchestrator:
  mfa_timeout: 90s
  await_timeout: 3s
  activity_retry:
    max_attempts: 2
zookeeper:
  servers: [zk1:2181, zk2:2181]
`), 0o600))

	t.Setenv(settingsFileEnv, path)
	t.Setenv("MFA_TIMEOUT", "2m")
	t.Setenv("STORE_DRIVER", "memory")

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "staging", settings.App.Env)
	assert.Equal(t, "memory", settings.Store.Driver)
	assert.Equal(t, 2*time.Minute, settings.Orchestrator.MfaTimeout)
	assert.Equal(t, 3*time.Second, settings.Orchestrator.AwaitTimeout)
	assert.Equal(t, uint64(2), settings.Orchestrator.ActivityRetry.MaxAttempts)
	assert.Equal(t, []string{"zk1:2181", "zk2:2181"}, settings.ZooKeeper.Servers)
	assert.False(t, settings.IsDev())
}

func TestLoadSettingsRejectsUnknownDriver(t *testing.T) {
	t.Setenv(settingsFileEnv, "")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestLoadSettingsRejectsBadDuration(t *testing.T) {
	t.Setenv(settingsFileEnv, "")
	t.Setenv("AWAIT_TIMEOUT", "soon")

	_, err := LoadSettings()
	assert.Error(t, err)
}
