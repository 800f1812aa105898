package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConfigLoader_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := NewConfigLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Store.Provider)
	assert.Equal(t, 10*time.Second, cfg.Store.WaitTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "./plugins", cfg.Plugins.Dir)
	assert.False(t, cfg.Plugins.AutoDiscover)
}

func TestConfigLoader_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("HALO_SERVER_PORT", "9001")
	t.Setenv("HALO_STORE_PROVIDER", "redis")
	t.Setenv("HALO_PLUGINS_AUTO_DISCOVER", "true")
	t.Setenv("REDIS_HOST", "redis-server")

	cfg, err := NewConfigLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Provider)
	assert.True(t, cfg.Plugins.AutoDiscover)
	assert.Equal(t, "redis-server", cfg.Redis.Host)
}

func TestConfigLoader_File(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "7000"
  env: production
store:
  provider: postgres
  wait_timeout: 3s
database:
  url: postgresql://halo:halo@db:5432/halo
plugins:
  dir: /opt/halo/plugins
`)
	t.Setenv("CONFIG_FILE", path)

	loader := NewConfigLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "postgres", cfg.Store.Provider)
	assert.Equal(t, 3*time.Second, cfg.Store.WaitTimeout)
	assert.Equal(t, "/opt/halo/plugins", cfg.Plugins.Dir)
	assert.Equal(t, cfg, loader.GetConfig())
}

func TestConfigLoader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown store", content: "store:\n  provider: etcd\n"},
		{name: "unknown env", content: "server:\n  env: qa\n"},
		{name: "bad log level", content: "log:\n  level: loud\n"},
		{name: "postgres without url", content: "store:\n  provider: postgres\ndatabase:\n  url: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", writeConfigFile(t, tt.content))
			_, err := NewConfigLoader().Load()
			assert.Error(t, err)
		})
	}
}

func TestConfigLoader_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := NewConfigLoader().Load()
	assert.Error(t, err)
}

func TestConfigLoader_ReloadCallsCallbacks(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: info\n")
	t.Setenv("CONFIG_FILE", path)

	loader := NewConfigLoader()
	_, err := loader.Load()
	require.NoError(t, err)

	var oldLevel, newLevel string
	loader.RegisterCallback(func(oldConfig, newConfig *Config) error {
		oldLevel, newLevel = oldConfig.Log.Level, newConfig.Log.Level
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644))
	require.NoError(t, loader.Reload())

	assert.Equal(t, "info", oldLevel)
	assert.Equal(t, "debug", newLevel)
	assert.Equal(t, "debug", loader.GetConfig().Log.Level)
}

func TestConfigLoader_StartWatching(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	loader := NewConfigLoader()
	_, err := loader.Load()
	require.NoError(t, err)
	assert.Error(t, loader.StartWatching())

	path := writeConfigFile(t, "log:\n  level: info\n")
	t.Setenv("CONFIG_FILE", path)
	loader = NewConfigLoader()
	_, err = loader.Load()
	require.NoError(t, err)

	changed := make(chan string, 16)
	loader.RegisterCallback(func(_, newConfig *Config) error {
		changed <- newConfig.Log.Level
		return nil
	})
	require.NoError(t, loader.StartWatching())
	assert.Error(t, loader.StartWatching())

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0644))

	// 写入过程中可能先读到空文件，等到最终内容为止
	timeout := time.After(5 * time.Second)
	for {
		select {
		case level := <-changed:
			if level == "warn" {
				return
			}
		case <-timeout:
			t.Fatal("config change was not observed")
		}
	}
}

