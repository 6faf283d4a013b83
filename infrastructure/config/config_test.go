package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.ServerAddress())
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "ProductionSiteTable", cfg.SitesTable)
	assert.Equal(t, "ProductionTable", cfg.ProductionTable)
	assert.Equal(t, StoreDynamoDB, cfg.StoreDriver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins())
	assert.Empty(t, cfg.EventBusName)
	assert.True(t, cfg.EnableMetrics)
	assert.False(t, cfg.EnableTracing)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Interval)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
port: 9000
storeDriver: memory
logLevel: debug
frontendUrl: "http://a.example, http://b.example"
breaker:
  timeout: 5s
  failureThreshold: 0.5
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("AUTO_CREATE_TABLES", "true")
	t.Setenv("BREAKER_MIN_REQUESTS", "10")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.AutoCreateTables)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins())
	assert.Equal(t, 5*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, 0.5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, uint32(10), cfg.Breaker.MinRequests)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxRequests)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	t.Run("store driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "postgres")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, path, "port: [")
		t.Setenv("CONFIG_FILE", path)
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestWatcher_ReloadsLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logLevel: info\n")

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	w.OnChange(LevelUpdater(level, zap.NewNop()))
	w.Start()
	defer w.Stop()

	writeFile(t, path, "logLevel: debug\n")
	assert.Eventually(t, func() bool {
		return level.Level() == zapcore.DebugLevel
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "debug", w.Current().LogLevel)

	// An invalid level is rejected and the current config is kept.
	writeFile(t, path, "logLevel: loud\n")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.Equal(t, "debug", w.Current().LogLevel)
}
