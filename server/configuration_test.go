package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/crisisdesk/alertdeck/server/backend"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "alertdeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfiguration(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		v := viper.New()
		require.NoError(t, configureViper(v, ""))

		config, err := loadConfiguration(v)
		require.NoError(t, err)

		assert.Equal(t, backend.DefaultURL, config.BackendURL)
		assert.Equal(t, ":8080", config.ListenAddr)
		assert.Equal(t, 3*time.Second, config.ReconnectDelay)
		assert.Equal(t, 30*time.Second, config.PingInterval)
		assert.Equal(t, "info", config.LogLevel)
		assert.Empty(t, config.AllowedOrigins)
		assert.Equal(t, notifyConfiguration{Username: "alertdeck", MinTier: "critical"}, config.Notify)
	})

	t.Run("file values", func(t *testing.T) {
		path := writeConfigFile(t, t.TempDir(), `
backend_url: https://analysis.example.org
listen_addr: 127.0.0.1:9090
reconnect_delay: 5s
allowed_origins:
  - http://dashboard.local
log_level: DEBUG
notify:
  webhook_url: https://chat.example.org/hooks/abc
  channel: incidents
  min_tier: Medium
`)

		v := viper.New()
		require.NoError(t, configureViper(v, path))

		config, err := loadConfiguration(v)
		require.NoError(t, err)

		assert.Equal(t, "https://analysis.example.org", config.BackendURL)
		assert.Equal(t, "127.0.0.1:9090", config.ListenAddr)
		assert.Equal(t, 5*time.Second, config.ReconnectDelay)
		assert.Equal(t, []string{"http://dashboard.local"}, config.AllowedOrigins)
		assert.Equal(t, "debug", config.LogLevel)
		assert.Equal(t, "https://chat.example.org/hooks/abc", config.Notify.WebhookURL)
		assert.Equal(t, "incidents", config.Notify.Channel)
		assert.Equal(t, "alertdeck", config.Notify.Username)
		assert.Equal(t, "medium", config.Notify.MinTier)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeConfigFile(t, t.TempDir(), "backend_url: https://analysis.example.org\n")
		t.Setenv("ALERTDECK_BACKEND_URL", "http://10.0.0.5:8000")
		t.Setenv("ALERTDECK_NOTIFY_MIN_TIER", "low")
		t.Setenv("ALERTDECK_ALLOWED_ORIGINS", "http://a.local,http://b.local")

		v := viper.New()
		require.NoError(t, configureViper(v, path))

		config, err := loadConfiguration(v)
		require.NoError(t, err)

		assert.Equal(t, "http://10.0.0.5:8000", config.BackendURL)
		assert.Equal(t, "low", config.Notify.MinTier)
		assert.Equal(t, []string{"http://a.local", "http://b.local"}, config.AllowedOrigins)
	})

	t.Run("missing config file", func(t *testing.T) {
		v := viper.New()
		err := configureViper(v, filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		tests := []struct {
			name  string
			key   string
			value any
		}{
			{"backend url scheme", "backend_url", "ftp://files.local"},
			{"empty backend url", "backend_url", ""},
			{"empty listen address", "listen_addr", ""},
			{"negative delay", "reconnect_delay", "-1s"},
			{"log level", "log_level", "verbose"},
			{"min tier", "notify.min_tier", "severe"},
			{"webhook url", "notify.webhook_url", "chat.local/hooks"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				v := viper.New()
				require.NoError(t, configureViper(v, ""))
				v.Set(tc.key, tc.value)

				_, err := loadConfiguration(v)
				assert.Error(t, err)
			})
		}
	})
}

func TestConfiguration_Clone(t *testing.T) {
	config := &configuration{AllowedOrigins: []string{"http://a.local"}}
	clone := config.Clone()
	clone.AllowedOrigins[0] = "http://b.local"

	assert.Equal(t, "http://a.local", config.AllowedOrigins[0])
}

func TestSetConfiguration_PanicsOnSamePointer(t *testing.T) {
	app := newTestApp(t, testConfiguration(backend.DefaultURL))

	assert.Panics(t, func() {
		app.setConfiguration(app.getConfiguration())
	})
}

func TestOnConfigurationChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "backend_url: http://analysis.local:8000\n")

	v := viper.New()
	require.NoError(t, configureViper(v, path))
	config, err := loadConfiguration(v)
	require.NoError(t, err)

	app := newTestApp(t, config)
	changes := make(chan string, 4)
	app.endpoint.OnChange(func(baseURL string) { changes <- baseURL })

	t.Run("applies backend url, log level and notify settings", func(t *testing.T) {
		writeConfigFile(t, dir, `
backend_url: http://analysis-2.local:8000
log_level: warn
notify:
  webhook_url: http://chat.local/hooks/x
  min_tier: medium
`)
		require.NoError(t, v.ReadInConfig())

		require.NoError(t, app.OnConfigurationChange(v))

		assert.Equal(t, "http://analysis-2.local:8000", <-changes)
		assert.Equal(t, "http://analysis-2.local:8000", app.endpoint.URL())
		assert.Equal(t, zapcore.WarnLevel, app.level.Level())
		assert.Equal(t, backend.TierMedium, app.notifier.minTier)
		assert.NotNil(t, app.notifier.poster)
		assert.Equal(t, "warn", app.getConfiguration().LogLevel)
	})

	t.Run("unchanged url does not notify listeners", func(t *testing.T) {
		require.NoError(t, app.OnConfigurationChange(v))

		select {
		case url := <-changes:
			t.Fatalf("unexpected endpoint change to %s", url)
		default:
		}
	})

	t.Run("invalid change keeps the active configuration", func(t *testing.T) {
		before := app.getConfiguration()

		writeConfigFile(t, dir, "backend_url: not-a-url\nlog_level: debug\n")
		require.NoError(t, v.ReadInConfig())

		err := app.OnConfigurationChange(v)
		require.Error(t, err)

		assert.Equal(t, "http://analysis-2.local:8000", app.endpoint.URL())
		assert.Equal(t, zapcore.WarnLevel, app.level.Level())
		assert.Same(t, before, app.getConfiguration())
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
		valid    bool
	}{
		{"", zapcore.InfoLevel, true},
		{"debug", zapcore.DebugLevel, true},
		{"trace", zapcore.DebugLevel, true},
		{"warning", zapcore.WarnLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"loud", zapcore.InfoLevel, false},
	}

	for _, tc := range tests {
		level, err := parseLogLevel(tc.input)
		assert.Equal(t, tc.expected, level, tc.input)
		assert.Equal(t, tc.valid, err == nil, tc.input)
	}
}
