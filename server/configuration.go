package main

import (
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/crisisdesk/alertdeck/server/backend"
)

const (
	envPrefix         = "ALERTDECK"
	defaultListenAddr = ":8080"
	defaultLogLevel   = "info"
)

// configuration captures the service settings loaded from the config file,
// ALERTDECK_* environment variables and command line flags.
//
// Access is synchronized by guarding a pointer to the configuration and
// cloning the struct whenever it changes. If you add reference types, extend
// Clone to deep copy them.
type configuration struct {
	BackendURL     string              `mapstructure:"backend_url"`
	ListenAddr     string              `mapstructure:"listen_addr"`
	ReconnectDelay time.Duration       `mapstructure:"reconnect_delay"`
	PingInterval   time.Duration       `mapstructure:"ping_interval"`
	AllowedOrigins []string            `mapstructure:"allowed_origins"`
	LogLevel       string              `mapstructure:"log_level"`
	Notify         notifyConfiguration `mapstructure:"notify"`
}

// notifyConfiguration configures chat notifications. An empty WebhookURL
// disables them.
type notifyConfiguration struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Username   string `mapstructure:"username"`
	MinTier    string `mapstructure:"min_tier"`
}

// Clone creates a deep copy of the configuration
func (c *configuration) Clone() *configuration {
	clone := *c

	if c.AllowedOrigins != nil {
		clone.AllowedOrigins = make([]string, len(c.AllowedOrigins))
		copy(clone.AllowedOrigins, c.AllowedOrigins)
	}

	return &clone
}

// IsValid checks every field that has a constrained value
func (c *configuration) IsValid() error {
	if _, err := backend.ValidateURL(c.BackendURL); err != nil {
		return errors.Wrap(err, "invalid backend_url")
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.ReconnectDelay < 0 {
		return errors.Errorf("reconnect_delay must not be negative, got %s", c.ReconnectDelay)
	}
	if c.PingInterval < 0 {
		return errors.Errorf("ping_interval must not be negative, got %s", c.PingInterval)
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if _, ok := backend.ParseTier(c.Notify.MinTier); !ok {
		return errors.Errorf("invalid notify.min_tier %q: must be critical, medium or low", c.Notify.MinTier)
	}
	if c.Notify.WebhookURL != "" {
		if _, err := backend.ValidateURL(c.Notify.WebhookURL); err != nil {
			return errors.Wrap(err, "invalid notify.webhook_url")
		}
	}
	return nil
}

// setDefaults registers every key so that AutomaticEnv can resolve it
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", backend.DefaultURL)
	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("reconnect_delay", backend.DefaultReconnectDelay.String())
	v.SetDefault("ping_interval", "30s")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.channel", "")
	v.SetDefault("notify.username", "alertdeck")
	v.SetDefault("notify.min_tier", string(backend.TierCritical))
}

// configureViper wires defaults, the environment and the optional config file
func configureViper(v *viper.Viper, configFile string) error {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return nil
	}

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %s", configFile)
	}
	return nil
}

// bindFlags maps command line flags onto their configuration keys
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"backend_url": "backend-url",
		"listen_addr": "listen",
		"log_level":   "log-level",
	}

	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", name)
		}
	}
	return nil
}

// loadConfiguration decodes and validates the current viper state
func loadConfiguration(v *viper.Viper) (*configuration, error) {
	config := new(configuration)
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))
	config.Notify.MinTier = strings.ToLower(strings.TrimSpace(config.Notify.MinTier))

	if err := config.IsValid(); err != nil {
		return nil, err
	}
	return config, nil
}

// getConfiguration retrieves the active configuration under lock. The returned
// struct is considered immutable.
func (a *App) getConfiguration() *configuration {
	a.configurationLock.RLock()
	defer a.configurationLock.RUnlock()

	if a.configuration == nil {
		return &configuration{}
	}

	return a.configuration
}

// setConfiguration replaces the active configuration under lock.
//
// This method panics if called with the existing configuration, which almost
// certainly means it was modified without being cloned.
func (a *App) setConfiguration(configuration *configuration) {
	a.configurationLock.Lock()
	defer a.configurationLock.Unlock()

	if configuration != nil && a.configuration == configuration {
		panic("setConfiguration called with the existing configuration")
	}

	a.configuration = configuration
}

// OnConfigurationChange reloads the configuration and applies what can change
// at runtime. An invalid configuration is rejected as a whole and the active
// one retained.
func (a *App) OnConfigurationChange(v *viper.Viper) error {
	newConfig, err := loadConfiguration(v)
	if err != nil {
		return errors.Wrap(err, "rejected configuration change")
	}

	oldConfig := a.getConfiguration()

	// Set only notifies listeners when the URL actually changed
	if err := a.endpoint.Set(newConfig.BackendURL); err != nil {
		return errors.Wrap(err, "rejected backend url")
	}
	newConfig.BackendURL = a.endpoint.URL()

	if level, err := parseLogLevel(newConfig.LogLevel); err == nil {
		a.level.SetLevel(level)
	}

	a.notifier.Configure(newConfig.Notify)

	if newConfig.ListenAddr != oldConfig.ListenAddr ||
		newConfig.ReconnectDelay != oldConfig.ReconnectDelay ||
		newConfig.PingInterval != oldConfig.PingInterval ||
		!slices.Equal(newConfig.AllowedOrigins, oldConfig.AllowedOrigins) {
		a.logger.Warnw("Listen address, origins and stream timing changes take effect after a restart")
	}

	a.setConfiguration(newConfig)
	a.logger.Infow("Configuration applied", "backendURL", newConfig.BackendURL, "logLevel", newConfig.LogLevel)

	return nil
}

// watchConfiguration applies config file edits while the service runs
func (a *App) watchConfiguration(v *viper.Viper) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		a.logger.Infow("Config file changed", "file", e.Name)
		if err := a.OnConfigurationChange(v); err != nil {
			a.logger.Warnw("Keeping previous configuration", "error", err.Error())
		}
	})
	v.WatchConfig()
}
