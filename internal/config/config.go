// Package config provides configuration management for the model router
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// Manager handles configuration loading and management
type Manager struct {
	mu     sync.RWMutex
	config *types.Config
	viper  *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		viper: viper.New(),
	}
}

// Load loads configuration from file and environment
func (m *Manager) Load() error {
	m.setDefaults()

	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")
	m.viper.AddConfigPath("./configs")
	m.viper.AddConfigPath(".")

	m.viper.AutomaticEnv()
	m.viper.SetEnvPrefix("ROUTER")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply
	}

	config := &types.Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.read_timeout", "30s")
	m.viper.SetDefault("server.write_timeout", "30s")
	m.viper.SetDefault("server.idle_timeout", "120s")
	m.viper.SetDefault("server.batch_limit", 10)

	// Database defaults
	m.viper.SetDefault("database.host", "localhost")
	m.viper.SetDefault("database.port", 5432)
	m.viper.SetDefault("database.username", "router")
	m.viper.SetDefault("database.password", "password")
	m.viper.SetDefault("database.database", "router")
	m.viper.SetDefault("database.max_open_conns", 100)
	m.viper.SetDefault("database.max_idle_conns", 10)

	// Redis defaults
	m.viper.SetDefault("redis.host", "localhost")
	m.viper.SetDefault("redis.port", 6379)
	m.viper.SetDefault("redis.password", "")
	m.viper.SetDefault("redis.database", 0)

	// Auth defaults
	m.viper.SetDefault("auth.jwt_secret", "your-secret-key")
	m.viper.SetDefault("auth.jwt_expiration", "24h")
	m.viper.SetDefault("auth.require_api_key", false)

	// Logging defaults
	m.viper.SetDefault("logging.level", "info")
	m.viper.SetDefault("logging.format", "json")
	m.viper.SetDefault("logging.output", "stdout")

	// Rate limit defaults
	m.viper.SetDefault("rate_limit.enabled", true)
	m.viper.SetDefault("rate_limit.window", "60s")
	m.viper.SetDefault("rate_limit.limit", 100)
	m.viper.SetDefault("rate_limit.backend", "memory")

	// Health monitor defaults
	m.viper.SetDefault("health.interval", "30s")
	m.viper.SetDefault("health.timeout", "5s")

	// Dispatch defaults
	m.viper.SetDefault("dispatch.default_timeout", "60s")
	m.viper.SetDefault("dispatch.task_timeouts", map[string]time.Duration{
		"image_generation": 120 * time.Second,
	})

	// Selector defaults
	m.viper.SetDefault("selector.strict_pin", false)
}

// Get returns the current configuration
func (m *Manager) Get() *types.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Watch starts watching for configuration changes
func (m *Manager) Watch(logger *utils.Logger, callback func(*types.Config)) error {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		m.reload(logger, callback)
	})
	return nil
}

// reload re-unmarshals the watched config. A malformed edit keeps the
// previous configuration in place.
func (m *Manager) reload(logger *utils.Logger, callback func(*types.Config)) {
	config := &types.Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		logger.WithError(err).Error("Config reload failed, keeping previous configuration")
		return
	}
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	if callback != nil {
		callback(config)
	}
}

// Validate validates the configuration. Malformed provider entries are
// fatal at startup rather than skipped.
func (m *Manager) Validate() error {
	config := m.Get()
	if config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.Auth.JWTSecret == "" || config.Auth.JWTSecret == "your-secret-key" {
		return fmt.Errorf("jwt secret must be set to a secure value")
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
		if config.RateLimit.Limit <= 0 {
			return fmt.Errorf("rate limit must be positive")
		}
		switch config.RateLimit.Backend {
		case "memory", "redis":
		default:
			return fmt.Errorf("unknown rate limit backend: %s", config.RateLimit.Backend)
		}
	}

	if config.Health.Interval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}

	seen := make(map[string]bool)
	for i, p := range config.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if p.Endpoint == "" {
			return fmt.Errorf("provider %s: endpoint is required", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %s: duplicate name", p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}
