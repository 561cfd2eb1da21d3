// Package types defines configuration structures for the model router
package types

import "time"

// Config represents the full router configuration
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Health    HealthConfig     `mapstructure:"health"`
	Dispatch  DispatchConfig   `mapstructure:"dispatch"`
	Selector  SelectorConfig   `mapstructure:"selector"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BatchLimit   int           `mapstructure:"batch_limit"`
}

// DatabaseConfig represents PostgreSQL configuration
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// AuthConfig represents authentication configuration. An API key only
// upgrades the rate-limit identity on the public surface; RequireAPIKey
// additionally rejects keyless callers.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`
	RequireAPIKey bool          `mapstructure:"require_api_key"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RateLimitConfig represents the fixed-window admission settings
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
	Limit   int           `mapstructure:"limit"`
	Backend string        `mapstructure:"backend"` // memory or redis
}

// HealthConfig represents health monitor configuration
type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DispatchConfig represents dispatcher timeout configuration.
// TaskTimeouts overrides the default per task type; heavier task types
// (media generation) get longer budgets.
type DispatchConfig struct {
	DefaultTimeout time.Duration            `mapstructure:"default_timeout"`
	TaskTimeouts   map[string]time.Duration `mapstructure:"task_timeouts"`
}

// TimeoutFor returns the call timeout for a task type.
func (d *DispatchConfig) TimeoutFor(taskType string) time.Duration {
	if t, ok := d.TaskTimeouts[taskType]; ok && t > 0 {
		return t
	}
	return d.DefaultTimeout
}

// SelectorConfig represents scoring engine configuration.
// Affinity maps provider name -> task type -> bonus points.
type SelectorConfig struct {
	StrictPin bool                      `mapstructure:"strict_pin"`
	Affinity  map[string]map[string]int `mapstructure:"affinity"`
}

// ProviderConfig represents one provider descriptor as configured
type ProviderConfig struct {
	Name           string   `mapstructure:"name"`
	Kind           string   `mapstructure:"kind"` // openai, runpod, mock
	Endpoint       string   `mapstructure:"endpoint"`
	HealthEndpoint string   `mapstructure:"health_endpoint"`
	APIKeyEnvVar   string   `mapstructure:"api_key_env"`
	Capabilities   []string `mapstructure:"capabilities"`
	MaxTokens      int      `mapstructure:"max_tokens"`
	Temperature    float64  `mapstructure:"temperature"`
	TopP           float64  `mapstructure:"top_p"`
	Priority       int      `mapstructure:"priority"`
	Fallback       bool     `mapstructure:"fallback"`
	Model          string   `mapstructure:"model"`
}
