// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main engine configuration struct. Loaded once at process
// start; immutable for the process lifetime.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Registry RegistryConfig `mapstructure:"registry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// BackendConfig holds settings for the text-understanding backend used by
// the requirement extractor. BaseURL empty disables backend augmentation.
type BackendConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	APIKey                string `mapstructure:"api_key"`
	Timeout               int    `mapstructure:"timeout"` // milliseconds
	MaxRetries            int    `mapstructure:"max_retries"`
	MaxConcurrentRequests int    `mapstructure:"max_concurrent_requests"`
}

func (b BackendConfig) TimeoutDuration() time.Duration {
	return time.Duration(b.Timeout) * time.Millisecond
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnalysisConfig holds the engine-wide analysis policies.
type AnalysisConfig struct {
	EnableCaching      bool `mapstructure:"enable_caching"`
	CacheExpiryHours   int  `mapstructure:"cache_expiry_hours"`
	MinSampleSize      int  `mapstructure:"min_sample_size"`
	MinGrantTextLength int  `mapstructure:"min_grant_text_length"`
}

func (a AnalysisConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheExpiryHours) * time.Hour
}

// RulesConfig points at the compliance rule-set directory.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// RegistryConfig points at the operation registry file.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
