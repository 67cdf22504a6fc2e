// Package config provides typed application configuration loaded through
// Viper from config.yaml, environment variables, and defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rankforge/crawlpipe/internal/logger"
)

// Config is the root configuration for the pipeline service.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logger   logger.Config  `mapstructure:"logger"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Search   SearchConfig   `mapstructure:"search"`
	Security SecurityConfig `mapstructure:"security"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis Streams task queue settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// CrawlerConfig holds settings for the external crawling capability and
// for sitemap discovery's own HTTP fetches.
type CrawlerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	CallbackURL    string        `mapstructure:"callback_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SearchConfig holds optional Elasticsearch indexing settings. Indexing
// is disabled when Addresses is empty.
type SearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	APIKey    string   `mapstructure:"api_key"`
	Index     string   `mapstructure:"index"`
}

// SecurityConfig holds the credential envelope key (base64, >= 32 raw
// bytes after decoding).
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// PipelineConfig holds pipeline tuning knobs. StallWindow is how long a
// project may sit in a non-waiting intermediate state before the sweeper
// re-enqueues its stage.
type PipelineConfig struct {
	StallWindow   time.Duration `mapstructure:"stall_window"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
	ConsumerID    string        `mapstructure:"consumer_id"`
}

// Load unmarshals the current Viper state into a Config.
func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
