package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// InitializeViper wires Viper to the config file, environment variables,
// and defaults. Environment variables use underscores for nesting, e.g.
// DATABASE_HOST maps to database.host. The config file is optional.
func InitializeViper(cfgFile string) error {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// Config file is optional: defaults and environment variables cover
	// every key.
	_ = viper.ReadInConfig()

	return nil
}

// setDefaults sets production-safe default configuration values.
func setDefaults() {
	viper.SetDefault("app", map[string]any{
		"name":        "crawlpipe",
		"environment": "production",
		"debug":       false,
	})

	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "json",
		"development": false,
	})

	viper.SetDefault("server", map[string]any{
		"address":       ":8080",
		"read_timeout":  "15s",
		"write_timeout": "15s",
		"idle_timeout":  "60s",
	})

	viper.SetDefault("database", map[string]any{
		"host":    "127.0.0.1",
		"port":    "5432",
		"user":    "crawlpipe",
		"dbname":  "crawlpipe",
		"sslmode": "disable",
	})

	viper.SetDefault("redis", map[string]any{
		"addr":   "127.0.0.1:6379",
		"db":     0,
		"prefix": "crawlpipe",
	})

	viper.SetDefault("crawler", map[string]any{
		"request_timeout": "30s",
		"user_agent":      "crawlpipe/1.0 (+https://github.com/rankforge/crawlpipe)",
	})

	viper.SetDefault("search", map[string]any{
		"index": "crawlpipe-pages",
	})

	viper.SetDefault("pipeline", map[string]any{
		"stall_window":   "10m",
		"sweep_schedule": "*/1 * * * *",
	})
}
