package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Reminder ReminderConfig
	Alerting AlertingConfig
}

type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

type StorageConfig struct {
	// Backend selects the reminder store: "redis" or "memory".
	Backend string `mapstructure:"backend"`
	Key     string `mapstructure:"key"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type ReminderConfig struct {
	DefaultSnoozeMinutes int           `mapstructure:"default_snooze_minutes"`
	FallbackInterval     time.Duration `mapstructure:"fallback_interval"`
}

type AlertingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Channel    string `mapstructure:"channel"`
	Recipient  string `mapstructure:"recipient"`
	HealthPort int    `mapstructure:"health_port"`
}

// StorageKey is the key the whole reminder collection is stored under.
const StorageKey = "cropcare_reminders"

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("cropcare")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("server.rate_limit", 100)
	viper.SetDefault("server.rate_burst", 200)
	viper.SetDefault("storage.backend", "redis")
	viper.SetDefault("storage.key", StorageKey)
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("reminder.default_snooze_minutes", 30)
	viper.SetDefault("reminder.fallback_interval", 7*24*time.Hour)
	viper.SetDefault("alerting.channel", "reminders.fired")
	viper.SetDefault("alerting.health_port", 8081)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
