// Package config loads service settings from an optional YAML file with
// TASDEEQ_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "TASDEEQ"

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimitBytes  int64         `mapstructure:"body_limit_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

type GRPCConfig struct {
	// Addr is empty when the health server is disabled.
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

type AuthConfig struct {
	Secret    string        `mapstructure:"secret"`
	DevTokens bool          `mapstructure:"dev_tokens"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type KYCConfig struct {
	AllowRedecision bool `mapstructure:"allow_redecision"`
	NotifyOnReview  bool `mapstructure:"notify_on_review"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

type StreamConfig struct {
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	Heartbeat    time.Duration `mapstructure:"heartbeat"`
}

type Config struct {
	ServiceName string       `mapstructure:"service_name"`
	Env         string       `mapstructure:"env"`
	Log         LogConfig    `mapstructure:"log"`
	HTTP        HTTPConfig   `mapstructure:"http"`
	GRPC        GRPCConfig   `mapstructure:"grpc"`
	Store       StoreConfig  `mapstructure:"store"`
	Auth        AuthConfig   `mapstructure:"auth"`
	KYC         KYCConfig    `mapstructure:"kyc"`
	Redis       RedisConfig  `mapstructure:"redis"`
	Kafka       KafkaConfig  `mapstructure:"kafka"`
	Stream      StreamConfig `mapstructure:"stream"`
}

// Load reads path (config.yaml when empty). A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("http.addr is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "tasdeeq-api")
	v.SetDefault("env", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "0s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.body_limit_bytes", 1<<20)
	v.SetDefault("http.cors_origins", []string{})
	v.SetDefault("http.rate_limit_rps", 20.0)
	v.SetDefault("http.rate_limit_burst", 40)

	v.SetDefault("grpc.addr", ":9090")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_open_conns", 50)
	v.SetDefault("store.max_idle_conns", 25)
	v.SetDefault("store.conn_max_lifetime", "15m")
	v.SetDefault("store.migrate_on_start", false)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.dev_tokens", false)
	v.SetDefault("auth.token_ttl", "1h")

	v.SetDefault("kyc.allow_redecision", false)
	v.SetDefault("kyc.notify_on_review", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "tasdeeq:kyc:events")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "kyc.case.events")
	v.SetDefault("kafka.client_id", "tasdeeq-api")

	v.SetDefault("stream.query_timeout", "5s")
	v.SetDefault("stream.heartbeat", "25s")
}
