package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Registry RegistryConfig `mapstructure:"registry"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig describes the single physical postgres connection.
type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Name              string        `mapstructure:"name"`
	SSLMode           string        `mapstructure:"sslmode"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectBackoff  time.Duration `mapstructure:"reconnect_backoff"`
}

type AuthConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ServiceName   string        `mapstructure:"service_name"`
	TokenCacheTTL time.Duration `mapstructure:"token_cache_ttl"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type RegistryConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig is optional: an empty Address keeps the token cache in memory.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Env   string `mapstructure:"env"`
}

var envBindings = map[string]string{
	"server.host":                 "SERVER_HOST",
	"server.port":                 "SERVER_PORT",
	"database.host":               "DB_HOST",
	"database.port":               "DB_PORT",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.name":               "DB_NAME",
	"database.sslmode":            "DB_SSLMODE",
	"database.connect_timeout":    "DB_CONNECT_TIMEOUT",
	"database.reconnect_attempts": "DB_RECONNECT_ATTEMPTS",
	"database.reconnect_backoff":  "DB_RECONNECT_BACKOFF",
	"auth.base_url":               "AUTH_BASE_URL",
	"auth.service_name":           "SERVICE_NAME",
	"auth.token_cache_ttl":        "TOKEN_CACHE_TTL",
	"auth.timeout":                "AUTH_TIMEOUT",
	"registry.url":                "SERVICE_REGISTRY_URL",
	"redis.address":               "REDIS_ADDR",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"log.level":                   "LOG_LEVEL",
	"log.env":                     "APP_ENV",
}

// Load reads configuration from defaults, an optional config.yaml and the environment.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "auction")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.reconnect_attempts", 3)
	v.SetDefault("database.reconnect_backoff", 500*time.Millisecond)
	v.SetDefault("auth.base_url", "https://payment-service-15044579133.europe-central2.run.app")
	v.SetDefault("auth.service_name", "AuctionService")
	v.SetDefault("auth.token_cache_ttl", 60*time.Second)
	v.SetDefault("auth.timeout", 10*time.Second)
	v.SetDefault("registry.url", "http://localhost:9000/register")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "development")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// DSN builds the postgres connection URL understood by both pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	query := url.Values{}
	query.Set("sslmode", d.SSLMode)
	if d.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout/time.Second)))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
