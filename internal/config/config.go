package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	GinMode  string `mapstructure:"GIN_MODE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	HistoryCacheTTL time.Duration `mapstructure:"HISTORY_CACHE_TTL"`

	HistoryLimit     int           `mapstructure:"HISTORY_LIMIT"`
	MaxContentLength int           `mapstructure:"MAX_CONTENT_LENGTH"`
	StoreTimeout     time.Duration `mapstructure:"STORE_TIMEOUT"`

	WebSocket WebSocketConfig `mapstructure:",squash"`
}

// WebSocketConfig holds the per-connection transport limits.
type WebSocketConfig struct {
	AllowedOrigins []string      `mapstructure:"WS_ALLOWED_ORIGINS"`
	SendQueueSize  int           `mapstructure:"WS_SEND_QUEUE_SIZE"`
	MaxMessageSize int64         `mapstructure:"WS_MAX_MESSAGE_SIZE"`
	WriteWait      time.Duration `mapstructure:"WS_WRITE_WAIT"`
	PongWait       time.Duration `mapstructure:"WS_PONG_WAIT"`
	PingInterval   time.Duration `mapstructure:"WS_PING_INTERVAL"`
	AuthTimeout    time.Duration `mapstructure:"WS_AUTH_TIMEOUT"`
}

var AppConfig *Config

var defaults = map[string]any{
	"HTTP_ADDR":           ":8080",
	"GIN_MODE":            "release",
	"LOG_LEVEL":           "info",
	"LOG_PRETTY":          false,
	"DATABASE_DRIVER":     "sqlite",
	"DATABASE_URL":        "chat.db",
	"JWT_SECRET":          "",
	"JWT_TTL":             "168h",
	"REDIS_ADDR":          "",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"HISTORY_CACHE_TTL":   "30s",
	"HISTORY_LIMIT":       50,
	"MAX_CONTENT_LENGTH":  500,
	"STORE_TIMEOUT":       "5s",
	"WS_ALLOWED_ORIGINS":  "*",
	"WS_SEND_QUEUE_SIZE":  256,
	"WS_MAX_MESSAGE_SIZE": 4096,
	"WS_WRITE_WAIT":       "10s",
	"WS_PONG_WAIT":        "60s",
	"WS_PING_INTERVAL":    "54s",
	"WS_AUTH_TIMEOUT":     "10s",
}

// LoadConfig loads the configuration from a .env file and environment variables.
// The result is also stored in AppConfig.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.WebSocket.AllowedOrigins = splitList(cfg.WebSocket.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = &cfg
	return &cfg, nil
}

// Validate reports the first configuration value the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case len(c.JWTSecret) < 16:
		return errors.New("JWT_SECRET must be at least 16 bytes")
	case c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres":
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	case c.DatabaseURL == "":
		return errors.New("DATABASE_URL is required")
	case c.HistoryLimit <= 0:
		return errors.New("HISTORY_LIMIT must be positive")
	case c.MaxContentLength <= 0:
		return errors.New("MAX_CONTENT_LENGTH must be positive")
	case c.WebSocket.SendQueueSize <= 0:
		return errors.New("WS_SEND_QUEUE_SIZE must be positive")
	case c.WebSocket.PingInterval >= c.WebSocket.PongWait:
		return errors.New("WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	}
	return nil
}

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// viper hands a comma separated env var over as a single element.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
