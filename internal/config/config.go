package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Board  BoardConfig
	Log    LogConfig
}

// ServerConfig holds board server connection settings.
type ServerConfig struct {
	URL            string
	RequestTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

// AuthConfig holds the bearer token for API and websocket calls.
type AuthConfig struct {
	Token string //nolint:gosec // G117: bearer token config
}

// BoardConfig names the board this session synchronizes against.
type BoardConfig struct {
	ID string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment variables
// win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: .env: %w", err)
	}

	requestTimeout, err := getEnvDuration("BOARDSYNC_REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	reconnectMin, err := getEnvDuration("BOARDSYNC_RECONNECT_MIN", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	reconnectMax, err := getEnvDuration("BOARDSYNC_RECONNECT_MAX", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			URL:            getEnv("BOARDSYNC_SERVER_URL", "http://localhost:8080"),
			RequestTimeout: requestTimeout,
			ReconnectMin:   reconnectMin,
			ReconnectMax:   reconnectMax,
		},
		Auth: AuthConfig{
			Token: getEnv("BOARDSYNC_TOKEN", ""),
		},
		Board: BoardConfig{
			ID: getEnv("BOARDSYNC_BOARD_ID", ""),
		},
		Log: LogConfig{
			Level:  getEnv("BOARDSYNC_LOG_LEVEL", "info"),
			Format: getEnv("BOARDSYNC_LOG_FORMAT", "auto"),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Auth.Token == "" {
		return errors.New("BOARDSYNC_TOKEN is required")
	}
	if c.Board.ID == "" {
		return errors.New("BOARDSYNC_BOARD_ID is required")
	}

	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BOARDSYNC_SERVER_URL must be an absolute URL, got %q", c.Server.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BOARDSYNC_SERVER_URL scheme must be http or https, got %q", u.Scheme)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_REQUEST_TIMEOUT must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Server.ReconnectMin <= 0 {
		return fmt.Errorf("BOARDSYNC_RECONNECT_MIN must be positive, got %s", c.Server.ReconnectMin)
	}
	if c.Server.ReconnectMax < c.Server.ReconnectMin {
		return fmt.Errorf("BOARDSYNC_RECONNECT_MAX must be >= BOARDSYNC_RECONNECT_MIN, got %s", c.Server.ReconnectMax)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}
