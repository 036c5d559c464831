/*
Package configs is responsible for loading and validating the application's configuration settings.

Settings come from operating system environment variables, optionally seeded from a
.env file in the working directory, and cover the running environment, HTTP listener,
security, and the chat coordinator's tuning knobs.
*/
package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"chatcoord/internal/pkg/randx"
)

// EnvDevelopment is the default environment, relaxing origin checks and secrets.
const EnvDevelopment = "development"

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        int    `envconfig:"PORT" default:"8080"`

	// Security Settings
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	JWTSecret      string   `envconfig:"JWT_SECRET"`
	AdminUsername  string   `envconfig:"ADMIN_USERNAME" default:"admin"`
	BcryptCost     int      `envconfig:"BCRYPT_COST" default:"10"`

	// Websocket upgrade rate limit per IP
	WSRate  float64 `envconfig:"WS_RATE" default:"0.2"`
	WSBurst int     `envconfig:"WS_BURST" default:"5"`

	// Chat Settings
	RecallWindow    time.Duration `envconfig:"RECALL_WINDOW" default:"2m"`
	HistoryPageSize int           `envconfig:"HISTORY_PAGE_SIZE" default:"20"`
	MaxContentBytes int           `envconfig:"MAX_CONTENT_BYTES" default:"5000"`
	SendBufferSize  int           `envconfig:"SEND_BUFFER_SIZE" default:"256"`

	// Fan-out worker pool
	WorkerCount     int `envconfig:"WORKER_COUNT" default:"10"`
	WorkerQueueSize int `envconfig:"WORKER_QUEUE_SIZE" default:"200"`
}

// IsDevelopment reports whether the application runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// LoadConfig reads a .env file when present, then parses and validates the environment.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize trims list values, fills development defaults and validates ranges.
// An unset JWT_SECRET in development gets a random secret, never a fixed one.
func (c *AppConfig) normalize() error {
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", c.Port, 1024, 65535)
	}

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", c.Environment)
		}
		// Tokens signed with a per-process secret do not survive a restart.
		secret, err := randx.Secret()
		if err != nil {
			return fmt.Errorf("failed to generate a development JWT secret: %w", err)
		}
		c.JWTSecret = secret
	}

	if c.RecallWindow <= 0 {
		return fmt.Errorf("RECALL_WINDOW must be positive, got %s", c.RecallWindow)
	}
	if c.HistoryPageSize < 1 {
		return fmt.Errorf("HISTORY_PAGE_SIZE must be at least 1, got %d", c.HistoryPageSize)
	}
	if c.MaxContentBytes < 1 {
		return fmt.Errorf("MAX_CONTENT_BYTES must be at least 1, got %d", c.MaxContentBytes)
	}
	if c.SendBufferSize < 1 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be at least 1, got %d", c.SendBufferSize)
	}
	if c.WorkerCount < 1 || c.WorkerQueueSize < 0 {
		return fmt.Errorf("invalid worker pool sizing: %d workers, queue %d", c.WorkerCount, c.WorkerQueueSize)
	}
	if c.WSRate <= 0 || c.WSBurst < 1 {
		return fmt.Errorf("invalid websocket rate limit: rate %v, burst %d", c.WSRate, c.WSBurst)
	}

	return nil
}
