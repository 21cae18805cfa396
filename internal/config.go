package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/inflight"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Reorder slot backends.
const (
	ReorderBackendLocal = "local"
	ReorderBackendRedis = "redis"
)

var redisURLRe = regexp.MustCompile(`^(redis|rediss|unix)://`)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Reorder ReorderConfig     `yaml:"reorder"`
	MCP     MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Reorder.Validate(); err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	return c.MCP.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ReorderConfig controls how concurrent reorders of one workspace are serialized.
//
// Backend "local" keeps the in-flight slot in process memory. Backend "redis"
// shares it through RedisURL so several server processes can run against the
// same database. Policy decides what a request that finds the slot taken does:
// "reject" fails immediately, "wait" retries for up to WaitTimeout.
type ReorderConfig struct {
	Backend     string        `yaml:"backend"`
	RedisURL    string        `yaml:"redis_url"`
	TTL         time.Duration `yaml:"ttl"`
	Policy      string        `yaml:"policy"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// Validate validates the reorder configuration.
func (c *ReorderConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = ReorderBackendLocal
	}
	if c.Policy == "" {
		c.Policy = inflight.PolicyReject
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(ReorderBackendLocal, ReorderBackendRedis)),
		validation.Field(&c.RedisURL,
			validation.When(c.Backend == ReorderBackendRedis, validation.Required, validation.Match(redisURLRe))),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Policy, validation.In(inflight.PolicyReject, inflight.PolicyWait)),
		validation.Field(&c.WaitTimeout,
			validation.When(c.Policy == inflight.PolicyWait, validation.Required, validation.Max(c.TTL))),
	)
}

// MCPConfig holds settings for the stdio MCP server.
type MCPConfig struct {
	Workspace string `yaml:"workspace"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workspace, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./dagaz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Reorder: ReorderConfig{
			Backend:     ReorderBackendLocal,
			TTL:         30 * time.Second,
			Policy:      inflight.PolicyReject,
			WaitTimeout: 2 * time.Second,
		},
		MCP: MCPConfig{
			Workspace: "default",
		},
	}
}
