package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Search backends.
const (
	BackendElasticsearch = "elasticsearch"
	BackendBleve         = "bleve"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Search   SearchConfig      `yaml:"search"`
	Insights InsightsConfig    `yaml:"insights"`
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
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return c.Insights.Validate()
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

// SQLiteConfig holds the Record Store database configuration.
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

// SearchConfig selects and configures the full-text engine.
//
// Backend "elasticsearch" talks to a remote cluster at Hosts; "bleve" keeps an
// embedded index at Path (empty Path means in-memory, lost on exit).
type SearchConfig struct {
	Backend     string        `yaml:"backend"`
	Hosts       []string      `yaml:"hosts"`
	Index       string        `yaml:"index"`
	Path        string        `yaml:"path"`
	Timeout     time.Duration `yaml:"timeout"`
	DefaultTopK int           `yaml:"default_top_k"`
	MaxTopK     int           `yaml:"max_top_k"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendElasticsearch, BackendBleve)),
		validation.Field(&c.Hosts,
			validation.When(c.Backend == BackendElasticsearch, validation.Required),
			validation.Each(validation.Required, is.URL),
		),
		validation.Field(&c.Index, validation.When(c.Backend == BackendElasticsearch, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.DefaultTopK, validation.Min(1)),
		validation.Field(&c.MaxTopK, validation.Min(1)),
	); err != nil {
		return err
	}
	if c.DefaultTopK > c.MaxTopK {
		return fmt.Errorf("search: default_top_k %d exceeds max_top_k %d", c.DefaultTopK, c.MaxTopK)
	}
	return nil
}

// InsightsConfig configures the hosted text-generation endpoint. The token is
// checked when the client is built, not here, so commands that never generate
// insights run without one.
type InsightsConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Token         string        `yaml:"token"`
	Temperature   float64       `yaml:"temperature"`
	MaxNewTokens  int           `yaml:"max_new_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute"`
}

// Validate validates the insights configuration.
func (c *InsightsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxNewTokens, validation.Min(1)),
		validation.Field(&c.RatePerMinute, validation.Min(0)),
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
			Path: "./notesight.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Search: SearchConfig{
			Backend:     BackendElasticsearch,
			Hosts:       []string{"http://localhost:9200"},
			Index:       "notes",
			Timeout:     10 * time.Second,
			DefaultTopK: 5,
			MaxTopK:     50,
		},
		Insights: InsightsConfig{
			BaseURL:      "https://api-inference.huggingface.co",
			Model:        "gpt2",
			Temperature:  0.7,
			MaxNewTokens: 250,
			Timeout:      60 * time.Second,
		},
	}
}
