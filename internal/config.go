package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Vector store drivers.
const (
	VectorDriverSQLite = "sqlite"
	VectorDriverMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Corpus    CorpusConfig      `yaml:"corpus"`
	Vector    VectorConfig      `yaml:"vector"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Graph     GraphConfig       `yaml:"graph"`
	Promotion PromotionConfig   `yaml:"promotion"`
	Search    SearchConfig      `yaml:"search"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Corpus.Validate(); err != nil {
		return err
	}
	if err := c.Vector.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Promotion.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel string     `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Level parses the configured log level; anything unrecognized falls
// back to info.
func (c *ApplicationConfig) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("", "debug", "info", "warn", "error")),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CorpusConfig names the pieces of the knowledge-store layout on disk.
type CorpusConfig struct {
	Root         string `yaml:"root"`
	SummaryFile  string `yaml:"summary_file"`
	ReferenceDir string `yaml:"reference_dir"`
	LogDir       string `yaml:"log_dir"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.SummaryFile, validation.Required),
		validation.Field(&c.ReferenceDir, validation.Required),
		validation.Field(&c.LogDir, validation.Required),
	)
}

// VectorConfig selects and locates the vector store.
//
// Driver "sqlite" persists embeddings in a file database with the
// sqlite-vec extension; "memory" keeps everything in process and is
// meant for tests and throwaway runs.
type VectorConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the vector store configuration.
func (c *VectorConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(VectorDriverSQLite, VectorDriverMemory)),
	); err != nil {
		return err
	}
	if c.Driver == VectorDriverSQLite && c.Path == "" {
		return fmt.Errorf("vector: driver is %q but path is empty", VectorDriverSQLite)
	}
	return nil
}

// EmbeddingConfig holds connection settings for the embedding model.
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Dimensions, validation.Required, validation.Min(1)),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
	)
}

// GraphConfig locates the persisted relationship graph. An empty path
// disables graph persistence.
type GraphConfig struct {
	Path string `yaml:"path"`
}

// PromotionConfig holds defaults for promotion and cleanup passes.
type PromotionConfig struct {
	DaysBack       int     `yaml:"days_back"`
	MinConfidence  float64 `yaml:"min_confidence"`
	DaysToKeep     int     `yaml:"days_to_keep"`
	MinChunkLength int     `yaml:"min_chunk_length"`
}

// Validate validates the promotion configuration.
func (c *PromotionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DaysBack, validation.Required, validation.Min(1)),
		validation.Field(&c.MinConfidence, validation.Min(0.0)),
		validation.Field(&c.DaysToKeep, validation.Min(0)),
		validation.Field(&c.MinChunkLength, validation.Min(1)),
	)
}

// SearchConfig holds semantic search defaults.
type SearchConfig struct {
	K int `yaml:"k"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.K, validation.Required, validation.Min(1)),
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
// The defaults mirror the conventional single-user setup: Ollama on
// localhost with nomic-embed-text, a sqlite vector store next to the
// corpus, and moderate promotion thresholds.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: "info",
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 8080,
			},
		},
		Corpus: CorpusConfig{
			Root:         "./corpus",
			SummaryFile:  "MEMORY.md",
			ReferenceDir: "reference",
			LogDir:       "memory",
		},
		Vector: VectorConfig{
			Driver: VectorDriverSQLite,
			Path:   "./mimir.db",
		},
		Embedding: EmbeddingConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "nomic-embed-text",
			Dimensions:     768,
			TimeoutSeconds: 120,
		},
		Graph: GraphConfig{
			Path: "./memory_graph.json",
		},
		Promotion: PromotionConfig{
			DaysBack:       3,
			MinConfidence:  0.7,
			DaysToKeep:     30,
			MinChunkLength: 50,
		},
		Search: SearchConfig{
			K: 3,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
