// Package container provides dependency injection and lifecycle management
// for the BharatForce workflow service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database  DatabaseConfig
	Auth      AuthConfig
	Lark      LarkConfig
	OpenAI    OpenAIConfig
	Redis     RedisConfig
	Documents DocumentConfig
	Workers   WorkerConfig
	Server    ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// InMemory selects the in-process store instead of SQLite
	InMemory bool

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LarkConfig holds Lark notification settings. Disabled leaves transitions unannounced.
type LarkConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	BaseURL   string

	// HRChatID is the group chat that receives transition notices
	HRChatID string
}

// OpenAIConfig holds letter drafting settings. Disabled falls back to the built-in template.
type OpenAIConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	BaseURL     string
	PromptsPath string
}

// RedisConfig holds event publishing settings.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	PoolSize int
	Channel  string
}

// DocumentConfig holds settings for generated documents.
type DocumentConfig struct {
	// CompanyName is printed on statements and letters
	CompanyName string

	// StorageDir is the base directory for archived documents
	StorageDir string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// EffectsRetryInterval is how often failed side effects are retried
	EffectsRetryInterval    time.Duration
	EffectsRetryBatchSize   int
	EffectsRetryMaxAttempts int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
// The JWT secret has no default and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/bharatforce.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			Channel:  "bharatforce:events",
		},
		Documents: DocumentConfig{
			CompanyName: "BharatForce",
			StorageDir:  "data/documents",
		},
		Workers: WorkerConfig{
			EffectsRetryInterval:    30 * time.Second,
			EffectsRetryBatchSize:   20,
			EffectsRetryMaxAttempts: 5,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "" || c.Lark.HRChatID == "") {
		return fmt.Errorf("lark.app_id, lark.app_secret and lark.hr_chat_id are required when lark is enabled")
	}

	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required when openai is enabled")
	}

	if c.Redis.Enabled && (c.Redis.Addr == "" || c.Redis.Channel == "") {
		return fmt.Errorf("redis.addr and redis.channel are required when redis is enabled")
	}

	if c.Documents.StorageDir == "" {
		return fmt.Errorf("documents.storage_dir is required")
	}

	return nil
}
