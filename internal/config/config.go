package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Feedlens server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Credentials CredentialsConfig
	AI          AIConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	RateLimitPerMinute int
	CORSOrigins        []string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	URL string
}

// CredentialsConfig holds the key used to seal provider API keys at rest.
type CredentialsConfig struct {
	Secret [32]byte
}

// AIConfig seeds the persisted AI settings on first start. After that the
// settings row in the database is authoritative.
type AIConfig struct {
	Provider  string
	MaxRounds int
	MaxTokens int
	Ollama    OllamaConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

type OllamaConfig struct {
	BaseURL       string
	Model         string
	MaxTokens     int
	ContextLength int
	Timeout       time.Duration
}

type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type AnthropicConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

const (
	DefaultOllamaTimeout = 120 * time.Second
	DefaultHostedTimeout = 60 * time.Second
	DefaultMaxRounds     = 3
	DefaultMaxTokens     = 2048
)

var validProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	maxTokens := envInt("AI_MAX_TOKENS", DefaultMaxTokens)
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("FEEDLENS_PORT", 8080),
			Env:                envString("FEEDLENS_ENV", "development"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
			CORSOrigins:        envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  envString("DATABASE_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:  envString("AI_PROVIDER", "ollama"),
			MaxRounds: envInt("AI_MAX_ROUNDS", DefaultMaxRounds),
			MaxTokens: maxTokens,
			Ollama: OllamaConfig{
				BaseURL:       envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:         envString("OLLAMA_MODEL", "llama3"),
				MaxTokens:     maxTokens,
				ContextLength: envInt("OLLAMA_CONTEXT_LENGTH", 8192),
				Timeout:       envDurationSecs("OLLAMA_TIMEOUT_SECS", DefaultOllamaTimeout),
			},
			OpenAI: OpenAIConfig{
				BaseURL:   envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:    os.Getenv("OPENAI_API_KEY"),
				Model:     envString("OPENAI_MODEL", "gpt-4o"),
				MaxTokens: maxTokens,
				Timeout:   DefaultHostedTimeout,
			},
			Anthropic: AnthropicConfig{
				BaseURL:   envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
				Model:     envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				MaxTokens: maxTokens,
				Timeout:   DefaultHostedTimeout,
			},
		},
	}

	secret, err := parseSecret(os.Getenv("CREDENTIALS_SECRET"))
	if err != nil {
		return nil, err
	}
	cfg.Credentials.Secret = secret

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, openai, anthropic; got %q", c.AI.Provider)
	}
	if !strings.HasPrefix(c.AI.Ollama.BaseURL, "http://") && !strings.HasPrefix(c.AI.Ollama.BaseURL, "https://") {
		return fmt.Errorf("OLLAMA_BASE_URL must start with http:// or https://, got %q", c.AI.Ollama.BaseURL)
	}
	if c.AI.MaxRounds < 1 {
		return fmt.Errorf("AI_MAX_ROUNDS must be at least 1, got %d", c.AI.MaxRounds)
	}
	if c.AI.MaxTokens < 1 {
		return fmt.Errorf("AI_MAX_TOKENS must be at least 1, got %d", c.AI.MaxTokens)
	}

	return nil
}

// parseSecret decodes a hex-encoded 32-byte key.
func parseSecret(v string) ([32]byte, error) {
	var key [32]byte
	if v == "" {
		return key, fmt.Errorf("CREDENTIALS_SECRET is required")
	}
	raw, err := hex.DecodeString(v)
	if err != nil || len(raw) != len(key) {
		return key, fmt.Errorf("CREDENTIALS_SECRET must be 64 hex characters")
	}
	copy(key[:], raw)
	return key, nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
