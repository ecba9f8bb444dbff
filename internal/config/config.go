package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig
	GitHub GitHubConfig
	LLM    LLMConfig
	Auth   AuthConfig
	Store  StoreConfig
	Editor EditorConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Host string
}

// GitHubConfig holds the service-account identity repositories are created
// under. Owner is injectable so multi-tenant ownership can be added later
// without touching the pipeline.
type GitHubConfig struct {
	Token   string
	Owner   string
	BaseURL string
}

// LLMConfig holds LLM-related configuration. Models is the fixed fallback
// order tried by the content generator.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Models  []string
}

// AuthConfig holds session-verification configuration
type AuthConfig struct {
	JWTSecret string
}

// StoreConfig holds persistence configuration
type StoreConfig struct {
	Path string
}

// EditorConfig holds conversational-editor configuration. FileMap maps a
// fenced block's language tag to the repository path it is committed to.
type EditorConfig struct {
	FileMap map[string]string
}

var defaultModels = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-8b-instant",
	"mixtral-8x7b-32768",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		GitHub: GitHubConfig{
			Token:   getEnv("GITHUB_TOKEN", ""),
			Owner:   getEnv("GITHUB_OWNER", ""),
			BaseURL: getEnv("GITHUB_BASE_URL", ""),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("LLM_API_KEY", ""),
			BaseURL: getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Models:  getEnvAsList("LLM_MODELS", defaultModels),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Store: StoreConfig{
			Path: getEnv("DB_PATH", "sitesmith.db"),
		},
		Editor: EditorConfig{
			FileMap: getEnvAsMap("EDITOR_FILE_MAP", map[string]string{
				"tsx": "src/App.tsx",
				"jsx": "src/App.tsx",
			}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration fields are set
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	if c.GitHub.Owner == "" {
		return fmt.Errorf("GITHUB_OWNER is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.LLM.Models) == 0 {
		return fmt.Errorf("LLM_MODELS must list at least one model")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList parses a comma-separated environment variable
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsMap parses "key=value,key=value" pairs
func getEnvAsMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
