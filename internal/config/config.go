// Package config loads service configuration from a YAML file and
// TAMBO_-prefixed environment variables, with env vars taking precedence.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file consulted when none is specified.
const DefaultPath = "tambo.yaml"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	LLM     LLMConfig     `koanf:"llm"`
	Loop    LoopConfig    `koanf:"loop"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Type selects the backend: memory or sqlite.
	Type   string       `koanf:"type"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type LLMConfig struct {
	// APIKey supports ${VAR} substitution from the environment.
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
}

type LoopConfig struct {
	// ValidateSchemas enables JSON Schema checks on finalized tool
	// arguments.
	ValidateSchemas bool `koanf:"validate_schemas"`
	// CustomInstructions are appended to the system prompt for every turn.
	CustomInstructions string `koanf:"custom_instructions"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path (or DefaultPath when empty) and the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("TAMBO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TAMBO_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Defaults
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "memory")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "tambo.db")
	}
	if !k.Exists("llm.model") {
		k.Set("llm.model", "gpt-4o")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.LLM.APIKey = substituteEnvVars(cfg.LLM.APIKey)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
