package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("TAMBO_SERVER__PORT")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TAMBO_SERVER__PORT", "9000")
	t.Setenv("TAMBO_LLM__MODEL", "gpt-5-mini")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %v, want 9000", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gpt-5-mini" {
		t.Errorf("model = %q, want gpt-5-mini", cfg.LLM.Model)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tambo.yaml")
	body := `
server:
  port: 7070
storage:
  type: sqlite
  sqlite:
    path: /tmp/threads.db
llm:
  api_key: ${TAMBO_TEST_KEY}
  model: gpt-4o
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TAMBO_TEST_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %v, want 7070", cfg.Server.Port)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/threads.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q, want substituted value", cfg.LLM.APIKey)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple substitution", "${TEST_VAR}", "test-value"},
		{"substitution in string", "prefix-${TEST_VAR}-suffix", "prefix-test-value-suffix"},
		{"no substitution", "plain-string", "plain-string"},
		{"undefined var", "${UNDEFINED_VAR}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
