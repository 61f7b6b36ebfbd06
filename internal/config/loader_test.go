package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Model.Name != def.Model.Name {
		t.Errorf("expected default model %q, got %q", def.Model.Name, cfg.Model.Name)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"model": map[string]any{
			"name":      "openai/gpt-4o-mini",
			"maxTokens": 4096,
		},
		"conversation": map[string]any{
			"maxTurns": 8,
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.Name != "openai/gpt-4o-mini" {
		t.Errorf("expected model %q, got %q", "openai/gpt-4o-mini", cfg.Model.Name)
	}
	if cfg.Model.MaxTokens != 4096 {
		t.Errorf("expected maxTokens 4096, got %d", cfg.Model.MaxTokens)
	}
	if cfg.Conversation.MaxTurns != 8 {
		t.Errorf("expected maxTurns 8, got %d", cfg.Conversation.MaxTurns)
	}
	// Unset keys keep their defaults.
	if cfg.Conversation.MaxChars != 4000 || cfg.Conversation.SummarizeEvery != 5 {
		t.Errorf("expected default bounds, got %+v", cfg.Conversation)
	}
	if cfg.Extraction.Temperature != 0.1 {
		t.Errorf("expected extraction temperature 0.1, got %v", cfg.Extraction.Temperature)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for invalid JSON (falls back to default), got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Model.Name != def.Model.Name {
		t.Errorf("expected default model %q, got %q", def.Model.Name, cfg.Model.Name)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	saved := DefaultConfig()
	saved.Model.Name = "deepseek/deepseek-chat"
	saved.Providers.DeepSeek.APIKey = "sk-test"
	saved.Extraction.Mode = "function"

	if err := Save(&saved, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Model.Name != saved.Model.Name {
		t.Errorf("model mismatch: got %q, want %q", loaded.Model.Name, saved.Model.Name)
	}
	if loaded.Providers.DeepSeek.APIKey != "sk-test" {
		t.Errorf("apiKey mismatch: got %q", loaded.Providers.DeepSeek.APIKey)
	}
	if loaded.Extraction.Mode != "function" {
		t.Errorf("mode mismatch: got %q", loaded.Extraction.Mode)
	}
}

func TestSave_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected permissions 0600, got %04o", perm)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid, got: %v", err)
	}

	cfg.Extraction.Mode = "xml"
	cfg.Extraction.Concurrency = 0
	cfg.Conversation.SummarizeEvery = 1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"extraction.mode", "extraction.concurrency", "summarizeEvery"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_TaskTemperatures(t *testing.T) {
	tests := []struct {
		name             string
		summary, extract float64
		want             string
	}{
		{"defaults", 0.3, 0.1, ""},
		{"bounds", 0.1, 0.3, ""},
		{"summary too hot", 0.7, 0.1, "conversation.summaryTemperature"},
		{"extraction too cold", 0.3, 0, "extraction.temperature"},
		{"extraction too hot", 0.3, 1.2, "extraction.temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Conversation.SummaryTemperature = tt.summary
			cfg.Extraction.Temperature = tt.extract
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected valid config, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestArchivePath_ExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	if strings.HasPrefix(cfg.ArchivePath(), "~") {
		t.Errorf("expected expanded path, got %q", cfg.ArchivePath())
	}
	cfg.Conversation.ArchiveDir = "/var/lib/chatkeeper"
	if cfg.ArchivePath() != "/var/lib/chatkeeper" {
		t.Errorf("expected absolute path unchanged, got %q", cfg.ArchivePath())
	}
}
