package config

import "testing"

func TestMatchProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Groq.APIKey = "gsk_test"
	cfg.Providers.OpenAI.APIKey = "sk-openai"
	cfg.Providers.VLLM.APIBase = "http://localhost:8000/v1"

	cases := []struct {
		model string
		want  string
	}{
		{"openai/gpt-4o-mini", "openai"},
		{"llama-3.1-8b-instant", "groq"},
		{"gpt-4o", "openai"},
		{"deepseek/deepseek-chat", "groq"}, // deepseek has no key, falls back
		{"vllm/qwen2", "vllm"},
		{"", "groq"}, // model.name default is a groq model
	}
	for _, tc := range cases {
		if got := cfg.MatchProvider(tc.model).Name; got != tc.want {
			t.Errorf("MatchProvider(%q) = %q, want %q", tc.model, got, tc.want)
		}
	}
}

func TestMatchProvider_NothingConfigured(t *testing.T) {
	cfg := DefaultConfig()
	if m := cfg.MatchProvider("gpt-4o"); m.Provider != nil || m.Name != "" {
		t.Errorf("expected no match, got %+v", m)
	}
	if cfg.GetAPIKey("gpt-4o") != "" {
		t.Error("expected empty API key")
	}
}

func TestProviderParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "sk-or-123"
	cfg.Providers.OpenRouter.ExtraHeaders = map[string]string{"X-Title": "chatkeeper"}

	p := cfg.ProviderParams("openrouter/anthropic/claude-3-haiku")
	if p.ProviderName != "openrouter" || p.APIKey != "sk-or-123" {
		t.Errorf("unexpected params %+v", p)
	}
	if p.ExtraHeaders["X-Title"] != "chatkeeper" {
		t.Error("extra headers not carried")
	}
	if got := cfg.GetAPIBase("openrouter/x"); got != "https://openrouter.ai/api/v1" {
		t.Errorf("expected openrouter default base, got %q", got)
	}
}
