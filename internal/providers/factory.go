package providers

import (
	"fmt"

	"github.com/crystaldolphin/chatkeeper/internal/schema"
)

// Params are the raw values needed to construct a schema.LLMProvider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
	DefaultModel string
	ProviderName string // registry name, e.g. "groq", "openrouter"
}

// New creates the schema.LLMProvider for the given params. Every registered
// provider speaks the OpenAI chat-completions dialect.
func New(p Params) schema.LLMProvider {
	return NewOpenAIProvider(p.APIKey, p.APIBase, p.DefaultModel, p.ProviderName, p.ExtraHeaders)
}

// Generator modes accepted by NewGenerator.
const (
	ModeJSON     = "json"
	ModeFunction = "function"
)

// NewGenerator selects the structured-generation backend for mode.
func NewGenerator(mode string, provider schema.LLMProvider) (schema.StructuredGenerator, error) {
	switch mode {
	case ModeJSON, "":
		return NewJSONModeGenerator(provider), nil
	case ModeFunction:
		return NewFunctionCallGenerator(provider), nil
	}
	return nil, fmt.Errorf("unknown structured generation mode %q", mode)
}
