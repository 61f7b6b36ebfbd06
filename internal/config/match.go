package config

import (
	"strings"

	"github.com/crystaldolphin/chatkeeper/internal/providers"
)

// MatchResult is the resolved LLM provider config and registry name for a model.
type MatchResult struct {
	Provider *ProviderConfig
	Name     string // e.g. "openrouter", "groq"
}

// MatchProvider resolves which provider config and registry entry to use for model.
// If model is empty, model.name is used.
//
// Priority order:
//  1. Explicit provider prefix in model string (e.g. "deepseek/deepseek-chat" → deepseek)
//  2. Keyword match in model name (registry order)
//  3. Fallback: first provider with an API key, or a local one with an apiBase
func (c *Config) MatchProvider(model string) MatchResult {
	if model == "" {
		model = c.Model.Name
	}
	modelLower := strings.ToLower(model)
	modelNorm := strings.ReplaceAll(modelLower, "-", "_")
	modelPrefix, _, _ := strings.Cut(modelLower, "/")
	normalizedPrefix := strings.ReplaceAll(modelPrefix, "-", "_")

	kwMatches := func(kw string) bool {
		kw = strings.ToLower(kw)
		kwNorm := strings.ReplaceAll(kw, "-", "_")
		return strings.Contains(modelLower, kw) || strings.Contains(modelNorm, kwNorm)
	}
	usable := func(spec providers.ProviderSpec, p *ProviderConfig) bool {
		return p.APIKey != "" || (spec.IsLocal && p.APIBase != "")
	}

	// 1. Explicit provider prefix wins.
	for _, spec := range providers.PROVIDERS {
		p := c.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		if modelPrefix != "" && normalizedPrefix == spec.Name && usable(spec, p) {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	// 2. Keyword match.
	for _, spec := range providers.PROVIDERS {
		p := c.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		for _, kw := range spec.Keywords {
			if kwMatches(kw) && usable(spec, p) {
				return MatchResult{Provider: p, Name: spec.Name}
			}
		}
	}

	// 3. Fallback: first configured provider.
	for _, spec := range providers.PROVIDERS {
		p := c.ProviderByName(spec.Name)
		if p != nil && usable(spec, p) {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	return MatchResult{}
}

// GetAPIBase resolves the effective API base URL for model.
// Precedence: user-configured apiBase > spec default.
func (c *Config) GetAPIBase(model string) string {
	result := c.MatchProvider(model)
	if result.Provider != nil && result.Provider.APIBase != "" {
		return result.Provider.APIBase
	}
	if result.Name != "" {
		if spec := providers.FindByName(result.Name); spec != nil {
			return spec.DefaultAPIBase
		}
	}
	return ""
}

// GetAPIKey returns the API key for model (or "").
func (c *Config) GetAPIKey(model string) string {
	if p := c.MatchProvider(model).Provider; p != nil {
		return p.APIKey
	}
	return ""
}

// ProviderParams collects everything providers.New needs for model.
func (c *Config) ProviderParams(model string) providers.Params {
	if model == "" {
		model = c.Model.Name
	}
	m := c.MatchProvider(model)
	params := providers.Params{
		DefaultModel: model,
		ProviderName: m.Name,
	}
	if m.Provider != nil {
		params.APIKey = m.Provider.APIKey
		params.APIBase = m.Provider.APIBase
		params.ExtraHeaders = m.Provider.ExtraHeaders
	}
	return params
}
