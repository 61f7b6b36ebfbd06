package providers

import "strings"

// ProviderSpec is the metadata record for one OpenAI-compatible endpoint.
type ProviderSpec struct {
	Name        string   // config field name, e.g. "groq"
	Keywords    []string // model-name keywords for matching (lowercase)
	DisplayName string   // shown in `chatkeeper status`

	// Gateway / local detection
	IsGateway           bool   // routes any model (OpenRouter)
	IsLocal             bool   // local deployment (vLLM)
	DetectByKeyPrefix   string // match api_key prefix to identify gateway
	DetectByBaseKeyword string // match substring in api_base URL
	DefaultAPIBase      string // fallback base URL when none is configured

	// SupportsJSONMode reports whether response_format json_object is honoured.
	SupportsJSONMode bool
}

// Label returns the display name, defaulting to Title-cased Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToTitle(s.Name[:1]) + s.Name[1:]
}

// PROVIDERS is the registry. Order = match priority.
var PROVIDERS = []ProviderSpec{
	{
		Name:             "custom",
		DisplayName:      "Custom",
		SupportsJSONMode: true,
	},
	{
		Name:                "openrouter",
		Keywords:            []string{"openrouter"},
		DisplayName:         "OpenRouter",
		IsGateway:           true,
		DetectByKeyPrefix:   "sk-or-",
		DetectByBaseKeyword: "openrouter",
		DefaultAPIBase:      "https://openrouter.ai/api/v1",
		SupportsJSONMode:    true,
	},
	{
		Name:                "groq",
		Keywords:            []string{"groq", "llama", "mixtral", "gemma"},
		DisplayName:         "Groq",
		DetectByKeyPrefix:   "gsk_",
		DetectByBaseKeyword: "groq.com",
		DefaultAPIBase:      "https://api.groq.com/openai/v1",
		SupportsJSONMode:    true,
	},
	{
		Name:             "openai",
		Keywords:         []string{"openai", "gpt"},
		DisplayName:      "OpenAI",
		DefaultAPIBase:   "https://api.openai.com/v1",
		SupportsJSONMode: true,
	},
	{
		Name:             "deepseek",
		Keywords:         []string{"deepseek"},
		DisplayName:      "DeepSeek",
		DefaultAPIBase:   "https://api.deepseek.com/v1",
		SupportsJSONMode: true,
	},
	{
		Name:        "vllm",
		Keywords:    []string{"vllm"},
		DisplayName: "vLLM/Local",
		IsLocal:     true,
	},
}

// FindByModel matches a standard provider by explicit "provider/" prefix or
// model-name keyword (case-insensitive). Gateways and local providers are
// skipped; those are matched by api_key/api_base.
func FindByModel(model string) *ProviderSpec {
	modelLower := strings.ToLower(model)
	modelNorm := strings.ReplaceAll(modelLower, "-", "_")
	modelPrefix, _, _ := strings.Cut(modelLower, "/")
	normalizedPrefix := strings.ReplaceAll(modelPrefix, "-", "_")

	var std []int
	for i := range PROVIDERS {
		if !PROVIDERS[i].IsGateway && !PROVIDERS[i].IsLocal {
			std = append(std, i)
		}
	}

	for _, i := range std {
		spec := &PROVIDERS[i]
		if strings.Contains(modelLower, "/") && normalizedPrefix == spec.Name {
			return spec
		}
	}

	for _, i := range std {
		spec := &PROVIDERS[i]
		for _, kw := range spec.Keywords {
			kw = strings.ToLower(kw)
			kwNorm := strings.ReplaceAll(kw, "-", "_")
			if strings.Contains(modelLower, kw) || strings.Contains(modelNorm, kwNorm) {
				return spec
			}
		}
	}
	return nil
}

// FindGateway detects the gateway or local provider.
// Priority: (1) explicit provider name, (2) api_key prefix, (3) api_base keyword.
func FindGateway(providerName, apiKey, apiBase string) *ProviderSpec {
	if providerName != "" {
		if s := FindByName(providerName); s != nil && (s.IsGateway || s.IsLocal) {
			return s
		}
	}
	for i := range PROVIDERS {
		spec := &PROVIDERS[i]
		if !spec.IsGateway {
			continue
		}
		if spec.DetectByKeyPrefix != "" && strings.HasPrefix(apiKey, spec.DetectByKeyPrefix) {
			return spec
		}
		if spec.DetectByBaseKeyword != "" && strings.Contains(apiBase, spec.DetectByBaseKeyword) {
			return spec
		}
	}
	return nil
}

// FindByName returns the ProviderSpec whose Name equals name.
func FindByName(name string) *ProviderSpec {
	for i := range PROVIDERS {
		if PROVIDERS[i].Name == name {
			return &PROVIDERS[i]
		}
	}
	return nil
}
