// Package config defines the configuration schema for chatkeeper.
//
// JSON keys use camelCase, as in ~/.chatkeeper/config.json.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// ProvidersConfig holds credentials for all supported LLM providers.
type ProvidersConfig struct {
	Custom     ProviderConfig `json:"custom"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	Groq       ProviderConfig `json:"groq"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	VLLM       ProviderConfig `json:"vllm"`
}

// ModelConfig selects the chat model.
type ModelConfig struct {
	Name        string  `json:"name"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

func defaultModelConfig() ModelConfig {
	return ModelConfig{
		Name:        "groq/llama-3.1-8b-instant",
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

// ConversationConfig bounds histories and controls archiving.
type ConversationConfig struct {
	MaxTurns           int     `json:"maxTurns"`
	MaxChars           int     `json:"maxChars"`
	SummarizeEvery     int     `json:"summarizeEvery"`
	SummaryTemperature float64 `json:"summaryTemperature"`
	SummaryMaxTokens   int     `json:"summaryMaxTokens"`
	IdleTimeoutSeconds int     `json:"idleTimeoutSeconds"`
	SweepSchedule      string  `json:"sweepSchedule"`
	ArchiveDir         string  `json:"archiveDir"`
	DatabaseURL        string  `json:"databaseUrl,omitempty"`
}

func defaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		MaxTurns:           20,
		MaxChars:           4000,
		SummarizeEvery:     5,
		SummaryTemperature: 0.3,
		SummaryMaxTokens:   200,
		IdleTimeoutSeconds: 1800,
		SweepSchedule:      "@every 1m",
		ArchiveDir:         "~/.chatkeeper/archive",
	}
}

// IdleTimeout returns IdleTimeoutSeconds as a duration.
func (c ConversationConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// ExtractionConfig tunes the extraction pipeline.
type ExtractionConfig struct {
	Mode              string  `json:"mode"` // "json" or "function"
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"maxTokens"`
	Concurrency       int     `json:"concurrency"`
	TimeoutSeconds    int     `json:"timeoutSeconds"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	SchemaPath        string  `json:"schemaPath,omitempty"`
}

func defaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		Mode:           "json",
		Temperature:    0.1,
		MaxTokens:      512,
		Concurrency:    4,
		TimeoutSeconds: 30,
	}
}

// Timeout returns TimeoutSeconds as a duration.
func (c ExtractionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{Host: "127.0.0.1", Port: 18790}
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.chatkeeper/config.json.
type Config struct {
	Providers    ProvidersConfig    `json:"providers"`
	Model        ModelConfig        `json:"model"`
	Conversation ConversationConfig `json:"conversation"`
	Extraction   ExtractionConfig   `json:"extraction"`
	Server       ServerConfig       `json:"server"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Providers:    ProvidersConfig{},
		Model:        defaultModelConfig(),
		Conversation: defaultConversationConfig(),
		Extraction:   defaultExtractionConfig(),
		Server:       defaultServerConfig(),
	}
}

// Validate reports every setting that would make a component misbehave.
// Summaries and extraction sample at low temperatures only.
const (
	MinTaskTemperature = 0.1
	MaxTaskTemperature = 0.3
)

func (c *Config) Validate() error {
	var errs []error
	if c.Conversation.SummarizeEvery < 0 {
		errs = append(errs, errors.New("conversation.summarizeEvery must not be negative"))
	}
	if c.Conversation.SummarizeEvery == 1 {
		errs = append(errs, errors.New("conversation.summarizeEvery must be at least 2"))
	}
	if c.Conversation.IdleTimeoutSeconds < 0 {
		errs = append(errs, errors.New("conversation.idleTimeoutSeconds must not be negative"))
	}
	if t := c.Conversation.SummaryTemperature; t < MinTaskTemperature || t > MaxTaskTemperature {
		errs = append(errs, fmt.Errorf("conversation.summaryTemperature %v must be within %v-%v", t, MinTaskTemperature, MaxTaskTemperature))
	}
	if t := c.Extraction.Temperature; t < MinTaskTemperature || t > MaxTaskTemperature {
		errs = append(errs, fmt.Errorf("extraction.temperature %v must be within %v-%v", t, MinTaskTemperature, MaxTaskTemperature))
	}
	if c.Extraction.Mode != "json" && c.Extraction.Mode != "function" {
		errs = append(errs, fmt.Errorf("extraction.mode %q must be \"json\" or \"function\"", c.Extraction.Mode))
	}
	if c.Extraction.Concurrency <= 0 {
		errs = append(errs, errors.New("extraction.concurrency must be positive"))
	}
	if c.Extraction.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("extraction.timeoutSeconds must be positive"))
	}
	if c.Extraction.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("extraction.requestsPerSecond must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	return errors.Join(errs...)
}

// ArchivePath returns the expanded archive directory.
func (c *Config) ArchivePath() string {
	dir := c.Conversation.ArchiveDir
	if dir == "" {
		dir = filepath.Join(DataDir(), "archive")
	}
	return expandHome(dir)
}

// SchemaFile returns the expanded extraction schema path, or "" for the
// built-in schema.
func (c *Config) SchemaFile() string {
	return expandHome(c.Extraction.SchemaPath)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// ProviderByName returns a pointer to the ProviderConfig field matching the
// given registry name (e.g. "openrouter", "groq"). Returns nil if unknown.
func (c *Config) ProviderByName(name string) *ProviderConfig {
	switch name {
	case "custom":
		return &c.Providers.Custom
	case "openai":
		return &c.Providers.OpenAI
	case "openrouter":
		return &c.Providers.OpenRouter
	case "groq":
		return &c.Providers.Groq
	case "deepseek":
		return &c.Providers.DeepSeek
	case "vllm":
		return &c.Providers.VLLM
	}
	return nil
}
