// Package dependency wires core chatkeeper services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"github.com/crystaldolphin/chatkeeper/internal/archive"
	"github.com/crystaldolphin/chatkeeper/internal/config"
	"github.com/crystaldolphin/chatkeeper/internal/conversation"
	"github.com/crystaldolphin/chatkeeper/internal/extraction"
	"github.com/crystaldolphin/chatkeeper/internal/observability"
	"github.com/crystaldolphin/chatkeeper/internal/providers"
	"github.com/crystaldolphin/chatkeeper/internal/schema"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg      *config.Config
	provider schema.LLMProvider
	model    LLMModel
	metrics  *observability.Metrics
	convs    *conversation.Manager
	store    archive.Store
	pipeline *extraction.Pipeline
}

func (c *Container) Config() *config.Config               { return c.cfg }
func (c *Container) Provider() schema.LLMProvider         { return c.provider }
func (c *Container) Model() string                        { return string(c.model) }
func (c *Container) Metrics() *observability.Metrics      { return c.metrics }
func (c *Container) Conversations() *conversation.Manager { return c.convs }
func (c *Container) Archive() archive.Store               { return c.store }
func (c *Container) Pipeline() *extraction.Pipeline       { return c.pipeline }
func (c *Container) Schema() *extraction.Schema           { return c.pipeline.Schema() }

// Close stops the idle sweeper, archives the conversations still live and
// releases the archive.
func (c *Container) Close() error {
	c.convs.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if n := c.convs.EndAll(ctx); n > 0 {
		slog.Info("archived live conversations", "count", n)
	}
	return c.store.Close()
}

const shutdownTimeout = 10 * time.Second

// LLMModel is a named string type so dig can distinguish it from plain
// strings when injecting the effective model name.
type LLMModel string

// New builds and wires all core services from cfg.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}
	if err := d.Provide(newProvider); err != nil {
		return nil, err
	}
	if err := d.Provide(resolveLLMModel); err != nil {
		return nil, err
	}
	if err := d.Provide(newMetrics); err != nil {
		return nil, err
	}
	if err := d.Provide(newGenerator); err != nil {
		return nil, err
	}
	if err := d.Provide(newSummarizer); err != nil {
		return nil, err
	}
	if err := d.Provide(newArchiveStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newConversationManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newExtractionSchema); err != nil {
		return nil, err
	}
	if err := d.Provide(newPipeline); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		model LLMModel,
		metrics *observability.Metrics,
		convs *conversation.Manager,
		store archive.Store,
		pipeline *extraction.Pipeline,
	) {
		result = &Container{
			cfg:      cfg,
			provider: provider,
			model:    model,
			metrics:  metrics,
			convs:    convs,
			store:    store,
			pipeline: pipeline,
		}
	})
	return result, err
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	params := cfg.ProviderParams("")
	if params.ProviderName == "" {
		return nil, fmt.Errorf("no API key configured for model %q, edit %s", cfg.Model.Name, config.ConfigPath())
	}
	if params.APIBase == "" {
		params.APIBase = cfg.GetAPIBase(params.DefaultModel)
	}
	return providers.New(params), nil
}

func resolveLLMModel(cfg *config.Config, p schema.LLMProvider) LLMModel {
	m := cfg.Model.Name
	if m == "" {
		m = p.DefaultModel()
	}

	return LLMModel(m)
}

func newMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func newGenerator(cfg *config.Config, p schema.LLMProvider) (schema.StructuredGenerator, error) {
	return providers.NewGenerator(cfg.Extraction.Mode, p)
}

func newSummarizer(cfg *config.Config, gen schema.StructuredGenerator, m LLMModel) conversation.Summarizer {
	return conversation.NewLLMSummarizer(gen, string(m),
		cfg.Conversation.SummaryTemperature, cfg.Conversation.SummaryMaxTokens)
}

func newArchiveStore(ctx context.Context, cfg *config.Config) (archive.Store, error) {
	return archive.NewStore(ctx, cfg.ArchivePath(), cfg.Conversation.DatabaseURL)
}

func newConversationManager(
	cfg *config.Config,
	sum conversation.Summarizer,
	store archive.Store,
	metrics *observability.Metrics,
) *conversation.Manager {
	opts := conversation.Options{
		MaxTurns:       cfg.Conversation.MaxTurns,
		MaxChars:       cfg.Conversation.MaxChars,
		SummarizeEvery: cfg.Conversation.SummarizeEvery,
	}
	return conversation.NewManager(opts, sum, store, cfg.Conversation.IdleTimeout(), metrics)
}

func newExtractionSchema(cfg *config.Config) (*extraction.Schema, error) {
	return extraction.LoadSchema(cfg.SchemaFile())
}

func newPipeline(
	cfg *config.Config,
	gen schema.StructuredGenerator,
	s *extraction.Schema,
	m LLMModel,
	metrics *observability.Metrics,
) (*extraction.Pipeline, error) {
	return extraction.NewPipeline(gen, s, extraction.Options{
		Model:             string(m),
		Temperature:       cfg.Extraction.Temperature,
		MaxTokens:         cfg.Extraction.MaxTokens,
		Concurrency:       cfg.Extraction.Concurrency,
		Timeout:           cfg.Extraction.Timeout(),
		RequestsPerSecond: cfg.Extraction.RequestsPerSecond,
	}, metrics)
}
