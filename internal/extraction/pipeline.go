package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/crystaldolphin/chatkeeper/internal/observability"
	"github.com/crystaldolphin/chatkeeper/internal/schema"
)

const systemPrompt = "Extract user details from the conversation. " +
	"Use an empty string for text fields that are not mentioned and null for an unknown age."

// Options tune a Pipeline.
type Options struct {
	Model             string
	Temperature       float64
	MaxTokens         int
	Concurrency       int           // calls in flight during ExtractBatch
	Timeout           time.Duration // per call; 0 means none
	RequestsPerSecond float64       // 0 means unlimited
}

func DefaultOptions() Options {
	return Options{Temperature: 0.1, MaxTokens: 512, Concurrency: 4, Timeout: 30 * time.Second}
}

// Pipeline asks a structured generator for records and validates them.
type Pipeline struct {
	gen       schema.StructuredGenerator
	schema    *Schema
	validator *Validator
	opts      Options
	limiter   *rate.Limiter
	metrics   *observability.Metrics
}

// NewPipeline returns a pipeline over s. metrics may be nil.
func NewPipeline(gen schema.StructuredGenerator, s *Schema, opts Options, metrics *observability.Metrics) (*Pipeline, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: no schema", ErrInvalidSchema)
	}
	if gen == nil {
		return nil, errors.New("extraction pipeline needs a generator")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	p := &Pipeline{
		gen:       gen,
		schema:    s,
		validator: NewValidator(s),
		opts:      opts,
		metrics:   metrics,
	}
	if opts.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return p, nil
}

// Schema returns the schema records are validated against.
func (p *Pipeline) Schema() *Schema { return p.schema }

// Extract runs one extraction. A response that is not a JSON object fails
// with *MalformedResponseError and a missed deadline with *TimeoutError.
func (p *Pipeline) Extract(ctx context.Context, chatText string) (Result, error) {
	callCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	out, err := p.gen.Generate(callCtx, schema.StructuredRequest{
		System:      systemPrompt,
		Prompt:      "Extract user information from this conversation:\n\n" + chatText,
		Function:    p.schema.Function(),
		Model:       p.opts.Model,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
	})
	if err == nil && out == nil {
		err = fmt.Errorf("%w: empty object", schema.ErrMalformedOutput)
	}
	if err != nil {
		err = p.classify(callCtx, err)
		p.metrics.ExtractionDone(string(StatusFailed), 0, nil)
		return Result{}, err
	}

	res := p.validator.Validate(out)
	res.SourceText = chatText
	p.metrics.ExtractionDone(string(res.Status), res.OverallScore, res.FieldValidity)
	slog.Debug("extraction done", "score", res.OverallScore, "status", res.Status)
	return res, nil
}

func (p *Pipeline) classify(callCtx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return &TimeoutError{After: p.opts.Timeout, Err: err}
	case errors.Is(err, schema.ErrMalformedOutput):
		return &MalformedResponseError{Err: err}
	}
	return fmt.Errorf("extract: %w", err)
}

// ExtractBatch extracts every text independently and reports on all of them.
// Failed inputs become zero-score entries; entries keep input order.
func (p *Pipeline) ExtractBatch(ctx context.Context, texts []string) *Report {
	results := make([]Result, len(texts))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, text := range texts {
		g.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					results[i] = FailedResult(text, err)
					return nil
				}
			}
			res, err := p.Extract(ctx, text)
			if err != nil {
				slog.Warn("extraction failed", "index", i, "err", err)
				res = FailedResult(text, err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	b := NewReportBuilder(p.schema)
	for _, r := range results {
		b.Add(r)
	}
	return b.Finalize()
}

// FailedResult is the zero-score entry recorded for an input that produced
// no record.
func FailedResult(text string, err error) Result {
	return Result{
		FieldValidity: map[string]bool{},
		Status:        StatusFailed,
		SourceText:    text,
		Error:         err.Error(),
	}
}
