package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crystaldolphin/chatkeeper/internal/schema"
	"github.com/crystaldolphin/chatkeeper/internal/shared/llmutils"
)

// SummaryPrefix starts the text of every summary turn.
const SummaryPrefix = "Context from earlier: "

// ErrNothingToSummarize is returned for an empty run of turns.
var ErrNothingToSummarize = errors.New("nothing to summarize")

// SummarizationError reports a failed summarization. The history it was
// computed for is left untouched.
type SummarizationError struct {
	Turns int
	Err   error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarize %d turns: %v", e.Turns, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// Summarizer condenses a run of turns into a single system_summary turn.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn) (Turn, error)
}

var summaryFunction = schema.FunctionSpec{
	Name:        "save_summary",
	Description: "Save a brief summary of the conversation so far.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "Two or three sentences with the key facts and open requests.",
			},
		},
		"required": []any{"summary"},
	},
}

const summarySystemPrompt = "Summarize conversations briefly, keeping names, facts and anything the user still expects an answer to."

// LLMSummarizer asks a structured generator for {"summary": string}.
type LLMSummarizer struct {
	gen         schema.StructuredGenerator
	model       string
	temperature float64
	maxTokens   int
}

// NewLLMSummarizer returns a summarizer. Zero temperature and maxTokens fall
// back to 0.3 and 200.
func NewLLMSummarizer(gen schema.StructuredGenerator, model string, temperature float64, maxTokens int) *LLMSummarizer {
	if temperature <= 0 {
		temperature = 0.3
	}
	if maxTokens <= 0 {
		maxTokens = 200
	}
	return &LLMSummarizer{gen: gen, model: model, temperature: temperature, maxTokens: maxTokens}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, turns []Turn) (Turn, error) {
	if len(turns) == 0 {
		return Turn{}, ErrNothingToSummarize
	}

	out, err := s.gen.Generate(ctx, schema.StructuredRequest{
		System:      summarySystemPrompt,
		Prompt:      "Summarize this conversation:\n\n" + formatTurnsForPrompt(turns),
		Function:    summaryFunction,
		Model:       s.model,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return Turn{}, &SummarizationError{Turns: len(turns), Err: err}
	}

	summary, _ := out["summary"].(string)
	summary = llmutils.StripThink(summary)
	if summary == "" {
		return Turn{}, &SummarizationError{Turns: len(turns), Err: errors.New("empty summary")}
	}

	return NewTurn(SpeakerSystemSummary, SummaryPrefix+summary), nil
}

// formatTurnsForPrompt renders one "SPEAKER: text" line per turn.
func formatTurnsForPrompt(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(strings.ToUpper(string(t.Speaker)))
		sb.WriteString(": ")
		sb.WriteString(t.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
