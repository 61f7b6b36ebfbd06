package schema

import "context"

// ResponseFormatJSONObject asks an OpenAI-compatible endpoint for a single
// JSON object as the message content.
const ResponseFormatJSONObject = "json_object"

// ChatOptions configures a single LLM chat request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64

	// ResponseFormat is sent as response_format.type when non-empty.
	ResponseFormat string
	// ToolChoice forces a named function when non-empty; otherwise "auto"
	// is sent whenever tools are present.
	ToolChoice string
}

func NewChatOptions(model string, maxTokens int, temperature float64) ChatOptions {
	return ChatOptions{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// WithResponseFormat returns a copy of o requesting the given response format.
func (o ChatOptions) WithResponseFormat(format string) ChatOptions {
	o.ResponseFormat = format
	return o
}

// WithToolChoice returns a copy of o forcing the named function.
func (o ChatOptions) WithToolChoice(name string) ChatOptions {
	o.ToolChoice = name
	return o
}

// ToolCallRequest represents one function invocation requested by the LLM.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
	// RawArguments is the argument string exactly as the provider sent it.
	RawArguments string
}

// LLMResponse is the normalised response from any LLM provider.
type LLMResponse struct {
	Content      *string // nil when the response contains only tool calls
	ToolCalls    []ToolCallRequest
	FinishReason string
	Usage        map[string]int // "prompt_tokens", "completion_tokens", "total_tokens"
}

// HasToolCalls reports whether the response contains at least one tool call.
func (r LLMResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// Text returns the response content or "" when there is none.
func (r LLMResponse) Text() string {
	if r.Content == nil {
		return ""
	}
	return *r.Content
}

// LLMProvider is the interface every LLM backend must satisfy.
type LLMProvider interface {
	Chat(ctx context.Context, messages Messages, tools []map[string]any, opts ChatOptions) (LLMResponse, error)
	DefaultModel() string
}
