package schema

import (
	"context"
	"errors"
)

// ErrMalformedOutput marks a collaborator response that could not be read
// as the requested JSON object. Generators wrap it; callers test with errors.Is.
var ErrMalformedOutput = errors.New("malformed structured output")

// FunctionSpec declares the object the model must produce: a function name,
// a description and the JSON Schema of its parameters.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolDefinition renders the spec in OpenAI function-calling format.
func (f FunctionSpec) ToolDefinition() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        f.Name,
			"description": f.Description,
			"parameters":  f.Parameters,
		},
	}
}

// StructuredRequest is one generate-structured call.
type StructuredRequest struct {
	System      string
	Prompt      string
	Function    FunctionSpec
	Model       string
	Temperature float64
	MaxTokens   int
}

// StructuredGenerator turns a prompt plus a declared object shape into a
// parsed JSON object. Backends differ only in how they ask the model for it.
type StructuredGenerator interface {
	Generate(ctx context.Context, req StructuredRequest) (map[string]any, error)
}
