package providers

import (
	"context"
	"fmt"
	"sort"

	"github.com/crystaldolphin/chatkeeper/internal/schema"
)

// JSONModeGenerator asks for response_format json_object and parses the
// message content. The declared shape travels in the system prompt.
type JSONModeGenerator struct {
	provider schema.LLMProvider
}

func NewJSONModeGenerator(provider schema.LLMProvider) *JSONModeGenerator {
	return &JSONModeGenerator{provider: provider}
}

// Generate implements schema.StructuredGenerator.
func (g *JSONModeGenerator) Generate(ctx context.Context, req schema.StructuredRequest) (map[string]any, error) {
	system := req.System
	if shape := describeShape(req.Function); shape != "" {
		system += "\n\nReturn ONLY a JSON object with these keys:\n" + shape
	}

	messages := schema.NewMessages(
		schema.NewSystemMessage(system),
		schema.NewUserMessage(req.Prompt),
	)
	opts := schema.NewChatOptions(req.Model, req.MaxTokens, req.Temperature).
		WithResponseFormat(schema.ResponseFormatJSONObject)

	resp, err := g.provider.Chat(ctx, messages, nil, opts)
	if err != nil {
		return nil, err
	}

	out, err := repairJSON(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrMalformedOutput, err)
	}
	return out, nil
}

// FunctionCallGenerator declares the shape as a single function tool, forces
// the model to call it and returns the call arguments.
type FunctionCallGenerator struct {
	provider schema.LLMProvider
}

func NewFunctionCallGenerator(provider schema.LLMProvider) *FunctionCallGenerator {
	return &FunctionCallGenerator{provider: provider}
}

// Generate implements schema.StructuredGenerator.
func (g *FunctionCallGenerator) Generate(ctx context.Context, req schema.StructuredRequest) (map[string]any, error) {
	messages := schema.NewMessages(
		schema.NewSystemMessage(req.System+"\n\nCall the "+req.Function.Name+" function with your answer."),
		schema.NewUserMessage(req.Prompt),
	)
	opts := schema.NewChatOptions(req.Model, req.MaxTokens, req.Temperature).
		WithToolChoice(req.Function.Name)

	resp, err := g.provider.Chat(ctx, messages, []map[string]any{req.Function.ToolDefinition()}, opts)
	if err != nil {
		return nil, err
	}

	for _, tc := range resp.ToolCalls {
		if tc.Name != req.Function.Name {
			continue
		}
		if tc.Arguments == nil {
			return nil, fmt.Errorf("%w: unparseable arguments for %s", schema.ErrMalformedOutput, tc.Name)
		}
		return tc.Arguments, nil
	}

	// Some endpoints ignore tool_choice and answer in plain content.
	if out, err := repairJSON(resp.Text()); err == nil {
		return out, nil
	}
	return nil, fmt.Errorf("%w: no %s call in response", schema.ErrMalformedOutput, req.Function.Name)
}

// describeShape lists the declared properties one per line for the JSON-mode
// system prompt, e.g. `- "age": integer (Age in years)`.
func describeShape(fn schema.FunctionSpec) string {
	props, _ := fn.Parameters["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}

	order := make([]string, 0, len(props))
	for k := range props {
		order = append(order, k)
	}
	sort.Strings(order)

	out := ""
	for _, name := range order {
		p, _ := props[name].(map[string]any)
		typ, _ := p["type"].(string)
		desc, _ := p["description"].(string)
		line := fmt.Sprintf("- %q: %s", name, typ)
		if desc != "" {
			line += " (" + desc + ")"
		}
		out += line + "\n"
	}
	return out
}
