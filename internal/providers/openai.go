package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crystaldolphin/chatkeeper/internal/schema"
)

// OpenAIProvider makes direct HTTP calls to any OpenAI-compatible
// /chat/completions endpoint.
type OpenAIProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	extraHeaders map[string]string
	gateway      *ProviderSpec // non-nil for gateway/local providers
	spec         *ProviderSpec // non-nil for standard providers
	httpClient   *http.Client
}

// ProviderError is a non-200 answer from the endpoint.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewOpenAIProvider constructs a provider from raw config values.
// The caller extracts these from config.Config to avoid an import cycle.
func NewOpenAIProvider(
	apiKey, apiBase, defaultModel, providerName string,
	extraHeaders map[string]string,
) *OpenAIProvider {
	gateway := FindGateway(providerName, apiKey, apiBase)

	var spec *ProviderSpec
	if gateway == nil {
		spec = FindByName(providerName)
		if spec == nil {
			spec = FindByModel(defaultModel)
		}
	}

	effectiveBase := apiBase
	if effectiveBase == "" {
		if gateway != nil && gateway.DefaultAPIBase != "" {
			effectiveBase = gateway.DefaultAPIBase
		} else if spec != nil && spec.DefaultAPIBase != "" {
			effectiveBase = spec.DefaultAPIBase
		} else {
			effectiveBase = "https://api.groq.com/openai/v1"
		}
	}

	return &OpenAIProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimRight(effectiveBase, "/"),
		defaultModel: defaultModel,
		extraHeaders: extraHeaders,
		gateway:      gateway,
		spec:         spec,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// APIBase returns the resolved endpoint base URL.
func (p *OpenAIProvider) APIBase() string { return p.apiBase }

// Chat implements schema.LLMProvider.
func (p *OpenAIProvider) Chat(
	ctx context.Context,
	messages schema.Messages,
	tools []map[string]any,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	body := map[string]any{
		"model":       p.resolveModel(model),
		"messages":    messages.WireMaps(),
		"max_tokens":  maxTokens,
		"temperature": opts.Temperature,
	}
	if opts.ResponseFormat != "" {
		body["response_format"] = map[string]any{"type": opts.ResponseFormat}
	}
	if len(tools) > 0 {
		body["tools"] = tools
		if opts.ToolChoice != "" {
			body["tool_choice"] = map[string]any{
				"type":     "function",
				"function": map[string]any{"name": opts.ToolChoice},
			}
		} else {
			body["tool_choice"] = "auto"
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return schema.LLMResponse{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    friendlyHTTPError(resp.StatusCode, raw),
		}
	}

	return parseOpenAIResponse(raw)
}

// resolveModel strips routing prefixes from the model string so the endpoint
// receives the model name it expects. Gateways keep the "vendor/model" form
// because they route on it.
func (p *OpenAIProvider) resolveModel(model string) string {
	if p.gateway != nil {
		if full := p.gateway.Name + "/"; strings.HasPrefix(strings.ToLower(model), full) {
			return model[len(full):]
		}
		return model
	}

	if p.spec != nil {
		full := p.spec.Name + "/"
		if strings.HasPrefix(strings.ToLower(model), full) {
			return model[len(full):]
		}
	}
	if strings.Contains(model, "/") {
		parts := strings.SplitN(model, "/", 2)
		norm := strings.ReplaceAll(strings.ToLower(parts[0]), "-", "_")
		if FindByName(norm) != nil {
			return parts[1]
		}
	}
	return model
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// openAIRespBody is the subset of the chat completion response we care about.
type openAIRespBody struct {
	Choices []struct {
		Message struct {
			Content   any `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func parseOpenAIResponse(raw []byte) (schema.LLMResponse, error) {
	var body openAIRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.LLMResponse{}, fmt.Errorf("parse chat completion: %w", err)
	}
	if len(body.Choices) == 0 {
		return schema.LLMResponse{}, fmt.Errorf("empty choices in response")
	}

	msg := body.Choices[0].Message

	var content *string
	if c, ok := msg.Content.(string); ok && c != "" {
		content = &c
	}

	var toolCalls []schema.ToolCallRequest
	for _, tc := range msg.ToolCalls {
		args, err := repairJSON(tc.Function.Arguments)
		if err != nil {
			slog.Warn("failed to parse tool arguments", "tool", tc.Function.Name, "err", err)
			args = nil
		}
		toolCalls = append(toolCalls, schema.ToolCallRequest{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			Arguments:    args,
			RawArguments: tc.Function.Arguments,
		})
	}

	finish := body.Choices[0].FinishReason
	if finish == "" {
		finish = "stop"
	}

	return schema.LLMResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: finish,
		Usage: map[string]int{
			"prompt_tokens":     body.Usage.PromptTokens,
			"completion_tokens": body.Usage.CompletionTokens,
			"total_tokens":      body.Usage.TotalTokens,
		},
	}, nil
}

// ---------------------------------------------------------------------------
// JSON repair
// ---------------------------------------------------------------------------

// repairJSON unmarshals a JSON object, retrying after stripping markdown
// fences and trailing garbage. Some models wrap JSON in ```json blocks or emit
// truncated arguments. Anything that does not start with '{' is rejected.
func repairJSON(raw string) (map[string]any, error) {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil, fmt.Errorf("empty JSON payload")
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("not a JSON object: %s", truncateForLog(raw, 200))
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil && out != nil {
		return out, nil
	}

	// Attempt 1: cut back to the last closing brace.
	if j := strings.LastIndex(raw, "}"); j > 0 {
		out = nil
		if err := json.Unmarshal([]byte(raw[:j+1]), &out); err == nil && out != nil {
			return out, nil
		}
	}

	// Attempt 2: trim trailing brackets and close the object once.
	stripped := strings.TrimRight(raw, " \t\n\r}]")
	if !strings.HasSuffix(stripped, "}") {
		stripped += "}"
	}
	out = nil
	if err := json.Unmarshal([]byte(stripped), &out); err == nil && out != nil {
		return out, nil
	}

	return nil, fmt.Errorf("cannot repair JSON: %s", truncateForLog(raw, 200))
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// ---------------------------------------------------------------------------
// Utilities
// ---------------------------------------------------------------------------

func friendlyHTTPError(code int, body []byte) string {
	if code == http.StatusTooManyRequests {
		return "rate limit exceeded"
	}
	return truncateForLog(strings.TrimSpace(string(body)), 300)
}

func truncateForLog(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
