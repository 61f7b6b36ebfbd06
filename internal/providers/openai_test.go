package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crystaldolphin/chatkeeper/internal/schema"
)

// newEchoServer returns a server that records the decoded request body and
// answers with reply.
func newEchoServer(t *testing.T, status int, reply string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		if got != nil {
			if err := json.Unmarshal(data, got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChat_SendsResponseFormat(t *testing.T) {
	var body map[string]any
	srv := newEchoServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"{\"a\":1}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
		&body)

	p := NewOpenAIProvider("key", srv.URL, "groq/llama-3.1-8b-instant", "groq", nil)
	opts := schema.NewChatOptions("", 100, 0.1).WithResponseFormat(schema.ResponseFormatJSONObject)

	resp, err := p.Chat(context.Background(), schema.NewMessages(schema.NewUserMessage("hi")), nil, opts)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text() != `{"a":1}` {
		t.Errorf("content = %q", resp.Text())
	}
	if resp.Usage["total_tokens"] != 5 {
		t.Errorf("usage = %v", resp.Usage)
	}
	if body["model"] != "llama-3.1-8b-instant" {
		t.Errorf("model prefix not stripped: %v", body["model"])
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", body["response_format"])
	}
	if _, ok := body["tools"]; ok {
		t.Error("tools must be omitted when none are given")
	}
}

func TestChat_ForcedToolChoice(t *testing.T) {
	var body map[string]any
	srv := newEchoServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":null,"tool_calls":[{"id":"c1","function":{"name":"record","arguments":"{\"name\":\"Ana\"}"}}]},"finish_reason":"tool_calls"}]}`,
		&body)

	p := NewOpenAIProvider("", srv.URL, "gpt-4o-mini", "openai", nil)
	fn := schema.FunctionSpec{Name: "record", Parameters: map[string]any{"type": "object"}}
	opts := schema.NewChatOptions("", 0, 0.1).WithToolChoice("record")

	resp, err := p.Chat(context.Background(), schema.NewMessages(schema.NewUserMessage("x")),
		[]map[string]any{fn.ToolDefinition()}, opts)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !resp.HasToolCalls() || resp.ToolCalls[0].Arguments["name"] != "Ana" {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.Content != nil {
		t.Errorf("expected nil content, got %q", *resp.Content)
	}
	choice, _ := body["tool_choice"].(map[string]any)
	fnChoice, _ := choice["function"].(map[string]any)
	if fnChoice["name"] != "record" {
		t.Errorf("tool_choice = %v", body["tool_choice"])
	}
	if body["max_tokens"] != float64(1024) {
		t.Errorf("default max_tokens = %v", body["max_tokens"])
	}
}

func TestChat_HTTPErrorIsProviderError(t *testing.T) {
	srv := newEchoServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`, nil)
	p := NewOpenAIProvider("k", srv.URL, "llama", "groq", nil)

	_, err := p.Chat(context.Background(), schema.NewMessages(), nil, schema.ChatOptions{})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusTooManyRequests || perr.Message != "rate limit exceeded" {
		t.Errorf("unexpected error: %+v", perr)
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := newEchoServer(t, http.StatusOK, `{"choices":[]}`, nil)
	p := NewOpenAIProvider("k", srv.URL, "llama", "groq", nil)

	if _, err := p.Chat(context.Background(), schema.NewMessages(), nil, schema.ChatOptions{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAIProvider_APIBase(t *testing.T) {
	cases := []struct {
		name, key, base, model, provider, want string
	}{
		{"explicit base wins", "", "http://localhost:8000/v1/", "m", "vllm", "http://localhost:8000/v1"},
		{"groq default", "gsk_x", "", "llama-3.1-8b-instant", "groq", "https://api.groq.com/openai/v1"},
		{"gateway by key prefix", "sk-or-abc", "", "anthropic/claude", "", "https://openrouter.ai/api/v1"},
		{"spec by model keyword", "k", "", "deepseek-chat", "", "https://api.deepseek.com/v1"},
		{"fallback", "k", "", "mystery", "", "https://api.groq.com/openai/v1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewOpenAIProvider(tc.key, tc.base, tc.model, tc.provider, nil)
			if p.APIBase() != tc.want {
				t.Errorf("APIBase() = %q, want %q", p.APIBase(), tc.want)
			}
		})
	}
}

func TestRepairJSON(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		ok    bool
		field string
	}{
		{"plain", `{"name":"Ana"}`, true, "Ana"},
		{"fenced", "```json\n{\"name\":\"Ana\"}\n```", true, "Ana"},
		{"trailing garbage", `{"name":"Ana"}}]`, true, "Ana"},
		{"trailing prose", `{"name":"Ana"} Hope that helps.`, true, "Ana"},
		{"truncated", `{"name":"Ana"`, true, "Ana"},
		{"prose before object", `I could not find details. {"note": "none"} sorry`, false, ""},
		{"array", `["Ana"]`, false, ""},
		{"array of objects", `[{"name":"Ana","age":34}]`, false, ""},
		{"empty", ``, false, ""},
		{"garbage", `not json at all`, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := repairJSON(tc.in)
			if tc.ok != (err == nil) {
				t.Fatalf("repairJSON(%q) err = %v, want ok=%v", tc.in, err, tc.ok)
			}
			if tc.ok && out["name"] != tc.field {
				t.Errorf("name = %v", out["name"])
			}
		})
	}
}
