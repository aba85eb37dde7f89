package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/petal-labs/iris/core"
)

// mockProvider is a mock implementation of core.Provider for testing.
type mockProvider struct {
	id           string
	chatResponse *core.ChatResponse
	chatError    error
	lastRequest  *core.ChatRequest
}

func (m *mockProvider) ID() string {
	return m.id
}

func (m *mockProvider) Chat(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	m.lastRequest = req
	if m.chatError != nil {
		return nil, m.chatError
	}
	return m.chatResponse, nil
}

func (m *mockProvider) StreamChat(ctx context.Context, req *core.ChatRequest) (*core.ChatStream, error) {
	return nil, nil // not used in tests
}

func (m *mockProvider) Models() []core.ModelInfo {
	return []core.ModelInfo{{ID: "mock-model"}}
}

func (m *mockProvider) Supports(feature core.Feature) bool {
	return feature == core.FeatureChat
}

func TestCompleteSimplePrompt(t *testing.T) {
	mock := &mockProvider{
		id: "mock",
		chatResponse: &core.ChatResponse{
			Model:  "mock-model",
			Output: "Hello, world!",
			Usage: core.TokenUsage{
				PromptTokens:     10,
				CompletionTokens: 5,
			},
		},
	}
	client := NewIrisClientFromProvider(mock, "mock-model")

	resp, err := client.Complete(context.Background(), Request{
		System:    "You are helpful",
		InputText: "Say hello",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Hello, world!" || resp.Model != "mock-model" {
		t.Errorf("response = %+v", resp)
	}
	if resp.InputTokens != 10 || resp.OutputTokens != 5 {
		t.Errorf("usage = %d in, %d out", resp.InputTokens, resp.OutputTokens)
	}
	if client.ProviderID() != "mock" {
		t.Errorf("ProviderID = %q", client.ProviderID())
	}
}

func TestCompleteAssemblesMessages(t *testing.T) {
	mock := &mockProvider{id: "mock", chatResponse: &core.ChatResponse{Output: "ok"}}
	client := NewIrisClientFromProvider(mock, "default-model")

	temp := 0.2
	maxTokens := 64
	_, err := client.Complete(context.Background(), Request{
		System: "system framing",
		Messages: []Message{
			{Role: "user", Content: "earlier"},
			{Role: "assistant", Content: "reply"},
		},
		InputText:   "now",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	req := mock.lastRequest
	if req.Model != core.ModelID("default-model") {
		t.Errorf("model = %s", req.Model)
	}
	// System first, history in order, the input text as the closing user turn.
	if len(req.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(req.Messages))
	}
	if req.Messages[0].Role != core.RoleSystem || req.Messages[0].Content != "system framing" {
		t.Errorf("first message = %+v", req.Messages[0])
	}
	if req.Messages[2].Role != core.RoleAssistant {
		t.Errorf("history role = %v", req.Messages[2].Role)
	}
	if req.Messages[3].Role != core.RoleUser || req.Messages[3].Content != "now" {
		t.Errorf("last message = %+v", req.Messages[3])
	}
	if req.Temperature == nil || *req.Temperature != float32(0.2) {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if req.MaxTokens == nil || *req.MaxTokens != 64 {
		t.Errorf("max tokens = %v", req.MaxTokens)
	}

	// An explicit request model overrides the default.
	_, _ = client.Complete(context.Background(), Request{Model: "other-model", InputText: "x"})
	if mock.lastRequest.Model != core.ModelID("other-model") {
		t.Errorf("model = %s", mock.lastRequest.Model)
	}
}

func TestCompleteWantJSON(t *testing.T) {
	mock := &mockProvider{id: "mock", chatResponse: &core.ChatResponse{Output: `{"answer": 42}`}}
	client := NewIrisClientFromProvider(mock, "mock-model")

	resp, err := client.Complete(context.Background(), Request{InputText: "json please", WantJSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.JSON == nil || resp.JSON["answer"] != 42.0 {
		t.Errorf("JSON = %v", resp.JSON)
	}

	// Non-JSON output leaves JSON nil rather than erroring.
	mock.chatResponse = &core.ChatResponse{Output: "plain text"}
	resp, _ = client.Complete(context.Background(), Request{InputText: "x", WantJSON: true})
	if resp.JSON != nil {
		t.Errorf("JSON = %v for plain output", resp.JSON)
	}
}

func TestCompleteProviderError(t *testing.T) {
	mock := &mockProvider{id: "mock", chatError: errors.New("rate limited")}
	client := NewIrisClientFromProvider(mock, "mock-model")

	_, err := client.Complete(context.Background(), Request{InputText: "x"})
	if err == nil {
		t.Fatal("provider error swallowed")
	}
}
