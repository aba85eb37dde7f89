package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/petal-labs/iris/core"
	"github.com/petal-labs/iris/providers"
	// Auto-register common providers.
	_ "github.com/petal-labs/iris/providers/anthropic"
	_ "github.com/petal-labs/iris/providers/ollama"
	_ "github.com/petal-labs/iris/providers/openai"
)

// IrisClient adapts an iris core.Provider to the Client interface.
type IrisClient struct {
	provider core.Provider
	model    string
}

// NewIrisClient creates a client for the named provider via the iris
// provider registry. model is the default model for requests that do not
// name one.
func NewIrisClient(name, apiKey, model string) (*IrisClient, error) {
	provider, err := providers.Create(name, apiKey)
	if err != nil {
		return nil, fmt.Errorf("creating provider %q: %w", name, err)
	}
	return &IrisClient{provider: provider, model: model}, nil
}

// NewIrisClientFromProvider wraps an already-constructed provider.
func NewIrisClientFromProvider(provider core.Provider, model string) *IrisClient {
	return &IrisClient{provider: provider, model: model}
}

// Complete sends one completion request to the underlying provider.
func (c *IrisClient) Complete(ctx context.Context, req Request) (Response, error) {
	chatResp, err := c.provider.Chat(ctx, c.toChatRequest(req))
	if err != nil {
		return Response{}, fmt.Errorf("provider chat failed: %w", err)
	}
	return c.fromChatResponse(chatResp, req), nil
}

// ProviderID returns the underlying provider's ID.
func (c *IrisClient) ProviderID() string {
	return c.provider.ID()
}

func (c *IrisClient) toChatRequest(req Request) *core.ChatRequest {
	messages := make([]core.Message, 0, len(req.Messages)+2)

	if req.System != "" {
		messages = append(messages, core.Message{
			Role:    core.RoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, core.Message{
			Role:    toRole(m.Role),
			Content: m.Content,
		})
	}
	if req.InputText != "" {
		messages = append(messages, core.Message{
			Role:    core.RoleUser,
			Content: req.InputText,
		})
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	chatReq := &core.ChatRequest{
		Model:    core.ModelID(model),
		Messages: messages,
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		chatReq.Temperature = &temp
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = req.MaxTokens
	}
	return chatReq
}

func (c *IrisClient) fromChatResponse(resp *core.ChatResponse, req Request) Response {
	out := Response{
		Text:         resp.Output,
		Model:        string(resp.Model),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if req.WantJSON && resp.Output != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(resp.Output), &parsed); err == nil {
			out.JSON = parsed
		}
	}
	return out
}

func toRole(role string) core.Role {
	switch role {
	case "system":
		return core.RoleSystem
	case "user":
		return core.RoleUser
	case "assistant":
		return core.RoleAssistant
	case "tool":
		return core.RoleTool
	default:
		return core.RoleUser
	}
}

var _ Client = (*IrisClient)(nil)
