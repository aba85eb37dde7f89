package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/intent"
	"github.com/petal-labs/petalpilot/llm"
	"github.com/petal-labs/petalpilot/tool"
	"github.com/petal-labs/petalpilot/workflow"
)

// scriptedClient answers with a fixed text and records the request.
type scriptedClient struct {
	text string
	err  error
	last llm.Request
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	c.last = req
	if c.err != nil {
		return llm.Response{}, c.err
	}
	return llm.Response{Text: c.text}, nil
}

func newTestAgent(t *testing.T, client llm.Client) (*Agent, *tool.Registry) {
	t.Helper()
	registry := tool.NewRegistry()
	a := New(intent.NewTracker(), registry, workflow.NewContext(), client)
	return a, registry
}

func TestHandleMessageStop(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedClient{})
	reply := a.HandleMessage(context.Background(), "stop", &core.AgentContext{})
	if !reply.Stopped {
		t.Fatal("stop command not flagged")
	}
}

func TestHandleMessageConfirmation(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedClient{})
	ctx := &core.AgentContext{History: []core.ChatMessage{{Role: "assistant", Content: "shall I proceed with the plan as discussed?"}}}
	reply := a.HandleMessage(context.Background(), "yes", ctx)
	if reply.Text != "Understood." || reply.Intent.Type != core.IntentConfirmation {
		t.Errorf("reply = %+v", reply)
	}
}

func TestHandleMessageDispatchesCommand(t *testing.T) {
	client := &scriptedClient{text: "fallback"}
	a, registry := newTestAgent(t, client)

	var gotParams map[string]any
	registry.Register(&tool.Tool{
		Name: "summarize_page",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			gotParams = params
			return tool.Ok(map[string]any{"summary": "short version"}, "Here is a summary."), nil
		},
	})

	reply := a.HandleMessage(context.Background(), "summarize this page", &core.AgentContext{})
	if reply.ToolResult == nil || !reply.ToolResult.Success {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Text != "Here is a summary." {
		t.Errorf("text = %q", reply.Text)
	}
	if gotParams == nil {
		t.Fatal("capability never ran")
	}
	// Successful map data lands in workflow state with extracted provenance.
	if val, _ := a.Vars().Get("summary"); val != "short version" {
		t.Errorf("extracted variable = %v", val)
	}
}

func TestHandleMessageCommandFailure(t *testing.T) {
	a, registry := newTestAgent(t, &scriptedClient{})
	registry.Register(&tool.Tool{
		Name: "summarize_page",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			return tool.Fail("page is empty", "navigate somewhere first"), nil
		},
	})

	reply := a.HandleMessage(context.Background(), "summarize this page", &core.AgentContext{})
	if reply.ToolResult.Success {
		t.Fatal("failure reported as success")
	}
	if !strings.Contains(reply.Text, "page is empty") || !strings.Contains(reply.Text, "- navigate somewhere first") {
		t.Errorf("text = %q", reply.Text)
	}
}

func TestHandleMessageUnmatchedCommandConverses(t *testing.T) {
	client := &scriptedClient{text: "let me talk about that"}
	a, _ := newTestAgent(t, client) // empty registry: nothing matches

	reply := a.HandleMessage(context.Background(), "summarize this page", &core.AgentContext{})
	if reply.ToolResult != nil {
		t.Error("a tool ran with an empty registry")
	}
	if reply.Text != "let me talk about that" {
		t.Errorf("text = %q", reply.Text)
	}
}

func TestHandleMessageConversation(t *testing.T) {
	client := &scriptedClient{text: "the weather is fine"}
	a, _ := newTestAgent(t, client)

	agentCtx := &core.AgentContext{
		Page:          &core.PageContext{URL: "https://example.com", Title: "Example", Content: "page body"},
		Selection:     "selected fragment",
		Memories:      []core.MemoryItem{{ID: "m1", Content: "user likes brevity"}},
		Personas:      []core.Persona{{ID: "formal", Prompt: "Respond formally."}},
		ActivePersona: "formal",
		History: []core.ChatMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	}

	reply := a.HandleMessage(context.Background(), "is the weather nice today?", agentCtx)
	if reply.Text != "the weather is fine" {
		t.Fatalf("text = %q", reply.Text)
	}

	// The live context is folded into the prompt.
	sys := client.last.System
	for _, want := range []string{"Respond formally.", "page body", "selected fragment", "user likes brevity"} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q:\n%s", want, sys)
		}
	}
	if len(client.last.Messages) != 2 {
		t.Errorf("history messages = %d, want 2", len(client.last.Messages))
	}
}

func TestHandleMessageCompletionFailure(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedClient{err: errors.New("provider down")})
	reply := a.HandleMessage(context.Background(), "nice weather today", &core.AgentContext{})
	if !strings.Contains(reply.Text, "provider down") {
		t.Errorf("text = %q", reply.Text)
	}
}

func TestToolParams(t *testing.T) {
	params := toolParams(core.Intent{Parameters: map[string]any{
		"quoted":      []string{"hello world"},
		"entity_type": "email",
		"numbers":     []float64{3},
	}})
	if params["text"] != "hello world" || params["entity_type"] != "email" {
		t.Errorf("params = %v", params)
	}
	if _, present := params["numbers"]; present {
		t.Error("numbers leaked into tool params")
	}
}
