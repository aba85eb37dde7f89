// Package agent drives one conversation: it classifies utterances, selects
// capabilities, and falls back to plain generation for queries and chat.
package agent

import (
	"context"
	"log/slog"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/intent"
	"github.com/petal-labs/petalpilot/llm"
	"github.com/petal-labs/petalpilot/tool"
	"github.com/petal-labs/petalpilot/workflow"
)

// Reply is the agent's answer to one utterance.
type Reply struct {
	Text       string       // what to show the user
	Intent     core.Intent  // the classification that produced this reply
	ToolResult *tool.Result // set when a capability was dispatched
	Stopped    bool         // the utterance was an interrupt request
}

// Agent wires the intent tracker, the tool registry, the workflow state, and
// the generation backend into one conversation driver.
type Agent struct {
	tracker  *intent.Tracker
	registry *tool.Registry
	vars     *workflow.Context
	client   llm.Client
	log      *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// New creates a conversation agent.
func New(tracker *intent.Tracker, registry *tool.Registry, vars *workflow.Context, client llm.Client, opts ...Option) *Agent {
	a := &Agent{
		tracker:  tracker,
		registry: registry,
		vars:     vars,
		client:   client,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Vars exposes the agent's workflow state for chain runs sharing it.
func (a *Agent) Vars() *workflow.Context { return a.vars }

// Tracker exposes the agent's intent tracker.
func (a *Agent) Tracker() *intent.Tracker { return a.tracker }

// HandleMessage processes one utterance end to end. Commands dispatch the
// matching capability; queries and chat go to the generation backend with
// the live context folded into the prompt.
func (a *Agent) HandleMessage(ctx context.Context, message string, agentCtx *core.AgentContext) *Reply {
	if a.tracker.IsStopCommand(message) {
		return &Reply{Text: "Stopped.", Stopped: true}
	}

	in := a.tracker.AnalyzeIntent(message, history(agentCtx))
	a.log.Debug("handling message", "type", in.Type, "action", in.Action, "confidence", in.Confidence)

	switch in.Type {
	case core.IntentCommand:
		return a.dispatch(ctx, in, agentCtx)
	case core.IntentConfirmation:
		return &Reply{Text: "Understood.", Intent: in}
	default:
		return a.converse(ctx, in, message, agentCtx)
	}
}

func (a *Agent) dispatch(ctx context.Context, in core.Intent, agentCtx *core.AgentContext) *Reply {
	t := a.registry.FindByIntent(in)
	if t == nil {
		// No capability matches; treat the command as conversation.
		return a.converse(ctx, in, in.RawInput, agentCtx)
	}

	call := tool.NewCall(t.Name, toolParams(in))
	result := a.registry.Execute(ctx, call, agentCtx)

	text := result.DisplayText
	if !result.Success {
		text = result.Error
		for _, s := range result.Suggestions {
			text += "\n- " + s
		}
	}
	if result.Success {
		if data, isMap := result.Data.(map[string]any); isMap {
			a.vars.SetFromExtracted(data)
		}
	}
	return &Reply{Text: text, Intent: in, ToolResult: result}
}

func (a *Agent) converse(ctx context.Context, in core.Intent, message string, agentCtx *core.AgentContext) *Reply {
	req := llm.Request{
		System:    systemPrompt(agentCtx),
		InputText: message,
	}
	for _, m := range history(agentCtx) {
		req.Messages = append(req.Messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		a.log.Warn("completion failed", "error", err)
		return &Reply{Text: "I could not produce a reply: " + err.Error(), Intent: in}
	}
	return &Reply{Text: resp.Text, Intent: in}
}

// toolParams flattens extracted intent parameters into a tool call. Quoted
// text becomes the generic "text" parameter; the entity type passes through.
func toolParams(in core.Intent) map[string]any {
	params := make(map[string]any)
	if quoted, found := in.Parameters["quoted"].([]string); found && len(quoted) > 0 {
		params["text"] = quoted[0]
	}
	if entity, found := in.Parameters["entity_type"].(string); found {
		params["entity_type"] = entity
	}
	return params
}

func history(agentCtx *core.AgentContext) []core.ChatMessage {
	if agentCtx == nil {
		return nil
	}
	return agentCtx.History
}

func systemPrompt(agentCtx *core.AgentContext) string {
	prompt := "You are a browsing assistant."
	if agentCtx == nil {
		return prompt
	}
	for _, p := range agentCtx.Personas {
		if p.ID == agentCtx.ActivePersona && p.Prompt != "" {
			prompt = p.Prompt
			break
		}
	}
	if agentCtx.HasPage() {
		prompt += "\n\nCurrent page: " + agentCtx.Page.Title + " (" + agentCtx.Page.URL + ")\n" + agentCtx.Page.Content
	}
	if agentCtx.Selection != "" {
		prompt += "\n\nUser selection:\n" + agentCtx.Selection
	}
	for _, m := range agentCtx.Memories {
		prompt += "\n\nRelevant memory: " + m.Content
	}
	return prompt
}
