// Package builtins registers the assistant's built-in capabilities over the
// session controller, the synthesizer, and the language backend.
package builtins

import (
	"context"
	"fmt"
	"strings"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/llm"
	"github.com/petal-labs/petalpilot/session"
	"github.com/petal-labs/petalpilot/synthesis"
	"github.com/petal-labs/petalpilot/tool"
)

// Deps carries everything the built-in capabilities need.
type Deps struct {
	Sessions *session.Controller
	Synth    *synthesis.Synthesizer
	LLM      llm.Client
	Locale   string
}

// RegisterAll installs every built-in tool into the registry.
func RegisterAll(reg *tool.Registry, deps Deps) {
	reg.Register(summarizePage(deps))
	reg.Register(extractData())
	reg.Register(translateText(deps))
	reg.Register(explainContent(deps))
	reg.Register(generateReply(deps))
	reg.Register(navigate(deps))
	reg.Register(openTab(deps))
	reg.Register(closeTab(deps))
	reg.Register(switchTab(deps))
	reg.Register(searchTabs(deps))
	reg.Register(listTabs(deps))
	reg.Register(compareTabs(deps))
}

func summarizePage(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "summarize_page",
		Description: "Summarize the content of the current page",
		Category:    "content",
		Parameters: []tool.Parameter{
			{Name: "length", Type: tool.TypeString, Enum: []string{"short", "medium", "long"}, Default: "medium", Desc: "summary length"},
		},
		RequiresPageContext: true,
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			length, _ := params["length"].(string)
			prompt := fmt.Sprintf("Write a %s summary of the following page.\n\nTitle: %s\n\n%s",
				length, agentCtx.Page.Title, agentCtx.Page.Content)
			resp, err := deps.LLM.Complete(ctx, llm.Request{
				System:    personaSystem(agentCtx),
				InputText: prompt,
			})
			if err != nil {
				return nil, err
			}
			return tool.Ok(map[string]any{"summary": resp.Text, "url": agentCtx.Page.URL}, resp.Text), nil
		},
	}
}

func translateText(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "translate_text",
		Description: "Translate the selection or the current page into a target language",
		Category:    "content",
		Parameters: []tool.Parameter{
			{Name: "target_lang", Type: tool.TypeString, Required: true, Desc: "BCP 47 language tag or language name"},
			{Name: "text", Type: tool.TypeString, Desc: "explicit text; defaults to the selection, then the page"},
		},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			text, _ := params["text"].(string)
			if text == "" {
				text = sourceText(agentCtx)
			}
			if text == "" {
				return tool.Fail("nothing to translate", "select text or navigate to a page first"), nil
			}
			target, _ := params["target_lang"].(string)
			resp, err := deps.LLM.Complete(ctx, llm.Request{
				System:    personaSystem(agentCtx),
				InputText: fmt.Sprintf("Translate the following text into %s. Reply with the translation only.\n\n%s", target, text),
			})
			if err != nil {
				return nil, err
			}
			return tool.Ok(map[string]any{"translation": resp.Text, "target_lang": target}, resp.Text), nil
		},
	}
}

func explainContent(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "explain_content",
		Description: "Explain the selection or the current page in plain terms",
		Category:    "content",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			text := sourceText(agentCtx)
			if text == "" {
				return tool.Fail("nothing to explain", "select text or navigate to a page first"), nil
			}
			resp, err := deps.LLM.Complete(ctx, llm.Request{
				System:    personaSystem(agentCtx),
				InputText: "Explain the following in plain terms:\n\n" + text,
			})
			if err != nil {
				return nil, err
			}
			return tool.Ok(map[string]any{"explanation": resp.Text}, resp.Text), nil
		},
	}
}

func generateReply(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "generate_reply",
		Description: "Draft a reply to the post or message under discussion",
		Category:    "content",
		Parameters: []tool.Parameter{
			{Name: "tone", Type: tool.TypeString, Enum: []string{"friendly", "professional", "casual"}, Default: "friendly", Desc: "reply tone"},
		},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			item := ""
			if agentCtx != nil {
				item = agentCtx.CurrentItem
			}
			if item == "" {
				item = sourceText(agentCtx)
			}
			if item == "" {
				return tool.Fail("no post or message to reply to", "open or select the item first"), nil
			}
			tone, _ := params["tone"].(string)
			resp, err := deps.LLM.Complete(ctx, llm.Request{
				System:    personaSystem(agentCtx),
				InputText: fmt.Sprintf("Draft a %s reply to the following. Reply with the draft only.\n\n%s", tone, item),
			})
			if err != nil {
				return nil, err
			}
			return tool.Ok(map[string]any{"reply": resp.Text, "tone": tone}, resp.Text), nil
		},
	}
}

func navigate(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "navigate",
		Description: "Point the current tab at a URL",
		Category:    "session",
		Parameters: []tool.Parameter{
			{Name: "url", Type: tool.TypeString, Required: true},
			{Name: "tab_id", Type: tool.TypeString, Desc: "defaults to the active tab"},
		},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			url, _ := params["url"].(string)
			tabID, _ := params["tab_id"].(string)
			return fromSession(deps.Sessions.NavigateTo(ctx, url, tabID), "navigated to "+url), nil
		},
	}
}

func openTab(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "open_tab",
		Description: "Open a new tab",
		Category:    "session",
		Parameters: []tool.Parameter{
			{Name: "url", Type: tool.TypeString, Required: true},
			{Name: "active", Type: tool.TypeBoolean, Default: true, Desc: "focus the new tab"},
		},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			url, _ := params["url"].(string)
			active, _ := params["active"].(bool)
			return fromSession(deps.Sessions.OpenTab(ctx, url, active), "opened "+url), nil
		},
	}
}

func closeTab(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "close_tab",
		Description: "Close a tab",
		Category:    "session",
		Parameters: []tool.Parameter{
			{Name: "tab_id", Type: tool.TypeString, Required: true},
		},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			tabID, _ := params["tab_id"].(string)
			return fromSession(deps.Sessions.CloseTab(ctx, tabID), "closed tab "+tabID), nil
		},
	}
}

func switchTab(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "switch_tab",
		Description: "Focus a tab by id, or by URL or title match",
		Category:    "session",
		Parameters: []tool.Parameter{
			{Name: "tab_id", Type: tool.TypeString},
			{Name: "match", Type: tool.TypeString, Desc: "URL or title substring when no id is given"},
		},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			tabID, _ := params["tab_id"].(string)
			if tabID == "" {
				match, _ := params["match"].(string)
				if match == "" {
					return tool.Fail("tab_id or match is required"), nil
				}
				found := deps.Sessions.FindTabByURL(ctx, match)
				if !found.Success {
					found = deps.Sessions.FindTabByTitle(ctx, match)
				}
				if !found.Success {
					return tool.Fail(found.Error), nil
				}
				tabID = found.TabID
			}
			return fromSession(deps.Sessions.SwitchToTab(ctx, tabID), "switched to tab "+tabID), nil
		},
	}
}

func searchTabs(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "search_tabs",
		Description: "Find open tabs whose URL or title matches a pattern",
		Category:    "session",
		Parameters: []tool.Parameter{
			{Name: "pattern", Type: tool.TypeString, Required: true, Desc: "URL or title substring"},
		},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			pattern, _ := params["pattern"].(string)
			result := deps.Sessions.ListTabs(ctx)
			if !result.Success {
				return tool.Fail(result.Error), nil
			}
			tabs, _ := result.Data.([]core.SessionInfo)
			needle := strings.ToLower(pattern)
			var matched []core.SessionInfo
			for _, t := range tabs {
				if strings.Contains(strings.ToLower(t.URL), needle) ||
					strings.Contains(strings.ToLower(t.Title), needle) {
					matched = append(matched, t)
				}
			}
			if len(matched) == 0 {
				return tool.Fail(fmt.Sprintf("no tab matches %q", pattern), "use list_tabs to see open tabs"), nil
			}
			var sb strings.Builder
			for i, t := range matched {
				fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, t.Title, t.URL)
			}
			return tool.Ok(matched, strings.TrimRight(sb.String(), "\n")), nil
		},
	}
}

func listTabs(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "list_tabs",
		Description: "List all open tabs",
		Category:    "session",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			result := deps.Sessions.ListTabs(ctx)
			if !result.Success {
				return tool.Fail(result.Error), nil
			}
			tabs, _ := result.Data.([]core.SessionInfo)
			var sb strings.Builder
			for i, t := range tabs {
				marker := " "
				if t.Active {
					marker = "*"
				}
				fmt.Fprintf(&sb, "%s %d. %s (%s)\n", marker, i+1, t.Title, t.URL)
			}
			return tool.Ok(tabs, strings.TrimRight(sb.String(), "\n")), nil
		},
	}
}

func compareTabs(deps Deps) *tool.Tool {
	return &tool.Tool{
		Name:        "compare_tabs",
		Description: "Gather content from several tabs and compare them",
		Category:    "session",
		Parameters: []tool.Parameter{
			{Name: "tab_ids", Type: tool.TypeArray, Desc: "defaults to every web page tab"},
		},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			var ids []string
			if raw, found := params["tab_ids"].([]any); found {
				for _, v := range raw {
					if s, isStr := v.(string); isStr {
						ids = append(ids, s)
					}
				}
			}
			report, err := deps.Synth.Synthesize(ctx, synthesis.Options{
				SessionIDs:  ids,
				Compare:     true,
				BuildReport: true,
				Locale:      deps.Locale,
			})
			if err != nil {
				return nil, err
			}
			return tool.Ok(report, report.Text), nil
		},
	}
}

// fromSession converts a controller result into a tool result.
func fromSession(res session.Result, displayText string) *tool.Result {
	if !res.Success {
		return tool.Fail(res.Error)
	}
	out := tool.Ok(res.Data, displayText)
	if out.Data == nil {
		out.Data = map[string]any{"tab_id": res.TabID}
	}
	return out
}

// sourceText prefers the selection, then the page content.
func sourceText(agentCtx *core.AgentContext) string {
	if agentCtx == nil {
		return ""
	}
	if agentCtx.Selection != "" {
		return agentCtx.Selection
	}
	if agentCtx.HasPage() {
		return agentCtx.Page.Content
	}
	return ""
}

// personaSystem builds the system framing from the active persona.
func personaSystem(agentCtx *core.AgentContext) string {
	if agentCtx == nil || agentCtx.ActivePersona == "" {
		return ""
	}
	for _, p := range agentCtx.Personas {
		if p.ID == agentCtx.ActivePersona {
			return p.Prompt
		}
	}
	return ""
}
