package builtins

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/llm"
	"github.com/petal-labs/petalpilot/session"
	"github.com/petal-labs/petalpilot/synthesis"
	"github.com/petal-labs/petalpilot/tool"
)

// memoryHost is a minimal in-memory session host for builtin tests.
type memoryHost struct {
	tabs     []core.SessionInfo
	activeID string
	nextID   int
}

func (h *memoryHost) Tabs(ctx context.Context) ([]core.SessionInfo, error) {
	out := make([]core.SessionInfo, len(h.tabs))
	copy(out, h.tabs)
	for i := range out {
		out[i].Active = out[i].ID == h.activeID
	}
	return out, nil
}

func (h *memoryHost) ActiveTab(ctx context.Context) (core.SessionInfo, error) {
	for _, t := range h.tabs {
		if t.ID == h.activeID {
			return t, nil
		}
	}
	return core.SessionInfo{}, errors.New("no active session")
}

func (h *memoryHost) Open(ctx context.Context, url string, active bool) (core.SessionInfo, error) {
	h.nextID++
	tab := core.SessionInfo{ID: string(rune('a' + h.nextID)), URL: url}
	h.tabs = append(h.tabs, tab)
	if active {
		h.activeID = tab.ID
	}
	return tab, nil
}

func (h *memoryHost) Close(ctx context.Context, id string) error {
	for i, t := range h.tabs {
		if t.ID == id {
			h.tabs = append(h.tabs[:i], h.tabs[i+1:]...)
			return nil
		}
	}
	return errors.New("no session " + id)
}

func (h *memoryHost) Activate(ctx context.Context, id string) error {
	for _, t := range h.tabs {
		if t.ID == id {
			h.activeID = id
			return nil
		}
	}
	return errors.New("no session " + id)
}

func (h *memoryHost) Reload(ctx context.Context, id string) error        { return nil }
func (h *memoryHost) Navigate(ctx context.Context, id, url string) error { return nil }

func (h *memoryHost) Request(ctx context.Context, id string, action session.Action) (map[string]any, error) {
	for _, t := range h.tabs {
		if t.ID == id {
			return map[string]any{"content": "content of " + t.Title, "title": t.Title}, nil
		}
	}
	return nil, errors.New("no session " + id)
}

func (h *memoryHost) Subscribe(fn func()) (unsubscribe func()) { return func() {} }

// echoLLM answers every completion with a canned text.
type echoLLM struct {
	text string
	last llm.Request
}

func (c *echoLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	c.last = req
	return llm.Response{Text: c.text}, nil
}

func testDeps() (Deps, *memoryHost, *echoLLM) {
	host := &memoryHost{
		tabs: []core.SessionInfo{
			{ID: "t1", URL: "https://news.example.com", Title: "Example News"},
			{ID: "t2", URL: "https://docs.example.com", Title: "API Docs"},
		},
		activeID: "t1",
	}
	client := &echoLLM{text: "generated"}
	controller := session.NewController(host)
	return Deps{
		Sessions: controller,
		Synth:    synthesis.New(controller),
		LLM:      client,
		Locale:   "en",
	}, host, client
}

func testRegistry(t *testing.T) (*tool.Registry, *memoryHost, *echoLLM) {
	t.Helper()
	deps, host, client := testDeps()
	reg := tool.NewRegistry()
	RegisterAll(reg, deps)
	return reg, host, client
}

func pageCtx(content string) *core.AgentContext {
	return &core.AgentContext{Page: &core.PageContext{
		URL: "https://news.example.com", Title: "Example News", Content: content,
	}}
}

func TestRegisterAllCatalog(t *testing.T) {
	reg, _, _ := testRegistry(t)
	want := []string{
		"summarize_page", "extract_data", "translate_text", "explain_content",
		"generate_reply", "navigate", "open_tab", "close_tab", "switch_tab",
		"search_tabs", "list_tabs", "compare_tabs",
	}
	for _, name := range want {
		if _, found := reg.Get(name); !found {
			t.Errorf("builtin %q not registered", name)
		}
	}
	if got := len(reg.List()); got != len(want) {
		t.Errorf("catalog size = %d, want %d", got, len(want))
	}
}

func TestSummarizePage(t *testing.T) {
	reg, _, client := testRegistry(t)
	res := reg.Execute(context.Background(),
		tool.NewCall("summarize_page", map[string]any{"length": "short"}), pageCtx("long article body"))

	if !res.Success || res.DisplayText != "generated" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(client.last.InputText, "short summary") || !strings.Contains(client.last.InputText, "long article body") {
		t.Errorf("prompt = %q", client.last.InputText)
	}
}

func TestTranslateTextFallsBackToSelection(t *testing.T) {
	reg, _, client := testRegistry(t)
	agentCtx := pageCtx("page body")
	agentCtx.Selection = "selected words"

	res := reg.Execute(context.Background(),
		tool.NewCall("translate_text", map[string]any{"target_lang": "fr"}), agentCtx)
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(client.last.InputText, "selected words") {
		t.Errorf("selection not preferred: %q", client.last.InputText)
	}

	// With nothing to translate the tool fails with a suggestion.
	res = reg.Execute(context.Background(),
		tool.NewCall("translate_text", map[string]any{"target_lang": "fr"}), &core.AgentContext{})
	if res.Success || len(res.Suggestions) == 0 {
		t.Errorf("empty-source result = %+v", res)
	}
}

func TestExtractData(t *testing.T) {
	reg, _, _ := testRegistry(t)
	content := "Contact a@example.com or b@example.com, again a@example.com. See https://example.com/x for $19.99."

	res := reg.Execute(context.Background(),
		tool.NewCall("extract_data", map[string]any{"entity_type": "email"}), pageCtx(content))
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	data := res.Data.(map[string]any)
	matches := data["matches"].([]string)
	if len(matches) != 2 || matches[0] != "a@example.com" || matches[1] != "b@example.com" {
		t.Errorf("emails = %v", matches)
	}

	res = reg.Execute(context.Background(),
		tool.NewCall("extract_data", map[string]any{"entity_type": "url"}), pageCtx(content))
	matches = res.Data.(map[string]any)["matches"].([]string)
	if len(matches) != 1 || !strings.HasPrefix(matches[0], "https://example.com/x") {
		t.Errorf("urls = %v", matches)
	}

	res = reg.Execute(context.Background(),
		tool.NewCall("extract_data", map[string]any{"entity_type": "price"}), pageCtx(content))
	matches = res.Data.(map[string]any)["matches"].([]string)
	if len(matches) != 1 || matches[0] != "$19.99" {
		t.Errorf("prices = %v", matches)
	}

	// Empty outcome is success with an empty list, not a failure.
	res = reg.Execute(context.Background(),
		tool.NewCall("extract_data", map[string]any{"entity_type": "phone"}), pageCtx("no numbers here"))
	if !res.Success {
		t.Errorf("empty extraction failed: %+v", res)
	}

	// The enum rejects unknown entity kinds before the capability runs.
	res = reg.Execute(context.Background(),
		tool.NewCall("extract_data", map[string]any{"entity_type": "iban"}), pageCtx(content))
	if res.Success {
		t.Error("unknown entity type accepted")
	}
}

func TestTabTools(t *testing.T) {
	reg, host, _ := testRegistry(t)
	ctx := context.Background()
	agentCtx := &core.AgentContext{}

	res := reg.Execute(ctx, tool.NewCall("list_tabs", nil), agentCtx)
	if !res.Success || !strings.Contains(res.DisplayText, "* 1. Example News") {
		t.Errorf("list_tabs = %+v", res)
	}

	res = reg.Execute(ctx, tool.NewCall("search_tabs", map[string]any{"pattern": "docs"}), agentCtx)
	if !res.Success || !strings.Contains(res.DisplayText, "API Docs") {
		t.Errorf("search_tabs = %+v", res)
	}
	res = reg.Execute(ctx, tool.NewCall("search_tabs", map[string]any{"pattern": "nothing"}), agentCtx)
	if res.Success {
		t.Error("search_tabs matched nothing but succeeded")
	}

	res = reg.Execute(ctx, tool.NewCall("switch_tab", map[string]any{"match": "api docs"}), agentCtx)
	if !res.Success || host.activeID != "t2" {
		t.Errorf("switch_tab = %+v, active = %s", res, host.activeID)
	}
	res = reg.Execute(ctx, tool.NewCall("switch_tab", nil), agentCtx)
	if res.Success {
		t.Error("switch_tab without id or match succeeded")
	}

	res = reg.Execute(ctx, tool.NewCall("open_tab", map[string]any{"url": "https://blog.example.com"}), agentCtx)
	if !res.Success {
		t.Fatalf("open_tab = %+v", res)
	}
	if len(host.tabs) != 3 {
		t.Errorf("tabs = %d, want 3", len(host.tabs))
	}

	res = reg.Execute(ctx, tool.NewCall("close_tab", map[string]any{"tab_id": "t2"}), agentCtx)
	if !res.Success || len(host.tabs) != 2 {
		t.Errorf("close_tab = %+v", res)
	}
}

func TestCompareTabs(t *testing.T) {
	reg, _, _ := testRegistry(t)
	res := reg.Execute(context.Background(), tool.NewCall("compare_tabs", nil), &core.AgentContext{})
	if !res.Success {
		t.Fatalf("compare_tabs = %+v", res)
	}
	if !strings.Contains(res.DisplayText, "Cross-session synthesis") {
		t.Errorf("report = %q", res.DisplayText)
	}
	report, isReport := res.Data.(*synthesis.Report)
	if !isReport || len(report.Contexts) != 2 {
		t.Errorf("data = %#v", res.Data)
	}
}
