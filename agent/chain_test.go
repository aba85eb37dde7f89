package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/tool"
	"github.com/petal-labs/petalpilot/workflow"
)

// chainHarness wires a registry with recording tools and a fresh workflow
// context.
type chainHarness struct {
	registry *tool.Registry
	vars     *workflow.Context
	runner   *Runner

	mu    sync.Mutex
	calls []map[string]any
}

func newChainHarness(t *testing.T) *chainHarness {
	t.Helper()
	h := &chainHarness{
		registry: tool.NewRegistry(),
		vars:     workflow.NewContext(),
	}
	h.runner = NewRunner(h.registry, h.vars, nil)

	h.registry.Register(&tool.Tool{
		Name: "echo",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			h.mu.Lock()
			h.calls = append(h.calls, params)
			h.mu.Unlock()
			return tool.Ok(params["text"], ""), nil
		},
	})
	h.registry.Register(&tool.Tool{
		Name: "broken",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			return tool.Fail("deliberate failure"), nil
		},
	})
	return h
}

func (h *chainHarness) run(steps ...Step) *RunReport {
	return h.runner.Run(context.Background(), Chain{Steps: steps}, &core.AgentContext{})
}

func TestRunSequential(t *testing.T) {
	h := newChainHarness(t)
	report := h.run(
		Step{Tool: "echo", Params: map[string]any{"text": "one"}},
		Step{Tool: "echo", Params: map[string]any{"text": "two"}},
	)

	if report.Failed || report.Stopped {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("outcomes = %d", len(report.Outcomes))
	}
	if h.calls[0]["text"] != "one" || h.calls[1]["text"] != "two" {
		t.Errorf("call order = %v", h.calls)
	}
}

func TestRunInterpolatesParams(t *testing.T) {
	h := newChainHarness(t)
	h.vars.Set("topic", "golang", workflow.SourceUser)
	h.vars.Set("user", map[string]any{"name": "alice"}, workflow.SourceUser)

	h.run(Step{Tool: "echo", Params: map[string]any{
		"text":   "about {{topic}}",
		"nested": map[string]any{"who": "{{user.name}}"},
		"list":   []any{"{{topic}}", 7},
	}})

	got := h.calls[0]
	if got["text"] != "about golang" {
		t.Errorf("text = %v", got["text"])
	}
	nested := got["nested"].(map[string]any)
	if nested["who"] != "alice" {
		t.Errorf("nested = %v", nested)
	}
	list := got["list"].([]any)
	if list[0] != "golang" || list[1] != 7 {
		t.Errorf("list = %v", list)
	}
}

func TestRunConditionSkips(t *testing.T) {
	h := newChainHarness(t)
	h.vars.Set("price", 150.0, workflow.SourceExtracted)

	report := h.run(
		Step{Tool: "echo", Condition: "{{price}} < 100", Params: map[string]any{"text": "cheap"}},
		Step{Tool: "echo", Condition: "{{price}} >= 100", Params: map[string]any{"text": "pricey"}},
	)

	if !report.Outcomes[0].Skipped {
		t.Error("false condition did not skip")
	}
	if report.Outcomes[1].Skipped {
		t.Error("true condition skipped")
	}
	if len(h.calls) != 1 || h.calls[0]["text"] != "pricey" {
		t.Errorf("calls = %v", h.calls)
	}
}

func TestRunSaveAs(t *testing.T) {
	h := newChainHarness(t)
	report := h.run(
		Step{Tool: "echo", Params: map[string]any{"text": "stored"}, SaveAs: "last"},
		Step{Tool: "echo", Params: map[string]any{"text": "got {{last}}"}},
	)

	if report.Failed {
		t.Fatalf("report = %+v", report)
	}
	if val, _ := h.vars.Get("last"); val != "stored" {
		t.Errorf("saved value = %v", val)
	}
	if h.calls[1]["text"] != "got stored" {
		t.Errorf("second call = %v", h.calls[1])
	}
}

func TestRunHaltsOnFailure(t *testing.T) {
	h := newChainHarness(t)
	report := h.run(
		Step{Tool: "broken"},
		Step{Tool: "echo", Params: map[string]any{"text": "never"}},
	)

	if !report.Failed {
		t.Fatal("failure not reported")
	}
	if len(report.Outcomes) != 1 {
		t.Errorf("outcomes = %d, want 1", len(report.Outcomes))
	}
	if len(h.calls) != 0 {
		t.Error("step after failure still ran")
	}
}

func TestRunContinueOnError(t *testing.T) {
	h := newChainHarness(t)
	report := h.run(
		Step{Tool: "broken", ContinueOnError: true},
		Step{Tool: "echo", Params: map[string]any{"text": "after"}},
	)

	if report.Failed {
		t.Error("tolerated failure marked the run failed")
	}
	if len(report.Outcomes) != 2 || len(h.calls) != 1 {
		t.Errorf("outcomes = %d, calls = %d", len(report.Outcomes), len(h.calls))
	}
}

func TestRunForEach(t *testing.T) {
	h := newChainHarness(t)
	h.vars.Set("items", []any{
		map[string]any{"title": "first"},
		map[string]any{"title": "second"},
		map[string]any{"title": "third"},
	}, workflow.SourceComputed)

	report := h.run(Step{ForEach: &ForEach{
		Items:    "items",
		Variable: "item",
		Steps: []Step{
			{Tool: "echo", Params: map[string]any{"text": "{{item.title}} #{{loop.index}}"}},
		},
	}})

	if report.Failed || report.Stopped {
		t.Fatalf("report = %+v", report)
	}
	want := []string{"first #0", "second #1", "third #2"}
	if len(h.calls) != len(want) {
		t.Fatalf("calls = %d, want %d", len(h.calls), len(want))
	}
	for i, w := range want {
		if h.calls[i]["text"] != w {
			t.Errorf("iteration %d = %v, want %q", i, h.calls[i]["text"], w)
		}
	}
	// Loop state is popped after the loop.
	if h.vars.LoopIndex() != -1 {
		t.Errorf("loop index after run = %d", h.vars.LoopIndex())
	}
}

func TestRunForEachMissingOrEmpty(t *testing.T) {
	h := newChainHarness(t)
	loop := Step{ForEach: &ForEach{Items: "missing", Variable: "item", Steps: []Step{{Tool: "echo"}}}}
	report := h.run(loop, Step{Tool: "echo", Params: map[string]any{"text": "after"}})

	if report.Failed || report.Stopped {
		t.Fatalf("report = %+v", report)
	}
	if len(h.calls) != 1 || h.calls[0]["text"] != "after" {
		t.Errorf("calls = %v", h.calls)
	}

	h.vars.Set("empty", []any{}, workflow.SourceComputed)
	h.calls = nil
	report = h.run(Step{ForEach: &ForEach{Items: "empty", Variable: "item", Steps: []Step{{Tool: "echo"}}}})
	if len(h.calls) != 0 || report.Failed {
		t.Errorf("empty list looped: %v", h.calls)
	}
}

func TestRequestStop(t *testing.T) {
	h := newChainHarness(t)
	h.registry.Register(&tool.Tool{
		Name: "halt",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			h.runner.RequestStop()
			return tool.Ok(nil, ""), nil
		},
	})

	report := h.run(
		Step{Tool: "halt"},
		Step{Tool: "echo", Params: map[string]any{"text": "never"}},
	)

	if !report.Stopped {
		t.Fatal("stop request ignored")
	}
	// The in-flight step finishes; only the following one is withheld.
	if len(report.Outcomes) != 1 {
		t.Errorf("outcomes = %d, want 1", len(report.Outcomes))
	}
	if len(h.calls) != 0 {
		t.Error("step ran after stop request")
	}

	// A fresh Run clears the stop flag.
	report = h.run(Step{Tool: "echo", Params: map[string]any{"text": "again"}})
	if report.Stopped || len(h.calls) != 1 {
		t.Errorf("flag not cleared: %+v", report)
	}
}

func TestRunHonorsContextCancel(t *testing.T) {
	h := newChainHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := h.runner.Run(ctx, Chain{Steps: []Step{{Tool: "echo"}}}, &core.AgentContext{})
	if !report.Stopped || len(report.Outcomes) != 0 {
		t.Errorf("report = %+v", report)
	}
}
