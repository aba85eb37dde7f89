package tool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petal-labs/petalpilot/core"
)

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool("navigate", "navigation"))
	r.Register(stubTool("open_tab", "tabs"))

	res := r.Execute(context.Background(), NewCall("teleport", nil), &core.AgentContext{})
	if res.Success {
		t.Fatal("unknown tool dispatched successfully")
	}
	if !strings.Contains(res.Error, `"teleport"`) {
		t.Errorf("error = %q", res.Error)
	}
	// Suggestions carry the registered catalog, sorted.
	if len(res.Suggestions) != 2 || res.Suggestions[0] != "navigate" || res.Suggestions[1] != "open_tab" {
		t.Errorf("suggestions = %v", res.Suggestions)
	}
}

func TestExecuteRequiresPageContext(t *testing.T) {
	r := NewRegistry()
	tl := stubTool("summarize_page", "content")
	tl.RequiresPageContext = true
	r.Register(tl)

	res := r.Execute(context.Background(), NewCall("summarize_page", nil), &core.AgentContext{})
	if res.Success {
		t.Fatal("dispatched without page context")
	}
	if len(res.Suggestions) == 0 {
		t.Error("precondition failure has no suggestion")
	}

	withPage := &core.AgentContext{Page: &core.PageContext{Content: "body"}}
	res = r.Execute(context.Background(), NewCall("summarize_page", nil), withPage)
	if !res.Success {
		t.Errorf("dispatch with page context failed: %s", res.Error)
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	r := NewRegistry()
	tl := stubTool("translate_text", "content")
	tl.Parameters = []Parameter{{Name: "target_lang", Type: TypeString, Required: true}}
	r.Register(tl)

	res := r.Execute(context.Background(), NewCall("translate_text", nil), &core.AgentContext{})
	if res.Success {
		t.Fatal("invalid call dispatched")
	}
	if !strings.Contains(res.Error, "target_lang") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecuteMergesDefaults(t *testing.T) {
	r := NewRegistry()
	var seen map[string]any
	r.Register(&Tool{
		Name:       "summarize_page",
		Parameters: []Parameter{{Name: "length", Type: TypeString, Default: "medium"}},
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*Result, error) {
			seen = params
			return Ok(nil, ""), nil
		},
	})

	r.Execute(context.Background(), NewCall("summarize_page", nil), &core.AgentContext{})
	if seen["length"] != "medium" {
		t.Errorf("default not merged, params = %v", seen)
	}
}

func TestExecuteTimeout(t *testing.T) {
	r := NewRegistry(WithExecuteTimeout(20 * time.Millisecond))
	release := make(chan struct{})
	r.Register(&Tool{
		Name: "slow",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*Result, error) {
			<-release
			return Ok(nil, "late"), nil
		},
	})
	defer close(release)

	res := r.Execute(context.Background(), NewCall("slow", nil), &core.AgentContext{})
	if res.Success {
		t.Fatal("slow tool reported success")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("error = %q", res.Error)
	}
	if len(res.Suggestions) == 0 {
		t.Error("timeout carries no suggestions")
	}
}

func TestExecuteCapabilityError(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "flaky",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*Result, error) {
			return nil, errors.New("upstream unavailable")
		},
	})

	res := r.Execute(context.Background(), NewCall("flaky", nil), &core.AgentContext{})
	if res.Success || res.Error != "upstream unavailable" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "explosive",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*Result, error) {
			panic("boom")
		},
	})

	res := r.Execute(context.Background(), NewCall("explosive", nil), &core.AgentContext{})
	if res.Success {
		t.Fatal("panicking tool reported success")
	}
	if !strings.Contains(res.Error, "panicked") || !strings.Contains(res.Error, "boom") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecuteNilResult(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "empty",
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*Result, error) {
			return nil, nil
		},
	})

	res := r.Execute(context.Background(), NewCall("empty", nil), &core.AgentContext{})
	if res.Success {
		t.Fatal("nil result reported success")
	}
}

// recordingObserver captures dispatch records for assertion.
type recordingObserver struct {
	mu         sync.Mutex
	dispatches []Dispatch
}

func (o *recordingObserver) ObserveDispatch(d Dispatch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatches = append(o.dispatches, d)
}

func TestExecuteObservesDispatches(t *testing.T) {
	obs := &recordingObserver{}
	r := NewRegistry(WithObserver(obs))
	r.Register(stubTool("navigate", "navigation"))

	r.Execute(context.Background(), NewCall("navigate", nil), &core.AgentContext{})
	r.Execute(context.Background(), NewCall("missing", nil), &core.AgentContext{})

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.dispatches) != 2 {
		t.Fatalf("observed %d dispatches, want 2", len(obs.dispatches))
	}
	if !obs.dispatches[0].Success || obs.dispatches[0].Tool != "navigate" {
		t.Errorf("first dispatch = %+v", obs.dispatches[0])
	}
	if obs.dispatches[1].Success || obs.dispatches[1].ErrorCode != ErrCodeNotFound {
		t.Errorf("second dispatch = %+v", obs.dispatches[1])
	}
}

func TestNewCallIDsAreUnique(t *testing.T) {
	a := NewCall("navigate", nil)
	b := NewCall("navigate", nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("call ids not unique: %q vs %q", a.ID, b.ID)
	}
	if a.Params == nil {
		t.Error("nil params not initialized")
	}
}
