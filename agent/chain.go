package agent

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/tool"
	"github.com/petal-labs/petalpilot/workflow"
)

// Step is one unit of a multi-step chain. Exactly one of Tool or ForEach is
// set. String parameter values are interpolated against the workflow state
// before dispatch; Condition, when present, gates the step and fails closed.
type Step struct {
	Tool            string         `json:"tool,omitempty"`
	Params          map[string]any `json:"params,omitempty"`
	Condition       string         `json:"condition,omitempty"`
	SaveAs          string         `json:"save_as,omitempty"`
	ContinueOnError bool           `json:"continue_on_error,omitempty"`
	ForEach         *ForEach       `json:"for_each,omitempty"`
}

// ForEach iterates body steps once per item of a list-valued variable. The
// loop variable and {{loop.index}} are resolvable inside the body.
type ForEach struct {
	Items    string `json:"items"`    // name of a list-valued variable
	Variable string `json:"variable"` // loop variable name
	Steps    []Step `json:"steps"`
}

// Chain is an ordered sequence of steps sharing one workflow context.
type Chain struct {
	Name  string `json:"name,omitempty"`
	Steps []Step `json:"steps"`
}

// StepOutcome records how one step went.
type StepOutcome struct {
	Tool    string
	Skipped bool // condition evaluated false
	Result  *tool.Result
}

// RunReport is the outcome of one chain run.
type RunReport struct {
	Outcomes []StepOutcome
	Stopped  bool // an interrupt was requested between steps
	Failed   bool // a step failed and the chain did not continue
}

// Runner executes chains against a registry and a shared workflow context.
// Interrupts are honored between steps only; a step in flight runs to its
// own timeout.
type Runner struct {
	registry *tool.Registry
	vars     *workflow.Context
	log      *slog.Logger

	stopped atomic.Bool
}

// NewRunner creates a chain runner.
func NewRunner(registry *tool.Registry, vars *workflow.Context, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{registry: registry, vars: vars, log: log}
}

// RequestStop asks the runner to halt before its next step. Safe to call
// from any goroutine.
func (r *Runner) RequestStop() {
	r.stopped.Store(true)
}

// Run executes the chain sequentially. A failing step halts the run unless
// the step opts into ContinueOnError.
func (r *Runner) Run(ctx context.Context, chain Chain, agentCtx *core.AgentContext) *RunReport {
	r.stopped.Store(false)
	report := &RunReport{}
	r.runSteps(ctx, chain.Steps, agentCtx, report)
	return report
}

// runSteps reports whether the run should continue.
func (r *Runner) runSteps(ctx context.Context, steps []Step, agentCtx *core.AgentContext, report *RunReport) bool {
	for _, step := range steps {
		if r.stopped.Load() || ctx.Err() != nil {
			report.Stopped = true
			return false
		}

		if step.Condition != "" && !r.vars.Evaluate(step.Condition) {
			report.Outcomes = append(report.Outcomes, StepOutcome{Tool: step.Tool, Skipped: true})
			continue
		}

		if step.ForEach != nil {
			if !r.runForEach(ctx, *step.ForEach, agentCtx, report) {
				return false
			}
			continue
		}

		outcome := r.runOne(ctx, step, agentCtx)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Result != nil && !outcome.Result.Success && !step.ContinueOnError {
			report.Failed = true
			return false
		}
	}
	return true
}

func (r *Runner) runForEach(ctx context.Context, loop ForEach, agentCtx *core.AgentContext, report *RunReport) bool {
	value, found := r.vars.Get(loop.Items)
	if !found {
		r.log.Warn("loop over undefined variable", "items", loop.Items)
		return true
	}
	items, isList := value.([]any)
	if !isList || len(items) == 0 {
		return true
	}

	r.vars.EnterLoop(loop.Variable, items)
	defer r.vars.ExitLoop()

	for {
		if !r.runSteps(ctx, loop.Steps, agentCtx, report) {
			return false
		}
		if !r.vars.NextLoopItem() {
			return true
		}
	}
}

func (r *Runner) runOne(ctx context.Context, step Step, agentCtx *core.AgentContext) StepOutcome {
	params := r.interpolateParams(step.Params)
	call := tool.NewCall(step.Tool, params)

	r.log.Debug("chain step", "tool", step.Tool, "call", call.ID)
	result := r.registry.Execute(ctx, call, agentCtx)

	if result.Success && step.SaveAs != "" {
		r.vars.Set(step.SaveAs, result.Data, workflow.SourceComputed)
	}
	return StepOutcome{Tool: step.Tool, Result: result}
}

// interpolateParams resolves {{path}} tokens in string values, including
// inside nested maps and lists. Non-string values pass through.
func (r *Runner) interpolateParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = r.interpolateValue(v)
	}
	return out
}

func (r *Runner) interpolateValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.vars.Interpolate(val)
	case map[string]any:
		return r.interpolateParams(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.interpolateValue(item)
		}
		return out
	default:
		return v
	}
}
