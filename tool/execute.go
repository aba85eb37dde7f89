package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/petal-labs/petalpilot/core"
)

// Execute dispatches one call. Lookup, precondition, and validation
// failures come back as structured Result failures with actionable
// suggestions rather than errors; only the transport between caller and
// registry is infallible.
//
// The capability runs racing a fixed timeout. Whichever settles first
// determines the result; the losing side is not actively cancelled, so a
// capability that does not respect ctx cancellation can keep consuming
// resources after its result is discarded.
func (r *Registry) Execute(ctx context.Context, call Call, agentCtx *core.AgentContext) *Result {
	start := time.Now()

	t, ok := r.tools[call.Tool]
	if !ok {
		r.observe(call, start, false, ErrCodeNotFound)
		return Fail(
			fmt.Sprintf("unknown tool %q", call.Tool),
			r.Names()...,
		)
	}

	if t.RequiresPageContext && !agentCtx.HasPage() {
		r.observe(call, start, false, ErrCodePrecondition)
		return Fail(
			fmt.Sprintf("tool %q requires page context and none is available", call.Tool),
			"navigate to a page first",
		)
	}

	if v := ValidateParameters(t, call.Params); !v.Valid {
		r.observe(call, start, false, ErrCodeValidation)
		return Fail(strings.Join(v.Errors, "; "))
	}

	params := MergeDefaults(t, call.Params)

	result, err := r.race(ctx, t, params, agentCtx)
	switch {
	case err != nil && CodeOf(err) == ErrCodeTimeout:
		r.observe(call, start, false, ErrCodeTimeout)
		return Fail(
			fmt.Sprintf("tool %q timed out after %s", call.Tool, r.timeout),
			"try a simpler input",
			"check your connectivity",
		)
	case err != nil:
		r.observe(call, start, false, ErrCodeCapability)
		return Fail(err.Error())
	case result == nil:
		r.observe(call, start, false, ErrCodeCapability)
		return Fail(fmt.Sprintf("tool %q returned no result", call.Tool))
	}

	r.observe(call, start, result.Success, "")
	return result
}

type raceOutcome struct {
	result *Result
	err    error
}

// race runs the capability against the execution bound. The capability
// receives the caller's ctx untouched so cooperative implementations can
// still observe upstream cancellation.
func (r *Registry) race(ctx context.Context, t *Tool, params map[string]any, agentCtx *core.AgentContext) (*Result, error) {
	done := make(chan raceOutcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- raceOutcome{err: NewError(ErrCodeCapability,
					fmt.Sprintf("tool %q panicked: %v", t.Name, rec), false, nil)}
			}
		}()
		result, err := t.Execute(ctx, params, agentCtx)
		done <- raceOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case outcome := <-done:
		return outcome.result, outcome.err
	case <-ctx.Done():
		return nil, NewError(ErrCodeCapability, "execution cancelled", false, ctx.Err())
	case <-timer.C:
		return nil, NewError(ErrCodeTimeout,
			fmt.Sprintf("execution exceeded %s", r.timeout), true, nil)
	}
}

func (r *Registry) observe(call Call, start time.Time, success bool, errCode string) {
	r.observer.ObserveDispatch(Dispatch{
		Tool:       call.Tool,
		CallID:     call.ID,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    success,
		ErrorCode:  errCode,
	})
}
