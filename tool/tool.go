// Package tool implements the capability catalog: tool registration,
// parameter validation, intent-to-tool lookup, and timeout-bounded dispatch.
package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/petalpilot/core"
)

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Parameter declares one input of a tool.
type Parameter struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Required bool      `json:"required"`
	Enum     []string  `json:"enum,omitempty"`    // allowed values, string-typed params only
	Default  any       `json:"default,omitempty"` // merged in when the caller omits the parameter
	Desc     string    `json:"description,omitempty"`
}

// Capability is the unit of work a tool performs. Implementations should
// respect ctx cancellation: the dispatcher races the capability against a
// timeout but does not forcibly stop the losing side, so a capability that
// ignores ctx can keep running after its result is discarded.
type Capability func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*Result, error)

// Tool is a named, parameterized capability the agent can invoke.
// Tools are owned by the Registry for the process lifetime and registered
// once at startup by the composition root.
type Tool struct {
	Name                string
	Description         string
	Category            string
	Parameters          []Parameter
	RequiresPageContext bool
	Execute             Capability
}

// Call is one dispatch request. Calls are created per dispatch and never
// persisted.
type Call struct {
	Tool   string
	Params map[string]any
	ID     string // monotonic-time prefix plus random suffix
}

// NewCall creates a dispatch request with a fresh call identifier.
func NewCall(tool string, params map[string]any) Call {
	if params == nil {
		params = make(map[string]any)
	}
	return Call{
		Tool:   tool,
		Params: params,
		ID:     fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8]),
	}
}

// Result is the outcome of one dispatch. Success and Error are mutually
// exclusive: a successful result never carries an error message and a failed
// one never carries data.
type Result struct {
	Success     bool     `json:"success"`
	Data        any      `json:"data,omitempty"`
	DisplayText string   `json:"display_text,omitempty"`
	Error       string   `json:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Ok builds a successful result.
func Ok(data any, displayText string) *Result {
	return &Result{Success: true, Data: data, DisplayText: displayText}
}

// Fail builds a failed result with optional actionable suggestions.
func Fail(message string, suggestions ...string) *Result {
	return &Result{Success: false, Error: message, Suggestions: suggestions}
}
