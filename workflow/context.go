// Package workflow provides the named-variable store, string interpolation,
// condition evaluation, and loop iteration that thread state through
// multi-step tool chains.
package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/petal-labs/petalpilot/workflow/expr"
)

// VarType is the declared type of a workflow variable.
type VarType string

const (
	VarString  VarType = "string"
	VarNumber  VarType = "number"
	VarBoolean VarType = "boolean"
	VarArray   VarType = "array"
	VarObject  VarType = "object"
)

// Provenance records where a variable's value came from.
type Provenance string

const (
	SourceUser      Provenance = "user"      // entered by the user
	SourceExtracted Provenance = "extracted" // pulled from a page
	SourceComputed  Provenance = "computed"  // produced by a tool step
)

// Variable is one named workflow value. Names are unique within a Context;
// setting an existing name overwrites value and provenance.
type Variable struct {
	Name   string     `json:"name"`
	Value  any        `json:"value"`
	Type   VarType    `json:"type"`
	Source Provenance `json:"source"`
}

type loopFrame struct {
	variable string
	index    int
	items    []any
}

// Context holds the variable map and loop stack for one workflow run.
//
// A Context is plain mutable state private to one run. Running two workflows
// concurrently against the same instance is not supported; use separate
// instances. No internal locking is performed.
type Context struct {
	vars  map[string]Variable
	loops []loopFrame
}

// NewContext creates an empty workflow context.
func NewContext() *Context {
	return &Context{vars: make(map[string]Variable)}
}

// Set stores a variable, overwriting any existing value and provenance
// recorded under the same name.
func (c *Context) Set(name string, value any, source Provenance) {
	c.vars[name] = Variable{
		Name:   name,
		Value:  value,
		Type:   typeOf(value),
		Source: source,
	}
}

// Get returns a variable's value.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.vars[name]
	if !ok {
		return nil, false
	}
	return v.Value, true
}

// Describe returns the full variable record, including type and provenance.
func (c *Context) Describe(name string) (Variable, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Delete removes a variable. Deleting an absent name is a no-op.
func (c *Context) Delete(name string) {
	delete(c.vars, name)
}

// Clear removes all variables. Loop state is untouched.
func (c *Context) Clear() {
	c.vars = make(map[string]Variable)
}

// SetFromExtracted bulk-imports a key/value map (structured data pulled from
// a page) as extracted variables.
func (c *Context) SetFromExtracted(data map[string]any) {
	for name, value := range data {
		c.Set(name, value, SourceExtracted)
	}
}

// Export serializes the variable map as a flat name -> value map suitable
// for key-value persistence. Loop state is run-scoped and never exported.
func (c *Context) Export() map[string]any {
	out := make(map[string]any, len(c.vars))
	for name, v := range c.vars {
		out[name] = v.Value
	}
	return out
}

// Import restores variables from an exported map. Imported values are
// recorded with computed provenance since their origin is no longer known.
func (c *Context) Import(values map[string]any) {
	for name, value := range values {
		c.Set(name, value, SourceComputed)
	}
}

// EnterLoop pushes a loop frame at index 0. Frames nest strictly LIFO.
func (c *Context) EnterLoop(variable string, items []any) {
	c.loops = append(c.loops, loopFrame{variable: variable, items: items})
}

// NextLoopItem advances the top loop frame and reports whether further
// items remain. Returns false when no loop is active.
func (c *Context) NextLoopItem() bool {
	if len(c.loops) == 0 {
		return false
	}
	top := &c.loops[len(c.loops)-1]
	top.index++
	return top.index < len(top.items)
}

// ExitLoop pops the top loop frame. Popping with no active loop is a no-op.
func (c *Context) ExitLoop() {
	if len(c.loops) == 0 {
		return
	}
	c.loops = c.loops[:len(c.loops)-1]
}

// LoopIndex returns the top frame's current index, or -1 when no loop is
// active.
func (c *Context) LoopIndex() int {
	if len(c.loops) == 0 {
		return -1
	}
	return c.loops[len(c.loops)-1].index
}

// LoopItem returns the top frame's current item.
func (c *Context) LoopItem() (any, bool) {
	if len(c.loops) == 0 {
		return nil, false
	}
	top := c.loops[len(c.loops)-1]
	if top.index < 0 || top.index >= len(top.items) {
		return nil, false
	}
	return top.items[top.index], true
}

var placeholderRE = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// Interpolate replaces every {{path}} token in the template. The first path
// segment resolves against the active loop frame when its variable name
// matches (the special path "loop.index" yields the current index),
// otherwise against the variable map; remaining dot-separated segments walk
// nested properties. Undefined values interpolate to the empty string.
func (c *Context) Interpolate(template string) string {
	return placeholderRE.ReplaceAllStringFunc(template, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		val, ok := c.resolvePath(path)
		if !ok || val == nil {
			return ""
		}
		return stringify(val)
	})
}

// Evaluate substitutes {{path}} tokens as expression literals (strings
// quoted, numbers and booleans verbatim, collections JSON-serialized), then
// parses and evaluates the result against the closed condition grammar.
// Input outside the grammar fails closed: the condition is false, never an
// error surfaced to the chain.
func (c *Context) Evaluate(condition string) bool {
	substituted := placeholderRE.ReplaceAllStringFunc(condition, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		val, ok := c.resolvePath(path)
		if !ok {
			return "null"
		}
		return literal(val)
	})

	node, err := expr.Parse(substituted)
	if err != nil {
		return false
	}
	result, err := expr.EvalBool(node, c.Export())
	if err != nil {
		return false
	}
	return result
}

// resolvePath resolves a dot-separated path against loop state first, then
// the variable map.
func (c *Context) resolvePath(path string) (any, bool) {
	segments := strings.Split(path, ".")
	head, rest := segments[0], segments[1:]

	if len(c.loops) > 0 {
		top := c.loops[len(c.loops)-1]
		if head == "loop" && len(rest) == 1 && rest[0] == "index" {
			return top.index, true
		}
		if head == top.variable {
			item, ok := c.LoopItem()
			if !ok {
				return nil, false
			}
			return walk(item, rest)
		}
	}

	v, ok := c.vars[head]
	if !ok {
		return nil, false
	}
	return walk(v.Value, rest)
}

// walk follows nested property segments through maps. Any undefined
// intermediate value resolves to not-found.
func walk(value any, segments []string) (any, bool) {
	current := value
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// stringify renders a value for template interpolation.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// literal renders a value as an expression literal for condition
// substitution. Strings are quoted so their content can never be parsed as
// operators; collections serialize to JSON (objects fall outside the
// grammar and therefore fail closed).
func literal(val any) string {
	switch v := val.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return strconv.Quote(fmt.Sprintf("%v", v))
		}
		return string(data)
	}
}

func typeOf(value any) VarType {
	switch value.(type) {
	case string:
		return VarString
	case float64, float32, int, int32, int64:
		return VarNumber
	case bool:
		return VarBoolean
	case []any:
		return VarArray
	default:
		return VarObject
	}
}
