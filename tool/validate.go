package tool

import "fmt"

// Validation aggregates parameter diagnostics for one call. All checks run;
// nothing is fail-fast, so every violation surfaces at once.
type Validation struct {
	Valid  bool
	Errors []string
}

// ValidateParameters checks supplied parameters against a tool's
// declarations: required presence, runtime type against declared type, and
// enum membership. Arrays are checked before the generic object case since
// a Go slice would otherwise satisfy "object".
func ValidateParameters(t *Tool, params map[string]any) Validation {
	v := Validation{Valid: true, Errors: make([]string, 0)}

	for _, decl := range t.Parameters {
		value, present := params[decl.Name]

		if !present || value == nil {
			if decl.Required {
				v.Errors = append(v.Errors, fmt.Sprintf("missing required parameter %q", decl.Name))
			}
			continue
		}

		if !matchesType(value, decl.Type) {
			v.Errors = append(v.Errors, fmt.Sprintf(
				"parameter %q: expected %s, got %T", decl.Name, decl.Type, value))
		}

		if len(decl.Enum) > 0 {
			if s, ok := value.(string); !ok || !inEnum(s, decl.Enum) {
				v.Errors = append(v.Errors, fmt.Sprintf(
					"parameter %q: value %v is not one of %v", decl.Name, value, decl.Enum))
			}
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// MergeDefaults returns the call parameters with declared defaults filled in
// for missing optional parameters. The input map is not mutated.
func MergeDefaults(t *Tool, params map[string]any) map[string]any {
	merged := make(map[string]any, len(params))
	for k, val := range params {
		merged[k] = val
	}
	for _, decl := range t.Parameters {
		if _, present := merged[decl.Name]; !present && decl.Default != nil {
			merged[decl.Name] = decl.Default
		}
	}
	return merged
}

func matchesType(value any, declared ParamType) bool {
	switch declared {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		switch value.(type) {
		case []any, []string, []float64:
			return true
		}
		return false
	case TypeObject:
		// Arrays are special-cased above; only map-shaped values count here.
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func inEnum(value string, enum []string) bool {
	for _, allowed := range enum {
		if value == allowed {
			return true
		}
	}
	return false
}
