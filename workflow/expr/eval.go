package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// Eval evaluates a parsed expression against a variable namespace.
// Undefined variables resolve to nil rather than erroring so conditions can
// probe optional state.
func Eval(n Node, vars map[string]any) (any, error) {
	ev := &evaluator{vars: vars}
	return ev.eval(n)
}

// EvalBool evaluates an expression and coerces the result to a boolean using
// the truthiness rules below.
func EvalBool(n Node, vars map[string]any) (bool, error) {
	val, err := Eval(n, vars)
	if err != nil {
		return false, err
	}
	return IsTruthy(val), nil
}

type evaluator struct {
	vars map[string]any
}

func (ev *evaluator) eval(n Node) (any, error) {
	switch node := n.(type) {
	case *Literal:
		return node.Value, nil

	case *Ident:
		val, ok := ev.vars[node.Name]
		if !ok {
			return nil, nil
		}
		return val, nil

	case *Member:
		obj, err := ev.eval(node.Object)
		if err != nil {
			return nil, err
		}
		return member(obj, node.Property)

	case *Index:
		obj, err := ev.eval(node.Object)
		if err != nil {
			return nil, err
		}
		key, err := ev.eval(node.Key)
		if err != nil {
			return nil, err
		}
		return index(obj, key)

	case *List:
		result := make([]any, len(node.Elements))
		for i, elem := range node.Elements {
			val, err := ev.eval(elem)
			if err != nil {
				return nil, err
			}
			result[i] = val
		}
		return result, nil

	case *Not:
		val, err := ev.eval(node.Operand)
		if err != nil {
			return nil, err
		}
		return !IsTruthy(val), nil

	case *Binary:
		return ev.evalBinary(node)

	default:
		return nil, fmt.Errorf("unknown expression node %T", n)
	}
}

func (ev *evaluator) evalBinary(n *Binary) (any, error) {
	// Short-circuit logical operators.
	switch n.Op {
	case TokenAnd:
		left, err := ev.eval(n.Left)
		if err != nil {
			return nil, err
		}
		if !IsTruthy(left) {
			return false, nil
		}
		right, err := ev.eval(n.Right)
		if err != nil {
			return nil, err
		}
		return IsTruthy(right), nil

	case TokenOr:
		left, err := ev.eval(n.Left)
		if err != nil {
			return nil, err
		}
		if IsTruthy(left) {
			return true, nil
		}
		right, err := ev.eval(n.Right)
		if err != nil {
			return nil, err
		}
		return IsTruthy(right), nil
	}

	left, err := ev.eval(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case TokenEq:
		return equal(left, right), nil
	case TokenNeq:
		return !equal(left, right), nil
	case TokenGt, TokenGte, TokenLt, TokenLte:
		cmp, ok := compare(left, right)
		if !ok {
			// Incomparable operands make the comparison false, not an error.
			return false, nil
		}
		switch n.Op {
		case TokenGt:
			return cmp > 0, nil
		case TokenGte:
			return cmp >= 0, nil
		case TokenLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case TokenIn:
		return contains(right, left), nil
	case TokenContains:
		return contains(left, right), nil
	default:
		return nil, fmt.Errorf("unknown binary operator %s", n.Op)
	}
}

// IsTruthy coerces a value to a boolean.
// Falsy: nil, false, 0, "", empty slice, empty map.
func IsTruthy(val any) bool {
	if val == nil {
		return false
	}
	switch v := val.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	default:
		rv := reflect.ValueOf(val)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return rv.Len() > 0
		}
		return true
	}
}

// equal follows reflect.DeepEqual semantics with numeric normalization.
func equal(a, b any) bool {
	af, aOK := toFloat64(a)
	bf, bOK := toFloat64(b)
	if aOK && bOK {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values. Numbers compare numerically, strings
// lexically; anything else is incomparable.
func compare(a, b any) (int, bool) {
	af, aOK := toFloat64(a)
	bf, bOK := toFloat64(b)
	if aOK && bOK {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}
	return 0, false
}

// contains reports membership: string containment for string pairs,
// element membership for slices.
func contains(container, item any) bool {
	if container == nil {
		return false
	}
	if cs, ok := container.(string); ok {
		is, ok := item.(string)
		return ok && strings.Contains(cs, is)
	}
	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(item, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// member accesses a property on a map-like object. The built-in property
// "length" yields element count for strings, slices, and maps.
func member(obj any, prop string) (any, error) {
	if obj == nil {
		return nil, nil
	}

	if prop == "length" {
		rv := reflect.ValueOf(obj)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
			return float64(rv.Len()), nil
		}
		return nil, nil
	}

	switch v := obj.(type) {
	case map[string]any:
		return v[prop], nil
	default:
		rv := reflect.ValueOf(obj)
		if rv.Kind() == reflect.Map {
			val := rv.MapIndex(reflect.ValueOf(prop))
			if val.IsValid() {
				return val.Interface(), nil
			}
		}
		return nil, nil
	}
}

// index accesses an element by key: string keys behave like member access,
// numeric keys index slices. Out-of-range indexes yield nil.
func index(obj any, key any) (any, error) {
	if obj == nil {
		return nil, nil
	}

	if name, ok := key.(string); ok {
		return member(obj, name)
	}

	f, ok := toFloat64(key)
	if !ok {
		return nil, fmt.Errorf("invalid index type %T", key)
	}
	i := int(f)

	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if i < 0 || i >= rv.Len() {
			return nil, nil
		}
		return rv.Index(i).Interface(), nil
	}
	return nil, nil
}
