package tool

import (
	"strings"
	"testing"
)

func declTool() *Tool {
	return &Tool{
		Name: "declared",
		Parameters: []Parameter{
			{Name: "text", Type: TypeString, Required: true},
			{Name: "count", Type: TypeNumber},
			{Name: "deep", Type: TypeBoolean, Default: false},
			{Name: "tags", Type: TypeArray},
			{Name: "opts", Type: TypeObject},
			{Name: "mode", Type: TypeString, Enum: []string{"fast", "full"}, Default: "fast"},
		},
	}
}

func TestValidateParametersAggregates(t *testing.T) {
	v := ValidateParameters(declTool(), map[string]any{
		"count": "not a number",
		"mode":  "turbo",
	})
	if v.Valid {
		t.Fatal("invalid parameters passed validation")
	}
	// Missing required, type mismatch, and enum violation all surface at once.
	if len(v.Errors) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(v.Errors), v.Errors)
	}
	joined := strings.Join(v.Errors, "; ")
	for _, want := range []string{`"text"`, `"count"`, `"mode"`} {
		if !strings.Contains(joined, want) {
			t.Errorf("errors missing mention of %s: %s", want, joined)
		}
	}
}

func TestValidateParametersTypes(t *testing.T) {
	v := ValidateParameters(declTool(), map[string]any{
		"text":  "hello",
		"count": 3.0,
		"deep":  true,
		"tags":  []any{"a"},
		"opts":  map[string]any{"k": "v"},
		"mode":  "full",
	})
	if !v.Valid {
		t.Fatalf("valid parameters rejected: %v", v.Errors)
	}

	// Integers satisfy number, string slices satisfy array.
	v = ValidateParameters(declTool(), map[string]any{"text": "x", "count": 3, "tags": []string{"a"}})
	if !v.Valid {
		t.Fatalf("int/[]string rejected: %v", v.Errors)
	}

	// A slice must not satisfy object.
	v = ValidateParameters(declTool(), map[string]any{"text": "x", "opts": []any{"a"}})
	if v.Valid {
		t.Error("array accepted for object parameter")
	}

	// Nil value is treated as absent.
	v = ValidateParameters(declTool(), map[string]any{"text": nil})
	if v.Valid {
		t.Error("nil required parameter accepted")
	}
}

func TestMergeDefaults(t *testing.T) {
	in := map[string]any{"text": "hi"}
	merged := MergeDefaults(declTool(), in)

	if merged["mode"] != "fast" || merged["deep"] != false {
		t.Errorf("defaults not applied: %v", merged)
	}
	if merged["text"] != "hi" {
		t.Errorf("caller value lost: %v", merged)
	}
	if _, present := merged["count"]; present {
		t.Error("parameter without default was filled in")
	}
	if _, present := in["mode"]; present {
		t.Error("input map was mutated")
	}

	// Caller values win over defaults.
	merged = MergeDefaults(declTool(), map[string]any{"text": "hi", "mode": "full"})
	if merged["mode"] != "full" {
		t.Errorf("default overrode caller value: %v", merged["mode"])
	}
}
