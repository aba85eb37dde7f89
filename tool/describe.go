package tool

import (
	"fmt"
	"strings"
)

// Description is the presentational form of one catalog entry, consumed by
// the language-generation backend when choosing a capability.
type Description struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
}

// Descriptions renders the catalog in registration order. Purely
// presentational; no side effects.
func (r *Registry) Descriptions() []Description {
	out := make([]Description, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Description{
			Name:        t.Name,
			Description: t.Description,
			Category:    t.Category,
			Parameters:  t.Parameters,
		})
	}
	return out
}

// DescriptionsText renders the catalog as prompt-ready plain text.
func (r *Registry) DescriptionsText() string {
	var sb strings.Builder
	for _, name := range r.order {
		t := r.tools[name]
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
		for _, p := range t.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			fmt.Fprintf(&sb, "    %s (%s, %s)", p.Name, p.Type, required)
			if len(p.Enum) > 0 {
				fmt.Fprintf(&sb, " one of %v", p.Enum)
			}
			if p.Desc != "" {
				fmt.Fprintf(&sb, ": %s", p.Desc)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
