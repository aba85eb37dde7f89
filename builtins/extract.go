package builtins

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/tool"
)

var entityPatterns = map[string]*regexp.Regexp{
	"email": regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	"phone": regexp.MustCompile(`\+?\d[\d\s\-()]{6,}\d`),
	"url":   regexp.MustCompile(`https?://[^\s<>"']+`),
	"price": regexp.MustCompile(`(?:[$€£¥]|USD|EUR|CNY|JPY)\s?\d+(?:[.,]\d+)?|\d+(?:[.,]\d+)?\s?(?:元|円|dollars?|euros?)`),
}

// extractData pulls structured entities out of the page with pattern
// matching. It is deterministic and needs no generation backend.
func extractData() *tool.Tool {
	return &tool.Tool{
		Name:        "extract_data",
		Description: "Extract structured entities (emails, phones, URLs, prices) from the current page",
		Category:    "content",
		Parameters: []tool.Parameter{
			{Name: "entity_type", Type: tool.TypeString, Required: true,
				Enum: []string{"email", "phone", "url", "price"}, Desc: "kind of entity to extract"},
		},
		RequiresPageContext: true,
		Execute: func(ctx context.Context, params map[string]any, agentCtx *core.AgentContext) (*tool.Result, error) {
			entityType, _ := params["entity_type"].(string)
			pattern := entityPatterns[entityType]

			matches := dedupe(pattern.FindAllString(agentCtx.Page.Content, -1))
			if len(matches) == 0 {
				return tool.Ok(map[string]any{"entity_type": entityType, "matches": []string{}},
					fmt.Sprintf("no %s entities found", entityType)), nil
			}
			return tool.Ok(
				map[string]any{"entity_type": entityType, "matches": matches},
				fmt.Sprintf("found %d %s entities:\n%s", len(matches), entityType, strings.Join(matches, "\n")),
			), nil
		},
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
