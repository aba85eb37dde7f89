package synthesis

import (
	"strings"
	"unicode"

	"github.com/petal-labs/petalpilot/core"
)

const (
	minTokenRunes  = 4  // tokens shorter than this carry no signal
	maxSimilar     = 20 // cap on shared terms reported
	maxUniquePerID = 10 // cap on distinguishing terms per session
)

// CompareContexts derives shared and distinguishing vocabulary across the
// successfully collected contexts. Failed contexts contribute nothing.
// Output order is deterministic: first appearance in the first contributing
// session wins.
func CompareContexts(contexts []core.SessionContext) *core.ComparisonResult {
	result := &core.ComparisonResult{
		Unique: make(map[string][]string),
	}

	type tokenized struct {
		id     string
		order  []string
		tokens map[string]bool
	}
	var sessions []tokenized
	for _, c := range contexts {
		if c.Failed() || c.Content == "" {
			continue
		}
		order, set := tokenize(c.Content)
		sessions = append(sessions, tokenized{id: c.SessionID, order: order, tokens: set})
	}
	if len(sessions) == 0 {
		return result
	}

	if len(sessions) > 1 {
		for _, token := range sessions[0].order {
			shared := true
			for _, other := range sessions[1:] {
				if !other.tokens[token] {
					shared = false
					break
				}
			}
			if shared {
				result.Similarities = append(result.Similarities, token)
				if len(result.Similarities) >= maxSimilar {
					break
				}
			}
		}
	}

	for i, s := range sessions {
		var unique []string
		for _, token := range s.order {
			found := false
			for j, other := range sessions {
				if j != i && other.tokens[token] {
					found = true
					break
				}
			}
			if !found {
				unique = append(unique, token)
				if len(unique) >= maxUniquePerID {
					break
				}
			}
		}
		if len(unique) > 0 {
			result.Unique[s.id] = unique
		}
	}

	if len(sessions) > 1 && len(result.Similarities) == 0 {
		result.Differences = append(result.Differences,
			"no shared vocabulary between sessions")
	}
	return result
}

// tokenize lowers the text and keeps distinct word tokens longer than three
// runes, preserving first-appearance order.
func tokenize(text string) ([]string, map[string]bool) {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var order []string
	set := make(map[string]bool)
	for _, f := range fields {
		if len([]rune(f)) < minTokenRunes || set[f] {
			continue
		}
		set[f] = true
		order = append(order, f)
	}
	return order, set
}
