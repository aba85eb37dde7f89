// Package intent classifies free-text utterances into structured intents,
// resolves pronoun-like references against live context, and keeps a bounded
// history of analyzed intents.
package intent

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/petal-labs/petalpilot/core"
)

const (
	// historyLimit bounds the intent history buffer; oldest entries are
	// dropped first.
	historyLimit = 10

	// clarificationMaxRunes is the short-length threshold for the
	// clarification rule.
	clarificationMaxRunes = 30

	// backScanTurns and backScanMinLen bound the backward scan used for
	// "it"-style reference resolution.
	backScanTurns  = 5
	backScanMinLen = 20
)

// Tracker analyzes utterances and retains the most recent intents.
// Construct one per conversation with NewTracker; it is not safe for
// concurrent use from multiple goroutines.
type Tracker struct {
	history []core.Intent
	log     *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// NewTracker creates an intent tracker with an empty history.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AnalyzeIntent classifies one utterance. Classification precedence, first
// match wins: confirmation, clarification, command, query, chat.
func (t *Tracker) AnalyzeIntent(message string, history []core.ChatMessage) core.Intent {
	normalized := normalize(message)

	action := detectAction(normalized)
	target := detectTarget(normalized)

	var intentType core.IntentType
	switch {
	case matchesWordList(normalized, confirmationWords):
		intentType = core.IntentConfirmation
	case isClarification(normalized, history):
		intentType = core.IntentClarification
	case action != "":
		intentType = core.IntentCommand
	case isQuestion(normalized):
		intentType = core.IntentQuery
	default:
		intentType = core.IntentChat
	}

	result := core.Intent{
		Type:       intentType,
		Action:     action,
		Target:     target,
		Parameters: extractParameters(message, action),
		Confidence: calculateConfidence(intentType, action, target),
		RawInput:   message,
		At:         time.Now(),
	}

	t.remember(result)
	t.log.Debug("intent analyzed",
		"type", result.Type, "action", action, "target", target,
		"confidence", result.Confidence)
	return result
}

// History returns the retained intents, oldest first. At most the last 10
// are kept.
func (t *Tracker) History() []core.Intent {
	out := make([]core.Intent, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Tracker) remember(in core.Intent) {
	t.history = append(t.history, in)
	if len(t.history) > historyLimit {
		t.history = t.history[len(t.history)-historyLimit:]
	}
}

// ResolveReference substitutes a vague pointer with concrete context.
// Checks run in order: page wording, selection wording, backward reference.
// When nothing matches, or the referenced context is absent, the original
// text comes back unresolved with type unknown.
func (t *Tracker) ResolveReference(reference string, ctx *core.AgentContext) core.ResolvedReference {
	normalized := normalize(reference)

	if containsAny(normalized, pageReferenceWords) && ctx.HasPage() {
		return core.ResolvedReference{
			Value:    ctx.Page.Content,
			Type:     core.ResolvePage,
			Original: reference,
		}
	}

	if containsAny(normalized, selectionReferenceWords) && ctx != nil && ctx.Selection != "" {
		return core.ResolvedReference{
			Value:    ctx.Selection,
			Type:     core.ResolveSelection,
			Original: reference,
		}
	}

	if matchesWordList(normalized, backReferenceWords) {
		if prev := ctx.LastAssistantMessage(backScanTurns, backScanMinLen); prev != "" {
			return core.ResolvedReference{
				Value:    prev,
				Type:     core.ResolvePreviousMessage,
				Original: reference,
			}
		}
	}

	return core.ResolvedReference{
		Value:    reference,
		Type:     core.ResolveUnknown,
		Original: reference,
	}
}

// IsStopCommand reports whether the message is an interrupt request.
// Usable outside the classification pipeline, e.g. to halt a running chain.
func (t *Tracker) IsStopCommand(message string) bool {
	return matchesWordList(normalize(message), stopWords)
}

// IsConfirmation reports whether the message is an affirmative token.
func (t *Tracker) IsConfirmation(message string) bool {
	return matchesWordList(normalize(message), confirmationWords)
}

// IsNegation reports whether the message is a negative token.
func (t *Tracker) IsNegation(message string) bool {
	return matchesWordList(normalize(message), negationWords)
}

// detectAction scans the ordered action table and returns the first action
// whose keyword list has a substring match. Table order is significant.
func detectAction(normalized string) string {
	for _, entry := range actionKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(normalized, kw) {
				return entry.Action
			}
		}
	}
	return ""
}

// detectTarget scans the ordered target table the same way.
func detectTarget(normalized string) string {
	for _, entry := range targetKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(normalized, kw) {
				return entry.Target
			}
		}
	}
	return ""
}

var (
	numberRE = regexp.MustCompile(`\d+`)
	quotedRE = regexp.MustCompile(`"([^"]+)"|'([^']+)'|“([^”]+)”|‘([^’]+)’|「([^」]+)」|『([^』]+)』`)
)

// extractParameters pulls digit runs, quoted substrings (multiple quotation
// styles including CJK brackets), and, for extract commands, the first
// matching entity type.
func extractParameters(message, action string) map[string]any {
	params := make(map[string]any)

	if digits := numberRE.FindAllString(message, -1); len(digits) > 0 {
		numbers := make([]float64, 0, len(digits))
		for _, d := range digits {
			n, err := strconv.ParseFloat(d, 64)
			if err != nil {
				continue
			}
			numbers = append(numbers, n)
		}
		if len(numbers) > 0 {
			params["numbers"] = numbers
		}
	}

	if matches := quotedRE.FindAllStringSubmatch(message, -1); len(matches) > 0 {
		quoted := make([]string, 0, len(matches))
		for _, m := range matches {
			for _, group := range m[1:] {
				if group != "" {
					quoted = append(quoted, group)
					break
				}
			}
		}
		if len(quoted) > 0 {
			params["quoted"] = quoted
		}
	}

	if action == "extract" {
		normalized := normalize(message)
	scan:
		for _, entry := range entityKeywords {
			for _, kw := range entry.Keywords {
				if strings.Contains(normalized, kw) {
					params["entity_type"] = entry.Entity
					break scan
				}
			}
		}
	}

	return params
}

// calculateConfidence derives a confidence score in [0, 1]. Confirmations
// are pinned at 0.95 regardless of detected action or target.
func calculateConfidence(intentType core.IntentType, action, target string) float64 {
	if intentType == core.IntentConfirmation {
		return 0.95
	}

	confidence := 0.5
	if action != "" {
		confidence += 0.2
	}
	if target != "" {
		confidence += 0.15
	}
	if intentType == core.IntentCommand {
		confidence += 0.1
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

func isClarification(normalized string, history []core.ChatMessage) bool {
	if len(history) == 0 {
		return false
	}
	if len([]rune(normalized)) >= clarificationMaxRunes {
		return false
	}
	for _, w := range questionWords {
		if strings.HasPrefix(normalized, w) {
			return true
		}
	}
	return false
}

func isQuestion(normalized string) bool {
	if strings.Contains(normalized, "?") || strings.Contains(normalized, "？") {
		return true
	}
	return containsAny(normalized, questionWords)
}

func normalize(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// matchesWordList is an exact-token membership check after trimming
// trailing punctuation.
func matchesWordList(normalized string, words []string) bool {
	trimmed := strings.TrimRight(normalized, ".!?。！？ ")
	for _, w := range words {
		if trimmed == w {
			return true
		}
	}
	return false
}
