// Package core provides the foundational types shared by the petalpilot
// orchestration packages.
//
// This package contains:
//   - Intent types: Intent, IntentType, ResolvedReference
//   - Agent context: AgentContext, PageContext, ChatMessage
//   - Session types: SessionInfo, SessionContext, ComparisonResult
package core

import "time"

// IntentType classifies a user utterance.
// The set of types is closed; classification always yields exactly one.
type IntentType string

const (
	IntentCommand       IntentType = "command"
	IntentQuery         IntentType = "query"
	IntentClarification IntentType = "clarification"
	IntentConfirmation  IntentType = "confirmation"
	IntentChat          IntentType = "chat"
)

// String returns the string representation of the IntentType.
func (t IntentType) String() string {
	return string(t)
}

// Intent is the structured interpretation of one free-text user utterance.
type Intent struct {
	Type       IntentType     // classification result
	Action     string         // canonical action when detected ("summarize", ...)
	Target     string         // canonical target when detected ("page", ...)
	Parameters map[string]any // extracted parameters (numbers, quoted text, entity type)
	Confidence float64        // always within [0, 1]
	RawInput   string         // the original utterance
	At         time.Time      // when the utterance was analyzed
}

// ResolutionType describes how a vague reference was resolved.
type ResolutionType string

const (
	ResolvePage            ResolutionType = "page"
	ResolveSelection       ResolutionType = "selection"
	ResolvePreviousMessage ResolutionType = "previous_message"
	ResolveUnknown         ResolutionType = "unknown"
)

// ResolvedReference is the outcome of resolving a pronoun-like reference
// ("it", "this page") against live context. When resolution fails the
// original text is returned unchanged with type ResolveUnknown.
type ResolvedReference struct {
	Value    string         // resolved content, or the original text
	Type     ResolutionType // how the value was obtained
	Original string         // the reference text as given
}

// ChatMessage is one turn of the conversation between the user and the
// assistant, carried in AgentContext for reference resolution and prompting.
type ChatMessage struct {
	Role    string    // "user" | "assistant" | "system"
	Content string    // plain text
	At      time.Time // when the turn happened
}

// DOMNode is a lightweight semantic summary of one page element.
// The tree is produced by the host environment; this core only reads it.
type DOMNode struct {
	Tag      string    `json:"tag"`
	Text     string    `json:"text,omitempty"`
	Children []DOMNode `json:"children,omitempty"`
}

// PageContext is the semantic summary of the page currently under discussion.
type PageContext struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Content string   `json:"content"`        // main extracted text
	DOM     *DOMNode `json:"dom,omitempty"`  // optional summary tree
	Lang    string   `json:"lang,omitempty"` // page language when known
}

// MemoryItem is one persisted memory relevant to the current conversation.
type MemoryItem struct {
	ID       string
	Content  string
	Category string    // free-form grouping label, may be empty
	Score    float64   // relevance, higher is more relevant
	At       time.Time // when the memory was recorded
}

// Persona is a response-style profile the assistant can adopt.
type Persona struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"` // system-prompt fragment
}

// AgentContext is the live context a tool capability executes against.
// The orchestration core consumes it; the surrounding application owns it.
type AgentContext struct {
	Page          *PageContext  // nil when no page context is available
	Selection     string        // active text selection, empty when none
	CurrentItem   string        // post/item under discussion, empty when none
	Memories      []MemoryItem  // bounded list of relevant memories
	Personas      []Persona     // available profiles
	ActivePersona string        // identifier of the active profile
	History       []ChatMessage // recent chat turns, oldest first
}

// HasPage reports whether usable page content is present.
func (c *AgentContext) HasPage() bool {
	return c != nil && c.Page != nil && c.Page.Content != ""
}

// LastAssistantMessage scans up to n recent turns backward and returns the
// most recent assistant message longer than minLen runes. Returns "" when
// no such turn exists.
func (c *AgentContext) LastAssistantMessage(n, minLen int) string {
	if c == nil || len(c.History) == 0 {
		return ""
	}
	start := len(c.History) - n
	if start < 0 {
		start = 0
	}
	for i := len(c.History) - 1; i >= start; i-- {
		m := c.History[i]
		if m.Role == "assistant" && len([]rune(m.Content)) > minLen {
			return m.Content
		}
	}
	return ""
}

// LoadStatus reports the load state of a browsing session.
type LoadStatus string

const (
	LoadStatusLoading  LoadStatus = "loading"
	LoadStatusComplete LoadStatus = "complete"
	LoadStatusUnknown  LoadStatus = "unknown"
)

// SessionInfo is lightweight metadata for one browsing session (tab).
type SessionInfo struct {
	ID       string     `json:"id"`
	URL      string     `json:"url"`
	Title    string     `json:"title"`
	Active   bool       `json:"active"`
	WindowID string     `json:"window_id,omitempty"`
	Status   LoadStatus `json:"status"`
}

// SessionContext is the page context gathered from one session during a
// synthesis run. A per-session failure populates Err and leaves the rest
// zero; it never aborts the batch.
type SessionContext struct {
	SessionID string         `json:"session_id"`
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	Content   string         `json:"content,omitempty"`
	Data      map[string]any `json:"data,omitempty"` // extracted structured data
	Err       string         `json:"error,omitempty"`
}

// Failed reports whether context collection failed for this session.
func (c SessionContext) Failed() bool {
	return c.Err != ""
}

// ComparisonResult holds token-level similarities and differences across
// the collected session contexts.
type ComparisonResult struct {
	Similarities []string            `json:"similarities"`      // tokens shared by all sessions, capped
	Differences  []string            `json:"differences"`       // human-readable difference notes
	Unique       map[string][]string `json:"unique_by_session"` // per-session unique tokens, capped
}
