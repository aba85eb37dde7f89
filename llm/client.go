// Package llm is the language-generation boundary of the assistant. Every
// capability that needs text generation depends on the Client interface, not
// on a concrete provider SDK.
package llm

import "context"

// Message is one conversational turn sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request. System carries the persona and
// tool-catalog framing; Messages carry the conversation; InputText is the
// current utterance when no conversation is threaded.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	InputText   string
	Temperature *float64
	MaxTokens   *int
	WantJSON    bool
}

// Response is the backend's answer. JSON is populated when the request asked
// for structured output and the text parsed cleanly.
type Response struct {
	Text         string
	JSON         map[string]any
	Model        string
	InputTokens  int
	OutputTokens int
}

// Client produces completions. Implementations must respect ctx deadlines.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
