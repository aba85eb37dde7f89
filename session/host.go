// Package session abstracts list/open/close/switch/reload/navigate/execute
// operations over external browsing sessions and publishes session-list
// change notifications.
package session

import (
	"context"

	"github.com/petal-labs/petalpilot/core"
)

// Action is a structured request dispatched to the agent resident in a
// session's page (e.g. "get_page_context", "click_element").
type Action struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Host is the browsing environment the controller drives. Implementations
// answer each call asynchronously within the caller's context deadline;
// absence of a response within the bound is a timeout error, not a hang.
//
// Two implementations ship with this module: rodhost (a live Chromium over
// the DevTools protocol) and extension (a websocket channel to an extension
// background script).
type Host interface {
	// Tabs enumerates all sessions in a deterministic host-defined order.
	Tabs(ctx context.Context) ([]core.SessionInfo, error)
	// ActiveTab returns the currently focused session.
	ActiveTab(ctx context.Context) (core.SessionInfo, error)
	// Open creates a session at url, optionally focusing it.
	Open(ctx context.Context, url string, active bool) (core.SessionInfo, error)
	// Close destroys a session.
	Close(ctx context.Context, id string) error
	// Activate focuses a session.
	Activate(ctx context.Context, id string) error
	// Reload reloads a session.
	Reload(ctx context.Context, id string) error
	// Navigate points a session at a new url.
	Navigate(ctx context.Context, id, url string) error
	// Request dispatches a structured action to the session's page agent
	// and awaits its structured response.
	Request(ctx context.Context, id string, action Action) (map[string]any, error)
	// Subscribe registers a callback invoked whenever the host reports a
	// session activation, update, or removal. The returned function
	// unsubscribes.
	Subscribe(fn func()) (unsubscribe func())
}
