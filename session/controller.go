package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/petal-labs/petalpilot/core"
)

// Result is the uniform outcome of every controller operation. Failures are
// carried in Error; controller methods never propagate a panic or error
// past this boundary.
type Result struct {
	Success bool   `json:"success"`
	TabID   string `json:"tab_id,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(tabID string, data any) Result {
	return Result{Success: true, TabID: tabID, Data: data}
}

func fail(err error) Result {
	if err == nil {
		return Result{Success: false, Error: "unknown session error"}
	}
	return Result{Success: false, Error: err.Error()}
}

// Controller wraps a Host with uniform results and a change-subscription
// mechanism. Construct one per composition root with NewController.
type Controller struct {
	host Host
	log  *slog.Logger

	mu          sync.Mutex
	subscribers map[int]func([]core.SessionInfo)
	nextSubID   int
	unhook      func()
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(log *slog.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// NewController creates a controller over the given host.
func NewController(host Host, opts ...ControllerOption) *Controller {
	c := &Controller{
		host:        host,
		log:         slog.Default(),
		subscribers: make(map[int]func([]core.SessionInfo)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTabs enumerates all sessions. On success Data holds
// []core.SessionInfo.
func (c *Controller) ListTabs(ctx context.Context) Result {
	tabs, err := c.host.Tabs(ctx)
	if err != nil {
		return fail(err)
	}
	return ok("", tabs)
}

// GetCurrentTab returns the focused session. On success Data holds a
// core.SessionInfo.
func (c *Controller) GetCurrentTab(ctx context.Context) Result {
	tab, err := c.host.ActiveTab(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(tab.ID, tab)
}

// OpenTab creates a session at url.
func (c *Controller) OpenTab(ctx context.Context, url string, active bool) Result {
	tab, err := c.host.Open(ctx, url, active)
	if err != nil {
		return fail(err)
	}
	return ok(tab.ID, tab)
}

// CloseTab destroys a session.
func (c *Controller) CloseTab(ctx context.Context, id string) Result {
	if err := c.host.Close(ctx, id); err != nil {
		return fail(err)
	}
	return ok(id, nil)
}

// SwitchToTab focuses a session.
func (c *Controller) SwitchToTab(ctx context.Context, id string) Result {
	if err := c.host.Activate(ctx, id); err != nil {
		return fail(err)
	}
	return ok(id, nil)
}

// ReloadTab reloads a session. With an empty id the active session is
// reloaded.
func (c *Controller) ReloadTab(ctx context.Context, id string) Result {
	if id == "" {
		tab, err := c.host.ActiveTab(ctx)
		if err != nil {
			return fail(err)
		}
		id = tab.ID
	}
	if err := c.host.Reload(ctx, id); err != nil {
		return fail(err)
	}
	return ok(id, nil)
}

// NavigateTo points a session at url. With an empty id the active session
// is used; when no target session can be resolved a new one is opened
// instead.
func (c *Controller) NavigateTo(ctx context.Context, url, id string) Result {
	if id == "" {
		tab, err := c.host.ActiveTab(ctx)
		if err != nil {
			// No resolvable target: fall back to a fresh session.
			return c.OpenTab(ctx, url, true)
		}
		id = tab.ID
	}
	if err := c.host.Navigate(ctx, id, url); err != nil {
		return fail(err)
	}
	return ok(id, nil)
}

// ExecuteInTab dispatches a structured action to a session's page agent and
// awaits its structured response. On success Data holds the response map.
func (c *Controller) ExecuteInTab(ctx context.Context, id string, action Action) Result {
	data, err := c.host.Request(ctx, id, action)
	if err != nil {
		return fail(err)
	}
	return Result{Success: true, TabID: id, Data: data}
}

// FindTabByURL returns the first session whose url contains pattern
// (case-insensitive).
func (c *Controller) FindTabByURL(ctx context.Context, pattern string) Result {
	return c.findTab(ctx, pattern, func(t core.SessionInfo) string { return t.URL })
}

// FindTabByTitle returns the first session whose title contains pattern
// (case-insensitive).
func (c *Controller) FindTabByTitle(ctx context.Context, pattern string) Result {
	return c.findTab(ctx, pattern, func(t core.SessionInfo) string { return t.Title })
}

func (c *Controller) findTab(ctx context.Context, pattern string, field func(core.SessionInfo) string) Result {
	tabs, err := c.host.Tabs(ctx)
	if err != nil {
		return fail(err)
	}
	needle := strings.ToLower(pattern)
	for _, t := range tabs {
		if strings.Contains(strings.ToLower(field(t)), needle) {
			return ok(t.ID, t)
		}
	}
	return Result{Success: false, Error: "no session matches " + pattern}
}

// OnTabsChange subscribes to session-list changes. Each notification
// carries a fresh snapshot of the session list. The returned function
// unsubscribes; the host hook is released when the last subscriber leaves.
func (c *Controller) OnTabsChange(fn func([]core.SessionInfo)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	if c.unhook == nil {
		c.unhook = c.host.Subscribe(c.notify)
	}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		if len(c.subscribers) == 0 && c.unhook != nil {
			c.unhook()
			c.unhook = nil
		}
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	tabs, err := c.host.Tabs(context.Background())
	if err != nil {
		c.log.Warn("session snapshot failed", "error", err)
		return
	}

	c.mu.Lock()
	fns := make([]func([]core.SessionInfo), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(tabs)
	}
}
