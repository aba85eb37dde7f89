// Package extension implements the session host over a websocket channel to
// a browser-extension background script. The extension connects to this
// process and answers structured requests about its tabs.
package extension

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/session"
)

// defaultRequestTimeout bounds one request when the caller's context carries
// no deadline of its own.
const defaultRequestTimeout = 10 * time.Second

// envelope is the wire frame in both directions. Requests carry ID, Action,
// and Args; responses echo the ID with Data or Error; unsolicited frames from
// the extension carry Event.
type envelope struct {
	ID     string         `json:"id,omitempty"`
	Action string         `json:"action,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
	Event  string         `json:"event,omitempty"`
}

// Host bridges session operations to a connected extension. It is safe for
// concurrent use; at most one extension connection is active, a new
// connection replaces the previous one.
type Host struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan envelope

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewHost creates an extension host. Mount Handler on an HTTP mux and point
// the extension's background script at it.
func NewHost(log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The extension connects from an extension origin; the socket
			// binds to loopback so origin checking adds nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     log,
		pending: make(map[string]chan envelope),
		subs:    make(map[int]func()),
	}
}

// Handler upgrades the extension connection and runs its read loop.
func (h *Host) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.connMu.Lock()
	if h.conn != nil {
		_ = h.conn.Close()
	}
	h.conn = conn
	h.connMu.Unlock()

	h.log.Info("extension connected", "remote", r.RemoteAddr)
	h.readLoop(conn)
}

// Connected reports whether an extension is currently attached.
func (h *Host) Connected() bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.conn != nil
}

func (h *Host) readLoop(conn *websocket.Conn) {
	defer func() {
		h.connMu.Lock()
		if h.conn == conn {
			h.conn = nil
		}
		h.connMu.Unlock()
		_ = conn.Close()
		h.failPending("extension disconnected")
		h.log.Info("extension disconnected")
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		switch {
		case env.Event != "":
			if env.Event == "tabs_changed" {
				h.notify()
			}
		case env.ID != "":
			h.settle(env)
		}
	}
}

func (h *Host) settle(env envelope) {
	h.pendingMu.Lock()
	ch, found := h.pending[env.ID]
	if found {
		delete(h.pending, env.ID)
	}
	h.pendingMu.Unlock()
	if found {
		ch <- env
	}
}

func (h *Host) failPending(reason string) {
	h.pendingMu.Lock()
	for id, ch := range h.pending {
		delete(h.pending, id)
		ch <- envelope{ID: id, Error: reason}
	}
	h.pendingMu.Unlock()
}

// request sends one frame and awaits the correlated response.
func (h *Host) request(ctx context.Context, action string, args map[string]any) (map[string]any, error) {
	h.connMu.Lock()
	conn := h.conn
	h.connMu.Unlock()
	if conn == nil {
		return nil, errors.New("extension: no extension connected")
	}

	id := uuid.NewString()
	ch := make(chan envelope, 1)
	h.pendingMu.Lock()
	h.pending[id] = ch
	h.pendingMu.Unlock()

	env := envelope{ID: id, Action: action, Args: args}
	h.connMu.Lock()
	err := conn.WriteJSON(env)
	h.connMu.Unlock()
	if err != nil {
		h.pendingMu.Lock()
		delete(h.pending, id)
		h.pendingMu.Unlock()
		return nil, fmt.Errorf("extension: send %q: %w", action, err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return nil, errors.New("extension: " + resp.Error)
		}
		return resp.Data, nil
	case <-ctx.Done():
		h.pendingMu.Lock()
		delete(h.pending, id)
		h.pendingMu.Unlock()
		return nil, fmt.Errorf("extension: %q timed out: %w", action, ctx.Err())
	}
}

// Tabs enumerates the extension's tabs.
func (h *Host) Tabs(ctx context.Context) ([]core.SessionInfo, error) {
	data, err := h.request(ctx, "list_tabs", nil)
	if err != nil {
		return nil, err
	}
	return decodeTabs(data["tabs"])
}

// ActiveTab returns the focused tab.
func (h *Host) ActiveTab(ctx context.Context) (core.SessionInfo, error) {
	data, err := h.request(ctx, "active_tab", nil)
	if err != nil {
		return core.SessionInfo{}, err
	}
	tab, err := decodeTab(data["tab"])
	if err != nil {
		return core.SessionInfo{}, err
	}
	return tab, nil
}

// Open creates a tab at url.
func (h *Host) Open(ctx context.Context, url string, active bool) (core.SessionInfo, error) {
	data, err := h.request(ctx, "open_tab", map[string]any{"url": url, "active": active})
	if err != nil {
		return core.SessionInfo{}, err
	}
	return decodeTab(data["tab"])
}

// Close destroys a tab.
func (h *Host) Close(ctx context.Context, id string) error {
	_, err := h.request(ctx, "close_tab", map[string]any{"tab_id": id})
	return err
}

// Activate focuses a tab.
func (h *Host) Activate(ctx context.Context, id string) error {
	_, err := h.request(ctx, "activate_tab", map[string]any{"tab_id": id})
	return err
}

// Reload reloads a tab.
func (h *Host) Reload(ctx context.Context, id string) error {
	_, err := h.request(ctx, "reload_tab", map[string]any{"tab_id": id})
	return err
}

// Navigate points a tab at a new url.
func (h *Host) Navigate(ctx context.Context, id, url string) error {
	_, err := h.request(ctx, "navigate_tab", map[string]any{"tab_id": id, "url": url})
	return err
}

// Request forwards a structured action to the content script in a tab.
func (h *Host) Request(ctx context.Context, id string, action session.Action) (map[string]any, error) {
	args := map[string]any{"tab_id": id, "name": action.Name}
	if len(action.Args) > 0 {
		args["args"] = action.Args
	}
	return h.request(ctx, "page_action", args)
}

// Subscribe registers a tab-change callback.
func (h *Host) Subscribe(fn func()) (unsubscribe func()) {
	h.subMu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.subMu.Unlock()

	return func() {
		h.subMu.Lock()
		delete(h.subs, id)
		h.subMu.Unlock()
	}
}

func (h *Host) notify() {
	h.subMu.Lock()
	fns := make([]func(), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func decodeTabs(raw any) ([]core.SessionInfo, error) {
	list, isList := raw.([]any)
	if !isList {
		return nil, errors.New("extension: malformed tab list")
	}
	tabs := make([]core.SessionInfo, 0, len(list))
	for _, item := range list {
		tab, err := decodeTab(item)
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, tab)
	}
	return tabs, nil
}

func decodeTab(raw any) (core.SessionInfo, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return core.SessionInfo{}, fmt.Errorf("extension: encode tab: %w", err)
	}
	var tab core.SessionInfo
	if err := json.Unmarshal(data, &tab); err != nil {
		return core.SessionInfo{}, fmt.Errorf("extension: decode tab: %w", err)
	}
	if tab.Status == "" {
		tab.Status = core.LoadStatusUnknown
	}
	return tab, nil
}

var _ session.Host = (*Host)(nil)
