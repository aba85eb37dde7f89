// Package rodhost implements the session host over a live Chromium driven
// through the DevTools protocol.
package rodhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/session"
)

// Options configure the launched or attached browser.
type Options struct {
	// ControlURL attaches to an existing DevTools endpoint. When empty a
	// fresh browser is launched.
	ControlURL string
	// Bin overrides the browser binary for launches.
	Bin string
	// Headless applies to launches only.
	Headless bool
	Logger   *slog.Logger
}

type record struct {
	id   string
	page *rod.Page
}

// Host drives Chromium pages as sessions. One stable id is minted per page;
// DevTools target ids are internal.
type Host struct {
	browser *rod.Browser
	cleanup func()
	log     *slog.Logger

	mu       sync.RWMutex
	records  map[string]*record
	order    []string
	activeID string

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
	stopEv  context.CancelFunc
}

// New connects to (or launches) a browser and returns the host.
func New(opts Options) (*Host, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	controlURL := opts.ControlURL
	var cleanup func()
	if controlURL == "" {
		launch := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			launch = launch.Bin(opts.Bin)
		}
		url, err := launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("rodhost: launch browser: %w", err)
		}
		controlURL = url
		cleanup = launch.Cleanup
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, fmt.Errorf("rodhost: connect to browser: %w", err)
	}

	return &Host{
		browser: browser,
		cleanup: cleanup,
		log:     log,
		records: make(map[string]*record),
		subs:    make(map[int]func()),
	}, nil
}

// Shutdown closes tracked pages and the browser.
func (h *Host) Shutdown() error {
	h.subMu.Lock()
	if h.stopEv != nil {
		h.stopEv()
		h.stopEv = nil
	}
	h.subMu.Unlock()

	h.mu.Lock()
	for id, rec := range h.records {
		_ = rec.page.Close()
		delete(h.records, id)
	}
	h.order = nil
	h.mu.Unlock()

	err := h.browser.Close()
	if h.cleanup != nil {
		h.cleanup()
	}
	return err
}

// Tabs enumerates tracked sessions in creation order.
func (h *Host) Tabs(ctx context.Context) ([]core.SessionInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tabs := make([]core.SessionInfo, 0, len(h.order))
	for _, id := range h.order {
		rec := h.records[id]
		info, err := rec.page.Context(ctx).Info()
		if err != nil {
			h.log.Debug("page info failed", "session", id, "error", err)
			continue
		}
		tabs = append(tabs, core.SessionInfo{
			ID:     id,
			URL:    info.URL,
			Title:  info.Title,
			Active: id == h.activeID,
			Status: core.LoadStatusComplete,
		})
	}
	return tabs, nil
}

// ActiveTab returns the focused session.
func (h *Host) ActiveTab(ctx context.Context) (core.SessionInfo, error) {
	tabs, err := h.Tabs(ctx)
	if err != nil {
		return core.SessionInfo{}, err
	}
	for _, t := range tabs {
		if t.Active {
			return t, nil
		}
	}
	if len(tabs) > 0 {
		return tabs[0], nil
	}
	return core.SessionInfo{}, errors.New("rodhost: no sessions open")
}

// Open creates a page at url and tracks it under a fresh session id.
func (h *Host) Open(ctx context.Context, url string, active bool) (core.SessionInfo, error) {
	page, err := h.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return core.SessionInfo{}, fmt.Errorf("rodhost: create page: %w", err)
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.records[id] = &record{id: id, page: page}
	h.order = append(h.order, id)
	if active || h.activeID == "" {
		h.activeID = id
	}
	h.mu.Unlock()

	if active {
		if _, err := page.Activate(); err != nil {
			h.log.Debug("activate failed", "session", id, "error", err)
		}
	}
	h.notify()
	return core.SessionInfo{ID: id, URL: url, Active: active, Status: core.LoadStatusLoading}, nil
}

// Close destroys a session.
func (h *Host) Close(ctx context.Context, id string) error {
	rec, err := h.lookup(id)
	if err != nil {
		return err
	}
	if err := rec.page.Close(); err != nil {
		return fmt.Errorf("rodhost: close page: %w", err)
	}

	h.mu.Lock()
	delete(h.records, id)
	for i, known := range h.order {
		if known == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	if h.activeID == id {
		h.activeID = ""
		if len(h.order) > 0 {
			h.activeID = h.order[len(h.order)-1]
		}
	}
	h.mu.Unlock()

	h.notify()
	return nil
}

// Activate focuses a session.
func (h *Host) Activate(ctx context.Context, id string) error {
	rec, err := h.lookup(id)
	if err != nil {
		return err
	}
	if _, err := rec.page.Context(ctx).Activate(); err != nil {
		return fmt.Errorf("rodhost: activate page: %w", err)
	}
	h.mu.Lock()
	h.activeID = id
	h.mu.Unlock()
	h.notify()
	return nil
}

// Reload reloads a session.
func (h *Host) Reload(ctx context.Context, id string) error {
	rec, err := h.lookup(id)
	if err != nil {
		return err
	}
	if err := rec.page.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("rodhost: reload page: %w", err)
	}
	return nil
}

// Navigate points a session at a new url.
func (h *Host) Navigate(ctx context.Context, id, url string) error {
	rec, err := h.lookup(id)
	if err != nil {
		return err
	}
	if err := rec.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("rodhost: navigate: %w", err)
	}
	h.notify()
	return nil
}

// Request answers structured actions against the page. get_page_context is
// served natively; anything else is handed to the page-resident dispatcher
// when one is installed.
func (h *Host) Request(ctx context.Context, id string, action session.Action) (map[string]any, error) {
	rec, err := h.lookup(id)
	if err != nil {
		return nil, err
	}

	switch action.Name {
	case "get_page_context":
		return h.pageContext(ctx, rec.page)
	default:
		return h.dispatchToPage(ctx, rec.page, action)
	}
}

// Subscribe hooks DevTools target lifecycle events into the callback.
func (h *Host) Subscribe(fn func()) (unsubscribe func()) {
	h.subMu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	if h.stopEv == nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.stopEv = cancel
		go h.watchTargets(ctx)
	}
	h.subMu.Unlock()

	return func() {
		h.subMu.Lock()
		delete(h.subs, id)
		if len(h.subs) == 0 && h.stopEv != nil {
			h.stopEv()
			h.stopEv = nil
		}
		h.subMu.Unlock()
	}
}

func (h *Host) watchTargets(ctx context.Context) {
	wait := h.browser.Context(ctx).EachEvent(
		func(ev *proto.TargetTargetCreated) { h.notify() },
		func(ev *proto.TargetTargetDestroyed) { h.notify() },
		func(ev *proto.TargetTargetInfoChanged) { h.notify() },
	)
	wait()
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

func (h *Host) lookup(id string) (*record, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, found := h.records[id]
	if !found {
		return nil, fmt.Errorf("rodhost: unknown session %q", id)
	}
	return rec, nil
}

// pageContext extracts url, title, and visible text from the live page.
func (h *Host) pageContext(ctx context.Context, page *rod.Page) (map[string]any, error) {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => ({
			url: location.href,
			title: document.title,
			content: (document.body && document.body.innerText || '').slice(0, 100000),
			lang: document.documentElement.lang || ''
		})
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("rodhost: page context: %w", err)
	}
	return decodeEvalResult(res)
}

// dispatchToPage hands the action to window.__petalpilotDispatch, the hook
// installed by page scripting, and decodes its JSON response.
func (h *Host) dispatchToPage(ctx context.Context, page *rod.Page, action session.Action) (map[string]any, error) {
	args, err := json.Marshal(action.Args)
	if err != nil {
		return nil, fmt.Errorf("rodhost: encode action args: %w", err)
	}

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		async (name, rawArgs) => {
			if (typeof window.__petalpilotDispatch !== 'function') {
				return { error: 'no page dispatcher installed for ' + name };
			}
			return await window.__petalpilotDispatch(name, JSON.parse(rawArgs));
		}
		`,
		JSArgs:       []any{action.Name, string(args)},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("rodhost: dispatch %q: %w", action.Name, err)
	}

	out, err := decodeEvalResult(res)
	if err != nil {
		return nil, err
	}
	if msg, failed := out["error"].(string); failed && msg != "" {
		return nil, errors.New("rodhost: " + msg)
	}
	return out, nil
}

func decodeEvalResult(res *proto.RuntimeRemoteObject) (map[string]any, error) {
	if res == nil {
		return nil, errors.New("rodhost: empty evaluation result")
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("rodhost: encode evaluation result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("rodhost: decode evaluation result: %w", err)
	}
	return out, nil
}

var _ session.Host = (*Host)(nil)
