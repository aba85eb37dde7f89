package tool

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/petal-labs/petalpilot/core"
)

// defaultExecuteTimeout bounds one capability dispatch.
const defaultExecuteTimeout = 15 * time.Second

// intentAlias binds one canonical tool name to the intent-action keywords
// that select it. The list is ordered and first-match wins: several aliases
// share keywords ("summarize" appears before "explain" for "tell me"), so
// reordering changes ambiguous-match outcomes.
type intentAlias struct {
	ToolName string
	Keywords []string
}

var intentAliases = []intentAlias{
	{"summarize_page", []string{"summarize", "summary", "总结", "概括", "要約"}},
	{"extract_data", []string{"extract", "提取", "抽取", "抽出"}},
	{"generate_reply", []string{"reply", "respond", "回复", "返信"}},
	{"translate_text", []string{"translate", "翻译", "翻訳"}},
	{"explain_content", []string{"explain", "解释", "说明", "説明"}},
	{"search_tabs", []string{"search", "find", "搜索", "查找", "検索"}},
	{"open_tab", []string{"open", "create", "打开", "新建", "開く"}},
	{"close_tab", []string{"close", "delete", "关闭", "删除", "閉じる"}},
	{"switch_tab", []string{"switch", "goto", "切换", "切り替え"}},
	{"list_tabs", []string{"list", "tabs", "列出", "一覧"}},
	{"compare_tabs", []string{"compare", "对比", "比较", "比較"}},
	{"navigate", []string{"navigate", "visit", "go to", "跳转", "移動"}},
}

// Registry is the capability catalog. Construct one per composition root
// with NewRegistry; registration happens once at startup and lookups are
// read-only afterwards, so no locking is performed.
type Registry struct {
	tools    map[string]*Tool
	order    []string // registration order, for deterministic listings
	timeout  time.Duration
	log      *slog.Logger
	observer Observer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// WithObserver sets the dispatch observer.
func WithObserver(obs Observer) RegistryOption {
	return func(r *Registry) {
		if obs != nil {
			r.observer = obs
		}
	}
}

// WithExecuteTimeout overrides the capability execution bound.
func WithExecuteTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRegistry creates an empty tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:    make(map[string]*Tool),
		timeout:  defaultExecuteTimeout,
		log:      slog.Default(),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the catalog. Re-registration overwrites the
// previous entry, last write wins, and logs a warning.
func (r *Registry) Register(t *Tool) {
	if t == nil || t.Name == "" {
		return
	}
	if _, exists := r.tools[t.Name]; exists {
		r.log.Warn("tool overwritten", "tool", t.Name)
	} else {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns a tool by exact name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// ListByCategory returns tools of one category in registration order.
func (r *Registry) ListByCategory(category string) []*Tool {
	var out []*Tool
	for _, name := range r.order {
		if t := r.tools[name]; t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Names returns all registered tool names, sorted for stable suggestion
// output.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// FindByIntent resolves an intent to a tool. The intent's action is first
// matched case-insensitively against tool names; failing that, the ordered
// alias table is scanned and the first registered tool whose keywords match
// the action wins. Returns nil when nothing matches.
func (r *Registry) FindByIntent(in core.Intent) *Tool {
	action := strings.ToLower(strings.TrimSpace(in.Action))
	if action == "" {
		return nil
	}

	for name, t := range r.tools {
		if strings.ToLower(name) == action {
			return t
		}
	}

	for _, alias := range intentAliases {
		t, registered := r.tools[alias.ToolName]
		if !registered {
			continue
		}
		for _, kw := range alias.Keywords {
			if strings.Contains(action, kw) {
				return t
			}
		}
	}
	return nil
}
