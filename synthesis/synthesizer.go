// Package synthesis gathers page context from several concurrently open
// sessions and reduces it into a comparative, human-readable report.
package synthesis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/session"
	"github.com/petal-labs/petalpilot/tool"
)

const (
	// collectTimeout bounds each per-session context request.
	collectTimeout = 10 * time.Second

	// actionPageContext is the structured request answered by the
	// page-resident agent.
	actionPageContext = "get_page_context"
)

// Options select what one synthesis run produces.
type Options struct {
	SessionIDs  []string // explicit targets; empty means every web-reachable session
	Compare     bool     // compute similarity/difference sets
	BuildReport bool     // render the human-readable report
	Locale      string   // report language: "en" (default), "zh", "ja"
}

// Report is the artifact of one synthesis run. It can itself become agent
// context for a follow-up generation call.
type Report struct {
	Contexts   []core.SessionContext  `json:"contexts"`
	Comparison *core.ComparisonResult `json:"comparison,omitempty"`
	Text       string                 `json:"text,omitempty"`
}

// Synthesizer fans out to sessions through the controller and reduces their
// contexts. Construct one per composition root with New.
type Synthesizer struct {
	controller *session.Controller
	timeout    time.Duration
	log        *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the synthesizer logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Synthesizer) { s.log = log }
}

// WithCollectTimeout overrides the per-session request bound.
func WithCollectTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a synthesizer over the given session controller.
func New(controller *session.Controller, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		controller: controller,
		timeout:    collectTimeout,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize collects contexts and optionally compares and reports on them.
// It fails only when zero sessions could be resolved at all; every
// per-session failure is data, not an abort.
func (s *Synthesizer) Synthesize(ctx context.Context, opts Options) (*Report, error) {
	contexts, err := s.CollectContexts(ctx, opts.SessionIDs)
	if err != nil {
		return nil, err
	}

	report := &Report{Contexts: contexts}
	if opts.Compare {
		report.Comparison = CompareContexts(contexts)
	}
	if opts.BuildReport {
		report.Text = buildReport(contexts, report.Comparison, opts.Locale)
	}
	return report, nil
}

// CollectContexts resolves the candidate session set (the given ids, or by
// default every session whose address is web-reachable) and requests page
// context from each target in list order. A per-session failure is captured
// on that session's context record and never aborts the rest; results are
// placed in enumeration order.
func (s *Synthesizer) CollectContexts(ctx context.Context, ids []string) ([]core.SessionContext, error) {
	targets, err := s.resolveTargets(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, tool.NewError(tool.ErrCodeNoSessions, "no sessions could be resolved", false, nil)
	}

	contexts := make([]core.SessionContext, 0, len(targets))
	for _, target := range targets {
		contexts = append(contexts, s.collectOne(ctx, target))
	}
	return contexts, nil
}

func (s *Synthesizer) resolveTargets(ctx context.Context, ids []string) ([]core.SessionInfo, error) {
	listed := s.controller.ListTabs(ctx)
	if !listed.Success {
		return nil, tool.NewError(tool.ErrCodeNoSessions, listed.Error, false, nil)
	}
	tabs, _ := listed.Data.([]core.SessionInfo)

	if len(ids) == 0 {
		var targets []core.SessionInfo
		for _, t := range tabs {
			if webReachable(t.URL) {
				targets = append(targets, t)
			}
		}
		return targets, nil
	}

	byID := make(map[string]core.SessionInfo, len(tabs))
	for _, t := range tabs {
		byID[t.ID] = t
	}
	var targets []core.SessionInfo
	for _, id := range ids {
		if t, found := byID[id]; found {
			targets = append(targets, t)
		}
	}
	return targets, nil
}

func (s *Synthesizer) collectOne(ctx context.Context, target core.SessionInfo) core.SessionContext {
	out := core.SessionContext{
		SessionID: target.ID,
		URL:       target.URL,
		Title:     target.Title,
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := s.controller.ExecuteInTab(reqCtx, target.ID, session.Action{Name: actionPageContext})
	if !result.Success {
		s.log.Debug("session context failed", "session", target.ID, "error", result.Error)
		out.Err = result.Error
		return out
	}

	data, _ := result.Data.(map[string]any)
	if content, found := data["content"].(string); found {
		out.Content = content
	}
	if title, found := data["title"].(string); found && title != "" {
		out.Title = title
	}
	if extracted, found := data["data"].(map[string]any); found {
		out.Data = extracted
	}
	return out
}

func webReachable(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
