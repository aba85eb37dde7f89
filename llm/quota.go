package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/petal-labs/petalpilot/tool"
)

// QuotaTracker meters completion calls per caller identity with a daily
// allowance. Counters reset at local midnight.
type QuotaTracker struct {
	limit int
	log   *slog.Logger

	mu     sync.Mutex
	counts map[string]int

	cron *cron.Cron
}

// NewQuotaTracker creates a tracker allowing limit calls per caller per day.
// A non-positive limit disables metering.
func NewQuotaTracker(limit int, log *slog.Logger) *QuotaTracker {
	if log == nil {
		log = slog.Default()
	}
	return &QuotaTracker{
		limit:  limit,
		log:    log,
		counts: make(map[string]int),
	}
}

// Start schedules the midnight reset. Call Stop to release the scheduler.
func (q *QuotaTracker) Start() {
	if q.cron != nil {
		return
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	q.cron = cron.New(cron.WithParser(parser))
	// 0 0 * * * = every day at 00:00 local time.
	_, _ = q.cron.AddFunc("0 0 * * *", q.Reset)
	q.cron.Start()
}

// Stop halts the reset scheduler.
func (q *QuotaTracker) Stop() {
	if q.cron != nil {
		q.cron.Stop()
		q.cron = nil
	}
}

// Reset clears all counters.
func (q *QuotaTracker) Reset() {
	q.mu.Lock()
	q.counts = make(map[string]int)
	q.mu.Unlock()
	q.log.Info("daily quota reset")
}

// Allow consumes one unit of caller's allowance, failing with a quota error
// once the daily limit is exhausted.
func (q *QuotaTracker) Allow(caller string) error {
	if q.limit <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.counts[caller] >= q.limit {
		err := tool.NewError(tool.ErrCodeQuotaExceeded,
			fmt.Sprintf("daily completion quota of %d exhausted for %q", q.limit, caller),
			false, nil)
		err.Details = map[string]any{"limit": q.limit}
		return err
	}
	q.counts[caller]++
	return nil
}

// Remaining reports the caller's unused allowance.
func (q *QuotaTracker) Remaining(caller string) int {
	if q.limit <= 0 {
		return -1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	left := q.limit - q.counts[caller]
	if left < 0 {
		return 0
	}
	return left
}

// MeteredClient wraps a Client with a QuotaTracker keyed on a fixed caller
// identity.
type MeteredClient struct {
	inner  Client
	quota  *QuotaTracker
	caller string
}

// NewMeteredClient wraps inner so every completion draws on caller's quota.
func NewMeteredClient(inner Client, quota *QuotaTracker, caller string) *MeteredClient {
	return &MeteredClient{inner: inner, quota: quota, caller: caller}
}

// Complete checks the quota before delegating.
func (m *MeteredClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := m.quota.Allow(m.caller); err != nil {
		return Response{}, err
	}
	return m.inner.Complete(ctx, req)
}

var _ Client = (*MeteredClient)(nil)
