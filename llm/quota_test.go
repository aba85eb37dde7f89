package llm

import (
	"context"
	"testing"

	"github.com/petal-labs/petalpilot/tool"
)

// countingClient records completions and answers with a fixed response.
type countingClient struct {
	calls int
	last  Request
}

func (c *countingClient) Complete(ctx context.Context, req Request) (Response, error) {
	c.calls++
	c.last = req
	return Response{Text: "done"}, nil
}

func TestQuotaAllow(t *testing.T) {
	q := NewQuotaTracker(2, nil)

	if err := q.Allow("alice"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := q.Allow("alice"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	err := q.Allow("alice")
	if err == nil {
		t.Fatal("third call allowed past limit 2")
	}
	if tool.CodeOf(err) != tool.ErrCodeQuotaExceeded {
		t.Errorf("code = %q", tool.CodeOf(err))
	}

	// Callers are metered independently.
	if err := q.Allow("bob"); err != nil {
		t.Errorf("bob blocked by alice's usage: %v", err)
	}
}

func TestQuotaRemainingAndReset(t *testing.T) {
	q := NewQuotaTracker(3, nil)

	if got := q.Remaining("alice"); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}
	_ = q.Allow("alice")
	_ = q.Allow("alice")
	if got := q.Remaining("alice"); got != 1 {
		t.Errorf("Remaining = %d, want 1", got)
	}

	q.Reset()
	if got := q.Remaining("alice"); got != 3 {
		t.Errorf("Remaining after reset = %d, want 3", got)
	}
}

func TestQuotaUnmetered(t *testing.T) {
	q := NewQuotaTracker(0, nil)
	for i := 0; i < 100; i++ {
		if err := q.Allow("anyone"); err != nil {
			t.Fatalf("unmetered tracker refused call %d: %v", i, err)
		}
	}
	if got := q.Remaining("anyone"); got != -1 {
		t.Errorf("Remaining = %d, want -1", got)
	}
}

func TestMeteredClient(t *testing.T) {
	inner := &countingClient{}
	q := NewQuotaTracker(1, nil)
	m := NewMeteredClient(inner, q, "petalpilot")

	resp, err := m.Complete(context.Background(), Request{InputText: "hi"})
	if err != nil || resp.Text != "done" {
		t.Fatalf("Complete = %+v, %v", resp, err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d", inner.calls)
	}

	_, err = m.Complete(context.Background(), Request{InputText: "again"})
	if err == nil {
		t.Fatal("over-quota completion succeeded")
	}
	// The inner client is never reached once the quota is spent.
	if inner.calls != 1 {
		t.Errorf("inner calls = %d after quota exhaustion", inner.calls)
	}
}
