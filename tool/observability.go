package tool

// Dispatch captures one dispatch outcome for observability.
type Dispatch struct {
	Tool       string
	CallID     string
	DurationMS int64
	Success    bool
	ErrorCode  string // empty on success
}

// Observer receives dispatch-level observability events. Implementations
// must be safe for use from the dispatch goroutine and must not block.
type Observer interface {
	ObserveDispatch(d Dispatch)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(Dispatch) {}
