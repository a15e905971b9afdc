package pathacl

import "sync"

// NewTestEngine creates an engine over an in-memory configuration, for use
// in tests and embedding callers.
func NewTestEngine(config *Config) *Engine {
	return NewEngine(NewMemorySource(config), NopObserver{})
}

// RecordingObserver collects decisions so tests can assert on them without
// parsing log output.
type RecordingObserver struct {
	mu        sync.Mutex
	decisions []Decision
}

// ObserveDecision implements Observer
func (o *RecordingObserver) ObserveDecision(d Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, d)
}

// Decisions returns a snapshot of everything observed so far.
func (o *RecordingObserver) Decisions() []Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Decision, len(o.decisions))
	copy(out, o.decisions)
	return out
}
