package session

import "github.com/vanderheijden86/checktree/pkg/tree"

// Sink receives one notification per field change. Hosts use it to persist
// state and schedule a redraw.
type Sink interface {
	Notify(c tree.Change)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(c tree.Change)

// Notify calls f(c).
func (f SinkFunc) Notify(c tree.Change) { f(c) }

// MultiSink fans notifications out to several sinks in order.
type MultiSink []Sink

// Notify forwards c to every sink.
func (m MultiSink) Notify(c tree.Change) {
	for _, s := range m {
		if s != nil {
			s.Notify(c)
		}
	}
}

type discardSink struct{}

func (discardSink) Notify(tree.Change) {}

// Recorder is a Sink that keeps every change it sees. Useful in tests and for
// hosts that batch notifications.
type Recorder struct {
	Changes []tree.Change
}

// Notify records c.
func (r *Recorder) Notify(c tree.Change) {
	r.Changes = append(r.Changes, c)
}

// Reset drops the recorded changes.
func (r *Recorder) Reset() {
	r.Changes = nil
}
