package session

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// Fetcher loads the children of a lazy node. The node passed in is a snapshot
// and must not be modified. Fetchers run off the event loop.
type Fetcher func(ctx context.Context, n *model.Node) ([]*model.Node, error)

// LoadError wraps a failed child fetch.
type LoadError struct {
	NodeID string    // Node whose children were requested
	Cause  error     // The underlying error
	Time   time.Time // When the fetch failed
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load children of %s failed: %v", e.NodeID, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// LoadRequest is a pending child fetch issued by Controller.Expand. Exactly
// one request exists per node while its loading state is in flight.
type LoadRequest struct {
	NodeID string
	Node   *model.Node

	fetch Fetcher
}

// Run performs the fetch and always returns a result, converting errors and
// panics into a *LoadError. It is safe to call from any goroutine.
func (r *LoadRequest) Run(ctx context.Context) (res LoadResult) {
	res.NodeID = r.NodeID
	defer func() {
		if p := recover(); p != nil {
			res.Nodes = nil
			res.Err = &LoadError{
				NodeID: r.NodeID,
				Cause:  fmt.Errorf("panic: %v\n%s", p, debug.Stack()),
				Time:   time.Now(),
			}
		}
	}()
	nodes, err := r.fetch(ctx, r.Node)
	if err != nil {
		res.Err = &LoadError{NodeID: r.NodeID, Cause: err, Time: time.Now()}
		return res
	}
	res.Nodes = nodes
	return res
}

// LoadResult carries a finished fetch back to Controller.Resolve.
type LoadResult struct {
	NodeID string
	Nodes  []*model.Node // Raw children; ids are assigned on Resolve
	Err    error
}
