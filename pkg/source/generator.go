package source

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// ErrInjected is the error returned by a Generator fetch chosen to fail.
var ErrInjected = errors.New("injected fetch failure")

var icons = []string{"📁", "📄", "🗂", "📦"}

// Generator builds deterministic demo trees. The same key always yields the
// same children, so a fetched subtree looks the same on every run.
type Generator struct {
	Depth   int           // Levels below a lazy node before leaves
	Breadth int           // Children per node
	Latency time.Duration // Simulated fetch latency
	// FailRate is the fraction of fetches that fail, in [0, 1]. Which keys
	// fail is decided by hashing the key.
	FailRate float64
}

// Generate returns a tree of the given depth and breadth. Nodes on the last
// level that would have children are lazy instead.
func Generate(depth, breadth int) model.Tree {
	g := Generator{Depth: depth, Breadth: breadth}
	return g.level("", depth)
}

func (g Generator) level(parentKey string, depth int) []*model.Node {
	nodes := make([]*model.Node, max(g.Breadth, 0))
	for i := range nodes {
		key := strconv.Itoa(i)
		if parentKey != "" {
			key = parentKey + "/" + key
		}
		n := &model.Node{
			Key:  key,
			Text: label(key),
			Icon: icons[(strings.Count(key, "/")+i)%len(icons)],
		}
		switch {
		case depth > 1:
			n.Nodes = g.level(key, depth-1)
		case depth == 1 && i%2 == 0:
			n.LazyLoad = true
		}
		nodes[i] = n
	}
	return nodes
}

func label(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		parts[i] = strconv.Itoa(n + 1)
	}
	return "Item " + strings.Join(parts, ".")
}

// Fetch returns generated children for a lazy node. It honors Latency and
// FailRate and returns early when ctx is done.
func (g Generator) Fetch(ctx context.Context, n *model.Node) ([]*model.Node, error) {
	if g.Latency > 0 {
		timer := time.NewTimer(g.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if g.fails(n.Key) {
		return nil, fmt.Errorf("fetch %s: %w", n.Key, ErrInjected)
	}
	depth := g.Depth
	if depth < 1 {
		depth = 1
	}
	return g.level(n.Key, depth), nil
}

func (g Generator) fails(key string) bool {
	if g.FailRate <= 0 {
		return false
	}
	if g.FailRate >= 1 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return float64(h.Sum32()%1000)/1000 < g.FailRate
}
