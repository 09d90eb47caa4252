// Package session holds the per-tree controller: the current tree value, the
// held selection and focus, and the operations driven by user input and lazy
// load completions.
//
// A Controller is not safe for concurrent use. Hosts call it from a single
// event loop; only LoadRequest.Run may run elsewhere.
package session

import (
	"io"
	"log"
	"slices"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/tree"
)

// Controller owns one tree instance.
type Controller struct {
	tree model.Tree

	hierarchical bool
	multiSelect  bool
	withRefs     bool

	selected []string // In selection order
	focused  string

	sink   Sink
	fetch  Fetcher
	logger *log.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithHierarchicalCheck makes checkbox changes cascade to descendants and
// recompute ancestors.
func WithHierarchicalCheck(on bool) Option {
	return func(c *Controller) { c.hierarchical = on }
}

// WithMultiSelect allows more than one selected node.
func WithMultiSelect(on bool) Option {
	return func(c *Controller) { c.multiSelect = on }
}

// WithRefs attaches focus handles to every node.
func WithRefs(on bool) Option {
	return func(c *Controller) { c.withRefs = on }
}

// WithSink sets the change notification sink.
func WithSink(s Sink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithFetcher sets the lazy-load child fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Controller) { c.fetch = f }
}

// WithLogger sets the logger for load failures and ignored results.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New initializes raw and returns a controller for it. Nodes that arrive
// already selected seed the held selection; without multi-select only the
// first of them stays selected.
func New(raw model.Tree, opts ...Option) *Controller {
	c := &Controller{
		sink:   discardSink{},
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = discardSink{}
	}
	c.tree = tree.Init(raw, "", c.withRefs)
	c.seedSelection()
	c.focused = tree.First(c.tree)
	return c
}

func (c *Controller) seedSelection() {
	c.selected = tree.Search(c.tree, "", "selected", true)
	if c.multiSelect || len(c.selected) <= 1 {
		return
	}
	for _, id := range c.selected[1:] {
		c.tree = tree.ApplyChange(c.tree, tree.SelectedChange(id, false))
	}
	c.selected = c.selected[:1]
}

// Tree returns the current tree value. Callers must not modify it.
func (c *Controller) Tree() model.Tree {
	return c.tree
}

// Node returns the node at id, or nil if id does not address one.
func (c *Controller) Node(id string) *model.Node {
	return tree.Lookup(c.tree, id)
}

// Visible returns the currently visible nodes in display order.
func (c *Controller) Visible() []*model.Node {
	return tree.Visible(c.tree)
}

// HierarchicalCheck reports whether check changes propagate.
func (c *Controller) HierarchicalCheck() bool {
	return c.hierarchical
}

// MultiSelect reports whether several nodes may be selected.
func (c *Controller) MultiSelect() bool {
	return c.multiSelect
}

// Apply applies a change as-is and notifies the sink. No propagation happens;
// use it to replay persisted state.
func (c *Controller) Apply(ch tree.Change) {
	c.tree = tree.ApplyChange(c.tree, ch)
	c.sink.Notify(ch)
}

func (c *Controller) applyAll(changes []tree.Change) []tree.Change {
	for _, ch := range changes {
		c.Apply(ch)
	}
	return changes
}

// Replace swaps in a new raw tree after a structural change. Ids are
// reassigned; focus survives when its id still resolves. The held selection
// is rebuilt from the new tree: old ids that are still selected come first,
// then nodes that arrived selected. Without multi-select only the first is
// kept and the others are deselected.
func (c *Controller) Replace(raw model.Tree) []tree.Change {
	c.tree = tree.Init(raw, "", c.withRefs)
	fresh := tree.Search(c.tree, "", "selected", true)
	var held []string
	for _, id := range c.selected {
		if slices.Contains(fresh, id) {
			held = append(held, id)
		}
	}
	for _, id := range fresh {
		if !slices.Contains(held, id) {
			held = append(held, id)
		}
	}
	c.selected = held

	if c.Node(c.focused) == nil {
		c.focused = tree.First(c.tree)
	} else {
		c.focused = tree.VisibleAncestor(c.tree, c.focused)
	}
	if c.multiSelect || len(held) <= 1 {
		return nil
	}
	var changes []tree.Change
	for _, id := range held[1:] {
		changes = append(changes, tree.SelectedChange(id, false))
	}
	c.selected = held[:1]
	return c.applyAll(changes)
}

// SetChecked is a user-initiated checkbox change. Disabled and non-checkable
// nodes ignore it. In hierarchical mode the value cascades to every
// descendant and ancestors are recomputed. It returns the changes emitted.
func (c *Controller) SetChecked(id string, checked bool) []tree.Change {
	n := c.Node(id)
	if n == nil || n.St().Disabled || !n.IsCheckable() {
		return nil
	}
	target := model.CheckOf(checked)
	if n.St().Checked == target && (!c.hierarchical || !n.HasChildren()) {
		return nil
	}
	if !c.hierarchical {
		return c.applyAll([]tree.Change{tree.CheckedChange(id, target)})
	}

	var down, up []tree.Change
	c.tree, down = tree.CascadeDown(c.tree, id, target)
	c.tree, up = tree.RecomputeUp(c.tree, id)
	changes := append(down, up...)
	for _, ch := range changes {
		c.sink.Notify(ch)
	}
	return changes
}

// ToggleChecked checks an unchecked or partial node and unchecks a checked one.
func (c *Controller) ToggleChecked(id string) []tree.Change {
	n := c.Node(id)
	if n == nil {
		return nil
	}
	return c.SetChecked(id, n.St().Checked != model.Checked)
}

// Selected returns the selected ids in selection order.
func (c *Controller) Selected() []string {
	return slices.Clone(c.selected)
}

// Select selects id. Without multi-select the previously selected node is
// deselected first, so the sink never sees two selected nodes.
func (c *Controller) Select(id string) []tree.Change {
	n := c.Node(id)
	if n == nil || n.St().Disabled || !n.IsSelectable() || n.St().Selected {
		return nil
	}
	var changes []tree.Change
	if !c.multiSelect {
		for _, prev := range c.selected {
			changes = append(changes, tree.SelectedChange(prev, false))
		}
		c.selected = c.selected[:0]
	}
	changes = append(changes, tree.SelectedChange(id, true))
	c.selected = append(c.selected, id)
	return c.applyAll(changes)
}

// Deselect clears the selection of id.
func (c *Controller) Deselect(id string) []tree.Change {
	n := c.Node(id)
	if n == nil || n.St().Disabled || !n.St().Selected {
		return nil
	}
	c.selected = slices.DeleteFunc(c.selected, func(s string) bool { return s == id })
	return c.applyAll([]tree.Change{tree.SelectedChange(id, false)})
}

// ToggleSelected selects an unselected node and deselects a selected one.
func (c *Controller) ToggleSelected(id string) []tree.Change {
	n := c.Node(id)
	if n == nil {
		return nil
	}
	if n.St().Selected {
		return c.Deselect(id)
	}
	return c.Select(id)
}

// Expand shows the children of id. On the first expand of a lazy node with no
// children it marks the node as loading and returns the request to run; with
// no fetcher configured the node is settled immediately as failed with no
// children. Expanding a node whose fetch is in flight starts nothing new.
func (c *Controller) Expand(id string) *LoadRequest {
	n := c.Node(id)
	if n == nil || n.St().Disabled {
		return nil
	}
	if !n.St().Expanded {
		c.Apply(tree.ExpandedChange(id, true))
	}
	if !n.NeedsFetch() {
		return nil
	}
	if c.fetch == nil {
		c.applyAll([]tree.Change{
			tree.NodesChange(id, []*model.Node{}),
			tree.LoadingChange(id, model.LoadFailed),
		})
		return nil
	}
	c.Apply(tree.LoadingChange(id, model.LoadInFlight))
	return &LoadRequest{NodeID: id, Node: c.Node(id), fetch: c.fetch}
}

// Collapse hides the children of id. Focus inside the collapsed subtree moves
// to the collapsed node.
func (c *Controller) Collapse(id string) {
	n := c.Node(id)
	if n == nil || n.St().Disabled || !n.St().Expanded {
		return
	}
	c.Apply(tree.ExpandedChange(id, false))
	if c.focused != "" {
		c.focused = tree.VisibleAncestor(c.tree, c.focused)
	}
}

// ToggleExpanded expands a collapsed node or collapses an expanded one.
func (c *Controller) ToggleExpanded(id string) *LoadRequest {
	n := c.Node(id)
	if n == nil {
		return nil
	}
	if n.St().Expanded {
		c.Collapse(id)
		return nil
	}
	return c.Expand(id)
}

// ExpandAll expands every node that has children. Lazy nodes are not fetched.
func (c *Controller) ExpandAll() {
	c.setAllExpanded(true)
}

// CollapseAll collapses every node.
func (c *Controller) CollapseAll() {
	c.setAllExpanded(false)
	if c.focused != "" {
		c.focused = tree.VisibleAncestor(c.tree, c.focused)
	}
}

func (c *Controller) setAllExpanded(expanded bool) {
	var changes []tree.Change
	tree.Walk(c.tree, func(n *model.Node) bool {
		if n.HasChildren() && n.St().Expanded != expanded {
			changes = append(changes, tree.ExpandedChange(n.ID, expanded))
		}
		return true
	})
	c.applyAll(changes)
}

// Resolve applies a finished fetch. Successful children are initialized under
// the node and the node is marked loaded; failures leave the node with no
// children and a failed loading state. Results are applied even if the node
// was collapsed meanwhile. Results for nodes that are no longer loading (the
// tree was replaced) are dropped.
func (c *Controller) Resolve(res LoadResult) []tree.Change {
	n := c.Node(res.NodeID)
	if n == nil || n.Loading != model.LoadInFlight {
		c.logger.Printf("warning: dropping load result for %s: node is not loading", res.NodeID)
		return nil
	}
	if res.Err != nil {
		c.logger.Printf("warning: %v", res.Err)
		return c.applyAll([]tree.Change{
			tree.NodesChange(res.NodeID, []*model.Node{}),
			tree.LoadingChange(res.NodeID, model.LoadFailed),
		})
	}

	kids, picked := clearSelected(tree.Init(res.Nodes, res.NodeID, c.withRefs))
	if kids == nil {
		kids = model.Tree{}
	}
	changes := c.applyAll([]tree.Change{
		tree.NodesChange(res.NodeID, kids),
		tree.LoadingChange(res.NodeID, model.LoadDone),
	})
	if c.hierarchical && len(kids) > 0 {
		// Fetched children join the checkbox hierarchy: a checked parent hands
		// its value down, otherwise the parent is recomputed from what arrived.
		var more []tree.Change
		if n.St().Checked == model.Checked {
			c.tree, more = tree.CascadeDown(c.tree, res.NodeID, model.Checked)
			more = more[1:] // The parent itself is unchanged.
		} else {
			c.tree, more = tree.RecomputeUp(c.tree, kids[0].ID)
		}
		for _, ch := range more {
			c.sink.Notify(ch)
		}
		changes = append(changes, more...)
	}

	// Children that arrived selected go through Select so the held selection
	// and the single-select ordering stay intact. Without multi-select the
	// first one that can be selected wins.
	for _, id := range picked {
		sel := c.Select(id)
		changes = append(changes, sel...)
		if len(sel) > 0 && !c.multiSelect {
			break
		}
	}
	return changes
}

// clearSelected returns a copy of nodes with every selected flag cleared,
// and the ids that were selected, in pre-order.
func clearSelected(nodes model.Tree) (model.Tree, []string) {
	if nodes == nil {
		return nil, nil
	}
	out := make(model.Tree, len(nodes))
	var ids []string
	for i, n := range nodes {
		if n.St().Selected {
			ids = append(ids, n.ID)
			n = tree.SetSelected(n, false)
		}
		if len(n.Nodes) > 0 {
			kids, sub := clearSelected(n.Nodes)
			if len(sub) > 0 {
				ids = append(ids, sub...)
				n = tree.SetNodes(n, kids)
			}
		}
		out[i] = n
	}
	return out, ids
}
