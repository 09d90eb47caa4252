package tree

import (
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
)

func withState(n *model.Node, fn func(st *model.State)) *model.Node {
	c := n.Clone()
	if c.State == nil {
		st := model.DefaultState()
		c.State = &st
	}
	fn(c.State)
	return c
}

// SetChecked returns a copy of n with state.checked replaced.
func SetChecked(n *model.Node, c model.Check) *model.Node {
	return withState(n, func(st *model.State) { st.Checked = c })
}

// SetExpanded returns a copy of n with state.expanded replaced.
func SetExpanded(n *model.Node, expanded bool) *model.Node {
	return withState(n, func(st *model.State) { st.Expanded = expanded })
}

// SetDisabled returns a copy of n with state.disabled replaced.
func SetDisabled(n *model.Node, disabled bool) *model.Node {
	return withState(n, func(st *model.State) { st.Disabled = disabled })
}

// SetSelected returns a copy of n with state.selected replaced.
func SetSelected(n *model.Node, selected bool) *model.Node {
	return withState(n, func(st *model.State) { st.Selected = selected })
}

// SetNodes returns a copy of n with its children replaced. The children must
// already carry ids under n.ID (see Init).
func SetNodes(n *model.Node, nodes []*model.Node) *model.Node {
	c := n.Clone()
	c.Nodes = nodes
	return c
}

// SetLoading returns a copy of n with its loading state replaced.
func SetLoading(n *model.Node, l model.LoadState) *model.Node {
	c := n.Clone()
	c.Loading = l
	return c
}

// Update returns a tree in which the node at updated.ID is replaced by
// updated. Only the nodes on the path from the root to that position are
// copied; every other subtree is shared with t.
func Update(t model.Tree, updated *model.Node) model.Tree {
	return replaceAt(t, nodeid.MustSplit(updated.ID), updated)
}

func replaceAt(list model.Tree, path []int, updated *model.Node) model.Tree {
	out := make(model.Tree, len(list))
	copy(out, list)
	i := path[0]
	if len(path) == 1 {
		out[i] = updated
		return out
	}
	spine := list[i].Clone()
	spine.Nodes = replaceAt(list[i].Nodes, path[1:], updated)
	out[i] = spine
	return out
}
