package tree

import (
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
)

// expandedWithChildren reports whether n's children are shown.
func expandedWithChildren(n *model.Node) bool {
	return n.St().Expanded && n.HasChildren()
}

// Previous returns the id of the visible node before id in depth-first
// order. The first node of the tree maps to itself.
func Previous(t model.Tree, id string) string {
	idx := nodeid.Last(id)
	if idx == 0 {
		if nodeid.IsTopLevel(id) {
			return id
		}
		return nodeid.Parent(id)
	}
	prev := LocateSiblings(t, id)[idx-1]
	for expandedWithChildren(prev) {
		prev = prev.Nodes[len(prev.Nodes)-1]
	}
	return prev.ID
}

// Next returns the id of the visible node after id in depth-first order. The
// last visible node maps to itself.
func Next(t model.Tree, id string) string {
	if n := Locate(t, id); expandedWithChildren(n) {
		return n.Nodes[0].ID
	}
	// Climb until some ancestor (or the node itself) has a following sibling.
	for cur := id; ; cur = nodeid.Parent(cur) {
		siblings := LocateSiblings(t, cur)
		if idx := nodeid.Last(cur); idx+1 < len(siblings) {
			return siblings[idx+1].ID
		}
		if nodeid.IsTopLevel(cur) {
			return id
		}
	}
}

// Visible returns the nodes shown by a renderer, in depth-first order: every
// node whose ancestors are all expanded.
func Visible(t model.Tree) []*model.Node {
	var out []*model.Node
	Walk(t, func(n *model.Node) bool {
		out = append(out, n)
		return n.St().Expanded
	})
	return out
}

// IsVisible reports whether every ancestor of id is expanded.
func IsVisible(t model.Tree, id string) bool {
	for p := nodeid.Parent(id); p != ""; p = nodeid.Parent(p) {
		if !Locate(t, p).St().Expanded {
			return false
		}
	}
	return true
}

// VisibleAncestor returns id if it is visible, otherwise its closest visible
// ancestor. Renderers use it to keep focus on screen after a collapse.
func VisibleAncestor(t model.Tree, id string) string {
	out := id
	for p := nodeid.Parent(id); p != ""; p = nodeid.Parent(p) {
		if !Locate(t, p).St().Expanded {
			out = p
		}
	}
	return out
}

// First returns the id of the first node, or "" for an empty tree.
func First(t model.Tree) string {
	if len(t) == 0 {
		return ""
	}
	return t[0].ID
}

// LastVisible returns the id of the last visible node, or "" for an empty
// tree.
func LastVisible(t model.Tree) string {
	if len(t) == 0 {
		return ""
	}
	n := t[len(t)-1]
	for expandedWithChildren(n) {
		n = n.Nodes[len(n.Nodes)-1]
	}
	return n.ID
}
