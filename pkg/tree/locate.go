package tree

import (
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
)

// Locate returns the node addressed by id.
//
// The id must address an existing node. A malformed id panics with
// *nodeid.MalformedIDError; an out-of-range path panics with an index error.
func Locate(t model.Tree, id string) *model.Node {
	path := nodeid.MustSplit(id)
	n := t[path[0]]
	for _, i := range path[1:] {
		n = n.Nodes[i]
	}
	return n
}

// LocateParent returns the parent of the node addressed by id. For a
// top-level id it returns the node itself; check nodeid.IsTopLevel first when
// the difference matters.
func LocateParent(t model.Tree, id string) *model.Node {
	if nodeid.IsTopLevel(id) {
		return Locate(t, id)
	}
	return Locate(t, nodeid.Parent(id))
}

// LocateSiblings returns the sibling list containing id, including the node
// itself. Top-level ids get the root list.
func LocateSiblings(t model.Tree, id string) []*model.Node {
	if nodeid.IsTopLevel(id) {
		return t
	}
	return Locate(t, nodeid.Parent(id)).Nodes
}

// Lookup is Locate for ids that may not exist. It returns nil instead of
// panicking on malformed or out-of-range ids.
func Lookup(t model.Tree, id string) *model.Node {
	path, err := nodeid.Split(id)
	if err != nil {
		return nil
	}
	list := []*model.Node(t)
	var n *model.Node
	for _, i := range path {
		if i >= len(list) {
			return nil
		}
		n = list[i]
		list = n.Nodes
	}
	return n
}

// Walk visits every node in pre-order. Returning false from fn skips the
// node's children.
func Walk(t model.Tree, fn func(n *model.Node) bool) {
	for _, n := range t {
		if fn(n) && n.Nodes != nil {
			Walk(n.Nodes, fn)
		}
	}
}

// SearchFunc collects, in pre-order, the ids of nodes matching pred within the
// subtree rooted at fromID (inclusive), or the whole tree if fromID is empty.
func SearchFunc(t model.Tree, fromID string, pred func(n *model.Node) bool) []string {
	scope := t
	if fromID != "" {
		scope = model.Tree{Locate(t, fromID)}
	}
	var ids []string
	Walk(scope, func(n *model.Node) bool {
		if pred(n) {
			ids = append(ids, n.ID)
		}
		return true
	})
	return ids
}

// Search collects the ids of nodes whose attribute attr equals value. Unknown
// attribute names match nothing. Boolean attributes compare against bool
// values; "checked" also accepts model.Check and nil for partial.
func Search(t model.Tree, fromID, attr string, value any) []string {
	if c, ok := value.(model.Check); ok && attr == "checked" {
		value = c.Bool()
	}
	return SearchFunc(t, fromID, func(n *model.Node) bool {
		got, ok := Attr(n, attr)
		return ok && attrEqual(got, value)
	})
}

// Attr returns the value of a named node attribute as exposed to Search.
func Attr(n *model.Node, attr string) (any, bool) {
	st := n.St()
	switch attr {
	case "nodeId":
		return n.ID, true
	case "text":
		return n.Text, true
	case "icon":
		return n.Icon, true
	case "key":
		return n.Key, true
	case "checked":
		return st.Checked.Bool(), true
	case "expanded":
		return st.Expanded, true
	case "disabled":
		return st.Disabled, true
	case "selected":
		return st.Selected, true
	case "checkable":
		return n.IsCheckable(), true
	case "selectable":
		return n.IsSelectable(), true
	case "lazyLoad":
		return n.LazyLoad, true
	}
	return nil, false
}

func attrEqual(got, want any) bool {
	gp, gotPtr := got.(*bool)
	if !gotPtr {
		return got == want
	}
	switch w := want.(type) {
	case nil:
		return gp == nil
	case *bool:
		if gp == nil || w == nil {
			return gp == w
		}
		return *gp == *w
	case bool:
		return gp != nil && *gp == w
	}
	return false
}
