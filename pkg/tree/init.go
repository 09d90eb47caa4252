// Package tree holds the pure operations over a checkbox tree: id assignment,
// lookup, copy-on-write updates, checkbox propagation and keyboard navigation
// order.
//
// Trees are values. No function in this package modifies a node reachable from
// its arguments; every change returns a new tree that shares the untouched
// subtrees with the old one.
package tree

import (
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
)

// Init assigns ids to every node under parentID and fills in missing state.
//
// It returns a fresh copy of the whole subtree and never modifies the input,
// so raw documents can be initialized more than once. With withRefs each node
// also gets a FocusHandle. A nil Nodes slice stays nil and an empty one stays
// empty.
func Init(t model.Tree, parentID string, withRefs bool) model.Tree {
	if t == nil {
		return nil
	}
	out := make(model.Tree, len(t))
	for i, n := range t {
		out[i] = initNode(n, nodeid.Child(parentID, i), withRefs)
	}
	return out
}

func initNode(n *model.Node, id string, withRefs bool) *model.Node {
	c := n.Clone()
	c.ID = id
	if c.State == nil {
		st := model.DefaultState()
		c.State = &st
	}
	// Handles carried over from an earlier init are re-pointed at the new id.
	if withRefs || c.Handle != nil {
		c.Handle = &model.FocusHandle{NodeID: id}
	}
	if n.Nodes != nil {
		c.Nodes = Init(n.Nodes, id, withRefs)
	}
	return c
}
