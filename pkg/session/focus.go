package session

import (
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
	"github.com/vanderheijden86/checktree/pkg/tree"
)

// Focused returns the id of the focused node, or "" for an empty tree.
func (c *Controller) Focused() string {
	return c.focused
}

// FocusedNode returns the focused node, or nil.
func (c *Controller) FocusedNode() *model.Node {
	if c.focused == "" {
		return nil
	}
	return c.Node(c.focused)
}

// Focus moves focus to id if it addresses a visible node.
func (c *Controller) Focus(id string) bool {
	if c.Node(id) == nil || !tree.IsVisible(c.tree, id) {
		return false
	}
	c.focused = id
	return true
}

// FocusNext moves focus to the next visible node.
func (c *Controller) FocusNext() string {
	if c.focused == "" {
		return c.FocusFirst()
	}
	c.focused = tree.Next(c.tree, c.focused)
	return c.focused
}

// FocusPrevious moves focus to the previous visible node.
func (c *Controller) FocusPrevious() string {
	if c.focused == "" {
		return c.FocusFirst()
	}
	c.focused = tree.Previous(c.tree, c.focused)
	return c.focused
}

// FocusFirst moves focus to the first node.
func (c *Controller) FocusFirst() string {
	c.focused = tree.First(c.tree)
	return c.focused
}

// FocusLast moves focus to the last visible node.
func (c *Controller) FocusLast() string {
	c.focused = tree.LastVisible(c.tree)
	return c.focused
}

// FocusParent moves focus to the parent of the focused node. Top-level nodes
// keep focus.
func (c *Controller) FocusParent() string {
	if c.focused != "" && !nodeid.IsTopLevel(c.focused) {
		c.focused = nodeid.Parent(c.focused)
	}
	return c.focused
}
