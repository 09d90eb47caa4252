package tree

import (
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
)

// CascadeDown sets c on the node at id and on every descendant. It returns the
// new tree and one change per node in pre-order, the node itself first.
func CascadeDown(t model.Tree, id string, c model.Check) (model.Tree, []Change) {
	var changes []Change
	updated := cascade(Locate(t, id), c, &changes)
	return Update(t, updated), changes
}

func cascade(n *model.Node, c model.Check, changes *[]Change) *model.Node {
	*changes = append(*changes, CheckedChange(n.ID, c))
	out := SetChecked(n, c)
	if n.Nodes != nil {
		kids := make([]*model.Node, len(n.Nodes))
		for i, child := range n.Nodes {
			kids[i] = cascade(child, c, changes)
		}
		out.Nodes = kids
	}
	return out
}

// RecomputeUp recomputes the checked state of the ancestors of id after the
// node's own value changed; t must already hold that value. Each ancestor is
// derived from its direct children with ParentCheck. The walk stops at the
// first ancestor whose value does not change, so settled chains produce no
// changes. Disabled and non-checkable children count like any other.
func RecomputeUp(t model.Tree, id string) (model.Tree, []Change) {
	var changes []Change
	for !nodeid.IsTopLevel(id) {
		parentID := nodeid.Parent(id)
		parent := Locate(t, parentID)
		next := ParentCheck(parent.Nodes)
		if parent.St().Checked == next {
			break
		}
		c := CheckedChange(parentID, next)
		changes = append(changes, c)
		t = Update(t, c.Apply(parent))
		id = parentID
	}
	return t, changes
}

// ParentCheck derives a parent's checked state from its children: Partial if
// any child is Partial or the children are mixed, Checked if all are checked,
// Unchecked otherwise.
func ParentCheck(children []*model.Node) model.Check {
	if len(children) == 0 {
		return model.Unchecked
	}
	checked := 0
	for _, child := range children {
		switch child.St().Checked {
		case model.Partial:
			return model.Partial
		case model.Checked:
			checked++
		}
	}
	switch {
	case checked == len(children):
		return model.Checked
	case checked > 0:
		return model.Partial
	}
	return model.Unchecked
}
