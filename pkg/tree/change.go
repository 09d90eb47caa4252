package tree

import (
	"fmt"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// ChangeKind names the node field a Change replaces.
type ChangeKind int

const (
	ChangeChecked ChangeKind = iota
	ChangeExpanded
	ChangeDisabled
	ChangeSelected
	ChangeNodes
	ChangeLoading
)

// FieldPath returns the field name used in change notifications.
func (k ChangeKind) FieldPath() string {
	switch k {
	case ChangeChecked:
		return "state.checked"
	case ChangeExpanded:
		return "state.expanded"
	case ChangeDisabled:
		return "state.disabled"
	case ChangeSelected:
		return "state.selected"
	case ChangeNodes:
		return "nodes"
	case ChangeLoading:
		return "loading"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

func (k ChangeKind) String() string {
	return k.FieldPath()
}

// Change is a single field change on one node. Only the payload field that
// matches Kind is meaningful.
type Change struct {
	NodeID string
	Kind   ChangeKind

	Checked model.Check     // ChangeChecked
	Flag    bool            // ChangeExpanded, ChangeDisabled, ChangeSelected
	Nodes   []*model.Node   // ChangeNodes
	Loading model.LoadState // ChangeLoading
}

// CheckedChange builds a ChangeChecked.
func CheckedChange(id string, c model.Check) Change {
	return Change{NodeID: id, Kind: ChangeChecked, Checked: c}
}

// ExpandedChange builds a ChangeExpanded.
func ExpandedChange(id string, expanded bool) Change {
	return Change{NodeID: id, Kind: ChangeExpanded, Flag: expanded}
}

// DisabledChange builds a ChangeDisabled.
func DisabledChange(id string, disabled bool) Change {
	return Change{NodeID: id, Kind: ChangeDisabled, Flag: disabled}
}

// SelectedChange builds a ChangeSelected.
func SelectedChange(id string, selected bool) Change {
	return Change{NodeID: id, Kind: ChangeSelected, Flag: selected}
}

// NodesChange builds a ChangeNodes.
func NodesChange(id string, nodes []*model.Node) Change {
	return Change{NodeID: id, Kind: ChangeNodes, Nodes: nodes}
}

// LoadingChange builds a ChangeLoading.
func LoadingChange(id string, l model.LoadState) Change {
	return Change{NodeID: id, Kind: ChangeLoading, Loading: l}
}

// FieldPath returns the notification field name of the change.
func (c Change) FieldPath() string {
	return c.Kind.FieldPath()
}

// Value returns the notification value: *bool for checked (nil = partial) and
// loading (nil = failed), bool for the other state flags, []*model.Node for
// nodes.
func (c Change) Value() any {
	switch c.Kind {
	case ChangeChecked:
		return c.Checked.Bool()
	case ChangeExpanded, ChangeDisabled, ChangeSelected:
		return c.Flag
	case ChangeNodes:
		return c.Nodes
	case ChangeLoading:
		return c.Loading.Bool()
	}
	return nil
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeChecked:
		return fmt.Sprintf("%s %s=%s", c.NodeID, c.FieldPath(), c.Checked)
	case ChangeNodes:
		return fmt.Sprintf("%s %s=[%d]", c.NodeID, c.FieldPath(), len(c.Nodes))
	case ChangeLoading:
		return fmt.Sprintf("%s %s=%s", c.NodeID, c.FieldPath(), c.Loading)
	}
	return fmt.Sprintf("%s %s=%v", c.NodeID, c.FieldPath(), c.Flag)
}

// Apply returns a copy of n with the change applied.
func (c Change) Apply(n *model.Node) *model.Node {
	switch c.Kind {
	case ChangeChecked:
		return SetChecked(n, c.Checked)
	case ChangeExpanded:
		return SetExpanded(n, c.Flag)
	case ChangeDisabled:
		return SetDisabled(n, c.Flag)
	case ChangeSelected:
		return SetSelected(n, c.Flag)
	case ChangeNodes:
		return SetNodes(n, c.Nodes)
	case ChangeLoading:
		return SetLoading(n, c.Loading)
	}
	panic(fmt.Sprintf("tree: unknown change kind %d", int(c.Kind)))
}

// ApplyChange returns t with c applied to the node it addresses.
func ApplyChange(t model.Tree, c Change) model.Tree {
	return Update(t, c.Apply(Locate(t, c.NodeID)))
}

// ApplyChanges applies changes in order.
func ApplyChanges(t model.Tree, changes []Change) model.Tree {
	for _, c := range changes {
		t = ApplyChange(t, c)
	}
	return t
}
