package model

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Node is one entry of a checkbox tree.
//
// Nodes are shared between tree versions and must not be modified once they
// are part of a published tree; the mutators in package tree return copies.
type Node struct {
	ID   string   `json:"nodeId,omitempty"`
	Text string   `json:"text"`
	Icon string   `json:"icon,omitempty"`
	Key  string   `json:"key,omitempty"`  // Opaque key used by data sources
	Tags []string `json:"tags,omitempty"` // Display badges, not interpreted

	// Nodes is nil for a leaf (or a lazy node not fetched yet) and a non-nil
	// empty slice for a node whose children were fetched and turned out empty.
	Nodes []*Node `json:"nodes"`

	State *State `json:"state,omitempty"`

	Checkable  *bool `json:"checkable,omitempty"`  // nil = true
	Selectable *bool `json:"selectable,omitempty"` // nil = true

	LazyLoad bool      `json:"lazyLoad,omitempty"`
	Loading  LoadState `json:"-"`

	Handle *FocusHandle `json:"-"`
}

// Tree is the ordered list of top-level nodes.
type Tree []*Node

// FocusHandle is the per-node placeholder a renderer uses to move keyboard
// focus onto the node.
type FocusHandle struct {
	NodeID string
}

// IsCheckable reports whether the node takes part in check operations.
func (n *Node) IsCheckable() bool {
	return n.Checkable == nil || *n.Checkable
}

// IsSelectable reports whether the node takes part in select operations.
func (n *Node) IsSelectable() bool {
	return n.Selectable == nil || *n.Selectable
}

// HasChildren reports whether the node has at least one child.
func (n *Node) HasChildren() bool {
	return len(n.Nodes) > 0
}

// NeedsFetch reports whether expanding the node should start a lazy load.
func (n *Node) NeedsFetch() bool {
	return n.LazyLoad && n.Nodes == nil && n.Loading != LoadInFlight
}

// St returns the node state, or the default state if none is set yet.
func (n *Node) St() State {
	if n.State == nil {
		return DefaultState()
	}
	return *n.State
}

// Clone returns a shallow copy of the node with its own State.
// Children are shared.
func (n *Node) Clone() *Node {
	c := *n
	if n.State != nil {
		st := *n.State
		c.State = &st
	}
	return &c
}

// Validate checks fields that the initializer cannot repair.
func (n *Node) Validate() error {
	if n.Loading != LoadNone && !n.LazyLoad {
		return fmt.Errorf("node %q: loading state %s on a node without lazyLoad", n.ID, n.Loading)
	}
	if !n.Loading.IsValid() {
		return fmt.Errorf("node %q: invalid loading state %d", n.ID, n.Loading)
	}
	if n.State != nil && !n.State.Checked.IsValid() {
		return fmt.Errorf("node %q: invalid checked state %d", n.ID, n.State.Checked)
	}
	return nil
}

// State is the interactive state of a node.
type State struct {
	Checked  Check `json:"checked"`
	Expanded bool  `json:"expanded"`
	Disabled bool  `json:"disabled"`
	Selected bool  `json:"selected"`
}

// DefaultState is the state given to nodes whose input carried none.
func DefaultState() State {
	return State{Checked: Unchecked}
}

// UnmarshalJSON accepts partial state objects; "checked": null means Partial
// and an absent key means Unchecked.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = DefaultState()
	if v, ok := raw["checked"]; ok {
		c, err := checkFromAny(v)
		if err != nil {
			return err
		}
		s.Checked = c
	}
	for key, dst := range map[string]*bool{
		"expanded": &s.Expanded,
		"disabled": &s.Disabled,
		"selected": &s.Selected,
	} {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("state.%s: expected bool, got %T", key, v)
		}
		*dst = b
	}
	return nil
}

// Check is the tri-state value of a checkbox.
type Check int8

const (
	Unchecked Check = iota
	Checked
	Partial // Some but not all descendants checked
)

// CheckOf converts a plain boolean.
func CheckOf(b bool) Check {
	if b {
		return Checked
	}
	return Unchecked
}

// IsValid returns true if the value is one of the three known states.
func (c Check) IsValid() bool {
	switch c {
	case Unchecked, Checked, Partial:
		return true
	}
	return false
}

func (c Check) String() string {
	switch c {
	case Unchecked:
		return "unchecked"
	case Checked:
		return "checked"
	case Partial:
		return "partial"
	default:
		return fmt.Sprintf("Check(%d)", int8(c))
	}
}

// Bool returns the notification value: nil for Partial.
func (c Check) Bool() *bool {
	switch c {
	case Checked:
		b := true
		return &b
	case Unchecked:
		b := false
		return &b
	}
	return nil
}

// MarshalJSON encodes true, false or null.
func (c Check) MarshalJSON() ([]byte, error) {
	switch c {
	case Checked:
		return []byte("true"), nil
	case Unchecked:
		return []byte("false"), nil
	case Partial:
		return []byte("null"), nil
	}
	return nil, fmt.Errorf("invalid check value %d", int8(c))
}

// UnmarshalJSON decodes true, false or null.
func (c *Check) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := checkFromAny(v)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func checkFromAny(v any) (Check, error) {
	switch x := v.(type) {
	case nil:
		return Partial, nil
	case bool:
		return CheckOf(x), nil
	}
	return Unchecked, fmt.Errorf("checked: expected bool or null, got %T", v)
}

// LoadState tracks the lazy loading of a node's children.
type LoadState int8

const (
	LoadNone     LoadState = iota // Not applicable or not started
	LoadInFlight                  // Fetch issued, result pending
	LoadDone                      // Children fetched
	LoadFailed                    // Fetch failed or no fetcher; terminal
)

// IsValid returns true if the value is a known load state.
func (l LoadState) IsValid() bool {
	return l >= LoadNone && l <= LoadFailed
}

func (l LoadState) String() string {
	switch l {
	case LoadNone:
		return "none"
	case LoadInFlight:
		return "loading"
	case LoadDone:
		return "loaded"
	case LoadFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoadState(%d)", int8(l))
	}
}

// Bool returns the notification value of the loading flag: true while in
// flight, false once loaded, nil for failed or not applicable.
func (l LoadState) Bool() *bool {
	switch l {
	case LoadInFlight:
		b := true
		return &b
	case LoadDone:
		b := false
		return &b
	}
	return nil
}

// Bool returns a pointer to b, for the optional boolean fields.
func Bool(b bool) *bool {
	return &b
}
