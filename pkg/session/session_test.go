package session

import (
	"bytes"
	"context"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/tree"
)

// newTestTree builds:
//
//	0 parent (expanded)
//	  0.0 c0
//	  0.1 c1 (expanded)
//	    0.1.0 g0
//	  0.2 c2
//	1 other
//	2 lazy (lazyLoad)
func newTestTree() model.Tree {
	return model.Tree{
		{Text: "parent", State: &model.State{Expanded: true}, Nodes: []*model.Node{
			{Text: "c0"},
			{Text: "c1", State: &model.State{Expanded: true}, Nodes: []*model.Node{{Text: "g0"}}},
			{Text: "c2"},
		}},
		{Text: "other"},
		{Text: "lazy", LazyLoad: true},
	}
}

func changeIDs(changes []tree.Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.NodeID + " " + c.FieldPath()
	}
	return out
}

func TestNewInitializesTree(t *testing.T) {
	c := New(newTestTree())
	if got := c.Node("0.1.0"); got == nil || got.Text != "g0" || got.State == nil {
		t.Fatalf("node 0.1.0 not initialized: %+v", got)
	}
	if c.Focused() != "0" {
		t.Errorf("initial focus = %q, want 0", c.Focused())
	}
}

// TestHierarchicalCheckCascades verifies every descendant is notified once, pre-order
func TestHierarchicalCheckCascades(t *testing.T) {
	rec := &Recorder{}
	c := New(newTestTree(), WithHierarchicalCheck(true), WithSink(rec))

	changes := c.SetChecked("0", true)
	want := []string{"0", "0.0", "0.1", "0.1.0", "0.2"}
	var got []string
	for _, ch := range rec.Changes {
		got = append(got, ch.NodeID)
		if ch.Checked != model.Checked {
			t.Errorf("change %v should set checked", ch)
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("notified %v, want %v", got, want)
	}
	if len(changes) != len(rec.Changes) {
		t.Errorf("returned %d changes, sink saw %d", len(changes), len(rec.Changes))
	}
}

// TestHierarchicalCheckRecomputesAncestors verifies a leaf change reaches the root
func TestHierarchicalCheckRecomputesAncestors(t *testing.T) {
	rec := &Recorder{}
	c := New(newTestTree(), WithHierarchicalCheck(true), WithSink(rec))

	c.SetChecked("0.1.0", true)
	if got := changeIDs(rec.Changes); !reflect.DeepEqual(got, []string{
		"0.1.0 state.checked", "0.1 state.checked", "0 state.checked",
	}) {
		t.Errorf("changes = %v", got)
	}
	if c.Node("0.1").St().Checked != model.Checked {
		t.Error("0.1 should be checked (its only child is checked)")
	}
	if c.Node("0").St().Checked != model.Partial {
		t.Error("0 should be partial")
	}

	// Checking the remaining children completes the parent.
	c.SetChecked("0.0", true)
	rec.Reset()
	c.SetChecked("0.2", true)
	if got := changeIDs(rec.Changes); !reflect.DeepEqual(got, []string{"0.2 state.checked", "0 state.checked"}) {
		t.Errorf("changes = %v", got)
	}
	if c.Node("0").St().Checked != model.Checked {
		t.Error("0 should be checked")
	}
}

func TestFlatCheckDoesNotPropagate(t *testing.T) {
	rec := &Recorder{}
	c := New(newTestTree(), WithSink(rec))

	c.SetChecked("0", true)
	if len(rec.Changes) != 1 || rec.Changes[0].NodeID != "0" {
		t.Errorf("changes = %v", rec.Changes)
	}
	if c.Node("0.0").St().Checked != model.Unchecked {
		t.Error("child changed without hierarchical mode")
	}
	if got := c.SetChecked("0", true); got != nil {
		t.Errorf("re-checking a checked node should be a no-op, got %v", got)
	}
}

// TestCheckIgnoresDisabledAndUncheckable verifies such nodes never initiate changes
func TestCheckIgnoresDisabledAndUncheckable(t *testing.T) {
	raw := newTestTree()
	raw[1].State = &model.State{Disabled: true}
	raw[2].Checkable = model.Bool(false)
	rec := &Recorder{}
	c := New(raw, WithHierarchicalCheck(true), WithSink(rec))

	c.SetChecked("1", true)
	c.ToggleChecked("2")
	if len(rec.Changes) != 0 {
		t.Errorf("expected no changes, got %v", rec.Changes)
	}
}

func TestToggleChecked(t *testing.T) {
	c := New(newTestTree(), WithHierarchicalCheck(true))
	c.SetChecked("0.1.0", true)
	// 0 is partial; toggling checks the whole subtree.
	c.ToggleChecked("0")
	if got := tree.Search(c.Tree(), "0", "checked", false); len(got) != 0 {
		t.Errorf("unchecked nodes left under 0: %v", got)
	}
	c.ToggleChecked("0")
	if got := tree.Search(c.Tree(), "0", "checked", true); len(got) != 0 {
		t.Errorf("checked nodes left under 0: %v", got)
	}
}

// TestSingleSelectDeselectsFirst verifies the deselect notification precedes the select
func TestSingleSelectDeselectsFirst(t *testing.T) {
	rec := &Recorder{}
	var maxSelected int
	var c *Controller
	sink := SinkFunc(func(ch tree.Change) {
		if n := len(tree.Search(c.Tree(), "", "selected", true)); n > maxSelected {
			maxSelected = n
		}
	})
	c = New(newTestTree(), WithSink(MultiSink{rec, sink}))

	c.Select("0.0")
	rec.Reset()
	c.Select("1")

	if got := changeIDs(rec.Changes); !reflect.DeepEqual(got, []string{"0.0 state.selected", "1 state.selected"}) {
		t.Fatalf("changes = %v", got)
	}
	if rec.Changes[0].Flag || !rec.Changes[1].Flag {
		t.Errorf("expected deselect then select, got %v", rec.Changes)
	}
	if maxSelected > 1 {
		t.Errorf("observed %d nodes selected at once", maxSelected)
	}
	if got := c.Selected(); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("Selected() = %v", got)
	}
}

func TestMultiSelect(t *testing.T) {
	c := New(newTestTree(), WithMultiSelect(true))
	c.Select("0")
	c.Select("1")
	if got := c.Selected(); !reflect.DeepEqual(got, []string{"0", "1"}) {
		t.Errorf("Selected() = %v", got)
	}
	c.ToggleSelected("0")
	if got := c.Selected(); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("after toggle Selected() = %v", got)
	}
}

func TestSelectIgnoresUnselectable(t *testing.T) {
	raw := newTestTree()
	raw[1].Selectable = model.Bool(false)
	c := New(raw)
	if got := c.Select("1"); got != nil {
		t.Errorf("unselectable node selected: %v", got)
	}
	if got := c.Select("0"); len(got) != 1 {
		t.Errorf("Select(0) = %v", got)
	}
	if got := c.Select("0"); got != nil {
		t.Errorf("selecting twice should be a no-op, got %v", got)
	}
}

// TestNewSeedsSingleSelection verifies preselected input keeps at most one selection
func TestNewSeedsSingleSelection(t *testing.T) {
	raw := newTestTree()
	raw[0].State.Selected = true
	raw[1].State = &model.State{Selected: true}
	c := New(raw)
	if got := c.Selected(); !reflect.DeepEqual(got, []string{"0"}) {
		t.Errorf("Selected() = %v", got)
	}
	if c.Node("1").St().Selected {
		t.Error("second preselected node should be cleared")
	}
}

func TestExpandCollapseMovesFocus(t *testing.T) {
	c := New(newTestTree())
	if !c.Focus("0.1.0") {
		t.Fatal("Focus(0.1.0) failed")
	}
	c.Collapse("0")
	if c.Focused() != "0" {
		t.Errorf("focus should move to collapsed ancestor, got %s", c.Focused())
	}
	if c.Focus("0.1") {
		t.Error("focusing a hidden node should fail")
	}
	c.ToggleExpanded("0")
	if !c.Node("0").St().Expanded {
		t.Error("toggle did not expand")
	}
}

func TestExpandAllCollapseAll(t *testing.T) {
	c := New(newTestTree())
	c.CollapseAll()
	if len(c.Visible()) != 3 {
		t.Errorf("expected 3 visible after CollapseAll, got %d", len(c.Visible()))
	}
	c.ExpandAll()
	if len(c.Visible()) != 7 {
		t.Errorf("expected 7 visible after ExpandAll, got %d", len(c.Visible()))
	}
	if c.Node("2").Loading != model.LoadNone {
		t.Error("ExpandAll must not start lazy loads")
	}
}

func TestFocusNavigation(t *testing.T) {
	c := New(newTestTree())
	var order []string
	for i := 0; i < 8; i++ {
		order = append(order, c.FocusNext())
	}
	want := []string{"0.0", "0.1", "0.1.0", "0.2", "1", "2", "2", "2"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("FocusNext order = %v, want %v", order, want)
	}
	if got := c.FocusPrevious(); got != "1" {
		t.Errorf("FocusPrevious = %s", got)
	}
	c.Focus("0.1.0")
	if got := c.FocusParent(); got != "0.1" {
		t.Errorf("FocusParent = %s", got)
	}
	if got := c.FocusLast(); got != "2" {
		t.Errorf("FocusLast = %s", got)
	}
	if got := c.FocusFirst(); got != "0" {
		t.Errorf("FocusFirst = %s", got)
	}
}

// TestLazyLoadSuccess verifies the in-flight flag, child ids and the loaded state
func TestLazyLoadSuccess(t *testing.T) {
	rec := &Recorder{}
	var fetched []string
	fetch := func(ctx context.Context, n *model.Node) ([]*model.Node, error) {
		fetched = append(fetched, n.ID)
		return []*model.Node{{Text: "x"}, {Text: "y", LazyLoad: true}}, nil
	}
	c := New(newTestTree(), WithFetcher(fetch), WithSink(rec))

	req := c.Expand("2")
	if req == nil {
		t.Fatal("expected a load request")
	}
	if c.Node("2").Loading != model.LoadInFlight {
		t.Errorf("loading = %s, want in flight", c.Node("2").Loading)
	}
	if again := c.Expand("2"); again != nil {
		t.Error("second expand while loading must not issue a request")
	}

	res := req.Run(context.Background())
	c.Resolve(res)

	n := c.Node("2")
	if n.Loading != model.LoadDone || len(n.Nodes) != 2 {
		t.Fatalf("after resolve: loading=%s nodes=%d", n.Loading, len(n.Nodes))
	}
	if n.Nodes[1].ID != "2.1" || n.Nodes[1].State == nil {
		t.Errorf("fetched children not initialized: %+v", n.Nodes[1])
	}
	if !reflect.DeepEqual(fetched, []string{"2"}) {
		t.Errorf("fetcher called for %v", fetched)
	}
	if got := changeIDs(rec.Changes); !reflect.DeepEqual(got, []string{
		"2 state.expanded", "2 loading", "2 nodes", "2 loading",
	}) {
		t.Errorf("changes = %v", got)
	}

	c.Collapse("2")
	if req := c.Expand("2"); req != nil {
		t.Error("loaded node must not fetch again")
	}
}

// TestLazyLoadFailure verifies a failing fetch settles as failed with no retry
func TestLazyLoadFailure(t *testing.T) {
	calls := 0
	var logs bytes.Buffer
	fetch := func(ctx context.Context, n *model.Node) ([]*model.Node, error) {
		calls++
		return nil, errors.New("backend down")
	}
	c := New(newTestTree(), WithFetcher(fetch), WithLogger(log.New(&logs, "", 0)))

	req := c.Expand("2")
	res := req.Run(context.Background())
	var lerr *LoadError
	if !errors.As(res.Err, &lerr) || lerr.NodeID != "2" {
		t.Fatalf("expected LoadError, got %v", res.Err)
	}
	c.Resolve(res)

	n := c.Node("2")
	if n.Loading != model.LoadFailed || n.Nodes == nil || len(n.Nodes) != 0 {
		t.Errorf("after failure: loading=%s nodes=%v", n.Loading, n.Nodes)
	}
	if !strings.Contains(logs.String(), "backend down") {
		t.Errorf("failure not logged: %q", logs.String())
	}

	c.Collapse("2")
	if req := c.Expand("2"); req != nil {
		t.Error("failed node must not fetch again")
	}
	if calls != 1 {
		t.Errorf("fetcher called %d times", calls)
	}
}

// TestLazyLoadWithoutFetcher verifies the no-fetcher case settles synchronously as failed
func TestLazyLoadWithoutFetcher(t *testing.T) {
	rec := &Recorder{}
	c := New(newTestTree(), WithSink(rec))
	if req := c.Expand("2"); req != nil {
		t.Fatal("no request expected without a fetcher")
	}
	n := c.Node("2")
	if n.Loading != model.LoadFailed || n.Nodes == nil || len(n.Nodes) != 0 {
		t.Errorf("loading=%s nodes=%v", n.Loading, n.Nodes)
	}
	if v := rec.Changes[len(rec.Changes)-1].Value(); v != (*bool)(nil) {
		t.Errorf("loading notification = %v, want nil", v)
	}
}

func TestLazyLoadPanicIsFailure(t *testing.T) {
	fetch := func(ctx context.Context, n *model.Node) ([]*model.Node, error) {
		panic("boom")
	}
	c := New(newTestTree(), WithFetcher(fetch))
	res := c.Expand("2").Run(context.Background())
	if res.Err == nil || !strings.Contains(res.Err.Error(), "boom") {
		t.Fatalf("expected panic converted to error, got %v", res.Err)
	}
	c.Resolve(res)
	if c.Node("2").Loading != model.LoadFailed {
		t.Error("panic should settle as failed")
	}
}

// TestLazyLoadAppliedAfterCollapse verifies a result lands even if the node was collapsed
func TestLazyLoadAppliedAfterCollapse(t *testing.T) {
	release := make(chan struct{})
	fetch := func(ctx context.Context, n *model.Node) ([]*model.Node, error) {
		<-release
		return []*model.Node{{Text: "late"}}, nil
	}
	c := New(newTestTree(), WithFetcher(fetch))
	req := c.Expand("2")

	done := make(chan LoadResult, 1)
	go func() { done <- req.Run(context.Background()) }()

	c.Collapse("2")
	close(release)
	c.Resolve(<-done)

	n := c.Node("2")
	if n.St().Expanded {
		t.Error("resolve must not re-expand the node")
	}
	if n.Loading != model.LoadDone || len(n.Nodes) != 1 || n.Nodes[0].Text != "late" {
		t.Errorf("result not applied: loading=%s nodes=%d", n.Loading, len(n.Nodes))
	}
}

func TestResolveDropsStaleResults(t *testing.T) {
	c := New(newTestTree())
	if got := c.Resolve(LoadResult{NodeID: "1"}); got != nil {
		t.Errorf("result for a node that is not loading should be dropped, got %v", got)
	}
	if got := c.Resolve(LoadResult{NodeID: "9.9"}); got != nil {
		t.Errorf("result for a missing node should be dropped, got %v", got)
	}
}

// TestLazyLoadJoinsCheckHierarchy verifies fetched children follow a checked parent
func TestLazyLoadJoinsCheckHierarchy(t *testing.T) {
	fetch := func(ctx context.Context, n *model.Node) ([]*model.Node, error) {
		return []*model.Node{{Text: "a"}, {Text: "b"}}, nil
	}
	c := New(newTestTree(), WithFetcher(fetch), WithHierarchicalCheck(true))
	c.SetChecked("2", true)
	c.Resolve(c.Expand("2").Run(context.Background()))

	for _, id := range []string{"2.0", "2.1"} {
		if c.Node(id).St().Checked != model.Checked {
			t.Errorf("child %s should inherit checked", id)
		}
	}
}

func TestReplaceKeepsSelectionAndFocus(t *testing.T) {
	c := New(newTestTree())
	c.Select("1")
	c.Focus("0.2")

	raw := newTestTree()
	raw[1].State = &model.State{Selected: true}
	c.Replace(raw)
	if got := c.Selected(); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("Selected() = %v", got)
	}
	if c.Focused() != "0.2" {
		t.Errorf("Focused() = %s", c.Focused())
	}

	c.Replace(model.Tree{{Text: "only"}})
	if len(c.Selected()) != 0 {
		t.Errorf("stale selection kept: %v", c.Selected())
	}
	if c.Focused() != "0" {
		t.Errorf("focus should reset to first node, got %s", c.Focused())
	}
}

func TestReplaceKeepsSingleSelection(t *testing.T) {
	flat := func() model.Tree {
		return model.Tree{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	}
	c := New(flat())
	c.Select("0")

	raw := flat()
	raw[1].State = &model.State{Selected: true}
	if got := c.Replace(raw); got != nil {
		t.Errorf("Replace() emitted %v", changeIDs(got))
	}
	if got := c.Selected(); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("Selected() = %v, want [1]", got)
	}

	c.Select("2")
	if got := tree.Search(c.Tree(), "", "selected", true); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("selected in tree = %v, want [2]", got)
	}
}

// TestReplaceTrimsArrivingSelection verifies extra selected nodes are deselected and the held one wins
func TestReplaceTrimsArrivingSelection(t *testing.T) {
	rec := &Recorder{}
	c := New(model.Tree{{Text: "a"}, {Text: "b"}, {Text: "c"}}, WithSink(rec))
	c.Select("2")
	rec.Reset()

	raw := model.Tree{
		{Text: "a", State: &model.State{Selected: true}},
		{Text: "b"},
		{Text: "c", State: &model.State{Selected: true}},
	}
	c.Replace(raw)
	if got := c.Selected(); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("Selected() = %v, want [2]", got)
	}
	if got := changeIDs(rec.Changes); !reflect.DeepEqual(got, []string{"0 state.selected"}) {
		t.Errorf("changes = %v", got)
	}
	if got := tree.Search(c.Tree(), "", "selected", true); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("selected in tree = %v, want [2]", got)
	}

	m := New(model.Tree{{Text: "a"}, {Text: "b"}}, WithMultiSelect(true))
	m.Replace(model.Tree{
		{Text: "a", State: &model.State{Selected: true}},
		{Text: "b", State: &model.State{Selected: true}},
	})
	if got := m.Selected(); !reflect.DeepEqual(got, []string{"0", "1"}) {
		t.Errorf("multi Selected() = %v", got)
	}
}

// TestLazyLoadSelectedChildren verifies fetched children that arrive selected join the held selection
func TestLazyLoadSelectedChildren(t *testing.T) {
	fetch := func(ctx context.Context, n *model.Node) ([]*model.Node, error) {
		return []*model.Node{
			{Text: "x", State: &model.State{Selected: true}},
			{Text: "y", State: &model.State{Selected: true}},
		}, nil
	}
	rec := &Recorder{}
	c := New(newTestTree(), WithFetcher(fetch), WithSink(rec))
	c.Select("1")

	req := c.Expand("2")
	rec.Reset()
	c.Resolve(req.Run(context.Background()))

	if got := c.Selected(); !reflect.DeepEqual(got, []string{"2.0"}) {
		t.Errorf("Selected() = %v, want [2.0]", got)
	}
	if got := tree.Search(c.Tree(), "", "selected", true); !reflect.DeepEqual(got, []string{"2.0"}) {
		t.Errorf("selected in tree = %v, want [2.0]", got)
	}
	if got := changeIDs(rec.Changes); !reflect.DeepEqual(got, []string{
		"2 nodes", "2 loading", "1 state.selected", "2.0 state.selected",
	}) {
		t.Errorf("changes = %v", got)
	}

	m := New(newTestTree(), WithFetcher(fetch), WithMultiSelect(true))
	m.Select("1")
	req = m.Expand("2")
	m.Resolve(req.Run(context.Background()))
	if got := m.Selected(); !reflect.DeepEqual(got, []string{"1", "2.0", "2.1"}) {
		t.Errorf("multi Selected() = %v", got)
	}
}

func TestHierarchicalRecheckIsSilent(t *testing.T) {
	rec := &Recorder{}
	c := New(newTestTree(), WithHierarchicalCheck(true), WithSink(rec))
	c.SetChecked("1", true)
	rec.Reset()

	if got := c.SetChecked("1", true); got != nil {
		t.Errorf("re-checking a checked leaf emitted %v", changeIDs(got))
	}
	if len(rec.Changes) != 0 {
		t.Errorf("sink notified: %v", changeIDs(rec.Changes))
	}
}
