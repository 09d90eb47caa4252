package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/session"
)

func newTreeTestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(nil))
}

// testTree has six visible rows:
//
//	0   Fruits (expanded)
//	0.0   Apple
//	0.1   Banana
//	1   Remote (lazy)
//	2   Archived (disabled)
//	3   Veg (collapsed, one hidden child)
func testTree() model.Tree {
	return model.Tree{
		{Text: "Fruits", Icon: "🍎", State: &model.State{Expanded: true}, Nodes: []*model.Node{
			{Text: "Apple"},
			{Text: "Banana", Tags: []string{"yellow"}},
		}},
		{Text: "Remote", LazyLoad: true},
		{Text: "Archived", State: &model.State{Disabled: true}},
		{Text: "Veg", Nodes: []*model.Node{{Text: "Carrot"}}},
	}
}

func newTestTree(opts ...session.Option) (*session.Controller, TreeModel) {
	ctrl := session.New(testTree(), opts...)
	tm := NewTreeModel(ctrl, newTreeTestTheme())
	tm.SetSize(80, 20)
	return ctrl, tm
}

func TestTreeViewEmpty(t *testing.T) {
	tm := NewTreeModel(session.New(nil), newTreeTestTheme())
	tm.SetSize(80, 20)

	view := tm.View("")
	if !strings.Contains(view, "No nodes to display") {
		t.Errorf("expected empty state message, got:\n%s", view)
	}
	if tm.FocusIndex() != -1 {
		t.Errorf("FocusIndex() = %d, want -1", tm.FocusIndex())
	}
}

func TestTreeViewRendering(t *testing.T) {
	_, tm := newTestTree()

	if tm.RowCount() != 6 {
		t.Fatalf("RowCount() = %d, want 6", tm.RowCount())
	}
	view := tm.View("")
	for _, want := range []string{"Fruits", "🍎", "├── ", "└── ", "Apple", "Banana", "#yellow", "[ ]", "Veg"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}
	if strings.Contains(view, "Carrot") {
		t.Errorf("children of collapsed nodes should not render:\n%s", view)
	}
	if lines := strings.Count(view, "\n") + 1; lines != 6 {
		t.Errorf("got %d lines, want 6", lines)
	}
}

func TestTreeViewCheckMarks(t *testing.T) {
	ctrl, tm := newTestTree(session.WithHierarchicalCheck(true))

	ctrl.SetChecked("0.0", true)
	tm.Refresh()
	view := tm.View("")
	if !strings.Contains(view, "[-] 🍎 Fruits") {
		t.Errorf("expected partial parent, got:\n%s", view)
	}
	if !strings.Contains(view, "[x] Apple") {
		t.Errorf("expected checked child, got:\n%s", view)
	}
}

func TestTreeViewUncheckableHasNoBox(t *testing.T) {
	ctrl := session.New(model.Tree{{Text: "Heading", Checkable: model.Bool(false)}})
	tm := NewTreeModel(ctrl, newTreeTestTheme())
	if view := tm.View(""); strings.Contains(view, "[ ]") {
		t.Errorf("uncheckable node rendered a checkbox:\n%s", view)
	}
}

func TestTreeViewIndicators(t *testing.T) {
	tests := []struct {
		name string
		node *model.Node
		want string
	}{
		{"leaf", &model.Node{Text: "leaf"}, "•"},
		{"collapsed", &model.Node{Nodes: []*model.Node{{}}}, "▸"},
		{"expanded", &model.Node{Nodes: []*model.Node{{}}, State: &model.State{Expanded: true}}, "▾"},
		{"lazy unfetched", &model.Node{LazyLoad: true}, "▸"},
		{"lazy fetched empty", &model.Node{LazyLoad: true, Nodes: []*model.Node{}, Loading: model.LoadDone}, "◦"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandIndicator(tt.node); got != tt.want {
				t.Errorf("expandIndicator() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeViewLoadStates(t *testing.T) {
	fetch := func(ctx context.Context, n *model.Node) ([]*model.Node, error) { return nil, nil }
	ctrl, tm := newTestTree(session.WithFetcher(fetch))

	if req := ctrl.Expand("1"); req == nil {
		t.Fatal("expected a load request")
	}
	tm.Refresh()
	if view := tm.View("⣾"); !strings.Contains(view, "⣾ [ ] Remote") {
		t.Errorf("expected spinner next to loading node, got:\n%s", view)
	}

	noFetch, tm2 := newTestTree()
	noFetch.Expand("1")
	tm2.Refresh()
	if view := tm2.View(""); !strings.Contains(view, "load failed") {
		t.Errorf("expected failure marker, got:\n%s", view)
	}
}

func TestTreeTruncateText(t *testing.T) {
	tests := []struct {
		text     string
		maxCells int
		want     string
	}{
		{"Short", 20, "Short"},
		{"This is a very long title that should be truncated", 20, "This is a very long…"},
		{"ABC", 3, "ABC"},
		{"A", 10, "A"},
		{"unlimited", 0, "unlimited"},
		{"日本語テキスト", 7, "日本語…"},
	}
	for _, tt := range tests {
		if got := truncateText(tt.text, tt.maxCells); got != tt.want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", tt.text, tt.maxCells, got, tt.want)
		}
	}
}

func TestTreeViewTruncatesToWidth(t *testing.T) {
	ctrl := session.New(model.Tree{{Text: strings.Repeat("word ", 40)}})
	tm := NewTreeModel(ctrl, newTreeTestTheme())
	tm.SetSize(40, 5)
	view := tm.View("")
	if w := lipgloss.Width(view); w > 40 {
		t.Errorf("view width %d exceeds 40:\n%s", w, view)
	}
	if !strings.Contains(view, "…") {
		t.Errorf("expected ellipsis, got:\n%s", view)
	}
}

func TestVisibleRange(t *testing.T) {
	tests := []struct {
		name      string
		nodeCount int
		height    int
		offset    int
		wantStart int
		wantEnd   int
	}{
		{"empty tree", 0, 10, 0, 0, 0},
		{"fewer nodes than viewport", 5, 10, 0, 0, 5},
		{"exact fit", 10, 10, 0, 0, 10},
		{"offset in middle", 100, 10, 45, 45, 55},
		{"offset near end", 100, 10, 90, 90, 100},
		{"offset past end clamps", 100, 10, 95, 90, 100},
		{"zero height uses default 20", 100, 0, 0, 0, 20},
		{"negative height uses default 20", 100, -5, 0, 0, 20},
		{"single node", 1, 10, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := TreeModel{height: tt.height, viewportOffset: tt.offset}
			tm.rows = make([]row, tt.nodeCount)
			for i := range tm.rows {
				tm.rows[i] = row{node: &model.Node{ID: fmt.Sprint(i)}}
			}
			start, end := tm.visibleRange()
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("visibleRange() = (%d, %d), want (%d, %d)", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func longTree(n int) model.Tree {
	t := make(model.Tree, n)
	for i := range t {
		t[i] = &model.Node{Text: fmt.Sprintf("Item %d", i)}
	}
	return t
}

func TestTreeScrollKeepsFocusVisible(t *testing.T) {
	ctrl := session.New(longTree(50))
	tm := NewTreeModel(ctrl, newTreeTestTheme())
	tm.SetSize(80, 10)

	ctrl.FocusLast()
	tm.Refresh()
	if tm.viewportOffset != 40 {
		t.Errorf("viewportOffset = %d, want 40", tm.viewportOffset)
	}
	view := tm.View("")
	if !strings.Contains(view, "Item 49") || strings.Contains(view, "Item 39") {
		t.Errorf("expected rows 40-49, got:\n%s", view)
	}

	ctrl.FocusFirst()
	tm.Refresh()
	if tm.viewportOffset != 0 {
		t.Errorf("viewportOffset = %d, want 0", tm.viewportOffset)
	}
}

func TestTreeFocusRowClamps(t *testing.T) {
	ctrl := session.New(longTree(30))
	tm := NewTreeModel(ctrl, newTreeTestTheme())
	tm.SetSize(80, 10)

	if tm.PageSize() != 5 {
		t.Errorf("PageSize() = %d, want 5", tm.PageSize())
	}
	tm.FocusRow(tm.FocusIndex() + 100)
	if ctrl.Focused() != "29" {
		t.Errorf("focused %q, want 29", ctrl.Focused())
	}
	tm.FocusRow(-3)
	if ctrl.Focused() != "0" {
		t.Errorf("focused %q, want 0", ctrl.Focused())
	}
	tm.FocusRow(12)
	if tm.FocusIndex() != 12 {
		t.Errorf("FocusIndex() = %d, want 12", tm.FocusIndex())
	}
}

func TestRenderStatic(t *testing.T) {
	out := RenderStatic(testTree(), newTreeTestTheme(), 0)
	if lines := strings.Split(out, "\n"); len(lines) != 6 {
		t.Fatalf("got %d lines, want 6:\n%s", len(lines), out)
	}
	if !strings.Contains(out, "└── ") {
		t.Errorf("missing branch prefix:\n%s", out)
	}

	narrow := RenderStatic(model.Tree{{Text: strings.Repeat("x", 100)}}, newTreeTestTheme(), 30)
	if lipgloss.Width(narrow) > 30 {
		t.Errorf("static output wider than 30:\n%s", narrow)
	}

	if empty := RenderStatic(nil, newTreeTestTheme(), 80); !strings.Contains(empty, "No nodes") {
		t.Errorf("empty static output:\n%s", empty)
	}
}
