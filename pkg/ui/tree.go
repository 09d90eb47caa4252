// tree.go - Checkbox tree rendering and scrolling
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/checktree/pkg/export"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/session"
)

// row is one rendered line: a visible node plus its branch prefix.
type row struct {
	node   *model.Node
	prefix string
}

// TreeModel renders the visible part of a controller's tree and keeps the
// focused row on screen. It holds no tree state of its own.
type TreeModel struct {
	ctrl  *session.Controller
	theme Theme

	width          int
	height         int
	viewportOffset int // Index of the first rendered row

	rows []row
}

// NewTreeModel creates a tree view over ctrl.
func NewTreeModel(ctrl *session.Controller, theme Theme) TreeModel {
	t := TreeModel{ctrl: ctrl, theme: theme}
	t.Refresh()
	return t
}

// SetSize sets the available width and height in cells.
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureFocusVisible()
}

// Refresh rebuilds the row list after the controller's tree or focus changed.
func (t *TreeModel) Refresh() {
	t.rows = make([]row, 0, len(t.rows))
	var walk func(nodes []*model.Node, prefix string, top bool)
	walk = func(nodes []*model.Node, prefix string, top bool) {
		for i, n := range nodes {
			last := i == len(nodes)-1
			branch, next := "", ""
			if !top {
				branch, next = prefix+"├── ", prefix+"│   "
				if last {
					branch, next = prefix+"└── ", prefix+"    "
				}
			}
			t.rows = append(t.rows, row{node: n, prefix: branch})
			if n.St().Expanded {
				walk(n.Nodes, next, false)
			}
		}
	}
	walk(t.ctrl.Tree(), "", true)
	t.ensureFocusVisible()
}

// RowCount returns the number of visible rows.
func (t *TreeModel) RowCount() int {
	return len(t.rows)
}

// FocusIndex returns the row index of the focused node, or -1.
func (t *TreeModel) FocusIndex() int {
	id := t.ctrl.Focused()
	for i, r := range t.rows {
		if r.node.ID == id {
			return i
		}
	}
	return -1
}

// FocusRow moves focus to the row at index i, clamped to the row range.
func (t *TreeModel) FocusRow(i int) {
	if len(t.rows) == 0 {
		return
	}
	i = max(0, min(i, len(t.rows)-1))
	t.ctrl.Focus(t.rows[i].node.ID)
	t.ensureFocusVisible()
}

// PageSize is the number of rows moved by page up/down.
func (t *TreeModel) PageSize() int {
	if t.height/2 < 1 {
		return 5
	}
	return t.height / 2
}

func (t *TreeModel) viewHeight() int {
	if t.height <= 0 {
		return 20
	}
	return t.height
}

// ensureFocusVisible scrolls so the focused row is inside the window.
func (t *TreeModel) ensureFocusVisible() {
	idx := t.FocusIndex()
	if idx < 0 {
		return
	}
	h := t.viewHeight()
	if idx < t.viewportOffset {
		t.viewportOffset = idx
	}
	if idx >= t.viewportOffset+h {
		t.viewportOffset = idx - h + 1
	}
	t.viewportOffset = max(0, min(t.viewportOffset, len(t.rows)-h))
}

// visibleRange returns the [start, end) row indices to render.
func (t *TreeModel) visibleRange() (start, end int) {
	if len(t.rows) == 0 {
		return 0, 0
	}
	start = max(0, min(t.viewportOffset, len(t.rows)-t.viewHeight()))
	end = min(start+t.viewHeight(), len(t.rows))
	return start, end
}

// View renders the visible rows. spin is drawn next to nodes whose children
// are loading.
func (t *TreeModel) View(spin string) string {
	if len(t.rows) == 0 {
		return t.renderEmptyState()
	}
	focused := t.ctrl.Focused()
	start, end := t.visibleRange()

	var sb strings.Builder
	for i := start; i < end; i++ {
		r := t.rows[i]
		line := t.renderNode(r, spin)
		if r.node.ID == focused {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (t *TreeModel) renderEmptyState() string {
	r := t.theme.Renderer
	titleStyle := r.NewStyle().Foreground(t.theme.Primary).Bold(true)
	mutedStyle := r.NewStyle().Foreground(t.theme.Muted)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Tree View"))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("No nodes to display."))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render("Load a tree with -data FILE, -db FILE or -demo."))
	return sb.String()
}

// renderNode renders one row: branch prefix, expander, checkbox, icon, text.
func (t *TreeModel) renderNode(rw row, spin string) string {
	n := rw.node
	st := n.St()
	r := t.theme.Renderer
	var sb strings.Builder

	sb.WriteString(r.NewStyle().Foreground(t.theme.Muted).Render(rw.prefix))

	indicator := expandIndicator(n)
	if n.Loading == model.LoadInFlight && spin != "" {
		indicator = spin
	}
	sb.WriteString(r.NewStyle().Foreground(t.theme.Secondary).Render(indicator))
	sb.WriteString(" ")

	if n.IsCheckable() {
		boxStyle := r.NewStyle().Foreground(t.theme.Check)
		if st.Disabled {
			boxStyle = r.NewStyle().Foreground(t.theme.Muted)
		}
		sb.WriteString(boxStyle.Render(export.CheckMark(st.Checked)))
		sb.WriteString(" ")
	}

	if n.Icon != "" {
		sb.WriteString(n.Icon)
		sb.WriteString(" ")
	}

	textStyle := t.theme.Base
	switch {
	case st.Disabled:
		textStyle = r.NewStyle().Foreground(t.theme.Muted).Strikethrough(true)
	case st.Selected:
		textStyle = r.NewStyle().Foreground(t.theme.Primary).Bold(true)
	}
	used := lipgloss.Width(sb.String())
	suffix := ""
	if n.Loading == model.LoadFailed {
		suffix = " ✗ load failed"
	}
	maxText := 0
	if t.width > 0 {
		maxText = max(10, t.width-used-runewidth.StringWidth(suffix))
	}
	sb.WriteString(textStyle.Render(truncateText(n.Text, maxText)))
	for _, tag := range n.Tags {
		sb.WriteString(" ")
		sb.WriteString(r.NewStyle().Foreground(t.theme.Highlight).Render("#" + tag))
	}
	if suffix != "" {
		sb.WriteString(r.NewStyle().Foreground(t.theme.Error).Render(suffix))
	}
	return sb.String()
}

// expandIndicator returns the expander glyph: a bullet for leaves, a
// triangle for nodes with (possibly unfetched) children.
func expandIndicator(n *model.Node) string {
	switch {
	case n.HasChildren(), n.NeedsFetch():
		if n.St().Expanded {
			return "▾"
		}
		return "▸"
	case n.LazyLoad && n.Nodes != nil:
		return "◦" // Fetched, no children
	}
	return "•"
}

// truncateText shortens s to maxCells display cells with an ellipsis. Zero
// means no limit.
func truncateText(s string, maxCells int) string {
	if maxCells <= 0 {
		return s
	}
	return runewidth.Truncate(s, maxCells, "…")
}

// RenderStatic renders every visible row of t without focus highlighting,
// for printing to a non-interactive terminal. width <= 0 disables
// truncation.
func RenderStatic(t model.Tree, theme Theme, width int) string {
	tm := NewTreeModel(session.New(t), theme)
	tm.width = width
	if len(tm.rows) == 0 {
		return tm.renderEmptyState()
	}
	lines := make([]string, len(tm.rows))
	for i, r := range tm.rows {
		lines[i] = tm.renderNode(r, "")
	}
	return strings.Join(lines, "\n")
}
