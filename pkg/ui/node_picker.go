package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
	"github.com/vanderheijden86/checktree/pkg/tree"
)

// pickerLimit caps the number of matches listed.
const pickerLimit = 10

// JumpToNodeMsg is sent when the user picks a node in the finder.
type JumpToNodeMsg struct {
	NodeID string
}

// pickerEntry is one loaded node as shown in the finder.
type pickerEntry struct {
	id   string
	path string // Ancestor texts joined with " › "
	text string
}

// NodePickerModel is a fuzzy finder over every loaded node, including those
// hidden under collapsed parents. Nodes below unfetched lazy nodes are not
// known and cannot be found.
type NodePickerModel struct {
	entries     []pickerEntry
	filtered    []int // Indices into entries, best match first
	cursor      int
	width       int
	filterInput textinput.Model
	theme       Theme
}

// NewNodePicker indexes t for searching.
func NewNodePicker(t model.Tree, theme Theme) NodePickerModel {
	ti := textinput.New()
	ti.Placeholder = "type to find..."
	ti.CharLimit = 80
	ti.Width = 40
	ti.Focus()

	var entries []pickerEntry
	texts := map[string]string{}
	for _, id := range tree.SearchFunc(t, "", func(*model.Node) bool { return true }) {
		n := tree.Locate(t, id)
		texts[id] = n.Text
		entries = append(entries, pickerEntry{id: id, text: n.Text, path: ancestorPath(id, texts)})
	}

	m := NodePickerModel{entries: entries, filterInput: ti, theme: theme}
	m.applyFilter()
	return m
}

// ancestorPath joins the texts of id's ancestors. Pre-order guarantees the
// ancestors are already in texts.
func ancestorPath(id string, texts map[string]string) string {
	var parts []string
	for p := nodeid.Parent(id); p != ""; p = nodeid.Parent(p) {
		parts = append([]string{texts[p]}, parts...)
	}
	return strings.Join(parts, " › ")
}

// SetWidth updates the picker width.
func (m *NodePickerModel) SetWidth(w int) {
	m.width = w
}

// Query returns the current search text.
func (m NodePickerModel) Query() string {
	return m.filterInput.Value()
}

// Matches returns the ids of the matching nodes, best first.
func (m NodePickerModel) Matches() []string {
	ids := make([]string, len(m.filtered))
	for i, idx := range m.filtered {
		ids[i] = m.entries[idx].id
	}
	return ids
}

// Update handles keys while the finder is open. It returns done when the
// finder should close; a pick is reported through the returned command.
func (m NodePickerModel) Update(msg tea.KeyMsg) (NodePickerModel, tea.Cmd, bool) {
	switch msg.String() {
	case "esc", "ctrl+c":
		return m, nil, true
	case "enter":
		if m.cursor < len(m.filtered) {
			id := m.entries[m.filtered[m.cursor]].id
			return m, func() tea.Msg { return JumpToNodeMsg{NodeID: id} }, true
		}
		return m, nil, true
	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil, false
	case "down", "ctrl+n":
		if m.cursor < min(len(m.filtered), pickerLimit)-1 {
			m.cursor++
		}
		return m, nil, false
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.applyFilter()
	return m, cmd, false
}

func (m *NodePickerModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filterInput.Value()))
	m.filtered = nil
	if query == "" {
		for i := range m.entries {
			m.filtered = append(m.filtered, i)
		}
	} else {
		type scored struct {
			index int
			score int
		}
		var matches []scored
		for i, e := range m.entries {
			if s := fuzzyScore(strings.ToLower(e.text), query); s > 0 {
				matches = append(matches, scored{i, s})
			}
		}
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].score > matches[j].score
		})
		for _, s := range matches {
			m.filtered = append(m.filtered, s.index)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

// fuzzyScore scores query as a subsequence of s; 0 means no match. A
// substring match beats a scattered one and earlier is better.
func fuzzyScore(s, query string) int {
	if query == "" {
		return 1
	}
	if i := strings.Index(s, query); i >= 0 {
		return 1000 - min(i, 500)
	}
	score, last := 0, -1
	rs := []rune(s)
	pos := 0
	for _, q := range query {
		found := false
		for ; pos < len(rs); pos++ {
			if rs[pos] == q {
				score += 10
				if pos == last+1 {
					score += 5 // Consecutive
				}
				last = pos
				pos++
				found = true
				break
			}
		}
		if !found {
			return 0
		}
	}
	return score
}

// View renders the finder box.
func (m NodePickerModel) View() string {
	t := m.theme
	r := t.Renderer
	boxWidth := 60
	if m.width > 0 && m.width-4 < boxWidth {
		boxWidth = max(m.width-4, 20)
	}

	var lines []string
	lines = append(lines, r.NewStyle().Foreground(t.Primary).Bold(true).Render("Find node"))
	lines = append(lines, m.filterInput.View())
	lines = append(lines, "")

	if len(m.filtered) == 0 {
		lines = append(lines, r.NewStyle().Foreground(t.Muted).Render("  no matches"))
	}
	for i, idx := range m.filtered {
		if i == pickerLimit {
			more := fmt.Sprintf("  … %d more", len(m.filtered)-pickerLimit)
			lines = append(lines, r.NewStyle().Foreground(t.Muted).Render(more))
			break
		}
		e := m.entries[idx]
		prefix, style := "  ", r.NewStyle().Foreground(t.Base.GetForeground())
		if i == m.cursor {
			prefix, style = "> ", r.NewStyle().Foreground(t.Primary).Bold(true)
		}
		line := style.Render(prefix + truncateText(e.text, boxWidth-6))
		if e.path != "" {
			line += r.NewStyle().Foreground(t.Muted).Render("  " + truncateText(e.path, max(boxWidth-lipgloss.Width(line)-4, 8)))
		}
		lines = append(lines, line)
	}

	lines = append(lines, "")
	lines = append(lines, r.NewStyle().Foreground(t.Secondary).Italic(true).Render("↑/↓: navigate | enter: jump | esc: cancel"))

	return r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))
}
