package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// helpContent is the full help screen, rendered as markdown.
const helpContent = `# Tree View

## Navigation

| Key | Action |
|-----|--------|
| ↑/k, ↓/j | Move focus |
| pgup, pgdn | Move by half a screen |
| g, G | Jump to first / last row |
| →/l | Expand, or move to the first child |
| ←/h | Collapse, or move to the parent |
| E, C | Expand / collapse everything loaded |

## Checking and selecting

| Key | Action |
|-----|--------|
| space, x | Toggle the checkbox |
| enter | Toggle selection |
| y | Copy the focused node's key |
| r | Reload the tree document |

%s

## Checkboxes

- ` + "`[x]`" + ` checked
- ` + "`[ ]`" + ` unchecked
- ` + "`[-]`" + ` some descendants checked

Nodes marked ▸ with nothing below them are fetched when first expanded.
A spinner shows while they load; ✗ marks a failed load.
`

const modeHierarchical = `Hierarchical checking is **on**: checking a node checks every enabled
descendant, and parents show whether all, some or none of their children are checked.`

const modeFlat = `Hierarchical checking is **off**: each checkbox is independent.`

// HelpMarkdown returns the help text for the given check mode.
func HelpMarkdown(hierarchical bool) string {
	mode := modeFlat
	if hierarchical {
		mode = modeHierarchical
	}
	return fmt.Sprintf(helpContent, mode)
}

// RenderHelp renders the help screen to width cells. It falls back to the
// raw markdown if glamour fails.
func RenderHelp(hierarchical bool, width int) string {
	md := HelpMarkdown(hierarchical)
	wrap := max(width-4, 20)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// renderHelpFrame wraps rendered help in a rounded border with a footer hint.
func renderHelpFrame(body string, theme Theme, width int) string {
	r := theme.Renderer
	footerStyle := r.NewStyle().Foreground(theme.Muted).Italic(true)

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("↑/↓ scroll │ ? or Esc to close"))

	frame := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(0, 1)
	if width > 4 {
		frame = frame.Width(width - 2)
	}
	return frame.Render(b.String())
}
