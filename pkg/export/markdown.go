// Package export renders a tree as a Markdown checklist or an SVG snapshot.
package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// MarkdownOptions controls GenerateMarkdown.
type MarkdownOptions struct {
	Title string
	// CollapsedToo includes children of collapsed nodes.
	CollapsedToo bool
	// Now stamps the header; zero omits the "Generated" line.
	Now time.Time
}

// CheckMark returns the task-list marker for c: "[x]", "[ ]" or "[-]".
func CheckMark(c model.Check) string {
	switch c {
	case model.Checked:
		return "[x]"
	case model.Partial:
		return "[-]"
	}
	return "[ ]"
}

// GenerateMarkdown renders t as a nested task list with a summary header.
func GenerateMarkdown(t model.Tree, opts MarkdownOptions) string {
	var sb strings.Builder

	if opts.Title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", opts.Title)
	}
	if !opts.Now.IsZero() {
		fmt.Fprintf(&sb, "Generated: %s\n\n", opts.Now.Format(time.RFC1123))
	}

	var total, checked, partial int
	var count func(nodes []*model.Node)
	count = func(nodes []*model.Node) {
		for _, n := range nodes {
			total++
			switch n.St().Checked {
			case model.Checked:
				checked++
			case model.Partial:
				partial++
			}
			count(n.Nodes)
		}
	}
	count(t)
	fmt.Fprintf(&sb, "- **Total**: %d\n", total)
	fmt.Fprintf(&sb, "- **Checked**: %d\n", checked)
	fmt.Fprintf(&sb, "- **Partial**: %d\n\n", partial)

	var write func(nodes []*model.Node, depth int)
	write = func(nodes []*model.Node, depth int) {
		for _, n := range nodes {
			st := n.St()
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString("- ")
			if n.IsCheckable() {
				sb.WriteString(CheckMark(st.Checked))
				sb.WriteByte(' ')
			}
			if n.Icon != "" {
				sb.WriteString(n.Icon)
				sb.WriteByte(' ')
			}
			text := escapeMarkdown(n.Text)
			if st.Disabled {
				text = "~~" + text + "~~"
			}
			if st.Selected {
				text = "**" + text + "**"
			}
			sb.WriteString(text)
			if n.LazyLoad && n.Nodes == nil {
				sb.WriteString(" _(not loaded)_")
			} else if n.Loading == model.LoadFailed {
				sb.WriteString(" _(load failed)_")
			}
			sb.WriteByte('\n')
			if st.Expanded || opts.CollapsedToo {
				write(n.Nodes, depth+1)
			}
		}
	}
	write(t, 0)
	return sb.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "~", `\~`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.ReplaceAll(s, "\n", " "))
}

// SaveMarkdownToFile writes the checklist for t to filename.
func SaveMarkdownToFile(t model.Tree, filename string, opts MarkdownOptions) error {
	if err := os.WriteFile(filename, []byte(GenerateMarkdown(t, opts)), 0644); err != nil {
		return fmt.Errorf("write markdown %s: %w", filename, err)
	}
	return nil
}
