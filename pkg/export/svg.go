package export

import (
	"bytes"
	"fmt"
	"io"
	"os"

	svg "github.com/ajstarks/svgo"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
	"github.com/vanderheijden86/checktree/pkg/tree"
)

// SVGOptions controls the SVG snapshot layout.
type SVGOptions struct {
	RowHeight int // Pixels per row
	Indent    int // Pixels per depth level
	CharWidth int // Approximate pixels per terminal cell
	MaxCells  int // Text is truncated to this many cells
	Focused   string
}

// DefaultSVGOptions returns the layout used by the CLI.
func DefaultSVGOptions() SVGOptions {
	return SVGOptions{RowHeight: 24, Indent: 20, CharWidth: 8, MaxCells: 60}
}

const (
	svgMargin  = 12
	svgBox     = 12
	colorFg    = "#F8F8F2"
	colorBg    = "#282A36"
	colorMuted = "#6272A4"
	colorCheck = "#50FA7B"
	colorFocus = "#44475A"
	colorSel   = "#BD93F9"
)

// WriteSVG draws the visible rows of t: one row per node with its expander,
// checkbox and text.
func WriteSVG(w io.Writer, t model.Tree, opts SVGOptions) {
	if opts.RowHeight <= 0 {
		opts = DefaultSVGOptions()
	}
	rows := tree.Visible(t)

	maxDepth, maxCells := 0, 0
	for _, n := range rows {
		d := nodeid.Depth(n.ID)
		maxDepth = max(maxDepth, d)
		maxCells = max(maxCells, runewidth.StringWidth(label(n, opts.MaxCells)))
	}
	width := 2*svgMargin + (maxDepth+1)*opts.Indent + svgBox*3 + maxCells*opts.CharWidth
	height := 2*svgMargin + max(len(rows), 1)*opts.RowHeight

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+colorBg)
	if len(rows) == 0 {
		canvas.Text(svgMargin, svgMargin+opts.RowHeight*2/3, "(empty)",
			"fill:"+colorMuted+";font-family:monospace;font-size:14px")
	}
	for i, n := range rows {
		st := n.St()
		y := svgMargin + i*opts.RowHeight
		x := svgMargin + nodeid.Depth(n.ID)*opts.Indent
		mid := y + opts.RowHeight/2

		if n.ID == opts.Focused {
			canvas.Rect(0, y, width, opts.RowHeight, "fill:"+colorFocus)
		}
		if n.HasChildren() || (n.LazyLoad && n.Nodes == nil) {
			arrow := "▸"
			if st.Expanded {
				arrow = "▾"
			}
			canvas.Text(x, mid+5, arrow, "fill:"+colorMuted+";font-family:monospace;font-size:14px")
		}
		x += svgBox + 4

		if n.IsCheckable() {
			stroke := colorFg
			if st.Disabled {
				stroke = colorMuted
			}
			canvas.Rect(x, mid-svgBox/2, svgBox, svgBox,
				fmt.Sprintf("fill:none;stroke:%s;stroke-width:1.5", stroke))
			switch st.Checked {
			case model.Checked:
				canvas.Polyline(
					[]int{x + 2, x + 5, x + svgBox - 2},
					[]int{mid, mid + 3, mid - 4},
					"fill:none;stroke:"+colorCheck+";stroke-width:2")
			case model.Partial:
				canvas.Line(x+3, mid, x+svgBox-3, mid, "stroke:"+colorCheck+";stroke-width:2")
			}
			x += svgBox + 8
		}

		fill := colorFg
		switch {
		case st.Disabled:
			fill = colorMuted
		case st.Selected:
			fill = colorSel
		}
		style := "fill:" + fill + ";font-family:monospace;font-size:14px"
		if st.Selected {
			style += ";font-weight:bold"
		}
		canvas.Text(x, mid+5, label(n, opts.MaxCells), style)
	}
	canvas.End()
}

func label(n *model.Node, maxCells int) string {
	s := n.Text
	if n.Icon != "" {
		s = n.Icon + " " + s
	}
	if maxCells > 0 {
		s = runewidth.Truncate(s, maxCells, "…")
	}
	return s
}

// SaveSVGToFile writes the snapshot to filename.
func SaveSVGToFile(t model.Tree, filename string, opts SVGOptions) error {
	var buf bytes.Buffer
	WriteSVG(&buf, t, opts)
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write svg %s: %w", filename, err)
	}
	return nil
}
