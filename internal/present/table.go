package present

import (
	"strings"

	"docchat-cli/internal/render"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// never shrink a column below this
const minColWidth = 8

type tableRow struct {
	cells []string
}

func tableRows(n *render.Node) []tableRow {
	var rows []tableRow
	for _, r := range n.Children {
		if r.Kind != render.KindTableRow {
			continue
		}
		var row tableRow
		for _, c := range r.Children {
			row.cells = append(row.cells, strings.TrimSpace(strings.ReplaceAll(render.PlainText(c), "\n", " ")))
		}
		rows = append(rows, row)
	}
	return rows
}

// table draws a table with box-drawing borders. Columns keep their natural
// width when the table fits; otherwise every column is capped at the
// largest width that fits and cells wrap.
func (p *Printer) table(n *render.Node, width int) string {
	rows := tableRows(n)
	if len(rows) == 0 {
		return ""
	}

	numCols := 0
	for _, r := range rows {
		numCols = max(numCols, len(r.cells))
	}
	if numCols == 0 {
		return ""
	}
	widths := make([]int, numCols)
	for _, r := range rows {
		for i, cell := range r.cells {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	capWidths(widths, width)

	border := func(left, mid, right string) string {
		var sb strings.Builder
		sb.WriteString(left)
		for i, w := range widths {
			sb.WriteString(strings.Repeat("─", w+2))
			if i < len(widths)-1 {
				sb.WriteString(mid)
			}
		}
		sb.WriteString(right)
		return p.theme.Accent.Render(sb.String())
	}
	bar := p.theme.Accent.Render("│")

	var out []string
	out = append(out, border("┌", "┬", "┐"))
	for idx, r := range rows {
		// the first row is the header whether or not it is marked
		if idx == 1 {
			out = append(out, border("├", "┼", "┤"))
		}

		cellLines := make([][]string, numCols)
		height := 1
		for i := range widths {
			cell := ""
			if i < len(r.cells) {
				cell = r.cells[i]
			}
			cellLines[i] = wrapCell(cell, widths[i])
			height = max(height, len(cellLines[i]))
		}

		style := p.theme.Body
		if idx == 0 {
			style = p.theme.Strong.Bold(true)
		}
		for line := 0; line < height; line++ {
			var sb strings.Builder
			sb.WriteString(bar)
			for i, w := range widths {
				cell := ""
				if line < len(cellLines[i]) {
					cell = cellLines[i][line]
				}
				pad := strings.Repeat(" ", max(0, w-runewidth.StringWidth(cell)))
				sb.WriteString(" " + styleLines(style, cell) + pad + " " + bar)
			}
			out = append(out, sb.String())
		}
	}
	out = append(out, border("└", "┴", "┘"))
	return strings.Join(out, "\n")
}

// capWidths binary-searches the largest column cap that keeps the table
// within width. Each column costs one border and two padding spaces, plus
// the closing border.
func capWidths(widths []int, width int) {
	numCols := len(widths)
	available := width - (3*numCols + 1)
	if available < numCols*minColWidth {
		available = numCols * minColWidth
	}

	total, widest := 0, 0
	for _, w := range widths {
		total += w
		widest = max(widest, w)
	}
	if total <= available {
		return
	}

	lo, hi := minColWidth, widest
	colCap := minColWidth
	for lo <= hi {
		mid := (lo + hi) / 2
		sum := 0
		for _, w := range widths {
			sum += min(w, mid)
		}
		if sum <= available {
			colCap = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	for i, w := range widths {
		widths[i] = min(w, colCap)
	}
}

// wrapCell breaks text at word boundaries, hard-wrapping words longer than
// the column.
func wrapCell(text string, width int) []string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return []string{text}
	}
	wrapped := wrap.String(wordwrap.String(text, width), width)
	lines := strings.Split(wrapped, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines
}
