package main

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/taigrr/colorhash"

	"github.com/entro314-labs/spacemap/internal/core"
)

// A terminal cell stands for a block of virtual pixels, so layout and
// hit-testing keep working in the units their defaults are tuned for. Cells
// are roughly twice as tall as they are wide.
const (
	cellWidth  = 8.0
	cellHeight = 16.0
)

func canvasRect(cols, rows int) core.Rect {
	return core.Rect{W: float64(cols) * cellWidth, H: float64(rows) * cellHeight}
}

// cellPoint is the canvas position at the centre of a cell.
func cellPoint(col, row int) core.Point {
	return core.Point{X: (float64(col) + 0.5) * cellWidth, Y: (float64(row) + 0.5) * cellHeight}
}

// cellSpan returns the half-open cell range covered by r.
func cellSpan(r core.Rect) (x0, y0, x1, y1 int) {
	x0 = int(math.Round(r.X / cellWidth))
	y0 = int(math.Round(r.Y / cellHeight))
	x1 = int(math.Round((r.X + r.W) / cellWidth))
	y1 = int(math.Round((r.Y + r.H) / cellHeight))
	return x0, y0, x1, y1
}

var palette = []lipgloss.Color{
	"24", "25", "29", "30", "31", "60", "61", "66",
	"94", "95", "96", "97", "130", "131", "132", "136",
}

const (
	aggregateColor = lipgloss.Color("240")
	frameColor     = lipgloss.Color("236")
	canvasColor    = lipgloss.Color("234")
	selectedColor  = lipgloss.Color("57")
	errorColor     = lipgloss.Color("203")
	textColor      = lipgloss.Color("252")
)

type cellStyle struct {
	fg, bg lipgloss.Color
	bold   bool
}

type cell struct {
	ch rune
	st cellStyle
}

// grid is a character buffer the tiles are painted into, parents first.
type grid struct {
	cols, rows int
	cells      []cell
}

func newGrid(cols, rows int) *grid {
	g := &grid{cols: max(cols, 0), rows: max(rows, 0)}
	g.cells = make([]cell, g.cols*g.rows)
	for i := range g.cells {
		g.cells[i] = cell{ch: ' ', st: cellStyle{fg: textColor, bg: canvasColor}}
	}
	return g
}

func (g *grid) clip(x0, y0, x1, y1 int) (int, int, int, int) {
	return max(x0, 0), max(y0, 0), min(x1, g.cols), min(y1, g.rows)
}

func (g *grid) fill(x0, y0, x1, y1 int, st cellStyle) {
	x0, y0, x1, y1 = g.clip(x0, y0, x1, y1)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			g.cells[y*g.cols+x] = cell{ch: ' ', st: st}
		}
	}
}

// text writes s at (x, y), cut at column limit. The cells keep their
// background.
func (g *grid) text(x, y, limit int, s string, fg lipgloss.Color, bold bool) {
	if y < 0 || y >= g.rows {
		return
	}
	limit = min(limit, g.cols)
	for _, r := range s {
		if x >= limit {
			return
		}
		if x >= 0 {
			c := &g.cells[y*g.cols+x]
			c.ch = r
			c.st.fg = fg
			c.st.bold = bold
		}
		x++
	}
}

func (g *grid) at(x, y int) cell {
	return g.cells[y*g.cols+x]
}

// String renders the grid, one lipgloss style per run of equal cells.
func (g *grid) String() string {
	styles := map[cellStyle]lipgloss.Style{}
	render := func(st cellStyle, s string) string {
		style, ok := styles[st]
		if !ok {
			style = lipgloss.NewStyle().Foreground(st.fg).Background(st.bg).Bold(st.bold)
			styles[st] = style
		}
		return style.Render(s)
	}

	var b strings.Builder
	var run strings.Builder
	for y := range g.rows {
		if y > 0 {
			b.WriteByte('\n')
		}
		start := 0
		for x := 0; x <= g.cols; x++ {
			if x < g.cols && g.at(x, y).st == g.at(start, y).st {
				run.WriteRune(g.at(x, y).ch)
				continue
			}
			if run.Len() > 0 {
				b.WriteString(render(g.at(start, y).st, run.String()))
				run.Reset()
			}
			if x < g.cols {
				start = x
				run.WriteRune(g.at(x, y).ch)
			}
		}
	}
	return b.String()
}

// colorKey groups files by extension and directories by name.
func colorKey(t core.Tile) string {
	if t.Kind == core.Dir {
		return t.Name
	}
	if ext := strings.ToLower(filepath.Ext(t.Name)); ext != "" {
		return ext
	}
	return t.Name
}

func tileColor(t core.Tile) lipgloss.Color {
	if t.Aggregate > 0 {
		return aggregateColor
	}
	h := colorhash.HashString(colorKey(t))
	if h < 0 {
		h = -h
	}
	return palette[h%len(palette)]
}

func paintTiles(g *grid, tiles []core.Tile) {
	for _, t := range tiles {
		x0, y0, x1, y1 := cellSpan(t.Rect)
		if x1 <= x0 || y1 <= y0 {
			continue
		}
		bg := tileColor(t)
		fg := textColor
		if t.Selected {
			bg = selectedColor
		}
		if t.Err {
			fg = errorColor
		}
		g.fill(x0, y0, x1, y1, cellStyle{fg: fg, bg: bg})

		if t.Expanded > 0 && !t.Content.Empty() {
			cx0, cy0, cx1, cy1 := cellSpan(t.Content)
			g.fill(cx0, cy0, cx1, cy1, cellStyle{fg: fg, bg: frameColor})
		}
		if t.LabelSuppressed {
			continue
		}

		label := t.Label()
		if t.Err {
			label = "! " + label
		}
		g.text(x0, y0, x1, label, fg, t.IsDir())
		if t.Expanded == 0 && y1-y0 >= 2 {
			g.text(x0, y0+1, x1, core.FormatSize(t.Size), fg, false)
		}
	}
}
