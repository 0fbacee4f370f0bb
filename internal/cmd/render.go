package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

const defaultWidth = 120

// palette holds the styles used by scan and status. Colours are dropped
// automatically when out is not a terminal.
type palette struct {
	renderer *lipgloss.Renderer
	header   lipgloss.Style
	good     lipgloss.Style
	warn     lipgloss.Style
	bad      lipgloss.Style
	dim      lipgloss.Style
	width    int
}

func newPalette(out io.Writer) palette {
	r := lipgloss.NewRenderer(out)
	width := defaultWidth
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	return palette{
		renderer: r,
		header:   r.NewStyle().Bold(true).Padding(0, 1),
		good:     r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("11")),
		bad:      r.NewStyle().Foreground(lipgloss.Color("9")),
		dim:      r.NewStyle().Foreground(lipgloss.Color("8")),
		width:    width,
	}
}

// table renders rows under headers. style picks a per-cell style for data
// rows; it may be nil.
func (p palette) table(headers []string, rows [][]string, style func(row, col int) lipgloss.Style) string {
	cell := p.renderer.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.dim).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			if style != nil {
				return style(row, col).Inherit(cell)
			}
			return cell
		})
	return t.Render()
}
