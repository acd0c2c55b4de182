package anttop

import (
	"github.com/charmbracelet/lipgloss"
)

// Horizontal renders panes side by side
func Horizontal(panes ...Pane) string {
	if len(panes) == 0 {
		return ""
	}
	views := make([]string, len(panes))
	for i, pane := range panes {
		views[i] = pane.Render()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// Vertical renders panes stacked vertically
func Vertical(panes ...Pane) string {
	if len(panes) == 0 {
		return ""
	}
	views := make([]string, len(panes))
	for i, pane := range panes {
		views[i] = pane.Render()
	}
	return lipgloss.JoinVertical(lipgloss.Left, views...)
}

// Wrap lays panes out in rows of the given number of columns
func Wrap(columns int, panes ...Pane) string {
	if len(panes) == 0 {
		return ""
	}
	columns = max(columns, 1)
	var rows []string
	for i := 0; i < len(panes); i += columns {
		end := min(i+columns, len(panes))
		rows = append(rows, Horizontal(panes[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// gridColumns picks a column count for n panes: 1, 2 up to four panes, 3 beyond
func gridColumns(n int) int {
	switch {
	case n <= 1:
		return 1
	case n <= 4:
		return 2
	default:
		return 3
	}
}

// RenderGrid draws every chart of a registry into a grid of panes that
// fits the given width
func RenderGrid(reg *ChartRegistry, width, paneHeight int) string {
	charts := reg.Charts()
	if len(charts) == 0 {
		return ""
	}
	columns := gridColumns(len(charts))
	paneWidth := max(width/columns-2, 12)

	panes := make([]Pane, 0, len(charts))
	for _, c := range charts {
		pane := NewPane(c.Label, paneWidth, paneHeight)
		innerWidth, innerHeight := pane.InnerSize()
		content, err := c.Draw(innerWidth, innerHeight)
		if err != nil {
			content = err.Error()
		}
		panes = append(panes, pane.SetContent(content))
	}
	return Wrap(columns, panes...)
}

// GridPane frames the chart grid of a registry in a titled pane sized to fit it
func GridPane(title string, reg *ChartRegistry, width, paneHeight int) Pane {
	grid := RenderGrid(reg, width-2, paneHeight)
	if grid == "" {
		grid = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("No charts")
	}
	// one line for the title
	return NewPane(title, width-2, lipgloss.Height(grid)+1).SetContent(grid)
}
