package anttop

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TabSet shows the charts of one registry, one tab per stream label
type TabSet struct {
	registry    *ChartRegistry
	selectedTab int
	// label of the selected chart, kept across registries
	current string
	width   int
	height  int
}

func NewTabSet(registry *ChartRegistry) *TabSet {
	return &TabSet{
		registry: registry,
		width:    40,
		height:   10,
	}
}

// SetRegistry swaps in the registry of a new render, keeping the selected
// label when it still exists
func (ts *TabSet) SetRegistry(registry *ChartRegistry) *TabSet {
	ts.registry = registry
	ts.selectedTab = 0
	for i, label := range registry.Labels() {
		if label == ts.current {
			ts.selectedTab = i
			break
		}
	}
	ts.remember()
	return ts
}

func (ts *TabSet) remember() {
	if c := ts.Selected(); c != nil {
		ts.current = c.Label
	}
}

func (ts *TabSet) SetSize(width, height int) *TabSet {
	ts.width = width
	ts.height = height
	return ts
}

func (ts *TabSet) NextTab() *TabSet {
	if n := ts.registry.Len(); n > 0 {
		ts.selectedTab = (ts.selectedTab + 1) % n
	}
	ts.remember()
	return ts
}

func (ts *TabSet) PrevTab() *TabSet {
	if n := ts.registry.Len(); n > 0 {
		ts.selectedTab = (ts.selectedTab - 1 + n) % n
	}
	ts.remember()
	return ts
}

// Selected returns the chart of the active tab, or nil
func (ts *TabSet) Selected() *Chart {
	charts := ts.registry.Charts()
	if ts.selectedTab < 0 || ts.selectedTab >= len(charts) {
		return nil
	}
	return charts[ts.selectedTab]
}

func (ts *TabSet) GetSelectedTab() int {
	return ts.selectedTab
}

func (ts *TabSet) Render() string {
	chart := ts.Selected()
	if chart == nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("No charts available")
	}

	var b strings.Builder
	height := ts.height
	if ts.registry.Len() > 1 {
		b.WriteString(ts.renderTabs())
		b.WriteString("\n")
		height -= 3
	}

	content, err := chart.Draw(ts.width, height)
	if err != nil {
		content = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(err.Error())
	}
	b.WriteString(content)
	return b.String()
}

// renderTabs draws the tab bar, truncating labels so it fits the width
func (ts *TabSet) renderTabs() string {
	activeTabStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("170")).
		Background(lipgloss.Color("235")).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("170"))

	inactiveTabStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("236"))

	labels := ts.registry.Labels()
	// 4 = border (2) + padding (2)
	limit := max(ts.width/max(len(labels), 1)-4, 3)

	var renderedTabs []string
	for i, label := range labels {
		label = truncate(label, limit)
		if i == ts.selectedTab {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(label))
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 1 {
		return string(r[:limit])
	}
	return string(r[:limit-1]) + "…"
}

func (ts *TabSet) String() string {
	return ts.Render()
}
