package anttop

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Pane is a bordered box with an optional title line and a dimmed footer
// line. Panes are values; the setters return modified copies.
//
//	pane := NewPane("Load tests", 40, 10).
//	    SetContent(list).
//	    SetFooter("3 running").
//	    SetFocused(true)
//	fmt.Println(pane.Render())
type Pane struct {
	title       string
	content     string
	footer      string
	width       int
	height      int
	borderStyle lipgloss.Style
	titleStyle  lipgloss.Style
	footerStyle lipgloss.Style
	focused     bool
}

func NewPane(title string, width, height int) Pane {
	return Pane{
		title:  title,
		width:  width,
		height: height,
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
		titleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")),
		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

func (p Pane) SetContent(content string) Pane {
	p.content = content
	return p
}

// SetFooter pins a status line to the bottom of the pane
func (p Pane) SetFooter(footer string) Pane {
	p.footer = footer
	return p
}

// SetFocused highlights the border and title of the focused pane
func (p Pane) SetFocused(focused bool) Pane {
	p.focused = focused
	if focused {
		p.borderStyle = p.borderStyle.BorderForeground(lipgloss.Color("170"))
	} else {
		p.borderStyle = p.borderStyle.BorderForeground(lipgloss.Color("240"))
	}
	return p
}

// InnerSize is the space left for content inside the border, title and footer
func (p Pane) InnerSize() (int, int) {
	h := p.height
	if p.title != "" {
		h--
	}
	if p.footer != "" {
		h--
	}
	return max(p.width, 0), max(h, 0)
}

func (p Pane) Render() string {
	var b strings.Builder
	if p.title != "" {
		b.WriteString(p.titleStyle.Bold(p.focused).Render(p.title) + "\n")
	}
	b.WriteString(p.content)

	if p.footer != "" {
		// push the footer to the last inner line
		_, inner := p.InnerSize()
		if gap := inner - lipgloss.Height(p.content); gap > 0 {
			b.WriteString(strings.Repeat("\n", gap))
		}
		b.WriteString("\n" + p.footerStyle.Render(p.footer))
	}

	return p.borderStyle.
		Width(p.width).
		Height(p.height).
		MaxHeight(p.height + 2).
		Render(b.String())
}
