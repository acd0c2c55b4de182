package anttop

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// WrapTable is a lipgloss table that splits its rows into side-by-side
// tables once they no longer fit in maxHeight lines
type WrapTable struct {
	headers     []string
	rows        [][]string
	maxHeight   int
	numeric     map[int]bool
	border      lipgloss.Border
	borderStyle lipgloss.Style
	headerStyle lipgloss.Style
}

func NewWrapTable() *WrapTable {
	return &WrapTable{
		numeric:     make(map[int]bool),
		border:      lipgloss.NormalBorder(),
		borderStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		headerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
	}
}

func (wt *WrapTable) Headers(headers ...string) *WrapTable {
	wt.headers = headers
	return wt
}

func (wt *WrapTable) Rows(rows ...[]string) *WrapTable {
	wt.rows = rows
	return wt
}

// MaxHeight limits the table height; 0 means unlimited
func (wt *WrapTable) MaxHeight(height int) *WrapTable {
	wt.maxHeight = height
	return wt
}

// Numeric right-aligns the given columns
func (wt *WrapTable) Numeric(cols ...int) *WrapTable {
	for _, c := range cols {
		wt.numeric[c] = true
	}
	return wt
}

func (wt *WrapTable) BorderStyle(style lipgloss.Style) *WrapTable {
	wt.borderStyle = style
	return wt
}

func (wt *WrapTable) build(rows [][]string) *table.Table {
	return table.New().
		Border(wt.border).
		BorderStyle(wt.borderStyle).
		Headers(wt.headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return wt.headerStyle.Padding(0, 1)
			}
			if wt.numeric[col] {
				style = style.Align(lipgloss.Right)
			}
			return style
		})
}

func (wt *WrapTable) Render() string {
	if len(wt.rows) == 0 {
		return wt.build(nil).String()
	}

	// header (1) + top, bottom and header separator borders (3)
	rowsPerTable := len(wt.rows)
	if wt.maxHeight > 0 {
		rowsPerTable = max(wt.maxHeight-4, 1)
	}
	if len(wt.rows) <= rowsPerTable {
		return wt.build(wt.rows).String()
	}

	var tables []string
	for i := 0; i < len(wt.rows); i += rowsPerTable {
		end := min(i+rowsPerTable, len(wt.rows))
		tables = append(tables, wt.build(wt.rows[i:end]).String())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tables...)
}

func (wt *WrapTable) String() string {
	return wt.Render()
}
