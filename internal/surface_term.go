package anttop

import (
	"errors"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

var errSurfaceDestroyed = errors.New("surface destroyed")

// termui keeps four columns of y axis labels plus a gap left of the plot
const yAxisWidth = 5

// plotColumns is the number of data points a braille plot of the given
// outer width can show: one per column inside the border and right of the y axis
func plotColumns(width int) int {
	return max(width-2-yAxisWidth, 1)
}

// TermSurface draws a chart as a braille line plot. termui draws into an
// off-screen buffer which is then flattened to a styled string, so the
// terminal itself stays under bubbletea's control.
type TermSurface struct {
	plot *widgets.Plot
}

func NewTermSurface() Surface {
	return &TermSurface{plot: widgets.NewPlot()}
}

func (s *TermSurface) Draw(c *Chart, width, height int) (string, error) {
	if s.plot == nil {
		return "", errSurfaceDestroyed
	}

	legend := renderLegend(c.Series, width)
	legendHeight := lipgloss.Height(legend)
	// border (2) + axes (2) + at least one row of braille
	plotHeight := height - legendHeight - 1
	if width < 12 || plotHeight < 5 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(c.Label + ": too small to draw"), nil
	}

	// the label is the title of the enclosing pane
	p := s.plot
	p.Title = ""
	columns := plotColumns(width)
	p.Data = make([][]float64, 0, len(c.Series))
	p.LineColors = make([]ui.Color, 0, len(c.Series))
	for _, series := range c.Series {
		values, err := Spread(series.Values, columns)
		if err != nil {
			return "", err
		}
		p.Data = append(p.Data, values)
		p.LineColors = append(p.LineColors, termColor(series.Color))
	}
	stamps, err := Spread(c.Timestamps, columns)
	if err != nil {
		return "", err
	}
	p.DataLabels = stamps
	p.ShowAxes = true
	p.Marker = widgets.MarkerBraille
	// y axis always starts at zero; termui scales from 0 to MaxVal
	p.MaxVal = math.Max(c.MaxValue(), 1)
	// line plots need two points to draw a segment
	if c.Points() < 2 {
		p.PlotType = widgets.ScatterPlot
	} else {
		p.PlotType = widgets.LineChart
	}
	p.SetRect(0, 0, width, plotHeight)

	buf := ui.NewBuffer(p.GetRect())
	p.Draw(buf)

	var b strings.Builder
	b.WriteString(bufferString(buf))
	b.WriteString("\n")
	b.WriteString(timeAxis(stamps, width))
	b.WriteString("\n")
	b.WriteString(legend)
	return b.String(), nil
}

func (s *TermSurface) Destroy() {
	if s.plot != nil {
		s.plot.Data = nil
		s.plot = nil
	}
}

// termColor maps an RGB colour to the nearest entry of the xterm 6x6x6 cube
func termColor(c color.RGBA) ui.Color {
	level := func(v uint8) int {
		return int(math.Round(float64(v) / 255 * 5))
	}
	return ui.Color(16 + 36*level(c.R) + 6*level(c.G) + level(c.B))
}

func bufferString(buf *ui.Buffer) string {
	var b strings.Builder
	rect := buf.Rectangle
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		var run strings.Builder
		runColor := ui.ColorClear
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runColor >= 16 {
				b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(int(runColor)))).Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			run.Reset()
		}
		for x := rect.Min.X; x < rect.Max.X; x++ {
			cell := buf.GetCell(image.Pt(x, y))
			r := cell.Rune
			if r == 0 {
				r = ' '
			}
			if cell.Style.Fg != runColor {
				flush()
				runColor = cell.Style.Fg
			}
			run.WriteRune(r)
		}
		flush()
		if y < rect.Max.Y-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// timeAxis prints the first and last timestamp under the plot
func timeAxis(stamps []string, width int) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	switch len(stamps) {
	case 0:
		return style.Render("no samples")
	case 1:
		return style.Render(stamps[0])
	}
	first, last := stamps[0], stamps[len(stamps)-1]
	gap := width - len(first) - len(last)
	if gap < 1 {
		return style.Render(first + " " + last)
	}
	return style.Render(first + strings.Repeat(" ", gap) + last)
}

func renderLegend(series []Series, width int) string {
	items := make([]string, 0, len(series))
	for _, s := range series {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(int(termColor(s.Color))))).Render("■")
		items = append(items, swatch+" "+s.Name)
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(items, "  "))
}
