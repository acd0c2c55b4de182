package anttop

import (
	"image/color"
)

// Series is one line of a chart
type Series struct {
	Name   string
	Color  color.RGBA
	Values []float64
}

// Surface is what a chart draws on. A terminal surface renders to a
// string, a PNG surface to an image file.
type Surface interface {
	Draw(c *Chart, width, height int) (string, error)
	Destroy()
}

// SurfaceFactory hands out a fresh surface for every chart
type SurfaceFactory func() Surface

// Chart represents one rendered stream. It owns its surface until Destroy.
type Chart struct {
	Label      string
	View       string
	Series     []Series
	Timestamps []string

	surface   Surface
	destroyed bool
}

func NewChart(label string, surface Surface) *Chart {
	return &Chart{
		Label:   label,
		surface: surface,
	}
}

// Points returns the number of sampled points on the x axis
func (c *Chart) Points() int {
	return len(c.Timestamps)
}

// MaxValue returns the largest value across all series, or 0
func (c *Chart) MaxValue() float64 {
	maxVal := 0.0
	for _, s := range c.Series {
		for _, v := range s.Values {
			if v > maxVal {
				maxVal = v
			}
		}
	}
	return maxVal
}

// Draw renders the chart on its surface. A destroyed chart draws nothing.
func (c *Chart) Draw(width, height int) (string, error) {
	if c.destroyed || c.surface == nil {
		return "", nil
	}
	return c.surface.Draw(c, width, height)
}

// Destroy releases the surface. Calling it twice is harmless.
func (c *Chart) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	if c.surface != nil {
		c.surface.Destroy()
		c.surface = nil
	}
}

func (c *Chart) Destroyed() bool {
	return c.destroyed
}

// ChartRegistry holds the charts currently shown by a view. It is replaced
// wholesale on every render and disposed when the view goes away.
type ChartRegistry struct {
	charts []*Chart
	byName map[string]*Chart
}

func NewChartRegistry() *ChartRegistry {
	return &ChartRegistry{
		charts: []*Chart{},
		byName: make(map[string]*Chart),
	}
}

func (r *ChartRegistry) register(c *Chart) {
	r.charts = append(r.charts, c)
	r.byName[c.Label] = c
}

// Charts returns the registered charts in render order
func (r *ChartRegistry) Charts() []*Chart {
	if r == nil {
		return nil
	}
	return r.charts
}

func (r *ChartRegistry) Get(label string) (*Chart, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.byName[label]
	return c, ok
}

func (r *ChartRegistry) Labels() []string {
	if r == nil {
		return nil
	}
	labels := make([]string, 0, len(r.charts))
	for _, c := range r.charts {
		labels = append(labels, c.Label)
	}
	return labels
}

func (r *ChartRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.charts)
}

// Dispose destroys every chart and empties the registry
func (r *ChartRegistry) Dispose() {
	if r == nil {
		return
	}
	for _, c := range r.charts {
		c.Destroy()
	}
	r.charts = []*Chart{}
	r.byName = make(map[string]*Chart)
}
