package anttop

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// PNGSurface renders a chart with go-chart and writes it to Dir as
// <prefix><view>-<label>.png. Draw returns the written path.
type PNGSurface struct {
	Dir    string
	Prefix string

	buf   *bytes.Buffer
	names *pngNames
	path  string
}

// pngNames hands out file names unique across the surfaces of one factory
type pngNames struct {
	mu   sync.Mutex
	used map[string]bool
}

func (n *pngNames) claim(base string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	name := base
	for i := 2; n.used[name]; i++ {
		name = base + "-" + strconv.Itoa(i)
	}
	n.used[name] = true
	return name
}

// PNGSurfaces returns a factory of surfaces writing into dir. Charts whose
// labels map to the same file name get numbered suffixes.
func PNGSurfaces(dir, prefix string) SurfaceFactory {
	names := &pngNames{used: make(map[string]bool)}
	return func() Surface {
		return &PNGSurface{Dir: dir, Prefix: prefix, buf: &bytes.Buffer{}, names: names}
	}
}

func (s *PNGSurface) Draw(c *Chart, width, height int) (string, error) {
	if s.buf == nil {
		return "", errSurfaceDestroyed
	}
	s.buf.Reset()
	if err := WritePNG(s.buf, c, width, height); err != nil {
		return "", err
	}

	if s.path == "" {
		base := s.Prefix + fileName(c.Label)
		if c.View != "" {
			base = s.Prefix + c.View + "-" + fileName(c.Label)
		}
		if s.names != nil {
			base = s.names.claim(base)
		}
		s.path = filepath.Join(s.Dir, base+".png")
	}
	if err := os.WriteFile(s.path, s.buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write chart %q: %w", c.Label, err)
	}
	return s.path, nil
}

func (s *PNGSurface) Destroy() {
	s.buf = nil
}

// WritePNG renders c as a line chart with one series per chart series,
// timestamps as x ticks and the y axis starting at zero
func WritePNG(w io.Writer, c *Chart, width, height int) error {
	if c.Points() == 0 {
		return errors.New("chart has no points")
	}

	xs := make([]float64, c.Points())
	for i := range xs {
		xs[i] = float64(i)
	}

	series := make([]chart.Series, 0, len(c.Series))
	for _, s := range c.Series {
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Values,
			Style: chart.Style{
				StrokeWidth: 2,
				StrokeColor: drawing.Color{R: s.Color.R, G: s.Color.G, B: s.Color.B, A: 255},
				DotWidth:    2,
				DotColor:    drawing.Color{R: s.Color.R, G: s.Color.G, B: s.Color.B, A: 255},
			},
		})
	}

	ch := chart.Chart{
		Title:      c.Label,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 48}},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: math.Max(float64(c.Points()-1), 1)},
			Ticks: timeTicks(c.Timestamps, 8),
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: niceMax(c.MaxValue())},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart %q: %w", c.Label, err)
	}
	return nil
}

// timeTicks spreads at most limit timestamp labels over the x axis
func timeTicks(stamps []string, limit int) []chart.Tick {
	if len(stamps) < 2 {
		return nil
	}
	step := max(1, (len(stamps)+limit-1)/limit)
	ticks := make([]chart.Tick, 0, limit+1)
	for i := 0; i < len(stamps); i += step {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: stamps[i]})
	}
	return ticks
}

// niceMax rounds v up to 1, 2 or 5 times a power of ten
func niceMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if v <= m*exp {
			return m * exp
		}
	}
	return 10 * exp
}

func fileName(label string) string {
	r := strings.NewReplacer("/", "_", " ", "_", ":", "_", "?", "_", "*", "_", "\\", "_")
	name := r.Replace(strings.TrimSpace(label))
	if name == "" {
		return "chart"
	}
	return name
}
