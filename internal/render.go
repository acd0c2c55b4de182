package anttop

import (
	"fmt"
	"image/color"
	"time"
)

// SeriesSpec selects one numeric field of a record as a chart series
type SeriesSpec[T any] struct {
	Name  string
	Color color.RGBA
	Value func(T) float64
}

// SeriesView describes how a stream of T becomes a chart: which series to
// draw, where the timestamp lives and, optionally, how to derive a unit.
type SeriesView[T any] struct {
	// Name tags every chart of the view, e.g. in exported file names
	Name   string
	Series []SeriesSpec[T]
	Time   func(T) time.Time
	// Unit returns the display unit of a sampled stream. Views without
	// units leave it nil.
	Unit func(sampled []T) string
}

// ResultView draws the six timing and size fields of a result stream
func ResultView() SeriesView[ResultRecord] {
	return SeriesView[ResultRecord]{
		Name: "results",
		Series: []SeriesSpec[ResultRecord]{
			{Name: "Elapsed Time (ms)", Color: color.RGBA{255, 87, 34, 255}, Value: func(r ResultRecord) float64 { return r.Elapsed }},
			{Name: "Bytes (kb)", Color: color.RGBA{33, 150, 243, 255}, Value: func(r ResultRecord) float64 { return r.Bytes }},
			{Name: "Send Bytes (kb)", Color: color.RGBA{139, 195, 74, 255}, Value: func(r ResultRecord) float64 { return r.SentBytes }},
			{Name: "Idle Time (ms)", Color: color.RGBA{156, 39, 176, 255}, Value: func(r ResultRecord) float64 { return r.IdleTime }},
			{Name: "Latency (ms)", Color: color.RGBA{255, 193, 7, 255}, Value: func(r ResultRecord) float64 { return r.Latency }},
			{Name: "Connection Time (ms)", Color: color.RGBA{96, 125, 139, 255}, Value: func(r ResultRecord) float64 { return r.Connection }},
		},
		Time: func(r ResultRecord) time.Time { return r.Timestamp.Time },
	}
}

// MetricView draws the value of a metric stream, named after the stream
// and suffixed with the unit of its first sampled record
func MetricView() SeriesView[MetricRecord] {
	return SeriesView[MetricRecord]{
		Name: "metrics",
		Series: []SeriesSpec[MetricRecord]{
			{Name: "Value", Color: color.RGBA{54, 162, 235, 255}, Value: func(m MetricRecord) float64 { return m.Value.Float64() }},
		},
		Time: func(m MetricRecord) time.Time { return m.Timestamp.Time },
		Unit: func(sampled []MetricRecord) string {
			if len(sampled) == 0 || sampled[0].Unit == "" {
				return PLACEHOLDER_UNIT
			}
			return sampled[0].Unit
		},
	}
}

// Renderer turns collections into charts on surfaces from Surfaces.
// It hides its container while a render is in progress.
type Renderer struct {
	Surfaces SurfaceFactory
	Location *time.Location

	visible bool
}

func NewRenderer(surfaces SurfaceFactory) *Renderer {
	return &Renderer{
		Surfaces: surfaces,
		Location: time.Local,
	}
}

// Visible reports whether the container is shown
func (r *Renderer) Visible() bool {
	return r.visible
}

func (r *Renderer) hide() {
	r.visible = false
}

func (r *Renderer) show() {
	r.visible = true
}

func (r *Renderer) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(TIME_OF_DAY)
}

// Render destroys every chart in reg and returns a new registry holding one
// chart per label of streams, in collection order. Each stream is sampled
// down to target points first.
//
// An invalid target fails before anything is destroyed.
func Render[T any](r *Renderer, reg *ChartRegistry, streams *Collection[T], target int, view SeriesView[T]) (*ChartRegistry, error) {
	if target <= 0 {
		return reg, fmt.Errorf("render: sample target %d must be positive: %w", target, ErrInvalidArgument)
	}

	r.hide()
	reg.Dispose()

	next := NewChartRegistry()
	for _, label := range streams.Labels() {
		sampled, err := Sample(streams.Stream(label), target)
		if err != nil {
			return next, fmt.Errorf("render %q: %w", label, err)
		}

		chart := NewChart(label, r.newSurface())
		chart.View = view.Name
		chart.Timestamps = make([]string, len(sampled))
		for i, rec := range sampled {
			chart.Timestamps[i] = r.formatTime(view.Time(rec))
		}

		unit := ""
		if view.Unit != nil {
			unit = view.Unit(sampled)
		}
		for _, spec := range view.Series {
			values := make([]float64, len(sampled))
			for i, rec := range sampled {
				values[i] = spec.Value(rec)
			}
			name := spec.Name
			if view.Unit != nil {
				name = fmt.Sprintf("%s (%s)", label, unit)
			}
			chart.Series = append(chart.Series, Series{
				Name:   name,
				Color:  spec.Color,
				Values: values,
			})
		}

		next.register(chart)
	}

	r.show()
	return next, nil
}

func (r *Renderer) newSurface() Surface {
	if r.Surfaces == nil {
		return nil
	}
	return r.Surfaces()
}
