package anttop

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrNoSelection is returned by Refresh before any key was fetched
var ErrNoSelection = errors.New("no load test selected")

// Session owns the state of one dashboard view: the fetch guard, the
// current statistics and the chart registries of both chart views.
// Begin and Complete must be called from the goroutine that reads the
// registries; only Fetch may run elsewhere.
type Session struct {
	fetcher     *Fetcher
	target      int
	sampleBase  int
	instruments *Instruments

	guard          Guard
	key            string
	pending        string
	aggregate      []AggregateStat
	resultRenderer *Renderer
	metricRenderer *Renderer
	resultCharts   *ChartRegistry
	metricCharts   *ChartRegistry
}

// NewSession creates a session. A target of 0 samples every view down to
// SampleCount of its longest stream.
func NewSession(fetcher *Fetcher, surfaces SurfaceFactory, target, sampleBase int, instruments *Instruments) *Session {
	return &Session{
		fetcher:        fetcher,
		target:         target,
		sampleBase:     sampleBase,
		instruments:    instruments,
		resultRenderer: NewRenderer(surfaces),
		metricRenderer: NewRenderer(surfaces),
		resultCharts:   NewChartRegistry(),
		metricCharts:   NewChartRegistry(),
	}
}

// Begin claims the guard for a fetch of key. It fails with ErrBusy while
// another cycle is in flight.
func (s *Session) Begin(key string) error {
	if err := s.guard.Begin(); err != nil {
		s.instruments.busy()
		log.Printf("Rejected fetch of %s: %v", key, err)
		return err
	}
	s.pending = key
	return nil
}

// Fetch performs the joined fetch. It touches no session state besides
// the fetcher and is safe to run on another goroutine.
func (s *Session) Fetch(ctx context.Context, key string) Outcome {
	return s.fetcher.Fetch(ctx, key)
}

// Complete renders a successful outcome and releases the guard. A failed
// outcome is logged and leaves the current view untouched.
func (s *Session) Complete(outcome Outcome) error {
	defer s.guard.End()
	s.instruments.fetched(outcome.Err)

	if outcome.Err != nil {
		log.Printf("Error fetching load test %s: %v", s.pending, outcome.Err)
		return outcome.Err
	}
	if outcome.Snapshot == nil {
		return ErrMalformed
	}

	snap := outcome.Snapshot
	s.key = snap.Key
	s.aggregate = snap.Aggregate

	var err error
	start := time.Now()
	s.resultCharts, err = Render(s.resultRenderer, s.resultCharts, snap.Results, s.targetFor(longest(snap.Results)), ResultView())
	s.instruments.rendered("results", start, s.resultCharts.Len())
	if err != nil {
		log.Printf("Error rendering results of %s: %v", snap.Key, err)
		return err
	}

	start = time.Now()
	s.metricCharts, err = Render(s.metricRenderer, s.metricCharts, snap.Metrics, s.targetFor(longest(snap.Metrics)), MetricView())
	s.instruments.rendered("metrics", start, s.metricCharts.Len())
	if err != nil {
		log.Printf("Error rendering metrics of %s: %v", snap.Key, err)
		return err
	}

	log.Printf("Fetched load test %s: %d result streams, %d metric streams", snap.Key, snap.Results.Len(), snap.Metrics.Len())
	return nil
}

// Trigger runs a whole cycle synchronously
func (s *Session) Trigger(ctx context.Context, key string) error {
	if err := s.Begin(key); err != nil {
		return err
	}
	return s.Complete(s.Fetch(ctx, key))
}

// Refresh fetches the last successfully shown key again
func (s *Session) Refresh(ctx context.Context) error {
	if s.key == "" {
		return ErrNoSelection
	}
	return s.Trigger(ctx, s.key)
}

func (s *Session) targetFor(n int) int {
	if s.target > 0 {
		return s.target
	}
	return SampleCount(n, s.sampleBase)
}

func longest[T any](c *Collection[T]) int {
	n := 0
	for _, label := range c.Labels() {
		n = max(n, len(c.Stream(label)))
	}
	return n
}

func (s *Session) Key() string {
	return s.key
}

func (s *Session) State() GuardState {
	return s.guard.State()
}

func (s *Session) Aggregate() []AggregateStat {
	return s.aggregate
}

func (s *Session) ResultCharts() *ChartRegistry {
	return s.resultCharts
}

func (s *Session) MetricCharts() *ChartRegistry {
	return s.metricCharts
}

// Visible reports whether both chart containers are shown
func (s *Session) Visible() bool {
	return s.resultRenderer.Visible() && s.metricRenderer.Visible()
}

// Close disposes every chart; the session must not be used afterwards
func (s *Session) Close() {
	s.resultCharts.Dispose()
	s.metricCharts.Dispose()
}
