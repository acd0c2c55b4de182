package anttop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResults struct {
	mu        sync.Mutex
	aggregate []AggregateStat
	results   *ResultCollection
	aggErr    error
	resErr    error
	calls     int
}

func (f *fakeResults) FetchAggregate(ctx context.Context, key string) ([]AggregateStat, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.aggregate, f.aggErr
}

func (f *fakeResults) FetchResults(ctx context.Context, key string) (*ResultCollection, error) {
	return f.results, f.resErr
}

type fakeMetrics struct {
	metrics *MetricCollection
	err     error
}

func (f *fakeMetrics) FetchMetrics(ctx context.Context, key string) (*MetricCollection, error) {
	return f.metrics, f.err
}

func newTestSession(res *fakeResults, met MetricsSource, target int) (*Session, *fakeSurfaces, *Instruments) {
	f := &fakeSurfaces{}
	instruments := NewInstruments()
	s := NewSession(&Fetcher{Results: res, Metrics: met}, f.factory, target, SAMPLE_BASE, instruments)
	return s, f, instruments
}

func TestGuardTransitions(t *testing.T) {
	var g Guard
	assert.Equal(t, Idle, g.State())
	require.NoError(t, g.Begin())
	assert.Equal(t, Fetching, g.State())
	assert.ErrorIs(t, g.Begin(), ErrBusy)
	assert.Equal(t, Fetching, g.State())
	assert.True(t, g.End())
	assert.False(t, g.End())
	assert.Equal(t, "idle", g.State().String())
}

func TestGuardConcurrentBegin(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Begin() == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}

func TestFetchJoinsAllRequests(t *testing.T) {
	res := &fakeResults{
		aggregate: []AggregateStat{{Label: "GET /", RequestCount: 3}},
		results:   NewCollection[ResultRecord]().Add("GET /", resultStream(3)),
	}
	met := &fakeMetrics{metrics: NewCollection[MetricRecord]().Add("cpu", nil)}

	out := (&Fetcher{Results: res, Metrics: met}).Fetch(context.Background(), "k1")
	require.True(t, out.OK())
	assert.Equal(t, "k1", out.Snapshot.Key)
	assert.Len(t, out.Snapshot.Aggregate, 1)
	assert.Equal(t, []string{"GET /"}, out.Snapshot.Results.Labels())
	assert.Equal(t, []string{"cpu"}, out.Snapshot.Metrics.Labels())
}

func TestFetchFailsWhole(t *testing.T) {
	boom := errors.New("boom")
	res := &fakeResults{results: NewCollection[ResultRecord]()}
	met := &fakeMetrics{err: boom}

	out := (&Fetcher{Results: res, Metrics: met}).Fetch(context.Background(), "k1")
	assert.False(t, out.OK())
	assert.Nil(t, out.Snapshot)
	assert.ErrorIs(t, out.Err, boom)
}

func TestFetchWithoutMetricsSource(t *testing.T) {
	res := &fakeResults{}
	out := (&Fetcher{Results: res}).Fetch(context.Background(), "k1")
	require.True(t, out.OK())
	assert.Equal(t, 0, out.Snapshot.Metrics.Len())
	assert.Equal(t, 0, out.Snapshot.Results.Len())
}

func TestSessionRejectsReentrantFetch(t *testing.T) {
	res := &fakeResults{
		aggregate: []AggregateStat{{Label: "GET /"}},
		results:   NewCollection[ResultRecord]().Add("GET /", resultStream(5)),
	}
	s, _, instruments := newTestSession(res, &fakeMetrics{metrics: NewCollection[MetricRecord]()}, 100)

	require.NoError(t, s.Begin("first"))
	assert.ErrorIs(t, s.Begin("second"), ErrBusy)
	assert.Equal(t, Fetching, s.State())

	require.NoError(t, s.Complete(s.Fetch(context.Background(), "first")))
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, "first", s.Key())
	assert.Equal(t, 1, s.ResultCharts().Len())
	assert.True(t, s.Visible())

	assert.Equal(t, 1.0, testutil.ToFloat64(instruments.busyRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(instruments.fetchCycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(instruments.charts.WithLabelValues("results")))
}

func TestSessionFailedFetchKeepsView(t *testing.T) {
	res := &fakeResults{
		results: NewCollection[ResultRecord]().Add("GET /", resultStream(5)),
	}
	s, f, instruments := newTestSession(res, nil, 100)
	require.NoError(t, s.Trigger(context.Background(), "k1"))
	before := s.ResultCharts()

	res.resErr = errors.New("down")
	err := s.Trigger(context.Background(), "k2")
	assert.Error(t, err)
	assert.Equal(t, Idle, s.State(), "the guard is released after a failure")
	assert.Same(t, before, s.ResultCharts())
	assert.False(t, f.made[0].destroyed)
	assert.Equal(t, "k1", s.Key())
	assert.Equal(t, 1.0, testutil.ToFloat64(instruments.fetchCycles.WithLabelValues("error")))
}

func TestSessionAutoTarget(t *testing.T) {
	res := &fakeResults{
		results: NewCollection[ResultRecord]().
			Add("long", resultStream(120_000)).
			Add("short", resultStream(90)),
	}
	s, _, _ := newTestSession(res, nil, 0)
	require.NoError(t, s.Trigger(context.Background(), "k1"))

	long, _ := s.ResultCharts().Get("long")
	assert.Equal(t, 120, long.Points())
	short, _ := s.ResultCharts().Get("short")
	assert.Equal(t, 90, short.Points())
}

func TestSessionRefresh(t *testing.T) {
	res := &fakeResults{results: NewCollection[ResultRecord]()}
	s, _, _ := newTestSession(res, nil, 10)

	assert.ErrorIs(t, s.Refresh(context.Background()), ErrNoSelection)
	require.NoError(t, s.Trigger(context.Background(), "k1"))
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 2, res.calls)
}

func TestSessionClose(t *testing.T) {
	res := &fakeResults{results: NewCollection[ResultRecord]().Add("a", resultStream(2))}
	s, f, _ := newTestSession(res, &fakeMetrics{metrics: NewCollection[MetricRecord]().Add("m", nil)}, 10)
	require.NoError(t, s.Trigger(context.Background(), "k1"))
	s.Close()
	for _, surface := range f.made {
		assert.True(t, surface.destroyed)
	}
}
