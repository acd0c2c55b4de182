package anttop

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ResultSource serves the aggregate and raw results of a load test
type ResultSource interface {
	FetchAggregate(ctx context.Context, key string) ([]AggregateStat, error)
	FetchResults(ctx context.Context, key string) (*ResultCollection, error)
}

// MetricsSource serves resource metric streams for a load test
type MetricsSource interface {
	FetchMetrics(ctx context.Context, key string) (*MetricCollection, error)
}

// Snapshot is everything one fetch cycle brings back
type Snapshot struct {
	Key       string
	Aggregate []AggregateStat
	Results   *ResultCollection
	Metrics   *MetricCollection
}

// Outcome is the result of a joined fetch: a snapshot or the first failure
type Outcome struct {
	Snapshot *Snapshot
	Err      error
}

func (o Outcome) OK() bool {
	return o.Err == nil && o.Snapshot != nil
}

// Fetcher issues the three requests of a fetch cycle together
type Fetcher struct {
	Results ResultSource
	Metrics MetricsSource
}

// Fetch runs the aggregate, results and metrics requests concurrently and
// waits for all of them. Any failure fails the whole fetch and no partial
// snapshot is returned.
func (f *Fetcher) Fetch(ctx context.Context, key string) Outcome {
	var (
		aggregate []AggregateStat
		results   *ResultCollection
		metrics   *MetricCollection
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		aggregate, err = f.Results.FetchAggregate(gctx, key)
		if err != nil {
			return fmt.Errorf("fetch aggregate: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		results, err = f.Results.FetchResults(gctx, key)
		if err != nil {
			return fmt.Errorf("fetch results: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if f.Metrics == nil {
			metrics = NewCollection[MetricRecord]()
			return nil
		}
		var err error
		metrics, err = f.Metrics.FetchMetrics(gctx, key)
		if err != nil {
			return fmt.Errorf("fetch metrics: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Outcome{Err: err}
	}
	if results == nil {
		results = NewCollection[ResultRecord]()
	}
	if metrics == nil {
		metrics = NewCollection[MetricRecord]()
	}
	return Outcome{Snapshot: &Snapshot{
		Key:       key,
		Aggregate: aggregate,
		Results:   results,
		Metrics:   metrics,
	}}
}
