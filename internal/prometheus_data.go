package anttop

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusQuery is one range query turned into metric streams
type PrometheusQuery struct {
	Label string `mapstructure:"label"`
	Query string `mapstructure:"query"`
	Unit  string `mapstructure:"unit"`
}

// WindowFunc resolves the time range a load test ran in
type WindowFunc func(ctx context.Context, key string) (start, end time.Time, err error)

// PrometheusSource reads metric streams for a load test from Prometheus,
// querying every configured expression over the test's run window
type PrometheusSource struct {
	client  api.Client
	url     *url.URL
	queries []PrometheusQuery
	window  WindowFunc
	step    time.Duration
}

func NewPrometheusSource(prometheusURL *url.URL, queries []PrometheusQuery, window WindowFunc, step time.Duration) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	if step <= 0 {
		step = 5 * time.Second
	}

	return &PrometheusSource{
		client:  client,
		url:     prometheusURL,
		queries: queries,
		window:  window,
		step:    step,
	}, nil
}

func (p *PrometheusSource) Check(ctx context.Context) error {
	v1api := v1.NewAPI(p.client)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, warnings, err := v1api.Query(ctx, "up", time.Now())
	if err != nil {
		return fmt.Errorf("prometheus API query failed: %w", err)
	}
	if len(warnings) > 0 {
		log.Printf("Prometheus warnings: %v", warnings)
	}
	return nil
}

func (p *PrometheusSource) FetchMetrics(ctx context.Context, key string) (*MetricCollection, error) {
	start, end, err := p.window(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve window of %s: %w", key, err)
	}
	if !end.After(start) {
		end = start.Add(p.step)
	}

	v1api := v1.NewAPI(p.client)
	coll := NewCollection[MetricRecord]()
	r := v1.Range{Start: start, End: end, Step: p.step}
	for _, q := range p.queries {
		result, warnings, err := v1api.QueryRange(ctx, q.Query, r)
		if err != nil {
			return nil, fmt.Errorf("prometheus range query %q failed: %w", q.Label, err)
		}
		if len(warnings) > 0 {
			log.Printf("Prometheus warnings for %s: %v", q.Label, warnings)
		}
		matrix, ok := result.(model.Matrix)
		if !ok {
			return nil, fmt.Errorf("%w: prometheus query %q returned %s, want matrix", ErrMalformed, q.Label, result.Type())
		}
		addMatrix(coll, q, matrix)
	}
	return coll, nil
}

// addMatrix appends one stream per series. A query yielding several series
// labels each stream with its metric labels.
func addMatrix(coll *MetricCollection, q PrometheusQuery, matrix model.Matrix) {
	sort.Slice(matrix, func(i, j int) bool {
		return matrix[i].Metric.String() < matrix[j].Metric.String()
	})
	for _, series := range matrix {
		label := q.Label
		if len(matrix) > 1 {
			label = q.Label + " " + series.Metric.String()
		}
		stream := make([]MetricRecord, 0, len(series.Values))
		for _, pair := range series.Values {
			stream = append(stream, MetricRecord{
				Value:     Number(pair.Value),
				Unit:      q.Unit,
				Timestamp: Instant{pair.Timestamp.Time()},
			})
		}
		coll.Add(label, stream)
	}
}
