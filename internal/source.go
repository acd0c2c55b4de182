package anttop

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
)

// ResolveServer finds a URL variant of base that answers the health check
// and returns a client for it
func ResolveServer(ctx context.Context, base *url.URL, timeout time.Duration) (*Client, error) {
	var lastErr error
	for _, variant := range generateURLVariants(base) {
		log.Printf("Trying ant backend: %s", variant)
		client := NewClient(variant, timeout)
		if err := client.Health(ctx); err != nil {
			log.Printf("Ant backend check failed: %v", err)
			lastErr = err
			continue
		}
		log.Printf("✓ Found ant backend at %s", variant)
		return client, nil
	}
	return nil, fmt.Errorf("no ant backend found at %s: %w", base, lastErr)
}

// generateURLVariants creates the URL combinations to try. An explicit
// scheme or port is tried first.
func generateURLVariants(base *url.URL) []*url.URL {
	var variants []*url.URL
	hostname := base.Hostname()
	port := base.Port()
	path := strings.TrimSuffix(base.Path, "/")

	schemes := []string{"http", "https"}
	if base.Scheme == "https" {
		schemes = []string{"https", "http"}
	}

	ports := []string{DEFAULT_PORT, "443", "80"}
	if port != "" {
		ports = append([]string{port}, ports...)
	}

	seen := make(map[string]bool)
	uniquePorts := []string{}
	for _, p := range ports {
		if !seen[p] {
			seen[p] = true
			uniquePorts = append(uniquePorts, p)
		}
	}

	for _, scheme := range schemes {
		for _, p := range uniquePorts {
			variants = append(variants, &url.URL{
				Scheme: scheme,
				Host:   hostname + ":" + p,
				Path:   path,
			})
		}
	}
	return variants
}

// MetricsOptions configures where metric streams come from
type MetricsOptions struct {
	// Source is "ant", "prometheus", "exporter" or "auto"
	Source            string
	PrometheusURL     string
	PrometheusQueries []PrometheusQuery
	PrometheusStep    time.Duration
	ExporterURL       string
	ExporterPrefixes  []string
}

// Checker is a metrics source that can verify its backend is reachable
type Checker interface {
	Check(ctx context.Context) error
}

// DetectMetricsSource picks the metrics source. "auto" tries Prometheus,
// then the exporter, and falls back to the ant backend.
func DetectMetricsSource(ctx context.Context, client *Client, opts MetricsOptions) (MetricsSource, error) {
	newPrometheus := func() (MetricsSource, error) {
		u, err := url.Parse(opts.PrometheusURL)
		if err != nil || opts.PrometheusURL == "" {
			return nil, fmt.Errorf("invalid prometheus url %q: %w", opts.PrometheusURL, ErrInvalidArgument)
		}
		src, err := NewPrometheusSource(u, opts.PrometheusQueries, client.ExecutionWindow, opts.PrometheusStep)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	newExporter := func() (MetricsSource, error) {
		u, err := url.Parse(opts.ExporterURL)
		if err != nil || opts.ExporterURL == "" {
			return nil, fmt.Errorf("invalid exporter url %q: %w", opts.ExporterURL, ErrInvalidArgument)
		}
		return NewExporterSource(u, opts.ExporterPrefixes, 0), nil
	}

	switch opts.Source {
	case "", "ant":
		return client, nil
	case "prometheus":
		return newPrometheus()
	case "exporter":
		return newExporter()
	case "auto":
		candidates := []func() (MetricsSource, error){}
		if opts.PrometheusURL != "" {
			candidates = append(candidates, newPrometheus)
		}
		if opts.ExporterURL != "" {
			candidates = append(candidates, newExporter)
		}
		for _, candidate := range candidates {
			src, err := candidate()
			if err != nil {
				log.Printf("Skipping metrics source: %v", err)
				continue
			}
			if checker, ok := src.(Checker); ok {
				if err := checker.Check(ctx); err != nil {
					log.Printf("Metrics source check failed: %v", err)
					continue
				}
			}
			return src, nil
		}
		log.Printf("Using ant backend for metrics")
		return client, nil
	default:
		return nil, fmt.Errorf("unknown metrics source %q: %w", opts.Source, ErrInvalidArgument)
	}
}
