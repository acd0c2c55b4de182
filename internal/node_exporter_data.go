package anttop

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ExporterSource scrapes a text exposition endpoint on the load generator
// (node_exporter or any other exporter) and accumulates one stream per
// series across scrapes
type ExporterSource struct {
	url         *url.URL
	prefixes    []string
	maxReadings int
	client      *http.Client
	now         func() time.Time

	mu      sync.Mutex
	key     string
	labels  []string
	streams map[string][]MetricRecord
}

func NewExporterSource(exporterURL *url.URL, prefixes []string, maxReadings int) *ExporterSource {
	if maxReadings <= 0 {
		maxReadings = 3600
	}
	return &ExporterSource{
		url:         exporterURL,
		prefixes:    prefixes,
		maxReadings: maxReadings,
		client:      &http.Client{Timeout: 5 * time.Second},
		now:         time.Now,
		streams:     make(map[string][]MetricRecord),
	}
}

func (n *ExporterSource) Check(ctx context.Context) error {
	_, err := n.scrape(ctx)
	return err
}

// FetchMetrics scrapes once and returns everything collected so far. The
// exporter belongs to the load generator, so its readings are only kept for
// one key at a time: switching keys starts a fresh history.
func (n *ExporterSource) FetchMetrics(ctx context.Context, key string) (*MetricCollection, error) {
	families, err := n.scrape(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape for %s: %w", key, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if key != n.key {
		n.key = key
		n.labels = nil
		n.streams = make(map[string][]MetricRecord)
	}

	now := n.now()
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !n.wanted(name) {
			continue
		}
		family := families[name]
		for _, metric := range family.GetMetric() {
			value, ok := metricValue(family.GetType(), metric)
			if !ok {
				continue
			}
			ts := now
			if ms := metric.GetTimestampMs(); ms != 0 {
				ts = time.UnixMilli(ms)
			}
			n.append(seriesLabel(name, metric), MetricRecord{
				Value:     Number(value),
				Unit:      unitOf(name),
				Timestamp: Instant{ts},
			})
		}
	}

	coll := NewCollection[MetricRecord]()
	for _, label := range n.labels {
		coll.Add(label, append([]MetricRecord(nil), n.streams[label]...))
	}
	return coll, nil
}

func (n *ExporterSource) scrape(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying exporter: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "exporter scrape failed"}
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse metrics: %v", ErrMalformed, err)
	}
	return families, nil
}

func (n *ExporterSource) wanted(name string) bool {
	if len(n.prefixes) == 0 {
		return true
	}
	for _, p := range n.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// append adds a reading and keeps at most maxReadings per stream
func (n *ExporterSource) append(label string, rec MetricRecord) {
	stream, ok := n.streams[label]
	if !ok {
		n.labels = append(n.labels, label)
	}
	stream = append(stream, rec)
	if len(stream) > n.maxReadings {
		stream = stream[len(stream)-n.maxReadings:]
	}
	n.streams[label] = stream
}

func metricValue(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue(), true
	default:
		return 0, false
	}
}

// seriesLabel renders name{k="v",...} with labels in name order
func seriesLabel(name string, m *dto.Metric) string {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return name
	}
	parts := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}

// unitOf guesses a display unit from the metric naming conventions
func unitOf(name string) string {
	switch {
	case strings.HasSuffix(name, "_bytes"), strings.HasSuffix(name, "_bytes_total"):
		return "bytes"
	case strings.HasSuffix(name, "_seconds"), strings.HasSuffix(name, "_seconds_total"):
		return "s"
	case strings.HasSuffix(name, "_percent"):
		return "%"
	case strings.HasSuffix(name, "_ratio"):
		return "ratio"
	case strings.HasSuffix(name, "_total"):
		return "count"
	default:
		return ""
	}
}
