package anttop

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variantStrings(base string) []string {
	u, _ := url.Parse(base)
	var out []string
	for _, v := range generateURLVariants(u) {
		out = append(out, v.String())
	}
	return out
}

func TestGenerateURLVariants(t *testing.T) {
	assert.Equal(t, []string{
		"http://ant.lan:8880",
		"http://ant.lan:443",
		"http://ant.lan:80",
		"https://ant.lan:8880",
		"https://ant.lan:443",
		"https://ant.lan:80",
	}, variantStrings("http://ant.lan"))

	got := variantStrings("https://ant.lan:9000/base/")
	assert.Equal(t, "https://ant.lan:9000/base", got[0])
	assert.Equal(t, "http://ant.lan:9000/base", got[4])
	assert.Len(t, got, 8)

	// an explicit default port is not tried twice
	assert.Len(t, variantStrings("http://ant.lan:8880"), 6)
}

func TestResolveServer(t *testing.T) {
	srv := antServer(t)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	client, err := ResolveServer(context.Background(), u, time.Second)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+API_PREFIX, client.BaseURL())
}

func TestDetectMetricsSource(t *testing.T) {
	u, _ := url.Parse(antServer(t).URL)
	client := NewClient(u, time.Second)
	ctx := context.Background()

	src, err := DetectMetricsSource(ctx, client, MetricsOptions{})
	require.NoError(t, err)
	assert.Same(t, client, src)

	src, err = DetectMetricsSource(ctx, client, MetricsOptions{Source: "exporter", ExporterURL: "http://localhost:9100/metrics"})
	require.NoError(t, err)
	assert.IsType(t, &ExporterSource{}, src)

	src, err = DetectMetricsSource(ctx, client, MetricsOptions{Source: "prometheus", PrometheusURL: prometheusServer(t).URL})
	require.NoError(t, err)
	assert.IsType(t, &PrometheusSource{}, src)

	_, err = DetectMetricsSource(ctx, client, MetricsOptions{Source: "prometheus"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = DetectMetricsSource(ctx, client, MetricsOptions{Source: "influx"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDetectMetricsSourceAuto(t *testing.T) {
	u, _ := url.Parse(antServer(t).URL)
	client := NewClient(u, time.Second)
	ctx := context.Background()

	exporter, _ := exporterServer(t)
	src, err := DetectMetricsSource(ctx, client, MetricsOptions{
		Source:        "auto",
		PrometheusURL: "http://127.0.0.1:1",
		ExporterURL:   exporter.URL,
	})
	require.NoError(t, err)
	assert.IsType(t, &ExporterSource{}, src)

	src, err = DetectMetricsSource(ctx, client, MetricsOptions{Source: "auto"})
	require.NoError(t, err)
	assert.Same(t, client, src)
}
