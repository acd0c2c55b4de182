package anttop

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exporterServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var scrapes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := scrapes.Add(1)
		fmt.Fprintf(w, `# HELP node_memory_MemAvailable_bytes Memory information field MemAvailable_bytes.
# TYPE node_memory_MemAvailable_bytes gauge
node_memory_MemAvailable_bytes %d
# HELP node_cpu_seconds_total Seconds the CPUs spent in each mode.
# TYPE node_cpu_seconds_total counter
node_cpu_seconds_total{cpu="0",mode="idle"} %d
node_cpu_seconds_total{cpu="0",mode="user"} 5
# HELP go_goroutines Number of goroutines.
# TYPE go_goroutines gauge
go_goroutines 7
`, 1000*n, 100*n)
	}))
	t.Cleanup(srv.Close)
	return srv, &scrapes
}

func TestExporterSourceAccumulates(t *testing.T) {
	srv, _ := exporterServer(t)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	src := NewExporterSource(u, []string{"node_"}, 0)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return clock }

	_, err = src.FetchMetrics(context.Background(), "k1")
	require.NoError(t, err)
	clock = clock.Add(5 * time.Second)
	coll, err := src.FetchMetrics(context.Background(), "k1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		`node_cpu_seconds_total{cpu="0",mode="idle"}`,
		`node_cpu_seconds_total{cpu="0",mode="user"}`,
		"node_memory_MemAvailable_bytes",
	}, coll.Labels())

	mem := coll.Stream("node_memory_MemAvailable_bytes")
	require.Len(t, mem, 2)
	assert.Equal(t, 1000.0, mem[0].Value.Float64())
	assert.Equal(t, 2000.0, mem[1].Value.Float64())
	assert.Equal(t, "bytes", mem[0].Unit)
	assert.True(t, mem[1].Timestamp.Equal(clock))

	idle := coll.Stream(`node_cpu_seconds_total{cpu="0",mode="idle"}`)
	assert.Equal(t, "s", idle[0].Unit)
}

func TestExporterSourceTrims(t *testing.T) {
	srv, _ := exporterServer(t)
	u, _ := url.Parse(srv.URL)
	src := NewExporterSource(u, []string{"node_memory"}, 2)

	var coll *MetricCollection
	var err error
	for i := 0; i < 3; i++ {
		coll, err = src.FetchMetrics(context.Background(), "k1")
		require.NoError(t, err)
	}
	mem := coll.Stream("node_memory_MemAvailable_bytes")
	require.Len(t, mem, 2)
	assert.Equal(t, 2000.0, mem[0].Value.Float64())
	assert.Equal(t, 3000.0, mem[1].Value.Float64())
}

func TestExporterSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	err := NewExporterSource(u, nil, 0).Check(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestUnitOf(t *testing.T) {
	assert.Equal(t, "bytes", unitOf("node_network_receive_bytes_total"))
	assert.Equal(t, "count", unitOf("node_context_switches_total"))
	assert.Equal(t, "", unitOf("node_load1"))
}

func TestExporterSourceResetsOnKeyChange(t *testing.T) {
	srv, _ := exporterServer(t)
	u, _ := url.Parse(srv.URL)
	src := NewExporterSource(u, []string{"node_memory"}, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := src.FetchMetrics(ctx, "testA")
		require.NoError(t, err)
	}
	coll, err := src.FetchMetrics(ctx, "testB")
	require.NoError(t, err)
	mem := coll.Stream("node_memory_MemAvailable_bytes")
	require.Len(t, mem, 1)
	assert.Equal(t, 3000.0, mem[0].Value.Float64())

	coll, err = src.FetchMetrics(ctx, "testA")
	require.NoError(t, err)
	assert.Len(t, coll.Stream("node_memory_MemAvailable_bytes"), 1)
}
