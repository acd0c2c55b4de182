package anttop

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// antServer fakes the routes of the ant backend
func antServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ant/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"successMessage":"CM-Ant API server is running"}`))
	})
	mux.HandleFunc("/ant/api/v1/load/result", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("loadTestKey") != "k1" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":400,"errorMessage":"load test key is not valid"}`))
			return
		}
		if r.URL.Query().Get("format") == "aggregate" {
			w.Write([]byte(`{"code":200,"result":[{"label":"GET /","requestCount":4,"average":12.345}]}`))
			return
		}
		w.Write([]byte(`{"code":200,"result":{"GET /":[{"No":1,"Elapsed":5,"Timestamp":"2024-05-01T10:00:00Z"}],"POST /login":[]}}`))
	})
	mux.HandleFunc("/ant/api/v1/load/result/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"result":{"cpu_usage":[{"Value":"33.3","Unit":"%","Timestamp":"2024-05-01T10:00:00Z"}]}}`))
	})
	mux.HandleFunc("/ant/api/v1/load/stop", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"loadTestKey":"k1"}`, string(body))
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"code":200,"successMessage":"successfully stopped"}`))
	})
	mux.HandleFunc("/ant/api/v1/load/start", func(w http.ResponseWriter, r *http.Request) {
		var cfg LoadTestConfig
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&cfg))
		assert.Equal(t, "smoke", cfg.TestName)
		assert.Equal(t, "10", cfg.VirtualUsers)
		w.Write([]byte(`{"code":200,"successMessage":"started","result":"new-key"}`))
	})
	mux.HandleFunc("/ant/api/v1/load/state", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"code":200,"result":{"loadTestExecutionStates":[
			{"id":1,"loadTestKey":"k1","executionStatus":"on_running","startAt":"2024-05-01T10:00:00Z"},
			{"id":2,"loadTestKey":"k0","executionStatus":"test_completed","startAt":"2024-04-30T10:00:00Z","finishAt":"2024-04-30T10:05:00Z"}
		],"totalRow":2}}`))
	})
	mux.HandleFunc("/ant/api/v1/load/state/k0", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"result":{"id":2,"loadTestKey":"k0","executionStatus":"test_completed","startAt":"2024-04-30T10:00:00Z","finishAt":"2024-04-30T10:05:00Z"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T) *Client {
	u, err := url.Parse(antServer(t).URL)
	require.NoError(t, err)
	return NewClient(u, 2*time.Second)
}

func TestClientEndpoint(t *testing.T) {
	u, _ := url.Parse("http://ant.lan:8880/")
	c := NewClient(u, time.Second)
	assert.Equal(t, "http://ant.lan:8880/ant/api/v1", c.BaseURL())
	assert.Equal(t, "http://ant.lan:8880/ant/api/v1/load/result?loadTestKey=a+b", c.endpoint("load/result", keyQuery("a b")))
}

func TestClientHealth(t *testing.T) {
	require.NoError(t, testClient(t).Health(context.Background()))
}

func TestClientFetchResults(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	stats, err := c.FetchAggregate(ctx, "k1")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 12.345, stats[0].Average)

	results, err := c.FetchResults(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /", "POST /login"}, results.Labels())

	metrics, err := c.FetchMetrics(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 33.3, metrics.Stream("cpu_usage")[0].Value.Float64())
}

func TestClientAPIError(t *testing.T) {
	_, err := testClient(t).FetchResults(context.Background(), "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "load test key is not valid", apiErr.Message)
}

func TestClientStopAndStart(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	_, err := c.StopLoadTest(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	ack, err := c.StopLoadTest(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "successfully stopped", ack.Message)

	cfg := LoadTestConfig{
		TestName:             "smoke",
		VirtualUsers:         "10",
		Duration:             "60",
		RampUpTime:           "10",
		RampUpSteps:          "2",
		InstallLoadGenerator: InstallLoadGenerator{InstallLocation: "local"},
		HttpReqs:             []HttpReq{{Method: "GET", Protocol: "http", Hostname: "example.com", Port: "80"}},
	}
	ack, err = c.StartLoadTest(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "new-key", ack.Result)

	cfg.HttpReqs = nil
	_, err = c.StartLoadTest(ctx, cfg)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLoadTestConfigValidate(t *testing.T) {
	reqs := []HttpReq{{Method: "GET"}}
	assert.ErrorIs(t, LoadTestConfig{HttpReqs: reqs, InstallLoadGenerator: InstallLoadGenerator{InstallLocation: "local"}}.Validate(), ErrInvalidArgument)
	assert.ErrorIs(t, LoadTestConfig{TestName: "t", HttpReqs: reqs}.Validate(), ErrInvalidArgument)
	assert.NoError(t, LoadTestConfig{TestName: "t", HttpReqs: reqs, LoadGeneratorInstallInfoId: 3}.Validate())
}

func TestClientExecutionStates(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	states, err := c.ExecutionStates(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "k1", states[0].LoadTestKey)
	assert.Nil(t, states[0].FinishAt)
	require.NotNil(t, states[1].FinishAt)

	start, end, err := c.ExecutionWindow(ctx, "k0")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, end.Sub(start))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad", errorMessage([]byte(`{"errorMessage":"bad"}`)))
	assert.Equal(t, "not found", errorMessage([]byte(`{"message":"not found"}`)))
	assert.Equal(t, "plain text", errorMessage([]byte("plain text\n")))
}
