package anttop

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ant api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("ant api: %d %s", e.StatusCode, e.Message)
}

// HttpReq is one request template of a load test
type HttpReq struct {
	Method   string `json:"method" mapstructure:"method"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Hostname string `json:"hostname" mapstructure:"hostname"`
	Port     string `json:"port" mapstructure:"port"`
	Path     string `json:"path,omitempty" mapstructure:"path"`
	BodyData string `json:"bodyData,omitempty" mapstructure:"body_data"`
}

// InstallLoadGenerator says where the load generator runs
type InstallLoadGenerator struct {
	InstallLocation string `json:"installLocation" mapstructure:"install_location"`
}

// LoadTestConfig is the body of load/start. The numeric fields travel as
// strings, the way the backend expects them.
type LoadTestConfig struct {
	TestName                   string               `json:"testName" mapstructure:"test_name"`
	VirtualUsers               string               `json:"virtualUsers" mapstructure:"virtual_users"`
	Duration                   string               `json:"duration" mapstructure:"duration"`
	RampUpTime                 string               `json:"rampUpTime" mapstructure:"ramp_up_time"`
	RampUpSteps                string               `json:"rampUpSteps" mapstructure:"ramp_up_steps"`
	Hostname                   string               `json:"hostname,omitempty" mapstructure:"hostname"`
	Port                       string               `json:"port,omitempty" mapstructure:"port"`
	AgentInstalled             bool                 `json:"agentInstalled,omitempty" mapstructure:"agent_installed"`
	AgentHostname              string               `json:"agentHostname,omitempty" mapstructure:"agent_hostname"`
	InstallLoadGenerator       InstallLoadGenerator `json:"installLoadGenerator" mapstructure:"install_load_generator"`
	LoadGeneratorInstallInfoId uint                 `json:"loadGeneratorInstallInfoId,omitempty" mapstructure:"load_generator_install_info_id"`
	NsId                       string               `json:"nsId,omitempty" mapstructure:"ns_id"`
	MciId                      string               `json:"mciId,omitempty" mapstructure:"mci_id"`
	VmId                       string               `json:"vmId,omitempty" mapstructure:"vm_id"`
	HttpReqs                   []HttpReq            `json:"httpReqs" mapstructure:"http_reqs"`
}

// Validate checks the fields the backend rejects outright
func (c LoadTestConfig) Validate() error {
	if strings.TrimSpace(c.TestName) == "" {
		return fmt.Errorf("test name is required: %w", ErrInvalidArgument)
	}
	if c.LoadGeneratorInstallInfoId == 0 {
		switch c.InstallLoadGenerator.InstallLocation {
		case "local", "remote":
		default:
			return fmt.Errorf("install location %q must be local or remote: %w", c.InstallLoadGenerator.InstallLocation, ErrInvalidArgument)
		}
	}
	if len(c.HttpReqs) == 0 {
		return fmt.Errorf("at least one http request is required: %w", ErrInvalidArgument)
	}
	return nil
}

// Ack is the acknowledgement returned by start and stop
type Ack struct {
	Code    int
	Message string
	Result  string
}

// ExecutionState is one entry of the load test execution list
type ExecutionState struct {
	ID              uint       `json:"id"`
	LoadTestKey     string     `json:"loadTestKey"`
	ExecutionStatus string     `json:"executionStatus"`
	StartAt         time.Time  `json:"startAt"`
	FinishAt        *time.Time `json:"finishAt,omitempty"`
	FailureMessage  string     `json:"failureMessage,omitempty"`
}

// Client talks to the ant backend
type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(serverURL *url.URL, timeout time.Duration) *Client {
	base := *serverURL
	base.Path = strings.TrimSuffix(base.Path, "/") + API_PREFIX
	return &Client{
		base: &base,
		http: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root the client sends requests to
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = u.Path + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage digs the message out of an error body, which is either the
// backend envelope or echo's {"message": ...}
func errorMessage(data []byte) string {
	var body struct {
		ErrorMessage string `json:"errorMessage"`
		Message      any    `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data))
	}
	if body.ErrorMessage != "" {
		return body.ErrorMessage
	}
	switch m := body.Message.(type) {
	case string:
		return m
	case map[string]any:
		if msg, ok := m["errorMessage"].(string); ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}

func keyQuery(key string) url.Values {
	return url.Values{"loadTestKey": []string{key}}
}

// Health checks that the backend answers
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "health", nil, nil)
	return err
}

// FetchAggregate returns the per-label statistics of a load test
func (c *Client) FetchAggregate(ctx context.Context, key string) ([]AggregateStat, error) {
	q := keyQuery(key)
	q.Set("format", "aggregate")
	data, err := c.do(ctx, http.MethodGet, "load/result", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeAggregate(unwrap(data))
}

// FetchResults returns the raw result streams of a load test
func (c *Client) FetchResults(ctx context.Context, key string) (*ResultCollection, error) {
	data, err := c.do(ctx, http.MethodGet, "load/result", keyQuery(key), nil)
	if err != nil {
		return nil, err
	}
	coll, err := DecodeCollection[ResultRecord](unwrap(data))
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	return coll, nil
}

// FetchMetrics returns the resource metric streams of a load test
func (c *Client) FetchMetrics(ctx context.Context, key string) (*MetricCollection, error) {
	data, err := c.do(ctx, http.MethodGet, "load/result/metrics", keyQuery(key), nil)
	if err != nil {
		return nil, err
	}
	coll, err := DecodeCollection[MetricRecord](unwrap(data))
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return coll, nil
}

// StopLoadTest asks the backend to stop a running load test
func (c *Client) StopLoadTest(ctx context.Context, key string) (*Ack, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("load test key is required: %w", ErrInvalidArgument)
	}
	data, err := c.do(ctx, http.MethodPost, "load/stop", nil, map[string]string{"loadTestKey": key})
	if err != nil {
		return nil, err
	}
	return decodeAck(data), nil
}

// StartLoadTest submits a load test; the ack result carries the new key
func (c *Client) StartLoadTest(ctx context.Context, cfg LoadTestConfig) (*Ack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodPost, "load/start", nil, cfg)
	if err != nil {
		return nil, err
	}
	return decodeAck(data), nil
}

// ExecutionStates lists load test executions, newest first as the backend orders them
func (c *Client) ExecutionStates(ctx context.Context, page, size int) ([]ExecutionState, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	q.Set("size", strconv.Itoa(max(size, 1)))
	data, err := c.do(ctx, http.MethodGet, "load/state", q, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		LoadTestExecutionStates []ExecutionState `json:"loadTestExecutionStates"`
	}
	if err := json.Unmarshal(unwrap(data), &result); err != nil {
		return nil, fmt.Errorf("%w: execution states: %v", ErrMalformed, err)
	}
	return result.LoadTestExecutionStates, nil
}

// ExecutionState returns the execution state of one load test
func (c *Client) ExecutionState(ctx context.Context, key string) (*ExecutionState, error) {
	data, err := c.do(ctx, http.MethodGet, "load/state/"+key, nil, nil)
	if err != nil {
		return nil, err
	}
	var state ExecutionState
	if err := json.Unmarshal(unwrap(data), &state); err != nil {
		return nil, fmt.Errorf("%w: execution state: %v", ErrMalformed, err)
	}
	return &state, nil
}

// ExecutionWindow resolves when a load test ran. Tests still running end now.
func (c *Client) ExecutionWindow(ctx context.Context, key string) (time.Time, time.Time, error) {
	state, err := c.ExecutionState(ctx, key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if state.StartAt.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: load test %s has no start time", ErrMalformed, key)
	}
	end := time.Now()
	if state.FinishAt != nil && !state.FinishAt.IsZero() {
		end = *state.FinishAt
	}
	return state.StartAt, end, nil
}

func decodeAck(data []byte) *Ack {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &Ack{Message: strings.TrimSpace(string(data))}
	}
	ack := &Ack{Code: env.Code, Message: env.SuccessMessage}
	if len(env.Result) > 0 {
		var s string
		if err := json.Unmarshal(env.Result, &s); err == nil {
			ack.Result = s
		} else {
			ack.Result = string(env.Result)
		}
	}
	return ack
}
