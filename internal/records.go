package anttop

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ResultRecord is one sampled request from a load test result stream.
// Byte counts are in kilobytes, durations in milliseconds.
type ResultRecord struct {
	No         int     `json:"No"`
	Elapsed    float64 `json:"Elapsed"`
	Bytes      float64 `json:"Bytes"`
	SentBytes  float64 `json:"SentBytes"`
	URL        string  `json:"URL,omitempty"`
	Latency    float64 `json:"Latency"`
	IdleTime   float64 `json:"IdleTime"`
	Connection float64 `json:"Connection"`
	IsError    bool    `json:"IsError"`
	Timestamp  Instant `json:"Timestamp"`
}

// MetricRecord is one observation of a resource metric on the load generator
type MetricRecord struct {
	Value     Number  `json:"Value"`
	Unit      string  `json:"Unit"`
	IsError   bool    `json:"IsError"`
	Timestamp Instant `json:"Timestamp"`
}

// AggregateStat is the precomputed summary for one request label
type AggregateStat struct {
	Label         string  `json:"label"`
	RequestCount  int     `json:"requestCount"`
	Average       float64 `json:"average"`
	Median        float64 `json:"median"`
	NinetyPercent float64 `json:"ninetyPercent"`
	NinetyFive    float64 `json:"ninetyFive"`
	NinetyNine    float64 `json:"ninetyNine"`
	MinTime       float64 `json:"minTime"`
	MaxTime       float64 `json:"maxTime"`
	ErrorPercent  float64 `json:"errorPercent"`
	Throughput    float64 `json:"throughput"`
	ReceivedKB    float64 `json:"receivedKB"`
	SentKB        float64 `json:"sentKB"`
}

// Number is a float64 that also accepts numeric strings on the wire.
// The backend ships metric values as strings.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*n = 0
		return nil
	}
	v, err := cast.ToFloat64E(strings.Trim(raw, `"`))
	if err != nil {
		return fmt.Errorf("%w: number %s: %v", ErrMalformed, raw, err)
	}
	*n = Number(v)
	return nil
}

func (n Number) Float64() float64 {
	return float64(n)
}

// Instant is a timestamp that accepts RFC 3339 strings as well as
// epoch milliseconds (the raw JMeter timeStamp column).
type Instant struct {
	time.Time
}

func (i *Instant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		i.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s := strings.Trim(string(data), `"`)
		if s == "" {
			i.Time = time.Time{}
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err == nil {
			i.Time = t
			return nil
		}
		ms, castErr := cast.ToInt64E(s)
		if castErr != nil {
			return fmt.Errorf("%w: timestamp %s is neither RFC 3339 (%v) nor epoch milliseconds (%v)", ErrMalformed, s, err, castErr)
		}
		i.Time = time.UnixMilli(ms)
		return nil
	}
	ms, err := cast.ToInt64E(string(data))
	if err != nil {
		return fmt.Errorf("%w: timestamp %s: %v", ErrMalformed, data, err)
	}
	i.Time = time.UnixMilli(ms)
	return nil
}

func (i Instant) MarshalJSON() ([]byte, error) {
	return i.Time.MarshalJSON()
}

// Collection maps stream labels to streams and remembers the order the
// labels arrived in.
type Collection[T any] struct {
	labels  []string
	streams map[string][]T
}

type ResultCollection = Collection[ResultRecord]
type MetricCollection = Collection[MetricRecord]

func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{
		labels:  []string{},
		streams: make(map[string][]T),
	}
}

// Add appends a stream. Adding an existing label replaces its stream in place.
func (c *Collection[T]) Add(label string, stream []T) *Collection[T] {
	if _, ok := c.streams[label]; !ok {
		c.labels = append(c.labels, label)
	}
	c.streams[label] = stream
	return c
}

// Labels returns the labels in arrival order
func (c *Collection[T]) Labels() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.labels...)
}

func (c *Collection[T]) Stream(label string) []T {
	if c == nil {
		return nil
	}
	return c.streams[label]
}

func (c *Collection[T]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.labels)
}
