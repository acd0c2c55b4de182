package anttop

import (
	"time"
)

const (
	// SAMPLE_BASE is the minimum number of points a stream is sampled down to
	SAMPLE_BASE = 60

	// SAMPLE_DIVISOR grows the sample target for very long streams (one point per SAMPLE_DIVISOR records)
	SAMPLE_DIVISOR = 1000

	// REQUEST_TIMEOUT is the per-request timeout in seconds used by the API client
	REQUEST_TIMEOUT = 10

	// DEFAULT_PORT is the port the ant backend listens on
	DEFAULT_PORT = "8880"

	// API_PREFIX is the path every backend route lives under
	API_PREFIX = "/ant/api/v1"

	// TIME_OF_DAY is the layout used for chart x-axis labels
	TIME_OF_DAY = "15:04:05"

	// STATE_REFRESH is how often in seconds the dashboard reloads the execution list
	STATE_REFRESH = 5

	// STATE_PAGE_SIZE is how many executions the dashboard lists
	STATE_PAGE_SIZE = 50

	// PLACEHOLDER_UNIT is shown for metric streams that have no records to take a unit from
	PLACEHOLDER_UNIT = "-"
)

// SampleCount returns the sample target for a stream of n records when no
// explicit target is configured: max(base, n/SAMPLE_DIVISOR)
func SampleCount(n, base int) int {
	if base <= 0 {
		base = SAMPLE_BASE
	}
	return max(base, n/SAMPLE_DIVISOR)
}

// RequestDuration returns the request timeout as a time.Duration
func RequestDuration() time.Duration {
	return time.Duration(REQUEST_TIMEOUT) * time.Second
}
