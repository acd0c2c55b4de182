package anttop

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a sampling target is not positive
var ErrInvalidArgument = errors.New("invalid argument")

// Sample reduces stream to roughly target points by taking every interval-th
// record starting at index 0, where interval = len(stream) / target.
//
// Streams shorter than target are returned unchanged. The result preserves
// the original order, may be slightly shorter than target and does not
// necessarily include the final record.
func Sample[T any](stream []T, target int) ([]T, error) {
	if target <= 0 {
		return nil, fmt.Errorf("sample target %d must be positive: %w", target, ErrInvalidArgument)
	}
	if len(stream) < target {
		return stream, nil
	}

	interval := len(stream) / target
	sampled := make([]T, 0, (len(stream)+interval-1)/interval)
	for i := 0; i < len(stream); i += interval {
		sampled = append(sampled, stream[i])
	}
	return sampled, nil
}

// Spread picks at most n records spaced evenly across stream, always keeping
// the first and the last. Streams of n or fewer records are returned unchanged.
func Spread[T any](stream []T, n int) ([]T, error) {
	if n <= 0 {
		return nil, fmt.Errorf("spread target %d must be positive: %w", n, ErrInvalidArgument)
	}
	if len(stream) <= n {
		return stream, nil
	}
	if n == 1 {
		return stream[len(stream)-1:], nil
	}

	last := len(stream) - 1
	spread := make([]T, n)
	for i := range spread {
		spread[i] = stream[i*last/(n-1)]
	}
	return spread, nil
}
