package anttop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func TestSampleShortStreamUnchanged(t *testing.T) {
	for _, n := range []int{0, 1, 5, 99} {
		stream := seq(n)
		got, err := Sample(stream, 100)
		require.NoError(t, err)
		assert.Equal(t, stream, got, "n=%d", n)
	}
}

func TestSampleStride(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		target int
		want   []int
	}{
		{"exact", 6, 6, []int{0, 1, 2, 3, 4, 5}},
		{"even", 10, 5, []int{0, 2, 4, 6, 8}},
		{"remainder", 10, 3, []int{0, 3, 6, 9}},
		{"odd", 7, 2, []int{0, 3, 6}},
		{"one", 5, 1, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sample(seq(tt.n), tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSampleBounds(t *testing.T) {
	for _, n := range []int{100, 101, 150, 199, 1000, 12345} {
		got, err := Sample(seq(n), 100)
		require.NoError(t, err)
		interval := n / 100
		assert.Equal(t, (n+interval-1)/interval, len(got), "n=%d", n)
		assert.LessOrEqual(t, len(got), n)
		assert.Equal(t, 0, got[0], "first record is always kept")
		for i := 1; i < len(got); i++ {
			assert.Greater(t, got[i], got[i-1], "order must be preserved")
		}
	}
}

func TestSampleLeavesInputAlone(t *testing.T) {
	stream := seq(20)
	got, err := Sample(stream, 4)
	require.NoError(t, err)
	got[0] = 99
	assert.Equal(t, 0, stream[0])
}

func TestSampleDeterministic(t *testing.T) {
	stream := seq(777)
	a, err := Sample(stream, 60)
	require.NoError(t, err)
	b, err := Sample(stream, 60)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSampleInvalidTarget(t *testing.T) {
	for _, target := range []int{0, -1} {
		got, err := Sample(seq(10), target)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Nil(t, got)
	}
}

func TestSampleCount(t *testing.T) {
	assert.Equal(t, 60, SampleCount(0, 0))
	assert.Equal(t, 60, SampleCount(59_999, 60))
	assert.Equal(t, 75, SampleCount(75_000, 60))
	assert.Equal(t, 100, SampleCount(10, 100))
}

func TestSpread(t *testing.T) {
	stream := seq(60)

	got, err := Spread(stream, 33)
	require.NoError(t, err)
	assert.Len(t, got, 33)
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 59, got[32])

	got, err = Spread(stream, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{59}, got)

	got, err = Spread(stream[:5], 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)

	_, err = Spread(stream, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
