package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		input   string
		want    Interval
		minutes int64
	}{
		{"1m", Interval1m, 1},
		{"5m", Interval5m, 5},
		{"15m", Interval15m, 15},
		{"30m", Interval30m, 30},
		{"1h", Interval1h, 60},
		{"4h", Interval4h, 240},
		{"1d", Interval1d, 1440},
		{" 1H ", Interval1h, 60},
	}
	for _, tc := range cases {
		iv, err := ParseInterval(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, iv)
		assert.Equal(t, tc.minutes, iv.Minutes())
		assert.Equal(t, tc.minutes*60_000, iv.StepMillis())
		assert.Equal(t, time.Duration(tc.minutes)*time.Minute, iv.Duration())
	}
}

func TestParseIntervalRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "2m", "7m", "1w", "60", "hour"} {
		_, err := ParseInterval(input)
		assert.ErrorIs(t, err, ErrUnsupportedInterval, input)
	}
}

func TestSupportedIntervalsSortedByStep(t *testing.T) {
	grid := SupportedIntervals()
	require.Len(t, grid, 7)
	assert.Equal(t, Interval1m, grid[0])
	assert.Equal(t, Interval1d, grid[len(grid)-1])
	for i := 1; i < len(grid); i++ {
		assert.Less(t, grid[i-1].Minutes(), grid[i].Minutes())
	}
}

func TestCandleTimeIsUTC(t *testing.T) {
	c := Candle{Timestamp: 1_700_000_000_000}
	assert.Equal(t, time.UTC, c.Time().Location())
	assert.Equal(t, int64(1_700_000_000_000), c.Time().UnixMilli())
}

func TestSortAndDedupCandles(t *testing.T) {
	candles := []Candle{
		{Timestamp: 300, Close: 3},
		{Timestamp: 100, Close: 1},
		{Timestamp: 200, Close: 2},
		{Timestamp: 100, Close: 9},
	}
	SortCandles(candles)
	deduped := DedupCandles(candles)
	require.Len(t, deduped, 3)
	assert.Equal(t, int64(100), deduped[0].Timestamp)
	assert.Equal(t, int64(200), deduped[1].Timestamp)
	assert.Equal(t, int64(300), deduped[2].Timestamp)
}
