package histdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerd/internal/market"
)

func TestPlanChunksCoversRangeExactly(t *testing.T) {
	cases := []struct {
		name     string
		interval market.Interval
		bars     int64
		maxBars  int
		want     int
	}{
		{"single page", market.Interval1h, 100, 5000, 1},
		{"exact multiple", market.Interval5m, 600, 200, 3},
		{"remainder page", market.Interval5m, 601, 200, 4},
		{"one bar per page", market.Interval1m, 3, 1, 3},
		{"forex ceiling", market.Interval1m, 12_000, 5000, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			step := tc.interval.StepMillis()
			start := int64(1_700_000_000_000)
			end := start + tc.bars*step

			chunks := PlanChunks(start, end, tc.interval, tc.maxBars)
			require.Len(t, chunks, tc.want)

			assert.Equal(t, start, chunks[0].Start)
			assert.Equal(t, end, chunks[len(chunks)-1].End)
			maxSpan := int64(tc.maxBars) * step
			for i, c := range chunks {
				assert.Less(t, c.Start, c.End)
				assert.LessOrEqual(t, c.End-c.Start, maxSpan)
				if i > 0 {
					assert.Equal(t, chunks[i-1].End, c.Start, "chunks must be contiguous")
				}
			}
		})
	}
}

func TestPlanChunksDegenerateRange(t *testing.T) {
	assert.Nil(t, PlanChunks(100, 100, market.Interval1m, 200))
	assert.Nil(t, PlanChunks(200, 100, market.Interval1m, 200))
	assert.Nil(t, PlanChunks(0, 100, market.Interval1m, 0))
}
