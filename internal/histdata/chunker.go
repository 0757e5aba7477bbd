package histdata

import "brokerd/internal/market"

// Chunk is a half-open [Start, End) sub-range of a requested window, sized
// so one upstream request can cover it.
type Chunk struct {
	Start int64
	End   int64
}

// PlanChunks partitions [start, end) into contiguous half-open chunks, each
// spanning at most maxBars grid steps. Chunks cover the range exactly, in
// ascending order, with no gaps or overlaps. start >= end yields nil.
func PlanChunks(start, end int64, interval market.Interval, maxBars int) []Chunk {
	if start >= end || maxBars <= 0 {
		return nil
	}
	maxSpan := int64(maxBars) * interval.StepMillis()
	var chunks []Chunk
	for cur := start; cur < end; {
		next := cur + maxSpan
		if next > end {
			next = end
		}
		chunks = append(chunks, Chunk{Start: cur, End: next})
		cur = next
	}
	return chunks
}
