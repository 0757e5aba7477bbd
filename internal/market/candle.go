package market

import (
	"sort"
	"time"
)

// Candle is one OHLC(V) observation. Timestamp is the bar open time in Unix
// milliseconds UTC and must land exactly on the interval grid; source
// adapters are responsible for producing grid-aligned bars.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume,omitempty"`
	Source    string  `json:"source"`
}

// Time returns the bar open time as a UTC instant.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// SortCandles orders candles ascending by open time.
func SortCandles(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})
}

// DedupCandles compacts a sorted slice, keeping the first candle seen for
// each timestamp.
func DedupCandles(candles []Candle) []Candle {
	if len(candles) < 2 {
		return candles
	}
	out := candles[:1]
	for _, c := range candles[1:] {
		if c.Timestamp != out[len(out)-1].Timestamp {
			out = append(out, c)
		}
	}
	return out
}
