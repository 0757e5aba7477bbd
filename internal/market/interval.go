package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrUnsupportedInterval is returned for interval strings outside the fixed
// grid. Unknown intervals are rejected at parse time, never coerced.
var ErrUnsupportedInterval = fmt.Errorf("unsupported interval")

// Interval is one of the fixed candle grid steps.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

var intervalMinutes = map[Interval]int64{
	Interval1m:  1,
	Interval5m:  5,
	Interval15m: 15,
	Interval30m: 30,
	Interval1h:  60,
	Interval4h:  240,
	Interval1d:  1440,
}

// ParseInterval validates an interval string against the fixed grid.
func ParseInterval(input string) (Interval, error) {
	iv := Interval(strings.ToLower(strings.TrimSpace(input)))
	if _, ok := intervalMinutes[iv]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedInterval, input)
	}
	return iv, nil
}

// Minutes returns the grid step size in minutes.
func (iv Interval) Minutes() int64 {
	return intervalMinutes[iv]
}

// Duration returns the grid step size.
func (iv Interval) Duration() time.Duration {
	return time.Duration(intervalMinutes[iv]) * time.Minute
}

// StepMillis returns the grid step size in milliseconds.
func (iv Interval) StepMillis() int64 {
	return intervalMinutes[iv] * 60_000
}

func (iv Interval) String() string { return string(iv) }

// SupportedIntervals returns all grid keys, sorted by step size.
func SupportedIntervals() []Interval {
	out := make([]Interval, 0, len(intervalMinutes))
	for iv := range intervalMinutes {
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool {
		return intervalMinutes[out[i]] < intervalMinutes[out[j]]
	})
	return out
}
