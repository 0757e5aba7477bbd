package histdata

import (
	"context"
	"errors"
	"strings"

	"brokerd/internal/market"
)

// Known upstream sources.
const (
	SourceOanda   = "oanda"
	SourceBitunix = "bitunix"
	SourceAuto    = "auto"
)

// Per-request bar ceilings imposed by the upstream APIs.
const (
	OandaMaxBars   = 5000
	BitunixMaxBars = 200
)

// ErrSourceUnavailable means the credentials/config for a resolved source
// are absent. It is terminal for the request, never retried.
var ErrSourceUnavailable = errors.New("source unavailable")

// FetchRequest describes one upstream candle page request. Start/End are
// Unix milliseconds; the range handed to Fetch never exceeds the source's
// bar ceiling for the given interval (the chunk planner guarantees it).
type FetchRequest struct {
	Symbol   string
	Interval market.Interval
	Start    int64
	End      int64
}

// CandleSource unifies the fetch behavior of the upstream brokers.
// Implementations normalize timestamps to Unix ms UTC, drop incomplete
// bars, and return grid-aligned candles.
type CandleSource interface {
	Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error)
	Name() string
	MaxBars() int
}

// ResolveSource applies the auto heuristic: symbols with an underscore
// separator (EUR_USD) are forex and route to oanda; bare symbols (BTCUSDT)
// route to bitunix. This is policy, not universal truth.
func ResolveSource(symbol, source string) string {
	s := strings.ToLower(strings.TrimSpace(source))
	if s != "" && s != SourceAuto {
		return s
	}
	if strings.Contains(symbol, "_") {
		return SourceOanda
	}
	return SourceBitunix
}

// BrokerLimits reports the per-source bar ceiling.
func BrokerLimits() map[string]int {
	return map[string]int{
		SourceOanda:   OandaMaxBars,
		SourceBitunix: BitunixMaxBars,
	}
}

// AvailableIntervals reports the interval grid each broker serves. Both
// upstreams cover the full grid.
func AvailableIntervals() map[string][]string {
	grid := market.SupportedIntervals()
	out := make(map[string][]string, 2)
	for _, name := range []string{SourceOanda, SourceBitunix} {
		keys := make([]string, 0, len(grid))
		for _, iv := range grid {
			keys = append(keys, iv.String())
		}
		out[name] = keys
	}
	return out
}
