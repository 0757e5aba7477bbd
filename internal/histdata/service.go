package histdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"brokerd/internal/logger"
	"brokerd/internal/market"
)

// DefaultLookback is the window applied when a request carries no start time.
const DefaultLookback = 7 * 24 * time.Hour

// chunkPace spaces successive chunk fetches against the same source so a
// long backfill stays under the upstream rate limits.
const chunkPace = 100 * time.Millisecond

// Request is one historical data query. Start/End are Unix ms; zero values
// default to [now - DefaultLookback, now]. Source may be a broker name or
// "auto".
type Request struct {
	Symbol     string
	Interval   market.Interval
	Start      int64
	End        int64
	MaxCandles int
	Source     string
}

// Service resolves sources, plans chunks, and runs sequential paced fetches
// against the upstream brokers. Chunks of a single request are never
// parallelized; the pacing wait is cooperative so concurrent requests keep
// making progress.
type Service struct {
	sources map[string]CandleSource
	limiter *rate.Limiter
	now     func() time.Time
}

func NewService(sources ...CandleSource) *Service {
	svc := &Service{
		sources: make(map[string]CandleSource, len(sources)),
		limiter: rate.NewLimiter(rate.Every(chunkPace), 1),
		now:     time.Now,
	}
	for _, src := range sources {
		if src != nil {
			svc.sources[strings.ToLower(src.Name())] = src
		}
	}
	return svc
}

// Source returns the adapter for a resolved source name, or
// ErrSourceUnavailable when it was never constructed (missing credentials).
func (s *Service) Source(name string) (CandleSource, error) {
	src, ok := s.sources[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, name)
	}
	return src, nil
}

// Normalize resolves the auto source and fills the default time range.
func (s *Service) Normalize(req Request) Request {
	req.Source = ResolveSource(req.Symbol, req.Source)
	if req.End == 0 {
		req.End = s.now().UTC().UnixMilli()
	}
	if req.Start == 0 {
		req.Start = req.End - DefaultLookback.Milliseconds()
	}
	return req
}

// GetHistorical fetches the requested range chunk by chunk, concatenates,
// sorts ascending, and tail-truncates to MaxCandles. A chunk that fails or
// comes back empty is skipped; the resulting shortfall surfaces later as a
// detected gap, which is the retry path. Persisting the result is the
// caller's job.
func (s *Service) GetHistorical(ctx context.Context, req Request) ([]market.Candle, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	req = s.Normalize(req)
	src, err := s.Source(req.Source)
	if err != nil {
		return nil, err
	}

	chunks := PlanChunks(req.Start, req.End, req.Interval, src.MaxBars())
	logger.Infof("fetching %d chunks for %s %s from %s", len(chunks), req.Symbol, req.Interval, src.Name())

	var all []market.Candle
	for i, chunk := range chunks {
		if i > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		candles, err := src.Fetch(ctx, FetchRequest{
			Symbol:   req.Symbol,
			Interval: req.Interval,
			Start:    chunk.Start,
			End:      chunk.End,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warnf("chunk %d/%d for %s %s failed: %v", i+1, len(chunks), req.Symbol, req.Interval, err)
			continue
		}
		all = append(all, candles...)
	}

	market.SortCandles(all)
	if req.MaxCandles > 0 && len(all) > req.MaxCandles {
		all = all[len(all)-req.MaxCandles:]
	}
	logger.Infof("retrieved %d candles for %s %s", len(all), req.Symbol, req.Interval)
	return all, nil
}
