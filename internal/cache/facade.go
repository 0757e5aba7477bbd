package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"brokerd/internal/histdata"
	"brokerd/internal/logger"
	"brokerd/internal/market"
	"brokerd/internal/store/sqlite"
)

// CoverageThreshold is the cached-coverage percentage above which a read is
// served from the store without consulting upstream.
const CoverageThreshold = 95.0

// Query is one facade read.
type Query struct {
	Symbol     string
	Interval   market.Interval
	Source     string
	Start      int64
	End        int64
	MaxCandles int
	UseCache   bool
	FillGaps   bool
}

// Result carries the merged series. Partial is true when the caller opted
// out of gap filling and the cached coverage is below threshold; the series
// is returned as-is instead of silently upgrading to a full re-fetch.
type Result struct {
	Candles []market.Candle `json:"candles"`
	Source  string          `json:"source"`
	Partial bool            `json:"partial"`
}

// Service composes the candle store, gap ledger, and fetch orchestrator
// into the read path: check cache, measure coverage, detect and backfill
// gaps, persist, merge.
type Service struct {
	store   *sqlite.Store
	fetcher *histdata.Service
	group   singleflight.Group
}

func New(store *sqlite.Store, fetcher *histdata.Service) *Service {
	return &Service{store: store, fetcher: fetcher}
}

// GetCandles serves a [symbol, interval, source, start, end] read.
// Concurrent identical cache-miss reads are collapsed onto one in-flight
// call; the second caller shares the first's result instead of duplicating
// upstream fetches.
func (s *Service) GetCandles(ctx context.Context, q Query) (Result, error) {
	if q.Symbol == "" {
		return Result{}, fmt.Errorf("symbol is required")
	}
	norm := s.fetcher.Normalize(histdata.Request{
		Symbol:   q.Symbol,
		Interval: q.Interval,
		Start:    q.Start,
		End:      q.End,
		Source:   q.Source,
	})
	q.Source = norm.Source
	q.Start = norm.Start
	q.End = norm.End
	if _, err := s.fetcher.Source(q.Source); err != nil {
		return Result{}, err
	}

	key := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%t|%t",
		q.Symbol, q.Interval, q.Source, q.Start, q.End, q.MaxCandles, q.UseCache, q.FillGaps)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.getCandles(ctx, q)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Service) getCandles(ctx context.Context, q Query) (Result, error) {
	if !q.UseCache {
		return s.fetchDirect(ctx, q, false)
	}

	cached, err := s.store.Candles(ctx, q.Symbol, q.Interval, q.Source, q.Start, q.End, q.MaxCandles)
	if err != nil {
		return Result{}, err
	}
	if len(cached) == 0 {
		return s.fetchDirect(ctx, q, true)
	}

	cov, err := s.store.Coverage(ctx, q.Symbol, q.Interval, q.Source, q.Start, q.End)
	if err != nil {
		return Result{}, err
	}
	if cov.CoveragePct >= CoverageThreshold {
		logger.Infof("serving %d candles for %s %s from cache (%.1f%% coverage)",
			len(cached), q.Symbol, q.Interval, cov.CoveragePct)
		return Result{Candles: cached, Source: q.Source}, nil
	}

	if !q.FillGaps {
		return Result{Candles: cached, Source: q.Source, Partial: cov.HasGaps}, nil
	}

	ranges, err := s.store.DetectGaps(ctx, q.Symbol, q.Interval, q.Source, q.Start, q.End)
	if err != nil {
		return Result{}, err
	}
	gaps, _, err := s.store.RecordGaps(ctx, q.Symbol, q.Interval, q.Source, ranges)
	if err != nil {
		return Result{}, err
	}
	logger.Infof("detected %d gaps for %s %s, backfilling", len(gaps), q.Symbol, q.Interval)

	merged := cached
	for _, gap := range gaps {
		n, candles, err := s.fillGap(ctx, gap)
		if err != nil {
			logger.Errorf("backfill of gap [%d,%d) for %s %s failed: %v",
				gap.GapStart, gap.GapEnd, q.Symbol, q.Interval, err)
			continue
		}
		if n > 0 || len(candles) > 0 {
			merged = append(merged, candles...)
		}
	}

	market.SortCandles(merged)
	merged = market.DedupCandles(merged)
	if q.MaxCandles > 0 && len(merged) > q.MaxCandles {
		merged = merged[len(merged)-q.MaxCandles:]
	}
	return Result{Candles: merged, Source: q.Source}, nil
}

// fetchDirect runs a full upstream fetch for the whole requested range and
// persists the result when caching is on.
func (s *Service) fetchDirect(ctx context.Context, q Query, persist bool) (Result, error) {
	logger.Infof("fetching %s %s directly from %s", q.Symbol, q.Interval, q.Source)
	candles, err := s.fetcher.GetHistorical(ctx, histdata.Request{
		Symbol:     q.Symbol,
		Interval:   q.Interval,
		Start:      q.Start,
		End:        q.End,
		MaxCandles: q.MaxCandles,
		Source:     q.Source,
	})
	if err != nil {
		return Result{}, err
	}
	if persist && len(candles) > 0 {
		if _, err := s.store.StoreCandles(ctx, q.Symbol, q.Interval, q.Source, candles); err != nil {
			return Result{}, err
		}
	}
	return Result{Candles: candles, Source: q.Source}, nil
}

// fillGap drives one ledger entry through its lifecycle: fetching while the
// orchestrator runs, completed once the backfill stored data, failed when
// the upstream had nothing. Failed gaps are retried naturally on the next
// read that re-detects the hole.
func (s *Service) fillGap(ctx context.Context, gap sqlite.Gap) (int, []market.Candle, error) {
	iv, err := market.ParseInterval(gap.Interval)
	if err != nil {
		return 0, nil, err
	}
	_ = s.store.SetGapStatus(ctx, gap.ID, sqlite.GapFetching)

	candles, err := s.fetcher.GetHistorical(ctx, histdata.Request{
		Symbol:   gap.Symbol,
		Interval: iv,
		Start:    gap.GapStart,
		End:      gap.GapEnd,
		Source:   gap.Source,
	})
	if err != nil {
		_ = s.store.SetGapStatus(ctx, gap.ID, sqlite.GapFailed)
		return 0, nil, err
	}
	if len(candles) == 0 {
		_ = s.store.SetGapStatus(ctx, gap.ID, sqlite.GapFailed)
		return 0, nil, nil
	}

	stored, err := s.store.StoreCandles(ctx, gap.Symbol, iv, gap.Source, candles)
	if err != nil {
		_ = s.store.SetGapStatus(ctx, gap.ID, sqlite.GapFailed)
		return 0, nil, err
	}
	_ = s.store.SetGapStatus(ctx, gap.ID, sqlite.GapCompleted)
	return stored, candles, nil
}

// FillGap backfills one recorded gap by id, for the explicit fill endpoint.
// Returns the number of candles stored.
func (s *Service) FillGap(ctx context.Context, gapID int64) (int, error) {
	gap, ok, err := s.store.GapByID(ctx, gapID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("gap %d not found", gapID)
	}
	n, _, err := s.fillGap(ctx, gap)
	return n, err
}
