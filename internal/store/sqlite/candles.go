package sqlite

import (
	"context"
	"database/sql"
	"time"

	"brokerd/internal/logger"
	"brokerd/internal/market"
)

// Coverage summarizes expected-vs-actual candle counts over a range.
type Coverage struct {
	Symbol          string  `json:"symbol"`
	Interval        string  `json:"interval"`
	Source          string  `json:"source"`
	Start           int64   `json:"start_time"`
	End             int64   `json:"end_time"`
	Expected        int64   `json:"expected_candles"`
	Actual          int64   `json:"actual_candles"`
	CoveragePct     float64 `json:"coverage_percentage"`
	FirstCandleTime int64   `json:"first_candle_time,omitempty"`
	LastCandleTime  int64   `json:"last_candle_time,omitempty"`
	HasGaps         bool    `json:"has_gaps"`
}

// Stats is the global, unscoped cache summary.
type Stats struct {
	TotalCandles int64 `json:"total_candles"`
	TotalGaps    int64 `json:"total_gaps"`
	PendingGaps  int64 `json:"pending_gaps"`
	Symbols      int64 `json:"symbols"`
	Sources      int64 `json:"sources"`
	Intervals    int64 `json:"intervals"`
}

// Metadata is the per-key cache extent, recomputed from the candle rows on
// every store so it never drifts.
type Metadata struct {
	Symbol          string `json:"symbol"`
	Interval        string `json:"interval"`
	Source          string `json:"source"`
	FirstCandleTime int64  `json:"first_candle_time"`
	LastCandleTime  int64  `json:"last_candle_time"`
	TotalCandles    int64  `json:"total_candles"`
	LastFetchTime   int64  `json:"last_fetch_time"`
	LastFetchCount  int64  `json:"last_fetch_count"`
}

// StoreCandles inserts the batch with insert-if-absent semantics keyed on
// (symbol, interval, source, timestamp); duplicates are skipped silently.
// The inserts and the metadata recompute share one transaction, so a
// failure rolls back both. Returns the number of newly stored rows.
func (s *Store) StoreCandles(ctx context.Context, symbol string, interval market.Interval, source string, candles []market.Candle) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, interval, source, timestamp, open, high, low, close, volume, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval, source, timestamp) DO NOTHING`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixMilli()
	stored := 0
	for _, c := range candles {
		res, err := stmt.ExecContext(ctx, symbol, interval.String(), source,
			c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, now, now)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stored++
		}
	}
	if err := refreshMetadata(ctx, tx, symbol, interval.String(), source, stored, now); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logger.Infof("stored %d new candles for %s %s from %s", stored, symbol, interval, source)
	return stored, nil
}

// refreshMetadata recomputes the cache_metadata row for the key from an
// aggregate over the candle rows, inside the caller's transaction.
func refreshMetadata(ctx context.Context, tx *sql.Tx, symbol, interval, source string, fetchCount int, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cache_metadata
			(symbol, interval, source, first_candle_time, last_candle_time, total_candles, last_fetch_time, last_fetch_count, created_at, updated_at)
		SELECT ?, ?, ?, MIN(timestamp), MAX(timestamp), COUNT(1), ?, ?, ?, ?
		FROM candles WHERE symbol = ? AND interval = ? AND source = ?
		ON CONFLICT(symbol, interval, source) DO UPDATE SET
			first_candle_time = excluded.first_candle_time,
			last_candle_time  = excluded.last_candle_time,
			total_candles     = excluded.total_candles,
			last_fetch_time   = excluded.last_fetch_time,
			last_fetch_count  = excluded.last_fetch_count,
			updated_at        = excluded.updated_at`,
		symbol, interval, source, now, fetchCount, now, now,
		symbol, interval, source)
	return err
}

// Candles returns stored candles for the key, ascending by timestamp.
// start/end are inclusive bounds (zero means unbounded); a positive limit
// keeps only the most recent rows within range, still returned ascending.
func (s *Store) Candles(ctx context.Context, symbol string, interval market.Interval, source string, start, end int64, limit int) ([]market.Candle, error) {
	query := `SELECT timestamp, open, high, low, close, COALESCE(volume, 0), source
		FROM candles WHERE symbol = ? AND interval = ? AND source = ?`
	args := []any{symbol, interval.String(), source}
	if start > 0 {
		query += ` AND timestamp >= ?`
		args = append(args, start)
	}
	if end > 0 {
		query += ` AND timestamp <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Source); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query runs newest-first so LIMIT keeps the most recent rows; flip
	// back to chronological order for callers.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Coverage computes expected-vs-actual candle counts over [start, end].
func (s *Store) Coverage(ctx context.Context, symbol string, interval market.Interval, source string, start, end int64) (Coverage, error) {
	cov := Coverage{
		Symbol:   symbol,
		Interval: interval.String(),
		Source:   source,
		Start:    start,
		End:      end,
	}
	if end > start {
		cov.Expected = (end - start) / interval.StepMillis()
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1), COALESCE(MIN(timestamp), 0), COALESCE(MAX(timestamp), 0)
		FROM candles
		WHERE symbol = ? AND interval = ? AND source = ? AND timestamp >= ? AND timestamp <= ?`,
		symbol, interval.String(), source, start, end)
	if err := row.Scan(&cov.Actual, &cov.FirstCandleTime, &cov.LastCandleTime); err != nil {
		return Coverage{}, err
	}
	if cov.Expected > 0 {
		cov.CoveragePct = float64(cov.Actual) / float64(cov.Expected) * 100
	}
	cov.HasGaps = cov.Actual < cov.Expected
	return cov, nil
}

// Metadata returns the cache extent row for a key; ok is false when the key
// has never been stored.
func (s *Store) Metadata(ctx context.Context, symbol string, interval market.Interval, source string) (Metadata, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, interval, source,
			COALESCE(first_candle_time, 0), COALESCE(last_candle_time, 0),
			total_candles, COALESCE(last_fetch_time, 0), last_fetch_count
		FROM cache_metadata WHERE symbol = ? AND interval = ? AND source = ?`,
		symbol, interval.String(), source)
	var m Metadata
	err := row.Scan(&m.Symbol, &m.Interval, &m.Source, &m.FirstCandleTime, &m.LastCandleTime,
		&m.TotalCandles, &m.LastFetchTime, &m.LastFetchCount)
	if err == sql.ErrNoRows {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, err
	}
	return m, true, nil
}

// LatestClose returns the close of the most recently cached candle for a
// symbol across all intervals and sources; ok is false when nothing is
// cached yet.
func (s *Store) LatestClose(ctx context.Context, symbol string) (float64, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT close FROM candles WHERE symbol = ? ORDER BY timestamp DESC LIMIT 1`, symbol)
	var close float64
	err := row.Scan(&close)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return close, true, nil
}

// Stats aggregates global cache counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM candles),
			(SELECT COUNT(1) FROM data_gaps),
			(SELECT COUNT(1) FROM data_gaps WHERE status = 'pending'),
			(SELECT COUNT(DISTINCT symbol) FROM candles),
			(SELECT COUNT(DISTINCT source) FROM candles),
			(SELECT COUNT(DISTINCT interval) FROM candles)`)
	if err := row.Scan(&st.TotalCandles, &st.TotalGaps, &st.PendingGaps, &st.Symbols, &st.Sources, &st.Intervals); err != nil {
		return Stats{}, err
	}
	return st, nil
}
