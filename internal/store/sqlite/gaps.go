package sqlite

import (
	"context"
	"database/sql"
	"time"

	"brokerd/internal/logger"
	"brokerd/internal/market"
)

// GapStatus is the lifecycle state of a recorded data gap.
type GapStatus string

const (
	GapPending   GapStatus = "pending"
	GapFetching  GapStatus = "fetching"
	GapCompleted GapStatus = "completed"
	GapFailed    GapStatus = "failed"
)

// GapRange is a half-open [Start, End) missing sub-range in Unix ms.
type GapRange struct {
	Start int64 `json:"gap_start"`
	End   int64 `json:"gap_end"`
}

// Gap is a recorded data gap with its ledger identity and status.
type Gap struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	Source      string    `json:"source"`
	GapStart    int64     `json:"gap_start"`
	GapEnd      int64     `json:"gap_end"`
	SizeMinutes int64     `json:"gap_size_minutes"`
	Status      GapStatus `json:"status"`
	CreatedAt   int64     `json:"created_at"`
	UpdatedAt   int64     `json:"updated_at"`
}

// DetectGaps walks the stored candle sequence in [start, end] and emits the
// sub-ranges where expected grid points are missing. A single missing step
// between neighbors is tolerated as jitter; anything larger is a gap. With
// no stored candles the whole range is one gap.
func (s *Store) DetectGaps(ctx context.Context, symbol string, interval market.Interval, source string, start, end int64) ([]GapRange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp FROM candles
		WHERE symbol = ? AND interval = ? AND source = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`,
		symbol, interval.String(), source, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stamps []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		stamps = append(stamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(stamps) == 0 {
		return []GapRange{{Start: start, End: end}}, nil
	}

	step := interval.StepMillis()
	var gaps []GapRange

	if first := stamps[0]; first > start+step {
		gaps = append(gaps, GapRange{Start: start, End: first})
	}
	for i := 0; i < len(stamps)-1; i++ {
		expectedNext := stamps[i] + step
		if next := stamps[i+1]; next > expectedNext+step {
			gaps = append(gaps, GapRange{Start: expectedNext, End: next})
		}
	}
	if last := stamps[len(stamps)-1]; last < end-step {
		gaps = append(gaps, GapRange{Start: last + step, End: end})
	}
	return gaps, nil
}

// RecordGaps inserts each gap unless an identical (symbol, interval,
// source, gap_start, gap_end) row already exists, and returns the ledger
// rows for all given ranges plus the count of newly inserted ones.
func (s *Store) RecordGaps(ctx context.Context, symbol string, interval market.Interval, source string, ranges []GapRange) ([]Gap, int, error) {
	if len(ranges) == 0 {
		return nil, 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	now := time.Now().UTC().UnixMilli()
	inserted := 0
	gaps := make([]Gap, 0, len(ranges))
	for _, r := range ranges {
		if r.Start >= r.End {
			continue
		}
		var id int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM data_gaps
			WHERE symbol = ? AND interval = ? AND source = ? AND gap_start = ? AND gap_end = ?`,
			symbol, interval.String(), source, r.Start, r.End).Scan(&id)
		if err == sql.ErrNoRows {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO data_gaps (symbol, interval, source, gap_start, gap_end, gap_size_minutes, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				symbol, interval.String(), source, r.Start, r.End,
				(r.End-r.Start)/60_000, GapPending, now, now)
			if err != nil {
				_ = tx.Rollback()
				return nil, 0, err
			}
			id, err = res.LastInsertId()
			if err != nil {
				_ = tx.Rollback()
				return nil, 0, err
			}
			inserted++
		} else if err != nil {
			_ = tx.Rollback()
			return nil, 0, err
		}
		gaps = append(gaps, Gap{
			ID: id, Symbol: symbol, Interval: interval.String(), Source: source,
			GapStart: r.Start, GapEnd: r.End,
			SizeMinutes: (r.End - r.Start) / 60_000,
			Status:      GapPending, CreatedAt: now, UpdatedAt: now,
		})
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	if inserted > 0 {
		logger.Infof("recorded %d new gaps for %s %s", inserted, symbol, interval)
	}
	return gaps, inserted, nil
}

// PendingGaps lists gaps with status pending, ordered by gap_start. Empty
// filter values are ignored.
func (s *Store) PendingGaps(ctx context.Context, symbol, interval, source string) ([]Gap, error) {
	query := `SELECT id, symbol, interval, source, gap_start, gap_end, gap_size_minutes, status, created_at, updated_at
		FROM data_gaps WHERE status = ?`
	args := []any{GapPending}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	if interval != "" {
		query += ` AND interval = ?`
		args = append(args, interval)
	}
	if source != "" {
		query += ` AND source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY gap_start`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Gap
	for rows.Next() {
		var g Gap
		if err := rows.Scan(&g.ID, &g.Symbol, &g.Interval, &g.Source, &g.GapStart, &g.GapEnd,
			&g.SizeMinutes, &g.Status, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GapByID loads one ledger row; ok is false for an unknown id.
func (s *Store) GapByID(ctx context.Context, id int64) (Gap, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, interval, source, gap_start, gap_end, gap_size_minutes, status, created_at, updated_at
		FROM data_gaps WHERE id = ?`, id)
	var g Gap
	err := row.Scan(&g.ID, &g.Symbol, &g.Interval, &g.Source, &g.GapStart, &g.GapEnd,
		&g.SizeMinutes, &g.Status, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return Gap{}, false, nil
	}
	if err != nil {
		return Gap{}, false, err
	}
	return g, true, nil
}

// SetGapStatus transitions a gap's lifecycle state. An unknown id is a
// logged no-op; callers tolerate it.
func (s *Store) SetGapStatus(ctx context.Context, id int64, status GapStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE data_gaps SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.Warnf("gap %d not found, status %s not applied", id, status)
	}
	return nil
}
