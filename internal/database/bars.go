package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quasarhq/quasar/internal/model"
)

// HistoricalBarsTable and LiveBarsTable are the two 9-column bar tables
// bulk-load targets (§6).
const (
	HistoricalBarsTable = "historical_data"
	LiveBarsTable       = "live_data"
)

var barColumns = []string{"ts", "sym", "provider", "interval", "o", "h", "l", "c", "v"}

// InsertBars bulk-loads bars into table using the backing database's
// fastest bulk-load primitive, pgx's binary COPY protocol (§4.J). Records
// are the 9-tuples (ts, sym, provider, interval, o, h, l, c, v).
func (d *DB) InsertBars(ctx context.Context, table string, bars []model.Bar) (int64, error) {
	pool, err := d.requirePool()
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []any{b.TS, b.Sym, b.Provider, b.Interval, b.O, b.H, b.L, b.C, b.V})
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, barColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("database: copying into %s: %w", table, err)
	}
	return n, nil
}
