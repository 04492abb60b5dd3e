package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetWatermark returns the last_updated date recorded for (provider,
// symbol) in historical_symbol_state. ok is false if the pair has never
// been ingested (§3 SymbolWatermark: "absence means never ingested").
//
// The watermark's own update is left to an external projection on the
// historical_data table, per the design notes' open question — this
// collector-facing facade only reads it.
func (d *DB) GetWatermark(ctx context.Context, provider, symbol string) (lastUpdated time.Time, ok bool, err error) {
	pool, err := d.requirePool()
	if err != nil {
		return time.Time{}, false, err
	}

	row := pool.QueryRow(ctx,
		`SELECT last_updated FROM historical_symbol_state WHERE provider = $1 AND sym = $2`,
		provider, symbol)

	if err := row.Scan(&lastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return lastUpdated, true, nil
}
