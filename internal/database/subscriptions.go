package database

import (
	"context"

	"github.com/quasarhq/quasar/internal/model"
)

// ListSubscriptionGroups fetches rows from the subscriptions view already
// aggregated by (provider, interval, cron) -> set(symbol), the input the
// scheduler reconciles against each tick (§4.E step 1).
func (d *DB) ListSubscriptionGroups(ctx context.Context) ([]model.SubscriptionGroup, error) {
	pool, err := d.requirePool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT provider, interval, cron, array_agg(DISTINCT sym ORDER BY sym) AS symbols
		FROM provider_subscription
		GROUP BY provider, interval, cron
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.SubscriptionGroup
	for rows.Next() {
		var g model.SubscriptionGroup
		if err := rows.Scan(&g.Provider, &g.Interval, &g.Cron, &g.Symbols); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
