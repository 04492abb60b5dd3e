// Package historical implements the Historical Collector (§4.F): given a
// provider name, interval, and symbol set, it computes the missing date
// range per symbol from the stored watermark, pulls bars through the
// provider's unified data surface, and bulk-inserts them.
package historical

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
	"github.com/quasarhq/quasar/internal/providerloader"
	"github.com/quasarhq/quasar/internal/tracing"
)

// DefaultBatchSize is the bar buffer threshold that triggers a bulk
// insert mid-stream rather than waiting for the full sequence to drain.
const DefaultBatchSize = 500

const defaultLookbackDays = 8000

// ProviderSource resolves a provider instance by class name. Satisfied
// by *providerloader.Loader.
type ProviderSource interface {
	Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error)
}

// Store is the persistence surface the collector needs: watermark reads
// and bulk bar inserts.
type Store interface {
	GetWatermark(ctx context.Context, provider, symbol string) (time.Time, bool, error)
	InsertBars(ctx context.Context, table string, bars []model.Bar) (int64, error)
}

// Collector runs one historical-collector firing per Run call.
type Collector struct {
	loader        ProviderSource
	registrations providerloader.RegistrationStore
	store         Store
	logger        *slog.Logger
	batchSize     int
}

// New builds a Collector. batchSize of 0 uses DefaultBatchSize.
func New(loader ProviderSource, registrations providerloader.RegistrationStore, store Store, logger *slog.Logger, batchSize int) *Collector {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Collector{loader: loader, registrations: registrations, store: store, logger: logger, batchSize: batchSize}
}

// Run executes one firing: §4.F steps 1-5.
func (c *Collector) Run(ctx context.Context, provider, interval string, symbols []string) error {
	ctx, end := tracing.StartJobSpan(ctx, "historical.Run", provider, interval)
	defer end()

	inst, err := c.loader.Load(ctx, provider, model.ClassTypeProvider)
	if err != nil {
		return fmt.Errorf("historical: loading %s: %w", provider, err)
	}

	hp, ok := inst.(providercontract.HistoricalProvider)
	if !ok {
		return fmt.Errorf("historical: %s is not a historical provider", provider)
	}

	reg, err := c.registrations.GetRegistration(ctx, provider, model.ClassTypeProvider)
	if err != nil {
		return fmt.Errorf("historical: loading preferences for %s: %w", provider, err)
	}
	lookbackDays := intPref(reg.Preferences, "lookback_days", defaultLookbackDays)

	yesterday := truncateToDate(time.Now().UTC()).AddDate(0, 0, -1)

	var reqs []model.Req
	for _, sym := range symbols {
		watermark, ok, err := c.store.GetWatermark(ctx, provider, sym)
		if err != nil {
			return fmt.Errorf("historical: watermark for %s/%s: %w", provider, sym, err)
		}

		var start time.Time
		if ok {
			start = truncateToDate(watermark).AddDate(0, 0, 1)
		} else {
			start = yesterday.AddDate(0, 0, -lookbackDays+1)
		}

		if start.After(yesterday) {
			continue
		}
		reqs = append(reqs, model.Req{Sym: sym, Start: start, End: yesterday, Interval: interval})
	}

	if len(reqs) == 0 {
		return nil
	}

	seq, err := providercontract.GetData(ctx, hp, reqs)
	if err != nil {
		return fmt.Errorf("historical: fetching %s: %w", provider, err)
	}

	buffer := make([]model.Bar, 0, c.batchSize)
	var total int64
	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		n, err := c.store.InsertBars(ctx, database.HistoricalBarsTable, buffer)
		if err != nil {
			return err
		}
		total += n
		buffer = buffer[:0]
		return nil
	}

	for {
		bar, more, err := seq.Next(ctx)
		if err != nil {
			return fmt.Errorf("historical: reading bars for %s: %w", provider, err)
		}
		if !more {
			break
		}
		bar.Provider = provider
		if bar.Interval == "" {
			bar.Interval = interval
		}
		buffer = append(buffer, bar)
		if len(buffer) >= c.batchSize {
			if err := flush(); err != nil {
				return fmt.Errorf("historical: inserting bars for %s: %w", provider, err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("historical: inserting bars for %s: %w", provider, err)
	}

	c.logger.Info("historical collector finished", "provider", provider, "interval", interval, "symbols", len(symbols), "requests", len(reqs), "bars_inserted", total)
	return nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func intPref(prefs map[string]any, key string, def int) int {
	v, ok := prefs[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
