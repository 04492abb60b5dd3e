// Package live implements the Live Collector (§4.G): one bounded
// WebSocket listen window per job fire, yielding the most recent bar per
// symbol observed before the interval's close-plus-grace cutoff.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
	"github.com/quasarhq/quasar/internal/providerloader"
	"github.com/quasarhq/quasar/internal/tracing"
)

const defaultPostCloseSeconds = 5

// ProviderSource resolves a provider instance by class name. Satisfied
// by *providerloader.Loader.
type ProviderSource interface {
	Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error)
}

// Store is the persistence surface the collector needs: bulk bar
// inserts into the live-bars table.
type Store interface {
	InsertBars(ctx context.Context, table string, bars []model.Bar) (int64, error)
}

// Collector runs one live-collector firing per Run call.
type Collector struct {
	loader        ProviderSource
	registrations providerloader.RegistrationStore
	store         Store
	logger        *slog.Logger
}

// New builds a Collector.
func New(loader ProviderSource, registrations providerloader.RegistrationStore, store Store, logger *slog.Logger) *Collector {
	return &Collector{loader: loader, registrations: registrations, store: store, logger: logger}
}

// Run executes one firing: §4.G steps 1-7, bounded by the enclosing
// timeout for the entire operation.
func (c *Collector) Run(ctx context.Context, provider, interval string, symbols []string, timeout time.Duration) error {
	ctx, end := tracing.StartJobSpan(ctx, "live.Run", provider, interval)
	defer end()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	inst, err := c.loader.Load(ctx, provider, model.ClassTypeProvider)
	if err != nil {
		return fmt.Errorf("live: loading %s: %w", provider, err)
	}
	lp, ok := inst.(providercontract.LiveProvider)
	if !ok {
		return fmt.Errorf("live: %s is not a live provider", provider)
	}

	reg, err := c.registrations.GetRegistration(ctx, provider, model.ClassTypeProvider)
	if err != nil {
		return fmt.Errorf("live: loading preferences for %s: %w", provider, err)
	}
	postCloseSeconds := intPref(reg.Preferences, "post_close_seconds", defaultPostCloseSeconds)

	barEnd, err := NextIntervalBoundary(interval, time.Now())
	if err != nil {
		return err
	}
	cutoff := barEnd.Add(time.Duration(postCloseSeconds) * time.Second)

	session, err := lp.Connect(ctx)
	if err != nil {
		return fmt.Errorf("live: connecting %s: %w", provider, err)
	}
	defer session.Close() //nolint:errcheck

	if err := session.Subscribe(ctx, interval, symbols); err != nil {
		return fmt.Errorf("live: subscribing %s: %w", provider, err)
	}

	latest := c.listen(ctx, session, cutoff, barEnd)

	if err := session.Unsubscribe(ctx, symbols); err != nil {
		c.logger.Warn("live: unsubscribe failed", "provider", provider, "error", err)
	}

	bars := make([]model.Bar, 0, len(latest))
	missing := make([]string, 0)
	for _, sym := range symbols {
		bar, ok := latest[sym]
		if !ok {
			missing = append(missing, sym)
			continue
		}
		bar.Provider = provider
		if bar.Interval == "" {
			bar.Interval = interval
		}
		bars = append(bars, bar)
	}
	if len(missing) > 0 {
		c.logger.Warn("live collector missing symbols at cutoff", "provider", provider, "interval", interval, "missing", missing)
	}

	if len(bars) == 0 {
		return nil
	}

	n, err := c.store.InsertBars(ctx, database.LiveBarsTable, bars)
	if err != nil {
		return fmt.Errorf("live: inserting bars for %s: %w", provider, err)
	}
	c.logger.Info("live collector finished", "provider", provider, "interval", interval, "bars_inserted", n)
	return nil
}

// listen reads messages until cutoff, keeping the latest bar observed
// per symbol with ts <= barEnd and discarding bars belonging to the
// next interval.
func (c *Collector) listen(ctx context.Context, session providercontract.LiveSession, cutoff, barEnd time.Time) map[string]model.Bar {
	latest := map[string]model.Bar{}

	readCtx, cancel := context.WithDeadline(ctx, cutoff)
	defer cancel()

	for {
		if !time.Now().Before(cutoff) {
			return latest
		}

		msg, err := session.ReadMessage(readCtx)
		if err != nil {
			if errors.Is(readCtx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return latest
			}
			c.logger.Warn("live: read failed mid-session", "error", err)
			return latest
		}

		bars, err := session.ParseMessage(msg)
		if err != nil {
			c.logger.Warn("live: discarding unparsable message", "error", err)
			continue
		}
		for _, bar := range bars {
			if bar.TS.After(barEnd) {
				continue
			}
			latest[bar.Sym] = bar
		}
	}
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
