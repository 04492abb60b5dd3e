package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
)

type fakeProvider struct{ name string }

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) ProviderType() providercontract.ProviderType {
	return providercontract.ProviderTypeHistorical
}
func (f *fakeProvider) GetAvailableSymbols(ctx context.Context) ([]model.SymbolInfo, error) {
	return nil, nil
}
func (f *fakeProvider) Close(ctx context.Context) error { return nil }

type fakeStore struct {
	mu      sync.Mutex
	groups  []model.SubscriptionGroup
	regs    map[string]model.ProviderRegistration
	unloads []string
}

func (f *fakeStore) ListSubscriptionGroups(ctx context.Context) ([]model.SubscriptionGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.SubscriptionGroup, len(f.groups))
	copy(out, f.groups)
	return out, nil
}

func (f *fakeStore) GetRegistration(ctx context.Context, className string, classType model.ClassType) (model.ProviderRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[className], nil
}

type fakeLoader struct {
	mu     sync.Mutex
	loaded map[string]bool
}

func (f *fakeLoader) Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded == nil {
		f.loaded = map[string]bool{}
	}
	f.loaded[className] = true
	return &fakeProvider{name: className}, nil
}

func (f *fakeLoader) Unload(ctx context.Context, className string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.loaded, className)
	return nil
}

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, provider, interval string, symbols []string) error {
	return nil
}
func (noopRunner) RunLive(ctx context.Context, provider, interval string, symbols []string, timeout time.Duration) error {
	return nil
}

type liveNoop struct{}

func (liveNoop) Run(ctx context.Context, provider, interval string, symbols []string, timeout time.Duration) error {
	return nil
}

func TestReconcileAddsAndRemovesJobs(t *testing.T) {
	store := &fakeStore{
		groups: []model.SubscriptionGroup{
			{Provider: "acme", Interval: "1d", Cron: "0 6 * * *", Symbols: []string{"BTC"}},
		},
		regs: map[string]model.ProviderRegistration{
			"acme": {ClassSubtype: model.SubtypeHistorical, Preferences: map[string]any{}},
		},
	}
	loader := &fakeLoader{}
	s := New(store, loader, noopRunner{}, liveNoop{}, slog.Default(), time.Hour, nil)

	require.NoError(t, s.Reconcile(context.Background()))
	keys := s.JobKeys()
	require.Len(t, keys, 1)
	require.True(t, keys["acme|1d|0 6 * * *"])

	// Remove the subscription: the job should be canceled on next reconcile.
	store.mu.Lock()
	store.groups = nil
	store.mu.Unlock()

	require.NoError(t, s.Reconcile(context.Background()))
	require.Empty(t, s.JobKeys())
}

func TestReconcileRebindsSymbolsWithoutNewJob(t *testing.T) {
	store := &fakeStore{
		groups: []model.SubscriptionGroup{
			{Provider: "acme", Interval: "1d", Cron: "0 6 * * *", Symbols: []string{"BTC"}},
		},
		regs: map[string]model.ProviderRegistration{
			"acme": {ClassSubtype: model.SubtypeHistorical, Preferences: map[string]any{}},
		},
	}
	loader := &fakeLoader{}
	s := New(store, loader, noopRunner{}, liveNoop{}, slog.Default(), time.Hour, nil)

	require.NoError(t, s.Reconcile(context.Background()))
	before := s.jobs["acme|1d|0 6 * * *"]
	require.NotNil(t, before)

	store.mu.Lock()
	store.groups[0].Symbols = []string{"BTC", "ETH"}
	store.mu.Unlock()

	require.NoError(t, s.Reconcile(context.Background()))
	after := s.jobs["acme|1d|0 6 * * *"]
	require.Same(t, before, after)
	require.ElementsMatch(t, []string{"BTC", "ETH"}, after.getSymbols())
}

func TestOffsetSecondsBySubtype(t *testing.T) {
	historical := model.ProviderRegistration{ClassSubtype: model.SubtypeHistorical, Preferences: map[string]any{"delay_hours": 6}}
	d, err := offsetSeconds(historical)
	require.NoError(t, err)
	require.Equal(t, 6*3600, d)

	live := model.ProviderRegistration{ClassSubtype: model.SubtypeLive, Preferences: map[string]any{"pre_close_seconds": 45}}
	d, err = offsetSeconds(live)
	require.NoError(t, err)
	require.Equal(t, -45, d)

	idx := model.ProviderRegistration{ClassSubtype: model.SubtypeIndex}
	d, err = offsetSeconds(idx)
	require.NoError(t, err)
	require.Equal(t, 0, d)
}
