package historical

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
)

type fakeHistoricalProvider struct {
	name string
	bars map[string][]model.Bar
}

func (f *fakeHistoricalProvider) Name() string { return f.name }
func (f *fakeHistoricalProvider) ProviderType() providercontract.ProviderType {
	return providercontract.ProviderTypeHistorical
}
func (f *fakeHistoricalProvider) GetAvailableSymbols(ctx context.Context) ([]model.SymbolInfo, error) {
	return nil, nil
}
func (f *fakeHistoricalProvider) Close(ctx context.Context) error { return nil }
func (f *fakeHistoricalProvider) GetHistory(ctx context.Context, req model.Req) (providercontract.BarSeq, error) {
	return providercontract.NewSliceBarSeq(f.bars[req.Sym]), nil
}

type fakeLoader struct {
	inst providercontract.Provider
}

func (f *fakeLoader) Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error) {
	return f.inst, nil
}

type fakeRegStore struct {
	reg model.ProviderRegistration
}

func (f *fakeRegStore) GetRegistration(ctx context.Context, className string, classType model.ClassType) (model.ProviderRegistration, error) {
	return f.reg, nil
}

type fakeStore struct {
	watermarks map[string]time.Time
	inserted   []model.Bar
	table      string
}

func (f *fakeStore) GetWatermark(ctx context.Context, provider, symbol string) (time.Time, bool, error) {
	wm, ok := f.watermarks[symbol]
	return wm, ok, nil
}

func (f *fakeStore) InsertBars(ctx context.Context, table string, bars []model.Bar) (int64, error) {
	f.table = table
	f.inserted = append(f.inserted, bars...)
	return int64(len(bars)), nil
}

func TestRunSkipsSymbolsAlreadyCaughtUp(t *testing.T) {
	yesterday := truncateToDate(time.Now().UTC()).AddDate(0, 0, -1)

	provider := &fakeHistoricalProvider{
		name: "acme",
		bars: map[string][]model.Bar{
			"BTC": {{TS: yesterday, Sym: "BTC", O: 1, H: 1, L: 1, C: 1, V: 1}},
		},
	}
	store := &fakeStore{watermarks: map[string]time.Time{
		"BTC": yesterday.AddDate(0, 0, -5),
		"ETH": yesterday, // already caught up: start would be > yesterday
	}}
	loader := &fakeLoader{inst: provider}
	regs := &fakeRegStore{reg: model.ProviderRegistration{Preferences: map[string]any{}}}

	c := New(loader, regs, store, slog.Default(), 0)
	err := c.Run(context.Background(), "acme", "1d", []string{"BTC", "ETH"})
	require.NoError(t, err)

	require.Equal(t, database.HistoricalBarsTable, store.table)
	require.Len(t, store.inserted, 1)
	require.Equal(t, "BTC", store.inserted[0].Sym)
	require.Equal(t, "acme", store.inserted[0].Provider)
	require.Equal(t, "1d", store.inserted[0].Interval)
}

func TestRunReturnsEarlyWhenNoSymbolsNeedData(t *testing.T) {
	yesterday := truncateToDate(time.Now().UTC()).AddDate(0, 0, -1)
	provider := &fakeHistoricalProvider{name: "acme", bars: map[string][]model.Bar{}}
	store := &fakeStore{watermarks: map[string]time.Time{"BTC": yesterday}}
	loader := &fakeLoader{inst: provider}
	regs := &fakeRegStore{reg: model.ProviderRegistration{Preferences: map[string]any{}}}

	c := New(loader, regs, store, slog.Default(), 0)
	err := c.Run(context.Background(), "acme", "1d", []string{"BTC"})
	require.NoError(t, err)
	require.Empty(t, store.inserted)
}

func TestRunRejectsNonHistoricalProvider(t *testing.T) {
	loader := &fakeLoader{inst: &fakeLiveOnlyProvider{}}
	regs := &fakeRegStore{}
	store := &fakeStore{}

	c := New(loader, regs, store, slog.Default(), 0)
	err := c.Run(context.Background(), "acme", "1d", []string{"BTC"})
	require.Error(t, err)
}

type fakeLiveOnlyProvider struct{}

func (f *fakeLiveOnlyProvider) Name() string { return "acme" }
func (f *fakeLiveOnlyProvider) ProviderType() providercontract.ProviderType {
	return providercontract.ProviderTypeRealtime
}
func (f *fakeLiveOnlyProvider) GetAvailableSymbols(ctx context.Context) ([]model.SymbolInfo, error) {
	return nil, nil
}
func (f *fakeLiveOnlyProvider) Close(ctx context.Context) error { return nil }
