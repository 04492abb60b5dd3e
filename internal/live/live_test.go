package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
)

type fakeSession struct {
	messages   [][]byte
	idx        int32
	subscribed bool
	closed     bool
}

func (s *fakeSession) Subscribe(ctx context.Context, interval string, symbols []string) error {
	s.subscribed = true
	return nil
}

func (s *fakeSession) Unsubscribe(ctx context.Context, symbols []string) error {
	s.subscribed = false
	return nil
}

func (s *fakeSession) ReadMessage(ctx context.Context) ([]byte, error) {
	i := atomic.AddInt32(&s.idx, 1) - 1
	if int(i) >= len(s.messages) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.messages[i], nil
}

func (s *fakeSession) ParseMessage(msg []byte) ([]model.Bar, error) {
	var wire struct {
		Sym string    `json:"sym"`
		TS  time.Time `json:"ts"`
		C   float64   `json:"c"`
	}
	if err := json.Unmarshal(msg, &wire); err != nil {
		return nil, err
	}
	return []model.Bar{{Sym: wire.Sym, TS: wire.TS, C: wire.C}}, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeLiveProvider struct {
	name    string
	session *fakeSession
}

func (f *fakeLiveProvider) Name() string { return f.name }
func (f *fakeLiveProvider) ProviderType() providercontract.ProviderType {
	return providercontract.ProviderTypeRealtime
}
func (f *fakeLiveProvider) GetAvailableSymbols(ctx context.Context) ([]model.SymbolInfo, error) {
	return nil, nil
}
func (f *fakeLiveProvider) Close(ctx context.Context) error { return nil }
func (f *fakeLiveProvider) Connect(ctx context.Context) (providercontract.LiveSession, error) {
	return f.session, nil
}

type fakeLoader struct{ inst providercontract.Provider }

func (f *fakeLoader) Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error) {
	return f.inst, nil
}

type fakeRegStore struct{ reg model.ProviderRegistration }

func (f *fakeRegStore) GetRegistration(ctx context.Context, className string, classType model.ClassType) (model.ProviderRegistration, error) {
	return f.reg, nil
}

type fakeStore struct {
	table    string
	inserted []model.Bar
}

func (f *fakeStore) InsertBars(ctx context.Context, table string, bars []model.Bar) (int64, error) {
	f.table = table
	f.inserted = append(f.inserted, bars...)
	return int64(len(bars)), nil
}

func TestRunCollectsLatestBarPerSymbolBeforeCutoff(t *testing.T) {
	barEnd, err := NextIntervalBoundary("1m", time.Now())
	require.NoError(t, err)

	inSession := func(sym string, ts time.Time, c float64) []byte {
		b, _ := json.Marshal(map[string]any{"sym": sym, "ts": ts, "c": c})
		return b
	}

	session := &fakeSession{messages: [][]byte{
		inSession("BTC", barEnd.Add(-30*time.Second), 100),
		inSession("BTC", barEnd.Add(-10*time.Second), 101), // overwrites
		inSession("ETH", barEnd.Add(time.Second), 999),     // belongs to next interval, discarded
	}}
	provider := &fakeLiveProvider{name: "acme", session: session}
	loader := &fakeLoader{inst: provider}
	regs := &fakeRegStore{reg: model.ProviderRegistration{Preferences: map[string]any{"post_close_seconds": 0}}}
	store := &fakeStore{}

	c := New(loader, regs, store, slog.Default())
	err = c.Run(context.Background(), "acme", "1m", []string{"BTC", "ETH"}, 5*time.Second)
	require.NoError(t, err)

	require.Equal(t, database.LiveBarsTable, store.table)
	require.Len(t, store.inserted, 1)
	require.Equal(t, "BTC", store.inserted[0].Sym)
	require.Equal(t, 101.0, store.inserted[0].C)
	require.False(t, session.subscribed)
	require.True(t, session.closed)
}

func TestRunRejectsNonLiveProvider(t *testing.T) {
	loader := &fakeLoader{inst: &fakeHistoricalOnlyProvider{}}
	regs := &fakeRegStore{}
	store := &fakeStore{}

	c := New(loader, regs, store, slog.Default())
	err := c.Run(context.Background(), "acme", "1m", []string{"BTC"}, time.Second)
	require.Error(t, err)
}

type fakeHistoricalOnlyProvider struct{}

func (f *fakeHistoricalOnlyProvider) Name() string { return "acme" }
func (f *fakeHistoricalOnlyProvider) ProviderType() providercontract.ProviderType {
	return providercontract.ProviderTypeHistorical
}
func (f *fakeHistoricalOnlyProvider) GetAvailableSymbols(ctx context.Context) ([]model.SymbolInfo, error) {
	return nil, nil
}
func (f *fakeHistoricalOnlyProvider) Close(ctx context.Context) error { return nil }
