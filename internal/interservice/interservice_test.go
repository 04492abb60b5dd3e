package interservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
)

type fakeLoader struct {
	validateErr error
	symbols     []model.SymbolInfo
	unloaded    []string
}

func (f *fakeLoader) Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error) {
	return &fakeProvider{name: className, symbols: f.symbols}, nil
}
func (f *fakeLoader) Unload(ctx context.Context, className string) error {
	f.unloaded = append(f.unloaded, className)
	return nil
}
func (f *fakeLoader) ValidateConstruct(ctx context.Context, filePath, className string, classType model.ClassType, preferences map[string]any, secretValues map[string]string) error {
	return f.validateErr
}

type fakeProvider struct {
	name    string
	symbols []model.SymbolInfo
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) ProviderType() providercontract.ProviderType {
	return providercontract.ProviderTypeHistorical
}
func (p *fakeProvider) GetAvailableSymbols(ctx context.Context) ([]model.SymbolInfo, error) {
	return p.symbols, nil
}
func (p *fakeProvider) Close(ctx context.Context) error { return nil }

func newTestPair(t *testing.T, loader *fakeLoader) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	NewServer(loader, slog.Default()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), srv
}

func TestValidateRoundTrip(t *testing.T) {
	loader := &fakeLoader{}
	client, _ := newTestPair(t, loader)

	err := client.Validate(context.Background(), ValidateRequest{
		ClassName: "acme",
		ClassType: model.ClassTypeProvider,
		FilePath:  "/allow/acme.py",
	})
	require.NoError(t, err)
}

func TestValidateRejection(t *testing.T) {
	loader := &fakeLoader{validateErr: fmt.Errorf("class not found in file")}
	client, _ := newTestPair(t, loader)

	err := client.Validate(context.Background(), ValidateRequest{
		ClassName: "acme",
		ClassType: model.ClassTypeProvider,
		FilePath:  "/allow/acme.py",
	})
	require.Error(t, err)

	var verr *ValidateError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, http.StatusUnprocessableEntity, verr.StatusCode)
}

func TestAvailableSymbolsRoundTrip(t *testing.T) {
	loader := &fakeLoader{symbols: []model.SymbolInfo{{Symbol: "BTC"}}}
	client, _ := newTestPair(t, loader)

	symbols, err := client.AvailableSymbols(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	require.Equal(t, "BTC", symbols[0].Symbol)
}

func TestUnloadRoundTrip(t *testing.T) {
	loader := &fakeLoader{}
	client, _ := newTestPair(t, loader)

	require.NoError(t, client.Unload(context.Background(), "acme"))
	require.Equal(t, []string{"acme"}, loader.unloaded)
}
