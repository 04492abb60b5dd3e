package registryhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/interservice"
	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/secrets"
)

type fakeStore struct {
	regs map[string]model.ProviderRegistration
}

func newFakeStore() *fakeStore { return &fakeStore{regs: map[string]model.ProviderRegistration{}} }

func key(className string, classType model.ClassType) string { return string(classType) + "/" + className }

func (f *fakeStore) GetRegistration(ctx context.Context, className string, classType model.ClassType) (model.ProviderRegistration, error) {
	reg, ok := f.regs[key(className, classType)]
	if !ok {
		return model.ProviderRegistration{}, database.ErrNotFound
	}
	return reg, nil
}
func (f *fakeStore) UpsertRegistration(ctx context.Context, reg model.ProviderRegistration) error {
	f.regs[key(reg.ClassName, reg.ClassType)] = reg
	return nil
}
func (f *fakeStore) UpdatePreferences(ctx context.Context, className string, classType model.ClassType, prefs map[string]any) error {
	reg, ok := f.regs[key(className, classType)]
	if !ok {
		return database.ErrNotFound
	}
	reg.Preferences = prefs
	f.regs[key(className, classType)] = reg
	return nil
}
func (f *fakeStore) UpdateSecrets(ctx context.Context, className string, classType model.ClassType, nonce [12]byte, ciphertext []byte) error {
	reg, ok := f.regs[key(className, classType)]
	if !ok {
		return database.ErrNotFound
	}
	reg.Nonce = nonce
	reg.Ciphertext = ciphertext
	f.regs[key(className, classType)] = reg
	return nil
}
func (f *fakeStore) DeleteRegistration(ctx context.Context, className string, classType model.ClassType) error {
	k := key(className, classType)
	if _, ok := f.regs[k]; !ok {
		return database.ErrNotFound
	}
	delete(f.regs, k)
	return nil
}
func (f *fakeStore) ListRegistrations(ctx context.Context, classType model.ClassType) ([]model.ProviderRegistration, error) {
	var out []model.ProviderRegistration
	for _, r := range f.regs {
		out = append(out, r)
	}
	return out, nil
}
func (f *fakeStore) ClassSummary(ctx context.Context) ([]database.ClassSummaryRow, error) { return nil, nil }
func (f *fakeStore) UpsertAsset(ctx context.Context, a model.Asset) (bool, error)          { return true, nil }
func (f *fakeStore) CreateAssetMapping(ctx context.Context, m model.AssetMapping) error    { return nil }
func (f *fakeStore) ListAssetMappings(ctx context.Context, commonSymbol string) ([]model.AssetMapping, error) {
	return nil, nil
}
func (f *fakeStore) UpdateAssetMapping(ctx context.Context, className string, classType model.ClassType, classSymbol, newCommonSymbol string, isActive bool) error {
	return nil
}
func (f *fakeStore) DeleteAssetMapping(ctx context.Context, className string, classType model.ClassType, classSymbol string) error {
	return nil
}
func (f *fakeStore) CountAssetIdentities(ctx context.Context) (int64, error)             { return 0, nil }
func (f *fakeStore) InsertAssetIdentity(ctx context.Context, identity model.AssetIdentity) error { return nil }

type fakeCollector struct {
	validateErr error
}

func (f *fakeCollector) Validate(ctx context.Context, vr interservice.ValidateRequest) error {
	return f.validateErr
}
func (f *fakeCollector) AvailableSymbols(ctx context.Context, className string) ([]model.SymbolInfo, error) {
	return nil, nil
}
func (f *fakeCollector) Unload(ctx context.Context, className string) error { return nil }

func newTestServer(t *testing.T) (*Server, *fakeStore, string) {
	t.Helper()
	dir := t.TempDir()
	master := testMasterContext(t)
	store := newFakeStore()
	s := NewServer(Config{
		Store:         store,
		Master:        master,
		Collector:     &fakeCollector{},
		AllowlistRoot: dir,
		IdentityDir:   filepath.Join(dir, "identities"),
	})
	return s, store, dir
}

func testMasterContext(t *testing.T) *secrets.MasterContext {
	t.Helper()
	path := filepath.Join(t.TempDir(), "master.key")
	require.NoError(t, os.WriteFile(path, []byte("test-master-secret-value"), 0o600))
	mc, err := secrets.LoadMasterContext(path)
	require.NoError(t, err)
	return mc
}

func TestUploadThenDelete(t *testing.T) {
	s, store, _ := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("class_name", "acme"))
	require.NoError(t, writer.WriteField("class_subtype", "Historical"))
	part, err := writer.CreateFormFile("file", "acme.py")
	require.NoError(t, err)
	_, err = part.Write([]byte("class Acme: pass\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/internal/provider/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, store.regs, key("acme", model.ClassTypeProvider))

	delReq := httptest.NewRequest(http.MethodDelete, "/internal/delete/provider/acme", nil)
	delRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusNoContent, delRec.Code)
	require.NotContains(t, store.regs, key("acme", model.ClassTypeProvider))
}

func TestUploadRejectsWrongExtension(t *testing.T) {
	s, _, _ := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("class_name", "acme"))
	part, err := writer.CreateFormFile("file", "acme.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("not python"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/internal/provider/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecretsPatchRejectsEmptyMap(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.regs[key("acme", model.ClassTypeProvider)] = model.ProviderRegistration{ClassName: "acme", ClassType: model.ClassTypeProvider}

	payload, _ := json.Marshal(map[string]any{"secrets": map[string]string{}})
	req := httptest.NewRequest(http.MethodPatch, "/api/registry/config/secrets?class_name=acme&class_type=provider", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
