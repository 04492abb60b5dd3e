package providerloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
	"github.com/quasarhq/quasar/internal/secrets"
)

// ErrPathConfinement is returned when a registration's file_path does not
// lie under the configured allow-list root.
var ErrPathConfinement = errors.New("providerloader: path escapes allowlist root")

// ErrClassCardinality is returned when zero or more than one provider
// class is registered for a requested file.
var ErrClassCardinality = errors.New("providerloader: expected exactly one registered class")

// RegistrationStore is the subset of the registry's persistence the
// loader needs: looking up a code_registry row by class name.
type RegistrationStore interface {
	GetRegistration(ctx context.Context, className string, classType model.ClassType) (model.ProviderRegistration, error)
}

// Loader loads provider instances by class name, verifying the on-disk
// file hash against the registration before instantiating, and caching
// instances so repeated loads within a process are idempotent (§4.B).
type Loader struct {
	store         RegistrationStore
	master        *secrets.MasterContext
	allowlistRoot string
	logger        *slog.Logger

	mu        sync.Mutex
	instances map[string]providercontract.Provider
}

// New builds a Loader. allowlistRoot must be an absolute, cleaned
// directory path; every loadable file must lie under it.
func New(store RegistrationStore, master *secrets.MasterContext, allowlistRoot string, logger *slog.Logger) *Loader {
	return &Loader{
		store:         store,
		master:        master,
		allowlistRoot: strings.TrimRight(allowlistRoot, "/"),
		logger:        logger,
		instances:     map[string]providercontract.Provider{},
	}
}

// Load returns the cached instance for className if one exists, or loads
// and instantiates it. Concurrent calls are serialized by a mutex,
// matching the single-writer discipline §5 requires of the provider
// cache.
func (l *Loader) Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if inst, ok := l.instances[className]; ok {
		return inst, nil
	}

	reg, err := l.store.GetRegistration(ctx, className, classType)
	if err != nil {
		return nil, fmt.Errorf("providerloader: looking up %s: %w", className, err)
	}

	if !l.underAllowlist(reg.FilePath) {
		return nil, fmt.Errorf("%w: %s", ErrPathConfinement, reg.FilePath)
	}

	actualHash, err := secrets.HashFile(reg.FilePath)
	if err != nil {
		return nil, err
	}
	if actualHash != reg.FileHash {
		return nil, fmt.Errorf("%w: %s: file hash does not match registration", secrets.ErrIntegrity, className)
	}

	manifest, err := lookupManifest(reg.FilePath, className, classType)
	if err != nil {
		return nil, err
	}

	creds := func(ctx context.Context) (map[string]string, error) {
		return l.decryptCredentials(reg)
	}

	inst, err := manifest.New(reg.Preferences, creds)
	if err != nil {
		return nil, fmt.Errorf("providerloader: constructing %s: %w", className, err)
	}
	if inst.Name() != className {
		inst.Close(ctx) //nolint:errcheck
		return nil, fmt.Errorf("providerloader: %s: instance reports name %q, want %q", className, inst.Name(), className)
	}

	l.instances[className] = inst
	l.logger.Info("provider loaded", "class_name", className, "class_type", classType)
	return inst, nil
}

// ValidateConstruct attempts to instantiate className from filePath
// without touching the registration store or the instance cache: it
// checks path confinement, resolves the registered constructor, builds
// an instance with the given preferences/secrets, and immediately
// closes it. It is the Collector-side half of the upload flow's
// validate step (§4.H upload step 5), called before a registration row
// exists.
func (l *Loader) ValidateConstruct(ctx context.Context, filePath, className string, classType model.ClassType, preferences map[string]any, secretValues map[string]string) error {
	if !l.underAllowlist(filePath) {
		return fmt.Errorf("%w: %s", ErrPathConfinement, filePath)
	}

	manifest, err := lookupManifest(filePath, className, classType)
	if err != nil {
		return err
	}

	creds := func(context.Context) (map[string]string, error) { return secretValues, nil }

	inst, err := manifest.New(preferences, creds)
	if err != nil {
		return fmt.Errorf("providerloader: constructing %s: %w", className, err)
	}
	defer inst.Close(ctx) //nolint:errcheck

	if inst.Name() != className {
		return fmt.Errorf("providerloader: %s: instance reports name %q, want %q", className, inst.Name(), className)
	}
	return nil
}

// Unload disposes of a cached instance (closing sockets/sessions) and
// removes it from the cache.
func (l *Loader) Unload(ctx context.Context, className string) error {
	l.mu.Lock()
	inst, ok := l.instances[className]
	if ok {
		delete(l.instances, className)
	}
	l.mu.Unlock()

	if !ok {
		return nil
	}
	l.logger.Info("provider unloaded", "class_name", className)
	return inst.Close(ctx)
}

// IsLoaded reports whether className currently has a cached instance.
func (l *Loader) IsLoaded(className string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.instances[className]
	return ok
}

func (l *Loader) decryptCredentials(reg model.ProviderRegistration) (map[string]string, error) {
	if len(reg.Ciphertext) == 0 {
		return map[string]string{}, nil
	}
	plaintext, err := l.master.Decrypt(reg.FileHash, reg.Nonce, reg.Ciphertext)
	if err != nil {
		return nil, err
	}
	return decodeSecretsJSON(plaintext)
}

func (l *Loader) underAllowlist(path string) bool {
	if l.allowlistRoot == "" {
		return false
	}
	cleaned := strings.TrimRight(path, "/")
	return cleaned == l.allowlistRoot || strings.HasPrefix(cleaned, l.allowlistRoot+"/")
}
