// Package providerloader implements hash-verified dynamic loading of
// provider code from an allow-listed directory, binding each
// instantiated provider to its verified, decrypted credentials.
//
// Go has no runtime equivalent of importing an arbitrary module by path
// at registration time, so loading is an AOT constructor table instead: a
// provider's build artifact registers itself under a file path and class
// name via RegisterConstructor (typically from an init() func in its own
// package), and Load resolves a class_name to that constructor only after
// verifying the on-disk file's hash and path confinement.
package providerloader

import (
	"fmt"
	"sync"

	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
)

// Constructor builds a Provider instance from its stored preferences and
// a lazy credential accessor that decrypts on demand under the verified
// file hash.
type Constructor func(prefs map[string]any, creds providercontract.CredentialAccessor) (providercontract.Provider, error)

// Manifest is what a provider's build artifact registers at init time:
// which file it claims to implement, under which class name, and how to
// construct it.
type Manifest struct {
	FilePath  string
	ClassName string
	ClassType model.ClassType
	New       Constructor
}

var (
	registryMu sync.Mutex
	byFilePath = map[string][]Manifest{}
	byName     = map[string]Manifest{}
)

// RegisterConstructor records a provider build artifact's manifest. It is
// meant to be called from package init() in each concrete provider
// package, the AOT analogue of "one class per file".
func RegisterConstructor(m Manifest) {
	registryMu.Lock()
	defer registryMu.Unlock()

	byFilePath[m.FilePath] = append(byFilePath[m.FilePath], m)
	byName[classKey(m.ClassName, m.ClassType)] = m
}

// ResetForTest clears all registered manifests. Test-only helper.
func ResetForTest() {
	registryMu.Lock()
	defer registryMu.Unlock()
	byFilePath = map[string][]Manifest{}
	byName = map[string]Manifest{}
}

func classKey(name string, classType model.ClassType) string {
	return string(classType) + "/" + name
}

// lookupManifest enforces the single-class invariant (§8): a file with
// zero or more than one registered class fails closed.
func lookupManifest(filePath, className string, classType model.ClassType) (Manifest, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	m, ok := byName[classKey(className, classType)]
	if !ok {
		return Manifest{}, fmt.Errorf("%w: no constructor registered for %s", ErrClassCardinality, className)
	}
	if m.FilePath != filePath {
		return Manifest{}, fmt.Errorf("%w: registered constructor for %s claims file %s, registry expects %s", ErrClassCardinality, className, m.FilePath, filePath)
	}
	siblings := byFilePath[filePath]
	if len(siblings) != 1 {
		return Manifest{}, fmt.Errorf("%w: file %s has %d registered classes, want exactly 1", ErrClassCardinality, filePath, len(siblings))
	}
	if siblings[0].ClassName != className {
		return Manifest{}, fmt.Errorf("%w: file %s's registered class is %s, not %s", ErrClassCardinality, filePath, siblings[0].ClassName, className)
	}
	return m, nil
}
