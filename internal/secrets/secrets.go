// Package secrets implements the integrity-bound credential envelope: a
// process-global master secret, an HKDF-SHA256 key derivation keyed on a
// provider file's hash, and AES-256-GCM encrypt/decrypt of the
// per-provider credential payload.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// ErrIntegrity is returned when a credential envelope fails to decrypt
// under the hash it is supposedly bound to: either the code file was
// modified, the ciphertext was tampered with, or the master secret does
// not match the one used at encryption time.
var ErrIntegrity = errors.New("secrets: integrity check failed")

const (
	keyLength   = 32 // AES-256
	nonceLength = 12 // 96-bit GCM nonce
)

// MasterContext holds the process-global master secret, read once at
// startup and never persisted or logged. It is safe for concurrent use
// (read-only after construction).
type MasterContext struct {
	secret []byte
}

// LoadMasterContext reads the master secret from path, trimming trailing
// whitespace. A missing or empty file is fatal per §6/§7.1.
func LoadMasterContext(path string) (*MasterContext, error) {
	if path == "" {
		return nil, fmt.Errorf("secrets: master secret path not configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secrets: reading master secret file %s: %w", path, err)
	}
	trimmed := bytes.TrimRight(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secrets: master secret file %s is empty", path)
	}
	return &MasterContext{secret: trimmed}, nil
}

// Derive returns an AEAD cipher whose key is HKDF-SHA256(master,
// salt=nil, info=hash, length=32). Deterministic for a given hash.
func (m *MasterContext) Derive(hash [32]byte) (cipher.AEAD, error) {
	reader := hkdf.New(sha256.New, m.secret, nil, hash[:])
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("secrets: deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: building AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: building GCM mode: %w", err)
	}
	return gcm, nil
}

// Encrypt produces a fresh (nonce, ciphertext) pair for plaintext, bound
// to hash. No associated data is used.
func (m *MasterContext) Encrypt(hash [32]byte, plaintext []byte) (nonce [12]byte, ciphertext []byte, err error) {
	aead, err := m.Derive(hash)
	if err != nil {
		return nonce, nil, err
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("secrets: generating nonce: %w", err)
	}
	ciphertext = aead.Seal(nil, nonce[:], plaintext, nil)
	return nonce, ciphertext, nil
}

// Decrypt recovers the plaintext bound to hash. It returns ErrIntegrity
// if the GCM tag does not validate.
func (m *MasterContext) Decrypt(hash [32]byte, nonce [12]byte, ciphertext []byte) ([]byte, error) {
	aead, err := m.Derive(hash)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return plaintext, nil
}

// VerifyFile computes the SHA-256 of the file at path, streaming in
// chunks no larger than 8 KiB, and reports whether Decrypt succeeds under
// that hash. This is the contract §4.A exposes to the provider loader: if
// it returns false, the code has been modified since registration and
// must not be instantiated.
func (m *MasterContext) VerifyFile(path string, nonce [12]byte, ciphertext []byte) (hash [32]byte, ok bool, err error) {
	hash, err = HashFile(path)
	if err != nil {
		return hash, false, err
	}
	_, decErr := m.Decrypt(hash, nonce, ciphertext)
	if decErr != nil {
		if errors.Is(decErr, ErrIntegrity) {
			return hash, false, nil
		}
		return hash, false, decErr
	}
	return hash, true, nil
}

const hashChunkSize = 8 * 1024

// HashFile computes the SHA-256 of the file at path, reading in chunks of
// at most 8 KiB as required by §4.B step 3.
func HashFile(path string) ([32]byte, error) {
	var out [32]byte
	f, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("secrets: opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return out, fmt.Errorf("secrets: hashing %s: %w", path, err)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}
