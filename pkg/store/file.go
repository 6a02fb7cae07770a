package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/skyward/dronelink/pkg/crypto"
)

// File is a Store backed by one file encrypted at rest with AES-256-GCM.
// The whole value map is sealed as a single blob; a fresh nonce is written
// on every save.
type File struct {
	path string
	aead *crypto.AEAD

	mu     sync.Mutex
	values map[string]string
}

// OpenFile opens (or creates) an encrypted file store. The key must be 32
// bytes; it typically comes from the platform keychain or a local secret.
func OpenFile(path string, key []byte) (*File, error) {
	aead, err := crypto.NewAEAD(key)
	if err != nil {
		return nil, err
	}

	f := &File{
		path:   path,
		aead:   aead,
		values: make(map[string]string),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// Get implements Store.
func (f *File) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Store.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.save()
}

// Delete implements Store.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.save()
}

func (f *File) load() error {
	blob, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: read %s: %w", f.path, err)
	}
	if len(blob) < crypto.NonceSize {
		return fmt.Errorf("store: %s: truncated blob", f.path)
	}

	plaintext, err := f.aead.Open(blob[:crypto.NonceSize], blob[crypto.NonceSize:])
	if err != nil {
		return fmt.Errorf("store: %s: %w", f.path, err)
	}
	if err := json.Unmarshal(plaintext, &f.values); err != nil {
		return fmt.Errorf("store: %s: %w", f.path, err)
	}
	return nil
}

func (f *File) save() error {
	plaintext, err := json.Marshal(f.values)
	if err != nil {
		return err
	}
	nonce, ciphertext, err := f.aead.Seal(plaintext)
	if err != nil {
		return err
	}

	blob := append(nonce, ciphertext...)

	// Write-then-rename so a crash never leaves a half-written blob.
	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

// Verify File implements Store.
var _ Store = (*File)(nil)
