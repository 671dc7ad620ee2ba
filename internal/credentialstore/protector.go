package credentialstore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/florianilch/sonarbind/internal/fsutil"
)

const masterKeySize = 32

// Protector encrypts and decrypts data with key material scoped to the current user.
type Protector interface {
	Protect(plaintext []byte) ([]byte, error)
	Unprotect(ciphertext []byte) ([]byte, error)
}

// KeyFileProtector encrypts with XChaCha20-Poly1305 using a key derived from a random master
// key kept in a 0600 file. The derivation is bound to scope (typically the OS user name),
// so ciphertext produced for one user does not decrypt for another.
// Key material is loaded lazily on first use; only a successfully derived key is cached.
type KeyFileProtector struct {
	files   fsutil.FileSystem
	keyFile string
	scope   string

	mu  sync.Mutex
	key []byte
}

// Compile-time check to ensure KeyFileProtector implements Protector
var _ Protector = (*KeyFileProtector)(nil)

// NewKeyFileProtector creates a KeyFileProtector. The key file is created on first use if missing.
func NewKeyFileProtector(files fsutil.FileSystem, keyFile, scope string) (*KeyFileProtector, error) {
	if files == nil {
		return nil, fmt.Errorf("missing file system")
	}
	if keyFile == "" {
		return nil, fmt.Errorf("key file path cannot be empty")
	}

	return &KeyFileProtector{
		files:   files,
		keyFile: keyFile,
		scope:   scope,
	}, nil
}

func (p *KeyFileProtector) Protect(plaintext []byte) ([]byte, error) {
	aead, err := p.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends to nonce, producing: nonce || ciphertext || tag
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (p *KeyFileProtector) Unprotect(ciphertext []byte) ([]byte, error) {
	aead, err := p.aead()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func (p *KeyFileProtector) aead() (cipher.AEAD, error) {
	key, err := p.loadKey()
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

// loadKey returns the cached key, deriving it on first use. Failures are retried on the next call.
func (p *KeyFileProtector) loadKey() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return p.key, nil
	}
	key, err := p.deriveKey()
	if err != nil {
		return nil, err
	}
	p.key = key
	return key, nil
}

// deriveKey loads or creates the master key and derives the scoped encryption key.
func (p *KeyFileProtector) deriveKey() ([]byte, error) {
	master, err := p.files.ReadFile(p.keyFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		master = make([]byte, masterKeySize)
		if _, err := rand.Read(master); err != nil {
			return nil, fmt.Errorf("generate master key: %w", err)
		}
		if err := p.files.WriteFile(p.keyFile, master); err != nil {
			return nil, fmt.Errorf("write key file %s: %w", p.keyFile, err)
		}
	case err != nil:
		return nil, fmt.Errorf("read key file %s: %w", p.keyFile, err)
	case len(master) != masterKeySize:
		return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", p.keyFile, masterKeySize, len(master))
	}
	defer clear(master)

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, master, nil, []byte("sonarbind credentials/"+p.scope))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
