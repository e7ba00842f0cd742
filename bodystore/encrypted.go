package bodystore

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
)

// Encrypted wraps a Store, encrypting every blob at rest with AES-256-GCM.
// The key is derived from a passphrase via scrypt; the nonce is generated
// fresh per write and stored alongside the ciphertext.
type Encrypted struct {
	inner Store
	gcm   cipher.AEAD
}

// NewEncrypted wraps inner, deriving an AES-256 key from passphrase.
func NewEncrypted(inner Store, passphrase string) (*Encrypted, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("bodystore: encryption passphrase cannot be empty")
	}
	salt := sha256.Sum256([]byte("httpflow-bodystore-salt-v1"))
	key, err := scrypt.Key([]byte(passphrase), salt[:], scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("bodystore: deriving key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bodystore: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("bodystore: creating GCM: %w", err)
	}
	return &Encrypted{inner: inner, gcm: gcm}, nil
}

func (e *Encrypted) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := e.inner.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("bodystore: reading encrypted blob %q: %w", key, err)
	}
	if len(data) < e.gcm.NonceSize() {
		return nil, fmt.Errorf("bodystore: encrypted blob %q too short", key)
	}
	nonce, ciphertext := data[:e.gcm.NonceSize()], data[e.gcm.NonceSize():]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("bodystore: decrypting blob %q: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(plaintext)), nil
}

func (e *Encrypted) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	w, err := e.inner.Create(ctx, key)
	if err != nil {
		return nil, err
	}
	return &encryptedWriter{inner: w, gcm: e.gcm}, nil
}

func (e *Encrypted) Delete(ctx context.Context, key string) error { return e.inner.Delete(ctx, key) }
func (e *Encrypted) Keys(ctx context.Context) ([]string, error)   { return e.inner.Keys(ctx) }
func (e *Encrypted) Size(ctx context.Context, key string) (int64, error) {
	return e.inner.Size(ctx, key)
}

type encryptedWriter struct {
	inner io.WriteCloser
	gcm   cipher.AEAD
	buf   bytes.Buffer
}

func (w *encryptedWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *encryptedWriter) Close() error {
	nonce := make([]byte, w.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		_ = w.inner.Close()
		return fmt.Errorf("bodystore: generating nonce: %w", err)
	}
	ciphertext := w.gcm.Seal(nonce, nonce, w.buf.Bytes(), nil)
	if _, err := w.inner.Write(ciphertext); err != nil {
		_ = w.inner.Close()
		return fmt.Errorf("bodystore: writing ciphertext: %w", err)
	}
	return w.inner.Close()
}

var _ Store = (*Encrypted)(nil)
