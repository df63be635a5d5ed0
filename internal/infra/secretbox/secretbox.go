// Package secretbox seals credential tokens before they are written to Supabase.
//
// Tokens are encrypted with XChaCha20-Poly1305 under a key derived from
// CREDENTIALS_MASTER_KEY with HKDF-SHA256. The credential id is bound as
// additional data, so a sealed token copied to another row fails to open.
package secretbox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	prefix  = "v1."
	hkdfCtx = "conecta-contaazul/tenant-credentials"
)

// ErrMalformed is returned for input that is not a sealed value.
var ErrMalformed = errors.New("secretbox: malformed sealed value")

// Box seals and opens secrets. Safe for concurrent use.
type Box struct {
	aead cipher.AEAD
}

// New derives the sealing key from masterKey. A base64 value decoding to
// 32 bytes is used as input key material directly; anything else is used as is.
func New(masterKey string) (*Box, error) {
	masterKey = strings.TrimSpace(masterKey)
	if masterKey == "" {
		return nil, errors.New("secretbox: master key is empty")
	}

	ikm := []byte(masterKey)
	if b, err := base64.StdEncoding.DecodeString(masterKey); err == nil && len(b) == 32 {
		ikm = b
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte(hkdfCtx)), key); err != nil {
		return nil, fmt.Errorf("secretbox: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: init cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext bound to aad. Empty plaintext seals to "".
func (b *Box) Seal(plaintext, aad string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plaintext)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce: %w", err)
	}
	out := b.aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad))
	return prefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal with the same aad.
func (b *Box) Open(sealed, aad string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !strings.HasPrefix(sealed, prefix) {
		return "", ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil || len(raw) < b.aead.NonceSize()+b.aead.Overhead() {
		return "", ErrMalformed
	}
	nonce, ct := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	pt, err := b.aead.Open(nil, nonce, ct, []byte(aad))
	if err != nil {
		return "", fmt.Errorf("secretbox: open: %w", err)
	}
	return string(pt), nil
}
