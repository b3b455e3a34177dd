package crypto

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KDFParams holds Argon2id parameters.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultKDFParams returns the Argon2id parameters used for message keys.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:    3,
		Memory:  65536, // 64MB
		Threads: 4,
	}
}

const keySize = chacha20poly1305.KeySize

var ErrEmptyPassphrase = errors.New("crypto: passphrase is required")

// Box encrypts message bodies with XChaCha20-Poly1305 under a key derived
// once from a passphrase. Ciphertext is base64(nonce || sealed).
type Box struct {
	key []byte
}

// NewBox derives the message key from passphrase and salt.
func NewBox(passphrase, salt string, params KDFParams) (*Box, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if salt == "" {
		salt = "parley"
	}
	return newBoxFromKey(argon2.IDKey([]byte(passphrase), []byte(salt), params.Time, params.Memory, params.Threads, keySize))
}

func newBoxFromKey(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", keySize, len(key))
	}
	cp := make([]byte, keySize)
	copy(cp, key)
	return &Box{key: cp}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (b *Box) Encrypt(_ context.Context, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (b *Box) Decrypt(_ context.Context, ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
