// Package crypto encrypts note content at rest with AES-256-GCM.
//
// Ciphertext and IV are stored separately, both hex encoded. GCM authenticates the
// ciphertext, so a wrong key or tampered data fails with ErrDecryptionFailed instead
// of returning garbage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const KeySize = 32

var (
	ErrInvalidKey       = errors.New("encryption key must be 32 bytes")
	ErrMalformedInput   = errors.New("ciphertext or iv is malformed")
	ErrDecryptionFailed = errors.New("decryption failed: wrong key or corrupted data")
)

// DeriveKey decodes a 64 character hex string into an AES-256 key
func DeriveKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under key with a fresh random IV.
func Encrypt(plaintext string, key []byte) (ciphertext, iv string, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("nonce generation: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), hex.EncodeToString(nonce), nil
}

// Decrypt opens a ciphertext produced by Encrypt
func Decrypt(ciphertext, iv string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	sealed, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrMalformedInput, err)
	}
	nonce, err := hex.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrMalformedInput, err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: iv must be %d bytes", ErrMalformedInput, gcm.NonceSize())
	}
	if len(sealed) < gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrMalformedInput)
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
