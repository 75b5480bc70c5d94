// Package secrets seals provider API keys before they are written to disk.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrOpen = errors.New("secrets: cannot open sealed value")

type Sealer struct {
	key [32]byte
}

func NewSealer(key [32]byte) *Sealer {
	return &Sealer{key: key}
}

// Seal encrypts plain and returns base64(nonce || box)
func (s *Sealer) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrOpen
	}
	return string(plain), nil
}

// LoadOrCreateKey decodes hexKey, or reads the key file at path, or
// creates that file with a fresh random key.
func LoadOrCreateKey(hexKey, path string) ([32]byte, error) {
	var key [32]byte
	if hexKey != "" {
		return decodeKey(hexKey)
	}

	if data, err := os.ReadFile(path); err == nil {
		return decodeKey(strings.TrimSpace(string(data)))
	} else if !os.IsNotExist(err) {
		return key, fmt.Errorf("failed to read key file: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return key, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key[:])), 0600); err != nil {
		return key, fmt.Errorf("failed to write key file: %w", err)
	}
	return key, nil
}

func decodeKey(s string) ([32]byte, error) {
	var key [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(key) {
		return key, fmt.Errorf("secret key must be %d hex-encoded bytes", len(key))
	}
	copy(key[:], b)
	return key, nil
}

// Mask shows only the last four characters of a key
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return "…" + key[len(key)-4:]
}
