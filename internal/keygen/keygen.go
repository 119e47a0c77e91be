package keygen

import (
	"crypto/rand"
	"encoding/base64"
)

// keyBytes gives 256 bits of entropy per key, well past the point where
// guessing or enumeration is practical.
const keyBytes = 32

// Generator produces invitation keys. The store retries generation when an
// insert hits the (near-zero-probability) key collision.
type Generator interface {
	Generate() (string, error)
}

type randomGenerator struct{}

// New returns a Generator backed by crypto/rand.
func New() Generator {
	return randomGenerator{}
}

// Generate returns a url-safe random key. Pure generation, no side effects.
func (randomGenerator) Generate() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
