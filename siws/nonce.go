package siws

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
)

// NonceSize is the number of random bytes behind every nonce.
const NonceSize = 32

// GenerateNonce returns a base58 nonce built from NonceSize bytes of crypto/rand.
func GenerateNonce() (string, error) {
	return NewNonce(rand.Reader)
}

// NewNonce reads NonceSize bytes from r and encodes them in base58.
// r must be a cryptographically secure source outside of tests.
func NewNonce(r io.Reader) (string, error) {
	b := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read nonce entropy: %w", err)
	}
	return base58.Encode(b), nil
}
