package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// ParseKeypair decodes a keypair in the Solana CLI format: a JSON array of the
// 64 bytes of an ed25519 private key.
func ParseKeypair(b []byte) (ed25519.PrivateKey, error) {
	var raw []int
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "keypair is not a json byte array")
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid keypair length: %d", len(raw))
	}

	key := make([]byte, ed25519.PrivateKeySize)
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("invalid byte at index %d: %d", i, v)
		}
		key[i] = byte(v)
	}

	// The trailing half must be the public key derived from the seed.
	priv := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return nil, errors.New("keypair public key does not match its seed")
	}

	return priv, nil
}

// LoadKeypair reads a Solana CLI keypair file.
func LoadKeypair(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read keypair file %s", path)
	}

	key, err := ParseKeypair(b)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse keypair file %s", path)
	}
	return key, nil
}

// MarshalKeypair encodes a private key in the Solana CLI keypair format.
func MarshalKeypair(key ed25519.PrivateKey) ([]byte, error) {
	raw := make([]int, len(key))
	for i, b := range key {
		raw[i] = int(b)
	}
	return json.Marshal(raw)
}
