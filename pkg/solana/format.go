package solana

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// FormatAddress shortens an address for display, keeping the first and last
// four base58 characters (ie: "8vU3...5KwV").
func FormatAddress(pub ed25519.PublicKey) string {
	if len(pub) == 0 {
		return ""
	}

	encoded := base58.Encode(pub)
	if len(encoded) <= 8 {
		return encoded
	}
	return encoded[:4] + "..." + encoded[len(encoded)-4:]
}

// PublicKeyFromBase58 decodes a base58 address and checks its length.
func PublicKeyFromBase58(v string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(v)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base58 address")
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid address length: %d", len(decoded))
	}
	return decoded, nil
}

// SignatureFromBase58 decodes a base58 transaction signature.
func SignatureFromBase58(v string) (Signature, error) {
	var sig Signature

	decoded, err := base58.Decode(v)
	if err != nil {
		return sig, errors.Wrap(err, "invalid base58 signature")
	}
	if len(decoded) != len(sig) {
		return sig, errors.Errorf("invalid signature length: %d", len(decoded))
	}

	copy(sig[:], decoded)
	return sig, nil
}
