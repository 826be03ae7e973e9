// Package wallet defines the signing identity that pays for and authorizes
// token lifecycle transactions.
package wallet

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/solana"
)

var (
	// ErrWalletNotConnected indicates there is no identity to sign with.
	ErrWalletNotConnected = errors.New("wallet not connected")
)

// Wallet signs transactions on behalf of a single identity and submits them
// to the network.
type Wallet interface {
	// PublicKey returns the connected identity, if any.
	PublicKey() (ed25519.PublicKey, bool)

	// SendTransaction signs txn as the connected identity, plus any signers
	// supplied through WithSigners, and submits it through sc. The returned
	// signature identifies the submitted transaction; confirmation is left to
	// the caller.
	//
	// Returns ErrWalletNotConnected if there is no connected identity.
	SendTransaction(ctx context.Context, txn *solana.Transaction, sc solana.Client, opts ...SendOption) (solana.Signature, error)
}

// Connector is implemented by wallets whose connection can change at runtime.
type Connector interface {
	Connect() error
	Disconnect()
}

// SendOptions are the resolved options of a SendTransaction call.
type SendOptions struct {
	Signers    []ed25519.PrivateKey
	Commitment solana.Commitment
}

type SendOption func(*SendOptions)

// WithSigners adds co-signers, such as a freshly generated mint keypair.
func WithSigners(signers ...ed25519.PrivateKey) SendOption {
	return func(o *SendOptions) {
		o.Signers = append(o.Signers, signers...)
	}
}

// WithCommitment sets the preflight commitment used when submitting.
func WithCommitment(commitment solana.Commitment) SendOption {
	return func(o *SendOptions) {
		o.Commitment = commitment
	}
}

// ApplyOptions resolves opts on top of the defaults.
func ApplyOptions(opts ...SendOption) SendOptions {
	o := SendOptions{
		Commitment: solana.CommitmentConfirmed,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
