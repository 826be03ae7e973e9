// Package local provides a keypair backed wallet.Wallet.
package local

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/wallet"
)

// Wallet holds a keypair that can be connected and disconnected at runtime.
// A disconnected wallet keeps the keypair so that Connect can restore it.
type Wallet struct {
	log *logrus.Entry

	mu        sync.RWMutex
	key       ed25519.PrivateKey
	connected bool
}

var (
	_ wallet.Wallet    = (*Wallet)(nil)
	_ wallet.Connector = (*Wallet)(nil)
)

// New returns a connected wallet for key.
func New(key ed25519.PrivateKey) *Wallet {
	return &Wallet{
		log:       logrus.StandardLogger().WithField("type", "wallet/local"),
		key:       key,
		connected: len(key) == ed25519.PrivateKeySize,
	}
}

// Load returns a connected wallet for the Solana CLI keypair file at path.
func Load(path string) (*Wallet, error) {
	key, err := solana.LoadKeypair(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load keypair")
	}
	return New(key), nil
}

// Connect implements wallet.Connector.Connect
func (w *Wallet) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.key) != ed25519.PrivateKeySize {
		return errors.New("no keypair configured")
	}

	w.connected = true
	w.log.WithField("wallet", solana.FormatAddress(public(w.key))).Info("wallet connected")
	return nil
}

// Disconnect implements wallet.Connector.Disconnect
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.connected {
		w.log.WithField("wallet", solana.FormatAddress(public(w.key))).Info("wallet disconnected")
	}
	w.connected = false
}

// PublicKey implements wallet.Wallet.PublicKey
func (w *Wallet) PublicKey() (ed25519.PublicKey, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.connected {
		return nil, false
	}
	return public(w.key), true
}

// SendTransaction implements wallet.Wallet.SendTransaction
func (w *Wallet) SendTransaction(ctx context.Context, txn *solana.Transaction, sc solana.Client, opts ...wallet.SendOption) (solana.Signature, error) {
	w.mu.RLock()
	key, connected := w.key, w.connected
	w.mu.RUnlock()

	if !connected {
		return solana.Signature{}, wallet.ErrWalletNotConnected
	}

	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	options := wallet.ApplyOptions(opts...)

	signers := append([]ed25519.PrivateKey{key}, options.Signers...)
	if err := txn.Sign(signers...); err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to sign transaction")
	}
	if !txn.IsSigned() {
		return solana.Signature{}, errors.New("transaction is missing required signatures")
	}

	sig, err := sc.SubmitTransaction(*txn, options.Commitment)
	if err != nil {
		return sig, errors.Wrap(err, "failed to submit transaction")
	}
	return sig, nil
}

func public(key ed25519.PrivateKey) ed25519.PublicKey {
	return key.Public().(ed25519.PublicKey)
}
