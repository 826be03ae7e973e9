package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/solana"
)

var (
	// ErrAccountNotFound indicates there is no account for the given address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidTokenAccount indicates that a Solana account exists at the
	// given address, but it is either not initialized, or not configured correctly.
	ErrInvalidTokenAccount = errors.New("invalid token account")
	// ErrInvalidMint indicates that a Solana account exists at the given
	// address, but it is not an initialized mint.
	ErrInvalidMint = errors.New("invalid mint")
)

// Client provides utilities for accessing token program state.
type Client struct {
	sc solana.Client
}

// NewClient creates a new Client.
func NewClient(sc solana.Client) *Client {
	return &Client{
		sc: sc,
	}
}

// GetAccount returns the token account at accountID.
//
// If the account is not initialized, or belongs to a different mint, then
// ErrInvalidTokenAccount is returned.
func (c *Client) GetAccount(accountID, mint ed25519.PublicKey, commitment solana.Commitment) (*Account, error) {
	data, err := c.getProgramAccount(accountID, commitment)
	if err != nil {
		return nil, err
	}

	var account Account
	if !account.Unmarshal(data) || account.State == AccountStateUninitialized {
		return nil, ErrInvalidTokenAccount
	}

	if !bytes.Equal(mint, account.Mint) {
		return nil, ErrInvalidTokenAccount
	}

	return &account, nil
}

// GetMint returns the mint state at address.
func (c *Client) GetMint(address ed25519.PublicKey, commitment solana.Commitment) (*Mint, error) {
	data, err := c.getProgramAccount(address, commitment)
	if err == ErrInvalidTokenAccount {
		return nil, ErrInvalidMint
	} else if err != nil {
		return nil, err
	}

	var mint Mint
	if !mint.Unmarshal(data) || !mint.IsInitialized {
		return nil, ErrInvalidMint
	}

	return &mint, nil
}

func (c *Client) getProgramAccount(address ed25519.PublicKey, commitment solana.Commitment) ([]byte, error) {
	accountInfo, err := c.sc.GetAccountInfo(address, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(accountInfo.Owner, ProgramKey) {
		return nil, ErrInvalidTokenAccount
	}

	return accountInfo.Data, nil
}
