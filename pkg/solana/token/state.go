package token

import (
	"crypto/ed25519"

	"github.com/code-payments/token-lifecycle/pkg/solana/binary"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L125
const AccountSize = 165

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L39
const MintSize = 82

// State layouts encode COption tags as a u32.
const optionSize = 4

type Account struct {
	// The mint associated with this account
	Mint ed25519.PublicKey
	// The owner of this account.
	Owner ed25519.PublicKey
	// The amount of tokens this account holds.
	Amount uint64
	// If set, then the 'DelegatedAmount' represents the amount
	// authorized by the delegate.
	Delegate ed25519.PublicKey
	// The account's state
	State AccountState
	// If set, this is a native token, and the value logs the rent-exempt reserve.
	IsNative *uint64
	// The amount delegated
	DelegatedAmount uint64
	// Optional authority to close the account.
	CloseAuthority ed25519.PublicKey
}

func (a *Account) Marshal() []byte {
	b := make([]byte, AccountSize)

	e := binary.NewEncoder(b)
	e.Key(a.Mint)
	e.Key(a.Owner)
	e.Uint64(a.Amount)
	e.OptionalKey(a.Delegate, optionSize)
	e.Uint8(byte(a.State))
	e.OptionalUint64(a.IsNative, optionSize)
	e.Uint64(a.DelegatedAmount)
	e.OptionalKey(a.CloseAuthority, optionSize)

	return b
}

func (a *Account) Unmarshal(b []byte) bool {
	if len(b) != AccountSize {
		return false
	}

	d := binary.NewDecoder(b)
	a.Mint = d.Key()
	a.Owner = d.Key()
	a.Amount = d.Uint64()
	a.Delegate = d.OptionalKey(optionSize)
	a.State = AccountState(d.Uint8())
	a.IsNative = d.OptionalUint64(optionSize)
	a.DelegatedAmount = d.Uint64()
	a.CloseAuthority = d.OptionalKey(optionSize)

	return d.Err() == nil
}

// Mint is the on-chain state of a token mint.
type Mint struct {
	// Optional authority used to mint new tokens. When absent the supply is fixed.
	MintAuthority ed25519.PublicKey
	// Total supply of tokens.
	Supply uint64
	// Number of base 10 digits to the right of the decimal place.
	Decimals uint8
	IsInitialized bool
	// Optional authority to freeze token accounts.
	FreezeAuthority ed25519.PublicKey
}

func (m *Mint) Marshal() []byte {
	b := make([]byte, MintSize)

	e := binary.NewEncoder(b)
	e.OptionalKey(m.MintAuthority, optionSize)
	e.Uint64(m.Supply)
	e.Uint8(m.Decimals)
	e.Bool(m.IsInitialized)
	e.OptionalKey(m.FreezeAuthority, optionSize)

	return b
}

func (m *Mint) Unmarshal(b []byte) bool {
	if len(b) != MintSize {
		return false
	}

	d := binary.NewDecoder(b)
	m.MintAuthority = d.OptionalKey(optionSize)
	m.Supply = d.Uint64()
	m.Decimals = d.Uint8()
	m.IsInitialized = d.Bool()
	m.FreezeAuthority = d.OptionalKey(optionSize)

	return d.Err() == nil
}
