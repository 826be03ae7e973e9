// Package operation records the outcome of every token lifecycle operation
// that reached the network.
package operation

import (
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/pointer"
)

type Type uint8

const (
	TypeUnknown Type = iota
	TypeCreateToken
	TypeMintTokens
	TypeSendTokens
	TypeBurnTokens
	TypeDelegateTokens
	TypeRevokeDelegate
	TypeCloseTokenAccount
	TypeAirdrop
)

type State uint8

const (
	StateUnknown   State = iota // Not recorded
	StateSucceeded              // Transaction reached the confirmed commitment without error
	StateFailed                 // Building, submitting or confirming the transaction failed
)

type Record struct {
	Id uint64

	OperationId string
	Type        Type

	Owner        string
	Mint         *string
	Counterparty *string
	Quantity     uint64

	Signature *string
	State     State

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if len(r.OperationId) == 0 {
		return errors.New("operation id is required")
	}

	if r.Type == TypeUnknown {
		return errors.New("type is required")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	if r.Mint != nil && len(*r.Mint) == 0 {
		return errors.New("mint cannot be empty when set")
	}

	if r.Counterparty != nil && len(*r.Counterparty) == 0 {
		return errors.New("counterparty cannot be empty when set")
	}

	switch r.State {
	case StateSucceeded:
		if r.Signature == nil || len(*r.Signature) == 0 {
			return errors.New("signature is required for succeeded operations")
		}
	case StateFailed:
		if r.Signature != nil && len(*r.Signature) == 0 {
			return errors.New("signature cannot be empty when set")
		}
	default:
		return errors.New("state is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		OperationId: r.OperationId,
		Type:        r.Type,

		Owner:        r.Owner,
		Mint:         pointer.Copy(r.Mint),
		Counterparty: pointer.Copy(r.Counterparty),
		Quantity:     r.Quantity,

		Signature: pointer.Copy(r.Signature),
		State:     r.State,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.OperationId = r.OperationId
	dst.Type = r.Type

	dst.Owner = r.Owner
	dst.Mint = pointer.Copy(r.Mint)
	dst.Counterparty = pointer.Copy(r.Counterparty)
	dst.Quantity = r.Quantity

	dst.Signature = pointer.Copy(r.Signature)
	dst.State = r.State

	dst.CreatedAt = r.CreatedAt
}

func (t Type) String() string {
	switch t {
	case TypeCreateToken:
		return "create_token"
	case TypeMintTokens:
		return "mint_tokens"
	case TypeSendTokens:
		return "send_tokens"
	case TypeBurnTokens:
		return "burn_tokens"
	case TypeDelegateTokens:
		return "delegate_tokens"
	case TypeRevokeDelegate:
		return "revoke_delegate"
	case TypeCloseTokenAccount:
		return "close_token_account"
	case TypeAirdrop:
		return "airdrop"
	}
	return "unknown"
}

func (s State) String() string {
	switch s {
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
