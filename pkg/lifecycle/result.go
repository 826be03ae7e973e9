package lifecycle

import (
	"crypto/ed25519"

	"github.com/google/uuid"

	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	"github.com/code-payments/token-lifecycle/pkg/solana"
)

type Operation uint8

const (
	OperationUnknown Operation = iota
	OperationCreateToken
	OperationMintTokens
	OperationSendTokens
	OperationBurnTokens
	OperationDelegateTokens
	OperationRevokeDelegate
	OperationCloseTokenAccount
	OperationAirdrop
)

type Status uint8

const (
	StatusUnknown   Status = iota // Not set
	StatusSucceeded               // The transaction reached the configured commitment
	StatusFailed                  // Something went wrong after the preconditions held
	StatusRejected                // A precondition did not hold, so nothing was attempted
)

// Stage is where a failed operation stopped.
type Stage string

const (
	StageNone    Stage = ""
	StageBuild   Stage = "build"
	StageSubmit  Stage = "submit"
	StageConfirm Stage = "confirm"
)

// Result is the outcome of a single orchestrator operation.
type Result struct {
	Id        uuid.UUID
	Operation Operation
	Status    Status
	Stage     Stage

	// Signature is set once the wallet has submitted the transaction.
	Signature *solana.Signature
	Mint      ed25519.PublicKey
	Amount    uint64

	Err error
}

func (r *Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

func (r *Result) Rejected() bool {
	return r.Status == StatusRejected
}

var messages = map[Operation]struct {
	success string
	failure string
}{
	OperationCreateToken:       {"Token created successfully! Mint: %s", "Failed to create token."},
	OperationMintTokens:        {"Tokens minted successfully!", "Failed to mint tokens."},
	OperationSendTokens:        {"Tokens sent successfully!", "Failed to send tokens."},
	OperationBurnTokens:        {"Tokens burned successfully!", "Failed to burn tokens."},
	OperationDelegateTokens:    {"Tokens delegated successfully!", "Failed to delegate tokens."},
	OperationRevokeDelegate:    {"Tokens revoked successfully!", "Failed to revoke tokens."},
	OperationCloseTokenAccount: {"Token account closed successfully!", "Failed to close token account."},
	OperationAirdrop:           {"Airdrop received!", "Failed to request airdrop."},
}

// ParseOperation resolves the name returned by Operation.String.
func ParseOperation(name string) (Operation, bool) {
	for op := OperationCreateToken; op <= OperationAirdrop; op++ {
		if op.String() == name {
			return op, true
		}
	}
	return OperationUnknown, false
}

func (o Operation) String() string {
	switch o {
	case OperationCreateToken:
		return "create"
	case OperationMintTokens:
		return "mint"
	case OperationSendTokens:
		return "send"
	case OperationBurnTokens:
		return "burn"
	case OperationDelegateTokens:
		return "delegate"
	case OperationRevokeDelegate:
		return "revoke"
	case OperationCloseTokenAccount:
		return "close"
	case OperationAirdrop:
		return "airdrop"
	}
	return "unknown"
}

func (o Operation) toRecordType() operation.Type {
	switch o {
	case OperationCreateToken:
		return operation.TypeCreateToken
	case OperationMintTokens:
		return operation.TypeMintTokens
	case OperationSendTokens:
		return operation.TypeSendTokens
	case OperationBurnTokens:
		return operation.TypeBurnTokens
	case OperationDelegateTokens:
		return operation.TypeDelegateTokens
	case OperationRevokeDelegate:
		return operation.TypeRevokeDelegate
	case OperationCloseTokenAccount:
		return operation.TypeCloseTokenAccount
	case OperationAirdrop:
		return operation.TypeAirdrop
	}
	return operation.TypeUnknown
}

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusRejected:
		return "rejected"
	}
	return "unknown"
}
