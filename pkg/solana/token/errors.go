package token

import (
	"github.com/code-payments/token-lifecycle/pkg/solana"
)

// Custom program errors returned by the token program.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/error.rs
const (
	ErrorNotRentExempt solana.CustomError = iota
	ErrorInsufficientFunds
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
	ErrorFixedSupply
	ErrorAlreadyInUse
	ErrorInvalidNumberOfProvidedSigners
	ErrorInvalidNumberOfRequiredSigners
	ErrorUninitializedState
	ErrorNativeNotSupported
	ErrorNonNativeHasBalance
	ErrorInvalidInstruction
	ErrorInvalidState
	ErrorOverflow
	ErrorAuthorityTypeNotSupported
	ErrorMintCannotFreeze
	ErrorAccountFrozen
	ErrorMintDecimalsMismatch
	ErrorNonNativeNotSupported
)

var errorDescriptions = map[solana.CustomError]string{
	ErrorNotRentExempt:                  "lamport balance below rent-exempt threshold",
	ErrorInsufficientFunds:              "insufficient funds",
	ErrorInvalidMint:                    "invalid mint",
	ErrorMintMismatch:                   "account not associated with this mint",
	ErrorOwnerMismatch:                  "owner does not match",
	ErrorFixedSupply:                    "fixed supply",
	ErrorAlreadyInUse:                   "already in use",
	ErrorInvalidNumberOfProvidedSigners: "invalid number of provided signers",
	ErrorInvalidNumberOfRequiredSigners: "invalid number of required signers",
	ErrorUninitializedState:             "state is uninitialized",
	ErrorNativeNotSupported:             "instruction does not support native tokens",
	ErrorNonNativeHasBalance:            "non-native account can only be closed if its balance is zero",
	ErrorInvalidInstruction:             "invalid instruction",
	ErrorInvalidState:                   "state is invalid for requested operation",
	ErrorOverflow:                       "operation overflowed",
	ErrorAuthorityTypeNotSupported:      "account does not support specified authority type",
	ErrorMintCannotFreeze:               "this token mint cannot freeze accounts",
	ErrorAccountFrozen:                  "account is frozen",
	ErrorMintDecimalsMismatch:           "the provided decimals value different from the mint decimals",
	ErrorNonNativeNotSupported:          "instruction does not support non-native tokens",
}

// DescribeError returns a human readable description of a token program
// error carried by err, or false if err is not one.
func DescribeError(err *solana.TransactionError) (string, bool) {
	if err == nil || err.InstructionError() == nil {
		return "", false
	}

	code := err.InstructionError().CustomError()
	if code == nil {
		return "", false
	}

	desc, ok := errorDescriptions[*code]
	return desc, ok
}
