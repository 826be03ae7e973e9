package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/system"
)

// AssociatedTokenAccountProgramKey is the address of the associated token account program.
//
// Current key: ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL
var AssociatedTokenAccountProgramKey = ed25519.PublicKey{140, 151, 37, 143, 78, 36, 137, 241, 187, 61, 16, 41, 20, 142, 13, 131, 11, 90, 19, 153, 218, 255, 16, 132, 4, 142, 123, 216, 219, 233, 248, 89}

const (
	associatedCommandCreate           byte = 0
	associatedCommandCreateIdempotent byte = 1
)

// GetAssociatedAccount returns the associated account address for an SPL token.
//
// Reference: https://spl.solana.com/associated-token-account#finding-the-associated-token-account-address
func GetAssociatedAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(
		AssociatedTokenAccountProgramKey,
		wallet,
		ProgramKey,
		mint,
	)
}

// CreateAssociatedTokenAccount creates the associated account of wallet for
// mint, failing if it already exists.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/a9be1fd3a6a1e9a1dbd6a0e2d2f0c8fe54e4c1f2/associated-token-account/program/src/instruction.rs#L16-L27
func CreateAssociatedTokenAccount(payer, wallet, mint ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	return createAssociated(payer, wallet, mint, nil)
}

// CreateAssociatedTokenAccountIdempotent is CreateAssociatedTokenAccount,
// but succeeds without changes when the account already exists for wallet.
func CreateAssociatedTokenAccountIdempotent(payer, wallet, mint ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	return createAssociated(payer, wallet, mint, []byte{associatedCommandCreateIdempotent})
}

func createAssociated(payer, wallet, mint ed25519.PublicKey, data []byte) (solana.Instruction, ed25519.PublicKey, error) {
	addr, err := GetAssociatedAccount(wallet, mint)
	if err != nil {
		return solana.Instruction{}, nil, err
	}

	//   0. `[writeable,signer]` Funding account
	//   1. `[writeable]` Associated token account address to be created
	//   2. `[]` Wallet address for the new associated token account
	//   3. `[]` The token mint for the new associated token account
	//   4. `[]` System program
	//   5. `[]` SPL Token program
	return solana.NewInstruction(
		AssociatedTokenAccountProgramKey,
		data,
		solana.NewAccountMeta(payer, true),
		solana.NewAccountMeta(addr, false),
		solana.NewReadonlyAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
		solana.NewReadonlyAccountMeta(ProgramKey, false),
	), addr, nil
}

type DecompiledCreateAssociatedAccount struct {
	Payer      ed25519.PublicKey
	Address    ed25519.PublicKey
	Owner      ed25519.PublicKey
	Mint       ed25519.PublicKey
	Idempotent bool
}

// DecompileCreateAssociatedAccount decodes either create variant. The legacy
// trailing rent sysvar account is tolerated.
func DecompileCreateAssociatedAccount(m solana.Message, index int) (*DecompiledCreateAssociatedAccount, error) {
	i, err := m.Instruction(index)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(m.ProgramAt(i), AssociatedTokenAccountProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}

	var idempotent bool
	switch {
	case len(i.Data) == 0 || (len(i.Data) == 1 && i.Data[0] == associatedCommandCreate):
	case len(i.Data) == 1 && i.Data[0] == associatedCommandCreateIdempotent:
		idempotent = true
	default:
		return nil, solana.ErrIncorrectInstruction
	}

	if len(i.Accounts) != 6 && len(i.Accounts) != 7 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(m.AccountAt(i, 4), system.SystemAccount) {
		return nil, errors.New("system program key mismatch")
	}
	if !bytes.Equal(m.AccountAt(i, 5), ProgramKey) {
		return nil, errors.New("token program key mismatch")
	}
	if len(i.Accounts) == 7 && !bytes.Equal(m.AccountAt(i, 6), system.RentSysVar) {
		return nil, errors.New("rent sysvar mismatch")
	}

	return &DecompiledCreateAssociatedAccount{
		Payer:      m.AccountAt(i, 0),
		Address:    m.AccountAt(i, 1),
		Owner:      m.AccountAt(i, 2),
		Mint:       m.AccountAt(i, 3),
		Idempotent: idempotent,
	}, nil
}
