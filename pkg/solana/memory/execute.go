package memory

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/system"
	"github.com/code-payments/token-lifecycle/pkg/solana/token"
)

// System program errors.
//
// Reference: https://github.com/solana-labs/solana/blob/e9e74a3ea2a9c21b3dba3ee54cdb03d8d6d5b08c/sdk/program/src/system_instruction.rs#L27
const (
	systemErrorAccountAlreadyInUse        solana.CustomError = 0
	systemErrorResultWithNegativeLamports solana.CustomError = 1
)

func programError(k solana.InstructionErrorKey) error {
	return errors.New(string(k))
}

var (
	errInvalidAccountData       = programError(solana.InstructionErrorInvalidAccountData)
	errIncorrectProgramID       = programError(solana.InstructionErrorIncorrectProgramID)
	errMissingRequiredSignature = programError(solana.InstructionErrorMissingRequiredSignature)
	errInvalidArgument          = programError(solana.InstructionErrorInvalidArgument)
	errInvalidSeeds             = errors.New("InvalidSeeds")
	errInvalidInstructionData   = errors.New("InvalidInstructionData")
)

func systemOwner() ed25519.PublicKey {
	return append(ed25519.PublicKey{}, system.SystemAccount...)
}

// overlay stages account changes for a single transaction so a failing
// instruction leaves the ledger untouched.
type overlay struct {
	base    map[string]*account
	changed map[string]*account
}

func newOverlay(base map[string]*account) *overlay {
	return &overlay{
		base:    base,
		changed: make(map[string]*account),
	}
}

// get returns a mutable copy of the account at pub, or nil.
func (o *overlay) get(pub ed25519.PublicKey) *account {
	k := key(pub)
	if a, ok := o.changed[k]; ok {
		return a
	}

	a, ok := o.base[k]
	if !ok {
		return nil
	}

	a = a.clone()
	o.changed[k] = a
	return a
}

func (o *overlay) put(pub ed25519.PublicKey, a *account) {
	o.changed[key(pub)] = a
}

func (o *overlay) remove(pub ed25519.PublicKey) {
	o.changed[key(pub)] = nil
}

func (o *overlay) commit() {
	for k, a := range o.changed {
		if a == nil {
			delete(o.base, k)
			continue
		}
		o.base[k] = a
	}
}

func execute(state *overlay, m solana.Message) *solana.TransactionError {
	for i := range m.Instructions {
		err := executeInstruction(state, m, i)
		if err == nil {
			continue
		}

		txErr, convErr := solana.TransactionErrorFromInstructionError(&solana.InstructionError{Index: i, Err: err})
		if convErr != nil {
			return solana.NewTransactionError(solana.TransactionErrorInstructionError)
		}
		return txErr
	}
	return nil
}

func executeInstruction(state *overlay, m solana.Message, index int) error {
	program := m.ProgramAt(m.Instructions[index])

	switch {
	case bytes.Equal(program, system.SystemAccount):
		return executeSystem(state, m, index)
	case bytes.Equal(program, token.AssociatedTokenAccountProgramKey):
		return executeCreateAssociated(state, m, index)
	case bytes.Equal(program, token.ProgramKey):
		return executeToken(state, m, index)
	default:
		return errIncorrectProgramID
	}
}

func isSigner(m solana.Message, pub ed25519.PublicKey) bool {
	for i := 0; i < int(m.Header.NumSignatures) && i < len(m.Accounts); i++ {
		if bytes.Equal(m.Accounts[i], pub) {
			return true
		}
	}
	return false
}

func executeSystem(state *overlay, m solana.Message, index int) error {
	if create, err := system.DecompileCreateAccount(m, index); err == nil {
		if !isSigner(m, create.Funder) || !isSigner(m, create.Address) {
			return errMissingRequiredSignature
		}

		if existing := state.get(create.Address); existing != nil && (existing.lamports > 0 || len(existing.data) > 0) {
			return systemErrorAccountAlreadyInUse
		}

		funder := state.get(create.Funder)
		if funder == nil || funder.lamports < create.Lamports {
			return systemErrorResultWithNegativeLamports
		}
		funder.lamports -= create.Lamports

		state.put(create.Address, &account{
			lamports: create.Lamports,
			owner:    append(ed25519.PublicKey{}, create.Owner...),
			data:     make([]byte, create.Size),
		})
		return nil
	}

	transfer, err := system.DecompileTransfer(m, index)
	if err != nil {
		return errInvalidInstructionData
	}
	if !isSigner(m, transfer.From) {
		return errMissingRequiredSignature
	}

	from := state.get(transfer.From)
	if from == nil || from.lamports < transfer.Lamports {
		return systemErrorResultWithNegativeLamports
	}
	from.lamports -= transfer.Lamports

	to := state.get(transfer.To)
	if to == nil {
		to = &account{owner: systemOwner()}
		state.put(transfer.To, to)
	}
	to.lamports += transfer.Lamports
	return nil
}

func executeCreateAssociated(state *overlay, m solana.Message, index int) error {
	create, err := token.DecompileCreateAssociatedAccount(m, index)
	if err != nil {
		return errInvalidInstructionData
	}

	expected, err := token.GetAssociatedAccount(create.Owner, create.Mint)
	if err != nil || !bytes.Equal(expected, create.Address) {
		return errInvalidSeeds
	}

	if _, err := getMint(state, create.Mint); err != nil {
		return err
	}

	if existing := state.get(create.Address); existing != nil {
		if !create.Idempotent {
			return systemErrorAccountAlreadyInUse
		}

		ta, err := decodeTokenAccount(existing)
		if err != nil || !bytes.Equal(ta.Owner, create.Owner) || !bytes.Equal(ta.Mint, create.Mint) {
			return errInvalidAccountData
		}
		return nil
	}

	if !isSigner(m, create.Payer) {
		return errMissingRequiredSignature
	}

	rent := rentExemptMinimum(token.AccountSize)
	payer := state.get(create.Payer)
	if payer == nil || payer.lamports < rent {
		return systemErrorResultWithNegativeLamports
	}
	payer.lamports -= rent

	ta := token.Account{
		Mint:  create.Mint,
		Owner: create.Owner,
		State: token.AccountStateInitialized,
	}
	state.put(create.Address, &account{
		lamports: rent,
		owner:    append(ed25519.PublicKey{}, token.ProgramKey...),
		data:     ta.Marshal(),
	})
	return nil
}
