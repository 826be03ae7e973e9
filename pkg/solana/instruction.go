package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	isPayer   bool
	isProgram bool
}

// NewAccountMeta creates an AccountMeta for a writable account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates an AccountMeta for a readonly account.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey: pub,
		IsSigner:  isSigner,
	}
}

// accountMetaOrder orders account metas the way the runtime expects them in a
// message: payer, then signers, then writables, with programs at the end.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
type accountMetaOrder []AccountMeta

func (s accountMetaOrder) Len() int      { return len(s) }
func (s accountMetaOrder) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s accountMetaOrder) Less(i, j int) bool {
	a, b := s[i], s[j]

	switch {
	case a.isPayer != b.isPayer:
		return a.isPayer
	case a.isProgram != b.isProgram:
		return !a.isProgram
	case a.IsSigner != b.IsSigner:
		return a.IsSigner
	case a.IsWritable != b.IsWritable:
		return a.IsWritable
	}

	return bytes.Compare(a.PublicKey, b.PublicKey) < 0
}

// Instruction is a single program invocation within a transaction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// CompiledInstruction is an instruction whose program and accounts have been
// replaced with indexes into the message account list.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}

// Instruction returns the compiled instruction at index, or an error if the
// message doesn't have one.
func (m Message) Instruction(index int) (CompiledInstruction, error) {
	if index < 0 || index >= len(m.Instructions) {
		return CompiledInstruction{}, errInstructionNotFound(index)
	}
	return m.Instructions[index], nil
}

// ProgramAt returns the program key invoked by the compiled instruction.
func (m Message) ProgramAt(i CompiledInstruction) ed25519.PublicKey {
	return m.Accounts[i.ProgramIndex]
}

// AccountAt returns the key of the n'th account used by the compiled instruction.
func (m Message) AccountAt(i CompiledInstruction, n int) ed25519.PublicKey {
	return m.Accounts[i.Accounts[n]]
}
