// Package system builds instructions for the Solana system program.
package system

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/binary"
)

// ProgramKey is the system program address (11111111111111111111111111111111).
var ProgramKey [32]byte

const (
	commandCreateAccount uint32 = 0
	commandTransfer      uint32 = 2

	createAccountDataSize = 4 + 8 + 8 + ed25519.PublicKeySize
)

// CreateAccount allocates a new account of size bytes owned by owner, funded
// with lamports from funder. Both funder and address must sign.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	data := make([]byte, createAccountDataSize)

	e := binary.NewEncoder(data)
	e.Uint32(commandCreateAccount)
	e.Uint64(lamports)
	e.Uint64(size)
	e.Key(owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, err := systemInstruction(m, index, commandCreateAccount)
	if err != nil {
		return nil, err
	}

	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != createAccountDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	d := binary.NewDecoder(i.Data[4:])
	v := &DecompiledCreateAccount{
		Funder:   m.AccountAt(i, 0),
		Address:  m.AccountAt(i, 1),
		Lamports: d.Uint64(),
		Size:     d.Uint64(),
		Owner:    d.Key(),
	}
	return v, d.Err()
}

// Transfer moves lamports from one system account to another.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L74-L78
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	data := make([]byte, 4+8)

	e := binary.NewEncoder(data)
	e.Uint32(commandTransfer)
	e.Uint64(lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := systemInstruction(m, index, commandTransfer)
	if err != nil {
		return nil, err
	}

	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != 12 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	d := binary.NewDecoder(i.Data[4:])
	return &DecompiledTransfer{
		From:     m.AccountAt(i, 0),
		To:       m.AccountAt(i, 1),
		Lamports: d.Uint64(),
	}, d.Err()
}

func systemInstruction(m solana.Message, index int, command uint32) (solana.CompiledInstruction, error) {
	i, err := m.Instruction(index)
	if err != nil {
		return i, err
	}

	if !bytes.Equal(m.ProgramAt(i), ProgramKey[:]) {
		return i, solana.ErrIncorrectProgram
	}

	d := binary.NewDecoder(i.Data)
	if d.Uint32() != command || d.Err() != nil {
		return i, solana.ErrIncorrectInstruction
	}

	return i, nil
}
