// Package token builds and decodes SPL Token program instructions and state.
package token

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/binary"
	"github.com/code-payments/token-lifecycle/pkg/solana/system"
)

// ProgramKey is the address of the token program.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

type Command byte

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs
const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount
	CommandFreezeAccount
	CommandThawAccount
	CommandTransferChecked
	CommandApproveChecked
	CommandMintToChecked
	CommandBurnChecked

	CommandUnknown = Command(math.MaxUint8)
)

const (
	checkedAmountDataSize = 1 + 8 + 1
	amountDataSize        = 1 + 8
	initializeMintSize    = 1 + 1 + ed25519.PublicKeySize + 1 + ed25519.PublicKeySize
)

// GetCommand returns the token command of the instruction at index.
func GetCommand(m solana.Message, index int) (Command, error) {
	i, err := m.Instruction(index)
	if err != nil {
		return CommandUnknown, err
	}

	if !bytes.Equal(m.ProgramAt(i), ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}

	return Command(i.Data[0]), nil
}

// tokenInstruction returns the compiled instruction at index after checking
// its program, command, minimum account count and exact data size.
func tokenInstruction(m solana.Message, index int, command Command, minAccounts, dataSize int) (solana.CompiledInstruction, error) {
	cmd, err := GetCommand(m, index)
	if err != nil {
		return solana.CompiledInstruction{}, err
	}
	if cmd != command {
		return solana.CompiledInstruction{}, solana.ErrIncorrectInstruction
	}

	i := m.Instructions[index]

	// Multisig owners append their signers, so only a minimum is enforced.
	if len(i.Accounts) < minAccounts {
		return i, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != dataSize {
		return i, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return i, nil
}

func amountData(command Command, amount uint64) []byte {
	data := make([]byte, amountDataSize)

	e := binary.NewEncoder(data)
	e.Uint8(byte(command))
	e.Uint64(amount)

	return data
}

func checkedAmountData(command Command, amount uint64, decimals uint8) []byte {
	data := make([]byte, checkedAmountDataSize)

	e := binary.NewEncoder(data)
	e.Uint8(byte(command))
	e.Uint64(amount)
	e.Uint8(decimals)

	return data
}

func decodeCheckedAmount(data []byte) (uint64, uint8, error) {
	d := binary.NewDecoder(data[1:])
	amount := d.Uint64()
	decimals := d.Uint8()
	return amount, decimals, d.Err()
}

// InitializeMint initializes a freshly allocated mint account. The mint must
// be created in the same transaction, since the instruction requires no
// signature from it.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L24-L38
func InitializeMint(mint, mintAuthority, freezeAuthority ed25519.PublicKey, decimals uint8) solana.Instruction {
	//   0. `[writable]` The mint to initialize.
	//   1. `[]` Rent sysvar
	data := make([]byte, initializeMintSize)

	e := binary.NewEncoder(data)
	e.Uint8(byte(CommandInitializeMint))
	e.Uint8(decimals)
	e.Key(mintAuthority)
	e.OptionalKey(freezeAuthority, 1)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

type DecompiledInitializeMint struct {
	Mint            ed25519.PublicKey
	Decimals        uint8
	MintAuthority   ed25519.PublicKey
	FreezeAuthority ed25519.PublicKey
}

func DecompileInitializeMint(m solana.Message, index int) (*DecompiledInitializeMint, error) {
	i, err := tokenInstruction(m, index, CommandInitializeMint, 2, initializeMintSize)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(m.AccountAt(i, 1), system.RentSysVar) {
		return nil, errors.New("rent sysvar mismatch")
	}

	d := binary.NewDecoder(i.Data[1:])
	v := &DecompiledInitializeMint{
		Mint:            m.AccountAt(i, 0),
		Decimals:        d.Uint8(),
		MintAuthority:   d.Key(),
		FreezeAuthority: d.OptionalKey(1),
	}
	return v, d.Err()
}

// MintToChecked mints amount new tokens into dest, asserting the mint's decimals.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L277-L293
func MintToChecked(mint, dest, authority ed25519.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	//   0. `[writable]` The mint.
	//   1. `[writable]` The account to mint tokens to.
	//   2. `[signer]` The mint's minting authority.
	return solana.NewInstruction(
		ProgramKey,
		checkedAmountData(CommandMintToChecked, amount, decimals),
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

type DecompiledMintToChecked struct {
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Authority   ed25519.PublicKey
	Amount      uint64
	Decimals    uint8
}

func DecompileMintToChecked(m solana.Message, index int) (*DecompiledMintToChecked, error) {
	i, err := tokenInstruction(m, index, CommandMintToChecked, 3, checkedAmountDataSize)
	if err != nil {
		return nil, err
	}

	amount, decimals, err := decodeCheckedAmount(i.Data)
	if err != nil {
		return nil, err
	}

	return &DecompiledMintToChecked{
		Mint:        m.AccountAt(i, 0),
		Destination: m.AccountAt(i, 1),
		Authority:   m.AccountAt(i, 2),
		Amount:      amount,
		Decimals:    decimals,
	}, nil
}

// Transfer moves amount tokens between two accounts of the same mint.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L76-L91
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	//   0. `[writable]` The source account.
	//   1. `[writable]` The destination account.
	//   2. `[signer]` The source account's owner/delegate.
	return solana.NewInstruction(
		ProgramKey,
		amountData(CommandTransfer, amount),
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := tokenInstruction(m, index, CommandTransfer, 3, amountDataSize)
	if err != nil {
		return nil, err
	}

	d := binary.NewDecoder(i.Data[1:])
	return &DecompiledTransfer{
		Source:      m.AccountAt(i, 0),
		Destination: m.AccountAt(i, 1),
		Owner:       m.AccountAt(i, 2),
		Amount:      d.Uint64(),
	}, d.Err()
}

// TransferChecked is Transfer with the mint and its decimals asserted.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L230-L252
func TransferChecked(source, mint, dest, owner ed25519.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	//   0. `[writable]` The source account.
	//   1. `[]` The token mint.
	//   2. `[writable]` The destination account.
	//   3. `[signer]` The source account's owner/delegate.
	return solana.NewInstruction(
		ProgramKey,
		checkedAmountData(CommandTransferChecked, amount, decimals),
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledTransferChecked struct {
	Source      ed25519.PublicKey
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
	Decimals    uint8
}

func DecompileTransferChecked(m solana.Message, index int) (*DecompiledTransferChecked, error) {
	i, err := tokenInstruction(m, index, CommandTransferChecked, 4, checkedAmountDataSize)
	if err != nil {
		return nil, err
	}

	amount, decimals, err := decodeCheckedAmount(i.Data)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransferChecked{
		Source:      m.AccountAt(i, 0),
		Mint:        m.AccountAt(i, 1),
		Destination: m.AccountAt(i, 2),
		Owner:       m.AccountAt(i, 3),
		Amount:      amount,
		Decimals:    decimals,
	}, nil
}

// BurnChecked destroys amount tokens held by account, asserting the mint's decimals.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L295-L314
func BurnChecked(account, mint, owner ed25519.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	//   0. `[writable]` The account to burn from.
	//   1. `[writable]` The token mint.
	//   2. `[signer]` The account's owner/delegate.
	return solana.NewInstruction(
		ProgramKey,
		checkedAmountData(CommandBurnChecked, amount, decimals),
		solana.NewAccountMeta(account, false),
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledBurnChecked struct {
	Account  ed25519.PublicKey
	Mint     ed25519.PublicKey
	Owner    ed25519.PublicKey
	Amount   uint64
	Decimals uint8
}

func DecompileBurnChecked(m solana.Message, index int) (*DecompiledBurnChecked, error) {
	i, err := tokenInstruction(m, index, CommandBurnChecked, 3, checkedAmountDataSize)
	if err != nil {
		return nil, err
	}

	amount, decimals, err := decodeCheckedAmount(i.Data)
	if err != nil {
		return nil, err
	}

	return &DecompiledBurnChecked{
		Account:  m.AccountAt(i, 0),
		Mint:     m.AccountAt(i, 1),
		Owner:    m.AccountAt(i, 2),
		Amount:   amount,
		Decimals: decimals,
	}, nil
}

// ApproveChecked lets delegate transfer or burn up to amount tokens from
// source, asserting the mint's decimals.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L254-L275
func ApproveChecked(source, mint, delegate, owner ed25519.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	//   0. `[writable]` The source account.
	//   1. `[]` The token mint.
	//   2. `[]` The delegate.
	//   3. `[signer]` The source account owner.
	return solana.NewInstruction(
		ProgramKey,
		checkedAmountData(CommandApproveChecked, amount, decimals),
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(delegate, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledApproveChecked struct {
	Source   ed25519.PublicKey
	Mint     ed25519.PublicKey
	Delegate ed25519.PublicKey
	Owner    ed25519.PublicKey
	Amount   uint64
	Decimals uint8
}

func DecompileApproveChecked(m solana.Message, index int) (*DecompiledApproveChecked, error) {
	i, err := tokenInstruction(m, index, CommandApproveChecked, 4, checkedAmountDataSize)
	if err != nil {
		return nil, err
	}

	amount, decimals, err := decodeCheckedAmount(i.Data)
	if err != nil {
		return nil, err
	}

	return &DecompiledApproveChecked{
		Source:   m.AccountAt(i, 0),
		Mint:     m.AccountAt(i, 1),
		Delegate: m.AccountAt(i, 2),
		Owner:    m.AccountAt(i, 3),
		Amount:   amount,
		Decimals: decimals,
	}, nil
}

// Revoke clears the delegate of source.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L108-L118
func Revoke(source, owner ed25519.PublicKey) solana.Instruction {
	//   0. `[writable]` The source account.
	//   1. `[signer]` The source account owner.
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandRevoke)},
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledRevoke struct {
	Source ed25519.PublicKey
	Owner  ed25519.PublicKey
}

func DecompileRevoke(m solana.Message, index int) (*DecompiledRevoke, error) {
	i, err := tokenInstruction(m, index, CommandRevoke, 2, 1)
	if err != nil {
		return nil, err
	}

	return &DecompiledRevoke{
		Source: m.AccountAt(i, 0),
		Owner:  m.AccountAt(i, 1),
	}, nil
}

// CloseAccount closes a zero balance token account, sending its rent
// lamports to dest.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L183-L197
func CloseAccount(account, dest, owner ed25519.PublicKey) solana.Instruction {
	//   0. `[writable]` The account to close.
	//   1. `[writable]` The destination account.
	//   2. `[signer]` The account's owner.
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCloseAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledCloseAccount struct {
	Account     ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
}

func DecompileCloseAccount(m solana.Message, index int) (*DecompiledCloseAccount, error) {
	i, err := tokenInstruction(m, index, CommandCloseAccount, 3, 1)
	if err != nil {
		return nil, err
	}

	return &DecompiledCloseAccount{
		Account:     m.AccountAt(i, 0),
		Destination: m.AccountAt(i, 1),
		Owner:       m.AccountAt(i, 2),
	}, nil
}
