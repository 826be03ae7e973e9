package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/system"
)

func TestGetCommand_Error(t *testing.T) {
	keys := generateKeys(t, 2)

	// invalid program
	cmd, err := GetCommand(solana.NewTransaction(keys[0], solana.NewInstruction(keys[1], []byte{})).Message, 0)
	assert.Equal(t, CommandUnknown, cmd)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	// no data
	cmd, err = GetCommand(solana.NewTransaction(keys[0], solana.NewInstruction(ProgramKey, []byte{})).Message, 0)
	assert.Equal(t, CommandUnknown, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing data")

	// no instruction
	_, err = GetCommand(solana.NewTransaction(keys[0], solana.NewInstruction(ProgramKey, []byte{1})).Message, 1)
	assert.Error(t, err)
}

func TestInitializeMint(t *testing.T) {
	keys := generateKeys(t, 3)
	payer, mint, authority := keys[0], keys[1], keys[2]

	instruction := InitializeMint(mint, authority, authority, 9)

	require.Len(t, instruction.Data, 67)
	assert.EqualValues(t, CommandInitializeMint, instruction.Data[0])
	assert.EqualValues(t, 9, instruction.Data[1])
	assert.EqualValues(t, authority, instruction.Data[2:34])
	assert.EqualValues(t, 1, instruction.Data[34])
	assert.EqualValues(t, authority, instruction.Data[35:67])

	require.Len(t, instruction.Accounts, 2)
	assert.False(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.EqualValues(t, system.RentSysVar, instruction.Accounts[1].PublicKey)
	assert.False(t, instruction.Accounts[1].IsWritable)

	decompiled, err := DecompileInitializeMint(solana.NewTransaction(payer, instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, mint, decompiled.Mint)
	assert.EqualValues(t, 9, decompiled.Decimals)
	assert.EqualValues(t, authority, decompiled.MintAuthority)
	assert.EqualValues(t, authority, decompiled.FreezeAuthority)

	noFreeze := InitializeMint(mint, authority, nil, 6)
	require.Len(t, noFreeze.Data, 67)
	assert.EqualValues(t, 0, noFreeze.Data[34])
	assert.Equal(t, make([]byte, ed25519.PublicKeySize), noFreeze.Data[35:67])

	decompiled, err = DecompileInitializeMint(solana.NewTransaction(payer, noFreeze).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 6, decompiled.Decimals)
	assert.Nil(t, decompiled.FreezeAuthority)

	instruction.Accounts[1].PublicKey = keys[0]
	_, err = DecompileInitializeMint(solana.NewTransaction(payer, instruction).Message, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rent sysvar")
}

func TestMintToChecked(t *testing.T) {
	keys := generateKeys(t, 3)
	authority, mint, dest := keys[0], keys[1], keys[2]

	instruction := MintToChecked(mint, dest, authority, 100_000_000_000, 9)

	require.Len(t, instruction.Data, 10)
	assert.EqualValues(t, CommandMintToChecked, instruction.Data[0])
	assert.EqualValues(t, 100_000_000_000, binary.LittleEndian.Uint64(instruction.Data[1:9]))
	assert.EqualValues(t, 9, instruction.Data[9])

	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)
	assert.False(t, instruction.Accounts[2].IsWritable)

	decompiled, err := DecompileMintToChecked(solana.NewTransaction(authority, instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, mint, decompiled.Mint)
	assert.EqualValues(t, dest, decompiled.Destination)
	assert.EqualValues(t, authority, decompiled.Authority)
	assert.EqualValues(t, 100_000_000_000, decompiled.Amount)
	assert.EqualValues(t, 9, decompiled.Decimals)

	_, err = DecompileTransfer(solana.NewTransaction(authority, instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Data = instruction.Data[:9]
	_, err = DecompileMintToChecked(solana.NewTransaction(authority, instruction).Message, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid instruction data size")
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 3)
	owner, source, dest := keys[0], keys[1], keys[2]

	instruction := Transfer(source, dest, owner, 1_000_000_000)

	require.Len(t, instruction.Data, 9)
	assert.EqualValues(t, CommandTransfer, instruction.Data[0])
	assert.EqualValues(t, 1_000_000_000, binary.LittleEndian.Uint64(instruction.Data[1:]))

	decompiled, err := DecompileTransfer(solana.NewTransaction(owner, instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, source, decompiled.Source)
	assert.EqualValues(t, dest, decompiled.Destination)
	assert.EqualValues(t, owner, decompiled.Owner)
	assert.EqualValues(t, 1_000_000_000, decompiled.Amount)

	instruction.Accounts = instruction.Accounts[:2]
	_, err = DecompileTransfer(solana.NewTransaction(owner, instruction).Message, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number of accounts")

	instruction.Program = keys[1]
	_, err = DecompileTransfer(solana.NewTransaction(owner, instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}

func TestTransferChecked(t *testing.T) {
	keys := generateKeys(t, 4)
	owner, source, mint, dest := keys[0], keys[1], keys[2], keys[3]

	instruction := TransferChecked(source, mint, dest, owner, 42, 6)

	require.Len(t, instruction.Data, 10)
	assert.EqualValues(t, CommandTransferChecked, instruction.Data[0])
	assert.False(t, instruction.Accounts[1].IsWritable)

	decompiled, err := DecompileTransferChecked(solana.NewTransaction(owner, instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, source, decompiled.Source)
	assert.EqualValues(t, mint, decompiled.Mint)
	assert.EqualValues(t, dest, decompiled.Destination)
	assert.EqualValues(t, owner, decompiled.Owner)
	assert.EqualValues(t, 42, decompiled.Amount)
	assert.EqualValues(t, 6, decompiled.Decimals)
}

func TestBurnChecked(t *testing.T) {
	keys := generateKeys(t, 3)
	owner, account, mint := keys[0], keys[1], keys[2]

	instruction := BurnChecked(account, mint, owner, 1_000_000_000, 9)

	require.Len(t, instruction.Data, 10)
	assert.EqualValues(t, CommandBurnChecked, instruction.Data[0])
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)

	decompiled, err := DecompileBurnChecked(solana.NewTransaction(owner, instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, account, decompiled.Account)
	assert.EqualValues(t, mint, decompiled.Mint)
	assert.EqualValues(t, owner, decompiled.Owner)
	assert.EqualValues(t, 1_000_000_000, decompiled.Amount)
	assert.EqualValues(t, 9, decompiled.Decimals)
}

func TestApproveChecked(t *testing.T) {
	keys := generateKeys(t, 4)
	owner, source, mint, delegate := keys[0], keys[1], keys[2], keys[3]

	instruction := ApproveChecked(source, mint, delegate, owner, 1_000_000_000, 9)

	require.Len(t, instruction.Data, 10)
	assert.EqualValues(t, CommandApproveChecked, instruction.Data[0])
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsWritable)
	assert.False(t, instruction.Accounts[2].IsWritable)
	assert.False(t, instruction.Accounts[2].IsSigner)
	assert.True(t, instruction.Accounts[3].IsSigner)

	decompiled, err := DecompileApproveChecked(solana.NewTransaction(owner, instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, source, decompiled.Source)
	assert.EqualValues(t, mint, decompiled.Mint)
	assert.EqualValues(t, delegate, decompiled.Delegate)
	assert.EqualValues(t, owner, decompiled.Owner)
	assert.EqualValues(t, 1_000_000_000, decompiled.Amount)
	assert.EqualValues(t, 9, decompiled.Decimals)
}

func TestRevoke(t *testing.T) {
	keys := generateKeys(t, 2)
	owner, source := keys[0], keys[1]

	instruction := Revoke(source, owner)

	assert.Equal(t, []byte{byte(CommandRevoke)}, instruction.Data)
	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsSigner)

	decompiled, err := DecompileRevoke(solana.NewTransaction(owner, instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, source, decompiled.Source)
	assert.EqualValues(t, owner, decompiled.Owner)

	instruction.Data = append(instruction.Data, 0)
	_, err = DecompileRevoke(solana.NewTransaction(owner, instruction).Message, 0)
	assert.Error(t, err)
}

func TestCloseAccount(t *testing.T) {
	keys := generateKeys(t, 2)
	owner, account := keys[0], keys[1]

	instruction := CloseAccount(account, owner, owner)

	assert.Equal(t, []byte{byte(CommandCloseAccount)}, instruction.Data)
	require.Len(t, instruction.Accounts, 3)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)

	tx := solana.NewTransaction(owner, instruction)
	require.Len(t, tx.Message.Accounts, 3)

	decompiled, err := DecompileCloseAccount(tx.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, account, decompiled.Account)
	assert.EqualValues(t, owner, decompiled.Destination)
	assert.EqualValues(t, owner, decompiled.Owner)

	instruction.Data = nil
	_, err = DecompileCloseAccount(solana.NewTransaction(owner, instruction).Message, 0)
	assert.Error(t, err)
}

func TestDescribeError(t *testing.T) {
	txErr, err := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: 1,
		Err:   ErrorInsufficientFunds,
	})
	require.NoError(t, err)

	desc, ok := DescribeError(txErr)
	assert.True(t, ok)
	assert.Equal(t, "insufficient funds", desc)

	_, ok = DescribeError(solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound))
	assert.False(t, ok)

	_, ok = DescribeError(nil)
	assert.False(t, ok)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}

	return keys
}
