package memory

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/token"
)

func decodeTokenAccount(a *account) (*token.Account, error) {
	if a == nil {
		return nil, errInvalidAccountData
	}
	if !bytes.Equal(a.owner, token.ProgramKey) {
		return nil, errIncorrectProgramID
	}

	var ta token.Account
	if !ta.Unmarshal(a.data) {
		return nil, errInvalidAccountData
	}
	if ta.State == token.AccountStateUninitialized {
		return nil, token.ErrorUninitializedState
	}
	return &ta, nil
}

func decodeMint(a *account) (*token.Mint, error) {
	if a == nil {
		return nil, errInvalidAccountData
	}
	if !bytes.Equal(a.owner, token.ProgramKey) {
		return nil, errIncorrectProgramID
	}

	var m token.Mint
	if !m.Unmarshal(a.data) {
		return nil, errInvalidAccountData
	}
	if !m.IsInitialized {
		return nil, token.ErrorUninitializedState
	}
	return &m, nil
}

func getTokenAccount(state *overlay, pub ed25519.PublicKey) (*token.Account, error) {
	return decodeTokenAccount(state.get(pub))
}

func getMint(state *overlay, pub ed25519.PublicKey) (*token.Mint, error) {
	return decodeMint(state.get(pub))
}

func putTokenAccount(state *overlay, pub ed25519.PublicKey, ta *token.Account) {
	state.get(pub).data = ta.Marshal()
}

func putMint(state *overlay, pub ed25519.PublicKey, mint *token.Mint) {
	state.get(pub).data = mint.Marshal()
}

// authorize checks that authority may move amount out of ta, as either its
// owner or its delegate, and consumes delegated allowance.
func authorize(m solana.Message, ta *token.Account, authority ed25519.PublicKey, amount uint64) error {
	switch {
	case bytes.Equal(ta.Owner, authority):
	case len(ta.Delegate) > 0 && bytes.Equal(ta.Delegate, authority):
		if ta.DelegatedAmount < amount {
			return token.ErrorInsufficientFunds
		}
		ta.DelegatedAmount -= amount
		if ta.DelegatedAmount == 0 {
			ta.Delegate = nil
		}
	default:
		return token.ErrorOwnerMismatch
	}

	if !isSigner(m, authority) {
		return errMissingRequiredSignature
	}
	return nil
}

func executeToken(state *overlay, m solana.Message, index int) error {
	cmd, err := token.GetCommand(m, index)
	if err != nil {
		return errInvalidInstructionData
	}

	switch cmd {
	case token.CommandInitializeMint:
		return initializeMint(state, m, index)
	case token.CommandMintToChecked:
		return mintToChecked(state, m, index)
	case token.CommandTransfer:
		d, err := token.DecompileTransfer(m, index)
		if err != nil {
			return token.ErrorInvalidInstruction
		}
		return transfer(state, m, d.Source, d.Destination, d.Owner, d.Amount, nil, nil)
	case token.CommandTransferChecked:
		d, err := token.DecompileTransferChecked(m, index)
		if err != nil {
			return token.ErrorInvalidInstruction
		}
		return transfer(state, m, d.Source, d.Destination, d.Owner, d.Amount, d.Mint, &d.Decimals)
	case token.CommandBurnChecked:
		return burnChecked(state, m, index)
	case token.CommandApproveChecked:
		return approveChecked(state, m, index)
	case token.CommandRevoke:
		return revoke(state, m, index)
	case token.CommandCloseAccount:
		return closeAccount(state, m, index)
	default:
		return token.ErrorInvalidInstruction
	}
}

func initializeMint(state *overlay, m solana.Message, index int) error {
	d, err := token.DecompileInitializeMint(m, index)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	a := state.get(d.Mint)
	if a == nil || len(a.data) != token.MintSize {
		return errInvalidAccountData
	}
	if !bytes.Equal(a.owner, token.ProgramKey) {
		return errIncorrectProgramID
	}
	if _, err := decodeMint(a); err == nil {
		return token.ErrorAlreadyInUse
	}
	if a.lamports < rentExemptMinimum(token.MintSize) {
		return token.ErrorNotRentExempt
	}

	putMint(state, d.Mint, &token.Mint{
		MintAuthority:   d.MintAuthority,
		Decimals:        d.Decimals,
		IsInitialized:   true,
		FreezeAuthority: d.FreezeAuthority,
	})
	return nil
}

func mintToChecked(state *overlay, m solana.Message, index int) error {
	d, err := token.DecompileMintToChecked(m, index)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	mint, err := getMint(state, d.Mint)
	if err != nil {
		return err
	}
	if len(mint.MintAuthority) == 0 {
		return token.ErrorFixedSupply
	}
	if !bytes.Equal(mint.MintAuthority, d.Authority) {
		return token.ErrorOwnerMismatch
	}
	if !isSigner(m, d.Authority) {
		return errMissingRequiredSignature
	}
	if mint.Decimals != d.Decimals {
		return token.ErrorMintDecimalsMismatch
	}

	dest, err := getTokenAccount(state, d.Destination)
	if err != nil {
		return err
	}
	if !bytes.Equal(dest.Mint, d.Mint) {
		return token.ErrorMintMismatch
	}
	if dest.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if mint.Supply+d.Amount < mint.Supply || dest.Amount+d.Amount < dest.Amount {
		return token.ErrorOverflow
	}

	mint.Supply += d.Amount
	dest.Amount += d.Amount
	putMint(state, d.Mint, mint)
	putTokenAccount(state, d.Destination, dest)
	return nil
}

func transfer(state *overlay, m solana.Message, source, dest, authority ed25519.PublicKey, amount uint64, mint ed25519.PublicKey, decimals *uint8) error {
	src, err := getTokenAccount(state, source)
	if err != nil {
		return err
	}
	dst, err := getTokenAccount(state, dest)
	if err != nil {
		return err
	}

	if src.State == token.AccountStateFrozen || dst.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if !bytes.Equal(src.Mint, dst.Mint) {
		return token.ErrorMintMismatch
	}
	if mint != nil {
		if !bytes.Equal(src.Mint, mint) {
			return token.ErrorMintMismatch
		}
		mintState, err := getMint(state, mint)
		if err != nil {
			return err
		}
		if mintState.Decimals != *decimals {
			return token.ErrorMintDecimalsMismatch
		}
	}
	if src.Amount < amount {
		return token.ErrorInsufficientFunds
	}
	if err := authorize(m, src, authority, amount); err != nil {
		return err
	}

	if bytes.Equal(source, dest) {
		putTokenAccount(state, source, src)
		return nil
	}

	src.Amount -= amount
	dst.Amount += amount
	putTokenAccount(state, source, src)
	putTokenAccount(state, dest, dst)
	return nil
}

func burnChecked(state *overlay, m solana.Message, index int) error {
	d, err := token.DecompileBurnChecked(m, index)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	ta, err := getTokenAccount(state, d.Account)
	if err != nil {
		return err
	}
	if !bytes.Equal(ta.Mint, d.Mint) {
		return token.ErrorMintMismatch
	}
	if ta.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}

	mint, err := getMint(state, d.Mint)
	if err != nil {
		return err
	}
	if mint.Decimals != d.Decimals {
		return token.ErrorMintDecimalsMismatch
	}
	if ta.Amount < d.Amount {
		return token.ErrorInsufficientFunds
	}
	if err := authorize(m, ta, d.Owner, d.Amount); err != nil {
		return err
	}

	ta.Amount -= d.Amount
	mint.Supply -= d.Amount
	putTokenAccount(state, d.Account, ta)
	putMint(state, d.Mint, mint)
	return nil
}

func approveChecked(state *overlay, m solana.Message, index int) error {
	d, err := token.DecompileApproveChecked(m, index)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	ta, err := getTokenAccount(state, d.Source)
	if err != nil {
		return err
	}
	if !bytes.Equal(ta.Owner, d.Owner) {
		return token.ErrorOwnerMismatch
	}
	if !isSigner(m, d.Owner) {
		return errMissingRequiredSignature
	}
	if ta.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if !bytes.Equal(ta.Mint, d.Mint) {
		return token.ErrorMintMismatch
	}

	mint, err := getMint(state, d.Mint)
	if err != nil {
		return err
	}
	if mint.Decimals != d.Decimals {
		return token.ErrorMintDecimalsMismatch
	}

	ta.Delegate = d.Delegate
	ta.DelegatedAmount = d.Amount
	putTokenAccount(state, d.Source, ta)
	return nil
}

func revoke(state *overlay, m solana.Message, index int) error {
	d, err := token.DecompileRevoke(m, index)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	ta, err := getTokenAccount(state, d.Source)
	if err != nil {
		return err
	}
	if !bytes.Equal(ta.Owner, d.Owner) {
		return token.ErrorOwnerMismatch
	}
	if !isSigner(m, d.Owner) {
		return errMissingRequiredSignature
	}
	if ta.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}

	ta.Delegate = nil
	ta.DelegatedAmount = 0
	putTokenAccount(state, d.Source, ta)
	return nil
}

func closeAccount(state *overlay, m solana.Message, index int) error {
	d, err := token.DecompileCloseAccount(m, index)
	if err != nil {
		return token.ErrorInvalidInstruction
	}
	if bytes.Equal(d.Account, d.Destination) {
		return errInvalidArgument
	}

	ta, err := getTokenAccount(state, d.Account)
	if err != nil {
		return err
	}

	authority := ta.Owner
	if len(ta.CloseAuthority) > 0 {
		authority = ta.CloseAuthority
	}
	if !bytes.Equal(authority, d.Owner) {
		return token.ErrorOwnerMismatch
	}
	if !isSigner(m, d.Owner) {
		return errMissingRequiredSignature
	}
	if ta.Amount != 0 {
		return token.ErrorNonNativeHasBalance
	}

	closed := state.get(d.Account)
	dest := state.get(d.Destination)
	if dest == nil {
		dest = &account{owner: systemOwner()}
		state.put(d.Destination, dest)
	}
	dest.lamports += closed.lamports
	state.remove(d.Account)
	return nil
}
