package lifecycle

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	operation_memory_client "github.com/code-payments/token-lifecycle/pkg/data/operation/memory"
	"github.com/code-payments/token-lifecycle/pkg/database/query"
	"github.com/code-payments/token-lifecycle/pkg/notify"
	notify_memory "github.com/code-payments/token-lifecycle/pkg/notify/memory"
	"github.com/code-payments/token-lifecycle/pkg/rate"
	"github.com/code-payments/token-lifecycle/pkg/solana"
	solana_memory "github.com/code-payments/token-lifecycle/pkg/solana/memory"
	"github.com/code-payments/token-lifecycle/pkg/solana/system"
	"github.com/code-payments/token-lifecycle/pkg/solana/token"
	"github.com/code-payments/token-lifecycle/pkg/testutil"
	"github.com/code-payments/token-lifecycle/pkg/wallet"
	"github.com/code-payments/token-lifecycle/pkg/wallet/local"
)

const (
	quarksPerToken = 1_000_000_000
	solLamports    = 1_000_000_000
)

type testEnv struct {
	ctx          context.Context
	sc           *solana_memory.Client
	wallet       *local.Wallet
	owner        ed25519.PublicKey
	counterparty ed25519.PublicKey
	notifier     *notify_memory.Notifier
	history      operation.Store
	orchestrator *Orchestrator
}

func setup(t *testing.T, overrides *testOverrides) testEnv {
	key := testutil.GenerateSolanaKeypair(t)
	counterparty := testutil.GenerateSolanaKeys(t, 1)[0]

	if overrides == nil {
		overrides = &testOverrides{}
	}
	if len(overrides.counterparty) == 0 {
		overrides.counterparty = base58.Encode(counterparty)
	}

	env := testEnv{
		ctx:          context.Background(),
		sc:           solana_memory.NewClient(),
		wallet:       local.New(key),
		owner:        key.Public().(ed25519.PublicKey),
		counterparty: counterparty,
		notifier:     notify_memory.New(0),
		history:      operation_memory_client.New(),
	}
	env.sc.Fund(env.owner, 10*solLamports)
	env.sc.SetSlotDuration(2 * time.Millisecond)

	env.orchestrator = New(
		env.sc,
		env.wallet,
		env.notifier,
		env.history,
		solana.EnvironmentDev,
		rate.NewLocalRateLimiter(1),
		withManualTestOverrides(overrides),
	)
	env.orchestrator.blockhashPollRate = time.Millisecond
	return env
}

func (e testEnv) ata(t *testing.T, owner ed25519.PublicKey) ed25519.PublicKey {
	mint, ok := e.orchestrator.Mint()
	require.True(t, ok)

	ata, err := token.GetAssociatedAccount(owner, mint)
	require.NoError(t, err)
	return ata
}

func (e testEnv) tokenAccount(t *testing.T, owner ed25519.PublicKey) *token.Account {
	account, ok := e.sc.TokenAccount(e.ata(t, owner))
	require.True(t, ok)
	return account
}

func (e testEnv) assertLastNotification(t *testing.T, level notify.Level, message string) {
	recent := e.notifier.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, level, recent[0].Level)
	assert.Equal(t, message, recent[0].Message)
}

func (e testEnv) mustSucceed(t *testing.T, result *Result) {
	require.NoError(t, result.Err)
	require.True(t, result.Succeeded())
	require.NotNil(t, result.Signature)
}

func TestNoIdentity_NothingHappens(t *testing.T) {
	env := setup(t, nil)
	env.wallet.Disconnect()

	for _, op := range allOperations(env.orchestrator) {
		result := op(env.ctx)
		assert.True(t, result.Rejected())
		assert.Equal(t, wallet.ErrWalletNotConnected, result.Err)
		assert.Nil(t, result.Signature)
	}

	assert.Zero(t, env.sc.TotalCalls())
	assert.Empty(t, env.notifier.Recent(0))

	_, err := env.history.GetAllByOwner(env.ctx, base58.Encode(env.owner), nil, 10, query.Ascending)
	assert.Equal(t, operation.ErrNotFound, err)

	_, ok := env.orchestrator.Mint()
	assert.False(t, ok)
}

func TestNoMint_NoNetworkCalls(t *testing.T) {
	env := setup(t, nil)
	hook := testutil.CaptureLogs(t)

	for _, op := range []func(context.Context) *Result{
		env.orchestrator.MintTokens,
		env.orchestrator.SendTokens,
		env.orchestrator.BurnTokens,
		env.orchestrator.DelegateTokens,
		env.orchestrator.RevokeDelegate,
		env.orchestrator.CloseTokenAccount,
	} {
		result := op(env.ctx)
		assert.True(t, result.Rejected())
		assert.Equal(t, ErrMintNotSet, result.Err)
		assert.Equal(t, StageNone, result.Stage)
	}

	assert.Zero(t, env.sc.TotalCalls())
	assert.Empty(t, env.notifier.Recent(0))

	rejections := testutil.EntriesWithMessage(hook, "operation preconditions not met")
	require.Len(t, rejections, 6)
	for _, entry := range rejections {
		assert.Equal(t, ErrMintNotSet, entry.Data[logrus.ErrorKey])
	}

	_, err := env.orchestrator.TokenBalance(env.ctx)
	assert.Equal(t, ErrMintNotSet, err)
	_, err = env.orchestrator.MintSupply(env.ctx)
	assert.Equal(t, ErrMintNotSet, err)
}

func TestCreateToken(t *testing.T) {
	env := setup(t, nil)

	result := env.orchestrator.CreateToken(env.ctx)
	env.mustSucceed(t, result)
	assert.Equal(t, OperationCreateToken, result.Operation)

	mint, ok := env.orchestrator.Mint()
	require.True(t, ok)
	assert.EqualValues(t, mint, result.Mint)

	env.assertLastNotification(t, notify.LevelSuccess, fmt.Sprintf("Token created successfully! Mint: %s", base58.Encode(mint)))

	state, ok := env.sc.Mint(mint)
	require.True(t, ok)
	assert.True(t, state.IsInitialized)
	assert.EqualValues(t, 9, state.Decimals)
	assert.Zero(t, state.Supply)
	assert.EqualValues(t, env.owner, state.MintAuthority)
	assert.EqualValues(t, env.owner, state.FreezeAuthority)

	info, err := env.sc.GetAccountInfo(mint, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, token.ProgramKey, info.Owner)
	assert.EqualValues(t, 1461600, info.Lamports)
	assert.Len(t, info.Data, token.MintSize)

	assert.Equal(t, 1, env.sc.CallCount(solana_memory.MethodGetMinimumBalanceForRentExemption))
	assert.Equal(t, 1, env.sc.CallCount(solana_memory.MethodGetLatestBlockhash))
	assert.Equal(t, 1, env.sc.CallCount(solana_memory.MethodSendTransaction))
	assert.Equal(t, 1, env.sc.CallCount(solana_memory.MethodGetSignatureStatus))

	record, err := env.history.Get(env.ctx, result.Id.String())
	require.NoError(t, err)
	assert.Equal(t, operation.TypeCreateToken, record.Type)
	assert.Equal(t, operation.StateSucceeded, record.State)
	assert.Equal(t, base58.Encode(env.owner), record.Owner)
	require.NotNil(t, record.Mint)
	assert.Equal(t, base58.Encode(mint), *record.Mint)
	require.NotNil(t, record.Signature)
	assert.Equal(t, result.Signature.String(), *record.Signature)
}

func TestCreateToken_AlreadyCreated(t *testing.T) {
	env := setup(t, nil)

	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))
	mint, _ := env.orchestrator.Mint()

	calls := env.sc.TotalCalls()
	notifications := len(env.notifier.Recent(0))

	result := env.orchestrator.CreateToken(env.ctx)
	assert.True(t, result.Rejected())
	assert.Equal(t, ErrMintAlreadyCreated, result.Err)

	assert.Equal(t, calls, env.sc.TotalCalls())
	assert.Len(t, env.notifier.Recent(0), notifications)

	actual, ok := env.orchestrator.Mint()
	require.True(t, ok)
	assert.Equal(t, mint, actual)
}

func TestCreateToken_FailuresLeaveMintUnset(t *testing.T) {
	for _, tc := range []struct {
		name          string
		induce        func(sc *solana_memory.Client)
		stage         Stage
		withSignature bool
	}{
		{
			name: "rent",
			induce: func(sc *solana_memory.Client) {
				sc.SetError(solana_memory.MethodGetMinimumBalanceForRentExemption, errors.New("unavailable"))
			},
			stage: StageBuild,
		},
		{
			name: "blockhash",
			induce: func(sc *solana_memory.Client) {
				sc.SetError(solana_memory.MethodGetLatestBlockhash, errors.New("unavailable"))
			},
			stage: StageBuild,
		},
		{
			name: "submit",
			induce: func(sc *solana_memory.Client) {
				sc.SetError(solana_memory.MethodSendTransaction, errors.New("unavailable"))
			},
			stage: StageSubmit,
		},
		{
			name: "dropped",
			induce: func(sc *solana_memory.Client) {
				sc.DropTransactions(true)
			},
			stage:         StageConfirm,
			withSignature: true,
		},
		{
			name: "confirm",
			induce: func(sc *solana_memory.Client) {
				sc.SetError(solana_memory.MethodGetSignatureStatus, errors.New("unavailable"))
			},
			stage:         StageConfirm,
			withSignature: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t, nil)
			tc.induce(env.sc)

			result := env.orchestrator.CreateToken(env.ctx)
			assert.Equal(t, StatusFailed, result.Status)
			assert.Equal(t, tc.stage, result.Stage)
			assert.Error(t, result.Err)
			assert.Equal(t, tc.withSignature, result.Signature != nil)

			_, ok := env.orchestrator.Mint()
			assert.False(t, ok)

			env.assertLastNotification(t, notify.LevelFailure, "Failed to create token.")

			record, err := env.history.Get(env.ctx, result.Id.String())
			require.NoError(t, err)
			assert.Equal(t, operation.StateFailed, record.State)
			assert.Equal(t, tc.withSignature, record.Signature != nil)
		})
	}
}

func TestCreateToken_InsufficientFunds(t *testing.T) {
	env := setup(t, nil)

	key := testutil.GenerateSolanaKeypair(t)
	env.orchestrator.wallet = local.New(key)

	result := env.orchestrator.CreateToken(env.ctx)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageSubmit, result.Stage)

	_, ok := env.orchestrator.Mint()
	assert.False(t, ok)
}

func TestTokenLifecycle(t *testing.T) {
	env := setup(t, nil)

	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))
	mint, _ := env.orchestrator.Mint()

	// Minting twice exercises the idempotent account creation.
	for i := 1; i <= 2; i++ {
		result := env.orchestrator.MintTokens(env.ctx)
		env.mustSucceed(t, result)
		assert.EqualValues(t, 100*quarksPerToken, result.Amount)
		env.assertLastNotification(t, notify.LevelSuccess, "Tokens minted successfully!")

		account := env.tokenAccount(t, env.owner)
		assert.EqualValues(t, uint64(i)*100*quarksPerToken, account.Amount)
		assert.EqualValues(t, mint, account.Mint)
		assert.EqualValues(t, env.owner, account.Owner)
	}

	supply, err := env.orchestrator.MintSupply(env.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 200*quarksPerToken, supply.Supply)

	env.mustSucceed(t, env.orchestrator.SendTokens(env.ctx))
	env.assertLastNotification(t, notify.LevelSuccess, "Tokens sent successfully!")
	assert.EqualValues(t, 199*quarksPerToken, env.tokenAccount(t, env.owner).Amount)
	assert.EqualValues(t, quarksPerToken, env.tokenAccount(t, env.counterparty).Amount)

	// The counterparty account already exists the second time around.
	env.mustSucceed(t, env.orchestrator.SendTokens(env.ctx))
	assert.EqualValues(t, 2*quarksPerToken, env.tokenAccount(t, env.counterparty).Amount)

	env.mustSucceed(t, env.orchestrator.BurnTokens(env.ctx))
	env.assertLastNotification(t, notify.LevelSuccess, "Tokens burned successfully!")
	assert.EqualValues(t, 197*quarksPerToken, env.tokenAccount(t, env.owner).Amount)

	supply, err = env.orchestrator.MintSupply(env.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 199*quarksPerToken, supply.Supply)

	env.mustSucceed(t, env.orchestrator.DelegateTokens(env.ctx))
	env.assertLastNotification(t, notify.LevelSuccess, "Tokens delegated successfully!")
	account := env.tokenAccount(t, env.owner)
	assert.EqualValues(t, env.counterparty, account.Delegate)
	assert.EqualValues(t, quarksPerToken, account.DelegatedAmount)

	env.mustSucceed(t, env.orchestrator.RevokeDelegate(env.ctx))
	env.assertLastNotification(t, notify.LevelSuccess, "Tokens revoked successfully!")
	account = env.tokenAccount(t, env.owner)
	assert.Nil(t, account.Delegate)
	assert.Zero(t, account.DelegatedAmount)

	balance, err := env.orchestrator.TokenBalance(env.ctx)
	require.NoError(t, err)
	quarks, err := balance.Quarks()
	require.NoError(t, err)
	assert.EqualValues(t, 197*quarksPerToken, quarks)

	// Closing requires an empty account.
	result := env.orchestrator.CloseTokenAccount(env.ctx)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageConfirm, result.Stage)
	env.assertLastNotification(t, notify.LevelFailure, "Failed to close token account.")
	_, ok := env.sc.TokenAccount(env.ata(t, env.owner))
	assert.True(t, ok)

	actual, ok := env.orchestrator.Mint()
	require.True(t, ok)
	assert.Equal(t, mint, actual)

	records, err := env.history.GetAllByOwner(env.ctx, base58.Encode(env.owner), nil, 100, query.Ascending)
	require.NoError(t, err)
	require.Len(t, records, 9)
	assert.Equal(t, operation.TypeCreateToken, records[0].Type)
	assert.Equal(t, operation.TypeCloseTokenAccount, records[8].Type)
	assert.Equal(t, operation.StateFailed, records[8].State)

	succeeded, err := env.history.CountByState(env.ctx, base58.Encode(env.owner), operation.StateSucceeded)
	require.NoError(t, err)
	assert.EqualValues(t, 8, succeeded)
}

func TestCreateToken_ConcurrentCreateLogsOrphanedMint(t *testing.T) {
	env := setup(t, nil)
	hook := testutil.CaptureLogs(t)

	winner := testutil.GenerateSolanaKeys(t, 1)[0]
	env.orchestrator.wallet = &racingWallet{
		Wallet: env.wallet,
		race: func() {
			require.NoError(t, env.orchestrator.setMint(winner, 9))
		},
	}

	result := env.orchestrator.CreateToken(env.ctx)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageConfirm, result.Stage)
	assert.Equal(t, ErrMintAlreadyCreated, result.Err)
	require.NotNil(t, result.Signature)
	env.assertLastNotification(t, notify.LevelFailure, "Failed to create token.")

	// The losing mint exists on chain but is not tracked.
	orphan := result.Mint
	_, ok := env.sc.Mint(orphan)
	assert.True(t, ok)

	actual, ok := env.orchestrator.Mint()
	require.True(t, ok)
	assert.EqualValues(t, winner, actual)

	entries := testutil.EntriesWithMessage(hook, "created mint was not recorded")
	require.Len(t, entries, 1)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, base58.Encode(orphan), entries[0].Data["orphaned_mint"])
}

func TestBurnTokens_BackToBack(t *testing.T) {
	env := setup(t, nil)
	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))
	env.mustSucceed(t, env.orchestrator.MintTokens(env.ctx))

	// Hold the ledger on one slot so both burns see the same blockhash.
	env.sc.SetSlotDuration(0)
	env.orchestrator.blockhashPollRate = 20 * time.Millisecond

	first := env.orchestrator.BurnTokens(env.ctx)
	env.mustSucceed(t, first)

	polls := env.sc.CallCount(solana_memory.MethodGetLatestBlockhash)
	sends := env.sc.CallCount(solana_memory.MethodSendTransaction)

	done := make(chan *Result, 1)
	go func() {
		done <- env.orchestrator.BurnTokens(env.ctx)
	}()

	// The repeated burn waits for a new blockhash instead of resubmitting.
	require.Eventually(t, func() bool {
		return env.sc.CallCount(solana_memory.MethodGetLatestBlockhash) > polls+1
	}, time.Second, time.Millisecond)
	assert.Equal(t, sends, env.sc.CallCount(solana_memory.MethodSendTransaction))
	env.sc.AdvanceSlot()

	var second *Result
	select {
	case second = <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "second burn did not complete")
	}
	env.mustSucceed(t, second)
	assert.NotEqual(t, *first.Signature, *second.Signature)
	assert.Equal(t, sends+1, env.sc.CallCount(solana_memory.MethodSendTransaction))

	for _, sig := range []solana.Signature{*first.Signature, *second.Signature} {
		status, err := env.sc.GetSignatureStatus(sig, solana.CommitmentConfirmed)
		require.NoError(t, err)
		assert.True(t, status.Confirmed())
	}

	assert.EqualValues(t, 98*quarksPerToken, env.tokenAccount(t, env.owner).Amount)
	supply, err := env.orchestrator.MintSupply(env.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 98*quarksPerToken, supply.Supply)
}

func TestBurnTokens_RepeatedWithoutNewBlockhash(t *testing.T) {
	env := setup(t, nil)
	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))
	env.mustSucceed(t, env.orchestrator.MintTokens(env.ctx))

	env.sc.SetSlotDuration(0)
	env.mustSucceed(t, env.orchestrator.BurnTokens(env.ctx))

	sends := env.sc.CallCount(solana_memory.MethodSendTransaction)
	polls := env.sc.CallCount(solana_memory.MethodGetLatestBlockhash)

	result := env.orchestrator.BurnTokens(env.ctx)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageBuild, result.Stage)
	assert.Equal(t, ErrStaleBlockhash, result.Err)
	assert.Nil(t, result.Signature)
	env.assertLastNotification(t, notify.LevelFailure, "Failed to burn tokens.")

	assert.Equal(t, sends, env.sc.CallCount(solana_memory.MethodSendTransaction))
	assert.Equal(t, polls+maxBlockhashAttempts, env.sc.CallCount(solana_memory.MethodGetLatestBlockhash))
	assert.EqualValues(t, 99*quarksPerToken, env.tokenAccount(t, env.owner).Amount)

	record, err := env.history.Get(env.ctx, result.Id.String())
	require.NoError(t, err)
	assert.Equal(t, operation.StateFailed, record.State)
}

func TestBurnTokens_SubmitFailure(t *testing.T) {
	env := setup(t, nil)
	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))
	mint, _ := env.orchestrator.Mint()
	env.mustSucceed(t, env.orchestrator.MintTokens(env.ctx))

	env.sc.SetError(solana_memory.MethodSendTransaction, errors.New("unavailable"))

	result := env.orchestrator.BurnTokens(env.ctx)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageSubmit, result.Stage)
	assert.Error(t, result.Err)
	assert.Nil(t, result.Signature)
	env.assertLastNotification(t, notify.LevelFailure, "Failed to burn tokens.")

	actual, ok := env.orchestrator.Mint()
	require.True(t, ok)
	assert.Equal(t, mint, actual)
	assert.EqualValues(t, 100*quarksPerToken, env.tokenAccount(t, env.owner).Amount)

	record, err := env.history.Get(env.ctx, result.Id.String())
	require.NoError(t, err)
	assert.Equal(t, operation.TypeBurnTokens, record.Type)
	assert.Equal(t, operation.StateFailed, record.State)
	assert.Nil(t, record.Signature)
}

func TestCloseTokenAccount(t *testing.T) {
	env := setup(t, &testOverrides{
		mintAmount:     1,
		transferAmount: 1,
	})

	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))
	env.mustSucceed(t, env.orchestrator.MintTokens(env.ctx))
	env.mustSucceed(t, env.orchestrator.BurnTokens(env.ctx))

	ata := env.ata(t, env.owner)
	before, err := env.sc.GetBalance(env.owner)
	require.NoError(t, err)

	result := env.orchestrator.CloseTokenAccount(env.ctx)
	env.mustSucceed(t, result)
	env.assertLastNotification(t, notify.LevelSuccess, "Token account closed successfully!")

	_, ok := env.sc.TokenAccount(ata)
	assert.False(t, ok)

	after, err := env.sc.GetBalance(env.owner)
	require.NoError(t, err)
	assert.EqualValues(t, before+2039280-solana_memory.LamportsPerSignature, after)

	// The mint outlives the account, and minting recreates it.
	env.mustSucceed(t, env.orchestrator.MintTokens(env.ctx))
	assert.EqualValues(t, quarksPerToken, env.tokenAccount(t, env.owner).Amount)
}

func TestOperations_OnChainFailure(t *testing.T) {
	env := setup(t, nil)
	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))

	// No token account exists yet, so none of these can succeed.
	for _, tc := range []struct {
		op      func(context.Context) *Result
		message string
	}{
		{env.orchestrator.SendTokens, "Failed to send tokens."},
		{env.orchestrator.BurnTokens, "Failed to burn tokens."},
		{env.orchestrator.DelegateTokens, "Failed to delegate tokens."},
		{env.orchestrator.RevokeDelegate, "Failed to revoke tokens."},
		{env.orchestrator.CloseTokenAccount, "Failed to close token account."},
	} {
		result := tc.op(env.ctx)
		assert.Equal(t, StatusFailed, result.Status)
		assert.Equal(t, StageConfirm, result.Stage)
		require.NotNil(t, result.Signature)
		env.assertLastNotification(t, notify.LevelFailure, tc.message)
	}

	failed, err := env.history.CountByState(env.ctx, base58.Encode(env.owner), operation.StateFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 5, failed)
}

func TestSendTokens_InvalidCounterparty(t *testing.T) {
	env := setup(t, &testOverrides{counterparty: "not-an-address"})
	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))
	env.mustSucceed(t, env.orchestrator.MintTokens(env.ctx))

	calls := env.sc.TotalCalls()

	for _, op := range []func(context.Context) *Result{
		env.orchestrator.SendTokens,
		env.orchestrator.DelegateTokens,
	} {
		result := op(env.ctx)
		assert.Equal(t, StatusFailed, result.Status)
		assert.Equal(t, StageBuild, result.Stage)
		assert.Nil(t, result.Signature)
	}

	assert.Equal(t, calls, env.sc.TotalCalls())
}

func TestTransaction_Layout(t *testing.T) {
	env := setup(t, nil)

	sc := &recordingClient{Client: env.sc}
	env.orchestrator.sc = sc

	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))
	mint, _ := env.orchestrator.Mint()

	txn := sc.last
	require.Len(t, txn.Message.Instructions, 2)
	assert.EqualValues(t, env.owner, txn.Message.Accounts[0])
	assert.True(t, txn.IsSigned())

	create, err := system.DecompileCreateAccount(txn.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, env.owner, create.Funder)
	assert.EqualValues(t, mint, create.Address)
	assert.EqualValues(t, token.ProgramKey, create.Owner)
	assert.EqualValues(t, token.MintSize, create.Size)

	initialize, err := token.DecompileInitializeMint(txn.Message, 1)
	require.NoError(t, err)
	assert.EqualValues(t, mint, initialize.Mint)
	assert.EqualValues(t, 9, initialize.Decimals)

	env.mustSucceed(t, env.orchestrator.MintTokens(env.ctx))
	require.Len(t, sc.last.Message.Instructions, 2)
	mintTo, err := token.DecompileMintToChecked(sc.last.Message, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 100*quarksPerToken, mintTo.Amount)
	assert.EqualValues(t, 9, mintTo.Decimals)
	assert.EqualValues(t, env.ata(t, env.owner), mintTo.Destination)

	env.mustSucceed(t, env.orchestrator.SendTokens(env.ctx))
	transfer, err := token.DecompileTransfer(sc.last.Message, 1)
	require.NoError(t, err)
	assert.EqualValues(t, quarksPerToken, transfer.Amount)
	assert.EqualValues(t, env.ata(t, env.counterparty), transfer.Destination)
	assert.EqualValues(t, env.owner, transfer.Owner)

	env.mustSucceed(t, env.orchestrator.DelegateTokens(env.ctx))
	approve, err := token.DecompileApproveChecked(sc.last.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, env.counterparty, approve.Delegate)
	assert.EqualValues(t, quarksPerToken, approve.Amount)

	env.mustSucceed(t, env.orchestrator.BurnTokens(env.ctx))
	require.Len(t, sc.last.Message.Instructions, 1)
	burn, err := token.DecompileBurnChecked(sc.last.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, env.ata(t, env.owner), burn.Account)
	assert.EqualValues(t, mint, burn.Mint)
	assert.EqualValues(t, env.owner, burn.Owner)
	assert.EqualValues(t, quarksPerToken, burn.Amount)
	assert.EqualValues(t, 9, burn.Decimals)

	env.mustSucceed(t, env.orchestrator.RevokeDelegate(env.ctx))
	require.Len(t, sc.last.Message.Instructions, 1)
	revoke, err := token.DecompileRevoke(sc.last.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, env.ata(t, env.owner), revoke.Source)
	assert.EqualValues(t, env.owner, revoke.Owner)

	// The account still holds tokens, so only the layout is of interest.
	env.orchestrator.CloseTokenAccount(env.ctx)
	require.Len(t, sc.last.Message.Instructions, 1)
	closeAccount, err := token.DecompileCloseAccount(sc.last.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, env.ata(t, env.owner), closeAccount.Account)
	assert.EqualValues(t, env.owner, closeAccount.Destination)
	assert.EqualValues(t, env.owner, closeAccount.Owner)
}

func TestAirdrop(t *testing.T) {
	env := setup(t, nil)

	before, err := env.orchestrator.Balance(env.ctx)
	require.NoError(t, err)

	result := env.orchestrator.Airdrop(env.ctx, 0)
	env.mustSucceed(t, result)
	assert.EqualValues(t, defaultAirdropLamports, result.Amount)
	env.assertLastNotification(t, notify.LevelSuccess, "Airdrop received!")

	after, err := env.orchestrator.Balance(env.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, before+defaultAirdropLamports, after)

	calls := env.sc.TotalCalls()
	result = env.orchestrator.Airdrop(env.ctx, 0)
	assert.True(t, result.Rejected())
	assert.Equal(t, ErrAirdropRateLimited, result.Err)
	assert.Equal(t, calls, env.sc.TotalCalls())

	record, err := env.history.Get(env.ctx, result.Id.String())
	assert.Equal(t, operation.ErrNotFound, err)
	assert.Nil(t, record)
}

func TestAirdrop_Failures(t *testing.T) {
	env := setup(t, nil)
	env.orchestrator.env = solana.EnvironmentProd

	result := env.orchestrator.Airdrop(env.ctx, solLamports)
	assert.True(t, result.Rejected())
	assert.Equal(t, ErrAirdropNotSupported, result.Err)
	assert.Zero(t, env.sc.TotalCalls())

	env.orchestrator.env = solana.EnvironmentDev
	env.sc.SetError(solana_memory.MethodRequestAirdrop, errors.New("faucet dry"))

	result = env.orchestrator.Airdrop(env.ctx, solLamports)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageSubmit, result.Stage)
	env.assertLastNotification(t, notify.LevelFailure, "Failed to request airdrop.")
}

func TestAirdrop_CustomEndpointOnMainnet(t *testing.T) {
	env := setup(t, nil)
	env.orchestrator.env = solana.Environment("https://rpc.example.com")
	env.sc.SetGenesisHash(solana.GenesisHashMainnet)

	for i := 0; i < 2; i++ {
		result := env.orchestrator.Airdrop(env.ctx, solLamports)
		assert.True(t, result.Rejected())
		assert.Equal(t, ErrAirdropNotSupported, result.Err)
	}

	// The cluster is identified once.
	assert.Equal(t, 1, env.sc.CallCount(solana_memory.MethodGetGenesisHash))
	assert.Zero(t, env.sc.CallCount(solana_memory.MethodRequestAirdrop))
	assert.Empty(t, env.notifier.Recent(0))
}

func TestAirdrop_UnknownCluster(t *testing.T) {
	env := setup(t, nil)
	env.sc.SetError(solana_memory.MethodGetGenesisHash, errors.New("unavailable"))

	result := env.orchestrator.Airdrop(env.ctx, solLamports)
	assert.True(t, result.Rejected())
	assert.Error(t, result.Err)
	assert.Zero(t, env.sc.CallCount(solana_memory.MethodRequestAirdrop))

	// Lookup failures are not remembered.
	env.sc.SetError(solana_memory.MethodGetGenesisHash, nil)
	env.mustSucceed(t, env.orchestrator.Airdrop(env.ctx, solLamports))
	assert.Equal(t, 2, env.sc.CallCount(solana_memory.MethodGetGenesisHash))
}

func TestHistoryFailureDoesNotChangeResult(t *testing.T) {
	env := setup(t, nil)
	env.orchestrator.history = &failingStore{Store: env.history}

	result := env.orchestrator.CreateToken(env.ctx)
	env.mustSucceed(t, result)

	_, ok := env.orchestrator.Mint()
	assert.True(t, ok)
}

func TestToQuarks(t *testing.T) {
	actual, err := toQuarks(100, 9)
	require.NoError(t, err)
	assert.EqualValues(t, 100_000_000_000, actual)

	actual, err = toQuarks(7, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, actual)

	_, err = toQuarks(100, 19)
	assert.Error(t, err)
}

func TestParseOperation(t *testing.T) {
	for op := OperationCreateToken; op <= OperationAirdrop; op++ {
		actual, ok := ParseOperation(op.String())
		require.True(t, ok)
		assert.Equal(t, op, actual)
		assert.NotEqual(t, operation.TypeUnknown, op.toRecordType())

		_, ok = messages[op]
		assert.True(t, ok)
	}

	_, ok := ParseOperation("mint-and-run")
	assert.False(t, ok)
}

func allOperations(o *Orchestrator) []func(context.Context) *Result {
	return []func(context.Context) *Result{
		o.CreateToken,
		o.MintTokens,
		o.SendTokens,
		o.BurnTokens,
		o.DelegateTokens,
		o.RevokeDelegate,
		o.CloseTokenAccount,
		func(ctx context.Context) *Result { return o.Airdrop(ctx, 0) },
	}
}

// racingWallet runs race before submitting, standing in for a concurrent
// operation that completes first.
type racingWallet struct {
	wallet.Wallet
	race func()
}

func (w *racingWallet) SendTransaction(ctx context.Context, txn *solana.Transaction, sc solana.Client, opts ...wallet.SendOption) (solana.Signature, error) {
	w.race()
	return w.Wallet.SendTransaction(ctx, txn, sc, opts...)
}

type recordingClient struct {
	*solana_memory.Client
	last solana.Transaction
}

func (c *recordingClient) SubmitTransaction(txn solana.Transaction, commitment solana.Commitment) (solana.Signature, error) {
	c.last = txn
	return c.Client.SubmitTransaction(txn, commitment)
}

type failingStore struct {
	operation.Store
}

func (s *failingStore) Put(_ context.Context, _ *operation.Record) error {
	return errors.New("database unavailable")
}

func TestCreateToken_RentIsCached(t *testing.T) {
	env := setup(t, nil)

	env.sc.SetError(solana_memory.MethodSendTransaction, errors.New("unavailable"))
	result := env.orchestrator.CreateToken(env.ctx)
	require.Equal(t, StatusFailed, result.Status)

	env.sc.SetError(solana_memory.MethodSendTransaction, nil)
	env.mustSucceed(t, env.orchestrator.CreateToken(env.ctx))

	assert.Equal(t, 1, env.sc.CallCount(solana_memory.MethodGetMinimumBalanceForRentExemption))
	assert.Equal(t, 2, env.sc.CallCount(solana_memory.MethodSendTransaction))
}
