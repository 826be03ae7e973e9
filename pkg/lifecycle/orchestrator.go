// Package lifecycle drives a single SPL token through its lifecycle on behalf
// of a connected wallet: create, mint, send, burn, delegate, revoke and close.
package lifecycle

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-lifecycle/pkg/cache"
	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	"github.com/code-payments/token-lifecycle/pkg/metrics"
	"github.com/code-payments/token-lifecycle/pkg/notify"
	"github.com/code-payments/token-lifecycle/pkg/pointer"
	"github.com/code-payments/token-lifecycle/pkg/rate"
	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/token"
	"github.com/code-payments/token-lifecycle/pkg/wallet"
)

const (
	metricsStructName = "lifecycle.orchestrator"

	operationEventName    = "TokenLifecycleOperation"
	operationDurationName = "TokenLifecycleOperationDuration"

	rentCacheBudget = 16

	// Roughly the lifetime of a blockhash at one operation per slot.
	submittedCacheBudget = 256

	maxBlockhashAttempts = 16
)

var (
	ErrMintNotSet          = errors.New("no token has been created")
	ErrMintAlreadyCreated  = errors.New("a token has already been created")
	ErrAirdropNotSupported = errors.New("airdrops are not supported on this cluster")
	ErrAirdropRateLimited  = errors.New("too many airdrop requests")

	ErrStaleBlockhash = errors.New("no new blockhash for a repeated transaction")
)

// Orchestrator runs token lifecycle operations for the identity of a wallet.
//
// The mint is absent until CreateToken succeeds and never changes afterwards.
// Operations are not serialized against each other; each one reads the mint
// once, up front.
type Orchestrator struct {
	log  *logrus.Entry
	conf *conf

	sc       solana.Client
	tc       *token.Client
	wallet   wallet.Wallet
	notifier notify.Notifier
	history  operation.Store

	env            solana.Environment
	airdropLimiter rate.Limiter

	// Rent exempt minimums only change with a cluster upgrade.
	rentCache cache.Cache[uint64]

	// Digests of messages already handed to the wallet. Signing the same
	// message again yields a signature the cluster has already processed.
	submitted         cache.Cache[struct{}]
	blockhashPollRate time.Duration

	genesisMu   sync.Mutex
	genesisHash string

	mintMu       sync.RWMutex
	mint         ed25519.PublicKey
	mintDecimals uint8
}

func New(
	sc solana.Client,
	w wallet.Wallet,
	notifier notify.Notifier,
	history operation.Store,
	env solana.Environment,
	airdropLimiter rate.Limiter,
	configProvider ConfigProvider,
) *Orchestrator {
	return &Orchestrator{
		log:               logrus.StandardLogger().WithField("type", "lifecycle/orchestrator"),
		conf:              configProvider(),
		sc:                sc,
		tc:                token.NewClient(sc),
		wallet:            w,
		notifier:          notifier,
		history:           history,
		env:               env,
		airdropLimiter:    airdropLimiter,
		rentCache:         cache.New[uint64](rentCacheBudget),
		submitted:         cache.New[struct{}](submittedCacheBudget),
		blockhashPollRate: solana.PollRate,
	}
}

// Mint returns the token created by this orchestrator, if any.
func (o *Orchestrator) Mint() (ed25519.PublicKey, bool) {
	o.mintMu.RLock()
	defer o.mintMu.RUnlock()

	if o.mint == nil {
		return nil, false
	}
	return o.mint, true
}

func (o *Orchestrator) mintState() (ed25519.PublicKey, uint8, bool) {
	o.mintMu.RLock()
	defer o.mintMu.RUnlock()

	return o.mint, o.mintDecimals, o.mint != nil
}

// setMint records a newly created mint. It is the only writer of the mint.
func (o *Orchestrator) setMint(mint ed25519.PublicKey, decimals uint8) error {
	o.mintMu.Lock()
	defer o.mintMu.Unlock()

	if o.mint != nil {
		return ErrMintAlreadyCreated
	}

	o.mint = mint
	o.mintDecimals = decimals
	return nil
}

// Counterparty returns the configured recipient of sends and delegations.
func (o *Orchestrator) Counterparty(ctx context.Context) (ed25519.PublicKey, error) {
	counterparty, err := solana.PublicKeyFromBase58(o.conf.counterparty.Get(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "invalid counterparty")
	}
	return counterparty, nil
}

// Owner returns the connected identity, if any.
func (o *Orchestrator) Owner() (ed25519.PublicKey, bool) {
	return o.wallet.PublicKey()
}

// TokenBalance returns the balance of the connected identity's associated
// token account for the mint.
func (o *Orchestrator) TokenBalance(ctx context.Context) (solana.TokenAmount, error) {
	owner, ok := o.wallet.PublicKey()
	if !ok {
		return solana.TokenAmount{}, wallet.ErrWalletNotConnected
	}

	mint, ok := o.Mint()
	if !ok {
		return solana.TokenAmount{}, ErrMintNotSet
	}

	ata, err := token.GetAssociatedAccount(owner, mint)
	if err != nil {
		return solana.TokenAmount{}, err
	}

	return o.sc.GetTokenAccountBalance(ata, o.commitment(ctx))
}

// MintSupply returns the current state of the mint.
func (o *Orchestrator) MintSupply(ctx context.Context) (*token.Mint, error) {
	mint, ok := o.Mint()
	if !ok {
		return nil, ErrMintNotSet
	}
	return o.tc.GetMint(mint, o.commitment(ctx))
}

func (o *Orchestrator) rentExemptMinimum(size uint64) (uint64, error) {
	key := strconv.FormatUint(size, 10)
	if lamports, ok := o.rentCache.Retrieve(key); ok {
		return lamports, nil
	}

	lamports, err := o.sc.GetMinimumBalanceForRentExemption(size)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rent exempt minimum")
	}

	// A concurrent lookup may have inserted it first, which is fine.
	_ = o.rentCache.Insert(key, lamports, 1)
	return lamports, nil
}

// onMainnet reports whether the client is connected to mainnet-beta. The
// genesis hash is fetched once, since an endpoint cannot change clusters.
func (o *Orchestrator) onMainnet() (bool, error) {
	o.genesisMu.Lock()
	defer o.genesisMu.Unlock()

	if len(o.genesisHash) == 0 {
		hash, err := o.sc.GetGenesisHash()
		if err != nil {
			return false, errors.Wrap(err, "failed to get genesis hash")
		}
		o.genesisHash = hash
	}
	return solana.IsMainnet(o.genesisHash), nil
}

func (o *Orchestrator) commitment(ctx context.Context) solana.Commitment {
	commitment, err := solana.ParseCommitment(o.conf.commitment.Get(ctx))
	if err != nil {
		return solana.CommitmentConfirmed
	}
	return commitment
}

// plan is a fully built operation, ready to be signed and submitted.
type plan struct {
	mint         ed25519.PublicKey
	counterparty ed25519.PublicKey
	amount       uint64
	instructions []solana.Instruction
	signers      []ed25519.PrivateKey

	// send replaces the wallet submission for operations that are not
	// transactions built by the orchestrator.
	send        func(commitment solana.Commitment) (solana.Signature, error)
	onConfirmed func() error
}

// builder builds the plan of an operation once its preconditions hold. Any
// error it returns fails the operation at the build stage.
type builder func(ctx context.Context, owner ed25519.PublicKey) (*plan, error)

// precondition checks operation specific requirements. A returned error
// rejects the operation before anything is submitted.
type precondition func() error

func requireMint(o *Orchestrator) precondition {
	return func() error {
		if _, ok := o.Mint(); !ok {
			return ErrMintNotSet
		}
		return nil
	}
}

func requireNoMint(o *Orchestrator) precondition {
	return func() error {
		if _, ok := o.Mint(); ok {
			return ErrMintAlreadyCreated
		}
		return nil
	}
}

// run executes op: preconditions, build, submit through the wallet, and
// wait for the configured commitment. Every outcome past the preconditions
// is notified and recorded.
func (o *Orchestrator) run(ctx context.Context, op Operation, check precondition, build builder) *Result {
	trace := metrics.StartTrace(ctx, metricsStructName, op.String())
	defer trace.End()

	result := &Result{
		Id:        uuid.New(),
		Operation: op,
	}

	log := o.log.WithFields(logrus.Fields{
		"method":       op.String(),
		"operation_id": result.Id.String(),
	})

	owner, ok := o.wallet.PublicKey()
	if !ok {
		return o.reject(log, result, wallet.ErrWalletNotConnected)
	}
	log = log.WithField("owner", base58.Encode(owner))

	if check != nil {
		if err := check(); err != nil {
			return o.reject(log, result, err)
		}
	}

	commitment := o.commitment(ctx)

	p, err := build(ctx, owner)
	if err == nil {
		result.Mint = p.mint
		result.Amount = p.amount
		err = o.submit(ctx, owner, p, commitment, result)
	} else {
		result.Stage = StageBuild
		err = errors.Wrap(err, "failed to build transaction")
	}

	if err == nil && p.onConfirmed != nil {
		if err = p.onConfirmed(); err != nil {
			result.Stage = StageConfirm
		}
	}

	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		trace.Fail(err)

		log.WithError(err).WithField("stage", string(result.Stage)).Warn("operation failed")
		o.notifier.Failure(ctx, messages[op].failure)
	} else {
		result.Status = StatusSucceeded
		result.Stage = StageNone

		log.WithField("signature", result.Signature.String()).Info("operation succeeded")
		o.notifier.Success(ctx, o.successMessage(op, p))
	}

	o.record(ctx, log, owner, p, result)
	o.observe(ctx, trace, result)
	return result
}

func (o *Orchestrator) submit(ctx context.Context, owner ed25519.PublicKey, p *plan, commitment solana.Commitment, result *Result) error {
	if p.send != nil {
		sig, err := p.send(commitment)
		if err != nil {
			result.Stage = StageSubmit
			return err
		}
		result.Signature = &sig
		return o.confirm(sig, commitment, result)
	}

	txn, err := o.newTransaction(ctx, owner, p)
	if err != nil {
		result.Stage = StageBuild
		return err
	}

	sig, err := o.wallet.SendTransaction(
		ctx,
		txn,
		o.sc,
		wallet.WithSigners(p.signers...),
		wallet.WithCommitment(commitment),
	)
	if err != nil {
		result.Stage = StageSubmit
		return err
	}
	result.Signature = &sig

	return o.confirm(sig, commitment, result)
}

// newTransaction builds the transaction for p against the latest blockhash,
// waiting for a new one when the same message was already submitted.
func (o *Orchestrator) newTransaction(ctx context.Context, owner ed25519.PublicKey, p *plan) (*solana.Transaction, error) {
	for attempt := 0; attempt < maxBlockhashAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.blockhashPollRate):
			}
		}

		bh, err := o.sc.GetLatestBlockhash()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get latest blockhash")
		}

		txn := solana.NewTransaction(owner, p.instructions...)
		txn.SetBlockhash(bh)

		digest := sha256.Sum256(txn.Message.Marshal())
		err = o.submitted.Insert(base58.Encode(digest[:]), struct{}{}, 1)
		if err == nil {
			return &txn, nil
		}
		if err != cache.ErrKeyExists {
			return nil, err
		}

		o.log.WithFields(logrus.Fields{
			"blockhash": base58.Encode(bh[:]),
			"attempt":   attempt + 1,
		}).Debug("message already submitted, waiting for a new blockhash")
	}
	return nil, ErrStaleBlockhash
}

func (o *Orchestrator) confirm(sig solana.Signature, commitment solana.Commitment, result *Result) error {
	status, err := o.sc.GetSignatureStatus(sig, commitment)
	if err != nil {
		result.Stage = StageConfirm
		return errors.Wrapf(err, "failed to confirm transaction %s", sig)
	}
	if status == nil || !status.Reached(commitment) {
		result.Stage = StageConfirm
		return errors.Errorf("transaction %s did not reach %s commitment", sig, commitment.Commitment)
	}
	if status.ErrorResult != nil {
		result.Stage = StageConfirm
		return errors.Wrapf(status.ErrorResult, "transaction %s failed", sig)
	}
	return nil
}

func (o *Orchestrator) reject(log *logrus.Entry, result *Result, err error) *Result {
	log.WithError(err).Info("operation preconditions not met")

	result.Status = StatusRejected
	result.Err = err
	return result
}

func (o *Orchestrator) successMessage(op Operation, p *plan) string {
	if op == OperationCreateToken {
		return fmt.Sprintf(messages[op].success, base58.Encode(p.mint))
	}
	return messages[op].success
}

// record stores the outcome in the operation history. Failures to do so are
// logged and do not change the result.
func (o *Orchestrator) record(ctx context.Context, log *logrus.Entry, owner ed25519.PublicKey, p *plan, result *Result) {
	record := &operation.Record{
		OperationId: result.Id.String(),
		Type:        result.Operation.toRecordType(),
		Owner:       base58.Encode(owner),
		Quantity:    result.Amount,
		State:       operation.StateFailed,
	}
	if result.Succeeded() {
		record.State = operation.StateSucceeded
	}
	if len(result.Mint) > 0 {
		record.Mint = pointer.String(base58.Encode(result.Mint))
	}
	if p != nil && len(p.counterparty) > 0 {
		record.Counterparty = pointer.String(base58.Encode(p.counterparty))
	}
	if result.Signature != nil {
		record.Signature = pointer.String(result.Signature.String())
	}

	if err := o.history.Put(ctx, record); err != nil {
		log.WithError(err).Warn("failure recording operation history")
	}
}

func (o *Orchestrator) observe(ctx context.Context, trace *metrics.Trace, result *Result) {
	attributes := map[string]interface{}{
		"operation": result.Operation.String(),
		"status":    result.Status.String(),
		"stage":     string(result.Stage),
	}

	trace.AddAttributes(attributes)
	metrics.RecordEvent(ctx, operationEventName, attributes)
	metrics.RecordDuration(ctx, operationDurationName, trace.Elapsed())
}

// toQuarks converts a whole token amount to base units.
func toQuarks(whole uint64, decimals uint8) (uint64, error) {
	quarks := whole
	for i := uint8(0); i < decimals; i++ {
		if quarks > math.MaxUint64/10 {
			return 0, errors.Errorf("%d tokens with %d decimals overflows", whole, decimals)
		}
		quarks *= 10
	}
	return quarks, nil
}
