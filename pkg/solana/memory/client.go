// Package memory provides an in memory solana.Client that executes the
// system, associated token account and token program instructions used by
// this module against a local ledger.
package memory

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"strconv"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/token"
)

// RPC method names, used to count calls and induce errors.
const (
	MethodGetAccountInfo                    = "getAccountInfo"
	MethodGetBalance                        = "getBalance"
	MethodGetGenesisHash                    = "getGenesisHash"
	MethodGetLatestBlockhash                = "getLatestBlockhash"
	MethodGetMinimumBalanceForRentExemption = "getMinimumBalanceForRentExemption"
	MethodGetSignatureStatus                = "getSignatureStatus"
	MethodGetSignatureStatuses              = "getSignatureStatuses"
	MethodGetSlot                           = "getSlot"
	MethodGetTokenAccountBalance            = "getTokenAccountBalance"
	MethodRequestAirdrop                    = "requestAirdrop"
	MethodSendTransaction                   = "sendTransaction"
)

const (
	// LamportsPerSignature is the fee charged to the payer per signature.
	LamportsPerSignature = 5000

	// Reference: https://github.com/solana-labs/solana/blob/e9e74a3ea2a9c21b3dba3ee54cdb03d8d6d5b08c/sdk/program/src/rent.rs
	lamportsPerByteYear    = 3480
	exemptionThreshold     = 2
	accountStorageOverhead = 128

	// DefaultSlotDuration matches the target slot time of a cluster.
	DefaultSlotDuration = 400 * time.Millisecond
)

type account struct {
	lamports uint64
	owner    ed25519.PublicKey
	data     []byte
}

func (a *account) clone() *account {
	return &account{
		lamports: a.lamports,
		owner:    append(ed25519.PublicKey{}, a.owner...),
		data:     append([]byte{}, a.data...),
	}
}

// Client is an in memory solana.Client. Transactions apply atomically and
// are confirmed as soon as they are submitted, unless dropping is enabled.
//
// Slots advance with the wall clock and each slot has a single blockhash, so
// an identical transaction submitted twice within a slot is rejected as
// already processed.
type Client struct {
	mu           sync.Mutex
	accounts     map[string]*account
	statuses     map[solana.Signature]*solana.SignatureStatus
	blockhashes  map[solana.Blockhash]struct{}
	latest       solana.Blockhash
	slot         uint64
	slotStart    time.Time
	slotDuration time.Duration
	genesisHash  string
	drop         bool

	calls map[string]int
	errs  map[string]error
}

func NewClient() *Client {
	c := &Client{
		accounts:     make(map[string]*account),
		statuses:     make(map[solana.Signature]*solana.SignatureStatus),
		blockhashes:  make(map[solana.Blockhash]struct{}),
		slot:         1,
		slotStart:    time.Now(),
		slotDuration: DefaultSlotDuration,
		genesisHash:  solana.GenesisHashDevnet,
		calls:        make(map[string]int),
		errs:         make(map[string]error),
	}
	c.advanceBlockhash()
	return c
}

// Fund credits lamports to a system owned account, creating it if needed.
func (c *Client) Fund(pub ed25519.PublicKey, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fund(pub, lamports)
}

// SetSlotDuration changes how quickly slots advance. A non-positive duration
// stops the clock, leaving AdvanceSlot as the only way to move forward.
func (c *Client) SetSlotDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick()
	c.slotDuration = d
	c.slotStart = time.Now()
}

// AdvanceSlot moves to the next slot, producing a new blockhash.
func (c *Client) AdvanceSlot() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slot++
	c.slotStart = time.Now()
	c.advanceBlockhash()
}

// SetGenesisHash changes the cluster the ledger claims to be.
func (c *Client) SetGenesisHash(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.genesisHash = hash
}

// SetError makes every subsequent call to method fail with err. A nil err
// clears it.
func (c *Client) SetError(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.errs, method)
		return
	}
	c.errs[method] = err
}

// DropTransactions controls whether submitted transactions silently never
// land, as happens when a blockhash expires before a leader sees them.
func (c *Client) DropTransactions(drop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drop = drop
}

// CallCount returns the number of calls made to method.
func (c *Client) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[method]
}

// TotalCalls returns the number of calls made across all methods.
func (c *Client) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int
	for _, n := range c.calls {
		total += n
	}
	return total
}

// TokenAccount returns the decoded token account at pub.
func (c *Client) TokenAccount(pub ed25519.PublicKey) (*token.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.accounts[key(pub)]
	if !ok {
		return nil, false
	}

	ta, err := decodeTokenAccount(a)
	return ta, err == nil
}

// Mint returns the decoded mint at pub.
func (c *Client) Mint(pub ed25519.PublicKey) (*token.Mint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.accounts[key(pub)]
	if !ok {
		return nil, false
	}

	m, err := decodeMint(a)
	return m, err == nil
}

// call records a call to method and returns its induced error, if any. The
// caller must hold mu.
func (c *Client) call(method string) error {
	c.tick()
	c.calls[method]++
	return c.errs[method]
}

func (c *Client) GetAccountInfo(pub ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetAccountInfo); err != nil {
		return solana.AccountInfo{}, err
	}

	a, ok := c.accounts[key(pub)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	return solana.AccountInfo{
		Data:     append([]byte{}, a.data...),
		Owner:    append(ed25519.PublicKey{}, a.owner...),
		Lamports: a.lamports,
	}, nil
}

func (c *Client) GetBalance(pub ed25519.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetBalance); err != nil {
		return 0, err
	}

	if a, ok := c.accounts[key(pub)]; ok {
		return a.lamports, nil
	}
	return 0, nil
}

func (c *Client) GetGenesisHash() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetGenesisHash); err != nil {
		return "", err
	}
	return c.genesisHash, nil
}

func (c *Client) GetLatestBlockhash() (solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetLatestBlockhash); err != nil {
		return solana.Blockhash{}, err
	}
	return c.latest, nil
}

func (c *Client) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetMinimumBalanceForRentExemption); err != nil {
		return 0, err
	}
	return rentExemptMinimum(size), nil
}

func (c *Client) GetSignatureStatus(sig solana.Signature, _ solana.Commitment) (*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetSignatureStatus); err != nil {
		return nil, err
	}

	s, ok := c.statuses[sig]
	if !ok {
		return nil, solana.ErrSignatureNotFound
	}

	status := *s
	if status.ErrorResult != nil {
		return &status, status.ErrorResult
	}
	return &status, nil
}

func (c *Client) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetSignatureStatuses); err != nil {
		return nil, err
	}

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if s, ok := c.statuses[sig]; ok {
			status := *s
			statuses[i] = &status
		}
	}
	return statuses, nil
}

func (c *Client) GetSlot(_ solana.Commitment) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetSlot); err != nil {
		return 0, err
	}
	return c.slot, nil
}

func (c *Client) GetTokenAccountBalance(pub ed25519.PublicKey, _ solana.Commitment) (solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodGetTokenAccountBalance); err != nil {
		return solana.TokenAmount{}, err
	}

	ta, err := decodeTokenAccount(c.accounts[key(pub)])
	if err != nil {
		return solana.TokenAmount{}, solana.ErrNoBalance
	}
	mint, err := decodeMint(c.accounts[key(ta.Mint)])
	if err != nil {
		return solana.TokenAmount{}, solana.ErrNoBalance
	}

	return solana.TokenAmount{
		Amount:   strconv.FormatUint(ta.Amount, 10),
		Decimals: mint.Decimals,
	}, nil
}

func (c *Client) RequestAirdrop(pub ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodRequestAirdrop); err != nil {
		return solana.Signature{}, err
	}

	var sig solana.Signature
	if _, err := rand.Read(sig[:]); err != nil {
		return sig, errors.Wrap(err, "failed to generate airdrop signature")
	}

	c.fund(pub, lamports)
	c.land(sig, nil)
	return sig, nil
}

func (c *Client) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(MethodSendTransaction); err != nil {
		return solana.Signature{}, err
	}

	if len(txn.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction has no signatures")
	}
	sig := txn.Signatures[0]

	if err := verifySignatures(txn); err != nil {
		return sig, err
	}
	if _, ok := c.blockhashes[txn.Message.RecentBlockhash]; !ok {
		return sig, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}
	if _, ok := c.statuses[sig]; ok {
		return sig, solana.NewTransactionError(solana.TransactionErrorAlreadyProcessed)
	}

	payer, ok := c.accounts[key(txn.Message.Accounts[0])]
	fee := uint64(LamportsPerSignature * len(txn.Signatures))
	if !ok || payer.lamports < fee {
		return sig, solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}

	if c.drop {
		return sig, nil
	}

	// Fees are charged even when execution fails.
	payer.lamports -= fee

	state := newOverlay(c.accounts)
	txErr := execute(state, txn.Message)
	if txErr == nil {
		state.commit()
	}

	c.land(sig, txErr)
	return sig, nil
}

func (c *Client) fund(pub ed25519.PublicKey, lamports uint64) {
	a, ok := c.accounts[key(pub)]
	if !ok {
		a = &account{owner: systemOwner()}
		c.accounts[key(pub)] = a
	}
	a.lamports += lamports
}

func (c *Client) land(sig solana.Signature, txErr *solana.TransactionError) {
	confirmations := 1
	c.statuses[sig] = &solana.SignatureStatus{
		Slot:               c.slot,
		ErrorResult:        txErr,
		Confirmations:      &confirmations,
		ConfirmationStatus: "confirmed",
	}
}

// tick catches the slot up with the clock. The caller must hold mu.
func (c *Client) tick() {
	if c.slotDuration <= 0 {
		return
	}

	elapsed := time.Since(c.slotStart)
	if elapsed < c.slotDuration {
		return
	}

	n := elapsed / c.slotDuration
	c.slot += uint64(n)
	c.slotStart = c.slotStart.Add(n * c.slotDuration)
	c.advanceBlockhash()
}

func (c *Client) advanceBlockhash() {
	c.latest = sha256.Sum256(append(c.latest[:], byte(c.slot)))
	c.blockhashes[c.latest] = struct{}{}
}

func verifySignatures(txn solana.Transaction) error {
	n := int(txn.Message.Header.NumSignatures)
	if len(txn.Signatures) != n || len(txn.Message.Accounts) < n {
		return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	message := txn.Message.Marshal()
	for i := 0; i < n; i++ {
		if !ed25519.Verify(txn.Message.Accounts[i], message, txn.Signatures[i][:]) {
			return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		}
	}
	return nil
}

func rentExemptMinimum(size uint64) uint64 {
	return (accountStorageOverhead + size) * lamportsPerByteYear * exemptionThreshold
}

func key(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}
