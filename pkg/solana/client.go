package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/token-lifecycle/pkg/retry"
	"github.com/code-payments/token-lifecycle/pkg/retry/backoff"
)

const (
	// Statuses are polled twice per ~400ms slot, for about 32 slots.
	slotDuration       = 400 * time.Millisecond
	PollRate           = slotDuration / 2
	sigStatusPollLimit = 64

	rateLimitedCode = 429

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602
)

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNoBalance         = errors.New("no balance")

	errCommitmentNotReached = errors.New("commitment not reached")
	errRateLimited          = errors.New("rate limited")
	errServiceError         = errors.New("service error")
)

// AccountInfo is the raw state of an account. Token accounts keep their
// token state in Data.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// Client provides an interaction with the Solana JSON RPC API.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetGenesisHash() (string, error)
	GetLatestBlockhash() (Blockhash, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetSignatureStatus(Signature, Commitment) (*SignatureStatus, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	GetSlot(Commitment) (uint64, error)
	GetTokenAccountBalance(ed25519.PublicKey, Commitment) (TokenAmount, error)
	RequestAirdrop(ed25519.PublicKey, uint64, Commitment) (Signature, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}

// withContext is the envelope of RPC results that report the slot they
// were evaluated at.
type withContext[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

type client struct {
	log     *logrus.Entry
	rpc     jsonrpc.RPCClient
	retrier retry.Retrier

	pollRate  time.Duration
	pollLimit uint
}

// New returns a client using the specified endpoint.
func New(endpoint Environment) Client {
	return newClient(string(endpoint), nil)
}

func newClient(endpoint string, opts *jsonrpc.RPCClientOpts) *client {
	c := &client{
		log:       logrus.StandardLogger().WithField("type", "solana/client"),
		rpc:       jsonrpc.NewClientWithOpts(endpoint, opts),
		pollRate:  PollRate,
		pollLimit: sigStatusPollLimit,
	}

	c.retrier = retry.NewRetrier(
		retry.RetriableErrors(errRateLimited, errServiceError),
		retry.Limit(3),
		retry.OnRetry(func(attempts uint, err error) {
			c.log.WithError(err).WithField("attempts", attempts).Debug("retrying rpc call")
		}),
		retry.Backoff(backoff.BinaryExponential(time.Second).Capped(10*time.Second).WithJitter(0.1)),
	)
	return c
}

// call invokes method, retrying transient node failures. Returned errors wrap
// the underlying *jsonrpc.RPCError when the node answered with one.
func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		err := c.rpc.CallFor(out, method, params...)
		if rpcErr, ok := err.(*jsonrpc.RPCError); ok {
			switch {
			case rpcErr.Code == rateLimitedCode:
				return errors.Wrap(errRateLimited, rpcErr.Message)
			case rpcErr.Code >= 500 || rpcErr.Code == rpcNodeUnhealthyCode:
				return errors.Wrap(errServiceError, rpcErr.Message)
			}
		}
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "%s() failed", method)
	}
	return nil
}

func (c *client) GetMinimumBalanceForRentExemption(dataSize uint64) (lamports uint64, err error) {
	err = c.call(&lamports, "getMinimumBalanceForRentExemption", dataSize)
	return lamports, err
}

func (c *client) GetSlot(commitment Commitment) (slot uint64, err error) {
	// A lone struct param would be sent as named params, which the node
	// rejects for this method.
	err = c.call(&slot, "getSlot", []interface{}{commitment})
	return slot, err
}

// GetLatestBlockhash returns the most recent blockhash. It is never cached:
// a reused blockhash makes a repeated message sign to the same signature.
func (c *client) GetLatestBlockhash() (Blockhash, error) {
	var resp withContext[struct {
		Blockhash string `json:"blockhash"`
	}]
	if err := c.call(&resp, "getLatestBlockhash", []interface{}{CommitmentConfirmed}); err != nil {
		return Blockhash{}, err
	}

	var hash Blockhash
	decoded, err := base58.Decode(resp.Value.Blockhash)
	if err != nil {
		return hash, errors.Wrap(err, "invalid base58 encoded blockhash")
	}
	if len(decoded) != len(hash) {
		return hash, errors.Errorf("invalid blockhash length: %d", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

func (c *client) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp withContext[uint64]
	if err := c.call(&resp, "getBalance", base58.Encode(account), CommitmentConfirmed); err != nil {
		if isInvalidParam(err) {
			return 0, ErrNoBalance
		}
		return 0, err
	}
	return resp.Value, nil
}

func (c *client) GetTokenAccountBalance(account ed25519.PublicKey, commitment Commitment) (TokenAmount, error) {
	var resp withContext[TokenAmount]
	if err := c.call(&resp, "getTokenAccountBalance", base58.Encode(account), commitment); err != nil {
		if isInvalidParam(err) {
			return TokenAmount{}, ErrNoBalance
		}
		return TokenAmount{}, err
	}

	if _, err := resp.Value.Quarks(); err != nil {
		return TokenAmount{}, errors.Wrap(err, "invalid amount in response")
	}
	return resp.Value, nil
}

// SubmitTransaction sends a signed transaction. Preflight is skipped, so a
// nil error only means the node accepted the transaction for processing.
// Transactions the node refuses are reported as a *TransactionError when the
// refusal carries one.
func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signatures[0]

	config := struct {
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
		Encoding            string `json:"encoding"`
	}{
		SkipPreflight:       true,
		PreflightCommitment: commitment.Commitment,
		Encoding:            "base64",
	}

	var ignored string
	err := c.call(&ignored, "sendTransaction", base64.StdEncoding.EncodeToString(txn.Marshal()), config)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := errors.Cause(err).(*jsonrpc.RPCError)
	if !ok {
		return sig, err
	}

	txErr, parseErr := ParseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, err
	}

	c.log.WithFields(logrus.Fields{
		"method":    "sendTransaction",
		"signature": sig.String(),
	}).WithError(txErr).Debug("transaction rejected")
	return sig, txErr
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	var resp withContext[*struct {
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
		Data       []string `json:"data"`
		Executable bool     `json:"executable"`
	}]

	config := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, err
	}

	value := resp.Value
	if value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}
	if len(value.Data) == 0 {
		return AccountInfo{}, errors.New("missing account data in response")
	}

	owner, err := base58.Decode(value.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid base58 encoded owner")
	}
	data, err := base64.StdEncoding.DecodeString(value.Data[0])
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid base64 encoded data")
	}

	return AccountInfo{
		Data:       data,
		Owner:      owner,
		Lamports:   value.Lamports,
		Executable: value.Executable,
	}, nil
}

// GetGenesisHash returns the base58 encoded genesis hash, which identifies
// the cluster regardless of the endpoint serving it.
func (c *client) GetGenesisHash() (hash string, err error) {
	err = c.call(&hash, "getGenesisHash")
	return hash, err
}

func (c *client) RequestAirdrop(account ed25519.PublicKey, lamports uint64, commitment Commitment) (Signature, error) {
	var encoded string
	if err := c.call(&encoded, "requestAirdrop", base58.Encode(account), lamports, commitment); err != nil {
		return Signature{}, err
	}

	sig, err := SignatureFromBase58(encoded)
	if err != nil {
		return Signature{}, errors.Wrap(err, "invalid signature in response")
	}
	if sig == (Signature{}) {
		return Signature{}, errors.New("empty signature returned")
	}
	return sig, nil
}

// GetSignatureStatus polls the status of sig until it reaches commitment.
// A transaction that landed with an error is reported through the returned
// error as a *TransactionError, along with its status.
func (c *client) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	var status *SignatureStatus
	_, err := retry.Retry(
		func() error {
			statuses, err := c.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			status = statuses[0]
			switch {
			case status == nil:
				return ErrSignatureNotFound
			case status.ErrorResult != nil:
				return status.ErrorResult
			case !status.Reached(commitment):
				return errCommitmentNotReached
			default:
				return nil
			}
		},
		retry.RetriableErrors(ErrSignatureNotFound, errCommitmentNotReached),
		retry.Limit(c.pollLimit),
		retry.Backoff(backoff.Constant(c.pollRate)),
	)
	return status, err
}

type rpcSignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *int            `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

func (s *rpcSignatureStatus) toStatus() (*SignatureStatus, error) {
	status := &SignatureStatus{
		Slot:               s.Slot,
		Confirmations:      s.Confirmations,
		ConfirmationStatus: s.ConfirmationStatus,
	}
	if len(s.Err) == 0 || bytes.Equal(s.Err, []byte("null")) {
		return status, nil
	}

	d := json.NewDecoder(bytes.NewReader(s.Err))
	d.UseNumber()

	var raw interface{}
	if err := d.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction error")
	}

	txErr, err := ParseTransactionError(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse transaction error")
	}
	status.ErrorResult = txErr
	return status, nil
}

func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, sig := range sigs {
		encoded[i] = sig.String()
	}

	config := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp withContext[[]*rpcSignatureStatus]
	if err := c.call(&resp, "getSignatureStatuses", encoded, config); err != nil {
		return nil, err
	}
	if len(resp.Value) != len(sigs) {
		return nil, errors.Errorf("expected %d statuses, got %d", len(sigs), len(resp.Value))
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if v == nil {
			continue
		}

		status, err := v.toStatus()
		if err != nil {
			return nil, err
		}
		statuses[i] = status
	}
	return statuses, nil
}

func isInvalidParam(err error) bool {
	rpcErr, ok := errors.Cause(err).(*jsonrpc.RPCError)
	return ok && rpcErr.Code == invalidParamCode
}
