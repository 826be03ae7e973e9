package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	testCases := []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{s: SignatureStatus{Slot: 10, Confirmations: &zero}},
		{s: SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: "random"}},
		{s: SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusProcessed}},
		{s: SignatureStatus{Slot: 10, Confirmations: &one}, confirmed: true},
		{s: SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusConfirmed}, confirmed: true},
		{s: SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusFinalized}, confirmed: true, finalized: true},
		{s: SignatureStatus{Slot: 10}, confirmed: true, finalized: true},
	}

	for i, tc := range testCases {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed(), i)
		assert.Equal(t, tc.finalized, tc.s.Finalized(), i)
		assert.True(t, tc.s.Reached(CommitmentProcessed), i)
		assert.Equal(t, tc.confirmed, tc.s.Reached(CommitmentConfirmed), i)
		assert.Equal(t, tc.finalized, tc.s.Reached(CommitmentFinalized), i)
	}
}

func TestParseCommitment(t *testing.T) {
	for _, c := range []Commitment{CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized} {
		actual, err := ParseCommitment(c.Commitment)
		require.NoError(t, err)
		assert.Equal(t, c, actual)
	}

	_, err := ParseCommitment("max")
	assert.Error(t, err)
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     int               `json:"id"`
}

// rpcServer is a scripted JSON-RPC endpoint. Handlers return either a result
// or an error object for the given method.
type rpcServer struct {
	sync.Mutex
	calls    map[string]int
	requests map[string][]rpcRequest
	handlers map[string]func(call int, req rpcRequest) (result interface{}, rpcErr map[string]interface{})
}

func newTestClient(t *testing.T) (*client, *rpcServer) {
	s := &rpcServer{
		calls:    make(map[string]int),
		requests: make(map[string][]rpcRequest),
		handlers: make(map[string]func(int, rpcRequest) (interface{}, map[string]interface{})),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		s.Lock()
		s.calls[req.Method]++
		call := s.calls[req.Method]
		s.requests[req.Method] = append(s.requests[req.Method], req)
		handler, ok := s.handlers[req.Method]
		s.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		} else if result, rpcErr := handler(call, req); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)

	c := newClient(srv.URL, nil)
	c.pollRate = time.Millisecond
	c.pollLimit = 10
	return c, s
}

func (s *rpcServer) handle(method string, h func(call int, req rpcRequest) (interface{}, map[string]interface{})) {
	s.Lock()
	defer s.Unlock()
	s.handlers[method] = h
}

func (s *rpcServer) callCount(method string) int {
	s.Lock()
	defer s.Unlock()
	return s.calls[method]
}

func statusResult(status map[string]interface{}) interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 100},
		"value":   []interface{}{status},
	}
}

func TestClient_GetSignatureStatus_PollsUntilConfirmed(t *testing.T) {
	c, s := newTestClient(t)

	s.handle("getSignatureStatuses", func(call int, _ rpcRequest) (interface{}, map[string]interface{}) {
		switch call {
		case 1:
			return statusResult(nil), nil
		case 2:
			return statusResult(map[string]interface{}{
				"slot": 100, "confirmations": 0, "confirmationStatus": "processed", "err": nil,
			}), nil
		default:
			return statusResult(map[string]interface{}{
				"slot": 100, "confirmations": 1, "confirmationStatus": "confirmed", "err": nil,
			}), nil
		}
	})

	status, err := c.GetSignatureStatus(Signature{1}, CommitmentConfirmed)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.Confirmed())
	assert.Nil(t, status.ErrorResult)
	assert.Equal(t, 3, s.callCount("getSignatureStatuses"))
}

func TestClient_GetSignatureStatus_TransactionError(t *testing.T) {
	c, s := newTestClient(t)

	s.handle("getSignatureStatuses", func(int, rpcRequest) (interface{}, map[string]interface{}) {
		return statusResult(map[string]interface{}{
			"slot":               100,
			"confirmations":      1,
			"confirmationStatus": "confirmed",
			"err":                map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}}},
		}), nil
	})

	status, err := c.GetSignatureStatus(Signature{1}, CommitmentConfirmed)
	require.Error(t, err)
	require.NotNil(t, status)

	txErr, ok := err.(*TransactionError)
	require.True(t, ok)
	assert.Equal(t, TransactionErrorInstructionError, txErr.ErrorKey())
	assert.Equal(t, CustomError(1), *txErr.InstructionError().CustomError())
	assert.Equal(t, 1, s.callCount("getSignatureStatuses"))
}

func TestClient_GetSignatureStatus_NeverLands(t *testing.T) {
	c, s := newTestClient(t)

	s.handle("getSignatureStatuses", func(int, rpcRequest) (interface{}, map[string]interface{}) {
		return statusResult(nil), nil
	})

	_, err := c.GetSignatureStatus(Signature{1}, CommitmentConfirmed)
	assert.ErrorIs(t, err, ErrSignatureNotFound)
	assert.Equal(t, 10, s.callCount("getSignatureStatuses"))
}

func TestClient_GetLatestBlockhash_NotCached(t *testing.T) {
	c, s := newTestClient(t)

	s.handle("getLatestBlockhash", func(call int, _ rpcRequest) (interface{}, map[string]interface{}) {
		hash := Blockhash{9, 9, byte(call)}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": call},
			"value":   map[string]interface{}{"blockhash": base58.Encode(hash[:]), "lastValidBlockHeight": 10},
		}, nil
	})

	for i := 1; i <= 3; i++ {
		actual, err := c.GetLatestBlockhash()
		require.NoError(t, err)
		assert.Equal(t, Blockhash{9, 9, byte(i)}, actual)
	}
	assert.Equal(t, 3, s.callCount("getLatestBlockhash"))
}

func TestClient_GetGenesisHash(t *testing.T) {
	c, s := newTestClient(t)

	s.handle("getGenesisHash", func(int, rpcRequest) (interface{}, map[string]interface{}) {
		return GenesisHashMainnet, nil
	})

	hash, err := c.GetGenesisHash()
	require.NoError(t, err)
	assert.Equal(t, GenesisHashMainnet, hash)
	assert.True(t, IsMainnet(hash))
}

func TestClient_SubmitTransaction(t *testing.T) {
	c, s := newTestClient(t)

	keys := generateKeys(t, 2)
	txn := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), []byte{1}))
	require.NoError(t, txn.Sign(keys[0]))

	s.handle("sendTransaction", func(int, rpcRequest) (interface{}, map[string]interface{}) {
		return Signature(txn.Signatures[0]).String(), nil
	})

	sig, err := c.SubmitTransaction(txn, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, txn.Signatures[0], sig)

	s.handle("sendTransaction", func(int, rpcRequest) (interface{}, map[string]interface{}) {
		return nil, map[string]interface{}{
			"code":    -32002,
			"message": "Transaction simulation failed",
			"data":    map[string]interface{}{"err": "BlockhashNotFound"},
		}
	})

	_, err = c.SubmitTransaction(txn, CommitmentConfirmed)
	require.Error(t, err)
	txErr, ok := err.(*TransactionError)
	require.True(t, ok)
	assert.Equal(t, TransactionErrorBlockhashNotFound, txErr.ErrorKey())

	s.handle("sendTransaction", func(int, rpcRequest) (interface{}, map[string]interface{}) {
		return nil, map[string]interface{}{"code": -32600, "message": "invalid request"}
	})
	_, err = c.SubmitTransaction(txn, CommitmentConfirmed)
	assert.Error(t, err)
}

func TestClient_GetTokenAccountBalance(t *testing.T) {
	c, s := newTestClient(t)

	s.handle("getTokenAccountBalance", func(call int, _ rpcRequest) (interface{}, map[string]interface{}) {
		if call > 1 {
			return nil, map[string]interface{}{"code": invalidParamCode, "message": "could not find account"}
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value":   map[string]interface{}{"amount": "100000000000", "decimals": 9, "uiAmountString": "100"},
		}, nil
	})

	account := make(ed25519.PublicKey, ed25519.PublicKeySize)

	amount, err := c.GetTokenAccountBalance(account, CommitmentConfirmed)
	require.NoError(t, err)
	quarks, err := amount.Quarks()
	require.NoError(t, err)
	assert.EqualValues(t, 100_000_000_000, quarks)
	assert.EqualValues(t, 9, amount.Decimals)

	_, err = c.GetTokenAccountBalance(account, CommitmentConfirmed)
	assert.Equal(t, ErrNoBalance, err)
}

func TestClient_RentAndAirdrop(t *testing.T) {
	c, s := newTestClient(t)

	s.handle("getMinimumBalanceForRentExemption", func(_ int, req rpcRequest) (interface{}, map[string]interface{}) {
		require.Len(t, req.Params, 1)
		assert.Equal(t, "82", string(req.Params[0]))
		return 1461600, nil
	})

	expected := Signature{4, 2}
	s.handle("requestAirdrop", func(int, rpcRequest) (interface{}, map[string]interface{}) {
		return expected.String(), nil
	})

	lamports, err := c.GetMinimumBalanceForRentExemption(82)
	require.NoError(t, err)
	assert.EqualValues(t, 1461600, lamports)

	sig, err := c.RequestAirdrop(make(ed25519.PublicKey, ed25519.PublicKeySize), 1_000_000_000, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, expected, sig)
}

func TestClient_GetAccountInfo(t *testing.T) {
	c, s := newTestClient(t)

	owner := make(ed25519.PublicKey, ed25519.PublicKeySize)
	owner[0] = 6

	s.handle("getAccountInfo", func(call int, _ rpcRequest) (interface{}, map[string]interface{}) {
		if call > 1 {
			return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": nil}, nil
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"lamports":   2039280,
				"owner":      base58.Encode(owner),
				"data":       []string{"AQID", "base64"},
				"executable": false,
			},
		}, nil
	})

	info, err := c.GetAccountInfo(owner, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, info.Data)
	assert.EqualValues(t, owner, info.Owner)
	assert.EqualValues(t, 2039280, info.Lamports)

	_, err = c.GetAccountInfo(owner, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)
}
