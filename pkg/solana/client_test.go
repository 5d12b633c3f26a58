package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/testutil"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     int               `json:"id"`
}

// rpcHandler answers a single JSON-RPC method. Returning a non-nil
// *rpcFailure responds with an error object instead of a result.
type rpcHandler func(params []json.RawMessage) (interface{}, *rpcFailure)

type rpcFailure struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
	server   *httptest.Server
}

func newFakeNode(t *testing.T) *fakeNode {
	n := &fakeNode{
		handlers: make(map[string]rpcHandler),
		calls:    make(map[string]int),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.server.Close)
	return n
}

func (n *fakeNode) handle(method string, h rpcHandler) {
	n.mu.Lock()
	n.handlers[method] = h
	n.mu.Unlock()
}

func (n *fakeNode) callCount(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = rpcFailure{Code: -32601, Message: "method not found"}
	} else if result, failure := h(req.Params); failure != nil {
		resp["error"] = failure
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// unmarshalParam runs on the server goroutine, so it only asserts.
func unmarshalParam(t *testing.T, raw json.RawMessage, out interface{}) {
	assert.NoError(t, json.Unmarshal(raw, out))
}

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	for i, tc := range []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{s: SignatureStatus{Confirmations: &zero}},
		{s: SignatureStatus{Confirmations: &zero, ConfirmationStatus: "random"}},
		{s: SignatureStatus{Confirmations: &zero, ConfirmationStatus: confirmationStatusProcessed}},
		{s: SignatureStatus{Confirmations: &one}, confirmed: true},
		{s: SignatureStatus{Confirmations: &zero, ConfirmationStatus: confirmationStatusConfirmed}, confirmed: true},
		{s: SignatureStatus{Confirmations: &zero, ConfirmationStatus: confirmationStatusFinalized}, confirmed: true, finalized: true},
		{s: SignatureStatus{Confirmations: nil}, confirmed: true, finalized: true},
	} {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed(), i)
		assert.Equal(t, tc.finalized, tc.s.Finalized(), i)

		assert.True(t, tc.s.Reached(CommitmentProcessed), i)
		assert.Equal(t, tc.confirmed, tc.s.Reached(CommitmentConfirmed), i)
		assert.Equal(t, tc.finalized, tc.s.Reached(CommitmentFinalized), i)
	}

	failed := SignatureStatus{
		Confirmations: &zero,
		ErrorResult:   NewTransactionError(TransactionErrorSignatureFailure),
	}
	assert.True(t, failed.Reached(CommitmentFinalized))
}

func TestClient_GetAccountInfo(t *testing.T) {
	node := newFakeNode(t)
	keys := testutil.GenerateSolanaKeys(t, 3)
	account, owner, missing := keys[0], keys[1], keys[2]

	node.handle("getAccountInfo", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		var address string
		var config rpcConfig
		unmarshalParam(t, params[0], &address)
		unmarshalParam(t, params[1], &config)
		assert.Equal(t, "base64", config.Encoding)
		assert.Equal(t, confirmationStatusFinalized, config.Commitment)

		if address == base58.Encode(missing) {
			return map[string]interface{}{"context": map[string]int{"slot": 1}, "value": nil}, nil
		}
		return map[string]interface{}{
			"context": map[string]int{"slot": 1},
			"value": map[string]interface{}{
				"lamports":   42,
				"owner":      base58.Encode(owner),
				"data":       []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "base64"},
				"executable": false,
			},
		}, nil
	})

	sc := New(node.server.URL)

	info, err := sc.GetAccountInfo(account, CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, 42, info.Lamports)
	assert.Equal(t, owner, info.Owner)
	assert.Equal(t, []byte{1, 2, 3}, info.Data)

	_, err = sc.GetAccountInfo(missing, CommitmentFinalized)
	assert.Equal(t, ErrNoAccountInfo, err)
}

func TestClient_Balances(t *testing.T) {
	node := newFakeNode(t)
	keys := testutil.GenerateSolanaKeys(t, 2)
	funded, invalid := keys[0], keys[1]

	invalidParam := func(params []json.RawMessage) bool {
		var address string
		unmarshalParam(t, params[0], &address)
		return address == base58.Encode(invalid)
	}

	node.handle("getBalance", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		if invalidParam(params) {
			return nil, &rpcFailure{Code: rpcInvalidParamCode, Message: "Invalid param"}
		}
		return map[string]interface{}{"context": map[string]int{"slot": 5}, "value": 1_500_000_000}, nil
	})
	node.handle("getTokenAccountBalance", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		if invalidParam(params) {
			return nil, &rpcFailure{Code: rpcInvalidParamCode, Message: "Invalid param"}
		}
		return map[string]interface{}{
			"context": map[string]int{"slot": 77},
			"value":   map[string]interface{}{"amount": "3", "decimals": 0},
		}, nil
	})

	sc := New(node.server.URL)

	lamports, err := sc.GetBalance(funded)
	require.NoError(t, err)
	assert.EqualValues(t, 1_500_000_000, lamports)

	_, err = sc.GetBalance(invalid)
	assert.Equal(t, ErrNoBalance, err)

	amount, slot, err := sc.GetTokenAccountBalance(funded)
	require.NoError(t, err)
	assert.EqualValues(t, 3, amount)
	assert.EqualValues(t, 77, slot)

	_, _, err = sc.GetTokenAccountBalance(invalid)
	assert.Equal(t, ErrNoBalance, err)
}

func TestClient_GetTokenAccountsByOwner(t *testing.T) {
	node := newFakeNode(t)
	keys := testutil.GenerateSolanaKeys(t, 4)
	owner, program, first, second := keys[0], keys[1], keys[2], keys[3]

	node.handle("getTokenAccountsByOwner", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		var filter map[string]string
		unmarshalParam(t, params[1], &filter)
		assert.Equal(t, base58.Encode(program), filter["programId"])

		account := func(key ed25519.PublicKey, data byte) map[string]interface{} {
			return map[string]interface{}{
				"pubkey": base58.Encode(key),
				"account": map[string]interface{}{
					"lamports": 2039280,
					"owner":    base58.Encode(program),
					"data":     []string{base64.StdEncoding.EncodeToString([]byte{data}), "base64"},
				},
			}
		}
		return map[string]interface{}{"value": []interface{}{account(first, 1), account(second, 2)}}, nil
	})

	accounts, err := New(node.server.URL).GetTokenAccountsByOwner(owner, program)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, first, accounts[0].PublicKey)
	assert.Equal(t, []byte{1}, accounts[0].Data)
	assert.Equal(t, second, accounts[1].PublicKey)
	assert.Equal(t, program, accounts[1].Owner)
}

func TestClient_GetLatestBlockhash_Cached(t *testing.T) {
	node := newFakeNode(t)

	var expected Blockhash
	expected[0] = 7
	node.handle("getLatestBlockhash", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		assert.Len(t, params, 1)
		return map[string]interface{}{
			"value": map[string]interface{}{"blockhash": base58.Encode(expected[:]), "lastValidBlockHeight": 100},
		}, nil
	})

	sc := New(node.server.URL)
	for i := 0; i < 3; i++ {
		hash, err := sc.GetLatestBlockhash()
		require.NoError(t, err)
		assert.Equal(t, expected, hash)
	}
	assert.Equal(t, 1, node.callCount("getLatestBlockhash"))
}

func TestClient_SubmitTransaction_PreflightFailure(t *testing.T) {
	node := newFakeNode(t)
	payer := testutil.GenerateSolanaKeypair(t)
	program := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := NewTransaction(payer.Public().(ed25519.PublicKey), NewInstruction(program, []byte{1}))
	require.NoError(t, txn.Sign(payer))

	node.handle("sendTransaction", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		var config rpcConfig
		unmarshalParam(t, params[1], &config)
		assert.Equal(t, confirmationStatusConfirmed, config.PreflightCommitment)

		return nil, &rpcFailure{
			Code:    -32002,
			Message: "Transaction simulation failed",
			Data: map[string]interface{}{
				"err":  map[string]interface{}{"InstructionError": []interface{}{0, map[string]int{"Custom": 6}}},
				"logs": []string{"Program log: Voucher has not expired"},
			},
		}
	})

	sig, err := New(node.server.URL).SubmitTransaction(txn, CommitmentConfirmed)
	require.Error(t, err)
	assert.Equal(t, txn.Signatures[0], sig)

	txErr, ok := err.(*TransactionError)
	require.True(t, ok)
	assert.Equal(t, CustomError(6), *txErr.InstructionError().CustomError())
	assert.Equal(t, []string{"Program log: Voucher has not expired"}, txErr.Logs)
}

func TestClient_GetSignaturesForAddress(t *testing.T) {
	node := newFakeNode(t)
	account := testutil.GenerateSolanaKeys(t, 1)[0]

	var sig1, sig2 Signature
	sig1[0], sig2[0] = 1, 2
	blockTime := int64(1700000000)

	node.handle("getSignaturesForAddress", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		var config rpcConfig
		unmarshalParam(t, params[1], &config)
		if assert.NotNil(t, config.Limit) {
			assert.EqualValues(t, 10, *config.Limit)
		}
		assert.Equal(t, "before-sig", config.Before)
		assert.Empty(t, config.Until)

		return []interface{}{
			map[string]interface{}{"signature": base58.Encode(sig1[:]), "slot": 10, "err": nil, "blockTime": blockTime},
			map[string]interface{}{"signature": base58.Encode(sig2[:]), "slot": 9, "err": "AccountInUse"},
		}, nil
	})

	sigs, err := New(node.server.URL).GetSignaturesForAddress(account, CommitmentConfirmed, 10, "before-sig", "")
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	assert.Equal(t, sig1, sigs[0].Signature)
	assert.Nil(t, sigs[0].Err)
	require.NotNil(t, sigs[0].BlockTime)
	assert.Equal(t, blockTime, sigs[0].BlockTime.Unix())

	assert.Equal(t, sig2, sigs[1].Signature)
	require.NotNil(t, sigs[1].Err)
	assert.Equal(t, TransactionErrorAccountInUse, sigs[1].Err.ErrorKey())
	assert.Nil(t, sigs[1].BlockTime)
}

func TestClient_GetSignatureStatuses(t *testing.T) {
	node := newFakeNode(t)

	var found, missing Signature
	found[0], missing[0] = 1, 2

	node.handle("getSignatureStatuses", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		var config rpcConfig
		unmarshalParam(t, params[1], &config)
		assert.True(t, config.SearchTransactionHistory)

		return map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{"slot": 5, "confirmations": nil, "confirmationStatus": "finalized", "err": nil},
				nil,
			},
		}, nil
	})

	sc := New(node.server.URL)

	statuses, err := sc.GetSignatureStatuses([]Signature{found, missing})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.NotNil(t, statuses[0])
	assert.True(t, statuses[0].Finalized())
	assert.Nil(t, statuses[1])

	status, err := sc.GetSignatureStatus(found, CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, 5, status.Slot)
}

func TestClient_GetTransaction(t *testing.T) {
	node := newFakeNode(t)
	payer := testutil.GenerateSolanaKeypair(t)
	program := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := NewTransaction(payer.Public().(ed25519.PublicKey), NewInstruction(program, []byte{9}))
	require.NoError(t, txn.Sign(payer))

	var unknown Signature
	unknown[0] = 0xff

	node.handle("getTransaction", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		var sig string
		var config rpcConfig
		unmarshalParam(t, params[0], &sig)
		unmarshalParam(t, params[1], &config)
		if assert.NotNil(t, config.MaxSupportedTransactionVersion) {
			assert.Zero(t, *config.MaxSupportedTransactionVersion)
		}

		if sig == base58.Encode(unknown[:]) {
			return nil, nil
		}
		return map[string]interface{}{
			"slot":        12,
			"blockTime":   1700000000,
			"transaction": []string{base64.StdEncoding.EncodeToString(txn.Marshal()), "base64"},
			"meta": map[string]interface{}{
				"err":         map[string]interface{}{"InstructionError": []interface{}{0, "InvalidArgument"}},
				"fee":         5000,
				"logMessages": []string{"Program log: hello"},
			},
		}, nil
	})

	sc := New(node.server.URL)

	confirmed, err := sc.GetTransaction(txn.Signatures[0], CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 12, confirmed.Slot)
	assert.False(t, confirmed.Versioned)
	assert.Equal(t, txn.Signatures[0], confirmed.Transaction.Signatures[0])
	require.NotNil(t, confirmed.Err)
	assert.Equal(t, InstructionErrorInvalidArgument, confirmed.Err.InstructionError().ErrorKey())
	require.NotNil(t, confirmed.Meta)
	assert.EqualValues(t, 5000, confirmed.Meta.Fee)

	_, err = sc.GetTransaction(unknown, CommitmentConfirmed)
	assert.Equal(t, ErrSignatureNotFound, err)
}

func TestClient_RotatesOnUnhealthyNode(t *testing.T) {
	unhealthy := newFakeNode(t)
	healthy := newFakeNode(t)

	unhealthy.handle("getBalance", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return nil, &rpcFailure{Code: rpcNodeUnhealthyCode, Message: "Node is behind"}
	})
	healthy.handle("getBalance", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return map[string]interface{}{"value": 10}, nil
	})

	rotator, err := NewRoundRobin(unhealthy.server.URL, healthy.server.URL)
	require.NoError(t, err)

	balance, err := NewWithRotator(rotator, nil).GetBalance(testutil.GenerateSolanaKeys(t, 1)[0])
	require.NoError(t, err)
	assert.EqualValues(t, 10, balance)
	assert.Equal(t, 1, unhealthy.callCount("getBalance"))
	assert.Equal(t, 1, healthy.callCount("getBalance"))
}

func TestClient_RotatesOnUnreachableEndpoint(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	healthy := newFakeNode(t)
	healthy.handle("getBalance", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return map[string]interface{}{"value": 42}, nil
	})

	rotator, err := NewRoundRobin(dead.URL, healthy.server.URL)
	require.NoError(t, err)

	balance, err := NewWithRotator(rotator, nil).GetBalance(testutil.GenerateSolanaKeys(t, 1)[0])
	require.NoError(t, err)
	assert.EqualValues(t, 42, balance)
	assert.Equal(t, 1, healthy.callCount("getBalance"))
}

func TestClient_UnreachableEndpointsExhausted(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	rotator, err := NewRoundRobin(dead.URL)
	require.NoError(t, err)

	_, err = NewWithRotator(rotator, nil).GetBalance(testutil.GenerateSolanaKeys(t, 1)[0])
	assert.True(t, errors.Is(err, errServiceError))
}
