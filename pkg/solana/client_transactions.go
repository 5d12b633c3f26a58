package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/gideon-vouchers/voucher-server/pkg/retry"
	"github.com/gideon-vouchers/voucher-server/pkg/retry/backoff"
)

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations is nil once the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

func (s SignatureStatus) Confirmed() bool {
	switch {
	case s.Finalized(), s.ConfirmationStatus == confirmationStatusConfirmed:
		return true
	default:
		return *s.Confirmations > 0
	}
}

// Reached reports whether the status satisfies commitment. A failed
// transaction has reached every commitment it will ever reach.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	if s.ErrorResult != nil {
		return true
	}

	switch commitment {
	case CommitmentFinalized:
		return s.Finalized()
	case CommitmentConfirmed:
		return s.Confirmed()
	default:
		return true
	}
}

type TokenBalance struct {
	AccountIndex uint64      `json:"accountIndex"`
	Mint         string      `json:"mint"`
	Owner        string      `json:"owner"`
	TokenAmount  TokenAmount `json:"uiTokenAmount"`
}

type TransactionMeta struct {
	Err               interface{}    `json:"err"`
	Fee               uint64         `json:"fee"`
	PreBalances       []uint64       `json:"preBalances"`
	PostBalances      []uint64       `json:"postBalances"`
	PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance `json:"postTokenBalances"`
	LogMessages       []string       `json:"logMessages"`
}

type ConfirmedTransaction struct {
	Slot        uint64
	BlockTime   *time.Time
	Transaction Transaction
	Err         *TransactionError
	Meta        *TransactionMeta

	// Versioned is set when the transaction uses a v0+ message. Its body is
	// left undecoded, but Meta is still populated.
	Versioned bool
}

type TransactionSignature struct {
	Signature Signature
	Slot      uint64
	BlockTime *time.Time
	Err       *TransactionError
	Memo      *string
}

// blockhashCache holds the last fetched blockhash for a jittered window so
// concurrent builders share a single lookup.
type blockhashCache struct {
	mu      sync.RWMutex
	window  time.Duration
	hash    Blockhash
	fetched time.Time
}

func newBlockhashCache(window time.Duration) *blockhashCache {
	return &blockhashCache{window: window}
}

func (b *blockhashCache) get() (Blockhash, bool) {
	ttl := time.Duration(float64(b.window) * (0.8 + rand.Float64()))

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.hash == (Blockhash{}) || time.Since(b.fetched) >= ttl {
		return Blockhash{}, false
	}
	return b.hash, true
}

func (b *blockhashCache) set(hash Blockhash) {
	b.mu.Lock()
	b.hash = hash
	b.fetched = time.Now()
	b.mu.Unlock()
}

func parseSignature(value string) (Signature, error) {
	var sig Signature

	raw, err := base58.Decode(value)
	if err != nil {
		return sig, errors.Wrap(err, "invalid base58 encoded signature")
	}
	if len(raw) != len(sig) {
		return sig, errors.Errorf("invalid signature length %d", len(raw))
	}

	copy(sig[:], raw)
	return sig, nil
}

func unixTime(seconds *int64) *time.Time {
	if seconds == nil {
		return nil
	}
	t := time.Unix(*seconds, 0)
	return &t
}

func decodeRawTransactionError(raw json.RawMessage) (*TransactionError, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, errors.Wrap(err, "failed to parse transaction error")
	}

	txErr, err := ParseTransactionError(value)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse transaction error")
	}
	return txErr, nil
}

func (c *client) GetLatestBlockhash() (Blockhash, error) {
	if hash, ok := c.blockhash.get(); ok {
		return hash, nil
	}

	var resp struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getLatestBlockhash", rpcConfig{Commitment: confirmationStatusConfirmed}); err != nil {
		return Blockhash{}, errors.Wrap(err, "getLatestBlockhash() failed to send request")
	}

	raw, err := base58.Decode(resp.Value.Blockhash)
	if err != nil || len(raw) != len(Blockhash{}) {
		return Blockhash{}, errors.Errorf("invalid blockhash %q in response", resp.Value.Blockhash)
	}

	var hash Blockhash
	copy(hash[:], raw)
	c.blockhash.set(hash)
	return hash, nil
}

func (c *client) GetTransaction(sig Signature, commitment Commitment) (ConfirmedTransaction, error) {
	var resp *struct {
		Slot        uint64           `json:"slot"`
		BlockTime   *int64           `json:"blockTime"`
		Transaction []string         `json:"transaction"` // [value, encoding]
		Meta        *TransactionMeta `json:"meta"`
	}

	version := 0
	config := rpcConfig{
		Commitment:                     commitment.Commitment,
		Encoding:                       "base64",
		MaxSupportedTransactionVersion: &version,
	}
	if err := c.call(&resp, "getTransaction", base58.Encode(sig[:]), config); err != nil {
		return ConfirmedTransaction{}, err
	}
	if resp == nil {
		return ConfirmedTransaction{}, ErrSignatureNotFound
	}

	txn := ConfirmedTransaction{
		Slot:      resp.Slot,
		BlockTime: unixTime(resp.BlockTime),
		Meta:      resp.Meta,
	}

	if resp.Meta != nil {
		var err error
		if txn.Err, err = ParseTransactionError(resp.Meta.Err); err != nil {
			return txn, errors.Wrap(err, "failed to parse transaction result")
		}
	}

	if len(resp.Transaction) == 0 {
		return txn, errors.New("transaction missing from response")
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Transaction[0])
	if err != nil {
		return txn, errors.Wrap(err, "failed to decode transaction")
	}

	switch err := txn.Transaction.Unmarshal(raw); err {
	case nil:
	case ErrUnsupportedMessageVersion:
		txn.Versioned = true
	default:
		return txn, errors.Wrap(err, "failed to unmarshal transaction")
	}
	return txn, nil
}

// SubmitTransaction sends the transaction with preflight simulation enabled.
// Simulation failures are returned as a *TransactionError carrying the
// program logs.
func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signatures[0]
	config := rpcConfig{
		Encoding:            "base64",
		PreflightCommitment: commitment.Commitment,
	}

	var ignored string
	err := c.call(&ignored, "sendTransaction", base64.StdEncoding.EncodeToString(txn.Marshal()), config)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return sig, errors.Wrap(err, "sendTransaction() failed to send request")
	}

	txErr, parseErr := ParseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, err
	}

	c.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": base58.Encode(sig[:]),
		"error":     txErr.Error(),
	}).Debug("transaction rejected in preflight")
	return sig, txErr
}

func (c *client) RequestAirdrop(account ed25519.PublicKey, lamports uint64, commitment Commitment) (Signature, error) {
	var value string
	if err := c.call(&value, "requestAirdrop", base58.Encode(account), lamports, rpcConfig{Commitment: commitment.Commitment}); err != nil {
		return Signature{}, errors.Wrap(err, "requestAirdrop() failed to send request")
	}

	sig, err := parseSignature(value)
	if err != nil {
		return Signature{}, err
	}
	if sig == (Signature{}) {
		return Signature{}, errors.New("empty signature returned")
	}
	return sig, nil
}

// GetSignatureStatus polls until the signature reaches the requested
// commitment, or the poll limit is hit.
func (c *client) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	errNotReached := errors.New("commitment not reached")

	var status *SignatureStatus
	_, err := retry.Retry(
		func() error {
			statuses, err := c.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			if status = statuses[0]; status == nil {
				return ErrSignatureNotFound
			}
			if !status.Reached(commitment) {
				return errNotReached
			}
			return nil
		},
		retry.RetriableErrors(ErrSignatureNotFound, errNotReached),
		retry.Limit(sigStatusPollLimit),
		retry.Backoff(backoff.Constant(PollRate), PollRate),
	)
	return status, err
}

func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		encoded = append(encoded, base58.Encode(sig[:]))
	}

	var resp struct {
		Value []*struct {
			Slot               uint64          `json:"slot"`
			Confirmations      *int            `json:"confirmations"`
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getSignatureStatuses", encoded, rpcConfig{SearchTransactionHistory: true}); err != nil {
		return nil, err
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if i >= len(statuses) {
			break
		}
		if v == nil {
			continue
		}

		txErr, err := decodeRawTransactionError(v.Err)
		if err != nil {
			return nil, err
		}

		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
			ErrorResult:        txErr,
		}
	}
	return statuses, nil
}

// GetSignaturesForAddress returns signatures involving account, newest first.
// before and until are optional base58 signatures bounding the page.
func (c *client) GetSignaturesForAddress(account ed25519.PublicKey, commitment Commitment, limit uint64, before, until string) ([]*TransactionSignature, error) {
	config := rpcConfig{
		Commitment: commitment.Commitment,
		Before:     before,
		Until:      until,
	}
	if limit > 0 {
		config.Limit = &limit
	}

	var resp []struct {
		Signature string          `json:"signature"`
		Slot      uint64          `json:"slot"`
		Err       json.RawMessage `json:"err"`
		Memo      *string         `json:"memo"`
		BlockTime *int64          `json:"blockTime"`
	}
	if err := c.call(&resp, "getSignaturesForAddress", base58.Encode(account), config); err != nil {
		return nil, err
	}

	result := make([]*TransactionSignature, 0, len(resp))
	for _, v := range resp {
		sig, err := parseSignature(v.Signature)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse transaction signature")
		}

		txErr, err := decodeRawTransactionError(v.Err)
		if err != nil {
			return nil, err
		}

		result = append(result, &TransactionSignature{
			Signature: sig,
			Slot:      v.Slot,
			Err:       txErr,
			Memo:      v.Memo,
			BlockTime: unixTime(v.BlockTime),
		})
	}
	return result, nil
}
