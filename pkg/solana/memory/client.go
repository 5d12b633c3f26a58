package memory

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

// token account layout offsets, kept local to avoid importing the token package
const (
	tokenAccountSize  = 165
	tokenOwnerOffset  = 32
	tokenAmountOffset = 64
	accountTypeMint   = 1
)

// SubmitHandler is invoked for every submitted transaction. A non-nil error
// rejects the submission.
type SubmitHandler func(txn solana.Transaction) error

// Client is an in-memory solana.Client for tests. Accounts, signatures and
// transactions are seeded by the test; submitted transactions are recorded.
type Client struct {
	mu sync.Mutex

	accounts     map[string]solana.AccountInfo
	signatures   map[string][]*solana.TransactionSignature
	transactions map[string]solana.ConfirmedTransaction
	submitted    []solana.Transaction
	calls        map[string]int

	submitHandler SubmitHandler
	blockhash     solana.Blockhash
	errors        map[string]error
	airdrops      uint64
}

func New() *Client {
	c := &Client{}
	c.Reset()
	return c
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accounts = make(map[string]solana.AccountInfo)
	c.signatures = make(map[string][]*solana.TransactionSignature)
	c.transactions = make(map[string]solana.ConfirmedTransaction)
	c.submitted = nil
	c.calls = make(map[string]int)
	c.errors = make(map[string]error)
	c.submitHandler = nil
	c.blockhash = sha256.Sum256([]byte("blockhash"))
}

// SetAccount stores (or replaces) the account at address.
func (c *Client) SetAccount(address ed25519.PublicKey, info solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	clone := info
	clone.Data = append([]byte(nil), info.Data...)
	c.accounts[base58.Encode(address)] = clone
}

func (c *Client) DeleteAccount(address ed25519.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.accounts, base58.Encode(address))
}

// SetTokenAmount rewrites the amount of an existing token account.
func (c *Client) SetTokenAmount(address ed25519.PublicKey, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.accounts[base58.Encode(address)]
	if !ok || len(info.Data) < tokenAccountSize {
		return errors.New("not a token account")
	}

	binary.LittleEndian.PutUint64(info.Data[tokenAmountOffset:], amount)
	c.accounts[base58.Encode(address)] = info
	return nil
}

// AddTransaction records a confirmed transaction as touching each of the
// given addresses. Later additions are returned first, matching RPC order.
func (c *Client) AddTransaction(txn solana.ConfirmedTransaction, sig solana.Signature, addresses ...ed25519.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transactions[base58.Encode(sig[:])] = txn

	entry := &solana.TransactionSignature{
		Signature: sig,
		Slot:      txn.Slot,
		BlockTime: txn.BlockTime,
		Err:       txn.Err,
	}
	for _, address := range addresses {
		key := base58.Encode(address)
		c.signatures[key] = append([]*solana.TransactionSignature{entry}, c.signatures[key]...)
	}
}

func (c *Client) SetSubmitHandler(h SubmitHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitHandler = h
}

// SetError forces method to fail with err until cleared with a nil error.
func (c *Client) SetError(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.errors, method)
		return
	}
	c.errors[method] = err
}

func (c *Client) Submitted() []solana.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]solana.Transaction(nil), c.submitted...)
}

func (c *Client) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[method]
}

func (c *Client) track(method string) error {
	c.calls[method]++
	return c.errors[method]
}

func (c *Client) GetAccountInfo(address ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("GetAccountInfo"); err != nil {
		return solana.AccountInfo{}, err
	}

	info, ok := c.accounts[base58.Encode(address)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	info.Data = append([]byte(nil), info.Data...)
	return info, nil
}

func (c *Client) GetBalance(address ed25519.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("GetBalance"); err != nil {
		return 0, err
	}

	info, ok := c.accounts[base58.Encode(address)]
	if !ok {
		return 0, nil
	}
	return info.Lamports, nil
}

func (c *Client) GetLatestBlockhash() (solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("GetLatestBlockhash"); err != nil {
		return solana.Blockhash{}, err
	}
	return c.blockhash, nil
}

func (c *Client) GetSignatureStatus(sig solana.Signature, _ solana.Commitment) (*solana.SignatureStatus, error) {
	statuses, err := c.GetSignatureStatuses([]solana.Signature{sig})
	if err != nil {
		return nil, err
	}
	if statuses[0] == nil {
		return nil, solana.ErrSignatureNotFound
	}
	return statuses[0], nil
}

func (c *Client) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("GetSignatureStatuses"); err != nil {
		return nil, err
	}

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		for _, txn := range c.submitted {
			if txn.Signatures[0] == sig {
				statuses[i] = &solana.SignatureStatus{ConfirmationStatus: "finalized"}
			}
		}

		if txn, ok := c.transactions[base58.Encode(sig[:])]; ok {
			statuses[i] = &solana.SignatureStatus{
				Slot:               txn.Slot,
				ErrorResult:        txn.Err,
				ConfirmationStatus: "finalized",
			}
		}
	}

	return statuses, nil
}

func (c *Client) GetSignaturesForAddress(address ed25519.PublicKey, _ solana.Commitment, limit uint64, before, until string) ([]*solana.TransactionSignature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("GetSignaturesForAddress"); err != nil {
		return nil, err
	}

	all := c.signatures[base58.Encode(address)]

	start := 0
	if before != "" {
		start = len(all)
		for i, s := range all {
			if base58.Encode(s.Signature[:]) == before {
				start = i + 1
				break
			}
		}
	}

	var result []*solana.TransactionSignature
	for _, s := range all[start:] {
		if until != "" && base58.Encode(s.Signature[:]) == until {
			break
		}
		if limit > 0 && uint64(len(result)) >= limit {
			break
		}
		result = append(result, s)
	}

	return result, nil
}

func (c *Client) GetTokenAccountBalance(address ed25519.PublicKey) (uint64, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("GetTokenAccountBalance"); err != nil {
		return 0, 0, err
	}

	info, ok := c.accounts[base58.Encode(address)]
	if !ok || len(info.Data) < tokenAccountSize {
		return 0, 0, solana.ErrNoBalance
	}
	return binary.LittleEndian.Uint64(info.Data[tokenAmountOffset:]), 0, nil
}

func (c *Client) GetTokenAccountsByOwner(owner, program ed25519.PublicKey) ([]solana.KeyedAccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("GetTokenAccountsByOwner"); err != nil {
		return nil, err
	}

	var result []solana.KeyedAccountInfo
	for key, info := range c.accounts {
		if !bytes.Equal(info.Owner, program) || len(info.Data) < tokenAccountSize {
			continue
		}
		// Token-2022 mints with extensions share the size range
		if len(info.Data) > tokenAccountSize && info.Data[tokenAccountSize] == accountTypeMint {
			continue
		}
		if !bytes.Equal(info.Data[tokenOwnerOffset:tokenOwnerOffset+ed25519.PublicKeySize], owner) {
			continue
		}

		address, err := base58.Decode(key)
		if err != nil {
			return nil, err
		}

		clone := info
		clone.Data = append([]byte(nil), info.Data...)
		result = append(result, solana.KeyedAccountInfo{
			PublicKey:   address,
			AccountInfo: clone,
		})
	}

	return result, nil
}

func (c *Client) GetTransaction(sig solana.Signature, _ solana.Commitment) (solana.ConfirmedTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("GetTransaction"); err != nil {
		return solana.ConfirmedTransaction{}, err
	}

	txn, ok := c.transactions[base58.Encode(sig[:])]
	if !ok {
		return solana.ConfirmedTransaction{}, solana.ErrSignatureNotFound
	}
	return txn, nil
}

func (c *Client) RequestAirdrop(address ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.track("RequestAirdrop"); err != nil {
		return solana.Signature{}, err
	}

	key := base58.Encode(address)
	info := c.accounts[key]
	info.Lamports += lamports
	c.accounts[key] = info

	c.airdrops++
	seed := make([]byte, 0, len(address)+8)
	seed = append(seed, address...)
	seed = binary.LittleEndian.AppendUint64(seed, c.airdrops)

	var sig solana.Signature
	h := sha256.Sum256(seed)
	copy(sig[:], h[:])
	return sig, nil
}

func (c *Client) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	c.mu.Lock()
	handler := c.submitHandler
	err := c.track("SubmitTransaction")
	c.mu.Unlock()

	if len(txn.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction has no signatures")
	}
	sig := txn.Signatures[0]

	if err != nil {
		return sig, err
	}
	if !txn.IsFullySigned() {
		return sig, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	if handler != nil {
		if err := handler(txn); err != nil {
			return sig, err
		}
	}

	c.mu.Lock()
	c.submitted = append(c.submitted, txn)
	c.mu.Unlock()

	return sig, nil
}
