package solana

import (
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/gideon-vouchers/voucher-server/pkg/retry"
	"github.com/gideon-vouchers/voucher-server/pkg/retry/backoff"
)

const (
	// Solana targets 400ms slots. Signatures are polled at twice that rate.
	slotDuration = 400 * time.Millisecond

	// PollRate is the interval between signature status checks.
	PollRate = slotDuration / 2

	// Roughly 32 slots before giving up on a confirmation.
	sigStatusPollLimit = 2 * 32

	// Reference: https://github.com/solana-labs/solana/blob/master/rpc-client-api/src/custom_error.rs
	rpcNodeUnhealthyCode = -32005
	rpcInvalidParamCode  = -32602
	rpcRateLimitedCode   = 429
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNoBalance         = errors.New("no balance")
)

// Client is the subset of the Solana JSON RPC API used to read voucher state
// and submit voucher transactions.
//
// Reference: https://solana.com/docs/rpc
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetTokenAccountBalance(ed25519.PublicKey) (uint64, uint64, error)
	GetTokenAccountsByOwner(owner, program ed25519.PublicKey) ([]KeyedAccountInfo, error)

	GetLatestBlockhash() (Blockhash, error)
	GetSignatureStatus(Signature, Commitment) (*SignatureStatus, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	GetSignaturesForAddress(owner ed25519.PublicKey, commitment Commitment, limit uint64, before, until string) ([]*TransactionSignature, error)
	GetTransaction(Signature, Commitment) (ConfirmedTransaction, error)
	RequestAirdrop(ed25519.PublicKey, uint64, Commitment) (Signature, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

// rpcConfig is the trailing configuration object accepted by most methods.
// Unset fields are left to the node's defaults.
type rpcConfig struct {
	Commitment                     string  `json:"commitment,omitempty"`
	PreflightCommitment            string  `json:"preflightCommitment,omitempty"`
	Encoding                       string  `json:"encoding,omitempty"`
	MaxSupportedTransactionVersion *int    `json:"maxSupportedTransactionVersion,omitempty"`
	SearchTransactionHistory       bool    `json:"searchTransactionHistory,omitempty"`
	Limit                          *uint64 `json:"limit,omitempty"`
	Before                         string  `json:"before,omitempty"`
	Until                          string  `json:"until,omitempty"`
}

type client struct {
	log       *logrus.Entry
	endpoints EndpointRotator
	clients   map[string]jsonrpc.RPCClient
	retrier   retry.Retrier
	blockhash *blockhashCache
}

// New returns a client using the specified endpoint.
func New(endpoint string) Client {
	rotator, _ := NewRoundRobin(endpoint)
	return NewWithRotator(rotator, nil)
}

// NewWithRotator returns a client that spreads calls across the endpoints
// handed out by rotator. Every attempt, including retries, picks the next
// endpoint.
func NewWithRotator(rotator EndpointRotator, opts *jsonrpc.RPCClientOpts) Client {
	clients := make(map[string]jsonrpc.RPCClient)
	for _, endpoint := range rotator.Endpoints() {
		clients[endpoint] = jsonrpc.NewClientWithOpts(endpoint, opts)
	}

	return &client{
		log:       logrus.StandardLogger().WithField("type", "solana/client"),
		endpoints: rotator,
		clients:   clients,
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		blockhash: newBlockhashCache(2 * time.Second),
	}
}

func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		endpoint := c.endpoints.Next()
		rpc := c.clients[endpoint]

		// A lone object argument would otherwise be sent as named params.
		var resp *jsonrpc.RPCResponse
		var err error
		if len(params) == 0 {
			resp, err = rpc.Call(method)
		} else {
			resp, err = rpc.Call(method, params)
		}
		if err == nil && resp == nil {
			err = errors.New("empty rpc response")
		}
		if err != nil {
			return c.classifyTransport(endpoint, method, err)
		}
		if resp.Error != nil {
			return c.classifyRPC(endpoint, method, resp.Error)
		}
		return resp.GetObject(out)
	})
	return err
}

// classifyTransport handles failures where no JSON-RPC response was read:
// unreachable hosts, timeouts and non-2xx statuses. All of them are retried
// against the next endpoint.
func (c *client) classifyTransport(endpoint, method string, err error) error {
	c.log.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	}).WithError(err).Warn("rpc endpoint unavailable")
	return errServiceError
}

// classifyRPC maps node errors worth retrying elsewhere to the retriable
// sentinels. Everything else is returned untouched.
func (c *client) classifyRPC(endpoint, method string, err *jsonrpc.RPCError) error {
	log := c.log.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	})

	switch {
	case err.Code == rpcRateLimitedCode:
		log.Warn("rate limited")
		return errRateLimited
	case err.Code >= 500, err.Code == rpcNodeUnhealthyCode:
		log.WithError(err).Warn("rpc node unhealthy")
		return errServiceError
	}
	return err
}

func isInvalidParam(err error) bool {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	return ok && rpcErr.Code == rpcInvalidParamCode
}
