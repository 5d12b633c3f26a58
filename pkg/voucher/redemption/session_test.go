package redemption

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
	"github.com/gideon-vouchers/voucher-server/pkg/testutil"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/vouchertest"
)

type sessionEnv struct {
	ctx    context.Context
	sc     *memory.Client
	holder string
	issuer string
	mint   string
}

func setupSession(t *testing.T) *sessionEnv {
	keys := testutil.GenerateSolanaKeys(t, 3)
	return &sessionEnv{
		ctx:    context.Background(),
		sc:     memory.New(),
		holder: base58.Encode(keys[0]),
		issuer: base58.Encode(keys[1]),
		mint:   base58.Encode(keys[2]),
	}
}

// transfer simulates the holder's on-chain transfer landing in the issuer's
// token account.
func (e *sessionEnv) transfer() TransferFunc {
	return func(_ context.Context, wallet, mint string) error {
		owner, err := base58.Decode(wallet)
		if err != nil {
			return err
		}
		mintKey, err := base58.Decode(mint)
		if err != nil {
			return err
		}

		ata, err := token.GetAssociatedAccount(owner, mintKey, token.Program2022Key)
		if err != nil {
			return err
		}
		e.sc.SetAccount(ata, solana.AccountInfo{
			Owner: token.Program2022Key,
			Data:  vouchertest.TokenAccountData(mintKey, owner, 1),
		})
		return nil
	}
}

func pipeDialer(transport Transport) Dialer {
	return func(context.Context, string) (Transport, error) {
		return transport, nil
	}
}

type respondResult struct {
	status Status
	err    error
}

func TestSession_Confirmed(t *testing.T) {
	env := setupSession(t)
	holderEnd, issuerEnd := NewPipe()

	handoff := &Handoff{PeerId: NewPeerId(), Wallet: env.holder, Mint: env.mint}

	results := make(chan respondResult, 1)
	go func() {
		status, err := Respond(env.ctx, holderEnd, handoff, env.transfer())
		results <- respondResult{status, err}
	}()

	session := NewSession(pipeDialer(issuerEnd), newTestPoller(env.sc, time.Second))
	status, err := session.Verify(env.ctx, EncodeHandoff(handoff), env.issuer)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)

	result := <-results
	require.NoError(t, result.err)
	assert.Equal(t, StatusConfirmed, result.status)
}

func TestSession_NotConfirmed(t *testing.T) {
	env := setupSession(t)
	holderEnd, issuerEnd := NewPipe()

	handoff := &Handoff{PeerId: NewPeerId(), Wallet: env.holder, Mint: env.mint}

	results := make(chan respondResult, 1)
	go func() {
		// The holder "sends" but nothing lands on chain
		status, err := Respond(env.ctx, holderEnd, handoff, func(context.Context, string, string) error { return nil })
		results <- respondResult{status, err}
	}()

	session := NewSession(pipeDialer(issuerEnd), newTestPoller(env.sc, 30*time.Millisecond))
	status, err := session.Verify(env.ctx, EncodeHandoff(handoff), env.issuer)
	require.NoError(t, err)
	assert.Equal(t, StatusNotConfirmed, status)

	result := <-results
	require.NoError(t, result.err)
	assert.Equal(t, StatusNotConfirmed, result.status)
}

func TestSession_VerifyRejectsBadInput(t *testing.T) {
	env := setupSession(t)

	dialed := false
	session := NewSession(func(context.Context, string) (Transport, error) {
		dialed = true
		return nil, errors.New("unexpected dial")
	}, newTestPoller(env.sc, time.Second))

	_, err := session.Verify(env.ctx, "garbage", env.issuer)
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	payload := EncodeHandoff(&Handoff{PeerId: "peer", Wallet: env.holder, Mint: env.mint})

	_, err = session.Verify(env.ctx, payload, "invalid")
	assert.Equal(t, ErrInvalidAddress, err)

	_, err = session.Verify(env.ctx, payload, env.holder)
	assert.Equal(t, ErrSameWallet, err)

	assert.False(t, dialed)
}

func TestRespond_RejectsWrongMint(t *testing.T) {
	env := setupSession(t)
	holderEnd, issuerEnd := NewPipe()

	other := testutil.GenerateSolanaAddresses(t, 1)[0]
	require.NoError(t, issuerEnd.Send(env.ctx, EncodeOffer(&Offer{Wallet: env.issuer, Mint: other})))

	transferred := false
	status, err := Respond(env.ctx, holderEnd, &Handoff{PeerId: "peer", Wallet: env.holder, Mint: env.mint}, func(context.Context, string, string) error {
		transferred = true
		return nil
	})
	assert.Equal(t, ErrMintMismatch, err)
	assert.Equal(t, StatusNotConfirmed, status)
	assert.False(t, transferred)
}

func TestPipe_Close(t *testing.T) {
	a, b := NewPipe()
	require.NoError(t, a.Send(context.Background(), "hello"))
	require.NoError(t, a.Close())

	msg, err := b.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", msg)

	_, err = b.Receive(context.Background())
	assert.Equal(t, ErrTransportClosed, err)
	assert.Equal(t, ErrTransportClosed, b.Send(context.Background(), "late"))
}

func TestSession_OverRelay(t *testing.T) {
	env := setupSession(t)

	server := httptest.NewServer(NewRelay())
	defer server.Close()
	relayURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithTimeout(env.ctx, 5*time.Second)
	defer cancel()

	handoff := &Handoff{PeerId: NewPeerId(), Wallet: env.holder, Mint: env.mint}

	holderEnd, err := DialRelay(ctx, relayURL, handoff.PeerId)
	require.NoError(t, err)
	defer holderEnd.Close()

	results := make(chan respondResult, 1)
	go func() {
		status, err := Respond(ctx, holderEnd, handoff, env.transfer())
		results <- respondResult{status, err}
	}()

	session := NewSession(RelayDialer(relayURL), newTestPoller(env.sc, time.Second))
	status, err := session.Verify(ctx, EncodeHandoff(handoff), env.issuer)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)

	result := <-results
	require.NoError(t, result.err)
	assert.Equal(t, StatusConfirmed, result.status)
}
