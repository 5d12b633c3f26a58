package voucher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/testutil"
)

func TestCanReclaim_ExpiryBoundary(t *testing.T) {
	expiry := int64(1700000000000)

	assert.False(t, CanReclaim(expiry, time.UnixMilli(1699999999999)))
	assert.False(t, CanReclaim(expiry, time.UnixMilli(expiry)))
	assert.True(t, CanReclaim(expiry, time.UnixMilli(1700000000001)))
}

func TestMachine_ReclaimExpiryBoundary(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	payer, recipient := keys[0], keys[1]

	m := NewMachine()
	for _, from := range []State{StateEscrowed, StateTransferred} {
		in := TransitionInput{
			Caller:    payer,
			Payer:     payer,
			Recipient: recipient,
			Expiry:    1700000000000,
			Now:       time.UnixMilli(1699999999999),
		}

		next, err := m.Apply(from, TransitionReclaimExpired, in)
		assert.Equal(t, ErrNotExpired, err)
		assert.Equal(t, from, next)

		in.Now = time.UnixMilli(1700000000001)
		next, err = m.Apply(from, TransitionReclaimExpired, in)
		require.NoError(t, err)
		assert.Equal(t, StateReclaimedExpired, next)
	}
}

func TestMachine_Lifecycle(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)
	payer, recipient, other := keys[0], keys[1], keys[2]

	m := NewMachine()
	now := time.UnixMilli(1600000000000)

	state, err := m.Apply(StateUninitialized, TransitionInitEscrowAndMint, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, StateEscrowed, state)

	state, err = m.Apply(state, TransitionTransferToken, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, StateTransferred, state)

	// Transfers are re-entrant.
	state, err = m.Apply(state, TransitionTransferToken, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, StateTransferred, state)

	burn := TransitionInput{
		Caller:    other,
		Payer:     payer,
		Recipient: recipient,
		Expiry:    1700000000000,
		Now:       now,
	}
	_, err = m.Apply(state, TransitionReleaseAndBurn, burn)
	assert.Equal(t, ErrRecipientMismatch, err)

	burn.Caller = recipient
	state, err = m.Apply(state, TransitionReleaseAndBurn, burn)
	require.NoError(t, err)
	assert.Equal(t, StateRedeemed, state)
	assert.True(t, state.IsTerminal())

	for _, transition := range []Transition{
		TransitionInitEscrowAndMint,
		TransitionTransferToken,
		TransitionReleaseAndBurn,
		TransitionReclaimExpired,
	} {
		next, err := m.Apply(state, transition, burn)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StateRedeemed, next)
	}
}

func TestMachine_Rejections(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)
	payer, recipient, other := keys[0], keys[1], keys[2]

	m := NewMachine()

	_, err := m.Apply(StateEscrowed, TransitionInitEscrowAndMint, TransitionInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Apply(StateUninitialized, TransitionTransferToken, TransitionInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Apply(StateUninitialized, TransitionReleaseAndBurn, TransitionInput{Caller: recipient, Recipient: recipient})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Apply(StateEscrowed, Transition(99), TransitionInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Burning after expiry is rejected by the program.
	_, err = m.Apply(StateEscrowed, TransitionReleaseAndBurn, TransitionInput{
		Caller:    recipient,
		Recipient: recipient,
		Expiry:    1700000000000,
		Now:       time.UnixMilli(1700000000001),
	})
	assert.Equal(t, ErrExpired, err)

	// No expiry means the voucher is never reclaimable, but always redeemable.
	_, err = m.Apply(StateEscrowed, TransitionReclaimExpired, TransitionInput{Caller: payer, Payer: payer, Now: time.Now()})
	assert.Equal(t, ErrNoExpiry, err)

	state, err := m.Apply(StateEscrowed, TransitionReleaseAndBurn, TransitionInput{Caller: recipient, Recipient: recipient, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, StateRedeemed, state)

	_, err = m.Apply(StateEscrowed, TransitionReclaimExpired, TransitionInput{
		Caller: other,
		Payer:  payer,
		Expiry: 1,
		Now:    time.Now(),
	})
	assert.Equal(t, ErrPayerMismatch, err)

	_, err = m.Apply(StateEscrowed, TransitionReleaseAndBurn, TransitionInput{Recipient: recipient})
	assert.Equal(t, ErrRecipientMismatch, err)
}

func TestObserve(t *testing.T) {
	for _, tc := range []struct {
		observation Observation
		expected    State
	}{
		{Observation{}, StateUninitialized},
		{Observation{EscrowExists: true, EscrowLamports: 1}, StateUninitialized},
		{Observation{MintExists: true, MintSupply: 1, EscrowExists: true, EscrowLamports: 10, HolderIsPayer: true}, StateEscrowed},
		{Observation{MintExists: true, MintSupply: 1, EscrowExists: true, EscrowLamports: 10}, StateTransferred},
		{Observation{MintExists: true, MintSupply: 0}, StateRedeemed},
		{Observation{MintExists: true, MintSupply: 1}, StateReclaimedExpired},
		{Observation{MintExists: true, MintSupply: 1, EscrowExists: true}, StateReclaimedExpired},
	} {
		assert.Equal(t, tc.expected, Observe(tc.observation), "%+v", tc.observation)
	}
}

func TestState_Strings(t *testing.T) {
	assert.Equal(t, "reclaimed_expired", StateReclaimedExpired.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "release_and_burn", TransitionReleaseAndBurn.String())
	assert.False(t, StateTransferred.IsTerminal())
	assert.True(t, StateReclaimedExpired.IsTerminal())
}
