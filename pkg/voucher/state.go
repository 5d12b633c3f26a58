package voucher

import (
	"bytes"
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"
)

// State is a stage of the escrow-voucher lifecycle.
type State uint8

const (
	StateUninitialized State = iota
	StateEscrowed
	StateTransferred
	StateRedeemed
	StateReclaimedExpired
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateEscrowed:
		return "escrowed"
	case StateTransferred:
		return "transferred"
	case StateRedeemed:
		return "redeemed"
	case StateReclaimedExpired:
		return "reclaimed_expired"
	}
	return "unknown"
}

func (s State) IsTerminal() bool {
	return s == StateRedeemed || s == StateReclaimedExpired
}

// isLive reports whether the escrow is still funded.
func (s State) isLive() bool {
	return s == StateEscrowed || s == StateTransferred
}

// Transition is an on-chain action that moves a voucher between states.
type Transition uint8

const (
	TransitionInitEscrowAndMint Transition = iota
	TransitionTransferToken
	TransitionReleaseAndBurn
	TransitionReclaimExpired
)

func (t Transition) String() string {
	switch t {
	case TransitionInitEscrowAndMint:
		return "init_escrow_and_mint"
	case TransitionTransferToken:
		return "transfer_token"
	case TransitionReleaseAndBurn:
		return "release_and_burn"
	case TransitionReclaimExpired:
		return "reclaim_expired"
	}
	return "unknown"
}

var (
	ErrInvalidTransition = errors.New("invalid voucher state transition")
	ErrRecipientMismatch = errors.New("caller is not the escrow recipient")
	ErrPayerMismatch     = errors.New("caller is not the escrow payer")
	ErrNotExpired        = errors.New("voucher has not expired")
	ErrNoExpiry          = errors.New("voucher has no expiry")
	ErrExpired           = errors.New("voucher has expired")
)

// TransitionInput carries the facts a transition is checked against.
type TransitionInput struct {
	// Caller is the wallet submitting the instruction.
	Caller ed25519.PublicKey

	// Payer and Recipient are the keys recorded in the escrow account.
	Payer     ed25519.PublicKey
	Recipient ed25519.PublicKey

	// Expiry in unix milliseconds, zero for none.
	Expiry int64
	Now    time.Time
}

// Machine applies lifecycle transitions. It holds no state; the current
// state is always re-derived from chain observations.
type Machine struct{}

func NewMachine() *Machine {
	return &Machine{}
}

// Apply returns the state reached by applying t in state from, or an error
// when the client must not submit the transition.
func (m *Machine) Apply(from State, t Transition, in TransitionInput) (State, error) {
	switch t {
	case TransitionInitEscrowAndMint:
		if from != StateUninitialized {
			return from, errors.Wrapf(ErrInvalidTransition, "%s from %s", t, from)
		}
		return StateEscrowed, nil

	case TransitionTransferToken:
		if !from.isLive() {
			return from, errors.Wrapf(ErrInvalidTransition, "%s from %s", t, from)
		}
		return StateTransferred, nil

	case TransitionReleaseAndBurn:
		if !from.isLive() {
			return from, errors.Wrapf(ErrInvalidTransition, "%s from %s", t, from)
		}
		if len(in.Caller) == 0 || !bytes.Equal(in.Caller, in.Recipient) {
			return from, ErrRecipientMismatch
		}
		if in.Expiry != 0 && CanReclaim(in.Expiry, in.Now) {
			return from, ErrExpired
		}
		return StateRedeemed, nil

	case TransitionReclaimExpired:
		if !from.isLive() {
			return from, errors.Wrapf(ErrInvalidTransition, "%s from %s", t, from)
		}
		if in.Expiry == 0 {
			return from, ErrNoExpiry
		}
		if !CanReclaim(in.Expiry, in.Now) {
			return from, ErrNotExpired
		}
		if len(in.Caller) == 0 || !bytes.Equal(in.Caller, in.Payer) {
			return from, ErrPayerMismatch
		}
		return StateReclaimedExpired, nil
	}

	return from, errors.Wrapf(ErrInvalidTransition, "unknown transition %d", t)
}

// CanReclaim reports whether now is strictly past the expiry, in
// milliseconds.
func CanReclaim(expiry int64, now time.Time) bool {
	return now.UnixMilli() > expiry
}

// Observation is the chain state a voucher's lifecycle state is derived from.
type Observation struct {
	MintExists bool

	// MintSupply drops to zero once the voucher is burnt.
	MintSupply uint64

	EscrowExists   bool
	EscrowLamports uint64

	// HolderIsPayer is set while the token still sits in the issuer's ATA.
	HolderIsPayer bool
}

// Observe derives the lifecycle state from chain facts.
func Observe(o Observation) State {
	if !o.MintExists {
		return StateUninitialized
	}

	if o.MintSupply == 0 {
		return StateRedeemed
	}

	if !o.EscrowExists || o.EscrowLamports == 0 {
		return StateReclaimedExpired
	}

	if o.HolderIsPayer {
		return StateEscrowed
	}
	return StateTransferred
}
