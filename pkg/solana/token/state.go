package token

import (
	"crypto/ed25519"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// AccountSize is the size of the base token account layout. Token-2022
// accounts append an account type byte and extensions after it.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/token/program/src/state.rs
const AccountSize = 165

// Account is a token account. Delegate, IsNative and CloseAuthority are nil
// when their option is unset.
type Account struct {
	Mint            ed25519.PublicKey
	Owner           ed25519.PublicKey
	Amount          uint64
	Delegate        ed25519.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  ed25519.PublicKey
}

func (a *Account) Marshal() []byte {
	w := newLayoutWriter(AccountSize)
	w.key(a.Mint)
	w.key(a.Owner)
	w.u64(a.Amount)
	w.optionalKey(a.Delegate)
	w.u8(uint8(a.State))
	w.optionalU64(a.IsNative)
	w.u64(a.DelegatedAmount)
	w.optionalKey(a.CloseAuthority)
	return w.bytes(AccountSize)
}

// Unmarshal decodes the base account layout and ignores anything past
// AccountSize. a is left untouched when b is too short.
func (a *Account) Unmarshal(b []byte) bool {
	if len(b) < AccountSize {
		return false
	}

	r := newLayoutReader(b[:AccountSize])
	decoded := Account{
		Mint:            r.key(),
		Owner:           r.key(),
		Amount:          r.u64(),
		Delegate:        r.optionalKey(),
		State:           AccountState(r.u8()),
		IsNative:        r.optionalU64(),
		DelegatedAmount: r.u64(),
		CloseAuthority:  r.optionalKey(),
	}
	if r.err != nil {
		return false
	}

	*a = decoded
	return true
}
