package voucher

import (
	"time"
)

// NotFound is the display value used for escrow fields that could not be
// resolved.
const NotFound = "Not found"

// Voucher is a minted, escrow-backed token as observed from chain state.
type Voucher struct {
	MintAddress string

	Name        string
	Symbol      string
	Description string
	URI         string

	EscrowAddress string

	// Escrow is the display balance of the escrow account in SOL, or NotFound.
	Escrow         string
	EscrowLamports uint64

	// Expiry is a unix timestamp in milliseconds. Zero means no expiry.
	Expiry int64

	// Amount is the token balance held by the queried wallet.
	Amount uint64

	State State
}

// NewUndecodableVoucher returns the record surfaced for a mint whose account
// data could not be decoded.
func NewUndecodableVoucher(mint string) *Voucher {
	return &Voucher{
		MintAddress:   mint,
		EscrowAddress: NotFound,
		Escrow:        NotFound,
	}
}

// NewVoucherFromMetadata builds the on-chain view of a voucher from its
// decoded mint metadata.
func NewVoucherFromMetadata(mint string, m Metadata) *Voucher {
	v := NewUndecodableVoucher(mint)
	if !m.IsDecoded() {
		return v
	}

	v.Name = m.Name
	v.Symbol = m.Symbol
	v.URI = m.URI
	v.EscrowAddress = m.EscrowAddress
	v.Expiry = m.Expiry
	return v
}

func (v *Voucher) IsDecoded() bool {
	return v.EscrowAddress != NotFound && v.EscrowAddress != ""
}

func (v *Voucher) HasExpiry() bool {
	return v.Expiry != 0
}

// ExpiryTime returns the expiry as a time, or the zero time when the voucher
// never expires.
func (v *Voucher) ExpiryTime() time.Time {
	if !v.HasExpiry() {
		return time.Time{}
	}
	return time.UnixMilli(v.Expiry)
}

func (v *Voucher) IsExpired(now time.Time) bool {
	return v.HasExpiry() && CanReclaim(v.Expiry, now)
}

func (v *Voucher) Clone() *Voucher {
	cloned := *v
	return &cloned
}
