package voucher

import (
	"bytes"
	"crypto/ed25519"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/gideon"
)

// EscrowInfo is the observed state of an escrow account.
type EscrowInfo struct {
	Address  ed25519.PublicKey
	Exists   bool
	Lamports uint64

	// Account is nil when the data could not be decoded.
	Account *gideon.EscrowAccount
}

// DecodeEscrowInfo interprets a fetched escrow account. A nil info means the
// account does not exist. The recipient is read at the layout's offset.
func (l Layout) DecodeEscrowInfo(address ed25519.PublicKey, info *solana.AccountInfo) EscrowInfo {
	result := EscrowInfo{Address: address}
	if info == nil {
		return result
	}

	result.Exists = true
	result.Lamports = info.Lamports

	if !bytes.Equal(info.Owner, gideon.ProgramKey) {
		return result
	}

	var account gideon.EscrowAccount
	if err := account.Unmarshal(info.Data); err != nil {
		return result
	}

	recipient, ok := l.DecodeEscrowRecipient(info.Data)
	if !ok {
		return result
	}
	account.Recipient = recipient

	result.Account = &account
	return result
}

// Balance returns the display balance, or NotFound for a missing escrow.
func (e EscrowInfo) Balance() string {
	if !e.Exists {
		return NotFound
	}
	return FormatSol(e.Lamports)
}
