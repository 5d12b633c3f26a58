package gideon

import (
	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

// Error is a custom program error returned by Gideon.
type Error uint32

const (
	ErrInvalidInstruction Error = iota
	ErrInvalidMintAuthority
	ErrInvalidRecipientAccount
	ErrInsufficientFunds
	ErrInvalidVoucherEscrowAccount
	ErrVoucherExpired
	ErrInvalidIssuer
	ErrVoucherNotExpired
)

var errorNames = map[Error]string{
	ErrInvalidInstruction:          "InvalidInstruction",
	ErrInvalidMintAuthority:        "InvalidMintAuthority",
	ErrInvalidRecipientAccount:     "InvalidRecipientAccount",
	ErrInsufficientFunds:           "InsufficientFunds",
	ErrInvalidVoucherEscrowAccount: "InvalidVoucherEscrowAccount",
	ErrVoucherExpired:              "VoucherExpired",
	ErrInvalidIssuer:               "InvalidIssuer",
	ErrVoucherNotExpired:           "VoucherNotExpired",
}

func (e Error) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return "Unknown"
}

func (e Error) Error() string {
	return "gideon: " + e.String()
}

// GetError extracts the Gideon custom error from a failed transaction, if
// the failure was a custom error raised by an instruction.
func GetError(err error) (Error, bool) {
	var txErr *solana.TransactionError
	if !errors.As(err, &txErr) {
		return 0, false
	}

	ixErr := txErr.InstructionError()
	if ixErr == nil {
		return 0, false
	}

	custom := ixErr.CustomError()
	if custom == nil {
		return 0, false
	}

	return Error(*custom), true
}
