package system

import (
	"crypto/ed25519"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

var (
	// ProgramKey is the system program, which owns plain wallets and creates
	// every other account.
	ProgramKey = mustKey("11111111111111111111111111111111")

	// RentSysvarKey is read by programs that check rent exemption at
	// initialization.
	//
	// Reference: https://docs.solanalabs.com/runtime/sysvars#rent
	RentSysvarKey = mustKey("SysvarRent111111111111111111111111111111111")

	// ClockSysvarKey is read by the escrow program to compare against a
	// voucher's expiry.
	//
	// Reference: https://docs.solanalabs.com/runtime/sysvars#clock
	ClockSysvarKey = mustKey("SysvarC1ock11111111111111111111111111111111")
)

func mustKey(address string) ed25519.PublicKey {
	key, err := solana.ParsePublicKey(address)
	if err != nil {
		panic(err)
	}
	return key
}
