package gideon

type InstructionType uint8

const (
	InstructionTypeInitMintAuthority InstructionType = iota
	InstructionTypeInitEscrowAndMintVoucher
	InstructionTypeReleaseEscrowAndBurnVoucher
	InstructionTypeReleaseExpiredEscrow

	InstructionTypeUnknown InstructionType = 255
)

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitMintAuthority:
		return "init_mint_authority"
	case InstructionTypeInitEscrowAndMintVoucher:
		return "init_escrow_and_mint_voucher"
	case InstructionTypeReleaseEscrowAndBurnVoucher:
		return "release_escrow_and_burn_voucher"
	case InstructionTypeReleaseExpiredEscrow:
		return "release_expired_escrow"
	}
	return "unknown"
}

// GetInstructionType returns the type encoded in the leading tag byte of
// Gideon instruction data.
func GetInstructionType(data []byte) InstructionType {
	if len(data) == 0 || data[0] > uint8(InstructionTypeReleaseExpiredEscrow) {
		return InstructionTypeUnknown
	}
	return InstructionType(data[0])
}
