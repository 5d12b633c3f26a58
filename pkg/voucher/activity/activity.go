package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindInitMintAuthority
	KindCreateVoucher
	KindTransferVoucher
	KindRedeemVoucher
	KindReclaimVoucher
)

type State uint8

const (
	StateUnknown   State = iota
	StatePending         // Signed locally, not yet accepted by an RPC node
	StateSubmitted       // Accepted by an RPC node after preflight
	StateFailed          // Rejected before or during preflight
)

// Record is a locally initiated voucher operation.
type Record struct {
	Id uint64

	ActivityId string
	Kind       Kind

	Wallet    string
	Mint      string
	Signature string

	State        State
	ErrorMessage string

	CreatedAt time.Time
}

// NewRecord returns a pending record with a fresh activity id.
func NewRecord(kind Kind, wallet, mint, signature string) *Record {
	return &Record{
		ActivityId: uuid.New().String(),
		Kind:       kind,
		Wallet:     wallet,
		Mint:       mint,
		Signature:  signature,
		State:      StatePending,
	}
}

func (r *Record) Validate() error {
	if _, err := uuid.Parse(r.ActivityId); err != nil {
		return errors.Wrap(err, "activity id must be a uuid")
	}

	if r.Kind == KindUnknown {
		return errors.New("kind is required")
	}

	if len(r.Wallet) == 0 {
		return errors.New("wallet is required")
	}

	if len(r.Signature) == 0 {
		return errors.New("signature is required")
	}

	switch r.State {
	case StateUnknown:
		return errors.New("state is required")
	case StateFailed:
	default:
		if len(r.ErrorMessage) > 0 {
			return errors.New("error message can only be set on failed records")
		}
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		ActivityId: r.ActivityId,
		Kind:       r.Kind,

		Wallet:    r.Wallet,
		Mint:      r.Mint,
		Signature: r.Signature,

		State:        r.State,
		ErrorMessage: r.ErrorMessage,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.ActivityId = r.ActivityId
	dst.Kind = r.Kind

	dst.Wallet = r.Wallet
	dst.Mint = r.Mint
	dst.Signature = r.Signature

	dst.State = r.State
	dst.ErrorMessage = r.ErrorMessage

	dst.CreatedAt = r.CreatedAt
}

func (k Kind) String() string {
	switch k {
	case KindInitMintAuthority:
		return "init_mint_authority"
	case KindCreateVoucher:
		return "create_voucher"
	case KindTransferVoucher:
		return "transfer_voucher"
	case KindRedeemVoucher:
		return "redeem_voucher"
	case KindReclaimVoucher:
		return "reclaim_voucher"
	}
	return "unknown"
}

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSubmitted:
		return "submitted"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
