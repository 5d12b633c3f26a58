package redemption

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

// Sentinels sent by the issuer once it has checked for the voucher.
const (
	TransferValid   = "Transfer valid"
	TransferInvalid = "Transfer invalid"
)

const separator = ","

var (
	ErrInvalidPayload = errors.New("invalid redemption payload")
)

// Handoff is what a holder presents to an issuer, typically as a QR code: the
// peer to connect back to, the holder's wallet and the voucher to redeem.
type Handoff struct {
	PeerId string
	Wallet string
	Mint   string
}

// Offer is the issuer's reply naming the wallet the voucher should be sent to.
type Offer struct {
	Wallet string
	Mint   string
}

func EncodeHandoff(h *Handoff) string {
	return strings.Join([]string{h.PeerId, h.Wallet, h.Mint}, separator)
}

func ParseHandoff(payload string) (*Handoff, error) {
	parts := strings.Split(strings.TrimSpace(payload), separator)
	if len(parts) != 3 || len(parts[0]) == 0 {
		return nil, errors.Wrapf(ErrInvalidPayload, "expected peer, wallet and mint in %q", payload)
	}

	h := &Handoff{
		PeerId: parts[0],
		Wallet: parts[1],
		Mint:   parts[2],
	}
	if err := validateKeys(h.Wallet, h.Mint); err != nil {
		return nil, err
	}
	return h, nil
}

func EncodeOffer(o *Offer) string {
	return strings.Join([]string{o.Wallet, o.Mint}, separator)
}

func ParseOffer(payload string) (*Offer, error) {
	parts := strings.Split(strings.TrimSpace(payload), separator)
	if len(parts) != 2 {
		return nil, errors.Wrapf(ErrInvalidPayload, "expected wallet and mint in %q", payload)
	}

	o := &Offer{
		Wallet: parts[0],
		Mint:   parts[1],
	}
	if err := validateKeys(o.Wallet, o.Mint); err != nil {
		return nil, err
	}
	return o, nil
}

func validateKeys(keys ...string) error {
	for _, key := range keys {
		if _, err := solana.ParsePublicKey(key); err != nil {
			return errors.Wrapf(ErrInvalidPayload, "invalid address %q", key)
		}
	}
	return nil
}
