package voucher

import (
	"crypto/ed25519"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/gideon"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
)

const (
	DefaultMetadataOffset  = 304
	DefaultMetadataLength  = 240
	DefaultRecipientOffset = gideon.EscrowRecipientOffset

	delimiter    = '`'
	expiryMarker = "expiry"
	escrowKey    = "escrow"

	base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	// Larger digit runs cannot be a millisecond timestamp.
	maxExpiryDigits = 18
)

var (
	ErrMetadataTooLong = errors.New("metadata does not fit the layout window")
	ErrInvalidField    = errors.New("metadata field cannot be encoded")
)

// Layout locates the delimited metadata window inside mint account data and
// the recipient key inside escrow account data. The offsets depend on the
// deployed program build.
type Layout struct {
	MetadataOffset  int
	MetadataLength  int
	RecipientOffset int
}

var DefaultLayout = Layout{
	MetadataOffset:  DefaultMetadataOffset,
	MetadataLength:  DefaultMetadataLength,
	RecipientOffset: DefaultRecipientOffset,
}

// Metadata is the fixed-arity record recovered from a mint account.
type Metadata struct {
	Name          string
	Symbol        string
	URI           string
	EscrowAddress string
	Expiry        int64
}

// UndecodableMetadata is returned for absent, short or foreign account data.
func UndecodableMetadata() Metadata {
	return Metadata{EscrowAddress: NotFound}
}

func (m Metadata) IsDecoded() bool {
	return m.EscrowAddress != NotFound && m.EscrowAddress != ""
}

// DecodeMintMetadata decodes with the DefaultLayout.
func DecodeMintMetadata(data []byte) Metadata {
	return DefaultLayout.DecodeMintMetadata(data)
}

// DecodeMintMetadata recovers the voucher metadata of a mint account. The
// Token-2022 metadata extension is read structurally when present, otherwise
// the delimited window is scanned. It never fails; undecodable data yields
// UndecodableMetadata.
func (l Layout) DecodeMintMetadata(data []byte) Metadata {
	if m, ok := decodeTokenMetadata(data); ok {
		return m
	}
	return l.DecodeWindow(data)
}

func decodeTokenMetadata(data []byte) (Metadata, bool) {
	tm, err := token.GetTokenMetadata(data)
	if err != nil {
		return Metadata{}, false
	}

	escrow, ok := tm.Field(escrowKey)
	if !ok || escrow == "" {
		return Metadata{}, false
	}

	m := Metadata{
		Name:          tm.Name,
		Symbol:        tm.Symbol,
		URI:           tm.URI,
		EscrowAddress: escrow,
	}

	if raw, ok := tm.Field(expiryMarker); ok {
		expiry, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Metadata{}, false
		}
		m.Expiry = expiry
	}

	return m, true
}

// DecodeWindow scans the delimited metadata window only.
func (l Layout) DecodeWindow(data []byte) Metadata {
	if l.MetadataOffset < 0 || l.MetadataLength <= 0 || len(data) < l.MetadataOffset+l.MetadataLength {
		return UndecodableMetadata()
	}

	segments := tokenize(data[l.MetadataOffset : l.MetadataOffset+l.MetadataLength])
	if len(segments) < 4 {
		return UndecodableMetadata()
	}

	// Length prefixes and the additional metadata keys may split the tail
	// into several segments.
	escrow, expiry := splitEscrowAndExpiry(strings.Join(segments[3:], ""))
	if escrow == "" {
		return UndecodableMetadata()
	}

	return Metadata{
		Name:          segments[0],
		Symbol:        segments[1],
		URI:           segments[2],
		EscrowAddress: escrow,
		Expiry:        expiry,
	}
}

// tokenize maps NUL, control and invalid UTF-8 bytes to the delimiter and
// returns the non-empty segments in order.
func tokenize(window []byte) []string {
	text := strings.ToValidUTF8(string(window), string(delimiter))
	text = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return delimiter
		}
		return r
	}, text)

	return strings.FieldsFunc(text, func(r rune) bool {
		return r == delimiter
	})
}

func splitEscrowAndExpiry(tail string) (string, int64) {
	before, after := tail, ""
	if i := strings.Index(tail, expiryMarker); i >= 0 {
		before, after = tail[:i], tail[i+len(expiryMarker):]
	}

	return escrowFromRun(trailingBase58Run(before)), firstNumber(after)
}

// escrowFromRun drops a key literal that abuts the address. The letters of
// "escrow" are all base58, so a run that is already a full key is kept whole.
func escrowFromRun(run string) string {
	if isPublicKey(run) {
		return run
	}
	return strings.TrimPrefix(run, escrowKey)
}

func isPublicKey(s string) bool {
	_, err := solana.ParsePublicKey(s)
	return err == nil
}

func trailingBase58Run(s string) string {
	start := len(s)
	for start > 0 && strings.IndexByte(base58Alphabet, s[start-1]) >= 0 {
		start--
	}
	return s[start:]
}

func firstNumber(s string) int64 {
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return 0
	}

	end := start
	for end < len(s) && isDigit(rune(s[end])) {
		end++
	}

	digits := strings.TrimLeft(s[start:end], "0")
	if digits == "" || len(digits) > maxExpiryDigits {
		return 0
	}

	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Encode lays m out in the delimited window of a zeroed buffer of
// MetadataOffset+MetadataLength bytes. Used to build fixtures.
func (l Layout) Encode(m Metadata) ([]byte, error) {
	for _, field := range []string{m.Name, m.Symbol, m.URI} {
		if !isEncodableField(field) {
			return nil, errors.Wrapf(ErrInvalidField, "%q", field)
		}
	}
	if m.EscrowAddress == "" || strings.Contains(m.EscrowAddress, expiryMarker) || (strings.HasPrefix(m.EscrowAddress, escrowKey) && !isPublicKey(m.EscrowAddress)) || trailingBase58Run(m.EscrowAddress) != m.EscrowAddress {
		return nil, errors.Wrapf(ErrInvalidField, "escrow address %q", m.EscrowAddress)
	}
	if m.Expiry < 0 {
		return nil, errors.Wrap(ErrInvalidField, "negative expiry")
	}

	var sb strings.Builder
	for _, field := range []string{m.Name, m.Symbol, m.URI, m.EscrowAddress} {
		sb.WriteByte(delimiter)
		sb.WriteString(field)
	}
	if m.Expiry > 0 {
		sb.WriteString(expiryMarker)
		sb.WriteString(strconv.FormatInt(m.Expiry, 10))
	}

	if sb.Len() > l.MetadataLength {
		return nil, errors.Wrapf(ErrMetadataTooLong, "%d bytes exceeds %d", sb.Len(), l.MetadataLength)
	}

	data := make([]byte, l.MetadataOffset+l.MetadataLength)
	copy(data[l.MetadataOffset:], sb.String())
	return data, nil
}

func isEncodableField(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f || r == delimiter {
			return false
		}
	}
	return true
}

// DecodeEscrowRecipient decodes with the DefaultLayout.
func DecodeEscrowRecipient(data []byte) (ed25519.PublicKey, bool) {
	return DefaultLayout.DecodeEscrowRecipient(data)
}

// DecodeEscrowRecipient reads the recipient key of an escrow account.
func (l Layout) DecodeEscrowRecipient(data []byte) (ed25519.PublicKey, bool) {
	end := l.RecipientOffset + ed25519.PublicKeySize
	if l.RecipientOffset < 0 || len(data) < end {
		return nil, false
	}

	recipient := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(recipient, data[l.RecipientOffset:end])
	return recipient, true
}
