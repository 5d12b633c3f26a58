package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/master/token/program-2022/src/extension/mod.rs

// MintSize is the size of the base mint layout, before any Token-2022 padding
// or extensions.
const MintSize = 82

// AccountType is the discriminator Token-2022 writes right after the base
// account layout when extensions are present.
type AccountType byte

const (
	AccountTypeUninitialized AccountType = iota
	AccountTypeMint
	AccountTypeAccount
)

type ExtensionType uint16

const (
	ExtensionTypeUninitialized   ExtensionType = 0
	ExtensionTypeImmutableOwner  ExtensionType = 7
	ExtensionTypeMetadataPointer ExtensionType = 18
	ExtensionTypeTokenMetadata   ExtensionType = 19
)

const (
	accountTypeOffset = AccountSize
	tlvOffset         = AccountSize + 1
	tlvHeaderSize     = 4
)

var (
	ErrNoExtensions       = errors.New("account has no extensions")
	ErrExtensionNotFound  = errors.New("extension not found")
	ErrMalformedExtension = errors.New("malformed extension data")
)

type Mint struct {
	MintAuthority   ed25519.PublicKey
	Supply          uint64
	Decimals        byte
	IsInitialized   bool
	FreezeAuthority ed25519.PublicKey
}

func (m *Mint) Marshal() []byte {
	w := newLayoutWriter(MintSize)
	w.optionalKey(m.MintAuthority)
	w.u64(m.Supply)
	w.u8(m.Decimals)
	if m.IsInitialized {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.optionalKey(m.FreezeAuthority)
	return w.bytes(MintSize)
}

func (m *Mint) Unmarshal(b []byte) bool {
	if len(b) < MintSize {
		return false
	}

	r := newLayoutReader(b[:MintSize])
	decoded := Mint{
		MintAuthority:   r.optionalKey(),
		Supply:          r.u64(),
		Decimals:        r.u8(),
		IsInitialized:   r.u8() == 1,
		FreezeAuthority: r.optionalKey(),
	}
	if r.err != nil {
		return false
	}

	*m = decoded
	return true
}

// Extension is a single TLV entry.
type Extension struct {
	Type  ExtensionType
	Value []byte
}

// MarshalMintWithExtensions lays out a Token-2022 mint: the base mint, zero
// padding up to the account size, the account type byte and the TLV list.
func MarshalMintWithExtensions(m *Mint, extensions ...Extension) []byte {
	b := make([]byte, tlvOffset)
	copy(b, m.Marshal())
	b[accountTypeOffset] = byte(AccountTypeMint)

	for _, ext := range extensions {
		header := make([]byte, tlvHeaderSize)
		binary.LittleEndian.PutUint16(header, uint16(ext.Type))
		binary.LittleEndian.PutUint16(header[2:], uint16(len(ext.Value)))

		b = append(b, header...)
		b = append(b, ext.Value...)
	}

	return b
}

// GetExtensions walks the TLV list of a Token-2022 mint account.
func GetExtensions(data []byte) ([]Extension, error) {
	if len(data) <= tlvOffset {
		return nil, ErrNoExtensions
	}
	if AccountType(data[accountTypeOffset]) != AccountTypeMint {
		return nil, errors.Wrapf(ErrNoExtensions, "unexpected account type %d", data[accountTypeOffset])
	}

	var extensions []Extension
	for offset := tlvOffset; offset+tlvHeaderSize <= len(data); {
		typ := ExtensionType(binary.LittleEndian.Uint16(data[offset:]))
		length := int(binary.LittleEndian.Uint16(data[offset+2:]))
		offset += tlvHeaderSize

		// Trailing zeroed space is reserved for future extensions.
		if typ == ExtensionTypeUninitialized {
			break
		}

		if offset+length > len(data) {
			return nil, errors.Wrapf(ErrMalformedExtension, "extension %d overruns account", typ)
		}

		extensions = append(extensions, Extension{
			Type:  typ,
			Value: data[offset : offset+length],
		})
		offset += length
	}

	return extensions, nil
}

func GetExtension(data []byte, typ ExtensionType) (*Extension, error) {
	extensions, err := GetExtensions(data)
	if err != nil {
		return nil, err
	}

	for _, ext := range extensions {
		if ext.Type == typ {
			return &ext, nil
		}
	}

	return nil, ErrExtensionNotFound
}

type MetadataPointer struct {
	Authority       ed25519.PublicKey
	MetadataAddress ed25519.PublicKey
}

func (p *MetadataPointer) Marshal() []byte {
	b := make([]byte, 2*ed25519.PublicKeySize)
	copy(b, p.Authority)
	copy(b[ed25519.PublicKeySize:], p.MetadataAddress)
	return b
}

func (p *MetadataPointer) Unmarshal(b []byte) error {
	if len(b) != 2*ed25519.PublicKeySize {
		return errors.Wrapf(ErrMalformedExtension, "invalid metadata pointer size: %d", len(b))
	}

	p.Authority = nonZeroKey(b[:ed25519.PublicKeySize])
	p.MetadataAddress = nonZeroKey(b[ed25519.PublicKeySize:])
	return nil
}

// MetadataField is an entry of the free-form additional metadata list.
type MetadataField struct {
	Key   string
	Value string
}

// TokenMetadata is the Borsh encoded token-metadata interface state stored
// inline in the mint.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/token-metadata/interface/src/state.rs
type TokenMetadata struct {
	UpdateAuthority    [32]byte
	Mint               [32]byte
	Name               string
	Symbol             string
	URI                string
	AdditionalMetadata []MetadataField
}

func (m *TokenMetadata) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(*m); err != nil {
		return nil, errors.Wrap(err, "failed to encode token metadata")
	}
	return buf.Bytes(), nil
}

func (m *TokenMetadata) Unmarshal(b []byte) error {
	if err := bin.NewBorshDecoder(b).Decode(m); err != nil {
		return errors.Wrap(ErrMalformedExtension, err.Error())
	}
	return nil
}

// Field returns the additional metadata value stored under key.
func (m *TokenMetadata) Field(key string) (string, bool) {
	for _, f := range m.AdditionalMetadata {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// GetTokenMetadata returns the inline token metadata of a Token-2022 mint.
func GetTokenMetadata(data []byte) (*TokenMetadata, error) {
	ext, err := GetExtension(data, ExtensionTypeTokenMetadata)
	if err != nil {
		return nil, err
	}

	var metadata TokenMetadata
	if err := metadata.Unmarshal(ext.Value); err != nil {
		return nil, err
	}
	return &metadata, nil
}

func nonZeroKey(b []byte) ed25519.PublicKey {
	if bytes.Equal(b, make([]byte, len(b))) {
		return nil
	}
	key := make(ed25519.PublicKey, len(b))
	copy(key, b)
	return key
}
