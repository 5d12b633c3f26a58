// Package vouchertest builds account fixtures for voucher tests.
package vouchertest

import (
	"crypto/ed25519"
	"strconv"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/gideon"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
)

// Voucher describes an on-chain voucher to seed into a memory client.
type Voucher struct {
	Mint      ed25519.PublicKey
	Payer     ed25519.PublicKey
	Recipient ed25519.PublicKey
	Holder    ed25519.PublicKey

	Name   string
	Symbol string
	URI    string
	Expiry int64

	EscrowLamports uint64

	// Burnt vouchers have zero supply and a zero holder balance.
	Burnt bool
}

// MintData lays out a Token-2022 mint carrying the metadata pointer and the
// inline token metadata the program writes.
func MintData(t *testing.T, mint, authority ed25519.PublicKey, supply uint64, name, symbol, uri, escrow string, expiry int64) []byte {
	metadata := &token.TokenMetadata{
		Name:   name,
		Symbol: symbol,
		URI:    uri,
		AdditionalMetadata: []token.MetadataField{
			{Key: "escrow", Value: escrow},
			{Key: "expiry", Value: strconv.FormatInt(expiry, 10)},
		},
	}
	copy(metadata.UpdateAuthority[:], authority)
	copy(metadata.Mint[:], mint)

	encoded, err := metadata.Marshal()
	require.NoError(t, err)

	pointer := &token.MetadataPointer{Authority: authority, MetadataAddress: mint}

	return token.MarshalMintWithExtensions(
		&token.Mint{
			MintAuthority: authority,
			Supply:        supply,
			IsInitialized: true,
		},
		token.Extension{Type: token.ExtensionTypeMetadataPointer, Value: pointer.Marshal()},
		token.Extension{Type: token.ExtensionTypeTokenMetadata, Value: encoded},
	)
}

func TokenAccountData(mint, owner ed25519.PublicKey, amount uint64) []byte {
	account := &token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.AccountStateInitialized,
	}
	return account.Marshal()
}

// Seed writes the mint, escrow and holder ATA of v into sc and returns the
// escrow address.
func Seed(t *testing.T, sc *memory.Client, v Voucher) ed25519.PublicKey {
	authority, _, err := gideon.GetMintAuthorityAddress()
	require.NoError(t, err)

	escrow, bump, err := gideon.GetEscrowAddress(&gideon.GetEscrowAddressArgs{
		Payer:     v.Payer,
		Recipient: v.Recipient,
		Mint:      v.Mint,
	})
	require.NoError(t, err)

	supply := uint64(1)
	if v.Burnt {
		supply = 0
	}

	sc.SetAccount(v.Mint, solana.AccountInfo{
		Owner: token.Program2022Key,
		Data:  MintData(t, v.Mint, authority, supply, v.Name, v.Symbol, v.URI, base58.Encode(escrow), v.Expiry),
	})

	if v.EscrowLamports > 0 {
		account := &gideon.EscrowAccount{
			Payer:       v.Payer,
			Recipient:   v.Recipient,
			Amount:      v.EscrowLamports,
			Bump:        bump,
			VoucherMint: v.Mint,
		}
		data, err := account.Marshal()
		require.NoError(t, err)

		sc.SetAccount(escrow, solana.AccountInfo{
			Owner:    gideon.ProgramKey,
			Lamports: v.EscrowLamports,
			Data:     data,
		})
	}

	holder := v.Holder
	if holder == nil {
		holder = v.Payer
	}
	ata, err := token.GetAssociatedAccount(holder, v.Mint, token.Program2022Key)
	require.NoError(t, err)

	sc.SetAccount(ata, solana.AccountInfo{
		Owner: token.Program2022Key,
		Data:  TokenAccountData(v.Mint, holder, supply),
	})

	return escrow
}
