package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledKey(b byte) ed25519.PublicKey {
	return bytes.Repeat([]byte{b}, ed25519.PublicKeySize)
}

func TestAccount_UnmarshalMainnet(t *testing.T) {
	data, err := hex.DecodeString("118a08c9d4cc46c576282e0daf050bbdb04f03313e35e5db3f3def69fa1eeec42b15a9cd4bef2cd809e464570d2a6cbd9bcc64e32ea4ebbcf748757bbb3dd5bd000084e2506ce67c000000000000000000000000000000000000000000000000000000000000000000000000010000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)

	var account Account
	require.True(t, account.Unmarshal(data))
	assert.Equal(t, "2BU1Xgyzqixhjaq9Pa5cNsaa1gSejLeNtDaDRv29qoZm", base58.Encode(account.Mint))
	assert.Equal(t, uint64(9e18), account.Amount)
	assert.Equal(t, AccountStateInitialized, account.State)
	assert.Nil(t, account.Delegate)
	assert.Nil(t, account.IsNative)
	assert.Nil(t, account.CloseAuthority)

	assert.Equal(t, data, account.Marshal())
}

func TestAccount_OptionalFields(t *testing.T) {
	rent := uint64(2039280)
	for _, expected := range []Account{
		{
			Mint:   filledKey(1),
			Owner:  filledKey(2),
			Amount: 1,
			State:  AccountStateInitialized,
		},
		{
			Mint:            filledKey(1),
			Owner:           filledKey(2),
			Amount:          10,
			Delegate:        filledKey(3),
			State:           AccountStateFrozen,
			IsNative:        &rent,
			DelegatedAmount: 4,
			CloseAuthority:  filledKey(2),
		},
	} {
		data := expected.Marshal()
		require.Len(t, data, AccountSize)

		var actual Account
		require.True(t, actual.Unmarshal(data))
		assert.Equal(t, expected, actual)
	}
}

func TestAccount_UnmarshalWithExtensions(t *testing.T) {
	expected := Account{
		Mint:   filledKey(9),
		Owner:  filledKey(7),
		Amount: 1,
		State:  AccountStateInitialized,
	}

	// Account type byte followed by an ImmutableOwner extension header.
	data := append(expected.Marshal(), byte(AccountTypeAccount), 7, 0, 0, 0)

	var actual Account
	require.True(t, actual.Unmarshal(data))
	assert.Equal(t, expected, actual)
}

func TestAccount_UnmarshalShort(t *testing.T) {
	original := Account{Mint: filledKey(1), Owner: filledKey(2), Amount: 5}

	actual := original
	assert.False(t, actual.Unmarshal(original.Marshal()[:AccountSize-1]))
	assert.Equal(t, original, actual)
}
