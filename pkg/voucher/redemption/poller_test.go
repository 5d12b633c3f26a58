package redemption

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
	"github.com/gideon-vouchers/voucher-server/pkg/testutil"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/vouchertest"
)

func newTestPoller(sc solana.Client, timeout time.Duration) *Poller {
	return NewPoller(sc, withManualTestOverrides(&testOverrides{
		pollTimeout:  timeout,
		pollInterval: 5 * time.Millisecond,
	}))
}

func deliver(t *testing.T, sc *memory.Client, owner, mint ed25519.PublicKey, amount uint64) {
	ata, err := token.GetAssociatedAccount(owner, mint, token.Program2022Key)
	require.NoError(t, err)
	sc.SetAccount(ata, solana.AccountInfo{
		Owner: token.Program2022Key,
		Data:  vouchertest.TokenAccountData(mint, owner, amount),
	})
}

func TestWaitForReceipt_AlreadyHeld(t *testing.T) {
	sc := memory.New()
	keys := testutil.GenerateSolanaKeys(t, 2)
	deliver(t, sc, keys[0], keys[1], 1)

	status, err := newTestPoller(sc, time.Second).WaitForReceipt(context.Background(), base58.Encode(keys[0]), base58.Encode(keys[1]))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)
	assert.Equal(t, 1, sc.CallCount("GetTokenAccountBalance"))
}

func TestWaitForReceipt_ArrivesLater(t *testing.T) {
	sc := memory.New()
	keys := testutil.GenerateSolanaKeys(t, 2)

	ata, err := token.GetAssociatedAccount(keys[0], keys[1], token.Program2022Key)
	require.NoError(t, err)

	go func() {
		_ = testutil.WaitFor(time.Second, time.Millisecond, func() bool {
			return sc.CallCount("GetTokenAccountBalance") >= 2
		})
		sc.SetAccount(ata, solana.AccountInfo{
			Owner: token.Program2022Key,
			Data:  vouchertest.TokenAccountData(keys[1], keys[0], 1),
		})
	}()

	status, err := newTestPoller(sc, 5*time.Second).WaitForReceipt(context.Background(), base58.Encode(keys[0]), base58.Encode(keys[1]))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)
	assert.True(t, sc.CallCount("GetTokenAccountBalance") > 1)
}

func TestWaitForReceipt_BudgetExhausted(t *testing.T) {
	sc := memory.New()
	keys := testutil.GenerateSolanaKeys(t, 2)

	// An empty account doesn't count as receipt
	deliver(t, sc, keys[0], keys[1], 0)

	start := time.Now()
	status, err := newTestPoller(sc, 50*time.Millisecond).WaitForReceipt(context.Background(), base58.Encode(keys[0]), base58.Encode(keys[1]))
	require.NoError(t, err)
	assert.Equal(t, StatusNotConfirmed, status)
	assert.True(t, time.Since(start) >= 50*time.Millisecond)
}

func TestWaitForReceipt_InvalidAddress(t *testing.T) {
	sc := memory.New()
	keys := testutil.GenerateSolanaKeys(t, 1)

	_, err := newTestPoller(sc, time.Second).WaitForReceipt(context.Background(), "invalid", base58.Encode(keys[0]))
	assert.Equal(t, ErrInvalidAddress, err)

	_, err = newTestPoller(sc, time.Second).WaitForReceipt(context.Background(), base58.Encode(keys[0]), "invalid")
	assert.Equal(t, ErrInvalidAddress, err)

	assert.Zero(t, sc.CallCount("GetTokenAccountBalance"))
}
