package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/database/query"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
)

func RunTests(t *testing.T, s activity.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s activity.Store){
		testHappyPath,
		testGetAllByWallet,
		testGetAllByMint,
		testValidation,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s activity.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		record := activity.NewRecord(activity.KindCreateVoucher, "wallet", "mint", "signature")
		cloned := record.Clone()

		_, err := s.Get(ctx, record.ActivityId)
		assert.Equal(t, activity.ErrNotFound, err)
		_, err = s.GetBySignature(ctx, record.Signature)
		assert.Equal(t, activity.ErrNotFound, err)
		assert.Equal(t, activity.ErrNotFound, s.Update(ctx, record))

		require.NoError(t, s.Put(ctx, record))
		assert.Equal(t, activity.ErrAlreadyExists, s.Put(ctx, record))

		duplicateSignature := activity.NewRecord(activity.KindTransferVoucher, "wallet", "mint", record.Signature)
		assert.Equal(t, activity.ErrAlreadyExists, s.Put(ctx, duplicateSignature))

		actual, err := s.Get(ctx, record.ActivityId)
		require.NoError(t, err)
		assert.True(t, actual.Id > 0)
		assert.True(t, actual.CreatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual)

		actual, err = s.GetBySignature(ctx, record.Signature)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)

		record.State = activity.StateFailed
		record.ErrorMessage = "custom program error: 0x3"
		cloned = record.Clone()
		require.NoError(t, s.Update(ctx, record))

		actual, err = s.Get(ctx, record.ActivityId)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
	})
}

func testGetAllByWallet(t *testing.T, s activity.Store) {
	t.Run("testGetAllByWallet", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByWallet(ctx, "wallet", query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, activity.ErrNotFound, err)

		var expected []*activity.Record
		for i := 0; i < 5; i++ {
			record := activity.NewRecord(activity.KindTransferVoucher, "wallet", fmt.Sprintf("mint%d", i), fmt.Sprintf("signature%d", i))
			require.NoError(t, s.Put(ctx, record))
			expected = append(expected, record)
		}
		require.NoError(t, s.Put(ctx, activity.NewRecord(activity.KindTransferVoucher, "other", "mint", "other_signature")))

		actual, err := s.GetAllByWallet(ctx, "wallet", query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i := range actual {
			assertEquivalentRecords(t, expected[i], actual[i])
		}

		actual, err = s.GetAllByWallet(ctx, "wallet", query.EmptyCursor, 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i := range actual {
			assertEquivalentRecords(t, expected[len(expected)-1-i], actual[i])
		}

		actual, err = s.GetAllByWallet(ctx, "wallet", query.ToCursor(expected[1].Id), 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, expected[2], actual[0])
		assertEquivalentRecords(t, expected[3], actual[1])

		actual, err = s.GetAllByWallet(ctx, "wallet", query.ToCursor(expected[1].Id), 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assertEquivalentRecords(t, expected[0], actual[0])

		_, err = s.GetAllByWallet(ctx, "wallet", query.ToCursor(expected[4].Id), 10, query.Ascending)
		assert.Equal(t, activity.ErrNotFound, err)
	})
}

func testGetAllByMint(t *testing.T, s activity.Store) {
	t.Run("testGetAllByMint", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByMint(ctx, "mint")
		assert.Equal(t, activity.ErrNotFound, err)

		kinds := []activity.Kind{
			activity.KindCreateVoucher,
			activity.KindTransferVoucher,
			activity.KindRedeemVoucher,
		}
		for i, kind := range kinds {
			require.NoError(t, s.Put(ctx, activity.NewRecord(kind, fmt.Sprintf("wallet%d", i), "mint", fmt.Sprintf("signature%d", i))))
		}

		actual, err := s.GetAllByMint(ctx, "mint")
		require.NoError(t, err)
		require.Len(t, actual, len(kinds))
		for i, kind := range kinds {
			assert.Equal(t, kind, actual[i].Kind)
		}
	})
}

func testValidation(t *testing.T, s activity.Store) {
	t.Run("testValidation", func(t *testing.T) {
		ctx := context.Background()

		for _, invalid := range []*activity.Record{
			{ActivityId: "not-a-uuid", Kind: activity.KindCreateVoucher, Wallet: "wallet", Signature: "signature", State: activity.StatePending},
			func() *activity.Record {
				r := activity.NewRecord(activity.KindUnknown, "wallet", "mint", "signature")
				return r
			}(),
			activity.NewRecord(activity.KindCreateVoucher, "", "mint", "signature"),
			activity.NewRecord(activity.KindCreateVoucher, "wallet", "mint", ""),
			func() *activity.Record {
				r := activity.NewRecord(activity.KindCreateVoucher, "wallet", "mint", "signature")
				r.ErrorMessage = "error"
				return r
			}(),
		} {
			assert.Error(t, s.Put(ctx, invalid))
		}
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *activity.Record) {
	assert.Equal(t, obj1.ActivityId, obj2.ActivityId)
	assert.Equal(t, obj1.Kind, obj2.Kind)
	assert.Equal(t, obj1.Wallet, obj2.Wallet)
	assert.Equal(t, obj1.Mint, obj2.Mint)
	assert.Equal(t, obj1.Signature, obj2.Signature)
	assert.Equal(t, obj1.State, obj2.State)
	assert.Equal(t, obj1.ErrorMessage, obj2.ErrorMessage)
}
