package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	"github.com/code-payments/token-lifecycle/pkg/database/query"
	"github.com/code-payments/token-lifecycle/pkg/pointer"
)

func RunTests(t *testing.T, s operation.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s operation.Store){
		testHappyPath,
		testValidation,
		testPaging,
		testCounting,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s operation.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		record := &operation.Record{
			OperationId: "operation_id",
			Type:        operation.TypeSendTokens,

			Owner:        "owner",
			Mint:         pointer.String("mint"),
			Counterparty: pointer.String("counterparty"),
			Quantity:     1_000_000_000,

			Signature: pointer.String("signature"),
			State:     operation.StateSucceeded,

			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		cloned := record.Clone()

		_, err := s.Get(ctx, record.OperationId)
		assert.Equal(t, operation.ErrNotFound, err)

		require.NoError(t, s.Put(ctx, record))
		assert.True(t, record.Id > 0)
		assert.Equal(t, operation.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.Get(ctx, record.OperationId)
		require.NoError(t, err)
		assert.Equal(t, record.Id, actual.Id)
		assertEquivalentRecords(t, &cloned, actual)

		failed := &operation.Record{
			OperationId: "failed_operation_id",
			Type:        operation.TypeCreateToken,
			Owner:       "owner",
			State:       operation.StateFailed,
		}
		require.NoError(t, s.Put(ctx, failed))
		assert.False(t, failed.CreatedAt.IsZero())

		actual, err = s.Get(ctx, failed.OperationId)
		require.NoError(t, err)
		assert.Nil(t, actual.Mint)
		assert.Nil(t, actual.Counterparty)
		assert.Nil(t, actual.Signature)
		assert.Equal(t, operation.StateFailed, actual.State)
	})
}

func testValidation(t *testing.T, s operation.Store) {
	t.Run("testValidation", func(t *testing.T) {
		ctx := context.Background()

		valid := operation.Record{
			OperationId: "operation_id",
			Type:        operation.TypeMintTokens,
			Owner:       "owner",
			Signature:   pointer.String("signature"),
			State:       operation.StateSucceeded,
		}

		for _, mutate := range []func(r *operation.Record){
			func(r *operation.Record) { r.OperationId = "" },
			func(r *operation.Record) { r.Type = operation.TypeUnknown },
			func(r *operation.Record) { r.Owner = "" },
			func(r *operation.Record) { r.Mint = pointer.String("") },
			func(r *operation.Record) { r.Signature = nil },
			func(r *operation.Record) { r.State = operation.StateUnknown },
		} {
			record := valid.Clone()
			mutate(&record)
			assert.Error(t, s.Put(ctx, &record))
		}

		_, err := s.Get(ctx, valid.OperationId)
		assert.Equal(t, operation.ErrNotFound, err)
	})
}

func testPaging(t *testing.T, s operation.Store) {
	t.Run("testPaging", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByOwner(ctx, "owner", query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, operation.ErrNotFound, err)

		var expected []*operation.Record
		for i := 0; i < 5; i++ {
			for _, owner := range []string{"owner", "other"} {
				record := &operation.Record{
					OperationId: fmt.Sprintf("%s_%d", owner, i),
					Type:        operation.TypeBurnTokens,
					Owner:       owner,
					Mint:        pointer.String("mint"),
					Quantity:    uint64(i),
					Signature:   pointer.String(fmt.Sprintf("signature_%s_%d", owner, i)),
					State:       operation.StateSucceeded,
				}
				require.NoError(t, s.Put(ctx, record))

				if owner == "owner" {
					expected = append(expected, record)
				}
			}
		}

		actual, err := s.GetAllByOwner(ctx, "owner", query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i, record := range actual {
			assert.Equal(t, expected[i].OperationId, record.OperationId)
		}

		actual, err = s.GetAllByOwner(ctx, "owner", query.EmptyCursor, 2, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, expected[4].OperationId, actual[0].OperationId)
		assert.Equal(t, expected[3].OperationId, actual[1].OperationId)

		actual, err = s.GetAllByOwner(ctx, "owner", query.ToCursor(actual[1].Id), 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assert.Equal(t, expected[2].OperationId, actual[0].OperationId)
		assert.Equal(t, expected[0].OperationId, actual[2].OperationId)

		actual, err = s.GetAllByOwner(ctx, "owner", query.ToCursor(expected[1].Id), 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, expected[2].OperationId, actual[0].OperationId)
		assert.Equal(t, expected[3].OperationId, actual[1].OperationId)

		_, err = s.GetAllByOwner(ctx, "owner", query.ToCursor(expected[4].Id), 10, query.Ascending)
		assert.Equal(t, operation.ErrNotFound, err)
	})
}

func testCounting(t *testing.T, s operation.Store) {
	t.Run("testCounting", func(t *testing.T) {
		ctx := context.Background()

		states := []operation.State{
			operation.StateSucceeded,
			operation.StateFailed,
			operation.StateSucceeded,
			operation.StateSucceeded,
		}
		for i, state := range states {
			record := &operation.Record{
				OperationId: fmt.Sprintf("operation_%d", i),
				Type:        operation.TypeDelegateTokens,
				Owner:       "owner",
				State:       state,
			}
			if state == operation.StateSucceeded {
				record.Signature = pointer.String(fmt.Sprintf("signature_%d", i))
			}
			require.NoError(t, s.Put(ctx, record))
		}

		count, err := s.CountByState(ctx, "owner", operation.StateSucceeded)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)

		count, err = s.CountByState(ctx, "owner", operation.StateFailed)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		count, err = s.CountByState(ctx, "other", operation.StateSucceeded)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *operation.Record) {
	assert.Equal(t, obj1.OperationId, obj2.OperationId)
	assert.Equal(t, obj1.Type, obj2.Type)
	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.EqualValues(t, obj1.Mint, obj2.Mint)
	assert.EqualValues(t, obj1.Counterparty, obj2.Counterparty)
	assert.Equal(t, obj1.Quantity, obj2.Quantity)
	assert.EqualValues(t, obj1.Signature, obj2.Signature)
	assert.Equal(t, obj1.State, obj2.State)
	assert.Equal(t, obj1.CreatedAt.Unix(), obj2.CreatedAt.Unix())
}
