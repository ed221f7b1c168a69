package memory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/custody-ledger/internal/custody"
	"github.com/finvault/custody-ledger/internal/storage/memory"
)

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	owner := uuid.New()
	coOwner := uuid.New()

	require.NoError(t, s.SaveAccount(ctx, &custody.Account{
		ID:      0,
		Owners:  []uuid.UUID{owner, coOwner},
		Balance: 500,
	}))
	require.NoError(t, s.SaveRequest(ctx, 0, 0, &custody.WithdrawalRequest{
		Amount:  200,
		Creator: owner,
	}))
	require.NoError(t, s.SaveRequest(ctx, 0, 0, &custody.WithdrawalRequest{
		Amount:    200,
		Creator:   owner,
		Approvers: []uuid.UUID{coOwner},
		Executed:  true,
	}))
	require.NoError(t, s.SaveAccount(ctx, &custody.Account{
		ID:      0,
		Owners:  []uuid.UUID{owner, coOwner},
		Balance: 300,
	}))

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	a := accounts[0]
	assert.Equal(t, int64(300), a.Balance)
	assert.Equal(t, []uuid.UUID{owner, coOwner}, a.Owners)
	require.Len(t, a.Requests, 1)
	assert.True(t, a.Requests[0].Executed)
	assert.Equal(t, []uuid.UUID{coOwner}, a.Requests[0].Approvers)
}

func TestSaveRequestUnknownAccount(t *testing.T) {
	s := memory.NewStore()
	err := s.SaveRequest(context.Background(), 7, 0, &custody.WithdrawalRequest{Amount: 1, Creator: uuid.New()})
	require.Error(t, err)
}

func TestSaveRequestOutOfSequence(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	require.NoError(t, s.SaveAccount(ctx, &custody.Account{ID: 0, Owners: []uuid.UUID{uuid.New()}}))
	err := s.SaveRequest(ctx, 0, 3, &custody.WithdrawalRequest{Amount: 1, Creator: uuid.New()})
	require.Error(t, err)
}

func TestLoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	owner := uuid.New()
	require.NoError(t, s.SaveAccount(ctx, &custody.Account{ID: 0, Owners: []uuid.UUID{owner}, Balance: 10}))

	first, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	first[0].Balance = 9999
	first[0].Owners[0] = uuid.New()

	second, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), second[0].Balance)
	assert.Equal(t, owner, second[0].Owners[0])
}
