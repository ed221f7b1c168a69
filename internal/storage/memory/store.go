// Package memory is an in-memory implementation of custody.Store, used for
// local runs and tests. Writes always succeed; LoadAccounts returns deep
// copies so callers cannot reach into the store's state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/finvault/custody-ledger/internal/custody"
)

type Store struct {
	mu       sync.Mutex
	accounts map[uint64]*custody.Account
}

var _ custody.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{accounts: make(map[uint64]*custody.Account)}
}

func (s *Store) SaveAccount(_ context.Context, a *custody.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.accounts[a.ID]; ok {
		// Requests are persisted through SaveRequest; keep the ones on file.
		a.Requests = prev.Requests
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) SaveRequest(_ context.Context, accountID uint64, requestID int, r *custody.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("memory store: unknown account %d", accountID)
	}
	switch {
	case requestID == len(a.Requests):
		a.Requests = append(a.Requests, r)
	case requestID >= 0 && requestID < len(a.Requests):
		a.Requests[requestID] = r
	default:
		return fmt.Errorf("memory store: request %d out of sequence for account %d", requestID, accountID)
	}
	return nil
}

func (s *Store) LoadAccounts(context.Context) ([]*custody.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*custody.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyAccount(a *custody.Account) *custody.Account {
	cp := &custody.Account{
		ID:       a.ID,
		Owners:   append([]uuid.UUID(nil), a.Owners...),
		Balance:  a.Balance,
		Requests: make([]*custody.WithdrawalRequest, len(a.Requests)),
	}
	for i, r := range a.Requests {
		cp.Requests[i] = &custody.WithdrawalRequest{
			Amount:    r.Amount,
			Creator:   r.Creator,
			Approvers: append([]uuid.UUID(nil), r.Approvers...),
			Executed:  r.Executed,
		}
	}
	return cp
}
