package custody

import (
	"github.com/google/uuid"
)

const (
	// An account is controlled by its creator plus up to three co-owners.
	maxOwnersPerAccount = 4
	// A single party may hold ownership in at most this many accounts.
	maxAccountsPerParty = 3
)

// Account is a jointly controlled balance. Owners are fixed at creation and
// the request list is append-only; a request's id is its index in Requests.
type Account struct {
	ID       uint64
	Owners   []uuid.UUID
	Balance  int64
	Requests []*WithdrawalRequest
}

// WithdrawalRequest records one party's intent to move funds out of a shared
// account. Approvers never contains the creator and only grows. Once Executed
// flips to true the request is frozen.
type WithdrawalRequest struct {
	Amount    int64
	Creator   uuid.UUID
	Approvers []uuid.UUID
	Executed  bool
}

func (a *Account) isOwner(p uuid.UUID) bool {
	for _, o := range a.Owners {
		if o == p {
			return true
		}
	}
	return false
}

func (r *WithdrawalRequest) approvedBy(p uuid.UUID) bool {
	for _, a := range r.Approvers {
		if a == p {
			return true
		}
	}
	return false
}

// clone returns a deep copy safe to hand to stores and callers.
func (a *Account) clone() *Account {
	cp := &Account{
		ID:       a.ID,
		Owners:   append([]uuid.UUID(nil), a.Owners...),
		Balance:  a.Balance,
		Requests: make([]*WithdrawalRequest, len(a.Requests)),
	}
	for i, r := range a.Requests {
		cp.Requests[i] = r.clone()
	}
	return cp
}

func (r *WithdrawalRequest) clone() *WithdrawalRequest {
	return &WithdrawalRequest{
		Amount:    r.Amount,
		Creator:   r.Creator,
		Approvers: append([]uuid.UUID(nil), r.Approvers...),
		Executed:  r.Executed,
	}
}
