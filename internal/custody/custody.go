// Package custody implements a shared-custody ledger: accounts controlled
// jointly by up to four parties, with deposits and a two-phase withdrawal
// protocol (request, approve, execute) that stops any single owner from
// moving funds out on its own.
package custody

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finvault/custody-ledger/internal/events"
	"github.com/finvault/custody-ledger/internal/vault"
)

// Store persists committed registry state. Implementations receive deep
// copies and must not be consulted for validation; the registry is the
// system of record and a store error aborts the whole operation.
type Store interface {
	SaveAccount(ctx context.Context, a *Account) error
	SaveRequest(ctx context.Context, accountID uint64, requestID int, r *WithdrawalRequest) error
	LoadAccounts(ctx context.Context) ([]*Account, error)
}

// Registry holds every shared account plus the per-party ownership index.
// One mutex serializes all operations: each public method is a single
// all-or-nothing state transition. The only call issued outside the critical section is
// the vault transfer at the tail of Withdraw, so a gateway that re-enters
// the registry observes fully committed state instead of deadlocking.
type Registry struct {
	mu       sync.Mutex
	store    Store
	events   events.Publisher
	vault    vault.Gateway
	log      *zap.Logger
	accounts []*Account
	owned    map[uuid.UUID][]uint64
}

func NewRegistry(store Store, pub events.Publisher, gw vault.Gateway, log *zap.Logger) *Registry {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		store:  store,
		events: pub,
		vault:  gw,
		log:    log,
		owned:  make(map[uuid.UUID][]uint64),
	}
}

// Load restores registry state from the store. Call once before serving.
func (reg *Registry) Load(ctx context.Context) error {
	accounts, err := reg.store.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })

	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.accounts = reg.accounts[:0]
	reg.owned = make(map[uuid.UUID][]uint64)
	for _, a := range accounts {
		if a.ID != uint64(len(reg.accounts)) {
			return fmt.Errorf("load accounts: id %d out of sequence", a.ID)
		}
		reg.accounts = append(reg.accounts, a)
		for _, o := range a.Owners {
			reg.owned[o] = append(reg.owned[o], a.ID)
		}
	}
	return nil
}

// CreateAccount opens a new shared account owned by the caller plus up to
// three additional parties. The new account id is returned and an
// AccountCreated event is emitted synchronously on success.
func (reg *Registry) CreateAccount(ctx context.Context, caller uuid.UUID, additionalOwners []uuid.UUID) (uint64, error) {
	for i, o := range additionalOwners {
		if o == caller {
			return 0, fmt.Errorf("create account: %w", ErrDuplicateOwner)
		}
		for _, prev := range additionalOwners[:i] {
			if o == prev {
				return 0, fmt.Errorf("create account: %w", ErrDuplicateOwner)
			}
		}
	}
	if 1+len(additionalOwners) > maxOwnersPerAccount {
		return 0, fmt.Errorf("create account: %w", ErrTooManyOwners)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.owned[caller]) >= maxAccountsPerParty {
		return 0, fmt.Errorf("create account: caller %s: %w", caller, ErrOwnerLimit)
	}
	for _, o := range additionalOwners {
		if len(reg.owned[o]) >= maxAccountsPerParty {
			return 0, fmt.Errorf("create account: owner %s: %w", o, ErrOwnerLimit)
		}
	}

	owners := make([]uuid.UUID, 0, 1+len(additionalOwners))
	owners = append(owners, caller)
	owners = append(owners, additionalOwners...)

	a := &Account{
		ID:     uint64(len(reg.accounts)),
		Owners: owners,
	}
	if err := reg.store.SaveAccount(ctx, a.clone()); err != nil {
		return 0, fmt.Errorf("create account: persist: %w", err)
	}
	reg.accounts = append(reg.accounts, a)
	for _, o := range owners {
		reg.owned[o] = append(reg.owned[o], a.ID)
	}

	ev := events.AccountCreated{
		AccountID:  a.ID,
		Owners:     append([]uuid.UUID(nil), owners...),
		OccurredAt: time.Now().UTC(),
	}
	if err := reg.events.Publish(ctx, ev); err != nil {
		// The account is committed; consumers catch up elsewhere.
		reg.log.Warn("account created event not published",
			zap.Uint64("account_id", a.ID), zap.Error(err))
	}
	reg.log.Info("account created",
		zap.Uint64("account_id", a.ID), zap.Int("owners", len(owners)))
	return a.ID, nil
}

// Deposit credits an owner's payment into the shared balance.
func (reg *Registry) Deposit(ctx context.Context, caller uuid.UUID, accountID uint64, amount int64) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	a, err := reg.account(accountID)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	if !a.isOwner(caller) {
		return fmt.Errorf("deposit: %w", ErrNotOwner)
	}
	if amount <= 0 {
		return fmt.Errorf("deposit: %w", ErrBadAmount)
	}

	a.Balance += amount
	if err := reg.store.SaveAccount(ctx, a.clone()); err != nil {
		a.Balance -= amount
		return fmt.Errorf("deposit: persist: %w", err)
	}
	return nil
}

// RequestWithdrawal files a withdrawal for later approval. The amount is
// checked against the live balance only; other pending requests reserve
// nothing, so a later request may end up permanently unexecutable once
// earlier ones drain the account.
func (reg *Registry) RequestWithdrawal(ctx context.Context, caller uuid.UUID, accountID uint64, amount int64) (int, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	a, err := reg.account(accountID)
	if err != nil {
		return 0, fmt.Errorf("request withdrawal: %w", err)
	}
	if !a.isOwner(caller) {
		return 0, fmt.Errorf("request withdrawal: %w", ErrNotOwner)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("request withdrawal: %w", ErrBadAmount)
	}
	if amount > a.Balance {
		return 0, fmt.Errorf("request withdrawal: %w", ErrInsufficientFunds)
	}

	r := &WithdrawalRequest{Amount: amount, Creator: caller}
	id := len(a.Requests)
	a.Requests = append(a.Requests, r)
	if err := reg.store.SaveRequest(ctx, accountID, id, r.clone()); err != nil {
		a.Requests = a.Requests[:id]
		return 0, fmt.Errorf("request withdrawal: persist: %w", err)
	}
	return id, nil
}

// ApproveWithdrawal records a co-owner's endorsement of a pending request.
func (reg *Registry) ApproveWithdrawal(ctx context.Context, caller uuid.UUID, accountID uint64, requestID int) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	a, r, err := reg.request(accountID, requestID)
	if err != nil {
		return fmt.Errorf("approve withdrawal: %w", err)
	}
	if !a.isOwner(caller) {
		return fmt.Errorf("approve withdrawal: %w", ErrNotOwner)
	}
	if caller == r.Creator {
		return fmt.Errorf("approve withdrawal: %w", ErrSelfApproval)
	}
	if r.approvedBy(caller) {
		return fmt.Errorf("approve withdrawal: %w", ErrAlreadyApproved)
	}
	if r.Executed {
		return fmt.Errorf("approve withdrawal: %w", ErrAlreadyExecuted)
	}

	r.Approvers = append(r.Approvers, caller)
	if err := reg.store.SaveRequest(ctx, accountID, requestID, r.clone()); err != nil {
		r.Approvers = r.Approvers[:len(r.Approvers)-1]
		return fmt.Errorf("approve withdrawal: persist: %w", err)
	}
	return nil
}

// Withdraw releases an approved request's funds to its creator. Bookkeeping
// commits before the vault transfer; if the transfer fails the whole
// operation rolls back and the request can be executed again later.
func (reg *Registry) Withdraw(ctx context.Context, caller uuid.UUID, accountID uint64, requestID int) error {
	reg.mu.Lock()
	a, r, err := reg.request(accountID, requestID)
	if err != nil {
		reg.mu.Unlock()
		return fmt.Errorf("withdraw: %w", err)
	}
	if caller != r.Creator {
		reg.mu.Unlock()
		return fmt.Errorf("withdraw: %w", ErrNotRequester)
	}
	if r.Executed {
		reg.mu.Unlock()
		return fmt.Errorf("withdraw: %w", ErrAlreadyExecuted)
	}
	if len(r.Approvers) == 0 {
		reg.mu.Unlock()
		return fmt.Errorf("withdraw: %w", ErrNoApprovals)
	}
	if r.Amount > a.Balance {
		reg.mu.Unlock()
		return fmt.Errorf("withdraw: %w", ErrInsufficientFunds)
	}

	// Effects before interactions: the executed flag and the debit are
	// committed ahead of the external transfer so a reentrant call sees the
	// request as spent.
	r.Executed = true
	a.Balance -= r.Amount
	if err := reg.persistExecution(ctx, a, r, requestID); err != nil {
		r.Executed = false
		a.Balance += r.Amount
		reg.mu.Unlock()
		return fmt.Errorf("withdraw: persist: %w", err)
	}
	amount := r.Amount
	reg.mu.Unlock()

	if err := reg.vault.Transfer(ctx, caller, amount); err != nil {
		reg.mu.Lock()
		r.Executed = false
		a.Balance += amount
		if perr := reg.persistExecution(ctx, a, r, requestID); perr != nil {
			reg.log.Error("rollback not persisted",
				zap.Uint64("account_id", accountID),
				zap.Int("request_id", requestID),
				zap.Error(perr))
		}
		reg.mu.Unlock()
		return fmt.Errorf("withdraw: transfer: %w", err)
	}

	reg.log.Info("withdrawal executed",
		zap.Uint64("account_id", accountID),
		zap.Int("request_id", requestID),
		zap.Int64("amount", amount))
	return nil
}

func (reg *Registry) persistExecution(ctx context.Context, a *Account, r *WithdrawalRequest, requestID int) error {
	if err := reg.store.SaveRequest(ctx, a.ID, requestID, r.clone()); err != nil {
		return err
	}
	return reg.store.SaveAccount(ctx, a.clone())
}

// Approvals reports how many owners endorsed a request.
func (reg *Registry) Approvals(accountID uint64, requestID int) (int, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, r, err := reg.request(accountID, requestID)
	if err != nil {
		return 0, fmt.Errorf("approvals: %w", err)
	}
	return len(r.Approvers), nil
}

// AccountsOf lists the ids of every account the party owns.
func (reg *Registry) AccountsOf(caller uuid.UUID) []uint64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return append([]uint64(nil), reg.owned[caller]...)
}

// Balance reports an account's current balance in minor units.
func (reg *Registry) Balance(accountID uint64) (int64, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	a, err := reg.account(accountID)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return a.Balance, nil
}

// Owners reports an account's owner set.
func (reg *Registry) Owners(accountID uint64) ([]uuid.UUID, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	a, err := reg.account(accountID)
	if err != nil {
		return nil, fmt.Errorf("owners: %w", err)
	}
	return append([]uuid.UUID(nil), a.Owners...), nil
}

func (reg *Registry) account(id uint64) (*Account, error) {
	if id >= uint64(len(reg.accounts)) {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	return reg.accounts[id], nil
}

func (reg *Registry) request(accountID uint64, requestID int) (*Account, *WithdrawalRequest, error) {
	a, err := reg.account(accountID)
	if err != nil {
		return nil, nil, err
	}
	if requestID < 0 || requestID >= len(a.Requests) {
		return nil, nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	}
	return a, a.Requests[requestID], nil
}
