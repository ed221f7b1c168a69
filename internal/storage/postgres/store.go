// Package postgres persists custody state with lib/pq. Every multi-row write
// happens inside an explicit transaction so a partial save never becomes
// visible.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/finvault/custody-ledger/internal/custody"
)

type Store struct {
	db *sql.DB
}

var _ custody.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         BIGINT PRIMARY KEY,
	balance    BIGINT NOT NULL CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS account_owners (
	account_id BIGINT NOT NULL REFERENCES accounts (id),
	party_id   UUID   NOT NULL,
	position   INT    NOT NULL,
	PRIMARY KEY (account_id, party_id)
);
CREATE TABLE IF NOT EXISTS withdrawal_requests (
	account_id BIGINT  NOT NULL REFERENCES accounts (id),
	request_id BIGINT  NOT NULL,
	amount     BIGINT  NOT NULL CHECK (amount > 0),
	creator    UUID    NOT NULL,
	executed   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (account_id, request_id)
);
CREATE TABLE IF NOT EXISTS request_approvals (
	account_id BIGINT NOT NULL,
	request_id BIGINT NOT NULL,
	party_id   UUID   NOT NULL,
	position   INT    NOT NULL,
	PRIMARY KEY (account_id, request_id, party_id),
	FOREIGN KEY (account_id, request_id) REFERENCES withdrawal_requests (account_id, request_id)
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

func (s *Store) SaveAccount(ctx context.Context, a *custody.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer tx.Rollback()

	const upsertAccount = `INSERT INTO accounts (id, balance) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance`
	if _, err := tx.ExecContext(ctx, upsertAccount, int64(a.ID), a.Balance); err != nil {
		return fmt.Errorf("postgres store: save account %d: %w", a.ID, err)
	}

	// Owners are fixed at creation; conflicts mean the rows already exist.
	const insertOwner = `INSERT INTO account_owners (account_id, party_id, position)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	for i, o := range a.Owners {
		if _, err := tx.ExecContext(ctx, insertOwner, int64(a.ID), o, i); err != nil {
			return fmt.Errorf("postgres store: save owner of account %d: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) SaveRequest(ctx context.Context, accountID uint64, requestID int, r *custody.WithdrawalRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer tx.Rollback()

	const upsertRequest = `INSERT INTO withdrawal_requests (account_id, request_id, amount, creator, executed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, request_id) DO UPDATE SET executed = EXCLUDED.executed`
	if _, err := tx.ExecContext(ctx, upsertRequest,
		int64(accountID), requestID, r.Amount, r.Creator, r.Executed); err != nil {
		return fmt.Errorf("postgres store: save request %d/%d: %w", accountID, requestID, err)
	}

	const insertApproval = `INSERT INTO request_approvals (account_id, request_id, party_id, position)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`
	for i, p := range r.Approvers {
		if _, err := tx.ExecContext(ctx, insertApproval,
			int64(accountID), requestID, p, i); err != nil {
			return fmt.Errorf("postgres store: save approval %d/%d: %w", accountID, requestID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) LoadAccounts(ctx context.Context) ([]*custody.Account, error) {
	accounts := make(map[uint64]*custody.Account)
	var ordered []*custody.Account

	const selectAccounts = `SELECT id, balance FROM accounts ORDER BY id`
	rows, err := s.db.QueryContext(ctx, selectAccounts)
	if err != nil {
		return nil, fmt.Errorf("postgres store: load accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, balance int64
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("postgres store: scan account: %w", err)
		}
		a := &custody.Account{ID: uint64(id), Balance: balance}
		accounts[a.ID] = a
		ordered = append(ordered, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: load accounts: %w", err)
	}

	if err := s.loadOwners(ctx, accounts); err != nil {
		return nil, err
	}
	if err := s.loadRequests(ctx, accounts); err != nil {
		return nil, err
	}
	return ordered, nil
}

func (s *Store) loadOwners(ctx context.Context, accounts map[uint64]*custody.Account) error {
	const query = `SELECT account_id, party_id FROM account_owners ORDER BY account_id, position`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("postgres store: load owners: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var accountID int64
		var party uuid.UUID
		if err := rows.Scan(&accountID, &party); err != nil {
			return fmt.Errorf("postgres store: scan owner: %w", err)
		}
		if a, ok := accounts[uint64(accountID)]; ok {
			a.Owners = append(a.Owners, party)
		}
	}
	return rows.Err()
}

func (s *Store) loadRequests(ctx context.Context, accounts map[uint64]*custody.Account) error {
	const query = `SELECT account_id, request_id, amount, creator, executed
		FROM withdrawal_requests ORDER BY account_id, request_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("postgres store: load requests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var accountID, requestID, amount int64
		var creator uuid.UUID
		var executed bool
		if err := rows.Scan(&accountID, &requestID, &amount, &creator, &executed); err != nil {
			return fmt.Errorf("postgres store: scan request: %w", err)
		}
		a, ok := accounts[uint64(accountID)]
		if !ok {
			continue
		}
		if requestID != int64(len(a.Requests)) {
			return fmt.Errorf("postgres store: request %d out of sequence for account %d", requestID, accountID)
		}
		a.Requests = append(a.Requests, &custody.WithdrawalRequest{
			Amount:   amount,
			Creator:  creator,
			Executed: executed,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres store: load requests: %w", err)
	}

	const approvals = `SELECT account_id, request_id, party_id
		FROM request_approvals ORDER BY account_id, request_id, position`
	rows, err = s.db.QueryContext(ctx, approvals)
	if err != nil {
		return fmt.Errorf("postgres store: load approvals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var accountID, requestID int64
		var party uuid.UUID
		if err := rows.Scan(&accountID, &requestID, &party); err != nil {
			return fmt.Errorf("postgres store: scan approval: %w", err)
		}
		a, ok := accounts[uint64(accountID)]
		if !ok || requestID < 0 || requestID >= int64(len(a.Requests)) {
			continue
		}
		r := a.Requests[requestID]
		r.Approvers = append(r.Approvers, party)
	}
	return rows.Err()
}
