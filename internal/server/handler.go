// Package server is the HTTP transport in front of the custody registry.
// Handlers decode the request, resolve the caller identity from the
// X-Party-ID header, delegate to the registry and translate its errors to
// statuses. No business rule lives here.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finvault/custody-ledger/internal/custody"
	"github.com/finvault/custody-ledger/internal/money"
)

// PartyHeader carries the authenticated caller identity. Authentication
// itself happens upstream; the ledger only needs the resulting identity.
const PartyHeader = "X-Party-ID"

type Server struct {
	registry *custody.Registry
	log      *zap.Logger
}

func NewServer(reg *custody.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{registry: reg, log: log}
}

func caller(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.Header.Get(PartyHeader))
}

func accountID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(r.PathValue("id"), 10, 64)
}

func requestID(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("rid"))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /accounts
func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		writeBadRequest(w, "missing or malformed "+PartyHeader+" header")
		return
	}
	var req struct {
		AdditionalOwners []uuid.UUID `json:"additional_owners"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	id, err := s.registry.CreateAccount(r.Context(), p, req.AdditionalOwners)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"account_id": id})
}

// GET /accounts
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		writeBadRequest(w, "missing or malformed "+PartyHeader+" header")
		return
	}
	ids := s.registry.AccountsOf(p)
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"accounts": ids})
}

// POST /accounts/{id}/deposit
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		writeBadRequest(w, "missing or malformed "+PartyHeader+" header")
		return
	}
	id, err := accountID(r)
	if err != nil {
		writeBadRequest(w, "invalid account id")
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	amount, err := money.ToMinorUnits(req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.registry.Deposit(r.Context(), p, id, amount); err != nil {
		writeErr(w, err)
		return
	}
	balance, err := s.registry.Balance(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"balance":    money.FromMinorUnits(balance),
	})
}

// POST /accounts/{id}/withdrawals
func (s *Server) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		writeBadRequest(w, "missing or malformed "+PartyHeader+" header")
		return
	}
	id, err := accountID(r)
	if err != nil {
		writeBadRequest(w, "invalid account id")
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	amount, err := money.ToMinorUnits(req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	rid, err := s.registry.RequestWithdrawal(r.Context(), p, id, amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"request_id": rid})
}

// POST /accounts/{id}/withdrawals/{rid}/approvals
func (s *Server) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		writeBadRequest(w, "missing or malformed "+PartyHeader+" header")
		return
	}
	id, err := accountID(r)
	if err != nil {
		writeBadRequest(w, "invalid account id")
		return
	}
	rid, err := requestID(r)
	if err != nil {
		writeBadRequest(w, "invalid request id")
		return
	}
	if err := s.registry.ApproveWithdrawal(r.Context(), p, id, rid); err != nil {
		writeErr(w, err)
		return
	}
	n, err := s.registry.Approvals(id, rid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"approvals": n})
}

// GET /accounts/{id}/withdrawals/{rid}/approvals
func (s *Server) getApprovals(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		writeBadRequest(w, "invalid account id")
		return
	}
	rid, err := requestID(r)
	if err != nil {
		writeBadRequest(w, "invalid request id")
		return
	}
	n, err := s.registry.Approvals(id, rid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"approvals": n})
}

// POST /accounts/{id}/withdrawals/{rid}/execute
func (s *Server) executeWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		writeBadRequest(w, "missing or malformed "+PartyHeader+" header")
		return
	}
	id, err := accountID(r)
	if err != nil {
		writeBadRequest(w, "invalid account id")
		return
	}
	rid, err := requestID(r)
	if err != nil {
		writeBadRequest(w, "invalid request id")
		return
	}
	if err := s.registry.Withdraw(r.Context(), p, id, rid); err != nil {
		writeErr(w, err)
		return
	}
	balance, err := s.registry.Balance(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"request_id": rid,
		"balance":    money.FromMinorUnits(balance),
	})
}
