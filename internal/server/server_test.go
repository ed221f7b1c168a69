package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/custody-ledger/internal/custody"
	"github.com/finvault/custody-ledger/internal/events"
	"github.com/finvault/custody-ledger/internal/server"
	"github.com/finvault/custody-ledger/internal/storage/memory"
)

type nopGateway struct{}

func (nopGateway) Transfer(context.Context, uuid.UUID, int64) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := custody.NewRegistry(memory.NewStore(), events.Nop{}, nopGateway{}, nil)
	ts := httptest.NewServer(server.NewServer(reg, nil).Router())
	t.Cleanup(ts.Close)
	return ts
}

// doJSON issues a request as the given party, asserts the status code and
// decodes the response into out when non-nil.
func doJSON(t *testing.T, ts *httptest.Server, party uuid.UUID, method, path string, body any, wantCode int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if party != uuid.Nil {
		req.Header.Set(server.PartyHeader, party.String())
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantCode, resp.StatusCode, "%s %s", method, path)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestWithdrawalFlow(t *testing.T) {
	ts := newTestServer(t)
	creator := uuid.New()
	coOwner := uuid.New()

	var created struct {
		AccountID uint64 `json:"account_id"`
	}
	doJSON(t, ts, creator, "POST", "/accounts",
		map[string]any{"additional_owners": []uuid.UUID{coOwner}},
		http.StatusCreated, &created)

	var deposited struct {
		Balance string `json:"balance"`
	}
	doJSON(t, ts, creator, "POST", "/accounts/0/deposit",
		map[string]any{"amount": "100.00"}, http.StatusOK, &deposited)
	assert.Equal(t, "100", deposited.Balance)

	var requested struct {
		RequestID int `json:"request_id"`
	}
	doJSON(t, ts, creator, "POST", "/accounts/0/withdrawals",
		map[string]any{"amount": "100"}, http.StatusCreated, &requested)
	assert.Equal(t, 0, requested.RequestID)

	var approved struct {
		Approvals int `json:"approvals"`
	}
	doJSON(t, ts, coOwner, "POST", "/accounts/0/withdrawals/0/approvals",
		nil, http.StatusOK, &approved)
	assert.Equal(t, 1, approved.Approvals)

	doJSON(t, ts, uuid.New(), "GET", "/accounts/0/withdrawals/0/approvals",
		nil, http.StatusOK, &approved)
	assert.Equal(t, 1, approved.Approvals)

	var executed struct {
		Balance string `json:"balance"`
	}
	doJSON(t, ts, creator, "POST", "/accounts/0/withdrawals/0/execute",
		nil, http.StatusOK, &executed)
	assert.Equal(t, "0", executed.Balance)

	// The request is terminal now.
	doJSON(t, ts, creator, "POST", "/accounts/0/withdrawals/0/execute",
		nil, http.StatusUnprocessableEntity, nil)

	var accounts struct {
		Accounts []uint64 `json:"accounts"`
	}
	doJSON(t, ts, coOwner, "GET", "/accounts", nil, http.StatusOK, &accounts)
	assert.Equal(t, []uint64{0}, accounts.Accounts)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	owner := uuid.New()
	stranger := uuid.New()

	doJSON(t, ts, owner, "POST", "/accounts",
		map[string]any{}, http.StatusCreated, nil)
	doJSON(t, ts, owner, "POST", "/accounts/0/deposit",
		map[string]any{"amount": "50"}, http.StatusOK, nil)

	t.Run("missing identity header", func(t *testing.T) {
		doJSON(t, ts, uuid.Nil, "POST", "/accounts",
			map[string]any{}, http.StatusBadRequest, nil)
	})

	t.Run("non-owner deposit is forbidden", func(t *testing.T) {
		doJSON(t, ts, stranger, "POST", "/accounts/0/deposit",
			map[string]any{"amount": "10"}, http.StatusForbidden, nil)
	})

	t.Run("unknown account is not found", func(t *testing.T) {
		doJSON(t, ts, owner, "POST", "/accounts/42/deposit",
			map[string]any{"amount": "10"}, http.StatusNotFound, nil)
	})

	t.Run("request above balance conflicts", func(t *testing.T) {
		doJSON(t, ts, owner, "POST", "/accounts/0/withdrawals",
			map[string]any{"amount": "50.01"}, http.StatusConflict, nil)
	})

	t.Run("sub-unit precision is unprocessable", func(t *testing.T) {
		doJSON(t, ts, owner, "POST", "/accounts/0/deposit",
			map[string]any{"amount": "10.005"}, http.StatusUnprocessableEntity, nil)
	})

	t.Run("self approval is forbidden", func(t *testing.T) {
		doJSON(t, ts, owner, "POST", "/accounts/0/withdrawals",
			map[string]any{"amount": "10"}, http.StatusCreated, nil)
		doJSON(t, ts, owner, "POST", "/accounts/0/withdrawals/0/approvals",
			nil, http.StatusForbidden, nil)
	})

	t.Run("bad json body", func(t *testing.T) {
		req, err := http.NewRequest("POST", ts.URL+"/accounts/0/deposit",
			bytes.NewBufferString("{bad json}"))
		require.NoError(t, err)
		req.Header.Set(server.PartyHeader, owner.String())
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate owner in create", func(t *testing.T) {
		doJSON(t, ts, owner, "POST", "/accounts",
			map[string]any{"additional_owners": []uuid.UUID{owner}},
			http.StatusUnprocessableEntity, nil)
	})
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
