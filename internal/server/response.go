package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finvault/custody-ledger/internal/custody"
	"github.com/finvault/custody-ledger/internal/money"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the ledger's error taxonomy onto HTTP statuses. Insufficient
// funds is checked before the generic validation category it wraps.
func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, custody.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, custody.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, custody.ErrInsufficientFunds):
		code = http.StatusConflict
	case errors.Is(err, custody.ErrInvalid),
		errors.Is(err, money.ErrInexact),
		errors.Is(err, money.ErrOverflow):
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
