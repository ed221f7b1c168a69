package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Router wires every endpoint onto a method-aware mux and wraps it with
// request logging.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("POST /accounts", s.createAccount)
	mux.HandleFunc("GET /accounts", s.listAccounts)
	mux.HandleFunc("POST /accounts/{id}/deposit", s.deposit)

	mux.HandleFunc("POST /accounts/{id}/withdrawals", s.requestWithdrawal)
	mux.HandleFunc("POST /accounts/{id}/withdrawals/{rid}/approvals", s.approveWithdrawal)
	mux.HandleFunc("GET /accounts/{id}/withdrawals/{rid}/approvals", s.getApprovals)
	mux.HandleFunc("POST /accounts/{id}/withdrawals/{rid}/execute", s.executeWithdrawal)

	return s.logged(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}
