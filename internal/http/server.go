// Package http exposes the ledger over a JSON REST API. Every /api route
// except auth requires a bearer token; handlers delegate to the services
// layer and never touch the store directly.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	applog "github.com/Pehalba/AdmFinanceira/internal/log"
	"github.com/Pehalba/AdmFinanceira/internal/services"
)

type Server struct {
	http.Server

	auth         *services.AuthService
	accounts     *services.AccountService
	categories   *services.CategoryService
	transactions *services.TransactionService
	bills        *services.BillService
	aggregator   *services.Aggregator
	dashboard    *services.DashboardService
	meta         MetaReader

	pageSize    int
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// MetaReader is the slice of the store the /api/meta route reads.
type MetaReader interface {
	Get(ctx context.Context, uid string) (core.UserMeta, error)
}

// Deps bundles everything the server needs.
type Deps struct {
	Auth         *services.AuthService
	Accounts     *services.AccountService
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Bills        *services.BillService
	Aggregator   *services.Aggregator
	Dashboard    *services.DashboardService
	Meta         MetaReader
	PageSize     int
	Logger       *applog.Logger
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		auth:         deps.Auth,
		accounts:     deps.Accounts,
		categories:   deps.Categories,
		transactions: deps.Transactions,
		bills:        deps.Bills,
		aggregator:   deps.Aggregator,
		dashboard:    deps.Dashboard,
		meta:         deps.Meta,
		pageSize:     pageSize,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/auth/register", s.public(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.public(s.handleLogin))

	mux.HandleFunc("GET /api/accounts", s.protected(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.protected(s.handleCreateAccount))
	mux.HandleFunc("GET /api/accounts/{id}", s.protected(s.handleGetAccount))
	mux.HandleFunc("PUT /api/accounts/{id}", s.protected(s.handleUpdateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.protected(s.handleDeleteAccount))
	mux.HandleFunc("POST /api/accounts/recalculate", s.protected(s.handleRecalculate))

	mux.HandleFunc("GET /api/categories", s.protected(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.protected(s.handleCreateCategory))
	mux.HandleFunc("GET /api/categories/{id}", s.protected(s.handleGetCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.protected(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.protected(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/transactions", s.protected(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.protected(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}", s.protected(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.protected(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/bills", s.protected(s.handleListTemplates))
	mux.HandleFunc("POST /api/bills", s.protected(s.handleCreateTemplate))
	mux.HandleFunc("GET /api/bills/month", s.protected(s.handleBillsForMonth))
	mux.HandleFunc("GET /api/bills/upcoming", s.protected(s.handleUpcomingBills))
	mux.HandleFunc("GET /api/bills/{id}", s.protected(s.handleGetTemplate))
	mux.HandleFunc("PUT /api/bills/{id}", s.protected(s.handleUpdateTemplate))
	mux.HandleFunc("DELETE /api/bills/{id}", s.protected(s.handleDeleteTemplate))
	mux.HandleFunc("POST /api/bills/status/{id}/pay", s.protected(s.handlePayBill))
	mux.HandleFunc("POST /api/bills/status/{id}/open", s.protected(s.handleReopenBill))
	mux.HandleFunc("PUT /api/bills/status/{id}/amount", s.protected(s.handleOverrideBillAmount))

	mux.HandleFunc("GET /api/summary", s.protected(s.handleSummary))
	mux.HandleFunc("GET /api/dashboard", s.protected(s.handleDashboard))
	mux.HandleFunc("GET /api/meta", s.protected(s.handleMeta))

	return s
}

// public wraps a handler with rate limiting and security headers only.
func (s *Server) public(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP, s.metrics) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		setSecurityHeaders(w)
		next(w, r)
	}
}

// protected additionally requires a valid bearer token and stores the user
// id in the request context.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return s.public(func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next(w, r.WithContext(withUID(r.Context(), uid)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	if shutdownErr != nil {
		slog.Error("HTTP server shutdown failed", "error", shutdownErr)
	}
	return shutdownErr
}
