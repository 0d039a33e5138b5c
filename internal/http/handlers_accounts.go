package http

import (
	"log/slog"
	"net/http"

	"github.com/Pehalba/AdmFinanceira/internal/core"
)

type accountRequest struct {
	Name      string           `json:"name"`
	Type      core.AccountType `json:"type"`
	IsPrimary bool             `json:"isPrimary"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.List(r.Context(), uidFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Create(r.Context(), core.Account{
		UID:       uidFrom(r.Context()),
		Name:      req.Name,
		Type:      req.Type,
		IsPrimary: req.IsPrimary,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "Account created",
		"component", "accounts",
		"operation", "create",
		"uid", account.UID,
		"account_id", account.ID)
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.Get(r.Context(), uidFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Update(r.Context(), core.Account{
		ID:        r.PathValue("id"),
		UID:       uidFrom(r.Context()),
		Name:      req.Name,
		Type:      req.Type,
		IsPrimary: req.IsPrimary,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Delete(r.Context(), uidFrom(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	uid := uidFrom(r.Context())
	accounts, err := s.accounts.RecalculateAll(r.Context(), uid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Balance recalculation failed",
			"component", "accounts",
			"operation", "recalculate",
			"uid", uid,
			"error", err)
		writeServiceError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "Balances recalculated",
		"component", "accounts",
		"operation", "recalculate",
		"uid", uid,
		"accounts", len(accounts))
	writeJSON(w, http.StatusOK, accounts)
}
