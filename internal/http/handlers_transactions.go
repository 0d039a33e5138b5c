package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
)

type transactionRequest struct {
	AccountID   string               `json:"accountId"`
	CategoryID  string               `json:"categoryId"`
	Type        core.TransactionType `json:"type"`
	Amount      core.Money           `json:"amount"`
	Description string               `json:"description"`
	Date        string               `json:"date"`
}

type transactionPage struct {
	Transactions []core.Transaction `json:"transactions"`
	NextCursor   string             `json:"nextCursor,omitempty"`
}

func (req transactionRequest) toTransaction(uid string) (core.Transaction, error) {
	t := core.Transaction{
		UID:         uid,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
	}
	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Date = date
	}
	return t, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	uid := uidFrom(r.Context())

	monthKey, err := queryMonthKey(r, core.MonthKeyOf(time.Now()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid monthKey")
		return
	}
	limit := queryInt(r, "limit", s.pageSize)
	startAfter := strings.TrimSpace(r.URL.Query().Get("startAfter"))

	transactions, err := s.transactions.ListByMonth(r.Context(), uid, monthKey, limit, startAfter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	page := transactionPage{Transactions: transactions}
	if len(transactions) == limit {
		page.NextCursor = transactions[len(transactions)-1].ID
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := req.toTransaction(uidFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	created, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "Transaction created",
		"component", "transactions",
		"operation", "create",
		"uid", created.UID,
		"transaction_id", created.ID,
		"month_key", string(created.MonthKey),
		"amount_cents", created.Amount.Cents)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactions.Get(r.Context(), uidFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := req.toTransaction(uidFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	t.ID = r.PathValue("id")

	updated, err := s.transactions.Update(r.Context(), t)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid := uidFrom(r.Context())
	id := r.PathValue("id")
	if err := s.transactions.Delete(r.Context(), uid, id); err != nil {
		writeServiceError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "Transaction deleted",
		"component", "transactions",
		"operation", "delete",
		"uid", uid,
		"transaction_id", id)
	w.WriteHeader(http.StatusNoContent)
}
