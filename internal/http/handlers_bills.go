package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	applog "github.com/Pehalba/AdmFinanceira/internal/log"
)

type templateRequest struct {
	Title      string     `json:"title"`
	Amount     core.Money `json:"amount"`
	DueDay     int        `json:"dueDay"`
	CategoryID string     `json:"categoryId"`
	Notes      string     `json:"notes"`
	Active     *bool      `json:"active"`
}

type payRequest struct {
	AccountID string `json:"accountId"`
}

type overrideRequest struct {
	Amount *core.Money `json:"amount"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.bills.ListTemplates(r.Context(), uidFrom(r.Context()), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tpl, err := s.bills.CreateTemplate(r.Context(), core.BillTemplate{
		UID:        uidFrom(r.Context()),
		Title:      req.Title,
		Amount:     req.Amount,
		DueDay:     req.DueDay,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "Bill template created",
		"component", "bills",
		"operation", "create",
		"uid", tpl.UID,
		"template_id", tpl.ID)
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.bills.GetTemplate(r.Context(), uidFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	tpl, err := s.bills.UpdateTemplate(r.Context(), core.BillTemplate{
		ID:         r.PathValue("id"),
		UID:        uidFrom(r.Context()),
		Title:      req.Title,
		Amount:     req.Amount,
		DueDay:     req.DueDay,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
		Active:     active,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.DeleteTemplate(r.Context(), uidFrom(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBillsForMonth(w http.ResponseWriter, r *http.Request) {
	monthKey, err := queryMonthKey(r, core.MonthKeyOf(time.Now()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid monthKey")
		return
	}

	bills, err := s.bills.ListForMonth(r.Context(), uidFrom(r.Context()), monthKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleUpcomingBills(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	bills, err := s.bills.ListUpcoming(r.Context(), uidFrom(r.Context()), time.Now(), days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	uid := uidFrom(r.Context())
	statusID := r.PathValue("id")
	status, err := s.bills.MarkPaid(r.Context(), uid, statusID, req.AccountID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	fields := applog.NewFields().
		WithComponent(applog.ComponentBills).
		WithOperation(applog.OpPay).
		WithUser(uid).
		WithMonthKey(string(status.MonthKey))
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Bill paid",
		append(fields.ToSlice(), "status_id", statusID, "transaction_id", status.LinkedTransactionID)...)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleReopenBill(w http.ResponseWriter, r *http.Request) {
	uid := uidFrom(r.Context())
	statusID := r.PathValue("id")
	status, err := s.bills.MarkOpen(r.Context(), uid, statusID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Bill reopened",
		applog.NewFields().
			WithComponent(applog.ComponentBills).
			WithOperation(applog.OpReopen).
			WithUser(uid).
			ToSlice()...)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleOverrideBillAmount(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := s.bills.SetAmountOverride(r.Context(), uidFrom(r.Context()), r.PathValue("id"), req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
