package http

import (
	"net/http"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	monthKey, err := queryMonthKey(r, core.MonthKeyOf(time.Now()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid monthKey")
		return
	}

	summary, err := s.aggregator.CachedOrRecompute(r.Context(), uidFrom(r.Context()), monthKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.dashboard.Build(r.Context(), uidFrom(r.Context()), time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := s.meta.Get(r.Context(), uidFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}
