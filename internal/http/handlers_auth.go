package http

import (
	"log/slog"
	"net/http"

	"github.com/Pehalba/AdmFinanceira/internal/core"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := s.auth.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		slog.WarnContext(r.Context(), "Registration failed",
			"component", "auth",
			"operation", "register",
			"error", err)
		writeServiceError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "User registered",
		"component", "auth",
		"operation", "register",
		"uid", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "User logged in",
		"component", "auth",
		"operation", "login",
		"uid", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
