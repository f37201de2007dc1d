package api

import (
	"net/http"

	"github.com/kjannette/pulse-backend/internal/account"
	"github.com/kjannette/pulse-backend/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changeUIDRequest struct {
	UID string `json:"uid"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in account.RegisterInput
	if !decodeBody(w, r, &in) {
		return
	}
	sess, err := s.accounts.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decodeBody(w, r, &in) {
		return
	}
	sess, err := s.accounts.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeServiceError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	u, err := s.accounts.Me(r.Context(), p.ID)
	if err != nil {
		writeServiceError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleChangeUID(w http.ResponseWriter, r *http.Request) {
	var in changeUIDRequest
	if !decodeBody(w, r, &in) {
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	u, err := s.accounts.ChangeUID(r.Context(), p.ID, in.UID)
	if err != nil {
		writeServiceError(w, r, "change uid", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
