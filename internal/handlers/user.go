package handlers

import (
	"net/http"
	"time"

	"github.com/jason-s-yu/skillstake/internal/auth"
	"github.com/jason-s-yu/skillstake/internal/models"
)

type sessionResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// setSessionCookie stores the token in the auth_token cookie.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	c := &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if s.TokenTTL > 0 {
		c.MaxAge = int(s.TokenTTL / time.Second)
	}
	http.SetCookie(w, c)
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, token, err := s.Auth.SignUp(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, sessionResponse{User: u, Token: token})
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, token, err := s.Auth.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{User: u, Token: token})
}

// signOut expires the session cookie. Tokens are stateless, so a bearer
// token stays valid until it expires.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.SecureCookies,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.Auth.Me(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) usernameAvailable(w http.ResponseWriter, r *http.Request) {
	ok, err := s.Auth.UsernameAvailable(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}
