package handlers

import (
	"net/http"

	"github.com/google/uuid"
)

type adminRequest struct {
	WinnerID  uuid.UUID `json:"winner_id"`
	Confirmed bool      `json:"confirmed"`
	Reason    string    `json:"reason"`
}

func (s *Server) adminOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.Lobbies.AdminOverview(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// readAdminRequest parses the lobby id and an optional JSON body.
func (s *Server) readAdminRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, adminRequest, bool) {
	var req adminRequest
	id, err := uuidParam(r, "lobbyID")
	if err == nil && r.ContentLength != 0 {
		err = decodeJSON(r, &req)
	}
	if err != nil {
		s.writeError(w, r, err)
		return uuid.Nil, req, false
	}
	return id, req, true
}

func (s *Server) adminComplete(w http.ResponseWriter, r *http.Request) {
	id, req, ok := s.readAdminRequest(w, r)
	if !ok {
		return
	}
	l, err := s.Lobbies.AdminComplete(r.Context(), actorFrom(r.Context()), id, req.WinnerID, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) adminChangeWinner(w http.ResponseWriter, r *http.Request) {
	id, req, ok := s.readAdminRequest(w, r)
	if !ok {
		return
	}
	l, err := s.Lobbies.AdminChangeWinner(r.Context(), actorFrom(r.Context()), id, req.WinnerID, req.Confirmed, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) adminCancel(w http.ResponseWriter, r *http.Request) {
	id, req, ok := s.readAdminRequest(w, r)
	if !ok {
		return
	}
	l, err := s.Lobbies.AdminCancel(r.Context(), actorFrom(r.Context()), id, req.Confirmed, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// adminDelete reads confirmed and reason from the query string.
func (s *Server) adminDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	if err := s.Lobbies.AdminDelete(r.Context(), actorFrom(r.Context()), id, q.Get("confirmed") == "true", q.Get("reason")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
