package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/fees"
	"github.com/jason-s-yu/skillstake/internal/lobby"
	"github.com/shopspring/decimal"
)

// feePreview computes the breakdown a lobby would carry for ?price= and
// ?max_players= without creating it.
func (s *Server) feePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	price, err := decimal.NewFromString(q.Get("price"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("invalid price %q: %w", q.Get("price"), backend.ErrValidation))
		return
	}
	players := lobby.DefaultMaxPlayers
	if raw := q.Get("max_players"); raw != "" {
		if players, err = strconv.Atoi(raw); err != nil {
			s.writeError(w, r, fmt.Errorf("invalid max_players %q: %w", raw, backend.ErrValidation))
			return
		}
	}
	b, err := fees.Calculate(price, players)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b.Display())
}

func (s *Server) listLobbies(w http.ResponseWriter, r *http.Request) {
	f, err := lobby.ParseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())
	if f.Mine && !actor.Authenticated() {
		s.writeError(w, r, backend.ErrAuthRequired)
		return
	}
	lobbies, err := s.Browser.Load(r.Context(), actor.UserID, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lobbies)
}

func (s *Server) createLobby(w http.ResponseWriter, r *http.Request) {
	var req lobby.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.Lobbies.Create(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) getLobby(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.Lobbies.Detail(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.VisibleTo(actorFrom(r.Context()).UserID))
}

func (s *Server) joinLobby(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	actor := actorFrom(r.Context())
	l, err := s.Lobbies.JoinWithCode(r.Context(), actor, id, req.InviteCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l.VisibleTo(actor.UserID))
}

func (s *Server) leaveLobby(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())
	l, err := s.Lobbies.Leave(r.Context(), actor, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l.VisibleTo(actor.UserID))
}

func (s *Server) submitCompletion(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		MatchID string `json:"match_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())
	l, err := s.Lobbies.SubmitCompletion(r.Context(), actor, id, req.MatchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l.VisibleTo(actor.UserID))
}

func (s *Server) inviteToLobby(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := s.Lobbies.Invite(r.Context(), actorFrom(r.Context()), id, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) lobbyInvites(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	invs, err := s.Lobbies.LobbyInvites(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (s *Server) myInvites(w http.ResponseWriter, r *http.Request) {
	invs, err := s.Lobbies.Invites(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (s *Server) acceptInvite(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inviteID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())
	l, err := s.Lobbies.AcceptInvite(r.Context(), actor, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l.VisibleTo(actor.UserID))
}

func (s *Server) declineInvite(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inviteID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := s.Lobbies.DeclineInvite(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
