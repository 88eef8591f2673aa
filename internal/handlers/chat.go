package handlers

import (
	"net/http"

	"github.com/jason-s-yu/skillstake/internal/models"
)

type chatHistoryResponse struct {
	Room     models.ChatRoom      `json:"room"`
	Messages []models.ChatMessage `json:"messages"`
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	room, msgs, err := s.Chat.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, chatHistoryResponse{Room: room, Messages: msgs})
}

type chatSendRequest struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

func (s *Server) sendChat(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req chatSendRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.Chat.Send(r.Context(), actorFrom(r.Context()), id, req.ClientID, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
