package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/models"
)

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := s.Social.Friends(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

func (s *Server) onlineFriends(w http.ResponseWriter, r *http.Request) {
	online, err := s.Social.OnlineFriends(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, online)
}

func (s *Server) friendRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.Social.FriendRequests(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FriendID uuid.UUID `json:"friend_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.Social.SendFriendRequest(r.Context(), actorFrom(r.Context()), req.FriendID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	requester, err := uuidParam(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.Social.AcceptFriendRequest(r.Context(), actorFrom(r.Context()), requester)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) removeFriend(w http.ResponseWriter, r *http.Request) {
	friend, err := uuidParam(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Social.RemoveFriend(r.Context(), actorFrom(r.Context()), friend); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updatePresence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status         models.PresenceStatus `json:"status"`
		CurrentLobbyID *uuid.UUID            `json:"current_lobby_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Social.UpdatePresence(r.Context(), actorFrom(r.Context()), req.Status, req.CurrentLobbyID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ns, err := s.Social.Notifications(r.Context(), actorFrom(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.Social.UnreadCount(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "notificationID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Social.MarkNotificationRead(r.Context(), actorFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.Social.MarkAllNotificationsRead(r.Context(), actorFrom(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	users, err := s.Social.SearchUsers(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) socialStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Social.Stats(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) friendGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Social.FriendGroups(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) createFriendGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.Social.CreateFriendGroup(r.Context(), actorFrom(r.Context()), req.Name, req.Color)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) addFriendGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuidParam(r, "groupID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		FriendID uuid.UUID `json:"friend_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Social.AddFriendToGroup(r.Context(), actorFrom(r.Context()), groupID, req.FriendID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
