package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
)

func (s *Store) GetOrCreateRoom(_ context.Context, lobbyID uuid.UUID) (models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[lobbyID]; ok {
		return room, nil
	}
	if _, ok := s.lobbies[lobbyID]; !ok {
		return models.ChatRoom{}, fmt.Errorf("lobby %s: %w", lobbyID, backend.ErrNotFound)
	}
	room := models.ChatRoom{
		ID:        uuid.New(),
		LobbyID:   lobbyID,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	s.rooms[lobbyID] = room
	return room, nil
}

func (s *Store) ListMessages(_ context.Context, roomID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.ChatMessage, len(msgs))
	for i, m := range msgs {
		m.Username = s.users[m.UserID].Username
		out[i] = m
	}
	return out, nil
}

func (s *Store) InsertMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	s.mu.Lock()
	var lobbyID uuid.UUID
	found := false
	for lid, room := range s.rooms {
		if room.ID == msg.RoomID {
			lobbyID, found = lid, true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return models.ChatMessage{}, fmt.Errorf("chat room %s: %w", msg.RoomID, backend.ErrNotFound)
	}
	if msg.ClientID != "" {
		for _, existing := range s.messages[msg.RoomID] {
			if existing.ClientID == msg.ClientID && existing.UserID == msg.UserID {
				s.mu.Unlock()
				return existing, nil
			}
		}
	}

	msg.ID = uuid.New()
	msg.CreatedAt = s.now()
	if msg.MessageType == "" {
		msg.MessageType = models.MessageText
	}
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], msg)
	msg.Username = s.users[msg.UserID].Username
	s.mu.Unlock()

	s.publish(ctx, backend.MessageChange(msg, lobbyID))
	return msg, nil
}
