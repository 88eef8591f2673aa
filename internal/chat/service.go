// Package chat manages the single chat room of each lobby.
package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// HistoryLimit is how many recent messages a room load returns.
const HistoryLimit = 50

// ValidateMessage trims body and checks it is non-empty and at most
// models.MaxMessageLength characters.
func ValidateMessage(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", fmt.Errorf("message is empty: %w", backend.ErrValidation)
	}
	if n := utf8.RuneCountInString(body); n > models.MaxMessageLength {
		return "", fmt.Errorf("message has %d characters, limit is %d: %w", n, models.MaxMessageLength, backend.ErrValidation)
	}
	return body, nil
}

type Service struct {
	store backend.ChatStore
	rooms singleflight.Group
	log   logrus.FieldLogger
}

func NewService(store backend.ChatStore, logger logrus.FieldLogger) *Service {
	return &Service{store: store, log: logger}
}

// Room returns the lobby's room, creating it on first access. Concurrent
// callers for the same lobby share one store call, which outlives any single
// caller's cancellation.
func (s *Service) Room(ctx context.Context, lobbyID uuid.UUID) (models.ChatRoom, error) {
	ch := s.rooms.DoChan(lobbyID.String(), func() (interface{}, error) {
		return s.store.GetOrCreateRoom(context.WithoutCancel(ctx), lobbyID)
	})
	select {
	case <-ctx.Done():
		return models.ChatRoom{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.ChatRoom{}, fmt.Errorf("chat room for lobby %s: %w", lobbyID, res.Err)
		}
		if res.Shared {
			s.log.WithField("lobby", lobbyID).Debug("chat room lookup shared")
		}
		return res.Val.(models.ChatRoom), nil
	}
}

// History returns the room and its recent messages in chronological order.
func (s *Service) History(ctx context.Context, lobbyID uuid.UUID) (models.ChatRoom, []models.ChatMessage, error) {
	room, err := s.Room(ctx, lobbyID)
	if err != nil {
		return models.ChatRoom{}, nil, err
	}
	msgs, err := s.store.ListMessages(ctx, room.ID, HistoryLimit)
	if err != nil {
		return models.ChatRoom{}, nil, fmt.Errorf("list messages: %w", err)
	}
	return room, msgs, nil
}

// Send posts a text message. clientID is the sender's temporary identifier;
// resending with the same clientID returns the stored message.
func (s *Service) Send(ctx context.Context, actor models.Actor, lobbyID uuid.UUID, clientID, body string) (models.ChatMessage, error) {
	if !actor.Authenticated() {
		return models.ChatMessage{}, backend.ErrAuthRequired
	}
	body, err := ValidateMessage(body)
	if err != nil {
		return models.ChatMessage{}, err
	}
	room, err := s.Room(ctx, lobbyID)
	if err != nil {
		return models.ChatMessage{}, err
	}

	msg, err := s.store.InsertMessage(ctx, models.ChatMessage{
		RoomID:      room.ID,
		UserID:      actor.UserID,
		ClientID:    clientID,
		Message:     body,
		MessageType: models.MessageText,
	})
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// Topic selects change notifications for new messages in room.
func Topic(room models.ChatRoom) backend.Topic {
	return backend.RowTopic(backend.TableChatMessages, "room_id", room.ID.String())
}

// Conversation returns a view-model that sends as actor into the lobby's room.
func (s *Service) Conversation(actor models.Actor, lobbyID uuid.UUID) *Conversation {
	return NewConversation(func(ctx context.Context, clientID, body string) (models.ChatMessage, error) {
		return s.Send(ctx, actor, lobbyID, clientID, body)
	})
}
