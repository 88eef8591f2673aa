package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength is the longest chat body accepted, in characters.
const MaxMessageLength = 500

type MessageType string

const (
	MessageText        MessageType = "text"
	MessageSystem      MessageType = "system"
	MessageAchievement MessageType = "achievement"
	MessageJoin        MessageType = "join"
	MessageLeave       MessageType = "leave"
)

// ChatRoom is the single room attached to a lobby.
type ChatRoom struct {
	ID        uuid.UUID `json:"id"`
	LobbyID   uuid.UUID `json:"lobby_id"`
	Name      string    `json:"name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID     uuid.UUID `json:"id"`
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
	// ClientID is generated by the sender before the server assigns ID, so the
	// echo of a message can be matched to its optimistic copy.
	ClientID    string      `json:"client_id,omitempty"`
	Username    string      `json:"username,omitempty"`
	Message     string      `json:"message"`
	MessageType MessageType `json:"message_type"`
	IsEdited    bool        `json:"is_edited"`
	EditedAt    *time.Time  `json:"edited_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
