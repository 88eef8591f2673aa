package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Password    string    `json:"password,omitempty"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`

	IsAdmin bool `json:"is_admin"`

	CreatedAt time.Time `json:"created_at"`
}

// Profile strips credentials from the user.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// UserProfile is the public view of a user, optionally carrying presence.
type UserProfile struct {
	ID             uuid.UUID      `json:"id"`
	Username       string         `json:"username"`
	DisplayName    string         `json:"display_name"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	Status         PresenceStatus `json:"status,omitempty"`
	LastSeen       *time.Time     `json:"last_seen,omitempty"`
	CurrentLobbyID *uuid.UUID     `json:"current_lobby_id,omitempty"`
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Authenticated reports whether a carries a user identity.
func (a *Actor) Authenticated() bool {
	return a != nil && a.UserID != uuid.Nil
}

// AdminAction is one audit record of an administrative action.
type AdminAction struct {
	ID         uuid.UUID `json:"id"`
	AdminID    uuid.UUID `json:"admin_id"`
	ActionType string    `json:"action_type"` // complete_lobby, change_winner, cancel_lobby, delete_lobby
	TargetID   uuid.UUID `json:"target_id"`
	TargetType string    `json:"target_type"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
