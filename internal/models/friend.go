package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
	FriendBlocked  FriendStatus = "blocked"
)

// Friend is a directed request from UserID to FriendID. Once accepted the pair
// counts as friends in both directions.
type Friend struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	FriendID  uuid.UUID    `json:"friend_id"`
	Status    FriendStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	// Other is the profile of the counterpart, filled by request listings.
	Other *UserProfile `json:"other,omitempty"`
}

// FriendRequests splits pending requests by direction.
type FriendRequests struct {
	Sent     []Friend `json:"sent"`
	Received []Friend `json:"received"`
}

// DefaultGroupColor is used when a friend group is created without a color.
const DefaultGroupColor = "#3B82F6"

// FriendGroup is a user's named bucket of friends (friend_groups table).
type FriendGroup struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Name      string        `json:"name"`
	Color     string        `json:"color"`
	CreatedAt time.Time     `json:"created_at"`
	Members   []UserProfile `json:"members"`
}

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

func (p PresenceStatus) Valid() bool {
	switch p {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

type Presence struct {
	UserID         uuid.UUID      `json:"user_id"`
	Status         PresenceStatus `json:"status"`
	LastSeen       time.Time      `json:"last_seen"`
	CurrentLobbyID *uuid.UUID     `json:"current_lobby_id,omitempty"`
}

type NotificationType string

const (
	NotifyFriendRequest  NotificationType = "friend_request"
	NotifyFriendAccepted NotificationType = "friend_accepted"
	NotifyLobbyInvite    NotificationType = "lobby_invite"
	NotifyMessage        NotificationType = "message"
	NotifyAchievement    NotificationType = "achievement"
)

type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	IsRead    bool              `json:"is_read"`
	CreatedAt time.Time         `json:"created_at"`
}

type SocialStats struct {
	TotalFriends        int `json:"total_friends"`
	OnlineFriends       int `json:"online_friends"`
	PendingRequests     int `json:"pending_requests"`
	UnreadNotifications int `json:"unread_notifications"`
}
