// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LobbyStatus is the lifecycle position of a lobby. Only the lobby package's
// transition function moves a lobby between statuses.
type LobbyStatus string

const (
	LobbyWaiting       LobbyStatus = "waiting"
	LobbyInProgress    LobbyStatus = "in_progress"
	LobbyPendingReview LobbyStatus = "pending_admin_review"
	LobbyCompleted     LobbyStatus = "completed"
	LobbyCancelled     LobbyStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s LobbyStatus) Valid() bool {
	switch s {
	case LobbyWaiting, LobbyInProgress, LobbyPendingReview, LobbyCompleted, LobbyCancelled:
		return true
	}
	return false
}

// Lobby represents a row in the lobbies table: a proposed or in-progress wagered match.
type Lobby struct {
	ID          uuid.UUID `json:"id"`
	Game        string    `json:"game"`
	CustomTitle string    `json:"custom_title,omitempty"`
	Description string    `json:"description,omitempty"`
	Region      string    `json:"region"`
	// Platform is optional; lobbies created without one match every platform filter.
	Platform string `json:"platform,omitempty"`

	Price          decimal.Decimal `json:"price"`
	MaxPlayers     int             `json:"max_players"`
	CurrentPlayers int             `json:"current_players"`
	Status         LobbyStatus     `json:"status"`

	// Derived from Price and MaxPlayers, see internal/fees.
	Pot           decimal.Decimal `json:"pot"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	BondPerPlayer decimal.Decimal `json:"bond_per_player"`
	WinnerAmount  decimal.Decimal `json:"winner_amount"`

	CreatedBy uuid.UUID `json:"created_by"`
	// IsPrivate lobbies stay out of the public list and admit only invited
	// users or holders of InviteCode.
	IsPrivate  bool   `json:"is_private"`
	InviteCode string `json:"invite_code,omitempty"`
	// GameID is the external match identifier submitted on completion.
	GameID   string     `json:"game_id,omitempty"`
	WinnerID *uuid.UUID `json:"winner_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Title returns the custom title, or a generated one when none was given.
func (l Lobby) Title() string {
	if l.CustomTitle != "" {
		return l.CustomTitle
	}
	return l.Game + " - $" + l.Price.StringFixed(2) + " - " + l.Region
}

// VisibleTo returns l as viewer may see it: only the creator sees the invite code.
func (l Lobby) VisibleTo(viewer uuid.UUID) Lobby {
	if viewer != l.CreatedBy {
		l.InviteCode = ""
	}
	return l
}

// ParticipantStatus is the membership state of a lobby participant row.
type ParticipantStatus string

const (
	ParticipantActive       ParticipantStatus = "active"
	ParticipantLeft         ParticipantStatus = "left"
	ParticipantDisqualified ParticipantStatus = "disqualified"
)

// Participant links a user to a lobby (lobby_participants table).
type Participant struct {
	ID       uuid.UUID         `json:"id"`
	LobbyID  uuid.UUID         `json:"lobby_id"`
	UserID   uuid.UUID         `json:"user_id"`
	Username string            `json:"username,omitempty"`
	JoinedAt time.Time         `json:"joined_at"`
	Status   ParticipantStatus `json:"status"`
}

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
	InviteExpired  InviteStatus = "expired"
)

// LobbyInvite asks a user to join a private lobby (lobby_invites table).
type LobbyInvite struct {
	ID            uuid.UUID    `json:"id"`
	LobbyID       uuid.UUID    `json:"lobby_id"`
	InvitedUserID uuid.UUID    `json:"invited_user_id"`
	InvitedBy     uuid.UUID    `json:"invited_by"`
	Status        InviteStatus `json:"status"`
	ExpiresAt     time.Time    `json:"expires_at"`
	CreatedAt     time.Time    `json:"created_at"`

	// Filled by listings.
	Lobby         *Lobby       `json:"lobby,omitempty"`
	InvitedUser   *UserProfile `json:"invited_user,omitempty"`
	InvitedByUser *UserProfile `json:"invited_by_user,omitempty"`
}

// Open reports whether the invite still admits its user at now.
func (i LobbyInvite) Open(now time.Time) bool {
	return (i.Status == InvitePending || i.Status == InviteAccepted) && now.Before(i.ExpiresAt)
}
