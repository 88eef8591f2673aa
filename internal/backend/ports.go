// Package backend defines the data-access ports every service depends on.
// internal/database and internal/cache implement them against Postgres and
// Redis; internal/backend/memory implements them in process.
package backend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
)

// LobbyMutation is the write a lifecycle transition asks a store to persist.
// Lobby is the full new row; at most one participant change accompanies it.
type LobbyMutation struct {
	Lobby             models.Lobby
	AddParticipant    *models.Participant
	RemoveParticipant *uuid.UUID // user id whose active row is removed
	Delete            bool       // delete the lobby and its participant rows
}

// MutateFunc computes a mutation from a consistent snapshot of a lobby and its
// active participants.
type MutateFunc func(lobby models.Lobby, participants []models.Participant) (LobbyMutation, error)

type LobbyStore interface {
	// ListLobbies returns every lobby, newest first.
	ListLobbies(ctx context.Context) ([]models.Lobby, error)
	// SearchLobbies is the full-text search procedure over game, title and description.
	SearchLobbies(ctx context.Context, term string) ([]models.Lobby, error)
	GetLobby(ctx context.Context, id uuid.UUID) (models.Lobby, error)
	// LobbySnapshot reads a lobby and its active participants as of one point
	// in time, so current_players always matches the roster.
	LobbySnapshot(ctx context.Context, id uuid.UUID) (models.Lobby, []models.Participant, error)
	// ParticipatingLobbyIDs lists lobbies in which the user holds an active row.
	ParticipatingLobbyIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	// InsertLobby stores a new lobby together with its creator's participant row.
	InsertLobby(ctx context.Context, lobby models.Lobby, creator models.Participant) error
	// MutateLobby locks the lobby, calls fn with the locked snapshot and
	// persists the result atomically. A write filtered by the authorization
	// layer fails with ErrPermissionDenied, a lost race with ErrConflict. The
	// returned lobby is the stored row after the mutation.
	MutateLobby(ctx context.Context, id uuid.UUID, fn MutateFunc) (models.Lobby, error)

	// InsertInvite stores a pending invite. An unknown invitee is ErrNotFound,
	// a second pending invite for the same lobby and user ErrDuplicate.
	InsertInvite(ctx context.Context, inv models.LobbyInvite) (models.LobbyInvite, error)
	GetInvite(ctx context.Context, id uuid.UUID) (models.LobbyInvite, error)
	// PendingInvites lists the user's pending, unexpired invites newest first
	// with Lobby and InvitedByUser filled.
	PendingInvites(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.LobbyInvite, error)
	// LobbyInvites lists every invite of a lobby newest first with InvitedUser filled.
	LobbyInvites(ctx context.Context, lobbyID uuid.UUID) ([]models.LobbyInvite, error)
	// RespondInvite moves a pending invite addressed to userID to status.
	// A missing invite or one addressed to someone else is ErrNotFound, an
	// invite no longer pending ErrInvalidState.
	RespondInvite(ctx context.Context, id, userID uuid.UUID, status models.InviteStatus) (models.LobbyInvite, error)
	// HasOpenInvite reports whether the user holds a pending or accepted,
	// unexpired invite to the lobby.
	HasOpenInvite(ctx context.Context, lobbyID, userID uuid.UUID, now time.Time) (bool, error)
}

type ChatStore interface {
	// GetOrCreateRoom converges on a single room per lobby under concurrent calls.
	GetOrCreateRoom(ctx context.Context, lobbyID uuid.UUID) (models.ChatRoom, error)
	// ListMessages returns the newest limit messages in chronological order.
	ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.ChatMessage, error)
	// InsertMessage assigns the id and timestamp and returns the stored message.
	InsertMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
}

type AchievementStore interface {
	ListAchievements(ctx context.Context) ([]models.Achievement, error)
	UserAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error)
	// UserStats returns nil without error for a user that has never played.
	UserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
	// UpdateUserStats is the post-match statistics procedure.
	UpdateUserStats(ctx context.Context, userID uuid.UUID, result models.MatchResult, game string, earnings decimal.Decimal) (models.UserStats, error)
	// CheckAchievements unlocks every achievement the user's stats now satisfy
	// and returns the new unlocks.
	CheckAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error)
	RecentAchievements(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserAchievement, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type SocialStore interface {
	// SendFriendRequest fails with ErrDuplicate when the pair already has a
	// relationship in either direction.
	SendFriendRequest(ctx context.Context, from, to uuid.UUID) (models.Friend, error)
	// AcceptFriendRequest accepts the pending request from requester to
	// addressee, or fails with ErrNotFound.
	AcceptFriendRequest(ctx context.Context, requester, addressee uuid.UUID) (models.Friend, error)
	RemoveFriend(ctx context.Context, a, b uuid.UUID) error
	// ListFriendships returns the user's relationships in both directions with
	// Other filled in, newest first.
	ListFriendships(ctx context.Context, userID uuid.UUID, status models.FriendStatus) ([]models.Friend, error)

	UpdatePresence(ctx context.Context, p models.Presence) error
	// ExpirePresence marks users offline whose last_seen is before cutoff and
	// returns how many rows changed.
	ExpirePresence(ctx context.Context, cutoff time.Time) (int, error)

	InsertNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error
	UnreadNotificationCount(ctx context.Context, userID uuid.UUID) (int, error)

	// CreateFriendGroup stores a group; names are unique per owner (ErrDuplicate).
	CreateFriendGroup(ctx context.Context, g models.FriendGroup) (models.FriendGroup, error)
	// ListFriendGroups returns the owner's groups newest first with members.
	ListFriendGroups(ctx context.Context, ownerID uuid.UUID) ([]models.FriendGroup, error)
	// AddFriendGroupMember fails with ErrNotFound when the group is not the
	// owner's and ErrDuplicate when the friend is already a member.
	AddFriendGroupMember(ctx context.Context, ownerID, groupID, friendID uuid.UUID) error

	// SearchUsers matches username or display name, excluding one user.
	SearchUsers(ctx context.Context, term string, exclude uuid.UUID, limit int) ([]models.UserProfile, error)
}

type UserStore interface {
	// CreateUser stores u with an already hashed password. Email and username
	// are unique (ErrDuplicate).
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Backend bundles every port so wiring code passes one value around.
type Backend struct {
	Lobbies      LobbyStore
	Chat         ChatStore
	Achievements AchievementStore
	Social       SocialStore
	Users        UserStore
	Feed         Feed
	Auditor      Auditor
}
