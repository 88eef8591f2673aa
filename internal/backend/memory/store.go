// Package memory is an in-process implementation of every backend port. It is
// used by tests and by STORE_DRIVER=memory for local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/sirupsen/logrus"
)

// WritePolicy decides whether a lobby write is allowed. A rejected write
// behaves like a row-level security filter: zero rows, no error from the
// database layer.
type WritePolicy func(current models.Lobby, m backend.LobbyMutation) bool

// Store holds all state behind one mutex.
type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]models.User
	lobbies       map[uuid.UUID]models.Lobby
	participants  map[uuid.UUID][]models.Participant // lobby id -> active rows
	invites       []models.LobbyInvite
	rooms         map[uuid.UUID]models.ChatRoom      // lobby id -> room
	messages      map[uuid.UUID][]models.ChatMessage // room id -> messages
	achievements  []models.Achievement
	unlocks       map[uuid.UUID][]models.UserAchievement
	stats         map[uuid.UUID]models.UserStats
	friends       []models.Friend
	groups        []models.FriendGroup // Members holds ids only, profiles are filled on read
	presence      map[uuid.UUID]models.Presence
	notifications map[uuid.UUID][]models.Notification
	actions       []models.AdminAction

	policy WritePolicy
	feed   backend.Feed
	log    logrus.FieldLogger
	now    func() time.Time
}

// New returns an empty store publishing to feed. A nil feed gets an
// in-process Feed.
func New(feed backend.Feed, logger logrus.FieldLogger) *Store {
	if feed == nil {
		feed = NewFeed()
	}
	return &Store{
		users:         make(map[uuid.UUID]models.User),
		lobbies:       make(map[uuid.UUID]models.Lobby),
		participants:  make(map[uuid.UUID][]models.Participant),
		rooms:         make(map[uuid.UUID]models.ChatRoom),
		messages:      make(map[uuid.UUID][]models.ChatMessage),
		unlocks:       make(map[uuid.UUID][]models.UserAchievement),
		stats:         make(map[uuid.UUID]models.UserStats),
		presence:      make(map[uuid.UUID]models.Presence),
		notifications: make(map[uuid.UUID][]models.Notification),
		feed:          feed,
		log:           logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Backend exposes the store through every port.
func (s *Store) Backend() backend.Backend {
	return backend.Backend{
		Lobbies:      s,
		Chat:         s,
		Achievements: s,
		Social:       s,
		Users:        s,
		Feed:         s.feed,
		Auditor:      s,
	}
}

// SetWritePolicy installs a lobby write filter; nil allows every write.
func (s *Store) SetWritePolicy(p WritePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// SeedAchievements replaces the achievement definitions.
func (s *Store) SeedAchievements(defs []models.Achievement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.achievements = append([]models.Achievement(nil), defs...)
}

// LogAdminAction records the action in memory.
func (s *Store) LogAdminAction(_ context.Context, action models.AdminAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.now()
	}
	s.actions = append(s.actions, action)
	return nil
}

// AdminActions returns the recorded audit log.
func (s *Store) AdminActions() []models.AdminAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AdminAction(nil), s.actions...)
}

// publish sends changes after the lock is released. Failures are logged.
func (s *Store) publish(ctx context.Context, changes ...backend.Change) {
	for _, c := range changes {
		if err := s.feed.Publish(ctx, c); err != nil && s.log != nil {
			s.log.WithError(err).WithField("table", c.Table).Warn("failed to publish change")
		}
	}
}
