// Package social covers friends, presence and notifications.
package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultNotificationLimit = 50
	DefaultSearchLimit       = 20
)

type Service struct {
	store backend.SocialStore
	users backend.UserStore
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(store backend.SocialStore, users backend.UserStore, logger logrus.FieldLogger) *Service {
	return &Service{
		store: store,
		users: users,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func requireActor(actor models.Actor) error {
	if !actor.Authenticated() {
		return backend.ErrAuthRequired
	}
	return nil
}

// SendFriendRequest asks friendID to become actor's friend and notifies them.
func (s *Service) SendFriendRequest(ctx context.Context, actor models.Actor, friendID uuid.UUID) (models.Friend, error) {
	if err := requireActor(actor); err != nil {
		return models.Friend{}, err
	}
	if friendID == actor.UserID {
		return models.Friend{}, fmt.Errorf("cannot friend yourself: %w", backend.ErrValidation)
	}
	f, err := s.store.SendFriendRequest(ctx, actor.UserID, friendID)
	if err != nil {
		return models.Friend{}, fmt.Errorf("send friend request: %w", err)
	}

	s.notify(ctx, models.Notification{
		UserID:  friendID,
		Type:    models.NotifyFriendRequest,
		Title:   "New friend request",
		Message: s.displayName(ctx, actor.UserID) + " sent you a friend request",
		Data:    map[string]string{"from_user_id": actor.UserID.String()},
	})
	return f, nil
}

// AcceptFriendRequest accepts the pending request requesterID sent to actor.
func (s *Service) AcceptFriendRequest(ctx context.Context, actor models.Actor, requesterID uuid.UUID) (models.Friend, error) {
	if err := requireActor(actor); err != nil {
		return models.Friend{}, err
	}
	f, err := s.store.AcceptFriendRequest(ctx, requesterID, actor.UserID)
	if err != nil {
		return models.Friend{}, fmt.Errorf("accept friend request: %w", err)
	}

	s.notify(ctx, models.Notification{
		UserID:  requesterID,
		Type:    models.NotifyFriendAccepted,
		Title:   "Friend request accepted",
		Message: s.displayName(ctx, actor.UserID) + " accepted your friend request",
		Data:    map[string]string{"friend_id": actor.UserID.String()},
	})
	return f, nil
}

// RemoveFriend deletes the relationship in either direction, which also
// declines or withdraws a pending request.
func (s *Service) RemoveFriend(ctx context.Context, actor models.Actor, friendID uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.store.RemoveFriend(ctx, actor.UserID, friendID); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return nil
}

func (s *Service) Friends(ctx context.Context, actor models.Actor) ([]models.Friend, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	fs, err := s.store.ListFriendships(ctx, actor.UserID, models.FriendAccepted)
	if err != nil {
		return nil, err
	}
	if fs == nil {
		fs = []models.Friend{}
	}
	return fs, nil
}

func (s *Service) FriendRequests(ctx context.Context, actor models.Actor) (models.FriendRequests, error) {
	if err := requireActor(actor); err != nil {
		return models.FriendRequests{}, err
	}
	pending, err := s.store.ListFriendships(ctx, actor.UserID, models.FriendPending)
	if err != nil {
		return models.FriendRequests{}, err
	}
	reqs := models.FriendRequests{Sent: []models.Friend{}, Received: []models.Friend{}}
	for _, f := range pending {
		if f.UserID == actor.UserID {
			reqs.Sent = append(reqs.Sent, f)
		} else {
			reqs.Received = append(reqs.Received, f)
		}
	}
	return reqs, nil
}

// OnlineFriends returns the profiles of friends whose presence is not offline.
func (s *Service) OnlineFriends(ctx context.Context, actor models.Actor) ([]models.UserProfile, error) {
	friends, err := s.Friends(ctx, actor)
	if err != nil {
		return nil, err
	}
	online := []models.UserProfile{}
	for _, f := range friends {
		if f.Other != nil && f.Other.Status != "" && f.Other.Status != models.PresenceOffline {
			online = append(online, *f.Other)
		}
	}
	return online, nil
}

func (s *Service) UpdatePresence(ctx context.Context, actor models.Actor, status models.PresenceStatus, lobbyID *uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("unknown presence status %q: %w", status, backend.ErrValidation)
	}
	return s.store.UpdatePresence(ctx, models.Presence{
		UserID:         actor.UserID,
		Status:         status,
		LastSeen:       s.now(),
		CurrentLobbyID: lobbyID,
	})
}

// ExpirePresence marks users offline who have not been seen within ttl.
func (s *Service) ExpirePresence(ctx context.Context, ttl time.Duration) (int, error) {
	return s.store.ExpirePresence(ctx, s.now().Add(-ttl))
}

func (s *Service) Notifications(ctx context.Context, actor models.Actor, limit int) ([]models.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	ns, err := s.store.ListNotifications(ctx, actor.UserID, limit)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		ns = []models.Notification{}
	}
	return ns, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return s.store.MarkNotificationRead(ctx, actor.UserID, id)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, actor models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return s.store.MarkAllNotificationsRead(ctx, actor.UserID)
}

func (s *Service) UnreadCount(ctx context.Context, actor models.Actor) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	return s.store.UnreadNotificationCount(ctx, actor.UserID)
}

// SearchUsers finds other users by username or display name. A blank term
// matches nobody.
func (s *Service) SearchUsers(ctx context.Context, actor models.Actor, term string, limit int) ([]models.UserProfile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.UserProfile{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	ps, err := s.store.SearchUsers(ctx, term, actor.UserID, limit)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []models.UserProfile{}
	}
	return ps, nil
}

func (s *Service) Stats(ctx context.Context, actor models.Actor) (models.SocialStats, error) {
	if err := requireActor(actor); err != nil {
		return models.SocialStats{}, err
	}
	var (
		st      models.SocialStats
		friends []models.Friend
		reqs    models.FriendRequests
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		friends, err = s.Friends(gctx, actor)
		return err
	})
	g.Go(func() (err error) {
		reqs, err = s.FriendRequests(gctx, actor)
		return err
	})
	g.Go(func() (err error) {
		st.UnreadNotifications, err = s.UnreadCount(gctx, actor)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.SocialStats{}, err
	}

	st.TotalFriends = len(friends)
	for _, f := range friends {
		if f.Other != nil && f.Other.Status != "" && f.Other.Status != models.PresenceOffline {
			st.OnlineFriends++
		}
	}
	st.PendingRequests = len(reqs.Received)
	return st, nil
}

func (s *Service) displayName(ctx context.Context, id uuid.UUID) string {
	if s.users == nil {
		return "Someone"
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func (s *Service) notify(ctx context.Context, n models.Notification) {
	if _, err := s.store.InsertNotification(ctx, n); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user": n.UserID, "type": n.Type}).Warn("failed to create notification")
	}
}

const maxGroupName = 50

func validColor(c string) bool {
	if len(c) != 7 || c[0] != '#' {
		return false
	}
	for _, r := range c[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// CreateFriendGroup adds a named group for organising the actor's friends.
// A blank color takes models.DefaultGroupColor.
func (s *Service) CreateFriendGroup(ctx context.Context, actor models.Actor, name, color string) (models.FriendGroup, error) {
	if err := requireActor(actor); err != nil {
		return models.FriendGroup{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxGroupName {
		return models.FriendGroup{}, fmt.Errorf("group name must be 1 to %d characters: %w", maxGroupName, backend.ErrValidation)
	}
	if color = strings.TrimSpace(color); color == "" {
		color = models.DefaultGroupColor
	}
	if !validColor(color) {
		return models.FriendGroup{}, fmt.Errorf("invalid group color %q: %w", color, backend.ErrValidation)
	}
	g, err := s.store.CreateFriendGroup(ctx, models.FriendGroup{
		ID:        uuid.New(),
		UserID:    actor.UserID,
		Name:      name,
		Color:     color,
		CreatedAt: s.now(),
	})
	if err != nil {
		return models.FriendGroup{}, fmt.Errorf("create friend group: %w", err)
	}
	return g, nil
}

func (s *Service) FriendGroups(ctx context.Context, actor models.Actor) ([]models.FriendGroup, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListFriendGroups(ctx, actor.UserID)
}

// AddFriendToGroup puts an accepted friend into one of the actor's groups.
func (s *Service) AddFriendToGroup(ctx context.Context, actor models.Actor, groupID, friendID uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	friends, err := s.store.ListFriendships(ctx, actor.UserID, models.FriendAccepted)
	if err != nil {
		return err
	}
	isFriend := false
	for _, f := range friends {
		if friendID == actor.UserID {
			break
		}
		if f.UserID == friendID || f.FriendID == friendID {
			isFriend = true
			break
		}
	}
	if !isFriend {
		return fmt.Errorf("user %s is not a friend: %w", friendID, backend.ErrValidation)
	}
	if err := s.store.AddFriendGroupMember(ctx, actor.UserID, groupID, friendID); err != nil {
		return fmt.Errorf("add to friend group: %w", err)
	}
	return nil
}
