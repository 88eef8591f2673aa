package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
)

// profile returns the public profile of id with presence attached.
func (s *Store) profile(id uuid.UUID) models.UserProfile {
	p := s.users[id].Profile()
	p.ID = id
	p.Status = models.PresenceOffline
	if pr, ok := s.presence[id]; ok {
		p.Status = pr.Status
		seen := pr.LastSeen
		p.LastSeen = &seen
		p.CurrentLobbyID = pr.CurrentLobbyID
	}
	return p
}

func (s *Store) SendFriendRequest(ctx context.Context, from, to uuid.UUID) (models.Friend, error) {
	s.mu.Lock()
	if _, ok := s.users[to]; !ok {
		s.mu.Unlock()
		return models.Friend{}, fmt.Errorf("user %s: %w", to, backend.ErrNotFound)
	}
	for _, f := range s.friends {
		if (f.UserID == from && f.FriendID == to) || (f.UserID == to && f.FriendID == from) {
			s.mu.Unlock()
			return models.Friend{}, fmt.Errorf("friendship %s/%s: %w", from, to, backend.ErrDuplicate)
		}
	}
	now := s.now()
	f := models.Friend{
		ID:        uuid.New(),
		UserID:    from,
		FriendID:  to,
		Status:    models.FriendPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.friends = append(s.friends, f)
	s.mu.Unlock()

	s.publish(ctx, backend.FriendChange(backend.OpInsert, f))
	return f, nil
}

func (s *Store) AcceptFriendRequest(ctx context.Context, requester, addressee uuid.UUID) (models.Friend, error) {
	s.mu.Lock()
	for i, f := range s.friends {
		if f.UserID == requester && f.FriendID == addressee && f.Status == models.FriendPending {
			f.Status = models.FriendAccepted
			f.UpdatedAt = s.now()
			s.friends[i] = f
			s.mu.Unlock()

			s.publish(ctx, backend.FriendChange(backend.OpUpdate, f))
			return f, nil
		}
	}
	s.mu.Unlock()
	return models.Friend{}, fmt.Errorf("no pending friend request from %s to %s: %w", requester, addressee, backend.ErrNotFound)
}

func (s *Store) RemoveFriend(ctx context.Context, a, b uuid.UUID) error {
	s.mu.Lock()
	var removed []backend.Change
	kept := s.friends[:0]
	for _, f := range s.friends {
		if (f.UserID == a && f.FriendID == b) || (f.UserID == b && f.FriendID == a) {
			removed = append(removed, backend.FriendChange(backend.OpDelete, f))
			continue
		}
		kept = append(kept, f)
	}
	s.friends = kept
	s.mu.Unlock()

	if len(removed) == 0 {
		return fmt.Errorf("friendship %s/%s: %w", a, b, backend.ErrNotFound)
	}
	s.publish(ctx, removed...)
	return nil
}

func (s *Store) ListFriendships(_ context.Context, userID uuid.UUID, status models.FriendStatus) ([]models.Friend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Friend
	for _, f := range s.friends {
		if status != "" && f.Status != status {
			continue
		}
		var other uuid.UUID
		switch userID {
		case f.UserID:
			other = f.FriendID
		case f.FriendID:
			other = f.UserID
		default:
			continue
		}
		p := s.profile(other)
		f.Other = &p
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) UpdatePresence(ctx context.Context, p models.Presence) error {
	s.mu.Lock()
	if p.LastSeen.IsZero() {
		p.LastSeen = s.now()
	}
	s.presence[p.UserID] = p
	s.mu.Unlock()

	s.publish(ctx, backend.UserRowChange(backend.TableUserPresence, backend.OpUpdate, p.UserID.String(), p.UserID))
	return nil
}

func (s *Store) ExpirePresence(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	var changes []backend.Change
	for id, p := range s.presence {
		if p.Status == models.PresenceOffline || !p.LastSeen.Before(cutoff) {
			continue
		}
		p.Status = models.PresenceOffline
		p.CurrentLobbyID = nil
		s.presence[id] = p
		changes = append(changes, backend.UserRowChange(backend.TableUserPresence, backend.OpUpdate, id.String(), id))
	}
	s.mu.Unlock()

	s.publish(ctx, changes...)
	return len(changes), nil
}

func (s *Store) InsertNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	n.ID = uuid.New()
	n.CreatedAt = s.now()
	s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	s.mu.Unlock()

	s.publish(ctx, backend.UserRowChange(backend.TableSocialNotifications, backend.OpInsert, n.ID.String(), n.UserID))
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.notifications[userID]
	out := make([]models.Notification, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	s.mu.Lock()
	rows := s.notifications[userID]
	for i := range rows {
		if rows[i].ID == notificationID {
			rows[i].IsRead = true
			s.mu.Unlock()
			s.publish(ctx, backend.UserRowChange(backend.TableSocialNotifications, backend.OpUpdate, notificationID.String(), userID))
			return nil
		}
	}
	s.mu.Unlock()
	return fmt.Errorf("notification %s: %w", notificationID, backend.ErrNotFound)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	rows := s.notifications[userID]
	for i := range rows {
		rows[i].IsRead = true
	}
	s.mu.Unlock()

	s.publish(ctx, backend.UserRowChange(backend.TableSocialNotifications, backend.OpUpdate, "", userID))
	return nil
}

func (s *Store) UnreadNotificationCount(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.notifications[userID] {
		if !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Store) SearchUsers(_ context.Context, term string, exclude uuid.UUID, limit int) ([]models.UserProfile, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserProfile
	for id, u := range s.users {
		if id == exclude {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), term) || strings.Contains(strings.ToLower(u.DisplayName), term) {
			out = append(out, s.profile(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateFriendGroup(_ context.Context, g models.FriendGroup) (models.FriendGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.groups {
		if existing.UserID == g.UserID && strings.EqualFold(existing.Name, g.Name) {
			return models.FriendGroup{}, fmt.Errorf("friend group %q: %w", g.Name, backend.ErrDuplicate)
		}
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	g.Members = nil
	s.groups = append(s.groups, g)
	g.Members = []models.UserProfile{}
	return g, nil
}

func (s *Store) ListFriendGroups(_ context.Context, ownerID uuid.UUID) ([]models.FriendGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.FriendGroup{}
	for _, g := range s.groups {
		if g.UserID != ownerID {
			continue
		}
		members := make([]models.UserProfile, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, s.profile(m.ID))
		}
		g.Members = members
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AddFriendGroupMember(_ context.Context, ownerID, groupID, friendID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.groups {
		if g.ID != groupID || g.UserID != ownerID {
			continue
		}
		for _, m := range g.Members {
			if m.ID == friendID {
				return fmt.Errorf("user %s in group %s: %w", friendID, groupID, backend.ErrDuplicate)
			}
		}
		s.groups[i].Members = append(g.Members, models.UserProfile{ID: friendID})
		return nil
	}
	return fmt.Errorf("friend group %s: %w", groupID, backend.ErrNotFound)
}
