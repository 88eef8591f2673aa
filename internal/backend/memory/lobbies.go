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

func (s *Store) sortedLobbies(keep func(models.Lobby) bool) []models.Lobby {
	out := make([]models.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *Store) ListLobbies(_ context.Context) ([]models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLobbies(func(models.Lobby) bool { return true }), nil
}

func (s *Store) SearchLobbies(_ context.Context, term string) ([]models.Lobby, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLobbies(func(l models.Lobby) bool {
		return strings.Contains(strings.ToLower(l.Game), term) ||
			strings.Contains(strings.ToLower(l.CustomTitle), term) ||
			strings.Contains(strings.ToLower(l.Description), term)
	}), nil
}

func (s *Store) GetLobby(_ context.Context, id uuid.UUID) (models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return models.Lobby{}, fmt.Errorf("lobby %s: %w", id, backend.ErrNotFound)
	}
	return l, nil
}

func (s *Store) LobbySnapshot(_ context.Context, id uuid.UUID) (models.Lobby, []models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return models.Lobby{}, nil, fmt.Errorf("lobby %s: %w", id, backend.ErrNotFound)
	}
	return l, s.activeParticipants(id), nil
}

// activeParticipants copies the roster in join order with usernames filled.
func (s *Store) activeParticipants(lobbyID uuid.UUID) []models.Participant {
	rows := s.participants[lobbyID]
	out := make([]models.Participant, 0, len(rows))
	for _, p := range rows {
		if p.Status != models.ParticipantActive {
			continue
		}
		p.Username = s.users[p.UserID].Username
		out = append(out, p)
	}
	return out
}

func (s *Store) ParticipatingLobbyIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for lobbyID, rows := range s.participants {
		for _, p := range rows {
			if p.UserID == userID && p.Status == models.ParticipantActive {
				ids = append(ids, lobbyID)
				break
			}
		}
	}
	return ids, nil
}

func (s *Store) InsertLobby(ctx context.Context, l models.Lobby, creator models.Participant) error {
	s.mu.Lock()
	if _, ok := s.lobbies[l.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("lobby %s: %w", l.ID, backend.ErrDuplicate)
	}
	s.lobbies[l.ID] = l
	s.participants[l.ID] = []models.Participant{creator}
	s.mu.Unlock()

	s.publish(ctx, backend.LobbyChange(backend.OpInsert, l), backend.ParticipantChange(backend.OpInsert, creator))
	return nil
}

func (s *Store) MutateLobby(ctx context.Context, id uuid.UUID, fn backend.MutateFunc) (models.Lobby, error) {
	s.mu.Lock()
	cur, ok := s.lobbies[id]
	if !ok {
		s.mu.Unlock()
		return models.Lobby{}, fmt.Errorf("lobby %s: %w", id, backend.ErrNotFound)
	}

	m, err := fn(cur, s.activeParticipants(id))
	if err != nil {
		s.mu.Unlock()
		return models.Lobby{}, err
	}
	if s.policy != nil && !s.policy(cur, m) {
		s.mu.Unlock()
		return models.Lobby{}, backend.ClassifyZeroRows(true, false)
	}

	var changes []backend.Change
	if m.Delete {
		for _, p := range s.participants[id] {
			changes = append(changes, backend.ParticipantChange(backend.OpDelete, p))
		}
		delete(s.participants, id)
		delete(s.lobbies, id)
		kept := s.invites[:0]
		for _, inv := range s.invites {
			if inv.LobbyID != id {
				kept = append(kept, inv)
			}
		}
		s.invites = kept
		if room, ok := s.rooms[id]; ok {
			delete(s.messages, room.ID)
			delete(s.rooms, id)
		}
		s.mu.Unlock()

		s.publish(ctx, append(changes, backend.LobbyChange(backend.OpDelete, cur))...)
		return m.Lobby, nil
	}

	if m.AddParticipant != nil {
		for _, p := range s.participants[id] {
			if p.UserID == m.AddParticipant.UserID && p.Status == models.ParticipantActive {
				s.mu.Unlock()
				return models.Lobby{}, fmt.Errorf("user %s in lobby %s: %w", p.UserID, id, backend.ErrAlreadyJoined)
			}
		}
		s.participants[id] = append(s.participants[id], *m.AddParticipant)
		changes = append(changes, backend.ParticipantChange(backend.OpInsert, *m.AddParticipant))
	}
	if m.RemoveParticipant != nil {
		rows := s.participants[id][:0]
		for _, p := range s.participants[id] {
			if p.UserID == *m.RemoveParticipant {
				changes = append(changes, backend.ParticipantChange(backend.OpDelete, p))
				continue
			}
			rows = append(rows, p)
		}
		s.participants[id] = rows
	}
	s.lobbies[id] = m.Lobby
	s.mu.Unlock()

	s.publish(ctx, append([]backend.Change{backend.LobbyChange(backend.OpUpdate, m.Lobby)}, changes...)...)
	return m.Lobby, nil
}

func (s *Store) InsertInvite(_ context.Context, inv models.LobbyInvite) (models.LobbyInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[inv.LobbyID]; !ok {
		return models.LobbyInvite{}, fmt.Errorf("lobby %s: %w", inv.LobbyID, backend.ErrNotFound)
	}
	if _, ok := s.users[inv.InvitedUserID]; !ok {
		return models.LobbyInvite{}, fmt.Errorf("user %s: %w", inv.InvitedUserID, backend.ErrNotFound)
	}
	for _, existing := range s.invites {
		if existing.LobbyID == inv.LobbyID && existing.InvitedUserID == inv.InvitedUserID && existing.Status == models.InvitePending {
			return models.LobbyInvite{}, fmt.Errorf("invite for %s to lobby %s: %w", inv.InvitedUserID, inv.LobbyID, backend.ErrDuplicate)
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	s.invites = append(s.invites, inv)
	return inv, nil
}

func (s *Store) GetInvite(_ context.Context, id uuid.UUID) (models.LobbyInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.ID == id {
			return inv, nil
		}
	}
	return models.LobbyInvite{}, fmt.Errorf("invite %s: %w", id, backend.ErrNotFound)
}

// newestInvites copies the invites keep accepts, newest first.
func (s *Store) newestInvites(keep func(models.LobbyInvite) bool) []models.LobbyInvite {
	out := []models.LobbyInvite{}
	for _, inv := range s.invites {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) PendingInvites(_ context.Context, userID uuid.UUID, now time.Time) ([]models.LobbyInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.newestInvites(func(inv models.LobbyInvite) bool {
		return inv.InvitedUserID == userID && inv.Status == models.InvitePending && now.Before(inv.ExpiresAt)
	})
	for i := range out {
		l := s.lobbies[out[i].LobbyID]
		by := s.profile(out[i].InvitedBy)
		out[i].Lobby = &l
		out[i].InvitedByUser = &by
	}
	return out, nil
}

func (s *Store) LobbyInvites(_ context.Context, lobbyID uuid.UUID) ([]models.LobbyInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.newestInvites(func(inv models.LobbyInvite) bool { return inv.LobbyID == lobbyID })
	for i := range out {
		p := s.profile(out[i].InvitedUserID)
		out[i].InvitedUser = &p
	}
	return out, nil
}

func (s *Store) RespondInvite(_ context.Context, id, userID uuid.UUID, status models.InviteStatus) (models.LobbyInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, inv := range s.invites {
		if inv.ID != id || inv.InvitedUserID != userID {
			continue
		}
		if inv.Status != models.InvitePending {
			return models.LobbyInvite{}, fmt.Errorf("invite %s is %s: %w", id, inv.Status, backend.ErrInvalidState)
		}
		inv.Status = status
		s.invites[i] = inv
		return inv, nil
	}
	return models.LobbyInvite{}, fmt.Errorf("invite %s: %w", id, backend.ErrNotFound)
}

func (s *Store) HasOpenInvite(_ context.Context, lobbyID, userID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.LobbyID == lobbyID && inv.InvitedUserID == userID && inv.Open(now) {
			return true, nil
		}
	}
	return false, nil
}
