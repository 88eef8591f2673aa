package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
)

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
			return fmt.Errorf("user %s: %w", u.Username, backend.ErrDuplicate)
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) findUser(match func(models.User) bool, what string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("user %s: %w", what, backend.ErrNotFound)
}

func (s *Store) GetUserByID(_ context.Context, id uuid.UUID) (models.User, error) {
	return s.findUser(func(u models.User) bool { return u.ID == id }, id.String())
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	return s.findUser(func(u models.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	return s.findUser(func(u models.User) bool { return strings.EqualFold(u.Username, username) }, username)
}
