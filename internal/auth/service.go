package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
)

// ErrInvalidCredentials covers both an unknown username and a wrong password.
var ErrInvalidCredentials = fmt.Errorf("invalid username or password: %w", backend.ErrAuthRequired)

type SignUpRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Service registers users and turns session tokens into actors.
type Service struct {
	users    backend.UserStore
	sessions *Sessions
	params   HashParams
	log      logrus.FieldLogger
}

func NewService(users backend.UserStore, sessions *Sessions, params HashParams, logger logrus.FieldLogger) *Service {
	return &Service{users: users, sessions: sessions, params: params, log: logger}
}

// NormalizeUsername lowercases and trims; usernames are stored lowercase.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if n := len(username); n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("username must be %d to %d characters: %w", MinUsernameLength, MaxUsernameLength, backend.ErrValidation)
	}
	for _, r := range username {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("username may only contain letters, digits and underscores: %w", backend.ErrValidation)
		}
	}
	return nil
}

// SignUp creates the user and returns it with a session token.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (models.User, string, error) {
	username := NormalizeUsername(req.Username)
	if err := validateUsername(username); err != nil {
		return models.User{}, "", err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return models.User{}, "", fmt.Errorf("invalid email: %w", backend.ErrValidation)
	}
	if len(req.Password) < MinPasswordLength {
		return models.User{}, "", fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, backend.ErrValidation)
	}

	hash, err := HashPassword(req.Password, s.params)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	u := models.User{
		Email:       strings.ToLower(addr.Address),
		Password:    hash,
		Username:    username,
		DisplayName: displayName,
	}
	if err := s.users.CreateUser(ctx, &u); err != nil {
		return models.User{}, "", err
	}

	token, err := s.sessions.Issue(u.ID)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to issue token: %w", err)
	}
	s.log.WithField("user_id", u.ID).Info("user signed up")
	u.Password = ""
	return u, token, nil
}

// UsernameAvailable reports whether a valid username is still free.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return false, err
	}
	_, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return true, nil
	case err != nil:
		return false, err
	}
	return false, nil
}

// SignIn resolves the username to its account, then checks the password.
func (s *Service) SignIn(ctx context.Context, username, password string) (models.User, string, error) {
	u, err := s.users.GetUserByUsername(ctx, NormalizeUsername(username))
	if errors.Is(err, backend.ErrNotFound) {
		return models.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, "", err
	}

	ok, err := VerifyPassword(password, u.Password)
	if err != nil {
		return models.User{}, "", fmt.Errorf("stored hash for %s: %w", u.ID, err)
	}
	if !ok {
		return models.User{}, "", ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(u.ID)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to issue token: %w", err)
	}
	u.Password = ""
	return u, token, nil
}

// Session verifies token and loads the caller. The admin flag is read from
// the user row so a revoked role takes effect immediately.
func (s *Service) Session(ctx context.Context, token string) (models.Actor, error) {
	if token == "" {
		return models.Actor{}, backend.ErrAuthRequired
	}
	userID, err := s.sessions.Verify(token)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%v: %w", err, backend.ErrAuthRequired)
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, backend.ErrNotFound) {
		return models.Actor{}, fmt.Errorf("user %s no longer exists: %w", userID, backend.ErrAuthRequired)
	}
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{UserID: u.ID, IsAdmin: u.IsAdmin}, nil
}

// Me returns the caller's account without the password hash.
func (s *Service) Me(ctx context.Context, actor models.Actor) (models.User, error) {
	u, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return models.User{}, err
	}
	u.Password = ""
	return u, nil
}
