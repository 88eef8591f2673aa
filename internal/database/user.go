package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/skillstake/internal/models"
)

// CreateUser inserts u. The password must already be hashed.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		u.ID = id
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	q := `INSERT INTO users (id, email, password, username, display_name, avatar_url, is_admin, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			u.ID, u.Email, u.Password, u.Username, u.DisplayName, u.AvatarURL, u.IsAdmin, u.CreatedAt,
		)
		return execErr
	})
	return classify(err, "insert user "+u.Username)
}

const userColumns = `id, email, password, username, display_name, avatar_url, is_admin, created_at`

func (s *Store) getUser(ctx context.Context, where string, arg any, what string) (models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&u.ID, &u.Email, &u.Password, &u.Username, &u.DisplayName, &u.AvatarURL, &u.IsAdmin, &u.CreatedAt,
	)
	if err != nil {
		return models.User{}, classify(err, "user "+what)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.getUser(ctx, `id=$1`, id, id.String())
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, `LOWER(email)=LOWER($1)`, email, email)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, `LOWER(username)=LOWER($1)`, username, username)
}
