// Package database implements the backend ports on PostgreSQL through pgx.
package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Connect opens a pool on connStr. Every connection registers the
// shopspring decimal codec so NUMERIC columns scan into decimal.Decimal.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	config.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Store implements every backend port against a pgx pool. Changes are
// published to feed after their transaction commits.
type Store struct {
	pool *pgxpool.Pool
	feed backend.Feed
	log  logrus.FieldLogger
}

func New(pool *pgxpool.Pool, feed backend.Feed, logger logrus.FieldLogger) *Store {
	return &Store{pool: pool, feed: feed, log: logger}
}

// Backend exposes the store through every port. Admin actions are written
// straight to admin_actions; callers with a Redis queue replace Auditor.
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

// publish is a no-op for a store built without a feed.
func (s *Store) publish(ctx context.Context, changes ...backend.Change) {
	if s.feed == nil {
		return
	}
	for _, c := range changes {
		if err := s.feed.Publish(ctx, c); err != nil {
			s.log.WithError(err).WithField("table", c.Table).Warn("failed to publish change")
		}
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// classify maps driver errors onto the backend taxonomy.
func classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", what, backend.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, backend.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}
