package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
)

func (s *Store) InsertNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.Data == nil {
		n.Data = map[string]string{}
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO social_notifications (user_id, type, title, message, data)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			n.UserID, n.Type, n.Title, n.Message, n.Data,
		).Scan(&n.ID, &n.CreatedAt)
	})
	if err != nil {
		return models.Notification{}, classify(err, "insert notification")
	}
	s.publish(ctx, backend.UserRowChange(backend.TableSocialNotifications, backend.OpInsert, n.ID.String(), n.UserID))
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, title, message, data, is_read, created_at
		FROM social_notifications
		WHERE user_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx,
			`UPDATE social_notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`,
			notificationID, userID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("notification %s: %w", notificationID, backend.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, backend.UserRowChange(backend.TableSocialNotifications, backend.OpUpdate, notificationID.String(), userID))
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE social_notifications SET is_read=TRUE WHERE user_id=$1 AND NOT is_read`, userID); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	s.publish(ctx, backend.UserRowChange(backend.TableSocialNotifications, backend.OpUpdate, "", userID))
	return nil
}

func (s *Store) UnreadNotificationCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM social_notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread notifications: %w", err)
	}
	return n, nil
}
