package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
)

// GetOrCreateRoom inserts the room if missing and reads back whichever row
// won; concurrent callers converge on one room through the unique lobby_id.
func (s *Store) GetOrCreateRoom(ctx context.Context, lobbyID uuid.UUID) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_rooms (lobby_id)
			SELECT id FROM lobbies WHERE id=$1
			ON CONFLICT (lobby_id) DO NOTHING`, lobbyID); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			SELECT id, lobby_id, name, is_active, created_at
			FROM chat_rooms WHERE lobby_id=$1`, lobbyID,
		).Scan(&room.ID, &room.LobbyID, &room.Name, &room.IsActive, &room.CreatedAt)
	})
	if err != nil {
		return models.ChatRoom{}, classify(err, "chat room for lobby "+lobbyID.String())
	}
	return room, nil
}

const messageColumns = `
	m.id, m.room_id, m.user_id, m.client_id, u.username, m.message,
	m.message_type, m.is_edited, m.edited_at, m.created_at`

func scanMessage(row pgx.Row) (models.ChatMessage, error) {
	var m models.ChatMessage
	err := row.Scan(&m.ID, &m.RoomID, &m.UserID, &m.ClientID, &m.Username, &m.Message,
		&m.MessageType, &m.IsEdited, &m.EditedAt, &m.CreatedAt)
	return m, err
}

func (s *Store) ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT * FROM (
			SELECT `+messageColumns+`
			FROM chat_messages m
			JOIN users u ON u.id = m.user_id
			WHERE m.room_id=$1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) newest
		ORDER BY created_at, id`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertMessage stores msg. A repeated (user, client id) pair returns the
// message stored the first time instead of a duplicate.
func (s *Store) InsertMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.MessageType == "" {
		msg.MessageType = models.MessageText
	}

	var (
		stored   models.ChatMessage
		lobbyID  uuid.UUID
		inserted bool
	)
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT lobby_id FROM chat_rooms WHERE id=$1`, msg.RoomID).Scan(&lobbyID); err != nil {
			return classify(err, "chat room "+msg.RoomID.String())
		}

		var id uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO chat_messages (room_id, user_id, client_id, message, message_type)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (room_id, user_id, client_id) WHERE client_id <> '' DO NOTHING
			RETURNING id`,
			msg.RoomID, msg.UserID, msg.ClientID, msg.Message, msg.MessageType,
		).Scan(&id)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			err = tx.QueryRow(ctx,
				`SELECT id FROM chat_messages WHERE room_id=$1 AND user_id=$2 AND client_id=$3`,
				msg.RoomID, msg.UserID, msg.ClientID).Scan(&id)
		case err == nil:
			inserted = true
		}
		if err != nil {
			return err
		}

		stored, err = scanMessage(tx.QueryRow(ctx, `
			SELECT `+messageColumns+`
			FROM chat_messages m JOIN users u ON u.id = m.user_id
			WHERE m.id=$1`, id))
		return err
	})
	if err != nil {
		return models.ChatMessage{}, classify(err, "insert message")
	}

	if inserted {
		s.publish(ctx, backend.MessageChange(stored, lobbyID))
	}
	return stored, nil
}
