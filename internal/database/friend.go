// internal/database/friend.go

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
)

const friendColumns = `f.id, f.user_id, f.friend_id, f.status, f.created_at, f.updated_at`

func scanFriend(row pgx.Row) (models.Friend, error) {
	var f models.Friend
	err := row.Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// SendFriendRequest inserts a pending row. The pair index spans both
// directions, so an existing relationship either way is a duplicate.
func (s *Store) SendFriendRequest(ctx context.Context, from, to uuid.UUID) (models.Friend, error) {
	var f models.Friend
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id=$1)`, to).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		var err error
		f, err = scanFriend(tx.QueryRow(ctx, `
			INSERT INTO friends AS f (user_id, friend_id, status)
			VALUES ($1, $2, 'pending')
			RETURNING `+friendColumns, from, to))
		return err
	})
	if err != nil {
		return models.Friend{}, classify(err, fmt.Sprintf("friend request %s -> %s", from, to))
	}
	s.publish(ctx, backend.FriendChange(backend.OpInsert, f))
	return f, nil
}

// AcceptFriendRequest sets status='accepted' on the pending request from
// requester to addressee.
func (s *Store) AcceptFriendRequest(ctx context.Context, requester, addressee uuid.UUID) (models.Friend, error) {
	var f models.Friend
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		f, err = scanFriend(tx.QueryRow(ctx, `
			UPDATE friends AS f
			SET status='accepted', updated_at=NOW()
			WHERE user_id=$1 AND friend_id=$2 AND status='pending'
			RETURNING `+friendColumns, requester, addressee))
		return err
	})
	if err != nil {
		return models.Friend{}, classify(err, fmt.Sprintf("pending friend request %s -> %s", requester, addressee))
	}
	s.publish(ctx, backend.FriendChange(backend.OpUpdate, f))
	return f, nil
}

// RemoveFriend deletes the relationship between a and b in either direction.
func (s *Store) RemoveFriend(ctx context.Context, a, b uuid.UUID) error {
	var removed []backend.Change
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			DELETE FROM friends AS f
			WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)
			RETURNING `+friendColumns, a, b)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			f, err := scanFriend(rows)
			if err != nil {
				return err
			}
			removed = append(removed, backend.FriendChange(backend.OpDelete, f))
		}
		return rows.Err()
	})
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	if len(removed) == 0 {
		return fmt.Errorf("friendship %s/%s: %w", a, b, backend.ErrNotFound)
	}
	s.publish(ctx, removed...)
	return nil
}

// profileColumns selects a user joined with presence as "u" and "pr".
const profileColumns = `u.id, u.username, u.display_name, u.avatar_url,
	COALESCE(pr.status, 'offline'), pr.last_seen, pr.current_lobby_id`

func scanProfile(row pgx.Row, p *models.UserProfile, extra ...any) error {
	return row.Scan(append([]any{&p.ID, &p.Username, &p.DisplayName, &p.AvatarURL,
		&p.Status, &p.LastSeen, &p.CurrentLobbyID}, extra...)...)
}

// ListFriendships returns the user's relationships in both directions with
// the counterpart's profile and presence, newest first. An empty status
// returns every status.
func (s *Store) ListFriendships(ctx context.Context, userID uuid.UUID, status models.FriendStatus) ([]models.Friend, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`, `+friendColumns+`
		FROM friends f
		JOIN users u ON u.id = CASE WHEN f.user_id=$1 THEN f.friend_id ELSE f.user_id END
		LEFT JOIN user_presence pr ON pr.user_id = u.id
		WHERE (f.user_id=$1 OR f.friend_id=$1) AND ($2 = '' OR f.status=$2)
		ORDER BY f.updated_at DESC`, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	defer rows.Close()

	out := []models.Friend{}
	for rows.Next() {
		var (
			f models.Friend
			p models.UserProfile
		)
		if err := scanProfile(rows, &p, &f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Other = &p
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePresence(ctx context.Context, p models.Presence) error {
	if p.LastSeen.IsZero() {
		p.LastSeen = time.Now().UTC()
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO user_presence (user_id, status, last_seen, current_lobby_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE SET
				status=EXCLUDED.status, last_seen=EXCLUDED.last_seen, current_lobby_id=EXCLUDED.current_lobby_id`,
			p.UserID, p.Status, p.LastSeen, p.CurrentLobbyID)
		return err
	})
	if err != nil {
		return classify(err, "update presence")
	}
	s.publish(ctx, backend.UserRowChange(backend.TableUserPresence, backend.OpUpdate, p.UserID.String(), p.UserID))
	return nil
}

func (s *Store) ExpirePresence(ctx context.Context, cutoff time.Time) (int, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE user_presence
		SET status='offline', current_lobby_id=NULL
		WHERE status <> 'offline' AND last_seen < $1
		RETURNING user_id`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire presence: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return 0, fmt.Errorf("expire presence: %w", err)
	}

	changes := make([]backend.Change, 0, len(ids))
	for _, id := range ids {
		changes = append(changes, backend.UserRowChange(backend.TableUserPresence, backend.OpUpdate, id.String(), id))
	}
	s.publish(ctx, changes...)
	return len(ids), nil
}

func (s *Store) SearchUsers(ctx context.Context, term string, exclude uuid.UUID, limit int) ([]models.UserProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM users u
		LEFT JOIN user_presence pr ON pr.user_id = u.id
		WHERE u.id <> $2 AND (u.username ILIKE '%' || $1::text || '%' OR u.display_name ILIKE '%' || $1::text || '%')
		ORDER BY u.username
		LIMIT $3`, term, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	out := []models.UserProfile{}
	for rows.Next() {
		var p models.UserProfile
		if err := scanProfile(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateFriendGroup(ctx context.Context, g models.FriendGroup) (models.FriendGroup, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO friend_groups (user_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, color, created_at`, g.UserID, g.Name, g.Color).
		Scan(&g.ID, &g.UserID, &g.Name, &g.Color, &g.CreatedAt)
	if err != nil {
		return models.FriendGroup{}, classify(err, fmt.Sprintf("friend group %q", g.Name))
	}
	g.Members = []models.UserProfile{}
	return g, nil
}

// ListFriendGroups reads the groups, then every member profile in one pass.
func (s *Store) ListFriendGroups(ctx context.Context, ownerID uuid.UUID) ([]models.FriendGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, color, created_at
		FROM friend_groups WHERE user_id=$1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list friend groups: %w", err)
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.FriendGroup, error) {
		g := models.FriendGroup{Members: []models.UserProfile{}}
		err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Color, &g.CreatedAt)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("list friend groups: %w", err)
	}
	index := make(map[uuid.UUID]int, len(groups))
	for i, g := range groups {
		index[g.ID] = i
	}

	rows, err = s.pool.Query(ctx, `
		SELECT `+profileColumns+`, m.group_id
		FROM friend_group_members m
		JOIN friend_groups g ON g.id = m.group_id
		JOIN users u ON u.id = m.friend_id
		LEFT JOIN user_presence pr ON pr.user_id = u.id
		WHERE g.user_id=$1
		ORDER BY m.added_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list friend group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p       models.UserProfile
			groupID uuid.UUID
		)
		if err := scanProfile(rows, &p, &groupID); err != nil {
			return nil, err
		}
		if i, ok := index[groupID]; ok {
			groups[i].Members = append(groups[i].Members, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []models.FriendGroup{}
	}
	return groups, nil
}

func (s *Store) AddFriendGroupMember(ctx context.Context, ownerID, groupID, friendID uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var owned bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM friend_groups WHERE id=$1 AND user_id=$2)`, groupID, ownerID).Scan(&owned); err != nil {
			return err
		}
		if !owned {
			return pgx.ErrNoRows
		}
		_, err := tx.Exec(ctx, `INSERT INTO friend_group_members (group_id, friend_id) VALUES ($1, $2)`, groupID, friendID)
		return err
	})
	return classify(err, fmt.Sprintf("user %s in group %s", friendID, groupID))
}
