package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
)

const inviteColumns = `i.id, i.lobby_id, i.invited_user_id, i.invited_by, i.status, i.expires_at, i.created_at`

const inviteLobbyColumns = `
	l.id, l.game, l.custom_title, l.description, l.region, l.platform,
	l.price, l.max_players, l.current_players, l.status,
	l.pot, l.platform_fee, l.bond_per_player, l.winner_amount,
	l.created_by, l.is_private, l.invite_code, l.game_id, l.winner_id, l.created_at, l.updated_at`

func scanInvite(row pgx.Row, extra ...any) (models.LobbyInvite, error) {
	var inv models.LobbyInvite
	err := row.Scan(append([]any{&inv.ID, &inv.LobbyID, &inv.InvitedUserID, &inv.InvitedBy,
		&inv.Status, &inv.ExpiresAt, &inv.CreatedAt}, extra...)...)
	return inv, err
}

func (s *Store) InsertInvite(ctx context.Context, inv models.LobbyInvite) (models.LobbyInvite, error) {
	var stored models.LobbyInvite
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var lobbyOK, userOK bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM lobbies WHERE id=$1), EXISTS (SELECT 1 FROM users WHERE id=$2)`,
			inv.LobbyID, inv.InvitedUserID).Scan(&lobbyOK, &userOK); err != nil {
			return err
		}
		if !lobbyOK || !userOK {
			return pgx.ErrNoRows
		}
		var err error
		stored, err = scanInvite(tx.QueryRow(ctx, `
			INSERT INTO lobby_invites AS i (lobby_id, invited_user_id, invited_by, status, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+inviteColumns,
			inv.LobbyID, inv.InvitedUserID, inv.InvitedBy, string(inv.Status), inv.ExpiresAt))
		return err
	})
	if err != nil {
		return models.LobbyInvite{}, classify(err, fmt.Sprintf("invite %s to lobby %s", inv.InvitedUserID, inv.LobbyID))
	}
	return stored, nil
}

func (s *Store) GetInvite(ctx context.Context, id uuid.UUID) (models.LobbyInvite, error) {
	inv, err := scanInvite(s.pool.QueryRow(ctx, `SELECT `+inviteColumns+` FROM lobby_invites i WHERE i.id=$1`, id))
	if err != nil {
		return models.LobbyInvite{}, classify(err, "invite "+id.String())
	}
	return inv, nil
}

func (s *Store) PendingInvites(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.LobbyInvite, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+inviteColumns+`, `+inviteLobbyColumns+`,
			u.id, u.username, u.display_name, u.avatar_url
		FROM lobby_invites i
		JOIN lobbies l ON l.id = i.lobby_id
		JOIN users u ON u.id = i.invited_by
		WHERE i.invited_user_id=$1 AND i.status='pending' AND i.expires_at > $2
		ORDER BY i.created_at DESC`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("pending invites: %w", err)
	}
	defer rows.Close()

	out := []models.LobbyInvite{}
	for rows.Next() {
		var (
			l  models.Lobby
			by models.UserProfile
		)
		inv, err := scanInvite(rows,
			&l.ID, &l.Game, &l.CustomTitle, &l.Description, &l.Region, &l.Platform,
			&l.Price, &l.MaxPlayers, &l.CurrentPlayers, &l.Status,
			&l.Pot, &l.PlatformFee, &l.BondPerPlayer, &l.WinnerAmount,
			&l.CreatedBy, &l.IsPrivate, &l.InviteCode, &l.GameID, &l.WinnerID, &l.CreatedAt, &l.UpdatedAt,
			&by.ID, &by.Username, &by.DisplayName, &by.AvatarURL)
		if err != nil {
			return nil, err
		}
		inv.Lobby, inv.InvitedByUser = &l, &by
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) LobbyInvites(ctx context.Context, lobbyID uuid.UUID) ([]models.LobbyInvite, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+inviteColumns+`, `+profileColumns+`
		FROM lobby_invites i
		JOIN users u ON u.id = i.invited_user_id
		LEFT JOIN user_presence pr ON pr.user_id = u.id
		WHERE i.lobby_id=$1
		ORDER BY i.created_at DESC`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("lobby invites: %w", err)
	}
	defer rows.Close()

	out := []models.LobbyInvite{}
	for rows.Next() {
		var p models.UserProfile
		inv, err := scanInvite(rows, &p.ID, &p.Username, &p.DisplayName, &p.AvatarURL,
			&p.Status, &p.LastSeen, &p.CurrentLobbyID)
		if err != nil {
			return nil, err
		}
		inv.InvitedUser = &p
		out = append(out, inv)
	}
	return out, rows.Err()
}

// RespondInvite updates only a pending invite addressed to userID; when that
// matches nothing the row is re-read to tell a missing invite from a settled one.
func (s *Store) RespondInvite(ctx context.Context, id, userID uuid.UUID, status models.InviteStatus) (models.LobbyInvite, error) {
	inv, err := scanInvite(s.pool.QueryRow(ctx, `
		UPDATE lobby_invites AS i SET status=$3
		WHERE i.id=$1 AND i.invited_user_id=$2 AND i.status='pending'
		RETURNING `+inviteColumns, id, userID, string(status)))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.LobbyInvite{}, fmt.Errorf("respond to invite %s: %w", id, err)
	}

	cur, err := s.GetInvite(ctx, id)
	if err != nil {
		return models.LobbyInvite{}, err
	}
	if cur.InvitedUserID != userID {
		return models.LobbyInvite{}, fmt.Errorf("invite %s: %w", id, backend.ErrNotFound)
	}
	return models.LobbyInvite{}, fmt.Errorf("invite %s is %s: %w", id, cur.Status, backend.ErrInvalidState)
}

func (s *Store) HasOpenInvite(ctx context.Context, lobbyID, userID uuid.UUID, now time.Time) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM lobby_invites
			WHERE lobby_id=$1 AND invited_user_id=$2 AND status IN ('pending', 'accepted') AND expires_at > $3
		)`, lobbyID, userID, now).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("open invite: %w", err)
	}
	return ok, nil
}
