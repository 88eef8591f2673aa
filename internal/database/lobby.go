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

const lobbyColumns = `
	id, game, custom_title, description, region, platform,
	price, max_players, current_players, status,
	pot, platform_fee, bond_per_player, winner_amount,
	created_by, is_private, invite_code, game_id, winner_id, created_at, updated_at`

func scanLobby(row pgx.Row) (models.Lobby, error) {
	var l models.Lobby
	err := row.Scan(
		&l.ID, &l.Game, &l.CustomTitle, &l.Description, &l.Region, &l.Platform,
		&l.Price, &l.MaxPlayers, &l.CurrentPlayers, &l.Status,
		&l.Pot, &l.PlatformFee, &l.BondPerPlayer, &l.WinnerAmount,
		&l.CreatedBy, &l.IsPrivate, &l.InviteCode, &l.GameID, &l.WinnerID, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func collectLobbies(rows pgx.Rows) ([]models.Lobby, error) {
	defer rows.Close()
	var out []models.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListLobbies(ctx context.Context) ([]models.Lobby, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+lobbyColumns+` FROM lobbies ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list lobbies: %w", err)
	}
	return collectLobbies(rows)
}

func (s *Store) SearchLobbies(ctx context.Context, term string) ([]models.Lobby, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+lobbyColumns+` FROM search_lobbies($1)`, term)
	if err != nil {
		return nil, fmt.Errorf("search lobbies: %w", err)
	}
	return collectLobbies(rows)
}

func (s *Store) GetLobby(ctx context.Context, id uuid.UUID) (models.Lobby, error) {
	l, err := scanLobby(s.pool.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE id=$1`, id))
	if err != nil {
		return models.Lobby{}, classify(err, "lobby "+id.String())
	}
	return l, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func activeParticipants(ctx context.Context, q querier, lobbyID uuid.UUID) ([]models.Participant, error) {
	rows, err := q.Query(ctx, `
		SELECT p.id, p.lobby_id, p.user_id, u.username, p.joined_at, p.status
		FROM lobby_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.lobby_id=$1 AND p.status='active'
		ORDER BY p.joined_at, p.id`, lobbyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.LobbyID, &p.UserID, &p.Username, &p.JoinedAt, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LobbySnapshot reads the lobby row and its roster in one REPEATABLE READ
// transaction.
func (s *Store) LobbySnapshot(ctx context.Context, id uuid.UUID) (models.Lobby, []models.Participant, error) {
	var (
		l  models.Lobby
		ps []models.Participant
	)
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		if l, err = scanLobby(tx.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE id=$1`, id)); err != nil {
			return err
		}
		ps, err = activeParticipants(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Lobby{}, nil, classify(err, "lobby "+id.String())
	}
	return l, ps, nil
}

func (s *Store) ParticipatingLobbyIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT lobby_id FROM lobby_participants WHERE user_id=$1 AND status='active'`, userID)
	if err != nil {
		return nil, fmt.Errorf("participating lobbies: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

const insertLobbySQL = `
	INSERT INTO lobbies (` + lobbyColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6,
	        $7, $8, $9, $10,
	        $11, $12, $13, $14,
	        $15, $16, $17, $18, $19, $20, $21)`

func (s *Store) InsertLobby(ctx context.Context, l models.Lobby, creator models.Participant) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertLobbySQL,
			l.ID, l.Game, l.CustomTitle, l.Description, l.Region, l.Platform,
			l.Price, l.MaxPlayers, l.CurrentPlayers, l.Status,
			l.Pot, l.PlatformFee, l.BondPerPlayer, l.WinnerAmount,
			l.CreatedBy, l.IsPrivate, l.InviteCode, l.GameID, l.WinnerID, l.CreatedAt, l.UpdatedAt,
		); err != nil {
			return err
		}
		return insertParticipant(ctx, tx, creator)
	})
	if err != nil {
		return classify(err, "insert lobby")
	}
	s.publish(ctx, backend.LobbyChange(backend.OpInsert, l), backend.ParticipantChange(backend.OpInsert, creator))
	return nil
}

func insertParticipant(ctx context.Context, tx pgx.Tx, p models.Participant) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lobby_participants (id, lobby_id, user_id, joined_at, status)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.LobbyID, p.UserID, p.JoinedAt, p.Status)
	return err
}

// errZeroRows is returned inside a transaction when a guarded write matched
// nothing; the transaction is rolled back and the cause classified after.
var errZeroRows = errors.New("guarded write affected zero rows")

// MutateLobby locks the lobby row with SELECT ... FOR UPDATE, computes the
// mutation from the locked snapshot and writes it guarded by the row's
// updated_at. A guarded write that matches nothing (a row-level security
// filter, or a concurrent writer that bypassed the lock) is classified once
// the transaction has rolled back.
func (s *Store) MutateLobby(ctx context.Context, id uuid.UUID, fn backend.MutateFunc) (models.Lobby, error) {
	var (
		cur     models.Lobby
		m       backend.LobbyMutation
		changes []backend.Change
	)

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		cur, err = scanLobby(tx.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return classify(err, "lobby "+id.String())
		}
		participants, err := activeParticipants(ctx, tx, id)
		if err != nil {
			return err
		}

		m, err = fn(cur, participants)
		if err != nil {
			return err
		}

		if m.Delete {
			ct, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE id=$1 AND updated_at=$2`, id, cur.UpdatedAt)
			if err != nil {
				return err
			}
			if ct.RowsAffected() == 0 {
				return errZeroRows
			}
			for _, p := range participants {
				changes = append(changes, backend.ParticipantChange(backend.OpDelete, p))
			}
			changes = append(changes, backend.LobbyChange(backend.OpDelete, cur))
			return nil
		}

		l := m.Lobby
		ct, err := tx.Exec(ctx, `
			UPDATE lobbies
			SET current_players=$3, status=$4, game_id=$5, winner_id=$6, updated_at=$7,
			    pot=$8, platform_fee=$9, bond_per_player=$10, winner_amount=$11
			WHERE id=$1 AND updated_at=$2`,
			id, cur.UpdatedAt,
			l.CurrentPlayers, l.Status, l.GameID, l.WinnerID, l.UpdatedAt,
			l.Pot, l.PlatformFee, l.BondPerPlayer, l.WinnerAmount,
		)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return errZeroRows
		}
		changes = append(changes, backend.LobbyChange(backend.OpUpdate, l))

		if p := m.AddParticipant; p != nil {
			if err := insertParticipant(ctx, tx, *p); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("user %s in lobby %s: %w", p.UserID, id, backend.ErrAlreadyJoined)
				}
				return err
			}
			changes = append(changes, backend.ParticipantChange(backend.OpInsert, *p))
		}
		if userID := m.RemoveParticipant; userID != nil {
			var removed models.Participant
			err := tx.QueryRow(ctx, `
				DELETE FROM lobby_participants
				WHERE lobby_id=$1 AND user_id=$2 AND status='active'
				RETURNING id, lobby_id, user_id, joined_at, status`, id, *userID,
			).Scan(&removed.ID, &removed.LobbyID, &removed.UserID, &removed.JoinedAt, &removed.Status)
			if errors.Is(err, pgx.ErrNoRows) {
				return errZeroRows
			}
			if err != nil {
				return err
			}
			changes = append(changes, backend.ParticipantChange(backend.OpDelete, removed))
		}
		return nil
	})

	if errors.Is(err, errZeroRows) {
		err = s.classifyZeroRows(ctx, id, cur.UpdatedAt)
	}
	if err != nil {
		return models.Lobby{}, err
	}

	s.publish(ctx, changes...)
	if m.Delete {
		return cur, nil
	}
	return m.Lobby, nil
}

// classifyZeroRows re-reads the row outside the failed transaction.
func (s *Store) classifyZeroRows(ctx context.Context, id uuid.UUID, seen time.Time) error {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT updated_at FROM lobbies WHERE id=$1`, id).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lobby %s: %w", id, backend.ClassifyZeroRows(false, false))
	}
	if err != nil {
		return fmt.Errorf("lobby %s: %w", id, err)
	}
	return fmt.Errorf("lobby %s: %w", id, backend.ClassifyZeroRows(true, !updatedAt.Equal(seen)))
}
