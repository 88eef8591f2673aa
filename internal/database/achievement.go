package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
)

const achievementColumns = `a.id, a.name, a.description, a.icon, a.category, a.rarity, a.points, a.requirements, a.is_hidden, a.created_at`

func scanAchievement(row pgx.Row, extra ...any) (models.Achievement, error) {
	var a models.Achievement
	dest := append([]any{&a.ID, &a.Name, &a.Description, &a.Icon, &a.Category, &a.Rarity,
		&a.Points, &a.Requirements, &a.IsHidden, &a.CreatedAt}, extra...)
	err := row.Scan(dest...)
	return a, err
}

// SeedAchievements upserts the achievement definitions by id.
func (s *Store) SeedAchievements(ctx context.Context, defs []models.Achievement) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, a := range defs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO achievements (id, name, description, icon, category, rarity, points, requirements, is_hidden)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO UPDATE SET
					name=EXCLUDED.name, description=EXCLUDED.description, icon=EXCLUDED.icon,
					category=EXCLUDED.category, rarity=EXCLUDED.rarity, points=EXCLUDED.points,
					requirements=EXCLUDED.requirements, is_hidden=EXCLUDED.is_hidden`,
				a.ID, a.Name, a.Description, a.Icon, a.Category, a.Rarity, a.Points, a.Requirements, a.IsHidden,
			); err != nil {
				return fmt.Errorf("seed achievement %q: %w", a.Name, err)
			}
		}
		return nil
	})
}

func (s *Store) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+achievementColumns+` FROM achievements a ORDER BY a.category, a.points, a.name`)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []models.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) unlocks(ctx context.Context, q string, args ...any) ([]models.UserAchievement, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("user achievements: %w", err)
	}
	defer rows.Close()

	out := []models.UserAchievement{}
	for rows.Next() {
		var ua models.UserAchievement
		a, err := scanAchievement(rows, &ua.ID, &ua.UserID, &ua.AchievementID, &ua.UnlockedAt)
		if err != nil {
			return nil, err
		}
		ua.Achievement = &a
		out = append(out, ua)
	}
	return out, rows.Err()
}

const unlockQuery = `
	SELECT ` + achievementColumns + `, ua.id, ua.user_id, ua.achievement_id, ua.unlocked_at
	FROM user_achievements ua
	JOIN achievements a ON a.id = ua.achievement_id
	WHERE ua.user_id=$1`

func (s *Store) UserAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	return s.unlocks(ctx, unlockQuery+` ORDER BY ua.unlocked_at`, userID)
}

func (s *Store) RecentAchievements(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserAchievement, error) {
	return s.unlocks(ctx, unlockQuery+` ORDER BY ua.unlocked_at DESC LIMIT $2`, userID, limit)
}

const statsColumns = `
	user_id, total_matches, total_wins, total_losses, current_win_streak, longest_win_streak,
	total_earnings, matches_by_game, wins_by_game, created_at, updated_at`

func scanStats(row pgx.Row) (models.UserStats, error) {
	var st models.UserStats
	err := row.Scan(&st.UserID, &st.TotalMatches, &st.TotalWins, &st.TotalLosses,
		&st.CurrentWinStreak, &st.LongestWinStreak, &st.TotalEarnings,
		&st.MatchesByGame, &st.WinsByGame, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func (s *Store) UserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	st, err := scanStats(s.pool.QueryRow(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id=$1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &st, nil
}

// UpdateUserStats folds one match into the user's counters under a row lock.
func (s *Store) UpdateUserStats(ctx context.Context, userID uuid.UUID, result models.MatchResult, game string, earnings decimal.Decimal) (models.UserStats, error) {
	var st models.UserStats
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return err
		}
		var err error
		st, err = scanStats(tx.QueryRow(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id=$1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}

		st.Record(result, game, earnings)
		return tx.QueryRow(ctx, `
			UPDATE user_stats
			SET total_matches=$2, total_wins=$3, total_losses=$4,
			    current_win_streak=$5, longest_win_streak=$6, total_earnings=$7,
			    matches_by_game=$8, wins_by_game=$9, updated_at=NOW()
			WHERE user_id=$1
			RETURNING updated_at`,
			userID, st.TotalMatches, st.TotalWins, st.TotalLosses,
			st.CurrentWinStreak, st.LongestWinStreak, st.TotalEarnings,
			st.MatchesByGame, st.WinsByGame,
		).Scan(&st.UpdatedAt)
	})
	if err != nil {
		return models.UserStats{}, classify(err, "update user stats")
	}
	return st, nil
}

// CheckAchievements evaluates every locked definition against the stored
// stats and inserts the newly earned unlocks.
func (s *Store) CheckAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	stats, err := s.UserStats(ctx, userID)
	if err != nil || stats == nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+achievementColumns+`
		FROM achievements a
		WHERE NOT EXISTS (
			SELECT 1 FROM user_achievements ua WHERE ua.user_id=$1 AND ua.achievement_id=a.id
		)`, userID)
	if err != nil {
		return nil, fmt.Errorf("locked achievements: %w", err)
	}
	var earned []models.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if a.EarnedBy(*stats) {
			earned = append(earned, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(earned) == 0 {
		return nil, nil
	}

	var unlocked []models.UserAchievement
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, a := range earned {
			ua := models.UserAchievement{UserID: userID, AchievementID: a.ID}
			err := tx.QueryRow(ctx, `
				INSERT INTO user_achievements (user_id, achievement_id)
				VALUES ($1, $2)
				ON CONFLICT (user_id, achievement_id) DO NOTHING
				RETURNING id, unlocked_at`, userID, a.ID,
			).Scan(&ua.ID, &ua.UnlockedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				continue // unlocked concurrently
			}
			if err != nil {
				return err
			}
			def := a
			ua.Achievement = &def
			unlocked = append(unlocked, ua)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unlock achievements: %w", err)
	}

	changes := make([]backend.Change, 0, len(unlocked))
	for _, ua := range unlocked {
		changes = append(changes, backend.UserRowChange(backend.TableUserAchievements, backend.OpInsert, ua.ID.String(), userID))
	}
	s.publish(ctx, changes...)
	return unlocked, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.username, COUNT(ua.id), COALESCE(SUM(a.points), 0)
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		JOIN users u ON u.id = ua.user_id
		GROUP BY u.id, u.username
		ORDER BY 4 DESC, 3 DESC, u.username
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	out := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.TotalAchievements, &e.TotalPoints); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
