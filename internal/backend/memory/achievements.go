package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
)

func cloneStats(st models.UserStats) models.UserStats {
	byGame := make(map[string]int, len(st.MatchesByGame))
	for k, v := range st.MatchesByGame {
		byGame[k] = v
	}
	winsByGame := make(map[string]int, len(st.WinsByGame))
	for k, v := range st.WinsByGame {
		winsByGame[k] = v
	}
	st.MatchesByGame = byGame
	st.WinsByGame = winsByGame
	return st
}

func (s *Store) achievement(id uuid.UUID) *models.Achievement {
	for i := range s.achievements {
		if s.achievements[i].ID == id {
			a := s.achievements[i]
			return &a
		}
	}
	return nil
}

func (s *Store) ListAchievements(_ context.Context) ([]models.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Achievement{}, s.achievements...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Points < out[j].Points
	})
	return out, nil
}

func (s *Store) UserAchievements(_ context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserAchievement, 0, len(s.unlocks[userID]))
	for _, ua := range s.unlocks[userID] {
		ua.Achievement = s.achievement(ua.AchievementID)
		out = append(out, ua)
	}
	return out, nil
}

func (s *Store) UserStats(_ context.Context, userID uuid.UUID) (*models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[userID]
	if !ok {
		return nil, nil
	}
	c := cloneStats(st)
	return &c, nil
}

func (s *Store) UpdateUserStats(_ context.Context, userID uuid.UUID, result models.MatchResult, game string, earnings decimal.Decimal) (models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[userID]
	if !ok {
		st = models.UserStats{UserID: userID, CreatedAt: s.now()}
	}
	st = cloneStats(st)
	st.Record(result, game, earnings)
	st.UpdatedAt = s.now()
	s.stats[userID] = st
	return cloneStats(st), nil
}

func (s *Store) CheckAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	s.mu.Lock()
	st, ok := s.stats[userID]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	have := make(map[uuid.UUID]bool, len(s.unlocks[userID]))
	for _, ua := range s.unlocks[userID] {
		have[ua.AchievementID] = true
	}

	var unlocked []models.UserAchievement
	var changes []backend.Change
	for _, a := range s.achievements {
		if have[a.ID] || !a.EarnedBy(st) {
			continue
		}
		ua := models.UserAchievement{
			ID:            uuid.New(),
			UserID:        userID,
			AchievementID: a.ID,
			UnlockedAt:    s.now(),
		}
		s.unlocks[userID] = append(s.unlocks[userID], ua)
		def := a
		ua.Achievement = &def
		unlocked = append(unlocked, ua)
		changes = append(changes, backend.UserRowChange(backend.TableUserAchievements, backend.OpInsert, ua.ID.String(), userID))
	}
	s.mu.Unlock()

	s.publish(ctx, changes...)
	return unlocked, nil
}

func (s *Store) RecentAchievements(_ context.Context, userID uuid.UUID, limit int) ([]models.UserAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserAchievement, 0, len(s.unlocks[userID]))
	for _, ua := range s.unlocks[userID] {
		ua.Achievement = s.achievement(ua.AchievementID)
		out = append(out, ua)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UnlockedAt.After(out[j].UnlockedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LeaderboardEntry, 0, len(s.unlocks))
	for userID, rows := range s.unlocks {
		if len(rows) == 0 {
			continue
		}
		e := models.LeaderboardEntry{UserID: userID, Username: s.users[userID].Username}
		for _, ua := range rows {
			e.TotalAchievements++
			if a := s.achievement(ua.AchievementID); a != nil {
				e.TotalPoints += a.Points
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		if out[i].TotalAchievements != out[j].TotalAchievements {
			return out[i].TotalAchievements > out[j].TotalAchievements
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
