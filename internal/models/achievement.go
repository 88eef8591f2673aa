// internal/models/achievement.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AchievementCategory string

const (
	CategoryMatches      AchievementCategory = "matches"
	CategoryWins         AchievementCategory = "wins"
	CategoryStreaks      AchievementCategory = "streaks"
	CategoryEarnings     AchievementCategory = "earnings"
	CategoryGameSpecific AchievementCategory = "game_specific"
	CategorySpecial      AchievementCategory = "special"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Requirements holds the thresholds of an achievement. Which field applies
// depends on the achievement's category.
type Requirements struct {
	MinMatches  int             `json:"min_matches,omitempty"`
	MinWins     int             `json:"min_wins,omitempty"`
	MinStreak   int             `json:"min_streak,omitempty"`
	MinEarnings decimal.Decimal `json:"min_earnings,omitzero"`
	Game        string          `json:"game,omitempty"`

	// Special triggers. They are evaluated by custom events, never by stats.
	EarlyAdopter   bool `json:"early_adopter,omitempty"`
	FirstDayStreak int  `json:"first_day_streak,omitempty"`
	Comeback       bool `json:"comeback,omitempty"`
}

// Achievement is a static definition from the achievements table.
type Achievement struct {
	ID           uuid.UUID           `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Icon         string              `json:"icon"`
	Category     AchievementCategory `json:"category"`
	Rarity       Rarity              `json:"rarity"`
	Points       int                 `json:"points"`
	Requirements Requirements        `json:"requirements"`
	IsHidden     bool                `json:"is_hidden"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Measure returns the stats counter tracked by the achievement's category and
// the threshold it must reach. ok is false for categories that are not driven
// by stats (special), whose progress is binary on unlock.
func (a Achievement) Measure(stats UserStats) (progress, threshold float64, ok bool) {
	threshold = 1
	atLeastOne := func(n int) float64 {
		if n > 0 {
			return float64(n)
		}
		return 1
	}

	switch a.Category {
	case CategoryMatches:
		return float64(stats.TotalMatches), atLeastOne(a.Requirements.MinMatches), true
	case CategoryWins:
		return float64(stats.TotalWins), atLeastOne(a.Requirements.MinWins), true
	case CategoryStreaks:
		return float64(stats.LongestWinStreak), atLeastOne(a.Requirements.MinStreak), true
	case CategoryEarnings:
		if a.Requirements.MinEarnings.IsPositive() {
			threshold = a.Requirements.MinEarnings.InexactFloat64()
		}
		return stats.TotalEarnings.InexactFloat64(), threshold, true
	case CategoryGameSpecific:
		if a.Requirements.Game == "" {
			return 0, 1, true
		}
		return float64(stats.MatchesByGame[a.Requirements.Game]), atLeastOne(a.Requirements.MinMatches), true
	}
	return 0, threshold, false
}

// EarnedBy reports whether stats satisfy the achievement's requirements.
func (a Achievement) EarnedBy(stats UserStats) bool {
	progress, threshold, ok := a.Measure(stats)
	if !ok {
		return false
	}
	if a.Category == CategoryGameSpecific && a.Requirements.Game == "" {
		return false
	}
	return progress >= threshold
}

// UserAchievement is an unlock record; its existence is what "unlocked" means.
type UserAchievement struct {
	ID            uuid.UUID    `json:"id"`
	UserID        uuid.UUID    `json:"user_id"`
	AchievementID uuid.UUID    `json:"achievement_id"`
	UnlockedAt    time.Time    `json:"unlocked_at"`
	Achievement   *Achievement `json:"achievement,omitempty"`
}

type MatchResult string

const (
	MatchWin  MatchResult = "win"
	MatchLoss MatchResult = "loss"
)

// UserStats are the aggregate counters of one user.
type UserStats struct {
	UserID           uuid.UUID       `json:"user_id"`
	TotalMatches     int             `json:"total_matches"`
	TotalWins        int             `json:"total_wins"`
	TotalLosses      int             `json:"total_losses"`
	CurrentWinStreak int             `json:"current_win_streak"`
	LongestWinStreak int             `json:"longest_win_streak"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	MatchesByGame    map[string]int  `json:"matches_by_game"`
	WinsByGame       map[string]int  `json:"wins_by_game"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Record folds one match result into the counters.
func (s *UserStats) Record(result MatchResult, game string, earnings decimal.Decimal) {
	if s.MatchesByGame == nil {
		s.MatchesByGame = make(map[string]int)
	}
	if s.WinsByGame == nil {
		s.WinsByGame = make(map[string]int)
	}

	s.TotalMatches++
	s.MatchesByGame[game]++
	switch result {
	case MatchWin:
		s.TotalWins++
		s.WinsByGame[game]++
		s.CurrentWinStreak++
		if s.CurrentWinStreak > s.LongestWinStreak {
			s.LongestWinStreak = s.CurrentWinStreak
		}
	default:
		s.TotalLosses++
		s.CurrentWinStreak = 0
	}
	s.TotalEarnings = s.TotalEarnings.Add(earnings)
}

type LeaderboardEntry struct {
	UserID            uuid.UUID `json:"user_id"`
	Username          string    `json:"username"`
	TotalAchievements int       `json:"total_achievements"`
	TotalPoints       int       `json:"total_points"`
}
