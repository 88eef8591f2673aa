// Package achievements computes achievement progress from user statistics and
// records match results.
package achievements

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/models"
)

// Progress is the derived, unpersisted progress of one user towards one achievement.
type Progress struct {
	Achievement models.Achievement `json:"achievement"`
	Progress    float64            `json:"progress"`
	MaxProgress float64            `json:"max_progress"`
	Percentage  int                `json:"percentage"`
	IsUnlocked  bool               `json:"is_unlocked"`
	UnlockedAt  *time.Time         `json:"unlocked_at,omitempty"`
}

// Percentage returns round(progress/max*100) clamped to [0,100].
func Percentage(progress, threshold float64) int {
	if threshold <= 0 {
		threshold = 1
	}
	p := math.Round(progress / threshold * 100)
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}

// ComputeProgress pairs every definition with the user's counters. A nil
// stats snapshot counts as a user who has not played yet.
func ComputeProgress(defs []models.Achievement, unlocks []models.UserAchievement, stats *models.UserStats) []Progress {
	unlockedAt := make(map[uuid.UUID]time.Time, len(unlocks))
	for _, ua := range unlocks {
		unlockedAt[ua.AchievementID] = ua.UnlockedAt
	}
	var st models.UserStats
	if stats != nil {
		st = *stats
	}

	out := make([]Progress, 0, len(defs))
	for _, def := range defs {
		at, unlocked := unlockedAt[def.ID]

		progress, threshold, ok := def.Measure(st)
		if !ok {
			progress, threshold = 0, 1
			if unlocked {
				progress = 1
			}
		}

		p := Progress{
			Achievement: def,
			Progress:    progress,
			MaxProgress: threshold,
			Percentage:  Percentage(progress, threshold),
			IsUnlocked:  unlocked,
		}
		if unlocked {
			p.UnlockedAt = &at
		}
		out = append(out, p)
	}
	return out
}

// Category is a rollup of the achievements in one category.
type Category struct {
	Key                  models.AchievementCategory `json:"key"`
	Name                 string                     `json:"name"`
	Icon                 string                     `json:"icon"`
	Achievements         []Progress                 `json:"achievements"`
	TotalAchievements    int                        `json:"total_achievements"`
	UnlockedAchievements int                        `json:"unlocked_achievements"`
	CompletionPercentage int                        `json:"completion_percentage"`
}

var categoryOrder = []models.AchievementCategory{
	models.CategoryMatches,
	models.CategoryWins,
	models.CategoryStreaks,
	models.CategoryEarnings,
	models.CategoryGameSpecific,
	models.CategorySpecial,
}

var categoryIcons = map[models.AchievementCategory]string{
	models.CategoryMatches:      "🎮",
	models.CategoryWins:         "🏆",
	models.CategoryStreaks:      "🔥",
	models.CategoryEarnings:     "💰",
	models.CategoryGameSpecific: "🎯",
	models.CategorySpecial:      "⭐",
}

// CategoryName turns "game_specific" into "Game specific".
func CategoryName(c models.AchievementCategory) string {
	s := strings.Replace(string(c), "_", " ", 1)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Rollup groups progress by category in a fixed order. Categories without
// any achievement are left out.
func Rollup(progress []Progress) []Category {
	var out []Category
	for _, key := range categoryOrder {
		c := Category{Key: key, Name: CategoryName(key), Icon: categoryIcons[key]}
		for _, p := range progress {
			if p.Achievement.Category != key {
				continue
			}
			c.Achievements = append(c.Achievements, p)
			c.TotalAchievements++
			if p.IsUnlocked {
				c.UnlockedAchievements++
			}
		}
		if c.TotalAchievements == 0 {
			continue
		}
		c.CompletionPercentage = Percentage(float64(c.UnlockedAchievements), float64(c.TotalAchievements))
		out = append(out, c)
	}
	return out
}
