package achievements

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
)

// catalogNamespace keeps catalog ids stable across restarts so seeding is
// idempotent.
var catalogNamespace = uuid.MustParse("5b0f7c8e-3f2a-4a55-9d7e-2c1e6b0a9f11")

func def(name, description, icon string, cat models.AchievementCategory, rarity models.Rarity, points int, req models.Requirements) models.Achievement {
	return models.Achievement{
		ID:           uuid.NewSHA1(catalogNamespace, []byte(name)),
		Name:         name,
		Description:  description,
		Icon:         icon,
		Category:     cat,
		Rarity:       rarity,
		Points:       points,
		Requirements: req,
	}
}

// Catalog is the built-in set of achievement definitions.
func Catalog() []models.Achievement {
	return []models.Achievement{
		def("First Match", "Play your first match", "🎮", models.CategoryMatches, models.RarityCommon, 10, models.Requirements{MinMatches: 1}),
		def("Regular", "Play 10 matches", "🕹️", models.CategoryMatches, models.RarityCommon, 25, models.Requirements{MinMatches: 10}),
		def("Veteran", "Play 100 matches", "🎖️", models.CategoryMatches, models.RarityEpic, 100, models.Requirements{MinMatches: 100}),
		def("First Win", "Win your first match", "🏆", models.CategoryWins, models.RarityCommon, 15, models.Requirements{MinWins: 1}),
		def("Contender", "Win 10 matches", "🥈", models.CategoryWins, models.RarityRare, 50, models.Requirements{MinWins: 10}),
		def("Champion", "Win 50 matches", "👑", models.CategoryWins, models.RarityLegendary, 200, models.Requirements{MinWins: 50}),
		def("Hot Streak", "Win 3 matches in a row", "🔥", models.CategoryStreaks, models.RarityRare, 40, models.Requirements{MinStreak: 3}),
		def("Unstoppable", "Win 10 matches in a row", "⚡", models.CategoryStreaks, models.RarityLegendary, 250, models.Requirements{MinStreak: 10}),
		def("First Payday", "Earn $10 in winnings", "💵", models.CategoryEarnings, models.RarityCommon, 20, models.Requirements{MinEarnings: decimal.NewFromInt(10)}),
		def("High Roller", "Earn $500 in winnings", "💰", models.CategoryEarnings, models.RarityEpic, 150, models.Requirements{MinEarnings: decimal.NewFromInt(500)}),
		def("Grandmaster", "Play 25 chess matches", "♟️", models.CategoryGameSpecific, models.RarityRare, 60, models.Requirements{Game: "Chess", MinMatches: 25}),
		def("Early Adopter", "Joined during launch", "⭐", models.CategorySpecial, models.RarityLegendary, 100, models.Requirements{EarlyAdopter: true}),
	}
}
