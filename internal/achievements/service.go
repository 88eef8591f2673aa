package achievements

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRecentLimit      = 5
	DefaultLeaderboardLimit = 10
)

type Service struct {
	store backend.AchievementStore
	// notifications receives an achievement notification per unlock; optional.
	notifications backend.SocialStore
	log           logrus.FieldLogger
}

func NewService(store backend.AchievementStore, notifications backend.SocialStore, logger logrus.FieldLogger) *Service {
	return &Service{store: store, notifications: notifications, log: logger}
}

// Progress loads definitions, unlocks and stats concurrently and computes the
// user's progress on every achievement.
func (s *Service) Progress(ctx context.Context, userID uuid.UUID) ([]Progress, error) {
	var (
		defs    []models.Achievement
		unlocks []models.UserAchievement
		stats   *models.UserStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defs, err = s.store.ListAchievements(gctx)
		return err
	})
	g.Go(func() (err error) {
		unlocks, err = s.store.UserAchievements(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		stats, err = s.store.UserStats(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load achievement progress: %w", err)
	}
	return ComputeProgress(defs, unlocks, stats), nil
}

func (s *Service) Categories(ctx context.Context, userID uuid.UUID) ([]Category, error) {
	progress, err := s.Progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Rollup(progress), nil
}

func (s *Service) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserAchievement, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.store.RecentAchievements(ctx, userID, limit)
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return s.store.Leaderboard(ctx, limit)
}

func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (models.UserStats, error) {
	st, err := s.store.UserStats(ctx, userID)
	if err != nil {
		return models.UserStats{}, err
	}
	if st == nil {
		return models.UserStats{UserID: userID, MatchesByGame: map[string]int{}, WinsByGame: map[string]int{}}, nil
	}
	return *st, nil
}

// RecordMatch folds one match result into the user's stats and unlocks any
// achievements the new stats satisfy.
func (s *Service) RecordMatch(ctx context.Context, userID uuid.UUID, result models.MatchResult, game string, earnings decimal.Decimal) ([]models.UserAchievement, error) {
	if result != models.MatchWin && result != models.MatchLoss {
		return nil, fmt.Errorf("unknown match result %q: %w", result, backend.ErrValidation)
	}
	if _, err := s.store.UpdateUserStats(ctx, userID, result, game, earnings); err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}
	unlocked, err := s.store.CheckAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check achievements: %w", err)
	}

	for _, ua := range unlocked {
		s.log.WithFields(logrus.Fields{"user": userID, "achievement": ua.AchievementID}).Info("achievement unlocked")
		s.notify(ctx, ua)
	}
	return unlocked, nil
}

// RecordLobbyOutcome records a win with the payout for the lobby's winner and
// a loss for every other participant.
func (s *Service) RecordLobbyOutcome(ctx context.Context, l models.Lobby, participants []models.Participant) error {
	if l.WinnerID == nil {
		return fmt.Errorf("lobby %s has no winner: %w", l.ID, backend.ErrValidation)
	}

	var errs []error
	for _, p := range participants {
		result, earnings := models.MatchLoss, decimal.Zero
		if p.UserID == *l.WinnerID {
			result, earnings = models.MatchWin, l.WinnerAmount
		}
		if _, err := s.RecordMatch(ctx, p.UserID, result, l.Game, earnings); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", p.UserID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) notify(ctx context.Context, ua models.UserAchievement) {
	if s.notifications == nil || ua.Achievement == nil {
		return
	}
	_, err := s.notifications.InsertNotification(ctx, models.Notification{
		UserID:  ua.UserID,
		Type:    models.NotifyAchievement,
		Title:   "Achievement unlocked",
		Message: ua.Achievement.Name,
		Data:    map[string]string{"achievement_id": ua.AchievementID.String()},
	})
	if err != nil {
		s.log.WithError(err).WithField("user", ua.UserID).Warn("failed to send achievement notification")
	}
}
