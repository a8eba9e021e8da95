package services

import (
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/logger"
	"ahorrito/internal/models"
)

// Leveling curve: levelling up consumes points. The threshold for leaving
// level N is round(150 * 1.5^(N-1)), giving the sequence 150, 225, 338,
// 506, 759, ...
const (
	levelBaseThreshold = 150
	levelGrowthFactor  = 1.5
)

// Lifetime point totals that unlock the saver badge tiers.
const (
	bronzeSaverPoints = 500
	silverSaverPoints = 1200
	goldSaverPoints   = 2500
)

// LevelThreshold returns the points required to advance from the given level.
func LevelThreshold(level int) int {
	return int(math.Round(levelBaseThreshold * math.Pow(levelGrowthFactor, float64(level-1))))
}

// gamificationService applies rewards and badge unlocks.
type gamificationService struct {
	db *gorm.DB
}

// NewGamificationService creates a new GamificationServicer.
func NewGamificationService(db *gorm.DB) GamificationServicer {
	return &gamificationService{db: db}
}

// RewardUser credits the definition's points to the user, applies the
// spend-points leveling curve, re-asserts instance completion, and
// evaluates badge unlocks. Leftover points after the last level-up remain
// as the user's point balance.
func (s *gamificationService) RewardUser(userID uint, definition *models.ChallengeDefinition) (*Reward, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	pointsEarned := definition.RewardPoints
	user.Points += pointsEarned
	user.TotalPointsEarned += pointsEarned

	leveledUp := false
	for required := LevelThreshold(user.Level); user.Points >= required; required = LevelThreshold(user.Level) {
		user.Points -= required
		user.Level++
		leveledUp = true
	}

	if err := s.db.Model(&user).Updates(map[string]any{
		"points":              user.Points,
		"level":               user.Level,
		"total_points_earned": user.TotalPointsEarned,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// Defensive re-assertion: whatever instance of this definition is still
	// in progress is completed now. Idempotent.
	now := time.Now()
	if err := s.db.Model(&models.ChallengeInstance{}).
		Where("user_id = ? AND definition_id = ? AND state = ?", userID, definition.ID, models.ChallengeStateInProgress).
		Updates(map[string]any{
			"state":    models.ChallengeStateCompleted,
			"progress": 100,
			"end_date": now,
		}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	reward := &Reward{
		ChallengeType:  definition.Type,
		PointsEarned:   pointsEarned,
		NewTotalPoints: user.Points,
		LeveledUp:      leveledUp,
		NewLevel:       user.Level,
	}

	if definition.RewardBadgeID != nil {
		s.attachBadgeByID(userID, *definition.RewardBadgeID, reward)
	}
	if err := s.evaluateProgressBadges(&user, reward); err != nil {
		return nil, err
	}

	return reward, nil
}

// GetProfile aggregates the user's gamification standing.
func (s *gamificationService) GetProfile(userID uint) (*GamificationProfile, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var streak models.UserStreak
	var streakPtr *models.UserStreak
	err := s.db.Where("user_id = ?", userID).First(&streak).Error
	if err == nil {
		streakPtr = &streak
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var badges []models.UserBadge
	if err := s.db.Preload("Badge").Where("user_id = ?", userID).Find(&badges).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var completed, failed int64
	if err := s.db.Model(&models.ChallengeInstance{}).
		Where("user_id = ? AND state = ?", userID, models.ChallengeStateCompleted).
		Count(&completed).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(&models.ChallengeInstance{}).
		Where("user_id = ? AND state = ?", userID, models.ChallengeStateFailed).
		Count(&failed).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &GamificationProfile{
		Points:              user.Points,
		Level:               user.Level,
		NextLevelThreshold:  LevelThreshold(user.Level),
		TotalPointsEarned:   user.TotalPointsEarned,
		CompletedChallenges: completed,
		FailedChallenges:    failed,
		Streak:              streakPtr,
		Badges:              badges,
	}, nil
}

// challengeStats holds the completion counters driving badge unlocks.
type challengeStats struct {
	completed       int64
	failed          int64
	completedSave   int64
	completedReduce int64
	failedReduce    int64
	recentCompleted int64
}

func (s *gamificationService) loadChallengeStats(userID uint) (*challengeStats, error) {
	stats := &challengeStats{}

	count := func(dest *int64, state models.ChallengeState, challengeType *models.ChallengeType, since *time.Time) error {
		q := s.db.Model(&models.ChallengeInstance{}).
			Where("challenge_instances.user_id = ? AND challenge_instances.state = ?", userID, state)
		if challengeType != nil {
			q = q.Joins("JOIN challenge_definitions ON challenge_definitions.id = challenge_instances.definition_id").
				Where("challenge_definitions.type = ?", *challengeType)
		}
		if since != nil {
			q = q.Where("challenge_instances.end_date >= ?", *since)
		}
		return q.Count(dest).Error
	}

	saveType := models.ChallengeTypeSaveAmount
	reduceType := models.ChallengeTypeReduceSpending
	weekAgo := time.Now().AddDate(0, 0, -7)

	for _, step := range []error{
		count(&stats.completed, models.ChallengeStateCompleted, nil, nil),
		count(&stats.failed, models.ChallengeStateFailed, nil, nil),
		count(&stats.completedSave, models.ChallengeStateCompleted, &saveType, nil),
		count(&stats.completedReduce, models.ChallengeStateCompleted, &reduceType, nil),
		count(&stats.failedReduce, models.ChallengeStateFailed, &reduceType, nil),
		count(&stats.recentCompleted, models.ChallengeStateCompleted, nil, &weekAgo),
	} {
		if step != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, step)
		}
	}
	return stats, nil
}

// evaluateProgressBadges applies the cumulative unlock rules. Each rule is
// attach-once; re-evaluating on every reward keeps them idempotent.
func (s *gamificationService) evaluateProgressBadges(user *models.User, reward *Reward) error {
	stats, err := s.loadChallengeStats(user.ID)
	if err != nil {
		return err
	}

	type rule struct {
		code string
		met  bool
	}
	rules := []rule{
		{models.BadgeFirstChallenge, stats.completed >= 1},
		{models.BadgeBronzeSaver, user.TotalPointsEarned >= bronzeSaverPoints},
		{models.BadgeSilverSaver, user.TotalPointsEarned >= silverSaverPoints},
		{models.BadgeGoldSaver, user.TotalPointsEarned >= goldSaverPoints},
		{models.BadgeTenChallenges, stats.completed >= 10},
		{models.BadgeSaverMaster, stats.completedSave >= 5},
		{models.BadgeSpenderControl, stats.completedReduce >= 3 && stats.failedReduce == 0},
		{models.BadgeGoalCreator, stats.completedSave >= 1 && stats.completedReduce >= 1},
		{models.BadgeSuccessStreak, stats.completed >= 3 && stats.failed == 0},
		{models.BadgeSuperStreak, stats.recentCompleted >= 7},
	}

	for _, r := range rules {
		if r.met {
			s.attachBadgeByCode(user.ID, r.code, reward)
		}
	}
	return nil
}

// attachBadgeByCode attaches the badge to the user unless already held.
// A missing catalog row is logged and skipped, never fatal mid-reward.
func (s *gamificationService) attachBadgeByCode(userID uint, code string, reward *Reward) {
	var badge models.Badge
	if err := s.db.Where("code = ?", code).First(&badge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Get().Warnw("badge missing from catalog", "code", code)
			return
		}
		logger.Get().Errorw("badge lookup failed", "code", code, "error", err)
		return
	}
	s.attachBadge(userID, &badge, reward)
}

func (s *gamificationService) attachBadgeByID(userID, badgeID uint, reward *Reward) {
	var badge models.Badge
	if err := s.db.First(&badge, badgeID).Error; err != nil {
		logger.Get().Warnw("reward badge missing from catalog", "badge_id", badgeID, "error", err)
		return
	}
	s.attachBadge(userID, &badge, reward)
}

func (s *gamificationService) attachBadge(userID uint, badge *models.Badge, reward *Reward) {
	var existing int64
	if err := s.db.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badge.ID).
		Count(&existing).Error; err != nil {
		logger.Get().Errorw("badge ownership lookup failed", "code", badge.Code, "error", err)
		return
	}
	if existing > 0 {
		return
	}

	userBadge := models.UserBadge{UserID: userID, BadgeID: badge.ID, AwardedAt: time.Now()}
	if err := s.db.Create(&userBadge).Error; err != nil {
		logger.Get().Errorw("failed to attach badge", "code", badge.Code, "error", err)
		return
	}
	if reward.BadgeEarned == nil {
		reward.BadgeEarned = &BadgeSummary{Code: badge.Code, Name: badge.Name}
	}
}
