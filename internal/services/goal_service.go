package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/logger"
	"ahorrito/internal/models"
	"ahorrito/internal/pagination"
)

// goalService implements GoalServicer backed by the database.
type goalService struct {
	db *gorm.DB
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB) GoalServicer {
	return &goalService{db: db}
}

// CreateGoal creates a savings goal for the user.
func (s *goalService) CreateGoal(
	userID uint,
	name string,
	targetAmount float64,
	currency string,
	deadline *time.Time,
) (*models.Goal, error) {
	if targetAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Target amount must be positive")
	}

	goal := models.Goal{
		UserID:       userID,
		Name:         strings.TrimSpace(name),
		TargetAmount: targetAmount,
		Currency:     strings.ToUpper(strings.TrimSpace(currency)),
		State:        models.GoalStateActive,
		Deadline:     deadline,
	}
	if err := s.db.Create(&goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// GetUserGoals lists the user's goals, newest first.
func (s *goalService) GetUserGoals(
	userID uint,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.Goal], error) {
	query := s.db.Where("user_id = ?", userID).Order("created_at DESC")
	response, err := pagination.Paginate[models.Goal](query, page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return response, nil
}

// GetGoalByID fetches one of the user's goals.
func (s *goalService) GetGoalByID(userID, goalID uint) (*models.Goal, error) {
	var goal models.Goal
	if err := s.db.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// SweepExpired fails active goals whose deadline has passed. Per-goal
// failures are logged and skipped so one bad row never stalls the sweep.
func (s *goalService) SweepExpired() (int, error) {
	var goals []models.Goal
	if err := s.db.Where("state = ? AND deadline IS NOT NULL AND deadline < ?",
		models.GoalStateActive, time.Now()).
		Find(&goals).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	failed := 0
	for _, goal := range goals {
		if err := s.db.Model(&goal).Update("state", models.GoalStateFailed).Error; err != nil {
			logger.Get().Errorw("failed to expire goal", "goal_id", goal.ID, "error", err)
			continue
		}
		failed++
	}
	return failed, nil
}
