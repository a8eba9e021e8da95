package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/models"
)

// streakService maintains per-user daily-activity streaks.
type streakService struct {
	db *gorm.DB
}

// NewStreakService creates a new StreakServicer.
func NewStreakService(db *gorm.DB) StreakServicer {
	return &streakService{db: db}
}

// RecordActivity records activity for the calendar day of when. Counters
// move at most once per day: a same-day call only refreshes the timestamp,
// activity on the next consecutive day extends the streak, and any gap
// resets it to 1.
func (s *streakService) RecordActivity(userID uint, when time.Time) (*models.UserStreak, error) {
	if when.IsZero() {
		when = time.Now()
	}
	today := truncateToDay(when)

	var streak models.UserStreak
	err := s.db.Where("user_id = ?", userID).First(&streak).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		streak = models.UserStreak{UserID: userID}
	}

	switch {
	case streak.LastActivityDate != nil && truncateToDay(*streak.LastActivityDate).Equal(today):
		// Same day: counters unchanged.
	case streak.LastActivityDate != nil && truncateToDay(*streak.LastActivityDate).AddDate(0, 0, 1).Equal(today):
		streak.CurrentStreak++
	default:
		streak.CurrentStreak = 1
	}

	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.LastActivityDate = &today

	if err := s.db.Save(&streak).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &streak, nil
}

// truncateToDay drops the time-of-day component.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
