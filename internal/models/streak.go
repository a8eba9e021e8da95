package models

import "time"

// UserStreak tracks one user's daily-activity streak. LastActivityDate is
// kept at calendar-day granularity; counters move at most once per day.
type UserStreak struct {
	Base
	UserID           uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentStreak    int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
}
