package models

import "time"

// Badge codes awarded by the progress-based unlock rules.
const (
	BadgeFirstChallenge = "first_challenge"
	BadgeBronzeSaver    = "bronze_saver"
	BadgeSilverSaver    = "silver_saver"
	BadgeGoldSaver      = "gold_saver"
	BadgeTenChallenges  = "ten_challenges"
	BadgeSaverMaster    = "saver_master"
	BadgeSpenderControl = "spender_control"
	BadgeGoalCreator    = "goal_creator"
	BadgeSuccessStreak  = "success_streak"
	BadgeSuperStreak    = "super_streak"
)

// Badge is a catalog entry for an unlockable badge.
type Badge struct {
	Base
	Code        string `gorm:"uniqueIndex;not null" json:"code"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// UserBadge links a user to an unlocked badge. A badge is attached at most
// once per user.
type UserBadge struct {
	Base
	UserID    uint      `gorm:"not null;index:idx_user_badges_user_badge,unique" json:"user_id"`
	BadgeID   uint      `gorm:"not null;index:idx_user_badges_user_badge,unique" json:"badge_id"`
	AwardedAt time.Time `gorm:"not null" json:"awarded_at"`

	Badge Badge `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}
