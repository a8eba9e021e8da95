package models

import "time"

// User represents the user model in the database. Points and Level are the
// gamification counters; they are mutated only by the gamification service.
type User struct {
	Base
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	Password     string     `gorm:"not null" json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	BaseCurrency string     `gorm:"size:3;not null;default:'USD'" json:"base_currency"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	Points            int `gorm:"not null;default:0" json:"points"`
	Level             int `gorm:"not null;default:1" json:"level"`
	TotalPointsEarned int `gorm:"not null;default:0" json:"total_points_earned"`

	Accounts     []Account           `gorm:"foreignKey:UserID" json:"accounts,omitempty"`
	Transactions []Transaction       `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
	Goals        []Goal              `gorm:"foreignKey:UserID" json:"goals,omitempty"`
	Challenges   []ChallengeInstance `gorm:"foreignKey:UserID" json:"challenges,omitempty"`
	Badges       []UserBadge         `gorm:"foreignKey:UserID" json:"badges,omitempty"`
}
