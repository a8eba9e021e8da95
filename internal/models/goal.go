package models

import "time"

// GoalState represents the lifecycle state of a savings goal.
type GoalState string

const (
	GoalStateActive    GoalState = "active"
	GoalStateCompleted GoalState = "completed"
	GoalStateFailed    GoalState = "failed"
)

// Goal represents a savings goal. Goals can be created directly by the user
// or spawned when a save-amount challenge is accepted.
type Goal struct {
	Base
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	Name         string     `gorm:"not null" json:"name"`
	TargetAmount float64    `gorm:"not null" json:"target_amount"`
	Balance      float64    `gorm:"not null;default:0" json:"balance"`
	Currency     string     `gorm:"size:3;not null" json:"currency"`
	State        GoalState  `gorm:"not null;default:'active'" json:"state"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}
