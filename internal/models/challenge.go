package models

import "time"

// ChallengeType identifies a challenge archetype.
type ChallengeType string

const (
	ChallengeTypeSaveAmount      ChallengeType = "save_amount"
	ChallengeTypeReduceSpending  ChallengeType = "reduce_spending_percent"
	ChallengeTypeAddTransactions ChallengeType = "add_transactions"
)

// ChallengeTypes lists every archetype the generator must find in the catalog.
var ChallengeTypes = []ChallengeType{
	ChallengeTypeSaveAmount,
	ChallengeTypeReduceSpending,
	ChallengeTypeAddTransactions,
}

// ChallengeDefinition is a catalog entry describing one challenge archetype.
// At most one active definition per type is expected by the generator.
type ChallengeDefinition struct {
	Base
	Type          ChallengeType `gorm:"not null;index" json:"type"`
	Name          string        `gorm:"not null" json:"name"`
	Description   string        `json:"description"`
	DurationDays  int           `gorm:"not null" json:"duration_days"`
	RewardPoints  int           `gorm:"not null" json:"reward_points"`
	RewardBadgeID *uint         `json:"reward_badge_id,omitempty"`
	Active        bool          `gorm:"default:true" json:"active"`

	RewardBadge *Badge `gorm:"foreignKey:RewardBadgeID" json:"reward_badge,omitempty"`
}

// ChallengeState represents the lifecycle state of a challenge instance.
type ChallengeState string

const (
	ChallengeStateSuggested  ChallengeState = "suggested"
	ChallengeStateInProgress ChallengeState = "in_progress"
	ChallengeStateCompleted  ChallengeState = "completed"
	ChallengeStateFailed     ChallengeState = "failed"
)

// Terminal reports whether the state can never change again.
func (s ChallengeState) Terminal() bool {
	return s == ChallengeStateCompleted || s == ChallengeStateFailed
}

// ChallengeInstance is one user's live or historical attempt at a definition.
// Payload holds the per-type parameters encoded as JSON; see payload.go for
// the typed variants decoded at the storage boundary.
type ChallengeInstance struct {
	Base
	UserID          uint           `gorm:"not null;index:idx_challenge_instances_user_def" json:"user_id"`
	DefinitionID    uint           `gorm:"not null;index:idx_challenge_instances_user_def" json:"definition_id"`
	State           ChallengeState `gorm:"not null;default:'suggested'" json:"state"`
	Progress        int            `gorm:"not null;default:0" json:"progress"`
	StartDate       *time.Time     `json:"start_date,omitempty"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	TargetAmount    float64        `json:"target_amount"`
	BaselineBalance float64        `json:"baseline_balance"`
	Payload         string         `json:"payload,omitempty"`
	GoalID          *uint          `json:"goal_id,omitempty"`
	RewardPoints    int            `gorm:"not null;default:0" json:"reward_points"`

	Definition ChallengeDefinition `gorm:"foreignKey:DefinitionID" json:"definition,omitempty"`
	Goal       *Goal               `gorm:"foreignKey:GoalID" json:"goal,omitempty"`
}
