package models

import "time"

// TransactionType represents the type of transaction.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
	// TransactionTypeSaving is income earmarked for a savings goal. It still
	// increases the account balance but also feeds the linked goal, if any.
	TransactionTypeSaving TransactionType = "saving"
)

// Transaction represents a financial movement on one account.
type Transaction struct {
	Base
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	AccountID   uint            `gorm:"not null;index" json:"account_id"`
	GoalID      *uint           `json:"goal_id,omitempty"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      float64         `gorm:"not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null;index" json:"date"`

	Account Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Goal    *Goal   `gorm:"foreignKey:GoalID" json:"goal,omitempty"`
}
