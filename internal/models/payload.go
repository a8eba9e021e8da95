package models

import (
	"encoding/json"
	"time"
)

// Challenge payloads form a tagged union keyed by the definition type. They
// are encoded to the instance's Payload column and decoded back only at the
// storage boundary; services work with the typed variants.

// SaveAmountPayload parameterizes a save_amount challenge.
type SaveAmountPayload struct {
	Amount       float64 `json:"amount"`
	DurationDays int     `json:"duration_days"`
	Intro        bool    `json:"intro,omitempty"`
}

// ReduceSpendingMode is the window flavor of a reduce_spending challenge.
type ReduceSpendingMode string

const (
	ReduceSpendingWeekly  ReduceSpendingMode = "weekly"
	ReduceSpendingMonthly ReduceSpendingMode = "monthly"
)

// ReduceSpendingPayload parameterizes a reduce_spending_percent challenge.
// MaxAllowed is the baseline spending ceiling; CurrentSpent and PeriodStart
// are refreshed on every recompute for observability.
type ReduceSpendingPayload struct {
	Mode         ReduceSpendingMode `json:"mode"`
	WindowDays   int                `json:"window_days"`
	MaxAllowed   float64            `json:"max_allowed"`
	CurrentSpent float64            `json:"current_spent"`
	PeriodStart  *time.Time         `json:"period_start,omitempty"`
}

// AddTransactionsPayload parameterizes an add_transactions challenge.
type AddTransactionsPayload struct {
	Count        int `json:"count"`
	DurationDays int `json:"duration_days"`
}

// EncodePayload serializes the given payload variant onto the instance.
func (c *ChallengeInstance) EncodePayload(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Payload = string(data)
	return nil
}

// DecodePayload deserializes the instance payload into the given variant.
// A missing payload leaves the variant zero-valued.
func (c *ChallengeInstance) DecodePayload(v any) error {
	if c.Payload == "" {
		return nil
	}
	return json.Unmarshal([]byte(c.Payload), v)
}
