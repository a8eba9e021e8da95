package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"ahorrito/internal/models"
	"ahorrito/internal/pagination"
	"ahorrito/internal/providers"
)

// SeriesCacheServicer is the remember-or-refresh primitive over named data
// series, with TTL policy and versioned historical snapshots.
type SeriesCacheServicer interface {
	// RememberOrRefresh returns the current pointer for name, refreshing it
	// via fetch when the TTL window has elapsed or force is set. The
	// cache-hit path never invokes fetch. A fetch error propagates to the
	// caller; no retry happens inside this primitive.
	RememberOrRefresh(ctx context.Context, name, seriesType string, ttlHours int, fetch providers.FetchFunc, force bool) (*models.SeriesPointer, error)
	History(name string, limit int) ([]models.SeriesSnapshot, error)
	Current(name string) (*models.SeriesPointer, error)
}

// CurrencyServicer converts amounts between currencies using the stored
// rate table. It never fetches rates implicitly; RefreshRates is the only
// path that touches the network.
type CurrencyServicer interface {
	GetRate(from, to string) (float64, error)
	Convert(amount float64, from, to string) (float64, error)
	RefreshRates(ctx context.Context) (int, error)
}

// SuggestionKind distinguishes generated challenge previews from
// informational notices about skipped categories.
type SuggestionKind string

const (
	SuggestionChallenge SuggestionKind = "challenge"
	SuggestionInfo      SuggestionKind = "info"
)

// Suggestion is one entry of the generator's output: either a preview of a
// generated/refreshed suggested instance, or an INFO notice.
type Suggestion struct {
	Kind         SuggestionKind       `json:"kind"`
	Type         models.ChallengeType `json:"type"`
	InstanceID   uint                 `json:"instance_id,omitempty"`
	Name         string               `json:"name,omitempty"`
	Description  string               `json:"description,omitempty"`
	TargetAmount float64              `json:"target_amount,omitempty"`
	DurationDays int                  `json:"duration_days,omitempty"`
	RewardPoints int                  `json:"reward_points,omitempty"`
	Payload      any                  `json:"payload,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// ChallengeGeneratorServicer keeps a fresh, de-duplicated set of suggested
// challenge instances per user.
type ChallengeGeneratorServicer interface {
	GenerateForUser(userID uint) ([]Suggestion, error)
}

// BadgeSummary is the badge portion of a reward record.
type BadgeSummary struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Reward describes the outcome of one challenge completion.
type Reward struct {
	ChallengeID    uint                 `json:"challenge_id,omitempty"`
	ChallengeType  models.ChallengeType `json:"challenge_type"`
	PointsEarned   int                  `json:"points_earned"`
	NewTotalPoints int                  `json:"new_total_points"`
	LeveledUp      bool                 `json:"leveled_up"`
	NewLevel       int                  `json:"new_level"`
	BadgeEarned    *BadgeSummary        `json:"badge_earned,omitempty"`
}

// ChallengeProgressServicer is the per-instance progress state machine:
// suggested -> in_progress -> {completed | failed}. Suggested and terminal
// instances are never recomputed.
type ChallengeProgressServicer interface {
	// Accept promotes a suggested instance to in_progress under a row lock,
	// rejecting the promotion when another instance of the same type is
	// already in progress. Save-amount acceptance spawns a linked goal.
	Accept(userID, instanceID uint) (*models.ChallengeInstance, error)
	RecomputeForUser(userID uint) ([]Reward, error)
	RecomputeSingle(userID, definitionID uint) (*Reward, error)
	GetUserChallenges(userID uint, page pagination.PageRequest, state *models.ChallengeState) (*pagination.PageResponse[models.ChallengeInstance], error)
	SweepAll() (int, error)
	SweepExpired() (int, error)
}

// GamificationProfile aggregates a user's gamification standing.
type GamificationProfile struct {
	Points              int                `json:"points"`
	Level               int                `json:"level"`
	NextLevelThreshold  int                `json:"next_level_threshold"`
	TotalPointsEarned   int                `json:"total_points_earned"`
	CompletedChallenges int64              `json:"completed_challenges"`
	FailedChallenges    int64              `json:"failed_challenges"`
	Streak              *models.UserStreak `json:"streak,omitempty"`
	Badges              []models.UserBadge `json:"badges"`
}

// GamificationServicer applies point/level progression and badge unlocking
// when a challenge instance completes.
type GamificationServicer interface {
	RewardUser(userID uint, definition *models.ChallengeDefinition) (*Reward, error)
	GetProfile(userID uint) (*GamificationProfile, error)
}

// StreakServicer maintains per-user daily-activity streak counters.
type StreakServicer interface {
	RecordActivity(userID uint, when time.Time) (*models.UserStreak, error)
}

// GoalServicer manages savings goals.
type GoalServicer interface {
	CreateGoal(userID uint, name string, targetAmount float64, currency string, deadline *time.Time) (*models.Goal, error)
	GetUserGoals(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Goal], error)
	GetGoalByID(userID, goalID uint) (*models.Goal, error)
	// SweepExpired fails active goals whose deadline has passed.
	SweepExpired() (int, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate *time.Time
	ToDate   *time.Time
	Type     *models.TransactionType
}

// TransactionServicer records financial movements.
type TransactionServicer interface {
	CreateTransaction(userID, accountID uint, goalID *uint, transactionType models.TransactionType, amount float64, description string, date time.Time) (*models.Transaction, error)
	GetUserTransactions(userID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
}

// AccountServicer manages money sources.
type AccountServicer interface {
	CreateAccount(userID uint, name string, accountType models.AccountType, currency, description string, initialBalance float64) (*models.Account, error)
	GetUserAccounts(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID uint) (*models.Account, error)
	UpdateAccountBalance(tx *gorm.DB, account *models.Account, transactionType models.TransactionType, amount float64) error
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName, baseCurrency string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}
