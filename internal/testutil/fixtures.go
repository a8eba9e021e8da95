package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ahorrito/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        email,
		Password:     string(hash),
		BaseCurrency: "USD",
		IsActive:     true,
		Level:        1,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates a cash account with the given balance.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID uint, balance float64) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Account %d", nextID()),
		Type:     models.AccountTypeCash,
		Balance:  balance,
		Currency: "USD",
		IsActive: true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestTransaction creates a transaction of the given type and amount.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, accountID uint, txType models.TransactionType, amount float64) *models.Transaction {
	t.Helper()
	return CreateTestTransactionOn(t, db, userID, accountID, txType, amount, time.Now())
}

// CreateTestTransactionOn creates a transaction dated at the given time.
func CreateTestTransactionOn(t *testing.T, db *gorm.DB, userID, accountID uint, txType models.TransactionType, amount float64, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:    userID,
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Currency:  "USD",
		Date:      date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestGoal creates an active savings goal.
func CreateTestGoal(t *testing.T, db *gorm.DB, userID uint, targetAmount float64) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		UserID:       userID,
		Name:         fmt.Sprintf("Test Goal %d", nextID()),
		TargetAmount: targetAmount,
		Currency:     "USD",
		State:        models.GoalStateActive,
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// CreateTestCurrency inserts a rate-table row (units per USD).
func CreateTestCurrency(t *testing.T, db *gorm.DB, code string, rate float64) *models.Currency {
	t.Helper()

	currency := &models.Currency{
		Code:   code,
		Rate:   rate,
		Source: "test",
	}
	if err := db.Create(currency).Error; err != nil {
		t.Fatalf("failed to create test currency: %v", err)
	}
	return currency
}

// CreateTestDefinition creates an active challenge definition of the given type.
func CreateTestDefinition(t *testing.T, db *gorm.DB, challengeType models.ChallengeType, rewardPoints int) *models.ChallengeDefinition {
	t.Helper()

	definition := &models.ChallengeDefinition{
		Type:         challengeType,
		Name:         fmt.Sprintf("Test Challenge %d", nextID()),
		DurationDays: 7,
		RewardPoints: rewardPoints,
		Active:       true,
	}
	if err := db.Create(definition).Error; err != nil {
		t.Fatalf("failed to create test challenge definition: %v", err)
	}
	return definition
}

// SeedChallengeCatalog creates one active definition per challenge type and
// returns them keyed by type.
func SeedChallengeCatalog(t *testing.T, db *gorm.DB) map[models.ChallengeType]*models.ChallengeDefinition {
	t.Helper()

	catalog := make(map[models.ChallengeType]*models.ChallengeDefinition, len(models.ChallengeTypes))
	for _, challengeType := range models.ChallengeTypes {
		catalog[challengeType] = CreateTestDefinition(t, db, challengeType, 100)
	}
	return catalog
}

// CreateTestInstance creates a challenge instance in the given state.
func CreateTestInstance(t *testing.T, db *gorm.DB, userID, definitionID uint, state models.ChallengeState) *models.ChallengeInstance {
	t.Helper()

	instance := &models.ChallengeInstance{
		UserID:       userID,
		DefinitionID: definitionID,
		State:        state,
	}
	if state != models.ChallengeStateSuggested {
		now := time.Now()
		end := now.AddDate(0, 0, 7)
		instance.StartDate = &now
		instance.EndDate = &end
	}
	if err := db.Create(instance).Error; err != nil {
		t.Fatalf("failed to create test challenge instance: %v", err)
	}
	return instance
}

// CreateTestBadge inserts a badge catalog row with the given code.
func CreateTestBadge(t *testing.T, db *gorm.DB, code string) *models.Badge {
	t.Helper()

	badge := &models.Badge{
		Code: code,
		Name: fmt.Sprintf("Badge %s", code),
	}
	if err := db.Create(badge).Error; err != nil {
		t.Fatalf("failed to create test badge: %v", err)
	}
	return badge
}

// SeedBadgeCatalog inserts every badge the unlock rules know about.
func SeedBadgeCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	codes := []string{
		models.BadgeFirstChallenge,
		models.BadgeBronzeSaver,
		models.BadgeSilverSaver,
		models.BadgeGoldSaver,
		models.BadgeTenChallenges,
		models.BadgeSaverMaster,
		models.BadgeSpenderControl,
		models.BadgeGoalCreator,
		models.BadgeSuccessStreak,
		models.BadgeSuperStreak,
	}
	for _, code := range codes {
		CreateTestBadge(t, db, code)
	}
}
