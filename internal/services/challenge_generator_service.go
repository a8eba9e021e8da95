package services

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gorm.io/gorm"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/logger"
	"ahorrito/internal/models"
)

// Generator tunables.
const (
	saveTargetFloor    = 100.0
	saveTargetCeilPct  = 0.30
	starterSaveTarget  = 50.0
	starterSaveDays    = 7
	reduceMinBaseline  = 100.0
	reduceMinTxCount   = 3
	reduceMinAccountAge = 7 * 24 * time.Hour
	addTargetCap       = 20
	previewLevelBonus  = 0.15
	previewPointsCap   = 3.0
)

var saveDurations = []int{7, 14, 21, 30}

// challengeGeneratorService produces and refreshes suggested challenge
// instances from the user's current financial posture.
type challengeGeneratorService struct {
	db       *gorm.DB
	currency CurrencyServicer
	rng      *rand.Rand
}

// NewChallengeGeneratorService creates a new ChallengeGeneratorServicer.
func NewChallengeGeneratorService(db *gorm.DB, currency CurrencyServicer) ChallengeGeneratorServicer {
	return &challengeGeneratorService{
		db:       db,
		currency: currency,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// financialPosture summarizes the figures the generation rules read.
type financialPosture struct {
	balance       float64
	totalIncome   float64
	totalExpenses float64
	txCount       int64
}

// GenerateForUser ensures one fresh suggested instance per applicable
// definition type, returning previews plus INFO notices for skipped
// categories. Runs in a single transaction.
func (s *challengeGeneratorService) GenerateForUser(userID uint) ([]Suggestion, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	definitions, err := s.loadCatalog()
	if err != nil {
		return nil, err
	}

	posture, err := s.loadPosture(&user)
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion
	err = s.db.Transaction(func(tx *gorm.DB) error {
		save, err := s.generateSaveAmount(tx, &user, definitions[models.ChallengeTypeSaveAmount], posture)
		if err != nil {
			return err
		}
		suggestions = append(suggestions, save)

		reduce, err := s.generateReduceSpending(tx, &user, definitions[models.ChallengeTypeReduceSpending], posture)
		if err != nil {
			return err
		}
		suggestions = append(suggestions, reduce)

		add, err := s.generateAddTransactions(tx, &user, definitions[models.ChallengeTypeAddTransactions], posture)
		if err != nil {
			return err
		}
		suggestions = append(suggestions, add)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return suggestions, nil
}

// loadCatalog loads the active definition per type, failing hard when one
// is missing: that is a seeding error, not a runtime condition to mask.
func (s *challengeGeneratorService) loadCatalog() (map[models.ChallengeType]*models.ChallengeDefinition, error) {
	var definitions []models.ChallengeDefinition
	if err := s.db.Where("active = ?", true).Find(&definitions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	catalog := make(map[models.ChallengeType]*models.ChallengeDefinition, len(definitions))
	for i := range definitions {
		if _, ok := catalog[definitions[i].Type]; !ok {
			catalog[definitions[i].Type] = &definitions[i]
		}
	}
	for _, required := range models.ChallengeTypes {
		if catalog[required] == nil {
			return nil, apperrors.WithMessage(apperrors.ErrChallengeCatalogMissing,
				fmt.Sprintf("No active challenge definition for type %s", required))
		}
	}
	return catalog, nil
}

func (s *challengeGeneratorService) loadPosture(user *models.User) (*financialPosture, error) {
	posture := &financialPosture{}

	var accounts []models.Account
	if err := s.db.Where("user_id = ? AND is_active = ?", user.ID, true).Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, account := range accounts {
		posture.balance += s.toBaseCurrency(account.Balance, account.Currency, user.BaseCurrency)
	}

	income, err := s.sumTransactions(user, models.TransactionTypeIncome, nil, nil)
	if err != nil {
		return nil, err
	}
	posture.totalIncome = income

	expenses, err := s.sumTransactions(user, models.TransactionTypeExpense, nil, nil)
	if err != nil {
		return nil, err
	}
	posture.totalExpenses = expenses

	if err := s.db.Model(&models.Transaction{}).
		Where("user_id = ?", user.ID).
		Count(&posture.txCount).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return posture, nil
}

func (s *challengeGeneratorService) generateSaveAmount(
	tx *gorm.DB,
	user *models.User,
	definition *models.ChallengeDefinition,
	posture *financialPosture,
) (Suggestion, error) {
	base := math.Max(posture.balance, posture.totalIncome)

	var payload models.SaveAmountPayload
	if base <= 0 {
		// Brand-new user: symbolic starter challenge.
		payload = models.SaveAmountPayload{Amount: starterSaveTarget, DurationDays: starterSaveDays, Intro: true}
	} else {
		pct := 0.05 + s.rng.Float64()*0.15
		target := base * pct
		if target < saveTargetFloor {
			target = saveTargetFloor
		}
		if ceil := base * saveTargetCeilPct; target > ceil {
			target = ceil
		}
		payload = models.SaveAmountPayload{
			Amount:       math.Round(target),
			DurationDays: saveDurations[s.rng.Intn(len(saveDurations))],
		}
	}

	instance, err := s.upsertSuggested(tx, user, definition, payload.Amount, payload)
	if err != nil {
		return Suggestion{}, err
	}
	return s.preview(instance, definition, payload, payload.DurationDays), nil
}

func (s *challengeGeneratorService) generateReduceSpending(
	tx *gorm.DB,
	user *models.User,
	definition *models.ChallengeDefinition,
	posture *financialPosture,
) (Suggestion, error) {
	if posture.totalExpenses <= 0 {
		return s.notice(definition.Type, "No spending history yet; record some expenses first"), nil
	}

	inProgress, err := s.hasInProgress(user.ID, definition.Type)
	if err != nil {
		return Suggestion{}, err
	}
	if inProgress {
		return s.notice(definition.Type, "A spending challenge is already in progress"), nil
	}

	if time.Since(user.CreatedAt) < reduceMinAccountAge {
		return s.notice(definition.Type, "Account too new for a spending challenge"), nil
	}

	mode := models.ReduceSpendingWeekly
	windowDays := 7
	if s.rng.Intn(2) == 1 {
		mode = models.ReduceSpendingMonthly
		windowDays = 30
	}

	now := time.Now()
	windowStart := now.AddDate(0, 0, -windowDays)
	baseline, err := s.sumTransactions(user, models.TransactionTypeExpense, &windowStart, &now)
	if err != nil {
		return Suggestion{}, err
	}
	var windowTxCount int64
	if err := s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ? AND date BETWEEN ? AND ?",
			user.ID, models.TransactionTypeExpense, windowStart, now).
		Count(&windowTxCount).Error; err != nil {
		return Suggestion{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if baseline < reduceMinBaseline || windowTxCount < reduceMinTxCount {
		return s.notice(definition.Type, "Not enough recent spending to set a meaningful baseline"), nil
	}

	// The trailing window is the current window at suggestion time, so the
	// observed spend starts out equal to the baseline.
	payload := models.ReduceSpendingPayload{
		Mode:         mode,
		WindowDays:   windowDays,
		MaxAllowed:   baseline,
		CurrentSpent: baseline,
	}
	instance, err := s.upsertSuggested(tx, user, definition, baseline, payload)
	if err != nil {
		return Suggestion{}, err
	}
	return s.preview(instance, definition, payload, windowDays), nil
}

func (s *challengeGeneratorService) generateAddTransactions(
	tx *gorm.DB,
	user *models.User,
	definition *models.ChallengeDefinition,
	posture *financialPosture,
) (Suggestion, error) {
	lower := int(0.20 * float64(posture.txCount))
	if lower < 5 {
		lower = 5
	}
	if lower > addTargetCap {
		lower = addTargetCap
	}
	payload := models.AddTransactionsPayload{
		Count:        lower + s.rng.Intn(6),
		DurationDays: 1 + s.rng.Intn(9),
	}

	instance, err := s.upsertSuggested(tx, user, definition, float64(payload.Count), payload)
	if err != nil {
		return Suggestion{}, err
	}
	return s.preview(instance, definition, payload, payload.DurationDays), nil
}

// upsertSuggested refreshes the existing suggested instance for the
// definition in place, or inserts one. Duplicate suggested rows are
// defensively cleaned up, keeping the most recently updated.
func (s *challengeGeneratorService) upsertSuggested(
	tx *gorm.DB,
	user *models.User,
	definition *models.ChallengeDefinition,
	target float64,
	payload any,
) (*models.ChallengeInstance, error) {
	var existing []models.ChallengeInstance
	if err := tx.Where("user_id = ? AND definition_id = ? AND state = ?",
		user.ID, definition.ID, models.ChallengeStateSuggested).
		Order("updated_at DESC").
		Find(&existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, dup := range existing[min(len(existing), 1):] {
		if err := tx.Delete(&dup).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	var instance models.ChallengeInstance
	if len(existing) > 0 {
		instance = existing[0]
	} else {
		instance = models.ChallengeInstance{
			UserID:       user.ID,
			DefinitionID: definition.ID,
			State:        models.ChallengeStateSuggested,
		}
	}

	instance.TargetAmount = target
	instance.RewardPoints = ScaleRewardPoints(definition.RewardPoints, user.Level)
	if err := instance.EncodePayload(payload); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := tx.Save(&instance).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &instance, nil
}

func (s *challengeGeneratorService) preview(
	instance *models.ChallengeInstance,
	definition *models.ChallengeDefinition,
	payload any,
	durationDays int,
) Suggestion {
	return Suggestion{
		Kind:         SuggestionChallenge,
		Type:         definition.Type,
		InstanceID:   instance.ID,
		Name:         definition.Name,
		Description:  definition.Description,
		TargetAmount: instance.TargetAmount,
		DurationDays: durationDays,
		RewardPoints: instance.RewardPoints,
		Payload:      payload,
	}
}

func (s *challengeGeneratorService) notice(challengeType models.ChallengeType, message string) Suggestion {
	return Suggestion{Kind: SuggestionInfo, Type: challengeType, Message: message}
}

func (s *challengeGeneratorService) hasInProgress(userID uint, challengeType models.ChallengeType) (bool, error) {
	var count int64
	err := s.db.Model(&models.ChallengeInstance{}).
		Joins("JOIN challenge_definitions ON challenge_definitions.id = challenge_instances.definition_id").
		Where("challenge_instances.user_id = ? AND challenge_instances.state = ? AND challenge_definitions.type = ?",
			userID, models.ChallengeStateInProgress, challengeType).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// sumTransactions sums transactions of one type, currency-normalized to the
// user's base currency, optionally restricted to a date window.
func (s *challengeGeneratorService) sumTransactions(
	user *models.User,
	transactionType models.TransactionType,
	from, to *time.Time,
) (float64, error) {
	q := s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ?", user.ID, transactionType)
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if to != nil {
		q = q.Where("date <= ?", *to)
	}

	var transactions []models.Transaction
	if err := q.Find(&transactions).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var total float64
	for _, t := range transactions {
		total += s.toBaseCurrency(t.Amount, t.Currency, user.BaseCurrency)
	}
	return total, nil
}

// toBaseCurrency converts an amount to the user's base currency. When the
// rate table does not know a code yet, the raw amount is used and the gap
// is logged; suggestion sizing degrades gracefully instead of aborting.
func (s *challengeGeneratorService) toBaseCurrency(amount float64, from, base string) float64 {
	converted, err := s.currency.Convert(amount, from, base)
	if err != nil {
		logger.Get().Warnw("currency conversion unavailable, using raw amount",
			"from", from, "to", base, "error", err)
		return amount
	}
	return converted
}

// ScaleRewardPoints scales a definition's base points by the user's level
// for suggestion previews, capped at three times the base.
func ScaleRewardPoints(basePoints, level int) int {
	scaled := float64(basePoints) * (1 + float64(level-1)*previewLevelBonus)
	if cap := float64(basePoints) * previewPointsCap; scaled > cap {
		scaled = cap
	}
	return int(math.Round(scaled))
}
