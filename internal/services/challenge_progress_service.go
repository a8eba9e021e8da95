package services

import (
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/logger"
	"ahorrito/internal/models"
	"ahorrito/internal/pagination"
)

// challengeProgressService drives the instance state machine:
// suggested -> in_progress -> {completed | failed}. Terminal states never
// change again; recomputation touches in_progress instances only.
type challengeProgressService struct {
	db           *gorm.DB
	currency     CurrencyServicer
	gamification GamificationServicer
	streaks      StreakServicer
}

// NewChallengeProgressService creates a new ChallengeProgressServicer.
func NewChallengeProgressService(
	db *gorm.DB,
	currency CurrencyServicer,
	gamification GamificationServicer,
	streaks StreakServicer,
) ChallengeProgressServicer {
	return &challengeProgressService{
		db:           db,
		currency:     currency,
		gamification: gamification,
		streaks:      streaks,
	}
}

// Accept promotes a suggested instance to in_progress. The instance row is
// locked for the duration of the transaction so concurrent accepts of the
// same instance serialize; accepting while another instance of the same
// type is in progress fails with ErrChallengeInProgress. Accepting a
// save-amount challenge spawns a linked goal in the user's base currency.
func (s *challengeProgressService) Accept(userID, instanceID uint) (*models.ChallengeInstance, error) {
	var accepted *models.ChallengeInstance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Preload("Definition")
		if tx.Dialector.Name() == "postgres" {
			// SQLite serializes writers on its own and rejects FOR UPDATE.
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var instance models.ChallengeInstance
		if err := q.Where("id = ? AND user_id = ?", instanceID, userID).
			First(&instance).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrChallengeNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if instance.State != models.ChallengeStateSuggested {
			return apperrors.ErrChallengeNotSuggested
		}

		var conflicting int64
		if err := tx.Model(&models.ChallengeInstance{}).
			Joins("JOIN challenge_definitions ON challenge_definitions.id = challenge_instances.definition_id").
			Where("challenge_instances.user_id = ? AND challenge_instances.state = ? AND challenge_definitions.type = ?",
				userID, models.ChallengeStateInProgress, instance.Definition.Type).
			Count(&conflicting).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if conflicting > 0 {
			return apperrors.ErrChallengeInProgress
		}

		now := time.Now()
		durationDays := instance.Definition.DurationDays
		if override := payloadDuration(&instance); override > 0 {
			durationDays = override
		}
		end := now.AddDate(0, 0, durationDays)

		instance.State = models.ChallengeStateInProgress
		instance.Progress = 0
		instance.StartDate = &now
		instance.EndDate = &end

		switch instance.Definition.Type {
		case models.ChallengeTypeSaveAmount:
			var user models.User
			if err := tx.First(&user, userID).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			goal := models.Goal{
				UserID:       userID,
				Name:         instance.Definition.Name,
				TargetAmount: instance.TargetAmount,
				Currency:     user.BaseCurrency,
				State:        models.GoalStateActive,
				Deadline:     &end,
			}
			if err := tx.Create(&goal).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			instance.GoalID = &goal.ID
		case models.ChallengeTypeReduceSpending:
			var payload models.ReduceSpendingPayload
			if err := instance.DecodePayload(&payload); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			payload.PeriodStart = &now
			payload.CurrentSpent = 0
			if err := instance.EncodePayload(payload); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		if err := tx.Save(&instance).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		accepted = &instance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// RecomputeForUser recomputes every in_progress instance of the user,
// returning the rewards for any that completed.
func (s *challengeProgressService) RecomputeForUser(userID uint) ([]Reward, error) {
	var definitionIDs []uint
	if err := s.db.Model(&models.ChallengeInstance{}).
		Where("user_id = ? AND state = ?", userID, models.ChallengeStateInProgress).
		Distinct("definition_id").
		Pluck("definition_id", &definitionIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rewards []Reward
	for _, definitionID := range definitionIDs {
		reward, err := s.RecomputeSingle(userID, definitionID)
		if err != nil {
			return rewards, err
		}
		if reward != nil {
			rewards = append(rewards, *reward)
		}
	}
	return rewards, nil
}

// RecomputeSingle recomputes the user's latest in_progress instance of the
// definition. Returns a non-nil reward only when the recompute completed the
// instance; a nil, nil result means nothing was in progress or progress
// simply advanced.
func (s *challengeProgressService) RecomputeSingle(userID, definitionID uint) (*Reward, error) {
	var instance models.ChallengeInstance
	err := s.db.Preload("Definition").Preload("Goal").
		Where("user_id = ? AND definition_id = ? AND state = ?",
			userID, definitionID, models.ChallengeStateInProgress).
		Order("created_at DESC").
		First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := time.Now()

	// Expiry is checked before progress for every type except reduce, whose
	// window end is the moment the challenge is won, not lost: the reduce
	// branch owns its own clock.
	if instance.Definition.Type != models.ChallengeTypeReduceSpending &&
		instance.EndDate != nil && now.After(*instance.EndDate) {
		if err := s.failInstance(&instance, now); err != nil {
			return nil, err
		}
		return nil, nil
	}

	switch instance.Definition.Type {
	case models.ChallengeTypeSaveAmount:
		return s.recomputeSave(&instance, now)
	case models.ChallengeTypeReduceSpending:
		return s.recomputeReduce(&instance, now)
	case models.ChallengeTypeAddTransactions:
		return s.recomputeAdd(&instance, now)
	default:
		logger.Get().Warnw("unknown challenge type during recompute",
			"instance_id", instance.ID, "type", instance.Definition.Type)
		return nil, nil
	}
}

// recomputeSave measures saved amount against the target. The linked goal's
// balance is the primary signal; instances without a goal fall back to
// summing saving-type transactions since the start, currency-normalized.
func (s *challengeProgressService) recomputeSave(instance *models.ChallengeInstance, now time.Time) (*Reward, error) {
	var saved float64
	switch {
	case instance.Goal != nil:
		saved = instance.Goal.Balance
	case instance.StartDate != nil:
		var user models.User
		if err := s.db.First(&user, instance.UserID).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		var transactions []models.Transaction
		if err := s.db.Where("user_id = ? AND type = ? AND date >= ?",
			instance.UserID, models.TransactionTypeSaving, *instance.StartDate).
			Find(&transactions).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, t := range transactions {
			amount, err := s.currency.Convert(t.Amount, t.Currency, user.BaseCurrency)
			if err != nil {
				logger.Get().Warnw("currency conversion unavailable, using raw amount",
					"from", t.Currency, "to", user.BaseCurrency, "error", err)
				amount = t.Amount
			}
			saved += amount
		}
	}

	if instance.TargetAmount > 0 && saved >= instance.TargetAmount {
		return s.completeInstance(instance, now)
	}
	return nil, s.updateProgress(instance, ratioProgress(saved, instance.TargetAmount))
}

// recomputeReduce evaluates a spending ceiling over a fixed window.
// Overspending fails immediately; reaching the window end without
// overspending completes, even when the recompute runs after the window
// closed. While the window is open, progress is the share of the ceiling
// already spent, clamped below 100.
func (s *challengeProgressService) recomputeReduce(instance *models.ChallengeInstance, now time.Time) (*Reward, error) {
	var payload models.ReduceSpendingPayload
	if err := instance.DecodePayload(&payload); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	periodStart := instance.StartDate
	if payload.PeriodStart != nil {
		periodStart = payload.PeriodStart
	}
	if periodStart == nil || payload.WindowDays <= 0 {
		logger.Get().Warnw("reduce challenge missing window parameters, failing instance",
			"instance_id", instance.ID)
		return nil, s.failInstance(instance, now)
	}

	// A legacy instance without a recorded baseline gets one recomputed from
	// the window immediately before the period started.
	maxAllowed := payload.MaxAllowed
	if maxAllowed <= 0 {
		windowStart := periodStart.AddDate(0, 0, -payload.WindowDays)
		recomputed, err := s.expenseSum(instance.UserID, windowStart, *periodStart)
		if err != nil {
			return nil, err
		}
		maxAllowed = recomputed
		payload.MaxAllowed = recomputed
	}

	plannedEnd := periodStart.AddDate(0, 0, payload.WindowDays)
	measureEnd := now
	if measureEnd.After(plannedEnd) {
		measureEnd = plannedEnd
	}
	spent, err := s.expenseSum(instance.UserID, *periodStart, measureEnd)
	if err != nil {
		return nil, err
	}

	payload.CurrentSpent = spent
	payload.PeriodStart = periodStart
	if err := instance.EncodePayload(payload); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if spent > maxAllowed {
		return nil, s.failInstance(instance, now)
	}
	if !now.Before(plannedEnd) {
		return s.completeInstance(instance, now)
	}

	// Open window: progress mirrors how much of the ceiling is already
	// spent, never reaching 100 before the window closes.
	return nil, s.updateProgressAndPayload(instance, ratioProgress(spent, maxAllowed))
}

// recomputeAdd counts transactions recorded since the start.
func (s *challengeProgressService) recomputeAdd(instance *models.ChallengeInstance, now time.Time) (*Reward, error) {
	if instance.StartDate == nil {
		return nil, nil
	}

	var payload models.AddTransactionsPayload
	if err := instance.DecodePayload(&payload); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	target := payload.Count
	if target <= 0 {
		target = int(instance.TargetAmount)
	}
	if target <= 0 {
		logger.Get().Warnw("add challenge without a target count, failing instance",
			"instance_id", instance.ID)
		return nil, s.failInstance(instance, now)
	}

	var count int64
	if err := s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND date >= ?", instance.UserID, *instance.StartDate).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if count >= int64(target) {
		return s.completeInstance(instance, now)
	}
	return nil, s.updateProgress(instance, ratioProgress(float64(count), float64(target)))
}

// completeInstance finalizes a successful instance, completes its linked
// active goal, records streak activity, and applies the reward.
func (s *challengeProgressService) completeInstance(instance *models.ChallengeInstance, now time.Time) (*Reward, error) {
	if err := s.db.Model(instance).Updates(map[string]any{
		"state":    models.ChallengeStateCompleted,
		"progress": 100,
		"end_date": now,
		"payload":  instance.Payload,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if instance.GoalID != nil {
		if err := s.db.Model(&models.Goal{}).
			Where("id = ? AND state = ?", *instance.GoalID, models.GoalStateActive).
			Update("state", models.GoalStateCompleted).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if _, err := s.streaks.RecordActivity(instance.UserID, now); err != nil {
		logger.Get().Errorw("failed to record streak activity",
			"user_id", instance.UserID, "error", err)
	}

	reward, err := s.gamification.RewardUser(instance.UserID, &instance.Definition)
	if err != nil {
		return nil, err
	}
	reward.ChallengeID = instance.ID
	return reward, nil
}

// failInstance marks the instance failed and fails its linked active goal.
func (s *challengeProgressService) failInstance(instance *models.ChallengeInstance, now time.Time) error {
	if err := s.db.Model(instance).Updates(map[string]any{
		"state":    models.ChallengeStateFailed,
		"end_date": now,
		"payload":  instance.Payload,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if instance.GoalID != nil {
		if err := s.db.Model(&models.Goal{}).
			Where("id = ? AND state = ?", *instance.GoalID, models.GoalStateActive).
			Update("state", models.GoalStateFailed).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

func (s *challengeProgressService) updateProgress(instance *models.ChallengeInstance, progress int) error {
	if instance.Progress == progress {
		return nil
	}
	if err := s.db.Model(instance).Update("progress", progress).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *challengeProgressService) updateProgressAndPayload(instance *models.ChallengeInstance, progress int) error {
	if err := s.db.Model(instance).Updates(map[string]any{
		"progress": progress,
		"payload":  instance.Payload,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetUserChallenges lists the user's instances, newest first, optionally
// filtered by state.
func (s *challengeProgressService) GetUserChallenges(
	userID uint,
	page pagination.PageRequest,
	state *models.ChallengeState,
) (*pagination.PageResponse[models.ChallengeInstance], error) {
	query := s.db.Preload("Definition").Preload("Goal").
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if state != nil {
		query = query.Where("state = ?", *state)
	}

	response, err := pagination.Paginate[models.ChallengeInstance](query, page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return response, nil
}

// SweepAll recomputes every in_progress instance in the system. Failures are
// logged per user and do not abort the sweep.
func (s *challengeProgressService) SweepAll() (int, error) {
	return s.sweep(false)
}

// SweepExpired is the cheaper variant touching only instances whose end date
// has passed.
func (s *challengeProgressService) SweepExpired() (int, error) {
	return s.sweep(true)
}

func (s *challengeProgressService) sweep(expiredOnly bool) (int, error) {
	type pair struct {
		UserID       uint
		DefinitionID uint
	}

	query := s.db.Model(&models.ChallengeInstance{}).
		Where("state = ?", models.ChallengeStateInProgress)
	if expiredOnly {
		query = query.Where("end_date IS NOT NULL AND end_date < ?", time.Now())
	}

	var pairs []pair
	if err := query.Distinct("user_id", "definition_id").
		Find(&pairs).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	processed := 0
	for _, p := range pairs {
		if _, err := s.RecomputeSingle(p.UserID, p.DefinitionID); err != nil {
			logger.Get().Errorw("challenge sweep item failed",
				"user_id", p.UserID, "definition_id", p.DefinitionID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// expenseSum totals expense transactions over [from, to], normalized to the
// user's base currency.
func (s *challengeProgressService) expenseSum(userID uint, from, to time.Time) (float64, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := s.db.Where("user_id = ? AND type = ? AND date BETWEEN ? AND ?",
		userID, models.TransactionTypeExpense, from, to).
		Find(&transactions).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var total float64
	for _, t := range transactions {
		amount, err := s.currency.Convert(t.Amount, t.Currency, user.BaseCurrency)
		if err != nil {
			logger.Get().Warnw("currency conversion unavailable, using raw amount",
				"from", t.Currency, "to", user.BaseCurrency, "error", err)
			amount = t.Amount
		}
		total += amount
	}
	return total, nil
}

// payloadDuration extracts a duration override from the typed payload, or 0.
func payloadDuration(instance *models.ChallengeInstance) int {
	switch instance.Definition.Type {
	case models.ChallengeTypeSaveAmount:
		var p models.SaveAmountPayload
		if err := instance.DecodePayload(&p); err == nil {
			return p.DurationDays
		}
	case models.ChallengeTypeReduceSpending:
		var p models.ReduceSpendingPayload
		if err := instance.DecodePayload(&p); err == nil {
			return p.WindowDays
		}
	case models.ChallengeTypeAddTransactions:
		var p models.AddTransactionsPayload
		if err := instance.DecodePayload(&p); err == nil {
			return p.DurationDays
		}
	}
	return 0
}

// ratioProgress maps a ratio to an integer percentage clamped to 0..99; 100
// is reserved for completion.
func ratioProgress(have, want float64) int {
	if want <= 0 {
		return 0
	}
	progress := int(math.Round(have / want * 100))
	if progress < 0 {
		return 0
	}
	if progress > 99 {
		return 99
	}
	return progress
}
