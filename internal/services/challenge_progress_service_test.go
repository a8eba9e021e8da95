package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"ahorrito/internal/models"
	"ahorrito/internal/testutil"
)

func newProgressService(db *gorm.DB) ChallengeProgressServicer {
	currency := NewCurrencyService(db, nil)
	gamification := NewGamificationService(db)
	streaks := NewStreakService(db)
	return NewChallengeProgressService(db, currency, gamification, streaks)
}

func suggestedInstance(t *testing.T, db *gorm.DB, userID, defID uint, target float64, payload any) *models.ChallengeInstance {
	t.Helper()

	instance := &models.ChallengeInstance{
		UserID:       userID,
		DefinitionID: defID,
		State:        models.ChallengeStateSuggested,
		TargetAmount: target,
		RewardPoints: 100,
	}
	if payload != nil {
		if err := instance.EncodePayload(payload); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Create(instance).Error; err != nil {
		t.Fatal(err)
	}
	return instance
}

func TestAcceptChallenge(t *testing.T) {
	t.Run("save_amount_spawns_goal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)

		instance := suggestedInstance(t, db, user.ID, catalog[models.ChallengeTypeSaveAmount].ID, 500,
			models.SaveAmountPayload{Amount: 500, DurationDays: 14})

		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		if accepted.State != models.ChallengeStateInProgress {
			t.Errorf("expected in_progress, got %s", accepted.State)
		}
		if accepted.StartDate == nil || accepted.EndDate == nil {
			t.Fatal("expected start and end dates set")
		}
		if days := int(accepted.EndDate.Sub(*accepted.StartDate).Hours() / 24); days != 14 {
			t.Errorf("expected 14-day window from payload, got %d", days)
		}
		if accepted.GoalID == nil {
			t.Fatal("expected a linked goal")
		}

		var goal models.Goal
		if err := db.First(&goal, *accepted.GoalID).Error; err != nil {
			t.Fatal(err)
		}
		if goal.TargetAmount != 500 {
			t.Errorf("expected goal target 500, got %v", goal.TargetAmount)
		}
		if goal.Currency != user.BaseCurrency {
			t.Errorf("expected goal in base currency %s, got %s", user.BaseCurrency, goal.Currency)
		}
		if goal.State != models.GoalStateActive {
			t.Errorf("expected active goal, got %s", goal.State)
		}
	})

	t.Run("same_type_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		defID := catalog[models.ChallengeTypeSaveAmount].ID

		first := suggestedInstance(t, db, user.ID, defID, 100, nil)
		second := suggestedInstance(t, db, user.ID, defID, 200, nil)

		_, err := svc.Accept(user.ID, first.ID)
		testutil.AssertNoError(t, err)

		_, err = svc.Accept(user.ID, second.ID)
		testutil.AssertAppError(t, err, "CHALLENGE_IN_PROGRESS")
	})

	t.Run("different_types_coexist", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)

		save := suggestedInstance(t, db, user.ID, catalog[models.ChallengeTypeSaveAmount].ID, 100, nil)
		add := suggestedInstance(t, db, user.ID, catalog[models.ChallengeTypeAddTransactions].ID, 5,
			models.AddTransactionsPayload{Count: 5, DurationDays: 7})

		_, err := svc.Accept(user.ID, save.ID)
		testutil.AssertNoError(t, err)
		_, err = svc.Accept(user.ID, add.ID)
		testutil.AssertNoError(t, err)
	})

	t.Run("not_suggested", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)

		instance := testutil.CreateTestInstance(t, db, user.ID,
			catalog[models.ChallengeTypeSaveAmount].ID, models.ChallengeStateCompleted)

		_, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertAppError(t, err, "CHALLENGE_NOT_SUGGESTED")
	})

	t.Run("foreign_instance_invisible", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)

		instance := suggestedInstance(t, db, owner.ID, catalog[models.ChallengeTypeSaveAmount].ID, 100, nil)

		_, err := svc.Accept(other.ID, instance.ID)
		testutil.AssertAppError(t, err, "CHALLENGE_NOT_FOUND")
	})

	t.Run("reduce_stamps_period_start", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)

		instance := suggestedInstance(t, db, user.ID, catalog[models.ChallengeTypeReduceSpending].ID, 400,
			models.ReduceSpendingPayload{Mode: models.ReduceSpendingWeekly, WindowDays: 7, MaxAllowed: 400})

		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		var payload models.ReduceSpendingPayload
		if err := accepted.DecodePayload(&payload); err != nil {
			t.Fatal(err)
		}
		if payload.PeriodStart == nil {
			t.Fatal("expected period start stamped at acceptance")
		}
		if payload.CurrentSpent != 0 {
			t.Errorf("expected spent reset to 0, got %v", payload.CurrentSpent)
		}
	})
}

func TestRecomputeSave(t *testing.T) {
	t.Run("goal_balance_completes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		testutil.SeedBadgeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		defID := catalog[models.ChallengeTypeSaveAmount].ID

		instance := suggestedInstance(t, db, user.ID, defID, 300,
			models.SaveAmountPayload{Amount: 300, DurationDays: 14})
		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		// Fund the linked goal past the target.
		if err := db.Model(&models.Goal{}).Where("id = ?", *accepted.GoalID).
			Update("balance", 320).Error; err != nil {
			t.Fatal(err)
		}

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward == nil {
			t.Fatal("expected a reward on completion")
		}
		if reward.ChallengeID != accepted.ID {
			t.Errorf("expected reward for instance %d, got %d", accepted.ID, reward.ChallengeID)
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateCompleted {
			t.Errorf("expected completed, got %s", fresh.State)
		}
		if fresh.Progress != 100 {
			t.Errorf("expected progress 100, got %d", fresh.Progress)
		}

		var goal models.Goal
		db.First(&goal, *accepted.GoalID)
		if goal.State != models.GoalStateCompleted {
			t.Errorf("expected linked goal completed, got %s", goal.State)
		}

		// Completion is terminal: a second recompute finds nothing in progress.
		again, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if again != nil {
			t.Error("expected no reward on recompute of a terminal instance")
		}
	})

	t.Run("partial_progress", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		defID := catalog[models.ChallengeTypeSaveAmount].ID

		instance := suggestedInstance(t, db, user.ID, defID, 200,
			models.SaveAmountPayload{Amount: 200, DurationDays: 14})
		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		if err := db.Model(&models.Goal{}).Where("id = ?", *accepted.GoalID).
			Update("balance", 100).Error; err != nil {
			t.Fatal(err)
		}

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward != nil {
			t.Fatal("expected no reward at 50%")
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.Progress != 50 {
			t.Errorf("expected progress 50, got %d", fresh.Progress)
		}
		if fresh.State != models.ChallengeStateInProgress {
			t.Errorf("expected still in_progress, got %s", fresh.State)
		}
	})

	t.Run("expiry_fails_and_fails_goal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		defID := catalog[models.ChallengeTypeSaveAmount].ID

		instance := suggestedInstance(t, db, user.ID, defID, 300,
			models.SaveAmountPayload{Amount: 300, DurationDays: 7})
		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		// Push the window into the past.
		expired := time.Now().AddDate(0, 0, -1)
		if err := db.Model(&models.ChallengeInstance{}).Where("id = ?", accepted.ID).
			Update("end_date", expired).Error; err != nil {
			t.Fatal(err)
		}

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward != nil {
			t.Fatal("expected no reward for an expired challenge")
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateFailed {
			t.Errorf("expected failed, got %s", fresh.State)
		}

		var goal models.Goal
		db.First(&goal, *accepted.GoalID)
		if goal.State != models.GoalStateFailed {
			t.Errorf("expected linked goal failed, got %s", goal.State)
		}
	})
}

func TestRecomputeReduce(t *testing.T) {
	acceptReduce := func(t *testing.T, db *gorm.DB, svc ChallengeProgressServicer, userID, defID uint, maxAllowed float64, windowDays int) *models.ChallengeInstance {
		t.Helper()
		instance := suggestedInstance(t, db, userID, defID, maxAllowed,
			models.ReduceSpendingPayload{Mode: models.ReduceSpendingWeekly, WindowDays: windowDays, MaxAllowed: maxAllowed})
		accepted, err := svc.Accept(userID, instance.ID)
		testutil.AssertNoError(t, err)
		return accepted
	}

	t.Run("overspend_fails_immediately", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 5000)
		defID := catalog[models.ChallengeTypeReduceSpending].ID

		accepted := acceptReduce(t, db, svc, user.ID, defID, 400, 7)

		// Spend over the ceiling inside the window, well before it ends.
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, 450)

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward != nil {
			t.Fatal("expected no reward on overspend")
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateFailed {
			t.Errorf("expected failed on overspend, got %s", fresh.State)
		}
	})

	t.Run("window_end_completes_even_late", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		testutil.SeedBadgeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 5000)
		defID := catalog[models.ChallengeTypeReduceSpending].ID

		accepted := acceptReduce(t, db, svc, user.ID, defID, 400, 7)

		// Rewind the whole window into the past, under the ceiling.
		start := time.Now().AddDate(0, 0, -10)
		var payload models.ReduceSpendingPayload
		if err := accepted.DecodePayload(&payload); err != nil {
			t.Fatal(err)
		}
		payload.PeriodStart = &start
		if err := accepted.EncodePayload(payload); err != nil {
			t.Fatal(err)
		}
		end := start.AddDate(0, 0, 7)
		if err := db.Model(&models.ChallengeInstance{}).Where("id = ?", accepted.ID).
			Updates(map[string]any{"payload": accepted.Payload, "start_date": start, "end_date": end}).Error; err != nil {
			t.Fatal(err)
		}

		// Spending after the window closed must not count against it.
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, 9999)
		// Spending inside the window stays under the ceiling.
		testutil.CreateTestTransactionOn(t, db, user.ID, account.ID,
			models.TransactionTypeExpense, 300, start.AddDate(0, 0, 2))

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward == nil {
			t.Fatal("expected completion reward: the window ended without overspending")
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateCompleted {
			t.Errorf("expected completed, got %s", fresh.State)
		}
	})

	t.Run("open_window_tracks_spending_ratio", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 5000)
		defID := catalog[models.ChallengeTypeReduceSpending].ID

		accepted := acceptReduce(t, db, svc, user.ID, defID, 400, 7)
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, 200)

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward != nil {
			t.Fatal("expected no reward while the window is open")
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateInProgress {
			t.Errorf("expected in_progress, got %s", fresh.State)
		}
		// 200 of a 400 ceiling spent right after acceptance: progress
		// follows the money, not the calendar.
		if fresh.Progress != 50 {
			t.Errorf("expected progress 50, got %d", fresh.Progress)
		}

		var payload models.ReduceSpendingPayload
		if err := fresh.DecodePayload(&payload); err != nil {
			t.Fatal(err)
		}
		if payload.CurrentSpent != 200 {
			t.Errorf("expected observed spend 200, got %v", payload.CurrentSpent)
		}
	})

	t.Run("spending_at_ceiling_caps_below_completion", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 5000)
		defID := catalog[models.ChallengeTypeReduceSpending].ID

		accepted := acceptReduce(t, db, svc, user.ID, defID, 400, 7)
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, 400)

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward != nil {
			t.Fatal("expected no reward at the ceiling")
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateInProgress {
			t.Errorf("expected in_progress at exactly the ceiling, got %s", fresh.State)
		}
		if fresh.Progress != 99 {
			t.Errorf("expected progress clamped to 99, got %d", fresh.Progress)
		}
	})
}

func TestRecomputeAdd(t *testing.T) {
	t.Run("counts_since_start", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		testutil.SeedBadgeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 1000)
		defID := catalog[models.ChallengeTypeAddTransactions].ID

		instance := suggestedInstance(t, db, user.ID, defID, 3,
			models.AddTransactionsPayload{Count: 3, DurationDays: 7})
		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		for i := 0; i < 2; i++ {
			testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, 10)
		}

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward != nil {
			t.Fatal("expected no reward at 2 of 3")
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.Progress != 67 {
			t.Errorf("expected progress 67, got %d", fresh.Progress)
		}

		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, 10)
		reward, err = svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward == nil {
			t.Fatal("expected completion reward at 3 of 3")
		}
	})

	t.Run("backdated_transactions_excluded", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 1000)
		defID := catalog[models.ChallengeTypeAddTransactions].ID

		instance := suggestedInstance(t, db, user.ID, defID, 1,
			models.AddTransactionsPayload{Count: 1, DurationDays: 7})
		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		// Dated before the challenge started, so it does not count no
		// matter when the row was inserted.
		testutil.CreateTestTransactionOn(t, db, user.ID, account.ID,
			models.TransactionTypeIncome, 10, time.Now().AddDate(0, 0, -3))

		reward, err := svc.RecomputeSingle(user.ID, defID)
		testutil.AssertNoError(t, err)
		if reward != nil {
			t.Fatal("expected no reward from a backdated transaction")
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateInProgress {
			t.Errorf("expected still in_progress, got %s", fresh.State)
		}
		if fresh.Progress != 0 {
			t.Errorf("expected progress 0, got %d", fresh.Progress)
		}
	})
}

func TestRecomputeForUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	catalog := testutil.SeedChallengeCatalog(t, db)
	testutil.SeedBadgeCatalog(t, db)
	svc := newProgressService(db)
	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccount(t, db, user.ID, 1000)

	// One add challenge that will complete, one save challenge that won't.
	add := suggestedInstance(t, db, user.ID, catalog[models.ChallengeTypeAddTransactions].ID, 1,
		models.AddTransactionsPayload{Count: 1, DurationDays: 7})
	_, err := svc.Accept(user.ID, add.ID)
	testutil.AssertNoError(t, err)

	save := suggestedInstance(t, db, user.ID, catalog[models.ChallengeTypeSaveAmount].ID, 10000,
		models.SaveAmountPayload{Amount: 10000, DurationDays: 14})
	_, err = svc.Accept(user.ID, save.ID)
	testutil.AssertNoError(t, err)

	testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, 10)

	rewards, err := svc.RecomputeForUser(user.ID)
	testutil.AssertNoError(t, err)
	if len(rewards) != 1 {
		t.Fatalf("expected exactly 1 reward, got %d", len(rewards))
	}
	if rewards[0].ChallengeType != models.ChallengeTypeAddTransactions {
		t.Errorf("expected add_transactions reward, got %s", rewards[0].ChallengeType)
	}
}

func TestChallengeSweeps(t *testing.T) {
	t.Run("expired_only_skips_live", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		defID := catalog[models.ChallengeTypeSaveAmount].ID

		instance := suggestedInstance(t, db, user.ID, defID, 100,
			models.SaveAmountPayload{Amount: 100, DurationDays: 7})
		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		// Still inside its window: the expired-only sweep must not touch it.
		processed, err := svc.SweepExpired()
		testutil.AssertNoError(t, err)
		if processed != 0 {
			t.Errorf("expected 0 processed, got %d", processed)
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateInProgress {
			t.Errorf("expected untouched in_progress instance, got %s", fresh.State)
		}
	})

	t.Run("expired_only_fails_overdue", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catalog := testutil.SeedChallengeCatalog(t, db)
		svc := newProgressService(db)
		user := testutil.CreateTestUser(t, db)
		defID := catalog[models.ChallengeTypeSaveAmount].ID

		instance := suggestedInstance(t, db, user.ID, defID, 100,
			models.SaveAmountPayload{Amount: 100, DurationDays: 7})
		accepted, err := svc.Accept(user.ID, instance.ID)
		testutil.AssertNoError(t, err)

		expired := time.Now().AddDate(0, 0, -1)
		if err := db.Model(&models.ChallengeInstance{}).Where("id = ?", accepted.ID).
			Update("end_date", expired).Error; err != nil {
			t.Fatal(err)
		}

		processed, err := svc.SweepExpired()
		testutil.AssertNoError(t, err)
		if processed != 1 {
			t.Errorf("expected 1 processed, got %d", processed)
		}

		var fresh models.ChallengeInstance
		db.First(&fresh, accepted.ID)
		if fresh.State != models.ChallengeStateFailed {
			t.Errorf("expected failed after sweep, got %s", fresh.State)
		}
	})
}
