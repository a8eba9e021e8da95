package services

import (
	"testing"

	"gorm.io/gorm"

	"ahorrito/internal/models"
	"ahorrito/internal/testutil"
)

func TestLevelThreshold(t *testing.T) {
	expected := map[int]int{1: 150, 2: 225, 3: 338, 4: 506}
	for level, points := range expected {
		if got := LevelThreshold(level); got != points {
			t.Errorf("level %d: expected threshold %d, got %d", level, points, got)
		}
	}
}

func TestRewardUser(t *testing.T) {
	t.Run("credits_points", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 100)

		reward, err := svc.RewardUser(user.ID, def)
		testutil.AssertNoError(t, err)

		if reward.PointsEarned != 100 {
			t.Errorf("expected 100 points earned, got %d", reward.PointsEarned)
		}
		if reward.LeveledUp {
			t.Error("100 points should not reach the level-2 threshold of 150")
		}
		if reward.NewTotalPoints != 100 {
			t.Errorf("expected balance 100, got %d", reward.NewTotalPoints)
		}
	})

	t.Run("level_up_consumes_points", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 225)

		// 225 points clears the level-1 threshold (150) once, leaving 75,
		// which does not clear the level-2 threshold (225).
		reward, err := svc.RewardUser(user.ID, def)
		testutil.AssertNoError(t, err)

		if !reward.LeveledUp {
			t.Fatal("expected a level up")
		}
		if reward.NewLevel != 2 {
			t.Errorf("expected level 2, got %d", reward.NewLevel)
		}
		if reward.NewTotalPoints != 75 {
			t.Errorf("expected 75 points left after leveling, got %d", reward.NewTotalPoints)
		}
	})

	t.Run("multi_level_jump", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 400)

		// 400 clears 150 (level 2, 250 left) and 225 (level 3, 25 left).
		reward, err := svc.RewardUser(user.ID, def)
		testutil.AssertNoError(t, err)

		if reward.NewLevel != 3 {
			t.Errorf("expected level 3, got %d", reward.NewLevel)
		}
		if reward.NewTotalPoints != 25 {
			t.Errorf("expected 25 points left, got %d", reward.NewTotalPoints)
		}
	})

	t.Run("lifetime_points_accumulate", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 200)

		for i := 0; i < 3; i++ {
			_, err := svc.RewardUser(user.ID, def)
			testutil.AssertNoError(t, err)
		}

		var fresh models.User
		if err := db.First(&fresh, user.ID).Error; err != nil {
			t.Fatal(err)
		}
		if fresh.TotalPointsEarned != 600 {
			t.Errorf("expected 600 lifetime points, got %d", fresh.TotalPointsEarned)
		}
	})

	t.Run("completes_lingering_instance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 50)
		instance := testutil.CreateTestInstance(t, db, user.ID, def.ID, models.ChallengeStateInProgress)

		_, err := svc.RewardUser(user.ID, def)
		testutil.AssertNoError(t, err)

		var fresh models.ChallengeInstance
		if err := db.First(&fresh, instance.ID).Error; err != nil {
			t.Fatal(err)
		}
		if fresh.State != models.ChallengeStateCompleted {
			t.Errorf("expected in-progress instance completed, got %s", fresh.State)
		}
		if fresh.Progress != 100 {
			t.Errorf("expected progress 100, got %d", fresh.Progress)
		}
	})

	t.Run("unknown_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGamificationService(db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 50)

		_, err := svc.RewardUser(99999, def)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestBadgeUnlocks(t *testing.T) {
	completeChallenge := func(t *testing.T, db *gorm.DB, svc GamificationServicer, userID uint, def *models.ChallengeDefinition) *Reward {
		t.Helper()
		testutil.CreateTestInstance(t, db, userID, def.ID, models.ChallengeStateInProgress)
		reward, err := svc.RewardUser(userID, def)
		testutil.AssertNoError(t, err)
		return reward
	}

	t.Run("first_challenge", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedBadgeCatalog(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 50)

		reward := completeChallenge(t, db, svc, user.ID, def)

		if reward.BadgeEarned == nil {
			t.Fatal("expected first_challenge badge on first completion")
		}
		if reward.BadgeEarned.Code != models.BadgeFirstChallenge {
			t.Errorf("expected first_challenge, got %s", reward.BadgeEarned.Code)
		}
	})

	t.Run("badge_attached_once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedBadgeCatalog(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 10)

		completeChallenge(t, db, svc, user.ID, def)
		completeChallenge(t, db, svc, user.ID, def)

		var count int64
		db.Model(&models.UserBadge{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 1 {
			t.Errorf("expected 1 badge row after repeat completion, got %d", count)
		}
	})

	t.Run("bronze_saver_via_lifetime_points", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedBadgeCatalog(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 250)

		completeChallenge(t, db, svc, user.ID, def)
		completeChallenge(t, db, svc, user.ID, def) // lifetime 500

		var badges []models.UserBadge
		db.Preload("Badge").Where("user_id = ?", user.ID).Find(&badges)
		found := false
		for _, b := range badges {
			if b.Badge.Code == models.BadgeBronzeSaver {
				found = true
			}
		}
		if !found {
			t.Error("expected bronze_saver at 500 lifetime points")
		}
	})

	t.Run("spender_control_requires_no_failures", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedBadgeCatalog(t, db)
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		reduceDef := testutil.CreateTestDefinition(t, db, models.ChallengeTypeReduceSpending, 20)

		// One failed reduce challenge on record blocks the badge.
		failed := testutil.CreateTestInstance(t, db, user.ID, reduceDef.ID, models.ChallengeStateInProgress)
		db.Model(failed).Update("state", models.ChallengeStateFailed)

		for i := 0; i < 3; i++ {
			completeChallenge(t, db, svc, user.ID, reduceDef)
		}

		var count int64
		db.Model(&models.UserBadge{}).
			Joins("JOIN badges ON badges.id = user_badges.badge_id").
			Where("user_badges.user_id = ? AND badges.code = ?", user.ID, models.BadgeSpenderControl).
			Count(&count)
		if count != 0 {
			t.Error("expected spender_control blocked by a failed reduce challenge")
		}
	})

	t.Run("missing_catalog_row_not_fatal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		// No badge catalog seeded.
		svc := NewGamificationService(db)
		user := testutil.CreateTestUser(t, db)
		def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 50)

		reward := completeChallenge(t, db, svc, user.ID, def)
		if reward.BadgeEarned != nil {
			t.Error("expected no badge when catalog is empty")
		}
	})
}

func TestGetGamificationProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	testutil.SeedBadgeCatalog(t, db)
	svc := NewGamificationService(db)
	user := testutil.CreateTestUser(t, db)
	def := testutil.CreateTestDefinition(t, db, models.ChallengeTypeSaveAmount, 100)

	testutil.CreateTestInstance(t, db, user.ID, def.ID, models.ChallengeStateInProgress)
	_, err := svc.RewardUser(user.ID, def)
	testutil.AssertNoError(t, err)

	profile, err := svc.GetProfile(user.ID)
	testutil.AssertNoError(t, err)

	if profile.Points != 100 {
		t.Errorf("expected 100 points, got %d", profile.Points)
	}
	if profile.Level != 1 {
		t.Errorf("expected level 1, got %d", profile.Level)
	}
	if profile.NextLevelThreshold != 150 {
		t.Errorf("expected next threshold 150, got %d", profile.NextLevelThreshold)
	}
	if profile.CompletedChallenges != 1 {
		t.Errorf("expected 1 completed challenge, got %d", profile.CompletedChallenges)
	}
	if len(profile.Badges) == 0 {
		t.Error("expected at least the first_challenge badge")
	}
}
