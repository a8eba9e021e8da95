package services

import (
	"testing"
	"time"

	"ahorrito/internal/testutil"
)

func TestRecordActivity(t *testing.T) {
	t.Run("first_activity", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewStreakService(db)
		user := testutil.CreateTestUser(t, db)

		streak, err := svc.RecordActivity(user.ID, time.Now())
		testutil.AssertNoError(t, err)

		if streak.CurrentStreak != 1 {
			t.Errorf("expected streak 1, got %d", streak.CurrentStreak)
		}
		if streak.LongestStreak != 1 {
			t.Errorf("expected longest 1, got %d", streak.LongestStreak)
		}
	})

	t.Run("same_day_does_not_advance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewStreakService(db)
		user := testutil.CreateTestUser(t, db)

		day := time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)
		_, err := svc.RecordActivity(user.ID, day)
		testutil.AssertNoError(t, err)

		streak, err := svc.RecordActivity(user.ID, day.Add(8*time.Hour))
		testutil.AssertNoError(t, err)
		if streak.CurrentStreak != 1 {
			t.Errorf("expected streak to stay at 1, got %d", streak.CurrentStreak)
		}
	})

	t.Run("consecutive_days_extend", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewStreakService(db)
		user := testutil.CreateTestUser(t, db)

		day := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			_, err := svc.RecordActivity(user.ID, day.AddDate(0, 0, i))
			testutil.AssertNoError(t, err)
		}

		streak, err := svc.RecordActivity(user.ID, day.AddDate(0, 0, 3))
		testutil.AssertNoError(t, err)
		if streak.CurrentStreak != 4 {
			t.Errorf("expected streak 4, got %d", streak.CurrentStreak)
		}
		if streak.LongestStreak != 4 {
			t.Errorf("expected longest 4, got %d", streak.LongestStreak)
		}
	})

	t.Run("gap_resets_but_keeps_longest", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewStreakService(db)
		user := testutil.CreateTestUser(t, db)

		day := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			_, err := svc.RecordActivity(user.ID, day.AddDate(0, 0, i))
			testutil.AssertNoError(t, err)
		}

		// Two-day gap.
		streak, err := svc.RecordActivity(user.ID, day.AddDate(0, 0, 7))
		testutil.AssertNoError(t, err)
		if streak.CurrentStreak != 1 {
			t.Errorf("expected streak reset to 1, got %d", streak.CurrentStreak)
		}
		if streak.LongestStreak != 5 {
			t.Errorf("expected longest to remain 5, got %d", streak.LongestStreak)
		}
	})
}
