package jobs

import (
	"ahorrito/internal/logger"
	"ahorrito/internal/services"
)

// SweepGoals fails active goals whose deadline has passed.
func SweepGoals(goals services.GoalServicer) (int, error) {
	log := logger.Named("sweep-goals")

	failed, err := goals.SweepExpired()
	if err != nil {
		log.Errorw("goal sweep failed", "error", err)
		return failed, err
	}
	log.Infow("goal sweep finished", "failed_goals", failed)
	return failed, nil
}

// SweepChallenges recomputes in-progress challenge instances. With
// expiredOnly set, only instances past their end date are touched; the full
// sweep also advances progress on live ones.
func SweepChallenges(progress services.ChallengeProgressServicer, expiredOnly bool) (int, error) {
	log := logger.Named("sweep-challenges")

	var processed int
	var err error
	if expiredOnly {
		processed, err = progress.SweepExpired()
	} else {
		processed, err = progress.SweepAll()
	}
	if err != nil {
		log.Errorw("challenge sweep failed", "expired_only", expiredOnly, "error", err)
		return processed, err
	}
	log.Infow("challenge sweep finished", "expired_only", expiredOnly, "processed", processed)
	return processed, nil
}
