// The jobs binary runs the batch work: series refreshes grouped by cadence,
// exchange rate refresh, and goal/challenge sweeps. Each job is a
// subcommand so schedulers can invoke them independently; the schedule
// subcommand runs them all on an internal cron.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"ahorrito/internal/config"
	"ahorrito/internal/database"
	"ahorrito/internal/jobs"
	"ahorrito/internal/logger"
	"ahorrito/internal/providers"
	"ahorrito/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Job error: %v", err)
	}
}

// runtime bundles everything a job needs.
type runtime struct {
	cfg       *config.Config
	currency  services.CurrencyServicer
	goals     services.GoalServicer
	progress  services.ChallengeProgressServicer
	refresher *jobs.Refresher
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: jobs <refresh-daily|refresh-frequent|refresh-weekly|refresh-rates|sweep-goals|sweep-challenges [--expired-only]|schedule> [--force]")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	db := dbManager.DB()
	cache := services.NewSeriesCacheService(db)
	forex := providers.NewFrankfurterClient(&http.Client{Timeout: cfg.ProviderTimeout})
	currency := services.NewCurrencyService(db, forex)
	goals := services.NewGoalService(db)
	streaks := services.NewStreakService(db)
	gamification := services.NewGamificationService(db)
	progress := services.NewChallengeProgressService(db, currency, gamification, streaks)

	rt := &runtime{
		cfg:       cfg,
		currency:  currency,
		goals:     goals,
		progress:  progress,
		refresher: jobs.NewRefresher(cache, cfg.CryptoFetchDelay),
	}

	command := os.Args[1]
	rest := os.Args[2:]
	force := hasFlag(rest, "--force")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "refresh-daily":
		rt.refresher.Run(ctx, jobs.DailySeries(cfg), force)
	case "refresh-frequent":
		rt.refresher.Run(ctx, jobs.FrequentSeries(cfg), force)
	case "refresh-weekly":
		rt.refresher.Run(ctx, jobs.WeeklySeries(cfg), force)
	case "refresh-rates":
		updated, err := currency.RefreshRates(ctx)
		if err != nil {
			return fmt.Errorf("exchange rate refresh failed: %w", err)
		}
		logger.Named("refresh-rates").Infow("exchange rates refreshed", "currencies", updated)
	case "sweep-goals":
		if _, err := jobs.SweepGoals(goals); err != nil {
			return err
		}
	case "sweep-challenges":
		if _, err := jobs.SweepChallenges(progress, hasFlag(rest, "--expired-only")); err != nil {
			return err
		}
	case "schedule":
		return rt.schedule(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}

// schedule runs every job on an internal cron until interrupted.
func (rt *runtime) schedule(ctx context.Context) error {
	log := logger.Named("schedule")
	c := cron.New()

	register := func(spec, name string, fn func()) error {
		if _, err := c.AddFunc(spec, fn); err != nil {
			return fmt.Errorf("registering %s: %w", name, err)
		}
		return nil
	}

	entries := []struct {
		spec string
		name string
		fn   func()
	}{
		{"0 6 * * *", "refresh-daily", func() { rt.refresher.Run(ctx, jobs.DailySeries(rt.cfg), false) }},
		{"0 */3 * * *", "refresh-frequent", func() { rt.refresher.Run(ctx, jobs.FrequentSeries(rt.cfg), false) }},
		{"0 7 * * 1", "refresh-weekly", func() { rt.refresher.Run(ctx, jobs.WeeklySeries(rt.cfg), false) }},
		{"0 5 * * *", "refresh-rates", func() {
			if _, err := rt.currency.RefreshRates(ctx); err != nil {
				log.Errorw("scheduled rate refresh failed", "error", err)
			}
		}},
		{"15 0 * * *", "sweep-goals", func() { _, _ = jobs.SweepGoals(rt.goals) }},
		{"0 * * * *", "sweep-challenges", func() { _, _ = jobs.SweepChallenges(rt.progress, false) }},
	}
	for _, e := range entries {
		if err := register(e.spec, e.name, e.fn); err != nil {
			return err
		}
	}

	c.Start()
	log.Info("job scheduler started")
	<-ctx.Done()
	log.Info("job scheduler stopping")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}
