// Command reconcile rebuilds a user's account balances from the transaction
// log, and optionally recomputes one monthly summary. Useful after manual
// database edits or a suspected drift.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/Pehalba/AdmFinanceira/internal/backend"
	"github.com/Pehalba/AdmFinanceira/internal/config"
	"github.com/Pehalba/AdmFinanceira/internal/core"
	applog "github.com/Pehalba/AdmFinanceira/internal/log"
	"github.com/Pehalba/AdmFinanceira/internal/services"
)

func main() {
	uid := flag.String("uid", "", "user id to reconcile (required)")
	monthKey := flag.String("month", "", "optional month (YYYY-MM) to recompute the summary for")
	flag.Parse()

	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	if *uid == "" {
		logger.Error("Missing required -uid flag")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	result, err := factory.CreateStore(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Store cleanup failed", "error", err)
		}
	}()
	st := result.Store

	ctx := context.Background()
	reconciler := services.NewReconciler(st)
	if err := reconciler.RecalculateAll(ctx, *uid); err != nil {
		logger.Error("Balance recalculation failed", "error", err, "uid", *uid)
		os.Exit(1)
	}
	logger.Info("Account balances rebuilt", "uid", *uid)

	if *monthKey != "" {
		mk, err := core.ParseMonthKey(*monthKey)
		if err != nil {
			logger.Error("Invalid -month value", "error", err, "month", *monthKey)
			os.Exit(2)
		}
		aggregator := services.NewAggregator(st)
		summary, err := aggregator.Recompute(ctx, *uid, mk)
		if err != nil {
			logger.Error("Summary recompute failed", "error", err, "uid", *uid, "month_key", mk)
			os.Exit(1)
		}
		logger.Info("Monthly summary recomputed",
			"uid", *uid,
			"month_key", mk,
			"total_income", summary.TotalIncome,
			"total_expense", summary.TotalExpense,
			"balance", summary.Balance)
	}
}
