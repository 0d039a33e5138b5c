package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Pehalba/AdmFinanceira/internal/amqp"
	"github.com/Pehalba/AdmFinanceira/internal/backend"
	"github.com/Pehalba/AdmFinanceira/internal/config"
	apphttp "github.com/Pehalba/AdmFinanceira/internal/http"
	applog "github.com/Pehalba/AdmFinanceira/internal/log"
	"github.com/Pehalba/AdmFinanceira/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

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

	// The export publisher is optional; the ledger keeps working without a
	// broker, it just stops mirroring to the spreadsheet.
	var publisher services.TransactionPublisher
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, transaction export disabled", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	reconciler := services.NewReconciler(st)
	aggregator := services.NewAggregator(st)
	transactions := services.NewTransactionService(st, reconciler, aggregator, publisher)
	bills := services.NewBillService(st, transactions)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:         services.NewAuthService(st, cfg.JWTSecret, cfg.TokenTTL),
		Accounts:     services.NewAccountService(st, reconciler),
		Categories:   services.NewCategoryService(st),
		Transactions: transactions,
		Bills:        bills,
		Aggregator:   aggregator,
		Dashboard:    services.NewDashboardService(st, aggregator, bills, cfg.UpcomingDays, 10),
		Meta:         st.Meta(),
		PageSize:     cfg.TransactionPage,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting admfin server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
