package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/tradylo/billing/internal/database"
	"github.com/tradylo/billing/internal/logging"
	"github.com/tradylo/billing/internal/server"
	billingstripe "github.com/tradylo/billing/internal/stripe"
)

func main() {
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("BILLING_LOG_LEVEL"))

	port := os.Getenv("BILLING_PORT")
	if port == "" {
		port = "8090"
	}

	dbPath := os.Getenv("BILLING_DB_PATH")
	if dbPath == "" {
		dbPath = "billing.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		Stripe: billingstripe.Config{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		PayoutSecret: os.Getenv("BILLING_PAYOUT_SECRET"),
	}

	srv := server.New(db, cfg, logger)

	// Scheduled payout batches. Empty schedule means payouts only run via
	// the trigger endpoint.
	var scheduler *cron.Cron
	if schedule := os.Getenv("BILLING_PAYOUT_SCHEDULE"); schedule != "" {
		cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
		scheduler = cron.New(cron.WithChain(cron.Recover(cronLogger)))
		_, err := scheduler.AddFunc(schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			summary, err := srv.PayoutProcessor().Run(ctx)
			if err != nil {
				slog.Error("scheduled payout batch failed", "error", err)
				return
			}
			slog.Info("scheduled payout batch", "processed", summary.Processed, "paid", summary.Paid, "skipped", len(summary.Skipped))
		})
		if err != nil {
			slog.Error("invalid payout schedule", "schedule", schedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("billing service starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
