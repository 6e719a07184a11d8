package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/budgetapp/budget-api/internal/api"
	"github.com/budgetapp/budget-api/internal/config"
	"github.com/budgetapp/budget-api/internal/lib/jwt"
	"github.com/budgetapp/budget-api/internal/services/auth"
	"github.com/budgetapp/budget-api/internal/services/transactions"
	"github.com/budgetapp/budget-api/internal/storage/sqlstore"
	"github.com/joho/godotenv"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	// .env is optional; real env vars take precedence.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
		slog.String("storage", cfg.Storage.Driver),
	)

	storage, err := sqlstore.New(cfg.Storage.Driver, cfg.Storage.DSN(), log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if cfg.Storage.AutoMigrate {
		if err := storage.Migrate(); err != nil {
			log.Error("Failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	codec := jwt.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	authService := auth.New(log, storage, storage, storage, codec, cfg.Auth.TokenTTL)
	transactionService := transactions.New(log, storage)

	apiServer := api.New(cfg, log, authService, transactionService, storage)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error("Stopping server error", "error", err)
	}

	if err := storage.Stop(); err != nil {
		log.Error("Closing storage error", "error", err)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		// envProd and anything unrecognised
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
