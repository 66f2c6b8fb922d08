// Command mailer drains the password reset queue into the outbox file.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/natours-api/internal/config"
	"github.com/iliyamo/natours-api/internal/queue"
)

func main() {
	_ = godotenv.Load()
	logger := config.NewLogger(os.Getenv("APP_ENV"))
	cfg := config.LoadMailConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mail consumer starting", "queue", cfg.Queue, "outbox", cfg.OutboxPath)
	if err := queue.StartMailConsumer(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mail consumer stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("mail consumer stopped")
}
