// Command remind walks every learner profile and re-registers their next
// review reminder batch. It is intended to be invoked by an external cron
// job; the daemon picks up the refreshed batches through RestoreScheduled
// on its next start.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/leerming-backend/internal/app"
	"github.com/heartmarshall/leerming-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("wire application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Reminder.ReregisterAll(ctx); err != nil {
		logger.Error("reregister reminders", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("reminder reregistration completed")
}
