// Command server runs the leerming daemon: it wires Postgres, Redis and
// RabbitMQ, rehydrates persisted reminder batches into the in-process job
// runner and serves until interrupted.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/heartmarshall/leerming-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
