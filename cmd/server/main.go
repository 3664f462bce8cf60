// Package main implements the entry point for the stringing API server,
// which runs the racket string-replacement application workflow: drafts,
// step validation, pricing, slot booking, and package-credit settlement.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer app.cleanup()

	if err := app.run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		stop()
		log.Fatal(err)
	}
}
