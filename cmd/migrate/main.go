package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sparklebrand/brand-api/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("migration failed", "error", err.Error())
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
