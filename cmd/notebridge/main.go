package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leandrodaf/notebridge/internal/logger"
	"github.com/leandrodaf/notebridge/sdk/bridge"
	"github.com/leandrodaf/notebridge/sdk/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewZapLogger()

	b, err := bridge.NewBridge(contracts.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to initialize note bridge", log.Field().Error("error", err))
	}

	// Any error from Run means the listener or the server died; there is no restart.
	if err := b.Run(ctx); err != nil {
		log.Fatal("Note bridge terminated", log.Field().Error("error", err))
	}
}
