package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/notebridge/internal/logger"
	"github.com/leandrodaf/notebridge/sdk/bridge"
	"github.com/leandrodaf/notebridge/sdk/contracts"
)

func main() {
	log := logger.NewZapLogger()

	b, err := bridge.NewBridge(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.DebugLevel),
		contracts.WithAddress("127.0.0.1:9002"),
		contracts.WithPollInterval(5*time.Millisecond),
		contracts.WithSendInterval(10*time.Millisecond),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
			Commands: []contracts.MIDICommand{contracts.NoteOn, contracts.NoteOff},
		}),
	)
	if err != nil {
		log.Error("Failed to initialize note bridge", log.Field().Error("error", err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		select {
		case <-b.Ready():
			fmt.Println("Streaming notes on ws://"+b.Addr().String(), "from", b.Devices())
		case <-ctx.Done():
		}
	}()

	if err := b.Run(ctx); err != nil {
		log.Error("Note bridge stopped", log.Field().Error("error", err))
	}
}
