package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(newAppGenerator)
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("podcast failed")
		stop()
		os.Exit(1)
	}
}
