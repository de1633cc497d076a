package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/websurfer/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.GetRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
