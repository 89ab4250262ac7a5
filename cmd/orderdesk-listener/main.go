package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"orderdesk/internal/cli"
	"orderdesk/internal/config"
	"orderdesk/internal/logging"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(cli.RunListener(ctx, cfg))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
