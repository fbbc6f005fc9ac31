// cmd/restore/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/fierylion/pg-backups/internal/app"
	"github.com/fierylion/pg-backups/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional, environment takes precedence)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console, err := app.NewConsole(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize restore console: %w", err)
	}
	defer console.Shutdown()

	return console.Run(ctx)
}
