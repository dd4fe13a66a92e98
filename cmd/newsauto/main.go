package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Haik11kashiyani/news-auto/internal/app"
	"github.com/Haik11kashiyani/news-auto/internal/config"
	"github.com/Haik11kashiyani/news-auto/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single batch and exit instead of scheduling")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	if *once {
		err = application.Run(ctx)
	} else {
		err = application.RunScheduled(ctx)
	}
	if err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
