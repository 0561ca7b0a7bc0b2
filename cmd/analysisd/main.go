package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"fintwit-analyzer/internal/api"
	"fintwit-analyzer/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		log.Fatal(err)
	}

	pipe := buildPipeline(ctx, cfg)
	srv := api.NewServer(cfg, pipe)

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Server stopped", err)
		log.Fatal(err)
	}
	logger.Info(ctx, "Shutdown complete")
}
