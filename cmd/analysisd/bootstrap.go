package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"fintwit-analyzer/internal/directory"
	"fintwit-analyzer/internal/logger"
	"fintwit-analyzer/internal/market"
	"fintwit-analyzer/internal/mention"
	"fintwit-analyzer/internal/pipeline"
	"fintwit-analyzer/internal/sentiment"
	"fintwit-analyzer/internal/store"
	"fintwit-analyzer/internal/trace"
	"fintwit-analyzer/internal/twitterapi"

	"github.com/joho/godotenv"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// initializeClassifier selects the sentiment classifier from config
func initializeClassifier(ctx context.Context, cfg *store.Config) sentiment.Classifier {
	if cfg.LLM.Enabled {
		logger.Info(ctx, "Using LLM sentiment classifier", "model", cfg.LLM.Model)
		return sentiment.NewLLMClassifier(cfg)
	}
	logger.Info(ctx, "Using heuristic sentiment classifier")
	return sentiment.NewHeuristic()
}

// buildPipeline wires the company directory, matcher, classifier, and
// clients into an analysis pipeline
func buildPipeline(ctx context.Context, cfg *store.Config) *pipeline.Pipeline {
	src := directory.NewHTTPSource(cfg.Directory.URL, time.Duration(cfg.Directory.TimeoutSec)*time.Second)
	dir := directory.Load(ctx, src)
	matcher := mention.NewMatcher(dir)

	classifier := initializeClassifier(ctx, cfg)
	fetcher := twitterapi.NewClient(cfg)
	prices := market.NewClient(cfg)

	return pipeline.New(cfg, fetcher, matcher, classifier, prices)
}
