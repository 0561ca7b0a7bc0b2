package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintwit-analyzer/internal/directory"
	"fintwit-analyzer/internal/logger"
	"fintwit-analyzer/internal/market"
	"fintwit-analyzer/internal/mention"
	"fintwit-analyzer/internal/pipeline"
	"fintwit-analyzer/internal/provider"
	"fintwit-analyzer/internal/sentiment"
	"fintwit-analyzer/internal/store"
	"fintwit-analyzer/internal/trace"
	"fintwit-analyzer/internal/twitterapi"

	"github.com/joho/godotenv"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	handle := flag.String("handle", "", "twitter handle to analyze")
	months := flag.Int("months", 0, "timeline months (defaults to config)")
	flag.Parse()

	if *handle == "" {
		fmt.Fprintln(os.Stderr, "usage: analyzer -handle <handle> [-months N] [-config path]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	must(logger.Init())
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := store.LoadConfig(*configPath)
	must(err)

	if *months == 0 {
		*months = cfg.Pipeline.TimelineMonths
	}

	var pipe *pipeline.Pipeline
	if cfg.Provider == "LOCAL" {
		pipe = buildPipeline(ctx, cfg)
	}

	p, err := provider.ForConfig(cfg, pipe)
	must(err)

	logger.Info(ctx, "Starting analysis", "handle", *handle, "months", *months, "provider", cfg.Provider)

	result, err := p.Analyze(ctx, *handle, *months)
	if err != nil {
		logger.ErrorWithErr(ctx, "Analysis failed", err)
		log.Fatal(err)
	}

	b, err := json.MarshalIndent(result, "", "  ")
	must(err)
	fmt.Println(string(b))
}

func buildPipeline(ctx context.Context, cfg *store.Config) *pipeline.Pipeline {
	src := directory.NewHTTPSource(cfg.Directory.URL, time.Duration(cfg.Directory.TimeoutSec)*time.Second)
	dir := directory.Load(ctx, src)
	matcher := mention.NewMatcher(dir)

	var classifier sentiment.Classifier
	if cfg.LLM.Enabled {
		classifier = sentiment.NewLLMClassifier(cfg)
	} else {
		classifier = sentiment.NewHeuristic()
	}

	return pipeline.New(cfg, twitterapi.NewClient(cfg), matcher, classifier, market.NewClient(cfg))
}
