package provider

import (
	"context"
	"fmt"

	"fintwit-analyzer/internal/pipeline"
	"fintwit-analyzer/internal/store"
	"fintwit-analyzer/internal/types"
)

// AnalysisProvider produces a performance analysis for a handle.
// Implementations differ in where the work happens: in-process, on a
// remote analysis server, or canned data for development.
type AnalysisProvider interface {
	Analyze(ctx context.Context, handle string, months int) (*types.AnalysisResult, error)
}

// ForConfig selects the provider named by cfg.Provider. The pipeline
// argument may be nil for REMOTE and MOCK.
func ForConfig(cfg *store.Config, p *pipeline.Pipeline) (AnalysisProvider, error) {
	switch cfg.Provider {
	case "LOCAL":
		if p == nil {
			return nil, fmt.Errorf("LOCAL provider needs a pipeline")
		}
		return &Local{Pipeline: p}, nil
	case "REMOTE":
		return NewRemote(cfg), nil
	case "MOCK":
		return &Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
