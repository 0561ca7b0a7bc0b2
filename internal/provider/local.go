package provider

import (
	"context"

	"fintwit-analyzer/internal/pipeline"
	"fintwit-analyzer/internal/types"
)

// Local runs the extraction pipeline in-process.
type Local struct {
	Pipeline *pipeline.Pipeline
}

func (l *Local) Analyze(ctx context.Context, handle string, months int) (*types.AnalysisResult, error) {
	return l.Pipeline.Analyze(ctx, handle, months)
}
