package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// AnalyzeContentTask runs Stage B semantic analysis for one dataset.
// The stage recomputes its selection from current state, so enqueueing
// this task is always safe; a rerun picks up only the backlog.
type AnalyzeContentTask struct {
	Task
	stage     AnalysisStage
	datasetID string
}

func NewAnalyzeContentTask(stage AnalysisStage, datasetID string) *AnalyzeContentTask {
	return &AnalyzeContentTask{
		Task:      NewTask(TaskTypeAnalyzeContent, datasetID),
		stage:     stage,
		datasetID: datasetID,
	}
}

func (t *AnalyzeContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats, err := t.stage.Run(ctx, t.datasetID)
	if err != nil {
		return fmt.Errorf("content analysis failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "AnalyzeContent",
		"dataset", t.datasetID,
		"duration", t.GetDuration(),
		"eligible", stats.Eligible,
		"analyzed", stats.Analyzed,
		"batches", stats.Batches)

	return nil
}
