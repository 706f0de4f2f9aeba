package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

const headlineBatchLimit = 50

// ExtractHeadlinesTask runs Stage A headline extraction for one
// dataset. Per-item model failures are handled inside the stage; the
// item simply stays eligible for the next run.
type ExtractHeadlinesTask struct {
	Task
	stage     HeadlineStage
	datasetID string
}

func NewExtractHeadlinesTask(stage HeadlineStage, datasetID string) *ExtractHeadlinesTask {
	return &ExtractHeadlinesTask{
		Task:      NewTask(TaskTypeExtractHeadlines, datasetID),
		stage:     stage,
		datasetID: datasetID,
	}
}

func (t *ExtractHeadlinesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats, err := t.stage.Run(ctx, t.datasetID, headlineBatchLimit)
	if err != nil {
		return fmt.Errorf("headline extraction failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "ExtractHeadlines",
		"dataset", t.datasetID,
		"duration", t.GetDuration(),
		"selected", stats.Selected,
		"processed", stats.Processed,
		"failed", stats.Failed)

	return nil
}
