package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// HarvestBatchTask runs one global, time-triggered harvest batch.
// Per-source provider failures land on audit records inside the
// runner; only infrastructure failures bubble up into the retry loop.
type HarvestBatchTask struct {
	Task
	runner     BatchRunner
	maxSources int
	delay      time.Duration
	budget     time.Duration
}

func NewHarvestBatchTask(runner BatchRunner, maxSources int, delay, budget time.Duration) *HarvestBatchTask {
	return &HarvestBatchTask{
		Task:       NewTask(TaskTypeHarvestBatch, ""),
		runner:     runner,
		maxSources: maxSources,
		delay:      delay,
		budget:     budget,
	}
}

func (t *HarvestBatchTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.runner.RunBatch(ctx, t.maxSources, t.delay, t.budget)
	if err != nil {
		return fmt.Errorf("harvest batch failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "HarvestBatch",
		"duration", t.GetDuration(),
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)

	return nil
}
