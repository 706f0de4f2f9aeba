package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// SweepAccountTask re-harvests every active source owned by one
// account, on demand.
type SweepAccountTask struct {
	Task
	runner    BatchRunner
	accountID string
}

func NewSweepAccountTask(runner BatchRunner, accountID string) *SweepAccountTask {
	return &SweepAccountTask{
		Task:      NewTask(TaskTypeSweepAccount, accountID),
		runner:    runner,
		accountID: accountID,
	}
}

func (t *SweepAccountTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.runner.SweepAccount(ctx, t.accountID)
	if err != nil {
		return fmt.Errorf("account sweep failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "SweepAccount",
		"account", t.accountID,
		"duration", t.GetDuration(),
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)

	return nil
}
