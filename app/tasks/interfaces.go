package tasks

import (
	"context"
	"time"

	"github.com/reelradar/harvester/app/enrich"
	"github.com/reelradar/harvester/app/harvest"
)

// TaskSchedulerInterface is what the main application and the API use
// to drive background work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// BatchRunner is the harvest runner surface consumed by tasks.
type BatchRunner interface {
	RunBatch(ctx context.Context, maxSources int, delay, budget time.Duration) (harvest.Summary, error)
	SweepAccount(ctx context.Context, accountID string) (harvest.Summary, error)
}

// HeadlineStage runs Stage A for one dataset.
type HeadlineStage interface {
	Run(ctx context.Context, datasetID string, limit int) (enrich.HeadlineStats, error)
}

// AnalysisStage runs Stage B for one dataset.
type AnalysisStage interface {
	Run(ctx context.Context, datasetID string) (enrich.AnalyzeStats, error)
}
