package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reelradar/harvester/app/database"
)

// Harvester is what the runner drives; satisfied by *Orchestrator.
type Harvester interface {
	Harvest(ctx context.Context, sourceID string) (Result, error)
}

// SourceOutcome is the per-source detail of a batch.
type SourceOutcome struct {
	SourceID string
	Username string
	Found    int
	Added    int
	Error    string
}

// Summary aggregates one batch invocation.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Details   []SourceOutcome
}

// Runner sequences sources through the orchestrator: staleness-first
// selection, strictly sequential processing with an enforced delay
// between sources, per-source failure isolation, and a hard wall-clock
// budget. The time source and sleep are injectable so batch ordering
// and budget expiry are testable without real clocks.
type Runner struct {
	sourceRepo   database.SourceRepository
	orchestrator Harvester

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRunner(sourceRepo database.SourceRepository, orchestrator Harvester) *Runner {
	return &Runner{
		sourceRepo:   sourceRepo,
		orchestrator: orchestrator,
		now:          time.Now,
		sleep:        ctxSleep,
	}
}

// RunBatch processes up to maxSources stalest active sources. Sources
// not reached before the budget expires are left for the next
// invocation; their staleness keeps them at the front of the queue.
func (r *Runner) RunBatch(ctx context.Context, maxSources int, delay, budget time.Duration) (Summary, error) {
	sources, err := r.sourceRepo.GetStaleActiveSources(maxSources)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to select stale sources: %w", err)
	}

	deadline := r.now().Add(budget)
	return r.process(ctx, sources, delay, &deadline)
}

// SweepAccount processes every active source owned by one account,
// with the same sequencing and isolation guarantees as RunBatch but no
// wall-clock budget.
func (r *Runner) SweepAccount(ctx context.Context, accountID string) (Summary, error) {
	sources, err := r.sourceRepo.GetActiveSourcesForAccount(accountID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to select sources for account %s: %w", accountID, err)
	}

	return r.process(ctx, sources, 0, nil)
}

func (r *Runner) process(ctx context.Context, sources []database.Source, delay time.Duration, deadline *time.Time) (Summary, error) {
	summary := Summary{}

	for i, source := range sources {
		if deadline != nil && !r.now().Before(*deadline) {
			slog.Warn("Batch budget exceeded, deferring remaining sources", "remaining", len(sources)-i)
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if i > 0 && delay > 0 {
			if err := r.sleep(ctx, delay); err != nil {
				return summary, err
			}
		}

		outcome := SourceOutcome{SourceID: source.ID, Username: source.Username}
		result, err := r.orchestrator.Harvest(ctx, source.ID)
		outcome.Found = result.Found
		outcome.Added = result.Added

		summary.Processed++
		if err != nil {
			// Per-source isolation: the failure is already on the
			// audit record, the batch moves on.
			outcome.Error = err.Error()
			summary.Failed++
			slog.Error("Source harvest failed", "source_id", source.ID, "error", err)
		} else {
			summary.Succeeded++
		}

		summary.Details = append(summary.Details, outcome)
	}

	slog.Info("Batch finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)

	return summary, nil
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
