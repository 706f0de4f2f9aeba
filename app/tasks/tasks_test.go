package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reelradar/harvester/app/enrich"
	"github.com/reelradar/harvester/app/harvest"
)

type mockRunner struct {
	batchCalls int
	sweepCalls int
	accountID  string
	summary    harvest.Summary
	err        error
}

func (m *mockRunner) RunBatch(ctx context.Context, maxSources int, delay, budget time.Duration) (harvest.Summary, error) {
	m.batchCalls++
	return m.summary, m.err
}

func (m *mockRunner) SweepAccount(ctx context.Context, accountID string) (harvest.Summary, error) {
	m.sweepCalls++
	m.accountID = accountID
	return m.summary, m.err
}

type mockHeadlineStage struct {
	datasetID string
	stats     enrich.HeadlineStats
	err       error
}

func (m *mockHeadlineStage) Run(ctx context.Context, datasetID string, limit int) (enrich.HeadlineStats, error) {
	m.datasetID = datasetID
	return m.stats, m.err
}

type mockAnalysisStage struct {
	datasetID string
	stats     enrich.AnalyzeStats
	err       error
}

func (m *mockAnalysisStage) Run(ctx context.Context, datasetID string) (enrich.AnalyzeStats, error) {
	m.datasetID = datasetID
	return m.stats, m.err
}

func TestTaskRetryBookkeeping(t *testing.T) {
	task := NewTask(TaskTypeHarvestBatch, "")

	if task.GetRetryCount() != 0 {
		t.Errorf("new task retry count = %d, want 0", task.GetRetryCount())
	}
	if !task.CanRetry() {
		t.Error("new task CanRetry() = false, want true")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("CanRetry() = true after max retries, want false")
	}
}

func TestTaskIDsUnique(t *testing.T) {
	a := NewTask(TaskTypeSweepAccount, "acct-1")
	b := NewTask(TaskTypeSweepAccount, "acct-1")
	if a.GetID() == b.GetID() {
		t.Errorf("two tasks share id %s", a.GetID())
	}
}

func TestHarvestBatchTaskExecute(t *testing.T) {
	runner := &mockRunner{summary: harvest.Summary{Processed: 3, Succeeded: 3}}
	task := NewHarvestBatchTask(runner, 10, 30*time.Second, 10*time.Minute)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if runner.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", runner.batchCalls)
	}
}

func TestHarvestBatchTaskSurfacesInfrastructureError(t *testing.T) {
	runner := &mockRunner{err: errors.New("database unavailable")}
	task := NewHarvestBatchTask(runner, 10, 0, time.Minute)
	task.Start()

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Execute() error = nil, want infrastructure error surfaced for retry")
	}
}

func TestSweepAccountTaskExecute(t *testing.T) {
	runner := &mockRunner{}
	task := NewSweepAccountTask(runner, "acct-7")
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if runner.accountID != "acct-7" {
		t.Errorf("swept account = %q, want acct-7", runner.accountID)
	}
	if task.GetSubject() != "acct-7" {
		t.Errorf("subject = %q, want acct-7", task.GetSubject())
	}
}

func TestExtractHeadlinesTaskExecute(t *testing.T) {
	stage := &mockHeadlineStage{stats: enrich.HeadlineStats{Selected: 2, Processed: 2}}
	task := NewExtractHeadlinesTask(stage, "ds-1")
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if stage.datasetID != "ds-1" {
		t.Errorf("stage ran for dataset %q, want ds-1", stage.datasetID)
	}
}

func TestAnalyzeContentTaskExecute(t *testing.T) {
	stage := &mockAnalysisStage{stats: enrich.AnalyzeStats{Eligible: 5, Analyzed: 5}}
	task := NewAnalyzeContentTask(stage, "ds-2")
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if stage.datasetID != "ds-2" {
		t.Errorf("stage ran for dataset %q, want ds-2", stage.datasetID)
	}
}

func TestTaskExecuteHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &mockRunner{}
	task := NewHarvestBatchTask(runner, 10, 0, time.Minute)

	if err := task.Execute(ctx); err == nil {
		t.Fatal("Execute() error = nil with cancelled context, want error")
	}
	if runner.batchCalls != 0 {
		t.Errorf("batch calls = %d, want 0 after cancellation", runner.batchCalls)
	}
}

func newTestScheduler(runner BatchRunner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:     runner,
		maxSources: 1,
		interval:   time.Hour,
		ctx:        ctx,
		cancel:     cancel,
		taskQueue:  make(chan TaskInterface, 10),
	}
}

// A failing task schedules a delayed retry goroutine; Stop must wait
// for it before closing the queue, otherwise the retry can send on a
// closed channel and panic.
func TestStopWaitsForScheduledRetry(t *testing.T) {
	runner := &mockRunner{err: errors.New("provider down")}
	s := newTestScheduler(runner)

	task := NewHarvestBatchTask(runner, 1, 0, time.Minute)
	s.executeTask(0, task)

	if task.GetRetryCount() != 1 {
		t.Fatalf("retry count after failed execution = %d, want 1", task.GetRetryCount())
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return while a retry was pending")
	}

	// The pending retry was abandoned on shutdown, not re-enqueued.
	if got := len(s.taskQueue); got != 0 {
		t.Errorf("queued tasks after Stop() = %d, want 0", got)
	}
}
