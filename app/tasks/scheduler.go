package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reelradar/harvester/app/cfg"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Exactly one worker: sources and enrichment items must be processed
// strictly sequentially with enforced delays so the external provider
// never sees parallel traffic from this service. The single worker also
// gives per-source mutual exclusion in-process: two harvests of the
// same source cannot overlap.
const workerCount = 1

type Scheduler struct {
	runner BatchRunner

	maxSources int
	delay      time.Duration
	budget     time.Duration
	interval   time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(runner BatchRunner) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		runner:     runner,
		maxSources: cfg.MaxSourcesPerRun,
		delay:      time.Duration(cfg.InterSourceDelay) * time.Second,
		budget:     time.Duration(cfg.WallClockBudget) * time.Second,
		interval:   time.Duration(cfg.SchedulerInterval) * time.Second,
		ctx:        ctx,
		cancel:     cancel,
		taskQueue:  make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueBatch()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueBatch() {
	task := NewHarvestBatchTask(s.runner, s.maxSources, s.delay, s.budget)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue HarvestBatchTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 15*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			// Tracked by the WaitGroup so Stop cannot close the queue
			// while a retry is still pending.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()

				select {
				case <-time.After(retryDelay):
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				}

				if retryErr := s.EnqueueTask(task); retryErr != nil {
					slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
