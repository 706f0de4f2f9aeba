package harvest

import (
	"context"
	"testing"
	"time"

	"github.com/reelradar/harvester/app/database"
)

func fakeClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func testRunner(sourceRepo *mockSourceRepo, harvester *mockHarvester, step time.Duration) (*Runner, *[]time.Duration) {
	r := NewRunner(sourceRepo, harvester)
	r.now = fakeClock(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC), step)

	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func batchSources(ids ...string) []database.Source {
	sources := make([]database.Source, 0, len(ids))
	for _, id := range ids {
		sources = append(sources, database.Source{ID: id, Username: id})
	}
	return sources
}

func TestRunBatchSequentialWithDelay(t *testing.T) {
	sourceRepo := newMockSourceRepo()
	sourceRepo.stale = batchSources("stalest", "stale", "fresh")
	harvester := &mockHarvester{
		results: map[string]Result{
			"stalest": {Found: 5, Added: 2},
			"stale":   {Found: 3, Added: 1},
			"fresh":   {Found: 1, Added: 0},
		},
	}

	r, slept := testRunner(sourceRepo, harvester, 0)

	summary, err := r.RunBatch(context.Background(), 10, 30*time.Second, time.Hour)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if summary.Processed != 3 || summary.Succeeded != 3 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 3 processed, 3 succeeded", summary)
	}

	// Selection order is preserved: stalest first.
	want := []string{"stalest", "stale", "fresh"}
	for i, id := range want {
		if harvester.order[i] != id {
			t.Errorf("harvest order[%d] = %s, want %s", i, harvester.order[i], id)
		}
	}

	// Delay between sources, not before the first one.
	if len(*slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(*slept))
	}
	for _, d := range *slept {
		if d != 30*time.Second {
			t.Errorf("slept %v, want 30s", d)
		}
	}

	if summary.Details[0].Found != 5 || summary.Details[0].Added != 2 {
		t.Errorf("detail[0] = %+v, want found 5 added 2", summary.Details[0])
	}
}

func TestRunBatchRespectsMaxSources(t *testing.T) {
	sourceRepo := newMockSourceRepo()
	sourceRepo.stale = batchSources("a", "b", "c", "d")
	harvester := &mockHarvester{}

	r, _ := testRunner(sourceRepo, harvester, 0)

	summary, err := r.RunBatch(context.Background(), 2, 0, time.Hour)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2", summary.Processed)
	}
}

func TestRunBatchBudgetExpiry(t *testing.T) {
	sourceRepo := newMockSourceRepo()
	sourceRepo.stale = batchSources("a", "b", "c")
	harvester := &mockHarvester{}

	// Each clock read advances a minute; a 90s budget admits only the
	// first source before the deadline check trips.
	r, _ := testRunner(sourceRepo, harvester, time.Minute)

	summary, err := r.RunBatch(context.Background(), 10, 0, 90*time.Second)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if summary.Processed != 1 {
		t.Errorf("processed = %d, want 1 before budget expiry", summary.Processed)
	}
	if len(harvester.order) != 1 || harvester.order[0] != "a" {
		t.Errorf("harvested = %v, want only the first source", harvester.order)
	}
}

func TestRunBatchFailureIsolation(t *testing.T) {
	sourceRepo := newMockSourceRepo()
	sourceRepo.stale = batchSources("a", "b", "c")
	harvester := &mockHarvester{failFor: map[string]bool{"b": true}}

	r, _ := testRunner(sourceRepo, harvester, 0)

	summary, err := r.RunBatch(context.Background(), 10, 0, time.Hour)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if summary.Processed != 3 {
		t.Errorf("processed = %d, want 3 despite mid-batch failure", summary.Processed)
	}
	if summary.Failed != 1 || summary.Succeeded != 2 {
		t.Errorf("failed/succeeded = %d/%d, want 1/2", summary.Failed, summary.Succeeded)
	}
	if summary.Details[1].Error == "" {
		t.Error("failed source detail carries no error message")
	}
}

func TestSweepAccount(t *testing.T) {
	sourceRepo := newMockSourceRepo()
	sourceRepo.account = batchSources("owned-1", "owned-2")
	harvester := &mockHarvester{}

	r, slept := testRunner(sourceRepo, harvester, 0)

	summary, err := r.SweepAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("SweepAccount() error = %v", err)
	}

	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2", summary.Processed)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times, want 0 for an on-demand sweep", len(*slept))
	}
}
