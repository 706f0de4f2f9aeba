package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/reelradar/harvester/app/database"
	"github.com/reelradar/harvester/app/scrape"
)

type mockSourceRepo struct {
	sources map[string]*database.Source
	stale   []database.Source
	account []database.Source
	touched map[string]time.Time
}

func newMockSourceRepo() *mockSourceRepo {
	return &mockSourceRepo{
		sources: make(map[string]*database.Source),
		touched: make(map[string]time.Time),
	}
}

func (m *mockSourceRepo) CreateSource(source database.Source) (string, error) {
	return source.ID, nil
}

func (m *mockSourceRepo) GetSource(id string) (*database.Source, error) {
	return m.sources[id], nil
}

func (m *mockSourceRepo) GetSourcesByDataset(datasetID string) ([]database.Source, error) {
	return nil, nil
}

func (m *mockSourceRepo) GetStaleActiveSources(limit int) ([]database.Source, error) {
	if len(m.stale) > limit {
		return m.stale[:limit], nil
	}
	return m.stale, nil
}

func (m *mockSourceRepo) GetActiveSourcesForAccount(accountID string) ([]database.Source, error) {
	return m.account, nil
}

func (m *mockSourceRepo) TouchLastScraped(sourceID string, scrapedAt time.Time) error {
	m.touched[sourceID] = scrapedAt
	return nil
}

func (m *mockSourceRepo) SetSourceActive(sourceID string, active bool) error {
	return nil
}

type mockItemRepo struct {
	database.ItemRepository

	existing  map[string]bool // keyed externalID, true = already stored
	upserted  []database.ContentItem
	rescored  []string
	upsertErr error
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{existing: make(map[string]bool)}
}

func (m *mockItemRepo) UpsertItem(item database.ContentItem) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	m.upserted = append(m.upserted, item)
	if m.existing[item.ExternalID] {
		return false, nil
	}
	m.existing[item.ExternalID] = true
	return true, nil
}

func (m *mockItemRepo) RecomputeViralityScores(datasetID string) error {
	m.rescored = append(m.rescored, datasetID)
	return nil
}

type finalization struct {
	runID       string
	postsFound  int
	postsAdded  int
	skipReasons map[string]int
	errMessage  string
}

type mockRunRepo struct {
	database.RunRepository

	nextRunID string
	started   []string
	progress  []int
	completed []finalization
	failed    []finalization
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{nextRunID: "run-1"}
}

func (m *mockRunRepo) StartRun(sourceID string, daysRange int) (string, error) {
	m.started = append(m.started, sourceID)
	return m.nextRunID, nil
}

func (m *mockRunRepo) UpdateRunProgress(runID string, postsFound int) error {
	m.progress = append(m.progress, postsFound)
	return nil
}

func (m *mockRunRepo) CompleteRun(runID string, postsFound, postsAdded int, skipReasons map[string]int) error {
	m.completed = append(m.completed, finalization{
		runID:       runID,
		postsFound:  postsFound,
		postsAdded:  postsAdded,
		skipReasons: skipReasons,
	})
	return nil
}

func (m *mockRunRepo) FailRun(runID string, message string) error {
	m.failed = append(m.failed, finalization{runID: runID, errMessage: message})
	return nil
}

type mockFetcher struct {
	posts []scrape.RawPost
	err   error
}

func (m *mockFetcher) FetchPosts(ctx context.Context, username string, maxItems, daysLimit int) ([]scrape.RawPost, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.posts, nil
}

type mockHarvester struct {
	order   []string
	failFor map[string]bool
	results map[string]Result
}

func (m *mockHarvester) Harvest(ctx context.Context, sourceID string) (Result, error) {
	m.order = append(m.order, sourceID)
	result := m.results[sourceID]
	if m.failFor[sourceID] {
		return result, fmt.Errorf("harvest of %s failed", sourceID)
	}
	return result, nil
}
