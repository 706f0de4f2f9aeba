package database

import (
	"time"
)

type DatasetRepository interface {
	CreateDataset(accountID, name string) (string, error)
	GetDataset(id string) (*Dataset, error)
}

type SourceRepository interface {
	CreateSource(source Source) (string, error)
	GetSource(id string) (*Source, error)
	GetSourcesByDataset(datasetID string) ([]Source, error)

	// GetStaleActiveSources returns up to limit active sources ordered
	// by last_scraped_at ascending, never-scraped first.
	GetStaleActiveSources(limit int) ([]Source, error)
	GetActiveSourcesForAccount(accountID string) ([]Source, error)

	TouchLastScraped(sourceID string, scrapedAt time.Time) error
	SetSourceActive(sourceID string, active bool) error
}

// ItemAnalysis carries the semantic tag fields written by the
// analysis stage.
type ItemAnalysis struct {
	Topic            string
	Subtopic         string
	HookType         string
	ContentFormula   string
	Tags             []string
	SuccessReason    string
	EmotionalTrigger string
	TargetAudience   string
}

// AnalysisProgress is the read-only projection of semantic analysis
// state for one dataset.
type AnalysisProgress struct {
	Total            int
	Eligible         int
	Analyzed         int
	RecentlyAnalyzed int
}

type ItemRepository interface {
	// UpsertItem inserts a new item or, when (external_id, dataset_id)
	// already exists, refreshes only the volatile counters. Reports
	// whether a new row was inserted.
	UpsertItem(item ContentItem) (bool, error)

	GetItem(id string) (*ContentItem, error)
	GetItemsByDataset(datasetID string) ([]ContentItem, error)
	GetAllItems() ([]ContentItem, error)
	GetItemCount(datasetID string) (int, error)

	GetItemsForHeadlineExtraction(datasetID string, limit int) ([]ContentItem, error)
	SetHeadlineResult(itemID string, headline *string, transcript *string) error

	GetItemsForAnalysis(datasetID string, minViews int64, limit int) ([]ContentItem, error)
	SetAnalysisResult(itemID string, analysis ItemAnalysis, analyzedAt time.Time) error
	GetAnalysisProgress(datasetID string, minViews int64, activityWindow time.Duration) (AnalysisProgress, error)

	GetDatasetAverageViews(datasetID string) (float64, error)
	RecomputeViralityScores(datasetID string) error
}

type RunRepository interface {
	// StartRun creates a Running audit record and returns its id.
	StartRun(sourceID string, daysRange int) (string, error)

	// UpdateRunProgress records posts found so far on a running run.
	UpdateRunProgress(runID string, postsFound int) error

	// CompleteRun and FailRun finalize a run exactly once: they only
	// transition rows still in the Running state.
	CompleteRun(runID string, postsFound, postsAdded int, skipReasons map[string]int) error
	FailRun(runID string, message string) error

	GetRun(runID string) (*ParseRun, error)
	GetRunningRunForDataset(datasetID string) (*ParseRun, error)
	GetRecentFailedRunForDataset(datasetID string, since time.Time) (*ParseRun, error)
	GetRunsForSource(sourceID string, limit int) ([]ParseRun, error)
}
