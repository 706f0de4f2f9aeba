package database

import (
	"time"
)

// RunStatus is the closed set of parse run states. A run transitions
// exactly once, from Running to either Succeeded or Failed.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

type Dataset struct {
	ID        string
	AccountID string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Source is a tracked external profile with harvesting filters,
// owned by a dataset. Deactivated rather than deleted.
type Source struct {
	ID             string
	DatasetID      string
	ProfileURL     string
	Username       string
	Active         bool
	ContentTypes   []string // allowed normalized types, e.g. ["Reel","Carousel"]
	DaysLimit      int      // recency window in days
	MinViewsFilter int
	MinLikesFilter int
	FetchLimit     int // max items per run
	LastScrapedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ContentItem is one normalized, optionally enriched external post.
// Counter fields are refreshed on re-harvest; enrichment fields are
// written only by the enrichment stages.
type ContentItem struct {
	ID          string
	ExternalID  string
	DatasetID   string
	SourceURL   string
	OriginalURL string
	CoverURL    string
	VideoURL    string
	Views       int64
	Likes       int64
	Comments    int64
	PublishedAt time.Time
	ContentType string
	Description string

	Headline      *string
	Transcript    *string
	ViralityScore *float64
	Processed     bool
	Approved      bool

	AITopic            *string
	AISubtopic         *string
	AIHookType         *string
	AIContentFormula   *string
	AITags             []string
	AISuccessReason    *string
	AIEmotionalTrigger *string
	AITargetAudience   *string
	AIAnalyzedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParseRun is the audit record of a single harvest invocation for
// one source.
type ParseRun struct {
	ID          string
	SourceID    string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	DaysRange   int
	PostsFound  int
	PostsAdded  int
	SkipReasons map[string]int
	Error       *string
}
