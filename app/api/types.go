package api

import (
	"time"

	"github.com/reelradar/harvester/app/database"
	"github.com/reelradar/harvester/app/tasks"
)

// failureFreshness bounds how long a failed run stays visible in the
// status projection; older failures are stale and reported as idle.
const failureFreshness = 5 * time.Minute

// analysisActivityWindow is the recency heuristic behind the progress
// projection's is_running flag: analysis is considered in flight when
// something was stamped within it.
const analysisActivityWindow = 2 * time.Minute

// Options carries the configuration slice the handlers need.
type Options struct {
	MaxSourcesPerRun int
	InterSourceDelay time.Duration
	WallClockBudget  time.Duration
	AnalysisMinViews int64
	Version          string
}

type Handler struct {
	datasetRepo database.DatasetRepository
	sourceRepo  database.SourceRepository
	itemRepo    database.ItemRepository
	runRepo     database.RunRepository
	scheduler   tasks.TaskSchedulerInterface
	runner      tasks.BatchRunner
	headlines   tasks.HeadlineStage
	analysis    tasks.AnalysisStage
	opts        Options

	now func() time.Time
}

type createDatasetRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
}

type createSourceRequest struct {
	DatasetID      string   `json:"dataset_id" binding:"required"`
	ProfileURL     string   `json:"profile_url" binding:"required"`
	Username       string   `json:"username"`
	ContentTypes   []string `json:"content_types"`
	DaysLimit      int      `json:"days_limit"`
	MinViewsFilter int      `json:"min_views_filter"`
	MinLikesFilter int      `json:"min_likes_filter"`
	FetchLimit     int      `json:"fetch_limit"`
}

type sourceResponse struct {
	ID             string     `json:"id"`
	DatasetID      string     `json:"dataset_id"`
	ProfileURL     string     `json:"profile_url"`
	Username       string     `json:"username"`
	Active         bool       `json:"active"`
	ContentTypes   []string   `json:"content_types"`
	DaysLimit      int        `json:"days_limit"`
	MinViewsFilter int        `json:"min_views_filter"`
	MinLikesFilter int        `json:"min_likes_filter"`
	FetchLimit     int        `json:"fetch_limit"`
	LastScrapedAt  *time.Time `json:"last_scraped_at"`
}

type statusResponse struct {
	Running    bool   `json:"running"`
	Source     string `json:"source,omitempty"`
	DaysRange  int    `json:"days_range,omitempty"`
	MinViews   int    `json:"min_views,omitempty"`
	PostsFound int    `json:"posts_found,omitempty"`
	Error      bool   `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

type progressResponse struct {
	Total     int  `json:"total"`
	Eligible  int  `json:"eligible"`
	Analyzed  int  `json:"analyzed"`
	Pending   int  `json:"pending"`
	IsRunning bool `json:"is_running"`
}

type itemResponse struct {
	ID             string     `json:"id"`
	ExternalID     string     `json:"external_id"`
	DatasetID      string     `json:"dataset_id"`
	SourceURL      string     `json:"source_url"`
	OriginalURL    string     `json:"original_url"`
	CoverURL       string     `json:"cover_url"`
	VideoURL       string     `json:"video_url,omitempty"`
	Views          int64      `json:"views"`
	Likes          int64      `json:"likes"`
	Comments       int64      `json:"comments"`
	PublishedAt    time.Time  `json:"published_at"`
	ContentType    string     `json:"content_type"`
	Description    string     `json:"description,omitempty"`
	Headline       *string    `json:"headline"`
	Transcript     *string    `json:"transcript,omitempty"`
	ViralityScore  *float64   `json:"virality_score"`
	Topic          *string    `json:"ai_topic,omitempty"`
	Subtopic       *string    `json:"ai_subtopic,omitempty"`
	HookType       *string    `json:"ai_hook_type,omitempty"`
	ContentFormula *string    `json:"ai_content_formula,omitempty"`
	Tags           []string   `json:"ai_tags,omitempty"`
	SuccessReason  *string    `json:"ai_success_reason,omitempty"`
	Trigger        *string    `json:"ai_emotional_trigger,omitempty"`
	TargetAudience *string    `json:"ai_target_audience,omitempty"`
	AnalyzedAt     *time.Time `json:"ai_analyzed_at,omitempty"`
}
