package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reelradar/harvester/app/database"
	"github.com/reelradar/harvester/app/scrape"
)

var ErrSourceNotFound = errors.New("source not found")

// Skip-reason counter keys, one per filter rule.
const (
	SkipTooOld         = "too_old"
	SkipBelowThreshold = "below_threshold"
	SkipWrongType      = "wrong_type"
)

// PostFetcher is the slice of the scrape client the orchestrator needs.
type PostFetcher interface {
	FetchPosts(ctx context.Context, username string, maxItems, daysLimit int) ([]scrape.RawPost, error)
}

// Result summarizes one harvest of one source.
type Result struct {
	Found   int
	Added   int
	Updated int
	Skipped map[string]int
}

// Orchestrator runs the per-source pipeline: fetch, normalize, filter,
// upsert, audit. Provider failures are converted into a Failed audit
// record here and never abort anything beyond this source.
type Orchestrator struct {
	sourceRepo database.SourceRepository
	itemRepo   database.ItemRepository
	runRepo    database.RunRepository
	fetcher    PostFetcher
	scorer     *Scorer

	now func() time.Time
}

func NewOrchestrator(sourceRepo database.SourceRepository, itemRepo database.ItemRepository, runRepo database.RunRepository, fetcher PostFetcher, scorer *Scorer) *Orchestrator {
	return &Orchestrator{
		sourceRepo: sourceRepo,
		itemRepo:   itemRepo,
		runRepo:    runRepo,
		fetcher:    fetcher,
		scorer:     scorer,
		now:        time.Now,
	}
}

// Harvest processes a single source end to end. A returned error means
// the run was finalized as Failed; the source's last-scraped timestamp
// is left untouched so it stays a scheduling priority.
func (o *Orchestrator) Harvest(ctx context.Context, sourceID string) (Result, error) {
	result := Result{Skipped: make(map[string]int)}

	source, err := o.sourceRepo.GetSource(sourceID)
	if err != nil {
		return result, fmt.Errorf("failed to load source %s: %w", sourceID, err)
	}
	if source == nil {
		return result, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
	}

	runID, err := o.runRepo.StartRun(source.ID, source.DaysLimit)
	if err != nil {
		return result, fmt.Errorf("failed to start parse run: %w", err)
	}

	result, err = o.run(ctx, source, runID)
	if err != nil {
		if failErr := o.runRepo.FailRun(runID, err.Error()); failErr != nil {
			slog.Error("Failed to finalize parse run as failed", "run_id", runID, "error", failErr)
		}
		return result, err
	}

	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, source *database.Source, runID string) (Result, error) {
	result := Result{Skipped: make(map[string]int)}

	username := source.Username
	if username == "" {
		extracted, err := scrape.ExtractUsername(source.ProfileURL)
		if err != nil {
			return result, err
		}
		username = extracted
	}

	slog.Info("Harvesting source", "source_id", source.ID, "username", username, "fetch_limit", source.FetchLimit, "days_limit", source.DaysLimit)

	posts, err := o.fetcher.FetchPosts(ctx, username, source.FetchLimit, source.DaysLimit)
	if err != nil {
		return result, fmt.Errorf("scrape of @%s failed: %w", username, err)
	}

	result.Found = len(posts)

	if err := o.runRepo.UpdateRunProgress(runID, result.Found); err != nil {
		slog.Warn("Failed to record run progress", "run_id", runID, "error", err)
	}

	cutoff := o.now().UTC().AddDate(0, 0, -source.DaysLimit)
	allowed := make(map[string]bool, len(source.ContentTypes))
	for _, t := range source.ContentTypes {
		allowed[t] = true
	}

	for _, post := range posts {
		contentType := scrape.NormalizeContentType(post.Type, post.IsVideo || post.VideoURL != "")

		// First matching rule wins: exactly one counter per skip.
		switch {
		case post.Timestamp.Before(cutoff):
			result.Skipped[SkipTooOld]++
			continue
		case post.Views < int64(source.MinViewsFilter) || post.Likes < int64(source.MinLikesFilter):
			result.Skipped[SkipBelowThreshold]++
			continue
		case !allowed[string(contentType)]:
			result.Skipped[SkipWrongType]++
			continue
		}

		inserted, err := o.itemRepo.UpsertItem(buildItem(post, source.DatasetID, contentType))
		if err != nil {
			return result, fmt.Errorf("failed to persist post %s: %w", post.ExternalID, err)
		}
		if inserted {
			result.Added++
		} else {
			result.Updated++
		}
	}

	if err := o.runRepo.CompleteRun(runID, result.Found, result.Added, result.Skipped); err != nil {
		return result, fmt.Errorf("failed to finalize parse run: %w", err)
	}

	if err := o.sourceRepo.TouchLastScraped(source.ID, o.now().UTC()); err != nil {
		slog.Error("Failed to update last scraped timestamp", "source_id", source.ID, "error", err)
	}

	if result.Added > 0 {
		if err := o.scorer.Rescore(source.DatasetID); err != nil {
			slog.Error("Failed to recompute virality scores", "dataset_id", source.DatasetID, "error", err)
		}
	}

	slog.Info("Harvest completed",
		"source_id", source.ID,
		"found", result.Found,
		"added", result.Added,
		"updated", result.Updated,
		"skipped", result.Skipped)

	return result, nil
}

func buildItem(post scrape.RawPost, datasetID string, contentType scrape.ContentType) database.ContentItem {
	comments := post.Comments
	if comments < 0 {
		comments = 0
	}

	sourceURL := ""
	if post.Owner != "" {
		sourceURL = "https://instagram.com/" + post.Owner
	}

	return database.ContentItem{
		ExternalID:  post.ExternalID,
		DatasetID:   datasetID,
		SourceURL:   sourceURL,
		OriginalURL: post.PostURL,
		CoverURL:    post.DisplayURL,
		VideoURL:    post.VideoURL,
		Views:       post.Views,
		Likes:       post.Likes,
		Comments:    comments,
		PublishedAt: post.Timestamp.UTC(),
		ContentType: string(contentType),
		Description: post.Caption,
	}
}
