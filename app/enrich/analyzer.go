package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/reelradar/harvester/app/database"
	"github.com/reelradar/harvester/app/scrape"
)

const (
	analysisBatchSize      = 10
	analysisSelectionLimit = 500
	interBatchPause        = 2 * time.Second
)

// AnalysisClient is the slice of the model client Stage B needs.
type AnalysisClient interface {
	AnalyzeContent(ctx context.Context, batch []ContentForAnalysis) ([]AnalysisResult, error)
}

// AnalyzeStats summarizes one Stage B invocation.
type AnalyzeStats struct {
	Eligible int
	Analyzed int
	Batches  int
}

// Analyzer runs Stage B: semantic analysis of items above the absolute
// view threshold that carry no analysis timestamp yet. The selection
// is recomputed from current state on every invocation, so a crashed
// or partial run simply resumes with whatever is still unanalyzed. A
// failed batch is logged and left for the next invocation.
type Analyzer struct {
	itemRepo database.ItemRepository
	client   AnalysisClient
	minViews int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAnalyzer(itemRepo database.ItemRepository, client AnalysisClient, minViews int64) *Analyzer {
	return &Analyzer{
		itemRepo: itemRepo,
		client:   client,
		minViews: minViews,
		now:      time.Now,
		sleep:    ctxSleep,
	}
}

func (a *Analyzer) Run(ctx context.Context, datasetID string) (AnalyzeStats, error) {
	stats := AnalyzeStats{}

	items, err := a.itemRepo.GetItemsForAnalysis(datasetID, a.minViews, analysisSelectionLimit)
	if err != nil {
		return stats, err
	}
	stats.Eligible = len(items)

	if len(items) == 0 {
		slog.Debug("No items pending analysis", "dataset_id", datasetID, "min_views", a.minViews)
		return stats, nil
	}

	slog.Info("Analyzing content", "dataset_id", datasetID, "eligible", len(items), "batch_size", analysisBatchSize)

	for start := 0; start < len(items); start += analysisBatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := start + analysisBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		stats.Batches++

		if start > 0 {
			if err := a.sleep(ctx, interBatchPause); err != nil {
				return stats, err
			}
		}

		results, err := a.client.AnalyzeContent(ctx, buildAnalysisBatch(batch))
		if err != nil {
			// The whole batch stays unanalyzed and is re-selected next
			// invocation.
			slog.Error("Analysis batch failed", "dataset_id", datasetID, "batch", stats.Batches, "error", err)
			continue
		}

		analyzedAt := a.now().UTC()
		for _, result := range results {
			analysis := database.ItemAnalysis{
				Topic:            result.Topic,
				Subtopic:         result.Subtopic,
				HookType:         result.HookType,
				ContentFormula:   result.ContentFormula,
				Tags:             result.Tags,
				SuccessReason:    result.SuccessReason,
				EmotionalTrigger: result.EmotionalTrigger,
				TargetAudience:   result.TargetAudience,
			}
			if err := a.itemRepo.SetAnalysisResult(result.ID, analysis, analyzedAt); err != nil {
				slog.Error("Failed to store analysis result", "item_id", result.ID, "error", err)
				continue
			}
			stats.Analyzed++
		}
	}

	slog.Info("Content analysis finished",
		"dataset_id", datasetID,
		"eligible", stats.Eligible,
		"analyzed", stats.Analyzed,
		"batches", stats.Batches)

	return stats, nil
}

func buildAnalysisBatch(items []database.ContentItem) []ContentForAnalysis {
	batch := make([]ContentForAnalysis, 0, len(items))
	for _, item := range items {
		var description *string
		if item.Description != "" {
			trimmed := item.Description
			if runes := []rune(trimmed); len(runes) > maxDescriptionLength {
				trimmed = string(runes[:maxDescriptionLength])
			}
			description = &trimmed
		}

		username := ""
		if item.SourceURL != "" {
			if extracted, err := scrape.ExtractUsername(item.SourceURL); err == nil {
				username = extracted
			}
		}

		batch = append(batch, ContentForAnalysis{
			ID:             item.ID,
			Headline:       item.Headline,
			Description:    description,
			ContentType:    item.ContentType,
			Views:          item.Views,
			ViralityScore:  item.ViralityScore,
			SourceUsername: username,
		})
	}
	return batch
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
