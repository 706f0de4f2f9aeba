package enrich

import (
	"context"
	"log/slog"

	"github.com/reelradar/harvester/app/database"
)

// HeadlineClient is the slice of the model client Stage A needs.
type HeadlineClient interface {
	ExtractHeadline(ctx context.Context, imageURL string) (string, error)
	Transcribe(ctx context.Context, videoURL string) (string, error)
}

// HeadlineStats summarizes one Stage A invocation.
type HeadlineStats struct {
	Selected  int
	Processed int
	Failed    int
}

// HeadlineExtractor runs Stage A: for every item with a cover image
// and no headline yet, ask the vision model for the overlaid text.
// Items are handled strictly one at a time. An extraction failure
// leaves the item unprocessed so the next invocation picks it up
// again; a clean "no text" answer stores a null headline and marks the
// item processed.
type HeadlineExtractor struct {
	itemRepo database.ItemRepository
	client   HeadlineClient
}

func NewHeadlineExtractor(itemRepo database.ItemRepository, client HeadlineClient) *HeadlineExtractor {
	return &HeadlineExtractor{itemRepo: itemRepo, client: client}
}

func (h *HeadlineExtractor) Run(ctx context.Context, datasetID string, limit int) (HeadlineStats, error) {
	stats := HeadlineStats{}

	items, err := h.itemRepo.GetItemsForHeadlineExtraction(datasetID, limit)
	if err != nil {
		return stats, err
	}
	stats.Selected = len(items)

	if len(items) == 0 {
		slog.Debug("No items pending headline extraction", "dataset_id", datasetID)
		return stats, nil
	}

	slog.Info("Extracting headlines", "dataset_id", datasetID, "items", len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		headline, err := h.client.ExtractHeadline(ctx, item.CoverURL)
		if err != nil {
			// Leave the item eligible for the next run.
			stats.Failed++
			slog.Error("Headline extraction failed", "item_id", item.ID, "error", err)
			continue
		}

		var headlinePtr *string
		if headline != "" {
			headlinePtr = &headline
		}

		var transcriptPtr *string
		if item.VideoURL != "" {
			transcript, err := h.client.Transcribe(ctx, item.VideoURL)
			if err != nil {
				// Transcription is best-effort on top of Stage A.
				slog.Warn("Transcription failed", "item_id", item.ID, "error", err)
			} else if transcript != "" {
				transcriptPtr = &transcript
			}
		}

		if err := h.itemRepo.SetHeadlineResult(item.ID, headlinePtr, transcriptPtr); err != nil {
			stats.Failed++
			slog.Error("Failed to store headline result", "item_id", item.ID, "error", err)
			continue
		}
		stats.Processed++
	}

	slog.Info("Headline extraction finished",
		"dataset_id", datasetID,
		"selected", stats.Selected,
		"processed", stats.Processed,
		"failed", stats.Failed)

	return stats, nil
}
