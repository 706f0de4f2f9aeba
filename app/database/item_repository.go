package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ItemRepositoryImpl struct {
	db *DB
}

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

const itemColumns = `id, external_id, dataset_id, source_url, original_url, cover_url,
       video_url, views, likes, comments, published_at, content_type, description,
       headline, transcript, virality_score, processed, approved,
       ai_topic, ai_subtopic, ai_hook_type, ai_content_formula, ai_tags,
       ai_success_reason, ai_emotional_trigger, ai_target_audience, ai_analyzed_at,
       created_at, updated_at`

// UpsertItem inserts a new row keyed by (external_id, dataset_id), or
// refreshes only the volatile counters when the key already exists.
// Enrichment fields are never touched on the update path.
func (r *ItemRepositoryImpl) UpsertItem(item ContentItem) (bool, error) {
	var existingID string
	err := r.db.QueryRow(`
		SELECT id FROM content_items
		WHERE external_id = ? AND dataset_id = ?
	`, item.ExternalID, item.DatasetID).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to check existing item: %w", err)
	}

	if err == nil {
		_, err = r.db.Exec(`
			UPDATE content_items
			SET views = ?, likes = ?, comments = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, item.Views, item.Likes, item.Comments, existingID)
		if err != nil {
			return false, fmt.Errorf("failed to refresh item counters: %w", err)
		}
		return false, nil
	}

	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = r.db.Exec(`
		INSERT INTO content_items (id, external_id, dataset_id, source_url, original_url,
		                           cover_url, video_url, views, likes, comments,
		                           published_at, content_type, description, processed, approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
	`, id, item.ExternalID, item.DatasetID, item.SourceURL, item.OriginalURL,
		item.CoverURL, item.VideoURL, item.Views, item.Likes, item.Comments,
		item.PublishedAt.UTC(), item.ContentType, item.Description)
	if err != nil {
		return false, fmt.Errorf("failed to insert item: %w", err)
	}

	return true, nil
}

func (r *ItemRepositoryImpl) GetItem(id string) (*ContentItem, error) {
	row := r.db.QueryRow(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE id = ?
	`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

func (r *ItemRepositoryImpl) GetItemsByDataset(datasetID string) ([]ContentItem, error) {
	rows, err := r.db.Query(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE dataset_id = ?
		ORDER BY virality_score DESC NULLS LAST, views DESC
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for dataset: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (r *ItemRepositoryImpl) GetAllItems() ([]ContentItem, error) {
	rows, err := r.db.Query(`
		SELECT ` + itemColumns + `
		FROM content_items
		ORDER BY virality_score DESC NULLS LAST, views DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// GetItemCount counts items in one dataset, or across all datasets
// when datasetID is empty.
func (r *ItemRepositoryImpl) GetItemCount(datasetID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM content_items WHERE dataset_id = ? OR ? = ''", datasetID, datasetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// GetItemsForHeadlineExtraction selects items eligible for the headline
// stage: a cover image exists, no headline was stored yet, and the item
// has not been marked processed. Failed items stay unprocessed and are
// re-selected on the next run.
func (r *ItemRepositoryImpl) GetItemsForHeadlineExtraction(datasetID string, limit int) ([]ContentItem, error) {
	rows, err := r.db.Query(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE dataset_id = ?
		  AND cover_url != ''
		  AND headline IS NULL
		  AND processed = 0
		ORDER BY views DESC
		LIMIT ?
	`, datasetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for headline extraction: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (r *ItemRepositoryImpl) SetHeadlineResult(itemID string, headline *string, transcript *string) error {
	_, err := r.db.Exec(`
		UPDATE content_items
		SET headline = ?, transcript = ?, processed = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, headline, transcript, itemID)
	if err != nil {
		return fmt.Errorf("failed to store headline result: %w", err)
	}
	return nil
}

// GetItemsForAnalysis selects items eligible for semantic analysis:
// views at or above the absolute threshold and not analyzed yet. The
// selection is recomputed from current state on every invocation, which
// is what makes the stage resumable.
func (r *ItemRepositoryImpl) GetItemsForAnalysis(datasetID string, minViews int64, limit int) ([]ContentItem, error) {
	rows, err := r.db.Query(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE dataset_id = ?
		  AND views >= ?
		  AND ai_analyzed_at IS NULL
		ORDER BY views DESC
		LIMIT ?
	`, datasetID, minViews, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for analysis: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (r *ItemRepositoryImpl) SetAnalysisResult(itemID string, analysis ItemAnalysis, analyzedAt time.Time) error {
	tags, err := json.Marshal(analysis.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE content_items
		SET ai_topic = ?, ai_subtopic = ?, ai_hook_type = ?, ai_content_formula = ?,
		    ai_tags = ?, ai_success_reason = ?, ai_emotional_trigger = ?,
		    ai_target_audience = ?, ai_analyzed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, analysis.Topic, analysis.Subtopic, analysis.HookType, analysis.ContentFormula,
		string(tags), analysis.SuccessReason, analysis.EmotionalTrigger,
		analysis.TargetAudience, analyzedAt.UTC(), itemID)
	if err != nil {
		return fmt.Errorf("failed to store analysis result: %w", err)
	}
	return nil
}

func (r *ItemRepositoryImpl) GetAnalysisProgress(datasetID string, minViews int64, activityWindow time.Duration) (AnalysisProgress, error) {
	var p AnalysisProgress
	cutoff := time.Now().UTC().Add(-activityWindow)

	// SUM over zero rows is NULL in SQLite, COALESCE keeps the
	// projection defined for datasets with no items yet.
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN views >= ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN ai_analyzed_at IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN ai_analyzed_at >= ? THEN 1 ELSE 0 END), 0)
		FROM content_items
		WHERE dataset_id = ?
	`, minViews, cutoff, datasetID).Scan(&p.Total, &p.Eligible, &p.Analyzed, &p.RecentlyAnalyzed)
	if err != nil {
		return AnalysisProgress{}, fmt.Errorf("failed to get analysis progress: %w", err)
	}

	return p, nil
}

func (r *ItemRepositoryImpl) GetDatasetAverageViews(datasetID string) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRow(`
		SELECT AVG(views) FROM content_items WHERE dataset_id = ?
	`, datasetID).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to get dataset average views: %w", err)
	}
	return avg.Float64, nil
}

// RecomputeViralityScores rewrites virality_score for every item in the
// dataset as views divided by the dataset average. Consumers tolerate a
// slightly stale score; callers invoke this after material changes.
func (r *ItemRepositoryImpl) RecomputeViralityScores(datasetID string) error {
	avg, err := r.GetDatasetAverageViews(datasetID)
	if err != nil {
		return err
	}

	if avg <= 0 {
		_, err = r.db.Exec(`
			UPDATE content_items SET virality_score = NULL WHERE dataset_id = ?
		`, datasetID)
		if err != nil {
			return fmt.Errorf("failed to clear virality scores: %w", err)
		}
		return nil
	}

	_, err = r.db.Exec(`
		UPDATE content_items
		SET virality_score = CAST(views AS REAL) / ?
		WHERE dataset_id = ?
	`, avg, datasetID)
	if err != nil {
		return fmt.Errorf("failed to recompute virality scores: %w", err)
	}
	return nil
}

func scanItem(row rowScanner) (*ContentItem, error) {
	var item ContentItem
	var tags *string

	err := row.Scan(
		&item.ID, &item.ExternalID, &item.DatasetID, &item.SourceURL, &item.OriginalURL,
		&item.CoverURL, &item.VideoURL, &item.Views, &item.Likes, &item.Comments,
		&item.PublishedAt, &item.ContentType, &item.Description,
		&item.Headline, &item.Transcript, &item.ViralityScore, &item.Processed, &item.Approved,
		&item.AITopic, &item.AISubtopic, &item.AIHookType, &item.AIContentFormula, &tags,
		&item.AISuccessReason, &item.AIEmotionalTrigger, &item.AITargetAudience, &item.AIAnalyzedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tags != nil && *tags != "" {
		if err := json.Unmarshal([]byte(*tags), &item.AITags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item tags: %w", err)
		}
	}

	return &item, nil
}

func collectItems(rows *sql.Rows) ([]ContentItem, error) {
	var items []ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}
