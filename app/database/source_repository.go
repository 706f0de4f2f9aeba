package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SourceRepositoryImpl struct {
	db *DB
}

var _ SourceRepository = (*SourceRepositoryImpl)(nil)

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

const sourceColumns = `id, dataset_id, profile_url, username, active, content_types,
       days_limit, min_views_filter, min_likes_filter, fetch_limit,
       last_scraped_at, created_at, updated_at`

func (r *SourceRepositoryImpl) CreateSource(source Source) (string, error) {
	id := source.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := r.db.Exec(`
		INSERT INTO sources (id, dataset_id, profile_url, username, active, content_types,
		                     days_limit, min_views_filter, min_likes_filter, fetch_limit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, source.DatasetID, source.ProfileURL, source.Username, source.Active,
		strings.Join(source.ContentTypes, ","), source.DaysLimit,
		source.MinViewsFilter, source.MinLikesFilter, source.FetchLimit)
	if err != nil {
		return "", fmt.Errorf("failed to create source: %w", err)
	}

	return id, nil
}

func (r *SourceRepositoryImpl) GetSource(id string) (*Source, error) {
	row := r.db.QueryRow(`
		SELECT `+sourceColumns+`
		FROM sources
		WHERE id = ?
	`, id)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

func (r *SourceRepositoryImpl) GetSourcesByDataset(datasetID string) ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT `+sourceColumns+`
		FROM sources
		WHERE dataset_id = ?
		ORDER BY created_at
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources for dataset: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

func (r *SourceRepositoryImpl) GetStaleActiveSources(limit int) ([]Source, error) {
	// Never-scraped sources sort first, then oldest last_scraped_at.
	rows, err := r.db.Query(`
		SELECT `+sourceColumns+`
		FROM sources
		WHERE active = 1
		ORDER BY last_scraped_at IS NOT NULL, last_scraped_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale active sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

func (r *SourceRepositoryImpl) GetActiveSourcesForAccount(accountID string) ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT s.id, s.dataset_id, s.profile_url, s.username, s.active, s.content_types,
		       s.days_limit, s.min_views_filter, s.min_likes_filter, s.fetch_limit,
		       s.last_scraped_at, s.created_at, s.updated_at
		FROM sources s
		JOIN datasets d ON d.id = s.dataset_id
		WHERE d.account_id = ? AND s.active = 1
		ORDER BY s.last_scraped_at IS NOT NULL, s.last_scraped_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active sources for account: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

func (r *SourceRepositoryImpl) TouchLastScraped(sourceID string, scrapedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_scraped_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, scrapedAt.UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scraped time: %w", err)
	}
	return nil
}

func (r *SourceRepositoryImpl) SetSourceActive(sourceID string, active bool) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, active, sourceID)
	if err != nil {
		return fmt.Errorf("failed to set source active status: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var s Source
	var contentTypes string

	err := row.Scan(
		&s.ID, &s.DatasetID, &s.ProfileURL, &s.Username, &s.Active, &contentTypes,
		&s.DaysLimit, &s.MinViewsFilter, &s.MinLikesFilter, &s.FetchLimit,
		&s.LastScrapedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if contentTypes != "" {
		s.ContentTypes = strings.Split(contentTypes, ",")
	}

	return &s, nil
}

func collectSources(rows *sql.Rows) ([]Source, error) {
	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}
