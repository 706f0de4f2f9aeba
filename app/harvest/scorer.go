package harvest

import (
	"fmt"

	"github.com/reelradar/harvester/app/database"
)

// Score computes the relative engagement of one item against its
// dataset's average view count. The second return is false when the
// average carries no signal (empty dataset or all-zero views).
func Score(views int64, averageViews float64) (float64, bool) {
	if averageViews <= 0 {
		return 0, false
	}
	return float64(views) / averageViews, true
}

// Scorer recomputes per-dataset virality scores. Scores are refreshed
// opportunistically after a harvest changes the dataset, not maintained
// continuously; readers tolerate slightly stale values.
type Scorer struct {
	itemRepo database.ItemRepository
}

func NewScorer(itemRepo database.ItemRepository) *Scorer {
	return &Scorer{itemRepo: itemRepo}
}

func (s *Scorer) Rescore(datasetID string) error {
	if err := s.itemRepo.RecomputeViralityScores(datasetID); err != nil {
		return fmt.Errorf("failed to rescore dataset %s: %w", datasetID, err)
	}
	return nil
}
