package harvest

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/reelradar/harvester/app/database"
)

var signatureFolder = cases.Fold()

// Resolve collapses duplicates at read time over a dataset-spanning
// item list. Two passes: first by external id, keeping the copy with
// the higher virality score; then by content signature (normalized
// headline + views + likes) to catch reposts that arrive under
// different external ids, preferring the copy that already carries AI
// enrichment, then the higher score. The result is ordered by virality
// score descending.
func Resolve(items []database.ContentItem) []database.ContentItem {
	byExternalID := make(map[string]int, len(items))
	var firstPass []database.ContentItem

	for _, item := range items {
		key := item.ExternalID
		if key == "" {
			key = item.ID
		}

		idx, seen := byExternalID[key]
		if !seen {
			byExternalID[key] = len(firstPass)
			firstPass = append(firstPass, item)
			continue
		}
		if scoreOf(item) > scoreOf(firstPass[idx]) {
			firstPass[idx] = item
		}
	}

	bySignature := make(map[string]int, len(firstPass))
	var resolved []database.ContentItem

	for _, item := range firstPass {
		key := contentSignature(item)

		idx, seen := bySignature[key]
		if !seen {
			bySignature[key] = len(resolved)
			resolved = append(resolved, item)
			continue
		}
		if preferred(item, resolved[idx]) {
			resolved[idx] = item
		}
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return scoreOf(resolved[i]) > scoreOf(resolved[j])
	})

	return resolved
}

// preferred reports whether candidate should replace current under the
// signature collision rules: enrichment wins outright, score breaks
// ties in enrichment.
func preferred(candidate, current database.ContentItem) bool {
	candidateEnriched := candidate.AITopic != nil
	currentEnriched := current.AITopic != nil

	if candidateEnriched != currentEnriched {
		return candidateEnriched
	}
	return scoreOf(candidate) > scoreOf(current)
}

func contentSignature(item database.ContentItem) string {
	headline := ""
	if item.Headline != nil {
		headline = *item.Headline
	}
	headline = signatureFolder.String(norm.NFC.String(strings.TrimSpace(headline)))

	return fmt.Sprintf("%s|%d|%d", headline, item.Views, item.Likes)
}

func scoreOf(item database.ContentItem) float64 {
	if item.ViralityScore == nil {
		return 0
	}
	return *item.ViralityScore
}
