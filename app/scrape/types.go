package scrape

import (
	"errors"
	"time"
)

// Provider failure taxonomy. Everything else the provider can do wrong
// surfaces as a plain wrapped error.
var (
	ErrProviderAuth       = errors.New("scraping provider rejected credentials")
	ErrRateLimited        = errors.New("scraping provider rate limited the request")
	ErrProfileUnavailable = errors.New("profile not found or private")
)

// CommentsHidden marks a post whose comment count the provider withheld.
const CommentsHidden = -1

// RawPost is one post as returned by the scraping provider, with the
// provider's multiple view-count variants already coalesced. Comments
// is CommentsHidden when the count is withheld.
type RawPost struct {
	ExternalID string
	Type       string
	IsVideo    bool
	Timestamp  time.Time
	Views      int64
	Likes      int64
	Comments   int64
	DisplayURL string
	VideoURL   string
	PostURL    string
	Owner      string
	Caption    string
}
