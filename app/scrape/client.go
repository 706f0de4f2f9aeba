package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultMaxPollAttempts = 60
)

var usernamePattern = regexp.MustCompile(`instagram\.com/([^/?]+)`)

// ExtractUsername pulls the profile username out of a profile URL.
func ExtractUsername(profileURL string) (string, error) {
	match := usernamePattern.FindStringSubmatch(profileURL)
	if match == nil {
		return "", fmt.Errorf("could not extract username from URL: %s", profileURL)
	}
	return match[1], nil
}

// Client talks to the actor-based scraping provider: it starts an actor
// run for a profile, polls the run until it settles, then fetches the
// run's dataset items. This is the only place provider specifics live.
type Client struct {
	endpoint   string
	token      string
	actorID    string
	userAgent  string
	httpClient *http.Client

	pollInterval    time.Duration
	maxPollAttempts int
}

func NewClient(endpoint, token, actorID, userAgent string) *Client {
	return &Client{
		endpoint:        strings.TrimRight(endpoint, "/"),
		token:           token,
		actorID:         strings.ReplaceAll(actorID, "/", "~"),
		userAgent:       userAgent,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
	}
}

// providerPost is the provider's wire format. View counts arrive under
// several historical field names and the newest populated one wins.
type providerPost struct {
	ID            string `json:"id"`
	ShortCode     string `json:"shortCode"`
	URL           string `json:"url"`
	Type          string `json:"type"`
	Caption       string `json:"caption"`
	DisplayURL    string `json:"displayUrl"`
	VideoURL      string `json:"videoUrl"`
	LikesCount    int64  `json:"likesCount"`
	CommentsCount *int64 `json:"commentsCount"`

	VideoViewCount int64 `json:"videoViewCount"`
	PlayCount      int64 `json:"playCount"`
	ViewCount      int64 `json:"viewCount"`
	VideoPlayCount int64 `json:"videoPlayCount"`

	Timestamp     time.Time `json:"timestamp"`
	OwnerUsername string    `json:"ownerUsername"`
}

type runEnvelope struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

type runInput struct {
	DirectURLs         []string   `json:"directUrls"`
	ResultsType        string     `json:"resultsType"`
	ResultsLimit       int        `json:"resultsLimit"`
	AddParentData      bool       `json:"addParentData"`
	OnlyPostsNewerThan string     `json:"onlyPostsNewerThan"`
	Proxy              proxyInput `json:"proxy"`
}

type proxyInput struct {
	UseProxy bool     `json:"useApifyProxy"`
	Groups   []string `json:"apifyProxyGroups"`
}

// FetchPosts runs one scrape of a profile and returns its posts, newest
// first, already trimmed to the recency window on the provider side.
func (c *Client) FetchPosts(ctx context.Context, username string, maxItems, daysLimit int) ([]RawPost, error) {
	runID, err := c.startRun(ctx, username, maxItems, daysLimit)
	if err != nil {
		return nil, err
	}

	if err := c.waitForRun(ctx, runID); err != nil {
		return nil, err
	}

	return c.fetchResults(ctx, runID)
}

func (c *Client) startRun(ctx context.Context, username string, maxItems, daysLimit int) (string, error) {
	input := runInput{
		DirectURLs:         []string{fmt.Sprintf("https://www.instagram.com/%s/", username)},
		ResultsType:        "posts",
		ResultsLimit:       maxItems,
		OnlyPostsNewerThan: time.Now().UTC().AddDate(0, 0, -daysLimit).Format(time.RFC3339),
		Proxy:              proxyInput{UseProxy: true, Groups: []string{"RESIDENTIAL"}},
	}

	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run input: %w", err)
	}

	url := fmt.Sprintf("%s/v2/acts/%s/runs?token=%s", c.endpoint, c.actorID, c.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to start actor run: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", fmt.Errorf("actor run start for @%s: %w", username, err)
	}

	var envelope runEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("failed to decode run response: %w", err)
	}
	if envelope.Data.ID == "" {
		return "", errors.New("provider returned no run id")
	}

	slog.Debug("Actor run started", "username", username, "run_id", envelope.Data.ID)
	return envelope.Data.ID, nil
}

func (c *Client) waitForRun(ctx context.Context, runID string) error {
	for attempt := 1; attempt <= c.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}

		status, err := c.runStatus(ctx, runID)
		if err != nil {
			return err
		}

		slog.Debug("Actor run polled", "run_id", runID, "status", status, "attempt", attempt)

		switch status {
		case "SUCCEEDED":
			return nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			return fmt.Errorf("actor run %s finished with status %s", runID, status)
		}
	}

	return fmt.Errorf("actor run %s did not finish after %d polls", runID, c.maxPollAttempts)
}

func (c *Client) runStatus(ctx context.Context, runID string) (string, error) {
	url := fmt.Sprintf("%s/v2/actor-runs/%s?token=%s", c.endpoint, runID, c.token)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to poll actor run: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", fmt.Errorf("actor run %s status: %w", runID, err)
	}

	var envelope runEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("failed to decode status response: %w", err)
	}

	return envelope.Data.Status, nil
}

func (c *Client) fetchResults(ctx context.Context, runID string) ([]RawPost, error) {
	url := fmt.Sprintf("%s/v2/actor-runs/%s/dataset/items?token=%s", c.endpoint, runID, c.token)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create results request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run results: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("actor run %s results: %w", runID, err)
	}

	var wire []providerPost
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode run results: %w", err)
	}

	posts := make([]RawPost, 0, len(wire))
	for _, p := range wire {
		posts = append(posts, p.toRawPost())
	}

	return posts, nil
}

func (p providerPost) toRawPost() RawPost {
	externalID := p.ID
	if externalID == "" {
		externalID = p.ShortCode
	}

	comments := CommentsHidden
	if p.CommentsCount != nil {
		comments = int(*p.CommentsCount)
	}

	return RawPost{
		ExternalID: externalID,
		Type:       p.Type,
		IsVideo:    p.VideoURL != "",
		Timestamp:  p.Timestamp,
		Views:      coalesceViews(p.VideoPlayCount, p.PlayCount, p.VideoViewCount, p.ViewCount),
		Likes:      p.LikesCount,
		Comments:   int64(comments),
		DisplayURL: p.DisplayURL,
		VideoURL:   p.VideoURL,
		PostURL:    p.URL,
		Owner:      p.OwnerUsername,
		Caption:    p.Caption,
	}
}

func coalesceViews(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// FetchMedia downloads a media asset with browser-like headers; the
// image CDN refuses requests that look automated. Returns the body and
// the reported content type.
func (c *Client) FetchMedia(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create media request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return body, contentType, nil
}

func classifyStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusOK || statusCode == http.StatusCreated:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrProviderAuth
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case statusCode == http.StatusNotFound:
		return ErrProfileUnavailable
	default:
		return fmt.Errorf("provider returned status %d", statusCode)
	}
}
