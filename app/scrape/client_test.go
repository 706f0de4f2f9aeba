package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(serverURL, "test-token", "vendor/profile-scraper", "harvester-test/1.0")
	c.pollInterval = time.Millisecond
	c.maxPollAttempts = 5
	return c
}

func TestFetchPosts(t *testing.T) {
	var pollCount int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/acts/vendor~profile-scraper/runs":
			if r.Method != "POST" {
				t.Errorf("run start method = %s, want POST", r.Method)
			}
			if r.URL.Query().Get("token") != "test-token" {
				t.Errorf("token = %q, want test-token", r.URL.Query().Get("token"))
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"data": {"id": "run-1", "status": "RUNNING"}}`)

		case "/v2/actor-runs/run-1":
			pollCount++
			status := "RUNNING"
			if pollCount >= 2 {
				status = "SUCCEEDED"
			}
			fmt.Fprintf(w, `{"data": {"id": "run-1", "status": %q}}`, status)

		case "/v2/actor-runs/run-1/dataset/items":
			fmt.Fprint(w, `[
				{
					"id": "post-1",
					"url": "https://instagram.com/p/post-1",
					"type": "Video",
					"caption": "morning routine",
					"displayUrl": "https://cdn.example.com/post-1.jpg",
					"videoUrl": "https://cdn.example.com/post-1.mp4",
					"likesCount": 150,
					"commentsCount": 12,
					"videoPlayCount": 9000,
					"viewCount": 100,
					"timestamp": "2026-08-20T10:00:00Z",
					"ownerUsername": "creators"
				},
				{
					"shortCode": "abc123",
					"type": "Sidecar",
					"displayUrl": "https://cdn.example.com/abc123.jpg",
					"likesCount": 40,
					"timestamp": "2026-08-21T09:00:00Z",
					"ownerUsername": "creators"
				}
			]`)

		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	posts, err := newTestClient(server.URL).FetchPosts(context.Background(), "creators", 20, 30)
	if err != nil {
		t.Fatalf("FetchPosts() error = %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}

	first := posts[0]
	if first.ExternalID != "post-1" {
		t.Errorf("external id = %q, want post-1", first.ExternalID)
	}
	if first.Views != 9000 {
		t.Errorf("views = %d, want coalesced videoPlayCount 9000", first.Views)
	}
	if first.Comments != 12 {
		t.Errorf("comments = %d, want 12", first.Comments)
	}
	if !first.IsVideo {
		t.Error("IsVideo = false, want true for post with video url")
	}

	second := posts[1]
	if second.ExternalID != "abc123" {
		t.Errorf("external id = %q, want shortCode fallback abc123", second.ExternalID)
	}
	if second.Comments != CommentsHidden {
		t.Errorf("comments = %d, want hidden sentinel %d", second.Comments, CommentsHidden)
	}
	if second.Views != 0 {
		t.Errorf("views = %d, want 0 when no view field present", second.Views)
	}

	if pollCount < 2 {
		t.Errorf("poll count = %d, want at least 2", pollCount)
	}
}

func TestFetchPostsRunFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/acts/vendor~profile-scraper/runs":
			fmt.Fprint(w, `{"data": {"id": "run-2", "status": "RUNNING"}}`)
		case "/v2/actor-runs/run-2":
			fmt.Fprint(w, `{"data": {"id": "run-2", "status": "FAILED"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchPosts(context.Background(), "creators", 20, 30)
	if err == nil {
		t.Fatal("FetchPosts() error = nil, want failure for FAILED run")
	}
}

func TestFetchPostsErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrProviderAuth},
		{"forbidden", http.StatusForbidden, ErrProviderAuth},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"profile missing", http.StatusNotFound, ErrProfileUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchPosts(context.Background(), "creators", 20, 30)
			if !errors.Is(err, tt.want) {
				t.Errorf("FetchPosts() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetchMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "harvester-test/1.0" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	body, contentType, err := newTestClient(server.URL).FetchMedia(context.Background(), server.URL+"/cover.png")
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}
	if string(body) != "png-bytes" {
		t.Errorf("body = %q, want png-bytes", body)
	}
	if contentType != "image/png" {
		t.Errorf("content type = %q, want image/png", contentType)
	}
}

func TestExtractUsername(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://instagram.com/creators", "creators", false},
		{"https://www.instagram.com/creators/", "creators", false},
		{"https://instagram.com/creators?igsh=abc", "creators", false},
		{"https://example.com/creators", "", true},
	}

	for _, tt := range tests {
		got, err := ExtractUsername(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ExtractUsername(%q) error = nil, want error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("ExtractUsername(%q) error = %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractUsername(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
