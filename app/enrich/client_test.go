package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type mockMedia struct {
	data        []byte
	contentType string
	err         error
}

func (m *mockMedia) FetchMedia(ctx context.Context, url string) ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.data, m.contentType, nil
}

func testTaxonomy() *Taxonomy {
	return &Taxonomy{
		Topics:            []string{"Finance", "Health"},
		HookTypes:         []string{"question", "list"},
		EmotionalTriggers: []string{"curiosity", "hope"},
	}
}

func chatServer(t *testing.T, reply string, gotBody *map[string]any) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		if gotBody != nil {
			if err := json.NewDecoder(r.Body).Decode(gotBody); err != nil {
				t.Errorf("failed to decode request body: %v", err)
			}
		}

		response := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
}

func TestExtractHeadline(t *testing.T) {
	var body map[string]any
	server := chatServer(t, "5 habits that changed my mornings", &body)
	defer server.Close()

	client := NewClient(server.URL, "test-key", "vision-model", "text-model", testTaxonomy(), &mockMedia{data: []byte("jpeg"), contentType: "image/jpeg"})

	headline, err := client.ExtractHeadline(context.Background(), "https://cdn.example.com/cover.jpg")
	if err != nil {
		t.Fatalf("ExtractHeadline() error = %v", err)
	}
	if headline != "5 habits that changed my mornings" {
		t.Errorf("headline = %q", headline)
	}
	if body["model"] != "vision-model" {
		t.Errorf("model = %v, want vision-model", body["model"])
	}
}

func TestExtractHeadlineNoneSentinel(t *testing.T) {
	server := chatServer(t, "  None  ", nil)
	defer server.Close()

	client := NewClient(server.URL, "test-key", "vision-model", "text-model", testTaxonomy(), &mockMedia{data: []byte("jpeg"), contentType: "image/jpeg"})

	headline, err := client.ExtractHeadline(context.Background(), "https://cdn.example.com/cover.jpg")
	if err != nil {
		t.Fatalf("ExtractHeadline() error = %v", err)
	}
	if headline != "" {
		t.Errorf("headline = %q, want empty for none sentinel", headline)
	}
}

func TestExtractHeadlineAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "vision-model", "text-model", testTaxonomy(), &mockMedia{data: []byte("jpeg"), contentType: "image/jpeg"})

	if _, err := client.ExtractHeadline(context.Background(), "https://cdn.example.com/cover.jpg"); err == nil {
		t.Fatal("ExtractHeadline() error = nil, want API error")
	}
}

func TestAnalyzeContent(t *testing.T) {
	reply := "```json\n" + `[
		{
			"id": "item-1",
			"topic": "Finance",
			"subtopic": "wealth habits",
			"hookType": "list",
			"contentFormula": "personal story + numbered list",
			"successReason": "simple actions with a big promised payoff",
			"tags": ["money", "habits", "wealth"],
			"emotionalTrigger": "hope",
			"targetAudience": "ambitious 20-35 year olds"
		}
	]` + "\n```"

	var body map[string]any
	server := chatServer(t, reply, &body)
	defer server.Close()

	client := NewClient(server.URL, "test-key", "vision-model", "text-model", testTaxonomy(), &mockMedia{})

	results, err := client.AnalyzeContent(context.Background(), []ContentForAnalysis{
		{ID: "item-1", Views: 120000},
	})
	if err != nil {
		t.Fatalf("AnalyzeContent() error = %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Topic != "Finance" {
		t.Errorf("topic = %q, want Finance", results[0].Topic)
	}
	if len(results[0].Tags) != 3 {
		t.Errorf("tags = %v, want 3 entries", results[0].Tags)
	}
	if body["model"] != "text-model" {
		t.Errorf("model = %v, want text-model", body["model"])
	}
}

func TestAnalyzeContentEmptyBatch(t *testing.T) {
	client := NewClient("http://unused", "test-key", "vision-model", "text-model", testTaxonomy(), &mockMedia{})

	results, err := client.AnalyzeContent(context.Background(), nil)
	if err != nil {
		t.Fatalf("AnalyzeContent() error = %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil for empty batch", results)
	}
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("model = %q, want whisper-1", model)
		}
		fmt.Fprint(w, `{"text": "welcome back to the channel"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "vision-model", "text-model", testTaxonomy(), &mockMedia{data: []byte("mp4"), contentType: "video/mp4"})

	transcript, err := client.Transcribe(context.Background(), "https://cdn.example.com/video.mp4")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if transcript != "welcome back to the channel" {
		t.Errorf("transcript = %q", transcript)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `[{"id":"a"}]`, `[{"id":"a"}]`},
		{"json fence", "```json\n[1]\n```", "[1]"},
		{"plain fence", "```\n[1]\n```", "[1]"},
		{"padded", "  ```json\n[1]\n```  ", "[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAnalysisSystemPromptCarriesTaxonomy(t *testing.T) {
	prompt := analysisSystemPrompt(testTaxonomy())

	for _, want := range []string{"Finance", "question", "curiosity", "ALLOWED_TOPICS"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}
