package enrich

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	headlinePrompt = `Analyze this post cover image. Extract the EXACT headline text
overlaid on the image.

Rules:
- Return ONLY the headline text, no descriptions or commentary
- If the text spans multiple lines, join them into one line
- If the image contains no text, return the single word: none
- Do not add quotes or formatting

Answer (headline text only):`

	noneSentinel = "none"

	maxDescriptionLength = 500
)

// MediaFetcher downloads media assets; satisfied by *scrape.Client.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, url string) ([]byte, string, error)
}

// ContentForAnalysis is one item as presented to the analysis model.
type ContentForAnalysis struct {
	ID             string   `json:"id"`
	Headline       *string  `json:"headline"`
	Description    *string  `json:"description"`
	ContentType    string   `json:"contentType"`
	Views          int64    `json:"views"`
	ViralityScore  *float64 `json:"viralityScore"`
	SourceUsername string   `json:"sourceUsername"`
}

// AnalysisResult is the structured tag object the model returns per
// item.
type AnalysisResult struct {
	ID               string   `json:"id"`
	Topic            string   `json:"topic"`
	Subtopic         string   `json:"subtopic"`
	HookType         string   `json:"hookType"`
	ContentFormula   string   `json:"contentFormula"`
	SuccessReason    string   `json:"successReason"`
	Tags             []string `json:"tags"`
	EmotionalTrigger string   `json:"emotionalTrigger"`
	TargetAudience   string   `json:"targetAudience"`
}

// Client talks to an OpenAI-compatible model API: chat completions for
// vision headline extraction and semantic analysis, audio
// transcriptions for video transcripts. Both calls are best-effort;
// callers log failures and move on.
type Client struct {
	endpoint        string
	apiKey          string
	visionModel     string
	textModel       string
	transcribeModel string

	taxonomy   *Taxonomy
	media      MediaFetcher
	httpClient *http.Client
}

func NewClient(endpoint, apiKey, visionModel, textModel string, taxonomy *Taxonomy, media MediaFetcher) *Client {
	return &Client{
		endpoint:        strings.TrimRight(endpoint, "/"),
		apiKey:          apiKey,
		visionModel:     visionModel,
		textModel:       textModel,
		transcribeModel: "whisper-1",
		taxonomy:        taxonomy,
		media:           media,
		httpClient:      &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type imagePart struct {
	Type     string   `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL *dataURL `json:"image_url,omitempty"`
}

type dataURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractHeadline sends a cover image to the vision model and returns
// the overlaid headline text, or "" when the image carries none.
func (c *Client) ExtractHeadline(ctx context.Context, imageURL string) (string, error) {
	imageData, contentType, err := c.media.FetchMedia(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch cover image: %w", err)
	}

	encoded := fmt.Sprintf("data:%s;base64,%s", mediaType(contentType), base64.StdEncoding.EncodeToString(imageData))

	request := chatRequest{
		Model:     c.visionModel,
		MaxTokens: 1024,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []imagePart{
					{Type: "image_url", ImageURL: &dataURL{URL: encoded}},
					{Type: "text", Text: headlinePrompt},
				},
			},
		},
	}

	text, err := c.chat(ctx, request)
	if err != nil {
		return "", fmt.Errorf("headline extraction failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, noneSentinel) {
		return "", nil
	}

	return text, nil
}

// AnalyzeContent runs one batch through the analysis model and returns
// the structured results, matched to input by id.
func (c *Client) AnalyzeContent(ctx context.Context, batch []ContentForAnalysis) ([]AnalysisResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	input, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis input: %w", err)
	}

	request := chatRequest{
		Model:     c.textModel,
		MaxTokens: 4000,
		Messages: []chatMessage{
			{Role: "system", Content: analysisSystemPrompt(c.taxonomy)},
			{Role: "user", Content: fmt.Sprintf("Analyze the following posts and return the JSON analysis:\n\n<input_data>\n%s\n</input_data>", input)},
		},
	}

	text, err := c.chat(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("content analysis failed: %w", err)
	}

	var results []AnalysisResult
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &results); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	return results, nil
}

func (c *Client) chat(ctx context.Context, request chatRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("model API error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe downloads a video and runs it through the transcription
// model.
func (c *Client) Transcribe(ctx context.Context, videoURL string) (string, error) {
	video, _, err := c.media.FetchMedia(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("failed to download video: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "video.mp4")
	if err != nil {
		return "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	if _, err := part.Write(video); err != nil {
		return "", fmt.Errorf("failed to write video to form: %w", err)
	}
	if err := writer.WriteField("model", c.transcribeModel); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("transcription API error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return parsed.Text, nil
}

func analysisSystemPrompt(taxonomy *Taxonomy) string {
	return fmt.Sprintf(`You are an expert analyst of viral social-media content.
Analyze the batch of posts and extract structured data for trend reporting.

Strict rules:
1. Answer ONLY with valid JSON. No text before or after.
2. topic must be one of ALLOWED_TOPICS. Never invent new ones; pick the
   dominant topic when several apply.
3. hookType and emotionalTrigger must come from their allowed lists.
4. tags: 3-5 specific tags per post, no generic filler.
5. When a field cannot be determined, use null. Do not hallucinate.

%s
Return a JSON array, one object per input post:
[
  {
    "id": "same id as the input",
    "topic": "one of ALLOWED_TOPICS",
    "subtopic": "specific subtopic, 1-3 words",
    "hookType": "one of ALLOWED_HOOK_TYPES",
    "contentFormula": "short description of the content formula",
    "successReason": "one-sentence hypothesis for why it performed",
    "tags": ["tag1", "tag2", "tag3"],
    "emotionalTrigger": "one of ALLOWED_EMOTIONAL_TRIGGERS",
    "targetAudience": "audience description (age, interests)"
  }
]`, taxonomy.PromptSection())
}

// stripCodeFence removes a markdown code fence the model sometimes
// wraps its JSON in.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func mediaType(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "image/png"
	case strings.Contains(contentType, "gif"):
		return "image/gif"
	case strings.Contains(contentType, "webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
