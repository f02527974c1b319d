package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tubenotes/internal/models"
	"tubenotes/shared/config"
)

const defaultBaseURL = "https://api.supadata.ai/v1/youtube/transcript"

// Client fetches YouTube captions through the Supadata API. Only existing
// captions are requested (mode=native); AI-generated transcripts cost an
// order of magnitude more credits.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

// supadataResponse covers the response shapes the API is known to return:
// a flat content string, or a list of segments under either key.
type supadataResponse struct {
	Content    string            `json:"content"`
	Segments   []supadataSegment `json:"segments"`
	Transcript []supadataSegment `json:"transcript"`
	Error      string            `json:"error"`
}

type supadataSegment struct {
	Text string `json:"text"`
}

func NewClient(cfg *config.TranscriptConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryDelay: 2 * time.Second,
	}
}

// Fetch returns the transcript for a video, or an Unavailable result when
// the video has no captions. Transient failures (rate limit, server error,
// transport error) get a single retry before being surfaced to the caller.
func (c *Client) Fetch(ctx context.Context, videoID string) (models.TranscriptResult, error) {
	result, retryable, err := c.fetchOnce(ctx, videoID)
	if err != nil && retryable {
		log.Printf("Transient transcript error for video %s, retrying in %v: %v", videoID, c.retryDelay, err)
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return models.TranscriptResult{}, ctx.Err()
		}
		result, _, err = c.fetchOnce(ctx, videoID)
	}
	return result, err
}

func (c *Client) fetchOnce(ctx context.Context, videoID string) (models.TranscriptResult, bool, error) {
	query := url.Values{}
	query.Set("url", fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID))
	query.Set("mode", "native")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return models.TranscriptResult{}, false, fmt.Errorf("failed to create transcript request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.TranscriptResult{}, true, fmt.Errorf("failed to fetch transcript for video %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return parseTranscriptBody(resp.Body, videoID)

	case resp.StatusCode == http.StatusNotFound:
		log.Printf("No transcript available for video %s", videoID)
		return models.TranscriptResult{Reason: "no captions found"}, false, nil

	case resp.StatusCode == http.StatusBadRequest:
		var body supadataResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		reason := body.Error
		if reason == "" {
			reason = "bad request"
		}
		log.Printf("Transcript request rejected for video %s: %s", videoID, reason)
		return models.TranscriptResult{Reason: reason}, false, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return models.TranscriptResult{}, true, fmt.Errorf("transcript API returned status %d for video %s", resp.StatusCode, videoID)

	default:
		return models.TranscriptResult{}, false, fmt.Errorf("transcript API returned status %d for video %s", resp.StatusCode, videoID)
	}
}

func parseTranscriptBody(body io.Reader, videoID string) (models.TranscriptResult, bool, error) {
	var data supadataResponse
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return models.TranscriptResult{}, false, fmt.Errorf("failed to decode transcript response for video %s: %w", videoID, err)
	}

	if data.Content != "" {
		log.Printf("Fetched transcript for video %s (%d chars)", videoID, len(data.Content))
		return models.TranscriptResult{Text: data.Content}, false, nil
	}

	segments := data.Segments
	if len(segments) == 0 {
		segments = data.Transcript
	}
	if len(segments) > 0 {
		parts := make([]string, 0, len(segments))
		for _, segment := range segments {
			if segment.Text != "" {
				parts = append(parts, segment.Text)
			}
		}
		if len(parts) > 0 {
			text := strings.Join(parts, " ")
			log.Printf("Fetched transcript for video %s (%d segments)", videoID, len(parts))
			return models.TranscriptResult{Text: text}, false, nil
		}
	}

	log.Printf("Transcript response for video %s contained no content", videoID)
	return models.TranscriptResult{Reason: "transcript response contained no content"}, false, nil
}
