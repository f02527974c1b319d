package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"tubenotes/internal/models"
	"tubenotes/shared/config"

	"google.golang.org/genai"
)

const (
	// Transcripts beyond this are cut at a sentence boundary; the model
	// context is large but there is no value in paying for filler.
	maxTranscriptChars = 100_000

	maxAttempts    = 3
	initialBackoff = time.Second
)

// Summarizer produces structured video summaries with Gemini.
type Summarizer struct {
	client *genai.Client
	model  string
	sleep  func(time.Duration)
}

func NewSummarizer(cfg *config.AIConfig) (*Summarizer, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Summarizer{
		client: client,
		model:  cfg.Model,
		sleep:  time.Sleep,
	}, nil
}

// Summarize sends the transcript to the model and returns the parsed
// summary. Rate-limit errors are retried with exponential backoff; any
// other failure is returned to the caller as-is.
func (s *Summarizer) Summarize(ctx context.Context, video *models.Video, transcript string) (*models.Summary, error) {
	if video == nil {
		return nil, fmt.Errorf("video cannot be nil")
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("transcript is empty for video %s", video.ID)
	}

	prompt := buildSummaryPrompt(video, truncateTranscript(transcript))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
		if err != nil {
			if isRateLimited(err) && attempt < maxAttempts-1 {
				log.Printf("Rate limited summarizing video %s, retrying in %v", video.ID, backoff)
				lastErr = err
				s.sleep(backoff)
				backoff *= 2
				continue
			}
			return nil, fmt.Errorf("failed to summarize video %s: %w", video.ID, err)
		}

		responseText := result.Text()
		if responseText == "" {
			return nil, fmt.Errorf("empty summarization response for video %s", video.ID)
		}

		summary, err := parseSummaryResponse(responseText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse summary for video %s: %w", video.ID, err)
		}
		return summary, nil
	}

	return nil, fmt.Errorf("rate limit exceeded after %d attempts for video %s: %w", maxAttempts, video.ID, lastErr)
}

func buildSummaryPrompt(video *models.Video, transcript string) string {
	return fmt.Sprintf(`You summarize YouTube video transcripts concisely.

Title: %s
Channel: %s
Transcript: %s

Provide your response in the following JSON format:
{
  "synopsis": "A 2-3 sentence summary of the video",
  "key_points": ["3-5 key takeaways, one per entry"],
  "target_audience": "Who would find this video useful"
}`,
		video.Title,
		video.Channel,
		transcript,
	)
}

func parseSummaryResponse(response string) (*models.Summary, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("no JSON found in response: %s", response)
	}

	jsonStr := response[startIdx : endIdx+1]

	var summary models.Summary
	if err := json.Unmarshal([]byte(jsonStr), &summary); err != nil {
		// Try to sanitize and parse again
		sanitized := sanitizeJSON(jsonStr)
		if sanitizedErr := json.Unmarshal([]byte(sanitized), &summary); sanitizedErr != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON '%s': %w (sanitized version also failed: %v)", jsonStr, err, sanitizedErr)
		}
		log.Printf("Warning: Had to sanitize malformed JSON in summarization response")
	}

	if summary.Synopsis == "" {
		return nil, fmt.Errorf("summary synopsis is required but was empty")
	}
	if len(summary.KeyPoints) == 0 {
		return nil, fmt.Errorf("summary key points are required but were empty")
	}

	return &summary, nil
}

// truncateTranscript cuts an oversized transcript, preferring to end at a
// sentence boundary when one is reasonably close to the limit.
func truncateTranscript(transcript string) string {
	if len(transcript) <= maxTranscriptChars {
		return transcript
	}

	truncated := transcript[:maxTranscriptChars]
	if lastPeriod := strings.LastIndex(truncated, ". "); lastPeriod > maxTranscriptChars*8/10 {
		truncated = truncated[:lastPeriod+1]
	}

	return truncated + "\n\n[Transcript truncated due to length...]"
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "rate limit")
}

// sanitizeJSON fixes the most common formatting issue in model output:
// unescaped quotes inside string values.
func sanitizeJSON(jsonStr string) string {
	lines := strings.Split(jsonStr, "\n")
	var sanitizedLines []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.Contains(line, ":") && strings.Contains(line, "\"") {
			colonIdx := strings.Index(line, ":")
			beforeColon := line[:colonIdx+1]
			afterColon := strings.TrimSpace(line[colonIdx+1:])

			if strings.HasPrefix(afterColon, "\"") {
				lastQuoteIdx := strings.LastIndex(afterColon, "\"")
				if lastQuoteIdx > 0 {
					stringContent := afterColon[1:lastQuoteIdx]
					stringContent = strings.ReplaceAll(stringContent, "\\\"", "\"")
					stringContent = strings.ReplaceAll(stringContent, "\"", "\\\"")
					remainder := afterColon[lastQuoteIdx+1:]
					line = beforeColon + " \"" + stringContent + "\"" + remainder
				}
			}
		}

		sanitizedLines = append(sanitizedLines, line)
	}

	return strings.Join(sanitizedLines, "\n")
}
