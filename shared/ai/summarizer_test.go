package ai

import (
	"errors"
	"strings"
	"testing"

	"tubenotes/internal/models"
)

func TestParseSummaryResponse(t *testing.T) {
	t.Run("ValidJSON", func(t *testing.T) {
		response := `{
  "synopsis": "A walkthrough of Go generics.",
  "key_points": ["Type parameters", "Constraints", "When not to use them"],
  "target_audience": "Intermediate Go developers"
}`
		summary, err := parseSummaryResponse(response)
		if err != nil {
			t.Fatalf("parseSummaryResponse failed: %v", err)
		}
		if summary.Synopsis != "A walkthrough of Go generics." {
			t.Errorf("Synopsis = %q", summary.Synopsis)
		}
		if len(summary.KeyPoints) != 3 {
			t.Errorf("Got %d key points, want 3", len(summary.KeyPoints))
		}
		if summary.Audience != "Intermediate Go developers" {
			t.Errorf("Audience = %q", summary.Audience)
		}
	})

	t.Run("JSONWrappedInProse", func(t *testing.T) {
		response := "Here is the summary you asked for:\n```json\n" +
			`{"synopsis": "About caching.", "key_points": ["TTLs matter"], "target_audience": "Backend engineers"}` +
			"\n```\nLet me know if you need anything else."
		summary, err := parseSummaryResponse(response)
		if err != nil {
			t.Fatalf("parseSummaryResponse failed: %v", err)
		}
		if summary.Synopsis != "About caching." {
			t.Errorf("Synopsis = %q", summary.Synopsis)
		}
	})

	t.Run("NoJSON", func(t *testing.T) {
		if _, err := parseSummaryResponse("I cannot summarize this video."); err == nil {
			t.Error("Expected error for response without JSON")
		}
	})

	t.Run("EmptySynopsis", func(t *testing.T) {
		response := `{"synopsis": "", "key_points": ["a"], "target_audience": "b"}`
		if _, err := parseSummaryResponse(response); err == nil {
			t.Error("Expected error for empty synopsis")
		}
	})

	t.Run("NoKeyPoints", func(t *testing.T) {
		response := `{"synopsis": "Something.", "key_points": [], "target_audience": "b"}`
		if _, err := parseSummaryResponse(response); err == nil {
			t.Error("Expected error for missing key points")
		}
	})

	t.Run("UnescapedQuotesAreSanitized", func(t *testing.T) {
		response := `{
"synopsis": "The speaker calls it "the hard part" of Go.",
"key_points": ["One point"],
"target_audience": "Everyone"
}`
		summary, err := parseSummaryResponse(response)
		if err != nil {
			t.Fatalf("parseSummaryResponse failed on sanitizable input: %v", err)
		}
		if !strings.Contains(summary.Synopsis, "the hard part") {
			t.Errorf("Synopsis lost content during sanitization: %q", summary.Synopsis)
		}
	})
}

func TestTruncateTranscript(t *testing.T) {
	t.Run("ShortTranscriptUntouched", func(t *testing.T) {
		in := "short transcript"
		if got := truncateTranscript(in); got != in {
			t.Errorf("Short transcript was modified: %q", got)
		}
	})

	t.Run("LongTranscriptTruncated", func(t *testing.T) {
		in := strings.Repeat("word ", maxTranscriptChars/2)
		got := truncateTranscript(in)
		if len(got) > maxTranscriptChars+100 {
			t.Errorf("Truncated transcript is too long: %d chars", len(got))
		}
		if !strings.HasSuffix(got, "[Transcript truncated due to length...]") {
			t.Error("Truncated transcript is missing the truncation marker")
		}
	})

	t.Run("PrefersSentenceBoundary", func(t *testing.T) {
		// A period near the end of the limit should become the cut point.
		in := strings.Repeat("a", maxTranscriptChars-10) + ". " + strings.Repeat("b", 1000)
		got := truncateTranscript(in)
		marker := strings.Index(got, "\n\n[Transcript truncated")
		if marker == -1 {
			t.Fatal("Missing truncation marker")
		}
		if !strings.HasSuffix(got[:marker], ".") {
			t.Error("Truncation did not end at a sentence boundary")
		}
	})
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"HTTP 429", errors.New("googleapi: Error 429: quota exceeded"), true},
		{"Resource exhausted", errors.New("rpc error: code = RESOURCE_EXHAUSTED"), true},
		{"Rate limit text", errors.New("Rate limit reached, slow down"), true},
		{"Other error", errors.New("invalid request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRateLimited(tt.err); got != tt.expected {
				t.Errorf("isRateLimited(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestBuildSummaryPrompt(t *testing.T) {
	video := &models.Video{
		ID:      "abc123",
		Title:   "Understanding Channels",
		Channel: "Go Talks",
	}

	prompt := buildSummaryPrompt(video, "transcript text here")

	for _, want := range []string{"Understanding Channels", "Go Talks", "transcript text here", "synopsis", "key_points", "target_audience"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt is missing %q", want)
		}
	}
}
