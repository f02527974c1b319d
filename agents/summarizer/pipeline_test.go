package summarizer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tubenotes/internal/models"
)

type fakePlaylist struct {
	videos    []*models.Video
	listErr   error
	moveErr   error
	durErr    error
	durations map[string]string
	moved     []string
}

func (f *fakePlaylist) ListPlaylistVideos(ctx context.Context, playlistID string) ([]*models.Video, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.videos, nil
}

func (f *fakePlaylist) VideoDuration(ctx context.Context, videoID string) (string, error) {
	if f.durErr != nil {
		return "", f.durErr
	}
	if d, ok := f.durations[videoID]; ok {
		return d, nil
	}
	return "10:00", nil
}

func (f *fakePlaylist) MoveVideo(ctx context.Context, video *models.Video, targetPlaylistID string) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moved = append(f.moved, video.ID)
	return nil
}

type fakeTranscripts struct {
	results map[string]models.TranscriptResult
	errs    map[string]error
}

func (f *fakeTranscripts) Fetch(ctx context.Context, videoID string) (models.TranscriptResult, error) {
	if err, ok := f.errs[videoID]; ok {
		return models.TranscriptResult{}, err
	}
	if result, ok := f.results[videoID]; ok {
		return result, nil
	}
	return models.TranscriptResult{Text: "transcript for " + videoID}, nil
}

type fakeEngine struct {
	errs  map[string]error
	calls []string
}

func (f *fakeEngine) Summarize(ctx context.Context, video *models.Video, transcript string) (*models.Summary, error) {
	f.calls = append(f.calls, video.ID)
	if err, ok := f.errs[video.ID]; ok {
		return nil, err
	}
	return &models.Summary{
		Synopsis:  "Synopsis of " + video.Title,
		KeyPoints: []string{"point one", "point two", "point three"},
		Audience:  "Developers",
	}, nil
}

type fakeRecords struct {
	processed map[string]bool
	listErr   error
	writeErr  error
	written   []*models.ProcessedRecord
}

func (f *fakeRecords) ListProcessedIDs(ctx context.Context) (map[string]bool, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make(map[string]bool, len(f.processed))
	for id := range f.processed {
		ids[id] = true
	}
	return ids, nil
}

func (f *fakeRecords) WriteRecord(ctx context.Context, rec *models.ProcessedRecord) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.processed == nil {
		f.processed = make(map[string]bool)
	}
	f.processed[rec.VideoID] = true
	f.written = append(f.written, rec)
	return nil
}

type fakeNotifier struct {
	enabled   bool
	digests   []*models.BatchOutcome
	summaries []string
	errors    []string
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }

func (f *fakeNotifier) VideoSummary(ctx context.Context, rec *models.ProcessedRecord) error {
	f.summaries = append(f.summaries, rec.VideoID)
	return nil
}

func (f *fakeNotifier) ProcessingError(ctx context.Context, title, url, reason string) error {
	f.errors = append(f.errors, reason)
	return nil
}

func (f *fakeNotifier) BatchDigest(ctx context.Context, outcome *models.BatchOutcome) error {
	f.digests = append(f.digests, outcome)
	return nil
}

func testVideos(ids ...string) []*models.Video {
	var videos []*models.Video
	for _, id := range ids {
		videos = append(videos, &models.Video{
			ID:             id,
			PlaylistItemID: "item-" + id,
			Title:          "Video " + id,
			Channel:        "Channel " + id,
			URL:            fmt.Sprintf("https://www.youtube.com/watch?v=%s", id),
		})
	}
	return videos
}

func newTestPipeline(playlists *fakePlaylist, transcripts *fakeTranscripts, engine *fakeEngine, records *fakeRecords, notifier *fakeNotifier) *Pipeline {
	p := NewPipeline(playlists, transcripts, engine, records, notifier, "PLinput", "PLoutput")
	p.pause = 0
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestRunProcessesNewVideosInOrder(t *testing.T) {
	playlists := &fakePlaylist{videos: testVideos("v1", "v2", "v3")}
	records := &fakeRecords{}
	notifier := &fakeNotifier{enabled: true}
	p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, notifier)

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(outcome.Videos) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcome.Videos))
	}
	for i, want := range []string{"v1", "v2", "v3"} {
		if outcome.Videos[i].VideoID != want {
			t.Errorf("outcome[%d] = %s, want %s", i, outcome.Videos[i].VideoID, want)
		}
		if outcome.Videos[i].Kind != models.OutcomeDone {
			t.Errorf("outcome[%d].Kind = %s, want %s", i, outcome.Videos[i].Kind, models.OutcomeDone)
		}
	}

	if len(records.written) != 3 {
		t.Errorf("Expected 3 records written, got %d", len(records.written))
	}
	for _, rec := range records.written {
		if rec.Status != models.StatusSummarized {
			t.Errorf("Record %s has status %s, want %s", rec.VideoID, rec.Status, models.StatusSummarized)
		}
		if rec.Synopsis == "" || rec.KeyPoints == "" {
			t.Errorf("Record %s is missing summary content", rec.VideoID)
		}
	}

	if len(playlists.moved) != 3 {
		t.Errorf("Expected 3 videos moved, got %d", len(playlists.moved))
	}
	if len(notifier.digests) != 1 {
		t.Errorf("Expected 1 batch digest, got %d", len(notifier.digests))
	}
}

func TestRunSkipsAlreadyProcessedVideos(t *testing.T) {
	playlists := &fakePlaylist{videos: testVideos("v1", "v2", "v3")}
	records := &fakeRecords{processed: map[string]bool{"v2": true}}
	p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, &fakeNotifier{})

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if outcome.AlreadyProcessed != 1 {
		t.Errorf("AlreadyProcessed = %d, want 1", outcome.AlreadyProcessed)
	}
	if len(outcome.Videos) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcome.Videos))
	}
	if outcome.Videos[0].VideoID != "v1" || outcome.Videos[1].VideoID != "v3" {
		t.Errorf("Processed %s, %s; want v1, v3", outcome.Videos[0].VideoID, outcome.Videos[1].VideoID)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	playlists := &fakePlaylist{videos: testVideos("v1", "v2")}
	records := &fakeRecords{}
	p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, &fakeNotifier{})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	firstWrites := len(records.written)

	// Playlist membership unchanged; the record store now knows both videos.
	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if len(outcome.Videos) != 0 {
		t.Errorf("Second run processed %d videos, want 0", len(outcome.Videos))
	}
	if len(records.written) != firstWrites {
		t.Errorf("Second run wrote %d additional records", len(records.written)-firstWrites)
	}
}

func TestRunEmptyBatchSkipsDigest(t *testing.T) {
	playlists := &fakePlaylist{}
	notifier := &fakeNotifier{enabled: true}
	p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, &fakeRecords{}, notifier)

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if len(outcome.Videos) != 0 {
		t.Errorf("Expected empty outcome, got %d videos", len(outcome.Videos))
	}
	if len(notifier.digests) != 0 {
		t.Errorf("Empty batch sent %d digests, want 0", len(notifier.digests))
	}
}

func TestRunIsolatesPerVideoFailures(t *testing.T) {
	playlists := &fakePlaylist{videos: testVideos("v1", "v2", "v3")}
	transcripts := &fakeTranscripts{
		results: map[string]models.TranscriptResult{
			"v2": {Reason: "no captions found"},
		},
	}
	records := &fakeRecords{}
	p := newTestPipeline(playlists, transcripts, &fakeEngine{}, records, &fakeNotifier{})

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(outcome.Videos) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcome.Videos))
	}
	if outcome.Videos[1].Kind != models.OutcomeTranscriptUnavailable {
		t.Errorf("v2 kind = %s, want %s", outcome.Videos[1].Kind, models.OutcomeTranscriptUnavailable)
	}

	var summarized, errored int
	for _, rec := range records.written {
		switch rec.Status {
		case models.StatusSummarized:
			summarized++
		case models.StatusError:
			errored++
		}
	}
	if summarized != 2 || errored != 1 {
		t.Errorf("Got %d summarized and %d error records, want 2 and 1", summarized, errored)
	}
}

func TestRunTranscriptUnavailablePath(t *testing.T) {
	playlists := &fakePlaylist{videos: testVideos("v1")}
	transcripts := &fakeTranscripts{
		results: map[string]models.TranscriptResult{
			"v1": {Reason: "no captions found"},
		},
	}
	engine := &fakeEngine{}
	records := &fakeRecords{}
	notifier := &fakeNotifier{enabled: true}
	p := newTestPipeline(playlists, transcripts, engine, records, notifier)

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(engine.calls) != 0 {
		t.Errorf("Summarizer was called for a video without transcript")
	}

	if len(records.written) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records.written))
	}
	rec := records.written[0]
	if rec.Status != models.StatusError {
		t.Errorf("Record status = %s, want %s", rec.Status, models.StatusError)
	}
	if rec.KeyPoints != "" || rec.Audience != "" {
		t.Errorf("Error record carries summary content: %q / %q", rec.KeyPoints, rec.Audience)
	}

	// Caption-less videos still count as processed and are relocated, so
	// they are never re-attempted.
	if len(playlists.moved) != 1 || playlists.moved[0] != "v1" {
		t.Errorf("Video was not relocated: moved = %v", playlists.moved)
	}
	if outcome.Videos[0].Kind != models.OutcomeTranscriptUnavailable {
		t.Errorf("Outcome kind = %s, want %s", outcome.Videos[0].Kind, models.OutcomeTranscriptUnavailable)
	}
	if len(notifier.errors) != 1 {
		t.Errorf("Expected 1 error notification, got %d", len(notifier.errors))
	}
	if len(notifier.summaries) != 0 {
		t.Errorf("Error record triggered a summary notification")
	}
}

func TestRunSummarizationFailureDegradesToErrorRecord(t *testing.T) {
	playlists := &fakePlaylist{videos: testVideos("v1")}
	engine := &fakeEngine{errs: map[string]error{"v1": errors.New("model exploded")}}
	records := &fakeRecords{}
	p := newTestPipeline(playlists, &fakeTranscripts{}, engine, records, &fakeNotifier{})

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if outcome.Videos[0].Kind != models.OutcomeSummarizationFailed {
		t.Errorf("Outcome kind = %s, want %s", outcome.Videos[0].Kind, models.OutcomeSummarizationFailed)
	}
	if len(records.written) != 1 || records.written[0].Status != models.StatusError {
		t.Fatalf("Expected one error record, got %+v", records.written)
	}
	if len(playlists.moved) != 1 {
		t.Errorf("Failed-summary video was not relocated")
	}
}

func TestRunRecordBeforeRelocate(t *testing.T) {
	playlists := &fakePlaylist{
		videos:  testVideos("v1"),
		moveErr: errors.New("playlist API down"),
	}
	records := &fakeRecords{}
	p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, &fakeNotifier{})

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	// The record must exist with the right status even though the move
	// failed, and nothing may have reached the output playlist.
	if len(records.written) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records.written))
	}
	if records.written[0].Status != models.StatusSummarized {
		t.Errorf("Record status = %s, want %s", records.written[0].Status, models.StatusSummarized)
	}
	if len(playlists.moved) != 0 {
		t.Errorf("Video reached output playlist despite move failure")
	}
	if outcome.Videos[0].Kind != models.OutcomeRelocationFailed {
		t.Errorf("Outcome kind = %s, want %s", outcome.Videos[0].Kind, models.OutcomeRelocationFailed)
	}

	// The record is durable: the next run must skip the video entirely
	// without re-attempting the move.
	playlists.moveErr = nil
	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if len(second.Videos) != 0 {
		t.Errorf("Second run re-processed a recorded video")
	}
	if len(playlists.moved) != 0 {
		t.Errorf("Second run re-attempted the move")
	}
}

func TestRunRecordWriteFailure(t *testing.T) {
	playlists := &fakePlaylist{videos: testVideos("v1")}
	records := &fakeRecords{writeErr: errors.New("store rejected write")}
	p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, &fakeNotifier{})

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if outcome.Videos[0].Kind != models.OutcomeRecordWriteFailed {
		t.Errorf("Outcome kind = %s, want %s", outcome.Videos[0].Kind, models.OutcomeRecordWriteFailed)
	}
	// No record means no move: the video stays put and is retried next run.
	if len(playlists.moved) != 0 {
		t.Errorf("Video was moved without a record")
	}
}

func TestRunFatalWhenEnumerationFails(t *testing.T) {
	t.Run("PlaylistListingFails", func(t *testing.T) {
		playlists := &fakePlaylist{listErr: errors.New("quota exceeded")}
		records := &fakeRecords{}
		p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, &fakeNotifier{})

		if _, err := p.Run(context.Background()); err == nil {
			t.Fatal("Expected error when playlist listing fails")
		}
		if len(records.written) != 0 {
			t.Errorf("Records were written during a fatal run")
		}
	})

	t.Run("RecordListingFails", func(t *testing.T) {
		playlists := &fakePlaylist{videos: testVideos("v1", "v2")}
		records := &fakeRecords{listErr: errors.New("database unreachable")}
		p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, &fakeNotifier{})

		if _, err := p.Run(context.Background()); err == nil {
			t.Fatal("Expected error when record listing fails")
		}
		if len(records.written) != 0 {
			t.Errorf("Records were written during a fatal run")
		}
		if len(playlists.moved) != 0 {
			t.Errorf("Videos were moved during a fatal run")
		}
	})
}

func TestRunDurationLookup(t *testing.T) {
	t.Run("DurationOnRecord", func(t *testing.T) {
		playlists := &fakePlaylist{
			videos:    testVideos("v1"),
			durations: map[string]string{"v1": "1:30:45"},
		}
		records := &fakeRecords{}
		p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, &fakeNotifier{})

		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run() returned error: %v", err)
		}
		if records.written[0].Duration != "1:30:45" {
			t.Errorf("Record duration = %s, want 1:30:45", records.written[0].Duration)
		}
	})

	t.Run("LookupFailureDegradesToUnknown", func(t *testing.T) {
		playlists := &fakePlaylist{
			videos: testVideos("v1"),
			durErr: errors.New("video details unavailable"),
		}
		records := &fakeRecords{}
		p := newTestPipeline(playlists, &fakeTranscripts{}, &fakeEngine{}, records, &fakeNotifier{})

		outcome, err := p.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() returned error: %v", err)
		}
		if outcome.Videos[0].Kind != models.OutcomeDone {
			t.Errorf("Duration failure changed the outcome: %s", outcome.Videos[0].Kind)
		}
		if records.written[0].Duration != "Unknown" {
			t.Errorf("Record duration = %s, want Unknown", records.written[0].Duration)
		}
	})
}

func TestBulletList(t *testing.T) {
	tests := []struct {
		name     string
		points   []string
		expected string
	}{
		{"Empty", nil, ""},
		{"Single", []string{"one"}, "• one"},
		{"Multiple", []string{"one", "two"}, "• one\n• two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bulletList(tt.points); got != tt.expected {
				t.Errorf("bulletList(%v) = %q, want %q", tt.points, got, tt.expected)
			}
		})
	}
}
