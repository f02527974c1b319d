package summarizer

import (
	"context"
	"fmt"
	"log"
	"time"

	"tubenotes/internal/models"
)

// PlaylistSource lists the input playlist and relocates finished videos.
type PlaylistSource interface {
	ListPlaylistVideos(ctx context.Context, playlistID string) ([]*models.Video, error)
	VideoDuration(ctx context.Context, videoID string) (string, error)
	MoveVideo(ctx context.Context, video *models.Video, targetPlaylistID string) error
}

// TranscriptSource resolves a video ID to its transcript, or to a typed
// unavailable result.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (models.TranscriptResult, error)
}

// SummaryEngine turns a transcript into a structured summary.
type SummaryEngine interface {
	Summarize(ctx context.Context, video *models.Video, transcript string) (*models.Summary, error)
}

// RecordStore is the durable ledger: it holds one record per processed
// video and answers which videos are already done.
type RecordStore interface {
	ListProcessedIDs(ctx context.Context) (map[string]bool, error)
	WriteRecord(ctx context.Context, rec *models.ProcessedRecord) error
}

// Notifier reports results out of band. All calls are best-effort.
type Notifier interface {
	Enabled() bool
	VideoSummary(ctx context.Context, rec *models.ProcessedRecord) error
	ProcessingError(ctx context.Context, title, url, reason string) error
	BatchDigest(ctx context.Context, outcome *models.BatchOutcome) error
}

// Pipeline drives one batch: list the input playlist, drop everything the
// record store already knows, then walk each remaining video through
// transcript, summary, record and relocation, strictly in playlist order
// and one at a time.
type Pipeline struct {
	playlists   PlaylistSource
	transcripts TranscriptSource
	engine      SummaryEngine
	records     RecordStore
	notifier    Notifier

	inputPlaylist  string
	outputPlaylist string

	// pause throttles consecutive videos to stay friendly with API rate
	// limits. Zero disables it.
	pause time.Duration
	now   func() time.Time
}

func NewPipeline(playlists PlaylistSource, transcripts TranscriptSource, engine SummaryEngine, records RecordStore, notifier Notifier, inputPlaylist, outputPlaylist string) *Pipeline {
	return &Pipeline{
		playlists:      playlists,
		transcripts:    transcripts,
		engine:         engine,
		records:        records,
		notifier:       notifier,
		inputPlaylist:  inputPlaylist,
		outputPlaylist: outputPlaylist,
		pause:          2 * time.Second,
		now:            time.Now,
	}
}

// Run executes one batch. It returns an error only when the work set cannot
// be determined (playlist listing or record enumeration failed); individual
// video failures land in the returned outcome instead.
func (p *Pipeline) Run(ctx context.Context) (*models.BatchOutcome, error) {
	log.Printf("Fetching videos from input playlist...")
	videos, err := p.playlists.ListPlaylistVideos(ctx, p.inputPlaylist)
	if err != nil {
		return nil, fmt.Errorf("failed to list input playlist: %w", err)
	}

	log.Printf("Checking for already-processed videos...")
	processed, err := p.records.ListProcessedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed records: %w", err)
	}

	outcome := &models.BatchOutcome{
		Started:         p.now(),
		TotalInPlaylist: len(videos),
	}

	// Set difference in playlist order: processing order is what the user
	// sees in the destination database.
	var newVideos []*models.Video
	for _, video := range videos {
		if processed[video.ID] {
			outcome.AlreadyProcessed++
			continue
		}
		newVideos = append(newVideos, video)
	}

	log.Printf("Found %d videos in playlist (%d new, %d already processed)",
		len(videos), len(newVideos), outcome.AlreadyProcessed)

	if len(newVideos) == 0 {
		// A clean no-op run. The digest is skipped: an unchanged playlist
		// every few hours is not worth a notification.
		log.Println("No new videos to process")
		return outcome, nil
	}

	for i, video := range newVideos {
		log.Printf("Processing video %d/%d: %s (%s)", i+1, len(newVideos), video.Title, video.ID)

		kind, detail := p.processVideo(ctx, video)
		outcome.Videos = append(outcome.Videos, models.VideoOutcome{
			VideoID: video.ID,
			Title:   video.Title,
			Kind:    kind,
			Detail:  detail,
		})

		if p.pause > 0 && i < len(newVideos)-1 {
			select {
			case <-time.After(p.pause):
			case <-ctx.Done():
				return outcome, ctx.Err()
			}
		}
	}

	done, failed := outcome.Counts()
	log.Printf("Batch complete: %d processed, %d errors", done, failed)

	if err := p.notifier.BatchDigest(ctx, outcome); err != nil {
		log.Printf("Warning: Failed to send batch digest: %v", err)
	}

	return outcome, nil
}

// processVideo walks a single video through the sub-pipeline. Every path
// ends in exactly one terminal outcome; nothing here aborts the batch. The
// detail string is empty for clean completions.
func (p *Pipeline) processVideo(ctx context.Context, video *models.Video) (models.OutcomeKind, string) {
	if duration, err := p.playlists.VideoDuration(ctx, video.ID); err != nil {
		log.Printf("Warning: Could not get duration for video %s: %v", video.ID, err)
		video.Duration = "Unknown"
	} else {
		video.Duration = duration
	}

	rec := &models.ProcessedRecord{
		VideoID:     video.ID,
		Title:       video.Title,
		URL:         video.URL,
		Channel:     video.Channel,
		Duration:    video.Duration,
		ProcessedAt: p.now(),
		Status:      models.StatusSummarized,
	}
	kind := models.OutcomeDone
	detail := ""

	log.Printf("  Fetching transcript...")
	transcript, err := p.transcripts.Fetch(ctx, video.ID)
	switch {
	case err != nil:
		detail = fmt.Sprintf("transcript fetch failed: %v", err)
		p.degradeToError(ctx, video, rec, detail)
		kind = models.OutcomeTranscriptUnavailable

	case !transcript.Available():
		detail = fmt.Sprintf("no transcript available: %s", transcript.Reason)
		p.degradeToError(ctx, video, rec, detail)
		kind = models.OutcomeTranscriptUnavailable

	default:
		log.Printf("  Summarizing...")
		summary, err := p.engine.Summarize(ctx, video, transcript.Text)
		if err != nil {
			detail = fmt.Sprintf("summarization failed: %v", err)
			p.degradeToError(ctx, video, rec, detail)
			kind = models.OutcomeSummarizationFailed
		} else {
			rec.Synopsis = summary.Synopsis
			rec.KeyPoints = bulletList(summary.KeyPoints)
			rec.Audience = summary.Audience
		}
	}

	// The record write must land before the move. The record is the only
	// durable signal that stops reprocessing; a moved-but-unrecorded video
	// would vanish without a trace.
	log.Printf("  Writing record...")
	if err := p.records.WriteRecord(ctx, rec); err != nil {
		log.Printf("  Failed to write record for video %s: %v", video.ID, err)
		return models.OutcomeRecordWriteFailed, err.Error()
	}

	if rec.Status == models.StatusSummarized {
		if err := p.notifier.VideoSummary(ctx, rec); err != nil {
			log.Printf("  Warning: Failed to send summary notification: %v", err)
		}
	}

	// Errored videos are relocated too: a record exists for them, so they
	// will never be retried, and leaving them in the input playlist would
	// just accumulate clutter.
	log.Printf("  Moving to output playlist...")
	if err := p.playlists.MoveVideo(ctx, video, p.outputPlaylist); err != nil {
		// Recorded but not relocated: the video will be skipped on future
		// runs and stays visible in the input playlist until moved by hand.
		log.Printf("  Failed to move video %s (record was written, it will not be reprocessed): %v", video.ID, err)
		return models.OutcomeRelocationFailed, err.Error()
	}

	return kind, detail
}

// degradeToError rewrites the pending record as an error record and fires
// the per-video failure notification.
func (p *Pipeline) degradeToError(ctx context.Context, video *models.Video, rec *models.ProcessedRecord, reason string) {
	log.Printf("  %s", reason)

	rec.Status = models.StatusError
	rec.Synopsis = "Error: " + reason
	rec.KeyPoints = ""
	rec.Audience = ""

	if err := p.notifier.ProcessingError(ctx, video.Title, video.URL, reason); err != nil {
		log.Printf("  Warning: Failed to send error notification: %v", err)
	}
}

func bulletList(points []string) string {
	var out string
	for i, point := range points {
		if i > 0 {
			out += "\n"
		}
		out += "• " + point
	}
	return out
}
