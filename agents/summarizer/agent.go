package summarizer

import (
	"context"
	"fmt"
	"log"
	"time"

	"tubenotes/agents/summarizer/transcript"
	"tubenotes/agents/summarizer/youtube"
	"tubenotes/shared/ai"
	"tubenotes/shared/config"
	"tubenotes/shared/notify"
	"tubenotes/shared/notion"
	"tubenotes/shared/scheduler"
	"tubenotes/shared/storage"
)

// SummarizerMetrics describes one completed run for monitoring.
type SummarizerMetrics struct {
	VideosFound      int
	AlreadyProcessed int
	Processed        int
	Errors           int
}

func (m SummarizerMetrics) GetSummary() string {
	return fmt.Sprintf("found %d videos, processed %d, %d errors", m.VideosFound, m.Processed, m.Errors)
}

// Agent implements the scheduler.Agent interface. It owns the external
// clients and delegates each run to the pipeline.
type Agent struct {
	config        *config.Config
	youtubeClient *youtube.Client
	notifier      *notify.Notifier
	cooldown      *storage.Cooldown
	pipeline      *Pipeline
}

func NewAgent(cfg *config.Config) *Agent {
	return &Agent{
		config: cfg,
	}
}

func (a *Agent) Name() string {
	return "Watch-Later Summarizer"
}

func (a *Agent) Initialize() error {
	log.Printf("Initializing %s...", a.Name())

	if a.youtubeClient == nil {
		client, err := youtube.NewClient(&a.config.YouTube)
		if err != nil {
			return fmt.Errorf("failed to create YouTube client: %w", err)
		}
		a.youtubeClient = client
		log.Println("YouTube client initialized")
	}

	if a.notifier == nil {
		a.notifier = notify.NewNotifier(&a.config.Slack)
		if a.notifier.Enabled() {
			log.Println("Slack notifier initialized")
		} else {
			log.Println("Slack notifier disabled (no webhook URL)")
		}
	}

	if a.cooldown == nil {
		cooldown, err := storage.NewCooldown(a.config.Cooldown.StatePath)
		if err != nil {
			return fmt.Errorf("failed to create cooldown store: %w", err)
		}
		a.cooldown = cooldown
		log.Println("Cooldown store initialized")
	}

	if a.pipeline == nil {
		engine, err := ai.NewSummarizer(&a.config.AI)
		if err != nil {
			return fmt.Errorf("failed to create summarizer: %w", err)
		}

		a.pipeline = NewPipeline(
			a.youtubeClient,
			transcript.NewClient(&a.config.Transcript),
			engine,
			notion.NewStore(&a.config.Notion),
			a.notifier,
			a.config.YouTube.InputPlaylist,
			a.config.YouTube.OutputPlaylist,
		)
		log.Println("Pipeline initialized")
	}

	return nil
}

func (a *Agent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()

	if skip, _ := a.cooldown.ShouldSkipRun(); skip {
		log.Println("Skipping run due to active cooldown")
		return nil
	}

	if a.youtubeClient != nil {
		if err := a.youtubeClient.RefreshToken(); err != nil {
			log.Printf("Warning: Token refresh failed: %v", err)
		}
	}

	outcome, err := a.pipeline.Run(ctx)
	if err != nil {
		a.recordFatal(ctx, err)
		return err
	}

	done, failed := outcome.Counts()

	// Every video failing is indistinguishable from a broken dependency;
	// back off like a fatal run so the next intervals are not wasted.
	if len(outcome.Videos) > 0 && done == 0 {
		err := fmt.Errorf("all %d video(s) failed to process", failed)
		a.recordFatal(ctx, err)
		return err
	}

	if previous, err := a.cooldown.RecordSuccess(); err != nil {
		log.Printf("Warning: Failed to clear cooldown state: %v", err)
	} else if previous != nil {
		if err := a.notifier.Recovery(ctx, previous.ConsecutiveFailures); err != nil {
			log.Printf("Warning: Failed to send recovery notification: %v", err)
		}
	}

	duration := time.Since(startTime)
	metrics := SummarizerMetrics{
		VideosFound:      outcome.TotalInPlaylist,
		AlreadyProcessed: outcome.AlreadyProcessed,
		Processed:        done,
		Errors:           failed,
	}

	if events != nil {
		if failed > 0 && events.OnPartialFailure != nil {
			events.OnPartialFailure(fmt.Errorf("%d of %d videos failed", failed, len(outcome.Videos)), duration)
		} else if failed == 0 && events.OnSuccess != nil {
			events.OnSuccess(metrics, duration)
		}
	}

	log.Printf("Run complete: %s (took %v)", metrics.GetSummary(), duration)
	return nil
}

// recordFatal bumps the cooldown and reports the failure. The error itself
// still propagates to the scheduler, which records the critical failure.
func (a *Agent) recordFatal(ctx context.Context, runErr error) {
	state, err := a.cooldown.RecordFailure(runErr.Error())
	if err != nil {
		log.Printf("Warning: Failed to record cooldown failure: %v", err)
		return
	}

	if err := a.notifier.RunFailure(ctx, runErr.Error(), state.ConsecutiveFailures, state.BackoffMinutes); err != nil {
		log.Printf("Warning: Failed to send failure notification: %v", err)
	}
}
