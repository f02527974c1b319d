package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"tubenotes/internal/models"
	"tubenotes/shared/config"

	"github.com/slack-go/slack"
)

// Notifier posts run results to a Slack incoming webhook. Every method is
// best-effort: callers log returned errors but never fail a run over them.
// An empty webhook URL disables the notifier entirely.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(cfg *config.SlackConfig) *Notifier {
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// VideoSummary posts the finished summary for a single video.
func (n *Notifier) VideoSummary(ctx context.Context, rec *models.ProcessedRecord) error {
	if !n.Enabled() {
		log.Println("Slack webhook not configured, skipping notification")
		return nil
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("📺 %s", rec.Title), true, false)),
		slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Channel:* %s  |  *Duration:* %s", rec.Channel, rec.Duration), false, false),
		),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Summary*\n%s", rec.Synopsis), false, false), nil, nil),
	}

	if rec.KeyPoints != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Key Points*\n%s", rec.KeyPoints), false, false), nil, nil))
	}

	watchButton := slack.NewButtonBlockElement("watch_video", rec.VideoID,
		slack.NewTextBlockObject(slack.PlainTextType, "Watch Video", true, false))
	watchButton.URL = rec.URL
	watchButton.Style = slack.StylePrimary
	blocks = append(blocks, slack.NewActionBlock("", watchButton))

	return n.post(ctx, fmt.Sprintf("New video summary: %s", rec.Title), blocks)
}

// ProcessingError reports a single video that could not be processed.
func (n *Notifier) ProcessingError(ctx context.Context, title, url, reason string) error {
	if !n.Enabled() {
		return nil
	}

	text := fmt.Sprintf("⚠️ *Processing failed*\n*<%s|%s>*\n%s", url, title, reason)
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}

	return n.post(ctx, fmt.Sprintf("Processing failed: %s", title), blocks)
}

// BatchDigest posts the aggregate result of one run.
func (n *Notifier) BatchDigest(ctx context.Context, outcome *models.BatchOutcome) error {
	if !n.Enabled() {
		return nil
	}

	done, failed := outcome.Counts()

	var summary strings.Builder
	fmt.Fprintf(&summary, "*Processed:* %d  |  *Errors:* %d", done, failed)
	if outcome.AlreadyProcessed > 0 {
		fmt.Fprintf(&summary, "  |  *Skipped (already done):* %d", outcome.AlreadyProcessed)
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "📋 Watch-later digest", true, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, summary.String(), false, false), nil, nil),
	}

	if errs := outcome.Errors(); len(errs) > 0 {
		var lines []string
		for _, e := range errs {
			lines = append(lines, fmt.Sprintf("• %s — %s", e.Title, e.Kind))
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Failures*\n"+strings.Join(lines, "\n"), false, false), nil, nil))
	}

	return n.post(ctx, fmt.Sprintf("Watch-later digest: %d processed, %d errors", done, failed), blocks)
}

// RunFailure reports a fatal run error along with the cooldown schedule.
func (n *Notifier) RunFailure(ctx context.Context, errMsg string, attempt, nextRetryMinutes int) error {
	if !n.Enabled() {
		return nil
	}

	text := fmt.Sprintf("🚨 *Run failed* (failure #%d)\n%s\nNext retry in %d minutes.", attempt, errMsg, nextRetryMinutes)
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}

	return n.post(ctx, "Run failed", blocks)
}

// Recovery reports that runs are succeeding again after a failure streak.
func (n *Notifier) Recovery(ctx context.Context, previousFailures int) error {
	if !n.Enabled() {
		return nil
	}

	text := fmt.Sprintf("✅ *Recovered* after %d failed run(s). Processing is back to normal.", previousFailures)
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}

	return n.post(ctx, "Recovered", blocks)
}

func (n *Notifier) post(ctx context.Context, fallback string, blocks []slack.Block) error {
	msg := &slack.WebhookMessage{
		Text:   fallback,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.httpClient, msg); err != nil {
		return fmt.Errorf("failed to post Slack webhook: %w", err)
	}
	return nil
}
