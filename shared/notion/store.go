package notion

import (
	"context"
	"fmt"
	"log"

	"tubenotes/internal/models"
	"tubenotes/shared/config"

	"github.com/jomei/notionapi"
)

// Notion caps rich_text values at 2000 characters per block.
const maxRichTextLength = 2000

const queryPageSize = 100

// Property names in the target database. The database schema is created by
// hand once; these must match it exactly.
const (
	propTitle     = "Title"
	propVideoID   = "Video ID"
	propURL       = "URL"
	propChannel   = "Channel"
	propSummary   = "Summary"
	propKeyPoints = "Key Points"
	propAudience  = "Audience"
	propDuration  = "Duration"
	propAdded     = "Added"
	propStatus    = "Status"
)

// Store persists processed-video records in a Notion database. The database
// doubles as the deduplication ledger: a page with a given video ID means
// that video is done and must not be reprocessed.
type Store struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
}

func NewStore(cfg *config.NotionConfig) *Store {
	return &Store{
		client:     notionapi.NewClient(notionapi.Token(cfg.APIKey)),
		databaseID: notionapi.DatabaseID(cfg.DatabaseID),
	}
}

// ListProcessedIDs returns every video ID present in the database. The
// caller gets the complete set in one call; pagination stays in here.
func (s *Store) ListProcessedIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	var cursor notionapi.Cursor

	for {
		resp, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    queryPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query Notion database: %w", err)
		}

		for _, page := range resp.Results {
			if id := videoIDOf(page); id != "" {
				ids[id] = true
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	log.Printf("Found %d already processed videos in Notion", len(ids))
	return ids, nil
}

// WriteRecord creates one page for the record. Errors from the store are
// returned verbatim; a rejected write must never pass silently because the
// page is what stops the video from being processed again.
func (s *Store) WriteRecord(ctx context.Context, rec *models.ProcessedRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.VideoID == "" {
		return fmt.Errorf("record video ID is required")
	}

	added := notionapi.Date(rec.ProcessedAt)

	properties := notionapi.Properties{
		propTitle:     notionapi.TitleProperty{Title: richText(rec.Title)},
		propVideoID:   notionapi.RichTextProperty{RichText: richText(rec.VideoID)},
		propURL:       notionapi.URLProperty{URL: rec.URL},
		propChannel:   notionapi.RichTextProperty{RichText: richText(rec.Channel)},
		propSummary:   notionapi.RichTextProperty{RichText: richText(truncateText(rec.Synopsis, maxRichTextLength))},
		propKeyPoints: notionapi.RichTextProperty{RichText: richText(truncateText(rec.KeyPoints, maxRichTextLength))},
		propAudience:  notionapi.RichTextProperty{RichText: richText(truncateText(rec.Audience, maxRichTextLength))},
		propDuration:  notionapi.RichTextProperty{RichText: richText(rec.Duration)},
		propAdded:     notionapi.DateProperty{Date: &notionapi.DateObject{Start: &added}},
		propStatus:    notionapi.SelectProperty{Select: notionapi.Option{Name: string(rec.Status)}},
	}

	page, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.databaseID,
		},
		Properties: properties,
	})
	if err != nil {
		return fmt.Errorf("failed to create Notion page for video %s: %w", rec.VideoID, err)
	}

	log.Printf("Created Notion page for video %s (page %s, status %s)", rec.VideoID, page.ID, rec.Status)
	return nil
}

// videoIDOf extracts the video ID property from a database page, tolerating
// pages with a missing or malformed property.
func videoIDOf(page notionapi.Page) string {
	prop, ok := page.Properties[propVideoID]
	if !ok {
		return ""
	}

	var parts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		parts = p.RichText
	case notionapi.RichTextProperty:
		parts = p.RichText
	default:
		return ""
	}

	if len(parts) == 0 {
		return ""
	}
	if parts[0].PlainText != "" {
		return parts[0].PlainText
	}
	if parts[0].Text != nil {
		return parts[0].Text.Content
	}
	return ""
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{Text: &notionapi.Text{Content: content}},
	}
}

func truncateText(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	return text[:maxLength-3] + "..."
}
