package models

// Video is a single entry of the input playlist. Identity is the video ID;
// PlaylistItemID is the handle needed to remove the entry from the playlist
// it was listed from.
type Video struct {
	ID             string `json:"id"`
	PlaylistItemID string `json:"playlist_item_id"`
	Title          string `json:"title"`
	Channel        string `json:"channel"`
	Duration       string `json:"duration"`
	URL            string `json:"url"`
}

// TranscriptResult is either an available transcript or a typed
// "unavailable" outcome. Reason is set iff no transcript could be fetched.
type TranscriptResult struct {
	Text   string
	Reason string
}

func (t TranscriptResult) Available() bool {
	return t.Reason == ""
}

// Summary is the structured output of the summarization engine.
type Summary struct {
	Synopsis  string   `json:"synopsis"`
	KeyPoints []string `json:"key_points"`
	Audience  string   `json:"target_audience"`
}
