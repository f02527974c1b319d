package models

import "time"

type RecordStatus string

const (
	StatusSummarized RecordStatus = "Summarized"
	StatusError      RecordStatus = "Error"
)

// ProcessedRecord is the unit persisted to the record store, keyed by
// VideoID. A stored record is the durable signal that a video has been
// handled; records are created once and never updated by this system.
type ProcessedRecord struct {
	VideoID     string
	Title       string
	URL         string
	Channel     string
	Synopsis    string
	KeyPoints   string
	Audience    string
	Duration    string
	ProcessedAt time.Time
	Status      RecordStatus
}

type OutcomeKind string

const (
	OutcomeDone                  OutcomeKind = "done"
	OutcomeTranscriptUnavailable OutcomeKind = "transcript unavailable"
	OutcomeSummarizationFailed   OutcomeKind = "summarization failed"
	OutcomeRecordWriteFailed     OutcomeKind = "record write failed"
	OutcomeRelocationFailed      OutcomeKind = "relocation failed"
)

// VideoOutcome is the terminal result of one video within a run.
type VideoOutcome struct {
	VideoID string
	Title   string
	Kind    OutcomeKind
	Detail  string
}

// BatchOutcome collects per-video outcomes for a single run, in processing
// order. It lives only for the duration of the run.
type BatchOutcome struct {
	Started          time.Time
	TotalInPlaylist  int
	AlreadyProcessed int
	Videos           []VideoOutcome
}

// Counts returns how many videos finished cleanly and how many ended with
// an error kind.
func (b *BatchOutcome) Counts() (done, failed int) {
	for _, v := range b.Videos {
		if v.Kind == OutcomeDone {
			done++
		} else {
			failed++
		}
	}
	return done, failed
}

// Errors returns the outcomes that did not finish cleanly, in order.
func (b *BatchOutcome) Errors() []VideoOutcome {
	var errs []VideoOutcome
	for _, v := range b.Videos {
		if v.Kind != OutcomeDone {
			errs = append(errs, v)
		}
	}
	return errs
}
