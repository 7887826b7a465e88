package types

import "time"

// VideoMetadata is the per-video catalog record written by the upstream
// search/scrape pipeline under processed/videos/{video_id}.json. The
// coordinator only reads these records, it never mutates them.
type VideoMetadata struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	ChannelName string `json:"channel_name"`
	ViewCount   int64  `json:"view_count"`
	Duration    string `json:"duration"`
	URL         string `json:"url"`
	SearchQuery string `json:"search_query"`

	TranscriptAvailable bool `json:"transcript_available,omitempty"`
	SummaryAvailable    bool `json:"summary_available,omitempty"`
}

// ArtifactStatus reports which derived artifacts exist for one video.
type ArtifactStatus struct {
	VideoID       string `json:"video_id"`
	HasTranscript bool   `json:"has_transcript"`
	HasSummary    bool   `json:"has_summary"`
}

// Complete reports whether both required artifacts are present.
func (s ArtifactStatus) Complete() bool {
	return s.HasTranscript && s.HasSummary
}

// CompletionState is the computed readiness of a search-query group.
type CompletionState string

const (
	// StateNoItems means the catalog has no videos for the query.
	StateNoItems CompletionState = "no_items"
	// StatePending means the group is not ready for aggregation yet.
	StatePending CompletionState = "pending"
	// StateComplete means every video in the group has both artifacts.
	StateComplete CompletionState = "complete"
	// StateTimedOutPartial means the wait window elapsed with enough of
	// the group complete to proceed with the completed subset.
	StateTimedOutPartial CompletionState = "timed_out_partial"
)

// Ready reports whether the state authorizes aggregation.
func (s CompletionState) Ready() bool {
	return s == StateComplete || s == StateTimedOutPartial
}

// ObjectEvent is a storage notification for a finalized object. It is
// delivered either via the /process webhook (optionally wrapped in a
// Pub/Sub-style envelope) or via the Kafka events topic.
type ObjectEvent struct {
	Bucket     string `json:"bucket"`
	ObjectName string `json:"name"`
	EventType  string `json:"eventType"`
}

// EventTypeFinalize is the only event type that triggers evaluation.
const EventTypeFinalize = "OBJECT_FINALIZE"

// PendingEntry tracks how long a group has been waiting for its videos
// to finish processing.
type PendingEntry struct {
	SearchQuery string    `json:"search_query"`
	FirstSeen   time.Time `json:"first_seen"`
	LastUpdate  time.Time `json:"last_update"`
}
