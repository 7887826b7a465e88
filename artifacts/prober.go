// Package artifacts probes for and reads the transcript and summary
// objects that independent producers write per video.
package artifacts

import (
	"context"
	"log"

	"reviewbot/common"
	"reviewbot/config"
	"reviewbot/types"
)

// Prober reports artifact presence for a video. Store errors are logged
// and reported as absence: an artifact we cannot confirm is treated the
// same as one that was never written, which keeps the completion policy
// conservative.
type Prober struct {
	bucket *common.Bucket
}

// NewProber creates a Prober over the source bucket.
func NewProber(bucket *common.Bucket) *Prober {
	return &Prober{bucket: bucket}
}

// Status checks both artifacts for the video. It never returns an error.
func (p *Prober) Status(ctx context.Context, videoID string) types.ArtifactStatus {
	return types.ArtifactStatus{
		VideoID:       videoID,
		HasTranscript: p.exists(ctx, TranscriptKey(videoID)),
		HasSummary:    p.exists(ctx, SummaryKey(videoID)),
	}
}

func (p *Prober) exists(ctx context.Context, key string) bool {
	ok, err := p.bucket.Exists(ctx, key)
	if err != nil {
		log.Printf("artifacts: probe %s failed, treating as absent: %v", key, err)
		return false
	}
	return ok
}

// TranscriptKey returns the object key of a video's transcript.
func TranscriptKey(videoID string) string {
	return config.TranscriptPrefix + videoID + ".txt"
}

// SummaryKey returns the object key of a video's summary.
func SummaryKey(videoID string) string {
	return config.SummaryPrefix + videoID + ".txt"
}
