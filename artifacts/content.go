package artifacts

import (
	"context"
	"log"

	"reviewbot/common"
)

// Reader fetches artifact content. Missing or unreadable artifacts come
// back as empty strings; aggregation skips those videos rather than
// failing the run.
type Reader struct {
	bucket *common.Bucket
}

// NewReader creates a Reader over the source bucket.
func NewReader(bucket *common.Bucket) *Reader {
	return &Reader{bucket: bucket}
}

// Transcript returns the video's transcript, or "" if unavailable.
func (r *Reader) Transcript(ctx context.Context, videoID string) string {
	return r.read(ctx, TranscriptKey(videoID))
}

// Summary returns the video's summary, or "" if unavailable.
func (r *Reader) Summary(ctx context.Context, videoID string) string {
	return r.read(ctx, SummaryKey(videoID))
}

func (r *Reader) read(ctx context.Context, key string) string {
	content, err := r.bucket.GetText(ctx, key)
	if err != nil {
		log.Printf("artifacts: read %s failed: %v", key, err)
		return ""
	}
	return content
}
