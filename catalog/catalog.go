// Package catalog indexes the per-video metadata records the upstream
// pipeline writes to the object store, grouped by normalized search
// query.
package catalog

import (
	"context"
	"log"
	"strings"

	"reviewbot/common"
	"reviewbot/config"
	"reviewbot/types"
)

// Catalog scans processed/videos/ metadata records. Every lookup is a
// full scan of the prefix; the catalog is expected to stay small
// relative to check frequency, and the grouping contract (normalized
// query equality) is what matters here.
type Catalog struct {
	bucket *common.Bucket
}

// New creates a Catalog over the source bucket.
func New(bucket *common.Bucket) *Catalog {
	return &Catalog{bucket: bucket}
}

// NormalizeQuery lowercases a search query and collapses internal
// whitespace so the same query always lands in the same group.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// AllVideos returns every readable metadata record. Unreadable or
// malformed objects are logged and skipped, never fatal.
func (c *Catalog) AllVideos(ctx context.Context) ([]types.VideoMetadata, error) {
	keys, err := c.bucket.ListKeys(ctx, config.VideoMetadataPrefix)
	if err != nil {
		return nil, err
	}

	videos := make([]types.VideoMetadata, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		var video types.VideoMetadata
		if err := c.bucket.GetJSON(ctx, key, &video); err != nil {
			log.Printf("catalog: skipping unreadable record %s: %v", key, err)
			continue
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// VideosForQuery returns all videos whose normalized search query equals
// the normalized input. Videos with an empty query belong to no group.
func (c *Catalog) VideosForQuery(ctx context.Context, query string) ([]types.VideoMetadata, error) {
	want := NormalizeQuery(query)
	if want == "" {
		return nil, nil
	}

	all, err := c.AllVideos(ctx)
	if err != nil {
		return nil, err
	}

	var matched []types.VideoMetadata
	for _, video := range all {
		if NormalizeQuery(video.SearchQuery) == want {
			matched = append(matched, video)
		}
	}
	return matched, nil
}

// AllQueries enumerates every distinct normalized search query present
// in the catalog. Empty queries are excluded.
func (c *Catalog) AllQueries(ctx context.Context) (map[string]struct{}, error) {
	all, err := c.AllVideos(ctx)
	if err != nil {
		return nil, err
	}

	queries := make(map[string]struct{})
	for _, video := range all {
		if q := NormalizeQuery(video.SearchQuery); q != "" {
			queries[q] = struct{}{}
		}
	}
	return queries, nil
}

// VideoByID fetches a single metadata record, or nil if it does not
// exist or cannot be read.
func (c *Catalog) VideoByID(ctx context.Context, videoID string) *types.VideoMetadata {
	key := config.VideoMetadataPrefix + videoID + ".json"
	var video types.VideoMetadata
	if err := c.bucket.GetJSON(ctx, key, &video); err != nil {
		log.Printf("catalog: metadata for video %s unavailable: %v", videoID, err)
		return nil
	}
	return &video
}
