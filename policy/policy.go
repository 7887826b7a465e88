// Package policy decides when a search-query group is ready for
// aggregation: either every video has both artifacts, or the wait window
// has elapsed with enough of the group complete to accept a partial
// result.
package policy

import (
	"context"
	"time"

	"reviewbot/types"
)

// Result is the outcome of one completion check.
type Result struct {
	State           types.CompletionState  `json:"state"`
	CompletedVideos int                    `json:"completed_videos"`
	PendingVideos   int                    `json:"pending_videos"`
	TotalVideos     int                    `json:"total_videos"`
	CompletionRate  float64                `json:"completion_rate"`
	Statuses        []types.ArtifactStatus `json:"-"`
}

// Ready reports whether the result authorizes aggregation.
func (r Result) Ready() bool { return r.State.Ready() }

// Policy holds the completion thresholds. The decision is monotone in
// time: once a group is complete it stays complete, and the timeout
// fallback only widens what counts as ready.
type Policy struct {
	// WaitWindow is how long after first sight a group may stay
	// incomplete before the partial fallback applies.
	WaitWindow time.Duration
	// MinCompletionRate is the completion fraction a timed-out group
	// must reach to be accepted as partial. Groups below the floor stay
	// pending indefinitely unless forced.
	MinCompletionRate float64
}

// Decide applies the policy to per-video artifact statuses. startedAt
// may be zero when the wait start is unknown (e.g. a group discovered by
// the sweep fallback after a restart); in that case only full completion
// makes the group ready.
func (p Policy) Decide(statuses []types.ArtifactStatus, startedAt, now time.Time) Result {
	res := Result{
		State:       types.StateNoItems,
		TotalVideos: len(statuses),
		Statuses:    statuses,
	}
	if len(statuses) == 0 {
		return res
	}

	for _, s := range statuses {
		if s.Complete() {
			res.CompletedVideos++
		} else {
			res.PendingVideos++
		}
	}
	res.CompletionRate = float64(res.CompletedVideos) / float64(res.TotalVideos)

	switch {
	case res.CompletedVideos == res.TotalVideos:
		res.State = types.StateComplete
	case !startedAt.IsZero() &&
		now.Sub(startedAt) > p.WaitWindow &&
		res.CompletionRate >= p.MinCompletionRate:
		res.State = types.StateTimedOutPartial
	default:
		res.State = types.StatePending
	}
	return res
}

// GroupIndex enumerates the videos belonging to a search query.
type GroupIndex interface {
	VideosForQuery(ctx context.Context, query string) ([]types.VideoMetadata, error)
}

// Prober reports artifact presence for one video.
type Prober interface {
	Status(ctx context.Context, videoID string) types.ArtifactStatus
}

// Evaluator composes the group index and prober with a Policy to answer
// "is this group ready" for a live query.
type Evaluator struct {
	Index  GroupIndex
	Prober Prober
	Policy Policy
}

// Evaluate probes every video in the group and applies the policy. An
// index error comes back as NO_ITEMS with the error attached; callers at
// the boundary log it and treat the group as not ready.
func (e *Evaluator) Evaluate(ctx context.Context, query string, startedAt, now time.Time) (Result, error) {
	videos, err := e.Index.VideosForQuery(ctx, query)
	if err != nil {
		return Result{State: types.StateNoItems}, err
	}

	statuses := make([]types.ArtifactStatus, 0, len(videos))
	for _, video := range videos {
		statuses = append(statuses, e.Prober.Status(ctx, video.VideoID))
	}
	return e.Policy.Decide(statuses, startedAt, now), nil
}
