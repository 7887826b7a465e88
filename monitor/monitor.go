// Package monitor coordinates the two trigger paths that decide when a
// search-query group is aggregated: the synchronous storage-event
// handler and the periodic background sweeper. Both funnel through one
// claim step so a ready group is handed to aggregation exactly once per
// process.
package monitor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"reviewbot/catalog"
	"reviewbot/config"
	"reviewbot/policy"
	"reviewbot/registry"
	"reviewbot/types"
)

// Index is the catalog surface the monitor needs.
type Index interface {
	VideosForQuery(ctx context.Context, query string) ([]types.VideoMetadata, error)
	AllQueries(ctx context.Context) (map[string]struct{}, error)
	VideoByID(ctx context.Context, videoID string) *types.VideoMetadata
}

// Evaluator answers whether a group is ready. Implemented by
// *policy.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, query string, startedAt, now time.Time) (policy.Result, error)
}

// Trigger runs the aggregation step for a claimed group.
type Trigger interface {
	Run(ctx context.Context, searchQuery string, videos []types.VideoMetadata) types.AggregationReport
}

// Options configure the monitor.
type Options struct {
	SourceBucket  string
	WaitWindow    time.Duration
	SweepInterval time.Duration
	ErrorBackoff  time.Duration
}

// Monitor owns the pending registry and drives evaluation from both
// trigger paths.
type Monitor struct {
	reg     registry.Registry
	index   Index
	eval    Evaluator
	trigger Trigger
	opts    Options
	now     func() time.Time

	// inflight keeps the push and poll paths from aggregating one
	// group concurrently inside this process. The registry claim
	// arbitrates between holders of the same registry; this set covers
	// groups the sweeper discovers outside the registry.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// New wires a Monitor.
func New(reg registry.Registry, index Index, eval Evaluator, trigger Trigger, opts Options) *Monitor {
	if opts.WaitWindow <= 0 {
		opts.WaitWindow = config.DefaultWaitWindow
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = config.DefaultSweepInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = config.SweepErrorBackoff
	}
	return &Monitor{
		reg:      reg,
		index:    index,
		eval:     eval,
		trigger:  trigger,
		opts:     opts,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// HandleEvent reacts to one storage notification. It never returns an
// error: backend trouble is reported inside the outcome and retried by
// the sweeper later.
func (m *Monitor) HandleEvent(ctx context.Context, ev types.ObjectEvent) types.EventOutcome {
	outcome := types.EventOutcome{FileProcessed: ev.ObjectName}
	defer func() {
		if n, err := m.reg.Len(ctx); err == nil {
			outcome.PendingCount = n
		}
	}()

	if ev.EventType != types.EventTypeFinalize {
		outcome.Status = "skipped"
		outcome.Reason = "event type " + ev.EventType
		return outcome
	}
	if ev.Bucket != m.opts.SourceBucket {
		outcome.Status = "skipped"
		outcome.Reason = "bucket " + ev.Bucket + " is not monitored"
		return outcome
	}

	videoID, ok := videoIDFromKey(ev.ObjectName)
	if !ok {
		outcome.Status = "skipped"
		outcome.Reason = "object outside monitored prefixes"
		return outcome
	}

	video := m.index.VideoByID(ctx, videoID)
	if video == nil {
		outcome.Status = "skipped"
		outcome.Reason = "no metadata record for video " + videoID
		return outcome
	}

	query := catalog.NormalizeQuery(video.SearchQuery)
	if query == "" {
		outcome.Status = "skipped"
		outcome.Reason = "video has no search query"
		return outcome
	}
	outcome.SearchQuery = query

	entry, err := m.reg.Touch(ctx, query)
	if err != nil {
		log.Printf("monitor: registry touch for %q failed: %v", query, err)
		outcome.Status = "monitoring"
		outcome.Reason = "registry unavailable, sweeper will retry"
		return outcome
	}

	now := m.now()
	res, err := m.eval.Evaluate(ctx, query, entry.FirstSeen, now)
	if err != nil {
		log.Printf("monitor: evaluation for %q failed: %v", query, err)
		outcome.Status = "monitoring"
		outcome.Reason = "evaluation failed, sweeper will retry"
		return outcome
	}

	log.Printf("monitor: event for %q: state=%s %d/%d complete",
		query, res.State, res.CompletedVideos, res.TotalVideos)

	if res.Ready() && m.tryAggregate(ctx, query) {
		outcome.Status = "processed"
		return outcome
	}

	outcome.Status = "monitoring"
	return outcome
}

// ForceProcess aggregates a group immediately, bypassing the wait
// window. minCompleted guards against forcing an empty run; the
// min-reviews floor and the dedup guard still apply downstream.
func (m *Monitor) ForceProcess(ctx context.Context, searchQuery string, minCompleted int) (types.AggregationReport, policy.Result, error) {
	query := catalog.NormalizeQuery(searchQuery)
	if query == "" {
		return types.AggregationReport{}, policy.Result{}, fmt.Errorf("search query is required")
	}

	res, err := m.eval.Evaluate(ctx, query, time.Time{}, m.now())
	if err != nil {
		return types.AggregationReport{}, res, fmt.Errorf("evaluate %q: %w", query, err)
	}
	if res.CompletedVideos < minCompleted {
		return types.AggregationReport{}, res, fmt.Errorf(
			"not enough completed videos: need at least %d, have %d", minCompleted, res.CompletedVideos)
	}

	report, ran := m.aggregate(ctx, query)
	if !ran {
		return types.AggregationReport{}, res, fmt.Errorf("group %q is already being aggregated", query)
	}
	return report, res, nil
}

// RunSweeper loops until ctx is canceled. Each iteration re-evaluates
// every known pending group plus every group discoverable through the
// catalog; an iteration failure is logged and followed by the longer
// error backoff, never by exit.
func (m *Monitor) RunSweeper(ctx context.Context) {
	log.Printf("monitor: sweeper started (interval=%s, wait window=%s)",
		m.opts.SweepInterval, m.opts.WaitWindow)

	for {
		delay := m.opts.SweepInterval
		if err := m.sweepOnce(ctx); err != nil {
			log.Printf("monitor: sweep iteration failed: %v", err)
			delay = m.opts.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			log.Println("monitor: sweeper stopped")
			return
		case <-time.After(delay):
		}
	}
}

// sweepOnce performs one sweep: (a) pending entries past their wait
// mark, (b) the catalog fallback for groups the registry has never seen
// (lost notifications, process restarts).
func (m *Monitor) sweepOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
		}
	}()

	now := m.now()

	entries, err := m.reg.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("registry snapshot: %w", err)
	}

	known := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		known[entry.SearchQuery] = struct{}{}

		if now.Before(entry.LastUpdate.Add(m.opts.WaitWindow)) {
			continue
		}
		res, evalErr := m.eval.Evaluate(ctx, entry.SearchQuery, entry.FirstSeen, now)
		if evalErr != nil {
			log.Printf("monitor: sweep evaluation for %q failed: %v", entry.SearchQuery, evalErr)
			continue
		}
		if res.Ready() {
			log.Printf("monitor: sweep found %q ready (state=%s)", entry.SearchQuery, res.State)
			m.tryAggregate(ctx, entry.SearchQuery)
		} else {
			log.Printf("monitor: %q still waiting: %d/%d complete",
				entry.SearchQuery, res.CompletedVideos, res.TotalVideos)
		}
	}

	queries, err := m.index.AllQueries(ctx)
	if err != nil {
		return fmt.Errorf("catalog queries: %w", err)
	}
	for query := range queries {
		if _, ok := known[query]; ok {
			continue
		}
		// No registry entry means no wait start: only full completion
		// can make the group ready here.
		res, evalErr := m.eval.Evaluate(ctx, query, time.Time{}, now)
		if evalErr != nil {
			log.Printf("monitor: fallback evaluation for %q failed: %v", query, evalErr)
			continue
		}
		if res.Ready() {
			log.Printf("monitor: fallback pass found completed group %q outside registry", query)
			m.tryAggregate(ctx, query)
		}
	}

	return nil
}

// tryAggregate claims the group and runs aggregation. It returns false
// when another path holds the group.
func (m *Monitor) tryAggregate(ctx context.Context, query string) bool {
	_, ran := m.aggregate(ctx, query)
	return ran
}

func (m *Monitor) aggregate(ctx context.Context, query string) (types.AggregationReport, bool) {
	m.mu.Lock()
	if _, busy := m.inflight[query]; busy {
		m.mu.Unlock()
		return types.AggregationReport{}, false
	}
	m.inflight[query] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, query)
		m.mu.Unlock()
	}()

	// The registry removal is the claim. A group outside the registry
	// (fallback pass, forced run) has nothing to claim; the inflight
	// set above is its arbitration.
	if entry, existed, err := m.reg.Get(ctx, query); err == nil && existed {
		_, won, claimErr := m.reg.Claim(ctx, query)
		if claimErr != nil {
			log.Printf("monitor: claim for %q failed: %v", query, claimErr)
			return types.AggregationReport{}, false
		}
		if !won {
			log.Printf("monitor: %q already claimed elsewhere", query)
			return types.AggregationReport{}, false
		}
		log.Printf("monitor: claimed %q (pending since %s)", query, entry.FirstSeen.Format(time.RFC3339))
	}

	videos, err := m.index.VideosForQuery(ctx, query)
	if err != nil {
		// The entry is gone but the group stays discoverable through
		// the fallback pass; nothing is lost permanently.
		log.Printf("monitor: loading videos for claimed group %q failed: %v", query, err)
		return types.AggregationReport{}, false
	}

	report := m.trigger.Run(ctx, query, videos)
	return report, true
}

// PendingInfo is one registry entry with its live completion status,
// served by GET /pending.
type PendingInfo struct {
	SearchQuery string        `json:"search_query"`
	FirstSeen   time.Time     `json:"first_seen"`
	LastUpdate  time.Time     `json:"last_update"`
	WaitUntil   time.Time     `json:"wait_until"`
	Completion  policy.Result `json:"completion_status"`
}

// Pending returns the current registry contents with live evaluation.
func (m *Monitor) Pending(ctx context.Context) ([]PendingInfo, error) {
	entries, err := m.reg.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	infos := make([]PendingInfo, 0, len(entries))
	for _, entry := range entries {
		info := PendingInfo{
			SearchQuery: entry.SearchQuery,
			FirstSeen:   entry.FirstSeen,
			LastUpdate:  entry.LastUpdate,
			WaitUntil:   entry.LastUpdate.Add(m.opts.WaitWindow),
		}
		if res, err := m.eval.Evaluate(ctx, entry.SearchQuery, entry.FirstSeen, now); err == nil {
			info.Completion = res
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// PendingCount returns the number of pending groups.
func (m *Monitor) PendingCount(ctx context.Context) int {
	n, err := m.reg.Len(ctx)
	if err != nil {
		log.Printf("monitor: registry len failed: %v", err)
		return 0
	}
	return n
}

// videoIDFromKey extracts the video id from a monitored object key, or
// reports false for keys outside the monitored prefixes.
func videoIDFromKey(key string) (string, bool) {
	switch {
	case strings.HasPrefix(key, config.VideoMetadataPrefix) && strings.HasSuffix(key, ".json"):
		return strings.TrimSuffix(strings.TrimPrefix(key, config.VideoMetadataPrefix), ".json"), true
	case strings.HasPrefix(key, config.TranscriptPrefix) && strings.HasSuffix(key, ".txt"):
		return strings.TrimSuffix(strings.TrimPrefix(key, config.TranscriptPrefix), ".txt"), true
	case strings.HasPrefix(key, config.SummaryPrefix) && strings.HasSuffix(key, ".txt"):
		return strings.TrimSuffix(strings.TrimPrefix(key, config.SummaryPrefix), ".txt"), true
	}
	return "", false
}
