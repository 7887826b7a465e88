package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reviewbot/policy"
	"reviewbot/registry"
	"reviewbot/types"
)

type fakeIndex struct {
	videos  map[string][]types.VideoMetadata // by normalized query
	byID    map[string]types.VideoMetadata
	listErr error
}

func (f *fakeIndex) VideosForQuery(_ context.Context, query string) ([]types.VideoMetadata, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.videos[query], nil
}

func (f *fakeIndex) AllQueries(_ context.Context) (map[string]struct{}, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	queries := make(map[string]struct{})
	for q := range f.videos {
		queries[q] = struct{}{}
	}
	return queries, nil
}

func (f *fakeIndex) VideoByID(_ context.Context, videoID string) *types.VideoMetadata {
	if v, ok := f.byID[videoID]; ok {
		return &v
	}
	return nil
}

type fakeEvaluator struct {
	fn func(query string, startedAt time.Time) (policy.Result, error)
}

func (f *fakeEvaluator) Evaluate(_ context.Context, query string, startedAt, _ time.Time) (policy.Result, error) {
	return f.fn(query, startedAt)
}

type fakeTrigger struct {
	mu      sync.Mutex
	runs    map[string]int
	block   chan struct{} // if set, Run waits on it
	started chan string   // if set, Run announces itself
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{runs: make(map[string]int)}
}

func (f *fakeTrigger) Run(_ context.Context, query string, _ []types.VideoMetadata) types.AggregationReport {
	if f.started != nil {
		f.started <- query
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.runs[query]++
	f.mu.Unlock()
	return types.AggregationReport{SearchQuery: query, Processed: 1}
}

func (f *fakeTrigger) runCount(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[query]
}

func ready(state types.CompletionState) func(string, time.Time) (policy.Result, error) {
	return func(string, time.Time) (policy.Result, error) {
		return policy.Result{State: state, CompletedVideos: 2, TotalVideos: 2, CompletionRate: 1}, nil
	}
}

const testBucket = "test-bucket"

func newTestMonitor(index *fakeIndex, eval *fakeEvaluator, trigger *fakeTrigger) (*Monitor, *registry.Memory) {
	reg := registry.NewMemory(nil)
	m := New(reg, index, eval, trigger, Options{
		SourceBucket: testBucket,
		WaitWindow:   5 * time.Minute,
	})
	return m, reg
}

func metadataEvent(videoID string) types.ObjectEvent {
	return types.ObjectEvent{
		Bucket:     testBucket,
		ObjectName: "processed/videos/" + videoID + ".json",
		EventType:  types.EventTypeFinalize,
	}
}

func TestHandleEventSkipsNonFinalize(t *testing.T) {
	m, _ := newTestMonitor(&fakeIndex{}, &fakeEvaluator{fn: ready(types.StatePending)}, newFakeTrigger())

	out := m.HandleEvent(context.Background(), types.ObjectEvent{
		Bucket:     testBucket,
		ObjectName: "transcripts/x.txt",
		EventType:  "OBJECT_DELETE",
	})
	if out.Status != "skipped" {
		t.Fatalf("expected skipped, got %q (%s)", out.Status, out.Reason)
	}
}

func TestHandleEventSkipsForeignBucket(t *testing.T) {
	m, _ := newTestMonitor(&fakeIndex{}, &fakeEvaluator{fn: ready(types.StatePending)}, newFakeTrigger())

	out := m.HandleEvent(context.Background(), types.ObjectEvent{
		Bucket:     "someone-elses-bucket",
		ObjectName: "transcripts/x.txt",
		EventType:  types.EventTypeFinalize,
	})
	if out.Status != "skipped" {
		t.Fatalf("expected skipped, got %q", out.Status)
	}
}

func TestHandleEventSkipsUnmonitoredPrefix(t *testing.T) {
	m, _ := newTestMonitor(&fakeIndex{}, &fakeEvaluator{fn: ready(types.StatePending)}, newFakeTrigger())

	out := m.HandleEvent(context.Background(), types.ObjectEvent{
		Bucket:     testBucket,
		ObjectName: "products/some_output.txt",
		EventType:  types.EventTypeFinalize,
	})
	if out.Status != "skipped" {
		t.Fatalf("aggregation outputs must not feed back into monitoring: %q", out.Status)
	}
}

func TestHandleEventRegistersPendingGroup(t *testing.T) {
	index := &fakeIndex{
		byID: map[string]types.VideoMetadata{
			"v1": {VideoID: "v1", SearchQuery: "Nike  Air Max  Review"},
		},
	}
	eval := &fakeEvaluator{fn: func(query string, _ time.Time) (policy.Result, error) {
		return policy.Result{State: types.StatePending, CompletedVideos: 1, TotalVideos: 3}, nil
	}}
	trigger := newFakeTrigger()
	m, reg := newTestMonitor(index, eval, trigger)

	out := m.HandleEvent(context.Background(), metadataEvent("v1"))

	if out.Status != "monitoring" {
		t.Fatalf("expected monitoring, got %q (%s)", out.Status, out.Reason)
	}
	if out.SearchQuery != "nike air max review" {
		t.Fatalf("query not normalized: %q", out.SearchQuery)
	}
	if out.PendingCount != 1 {
		t.Fatalf("expected pending count 1, got %d", out.PendingCount)
	}
	if _, ok, _ := reg.Get(context.Background(), "nike air max review"); !ok {
		t.Fatal("pending entry not registered")
	}
	if trigger.runCount("nike air max review") != 0 {
		t.Fatal("pending group must not aggregate")
	}
}

func TestHandleEventAggregatesCompleteGroup(t *testing.T) {
	index := &fakeIndex{
		byID: map[string]types.VideoMetadata{
			"v1": {VideoID: "v1", SearchQuery: "shoe a"},
		},
		videos: map[string][]types.VideoMetadata{
			"shoe a": {{VideoID: "v1"}, {VideoID: "v2"}},
		},
	}
	trigger := newFakeTrigger()
	m, reg := newTestMonitor(index, &fakeEvaluator{fn: ready(types.StateComplete)}, trigger)

	out := m.HandleEvent(context.Background(), metadataEvent("v1"))

	if out.Status != "processed" {
		t.Fatalf("expected processed, got %q (%s)", out.Status, out.Reason)
	}
	if trigger.runCount("shoe a") != 1 {
		t.Fatalf("expected one aggregation run, got %d", trigger.runCount("shoe a"))
	}
	// The claim removed the entry.
	if _, ok, _ := reg.Get(context.Background(), "shoe a"); ok {
		t.Fatal("entry must be removed on aggregation")
	}
}

func TestConcurrentTriggersAggregateOnce(t *testing.T) {
	index := &fakeIndex{
		byID: map[string]types.VideoMetadata{
			"v1": {VideoID: "v1", SearchQuery: "shoe a"},
		},
		videos: map[string][]types.VideoMetadata{
			"shoe a": {{VideoID: "v1"}, {VideoID: "v2"}},
		},
	}
	trigger := newFakeTrigger()
	trigger.block = make(chan struct{})
	trigger.started = make(chan string, 1)
	m, _ := newTestMonitor(index, &fakeEvaluator{fn: ready(types.StateComplete)}, trigger)

	done := make(chan types.EventOutcome, 1)
	go func() {
		done <- m.HandleEvent(context.Background(), metadataEvent("v1"))
	}()
	<-trigger.started // first handler is inside aggregation now

	// A second event for the same group while aggregation is running
	// must not start a second run.
	second := m.HandleEvent(context.Background(), metadataEvent("v1"))
	if second.Status != "monitoring" {
		t.Fatalf("expected monitoring while in flight, got %q", second.Status)
	}

	close(trigger.block)
	first := <-done
	if first.Status != "processed" {
		t.Fatalf("expected processed, got %q", first.Status)
	}
	if trigger.runCount("shoe a") != 1 {
		t.Fatalf("group aggregated %d times", trigger.runCount("shoe a"))
	}
}

func TestSweepAggregatesExpiredReadyEntry(t *testing.T) {
	index := &fakeIndex{
		videos: map[string][]types.VideoMetadata{
			"shoe a": {{VideoID: "v1"}, {VideoID: "v2"}},
		},
	}
	trigger := newFakeTrigger()
	m, reg := newTestMonitor(index, &fakeEvaluator{fn: ready(types.StateTimedOutPartial)}, trigger)

	ctx := context.Background()
	if _, err := reg.Touch(ctx, "shoe a"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	// Pretend the wait window has long expired.
	m.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	if err := m.sweepOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if trigger.runCount("shoe a") != 1 {
		t.Fatalf("expected one run, got %d", trigger.runCount("shoe a"))
	}
	if _, ok, _ := reg.Get(ctx, "shoe a"); ok {
		t.Fatal("entry must be removed after sweep aggregation")
	}
}

func TestSweepLeavesFreshEntriesAlone(t *testing.T) {
	index := &fakeIndex{videos: map[string][]types.VideoMetadata{}}
	trigger := newFakeTrigger()
	evalCalls := 0
	eval := &fakeEvaluator{fn: func(query string, startedAt time.Time) (policy.Result, error) {
		evalCalls++
		return policy.Result{State: types.StateComplete}, nil
	}}
	m, reg := newTestMonitor(index, eval, trigger)

	ctx := context.Background()
	if _, err := reg.Touch(ctx, "shoe a"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	// Entry was touched just now; the wait mark has not passed.
	if err := m.sweepOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if evalCalls != 0 {
		t.Fatalf("fresh entry must not be evaluated, got %d calls", evalCalls)
	}
	if trigger.runCount("shoe a") != 0 {
		t.Fatal("fresh entry must not aggregate")
	}
}

func TestSweepFallbackFindsCompletedGroupOutsideRegistry(t *testing.T) {
	// "shoe a" is in the catalog but not in the registry (the
	// notification was lost, or the process restarted).
	index := &fakeIndex{
		videos: map[string][]types.VideoMetadata{
			"shoe a": {{VideoID: "v1"}, {VideoID: "v2"}},
		},
	}
	trigger := newFakeTrigger()
	eval := &fakeEvaluator{fn: func(query string, startedAt time.Time) (policy.Result, error) {
		if !startedAt.IsZero() {
			t.Errorf("fallback pass must not invent a wait start, got %s", startedAt)
		}
		return policy.Result{State: types.StateComplete, CompletedVideos: 2, TotalVideos: 2}, nil
	}}
	m, _ := newTestMonitor(index, eval, trigger)

	if err := m.sweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if trigger.runCount("shoe a") != 1 {
		t.Fatalf("fallback pass missed the group: %d runs", trigger.runCount("shoe a"))
	}
}

func TestSweepFallbackIgnoresIncompleteGroup(t *testing.T) {
	index := &fakeIndex{
		videos: map[string][]types.VideoMetadata{
			"shoe a": {{VideoID: "v1"}},
		},
	}
	trigger := newFakeTrigger()
	m, _ := newTestMonitor(index, &fakeEvaluator{fn: ready(types.StatePending)}, trigger)

	if err := m.sweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if trigger.runCount("shoe a") != 0 {
		t.Fatal("incomplete group must not aggregate")
	}
}

func TestSweepReportsCatalogFailure(t *testing.T) {
	index := &fakeIndex{listErr: errors.New("store unavailable")}
	m, _ := newTestMonitor(index, &fakeEvaluator{fn: ready(types.StatePending)}, newFakeTrigger())

	if err := m.sweepOnce(context.Background()); err == nil {
		t.Fatal("catalog failure must surface so the sweeper backs off")
	}
}

func TestForceProcessRequiresEnoughCompleted(t *testing.T) {
	index := &fakeIndex{
		videos: map[string][]types.VideoMetadata{
			"shoe a": {{VideoID: "v1"}, {VideoID: "v2"}, {VideoID: "v3"}},
		},
	}
	trigger := newFakeTrigger()
	eval := &fakeEvaluator{fn: func(string, time.Time) (policy.Result, error) {
		return policy.Result{State: types.StatePending, CompletedVideos: 2, TotalVideos: 3}, nil
	}}
	m, _ := newTestMonitor(index, eval, trigger)

	// Asking for more completed videos than exist fails without running.
	if _, _, err := m.ForceProcess(context.Background(), "shoe a", 3); err == nil {
		t.Fatal("expected insufficient-completion error")
	}
	if trigger.runCount("shoe a") != 0 {
		t.Fatal("failed force must not aggregate")
	}

	// Lowering the bar runs the aggregation even though the group is
	// still pending.
	report, res, err := m.ForceProcess(context.Background(), "Shoe A", 2)
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	if res.CompletedVideos != 2 || report.SearchQuery != "shoe a" {
		t.Fatalf("unexpected force result: res=%+v report=%+v", res, report)
	}
	if trigger.runCount("shoe a") != 1 {
		t.Fatalf("expected one forced run, got %d", trigger.runCount("shoe a"))
	}
}

func TestVideoIDFromKey(t *testing.T) {
	cases := []struct {
		key string
		id  string
		ok  bool
	}{
		{"processed/videos/abc123.json", "abc123", true},
		{"transcripts/abc123.txt", "abc123", true},
		{"summaries/abc123.txt", "abc123", true},
		{"processed/videos/abc123.txt", "", false},
		{"products/foo_bar.txt", "", false},
		{"random/key", "", false},
	}

	for _, c := range cases {
		id, ok := videoIDFromKey(c.key)
		if id != c.id || ok != c.ok {
			t.Errorf("videoIDFromKey(%q) = (%q, %v), want (%q, %v)", c.key, id, ok, c.id, c.ok)
		}
	}
}
